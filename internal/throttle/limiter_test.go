package throttle

import (
	"context"
	"errors"
	"testing"
	"time"

	logx "notifyd/pkg/logx"
)

func TestMemoryCacheExpiry(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	c := NewMemoryCache()
	c.Now = func() time.Time { return now }

	ctx := context.Background()
	if err := c.SetTime(ctx, "k", now, time.Minute); err != nil {
		t.Fatalf("SetTime error: %v", err)
	}
	if _, ok, _ := c.GetTime(ctx, "k"); !ok {
		t.Fatal("fresh entry missing")
	}

	now = now.Add(61 * time.Second)
	if _, ok, _ := c.GetTime(ctx, "k"); ok {
		t.Fatal("expired entry still readable")
	}
}

func TestMemoryCacheIncrementTTL(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	c := NewMemoryCache()
	c.Now = func() time.Time { return now }

	ctx := context.Background()
	for want := int64(1); want <= 3; want++ {
		got, err := c.Increment(ctx, "n", time.Minute)
		if err != nil {
			t.Fatalf("Increment error: %v", err)
		}
		if got != want {
			t.Fatalf("Increment = %d, want %d", got, want)
		}
	}

	// TTL counts from creation; later increments don't extend it.
	now = now.Add(30 * time.Second)
	if got, _ := c.Increment(ctx, "n", time.Minute); got != 4 {
		t.Fatalf("Increment = %d, want 4", got)
	}
	now = now.Add(31 * time.Second)
	if got, _ := c.Increment(ctx, "n", time.Minute); got != 1 {
		t.Fatalf("counter survived its ttl: got %d, want 1", got)
	}
}

func TestLimiterStackThrottle(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	c := NewMemoryCache()
	c.Now = func() time.Time { return now }
	l := NewLimiter(c, Config{}, logx.Nop())
	l.now = func() time.Time { return now }

	ctx := context.Background()
	if _, ok := l.LastSent(ctx, "stack-1"); ok {
		t.Fatal("unsent stack reported as sent")
	}

	l.MarkSent(ctx, "stack-1")
	sent, ok := l.LastSent(ctx, "stack-1")
	if !ok || !sent.Equal(now) {
		t.Fatalf("LastSent = %v (ok=%v), want %v", sent, ok, now)
	}

	// MarkSent refreshes in place when a send repeats.
	now = now.Add(10 * time.Minute)
	l.MarkSent(ctx, "stack-1")
	sent, ok = l.LastSent(ctx, "stack-1")
	if !ok || !sent.Equal(now) {
		t.Fatalf("refreshed LastSent = %v (ok=%v), want %v", sent, ok, now)
	}

	// Default stack TTL is 15m; past it the record is gone.
	now = now.Add(16 * time.Minute)
	if _, ok := l.LastSent(ctx, "stack-1"); ok {
		t.Fatal("stack throttle outlived its ttl")
	}
}

func TestLimiterBucketRollover(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 10, 5, 0, 0, time.UTC)
	c := NewMemoryCache()
	c.Now = func() time.Time { return now }
	l := NewLimiter(c, Config{Window: 30 * time.Minute}, logx.Nop())
	l.now = func() time.Time { return now }

	ctx := context.Background()
	for want := int64(1); want <= 5; want++ {
		got, err := l.Bump(ctx, "proj")
		if err != nil {
			t.Fatalf("Bump error: %v", err)
		}
		if got != want {
			t.Fatalf("Bump = %d, want %d", got, want)
		}
	}

	// Counts accumulate within the half-hour bucket...
	now = now.Add(20 * time.Minute) // 10:25, same bucket as 10:05
	if got, _ := l.Bump(ctx, "proj"); got != 6 {
		t.Fatalf("Bump = %d, want 6 inside bucket", got)
	}

	// ...and reset when the boundary passes.
	now = now.Add(10 * time.Minute) // 10:35, next bucket
	if got, _ := l.Bump(ctx, "proj"); got != 1 {
		t.Fatalf("Bump = %d, want 1 after rollover", got)
	}
}

func TestLimiterProjectsIndependent(t *testing.T) {
	t.Parallel()

	c := NewMemoryCache()
	l := NewLimiter(c, Config{}, logx.Nop())
	ctx := context.Background()

	if _, err := l.Bump(ctx, "a"); err != nil {
		t.Fatalf("Bump error: %v", err)
	}
	got, err := l.Bump(ctx, "b")
	if err != nil {
		t.Fatalf("Bump error: %v", err)
	}
	if got != 1 {
		t.Fatalf("project b counter = %d, want 1", got)
	}
}

type failingCache struct{}

func (failingCache) GetTime(context.Context, string) (time.Time, bool, error) {
	return time.Time{}, false, errors.New("cache down")
}

func (failingCache) SetTime(context.Context, string, time.Time, time.Duration) error {
	return errors.New("cache down")
}

func (failingCache) Increment(context.Context, string, time.Duration) (int64, error) {
	return 0, errors.New("cache down")
}

func TestLimiterFailsOpen(t *testing.T) {
	t.Parallel()

	l := NewLimiter(failingCache{}, Config{}, logx.Nop())
	ctx := context.Background()

	if _, ok := l.LastSent(ctx, "s"); ok {
		t.Fatal("cache failure must read as never sent")
	}
	// MarkSent must not panic on a broken cache.
	l.MarkSent(ctx, "s")
	if _, err := l.Bump(ctx, "p"); err == nil {
		t.Fatal("Bump must surface the cache error for the caller to log")
	}
}
