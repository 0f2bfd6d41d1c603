package throttle

import (
	"context"
	"fmt"
	"time"

	logx "notifyd/pkg/logx"
)

const (
	stackKeyPrefix   = "notify:stack-throttle:"
	projectKeyPrefix = "notify:project-throttle:"
)

// Config tunes the notification throttles. Zero values fall back to the
// defaults below.
type Config struct {
	// StackTTL is how long a stack stays throttled after a send.
	StackTTL time.Duration
	// Window is the project counter bucket size.
	Window time.Duration
}

func (c Config) withDefaults() Config {
	if c.StackTTL <= 0 {
		c.StackTTL = 15 * time.Minute
	}
	if c.Window <= 0 {
		c.Window = 30 * time.Minute
	}
	return c
}

// Limiter exposes the two throttle primitives over a shared cache.
type Limiter struct {
	cache Cache
	cfg   Config
	log   logx.Logger

	// now is injectable for tests.
	now func() time.Time
}

func NewLimiter(cache Cache, cfg Config, log logx.Logger) *Limiter {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Limiter{cache: cache, cfg: cfg.withDefaults(), log: log, now: time.Now}
}

// Window returns the project bucket size.
func (l *Limiter) Window() time.Duration { return l.cfg.Window }

// LastSent returns when a notification for the stack was last sent.
// Cache failures fail open: they report "never sent".
func (l *Limiter) LastSent(ctx context.Context, stackID string) (time.Time, bool) {
	t, ok, err := l.cache.GetTime(ctx, stackKeyPrefix+stackID)
	if err != nil {
		l.log.Warn("stack throttle read failed; allowing", logx.String("stack", stackID), logx.Err(err))
		return time.Time{}, false
	}
	return t, ok
}

// MarkSent refreshes the stack's last-sent timestamp. Reprocessing the
// same message after a send updates the timestamp in place.
func (l *Limiter) MarkSent(ctx context.Context, stackID string) {
	if err := l.cache.SetTime(ctx, stackKeyPrefix+stackID, l.now(), l.cfg.StackTTL); err != nil {
		l.log.Warn("stack throttle write failed", logx.String("stack", stackID), logx.Err(err))
	}
}

// Bump increments the project's counter for the current window bucket and
// returns the new count. The bucket boundary is part of the key, so
// buckets roll over without explicit bookkeeping; the TTL equals the
// window so stale buckets expire on their own.
func (l *Limiter) Bump(ctx context.Context, projectID string) (int64, error) {
	bucket := l.now().UTC().Truncate(l.cfg.Window)
	key := fmt.Sprintf("%s%s-%d", projectKeyPrefix, projectID, bucket.Unix())
	return l.cache.Increment(ctx, key, l.cfg.Window)
}
