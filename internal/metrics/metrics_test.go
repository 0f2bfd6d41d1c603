package metrics

import (
	"testing"
	"time"

	"notifyd/internal/eventbus"
)

func TestRegistryCounters(t *testing.T) {
	t.Parallel()

	r := NewRegistry(nil)
	r.Counter(NotificationsSent, 1)
	r.Counter(NotificationsSent, 2)
	r.Counter(MessagesFailed, 1)

	snap := r.Snapshot()
	if snap[NotificationsSent] != 3 {
		t.Fatalf("%s = %d, want 3", NotificationsSent, snap[NotificationsSent])
	}
	if snap[MessagesFailed] != 1 {
		t.Fatalf("%s = %d, want 1", MessagesFailed, snap[MessagesFailed])
	}

	// Snapshot is a copy.
	snap[NotificationsSent] = 100
	if r.Snapshot()[NotificationsSent] != 3 {
		t.Fatal("snapshot mutation leaked into the registry")
	}
}

func TestRegistryTime(t *testing.T) {
	t.Parallel()

	r := NewRegistry(nil)
	ran := false
	r.Time(DispatchHandleTime, func() { ran = true })
	if !ran {
		t.Fatal("Time did not run fn")
	}
	r.Timing(DispatchHandleTime, 5*time.Millisecond)
}

func TestRegistryMirrorsCountersOnBus(t *testing.T) {
	t.Parallel()

	bus := eventbus.New()
	ch, unsub := bus.Subscribe(1)
	defer unsub()

	r := NewRegistry(bus)
	r.Counter(ErrorsDequeued, 1)

	select {
	case e := <-ch:
		if e.Type != "metric" {
			t.Fatalf("event type = %s", e.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("counter not mirrored on the bus")
	}
}

func TestNopSink(t *testing.T) {
	t.Parallel()

	s := Nop()
	s.Counter("x", 1)
	s.Timing("x", time.Second)
}
