// Package metrics provides the counter/timer sink the dispatcher feeds.
// Counters are write-only from the engine's point of view; Snapshot
// exists for operator diagnostics and tests.
package metrics

import (
	"sync"
	"time"

	"notifyd/internal/eventbus"
)

// Well-known stat names.
const (
	ErrorsDequeued        = "errors.dequeued"
	ErrorsProcessingFail  = "errors.processing_failed"
	ErrorsProcessingTime  = "errors.processing_time"
	MessagesFailed        = "messages.failed"
	DispatchHandleTime    = "dispatch.handle_time"
	NotificationsSent     = "notifications.sent"
	NotificationsThrottle = "notifications.throttled"
)

// Sink receives counter increments and timing samples.
type Sink interface {
	Counter(name string, delta int64)
	Timing(name string, d time.Duration)
}

// Registry is the in-process Sink. Increments are mirrored on the event
// bus (type "metric") when a bus is attached.
type Registry struct {
	mu       sync.Mutex
	counters map[string]int64
	timings  map[string]time.Duration

	bus eventbus.Bus
}

func NewRegistry(bus eventbus.Bus) *Registry {
	return &Registry{
		counters: map[string]int64{},
		timings:  map[string]time.Duration{},
		bus:      bus,
	}
}

func (r *Registry) Counter(name string, delta int64) {
	r.mu.Lock()
	r.counters[name] += delta
	r.mu.Unlock()

	if r.bus != nil {
		r.bus.Publish(eventbus.Event{Type: "metric", Data: map[string]any{"name": name, "delta": delta}})
	}
}

func (r *Registry) Timing(name string, d time.Duration) {
	r.mu.Lock()
	r.timings[name] += d
	r.mu.Unlock()
}

// Time runs fn and records its duration under name.
func (r *Registry) Time(name string, fn func()) {
	start := time.Now()
	fn()
	r.Timing(name, time.Since(start))
}

// Snapshot copies the current counter values.
func (r *Registry) Snapshot() map[string]int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]int64, len(r.counters))
	for k, v := range r.counters {
		out[k] = v
	}
	return out
}

// Nop returns a sink that discards everything.
func Nop() Sink { return nopSink{} }

type nopSink struct{}

func (nopSink) Counter(string, int64)        {}
func (nopSink) Timing(string, time.Duration) {}
