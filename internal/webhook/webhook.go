// Package webhook delivers JSON payloads to registered endpoints.
//
// Delivery is synchronous: the handling worker blocks until the HTTP
// call completes, so a slow endpoint backpressures this consumer.
// Delivery is best-effort; the one outcome acted upon is HTTP 410 Gone,
// which deregisters the hook so stale subscriptions heal themselves.
package webhook

import (
	"bytes"
	"context"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"notifyd/internal/eventbus"
	"notifyd/internal/model"
	"notifyd/internal/store"
	logx "notifyd/pkg/logx"
)

// Config controls outbound delivery.
type Config struct {
	// Timeout bounds one HTTP call. 0 means 30s.
	Timeout time.Duration
	// RatePerSec paces outbound POSTs across all workers. 0 disables
	// pacing.
	RatePerSec int
}

type Dispatcher struct {
	client  *http.Client
	hooks   store.HookStore
	limiter *rate.Limiter
	log     logx.Logger
	bus     eventbus.Bus
}

func New(cfg Config, hooks store.HookStore, log logx.Logger, bus eventbus.Bus) *Dispatcher {
	if log.IsZero() {
		log = logx.Nop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	d := &Dispatcher{
		client: &http.Client{Timeout: timeout},
		hooks:  hooks,
		log:    log,
		bus:    bus,
	}
	if cfg.RatePerSec > 0 {
		d.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec)
	}
	return d
}

// HandleWebhook posts the payload and waits for completion. It returns
// nil for every delivery outcome: webhook delivery never fails the
// message.
func (d *Dispatcher) HandleWebhook(ctx context.Context, msg model.WebhookMessage) error {
	log := d.log.With(logx.String("project", msg.ProjectID), logx.String("url", msg.URL))
	log.Trace("processing web hook call")

	if d.limiter != nil {
		if err := d.limiter.Wait(ctx); err != nil {
			log.Warn("web hook pacing interrupted", logx.Err(err))
			return nil
		}
	}

	body := []byte(msg.Data)
	if len(body) == 0 {
		body = []byte("null")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, msg.URL, bytes.NewReader(body))
	if err != nil {
		log.Warn("web hook request build failed", logx.Err(err))
		return nil
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		log.Warn("web hook call failed", logx.Err(err))
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusGone {
		n, derr := d.hooks.DeleteByURL(ctx, msg.URL)
		if derr != nil {
			log.Error("web hook deregistration failed", logx.Err(derr))
		} else {
			log.Info("deleted web hook after gone response", logx.Int("removed", n))
		}
	}

	log.Trace("web hook POST complete", logx.Int("status", resp.StatusCode))
	if d.bus != nil {
		d.bus.Publish(eventbus.Event{Type: "webhook.delivered", Data: map[string]any{
			"project": msg.ProjectID, "url": msg.URL, "status": resp.StatusCode,
		}})
	}
	return nil
}
