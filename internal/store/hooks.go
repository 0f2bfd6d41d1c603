package store

import (
	"context"
	"errors"
	"strings"
	"time"

	logx "notifyd/pkg/logx"
)

// Hook is one webhook registration. Deliveries POST to URL; a permanent
// failure signal (HTTP 410) removes every registration matching that URL.
type Hook struct {
	ID         string
	ProjectID  string
	URL        string
	EventTypes []string
	CreatedAt  time.Time
}

// HookStore is the webhook registry.
type HookStore interface {
	Add(ctx context.Context, h Hook) error
	ByProject(ctx context.Context, projectID string) ([]Hook, error)
	// DeleteByURL removes all hooks registered for the URL and returns how
	// many were removed.
	DeleteByURL(ctx context.Context, url string) (int, error)
	Close() error
}

// HookConfig configures the webhook registry backend.
//
// Driver values:
//   - "" or "memory": in-process registry
//   - "sqlite": SQLite database file (optional build tag)
type HookConfig struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// OpenHooks initializes the configured hook registry.
func OpenHooks(cfg HookConfig, log logx.Logger) (HookStore, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "memory":
		return NewMemoryHooks(), nil
	case "sqlite", "sqlite3":
		return openSQLiteHooks(cfg, log)
	default:
		return nil, errors.New("unknown hook store driver: " + cfg.Driver)
	}
}
