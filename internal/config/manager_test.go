package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func testContext(t *testing.T) (context.Context, context.CancelFunc) {
	t.Helper()
	return context.WithTimeout(context.Background(), 10*time.Second)
}

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestParseYAML(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, "config.yaml", `
logging:
  level: debug
  console: true
dispatch:
  workers: 8
queue:
  driver: memory
  size: 512
throttle:
  stack_ttl: 15m
  window: 30m
  project_limit: 10
delivery:
  mode: production
webhooks:
  timeout: 10s
  rate_per_sec: 5
digest:
  enabled: true
  schedule: "@daily"
  window: 24h
`)

	m := NewManager(path)
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Logging.Level != "debug" || !cfg.Logging.Console {
		t.Fatalf("logging = %+v", cfg.Logging)
	}
	if cfg.Dispatch.Workers != 8 {
		t.Fatalf("workers = %d", cfg.Dispatch.Workers)
	}
	if cfg.Throttle.ProjectLimit != 10 {
		t.Fatalf("project_limit = %d", cfg.Throttle.ProjectLimit)
	}
	if !cfg.Delivery.Production() {
		t.Fatal("mode production not recognized")
	}
	if got := m.Get(); got != cfg {
		t.Fatal("Get did not return the committed config")
	}
}

func TestParseJSON(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, "config.json", `{
  "logging": {"level": "info", "console": true},
  "queue": {"driver": "redis", "key": "notifyd:q"},
  "throttle": {"driver": "redis"},
  "redis": {"addr": "localhost:6379", "db": 2}
}`)

	cfg, err := NewManager(path).Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Queue.Driver != "redis" || cfg.Queue.Key != "notifyd:q" {
		t.Fatalf("queue = %+v", cfg.Queue)
	}
	if cfg.Redis == nil || cfg.Redis.Addr != "localhost:6379" || cfg.Redis.DB != 2 {
		t.Fatalf("redis = %+v", cfg.Redis)
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, "config.yaml", `
logging:
  console: true
typo_section:
  whatever: 1
`)
	if _, err := NewManager(path).Parse(); err == nil {
		t.Fatal("unknown section accepted")
	}
}

func TestValidateRejections(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  Config
	}{
		{name: "bad duration", cfg: Config{Throttle: ThrottleConfig{StackTTL: "15 parsecs"}}},
		{name: "negative duration", cfg: Config{Webhooks: WebhookConfig{Timeout: "-5s"}}},
		{name: "unknown queue driver", cfg: Config{Queue: QueueConfig{Driver: "kafka"}}},
		{name: "unknown throttle driver", cfg: Config{Throttle: ThrottleConfig{Driver: "memcached"}}},
		{name: "redis driver without redis section", cfg: Config{Queue: QueueConfig{Driver: "redis"}}},
		{name: "telegram enabled without token", cfg: Config{Alerting: AlertingConfig{Telegram: TelegramAlertConfig{Enabled: true, ChatID: 1}}}},
		{name: "telegram enabled without chat", cfg: Config{Alerting: AlertingConfig{Telegram: TelegramAlertConfig{Enabled: true, Token: "t"}}}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if err := tt.cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}

	ok := Config{
		Queue:    QueueConfig{Driver: "redis"},
		Throttle: ThrottleConfig{Driver: "memory", Window: "30m"},
		Redis:    &RedisConfig{Addr: "localhost:6379"},
	}
	if err := ok.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
}

func TestParseDurationField(t *testing.T) {
	t.Parallel()

	if d, err := ParseDurationField("x", " 90s "); err != nil || d != 90*time.Second {
		t.Fatalf("got %v, %v", d, err)
	}
	if d, err := ParseDurationField("x", ""); err != nil || d != 0 {
		t.Fatalf("empty: got %v, %v", d, err)
	}
	if _, err := ParseDurationField("x", "soon"); err == nil {
		t.Fatal("expected parse error")
	}
	if d, err := ParseDurationOrDefault("x", "", time.Minute); err != nil || d != time.Minute {
		t.Fatalf("default: got %v, %v", d, err)
	}
}

func TestSubscribePublishAndUnsubscribe(t *testing.T) {
	t.Parallel()

	m := NewManager("unused")
	ch := m.Subscribe(1)

	first := &Config{}
	second := &Config{Dispatch: DispatchConfig{Workers: 2}}
	m.publish(first)
	// A slow subscriber keeps only the latest config.
	m.publish(second)

	got := <-ch
	if got != second {
		t.Fatalf("got %+v, want latest config", got)
	}

	m.Unsubscribe(ch)
	if _, ok := <-ch; ok {
		t.Fatal("unsubscribed channel not closed")
	}
	// Publishing after unsubscribe must not panic.
	m.publish(first)
}

func TestWatchReloadsOnChange(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, "config.yaml", "logging:\n  console: true\n")
	m := NewManager(path)
	if _, err := m.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}

	ctx, cancel := testContext(t)
	defer cancel()

	ch := m.Subscribe(1)
	go func() { _ = m.Watch(ctx) }()

	// Give the watcher a moment to attach before writing.
	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(path, []byte("logging:\n  console: true\n  level: debug\n"), 0o644); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}

	select {
	case cfg := <-ch:
		if cfg.Logging.Level != "debug" {
			t.Fatalf("reloaded level = %q", cfg.Logging.Level)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reload")
	}
}

func TestWatchKeepsConfigOnParseFailure(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, "config.yaml", "logging:\n  console: true\n")
	m := NewManager(path)
	if _, err := m.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}

	ctx, cancel := testContext(t)
	defer cancel()

	ch := m.Subscribe(1)
	go func() { _ = m.Watch(ctx) }()

	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(path, []byte("nonsense: {{{{"), 0o644); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}

	select {
	case cfg := <-ch:
		t.Fatalf("broken config published: %+v", cfg)
	case <-time.After(700 * time.Millisecond):
	}
	if m.Get() == nil || !m.Get().Logging.Console {
		t.Fatal("previous config lost")
	}
}
