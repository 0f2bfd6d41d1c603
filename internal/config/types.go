package config

// Config is the daemon configuration. All durations are Go duration
// strings (e.g. "500ms", "10s", "30m").
type Config struct {
	Logging  LoggingConfig  `json:"logging"`
	Dispatch DispatchConfig `json:"dispatch"`
	Queue    QueueConfig    `json:"queue"`
	Throttle ThrottleConfig `json:"throttle"`
	Delivery DeliveryConfig `json:"delivery"`
	Webhooks WebhookConfig  `json:"webhooks"`
	Digest   DigestConfig   `json:"digest"`

	HookStore HookStoreConfig `json:"hook_store,omitempty"`
	Alerting  AlertingConfig  `json:"alerting,omitempty"`

	// Redis is required when any driver is "redis".
	Redis *RedisConfig `json:"redis,omitempty"`
}

type LoggingConfig struct {
	Level   string        `json:"level,omitempty"`
	Console bool          `json:"console"`
	File    LogFileConfig `json:"file,omitempty"`
}

type LogFileConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
}

// DispatchConfig controls the worker pool draining the queue.
type DispatchConfig struct {
	Workers int `json:"workers,omitempty"`
}

// QueueConfig selects the queue transport.
//
// Driver values:
//   - "" or "memory": in-process channel queue
//   - "redis": shared Redis list
type QueueConfig struct {
	Driver string `json:"driver,omitempty"`
	Size   int    `json:"size,omitempty"` // memory driver buffer
	Key    string `json:"key,omitempty"`  // redis list key
}

// ThrottleConfig controls the notification rate limiter.
type ThrottleConfig struct {
	// Driver: "" or "memory" for in-process, "redis" for shared state.
	Driver string `json:"driver,omitempty"`
	// StackTTL is how long a stack stays throttled after a send
	// (default 15m).
	StackTTL string `json:"stack_ttl,omitempty"`
	// Window is the project counter bucket size (default 30m).
	Window string `json:"window,omitempty"`
	// ProjectLimit caps non-regression notifications per project per
	// window (default 10).
	ProjectLimit int64 `json:"project_limit,omitempty"`
}

// DeliveryConfig is the outbound mail safety valve.
type DeliveryConfig struct {
	// Mode: "production" delivers to anyone; anything else restricts
	// delivery to AllowedOutbound matches.
	Mode string `json:"mode,omitempty"`
	// AllowedOutbound entries are matched case-insensitively as
	// substrings of the recipient address.
	AllowedOutbound []string `json:"allowed_outbound,omitempty"`
}

func (d DeliveryConfig) Production() bool { return d.Mode == "production" }

type WebhookConfig struct {
	Timeout    string `json:"timeout,omitempty"`
	RatePerSec int    `json:"rate_per_sec,omitempty"`
}

// DigestConfig controls daily summary scheduling.
type DigestConfig struct {
	Enabled  bool   `json:"enabled"`
	Schedule string `json:"schedule,omitempty"` // cron, interval, or HH:MM
	Window   string `json:"window,omitempty"`   // default 24h
	Timezone string `json:"timezone,omitempty"` // IANA TZ for cron evaluation
}

// HookStoreConfig selects the webhook registry backend.
type HookStoreConfig struct {
	Driver      string `json:"driver,omitempty"` // "memory" (default) or "sqlite"
	Path        string `json:"path,omitempty"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite only
}

type AlertingConfig struct {
	Telegram TelegramAlertConfig `json:"telegram,omitempty"`
}

type TelegramAlertConfig struct {
	Enabled bool   `json:"enabled"`
	Token   string `json:"token,omitempty"`
	ChatID  int64  `json:"chat_id,omitempty"`
}

type RedisConfig struct {
	Addr     string `json:"addr"`
	Password string `json:"password,omitempty"`
	DB       int    `json:"db,omitempty"`
}
