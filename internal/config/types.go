package config

// Config is the whole promobot configuration file.
//
// All durations are Go duration strings (e.g. "500ms", "60s", "5m").
type Config struct {
	Logging  LoggingConfig   `json:"logging"`
	Storage  StorageConfig   `json:"storage"`
	Reddit   RedditConfig    `json:"reddit"`
	Telegram *TelegramConfig `json:"telegram,omitempty"`
	Notifier *NotifierConfig `json:"notifier,omitempty"`
	Runtime  RuntimeConfig   `json:"runtime"`
	Removal  *RemovalConfig  `json:"removal,omitempty"`
	HTTP     HTTPConfig      `json:"http"`
}

type LoggingConfig struct {
	Level   string `json:"level,omitempty"`
	Console bool   `json:"console"`
	File    struct {
		Enabled bool   `json:"enabled"`
		Path    string `json:"path,omitempty"`
	} `json:"file"`
}

// StorageConfig selects the persistence backend.
//
// Example:
//
//	"storage": { "driver": "file", "path": "./promobot_store" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite
}

// RedditConfig holds the script-app credentials for the bot account.
type RedditConfig struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	Username     string `json:"username"`
	Password     string `json:"password"`
	UserAgent    string `json:"user_agent,omitempty"`
	// MinInterval paces outbound API calls ("1s" keeps well under quota).
	MinInterval string `json:"min_interval,omitempty"`
}

// TelegramConfig points operator notifications at a chat. Omitting the whole
// section disables the notifier transport.
type TelegramConfig struct {
	Token    string `json:"token"`
	ChatID   int64  `json:"chat_id"`
	ThreadID int    `json:"thread_id,omitempty"`
}

type NotifierConfig struct {
	Enabled     bool   `json:"enabled"`
	Workers     int    `json:"workers,omitempty"`
	QueueSize   int    `json:"queue_size,omitempty"`
	RatePerSec  int    `json:"rate_per_sec,omitempty"`
	DedupWindow string `json:"dedup_window,omitempty"`
}

// RuntimeConfig controls the schedule runtime.
type RuntimeConfig struct {
	Tick       string `json:"tick,omitempty"`        // default "60s"
	RetryDelay string `json:"retry_delay,omitempty"` // default "5m"
}

// RemovalConfig controls the removal monitor. Omitting the whole section
// leaves the monitor enabled with defaults.
type RemovalConfig struct {
	Enabled bool   `json:"enabled"`
	Tick    string `json:"tick,omitempty"` // default "10m"
	TTL     string `json:"ttl,omitempty"`  // default "168h"
}

// HTTPConfig controls the local trigger/schedule API.
//
// Prefer binding to localhost; the API has no authentication of its own.
type HTTPConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"` // default "127.0.0.1:8931"
}
