// Package config loads and hot-reloads the bot configuration from a YAML
// or JSON file.
package config

type Config struct {
	Telegram    TelegramConfig    `json:"telegram"`
	Logging     LoggingConfig     `json:"logging"`
	Store       StoreConfig       `json:"store"`
	Dispatch    DispatchConfig    `json:"dispatch"`
	Maintenance MaintenanceConfig `json:"maintenance"`
	Timezone    TimezoneConfig    `json:"timezone"`
}

type TelegramConfig struct {
	Token string `json:"token"`
	// PollTimeout is the long-poll timeout, a Go duration string
	// (default "10s").
	PollTimeout string `json:"poll_timeout,omitempty"`
	// RatePerSec caps outbound messages per second (default 3).
	RatePerSec int `json:"rate_per_sec,omitempty"`
}

type LoggingConfig struct {
	Level   string     `json:"level,omitempty"`
	Console bool       `json:"console"`
	File    FileConfig `json:"file,omitempty"`
}

type FileConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
}

type StoreConfig struct {
	Path string `json:"path"`
	// BusyTimeout is the SQLite busy timeout, a Go duration string
	// (default "5s").
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

type DispatchConfig struct {
	// PollInterval is the sleep between due-timer polls, a Go duration
	// string (default "10s"). Hot-reloadable; applies from the next cycle.
	PollInterval string `json:"poll_interval,omitempty"`
}

type MaintenanceConfig struct {
	Enabled bool `json:"enabled"`
	// Schedule is a cron spec or descriptor like "@daily".
	Schedule string `json:"schedule,omitempty"`
	// HistoryMaxAge prunes re-suggestion history entries older than this,
	// a Go duration string (default "720h" = 30 days).
	HistoryMaxAge string `json:"history_max_age,omitempty"`
}

type TimezoneConfig struct {
	// Default is the IANA zone suggested to new chats (default "UTC").
	Default string `json:"default,omitempty"`
}
