package config

import (
	"fmt"
	"strings"
	"time"

	"remindbot/internal/dispatch"
)

const (
	defaultPollTimeout   = 10 * time.Second
	defaultRatePerSec    = 3
	defaultBusyTimeout   = 5 * time.Second
	defaultSchedule      = "@daily"
	defaultHistoryMaxAge = 30 * 24 * time.Hour
	defaultLogLevel      = "info"
	defaultTimezone      = "UTC"
)

func (c *Config) applyDefaults() {
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Telegram.RatePerSec <= 0 {
		c.Telegram.RatePerSec = defaultRatePerSec
	}
	if c.Maintenance.Schedule == "" {
		c.Maintenance.Schedule = defaultSchedule
	}
	if c.Timezone.Default == "" {
		c.Timezone.Default = defaultTimezone
	}
}

// Validate checks the fields that would otherwise fail deep inside a
// component at runtime. Duration strings are parsed here once; the
// typed accessors below re-parse with the same defaults.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Telegram.Token) == "" {
		return fmt.Errorf("telegram.token: required")
	}
	if strings.TrimSpace(c.Store.Path) == "" {
		return fmt.Errorf("store.path: required")
	}
	if c.Logging.File.Enabled && strings.TrimSpace(c.Logging.File.Path) == "" {
		return fmt.Errorf("logging.file.path: required when file logging is enabled")
	}
	if _, err := parseDuration("telegram.poll_timeout", c.Telegram.PollTimeout); err != nil {
		return err
	}
	if _, err := parseDuration("store.busy_timeout", c.Store.BusyTimeout); err != nil {
		return err
	}
	if _, err := parseDuration("dispatch.poll_interval", c.Dispatch.PollInterval); err != nil {
		return err
	}
	if _, err := parseDuration("maintenance.history_max_age", c.Maintenance.HistoryMaxAge); err != nil {
		return err
	}
	if _, err := time.LoadLocation(c.Timezone.Default); err != nil {
		return fmt.Errorf("timezone.default: %w", err)
	}
	return nil
}

// parseDuration reads a Go duration string from a config field. Empty
// means "unset" and comes back as zero; negative values are rejected.
func parseDuration(field, raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", field, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: must not be negative", field)
	}
	return d, nil
}

// durationOr returns the parsed duration, or def when the field is
// unset or unparseable. Validate() has already rejected bad values, so
// the fallback only ever fires for empty fields.
func durationOr(raw string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func (c *Config) PollTimeout() time.Duration {
	return durationOr(c.Telegram.PollTimeout, defaultPollTimeout)
}

func (c *Config) BusyTimeout() time.Duration {
	return durationOr(c.Store.BusyTimeout, defaultBusyTimeout)
}

func (c *Config) PollInterval() time.Duration {
	return durationOr(c.Dispatch.PollInterval, dispatch.DefaultPollInterval)
}

func (c *Config) HistoryMaxAge() time.Duration {
	return durationOr(c.Maintenance.HistoryMaxAge, defaultHistoryMaxAge)
}
