package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"remindbot/internal/dispatch"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadYAML(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, "config.yaml", `
telegram:
  token: "123:abc"
  rate_per_sec: 5
store:
  path: "data/bot.db"
dispatch:
  poll_interval: "3s"
maintenance:
  enabled: true
  history_max_age: "48h"
`)

	m := NewManager(path)
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Telegram.Token != "123:abc" {
		t.Errorf("token = %q", cfg.Telegram.Token)
	}
	if got := cfg.PollInterval(); got != 3*time.Second {
		t.Errorf("PollInterval = %v, want 3s", got)
	}
	if got := cfg.HistoryMaxAge(); got != 48*time.Hour {
		t.Errorf("HistoryMaxAge = %v, want 48h", got)
	}
	// defaults fill in
	if cfg.Telegram.RatePerSec != 5 {
		t.Errorf("rate_per_sec = %d", cfg.Telegram.RatePerSec)
	}
	if cfg.Maintenance.Schedule != "@daily" {
		t.Errorf("schedule default = %q", cfg.Maintenance.Schedule)
	}
	if cfg.Timezone.Default != "UTC" {
		t.Errorf("timezone default = %q", cfg.Timezone.Default)
	}
	if m.Get() != cfg {
		t.Error("Get should return the committed config")
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, "config.yaml", `
telegram:
  token: "123:abc"
  chat_id: 42
store:
  path: "data/bot.db"
`)
	if _, err := NewManager(path).Parse(); err == nil {
		t.Fatal("expected unknown field error")
	}
}

func TestParseRejectsInvalidValues(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		body string
	}{
		{"missing token", "store:\n  path: x.db\n"},
		{"missing store path", "telegram:\n  token: t\n"},
		{"bad duration", "telegram:\n  token: t\nstore:\n  path: x.db\ndispatch:\n  poll_interval: soon\n"},
		{"negative duration", "telegram:\n  token: t\nstore:\n  path: x.db\ndispatch:\n  poll_interval: \"-5s\"\n"},
		{"bad timezone", "telegram:\n  token: t\nstore:\n  path: x.db\ntimezone:\n  default: Mars/Olympus\n"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			path := writeConfig(t, "config.yaml", tc.body)
			if _, err := NewManager(path).Parse(); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestDurationDefaults(t *testing.T) {
	t.Parallel()

	var c Config
	if got := c.PollInterval(); got != dispatch.DefaultPollInterval {
		t.Errorf("PollInterval default = %v, want %v", got, dispatch.DefaultPollInterval)
	}
	if got := c.PollTimeout(); got != 10*time.Second {
		t.Errorf("PollTimeout default = %v", got)
	}
	if got := c.BusyTimeout(); got != 5*time.Second {
		t.Errorf("BusyTimeout default = %v", got)
	}
}

func TestLoadJSON(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, "config.json", `{
  "telegram": {"token": "123:abc"},
  "store": {"path": "data/bot.db"},
  "dispatch": {"poll_interval": "7s"}
}`)

	cfg, err := NewManager(path).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Telegram.Token != "123:abc" {
		t.Errorf("token = %q", cfg.Telegram.Token)
	}
	if got := cfg.PollInterval(); got != 7*time.Second {
		t.Errorf("PollInterval = %v, want 7s", got)
	}
}

func TestReloadValidatorGatesCommit(t *testing.T) {
	t.Parallel()

	const base = "telegram:\n  token: t\nstore:\n  path: a.db\n"
	path := writeConfig(t, "config.yaml", base)

	m := NewManager(path)
	first, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	ch := m.Subscribe(1)
	defer m.Unsubscribe(ch)

	m.SetValidator(func(_ context.Context, cfg *Config) error {
		if cfg.Store.Path != first.Store.Path {
			return errors.New("store.path changed")
		}
		return nil
	})

	// Rejected: the committed snapshot and subscribers see nothing.
	if err := os.WriteFile(path, []byte("telegram:\n  token: t\nstore:\n  path: b.db\n"), 0o644); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}
	m.reload(context.Background())
	if m.Get() != first {
		t.Fatal("rejected config must not be committed")
	}
	select {
	case <-ch:
		t.Fatal("rejected config must not be published")
	default:
	}

	// Accepted: a change the validator allows commits and publishes.
	if err := os.WriteFile(path, []byte(base+"logging:\n  level: debug\n"), 0o644); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}
	m.reload(context.Background())
	got := m.Get()
	if got == first || got.Logging.Level != "debug" {
		t.Fatalf("accepted config not committed: %+v", got)
	}
	select {
	case pub := <-ch:
		if pub != got {
			t.Error("published config differs from committed one")
		}
	default:
		t.Fatal("accepted config must be published")
	}
}

func TestReloadSkipsUnchangedContent(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, "config.yaml", "telegram:\n  token: t\nstore:\n  path: a.db\n")
	m := NewManager(path)
	if _, err := m.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	ch := m.Subscribe(1)
	defer m.Unsubscribe(ch)

	m.reload(context.Background()) // same bytes on disk
	select {
	case <-ch:
		t.Fatal("unchanged content must not be republished")
	default:
	}
}

func TestSubscribePublishDropOldest(t *testing.T) {
	t.Parallel()

	m := NewManager("unused.yaml")
	ch := m.Subscribe(1)
	defer m.Unsubscribe(ch)

	a, b := &Config{}, &Config{}
	m.publish(a)
	m.publish(b) // buffer full: oldest dropped, newest delivered

	select {
	case got := <-ch:
		if got != b {
			t.Error("expected the newest config to win")
		}
	default:
		t.Fatal("expected a pending config")
	}
}
