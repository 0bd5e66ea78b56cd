package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

const validYAML = `
telegram:
  token: "123:abc"
  chat_id: -1001234567890
  thread_id: 7
feed:
  url: "https://example.org/announcements.json"
  poll_interval: "30s"
scheduler:
  timezone: "Europe/Berlin"
  late_grace: "2m"
notifier:
  rate_per_sec: 5
logging:
  level: "debug"
  console: true
storage:
  driver: "sqlite"
  path: "./racebot.db"
  busy_timeout: "5s"
`

func TestParseYAML(t *testing.T) {
	t.Parallel()
	m := NewManager(writeFile(t, "config.yaml", validYAML))
	cfg, err := m.Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Telegram.ChatID != -1001234567890 || cfg.Telegram.ThreadID != 7 {
		t.Fatalf("telegram section: %+v", cfg.Telegram)
	}
	if cfg.Feed.URL != "https://example.org/announcements.json" {
		t.Fatalf("feed url: %q", cfg.Feed.URL)
	}
	if cfg.Scheduler.Timezone != "Europe/Berlin" {
		t.Fatalf("timezone: %q", cfg.Scheduler.Timezone)
	}
	if cfg.Storage == nil || cfg.Storage.Driver != "sqlite" {
		t.Fatalf("storage section: %+v", cfg.Storage)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	if d, _ := cfg.PollInterval(); d != 30*time.Second {
		t.Fatalf("poll interval = %v", d)
	}
	if d, _ := cfg.LateGrace(); d != 2*time.Minute {
		t.Fatalf("late grace = %v", d)
	}
	// Omitted fields fall back to defaults.
	if d, _ := cfg.MaxFuture(); d != 48*time.Hour {
		t.Fatalf("max future default = %v", d)
	}
	if d, _ := cfg.RescheduleThreshold(); d != time.Second {
		t.Fatalf("reschedule threshold default = %v", d)
	}
}

func TestParseJSON(t *testing.T) {
	t.Parallel()
	m := NewManager(writeFile(t, "config.json", `{
		"telegram": {"token": "123:abc", "chat_id": 42},
		"feed": {"url": "https://example.org/feed"}
	}`))
	cfg, err := m.Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Telegram.ChatID != 42 {
		t.Fatalf("chat_id = %d", cfg.Telegram.ChatID)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	t.Parallel()
	m := NewManager(writeFile(t, "config.yaml", `
telegram:
  token: "123:abc"
  chat_id: 42
  chatid: 99
feed:
  url: "https://example.org/feed"
`))
	_, err := m.Parse()
	if err == nil || !strings.Contains(err.Error(), "chatid") {
		t.Fatalf("expected unknown-field error mentioning chatid, got %v", err)
	}
}

func TestValidateFailures(t *testing.T) {
	t.Parallel()
	base := func() *Config {
		return &Config{
			Telegram: TelegramConfig{Token: "123:abc", ChatID: 42},
			Feed:     FeedConfig{URL: "https://example.org/feed"},
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"missing token", func(c *Config) { c.Telegram.Token = "  " }, "telegram.token"},
		{"missing chat id", func(c *Config) { c.Telegram.ChatID = 0 }, "telegram.chat_id"},
		{"missing url", func(c *Config) { c.Feed.URL = "" }, "feed.url"},
		{"bad poll interval", func(c *Config) { c.Feed.PollInterval = "sixty seconds" }, "feed.poll_interval"},
		{"negative poll interval", func(c *Config) { c.Feed.PollInterval = "-10s" }, "feed.poll_interval"},
		{"bad grace", func(c *Config) { c.Scheduler.LateGrace = "3 minutes" }, "scheduler.late_grace"},
		{"bad timezone", func(c *Config) { c.Scheduler.Timezone = "Mars/Olympus" }, "scheduler.timezone"},
		{"bad busy timeout", func(c *Config) { c.Storage = &StorageConfig{Driver: "sqlite", BusyTimeout: "5 sec"} }, "storage.busy_timeout"},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := base()
			tc.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestLoadAndGet(t *testing.T) {
	t.Parallel()
	m := NewManager(writeFile(t, "config.yaml", validYAML))
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if m.Get() != cfg {
		t.Fatal("Get must return the committed config")
	}
}

func TestSubscribePublish(t *testing.T) {
	t.Parallel()
	m := NewManager(writeFile(t, "config.yaml", validYAML))
	ch := m.Subscribe(1)
	defer m.Unsubscribe(ch)

	next := &Config{}
	m.Commit(next)
	m.publish(next)

	select {
	case got := <-ch:
		if got != next {
			t.Fatal("subscriber received wrong config")
		}
	case <-time.After(time.Second):
		t.Fatal("subscriber never notified")
	}
}

func TestPublishDropsOldest(t *testing.T) {
	t.Parallel()
	m := NewManager(writeFile(t, "config.yaml", validYAML))
	ch := m.Subscribe(1)
	defer m.Unsubscribe(ch)

	first, second := &Config{}, &Config{}
	m.publish(first)
	m.publish(second) // buffer full: first is dropped, second pushed

	select {
	case got := <-ch:
		if got != second {
			t.Fatal("expected the newest config to survive")
		}
	case <-time.After(time.Second):
		t.Fatal("subscriber never notified")
	}
}
