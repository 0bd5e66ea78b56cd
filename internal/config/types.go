package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Config is racebot's full configuration. YAML and JSON files share these
// json tags (YAML is coerced to JSON before decoding, see Parse).
type Config struct {
	Telegram  TelegramConfig  `json:"telegram"`
	Feed      FeedConfig      `json:"feed"`
	Scheduler SchedulerConfig `json:"scheduler,omitempty"`
	Notifier  NotifierConfig  `json:"notifier,omitempty"`
	Logging   LoggingConfig   `json:"logging,omitempty"`
	Storage   *StorageConfig  `json:"storage,omitempty"`
}

type TelegramConfig struct {
	Token string `json:"token"`
	// ChatID is the destination chat for announcements.
	ChatID   int64 `json:"chat_id"`
	ThreadID int   `json:"thread_id,omitempty"`
}

// FeedConfig controls the announcement feed and the poll cadence.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
type FeedConfig struct {
	URL     string `json:"url"`
	Timeout string `json:"timeout,omitempty"` // per-request; default "15s"
	// PollInterval is the time between reconciliation passes. Default "60s".
	PollInterval string `json:"poll_interval,omitempty"`
	// SingleShot fetches and schedules exactly once at startup.
	SingleShot bool `json:"single_shot,omitempty"`
}

// SchedulerConfig carries the reconciliation timing contract.
//
// Defaults (when fields are omitted): timezone UTC, max_future "48h",
// late_grace "3m", reschedule_threshold "1s".
type SchedulerConfig struct {
	// Timezone is the fixed IANA zone offsetless feed timestamps resolve in.
	Timezone            string `json:"timezone,omitempty"`
	MaxFuture           string `json:"max_future,omitempty"`
	LateGrace           string `json:"late_grace,omitempty"`
	RescheduleThreshold string `json:"reschedule_threshold,omitempty"`
}

type NotifierConfig struct {
	RatePerSec int `json:"rate_per_sec,omitempty"`
}

type LoggingConfig struct {
	Level    string          `json:"level,omitempty"`
	Console  bool            `json:"console,omitempty"`
	File     LoggingFile     `json:"file,omitempty"`
	Telegram LoggingTelegram `json:"telegram,omitempty"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
}

type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	ThreadID   int    `json:"thread_id,omitempty"`
	MinLevel   string `json:"min_level,omitempty"`
	RatePerSec int    `json:"rate_per_sec,omitempty"`
}

// StorageConfig controls the optional delivery log.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./racebot.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path,omitempty"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string
}

// Validate checks everything the process cannot start without. A missing
// token, chat id, or feed url is fatal; durations and the timezone must
// parse. Called once at startup and again before committing a hot reload.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Telegram.Token) == "" {
		return errors.New("telegram.token is required")
	}
	if c.Telegram.ChatID == 0 {
		return errors.New("telegram.chat_id is required")
	}
	if strings.TrimSpace(c.Feed.URL) == "" {
		return errors.New("feed.url is required")
	}

	if _, err := c.FeedTimeout(); err != nil {
		return err
	}
	if _, err := c.PollInterval(); err != nil {
		return err
	}
	if _, err := c.MaxFuture(); err != nil {
		return err
	}
	if _, err := c.LateGrace(); err != nil {
		return err
	}
	if _, err := c.RescheduleThreshold(); err != nil {
		return err
	}
	if _, err := c.StorageBusyTimeout(); err != nil {
		return err
	}

	if tz := strings.TrimSpace(c.Scheduler.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return fmt.Errorf("scheduler.timezone: %w", err)
		}
	}
	return nil
}

func (c *Config) FeedTimeout() (time.Duration, error) {
	return ParseDurationOrDefault("feed.timeout", c.Feed.Timeout, 15*time.Second)
}

func (c *Config) PollInterval() (time.Duration, error) {
	return ParseDurationOrDefault("feed.poll_interval", c.Feed.PollInterval, 60*time.Second)
}

func (c *Config) MaxFuture() (time.Duration, error) {
	return ParseDurationOrDefault("scheduler.max_future", c.Scheduler.MaxFuture, 48*time.Hour)
}

func (c *Config) LateGrace() (time.Duration, error) {
	return ParseDurationOrDefault("scheduler.late_grace", c.Scheduler.LateGrace, 3*time.Minute)
}

func (c *Config) RescheduleThreshold() (time.Duration, error) {
	return ParseDurationOrDefault("scheduler.reschedule_threshold", c.Scheduler.RescheduleThreshold, time.Second)
}

func (c *Config) StorageBusyTimeout() (time.Duration, error) {
	if c.Storage == nil {
		return 0, nil
	}
	return ParseDurationField("storage.busy_timeout", c.Storage.BusyTimeout)
}
