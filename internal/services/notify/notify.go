// Package notify is racebot's delivery sink: every message goes to one
// pre-configured Telegram chat, rate-limited, with the outcome recorded in
// the delivery log. Failures are reported upward and never retried here; a
// missed announcement only gets another chance if a later feed poll still
// reports it inside the late-grace window.
package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"racebot/internal/storage"
	kit "racebot/internal/transport"
	logx "racebot/pkg/logx"
)

var ErrNoDestination = errors.New("destination chat is not configured")

type Config struct {
	ChatID     int64
	ThreadID   int
	RatePerSec int
}

type HistoryItem struct {
	At     time.Time
	Key    string
	Target time.Time
	OK     bool
	Error  string
	Text   string
}

const historyMax = 300

type Service struct {
	adapter kit.Adapter
	store   storage.Store // nil when storage is disabled
	log     logx.Logger

	mu      sync.Mutex
	cfg     Config
	limiter *rate.Limiter
	history []HistoryItem
}

func New(cfg Config, adapter kit.Adapter, store storage.Store, log logx.Logger) *Service {
	s := &Service{adapter: adapter, store: store, log: log}
	s.applyLocked(cfg)
	return s
}

func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	s.applyLocked(cfg)
	s.mu.Unlock()
}

func (s *Service) applyLocked(cfg Config) {
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 3
	}
	s.cfg = cfg
	// Token bucket: burst = rate per sec, so short spikes don't block too hard.
	s.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec)
}

// Send delivers text to the configured chat. One attempt, no retry. key and
// target identify the announcement for the delivery log; they do not affect
// what is sent.
func (s *Service) Send(ctx context.Context, key string, target time.Time, text string) error {
	s.mu.Lock()
	cfg := s.cfg
	lim := s.limiter
	s.mu.Unlock()

	if cfg.ChatID == 0 {
		return ErrNoDestination
	}

	if err := lim.Wait(ctx); err != nil {
		return err
	}

	to := kit.ChatTarget{ChatID: cfg.ChatID, ThreadID: cfg.ThreadID}
	_, err := s.adapter.SendText(ctx, to, text, &kit.SendOptions{DisablePreview: true})
	if err != nil {
		s.log.Warn("delivery send failed", logx.String("key", key), logx.Int64("chat_id", cfg.ChatID), logx.Int("thread_id", cfg.ThreadID), logx.Err(err))
	} else {
		s.log.Debug("delivery sent", logx.String("key", key), logx.Int64("chat_id", cfg.ChatID), logx.Int("thread_id", cfg.ThreadID))
	}

	s.record(ctx, key, target, text, err)
	return err
}

func (s *Service) record(ctx context.Context, key string, target time.Time, text string, sendErr error) {
	item := HistoryItem{At: time.Now(), Key: key, Target: target, OK: sendErr == nil, Text: text}
	if sendErr != nil {
		item.Error = sendErr.Error()
	}

	s.mu.Lock()
	s.history = append(s.history, item)
	if len(s.history) > historyMax {
		s.history = s.history[len(s.history)-historyMax:]
	}
	s.mu.Unlock()

	if s.store == nil {
		return
	}
	rec := storage.DeliveryRecord{At: item.At, Key: key, TargetAt: target, OK: item.OK, Error: item.Error, Message: text}
	if err := s.store.AppendDelivery(ctx, rec); err != nil {
		s.log.Warn("delivery log append failed", logx.Err(err))
	}
}

// History returns a copy of the recent in-memory delivery history.
func (s *Service) History() []HistoryItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]HistoryItem, len(s.history))
	copy(out, s.history)
	return out
}
