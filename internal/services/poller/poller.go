// Package poller drives the reconcile loop: one pass immediately at
// startup, then one per interval. A failed fetch skips the cycle and never
// crashes the process; the next tick retries.
package poller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"racebot/internal/runtime/supervisor"
	"racebot/internal/services/feed"
	"racebot/internal/services/scheduler"
	logx "racebot/pkg/logx"
)

type Fetcher interface {
	Fetch(ctx context.Context) ([]feed.Announcement, error)
}

type Reconciler interface {
	Reconcile(ctx context.Context, list []feed.Announcement) scheduler.CycleStats
}

type Config struct {
	// Interval between reconciliation passes. Default 60s.
	Interval time.Duration
	// SingleShot fetches and reconciles exactly once at startup with no
	// periodic trigger. Pending timers still fire.
	SingleShot bool
}

type Service struct {
	cfg   Config
	fetch Fetcher
	sched Reconciler
	log   logx.Logger

	mu  sync.Mutex
	c   *cron.Cron
	sup *supervisor.Supervisor

	// runMu serializes reconciliation passes. cron.SkipIfStillRunning only
	// guards ticks against each other, not against the startup pass.
	runMu sync.Mutex
}

func New(cfg Config, fetch Fetcher, sched Reconciler, log logx.Logger) *Service {
	if cfg.Interval <= 0 {
		cfg.Interval = 60 * time.Second
	}
	return &Service{cfg: cfg, fetch: fetch, sched: sched, log: log}
}

func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sup != nil {
		return errors.New("poller already started")
	}

	s.sup = supervisor.New(ctx, supervisor.WithLogger(s.log.With(logx.String("comp", "poller"))))
	sup := s.sup

	// Startup pass runs right away; ticks come later.
	sup.Go0("poller.initial", func(c context.Context) {
		s.runCycle(c)
	})

	if s.cfg.SingleShot {
		s.log.Info("poller in single-shot mode, no periodic fetch")
		return nil
	}

	// Slow cycles must not pile up behind each other.
	s.c = cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	spec := fmt.Sprintf("@every %s", s.cfg.Interval.String())
	if _, err := s.c.AddFunc(spec, func() {
		s.runCycle(sup.Context())
	}); err != nil {
		return fmt.Errorf("register poll trigger: %w", err)
	}
	s.c.Start()
	s.log.Info("poller started", logx.Duration("interval", s.cfg.Interval))
	return nil
}

func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	c := s.c
	sup := s.sup
	s.c = nil
	s.sup = nil
	s.mu.Unlock()

	if c != nil {
		select {
		case <-c.Stop().Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if sup != nil {
		return sup.Stop(ctx)
	}
	return nil
}

func (s *Service) runCycle(ctx context.Context) {
	if !s.runMu.TryLock() {
		s.log.Debug("previous cycle still running, skipping")
		return
	}
	defer s.runMu.Unlock()
	if ctx.Err() != nil {
		return
	}
	list, err := s.fetch.Fetch(ctx)
	if err != nil {
		s.log.Warn("feed fetch failed, skipping cycle", logx.Err(err))
		return
	}

	st := s.sched.Reconcile(ctx, list)
	s.log.Info("reconcile cycle done",
		logx.Int("fetched", st.Fetched),
		logx.Int("scheduled", st.Scheduled),
		logx.Int("rescheduled", st.Rescheduled),
		logx.Int("sent_now", st.SentNow),
		logx.Int("dropped", st.Dropped),
		logx.Int("active", st.Active),
	)
}
