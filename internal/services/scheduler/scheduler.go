package scheduler

import (
	"context"
	"strings"
	"sync"
	"time"

	"racebot/internal/clock"
	"racebot/internal/services/feed"
	logx "racebot/pkg/logx"
)

// Service owns the reservation table. All mutations go through Reconcile,
// fire and Stop; nothing else reads or writes it.
type Service struct {
	cfg   Config
	clock clock.Clock
	sink  Sink
	log   logx.Logger

	mu      sync.Mutex
	table   map[string]*reservation
	stopped bool
}

func New(cfg Config, clk clock.Clock, sink Sink, log logx.Logger) *Service {
	return &Service{
		cfg:   cfg.withDefaults(),
		clock: clk,
		sink:  sink,
		log:   log,
		table: map[string]*reservation{},
	}
}

// Apply replaces the timing tunables. Existing reservations keep the
// targets they were armed with; new decisions use the new values.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	s.cfg = cfg.withDefaults()
	s.mu.Unlock()
}

func (s *Service) config() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// Reconcile updates the reservation table so it reflects list. Each
// announcement is judged independently; a malformed item never affects its
// siblings. Safe to call repeatedly with an unchanged feed: the second pass
// is a pure no-op.
func (s *Service) Reconcile(ctx context.Context, list []feed.Announcement) CycleStats {
	now := s.clock.Now()
	st := CycleStats{Fetched: len(list)}
	for _, a := range list {
		s.reconcileOne(ctx, a, now, &st)
	}

	s.mu.Lock()
	st.Active = len(s.table)
	s.mu.Unlock()
	return st
}

func (s *Service) reconcileOne(ctx context.Context, a feed.Announcement, now time.Time, st *CycleStats) {
	cfg := s.config()

	key := strings.TrimSpace(a.Key)
	msg := strings.TrimSpace(a.Message)
	if key == "" || strings.TrimSpace(a.NotifyAt) == "" || msg == "" {
		st.Dropped++
		s.log.Debug("dropping malformed announcement", logx.String("key", a.Key))
		return
	}

	target, err := s.clock.ParseLocal(a.NotifyAt)
	if err != nil {
		st.Dropped++
		s.log.Debug("dropping announcement with bad timestamp", logx.String("key", key), logx.String("notify_at", a.NotifyAt), logx.Err(err))
		return
	}

	diff := target.Sub(now)

	if diff > cfg.MaxFuture {
		st.Dropped++
		s.log.Trace("announcement beyond horizon", logx.String("key", key), logx.Duration("in", diff))
		return
	}

	if diff <= 0 {
		if -diff <= cfg.LateGrace {
			// Late but salvageable. Cancel any pending reservation first so
			// its timer cannot race this immediate send.
			s.mu.Lock()
			if s.stopped {
				s.mu.Unlock()
				return
			}
			if cur, ok := s.table[key]; ok {
				cur.timer.Stop()
				delete(s.table, key)
			}
			s.mu.Unlock()
			st.SentNow++
			if err := s.sink.Send(ctx, key, target, msg); err != nil {
				s.log.Warn("immediate delivery failed", logx.String("key", key), logx.Err(err))
				return
			}
			s.log.Info("announcement delivered late", logx.String("key", key), logx.Duration("late_by", -diff))
			return
		}
		st.Dropped++
		return
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}

	rescheduled := false
	if cur, ok := s.table[key]; ok {
		if absDuration(cur.target.Sub(target)) < cfg.RescheduleThreshold {
			// Feed reports the same time again.
			s.mu.Unlock()
			st.Unchanged++
			return
		}
		// Stopping an already-fired timer is a no-op; the fire path
		// re-checks table identity before delivering.
		cur.timer.Stop()
		rescheduled = true
	}

	r := &reservation{key: key, target: target, message: msg}
	s.table[key] = r
	r.timer = time.AfterFunc(diff, func() { s.fire(r) })
	s.mu.Unlock()

	if rescheduled {
		st.Rescheduled++
		s.log.Info("announcement rescheduled", logx.String("key", key), logx.Time("at", target), logx.Duration("in", diff))
	} else {
		st.Scheduled++
		s.log.Info("announcement scheduled", logx.String("key", key), logx.Time("at", target), logx.Duration("in", diff))
	}
}

// fire runs when a reservation's timer elapses.
func (s *Service) fire(r *reservation) {
	s.mu.Lock()
	cur, ok := s.table[r.key]
	if !ok || cur != r {
		// Cancelled or replaced while the timer was already firing.
		s.mu.Unlock()
		return
	}
	// Clear the slot before delivering: the attempt happens at most once,
	// success or not, and a concurrent reconcile sees the key as absent.
	delete(s.table, r.key)
	s.mu.Unlock()

	// An in-flight delivery runs to completion; shutdown does not cut it off.
	if err := s.sink.Send(context.Background(), r.key, r.target, r.message); err != nil {
		s.log.Warn("delivery failed", logx.String("key", r.key), logx.Time("target", r.target), logx.Err(err))
		return
	}
	s.log.Info("announcement delivered", logx.String("key", r.key), logx.Time("target", r.target))
}

// Active reports the number of pending reservations.
func (s *Service) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.table)
}

// Stop cancels all pending timers. Deliveries already in flight finish.
func (s *Service) Stop() {
	s.mu.Lock()
	s.stopped = true
	n := len(s.table)
	for key, r := range s.table {
		r.timer.Stop()
		delete(s.table, key)
	}
	s.mu.Unlock()
	if n > 0 {
		s.log.Info("scheduler stopped", logx.Int("cancelled", n))
	}
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
