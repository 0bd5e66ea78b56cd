package poller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"racebot/internal/services/feed"
	"racebot/internal/services/scheduler"
	logx "racebot/pkg/logx"
)

type fakeFetcher struct {
	mu    sync.Mutex
	calls int
	list  []feed.Announcement
	err   error
}

func (f *fakeFetcher) Fetch(context.Context) ([]feed.Announcement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.list, f.err
}

func (f *fakeFetcher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeReconciler struct {
	mu   sync.Mutex
	seen [][]feed.Announcement
}

func (r *fakeReconciler) Reconcile(_ context.Context, list []feed.Announcement) scheduler.CycleStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, list)
	return scheduler.CycleStats{Fetched: len(list)}
}

func (r *fakeReconciler) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.seen)
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition never met")
}

func TestSingleShot(t *testing.T) {
	t.Parallel()
	f := &fakeFetcher{list: []feed.Announcement{{Key: "r1", NotifyAt: "2026-09-05T14:00:00Z", Message: "x"}}}
	r := &fakeReconciler{}
	s := New(Config{SingleShot: true}, f, r, logx.Nop())

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitFor(t, 2*time.Second, func() bool { return r.count() == 1 })

	// No periodic trigger: the count stays at one.
	time.Sleep(100 * time.Millisecond)
	if f.count() != 1 || r.count() != 1 {
		t.Fatalf("single shot ran more than once: fetch=%d reconcile=%d", f.count(), r.count())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestFetchErrorSkipsCycle(t *testing.T) {
	t.Parallel()
	f := &fakeFetcher{err: errors.New("connection refused")}
	r := &fakeReconciler{}
	s := New(Config{SingleShot: true}, f, r, logx.Nop())

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitFor(t, 2*time.Second, func() bool { return f.count() == 1 })
	if r.count() != 0 {
		t.Fatal("reconcile must not run when the fetch fails")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestPeriodicCycles(t *testing.T) {
	t.Parallel()
	f := &fakeFetcher{}
	r := &fakeReconciler{}
	s := New(Config{Interval: time.Second}, f, r, logx.Nop())

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	// Startup pass plus at least one tick.
	waitFor(t, 5*time.Second, func() bool { return r.count() >= 2 })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

type slowReconciler struct {
	delay time.Duration

	mu          sync.Mutex
	inFlight    int
	maxInFlight int
	cycles      int
}

func (r *slowReconciler) Reconcile(context.Context, []feed.Announcement) scheduler.CycleStats {
	r.mu.Lock()
	r.inFlight++
	if r.inFlight > r.maxInFlight {
		r.maxInFlight = r.inFlight
	}
	r.mu.Unlock()

	time.Sleep(r.delay)

	r.mu.Lock()
	r.inFlight--
	r.cycles++
	r.mu.Unlock()
	return scheduler.CycleStats{}
}

func (r *slowReconciler) stats() (maxInFlight, cycles int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.maxInFlight, r.cycles
}

func TestNoOverlappingCycles(t *testing.T) {
	t.Parallel()
	// Startup pass outlives the first tick; passes must still run one at
	// a time.
	r := &slowReconciler{delay: 1500 * time.Millisecond}
	s := New(Config{Interval: time.Second}, &fakeFetcher{}, r, logx.Nop())

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitFor(t, 5*time.Second, func() bool {
		_, cycles := r.stats()
		return cycles >= 2
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	maxInFlight, _ := r.stats()
	if maxInFlight != 1 {
		t.Fatalf("reconciliation passes overlapped: max in flight %d", maxInFlight)
	}
}

func TestStartTwice(t *testing.T) {
	t.Parallel()
	s := New(Config{SingleShot: true}, &fakeFetcher{}, &fakeReconciler{}, logx.Nop())
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := s.Start(context.Background()); err == nil {
		t.Fatal("second Start must fail")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}
