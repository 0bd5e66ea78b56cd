package scheduler

import (
	"context"
	"time"
)

// Defaults for the timing contract. These are observable behavior, not
// incidental tuning.
const (
	DefaultMaxFuture           = 48 * time.Hour
	DefaultLateGrace           = 3 * time.Minute
	DefaultRescheduleThreshold = time.Second
)

type Config struct {
	// MaxFuture is the look-ahead horizon. Announcements further out are
	// not reserved yet; they are re-evaluated on a later poll.
	MaxFuture time.Duration
	// LateGrace is the tolerance after a target time during which a late
	// announcement is still delivered immediately rather than dropped.
	LateGrace time.Duration
	// RescheduleThreshold is the minimum target-time change treated as a
	// real reschedule rather than feed noise.
	RescheduleThreshold time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxFuture <= 0 {
		c.MaxFuture = DefaultMaxFuture
	}
	if c.LateGrace <= 0 {
		c.LateGrace = DefaultLateGrace
	}
	if c.RescheduleThreshold <= 0 {
		c.RescheduleThreshold = DefaultRescheduleThreshold
	}
	return c
}

// Sink delivers one message to the destination chat. Implemented by the
// notify service; stubbed in tests. Key and target travel with the text so
// the delivery log can attribute each attempt to its announcement.
type Sink interface {
	Send(ctx context.Context, key string, target time.Time, text string) error
}

// CycleStats are per-reconciliation counters, logged by the poll driver.
type CycleStats struct {
	Fetched     int
	Scheduled   int
	Rescheduled int
	SentNow     int
	Unchanged   int
	Dropped     int
	// Active is the reservation table size after the pass.
	Active int
}

// reservation is one pending timed delivery. The timer is the cancellable
// handle; only the scheduler ever stops it.
type reservation struct {
	key     string
	target  time.Time
	message string
	timer   *time.Timer
}
