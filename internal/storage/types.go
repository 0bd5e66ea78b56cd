package storage

import (
	"context"
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures the optional delivery log.
//
// Driver values:
//   - "sqlite": SQLite database file
//   - "" or "none": disabled
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite; 0 means default
}

// DeliveryRecord is one delivery attempt. Keep it compact and schema-stable.
type DeliveryRecord struct {
	At time.Time
	// Key is the announcement the attempt was for; TargetAt its scheduled
	// delivery instant (zero for ad-hoc sends).
	Key      string
	TargetAt time.Time
	OK       bool
	Error    string
	Message  string
}

type Store interface {
	AppendDelivery(ctx context.Context, rec DeliveryRecord) error
	RecentDeliveries(ctx context.Context, limit int) ([]DeliveryRecord, error)
	Close() error
}
