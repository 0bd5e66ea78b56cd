// Package clock supplies the current instant and converts local date-time
// strings into absolute instants using one fixed reference zone.
//
// Feed timestamps frequently omit a zone offset. Those are always resolved
// in the configured zone, never the host's local zone, so the same feed
// produces the same instants no matter where the bot runs.
package clock

import (
	"fmt"
	"strings"
	"time"
)

// Clock is the time source used by the reconciliation scheduler.
type Clock interface {
	Now() time.Time
	ParseLocal(s string) (time.Time, error)
}

// Offsetless layouts tried in order after RFC3339.
var localLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

type Zone struct {
	loc *time.Location
}

// NewZone loads the given IANA timezone. Empty means UTC.
func NewZone(tz string) (*Zone, error) {
	tz = strings.TrimSpace(tz)
	if tz == "" {
		return &Zone{loc: time.UTC}, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", tz, err)
	}
	return &Zone{loc: loc}, nil
}

func (z *Zone) Location() *time.Location { return z.loc }

func (z *Zone) Now() time.Time { return time.Now().In(z.loc) }

// ParseLocal interprets s as a date-time. An explicit offset (RFC3339) is
// honored as-is; offsetless inputs resolve in the fixed zone. Empty or
// unparseable input is an error; callers drop the item rather than
// propagating it.
func (z *Zone) ParseLocal(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty time string")
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, z.loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable time %q", s)
}
