package scheduler

import (
	"sort"
	"time"
)

// ReservationInfo is a read-only view of one pending reservation.
type ReservationInfo struct {
	Key    string    `json:"key"`
	Target time.Time `json:"target"`
}

// Snapshot returns the pending reservations ordered by target time.
// Observability only; the slice is a copy.
func (s *Service) Snapshot() []ReservationInfo {
	s.mu.Lock()
	items := make([]ReservationInfo, 0, len(s.table))
	for _, r := range s.table {
		items = append(items, ReservationInfo{Key: r.key, Target: r.target})
	}
	s.mu.Unlock()

	sort.Slice(items, func(i, j int) bool {
		if items[i].Target.Equal(items[j].Target) {
			return items[i].Key < items[j].Key
		}
		return items[i].Target.Before(items[j].Target)
	})
	return items
}
