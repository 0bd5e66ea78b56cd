// Package storage persists the delivery log.
//
// This is operational history only: which messages were attempted and how
// they went. Reservation state is deliberately never stored; the table is
// rebuilt from the next feed fetch after a restart.
package storage
