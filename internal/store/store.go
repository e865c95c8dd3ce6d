// Package store defines the persistence interfaces for users, reservations
// and purchases. Two implementations exist: an in-memory store for demo and
// test setups, and a SQLite store for real stations.
package store

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// DayKey normalizes a timestamp to the calendar-day key reservations are
// filed under, in the station's local time.
func DayKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// Store bundles the per-entity stores behind one handle.
type Store interface {
	UserStore
	ReservationStore
	PurchaseStore

	Close() error
}
