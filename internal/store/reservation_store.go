package store

import (
	"context"
	"time"

	"github.com/openmensa/rfid-station/internal/types"
)

// ReservationStore persists pre-ordered meals.
type ReservationStore interface {
	// CreateReservation inserts a new reservation. The caller assigns the ID.
	CreateReservation(ctx context.Context, r *types.Reservation) error

	// GetReservation returns the reservation with the given ID, or
	// ErrNotFound.
	GetReservation(ctx context.Context, id string) (*types.Reservation, error)

	// UpdateReservation overwrites the stored reservation. ErrNotFound
	// when no such reservation exists.
	UpdateReservation(ctx context.Context, r *types.Reservation) error

	// ReservationsForDay returns the student's reservations filed under
	// DayKey(day), restricted to the given statuses (all statuses when
	// empty), newest first.
	ReservationsForDay(ctx context.Context, studentID string, day time.Time, statuses []string) ([]types.Reservation, error)
}
