package store

import (
	"context"
	"time"

	"github.com/openmensa/rfid-station/internal/types"
)

// UserStore persists registered card holders.
type UserStore interface {
	// CreateUser inserts a new user. The caller assigns the ID.
	CreateUser(ctx context.Context, u *types.User) error

	// GetUserByID returns the user with the given ID, or ErrNotFound.
	GetUserByID(ctx context.Context, id string) (*types.User, error)

	// GetUserByUID returns the user owning the given canonical card UID,
	// or ErrNotFound.
	GetUserByUID(ctx context.Context, uid string) (*types.User, error)

	// UpdateUser overwrites the stored user record. ErrNotFound when no
	// such user exists.
	UpdateUser(ctx context.Context, u *types.User) error

	// RecordScan sets the user's last-scan timestamp and increments the
	// scan counter.
	RecordScan(ctx context.Context, id string, at time.Time) error
}
