// Package service implements the domain services the scan pipeline and the
// API surface call into: user lookup and access validation, and reservation
// fulfillment.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/openmensa/rfid-station/internal/core"
	"github.com/openmensa/rfid-station/internal/logging"
	"github.com/openmensa/rfid-station/internal/store"
	"github.com/openmensa/rfid-station/internal/types"
)

// UserService resolves card holders and decides whether they may be served.
// It implements the scan pipeline's user directory.
type UserService struct {
	store store.UserStore
	log   *logging.Logger
	now   func() time.Time
}

var _ core.UserDirectory = (*UserService)(nil)

func NewUserService(st store.UserStore, log *logging.Logger) *UserService {
	return &UserService{store: st, log: log, now: time.Now}
}

func (s *UserService) LookupUserByUID(ctx context.Context, uid string) (*types.User, error) {
	u, err := s.store.GetUserByUID(ctx, uid)
	if errors.Is(err, store.ErrNotFound) {
		return nil, core.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lookup user by uid: %w", err)
	}
	return u, nil
}

// ValidateAccess decides whether the user may use the station. An expired
// temporary block is cleared here as a side effect, so a student whose block
// ran out overnight is admitted on the first tap of the day.
func (s *UserService) ValidateAccess(ctx context.Context, user *types.User) (types.AccessDecision, error) {
	if !user.IsActive {
		return types.AccessDecision{
			CanAccess: false,
			Reason:    "Account is inactive",
			Message:   "This account has been deactivated. Please contact administration.",
		}, nil
	}

	if user.IsBlocked {
		if exp := user.Block.ExpiresAt; exp != nil && s.now().UTC().After(*exp) {
			user.IsBlocked = false
			user.Block = types.BlockInfo{}
			user.UpdatedAt = s.now().UTC()
			if err := s.store.UpdateUser(ctx, user); err != nil {
				return types.AccessDecision{}, fmt.Errorf("clear expired block: %w", err)
			}
			s.log.Info(logging.CatScan, "Cleared expired block", map[string]any{
				"userId": user.ID,
				"uid":    user.UID,
			})
			return types.AccessDecision{CanAccess: true}, nil
		}

		msg := user.Block.Reason
		if msg == "" {
			msg = "This account has been temporarily blocked."
		}
		return types.AccessDecision{
			CanAccess: false,
			Reason:    "Account is blocked",
			Message:   msg,
		}, nil
	}

	return types.AccessDecision{CanAccess: true}, nil
}

func (s *UserService) RecordScan(ctx context.Context, userID string) error {
	return s.store.RecordScan(ctx, userID, s.now().UTC())
}
