package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openmensa/rfid-station/internal/logging"
	"github.com/openmensa/rfid-station/internal/types"
)

// ErrUserNotFound is returned by UserDirectory.LookupUserByUID when no
// registered user owns the scanned card.
var ErrUserNotFound = errors.New("user not found")

// UserDirectory is the user lookup collaborator.
type UserDirectory interface {
	// LookupUserByUID resolves a canonical card UID to a user, or
	// ErrUserNotFound.
	LookupUserByUID(ctx context.Context, uid string) (*types.User, error)
	// ValidateAccess decides whether the user may use the system. It may
	// clear an expired temporary block as a side effect.
	ValidateAccess(ctx context.Context, user *types.User) (types.AccessDecision, error)
	// RecordScan bumps the user's last-scan timestamp and scan counter.
	// Best effort: callers treat failures as log-only.
	RecordScan(ctx context.Context, userID string) error
}

// ReservationSource is the reservation lookup collaborator.
type ReservationSource interface {
	// TodayReservations returns the user's still-pending reservations for
	// the current day. May legitimately be empty.
	TodayReservations(ctx context.Context, userID string) ([]types.Reservation, error)
}

// Operator-facing messages on failed scans. The processing-error message is
// deliberately generic so internal failures never leak detail.
const (
	msgUserNotFound    = "This card is not registered in the system"
	msgProcessingError = "Failed to process card scan"

	errUserNotFound    = "User not found"
	errAccessDenied    = "Access denied"
	errProcessingError = "Processing error"
)

// Resolver turns a raw UID into a published scan outcome. It is invoked
// concurrently: every detected tap resolves on its own goroutine, and a
// manual scan may run at the same time. All shared state lives in the
// History, which does its own locking.
type Resolver struct {
	users        UserDirectory
	reservations ReservationSource
	publisher    Publisher
	history      *History
	log          *logging.Logger

	cafeteria CafeteriaInfo
	timeout   time.Duration

	now func() time.Time
}

// NewResolver wires a resolver to its collaborators. timeout bounds one
// full resolution so a stuck lookup cannot pile up goroutines.
func NewResolver(users UserDirectory, reservations ReservationSource, publisher Publisher, history *History, log *logging.Logger, cafeteria CafeteriaInfo, timeout time.Duration) *Resolver {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Resolver{
		users:        users,
		reservations: reservations,
		publisher:    publisher,
		history:      history,
		log:          log,
		cafeteria:    cafeteria,
		timeout:      timeout,
		now:          time.Now,
	}
}

// CanonicalUID normalizes a raw UID to uppercase hex form.
func CanonicalUID(uid string) string {
	return strings.ToUpper(strings.TrimSpace(uid))
}

// Resolve runs the lookup → access-check → reservation-fetch → publish
// sequence for one scanned UID. It never returns an error and never
// panics outward: every outcome, including unexpected internal failures,
// becomes a published scanResult event. The caller runs it on its own
// goroutine; results are delivered only through the Publisher.
func (r *Resolver) Resolve(uid string) {
	uid = CanonicalUID(uid)
	ts := r.now().UTC()

	ev := r.history.Append(uid, ts)
	// Whatever happens below, this exact entry ends up processed.
	defer r.history.MarkProcessed(ev.ID)

	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error(logging.CatScan, "Card scan processing panic", map[string]any{
				"uid":   uid,
				"panic": fmt.Sprintf("%v", rec),
			})
			r.publishFailure(uid, errProcessingError, msgProcessingError, nil)
		}
	}()

	r.log.Info(logging.CatScan, "Processing card scan", map[string]any{"uid": uid})

	r.publisher.Broadcast(EventCardScanned, ScanDetectedPayload{
		UID:       uid,
		Timestamp: ts,
		Status:    "processing",
	})

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	user, err := r.users.LookupUserByUID(ctx, uid)
	if errors.Is(err, ErrUserNotFound) {
		r.log.Warn(logging.CatScan, "User not found for UID", map[string]any{"uid": uid})
		r.publishFailure(uid, errUserNotFound, msgUserNotFound, nil)
		return
	}
	if err != nil {
		r.scanError(uid, "user lookup", err)
		return
	}

	decision, err := r.users.ValidateAccess(ctx, user)
	if err != nil {
		r.scanError(uid, "access validation", err)
		return
	}
	if !decision.CanAccess {
		r.log.Warn(logging.CatScan, "User access denied", map[string]any{
			"uid":    uid,
			"name":   user.Name,
			"reason": decision.Reason,
		})
		snap := user.Snapshot()
		snap.Status = decision.Reason
		r.publishFailure(uid, errAccessDenied, decision.Message, &snap)
		return
	}

	reservations, err := r.reservations.TodayReservations(ctx, user.ID)
	if err != nil {
		r.scanError(uid, "reservation fetch", err)
		return
	}
	if reservations == nil {
		reservations = []types.Reservation{}
	}

	r.publisher.Broadcast(EventScanResult, ScanSuccessPayload{
		UID:          uid,
		Success:      true,
		User:         user.Snapshot(),
		Reservations: reservations,
		Cafeteria:    r.cafeteria,
		Timestamp:    r.now().UTC(),
	})

	// Best effort: the success event is already out, a failed counter
	// update must not roll it back.
	if err := r.users.RecordScan(ctx, user.ID); err != nil {
		r.log.Warn(logging.CatScan, "Failed to record scan", map[string]any{
			"uid":   uid,
			"error": err.Error(),
		})
	}

	r.log.Info(logging.CatScan, "Card scan processed", map[string]any{
		"uid":          uid,
		"user":         user.Name,
		"reservations": len(reservations),
	})
}

func (r *Resolver) scanError(uid, stage string, err error) {
	r.log.Error(logging.CatScan, "Card scan processing error", map[string]any{
		"uid":   uid,
		"stage": stage,
		"error": err.Error(),
	})
	r.publishFailure(uid, errProcessingError, msgProcessingError, nil)
}

func (r *Resolver) publishFailure(uid, errMsg, message string, user *types.UserSnapshot) {
	r.publisher.Broadcast(EventScanResult, ScanFailurePayload{
		UID:       uid,
		Success:   false,
		Error:     errMsg,
		Message:   message,
		User:      user,
		Timestamp: r.now().UTC(),
	})
}
