package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/openmensa/rfid-station/internal/core"
	"github.com/openmensa/rfid-station/internal/logging"
	"github.com/openmensa/rfid-station/internal/store"
	"github.com/openmensa/rfid-station/internal/types"
)

var (
	// ErrReservationNotFound is returned when the reservation does not exist.
	ErrReservationNotFound = errors.New("reservation not found")
	// ErrAlreadyServed rejects confirming a reservation twice.
	ErrAlreadyServed = errors.New("reservation has already been served")
	// ErrCancelled rejects confirming a cancelled reservation.
	ErrCancelled = errors.New("cannot confirm a cancelled reservation")
)

// redeemableStatuses are the states shown at the counter; served and
// cancelled reservations never are.
var redeemableStatuses = []string{
	types.ReservationPending,
	types.ReservationConfirmed,
	types.ReservationPrepared,
}

// ReservationService serves today's reservations to the scan pipeline and
// fulfills them when the counter confirms a handout.
type ReservationService struct {
	users        store.UserStore
	reservations store.ReservationStore
	purchases    store.PurchaseStore
	station      string
	log          *logging.Logger
	now          func() time.Time
}

var _ core.ReservationSource = (*ReservationService)(nil)

func NewReservationService(st store.Store, station string, log *logging.Logger) *ReservationService {
	return &ReservationService{
		users:        st,
		reservations: st,
		purchases:    st,
		station:      station,
		log:          log,
		now:          time.Now,
	}
}

// TodayReservations returns the user's still-redeemable reservations for
// the current day, newest first.
func (s *ReservationService) TodayReservations(ctx context.Context, userID string) ([]types.Reservation, error) {
	rs, err := s.reservations.ReservationsForDay(ctx, userID, s.now().UTC(), redeemableStatuses)
	if err != nil {
		return nil, fmt.Errorf("today reservations: %w", err)
	}
	return rs, nil
}

// ConfirmResult reports a fulfilled reservation and the purchase charged
// for it.
type ConfirmResult struct {
	Reservation types.Reservation `json:"reservation"`
	Purchase    types.Purchase    `json:"purchase"`
	Message     string            `json:"message"`
}

// Confirm marks the reservation served by this station and records a
// monthly-billing purchase for the handed-out meal.
func (s *ReservationService) Confirm(ctx context.Context, reservationID string) (*ConfirmResult, error) {
	r, err := s.reservations.GetReservation(ctx, reservationID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrReservationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load reservation: %w", err)
	}

	switch r.Status {
	case types.ReservationServed:
		return nil, ErrAlreadyServed
	case types.ReservationCancelled:
		return nil, ErrCancelled
	}

	now := s.now().UTC()
	r.Status = types.ReservationServed
	r.ServedAt = &now
	r.ServedByStation = s.station
	if err := s.reservations.UpdateReservation(ctx, r); err != nil {
		return nil, fmt.Errorf("mark reservation served: %w", err)
	}

	student, err := s.users.GetUserByID(ctx, r.StudentID)
	if err != nil {
		return nil, fmt.Errorf("load student for purchase: %w", err)
	}

	category := student.Category
	if category == "" {
		category = types.CategoryStudent
	}
	unit := r.UnitPrice()
	total := unit * float64(r.Quantity)

	purchase := types.Purchase{
		ID:           uuid.NewString(),
		UserID:       student.ID,
		UID:          student.UID,
		UserName:     student.Name,
		UserCategory: category,
		Items: []types.PurchaseItem{{
			FoodID:   r.FoodID,
			Name:     r.FoodName,
			Price:    unit,
			Quantity: r.Quantity,
			Subtotal: total,
		}},
		TotalAmount:   total,
		Station:       s.station,
		ProcessedBy:   "rfid_reservation_system",
		Notes:         fmt.Sprintf("Reservation fulfilled: %s meal on %s", r.MealType, store.DayKey(now)),
		PaymentMethod: types.PaymentMonthlyBilling,
		PaymentStatus: types.PaymentPending,
		CreatedAt:     now,
	}
	if err := s.purchases.CreatePurchase(ctx, &purchase); err != nil {
		return nil, fmt.Errorf("reservation served but purchase record failed: %w", err)
	}

	s.log.Info(logging.CatScan, "Reservation confirmed", map[string]any{
		"reservationId": r.ID,
		"purchaseId":    purchase.ID,
		"student":       student.Name,
		"amount":        total,
	})

	return &ConfirmResult{
		Reservation: *r,
		Purchase:    purchase,
		Message:     fmt.Sprintf("Reservation served and $%.2f purchase recorded for payment", total),
	}, nil
}
