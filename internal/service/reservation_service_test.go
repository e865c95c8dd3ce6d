package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/openmensa/rfid-station/internal/store/memory"
	"github.com/openmensa/rfid-station/internal/types"
)

func seedReservation(t *testing.T, st *memory.Store, r types.Reservation) types.Reservation {
	t.Helper()
	if err := st.CreateReservation(context.Background(), &r); err != nil {
		t.Fatalf("seed reservation: %v", err)
	}
	return r
}

func TestTodayReservationsFiltersDayAndStatus(t *testing.T) {
	st := memory.NewStore()
	now := time.Now().UTC()
	seedReservation(t, st, types.Reservation{
		ID: "r-today", StudentID: "user-1", FoodName: "Pasta",
		Date: now, Status: types.ReservationConfirmed, CreatedAt: now,
	})
	seedReservation(t, st, types.Reservation{
		ID: "r-served", StudentID: "user-1", FoodName: "Soup",
		Date: now, Status: types.ReservationServed, CreatedAt: now,
	})
	seedReservation(t, st, types.Reservation{
		ID: "r-yesterday", StudentID: "user-1", FoodName: "Salad",
		Date: now.Add(-24 * time.Hour), Status: types.ReservationConfirmed, CreatedAt: now,
	})
	seedReservation(t, st, types.Reservation{
		ID: "r-other-user", StudentID: "user-2", FoodName: "Curry",
		Date: now, Status: types.ReservationPending, CreatedAt: now,
	})
	svc := NewReservationService(st, "STATION_T1", testLogger())

	rs, err := svc.TodayReservations(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("TodayReservations failed: %v", err)
	}
	if len(rs) != 1 {
		t.Fatalf("expected 1 reservation, got %d", len(rs))
	}
	if rs[0].ID != "r-today" {
		t.Errorf("unexpected reservation %q", rs[0].ID)
	}
}

func TestConfirmReservation(t *testing.T) {
	st := memory.NewStore()
	student := seedUser(t, st, types.User{
		UID: "04A1B2C3", Name: "Emma Fischer", Category: types.CategoryStudent, IsActive: true,
	})
	now := time.Now().UTC()
	seedReservation(t, st, types.Reservation{
		ID: "r-1", StudentID: student.ID, FoodID: "food-1", FoodName: "Pasta",
		Date: now, Quantity: 2, MealType: types.MealLunch,
		Status: types.ReservationConfirmed, EstimatedCost: 4.50, CreatedAt: now,
	})
	svc := NewReservationService(st, "STATION_T1", testLogger())

	res, err := svc.Confirm(context.Background(), "r-1")
	if err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}

	if res.Reservation.Status != types.ReservationServed {
		t.Errorf("expected served status, got %q", res.Reservation.Status)
	}
	if res.Reservation.ServedAt == nil {
		t.Error("expected served timestamp")
	}
	if res.Reservation.ServedByStation != "STATION_T1" {
		t.Errorf("unexpected station %q", res.Reservation.ServedByStation)
	}

	p := res.Purchase
	if p.UserID != student.ID || p.UID != "04A1B2C3" {
		t.Errorf("purchase not attributed to student: %+v", p)
	}
	if p.TotalAmount != 9.00 {
		t.Errorf("expected total 9.00, got %.2f", p.TotalAmount)
	}
	if p.PaymentMethod != types.PaymentMonthlyBilling || p.PaymentStatus != types.PaymentPending {
		t.Errorf("unexpected payment %s/%s", p.PaymentMethod, p.PaymentStatus)
	}
	if p.ProcessedBy != "rfid_reservation_system" {
		t.Errorf("unexpected processedBy %q", p.ProcessedBy)
	}
	if len(p.Items) != 1 || p.Items[0].Subtotal != 9.00 {
		t.Errorf("unexpected items %+v", p.Items)
	}

	stored, err := st.GetReservation(context.Background(), "r-1")
	if err != nil {
		t.Fatalf("reload reservation: %v", err)
	}
	if stored.Status != types.ReservationServed {
		t.Error("served status was not persisted")
	}
	if got := len(st.Purchases()); got != 1 {
		t.Errorf("expected 1 stored purchase, got %d", got)
	}
}

func TestConfirmUsesActualCost(t *testing.T) {
	st := memory.NewStore()
	student := seedUser(t, st, types.User{UID: "04D4E5F6", Name: "Jonas", IsActive: true})
	actual := 3.75
	now := time.Now().UTC()
	seedReservation(t, st, types.Reservation{
		ID: "r-2", StudentID: student.ID, FoodName: "Soup", Date: now,
		Quantity: 1, Status: types.ReservationPrepared,
		EstimatedCost: 4.00, ActualCost: &actual, CreatedAt: now,
	})
	svc := NewReservationService(st, "STATION_T1", testLogger())

	res, err := svc.Confirm(context.Background(), "r-2")
	if err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}
	if res.Purchase.TotalAmount != 3.75 {
		t.Errorf("expected actual cost 3.75, got %.2f", res.Purchase.TotalAmount)
	}
}

func TestConfirmNotFound(t *testing.T) {
	svc := NewReservationService(memory.NewStore(), "STATION_T1", testLogger())

	_, err := svc.Confirm(context.Background(), "missing")
	if !errors.Is(err, ErrReservationNotFound) {
		t.Errorf("expected ErrReservationNotFound, got %v", err)
	}
}

func TestConfirmAlreadyServed(t *testing.T) {
	st := memory.NewStore()
	now := time.Now().UTC()
	seedReservation(t, st, types.Reservation{
		ID: "r-3", StudentID: "user-1", Date: now,
		Status: types.ReservationServed, CreatedAt: now,
	})
	svc := NewReservationService(st, "STATION_T1", testLogger())

	_, err := svc.Confirm(context.Background(), "r-3")
	if !errors.Is(err, ErrAlreadyServed) {
		t.Errorf("expected ErrAlreadyServed, got %v", err)
	}
}

func TestConfirmCancelled(t *testing.T) {
	st := memory.NewStore()
	now := time.Now().UTC()
	seedReservation(t, st, types.Reservation{
		ID: "r-4", StudentID: "user-1", Date: now,
		Status: types.ReservationCancelled, CreatedAt: now,
	})
	svc := NewReservationService(st, "STATION_T1", testLogger())

	_, err := svc.Confirm(context.Background(), "r-4")
	if !errors.Is(err, ErrCancelled) {
		t.Errorf("expected ErrCancelled, got %v", err)
	}
}
