package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/openmensa/rfid-station/internal/store"
	"github.com/openmensa/rfid-station/internal/types"
)

func TestUserRoundTrip(t *testing.T) {
	st := NewStore()
	ctx := context.Background()
	u := types.User{ID: "user-1", UID: "04A1B2C3", Name: "Emma Fischer", IsActive: true}
	if err := st.CreateUser(ctx, &u); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	byID, err := st.GetUserByID(ctx, "user-1")
	if err != nil {
		t.Fatalf("GetUserByID failed: %v", err)
	}
	if byID.Name != "Emma Fischer" {
		t.Errorf("unexpected name %q", byID.Name)
	}

	byUID, err := st.GetUserByUID(ctx, "04A1B2C3")
	if err != nil {
		t.Fatalf("GetUserByUID failed: %v", err)
	}
	if byUID.ID != "user-1" {
		t.Errorf("unexpected id %q", byUID.ID)
	}
}

func TestGetUserNotFound(t *testing.T) {
	st := NewStore()
	if _, err := st.GetUserByID(context.Background(), "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("GetUserByID: expected ErrNotFound, got %v", err)
	}
	if _, err := st.GetUserByUID(context.Background(), "DEADBEEF"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("GetUserByUID: expected ErrNotFound, got %v", err)
	}
}

func TestUpdateUserReindexesUID(t *testing.T) {
	st := NewStore()
	ctx := context.Background()
	u := types.User{ID: "user-1", UID: "04A1B2C3", Name: "Emma", IsActive: true}
	if err := st.CreateUser(ctx, &u); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	u.UID = "04FFEEDD"
	if err := st.UpdateUser(ctx, &u); err != nil {
		t.Fatalf("UpdateUser failed: %v", err)
	}

	if _, err := st.GetUserByUID(ctx, "04A1B2C3"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("old UID still resolves, err %v", err)
	}
	got, err := st.GetUserByUID(ctx, "04FFEEDD")
	if err != nil {
		t.Fatalf("new UID lookup failed: %v", err)
	}
	if got.ID != "user-1" {
		t.Errorf("unexpected id %q", got.ID)
	}
}

func TestUpdateUserNotFound(t *testing.T) {
	st := NewStore()
	err := st.UpdateUser(context.Background(), &types.User{ID: "missing"})
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStoredValuesAreCopies(t *testing.T) {
	st := NewStore()
	ctx := context.Background()
	u := types.User{ID: "user-1", UID: "04A1B2C3", Name: "Emma"}
	if err := st.CreateUser(ctx, &u); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	got, _ := st.GetUserByID(ctx, "user-1")
	got.Name = "changed"

	again, _ := st.GetUserByID(ctx, "user-1")
	if again.Name != "Emma" {
		t.Error("mutating a returned user leaked into the store")
	}
}

func TestRecordScan(t *testing.T) {
	st := NewStore()
	ctx := context.Background()
	if err := st.CreateUser(ctx, &types.User{ID: "user-1", UID: "04A1B2C3"}); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	at := time.Date(2026, 3, 10, 12, 30, 0, 0, time.UTC)
	if err := st.RecordScan(ctx, "user-1", at); err != nil {
		t.Fatalf("RecordScan failed: %v", err)
	}
	if err := st.RecordScan(ctx, "user-1", at.Add(time.Minute)); err != nil {
		t.Fatalf("RecordScan failed: %v", err)
	}

	u, _ := st.GetUserByID(ctx, "user-1")
	if u.ScanCount != 2 {
		t.Errorf("expected scan count 2, got %d", u.ScanCount)
	}
	if u.LastScanAt == nil || !u.LastScanAt.Equal(at.Add(time.Minute)) {
		t.Errorf("unexpected last scan %v", u.LastScanAt)
	}

	if err := st.RecordScan(ctx, "missing", at); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestReservationsForDay(t *testing.T) {
	st := NewStore()
	ctx := context.Background()
	day := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	seed := []types.Reservation{
		{ID: "r-1", StudentID: "user-1", Date: day, Status: types.ReservationConfirmed, CreatedAt: day.Add(time.Hour)},
		{ID: "r-2", StudentID: "user-1", Date: day, Status: types.ReservationPending, CreatedAt: day.Add(2 * time.Hour)},
		{ID: "r-3", StudentID: "user-1", Date: day, Status: types.ReservationServed, CreatedAt: day},
		{ID: "r-4", StudentID: "user-1", Date: day.Add(-24 * time.Hour), Status: types.ReservationConfirmed, CreatedAt: day},
		{ID: "r-5", StudentID: "user-2", Date: day, Status: types.ReservationConfirmed, CreatedAt: day},
	}
	for i := range seed {
		if err := st.CreateReservation(ctx, &seed[i]); err != nil {
			t.Fatalf("CreateReservation failed: %v", err)
		}
	}

	statuses := []string{types.ReservationPending, types.ReservationConfirmed, types.ReservationPrepared}
	rs, err := st.ReservationsForDay(ctx, "user-1", day.Add(5*time.Hour), statuses)
	if err != nil {
		t.Fatalf("ReservationsForDay failed: %v", err)
	}
	if len(rs) != 2 {
		t.Fatalf("expected 2 reservations, got %d", len(rs))
	}
	// Newest first.
	if rs[0].ID != "r-2" || rs[1].ID != "r-1" {
		t.Errorf("unexpected order %q, %q", rs[0].ID, rs[1].ID)
	}
}

func TestUpdateReservation(t *testing.T) {
	st := NewStore()
	ctx := context.Background()
	r := types.Reservation{ID: "r-1", StudentID: "user-1", Status: types.ReservationPending}
	if err := st.CreateReservation(ctx, &r); err != nil {
		t.Fatalf("CreateReservation failed: %v", err)
	}

	r.Status = types.ReservationServed
	if err := st.UpdateReservation(ctx, &r); err != nil {
		t.Fatalf("UpdateReservation failed: %v", err)
	}

	got, _ := st.GetReservation(ctx, "r-1")
	if got.Status != types.ReservationServed {
		t.Errorf("unexpected status %q", got.Status)
	}

	missing := types.Reservation{ID: "missing"}
	if err := st.UpdateReservation(ctx, &missing); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSeedDemo(t *testing.T) {
	st := NewStore()
	ctx := context.Background()
	now := time.Now().UTC()
	if err := st.SeedDemo(ctx, now); err != nil {
		t.Fatalf("SeedDemo failed: %v", err)
	}

	emma, err := st.GetUserByUID(ctx, "04A1B2C3")
	if err != nil {
		t.Fatalf("seeded user missing: %v", err)
	}
	if !emma.IsActive {
		t.Error("expected seeded student to be active")
	}

	statuses := []string{types.ReservationPending, types.ReservationConfirmed, types.ReservationPrepared}
	rs, err := st.ReservationsForDay(ctx, emma.ID, now, statuses)
	if err != nil {
		t.Fatalf("ReservationsForDay failed: %v", err)
	}
	if len(rs) != 2 {
		t.Errorf("expected 2 redeemable reservations for the demo student, got %d", len(rs))
	}
}
