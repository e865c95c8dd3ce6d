package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/openmensa/rfid-station/internal/store"
	"github.com/openmensa/rfid-station/internal/types"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(context.Background(), filepath.Join(t.TempDir(), "station.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestUserRoundTrip(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Millisecond)
	lastScan := now.Add(-time.Hour)
	blockedAt := now.Add(-48 * time.Hour)
	expires := now.Add(24 * time.Hour)
	u := types.User{
		ID:          "user-1",
		UID:         "04A1B2C3",
		Name:        "Emma Fischer",
		ClassOrYear: "9B",
		Category:    types.CategoryStudent,
		Email:       "emma@example.org",
		IsActive:    true,
		IsBlocked:   true,
		Block: types.BlockInfo{
			Reason:    "Unpaid balance",
			Notes:     "second reminder sent",
			BlockedAt: &blockedAt,
			BlockedBy: "admin",
			ExpiresAt: &expires,
		},
		LastScanAt: &lastScan,
		ScanCount:  12,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := st.CreateUser(ctx, &u); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	got, err := st.GetUserByUID(ctx, "04A1B2C3")
	if err != nil {
		t.Fatalf("GetUserByUID failed: %v", err)
	}
	if got.Name != u.Name || got.ClassOrYear != u.ClassOrYear || got.Email != u.Email {
		t.Errorf("user fields lost: %+v", got)
	}
	if !got.IsActive || !got.IsBlocked {
		t.Errorf("flags lost: active=%v blocked=%v", got.IsActive, got.IsBlocked)
	}
	if got.Block.Reason != "Unpaid balance" || got.Block.BlockedBy != "admin" {
		t.Errorf("block info lost: %+v", got.Block)
	}
	if got.Block.ExpiresAt == nil || !got.Block.ExpiresAt.Equal(expires) {
		t.Errorf("block expiry lost: %v", got.Block.ExpiresAt)
	}
	if got.LastScanAt == nil || !got.LastScanAt.Equal(lastScan) {
		t.Errorf("last scan lost: %v", got.LastScanAt)
	}
	if got.ScanCount != 12 {
		t.Errorf("scan count lost: %d", got.ScanCount)
	}
}

func TestGetUserNotFound(t *testing.T) {
	st := openTestStore(t)
	if _, err := st.GetUserByID(context.Background(), "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateUser(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)
	u := types.User{
		ID: "user-1", UID: "04A1B2C3", Name: "Emma",
		Category: types.CategoryStudent, IsActive: true, IsBlocked: true,
		Block: types.BlockInfo{Reason: "Suspension"}, CreatedAt: now, UpdatedAt: now,
	}
	if err := st.CreateUser(ctx, &u); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	u.IsBlocked = false
	u.Block = types.BlockInfo{}
	u.UpdatedAt = now.Add(time.Minute)
	if err := st.UpdateUser(ctx, &u); err != nil {
		t.Fatalf("UpdateUser failed: %v", err)
	}

	got, _ := st.GetUserByID(ctx, "user-1")
	if got.IsBlocked || got.Block.Reason != "" {
		t.Errorf("unblock not persisted: %+v", got)
	}

	missing := types.User{ID: "missing", UpdatedAt: now}
	if err := st.UpdateUser(ctx, &missing); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRecordScanIncrements(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)
	u := types.User{
		ID: "user-1", UID: "04A1B2C3", Name: "Emma",
		Category: types.CategoryStudent, ScanCount: 5, CreatedAt: now, UpdatedAt: now,
	}
	if err := st.CreateUser(ctx, &u); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	at := now.Add(time.Minute)
	if err := st.RecordScan(ctx, "user-1", at); err != nil {
		t.Fatalf("RecordScan failed: %v", err)
	}

	got, _ := st.GetUserByID(ctx, "user-1")
	if got.ScanCount != 6 {
		t.Errorf("expected scan count 6, got %d", got.ScanCount)
	}
	if got.LastScanAt == nil || !got.LastScanAt.Equal(at) {
		t.Errorf("unexpected last scan %v", got.LastScanAt)
	}

	if err := st.RecordScan(ctx, "missing", at); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func seedSQLiteUser(t *testing.T, st *Store, id, uid string) {
	t.Helper()
	now := time.Now().UTC()
	u := types.User{
		ID: id, UID: uid, Name: "Student " + id,
		Category: types.CategoryStudent, IsActive: true,
		CreatedAt: now, UpdatedAt: now,
	}
	if err := st.CreateUser(context.Background(), &u); err != nil {
		t.Fatalf("seed user: %v", err)
	}
}

func TestReservationsForDay(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	seedSQLiteUser(t, st, "user-1", "04A1B2C3")
	seedSQLiteUser(t, st, "user-2", "04D4E5F6")

	day := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	actual := 3.50
	seed := []types.Reservation{
		{
			ID: "r-1", StudentID: "user-1", FoodID: "food-1", FoodName: "Pasta",
			Date: day, Quantity: 1, MealType: types.MealLunch,
			Status: types.ReservationConfirmed, EstimatedCost: 4.50,
			ActualCost: &actual, Instructions: "no cheese",
			CreatedAt: day.Add(time.Hour),
		},
		{
			ID: "r-2", StudentID: "user-1", FoodID: "food-2", FoodName: "Soup",
			Date: day, Quantity: 1, MealType: types.MealLunch,
			Status: types.ReservationPending, EstimatedCost: 3.00,
			CreatedAt: day.Add(2 * time.Hour),
		},
		{
			ID: "r-3", StudentID: "user-1", FoodID: "food-1", FoodName: "Pasta",
			Date: day, Quantity: 1, MealType: types.MealLunch,
			Status: types.ReservationServed, EstimatedCost: 4.50,
			CreatedAt: day,
		},
		{
			ID: "r-4", StudentID: "user-1", FoodID: "food-1", FoodName: "Pasta",
			Date: day.Add(-24 * time.Hour), Quantity: 1, MealType: types.MealLunch,
			Status: types.ReservationConfirmed, EstimatedCost: 4.50,
			CreatedAt: day,
		},
		{
			ID: "r-5", StudentID: "user-2", FoodID: "food-1", FoodName: "Pasta",
			Date: day, Quantity: 1, MealType: types.MealLunch,
			Status: types.ReservationConfirmed, EstimatedCost: 4.50,
			CreatedAt: day,
		},
	}
	for i := range seed {
		if err := st.CreateReservation(ctx, &seed[i]); err != nil {
			t.Fatalf("CreateReservation failed: %v", err)
		}
	}

	statuses := []string{types.ReservationPending, types.ReservationConfirmed, types.ReservationPrepared}
	rs, err := st.ReservationsForDay(ctx, "user-1", day.Add(6*time.Hour), statuses)
	if err != nil {
		t.Fatalf("ReservationsForDay failed: %v", err)
	}
	if len(rs) != 2 {
		t.Fatalf("expected 2 reservations, got %d", len(rs))
	}
	if rs[0].ID != "r-2" || rs[1].ID != "r-1" {
		t.Errorf("unexpected order %q, %q", rs[0].ID, rs[1].ID)
	}
	if rs[1].ActualCost == nil || *rs[1].ActualCost != 3.50 {
		t.Errorf("actual cost lost: %v", rs[1].ActualCost)
	}
	if rs[1].Instructions != "no cheese" {
		t.Errorf("instructions lost: %q", rs[1].Instructions)
	}
}

func TestUpdateReservation(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	seedSQLiteUser(t, st, "user-1", "04A1B2C3")

	now := time.Now().UTC().Truncate(time.Millisecond)
	r := types.Reservation{
		ID: "r-1", StudentID: "user-1", FoodID: "food-1", FoodName: "Pasta",
		Date: now, Quantity: 1, MealType: types.MealLunch,
		Status: types.ReservationConfirmed, EstimatedCost: 4.50, CreatedAt: now,
	}
	if err := st.CreateReservation(ctx, &r); err != nil {
		t.Fatalf("CreateReservation failed: %v", err)
	}

	served := now.Add(time.Hour)
	r.Status = types.ReservationServed
	r.ServedAt = &served
	r.ServedByStation = "STATION_T1"
	if err := st.UpdateReservation(ctx, &r); err != nil {
		t.Fatalf("UpdateReservation failed: %v", err)
	}

	got, err := st.GetReservation(ctx, "r-1")
	if err != nil {
		t.Fatalf("GetReservation failed: %v", err)
	}
	if got.Status != types.ReservationServed || got.ServedByStation != "STATION_T1" {
		t.Errorf("served state not persisted: %+v", got)
	}
	if got.ServedAt == nil || !got.ServedAt.Equal(served) {
		t.Errorf("served timestamp lost: %v", got.ServedAt)
	}
}

func TestCreatePurchase(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Millisecond)
	p := types.Purchase{
		ID: "p-1", UserID: "user-1", UID: "04A1B2C3", UserName: "Emma Fischer",
		UserCategory: types.CategoryStudent,
		Items: []types.PurchaseItem{
			{FoodID: "food-1", Name: "Pasta", Price: 4.50, Quantity: 2, Subtotal: 9.00},
		},
		TotalAmount: 9.00, Station: "STATION_T1",
		ProcessedBy:   "rfid_reservation_system",
		PaymentMethod: types.PaymentMonthlyBilling,
		PaymentStatus: types.PaymentPending,
		CreatedAt:     now,
	}
	if err := st.CreatePurchase(ctx, &p); err != nil {
		t.Fatalf("CreatePurchase failed: %v", err)
	}
}
