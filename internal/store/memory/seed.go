package memory

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/openmensa/rfid-station/internal/types"
)

// SeedDemo loads a small set of card holders and reservations for today so
// a station running against the in-memory store has something to scan.
// The UIDs match the mock reader's simulated cards.
func (s *Store) SeedDemo(ctx context.Context, now time.Time) error {
	now = now.UTC()

	blockedAt := now.Add(-48 * time.Hour)
	expired := now.Add(-1 * time.Hour)

	users := []types.User{
		{
			ID:          uuid.NewString(),
			UID:         "04A1B2C3",
			Name:        "Emma Fischer",
			ClassOrYear: "9B",
			Category:    types.CategoryStudent,
			IsActive:    true,
			ScanCount:   12,
			CreatedAt:   now,
			UpdatedAt:   now,
		},
		{
			ID:          uuid.NewString(),
			UID:         "04D4E5F6",
			Name:        "Jonas Weber",
			ClassOrYear: "11A",
			Category:    types.CategoryStudent,
			IsActive:    true,
			CreatedAt:   now,
			UpdatedAt:   now,
		},
		{
			ID:        uuid.NewString(),
			UID:       "04AABBCC",
			Name:      "Sabine Keller",
			Category:  types.CategoryStaff,
			IsActive:  true,
			CreatedAt: now,
			UpdatedAt: now,
		},
		{
			ID:          uuid.NewString(),
			UID:         "04112233",
			Name:        "Lukas Brandt",
			ClassOrYear: "7C",
			Category:    types.CategoryStudent,
			IsActive:    true,
			IsBlocked:   true,
			Block: types.BlockInfo{
				Reason:    "Unpaid balance",
				BlockedAt: &blockedAt,
				BlockedBy: "admin",
			},
			CreatedAt: now,
			UpdatedAt: now,
		},
		{
			ID:          uuid.NewString(),
			UID:         "04445566",
			Name:        "Mia Hoffmann",
			ClassOrYear: "10A",
			Category:    types.CategoryStudent,
			IsActive:    true,
			IsBlocked:   true,
			Block: types.BlockInfo{
				Reason:    "Temporary suspension",
				BlockedAt: &blockedAt,
				BlockedBy: "admin",
				ExpiresAt: &expired,
			},
			CreatedAt: now,
			UpdatedAt: now,
		},
		{
			ID:          uuid.NewString(),
			UID:         "04778899",
			Name:        "Felix Braun",
			ClassOrYear: "8A",
			Category:    types.CategoryStudent,
			IsActive:    false,
			CreatedAt:   now,
			UpdatedAt:   now,
		},
	}

	for i := range users {
		if err := s.CreateUser(ctx, &users[i]); err != nil {
			return err
		}
	}

	reservations := []types.Reservation{
		{
			ID:            uuid.NewString(),
			StudentID:     users[0].ID,
			FoodID:        "food-001",
			FoodName:      "Spaghetti Bolognese",
			Date:          now,
			Quantity:      1,
			MealType:      types.MealLunch,
			Status:        types.ReservationConfirmed,
			EstimatedCost: 4.50,
			CreatedAt:     now.Add(-3 * time.Hour),
		},
		{
			ID:            uuid.NewString(),
			StudentID:     users[0].ID,
			FoodID:        "food-014",
			FoodName:      "Apple Juice",
			Date:          now,
			Quantity:      1,
			MealType:      types.MealLunch,
			Status:        types.ReservationPending,
			EstimatedCost: 1.20,
			CreatedAt:     now.Add(-2 * time.Hour),
		},
		{
			ID:            uuid.NewString(),
			StudentID:     users[1].ID,
			FoodID:        "food-007",
			FoodName:      "Vegetable Curry",
			Date:          now,
			Quantity:      1,
			MealType:      types.MealLunch,
			Status:        types.ReservationPrepared,
			EstimatedCost: 4.20,
			AllergyNotes:  "No peanuts",
			CreatedAt:     now.Add(-4 * time.Hour),
		},
		{
			ID:            uuid.NewString(),
			StudentID:     users[1].ID,
			FoodID:        "food-002",
			FoodName:      "Chicken Wrap",
			Date:          now.Add(-24 * time.Hour),
			Quantity:      1,
			MealType:      types.MealLunch,
			Status:        types.ReservationServed,
			EstimatedCost: 3.80,
			CreatedAt:     now.Add(-28 * time.Hour),
		},
	}

	for i := range reservations {
		if err := s.CreateReservation(ctx, &reservations[i]); err != nil {
			return err
		}
	}
	return nil
}
