package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openmensa/rfid-station/internal/store"
	"github.com/openmensa/rfid-station/internal/types"
)

const reservationColumns = `id, student_id, food_id, food_name, day,
  quantity, meal_type, status, estimated_cost, actual_cost, instructions,
  allergy_notes, served_at_ms, served_by_station, created_at_ms`

func (s *Store) CreateReservation(ctx context.Context, r *types.Reservation) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO reservations(`+reservationColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
`,
		r.ID, r.StudentID, r.FoodID, r.FoodName, store.DayKey(r.Date),
		r.Quantity, r.MealType, r.Status, r.EstimatedCost, optFloat(r.ActualCost),
		r.Instructions, r.AllergyNotes, optToMs(r.ServedAt), r.ServedByStation,
		toMs(r.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("create reservation: %w", err)
	}
	return nil
}

func (s *Store) GetReservation(ctx context.Context, id string) (*types.Reservation, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+reservationColumns+` FROM reservations WHERE id = ?;`, id)
	r, err := scanReservation(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get reservation: %w", err)
	}
	return r, nil
}

func (s *Store) UpdateReservation(ctx context.Context, r *types.Reservation) error {
	res, err := s.db.ExecContext(ctx, `
UPDATE reservations SET
  student_id = ?, food_id = ?, food_name = ?, day = ?, quantity = ?,
  meal_type = ?, status = ?, estimated_cost = ?, actual_cost = ?,
  instructions = ?, allergy_notes = ?, served_at_ms = ?,
  served_by_station = ?
WHERE id = ?;
`,
		r.StudentID, r.FoodID, r.FoodName, store.DayKey(r.Date), r.Quantity,
		r.MealType, r.Status, r.EstimatedCost, optFloat(r.ActualCost),
		r.Instructions, r.AllergyNotes, optToMs(r.ServedAt),
		r.ServedByStation,
		r.ID,
	)
	if err != nil {
		return fmt.Errorf("update reservation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update reservation rows: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) ReservationsForDay(ctx context.Context, studentID string, day time.Time, statuses []string) ([]types.Reservation, error) {
	q := `SELECT ` + reservationColumns + `
FROM reservations
WHERE student_id = ? AND day = ?`
	args := []any{studentID, store.DayKey(day)}

	if len(statuses) > 0 {
		q += ` AND status IN (?` + strings.Repeat(", ?", len(statuses)-1) + `)`
		for _, st := range statuses {
			args = append(args, st)
		}
	}
	q += ` ORDER BY created_at_ms DESC;`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query reservations: %w", err)
	}
	defer rows.Close()

	var out []types.Reservation
	for rows.Next() {
		r, err := scanReservation(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan reservation: %w", err)
		}
		out = append(out, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reservations: %w", err)
	}
	return out, nil
}

func scanReservation(scan func(dest ...any) error) (*types.Reservation, error) {
	var (
		r          types.Reservation
		day        string
		actualCost sql.NullFloat64
		servedAt   sql.NullInt64
		createdMs  int64
	)
	err := scan(
		&r.ID, &r.StudentID, &r.FoodID, &r.FoodName, &day,
		&r.Quantity, &r.MealType, &r.Status, &r.EstimatedCost, &actualCost,
		&r.Instructions, &r.AllergyNotes, &servedAt, &r.ServedByStation,
		&createdMs,
	)
	if err != nil {
		return nil, err
	}
	d, err := time.Parse("2006-01-02", day)
	if err != nil {
		return nil, fmt.Errorf("parse reservation day %q: %w", day, err)
	}
	r.Date = d
	if actualCost.Valid {
		v := actualCost.Float64
		r.ActualCost = &v
	}
	r.ServedAt = optFromMs(servedAt)
	r.CreatedAt = fromMs(createdMs)
	return &r, nil
}

func optFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}
