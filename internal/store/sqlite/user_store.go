package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/openmensa/rfid-station/internal/store"
	"github.com/openmensa/rfid-station/internal/types"
)

const userColumns = `id, uid, name, class_or_year, category, email,
  is_active, is_blocked, block_reason, block_notes, blocked_at_ms,
  blocked_by, block_expires_at_ms, last_scan_at_ms, scan_count,
  created_at_ms, updated_at_ms`

func (s *Store) CreateUser(ctx context.Context, u *types.User) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO users(`+userColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
`,
		u.ID, u.UID, u.Name, u.ClassOrYear, u.Category, u.Email,
		boolToInt(u.IsActive), boolToInt(u.IsBlocked),
		u.Block.Reason, u.Block.Notes, optToMs(u.Block.BlockedAt),
		u.Block.BlockedBy, optToMs(u.Block.ExpiresAt),
		optToMs(u.LastScanAt), u.ScanCount,
		toMs(u.CreatedAt), toMs(u.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*types.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?;`, id)
	return scanUser(row)
}

func (s *Store) GetUserByUID(ctx context.Context, uid string) (*types.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE uid = ?;`, uid)
	return scanUser(row)
}

func (s *Store) UpdateUser(ctx context.Context, u *types.User) error {
	res, err := s.db.ExecContext(ctx, `
UPDATE users SET
  uid = ?, name = ?, class_or_year = ?, category = ?, email = ?,
  is_active = ?, is_blocked = ?, block_reason = ?, block_notes = ?,
  blocked_at_ms = ?, blocked_by = ?, block_expires_at_ms = ?,
  last_scan_at_ms = ?, scan_count = ?, updated_at_ms = ?
WHERE id = ?;
`,
		u.UID, u.Name, u.ClassOrYear, u.Category, u.Email,
		boolToInt(u.IsActive), boolToInt(u.IsBlocked),
		u.Block.Reason, u.Block.Notes,
		optToMs(u.Block.BlockedAt), u.Block.BlockedBy, optToMs(u.Block.ExpiresAt),
		optToMs(u.LastScanAt), u.ScanCount, toMs(u.UpdatedAt),
		u.ID,
	)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update user rows: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) RecordScan(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
UPDATE users SET
  last_scan_at_ms = ?,
  scan_count      = scan_count + 1,
  updated_at_ms   = ?
WHERE id = ?;
`, toMs(at), toMs(at), id)
	if err != nil {
		return fmt.Errorf("record scan: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("record scan rows: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func scanUser(row *sql.Row) (*types.User, error) {
	var (
		u                    types.User
		isActive, isBlocked  int
		blockedAt, expiresAt sql.NullInt64
		lastScan             sql.NullInt64
		createdMs, updatedMs int64
	)
	err := row.Scan(
		&u.ID, &u.UID, &u.Name, &u.ClassOrYear, &u.Category, &u.Email,
		&isActive, &isBlocked, &u.Block.Reason, &u.Block.Notes, &blockedAt,
		&u.Block.BlockedBy, &expiresAt, &lastScan, &u.ScanCount,
		&createdMs, &updatedMs,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	u.IsActive = isActive == 1
	u.IsBlocked = isBlocked == 1
	u.Block.BlockedAt = optFromMs(blockedAt)
	u.Block.ExpiresAt = optFromMs(expiresAt)
	u.LastScanAt = optFromMs(lastScan)
	u.CreatedAt = fromMs(createdMs)
	u.UpdatedAt = fromMs(updatedMs)
	return &u, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
