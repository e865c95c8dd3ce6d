// Package sqlite is the SQLite store implementation, backed by
// modernc.org/sqlite so stations build without cgo.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/openmensa/rfid-station/internal/store"
)

// Store implements store.Store on a single SQLite database file.
type Store struct {
	db *sql.DB
}

var _ store.Store = (*Store)(nil)

// Open opens (creating if needed) the database at path and applies the
// schema. The connection pool is pinned to one connection; SQLite handles
// a single-process station best that way.
func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		path = "./data/station.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir db dir: %w", err)
	}

	// Per-connection PRAGMAs: foreign keys on, WAL for concurrency,
	// NORMAL sync, busy timeout against SQLITE_BUSY.
	dsn := fmt.Sprintf(
		"file:%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)",
		path,
	)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql.Open: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}

	if err := ensureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func ensureSchema(ctx context.Context, db *sql.DB) error {
	const schema = `
CREATE TABLE IF NOT EXISTS users (
  id                  TEXT PRIMARY KEY,
  uid                 TEXT NOT NULL UNIQUE,
  name                TEXT NOT NULL,
  class_or_year       TEXT NOT NULL DEFAULT '',
  category            TEXT NOT NULL,
  email               TEXT NOT NULL DEFAULT '',
  is_active           INTEGER NOT NULL DEFAULT 1,
  is_blocked          INTEGER NOT NULL DEFAULT 0,
  block_reason        TEXT NOT NULL DEFAULT '',
  block_notes         TEXT NOT NULL DEFAULT '',
  blocked_at_ms       INTEGER,
  blocked_by          TEXT NOT NULL DEFAULT '',
  block_expires_at_ms INTEGER,
  last_scan_at_ms     INTEGER,
  scan_count          INTEGER NOT NULL DEFAULT 0,
  created_at_ms       INTEGER NOT NULL,
  updated_at_ms       INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS reservations (
  id                TEXT PRIMARY KEY,
  student_id        TEXT NOT NULL REFERENCES users(id),
  food_id           TEXT NOT NULL,
  food_name         TEXT NOT NULL,
  day               TEXT NOT NULL,
  quantity          INTEGER NOT NULL DEFAULT 1,
  meal_type         TEXT NOT NULL,
  status            TEXT NOT NULL,
  estimated_cost    REAL NOT NULL DEFAULT 0,
  actual_cost       REAL,
  instructions      TEXT NOT NULL DEFAULT '',
  allergy_notes     TEXT NOT NULL DEFAULT '',
  served_at_ms      INTEGER,
  served_by_station TEXT NOT NULL DEFAULT '',
  created_at_ms     INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_reservations_student_day
  ON reservations(student_id, day);

CREATE TABLE IF NOT EXISTS purchases (
  id             TEXT PRIMARY KEY,
  user_id        TEXT NOT NULL,
  uid            TEXT NOT NULL,
  user_name      TEXT NOT NULL,
  user_category  TEXT NOT NULL,
  items_json     TEXT NOT NULL,
  total_amount   REAL NOT NULL,
  station        TEXT NOT NULL DEFAULT '',
  processed_by   TEXT NOT NULL DEFAULT '',
  notes          TEXT NOT NULL DEFAULT '',
  payment_method TEXT NOT NULL,
  payment_status TEXT NOT NULL,
  created_at_ms  INTEGER NOT NULL
);
`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// ms/time conversion helpers. All timestamps are stored as UTC epoch
// milliseconds; optional timestamps as NULL.

func toMs(t time.Time) int64 { return t.UTC().UnixMilli() }

func fromMs(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

func optToMs(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toMs(*t), Valid: true}
}

func optFromMs(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := fromMs(v.Int64)
	return &t
}
