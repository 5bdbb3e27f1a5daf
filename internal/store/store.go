// Package store provides the embedded SQLite local store and the data
// access layer on top of it. It is the sole reader and writer of the
// database: the CLI, the legacy importer and the sync service all go
// through it.
//
// The database runs embedded with WAL mode for concurrent reads. Four
// domain tables (rounds, holes, putts, courses) plus a meta table hold all
// state. Every create or update of a syncable row marks it dirty; only the
// sync paths (ApplyRemote*, Mark*Synced) clear the flag.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// ErrNotFound is returned when a row addressed by id does not exist.
var ErrNotFound = errors.New("not found")

// currentVersion is the schema version written to PRAGMA user_version.
// Bump it when adding a migration step; steps are additive and never
// rewrite existing rows.
const currentVersion = 1

// Store wraps the SQLite connection. All queries are scoped to the user
// identity it was opened with; there is no cross-user visibility.
type Store struct {
	conn   *sql.DB
	path   string
	userID string
}

// Open creates or opens the database at path, scoped to userID, and brings
// the schema up to the current version. The caller must Close the store.
func Open(path, userID string) (*Store, error) {
	if userID == "" {
		return nil, fmt.Errorf("userID cannot be empty")
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", fmt.Sprintf("file:%s", path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	s := &Store{conn: conn, path: path, userID: userID}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, p := range pragmas {
		if _, err := s.conn.Exec(p); err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("failed to exec %q: %w", p, err)
		}
	}

	if err := s.migrate(); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	return s, nil
}

// UserID returns the identity this store is scoped to.
func (s *Store) UserID() string {
	return s.userID
}

// RawDB returns the underlying sql.DB connection, for tests and tooling.
func (s *Store) RawDB() *sql.DB {
	return s.conn
}

// Close checkpoints the WAL and closes the connection.
func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}

	if _, err := s.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
	}

	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	s.conn = nil
	return nil
}

// migrate brings the schema up to currentVersion. Each step only adds
// tables and indexes (CREATE IF NOT EXISTS), so re-running on an existing
// database preserves every row.
func (s *Store) migrate() error {
	var version int
	if err := s.conn.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("failed to read user_version: %w", err)
	}

	if version >= currentVersion {
		return nil
	}

	if version < 1 {
		if err := s.migrateV1(); err != nil {
			return err
		}
	}

	if _, err := s.conn.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentVersion)); err != nil {
		return fmt.Errorf("failed to set user_version: %w", err)
	}
	return nil
}

func (s *Store) migrateV1() error {
	const ddl = `
	CREATE TABLE IF NOT EXISTS rounds (
		id            TEXT PRIMARY KEY,
		user_id       TEXT NOT NULL,
		course        TEXT NOT NULL DEFAULT '',
		date          TEXT NOT NULL,
		completed     INTEGER NOT NULL DEFAULT 1,
		holes_played  INTEGER NOT NULL DEFAULT 0,
		total_putts   INTEGER NOT NULL DEFAULT 0,
		created_at    TEXT NOT NULL,
		updated_at    TEXT NOT NULL,
		dirty         INTEGER NOT NULL DEFAULT 1,
		synced_at     TEXT
	);

	CREATE TABLE IF NOT EXISTS holes (
		id           TEXT PRIMARY KEY,
		round_id     TEXT NOT NULL,
		hole_number  INTEGER NOT NULL,
		par          INTEGER NOT NULL DEFAULT 4,
		created_at   TEXT NOT NULL,
		updated_at   TEXT NOT NULL,
		UNIQUE (round_id, hole_number)
	);

	CREATE TABLE IF NOT EXISTS putts (
		id              TEXT PRIMARY KEY,
		hole_id         TEXT NOT NULL,
		round_id        TEXT NOT NULL,  -- denormalized from holes
		user_id         TEXT NOT NULL,  -- denormalized from rounds
		putt_number     INTEGER NOT NULL,
		distance        REAL NOT NULL DEFAULT 0,
		made            INTEGER NOT NULL DEFAULT 0,
		end_dx          REAL,
		end_dy          REAL,
		start_dx        REAL,
		start_dy        REAL,
		pin_x           REAL,
		pin_y           REAL,
		miss_direction  TEXT NOT NULL DEFAULT '',
		distance_unit   TEXT NOT NULL DEFAULT 'meters',
		created_at      TEXT NOT NULL,
		updated_at      TEXT NOT NULL,
		dirty           INTEGER NOT NULL DEFAULT 1,
		synced_at       TEXT
	);

	CREATE TABLE IF NOT EXISTS courses (
		id            TEXT PRIMARY KEY,
		user_id       TEXT NOT NULL,
		name          TEXT NOT NULL,
		holes         TEXT NOT NULL DEFAULT '[]',  -- JSON array
		green_shapes  TEXT,                        -- JSON blob
		created_at    TEXT NOT NULL,
		updated_at    TEXT NOT NULL,
		dirty         INTEGER NOT NULL DEFAULT 1,
		synced_at     TEXT,
		UNIQUE (user_id, name)
	);

	-- Key-value flags internal to the engine (migration gate etc).
	CREATE TABLE IF NOT EXISTS meta (
		key    TEXT PRIMARY KEY,
		value  TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_rounds_user ON rounds(user_id);
	CREATE INDEX IF NOT EXISTS idx_rounds_dirty ON rounds(dirty);
	CREATE INDEX IF NOT EXISTS idx_rounds_updated ON rounds(updated_at);
	CREATE INDEX IF NOT EXISTS idx_rounds_synced ON rounds(synced_at);
	CREATE INDEX IF NOT EXISTS idx_rounds_user_date ON rounds(user_id, date DESC);

	CREATE INDEX IF NOT EXISTS idx_holes_round ON holes(round_id);

	CREATE INDEX IF NOT EXISTS idx_putts_hole ON putts(hole_id);
	CREATE INDEX IF NOT EXISTS idx_putts_round ON putts(round_id);
	CREATE INDEX IF NOT EXISTS idx_putts_user ON putts(user_id);
	CREATE INDEX IF NOT EXISTS idx_putts_dirty ON putts(dirty);

	CREATE INDEX IF NOT EXISTS idx_courses_user ON courses(user_id);
	CREATE INDEX IF NOT EXISTS idx_courses_dirty ON courses(dirty);
	`

	if _, err := s.conn.Exec(ddl); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// GetMeta returns the value for key, or "" if the key is not set.
func (s *Store) GetMeta(ctx context.Context, key string) (string, error) {
	var value string
	err := s.conn.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read meta %q: %w", key, err)
	}
	return value, nil
}

// SetMeta stores value under key, replacing any previous value.
func (s *Store) SetMeta(ctx context.Context, key, value string) error {
	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to set meta %q: %w", key, err)
	}
	return nil
}

// Wipe deletes all domain rows. Meta flags survive so a completed legacy
// migration is not replayed after a recovery-code import.
func (s *Store) Wipe(ctx context.Context) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"putts", "holes", "rounds", "courses"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to wipe %s: %w", table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// timeToNullString converts an optional time to a nullable RFC3339 string.
func timeToNullString(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339), Valid: true}
}

// nullStringToTime converts a nullable RFC3339 string to an optional time.
func nullStringToTime(ns sql.NullString) *time.Time {
	if !ns.Valid {
		return nil
	}
	t, err := time.Parse(time.RFC3339, ns.String)
	if err != nil {
		return nil
	}
	return &t
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}
