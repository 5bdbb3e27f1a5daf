package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/kwatson/puttlog/internal/schema"
)

const testUser = "11111111-1111-1111-1111-111111111111"

// setupStore opens a fresh database in a temp directory.
func setupStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(filepath.Join(t.TempDir(), "putt.db"), testUser)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// twoPuttAttempts is the standard one-hole, two-putt input used across
// the round tests.
func twoPuttAttempts() []schema.Attempt {
	return []schema.Attempt{
		{HoleNumber: 1, Distance: 3.0, Made: false},
		{HoleNumber: 1, Distance: 0.5, Made: true},
	}
}

func TestOpenCreatesSchema(t *testing.T) {
	s := setupStore(t)

	var version int
	if err := s.conn.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		t.Fatalf("failed to read user_version: %v", err)
	}
	if version != currentVersion {
		t.Errorf("expected user_version %d, got %d", currentVersion, version)
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "putt.db")
	ctx := context.Background()

	s, err := Open(path, testUser)
	if err != nil {
		t.Fatalf("first open failed: %v", err)
	}
	id, err := s.SaveRound(ctx, "Lakeside", time.Now(), twoPuttAttempts(), nil)
	if err != nil {
		t.Fatalf("SaveRound failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	// Reopening must run migrations as no-ops and keep existing rows.
	s2, err := Open(path, testUser)
	if err != nil {
		t.Fatalf("second open failed: %v", err)
	}
	defer s2.Close()

	r, err := s2.GetRound(ctx, id)
	if err != nil {
		t.Fatalf("GetRound after reopen failed: %v", err)
	}
	if r.TotalPutts != 2 {
		t.Errorf("expected round to survive reopen with 2 putts, got %d", r.TotalPutts)
	}
}

func TestMetaRoundTrip(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	got, err := s.GetMeta(ctx, "missing")
	if err != nil {
		t.Fatalf("GetMeta failed: %v", err)
	}
	if got != "" {
		t.Errorf("expected empty value for missing key, got %q", got)
	}

	if err := s.SetMeta(ctx, "flag", "true"); err != nil {
		t.Fatalf("SetMeta failed: %v", err)
	}
	if err := s.SetMeta(ctx, "flag", "false"); err != nil {
		t.Fatalf("SetMeta overwrite failed: %v", err)
	}

	got, err = s.GetMeta(ctx, "flag")
	if err != nil {
		t.Fatalf("GetMeta failed: %v", err)
	}
	if got != "false" {
		t.Errorf("expected overwritten value false, got %q", got)
	}
}

func TestWipeKeepsMeta(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	if _, err := s.SaveRound(ctx, "Lakeside", time.Now(), twoPuttAttempts(), nil); err != nil {
		t.Fatalf("SaveRound failed: %v", err)
	}
	if err := s.SetMeta(ctx, "legacy_migrated", "true"); err != nil {
		t.Fatalf("SetMeta failed: %v", err)
	}

	if err := s.Wipe(ctx); err != nil {
		t.Fatalf("Wipe failed: %v", err)
	}

	rounds, err := s.GetRounds(ctx)
	if err != nil {
		t.Fatalf("GetRounds failed: %v", err)
	}
	if len(rounds) != 0 {
		t.Errorf("expected no rounds after wipe, got %d", len(rounds))
	}

	flag, err := s.GetMeta(ctx, "legacy_migrated")
	if err != nil {
		t.Fatalf("GetMeta failed: %v", err)
	}
	if flag != "true" {
		t.Errorf("expected meta flag to survive wipe, got %q", flag)
	}
}
