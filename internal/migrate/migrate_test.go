package migrate

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kwatson/puttlog/internal/store"
)

const testUser = "11111111-1111-1111-1111-111111111111"

func setupStore(t *testing.T) *store.Store {
	t.Helper()

	s, err := store.Open(filepath.Join(t.TempDir(), "putt.db"), testUser)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func writeSnapshot(t *testing.T, rounds []LegacyRound) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "legacy.json")
	data, err := json.Marshal(rounds)
	if err != nil {
		t.Fatalf("failed to marshal snapshot: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("failed to write snapshot: %v", err)
	}
	return path
}

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func legacyFixture() []LegacyRound {
	ts := time.Date(2022, 8, 15, 18, 30, 0, 0, time.UTC)
	return []LegacyRound{
		{
			ID:        "legacy-round-1",
			Timestamp: ts,
			Course:    "Lakeside",
			Putts: []LegacyPutt{
				{Hole: 1, Putt: 1, Distance: 3.0, Made: false, MissDirection: "left"},
				{Hole: 1, Putt: 2, Distance: 0.5, Made: true},
				{Hole: 2, Putt: 1, Distance: 1.2, Made: true},
			},
			HolesPlayed: 2,
			TotalPutts:  3,
		},
		{
			ID:          "legacy-round-2",
			Timestamp:   ts.Add(24 * time.Hour),
			Course:      "Hillcrest",
			Putts:       []LegacyPutt{{Hole: 1, Putt: 1, Distance: 2.0, Made: true}},
			HolesPlayed: 1,
			TotalPutts:  1,
		},
	}
}

func TestRunImportsAllRounds(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	path := writeSnapshot(t, legacyFixture())

	result, err := NewRunner(s, path, WithLogger(quietLogger())).Run(ctx)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Migrated != 2 {
		t.Errorf("expected 2 migrated rounds, got %d", result.Migrated)
	}

	rounds, err := s.GetRounds(ctx)
	if err != nil {
		t.Fatalf("GetRounds failed: %v", err)
	}
	if len(rounds) != 2 {
		t.Fatalf("expected 2 rounds, got %d", len(rounds))
	}

	r, err := s.GetRound(ctx, "legacy-round-1")
	if err != nil {
		t.Fatalf("GetRound failed: %v", err)
	}
	if r.HolesPlayed != 2 || r.TotalPutts != 3 {
		t.Errorf("expected counts recomputed as 2/3, got %d/%d", r.HolesPlayed, r.TotalPutts)
	}
}

func TestRunPreservesTimestamps(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	fixture := legacyFixture()
	path := writeSnapshot(t, fixture)

	if _, err := NewRunner(s, path, WithLogger(quietLogger())).Run(ctx); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	r, err := s.GetRound(ctx, fixture[0].ID)
	if err != nil {
		t.Fatalf("GetRound failed: %v", err)
	}
	if !r.CreatedAt.Equal(fixture[0].Timestamp) {
		t.Errorf("expected createdAt %v, got %v", fixture[0].Timestamp, r.CreatedAt)
	}
	if !r.UpdatedAt.Equal(fixture[0].Timestamp) {
		t.Errorf("expected updatedAt %v, got %v", fixture[0].Timestamp, r.UpdatedAt)
	}
	if !r.Date.Equal(fixture[0].Timestamp) {
		t.Errorf("expected date %v, got %v", fixture[0].Timestamp, r.Date)
	}

	// The regenerated holes and putts carry the legacy dates too, not the
	// wall clock at migration time.
	holes, err := s.HolesForRound(ctx, fixture[0].ID)
	if err != nil {
		t.Fatalf("HolesForRound failed: %v", err)
	}
	for _, h := range holes {
		if !h.CreatedAt.Equal(fixture[0].Timestamp) || !h.UpdatedAt.Equal(fixture[0].Timestamp) {
			t.Errorf("hole %d timestamps not preserved: created %v updated %v",
				h.HoleNumber, h.CreatedAt, h.UpdatedAt)
		}
	}
	putts, err := s.DirtyPuttsForRound(ctx, fixture[0].ID)
	if err != nil {
		t.Fatalf("DirtyPuttsForRound failed: %v", err)
	}
	if len(putts) == 0 {
		t.Fatal("expected migrated putts")
	}
	for _, p := range putts {
		if !p.CreatedAt.Equal(fixture[0].Timestamp) || !p.UpdatedAt.Equal(fixture[0].Timestamp) {
			t.Errorf("putt %s timestamps not preserved: created %v updated %v",
				p.ID, p.CreatedAt, p.UpdatedAt)
		}
	}
}

func TestRunIsIdempotent(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	path := writeSnapshot(t, legacyFixture())

	if _, err := NewRunner(s, path, WithLogger(quietLogger())).Run(ctx); err != nil {
		t.Fatalf("first Run failed: %v", err)
	}

	result, err := NewRunner(s, path, WithLogger(quietLogger())).Run(ctx)
	if err != nil {
		t.Fatalf("second Run failed: %v", err)
	}
	if !result.AlreadyRun {
		t.Error("expected second run to report AlreadyRun")
	}
	if result.Migrated != 0 {
		t.Errorf("expected 0 migrated on rerun, got %d", result.Migrated)
	}

	rounds, err := s.GetRounds(ctx)
	if err != nil {
		t.Fatalf("GetRounds failed: %v", err)
	}
	if len(rounds) != 2 {
		t.Errorf("expected no duplicates, got %d rounds", len(rounds))
	}
}

func TestRetryAfterPartialRunDoesNotDuplicate(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	fixture := legacyFixture()
	path := writeSnapshot(t, fixture)

	// Simulate a crashed first run: one round made it in, flag unset.
	partial := NewRunner(s, path, WithLogger(quietLogger()))
	if err := partial.replay(ctx, fixture[0]); err != nil {
		t.Fatalf("partial replay failed: %v", err)
	}

	result, err := NewRunner(s, path, WithLogger(quietLogger())).Run(ctx)
	if err != nil {
		t.Fatalf("retry Run failed: %v", err)
	}
	if result.Migrated != 2 {
		t.Errorf("expected full retry of 2 rounds, got %d", result.Migrated)
	}

	rounds, err := s.GetRounds(ctx)
	if err != nil {
		t.Fatalf("GetRounds failed: %v", err)
	}
	if len(rounds) != 2 {
		t.Errorf("expected upsert to prevent duplicates, got %d rounds", len(rounds))
	}

	r, err := s.GetRound(ctx, fixture[0].ID)
	if err != nil {
		t.Fatalf("GetRound failed: %v", err)
	}
	if r.TotalPutts != 3 {
		t.Errorf("expected replayed round intact with 3 putts, got %d", r.TotalPutts)
	}
}

func TestRunMissingSnapshotIsNoop(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	result, err := NewRunner(s, filepath.Join(t.TempDir(), "absent.json"), WithLogger(quietLogger())).Run(ctx)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Migrated != 0 {
		t.Errorf("expected 0 migrated, got %d", result.Migrated)
	}

	// The gate still sets so future launches skip the file check.
	rerun, err := NewRunner(s, "whatever.json", WithLogger(quietLogger())).Run(ctx)
	if err != nil {
		t.Fatalf("rerun failed: %v", err)
	}
	if !rerun.AlreadyRun {
		t.Error("expected gate set after empty run")
	}
}

func TestRunWithBackupCopiesFile(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	path := writeSnapshot(t, legacyFixture())

	if _, err := NewRunner(s, path, WithBackup(), WithLogger(quietLogger())).Run(ctx); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	matches, err := filepath.Glob(path + ".backup.*")
	if err != nil {
		t.Fatalf("glob failed: %v", err)
	}
	if len(matches) != 1 {
		t.Errorf("expected one backup file, got %v", matches)
	}
}
