// Package migrate imports the legacy single-file JSON snapshot into the
// local store. The import runs once per database: a meta flag records
// completion, and reruns are no-ops. Replay goes through the regular
// round-save path with the legacy identifiers and timestamps preserved, so
// a retry after partial failure overwrites rather than duplicates.
package migrate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/kwatson/puttlog/internal/schema"
	"github.com/kwatson/puttlog/internal/store"
)

// metaKey is the completion gate in the store's meta table.
const metaKey = "legacy_migrated"

// LegacyPutt is one putt in the legacy snapshot. Field names follow the
// old format's camelCase convention.
type LegacyPutt struct {
	Hole          int               `json:"hole"`
	Putt          int               `json:"putt"`
	Distance      float64           `json:"distance"`
	Made          bool              `json:"made"`
	End           *schema.Proximity `json:"endProximity,omitempty"`
	MissDirection string            `json:"missDirection,omitempty"`
	DistanceUnit  string            `json:"distanceUnit,omitempty"`
}

// LegacyRound is one round in the legacy snapshot.
type LegacyRound struct {
	ID          string       `json:"id"`
	Timestamp   time.Time    `json:"timestamp"`
	Course      string       `json:"course"`
	Putts       []LegacyPutt `json:"putts"`
	HolesPlayed int          `json:"holesPlayed"`
	TotalPutts  int          `json:"totalPutts"`
}

// ReadSnapshot parses a legacy snapshot file: a JSON array of rounds.
// A missing file is not an error; it returns an empty slice, since a
// fresh install has nothing to migrate.
func ReadSnapshot(path string) ([]LegacyRound, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open legacy snapshot: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read legacy snapshot: %w", err)
	}

	var rounds []LegacyRound
	if err := json.Unmarshal(data, &rounds); err != nil {
		return nil, fmt.Errorf("failed to parse legacy snapshot: %w", err)
	}
	return rounds, nil
}

// Runner performs the one-time legacy import.
type Runner struct {
	store  *store.Store
	path   string
	backup bool
	logger *log.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithBackup makes the runner copy the legacy file aside after a
// successful import.
func WithBackup() Option {
	return func(r *Runner) { r.backup = true }
}

// WithLogger sets the runner's logger. Defaults to stderr.
func WithLogger(l *log.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// NewRunner creates a Runner reading the legacy snapshot at path and
// writing into s.
func NewRunner(s *store.Store, path string, opts ...Option) *Runner {
	r := &Runner{store: s, path: path}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = log.New(os.Stderr, "[migrate] ", log.LstdFlags)
	}
	return r
}

// Result summarizes a migration run.
type Result struct {
	// AlreadyRun is true when the completion gate was set before this
	// run; nothing was read or written.
	AlreadyRun bool
	Migrated   int
}

// Run imports the legacy snapshot. The completion flag is set only after
// every round has replayed cleanly, so a failed run retries from the top
// on the next launch. Replayed rounds keep their legacy id and timestamps
// and are written as upserts, which makes the retry safe.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	done, err := r.store.GetMeta(ctx, metaKey)
	if err != nil {
		return nil, fmt.Errorf("failed to check migration flag: %w", err)
	}
	if done == "true" {
		return &Result{AlreadyRun: true}, nil
	}

	rounds, err := ReadSnapshot(r.path)
	if err != nil {
		return nil, err
	}

	for _, lr := range rounds {
		if err := r.replay(ctx, lr); err != nil {
			return nil, fmt.Errorf("failed to migrate round %s: %w", lr.ID, err)
		}
	}

	if err := r.store.SetMeta(ctx, metaKey, "true"); err != nil {
		return nil, fmt.Errorf("failed to set migration flag: %w", err)
	}

	if r.backup && len(rounds) > 0 {
		if err := r.backupFile(); err != nil {
			// The import itself succeeded; a failed backup is not worth
			// failing the run over.
			r.logger.Printf("warning: %v", err)
		}
	}

	r.logger.Printf("migrated %d legacy rounds", len(rounds))
	return &Result{Migrated: len(rounds)}, nil
}

func (r *Runner) replay(ctx context.Context, lr LegacyRound) error {
	if lr.ID == "" {
		return errors.New("legacy round has no id")
	}

	attempts := make([]schema.Attempt, 0, len(lr.Putts))
	for _, lp := range lr.Putts {
		attempts = append(attempts, schema.Attempt{
			HoleNumber:    lp.Hole,
			Distance:      lp.Distance,
			Made:          lp.Made,
			End:           lp.End,
			MissDirection: schema.MissDirection(lp.MissDirection),
			DistanceUnit:  schema.DistanceUnit(lp.DistanceUnit),
		})
	}

	opts := &store.SaveOptions{
		ID:        lr.ID,
		CreatedAt: lr.Timestamp,
		UpdatedAt: lr.Timestamp,
	}
	if _, err := r.store.SaveRound(ctx, lr.Course, lr.Timestamp, attempts, opts); err != nil {
		return err
	}
	return nil
}

func (r *Runner) backupFile() error {
	dst := fmt.Sprintf("%s.backup.%s", r.path, time.Now().UTC().Format("20060102T150405Z"))
	data, err := os.ReadFile(r.path)
	if err != nil {
		return fmt.Errorf("failed to back up legacy snapshot: %w", err)
	}
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return fmt.Errorf("failed to back up legacy snapshot: %w", err)
	}
	return nil
}
