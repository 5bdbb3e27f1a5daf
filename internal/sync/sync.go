// Package sync reconciles the local store with the remote store. A cycle
// runs in two phases: pull remote changes newer than the watermark, then
// push local dirty rows. Conflicts resolve last-write-wins by updated_at
// with ties going to the remote copy.
package sync

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync/atomic"
	"time"

	"github.com/kwatson/puttlog/internal/schema"
	"github.com/kwatson/puttlog/internal/store"
)

// RemoteStore is the remote side of a sync cycle, satisfied by
// remote.Client.
type RemoteStore interface {
	RoundsSince(ctx context.Context, userID string, since time.Time) ([]*schema.Round, error)
	HolesForRound(ctx context.Context, roundID string) ([]*schema.Hole, error)
	PuttsForRound(ctx context.Context, roundID string) ([]*schema.Putt, error)
	CoursesSince(ctx context.Context, userID string, since time.Time) ([]*schema.Course, error)
	UpsertRounds(ctx context.Context, rounds []*schema.Round) error
	UpsertHoles(ctx context.Context, holes []*schema.Hole) error
	UpsertPutts(ctx context.Context, putts []*schema.Putt) error
	UpsertCourses(ctx context.Context, courses []*schema.Course) error
}

// Publisher receives sync lifecycle events. The dashboard server
// implements it; a nil publisher disables eventing.
type Publisher interface {
	Publish(event Event)
}

// Event is one sync lifecycle notification.
type Event struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Pending   int       `json:"pending,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// Event types published over the dashboard.
const (
	EventSyncStarted  = "sync_started"
	EventSyncComplete = "sync_complete"
	EventSyncFailed   = "sync_failed"
)

// Status is a point-in-time snapshot of the sync service.
type Status struct {
	PendingChanges int        `json:"pending_changes"`
	LastSyncAt     *time.Time `json:"last_sync_at,omitempty"`
	InProgress     bool       `json:"in_progress"`
	LastError      string     `json:"last_error,omitempty"`
}

// Service runs sync cycles against one local store and one remote store.
// Safe for concurrent use; overlapping Sync calls collapse to one run.
type Service struct {
	local  *store.Store
	remote RemoteStore
	pub    Publisher
	logger *log.Logger

	inProgress atomic.Bool

	lastSyncAt atomic.Pointer[time.Time]
	lastErr    atomic.Pointer[string]
}

// New creates a sync service. pub and logger may be nil.
func New(local *store.Store, remote RemoteStore, pub Publisher, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.New(os.Stderr, "[sync] ", log.LstdFlags)
	}
	return &Service{
		local:  local,
		remote: remote,
		pub:    pub,
		logger: logger,
	}
}

// Sync runs one full cycle: pull then push. Pull always runs first so the
// conflict check in the pull phase sees local state before it is pushed.
// A call made while another cycle is running logs and returns nil without
// doing any work; the next scheduled trigger picks up whatever is still
// dirty.
func (s *Service) Sync(ctx context.Context) error {
	if !s.inProgress.CompareAndSwap(false, true) {
		s.logger.Printf("sync already in progress, skipping")
		return nil
	}
	defer s.inProgress.Store(false)

	s.publish(Event{Type: EventSyncStarted, Timestamp: time.Now().UTC()})

	err := s.syncDown(ctx)
	if err == nil {
		err = s.syncUp(ctx)
	}

	now := time.Now().UTC()
	if err != nil {
		msg := err.Error()
		s.lastErr.Store(&msg)
		s.publish(Event{Type: EventSyncFailed, Timestamp: now, Error: msg})
		return err
	}

	s.lastSyncAt.Store(&now)
	s.lastErr.Store(nil)

	pending, perr := s.local.PendingChanges(ctx)
	if perr != nil {
		s.logger.Printf("failed to count pending changes: %v", perr)
	}
	s.publish(Event{Type: EventSyncComplete, Timestamp: now, Pending: pending})
	return nil
}

// syncDown pulls remote rounds and courses updated after the watermark
// and applies them locally. A remote round is skipped only when the local
// copy's updated_at is strictly newer. Applied rounds replace their holes
// and putts in full. Rows absent remotely are never deleted here.
func (s *Service) syncDown(ctx context.Context) error {
	watermark, err := s.local.SyncWatermark(ctx)
	if err != nil {
		return fmt.Errorf("failed to compute watermark: %w", err)
	}

	userID := s.local.UserID()
	rounds, err := s.remote.RoundsSince(ctx, userID, watermark)
	if err != nil {
		return fmt.Errorf("failed to fetch remote rounds: %w", err)
	}

	now := time.Now().UTC()
	applied := 0
	for _, rr := range rounds {
		local, err := s.local.GetRound(ctx, rr.ID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("failed to load local round %s: %w", rr.ID, err)
		}
		if local != nil && local.UpdatedAt.After(rr.UpdatedAt) {
			continue
		}

		holes, err := s.remote.HolesForRound(ctx, rr.ID)
		if err != nil {
			return fmt.Errorf("failed to fetch remote holes for %s: %w", rr.ID, err)
		}
		putts, err := s.remote.PuttsForRound(ctx, rr.ID)
		if err != nil {
			return fmt.Errorf("failed to fetch remote putts for %s: %w", rr.ID, err)
		}

		if err := s.local.ApplyRemoteRound(ctx, rr, holes, putts, now); err != nil {
			return fmt.Errorf("failed to apply remote round %s: %w", rr.ID, err)
		}
		applied++
	}

	courses, err := s.remote.CoursesSince(ctx, userID, watermark)
	if err != nil {
		return fmt.Errorf("failed to fetch remote courses: %w", err)
	}
	for _, rc := range courses {
		local := s.localCourse(ctx, rc.ID)
		if local != nil && local.UpdatedAt.After(rc.UpdatedAt) {
			continue
		}
		if err := s.local.ApplyRemoteCourse(ctx, rc, now); err != nil {
			return fmt.Errorf("failed to apply remote course %s: %w", rc.ID, err)
		}
		applied++
	}

	if applied > 0 {
		s.logger.Printf("pulled %d remote changes", applied)
	}
	return nil
}

// syncUp pushes dirty rounds and courses. Each round uploads parent
// before children (round, holes, putts) and is marked clean children
// first, so an interruption leaves the round still dirty and retried on
// the next cycle. An upload failure for one round logs and moves on to
// the rest of the batch; the aggregate failure is reported only after
// every row has been attempted.
func (s *Service) syncUp(ctx context.Context) error {
	rounds, err := s.local.DirtyRounds(ctx)
	if err != nil {
		return fmt.Errorf("failed to load dirty rounds: %w", err)
	}

	var failed int
	var lastErr error
	now := time.Now().UTC()

	for _, r := range rounds {
		if err := s.pushRound(ctx, r, now); err != nil {
			s.logger.Printf("failed to push round %s: %v", r.ID, err)
			failed++
			lastErr = err
		}
	}

	courses, err := s.local.DirtyCourses(ctx)
	if err != nil {
		return fmt.Errorf("failed to load dirty courses: %w", err)
	}
	for _, c := range courses {
		if err := s.pushCourse(ctx, c, now); err != nil {
			s.logger.Printf("failed to push course %s: %v", c.ID, err)
			failed++
			lastErr = err
		}
	}

	pushed := len(rounds) + len(courses) - failed
	if pushed > 0 {
		s.logger.Printf("pushed %d local changes", pushed)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d uploads failed: %w", failed, pushed+failed, lastErr)
	}
	return nil
}

func (s *Service) pushRound(ctx context.Context, r *schema.Round, now time.Time) error {
	holes, err := s.local.HolesForRound(ctx, r.ID)
	if err != nil {
		return fmt.Errorf("failed to load holes: %w", err)
	}
	putts, err := s.local.DirtyPuttsForRound(ctx, r.ID)
	if err != nil {
		return fmt.Errorf("failed to load dirty putts: %w", err)
	}

	if err := s.remote.UpsertRounds(ctx, []*schema.Round{r}); err != nil {
		return fmt.Errorf("failed to upsert round: %w", err)
	}
	if err := s.remote.UpsertHoles(ctx, holes); err != nil {
		return fmt.Errorf("failed to upsert holes: %w", err)
	}
	if err := s.remote.UpsertPutts(ctx, putts); err != nil {
		return fmt.Errorf("failed to upsert putts: %w", err)
	}

	if err := s.local.MarkRoundSynced(ctx, r.ID, now); err != nil {
		return fmt.Errorf("failed to mark round synced: %w", err)
	}
	return nil
}

func (s *Service) pushCourse(ctx context.Context, c *schema.Course, now time.Time) error {
	if err := s.remote.UpsertCourses(ctx, []*schema.Course{c}); err != nil {
		return fmt.Errorf("failed to upsert course: %w", err)
	}
	if err := s.local.MarkCourseSynced(ctx, c.ID, now); err != nil {
		return fmt.Errorf("failed to mark course synced: %w", err)
	}
	return nil
}

// Status reports pending change count and the outcome of the last cycle.
func (s *Service) Status(ctx context.Context) (*Status, error) {
	pending, err := s.local.PendingChanges(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count pending changes: %w", err)
	}

	st := &Status{
		PendingChanges: pending,
		InProgress:     s.inProgress.Load(),
		LastSyncAt:     s.lastSyncAt.Load(),
	}
	if msg := s.lastErr.Load(); msg != nil {
		st.LastError = *msg
	}
	return st, nil
}

func (s *Service) localCourse(ctx context.Context, id string) *schema.Course {
	courses, err := s.local.GetCourses(ctx)
	if err != nil {
		return nil
	}
	for _, c := range courses {
		if c.ID == id {
			return c
		}
	}
	return nil
}

func (s *Service) publish(e Event) {
	if s.pub != nil {
		s.pub.Publish(e)
	}
}
