package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kwatson/puttlog/internal/schema"
)

// DirtyRounds returns the current user's rounds awaiting upload, oldest
// update first so retries drain in a stable order.
func (s *Store) DirtyRounds(ctx context.Context) ([]*schema.Round, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, user_id, course, date, completed, holes_played, total_putts,
		       created_at, updated_at, dirty, synced_at
		FROM rounds
		WHERE user_id = ? AND dirty = 1
		ORDER BY updated_at ASC
	`, s.userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query dirty rounds: %w", err)
	}
	defer rows.Close()

	return scanRounds(rows)
}

// DirtyCourses returns the current user's courses awaiting upload.
func (s *Store) DirtyCourses(ctx context.Context) ([]*schema.Course, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, user_id, name, holes, green_shapes, created_at, updated_at, dirty, synced_at
		FROM courses
		WHERE user_id = ? AND dirty = 1
		ORDER BY updated_at ASC
	`, s.userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query dirty courses: %w", err)
	}
	defer rows.Close()

	var courses []*schema.Course
	for rows.Next() {
		c, err := scanCourse(rows)
		if err != nil {
			return nil, err
		}
		courses = append(courses, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating courses: %w", err)
	}
	return courses, nil
}

// SyncWatermark returns the most recent synced_at among the current user's
// rounds, or the zero time if nothing has ever synced. Sync-down uses it to
// fetch only remote changes newer than the last known sync point.
func (s *Store) SyncWatermark(ctx context.Context) (time.Time, error) {
	var ns sql.NullString
	err := s.conn.QueryRowContext(ctx, `
		SELECT MAX(synced_at) FROM rounds WHERE user_id = ?
	`, s.userID).Scan(&ns)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read sync watermark: %w", err)
	}
	if t := nullStringToTime(ns); t != nil {
		return *t, nil
	}
	return time.Time{}, nil
}

// PendingChanges counts rows still awaiting upload (dirty rounds plus
// dirty courses).
func (s *Store) PendingChanges(ctx context.Context) (int, error) {
	var n int
	err := s.conn.QueryRowContext(ctx, `
		SELECT (SELECT COUNT(*) FROM rounds  WHERE user_id = ? AND dirty = 1)
		     + (SELECT COUNT(*) FROM courses WHERE user_id = ? AND dirty = 1)
	`, s.userID, s.userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending changes: %w", err)
	}
	return n, nil
}

// ApplyRemoteRound upserts a remote round together with its full set of
// holes and putts as one transaction, replacing any local children. All
// written rows are clean: dirty=0, synced_at=syncedAt. The sync service is
// the only caller; it has already applied the conflict rule.
func (s *Store) ApplyRemoteRound(ctx context.Context, round *schema.Round, holes []*schema.Hole, putts []*schema.Putt, syncedAt time.Time) error {
	if err := round.Validate(); err != nil {
		return fmt.Errorf("invalid remote round: %w", err)
	}
	for _, h := range holes {
		if err := h.Validate(); err != nil {
			return fmt.Errorf("invalid remote hole %s: %w", h.ID, err)
		}
	}
	for _, p := range putts {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("invalid remote putt %s: %w", p.ID, err)
		}
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO rounds (id, user_id, course, date, completed, holes_played,
			total_putts, created_at, updated_at, dirty, synced_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?)
		ON CONFLICT(id) DO UPDATE SET
			course = excluded.course,
			date = excluded.date,
			completed = excluded.completed,
			holes_played = excluded.holes_played,
			total_putts = excluded.total_putts,
			updated_at = excluded.updated_at,
			dirty = 0,
			synced_at = excluded.synced_at
	`, round.ID, round.UserID, round.Course, formatTime(round.Date), round.Completed,
		round.HolesPlayed, round.TotalPutts, formatTime(round.CreatedAt),
		formatTime(round.UpdatedAt), formatTime(syncedAt))
	if err != nil {
		return fmt.Errorf("failed to upsert remote round: %w", err)
	}

	// Child rows are always replaced in full; there is no incremental diff
	// at the child level.
	if err := deleteChildrenTx(ctx, tx, round.ID); err != nil {
		return err
	}

	synced := syncedAt
	for _, h := range holes {
		if err := insertHoleTx(ctx, tx, h); err != nil {
			return err
		}
	}
	for _, p := range putts {
		clean := *p
		clean.Dirty = false
		clean.SyncedAt = &synced
		if err := insertPuttTx(ctx, tx, &clean); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ApplyRemoteCourse upserts a remote course as clean local state.
func (s *Store) ApplyRemoteCourse(ctx context.Context, course *schema.Course, syncedAt time.Time) error {
	if err := course.Validate(); err != nil {
		return fmt.Errorf("invalid remote course: %w", err)
	}

	holesJSON, err := json.Marshal(course.Holes)
	if err != nil {
		return fmt.Errorf("failed to marshal holes: %w", err)
	}

	_, err = s.conn.ExecContext(ctx, `
		INSERT INTO courses (id, user_id, name, holes, green_shapes,
			created_at, updated_at, dirty, synced_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			holes = excluded.holes,
			green_shapes = excluded.green_shapes,
			updated_at = excluded.updated_at,
			dirty = 0,
			synced_at = excluded.synced_at
	`, course.ID, course.UserID, course.Name, string(holesJSON),
		rawToNull(course.GreenShapes), formatTime(course.CreatedAt),
		formatTime(course.UpdatedAt), formatTime(syncedAt))
	if err != nil {
		return fmt.Errorf("failed to upsert remote course: %w", err)
	}
	return nil
}

// MarkRoundSynced clears the dirty flags after a successful upload. The
// putts are cleared before the round, so a crash in between leaves the
// round still-dirty and the next cycle retries it.
func (s *Store) MarkRoundSynced(ctx context.Context, roundID string, syncedAt time.Time) error {
	ts := formatTime(syncedAt)

	_, err := s.conn.ExecContext(ctx, `
		UPDATE putts SET dirty = 0, synced_at = ? WHERE round_id = ? AND dirty = 1
	`, ts, roundID)
	if err != nil {
		return fmt.Errorf("failed to mark putts synced: %w", err)
	}

	res, err := s.conn.ExecContext(ctx, `
		UPDATE rounds SET dirty = 0, synced_at = ? WHERE id = ?
	`, ts, roundID)
	if err != nil {
		return fmt.Errorf("failed to mark round synced: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("round %s: %w", roundID, ErrNotFound)
	}
	return nil
}

// MarkCourseSynced clears a course's dirty flag after a successful upload.
func (s *Store) MarkCourseSynced(ctx context.Context, courseID string, syncedAt time.Time) error {
	res, err := s.conn.ExecContext(ctx, `
		UPDATE courses SET dirty = 0, synced_at = ? WHERE id = ?
	`, formatTime(syncedAt), courseID)
	if err != nil {
		return fmt.Errorf("failed to mark course synced: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("course %s: %w", courseID, ErrNotFound)
	}
	return nil
}
