package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/kwatson/puttlog/internal/schema"
)

// SaveCourse inserts a new course layout for the current user, marked
// dirty. The (user, name) pair is unique; saving a duplicate name fails.
// Returns the new course id.
func (s *Store) SaveCourse(ctx context.Context, name string, holes []schema.CourseHole, greenShapes json.RawMessage) (string, error) {
	now := time.Now().UTC()
	id := schema.NewID()

	holesJSON, err := json.Marshal(holes)
	if err != nil {
		return "", fmt.Errorf("failed to marshal holes: %w", err)
	}

	_, err = s.conn.ExecContext(ctx, `
		INSERT INTO courses (id, user_id, name, holes, green_shapes,
			created_at, updated_at, dirty, synced_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 1, NULL)
	`, id, s.userID, name, string(holesJSON), rawToNull(greenShapes),
		formatTime(now), formatTime(now))
	if err != nil {
		return "", fmt.Errorf("failed to insert course: %w", err)
	}
	return id, nil
}

// CourseUpdate lists the fields a course update may change. Nil fields are
// left untouched. Holes and GreenShapes are serialized blobs replaced
// whole, never merged inside.
type CourseUpdate struct {
	Name        *string
	Holes       []schema.CourseHole
	GreenShapes json.RawMessage
}

// UpdateCourse applies a partial update, bumps updated_at and re-marks the
// course dirty. Returns ErrNotFound if the course does not exist for the
// current user.
func (s *Store) UpdateCourse(ctx context.Context, courseID string, upd CourseUpdate) error {
	sets := []string{"updated_at = ?", "dirty = 1"}
	args := []any{formatTime(time.Now().UTC())}

	if upd.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *upd.Name)
	}
	if upd.Holes != nil {
		holesJSON, err := json.Marshal(upd.Holes)
		if err != nil {
			return fmt.Errorf("failed to marshal holes: %w", err)
		}
		sets = append(sets, "holes = ?")
		args = append(args, string(holesJSON))
	}
	if upd.GreenShapes != nil {
		sets = append(sets, "green_shapes = ?")
		args = append(args, string(upd.GreenShapes))
	}

	args = append(args, courseID, s.userID)
	res, err := s.conn.ExecContext(ctx, `
		UPDATE courses SET `+strings.Join(sets, ", ")+`
		WHERE id = ? AND user_id = ?
	`, args...)
	if err != nil {
		return fmt.Errorf("failed to update course: %w", err)
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

// GetCourses returns all courses for the current user, ordered by name.
func (s *Store) GetCourses(ctx context.Context) ([]*schema.Course, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, user_id, name, holes, green_shapes, created_at, updated_at, dirty, synced_at
		FROM courses
		WHERE user_id = ?
		ORDER BY name ASC
	`, s.userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query courses: %w", err)
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

// GetCourseByName looks a course up by its per-user unique name. Returns
// ErrNotFound when no course has that name.
func (s *Store) GetCourseByName(ctx context.Context, name string) (*schema.Course, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, user_id, name, holes, green_shapes, created_at, updated_at, dirty, synced_at
		FROM courses
		WHERE user_id = ? AND name = ?
	`, s.userID, name)
	if err != nil {
		return nil, fmt.Errorf("failed to query course: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("failed to query course: %w", err)
		}
		return nil, fmt.Errorf("course %q: %w", name, ErrNotFound)
	}
	return scanCourse(rows)
}

// DeleteCourse removes a course layout. Historical rounds referencing its
// name are untouched. Returns ErrNotFound if the course does not exist.
func (s *Store) DeleteCourse(ctx context.Context, courseID string) error {
	res, err := s.conn.ExecContext(ctx, `
		DELETE FROM courses WHERE id = ? AND user_id = ?
	`, courseID, s.userID)
	if err != nil {
		return fmt.Errorf("failed to delete course: %w", err)
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

func scanCourse(rows *sql.Rows) (*schema.Course, error) {
	var c schema.Course
	var holesJSON, createdAt, updatedAt string
	var greenShapes, syncedAt sql.NullString

	err := rows.Scan(&c.ID, &c.UserID, &c.Name, &holesJSON, &greenShapes,
		&createdAt, &updatedAt, &c.Dirty, &syncedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to scan course: %w", err)
	}

	if holesJSON != "" && holesJSON != "null" {
		if err := json.Unmarshal([]byte(holesJSON), &c.Holes); err != nil {
			return nil, fmt.Errorf("failed to unmarshal course holes: %w", err)
		}
	} else {
		c.Holes = []schema.CourseHole{}
	}
	if greenShapes.Valid {
		c.GreenShapes = json.RawMessage(greenShapes.String)
	}
	c.CreatedAt = parseTime(createdAt)
	c.UpdatedAt = parseTime(updatedAt)
	c.SyncedAt = nullStringToTime(syncedAt)
	return &c, nil
}

func rawToNull(raw json.RawMessage) sql.NullString {
	if len(raw) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(raw), Valid: true}
}
