package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kwatson/puttlog/internal/schema"
)

const puttColumns = `id, hole_id, round_id, user_id, putt_number, distance,
	made, end_dx, end_dy, start_dx, start_dy, pin_x, pin_y,
	miss_direction, distance_unit, created_at, updated_at, dirty, synced_at`

const puttColumnsP = `p.id, p.hole_id, p.round_id, p.user_id, p.putt_number, p.distance,
	p.made, p.end_dx, p.end_dy, p.start_dx, p.start_dy, p.pin_x, p.pin_y,
	p.miss_direction, p.distance_unit, p.created_at, p.updated_at, p.dirty, p.synced_at`

// PuttsForRound returns every putt under the round, ordered by hole then
// putt number.
func (s *Store) PuttsForRound(ctx context.Context, roundID string) ([]*schema.Putt, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT `+puttColumnsP+`
		FROM putts p
		JOIN holes h ON h.id = p.hole_id
		WHERE p.round_id = ?
		ORDER BY h.hole_number ASC, p.putt_number ASC
	`, roundID)
	if err != nil {
		return nil, fmt.Errorf("failed to query putts: %w", err)
	}
	defer rows.Close()

	return scanPutts(rows)
}

// DirtyPuttsForRound returns the round's putts still awaiting upload.
func (s *Store) DirtyPuttsForRound(ctx context.Context, roundID string) ([]*schema.Putt, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT `+puttColumns+`
		FROM putts
		WHERE round_id = ? AND dirty = 1
		ORDER BY putt_number ASC
	`, roundID)
	if err != nil {
		return nil, fmt.Errorf("failed to query dirty putts: %w", err)
	}
	defer rows.Close()

	return scanPutts(rows)
}

// GetAllPutts flattens every putt for the current user back into attempt
// records joined with their hole numbers. This is the read path for
// aggregate statistics.
func (s *Store) GetAllPutts(ctx context.Context) ([]*schema.FlatPutt, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT `+puttColumnsP+`, h.hole_number
		FROM putts p
		JOIN holes h ON h.id = p.hole_id
		WHERE p.user_id = ?
		ORDER BY p.created_at ASC, h.hole_number ASC, p.putt_number ASC
	`, s.userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query putts: %w", err)
	}
	defer rows.Close()

	var flat []*schema.FlatPutt
	for rows.Next() {
		var f schema.FlatPutt
		if err := scanPuttInto(rows, &f.Putt, &f.HoleNumber); err != nil {
			return nil, err
		}
		flat = append(flat, &f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating putts: %w", err)
	}
	return flat, nil
}

// DeletePutt removes one putt and renumbers the hole's remaining putts to
// a contiguous 1..N sequence, all in one transaction. The owning round's
// total count is adjusted and re-marked dirty. Returns ErrNotFound if the
// putt does not exist for the current user.
func (s *Store) DeletePutt(ctx context.Context, puttID string) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var holeID, roundID string
	err = tx.QueryRowContext(ctx, `
		SELECT hole_id, round_id FROM putts WHERE id = ? AND user_id = ?
	`, puttID, s.userID).Scan(&holeID, &roundID)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("putt %s: %w", puttID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to look up putt: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM putts WHERE id = ?`, puttID); err != nil {
		return fmt.Errorf("failed to delete putt: %w", err)
	}

	// Close the gap: reassign 1..N in the surviving order.
	now := formatTime(time.Now().UTC())
	_, err = tx.ExecContext(ctx, `
		UPDATE putts SET
			putt_number = (
				SELECT COUNT(*) FROM putts p2
				WHERE p2.hole_id = putts.hole_id AND p2.putt_number <= putts.putt_number
			),
			updated_at = ?,
			dirty = 1
		WHERE hole_id = ?
	`, now, holeID)
	if err != nil {
		return fmt.Errorf("failed to renumber putts: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE rounds SET total_putts = total_putts - 1, updated_at = ?, dirty = 1
		WHERE id = ?
	`, now, roundID)
	if err != nil {
		return fmt.Errorf("failed to update round totals: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func scanPutts(rows *sql.Rows) ([]*schema.Putt, error) {
	var putts []*schema.Putt
	for rows.Next() {
		var p schema.Putt
		if err := scanPuttInto(rows, &p); err != nil {
			return nil, err
		}
		putts = append(putts, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating putts: %w", err)
	}
	return putts, nil
}

// scanPuttInto scans a putt row plus any trailing extra columns.
func scanPuttInto(rows *sql.Rows, p *schema.Putt, extra ...any) error {
	var endDX, endDY, startDX, startDY, pinX, pinY sql.NullFloat64
	var miss, unit, createdAt, updatedAt string
	var syncedAt sql.NullString

	dest := []any{&p.ID, &p.HoleID, &p.RoundID, &p.UserID, &p.PuttNumber,
		&p.Distance, &p.Made, &endDX, &endDY, &startDX, &startDY, &pinX, &pinY,
		&miss, &unit, &createdAt, &updatedAt, &p.Dirty, &syncedAt}
	dest = append(dest, extra...)

	if err := rows.Scan(dest...); err != nil {
		return fmt.Errorf("failed to scan putt: %w", err)
	}

	if endDX.Valid {
		p.End = &schema.Proximity{DX: endDX.Float64, DY: endDY.Float64}
	}
	if startDX.Valid {
		p.Start = &schema.Proximity{DX: startDX.Float64, DY: startDY.Float64}
	}
	if pinX.Valid {
		p.Pin = &schema.PinPosition{X: pinX.Float64, Y: pinY.Float64}
	}
	p.MissDirection = schema.MissDirection(miss)
	p.DistanceUnit = schema.DistanceUnit(unit)
	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updatedAt)
	p.SyncedAt = nullStringToTime(syncedAt)
	return nil
}
