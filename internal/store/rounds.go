package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/kwatson/puttlog/internal/schema"
)

// SaveOptions carries optional preset identity and timestamps for a round
// write. The legacy importer uses it to replay historical rounds without
// corrupting their dates; regular callers leave it zero.
type SaveOptions struct {
	ID        string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SaveRound records a finalized session in one transaction.
//
// Attempts are grouped by hole number; attempts without a hole number are
// dropped from the round, not rejected. One Hole row is created per group
// (par defaults to 4 until course definitions carry it through) and one
// Putt row per kept attempt. All new rows are marked dirty.
//
// When opts.ID is set the round row is upserted rather than inserted, so a
// replay of the same round (e.g. a retried migration) cannot duplicate it.
// Returns the round id.
func (s *Store) SaveRound(ctx context.Context, course string, date time.Time, attempts []schema.Attempt, opts *SaveOptions) (string, error) {
	if opts == nil {
		opts = &SaveOptions{}
	}

	now := time.Now().UTC()
	roundID := opts.ID
	if roundID == "" {
		roundID = schema.NewID()
	}
	createdAt := opts.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	updatedAt := opts.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = now
	}

	holes, putts := s.buildChildren(roundID, createdAt, updatedAt, attempts)

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO rounds (id, user_id, course, date, completed, holes_played,
			total_putts, created_at, updated_at, dirty, synced_at)
		VALUES (?, ?, ?, ?, 1, ?, ?, ?, ?, 1, NULL)
		ON CONFLICT(id) DO UPDATE SET
			course = excluded.course,
			date = excluded.date,
			holes_played = excluded.holes_played,
			total_putts = excluded.total_putts,
			updated_at = excluded.updated_at,
			dirty = 1
	`, roundID, s.userID, course, formatTime(date), len(holes), len(putts),
		formatTime(createdAt), formatTime(updatedAt))
	if err != nil {
		return "", fmt.Errorf("failed to insert round: %w", err)
	}

	// A replayed round may already have children; replace them wholesale.
	if err := deleteChildrenTx(ctx, tx, roundID); err != nil {
		return "", err
	}
	if err := insertChildrenTx(ctx, tx, holes, putts); err != nil {
		return "", err
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit transaction: %w", err)
	}
	return roundID, nil
}

// UpdateRound replaces a round's putts by deleting every Hole and Putt
// under it and recreating them from attempts, in one transaction. The
// round's created_at is preserved; updated_at is bumped and the round is
// re-marked dirty. Returns ErrNotFound if the round does not exist.
//
// Replacement rather than merge guarantees no orphaned or duplicated
// children after an edit; edited putts get new ids each time.
func (s *Store) UpdateRound(ctx context.Context, roundID string, attempts []schema.Attempt, opts *SaveOptions) error {
	now := time.Now().UTC()
	updatedAt := now
	if opts != nil && !opts.UpdatedAt.IsZero() {
		updatedAt = opts.UpdatedAt
	}

	holes, putts := s.buildChildren(roundID, now, updatedAt, attempts)

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE rounds SET holes_played = ?, total_putts = ?, updated_at = ?, dirty = 1
		WHERE id = ? AND user_id = ?
	`, len(holes), len(putts), formatTime(updatedAt), roundID, s.userID)
	if err != nil {
		return fmt.Errorf("failed to update round: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("round %s: %w", roundID, ErrNotFound)
	}

	if err := deleteChildrenTx(ctx, tx, roundID); err != nil {
		return err
	}
	if err := insertChildrenTx(ctx, tx, holes, putts); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// buildChildren groups attempts by hole number and materializes Hole and
// Putt rows. Putt numbers restart at 1 within each hole, preserving input
// order; round_id and user_id are stamped onto every putt. The caller
// supplies the timestamps so a replayed historical round keeps its dates
// on the children as well as the round row.
func (s *Store) buildChildren(roundID string, createdAt, updatedAt time.Time, attempts []schema.Attempt) ([]*schema.Hole, []*schema.Putt) {
	byHole := make(map[int][]schema.Attempt)
	for _, a := range attempts {
		if a.HoleNumber < 1 || a.HoleNumber > schema.MaxHoleNumber {
			continue // unnumbered or out-of-range putts are dropped from the round
		}
		byHole[a.HoleNumber] = append(byHole[a.HoleNumber], a)
	}

	numbers := make([]int, 0, len(byHole))
	for n := range byHole {
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)

	var holes []*schema.Hole
	var putts []*schema.Putt
	for _, n := range numbers {
		hole := &schema.Hole{
			ID:         schema.NewID(),
			RoundID:    roundID,
			HoleNumber: n,
			Par:        4, // TODO: take par from the matching course definition
			CreatedAt:  createdAt,
			UpdatedAt:  updatedAt,
		}
		holes = append(holes, hole)

		for i, a := range byHole[n] {
			unit := a.DistanceUnit
			if unit == "" {
				unit = schema.UnitMeters
			}
			putts = append(putts, &schema.Putt{
				ID:            schema.NewID(),
				HoleID:        hole.ID,
				RoundID:       roundID,
				UserID:        s.userID,
				PuttNumber:    i + 1,
				Distance:      a.Distance,
				Made:          a.Made,
				End:           a.End,
				Start:         a.Start,
				Pin:           a.Pin,
				MissDirection: a.MissDirection,
				DistanceUnit:  unit,
				CreatedAt:     createdAt,
				UpdatedAt:     updatedAt,
				Dirty:         true,
			})
		}
	}
	return holes, putts
}

func deleteChildrenTx(ctx context.Context, tx *sql.Tx, roundID string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM putts WHERE round_id = ?`, roundID); err != nil {
		return fmt.Errorf("failed to delete putts: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM holes WHERE round_id = ?`, roundID); err != nil {
		return fmt.Errorf("failed to delete holes: %w", err)
	}
	return nil
}

func insertChildrenTx(ctx context.Context, tx *sql.Tx, holes []*schema.Hole, putts []*schema.Putt) error {
	for _, h := range holes {
		if err := insertHoleTx(ctx, tx, h); err != nil {
			return err
		}
	}
	for _, p := range putts {
		if err := insertPuttTx(ctx, tx, p); err != nil {
			return err
		}
	}
	return nil
}

func insertHoleTx(ctx context.Context, tx *sql.Tx, h *schema.Hole) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO holes (id, round_id, hole_number, par, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			hole_number = excluded.hole_number,
			par = excluded.par,
			updated_at = excluded.updated_at
	`, h.ID, h.RoundID, h.HoleNumber, h.Par, formatTime(h.CreatedAt), formatTime(h.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert hole: %w", err)
	}
	return nil
}

func insertPuttTx(ctx context.Context, tx *sql.Tx, p *schema.Putt) error {
	var endDX, endDY, startDX, startDY, pinX, pinY sql.NullFloat64
	if p.End != nil {
		endDX = sql.NullFloat64{Float64: p.End.DX, Valid: true}
		endDY = sql.NullFloat64{Float64: p.End.DY, Valid: true}
	}
	if p.Start != nil {
		startDX = sql.NullFloat64{Float64: p.Start.DX, Valid: true}
		startDY = sql.NullFloat64{Float64: p.Start.DY, Valid: true}
	}
	if p.Pin != nil {
		pinX = sql.NullFloat64{Float64: p.Pin.X, Valid: true}
		pinY = sql.NullFloat64{Float64: p.Pin.Y, Valid: true}
	}

	dirty := 0
	if p.Dirty {
		dirty = 1
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO putts (id, hole_id, round_id, user_id, putt_number, distance,
			made, end_dx, end_dy, start_dx, start_dy, pin_x, pin_y,
			miss_direction, distance_unit, created_at, updated_at, dirty, synced_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			putt_number = excluded.putt_number,
			distance = excluded.distance,
			made = excluded.made,
			end_dx = excluded.end_dx,
			end_dy = excluded.end_dy,
			start_dx = excluded.start_dx,
			start_dy = excluded.start_dy,
			pin_x = excluded.pin_x,
			pin_y = excluded.pin_y,
			miss_direction = excluded.miss_direction,
			distance_unit = excluded.distance_unit,
			updated_at = excluded.updated_at,
			dirty = excluded.dirty,
			synced_at = excluded.synced_at
	`, p.ID, p.HoleID, p.RoundID, p.UserID, p.PuttNumber, p.Distance,
		p.Made, endDX, endDY, startDX, startDY, pinX, pinY,
		string(p.MissDirection), string(p.DistanceUnit),
		formatTime(p.CreatedAt), formatTime(p.UpdatedAt), dirty, timeToNullString(p.SyncedAt))
	if err != nil {
		return fmt.Errorf("failed to insert putt: %w", err)
	}
	return nil
}

// GetRounds returns all rounds for the current user, most recent date
// first.
func (s *Store) GetRounds(ctx context.Context) ([]*schema.Round, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, user_id, course, date, completed, holes_played, total_putts,
		       created_at, updated_at, dirty, synced_at
		FROM rounds
		WHERE user_id = ?
		ORDER BY date DESC
	`, s.userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query rounds: %w", err)
	}
	defer rows.Close()

	return scanRounds(rows)
}

// GetRound retrieves a single round by id. Returns ErrNotFound if it does
// not exist for the current user.
func (s *Store) GetRound(ctx context.Context, id string) (*schema.Round, error) {
	row := s.conn.QueryRowContext(ctx, `
		SELECT id, user_id, course, date, completed, holes_played, total_putts,
		       created_at, updated_at, dirty, synced_at
		FROM rounds
		WHERE id = ? AND user_id = ?
	`, id, s.userID)

	r, err := scanRound(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("round %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get round: %w", err)
	}
	return r, nil
}

// HolesForRound returns the round's holes ordered by hole number.
func (s *Store) HolesForRound(ctx context.Context, roundID string) ([]*schema.Hole, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, round_id, hole_number, par, created_at, updated_at
		FROM holes
		WHERE round_id = ?
		ORDER BY hole_number ASC
	`, roundID)
	if err != nil {
		return nil, fmt.Errorf("failed to query holes: %w", err)
	}
	defer rows.Close()

	var holes []*schema.Hole
	for rows.Next() {
		var h schema.Hole
		var createdAt, updatedAt string
		if err := rows.Scan(&h.ID, &h.RoundID, &h.HoleNumber, &h.Par, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan hole: %w", err)
		}
		h.CreatedAt = parseTime(createdAt)
		h.UpdatedAt = parseTime(updatedAt)
		holes = append(holes, &h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating holes: %w", err)
	}
	return holes, nil
}

// DeleteRound removes a round and cascades to its holes and putts in one
// transaction: putts first, then holes, then the round itself. Returns
// ErrNotFound if the round does not exist for the current user.
func (s *Store) DeleteRound(ctx context.Context, roundID string) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := deleteChildrenTx(ctx, tx, roundID); err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM rounds WHERE id = ? AND user_id = ?`, roundID, s.userID)
	if err != nil {
		return fmt.Errorf("failed to delete round: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("round %s: %w", roundID, ErrNotFound)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRound(row rowScanner) (*schema.Round, error) {
	var r schema.Round
	var date, createdAt, updatedAt string
	var syncedAt sql.NullString

	err := row.Scan(&r.ID, &r.UserID, &r.Course, &date, &r.Completed,
		&r.HolesPlayed, &r.TotalPutts, &createdAt, &updatedAt, &r.Dirty, &syncedAt)
	if err != nil {
		return nil, err
	}

	r.Date = parseTime(date)
	r.CreatedAt = parseTime(createdAt)
	r.UpdatedAt = parseTime(updatedAt)
	r.SyncedAt = nullStringToTime(syncedAt)
	return &r, nil
}

func scanRounds(rows *sql.Rows) ([]*schema.Round, error) {
	var rounds []*schema.Round
	for rows.Next() {
		r, err := scanRound(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan round: %w", err)
		}
		rounds = append(rounds, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rounds: %w", err)
	}
	return rounds, nil
}
