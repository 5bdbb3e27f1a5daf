// Package schema defines the entities held in the local store and exchanged
// with the remote store. JSON tags use snake_case and map one to one onto
// both the SQLite columns and the remote wire format. The Dirty and SyncedAt
// fields are local bookkeeping and are never sent over the wire.
package schema

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NewID generates an opaque unique identifier for a new row.
func NewID() string {
	return uuid.New().String()
}

// Round is one played putting session. It owns its Holes, which in turn own
// their Putts. HolesPlayed and TotalPutts are maintained by the store and
// always reflect the current children.
type Round struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`

	// Course is the course name at the time the round was recorded. It is a
	// plain string, not a foreign key: renaming or deleting a Course does not
	// touch historical rounds.
	Course string `json:"course"`

	// Date is the logical occurrence time of the session, distinct from
	// CreatedAt which records when the row was written.
	Date time.Time `json:"date"`

	Completed   bool `json:"completed"`
	HolesPlayed int  `json:"holes_played"`
	TotalPutts  int  `json:"total_putts"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Dirty is true while local state has not been confirmed synced.
	Dirty    bool       `json:"-"`
	SyncedAt *time.Time `json:"-"`
}

// Validate checks required fields and value ranges.
func (r *Round) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("id is required")
	}
	if r.UserID == "" {
		return fmt.Errorf("user_id is required")
	}
	if r.Date.IsZero() {
		return fmt.Errorf("date is required")
	}
	if r.HolesPlayed < 0 {
		return fmt.Errorf("holes_played must not be negative (got %d)", r.HolesPlayed)
	}
	if r.TotalPutts < 0 {
		return fmt.Errorf("total_putts must not be negative (got %d)", r.TotalPutts)
	}
	if r.CreatedAt.IsZero() {
		return fmt.Errorf("created_at is required")
	}
	if r.UpdatedAt.IsZero() {
		return fmt.Errorf("updated_at is required")
	}
	return nil
}

// MaxHoleNumber is the highest valid hole number on a course.
const MaxHoleNumber = 18

// Hole is one hole played within a Round. Holes have no independent
// lifecycle: they are created and deleted only as part of round writes.
type Hole struct {
	ID         string    `json:"id"`
	RoundID    string    `json:"round_id"`
	HoleNumber int       `json:"hole_number"`
	Par        int       `json:"par"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Validate checks required fields and value ranges.
func (h *Hole) Validate() error {
	if h.ID == "" {
		return fmt.Errorf("id is required")
	}
	if h.RoundID == "" {
		return fmt.Errorf("round_id is required")
	}
	if h.HoleNumber < 1 || h.HoleNumber > MaxHoleNumber {
		return fmt.Errorf("hole_number must be between 1 and %d (got %d)", MaxHoleNumber, h.HoleNumber)
	}
	if h.Par < 1 {
		return fmt.Errorf("par must be positive (got %d)", h.Par)
	}
	return nil
}
