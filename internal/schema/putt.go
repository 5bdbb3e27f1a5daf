package schema

import (
	"fmt"
	"time"
)

// MissDirection classifies where a missed putt finished relative to the
// hole. The empty value means unknown or not recorded.
type MissDirection string

const (
	MissNone  MissDirection = ""
	MissLeft  MissDirection = "left"
	MissRight MissDirection = "right"
	MissShort MissDirection = "short"
	MissLong  MissDirection = "long"
)

// Valid reports whether m is one of the known directions.
func (m MissDirection) Valid() bool {
	switch m {
	case MissNone, MissLeft, MissRight, MissShort, MissLong:
		return true
	}
	return false
}

// DistanceUnit is the unit a putt distance was recorded in. Stored values
// are always meters; the unit records what the user entered.
type DistanceUnit string

const (
	UnitMeters DistanceUnit = "meters"
	UnitFeet   DistanceUnit = "feet"
)

// Valid reports whether u is a known unit.
func (u DistanceUnit) Valid() bool {
	return u == UnitMeters || u == UnitFeet
}

// Proximity is a 2D offset in meters from a target point: DX horizontal,
// DY vertical on the green surface.
type Proximity struct {
	DX float64 `json:"dx"`
	DY float64 `json:"dy"`
}

// PinPosition locates the pin in the abstract canvas coordinate space used
// by the green editor.
type PinPosition struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Putt is one putt attempt within a Hole. RoundID and UserID are
// denormalized copies of the ancestor keys kept purely for query
// efficiency; the store guarantees they always equal the owning Hole's
// round and the owning Round's user.
type Putt struct {
	ID      string `json:"id"`
	HoleID  string `json:"hole_id"`
	RoundID string `json:"round_id"`
	UserID  string `json:"user_id"`

	// PuttNumber is the 1-based sequence within the hole. For any hole the
	// numbers form a contiguous 1..N run with no gaps or duplicates.
	PuttNumber int `json:"putt_number"`

	Distance float64 `json:"distance"`
	Made     bool    `json:"made"`

	End   *Proximity   `json:"end_proximity,omitempty"`
	Start *Proximity   `json:"start_proximity,omitempty"`
	Pin   *PinPosition `json:"pin_position,omitempty"`

	MissDirection MissDirection `json:"miss_direction,omitempty"`
	DistanceUnit  DistanceUnit  `json:"distance_unit"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Dirty    bool       `json:"-"`
	SyncedAt *time.Time `json:"-"`
}

// Validate checks required fields and value ranges.
func (p *Putt) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("id is required")
	}
	if p.HoleID == "" {
		return fmt.Errorf("hole_id is required")
	}
	if p.RoundID == "" {
		return fmt.Errorf("round_id is required")
	}
	if p.UserID == "" {
		return fmt.Errorf("user_id is required")
	}
	if p.PuttNumber < 1 {
		return fmt.Errorf("putt_number must be positive (got %d)", p.PuttNumber)
	}
	if p.Distance < 0 {
		return fmt.Errorf("distance must not be negative (got %g)", p.Distance)
	}
	if !p.MissDirection.Valid() {
		return fmt.Errorf("unknown miss_direction %q", p.MissDirection)
	}
	if p.DistanceUnit != "" && !p.DistanceUnit.Valid() {
		return fmt.Errorf("unknown distance_unit %q", p.DistanceUnit)
	}
	return nil
}

// Attempt is an input putt record as produced by the UI or the legacy
// importer, before it has been grouped into holes and assigned identifiers.
// HoleNumber zero means the putt was not assigned to a hole; such putts are
// dropped from the round rather than rejected.
type Attempt struct {
	HoleNumber int     `json:"hole_number"`
	Distance   float64 `json:"distance"`
	Made       bool    `json:"made"`

	End   *Proximity   `json:"end_proximity,omitempty"`
	Start *Proximity   `json:"start_proximity,omitempty"`
	Pin   *PinPosition `json:"pin_position,omitempty"`

	MissDirection MissDirection `json:"miss_direction,omitempty"`
	DistanceUnit  DistanceUnit  `json:"distance_unit,omitempty"`
}

// FlatPutt is a putt joined with its hole number, as returned by the
// aggregate-statistics read path.
type FlatPutt struct {
	Putt
	HoleNumber int `json:"hole_number"`
}
