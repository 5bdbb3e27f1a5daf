package schema

import (
	"encoding/json"
	"fmt"
	"time"
)

// CourseHole is one hole in a course layout definition.
type CourseHole struct {
	Number   int     `json:"number"`
	Par      int     `json:"par"`
	Distance float64 `json:"distance"`

	// GreenShape is an opaque geometry blob owned by the green editor.
	// It is stored and synced verbatim, never merged field by field.
	GreenShape json.RawMessage `json:"green_shape,omitempty"`
}

// Course is a reusable named layout, independent of recorded rounds.
// Rounds reference a course by name only, so editing or deleting a course
// leaves historical rounds untouched.
type Course struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`
	Name   string `json:"name"`

	Holes []CourseHole `json:"holes"`

	// GreenShapes is a serialized geometry override applying to the whole
	// course, same opacity rules as CourseHole.GreenShape.
	GreenShapes json.RawMessage `json:"green_shapes,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Dirty    bool       `json:"-"`
	SyncedAt *time.Time `json:"-"`
}

// Validate checks required fields.
func (c *Course) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("id is required")
	}
	if c.UserID == "" {
		return fmt.Errorf("user_id is required")
	}
	if c.Name == "" {
		return fmt.Errorf("name is required")
	}
	for _, h := range c.Holes {
		if h.Number < 1 || h.Number > MaxHoleNumber {
			return fmt.Errorf("hole number must be between 1 and %d (got %d)", MaxHoleNumber, h.Number)
		}
	}
	return nil
}
