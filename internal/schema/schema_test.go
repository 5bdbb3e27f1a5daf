package schema

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func validRound() *Round {
	now := time.Now().UTC()
	return &Round{
		ID:        NewID(),
		UserID:    NewID(),
		Course:    "Lakeside",
		Date:      now,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestRoundValidate(t *testing.T) {
	if err := validRound().Validate(); err != nil {
		t.Errorf("expected valid round, got %v", err)
	}

	r := validRound()
	r.ID = ""
	if err := r.Validate(); err == nil {
		t.Error("expected error for missing id")
	}

	r = validRound()
	r.UserID = ""
	if err := r.Validate(); err == nil {
		t.Error("expected error for missing user_id")
	}
}

func TestHoleValidateRange(t *testing.T) {
	tests := []struct {
		name   string
		number int
		par    int
		ok     bool
	}{
		{"first hole", 1, 4, true},
		{"last hole", 18, 3, true},
		{"zero hole", 0, 4, false},
		{"beyond eighteen", 19, 4, false},
		{"zero par", 5, 0, false},
	}

	now := time.Now().UTC()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &Hole{
				ID: NewID(), RoundID: NewID(),
				HoleNumber: tt.number, Par: tt.par,
				CreatedAt: now, UpdatedAt: now,
			}
			err := h.Validate()
			if tt.ok && err != nil {
				t.Errorf("expected valid, got %v", err)
			}
			if !tt.ok && err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestPuttValidateEnums(t *testing.T) {
	now := time.Now().UTC()
	p := &Putt{
		ID: NewID(), HoleID: NewID(), RoundID: NewID(), UserID: NewID(),
		PuttNumber: 1, Distance: 2.0,
		CreatedAt: now, UpdatedAt: now,
	}
	if err := p.Validate(); err != nil {
		t.Errorf("expected valid putt, got %v", err)
	}

	p.MissDirection = "sideways"
	if err := p.Validate(); err == nil {
		t.Error("expected error for unknown miss direction")
	}

	p.MissDirection = MissLong
	p.DistanceUnit = "yards"
	if err := p.Validate(); err == nil {
		t.Error("expected error for unknown distance unit")
	}

	p.DistanceUnit = UnitFeet
	p.Distance = -1
	if err := p.Validate(); err == nil {
		t.Error("expected error for negative distance")
	}
}

func TestLocalOnlyFieldsStayOffTheWire(t *testing.T) {
	r := validRound()
	r.Dirty = true
	now := time.Now().UTC()
	r.SyncedAt = &now

	data, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if strings.Contains(string(data), "dirty") || strings.Contains(string(data), "synced_at") {
		t.Errorf("local bookkeeping leaked onto the wire: %s", data)
	}
}

func TestPuttWireShape(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	p := &Putt{
		ID: "p1", HoleID: "h1", RoundID: "r1", UserID: "u1",
		PuttNumber: 1, Distance: 3.0,
		End:       &Proximity{DX: 0.4, DY: -0.2},
		CreatedAt: now, UpdatedAt: now,
	}

	data, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	s := string(data)
	for _, want := range []string{`"putt_number":1`, `"end_proximity":{"dx":0.4,"dy":-0.2}`, `"hole_id":"h1"`} {
		if !strings.Contains(s, want) {
			t.Errorf("expected wire JSON to contain %s, got %s", want, s)
		}
	}
	if strings.Contains(s, "start_proximity") {
		t.Errorf("expected absent proximity omitted, got %s", s)
	}
}
