package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kwatson/puttlog/internal/schema"
)

func TestGetAllPuttsFlattens(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	attempts := []schema.Attempt{
		{HoleNumber: 1, Distance: 3.0, Made: false, MissDirection: schema.MissLeft,
			End: &schema.Proximity{DX: 0.4, DY: -0.2}},
		{HoleNumber: 1, Distance: 0.5, Made: true},
		{HoleNumber: 4, Distance: 7.5, Made: false, MissDirection: schema.MissShort},
	}
	if _, err := s.SaveRound(ctx, "Lakeside", time.Now(), attempts, nil); err != nil {
		t.Fatalf("SaveRound failed: %v", err)
	}

	putts, err := s.GetAllPutts(ctx)
	if err != nil {
		t.Fatalf("GetAllPutts failed: %v", err)
	}
	if len(putts) != 3 {
		t.Fatalf("expected 3 putts, got %d", len(putts))
	}

	byHole := map[int]int{}
	for _, p := range putts {
		byHole[p.HoleNumber]++
	}
	if byHole[1] != 2 || byHole[4] != 1 {
		t.Errorf("expected hole numbers restored from join, got %v", byHole)
	}

	for _, p := range putts {
		if p.HoleNumber == 1 && p.PuttNumber == 1 {
			if p.End == nil || p.End.DX != 0.4 || p.End.DY != -0.2 {
				t.Errorf("expected end proximity round-trip, got %+v", p.End)
			}
			if p.MissDirection != schema.MissLeft {
				t.Errorf("expected miss direction left, got %q", p.MissDirection)
			}
		}
	}
}

func TestDeletePuttRenumbers(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	attempts := []schema.Attempt{
		{HoleNumber: 1, Distance: 6.0, Made: false},
		{HoleNumber: 1, Distance: 2.0, Made: false},
		{HoleNumber: 1, Distance: 0.7, Made: true},
	}
	id, err := s.SaveRound(ctx, "Lakeside", time.Now(), attempts, nil)
	if err != nil {
		t.Fatalf("SaveRound failed: %v", err)
	}

	putts, err := s.PuttsForRound(ctx, id)
	if err != nil {
		t.Fatalf("PuttsForRound failed: %v", err)
	}
	if len(putts) != 3 {
		t.Fatalf("expected 3 putts, got %d", len(putts))
	}

	// Delete the middle putt; the survivors must renumber to 1..2.
	if err := s.DeletePutt(ctx, putts[1].ID); err != nil {
		t.Fatalf("DeletePutt failed: %v", err)
	}

	remaining, err := s.PuttsForRound(ctx, id)
	if err != nil {
		t.Fatalf("PuttsForRound failed: %v", err)
	}
	if len(remaining) != 2 {
		t.Fatalf("expected 2 putts, got %d", len(remaining))
	}
	for i, p := range remaining {
		if p.PuttNumber != i+1 {
			t.Errorf("expected contiguous putt numbers, position %d has %d", i, p.PuttNumber)
		}
		if !p.Dirty {
			t.Errorf("expected renumbered putt %s to be dirty", p.ID)
		}
	}

	r, err := s.GetRound(ctx, id)
	if err != nil {
		t.Fatalf("GetRound failed: %v", err)
	}
	if r.TotalPutts != 2 {
		t.Errorf("expected round totalPutts 2, got %d", r.TotalPutts)
	}
	if !r.Dirty {
		t.Error("expected round dirty after putt delete")
	}
}

func TestDeletePuttNotFound(t *testing.T) {
	s := setupStore(t)

	err := s.DeletePutt(context.Background(), schema.NewID())
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStatsBuckets(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	attempts := []schema.Attempt{
		{HoleNumber: 1, Distance: 0.5, Made: true},
		{HoleNumber: 1, Distance: 0.9, Made: true},
		{HoleNumber: 2, Distance: 2.5, Made: false},
		{HoleNumber: 3, Distance: 9.0, Made: false},
	}
	if _, err := s.SaveRound(ctx, "Lakeside", time.Now(), attempts, nil); err != nil {
		t.Fatalf("SaveRound failed: %v", err)
	}

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.TotalPutts != 4 || stats.TotalMade != 2 {
		t.Errorf("expected 4 putts 2 made, got %d/%d", stats.TotalPutts, stats.TotalMade)
	}

	byLabel := map[string]DistanceBucket{}
	for _, b := range stats.Buckets {
		byLabel[b.Label] = b
	}
	if b := byLabel["0-1m"]; b.Attempts != 2 || b.Made != 2 {
		t.Errorf("0-1m bucket: got %d/%d", b.Made, b.Attempts)
	}
	if b := byLabel["2-3m"]; b.Attempts != 1 || b.Made != 0 {
		t.Errorf("2-3m bucket: got %d/%d", b.Made, b.Attempts)
	}
	if b := byLabel["5m+"]; b.Attempts != 1 {
		t.Errorf("5m+ bucket: got %d attempts", b.Attempts)
	}
	if rate := byLabel["0-1m"].MakeRate(); rate != 1.0 {
		t.Errorf("expected 0-1m make rate 1.0, got %g", rate)
	}
}
