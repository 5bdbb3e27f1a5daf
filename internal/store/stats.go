package store

import (
	"context"
	"fmt"
)

// DistanceBucket aggregates make rate over a distance range in meters.
// To == 0 means open-ended.
type DistanceBucket struct {
	Label    string  `json:"label"`
	From     float64 `json:"from"`
	To       float64 `json:"to"`
	Attempts int     `json:"attempts"`
	Made     int     `json:"made"`
}

// MakeRate returns made/attempts, or 0 for an empty bucket.
func (b DistanceBucket) MakeRate() float64 {
	if b.Attempts == 0 {
		return 0
	}
	return float64(b.Made) / float64(b.Attempts)
}

// PuttingStats summarizes all recorded putts for the current user.
type PuttingStats struct {
	TotalPutts int              `json:"total_putts"`
	TotalMade  int              `json:"total_made"`
	Buckets    []DistanceBucket `json:"buckets"`
}

// Stats flattens every putt for the current user and aggregates make rate
// by distance bucket.
func (s *Store) Stats(ctx context.Context) (*PuttingStats, error) {
	putts, err := s.GetAllPutts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load putts: %w", err)
	}

	stats := &PuttingStats{
		Buckets: []DistanceBucket{
			{Label: "0-1m", From: 0, To: 1},
			{Label: "1-2m", From: 1, To: 2},
			{Label: "2-3m", From: 2, To: 3},
			{Label: "3-5m", From: 3, To: 5},
			{Label: "5m+", From: 5, To: 0},
		},
	}

	for _, p := range putts {
		stats.TotalPutts++
		if p.Made {
			stats.TotalMade++
		}
		for i := range stats.Buckets {
			b := &stats.Buckets[i]
			if p.Distance >= b.From && (b.To == 0 || p.Distance < b.To) {
				b.Attempts++
				if p.Made {
					b.Made++
				}
				break
			}
		}
	}
	return stats, nil
}
