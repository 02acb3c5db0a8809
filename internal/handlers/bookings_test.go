package handlers

import (
	"math"
	"testing"
)

func TestFoldRatingFirstRatingStandsAlone(t *testing.T) {
	// A driver with completed but unrated trips has no aggregate yet; the first
	// rating must come through unchanged rather than being diluted by ride count.
	got := foldRating(0, 0, 5)
	if got != 5 {
		t.Errorf("foldRating(0, 0, 5) = %v, want 5", got)
	}
}

func TestFoldRating(t *testing.T) {
	tests := []struct {
		name    string
		current float64
		count   int
		rating  float64
		want    float64
	}{
		{"second rating averages with first", 5, 1, 3, 4},
		{"low rating pulls aggregate down", 4.5, 2, 1, 8.0 / 3},
		{"identical rating leaves aggregate unchanged", 4, 3, 4, 4},
		{"large history dampens one outlier", 4.8, 99, 1, (4.8*99 + 1) / 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := foldRating(tt.current, tt.count, tt.rating)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("foldRating(%v, %d, %v) = %v, want %v", tt.current, tt.count, tt.rating, got, tt.want)
			}
		})
	}
}

func TestFoldRatingSequenceMatchesArithmeticMean(t *testing.T) {
	ratings := []float64{5, 3, 4, 2, 5, 1}

	var aggregate float64
	var sum float64
	for i, r := range ratings {
		aggregate = foldRating(aggregate, i, r)
		sum += r
	}

	want := sum / float64(len(ratings))
	if math.Abs(aggregate-want) > 1e-9 {
		t.Errorf("folded aggregate = %v, want arithmetic mean %v", aggregate, want)
	}

	// Re-folding the last rating again would skew the mean; the handler guards
	// this by rejecting a second rating on the same booking.
	skewed := foldRating(aggregate, len(ratings), ratings[len(ratings)-1])
	if math.Abs(skewed-want) < 1e-9 {
		t.Error("expected a repeated fold to move the aggregate, it did not")
	}
}
