package captcha

import (
	"math"
	"testing"
)

func TestRatioScore(t *testing.T) {
	tests := []struct {
		name  string
		pairs []Neighbors
		ratio float64
		want  Score
	}{
		{"no descriptors", nil, 0.8, Score{}},
		{"none accepted", []Neighbors{{Best: 9, Second: 10, Count: 2}}, 0.8, Score{}},
		{"all accepted", []Neighbors{{Best: 1, Second: 10, Count: 2}, {Best: 2, Second: 10, Count: 2}}, 0.8, Score{Similarity: 1, Votes: 2}},
		{"half accepted", []Neighbors{{Best: 1, Second: 10, Count: 2}, {Best: 9, Second: 10, Count: 2}}, 0.8, Score{Similarity: 0.5, Votes: 1}},
		{"single neighbor counts as attempted", []Neighbors{{Best: 1, Second: 10, Count: 2}, {Best: 1, Count: 1}}, 0.8, Score{Similarity: 0.5, Votes: 1}},
		{"boundary is rejected", []Neighbors{{Best: 8, Second: 10, Count: 2}}, 0.8, Score{}},
		{"looser ratio accepts", []Neighbors{{Best: 8, Second: 10, Count: 2}}, 0.9, Score{Similarity: 1, Votes: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RatioScore(tt.pairs, tt.ratio)
			if got.Votes != tt.want.Votes || math.Abs(got.Similarity-tt.want.Similarity) > 1e-9 {
				t.Errorf("RatioScore() = %+v, want %+v", got, tt.want)
			}
			if math.IsNaN(got.Similarity) {
				t.Error("similarity must never be NaN")
			}
		})
	}
}
