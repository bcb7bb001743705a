package ai

import (
	"sync"

	"checkin/internal/captcha"

	"gocv.io/x/gocv"
)

// DefaultRatio is the nearest/second-nearest distance ratio a
// correspondence must beat to count as a vote.
const DefaultRatio = 0.8

// SIFTMatcher scores sprite/candidate pairs with SIFT descriptors and a
// two-nearest-neighbour ratio test.
type SIFTMatcher struct {
	ratio float64
	mu    sync.Mutex
}

// NewSIFTMatcher accepts a ratio in (0, 1]; anything else uses DefaultRatio.
func NewSIFTMatcher(ratio float64) *SIFTMatcher {
	if ratio <= 0 || ratio > 1 {
		ratio = DefaultRatio
	}
	return &SIFTMatcher{ratio: ratio}
}

// Similarity returns the ratio-test score of sprite against candidate.
// Crops without descriptors score zero.
func (m *SIFTMatcher) Similarity(sprite, candidate captcha.Image) (captcha.Score, error) {
	a, err := decode(sprite.Data, gocv.IMReadGrayScale)
	if err != nil {
		return captcha.Score{}, err
	}
	defer a.Close()

	b, err := decode(candidate.Data, gocv.IMReadGrayScale)
	if err != nil {
		return captcha.Score{}, err
	}
	defer b.Close()

	m.mu.Lock()
	defer m.mu.Unlock()

	sift := gocv.NewSIFT()
	defer sift.Close()

	maskA := gocv.NewMat()
	defer maskA.Close()
	maskB := gocv.NewMat()
	defer maskB.Close()

	_, descA := sift.DetectAndCompute(a, maskA)
	defer descA.Close()
	_, descB := sift.DetectAndCompute(b, maskB)
	defer descB.Close()

	if descA.Empty() || descB.Empty() {
		return captcha.Score{}, nil
	}

	bf := gocv.NewBFMatcher()
	defer bf.Close()

	knn := bf.KnnMatch(descA, descB, 2)
	pairs := make([]captcha.Neighbors, 0, len(knn))
	for _, candidates := range knn {
		n := captcha.Neighbors{Count: len(candidates)}
		if len(candidates) > 0 {
			n.Best = candidates[0].Distance
		}
		if len(candidates) > 1 {
			n.Second = candidates[1].Distance
		}
		pairs = append(pairs, n)
	}
	return captcha.RatioScore(pairs, m.ratio), nil
}
