package captcha

// Neighbors holds the distances of the two nearest candidate descriptors
// for one sprite descriptor. Count is how many neighbors were found (0-2).
type Neighbors struct {
	Best   float64
	Second float64
	Count  int
}

// RatioScore applies the discriminative-ratio filter: a correspondence is
// accepted only when its best distance is below ratio times the second
// best. Similarity is accepted/attempted and votes is accepted. Empty
// input and zero acceptances both yield a zero score.
func RatioScore(pairs []Neighbors, ratio float64) Score {
	if len(pairs) == 0 {
		return Score{}
	}

	accepted := 0
	for _, p := range pairs {
		if p.Count == 2 && p.Best < ratio*p.Second {
			accepted++
		}
	}
	if accepted == 0 {
		return Score{}
	}
	return Score{
		Similarity: float64(accepted) / float64(len(pairs)),
		Votes:      accepted,
	}
}
