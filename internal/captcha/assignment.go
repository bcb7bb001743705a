package captcha

import "fmt"

// Match is the best candidate retained for one sprite.
type Match struct {
	Score    Score
	Box      BoundingBox
	Position Point
}

// Assignment is the sprite-to-candidate table of one attempt, indexed by
// sprite number 1..SpriteCount.
type Assignment struct {
	slots [SpriteCount]*Match
}

// Offer records a candidate for sprite if it beats the current best.
// Ties keep the earlier candidate. A candidate with no similarity never
// occupies a slot.
func (a *Assignment) Offer(sprite int, score Score, box BoundingBox) {
	if sprite < 1 || sprite > SpriteCount {
		panic(fmt.Sprintf("captcha: sprite index %d out of range", sprite))
	}
	if score.Similarity <= 0 {
		return
	}
	cur := a.slots[sprite-1]
	if cur != nil && score.Similarity <= cur.Score.Similarity {
		return
	}
	a.slots[sprite-1] = &Match{Score: score, Box: box, Position: box.Center()}
}

// Get returns the match for sprite, if any.
func (a *Assignment) Get(sprite int) (Match, bool) {
	if sprite < 1 || sprite > SpriteCount || a.slots[sprite-1] == nil {
		return Match{}, false
	}
	return *a.slots[sprite-1], true
}

// Keys counts the populated fields: a similarity and a position per
// matched sprite. A complete assignment has 2*SpriteCount keys.
func (a *Assignment) Keys() int {
	n := 0
	for _, m := range a.slots {
		if m != nil {
			n += 2
		}
	}
	return n
}

// Validate rejects incomplete assignments and assignments where two
// sprites resolved to the same position.
func (a *Assignment) Validate() error {
	if keys := a.Keys(); keys < 2*SpriteCount {
		return fmt.Errorf("%w: %d of %d keys", ErrIncompleteAssignment, keys, 2*SpriteCount)
	}

	flipped := make(map[Point]int, SpriteCount)
	for i, m := range a.slots {
		flipped[m.Position] = i + 1
	}
	if len(flipped) != SpriteCount {
		return fmt.Errorf("%w: %d distinct positions for %d sprites", ErrDuplicateAnswer, len(flipped), SpriteCount)
	}
	return nil
}
