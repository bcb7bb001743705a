package captcha

import "fmt"

// Resolver scores every candidate box against every sprite and keeps the
// best candidate per sprite.
type Resolver struct {
	Imager  Imager
	Matcher Matcher
	// Scratch receives the candidate crops as spec_<n>.jpg when set.
	Scratch *Scratch
}

// Resolve builds the assignment of one attempt. The result is not
// validated; call Assignment.Validate.
func (r Resolver) Resolve(background Image, boxes []BoundingBox, sprites [SpriteCount]Image) (*Assignment, error) {
	a := &Assignment{}
	for i, box := range boxes {
		if !box.Valid() {
			continue
		}
		crop, err := r.Imager.Crop(background, box)
		if err != nil {
			return nil, fmt.Errorf("failed to crop candidate %d %v: %w", i+1, box, err)
		}
		if r.Scratch != nil {
			if _, err := r.Scratch.Save(fmt.Sprintf("spec_%d.jpg", i+1), crop.Data); err != nil {
				return nil, err
			}
		}
		for j := range sprites {
			score, err := r.Matcher.Similarity(sprites[j], crop)
			if err != nil {
				return nil, fmt.Errorf("failed to score sprite %d against candidate %d: %w", j+1, i+1, err)
			}
			a.Offer(j+1, score, box)
		}
	}
	return a, nil
}
