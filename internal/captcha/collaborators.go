package captcha

import "context"

// Element is an opaque handle to a located page element.
type Element interface {
	Selector() string
}

// UI is the page the puzzle is rendered in. Implementations map their own
// wait timeouts to ErrTimeout.
type UI interface {
	Locate(ctx context.Context, selector string) (Element, error)
	ReadStyle(ctx context.Context, el Element) (string, error)
	ReadAttribute(ctx context.Context, el Element, name string) (string, error)
	// MoveAndClick moves the pointer to (dx, dy) relative to the element's
	// center and clicks.
	MoveAndClick(ctx context.Context, el Element, dx, dy int) error
	Click(ctx context.Context, el Element) error
	// PageMarker returns the class list of the element matching selector.
	PageMarker(ctx context.Context, selector string) (string, error)
}

// Fetcher downloads and decodes an image.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (Image, error)
}

// Detector proposes candidate object boxes in a background image.
type Detector interface {
	Detect(ctx context.Context, img Image) ([]BoundingBox, error)
}

// Classifier labels a single sprite. Labels listed in
// Options.RejectLabels mark placeholder sprites.
type Classifier interface {
	Classify(ctx context.Context, img Image) (string, error)
}

// Matcher scores a sprite crop against a candidate crop.
type Matcher interface {
	Similarity(sprite, candidate Image) (Score, error)
}

// Imager cuts images into the pieces the solver compares.
type Imager interface {
	Crop(img Image, box BoundingBox) (Image, error)
	SplitThirds(strip Image) ([SpriteCount]Image, error)
}

// Annotator draws the resolved assignment onto the background for
// debugging. It is optional.
type Annotator interface {
	Annotate(background Image, boxes []BoundingBox, a *Assignment) ([]byte, error)
}

// Observer is told about every finished attempt.
type Observer interface {
	AttemptFinished(ctx context.Context, report AttemptReport)
}
