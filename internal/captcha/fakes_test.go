package captcha

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"testing"

	"checkin/internal/logger"
)

const (
	bgURL     = "https://captcha.test/bg.jpg"
	spriteURL = "https://captcha.test/sprite.jpg"
	bgStyle   = "background-image: url(" + bgURL + "); width: 300px; height: 200px;"
)

type fakeElement string

func (e fakeElement) Selector() string { return string(e) }

type move struct{ dx, dy int }

// fakeUI serves a puzzle widget. Styles are returned in order for each read
// of the background element; the last one repeats.
type fakeUI struct {
	styles     []string
	styleReads int
	spriteSrc  string
	markers    []string
	markerRead int
	missing    map[string]bool
	clicks     []string
	moves      []move
}

func newFakeUI() *fakeUI {
	return &fakeUI{
		styles:    []string{bgStyle},
		spriteSrc: spriteURL,
		markers:   []string{"tc-opera show-success"},
		missing:   map[string]bool{},
	}
}

func (u *fakeUI) Locate(ctx context.Context, selector string) (Element, error) {
	if u.missing[selector] {
		return nil, fmt.Errorf("%w: waiting for %s", ErrTimeout, selector)
	}
	return fakeElement(selector), nil
}

func (u *fakeUI) ReadStyle(ctx context.Context, el Element) (string, error) {
	i := u.styleReads
	if i >= len(u.styles) {
		i = len(u.styles) - 1
	}
	u.styleReads++
	return u.styles[i], nil
}

func (u *fakeUI) ReadAttribute(ctx context.Context, el Element, name string) (string, error) {
	return u.spriteSrc, nil
}

func (u *fakeUI) MoveAndClick(ctx context.Context, el Element, dx, dy int) error {
	u.moves = append(u.moves, move{dx, dy})
	return nil
}

func (u *fakeUI) Click(ctx context.Context, el Element) error {
	u.clicks = append(u.clicks, el.Selector())
	return nil
}

func (u *fakeUI) PageMarker(ctx context.Context, selector string) (string, error) {
	i := u.markerRead
	if i >= len(u.markers) {
		i = len(u.markers) - 1
	}
	u.markerRead++
	return u.markers[i], nil
}

func (u *fakeUI) clicksOn(selector string) int {
	n := 0
	for _, c := range u.clicks {
		if c == selector {
			n++
		}
	}
	return n
}

type fakeFetcher struct {
	images map[string]Image
	errs   map[string]error
	calls  map[string]int
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		images: map[string]Image{
			bgURL:     {Data: []byte("background"), Width: 300, Height: 200, Format: "jpeg"},
			spriteURL: {Data: []byte("strip"), Width: 150, Height: 50, Format: "jpeg"},
		},
		errs:  map[string]error{},
		calls: map[string]int{},
	}
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) (Image, error) {
	f.calls[url]++
	if err := f.errs[url]; err != nil {
		return Image{}, err
	}
	img, ok := f.images[url]
	if !ok {
		return Image{}, fmt.Errorf("%w: 404 for %s", ErrDownload, url)
	}
	return img, nil
}

// fakeDetector returns rounds[i] on its i-th call; the last round repeats.
type fakeDetector struct {
	rounds [][]BoundingBox
	err    error
	calls  int
}

func (d *fakeDetector) Detect(ctx context.Context, img Image) ([]BoundingBox, error) {
	d.calls++
	if d.err != nil {
		return nil, d.err
	}
	i := d.calls - 1
	if i >= len(d.rounds) {
		i = len(d.rounds) - 1
	}
	return d.rounds[i], nil
}

// fakeClassifier labels sprites by their data; unknown sprites are "7".
type fakeClassifier struct {
	labels map[string]string
	calls  int
}

func (c *fakeClassifier) Classify(ctx context.Context, img Image) (string, error) {
	c.calls++
	if label, ok := c.labels[string(img.Data)]; ok {
		return label, nil
	}
	return "7", nil
}

// fakeMatcher looks scores up by sprite data and crop data.
type fakeMatcher struct {
	scores map[string]map[string]float64
}

func (m *fakeMatcher) Similarity(sprite, candidate Image) (Score, error) {
	s := m.scores[string(sprite.Data)][string(candidate.Data)]
	return Score{Similarity: s, Votes: int(s * 100)}, nil
}

// fakeImager crops into the box's string form and splits a strip into
// "sprite1".."sprite3".
type fakeImager struct{}

func (fakeImager) Crop(img Image, box BoundingBox) (Image, error) {
	return Image{Data: []byte(box.String()), Width: box.X2 - box.X1, Height: box.Y2 - box.Y1}, nil
}

func (fakeImager) SplitThirds(strip Image) ([SpriteCount]Image, error) {
	var out [SpriteCount]Image
	for i := range out {
		out[i] = Image{Data: []byte(fmt.Sprintf("sprite%d", i+1)), Width: strip.Width / 3, Height: strip.Height}
	}
	return out, nil
}

type recordingObserver struct {
	reports []AttemptReport
}

func (o *recordingObserver) AttemptFinished(ctx context.Context, report AttemptReport) {
	o.reports = append(o.reports, report)
}

type harness struct {
	ui         *fakeUI
	fetcher    *fakeFetcher
	detector   *fakeDetector
	classifier *fakeClassifier
	matcher    *fakeMatcher
	observer   *recordingObserver
	scratch    *Scratch
	opts       Options
}

var (
	box1 = BoundingBox{10, 10, 50, 50}     // center 30,30
	box2 = BoundingBox{100, 20, 140, 60}   // center 120,40
	box3 = BoundingBox{200, 100, 260, 160} // center 230,130
)

// distinctScores makes sprite n match box n with the given similarities
// and everything else weakly.
func distinctScores(s1, s2, s3 float64) map[string]map[string]float64 {
	scores := map[string]map[string]float64{}
	for i, s := range []float64{s1, s2, s3} {
		row := map[string]float64{}
		for j, b := range []BoundingBox{box1, box2, box3} {
			if i == j {
				row[b.String()] = s
			} else {
				row[b.String()] = 0.05
			}
		}
		scores[fmt.Sprintf("sprite%d", i+1)] = row
	}
	return scores
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	opts := DefaultOptions()
	opts.RefreshDelay = 0
	opts.VerifyDelay = 0
	return &harness{
		ui:         newFakeUI(),
		fetcher:    newFakeFetcher(),
		detector:   &fakeDetector{rounds: [][]BoundingBox{{box1, box2, box3}}},
		classifier: &fakeClassifier{labels: map[string]string{}},
		matcher:    &fakeMatcher{scores: distinctScores(0.9, 0.85, 0.7)},
		observer:   &recordingObserver{},
		scratch:    NewScratch(filepath.Join(t.TempDir(), "temp")),
		opts:       opts,
	}
}

func (h *harness) controller() *Controller {
	vision := Vision{
		Detector:   h.detector,
		Classifier: h.classifier,
		Matcher:    h.matcher,
		Imager:     fakeImager{},
	}
	c := NewController(h.ui, h.fetcher, vision, h.scratch, logger.New(io.Discard), h.opts)
	c.SetObserver(h.observer)
	return c
}
