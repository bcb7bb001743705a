package captcha

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"checkin/internal/logger"
)

// Selectors locate the puzzle's elements on the page.
type Selectors struct {
	Background string
	Sprite     string
	Confirm    string
	Result     string
	Reload     string
}

// Options tune the controller.
type Options struct {
	Selectors     Selectors
	SuccessMarker string
	RejectLabels  []string
	MaxRetries    int
	RefreshDelay  time.Duration // pause before and after clicking reload
	VerifyDelay   time.Duration // pause between submitting and reading the result
	Debug         bool
}

// DefaultOptions returns the options matching the usual puzzle widget.
func DefaultOptions() Options {
	return Options{
		Selectors: Selectors{
			Background: "#slideBg",
			Sprite:     "#instruction div img",
			Confirm:    "#tcStatus > div:nth-child(2) > div:nth-child(2) > div > div",
			Result:     "#tcOperation",
			Reload:     "#reload",
		},
		SuccessMarker: "show-success",
		RejectLabels:  []string{"0", "1"},
		MaxRetries:    5,
		RefreshDelay:  2 * time.Second,
		VerifyDelay:   5 * time.Second,
	}
}

// Vision bundles the image collaborators. Annotator may be nil.
type Vision struct {
	Detector   Detector
	Classifier Classifier
	Matcher    Matcher
	Imager     Imager
	Annotator  Annotator
}

// AttemptState is the only state carried from one attempt to the next.
type AttemptState struct {
	RetryCount int
}

// AttemptReport describes one finished attempt.
type AttemptReport struct {
	Attempt    int
	RetryCount int
	Stage      Stage
	Err        error
	Solved     bool
	Boxes      int
	Matches    []Match
	Duration   time.Duration
}

// Outcome is the result of a Solve call.
type Outcome struct {
	Solved    bool
	Attempts  int
	LastStage Stage
	LastErr   error
}

// Controller drives puzzle attempts until one is accepted or the retry
// budget is spent.
type Controller struct {
	ui       UI
	fetcher  Fetcher
	vision   Vision
	scratch  *Scratch
	logger   *logger.Logger
	opts     Options
	observer Observer
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewController creates a Controller.
func NewController(ui UI, fetcher Fetcher, vision Vision, scratch *Scratch, logger *logger.Logger, opts Options) *Controller {
	return &Controller{
		ui:      ui,
		fetcher: fetcher,
		vision:  vision,
		scratch: scratch,
		logger:  logger,
		opts:    opts,
		sleep:   sleepContext,
	}
}

// SetObserver registers o to receive a report after every attempt.
func (c *Controller) SetObserver(o Observer) {
	c.observer = o
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Solve runs attempts until the puzzle is solved or MaxRetries refreshes
// have been spent, so at most MaxRetries+1 puzzles are fetched. Retryable
// failures are reported through the Outcome; any other error is returned
// as is.
func (c *Controller) Solve(ctx context.Context) (Outcome, error) {
	state := AttemptState{}

	for {
		started := time.Now()
		report, err := c.attempt(ctx, state)
		report.Attempt = state.RetryCount + 1
		report.RetryCount = state.RetryCount
		report.Duration = time.Since(started)
		report.Err = err
		report.Solved = err == nil
		c.notify(ctx, report)

		outcome := Outcome{Attempts: report.Attempt, LastStage: report.Stage}

		if err == nil {
			c.logger.Info("Captcha accepted on attempt %d", report.Attempt)
			outcome.Solved = true
			return outcome, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return outcome, ctxErr
		}
		if !IsRetryable(err) {
			c.logger.Error("Captcha %s stage failed unexpectedly: %v", report.Stage, err)
			return outcome, err
		}
		outcome.LastErr = stageErr(report.Stage, err)

		c.logger.Error("Captcha attempt %d failed at %s: %v", report.Attempt, report.Stage, err)

		if state.RetryCount >= c.opts.MaxRetries {
			c.logger.Error("Captcha retried too many times (%d), giving up", state.RetryCount)
			outcome.LastStage = StageExhausted
			return outcome, nil
		}

		if err := c.refresh(ctx); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return outcome, ctxErr
			}
			c.logger.Error("Cannot refresh captcha, giving up: %v", err)
			outcome.LastStage = StageRefresh
			outcome.LastErr = stageErr(StageRefresh, err)
			return outcome, nil
		}
		state.RetryCount++
	}
}

func (c *Controller) notify(ctx context.Context, report AttemptReport) {
	if c.observer != nil {
		c.observer.AttemptFinished(ctx, report)
	}
}

func (c *Controller) refresh(ctx context.Context) error {
	reload, err := c.ui.Locate(ctx, c.opts.Selectors.Reload)
	if err != nil {
		return err
	}
	if err := c.sleep(ctx, c.opts.RefreshDelay); err != nil {
		return err
	}
	if err := c.ui.Click(ctx, reload); err != nil {
		return err
	}
	return c.sleep(ctx, c.opts.RefreshDelay)
}

// attempt runs one puzzle from download to verification. The returned
// error is never wrapped in a StageError; the failing stage is in the
// report.
func (c *Controller) attempt(ctx context.Context, state AttemptState) (AttemptReport, error) {
	report := AttemptReport{Stage: StageAcquire}

	if err := c.scratch.Reset(); err != nil {
		return report, err
	}

	background, strip, err := c.acquire(ctx)
	if err != nil {
		return report, err
	}

	report.Stage = StageQuality
	sprites, err := c.validateQuality(ctx, strip)
	if err != nil {
		return report, err
	}
	c.logger.Info("Solving captcha (attempt %d)", state.RetryCount+1)

	report.Stage = StageDetect
	boxes, err := c.vision.Detector.Detect(ctx, background)
	if err != nil {
		return report, err
	}
	report.Boxes = len(boxes)
	c.logger.Debug("Detector proposed %d candidates: %v", len(boxes), boxes)

	report.Stage = StageMatch
	resolver := Resolver{Imager: c.vision.Imager, Matcher: c.vision.Matcher, Scratch: c.scratch}
	assignment, err := resolver.Resolve(background, boxes, sprites)
	if err != nil {
		return report, err
	}
	for i := 1; i <= SpriteCount; i++ {
		if m, ok := assignment.Get(i); ok {
			report.Matches = append(report.Matches, m)
		}
	}

	report.Stage = StageResolve
	if err := assignment.Validate(); err != nil {
		return report, err
	}
	c.annotate(background, boxes, assignment)

	report.Stage = StageAct
	if err := c.act(ctx, background, assignment); err != nil {
		return report, err
	}

	report.Stage = StageVerify
	if err := c.verify(ctx); err != nil {
		return report, err
	}
	report.Stage = StageSuccess
	return report, nil
}

func (c *Controller) acquire(ctx context.Context) (Image, Image, error) {
	bg, err := c.ui.Locate(ctx, c.opts.Selectors.Background)
	if err != nil {
		return Image{}, Image{}, err
	}
	style, err := c.ui.ReadStyle(ctx, bg)
	if err != nil {
		return Image{}, Image{}, err
	}
	bgURL, err := BackgroundURL(style)
	if err != nil {
		return Image{}, Image{}, err
	}
	c.logger.Info("Downloading captcha image (1): %s", bgURL)
	background, err := c.fetcher.Fetch(ctx, bgURL)
	if err != nil {
		return Image{}, Image{}, fmt.Errorf("background: %w", err)
	}
	if _, err := c.scratch.Save("captcha.jpg", background.Data); err != nil {
		return Image{}, Image{}, err
	}

	sprite, err := c.ui.Locate(ctx, c.opts.Selectors.Sprite)
	if err != nil {
		return Image{}, Image{}, err
	}
	spriteURL, err := c.ui.ReadAttribute(ctx, sprite, "src")
	if err != nil {
		return Image{}, Image{}, err
	}
	if spriteURL == "" {
		return Image{}, Image{}, fmt.Errorf("%w: sprite element has no src", ErrDownload)
	}
	c.logger.Info("Downloading captcha image (2): %s", spriteURL)
	strip, err := c.fetcher.Fetch(ctx, spriteURL)
	if err != nil {
		return Image{}, Image{}, fmt.Errorf("sprite strip: %w", err)
	}
	if _, err := c.scratch.Save("sprite.jpg", strip.Data); err != nil {
		return Image{}, Image{}, err
	}
	return background, strip, nil
}

func (c *Controller) validateQuality(ctx context.Context, strip Image) ([SpriteCount]Image, error) {
	sprites, err := c.vision.Imager.SplitThirds(strip)
	if err != nil {
		return sprites, err
	}
	for i, sprite := range sprites {
		if _, err := c.scratch.Save(fmt.Sprintf("sprite_%d.jpg", i+1), sprite.Data); err != nil {
			return sprites, err
		}
		label, err := c.vision.Classifier.Classify(ctx, sprite)
		if err != nil {
			return sprites, err
		}
		if slices.Contains(c.opts.RejectLabels, label) {
			c.logger.Warning("Sprite %d classified as %q, puzzle quality too low", i+1, label)
			return sprites, fmt.Errorf("%w: sprite %d labelled %q", ErrLowQuality, i+1, label)
		}
	}
	return sprites, nil
}

func (c *Controller) annotate(background Image, boxes []BoundingBox, a *Assignment) {
	if !c.opts.Debug || c.vision.Annotator == nil {
		return
	}
	data, err := c.vision.Annotator.Annotate(background, boxes, a)
	if err != nil {
		c.logger.Warning("Failed to annotate captcha: %v", err)
		return
	}
	if _, err := c.scratch.Save("annotated.jpg", data); err != nil {
		c.logger.Warning("Failed to save annotated captcha: %v", err)
	}
}

// act clicks the sprites in order 1..SpriteCount, reading the display
// geometry again before each click, then submits.
func (c *Controller) act(ctx context.Context, background Image, a *Assignment) error {
	for i := 1; i <= SpriteCount; i++ {
		m, ok := a.Get(i)
		if !ok {
			return fmt.Errorf("%w: sprite %d missing", ErrIncompleteAssignment, i)
		}
		c.logger.Info("Sprite %d is at (%s), similarity %.4f (%d votes)", i, m.Position, m.Score.Similarity, m.Score.Votes)

		bg, err := c.ui.Locate(ctx, c.opts.Selectors.Background)
		if err != nil {
			return err
		}
		style, err := c.ui.ReadStyle(ctx, bg)
		if err != nil {
			return err
		}
		display, err := DisplaySize(style)
		if err != nil {
			return err
		}
		dx, dy, err := MapToScreen(m.Position, Geometry{Raw: background.Size(), Display: display})
		if err != nil {
			return err
		}
		c.logger.Debug("Clicking sprite %d at offset (%d, %d) of %vx%v element", i, dx, dy, display.Width, display.Height)
		if err := c.ui.MoveAndClick(ctx, bg, dx, dy); err != nil {
			return err
		}
	}

	confirm, err := c.ui.Locate(ctx, c.opts.Selectors.Confirm)
	if err != nil {
		return err
	}
	c.logger.Info("Submitting captcha")
	return c.ui.Click(ctx, confirm)
}

func (c *Controller) verify(ctx context.Context) error {
	if err := c.sleep(ctx, c.opts.VerifyDelay); err != nil {
		return err
	}
	marker, err := c.ui.PageMarker(ctx, c.opts.Selectors.Result)
	if err != nil {
		return err
	}
	if !strings.Contains(marker, c.opts.SuccessMarker) {
		return fmt.Errorf("%w: result marker %q", ErrNotVerified, marker)
	}
	c.logger.Info("Captcha passed")
	return nil
}
