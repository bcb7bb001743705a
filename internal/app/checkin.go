package app

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"checkin/internal/captcha"
	"checkin/internal/config"
	"checkin/internal/logger"
)

// PointsPerCNY is the exchange rate of reward points.
const PointsPerCNY = 2000

var (
	ErrLoginFailed  = errors.New("login failed")
	ErrNoEarnButton = errors.New("reward button not found and no signed-in marker present")
)

// Page is the browser surface the check-in workflow drives.
type Page interface {
	captcha.UI
	Navigate(ctx context.Context, url string) error
	Location(ctx context.Context) (string, error)
	EnterFrame(ctx context.Context, selector string) error
	ExitFrame()
	Type(ctx context.Context, selector, text string) error
	TextContent(ctx context.Context, selector string) (string, error)
	Source(ctx context.Context) (string, error)
	LoadCookies(ctx context.Context, path string) (int, error)
	SaveCookies(ctx context.Context, path string) error
	ClearCookies(ctx context.Context) error
}

// Solver solves the puzzle currently shown on the page.
type Solver interface {
	Solve(ctx context.Context) (captcha.Outcome, error)
}

// Result describes a finished check-in.
type Result struct {
	AlreadySigned bool
	Attempts      int
	Points        int
	PointsKnown   bool
}

// CheckIn logs in and claims the daily reward.
type CheckIn struct {
	page   Page
	solver Solver
	config *config.Config
	logger *logger.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

func NewCheckIn(page Page, solver Solver, config *config.Config, logger *logger.Logger) *CheckIn {
	return &CheckIn{page: page, solver: solver, config: config, logger: logger, sleep: sleepContext}
}

func (c *CheckIn) url(path string) string {
	return strings.TrimRight(c.config.BaseURL, "/") + path
}

// Run restores or creates a session, then claims the reward, solving the
// puzzle it triggers.
func (c *CheckIn) Run(ctx context.Context) (Result, error) {
	var result Result

	loggedIn := false
	n, err := c.page.LoadCookies(ctx, c.config.CookieFile)
	switch {
	case err != nil:
		c.logger.Warning("Failed to load cookies: %v", err)
	case n == 0:
		c.logger.Info("No saved session")
	default:
		loggedIn, err = c.sessionValid(ctx)
		if err != nil {
			return result, err
		}
	}

	if !loggedIn {
		if err := c.login(ctx); err != nil {
			return result, err
		}
	}

	c.logger.Info("Opening the earn page")
	if err := c.page.Navigate(ctx, c.url("/account/reward/earn")); err != nil {
		return result, err
	}

	earn, err := c.page.Locate(ctx, c.config.Selectors.EarnButton)
	if err != nil {
		if !errors.Is(err, captcha.ErrTimeout) {
			return result, err
		}
		signed, err := c.alreadySigned(ctx)
		if err != nil {
			return result, err
		}
		if !signed {
			return result, ErrNoEarnButton
		}
		result.AlreadySigned = true
		c.readPoints(ctx, &result)
		return result, nil
	}

	c.logger.Info("Claiming the daily reward")
	if err := c.page.Click(ctx, earn); err != nil {
		return result, fmt.Errorf("failed to click reward button: %w", err)
	}

	outcome, err := c.solveInFrame(ctx)
	result.Attempts = outcome.Attempts
	if err != nil {
		return result, err
	}
	if !outcome.Solved {
		c.logger.Error("Captcha failed after %d attempts (%s): %v", outcome.Attempts, outcome.LastStage, outcome.LastErr)
		return result, captcha.ErrUnsolved
	}

	c.readPoints(ctx, &result)
	c.logger.Info("Check-in finished")
	return result, nil
}

// sessionValid reports whether the restored cookies still open the dashboard.
func (c *CheckIn) sessionValid(ctx context.Context) (bool, error) {
	if err := c.page.Navigate(ctx, c.url("/dashboard")); err != nil {
		return false, err
	}
	if err := c.sleep(ctx, 3*time.Second); err != nil {
		return false, err
	}

	location, err := c.page.Location(ctx)
	if err != nil {
		return false, err
	}
	if strings.Contains(location, "login") {
		c.logger.Info("Saved session expired")
		if err := c.page.ClearCookies(ctx); err != nil {
			c.logger.Warning("Failed to clear stale cookies: %v", err)
		}
		return false, nil
	}
	if strings.HasPrefix(location, c.url("/dashboard")) {
		c.logger.Info("Saved session is valid")
		return true, nil
	}
	return false, nil
}

func (c *CheckIn) login(ctx context.Context) error {
	c.logger.Info("Logging in as %s", c.config.User)
	sel := c.config.Selectors

	if err := c.page.Navigate(ctx, c.url("/auth/login")); err != nil {
		return err
	}
	if err := c.page.Type(ctx, sel.LoginUser, c.config.User); err != nil {
		return fmt.Errorf("%w: %v", ErrLoginFailed, err)
	}
	if err := c.page.Type(ctx, sel.LoginPassword, c.config.Password); err != nil {
		return fmt.Errorf("%w: %v", ErrLoginFailed, err)
	}
	submit, err := c.page.Locate(ctx, sel.LoginSubmit)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLoginFailed, err)
	}
	if err := c.page.Click(ctx, submit); err != nil {
		return fmt.Errorf("%w: %v", ErrLoginFailed, err)
	}

	outcome, err := c.solveInFrame(ctx)
	switch {
	case errors.Is(err, errNoPuzzle):
		c.logger.Info("No captcha on login")
	case err != nil:
		return err
	case !outcome.Solved:
		return fmt.Errorf("%w: %w", ErrLoginFailed, captcha.ErrUnsolved)
	}

	if err := c.sleep(ctx, 2*time.Second); err != nil {
		return err
	}
	if err := c.waitForDashboard(ctx); err != nil {
		return err
	}

	c.logger.Info("Logged in")
	if err := c.page.SaveCookies(ctx, c.config.CookieFile); err != nil {
		c.logger.Warning("Failed to save cookies: %v", err)
	}
	return nil
}

var errNoPuzzle = errors.New("no puzzle shown")

// solveInFrame enters the puzzle frame, solves it and returns to the top
// document. errNoPuzzle means the frame never appeared.
func (c *CheckIn) solveInFrame(ctx context.Context) (captcha.Outcome, error) {
	if err := c.page.EnterFrame(ctx, c.config.Selectors.CaptchaFrame); err != nil {
		if errors.Is(err, captcha.ErrTimeout) {
			return captcha.Outcome{}, errNoPuzzle
		}
		return captcha.Outcome{}, err
	}
	defer c.page.ExitFrame()

	c.logger.Warning("Captcha shown, solving")
	return c.solver.Solve(ctx)
}

func (c *CheckIn) waitForDashboard(ctx context.Context) error {
	deadline := time.Now().Add(c.config.UIWait())
	for {
		location, err := c.page.Location(ctx)
		if err != nil {
			return err
		}
		if strings.Contains(location, "dashboard") {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: still at %s", ErrLoginFailed, location)
		}
		if err := c.sleep(ctx, 500*time.Millisecond); err != nil {
			return err
		}
	}
}

func (c *CheckIn) alreadySigned(ctx context.Context) (bool, error) {
	source, err := c.page.Source(ctx)
	if err != nil {
		return false, err
	}
	for _, mark := range c.config.SignedMarks {
		if strings.Contains(source, mark) {
			c.logger.Info("Already checked in today (found %q)", mark)
			return true, nil
		}
	}
	return false, nil
}

var digits = regexp.MustCompile(`\d+`)

// ParsePoints extracts the number from a points label such as "1,234 pts".
func ParsePoints(raw string) (int, error) {
	joined := strings.Join(digits.FindAllString(raw, -1), "")
	if joined == "" {
		return 0, fmt.Errorf("no digits in %q", raw)
	}
	return strconv.Atoi(joined)
}

func (c *CheckIn) readPoints(ctx context.Context, result *Result) {
	raw, err := c.page.TextContent(ctx, c.config.Selectors.Points)
	if err != nil {
		c.logger.Info("Could not read current points: %v", err)
		return
	}
	points, err := ParsePoints(raw)
	if err != nil {
		c.logger.Info("Could not read current points: %v", err)
		return
	}
	result.Points = points
	result.PointsKnown = true
	c.logger.Info("Current points: %d (about %.2f CNY)", points, float64(points)/PointsPerCNY)
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
