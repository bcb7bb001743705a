// Package browser drives a Chrome instance over the DevTools protocol and
// exposes it as the page the puzzle solver works on.
package browser

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"checkin/internal/captcha"
	"checkin/internal/config"
	"checkin/internal/logger"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp"
)

// UserAgent is sent by the browser and by image downloads.
const UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// element is a located node together with the frame it was found in.
type element struct {
	selector string
	node     *cdp.Node
	frame    *cdp.Node
}

func (e *element) Selector() string { return e.selector }

// Browser is one Chrome tab. Queries are scoped to the entered frame, if any.
type Browser struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCtx    context.Context
	allocCancel context.CancelFunc

	timeout time.Duration
	logger  *logger.Logger

	mu    sync.Mutex
	frame *cdp.Node
}

// New starts Chrome with the options in config.
func New(config *config.Config, logger *logger.Logger) (*Browser, error) {
	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.Flag("headless", config.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("enable-automation", false),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.UserAgent(UserAgent),
		chromedp.WindowSize(1280, 900),
	}
	if config.ChromeBin != "" {
		opts = append(opts, chromedp.ExecPath(config.ChromeBin))
	}

	b := &Browser{timeout: config.UIWait(), logger: logger}
	b.allocCtx, b.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
	b.ctx, b.cancel = chromedp.NewContext(b.allocCtx)

	// Starts the browser process.
	if err := chromedp.Run(b.ctx); err != nil {
		b.Close()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}
	logger.Info("Browser started (headless=%v)", config.Headless)
	return b, nil
}

// pause waits for d or until ctx is done.
func pause(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Close shuts the browser down.
func (b *Browser) Close() {
	if b.cancel != nil {
		b.cancel()
	}
	if b.allocCancel != nil {
		b.allocCancel()
	}
}

// run executes actions on the tab, bounded by the UI timeout and by ctx.
func (b *Browser) run(ctx context.Context, actions ...chromedp.Action) error {
	tctx, cancel := context.WithTimeout(b.ctx, b.timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(tctx, actions...)
	return mapError(ctx, err)
}

// mapError turns an expired UI wait into captcha.ErrTimeout, leaving
// caller cancellation untouched.
func mapError(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", captcha.ErrTimeout, err)
	}
	return err
}

func (b *Browser) currentFrame() *cdp.Node {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.frame
}

// queryOpts selects how selector is resolved. XPath expressions are run
// against the whole document; CSS selectors are scoped to frame when set.
func queryOpts(frame *cdp.Node, selector string) []chromedp.QueryOption {
	if isXPath(selector) {
		return []chromedp.QueryOption{chromedp.BySearch}
	}
	opts := []chromedp.QueryOption{chromedp.ByQuery}
	if frame != nil {
		opts = append(opts, chromedp.FromNode(frame))
	}
	return opts
}

func isXPath(selector string) bool {
	return strings.HasPrefix(selector, "/") || strings.HasPrefix(selector, "(")
}

// Navigate loads url in the top-level document.
func (b *Browser) Navigate(ctx context.Context, url string) error {
	b.ExitFrame()
	if err := b.run(ctx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	return nil
}

// Location returns the current URL.
func (b *Browser) Location(ctx context.Context) (string, error) {
	var url string
	err := b.run(ctx, chromedp.Location(&url))
	return url, err
}

// EnterFrame scopes subsequent queries to the iframe matching selector.
func (b *Browser) EnterFrame(ctx context.Context, selector string) error {
	b.ExitFrame()

	var nodes []*cdp.Node
	err := b.run(ctx,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.Nodes(selector, &nodes, chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("failed to find frame %s: %w", selector, err)
	}

	b.mu.Lock()
	b.frame = nodes[0]
	b.mu.Unlock()
	return nil
}

// ExitFrame returns to the top-level document.
func (b *Browser) ExitFrame() {
	b.mu.Lock()
	b.frame = nil
	b.mu.Unlock()
}


// TextContent waits for selector and returns its textContent.
func (b *Browser) TextContent(ctx context.Context, selector string) (string, error) {
	opts := queryOpts(b.currentFrame(), selector)
	var text string
	err := b.run(ctx,
		chromedp.WaitVisible(selector, opts...),
		chromedp.TextContent(selector, &text, opts...),
	)
	return text, err
}

// Source returns the serialized top-level document.
func (b *Browser) Source(ctx context.Context) (string, error) {
	var html string
	err := b.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	return html, err
}

// Type clicks the element matching selector and sends text to it.
func (b *Browser) Type(ctx context.Context, selector, text string) error {
	opts := queryOpts(b.currentFrame(), selector)
	return b.run(ctx,
		chromedp.WaitVisible(selector, opts...),
		chromedp.Clear(selector, opts...),
		chromedp.SendKeys(selector, text, opts...),
	)
}

// Locate waits for selector to be visible and returns its first match.
func (b *Browser) Locate(ctx context.Context, selector string) (captcha.Element, error) {
	frame := b.currentFrame()
	opts := queryOpts(frame, selector)

	var nodes []*cdp.Node
	err := b.run(ctx,
		chromedp.WaitVisible(selector, opts...),
		chromedp.Nodes(selector, &nodes, opts...),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to locate %s: %w", selector, err)
	}
	return &element{selector: selector, node: nodes[0], frame: frame}, nil
}

func (b *Browser) attribute(ctx context.Context, el captcha.Element, name string) (string, error) {
	e, ok := el.(*element)
	if !ok {
		return "", fmt.Errorf("foreign element %T", el)
	}

	var value string
	var found bool
	err := b.run(ctx, chromedp.AttributeValue(e.selector, name, &value, &found, queryOpts(e.frame, e.selector)...))
	if err != nil {
		return "", fmt.Errorf("failed to read %s of %s: %w", name, e.selector, err)
	}
	return value, nil
}

// ReadStyle returns the current inline style of el.
func (b *Browser) ReadStyle(ctx context.Context, el captcha.Element) (string, error) {
	return b.attribute(ctx, el, "style")
}

// ReadAttribute returns attribute name of el, or "" when absent.
func (b *Browser) ReadAttribute(ctx context.Context, el captcha.Element, name string) (string, error) {
	return b.attribute(ctx, el, name)
}

// MoveAndClick moves the pointer to (dx, dy) from the center of el and
// clicks there.
func (b *Browser) MoveAndClick(ctx context.Context, el captcha.Element, dx, dy int) error {
	e, ok := el.(*element)
	if !ok {
		return fmt.Errorf("foreign element %T", el)
	}

	return b.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		quads, err := dom.GetContentQuads().WithNodeID(e.node.NodeID).Do(ctx)
		if err != nil {
			return fmt.Errorf("failed to read geometry of %s: %w", e.selector, err)
		}
		if len(quads) == 0 {
			return fmt.Errorf("%s is not rendered", e.selector)
		}

		cx, cy := quadCenter(quads[0])
		x, y := cx+float64(dx), cy+float64(dy)

		if err := chromedp.MouseEvent(input.MouseMoved, x, y).Do(ctx); err != nil {
			return err
		}
		// Short human-like pause between move and press.
		if err := pause(ctx, time.Duration(80+rand.Intn(120))*time.Millisecond); err != nil {
			return err
		}
		return chromedp.MouseClickXY(x, y).Do(ctx)
	}))
}

// Click clicks el at its center.
func (b *Browser) Click(ctx context.Context, el captcha.Element) error {
	e, ok := el.(*element)
	if !ok {
		return fmt.Errorf("foreign element %T", el)
	}
	return b.run(ctx, chromedp.Click(e.selector, queryOpts(e.frame, e.selector)...))
}

// PageMarker returns the class list of the element matching selector in
// the current scope.
func (b *Browser) PageMarker(ctx context.Context, selector string) (string, error) {
	var class string
	var found bool
	err := b.run(ctx, chromedp.AttributeValue(selector, "class", &class, &found, queryOpts(b.currentFrame(), selector)...))
	if err != nil {
		return "", fmt.Errorf("failed to read class of %s: %w", selector, err)
	}
	return class, nil
}

// quadCenter averages the four corners of a content quad.
func quadCenter(q dom.Quad) (float64, float64) {
	var x, y float64
	n := len(q) / 2
	if n == 0 {
		return 0, 0
	}
	for i := 0; i < n; i++ {
		x += q[2*i]
		y += q[2*i+1]
	}
	return x / float64(n), y / float64(n)
}
