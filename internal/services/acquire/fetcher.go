// Package acquire downloads puzzle images.
package acquire

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"net"
	"net/http"
	"time"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"

	"checkin/internal/captcha"
	"checkin/internal/logger"
)

// maxImageBytes bounds a single download.
const maxImageBytes = 8 << 20

// HTTPFetcher downloads images over HTTP with a per-request deadline.
type HTTPFetcher struct {
	client    *http.Client
	timeout   time.Duration
	userAgent string
	maxBytes  int64
	logger    *logger.Logger
}

func NewHTTPFetcher(timeout time.Duration, userAgent string, logger *logger.Logger) *HTTPFetcher {
	return &HTTPFetcher{
		client:    &http.Client{},
		timeout:   timeout,
		userAgent: userAgent,
		maxBytes:  maxImageBytes,
		logger:    logger,
	}
}

// Fetch downloads url and reads its dimensions. Transport failures and
// non-200 statuses and oversized bodies wrap captcha.ErrDownload, deadline
// expiry wraps captcha.ErrTimeout. The body is decoded in full, so a
// truncated or corrupt image wraps captcha.ErrDecode.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (captcha.Image, error) {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return captcha.Image{}, fmt.Errorf("%w: %v", captcha.ErrDownload, err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return captcha.Image{}, classify(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return captcha.Image{}, fmt.Errorf("%w: %s returned %s", captcha.ErrDownload, url, resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return captcha.Image{}, classify(err)
	}
	if int64(len(data)) > f.maxBytes {
		return captcha.Image{}, fmt.Errorf("%w: %s is larger than %d bytes", captcha.ErrDownload, url, f.maxBytes)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return captcha.Image{}, fmt.Errorf("%w: %v", captcha.ErrDecode, err)
	}
	bounds := img.Bounds()

	f.logger.Debug("Downloaded %s image %dx%d (%d bytes)", format, bounds.Dx(), bounds.Dy(), len(data))
	return captcha.Image{Data: data, Width: bounds.Dx(), Height: bounds.Dy(), Format: format}, nil
}

func classify(err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%w: %v", captcha.ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", captcha.ErrDownload, err)
}
