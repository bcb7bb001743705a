package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// Cookie is the on-disk form of a browser cookie.
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires"`
	HTTPOnly bool    `json:"httpOnly"`
	Secure   bool    `json:"secure"`
	SameSite string  `json:"sameSite"`
}

// readCookies loads cookies from path. A missing file yields no cookies.
func readCookies(path string) ([]Cookie, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read cookie file: %w", err)
	}

	var cookies []Cookie
	if err := json.Unmarshal(data, &cookies); err != nil {
		return nil, fmt.Errorf("failed to parse cookie file: %w", err)
	}
	return cookies, nil
}

func writeCookies(path string, cookies []Cookie) error {
	data, err := json.Marshal(cookies)
	if err != nil {
		return fmt.Errorf("failed to marshal cookies: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write cookie file: %w", err)
	}
	return nil
}

// LoadCookies installs the cookies saved at path and reports how many
// were loaded.
func (b *Browser) LoadCookies(ctx context.Context, path string) (int, error) {
	cookies, err := readCookies(path)
	if err != nil || len(cookies) == 0 {
		return 0, err
	}

	err = b.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		for _, c := range cookies {
			params := network.SetCookie(c.Name, c.Value).
				WithDomain(c.Domain).
				WithPath(c.Path).
				WithHTTPOnly(c.HTTPOnly).
				WithSecure(c.Secure)

			if c.Expires > 0 {
				expires := cdp.TimeSinceEpoch(time.Unix(int64(c.Expires), 0))
				params = params.WithExpires(&expires)
			}
			if c.SameSite != "" {
				params = params.WithSameSite(network.CookieSameSite(c.SameSite))
			}

			if err := params.Do(ctx); err != nil {
				return err
			}
		}
		return nil
	}))
	if err != nil {
		return 0, fmt.Errorf("failed to set cookies: %w", err)
	}

	b.logger.Info("Loaded %d cookies from %s", len(cookies), path)
	return len(cookies), nil
}

// SaveCookies writes the tab's cookies to path.
func (b *Browser) SaveCookies(ctx context.Context, path string) error {
	var cookies []*network.Cookie
	err := b.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		cookies, err = network.GetCookies().Do(ctx)
		return err
	}))
	if err != nil {
		return fmt.Errorf("failed to get cookies: %w", err)
	}

	list := make([]Cookie, len(cookies))
	for i, c := range cookies {
		list[i] = Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  c.Expires,
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
			SameSite: string(c.SameSite),
		}
	}

	if err := writeCookies(path, list); err != nil {
		return err
	}
	b.logger.Info("Saved %d cookies to %s", len(list), path)
	return nil
}

// ClearCookies drops all cookies, e.g. after an expired session.
func (b *Browser) ClearCookies(ctx context.Context) error {
	return b.run(ctx, network.ClearBrowserCookies())
}
