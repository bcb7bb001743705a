package browser

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"checkin/internal/captcha"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
)

func TestCookieFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cookies.json")

	cookies, err := readCookies(path)
	if err != nil || cookies != nil {
		t.Fatalf("missing file: got %v, %v", cookies, err)
	}

	want := []Cookie{
		{Name: "rain-session", Value: "abc", Domain: ".rainyun.com", Path: "/", Expires: 1.9e9, HTTPOnly: true, Secure: true, SameSite: "Lax"},
		{Name: "lang", Value: "zh", Domain: "app.rainyun.com", Path: "/"},
	}
	if err := writeCookies(path, want); err != nil {
		t.Fatalf("writeCookies: %v", err)
	}
	got, err := readCookies(path)
	if err != nil {
		t.Fatalf("readCookies: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("got %d cookies, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("cookie %d: got %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestMapError(t *testing.T) {
	active := context.Background()
	canceled, cancel := context.WithCancel(context.Background())
	cancel()

	tests := []struct {
		name string
		ctx  context.Context
		err  error
		want error
	}{
		{"nil", active, nil, nil},
		{"ui deadline", active, context.DeadlineExceeded, captcha.ErrTimeout},
		{"caller canceled", canceled, context.DeadlineExceeded, context.Canceled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mapError(tt.ctx, tt.err)
			if tt.want == nil {
				if got != nil {
					t.Fatalf("got %v, want nil", got)
				}
				return
			}
			if !errors.Is(got, tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
		})
	}

	other := errors.New("node not found")
	if got := mapError(active, other); got != other {
		t.Errorf("unrelated errors must pass through, got %v", got)
	}
}

func TestQuadCenter(t *testing.T) {
	x, y := quadCenter(dom.Quad{10, 20, 110, 20, 110, 70, 10, 70})
	if x != 60 || y != 45 {
		t.Errorf("got (%v, %v), want (60, 45)", x, y)
	}
	if x, y := quadCenter(nil); x != 0 || y != 0 {
		t.Errorf("empty quad: got (%v, %v)", x, y)
	}
}

func TestQueryOpts(t *testing.T) {
	tests := []struct {
		selector string
		xpath    bool
	}{
		{"#slideBg", false},
		{`input[name="login-field"]`, false},
		{`//*[@id="app"]/div/h3`, true},
		{"(//a)[1]", true},
	}
	for _, tt := range tests {
		if got := isXPath(tt.selector); got != tt.xpath {
			t.Errorf("isXPath(%q) = %v", tt.selector, got)
		}
	}

	if n := len(queryOpts(nil, "#slideBg")); n != 1 {
		t.Errorf("top-level CSS: got %d options", n)
	}
	if n := len(queryOpts(&cdp.Node{}, "#slideBg")); n != 2 {
		t.Errorf("framed CSS: got %d options", n)
	}
	if n := len(queryOpts(&cdp.Node{}, "//a")); n != 1 {
		t.Errorf("XPath ignores frame: got %d options", n)
	}
}

func TestPause(t *testing.T) {
	if err := pause(context.Background(), time.Millisecond); err != nil {
		t.Fatalf("pause: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	if err := pause(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if time.Since(start) > time.Second {
		t.Error("pause ignored cancellation")
	}
}
