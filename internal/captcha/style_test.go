package captcha

import (
	"errors"
	"testing"
)

func TestBackgroundURL(t *testing.T) {
	tests := []struct {
		style string
		want  string
	}{
		{`background-image: url(https://t.captcha.qq.com/img?id=1); width: 340px; height: 242px;`, "https://t.captcha.qq.com/img?id=1"},
		{`background-image: url("https://cdn/bg.jpg"); width: 340px;`, "https://cdn/bg.jpg"},
		{`background-image: url('https://cdn/bg.png');`, "https://cdn/bg.png"},
	}
	for _, tt := range tests {
		got, err := BackgroundURL(tt.style)
		if err != nil {
			t.Fatalf("BackgroundURL(%q) failed: %v", tt.style, err)
		}
		if got != tt.want {
			t.Errorf("BackgroundURL(%q) = %q, want %q", tt.style, got, tt.want)
		}
	}
}

func TestStyleParse_Failures(t *testing.T) {
	if _, err := BackgroundURL(""); !errors.Is(err, ErrStyleParse) {
		t.Errorf("empty style: expected ErrStyleParse, got %v", err)
	}
	if _, err := BackgroundURL("width: 10px;"); !errors.Is(err, ErrStyleParse) {
		t.Errorf("missing url: expected ErrStyleParse, got %v", err)
	}
	if _, err := StyleWidth(""); !errors.Is(err, ErrStyleParse) {
		t.Errorf("empty width: expected ErrStyleParse, got %v", err)
	}
	if _, err := StyleHeight("width: 10px;"); !errors.Is(err, ErrStyleParse) {
		t.Errorf("missing height: expected ErrStyleParse, got %v", err)
	}
	if _, err := StyleWidth("max-width: 10px;"); !errors.Is(err, ErrStyleParse) {
		t.Errorf("max-width must not count as width, got %v", err)
	}
}

func TestDisplaySize(t *testing.T) {
	size, err := DisplaySize("background-image: url(x); width: 340.5px; height: 242px;")
	if err != nil {
		t.Fatalf("DisplaySize failed: %v", err)
	}
	if size.Width != 340.5 || size.Height != 242 {
		t.Errorf("got %+v", size)
	}
}
