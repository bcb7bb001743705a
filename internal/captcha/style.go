package captcha

import (
	"fmt"
	"regexp"
	"strconv"
)

var (
	urlPattern    = regexp.MustCompile(`url\(["'\\ ]?(.*?)["'\\ ]?\)`)
	widthPattern  = regexp.MustCompile(`(?:^|[;\s])width:\s*([\d.]+)px`)
	heightPattern = regexp.MustCompile(`(?:^|[;\s])height:\s*([\d.]+)px`)
)

// BackgroundURL extracts the url(...) of a background-image declaration.
func BackgroundURL(style string) (string, error) {
	if style == "" {
		return "", fmt.Errorf("%w: empty style, cannot read url", ErrStyleParse)
	}
	m := urlPattern.FindStringSubmatch(style)
	if m == nil || m[1] == "" {
		return "", fmt.Errorf("%w: no url in style %q", ErrStyleParse, style)
	}
	return m[1], nil
}

// StyleWidth extracts the width in pixels.
func StyleWidth(style string) (float64, error) {
	return stylePixels(style, "width", widthPattern)
}

// StyleHeight extracts the height in pixels.
func StyleHeight(style string) (float64, error) {
	return stylePixels(style, "height", heightPattern)
}

func stylePixels(style, name string, pattern *regexp.Regexp) (float64, error) {
	if style == "" {
		return 0, fmt.Errorf("%w: empty style, cannot read %s", ErrStyleParse, name)
	}
	m := pattern.FindStringSubmatch(style)
	if m == nil {
		return 0, fmt.Errorf("%w: no %s in style %q", ErrStyleParse, name, style)
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, fmt.Errorf("%w: bad %s %q: %v", ErrStyleParse, name, m[1], err)
	}
	return v, nil
}

// DisplaySize reads both dimensions of a style string.
func DisplaySize(style string) (Size, error) {
	w, err := StyleWidth(style)
	if err != nil {
		return Size{}, err
	}
	h, err := StyleHeight(style)
	if err != nil {
		return Size{}, err
	}
	return Size{Width: w, Height: h}, nil
}
