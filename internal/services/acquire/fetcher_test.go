package acquire

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"checkin/internal/captcha"
	"checkin/internal/logger"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	return buf.Bytes()
}

// noisyPNG encodes random pixels so the compressed stream is long enough
// to cut in the middle of the pixel data.
func noisyPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	rng := rand.New(rand.NewSource(1))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{uint8(rng.Intn(256)), uint8(rng.Intn(256)), uint8(rng.Intn(256)), 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	return buf.Bytes()
}

func TestFetch(t *testing.T) {
	body := pngBytes(t, 300, 200)
	noisy := noisyPNG(t, 120, 80)
	release := make(chan struct{})
	defer close(release)

	mux := http.NewServeMux()
	mux.HandleFunc("/ok.png", func(w http.ResponseWriter, r *http.Request) {
		w.Write(body)
	})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	mux.HandleFunc("/garbage", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not an image"))
	})
	mux.HandleFunc("/truncated.png", func(w http.ResponseWriter, r *http.Request) {
		// Header intact, pixel data cut short.
		w.Write(noisy[:len(noisy)/2])
	})
	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	f := NewHTTPFetcher(200*time.Millisecond, "test-agent", logger.New(io.Discard))

	tests := []struct {
		name    string
		path    string
		wantErr error
	}{
		{"ok", "/ok.png", nil},
		{"not found", "/missing", captcha.ErrDownload},
		{"undecodable", "/garbage", captcha.ErrDecode},
		{"truncated", "/truncated.png", captcha.ErrDecode},
		{"deadline", "/slow", captcha.ErrTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := f.Fetch(context.Background(), server.URL+tt.path)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("got %v, want %v", err, tt.wantErr)
				}
				if !captcha.IsRetryable(err) {
					t.Errorf("expected %v to be retryable", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Fetch: %v", err)
			}
			if img.Width != 300 || img.Height != 200 || img.Format != "png" {
				t.Errorf("got %dx%d %s", img.Width, img.Height, img.Format)
			}
		})
	}
}

func TestFetch_UnreachableHost(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	f := NewHTTPFetcher(time.Second, "", logger.New(io.Discard))
	_, err := f.Fetch(context.Background(), url+"/x.png")
	if !errors.Is(err, captcha.ErrDownload) {
		t.Fatalf("got %v, want ErrDownload", err)
	}
}

func TestFetch_OversizedBody(t *testing.T) {
	body := noisyPNG(t, 120, 80)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(body)
	}))
	defer server.Close()

	f := NewHTTPFetcher(time.Second, "", logger.New(io.Discard))

	f.maxBytes = int64(len(body))
	if _, err := f.Fetch(context.Background(), server.URL+"/exact.png"); err != nil {
		t.Fatalf("body at the limit should pass: %v", err)
	}

	f.maxBytes = int64(len(body)) - 1
	_, err := f.Fetch(context.Background(), server.URL+"/big.png")
	if !errors.Is(err, captcha.ErrDownload) {
		t.Fatalf("got %v, want ErrDownload", err)
	}
}
