package logger

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"checkin/internal/config"
)

func TestLogger_TrailCollectsAllLevels(t *testing.T) {
	log := New(io.Discard)

	log.Info("starting attempt %d", 1)
	log.Warning("low quality puzzle")
	log.Error("download failed: %s", "boom")

	trail := log.Trail()
	for _, want := range []string{"starting attempt 1", "low quality puzzle", "download failed: boom", "INF", "WRN", "ERR"} {
		if !strings.Contains(trail, want) {
			t.Errorf("trail missing %q:\n%s", want, trail)
		}
	}
}

func TestLogger_DebugHiddenByDefault(t *testing.T) {
	var out bytes.Buffer
	log := New(&out)

	log.Debug("hidden detail")

	if strings.Contains(log.Trail(), "hidden detail") || strings.Contains(out.String(), "hidden detail") {
		t.Error("debug entries should be filtered at info level")
	}
}

func TestLogger_ResetTrail(t *testing.T) {
	log := New(io.Discard)
	log.Info("first run")

	log.ResetTrail()

	if strings.Contains(log.Trail(), "first run") {
		t.Errorf("trail should be empty after reset, got %q", log.Trail())
	}
}

func TestNewLogger_WritesFile(t *testing.T) {
	dir := t.TempDir()
	log, err := NewLogger(&config.Config{LogDirectory: filepath.Join(dir, "logs")})
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}

	log.Info("persisted line")
	if err := log.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "logs", "checkin.log"))
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	if !strings.Contains(string(data), "persisted line") {
		t.Errorf("log file missing entry: %s", data)
	}
}
