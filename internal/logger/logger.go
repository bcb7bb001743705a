package logger

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"checkin/internal/config"

	"github.com/rs/zerolog"
)

// Logger provides leveled logging (debug/info/warning/error) to stdout,
// a log file and an in-memory trail of the current run.
type Logger struct {
	log   zerolog.Logger
	trail *trail
	file  *os.File
}

// trail keeps every line logged during the run so it can be sent in the
// final notification.
type trail struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (t *trail) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.buf.Write(p)
}

func (t *trail) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.buf.String()
}

func (t *trail) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf.Reset()
}

// NewLogger creates a Logger and ensures the log directory exists.
func NewLogger(config *config.Config) (*Logger, error) {
	if err := os.MkdirAll(config.LogDirectory, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	file, err := os.OpenFile(filepath.Join(config.LogDirectory, "checkin.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	console := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.DateTime}
	l := newLogger(console, file)
	l.file = file

	if config.Debug {
		l.log = l.log.Level(zerolog.DebugLevel)
	}
	return l, nil
}

// New creates a Logger writing only to w and to the trail.
func New(w io.Writer) *Logger {
	return newLogger(w)
}

func newLogger(writers ...io.Writer) *Logger {
	t := &trail{}
	writers = append(writers, zerolog.ConsoleWriter{Out: t, NoColor: true, TimeFormat: time.DateTime})

	return &Logger{
		log:   zerolog.New(zerolog.MultiLevelWriter(writers...)).Level(zerolog.InfoLevel).With().Timestamp().Logger(),
		trail: t,
	}
}

// Debug writes a formatted debug-level log entry.
func (l *Logger) Debug(format string, v ...interface{}) {
	l.log.Debug().Msgf(format, v...)
}

// Info writes a formatted info-level log entry.
func (l *Logger) Info(format string, v ...interface{}) {
	l.log.Info().Msgf(format, v...)
}

// Warning writes a formatted warning-level log entry.
func (l *Logger) Warning(format string, v ...interface{}) {
	l.log.Warn().Msgf(format, v...)
}

// Error writes a formatted error-level log entry.
func (l *Logger) Error(format string, v ...interface{}) {
	l.log.Error().Msgf(format, v...)
}

// Trail returns everything logged since the logger was created or the
// trail was last reset.
func (l *Logger) Trail() string {
	return l.trail.String()
}

// ResetTrail empties the in-memory trail.
func (l *Logger) ResetTrail() {
	l.trail.Reset()
	l.Debug("Log trail has been cleared.")
}

// Close releases the log file.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}
