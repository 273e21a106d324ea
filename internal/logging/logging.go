// Package logging builds the application logger. The terminal belongs to
// the UI, so output goes to a file.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/nhle/marketbell/internal/model"
)

// New opens the configured log file and returns a logger writing to it,
// plus a close function for the file.
func New(cfg model.LogConfig) (*logrus.Logger, func() error, error) {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing log level %q: %w", cfg.Level, err)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
		return nil, nil, fmt.Errorf("creating log directory: %w", err)
	}
	f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file %s: %w", cfg.File, err)
	}

	return NewWithWriter(f, level), f.Close, nil
}

// NewWithWriter returns a logger writing text lines to w.
func NewWithWriter(w io.Writer, level logrus.Level) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(w)
	log.SetLevel(level)
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:    true,
		DisableColors:    true,
		QuoteEmptyFields: true,
	})
	return log
}

// Discard returns a logger that drops everything.
func Discard() *logrus.Logger {
	return NewWithWriter(io.Discard, logrus.PanicLevel)
}
