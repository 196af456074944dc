// Package logging builds the client's logrus logger from configuration.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pharmaguard-client/internal/domain"
)

// Log formats
const (
	FormatJSON = "json"
	FormatText = "text"
)

// New creates a logger writing to stderr, so stdout stays free for reports.
func New(config domain.LoggingConfig) *logrus.Logger {
	return NewWithOutput(config, os.Stderr)
}

// NewWithOutput creates a logger writing to out. Unknown levels fall back to info.
func NewWithOutput(config domain.LoggingConfig, out io.Writer) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(out)

	// Set log level
	level, err := logrus.ParseLevel(config.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	// Set formatter
	if strings.EqualFold(config.Format, FormatJSON) {
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			TimestampFormat: time.RFC3339,
			FullTimestamp:   true,
		})
	}

	return logger
}

// Discard returns a logger that drops everything.
func Discard() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}
