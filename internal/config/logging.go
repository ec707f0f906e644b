package config

import (
	"fmt"
	"io"
	"os"

	log "github.com/sirupsen/logrus"
)

// Apply configures logger from the logging section. The returned closer
// releases the log file, if any; it is never nil.
func (l Logging) Apply(logger *log.Logger) (io.Closer, error) {
	level, err := log.ParseLevel(l.Level)
	if err != nil {
		return nil, err
	}
	logger.SetLevel(level)

	switch l.Format {
	case "json":
		logger.SetFormatter(&log.JSONFormatter{})
	default:
		logger.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}

	if l.File == "" {
		return nopCloser{}, nil
	}
	f, err := os.OpenFile(l.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	logger.SetOutput(f)
	return f, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
