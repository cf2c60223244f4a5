// Package logging builds the daemon and CLI logger: logrus writing to a
// size-rotated file, optionally mirrored to stdout.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"holdtalk/internal/config"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Configure builds a logger from cfg.Logging writing to cfg.Paths.LogPath.
func Configure(cfg *config.Config) (*logrus.Logger, error) {
	if err := config.MustStatePaths(cfg); err != nil {
		return nil, err
	}
	formatter, err := newFormatter(cfg.Logging.Format)
	if err != nil {
		return nil, err
	}
	level := logrus.InfoLevel
	if cfg.Logging.Level != "" {
		if level, err = logrus.ParseLevel(strings.ToLower(cfg.Logging.Level)); err != nil {
			return nil, fmt.Errorf("logging.level %q: want debug, info, warn or error", cfg.Logging.Level)
		}
	}
	logger := logrus.New()
	logger.SetFormatter(formatter)
	logger.SetLevel(level)

	rotator := &lumberjack.Logger{
		Filename:   cfg.Paths.LogPath,
		MaxSize:    20, // megabytes
		MaxBackups: 3,
		MaxAge:     30,
	}
	if cfg.Logging.Stdout {
		logger.SetOutput(io.MultiWriter(os.Stdout, rotator))
	} else {
		logger.SetOutput(rotator)
	}
	return logger, nil
}

func newFormatter(format string) (logrus.Formatter, error) {
	switch strings.ToLower(format) {
	case "", "text":
		return &logrus.TextFormatter{FullTimestamp: true, TimestampFormat: time.DateTime}, nil
	case "json":
		return &logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano}, nil
	default:
		return nil, fmt.Errorf("logging.format %q: want text or json", format)
	}
}

// NewTestLogger returns a logger that discards output.
func NewTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	logger.SetLevel(logrus.DebugLevel)
	return logger
}
