package logging

import (
	"os"
	"path/filepath"
	"testing"

	"holdtalk/internal/config"

	"github.com/sirupsen/logrus"
)

func TestConfigureWritesToRotatedFile(t *testing.T) {
	dir := t.TempDir()
	cfg, _ := config.Default()
	cfg.Paths.StateDir = dir
	cfg.Paths.LogPath = filepath.Join(dir, "logs", "holdtalk.log")
	cfg.Paths.TranscriptPath = filepath.Join(dir, "transcripts.log")
	cfg.ASR.ModelsDir = filepath.Join(dir, "models")
	cfg.Logging.Level = "debug"
	cfg.Logging.Format = "json"

	logger, err := Configure(cfg)
	if err != nil {
		t.Fatalf("configure: %v", err)
	}
	if logger.GetLevel() != logrus.DebugLevel {
		t.Fatalf("level = %v", logger.GetLevel())
	}
	if _, ok := logger.Formatter.(*logrus.JSONFormatter); !ok {
		t.Fatalf("expected json formatter, got %T", logger.Formatter)
	}
	logger.Info("hello")
	data, err := os.ReadFile(cfg.Paths.LogPath)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if len(data) == 0 {
		t.Fatalf("log file empty")
	}
}

func TestConfigureRejectsBadSettings(t *testing.T) {
	for _, tc := range []struct{ level, format string }{
		{level: "loud", format: "text"},
		{level: "info", format: "xml"},
	} {
		dir := t.TempDir()
		cfg, _ := config.Default()
		cfg.Paths.StateDir = dir
		cfg.Paths.LogPath = filepath.Join(dir, "holdtalk.log")
		cfg.Paths.TranscriptPath = filepath.Join(dir, "transcripts.log")
		cfg.ASR.ModelsDir = filepath.Join(dir, "models")
		cfg.Logging.Level = tc.level
		cfg.Logging.Format = tc.format
		if _, err := Configure(cfg); err == nil {
			t.Fatalf("level=%q format=%q accepted", tc.level, tc.format)
		}
	}
}
