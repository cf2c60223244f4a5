package asr

import (
	"context"
	"strings"

	"holdtalk/internal/config"

	"github.com/sirupsen/logrus"
)

// LocalEngine serves models from a Catalog and runs them with whisper.cpp.
type LocalEngine struct {
	*Catalog
	language string
	threads  int
	logger   *logrus.Logger
}

// NewEngine builds the engine described by cfg.
func NewEngine(cfg *config.Config, logger *logrus.Logger) *LocalEngine {
	return &LocalEngine{
		Catalog:  NewCatalog(cfg.ASR.ModelsDir, nil, logger),
		language: strings.TrimSpace(cfg.ASR.Language),
		threads:  cfg.ASR.Threads,
		logger:   logger,
	}
}

// Open implements Engine.
func (e *LocalEngine) Open(ctx context.Context, path string) (Model, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return openWhisper(path, e.language, e.threads, e.logger)
}

// TranscribeFile loads path, runs it once and closes it.
func (e *LocalEngine) TranscribeFile(ctx context.Context, modelID string, samples []float32) (string, error) {
	path, err := e.Resolve(modelID)
	if err != nil {
		return "", err
	}
	m, err := e.Open(ctx, path)
	if err != nil {
		return "", err
	}
	defer func() { _ = m.Close() }()
	text, err := m.Transcribe(ctx, samples)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}
