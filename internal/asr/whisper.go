//go:build whisper

package asr

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
	"github.com/sirupsen/logrus"
)

// whisperModel wraps a whisper.cpp model; a fresh context is made per call.
type whisperModel struct {
	model    whisper.Model
	language string
	threads  int
	logger   *logrus.Logger
}

func openWhisper(path, language string, threads int, logger *logrus.Logger) (Model, error) {
	m, err := whisper.New(path)
	if err != nil {
		return nil, fmt.Errorf("load model: %w", err)
	}
	return &whisperModel{model: m, language: language, threads: threads, logger: logger}, nil
}

func (w *whisperModel) Transcribe(ctx context.Context, samples []float32) (string, error) {
	wctx, err := w.model.NewContext()
	if err != nil {
		return "", err
	}
	if w.threads > 0 {
		wctx.SetThreads(uint(w.threads))
	}
	if w.language != "" {
		if err := wctx.SetLanguage(w.language); err != nil {
			w.logger.Warnf("set language %q: %v", w.language, err)
		}
	}
	// Returning false from the encoder callback aborts inference.
	keepGoing := func() bool { return ctx.Err() == nil }
	if err := wctx.Process(samples, keepGoing, nil, nil); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", err
	}
	var b strings.Builder
	for {
		seg, err := wctx.NextSegment()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return "", err
		}
		b.WriteString(seg.Text)
		if !strings.HasSuffix(seg.Text, " ") {
			b.WriteByte(' ')
		}
	}
	return b.String(), nil
}

func (w *whisperModel) Close() error {
	return w.model.Close()
}
