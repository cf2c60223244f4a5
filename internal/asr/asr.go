package asr

import (
	"context"
	"errors"
	"fmt"
)

// Engine fetches, opens and removes speech models. Implementations are not
// required to be safe for concurrent use; the Coordinator serializes access.
type Engine interface {
	// Fetch makes the model available locally and returns its path,
	// reporting download progress in [0,1] when a download is needed.
	Fetch(ctx context.Context, id string, progress func(float64)) (string, error)
	Open(ctx context.Context, path string) (Model, error)
	Remove(ctx context.Context, id string) error
}

// Model is a loaded, ready-to-run speech model.
type Model interface {
	Transcribe(ctx context.Context, samples []float32) (string, error)
	Close() error
}

var (
	ErrModelNotLoaded = errors.New("no speech model loaded")
	ErrEmptyAudio     = errors.New("no audio captured")
	ErrEmptyResult    = errors.New("no speech recognized")
	ErrInvalidModel   = errors.New("invalid model")
	// ErrEngineUnavailable is returned when the binary was built without
	// the whisper tag.
	ErrEngineUnavailable = errors.New("speech engine not compiled in (build with -tags whisper)")
)

// cancelledError marks work superseded by a newer request or abandoned via
// its context. It is never a failure.
type cancelledError struct {
	op    string
	id    string
	cause error
}

func (e cancelledError) Error() string {
	if e.id == "" {
		return e.op + " cancelled"
	}
	return fmt.Sprintf("%s %s cancelled", e.op, e.id)
}

func (e cancelledError) Unwrap() error { return e.cause }

// IsCancelled reports whether err signals supersession or cancellation.
func IsCancelled(err error) bool {
	var ce cancelledError
	return errors.As(err, &ce)
}
