package pipeline

import (
	"errors"
	"fmt"

	"holdtalk/internal/asr"
	"holdtalk/internal/output"
)

// Kind groups failures by how they are reported.
type Kind string

const (
	KindUserInput Kind = "user_input"
	KindResource  Kind = "resource"
	KindModel     Kind = "model"
	KindCancelled Kind = "cancelled"
	KindUnknown   Kind = "unknown"
)

var (
	// ErrBusy rejects model loads while a dictation is in progress.
	ErrBusy = errors.New("busy: finish the current dictation first")
	// ErrStopped is returned once the control loop has exited.
	ErrStopped = errors.New("pipeline stopped")
)

// Failure is a classified pipeline error. Message is what the status surface
// shows.
type Failure struct {
	Kind    Kind
	Op      string
	Message string
	Cause   error
}

func (e *Failure) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Kind, e.Op, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Kind, e.Op, e.Message)
}

func (e *Failure) Unwrap() error { return e.Cause }

func newFailure(kind Kind, op, message string, cause error) *Failure {
	return &Failure{Kind: kind, Op: op, Message: message, Cause: cause}
}

// KindOf returns the kind of the first Failure in err's chain, treating
// coordinator cancellations as KindCancelled.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind
	}
	if asr.IsCancelled(err) {
		return KindCancelled
	}
	return KindUnknown
}

func transcriptionFailure(err error) *Failure {
	switch {
	case asr.IsCancelled(err):
		return newFailure(KindCancelled, "transcribe", "Transcription cancelled.", err)
	case errors.Is(err, asr.ErrModelNotLoaded):
		return newFailure(KindModel, "transcribe", "No speech model is loaded.", err)
	case errors.Is(err, asr.ErrEmptyAudio):
		return newFailure(KindModel, "transcribe", "No audio was captured.", err)
	case errors.Is(err, asr.ErrEmptyResult):
		return newFailure(KindModel, "transcribe", "No speech detected.", err)
	default:
		return newFailure(KindModel, "transcribe", "Transcription failed.", err)
	}
}

func outputFailure(err error) *Failure {
	switch {
	case errors.Is(err, output.ErrPermissionRequired):
		return newFailure(KindUserInput, "output", "Missing Accessibility permission to paste text.", err)
	case errors.Is(err, output.ErrWriteFailed):
		return newFailure(KindResource, "output", "Could not write to the clipboard.", err)
	default:
		return newFailure(KindResource, "output", "Could not deliver the transcript.", err)
	}
}

func loadFailure(id string, err error) *Failure {
	if errors.Is(err, asr.ErrInvalidModel) {
		return newFailure(KindModel, "load", fmt.Sprintf("Unknown model %q.", id), err)
	}
	return newFailure(KindModel, "load", "Could not load the speech model.", err)
}
