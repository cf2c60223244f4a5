package pipeline

import (
	"errors"
	"fmt"
	"testing"

	"holdtalk/internal/asr"
	"holdtalk/internal/output"
)

func TestKindOf(t *testing.T) {
	cases := []struct {
		err  error
		want Kind
	}{
		{nil, ""},
		{newFailure(KindResource, "capture", "x", nil), KindResource},
		{fmt.Errorf("wrapped: %w", newFailure(KindModel, "load", "x", nil)), KindModel},
		{errors.New("plain"), KindUnknown},
	}
	for _, c := range cases {
		if got := KindOf(c.err); got != c.want {
			t.Fatalf("KindOf(%v) = %q, want %q", c.err, got, c.want)
		}
	}
}

func TestTranscriptionFailureMessages(t *testing.T) {
	cases := map[error]string{
		asr.ErrModelNotLoaded: "No speech model is loaded.",
		asr.ErrEmptyAudio:     "No audio was captured.",
		asr.ErrEmptyResult:    "No speech detected.",
	}
	for err, want := range cases {
		f := transcriptionFailure(fmt.Errorf("transcribe: %w", err))
		if f.Message != want || f.Kind != KindModel {
			t.Fatalf("%v -> %+v", err, f)
		}
		if !errors.Is(f, err) {
			t.Fatalf("failure does not unwrap to %v", err)
		}
	}
}

func TestOutputFailureKinds(t *testing.T) {
	if f := outputFailure(output.ErrPermissionRequired); f.Kind != KindUserInput {
		t.Fatalf("permission failure kind %s", f.Kind)
	}
	if f := outputFailure(output.ErrWriteFailed); f.Kind != KindResource {
		t.Fatalf("write failure kind %s", f.Kind)
	}
}

func TestLoadFailureNamesInvalidModel(t *testing.T) {
	f := loadFailure("nope", fmt.Errorf("fetch nope: %w", asr.ErrInvalidModel))
	if f.Message != `Unknown model "nope".` {
		t.Fatalf("message %q", f.Message)
	}
}

func TestMinSamples(t *testing.T) {
	if got := DefaultConfig().MinSamples(); got != 3200 {
		t.Fatalf("MinSamples = %d, want 3200", got)
	}
}
