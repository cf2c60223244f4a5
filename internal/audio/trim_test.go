//go:build !whisper

package audio

import (
	"testing"

	"holdtalk/internal/logging"
)

type fixedCapture struct{ samples []float32 }

func (f fixedCapture) Start(func(float64)) error { return nil }
func (f fixedCapture) Stop() []float32          { return f.samples }

func TestTrimmedPassesThroughWithoutVAD(t *testing.T) {
	c := Trimmed(fixedCapture{samples: make([]float32, 640)}, 20, 2, logging.NewTestLogger())
	if err := c.Start(nil); err != nil {
		t.Fatalf("start: %v", err)
	}
	if got := len(c.Stop()); got != 640 {
		t.Fatalf("want 640 samples, got %d", got)
	}
}

func TestTrimmedEmptyRecording(t *testing.T) {
	c := Trimmed(fixedCapture{}, 20, 2, logging.NewTestLogger())
	if got := c.Stop(); len(got) != 0 {
		t.Fatalf("want no samples, got %d", len(got))
	}
}
