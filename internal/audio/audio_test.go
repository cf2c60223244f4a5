package audio

import (
	"math"
	"testing"
)

func TestResampleLength(t *testing.T) {
	in := []float32{0, 1, 2, 3}
	if out := Resample(in, 16000, 8000); len(out) != 2 {
		t.Fatalf("downsample length got %d", len(out))
	}
	if out := Resample(in, 8000, 16000); len(out) != 8 {
		t.Fatalf("upsample length got %d", len(out))
	}
}

func TestResampleEnds(t *testing.T) {
	out := Resample([]float32{0, 10}, 1000, 2000)
	if out[0] != 0 || out[len(out)-1] != 10 {
		t.Fatalf("endpoints not preserved: %v", out)
	}
}

func TestResampleSameRateCopies(t *testing.T) {
	in := []float32{1, 2}
	out := Resample(in, 16000, 16000)
	out[0] = 9
	if in[0] != 1 {
		t.Fatalf("same-rate resample aliased its input")
	}
}

func TestLevel(t *testing.T) {
	if Level(nil) != 0 {
		t.Fatalf("empty frame should be silent")
	}
	if got := Level(make([]float32, 160)); got != 0 {
		t.Fatalf("silence level %v", got)
	}
	loud := make([]float32, 160)
	for i := range loud {
		loud[i] = 0.9
	}
	if got := Level(loud); got != 1 {
		t.Fatalf("loud level %v, want clipped to 1", got)
	}
	quiet := make([]float32, 160)
	for i := range quiet {
		quiet[i] = 0.1
	}
	if got := Level(quiet); math.Abs(got-0.3) > 1e-6 {
		t.Fatalf("quiet level %v", got)
	}
}

func TestDownmixInterleaved(t *testing.T) {
	out := DownmixInterleaved([]float32{1, 0, 0.5, 0.5}, 2)
	if len(out) != 2 || out[0] != 0.5 || out[1] != 0.5 {
		t.Fatalf("got %v", out)
	}
}

func TestFloatToInt16Clips(t *testing.T) {
	out := FloatToInt16([]float32{2, -2, 0})
	if out[0] != 32767 || out[1] != -32768 || out[2] != 0 {
		t.Fatalf("got %v", out)
	}
}
