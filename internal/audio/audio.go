// Package audio captures microphone input and converts it to the 16 kHz
// mono float32 samples the speech engine expects.
package audio

import (
	"errors"
	"math"
)

// TargetRate is the sample rate delivered by every Capture.
const TargetRate = 16000

// ErrUnavailable is returned when no capture backend is compiled in.
var ErrUnavailable = errors.New("microphone capture not compiled in (build with -tags whisper)")

// Capture records from an input device between Start and Stop.
type Capture interface {
	// Start begins recording. level, when non-nil, receives a normalized
	// input level in [0,1] for each captured frame.
	Start(level func(float64)) error
	// Stop ends recording and returns TargetRate mono samples.
	Stop() []float32
}

// Level returns the RMS of frame scaled into [0,1].
func Level(frame []float32) float64 {
	if len(frame) == 0 {
		return 0
	}
	var sum float64
	for _, s := range frame {
		sum += float64(s) * float64(s)
	}
	rms := math.Sqrt(sum / float64(len(frame)))
	// Speech rarely exceeds -10 dBFS; stretch so it fills the meter.
	lvl := rms * 3
	if lvl > 1 {
		lvl = 1
	}
	return lvl
}

// Resample converts in from srcRate to dstRate with linear interpolation.
func Resample(in []float32, srcRate, dstRate int) []float32 {
	if srcRate == dstRate || len(in) == 0 {
		out := make([]float32, len(in))
		copy(out, in)
		return out
	}
	ratio := float64(dstRate) / float64(srcRate)
	outLen := int(float64(len(in))*ratio + 0.9999)
	out := make([]float32, outLen)
	for i := 0; i < outLen; i++ {
		pos := float64(i) / ratio
		idx := int(pos)
		if idx >= len(in)-1 {
			out[i] = in[len(in)-1]
			continue
		}
		frac := float32(pos - float64(idx))
		out[i] = in[idx]*(1-frac) + in[idx+1]*frac
	}
	return out
}

// DownmixInterleaved averages interleaved channels into mono.
func DownmixInterleaved(in []float32, channels int) []float32 {
	if channels <= 1 {
		return in
	}
	out := make([]float32, len(in)/channels)
	for i := range out {
		var sum float32
		for c := 0; c < channels; c++ {
			sum += in[i*channels+c]
		}
		out[i] = sum / float32(channels)
	}
	return out
}

// Int16ToFloat converts PCM16 to [-1,1).
func Int16ToFloat(in []int16) []float32 {
	out := make([]float32, len(in))
	for i, s := range in {
		out[i] = float32(s) / 32768.0
	}
	return out
}

// FloatToInt16 converts [-1,1] samples to PCM16, clipping.
func FloatToInt16(in []float32) []int16 {
	out := make([]int16, len(in))
	for i, s := range in {
		v := s * 32767
		if v > 32767 {
			v = 32767
		}
		if v < -32768 {
			v = -32768
		}
		out[i] = int16(v)
	}
	return out
}
