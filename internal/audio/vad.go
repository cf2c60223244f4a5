//go:build whisper

package audio

import (
	"fmt"

	vad "github.com/maxhawkins/go-webrtcvad"
)

// TrimSilence drops leading and trailing frames the webrtc VAD classifies as
// non-speech. Interior pauses are kept.
func TrimSilence(samples []float32, frameMS, mode int) ([]float32, error) {
	frame := TargetRate * frameMS / 1000
	if !vad.ValidRateAndFrameLength(TargetRate, frame) {
		return nil, fmt.Errorf("invalid frame_ms %d for %d Hz", frameMS, TargetRate)
	}
	v, err := vad.New()
	if err != nil {
		return nil, fmt.Errorf("vad: %w", err)
	}
	if err := v.SetMode(mode); err != nil {
		return nil, fmt.Errorf("vad mode: %w", err)
	}
	pcm := FloatToInt16(samples)
	raw := make([]byte, frame*2)
	first, last := -1, -1
	for i := 0; i+frame <= len(pcm); i += frame {
		for j, s := range pcm[i : i+frame] {
			raw[2*j] = byte(s)
			raw[2*j+1] = byte(s >> 8)
		}
		voice, err := v.Process(TargetRate, raw)
		if err != nil {
			return nil, fmt.Errorf("vad process: %w", err)
		}
		if voice {
			if first < 0 {
				first = i
			}
			last = i + frame
		}
	}
	if first < 0 {
		return samples[:0], nil
	}
	return samples[first:last], nil
}
