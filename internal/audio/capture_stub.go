//go:build !whisper

package audio

import "github.com/sirupsen/logrus"

type stubCapture struct{}

// NewCapture reports ErrUnavailable; rebuild with -tags whisper.
func NewCapture(deviceName string, sampleRate, channels, frameMS int, logger *logrus.Logger) (Capture, error) {
	return stubCapture{}, nil
}

func (stubCapture) Start(func(float64)) error { return ErrUnavailable }
func (stubCapture) Stop() []float32          { return nil }

// Devices reports ErrUnavailable without PortAudio.
func Devices() ([]Device, error) { return nil, ErrUnavailable }

// TrimSilence returns samples unchanged without the VAD backend.
func TrimSilence(samples []float32, frameMS, mode int) ([]float32, error) {
	return samples, nil
}
