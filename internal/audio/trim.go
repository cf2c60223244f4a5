package audio

import "github.com/sirupsen/logrus"

type trimmedCapture struct {
	Capture
	frameMS int
	mode    int
	logger  *logrus.Logger
}

// Trimmed wraps c so that Stop drops leading and trailing silence. If the
// VAD fails the untrimmed recording is returned.
func Trimmed(c Capture, frameMS, mode int, logger *logrus.Logger) Capture {
	return &trimmedCapture{Capture: c, frameMS: frameMS, mode: mode, logger: logger}
}

func (t *trimmedCapture) Stop() []float32 {
	samples := t.Capture.Stop()
	if len(samples) == 0 {
		return samples
	}
	out, err := TrimSilence(samples, t.frameMS, t.mode)
	if err != nil {
		t.logger.Warnf("trim silence: %v", err)
		return samples
	}
	t.logger.Debugf("trimmed %d of %d samples", len(samples)-len(out), len(samples))
	return out
}
