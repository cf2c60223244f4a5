package pipeline

import (
	"time"

	"holdtalk/internal/audio"
)

// Config holds the orchestrator's fixed delays and thresholds.
type Config struct {
	RecordingTimeout time.Duration
	MinRecording     time.Duration
	SampleRate       int

	RecoverPermission    time.Duration
	RecoverCapture       time.Duration
	RecoverTooShort      time.Duration
	RecoverTranscription time.Duration
	RecoverOutput        time.Duration
	RecoverModel         time.Duration

	// DumpDir, when set, receives a WAV copy of each recording.
	DumpDir string
}

func DefaultConfig() Config {
	return Config{
		RecordingTimeout:     90 * time.Second,
		MinRecording:         200 * time.Millisecond,
		SampleRate:           audio.TargetRate,
		RecoverPermission:    4 * time.Second,
		RecoverCapture:       3 * time.Second,
		RecoverTooShort:      2 * time.Second,
		RecoverTranscription: 3 * time.Second,
		RecoverOutput:        3 * time.Second,
		RecoverModel:         4 * time.Second,
	}
}

// MinSamples is the shortest recording that is transcribed.
func (c Config) MinSamples() int {
	return int(c.MinRecording.Seconds() * float64(c.SampleRate))
}
