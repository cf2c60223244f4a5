package pipeline

import (
	"time"

	evbus "github.com/asaskevich/EventBus"
)

// Bus topics. Handlers run synchronously on the control goroutine and must
// return quickly.
const (
	// TopicPhase: func(from, to phase.Phase)
	TopicPhase = "phase:changed"
	// TopicModel: func(status asr.ModelStatus)
	TopicModel = "model:status"
	// TopicIndicator: func(visible bool)
	TopicIndicator = "indicator:visible"
	// TopicLevel: func(level float64)
	TopicLevel = "indicator:level"
	// TopicTranscript: func(t Transcript)
	TopicTranscript = "transcript"
	// TopicFailure: func(f *Failure)
	TopicFailure = "pipeline:failure"
)

// NewBus returns the event bus shared by the orchestrator and its observers.
func NewBus() evbus.Bus { return evbus.New() }

// Transcript is one recognized utterance.
type Transcript struct {
	Session  string        `json:"session"`
	Text     string        `json:"text"`
	At       time.Time     `json:"at"`
	Audio    time.Duration `json:"audio"`
	Model    string        `json:"model"`
	Inferred time.Duration `json:"inferred"`
}
