// Package phase holds the push-to-talk operating phase and the table of
// legal moves between phases.
package phase

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// Kind identifies a phase without its payload.
type Kind int

const (
	KindIdle Kind = iota
	KindLoading
	KindRecording
	KindTranscribing
	KindPasting
	KindError
)

// String returns the lower-case name of the kind.
func (k Kind) String() string {
	switch k {
	case KindIdle:
		return "idle"
	case KindLoading:
		return "loading"
	case KindRecording:
		return "recording"
	case KindTranscribing:
		return "transcribing"
	case KindPasting:
		return "pasting"
	case KindError:
		return "error"
	default:
		return "unknown"
	}
}

// Kinds lists every kind in declaration order.
var Kinds = []Kind{KindIdle, KindLoading, KindRecording, KindTranscribing, KindPasting, KindError}

// Phase is the current stage of the pipeline. Message is only meaningful for
// Loading and Error.
type Phase struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message,omitempty"`
}

func Idle() Phase { return Phase{Kind: KindIdle} }
func Loading(msg string) Phase { return Phase{Kind: KindLoading, Message: msg} }
func Recording() Phase { return Phase{Kind: KindRecording} }
func Transcribing() Phase { return Phase{Kind: KindTranscribing} }
func Pasting() Phase { return Phase{Kind: KindPasting} }
func Error(msg string) Phase { return Phase{Kind: KindError, Message: msg} }
func (p Phase) Is(k Kind) bool { return p.Kind == k }
func (p Phase) String() string {
	if p.Message == "" {
		return p.Kind.String()
	}
	return p.Kind.String() + "(" + p.Message + ")"
}

var allowed = map[Kind][]Kind{
	KindIdle:         {KindLoading, KindRecording},
	KindLoading:      {KindIdle, KindLoading},
	KindRecording:    {KindTranscribing, KindIdle},
	KindTranscribing: {KindPasting, KindIdle},
	KindPasting:      {KindIdle},
	KindError:        {KindIdle, KindLoading},
}

// CanTransition reports whether from -> to is legal. Self moves and moves
// into Error are always legal.
func CanTransition(from, to Kind) bool {
	if from == to || to == KindError {
		return true
	}
	for _, k := range allowed[from] {
		if k == to {
			return true
		}
	}
	return false
}

// Observer is called after every accepted transition.
type Observer func(from, to Phase)

// Machine holds the current phase and enforces the transition table.
type Machine struct {
	mu        sync.RWMutex
	cur       Phase
	logger    *logrus.Logger
	observers []Observer
}

// NewMachine returns a machine in Idle.
func NewMachine(logger *logrus.Logger) *Machine {
	return &Machine{cur: Idle(), logger: logger}
}

// Current returns the active phase.
func (m *Machine) Current() Phase {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cur
}

// Observe registers fn for accepted transitions. Observers run synchronously
// on the caller of Transition.
func (m *Machine) Observe(fn Observer) {
	m.mu.Lock()
	m.observers = append(m.observers, fn)
	m.mu.Unlock()
}

// Transition moves to the given phase if the table allows it. A rejected
// move leaves the phase unchanged and is logged; callers must check the
// result.
func (m *Machine) Transition(to Phase) bool {
	m.mu.Lock()
	from := m.cur
	if !CanTransition(from.Kind, to.Kind) {
		m.mu.Unlock()
		if m.logger != nil {
			m.logger.WithFields(logrus.Fields{"from": from.String(), "to": to.String()}).
				Warn("rejected illegal phase transition")
		}
		return false
	}
	m.cur = to
	observers := append([]Observer(nil), m.observers...)
	m.mu.Unlock()

	if m.logger != nil && from != to {
		m.logger.Debugf("phase %s -> %s", from, to)
	}
	for _, fn := range observers {
		fn(from, to)
	}
	return true
}
