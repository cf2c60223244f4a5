package hotkey

import "sync"

// EventType tags a raw key transition.
type EventType int

const (
	KeyDown EventType = iota
	KeyUp
	ModifiersChanged
)

func (t EventType) String() string {
	switch t {
	case KeyDown:
		return "down"
	case KeyUp:
		return "up"
	case ModifiersChanged:
		return "modifiers"
	default:
		return "unknown"
	}
}

// Event is a single raw key transition from the source. Modifiers is the
// set of modifier flags down after the event, for every event type.
type Event struct {
	Type      EventType
	Key       Key
	Modifiers Modifiers
}

// Mask selects which events a source delivers.
type Mask int

const (
	// MaskModifiers delivers only ModifiersChanged events.
	MaskModifiers Mask = iota
	// MaskAll delivers every event type.
	MaskAll
)

func (m Mask) allows(t EventType) bool {
	return m == MaskAll || t == ModifiersChanged
}

// Sink receives events from a Source.
type Sink interface {
	KeyEvent(ev Event)
	// SourceDisabled reports that the source stopped delivering events
	// (timeout, security policy, feeder gone). Held state is unknown.
	SourceDisabled()
}

// Source is the platform key-event tap.
type Source interface {
	// Subscribe replaces any previous subscription.
	Subscribe(mask Mask, sink Sink) error
	// Reenable asks a disabled source to resume delivery.
	Reenable()
	Close() error
}

// ManualSource is an in-process Source driven by Feed and Disable. It is
// used by tests and by the daemon's socket feeder.
type ManualSource struct {
	mu        sync.Mutex
	mask      Mask
	sink      Sink
	disabled  bool
	reenabled int
}

func NewManualSource() *ManualSource { return &ManualSource{} }

func (s *ManualSource) Subscribe(mask Mask, sink Sink) error {
	s.mu.Lock()
	s.mask = mask
	s.sink = sink
	s.mu.Unlock()
	return nil
}

func (s *ManualSource) Reenable() {
	s.mu.Lock()
	s.disabled = false
	s.reenabled++
	s.mu.Unlock()
}

func (s *ManualSource) Close() error {
	s.mu.Lock()
	s.sink = nil
	s.mu.Unlock()
	return nil
}

// Mask returns the current subscription mask.
func (s *ManualSource) Mask() Mask {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mask
}

// Reenabled returns how many times Reenable was called.
func (s *ManualSource) Reenabled() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reenabled
}

// Feed delivers ev if the current mask allows it and the source is enabled.
// It reports whether the event was delivered.
func (s *ManualSource) Feed(ev Event) bool {
	s.mu.Lock()
	sink, mask, disabled := s.sink, s.mask, s.disabled
	s.mu.Unlock()
	if sink == nil || disabled || !mask.allows(ev.Type) {
		return false
	}
	sink.KeyEvent(ev)
	return true
}

// Disable marks the source disabled and notifies the sink.
func (s *ManualSource) Disable() {
	s.mu.Lock()
	s.disabled = true
	sink := s.sink
	s.mu.Unlock()
	if sink != nil {
		sink.SourceDisabled()
	}
}
