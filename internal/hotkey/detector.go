package hotkey

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// Callbacks receive edge-triggered engage/disengage signals. They run on the
// goroutine delivering the event and must not call back into the Detector.
type Callbacks struct {
	OnEngage    func()
	OnDisengage func()
}

// Detector tracks held keys from a Source and signals when the held set
// becomes exactly the binding, and when it stops being so.
type Detector struct {
	mu      sync.Mutex
	binding Binding
	held    map[Key]struct{}
	engaged bool
	source  Source
	mask    Mask
	cb      Callbacks
	logger  *logrus.Logger
}

func NewDetector(binding Binding, cb Callbacks, logger *logrus.Logger) *Detector {
	return &Detector{
		binding: binding,
		held:    make(map[Key]struct{}),
		cb:      cb,
		logger:  logger,
	}
}

func maskFor(b Binding) Mask {
	if b.ModifierOnly() {
		return MaskModifiers
	}
	return MaskAll
}

// Start subscribes to src with the narrowest mask the binding allows.
func (d *Detector) Start(src Source) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.source = src
	d.mask = maskFor(d.binding)
	d.pruneForMask()
	return src.Subscribe(d.mask, d)
}

// Stop unsubscribes and clears held keys. If the binding was engaged the
// disengage callback fires.
func (d *Detector) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	var err error
	if d.source != nil {
		err = d.source.Close()
		d.source = nil
	}
	d.held = make(map[Key]struct{})
	d.recompute()
	return err
}

// Binding returns the active binding.
func (d *Detector) Binding() Binding {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.binding
}

// Engaged reports the current edge state.
func (d *Detector) Engaged() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.engaged
}

// SetBinding replaces the binding, resubscribing when the required event
// mask changes, and fires an edge if the held set now (no longer) matches.
func (d *Detector) SetBinding(b Binding) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.binding = b
	var err error
	if want := maskFor(b); d.source != nil && want != d.mask {
		d.mask = want
		// Key-ups of non-modifier keys are no longer delivered.
		d.pruneForMask()
		err = d.source.Subscribe(want, d)
		if err != nil {
			d.logger.Errorf("hotkey resubscribe: %v", err)
		}
	}
	d.recompute()
	return err
}

// KeyEvent implements Sink.
func (d *Detector) KeyEvent(ev Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	switch ev.Type {
	case KeyDown:
		if ev.Key != "" {
			d.held[ev.Key] = struct{}{}
		}
		d.dropReleasedModifiers(ev.Modifiers)
	case KeyUp:
		delete(d.held, ev.Key)
		d.dropReleasedModifiers(ev.Modifiers)
	case ModifiersChanged:
		if flag := ev.Key.Flag(); flag != 0 {
			_, already := d.held[ev.Key]
			if ev.Modifiers.Has(flag) && !already {
				d.held[ev.Key] = struct{}{}
			} else {
				delete(d.held, ev.Key)
			}
		}
		d.dropReleasedModifiers(ev.Modifiers)
	}
	d.recompute()
}

// SourceDisabled implements Sink.
func (d *Detector) SourceDisabled() {
	d.mu.Lock()
	d.logger.Warn("hotkey source disabled; clearing held keys")
	d.held = make(map[Key]struct{})
	d.recompute()
	src := d.source
	d.mu.Unlock()
	if src != nil {
		src.Reenable()
	}
}

// dropReleasedModifiers forgets held modifier keys whose flag is absent
// from an event's snapshot, recovering from lost key-up events.
func (d *Detector) dropReleasedModifiers(snapshot Modifiers) {
	for k := range d.held {
		if flag := k.Flag(); flag != 0 && !snapshot.Has(flag) {
			delete(d.held, k)
		}
	}
}

// pruneForMask forgets held keys the current mask no longer reports.
func (d *Detector) pruneForMask() {
	if d.mask != MaskModifiers {
		return
	}
	for k := range d.held {
		if k.Flag() == 0 {
			delete(d.held, k)
		}
	}
}

func (d *Detector) recompute() {
	now := d.binding.Matches(d.held)
	if now == d.engaged {
		return
	}
	d.engaged = now
	if now {
		d.logger.Debugf("hotkey engaged: %s", d.binding)
		if d.cb.OnEngage != nil {
			d.cb.OnEngage()
		}
		return
	}
	d.logger.Debugf("hotkey released: %s", d.binding)
	if d.cb.OnDisengage != nil {
		d.cb.OnDisengage()
	}
}
