// Package permissions answers whether the daemon may record audio and
// synthesize keystrokes.
package permissions

import (
	"context"
	"strings"
	"sync"
	"time"
)

// State is a tri-state permission answer.
type State int

const (
	Unknown State = iota
	Granted
	Denied
)

func (s State) String() string {
	switch s {
	case Granted:
		return "granted"
	case Denied:
		return "denied"
	default:
		return "unknown"
	}
}

// ParseState reads "granted", "denied" or anything else as Unknown.
func ParseState(s string) State {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "granted", "yes", "true":
		return Granted
	case "denied", "no", "false":
		return Denied
	default:
		return Unknown
	}
}

// Probe queries the system for one permission.
type Probe func() State

// Checker caches permission answers. Without Watch, Refresh re-probes
// inline. Once Watch runs, probes only run on its goroutine and Refresh just
// nudges it, so callers never wait on a slow probe.
type Checker struct {
	micProbe Probe
	axProbe  Probe
	kick     chan struct{}
	ready    chan struct{}

	mu        sync.Mutex
	mic       State
	ax        State
	refreshed bool
	watching  bool
}

// NewChecker uses the given probes; a nil probe always answers Unknown.
func NewChecker(mic, accessibility Probe) *Checker {
	return &Checker{
		micProbe: mic,
		axProbe:  accessibility,
		kick:     make(chan struct{}, 1),
		ready:    make(chan struct{}),
	}
}

// Fixed returns a probe that always answers s.
func Fixed(s State) Probe { return func() State { return s } }

// FromSetting maps a config value to a probe: "granted" and "denied" pin the
// answer, "auto" defers to fallback.
func FromSetting(setting string, fallback Probe) Probe {
	if st := ParseState(setting); st != Unknown {
		return Fixed(st)
	}
	return fallback
}

// Refresh asks for fresh answers. While Watch runs it returns at once and
// the answers change when the background probe finishes.
func (c *Checker) Refresh() {
	c.mu.Lock()
	watching := c.watching
	c.mu.Unlock()
	if !watching {
		c.probe()
		return
	}
	select {
	case c.kick <- struct{}{}:
	default:
	}
}

// Watch probes now, then again every interval and whenever Refresh asks,
// until ctx ends.
func (c *Checker) Watch(ctx context.Context, every time.Duration) {
	c.mu.Lock()
	c.watching = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.watching = false
		c.mu.Unlock()
	}()

	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		c.probe()
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-c.kick:
		}
	}
}

func (c *Checker) probe() {
	mic := run(c.micProbe)
	ax := run(c.axProbe)
	c.mu.Lock()
	c.mic, c.ax = mic, ax
	if !c.refreshed {
		c.refreshed = true
		close(c.ready)
	}
	c.mu.Unlock()
}

func run(p Probe) State {
	if p == nil {
		return Unknown
	}
	return p()
}

func (c *Checker) Microphone() State {
	c.ensure()
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mic
}

func (c *Checker) Accessibility() State {
	c.ensure()
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ax
}

// ensure makes sure there is a first answer. Under Watch it waits for the
// first background probe.
func (c *Checker) ensure() {
	c.mu.Lock()
	done, watching := c.refreshed, c.watching
	c.mu.Unlock()
	switch {
	case done:
	case watching:
		<-c.ready
	default:
		c.probe()
	}
}
