package run

import (
	"bufio"
	"strings"
	"testing"

	"holdtalk/internal/control"
	"holdtalk/internal/hotkey"
	"holdtalk/internal/logging"
)

type edges struct{ engage, disengage int }

func newFeedDetector(t *testing.T, b hotkey.Binding) (*keyFeed, *hotkey.Detector, *edges) {
	t.Helper()
	e := &edges{}
	d := hotkey.NewDetector(b, hotkey.Callbacks{
		OnEngage:    func() { e.engage++ },
		OnDisengage: func() { e.disengage++ },
	}, logging.NewTestLogger())
	src := hotkey.NewManualSource()
	if err := d.Start(src); err != nil {
		t.Fatalf("start: %v", err)
	}
	return newKeyFeed(src), d, e
}

func feed(t *testing.T, f *keyFeed, evs ...control.KeyEvent) {
	t.Helper()
	for _, ev := range evs {
		if err := f.apply(ev); err != nil {
			t.Fatalf("apply %+v: %v", ev, err)
		}
	}
}

func kd(k string) control.KeyEvent { return control.KeyEvent{Type: "down", Key: k} }
func ku(k string) control.KeyEvent { return control.KeyEvent{Type: "up", Key: k} }

func TestKeyFeedModifierChord(t *testing.T) {
	f, _, e := newFeedDetector(t, hotkey.NewBinding("ctrl", "alt"))
	feed(t, f, kd("control"), kd("option"))
	if e.engage != 1 {
		t.Fatalf("engage=%d", e.engage)
	}
	// auto-repeat of a held modifier must not release it
	feed(t, f, kd("ctrl"))
	if e.disengage != 0 {
		t.Fatalf("repeat released the chord")
	}
	feed(t, f, ku("alt"))
	if e.disengage != 1 {
		t.Fatalf("disengage=%d", e.disengage)
	}
	// stray release is ignored
	feed(t, f, ku("alt"))
	feed(t, f, kd("alt"))
	if e.engage != 2 {
		t.Fatalf("re-engage=%d", e.engage)
	}
}

func TestKeyFeedMixedChordNeedsAllEvents(t *testing.T) {
	f, d, e := newFeedDetector(t, hotkey.NewBinding("ctrl", "space"))
	feed(t, f, kd("ctrl"), kd("space"))
	if e.engage != 1 || !d.Engaged() {
		t.Fatalf("engage=%d", e.engage)
	}
	feed(t, f, ku("space"))
	if e.disengage != 1 {
		t.Fatalf("disengage=%d", e.disengage)
	}
}

func TestKeyFeedLeftAndRightModifiers(t *testing.T) {
	f, _, e := newFeedDetector(t, hotkey.NewBinding("ctrl", "rctrl"))
	feed(t, f, kd("ctrl"), kd("rctrl"))
	if e.engage != 1 {
		t.Fatalf("engage=%d", e.engage)
	}
	feed(t, f, ku("rctrl"))
	if e.disengage != 1 {
		t.Fatalf("disengage=%d", e.disengage)
	}
}

func TestKeyFeedSnapshotDropsLostRelease(t *testing.T) {
	f, _, e := newFeedDetector(t, hotkey.NewBinding("ctrl", "shift"))
	feed(t, f, kd("ctrl"), kd("shift"))
	feed(t, f, control.KeyEvent{Type: "modifiers", Modifiers: []string{"ctrl"}})
	if e.disengage != 1 {
		t.Fatalf("disengage=%d", e.disengage)
	}
}

func TestKeyFeedRejectsBadEvents(t *testing.T) {
	f, _, _ := newFeedDetector(t, hotkey.NewBinding("ctrl"))
	for _, ev := range []control.KeyEvent{
		{Type: "press", Key: "a"},
		{Type: "down", Key: ""},
		{Type: "modifiers", Modifiers: []string{"a"}},
	} {
		if err := f.apply(ev); err == nil {
			t.Fatalf("expected error for %+v", ev)
		}
	}
}

func TestKeyFeedEOFDisablesSource(t *testing.T) {
	f, d, e := newFeedDetector(t, hotkey.NewBinding("ctrl", "alt"))
	lines := `{"type":"down","key":"ctrl"}
not json
{"type":"down","key":"alt"}
`
	var warnings []error
	f.run(bufio.NewScanner(strings.NewReader(lines)), func(err error) { warnings = append(warnings, err) })
	if e.engage != 1 || e.disengage != 1 {
		t.Fatalf("engage=%d disengage=%d", e.engage, e.disengage)
	}
	if d.Engaged() {
		t.Fatalf("detector still engaged after feeder left")
	}
	if len(warnings) != 1 {
		t.Fatalf("want 1 warning, got %v", warnings)
	}
}
