package run

import (
	"bufio"
	"encoding/json"
	"fmt"

	"holdtalk/internal/control"
	"holdtalk/internal/hotkey"
)

// keyFeed turns key-stream lines into source events. Modifier presses are
// delivered as modifier-change snapshots, the way a platform event tap
// reports them.
type keyFeed struct {
	src  *hotkey.ManualSource
	mods map[hotkey.Key]struct{}
}

func newKeyFeed(src *hotkey.ManualSource) *keyFeed {
	return &keyFeed{src: src, mods: make(map[hotkey.Key]struct{})}
}

func (f *keyFeed) snapshot() hotkey.Modifiers {
	var m hotkey.Modifiers
	for k := range f.mods {
		m |= k.Flag()
	}
	return m
}

func (f *keyFeed) apply(ev control.KeyEvent) error {
	switch ev.Type {
	case "down", "up":
		k, err := hotkey.ParseKey(ev.Key)
		if err != nil {
			return err
		}
		down := ev.Type == "down"
		if !k.IsModifier() {
			typ := hotkey.KeyUp
			if down {
				typ = hotkey.KeyDown
			}
			f.src.Feed(hotkey.Event{Type: typ, Key: k, Modifiers: f.snapshot()})
			return nil
		}
		// Auto-repeat and stray releases would flip the detector's toggle.
		if _, held := f.mods[k]; held == down {
			return nil
		}
		if down {
			f.mods[k] = struct{}{}
		} else {
			delete(f.mods, k)
		}
		f.src.Feed(hotkey.Event{Type: hotkey.ModifiersChanged, Key: k, Modifiers: f.snapshot()})
		return nil
	case "modifiers":
		held := make(map[hotkey.Key]struct{}, len(ev.Modifiers))
		for _, name := range ev.Modifiers {
			k, err := hotkey.ParseKey(name)
			if err != nil {
				return err
			}
			if !k.IsModifier() {
				return fmt.Errorf("%q is not a modifier", name)
			}
			held[k] = struct{}{}
		}
		var k hotkey.Key
		if ev.Key != "" {
			var err error
			if k, err = hotkey.ParseKey(ev.Key); err != nil {
				return err
			}
		}
		f.mods = held
		f.src.Feed(hotkey.Event{Type: hotkey.ModifiersChanged, Key: k, Modifiers: f.snapshot()})
		return nil
	case "disabled":
		f.disable()
		return nil
	default:
		return fmt.Errorf("unknown key event type %q", ev.Type)
	}
}

func (f *keyFeed) disable() {
	f.mods = make(map[hotkey.Key]struct{})
	f.src.Disable()
}

// run applies lines from sc until it ends, then reports the source as
// disabled so nothing stays held after the feeder is gone.
func (f *keyFeed) run(sc *bufio.Scanner, warn func(error)) {
	defer f.disable()
	for sc.Scan() {
		var ev control.KeyEvent
		if err := json.Unmarshal(sc.Bytes(), &ev); err != nil {
			warn(fmt.Errorf("decode key event: %w", err))
			continue
		}
		if err := f.apply(ev); err != nil {
			warn(err)
		}
	}
	if err := sc.Err(); err != nil {
		warn(err)
	}
}
