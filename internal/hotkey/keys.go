package hotkey

import (
	"fmt"
	"strings"
)

// Key identifies a physical key by its lower-case name ("ctrl", "space", "a").
type Key string

// Modifiers is a snapshot of the modifier flags reported with a key event.
type Modifiers uint8

const (
	ModFn Modifiers = 1 << iota
	ModCtrl
	ModAlt
	ModShift
	ModCmd
)

// Has reports whether all flags in f are set.
func (m Modifiers) Has(f Modifiers) bool { return f != 0 && m&f == f }

func (m Modifiers) String() string {
	var parts []string
	for _, k := range modifierOrder[:5] {
		if m.Has(modifierFlags[k]) {
			parts = append(parts, string(k))
		}
	}
	return strings.Join(parts, "+")
}

// modifierOrder is also the canonical display order for modifiers.
var modifierOrder = []Key{"fn", "ctrl", "alt", "shift", "cmd", "rctrl", "ralt", "rshift", "rcmd"}

var modifierFlags = map[Key]Modifiers{
	"fn":     ModFn,
	"ctrl":   ModCtrl,
	"rctrl":  ModCtrl,
	"alt":    ModAlt,
	"ralt":   ModAlt,
	"shift":  ModShift,
	"rshift": ModShift,
	"cmd":    ModCmd,
	"rcmd":   ModCmd,
}

var aliases = map[string]Key{
	"control":  "ctrl",
	"lctrl":    "ctrl",
	"option":   "alt",
	"opt":      "alt",
	"meta":     "alt",
	"lalt":     "alt",
	"roption":  "ralt",
	"lshift":   "shift",
	"command":  "cmd",
	"super":    "cmd",
	"win":      "cmd",
	"lcmd":     "cmd",
	"rsuper":   "rcmd",
	"return":   "enter",
	"esc":      "escape",
	"spacebar": "space",
	"function": "fn",
}

// IsModifier reports whether k is a modifier key.
func (k Key) IsModifier() bool {
	_, ok := modifierFlags[k]
	return ok
}

// Flag returns the modifier flag for k, or 0 for regular keys.
func (k Key) Flag() Modifiers { return modifierFlags[k] }

// ParseKey normalizes a user-supplied key name.
func ParseKey(s string) (Key, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if name == "" {
		return "", fmt.Errorf("empty key name")
	}
	if strings.ContainsAny(name, "+ \t") {
		return "", fmt.Errorf("invalid key name %q", s)
	}
	if k, ok := aliases[name]; ok {
		return k, nil
	}
	return Key(name), nil
}

func modifierRank(k Key) int {
	for i, m := range modifierOrder {
		if m == k {
			return i
		}
	}
	return -1
}
