package hotkey

import (
	"sort"
	"strings"
)

// Binding is the set of keys that must be held together to engage
// push-to-talk. The zero value is the empty binding, which never engages.
type Binding struct {
	keys map[Key]struct{}
}

// DefaultBinding is used when nothing valid is persisted.
var DefaultBinding = NewBinding("ctrl", "shift", "space")

// NewBinding builds a binding, dropping duplicates.
func NewBinding(keys ...Key) Binding {
	set := make(map[Key]struct{}, len(keys))
	for _, k := range keys {
		if k == "" {
			continue
		}
		set[k] = struct{}{}
	}
	return Binding{keys: set}
}

// ParseBinding reads "ctrl+shift+space" style text.
func ParseBinding(s string) (Binding, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Binding{}, nil
	}
	var keys []Key
	for _, part := range strings.Split(s, "+") {
		k, err := ParseKey(part)
		if err != nil {
			return Binding{}, err
		}
		keys = append(keys, k)
	}
	return NewBinding(keys...), nil
}

// Len returns the number of distinct keys.
func (b Binding) Len() int { return len(b.keys) }

// Empty reports whether the binding has no keys.
func (b Binding) Empty() bool { return len(b.keys) == 0 }

// Contains reports whether k is part of the binding.
func (b Binding) Contains(k Key) bool {
	_, ok := b.keys[k]
	return ok
}

// ModifierOnly reports whether every key is a modifier. The empty binding is
// modifier-only.
func (b Binding) ModifierOnly() bool {
	for k := range b.keys {
		if !k.IsModifier() {
			return false
		}
	}
	return true
}

// Matches reports whether held is exactly the binding's key set.
func (b Binding) Matches(held map[Key]struct{}) bool {
	if len(b.keys) == 0 || len(held) != len(b.keys) {
		return false
	}
	for k := range held {
		if _, ok := b.keys[k]; !ok {
			return false
		}
	}
	return true
}

// Equal compares key sets.
func (b Binding) Equal(o Binding) bool {
	if len(b.keys) != len(o.keys) {
		return false
	}
	for k := range b.keys {
		if _, ok := o.keys[k]; !ok {
			return false
		}
	}
	return true
}

// Keys returns the keys in canonical display order: modifiers first in a
// fixed order, then the rest alphabetically.
func (b Binding) Keys() []Key {
	out := make([]Key, 0, len(b.keys))
	for k := range b.keys {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool {
		ri, rj := modifierRank(out[i]), modifierRank(out[j])
		switch {
		case ri >= 0 && rj >= 0:
			return ri < rj
		case ri >= 0:
			return true
		case rj >= 0:
			return false
		}
		return out[i] < out[j]
	})
	return out
}

// String formats the binding for display ("ctrl+shift+space").
func (b Binding) String() string {
	keys := b.Keys()
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = string(k)
	}
	return strings.Join(parts, "+")
}
