package hotkey

import "testing"

func TestNewBindingDeduplicates(t *testing.T) {
	b := NewBinding("space", "ctrl", "space", "ctrl")
	if b.Len() != 2 {
		t.Fatalf("len = %d, want 2", b.Len())
	}
}

func TestBindingCanonicalOrder(t *testing.T) {
	cases := []struct {
		in   []Key
		want string
	}{
		{[]Key{"space", "shift", "ctrl"}, "ctrl+shift+space"},
		{[]Key{"rcmd", "fn"}, "fn+rcmd"},
		{[]Key{"b", "a", "alt"}, "alt+a+b"},
		{nil, ""},
	}
	for _, c := range cases {
		if got := NewBinding(c.in...).String(); got != c.want {
			t.Fatalf("String(%v) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestParseBindingAliases(t *testing.T) {
	b, err := ParseBinding("Control + Option+Spacebar")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !b.Equal(NewBinding("ctrl", "alt", "space")) {
		t.Fatalf("got %s", b)
	}
	if _, err := ParseBinding("ctrl++space"); err == nil {
		t.Fatalf("expected error for empty key")
	}
}

func TestModifierOnly(t *testing.T) {
	if !NewBinding("ctrl", "ralt").ModifierOnly() {
		t.Fatalf("ctrl+ralt is modifier-only")
	}
	if NewBinding("ctrl", "space").ModifierOnly() {
		t.Fatalf("ctrl+space is not modifier-only")
	}
}

func TestEmptyBindingNeverMatches(t *testing.T) {
	var b Binding
	if b.Matches(map[Key]struct{}{}) {
		t.Fatalf("empty binding must never match")
	}
}
