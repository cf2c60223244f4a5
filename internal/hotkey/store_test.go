package hotkey

import (
	"os"
	"path/filepath"
	"testing"

	"holdtalk/internal/logging"
)

func TestEncodeDecodeRoundTripIgnoresOrder(t *testing.T) {
	orders := [][]Key{
		{"ctrl", "alt", "k"},
		{"k", "ctrl", "alt"},
		{"alt", "k", "ctrl"},
	}
	want := NewBinding("ctrl", "alt", "k")
	for _, keys := range orders {
		data, err := Encode(NewBinding(keys...))
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		got, err := Decode(data)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if !got.Equal(want) {
			t.Fatalf("round trip of %v = %s", keys, got)
		}
	}
}

func TestDecodeRejectsUnknownVersion(t *testing.T) {
	if _, err := Decode([]byte("version = 7\nkeys = [\"ctrl\"]\n")); err == nil {
		t.Fatalf("expected version error")
	}
}

func TestStoreCorruptRecordFallsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hotkey.toml")
	if err := os.WriteFile(path, []byte("\x00not toml [[["), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	s := NewStore(path, logging.NewTestLogger())
	b, msg := s.Load()
	if !b.Equal(DefaultBinding) {
		t.Fatalf("expected default binding, got %s", b)
	}
	if msg == "" {
		t.Fatalf("expected fallback message")
	}
}

func TestStoreMissingFileIsSilentDefault(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "none.toml"), logging.NewTestLogger())
	b, msg := s.Load()
	if !b.Equal(DefaultBinding) || msg != "" {
		t.Fatalf("got %s %q", b, msg)
	}
}

func TestStoreSaveThenLoad(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "sub", "hotkey.toml"), logging.NewTestLogger())
	s.Save(NewBinding("rcmd"))
	b, msg := s.Load()
	if msg != "" || !b.Equal(NewBinding("rcmd")) {
		t.Fatalf("got %s %q", b, msg)
	}
}
