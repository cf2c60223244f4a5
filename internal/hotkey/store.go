package hotkey

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
	"github.com/sirupsen/logrus"
)

const recordVersion = 1

type record struct {
	Version int      `toml:"version"`
	Keys    []string `toml:"keys"`
}

// Encode serializes the binding as a versioned record.
func Encode(b Binding) ([]byte, error) {
	keys := b.Keys()
	rec := record{Version: recordVersion, Keys: make([]string, len(keys))}
	for i, k := range keys {
		rec.Keys[i] = string(k)
	}
	return toml.Marshal(rec)
}

// Decode parses a record produced by Encode.
func Decode(data []byte) (Binding, error) {
	var rec record
	if err := toml.Unmarshal(data, &rec); err != nil {
		return Binding{}, fmt.Errorf("decode hotkey: %w", err)
	}
	if rec.Version != recordVersion {
		return Binding{}, fmt.Errorf("decode hotkey: unsupported version %d", rec.Version)
	}
	keys := make([]Key, 0, len(rec.Keys))
	for _, s := range rec.Keys {
		k, err := ParseKey(s)
		if err != nil {
			return Binding{}, fmt.Errorf("decode hotkey: %w", err)
		}
		keys = append(keys, k)
	}
	return NewBinding(keys...), nil
}

// Store persists the active binding in a small TOML file.
type Store struct {
	path   string
	logger *logrus.Logger
}

func NewStore(path string, logger *logrus.Logger) *Store {
	return &Store{path: path, logger: logger}
}

// Path returns the backing file.
func (s *Store) Path() string { return s.path }

// Load returns the persisted binding. When the record is unreadable it
// returns DefaultBinding and a message suitable for the user; a missing file
// yields the default with no message.
func (s *Store) Load() (Binding, string) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultBinding, ""
		}
		s.logger.Warnf("read hotkey %s: %v", s.path, err)
		return DefaultBinding, fmt.Sprintf("Could not read saved hotkey; using %s.", DefaultBinding)
	}
	b, err := Decode(data)
	if err != nil {
		s.logger.Warnf("hotkey %s: %v", s.path, err)
		return DefaultBinding, fmt.Sprintf("Saved hotkey was unreadable and has been reset to %s.", DefaultBinding)
	}
	return b, ""
}

// Save writes the binding. Failures are logged, not returned.
func (s *Store) Save(b Binding) {
	data, err := Encode(b)
	if err != nil {
		s.logger.Errorf("encode hotkey: %v", err)
		return
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		s.logger.Errorf("save hotkey: %v", err)
		return
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		s.logger.Errorf("save hotkey: %v", err)
		return
	}
	s.logger.Infof("hotkey saved: %s", b)
}
