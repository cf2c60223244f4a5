// Package output delivers transcribed text: pasted into the focused
// application, copied to the clipboard, or handed to a hook command.
package output

import (
	"context"
	"errors"
	"fmt"

	"holdtalk/internal/config"

	"github.com/sirupsen/logrus"
)

var (
	// ErrPermissionRequired means keystroke synthesis is not allowed.
	ErrPermissionRequired = errors.New("accessibility permission required to paste")
	// ErrWriteFailed means the clipboard could not be written.
	ErrWriteFailed = errors.New("could not write to the clipboard")
)

// Emitter delivers one transcript.
type Emitter interface {
	Emit(ctx context.Context, text string) error
}

// EmitterFunc adapts a function to Emitter.
type EmitterFunc func(ctx context.Context, text string) error

func (f EmitterFunc) Emit(ctx context.Context, text string) error { return f(ctx, text) }

// New builds the emitter selected by output.mode.
func New(cfg *config.Config, logger *logrus.Logger) (Emitter, error) {
	switch cfg.Output.Mode {
	case "", "paste":
		return NewPaster(SystemClipboard{}, NewKeystroker(), cfg.Output.PasteDelayMS, logger), nil
	case "clipboard":
		return NewCopier(SystemClipboard{}), nil
	case "hook":
		return NewHook(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown output.mode %q (want paste, clipboard or hook)", cfg.Output.Mode)
	}
}
