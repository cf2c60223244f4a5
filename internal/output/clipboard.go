package output

import (
	"context"
	"fmt"

	"github.com/atotto/clipboard"
)

// Clipboard reads and writes the system text clipboard.
type Clipboard interface {
	Read() (string, error)
	Write(text string) error
}

// SystemClipboard uses the platform clipboard.
type SystemClipboard struct{}

func (SystemClipboard) Read() (string, error) {
	if clipboard.Unsupported {
		return "", fmt.Errorf("clipboard unsupported on this system")
	}
	return clipboard.ReadAll()
}

func (SystemClipboard) Write(text string) error {
	if clipboard.Unsupported {
		return fmt.Errorf("clipboard unsupported on this system")
	}
	return clipboard.WriteAll(text)
}

// Copier leaves the transcript on the clipboard.
type Copier struct {
	clip Clipboard
}

func NewCopier(clip Clipboard) *Copier { return &Copier{clip: clip} }

func (c *Copier) Emit(_ context.Context, text string) error {
	if err := c.clip.Write(text); err != nil {
		return fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}
	return nil
}
