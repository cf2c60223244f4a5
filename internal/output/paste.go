package output

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/micmonay/keybd_event"
	"github.com/sirupsen/logrus"
)

// Keystroker sends the platform paste shortcut to the focused window.
type Keystroker interface {
	Paste() error
}

// Paster places text on the clipboard, sends the paste shortcut and then
// restores whatever the clipboard held before.
type Paster struct {
	clip   Clipboard
	keys   Keystroker
	delay  time.Duration
	logger *logrus.Logger
}

func NewPaster(clip Clipboard, keys Keystroker, delayMS int, logger *logrus.Logger) *Paster {
	if delayMS < 0 {
		delayMS = 0
	}
	return &Paster{clip: clip, keys: keys, delay: time.Duration(delayMS) * time.Millisecond, logger: logger}
}

func (p *Paster) Emit(ctx context.Context, text string) error {
	prev, err := p.clip.Read()
	if err != nil {
		// An empty or non-text clipboard fails to read; leave it empty again.
		p.logger.Debugf("clipboard read: %v", err)
		prev = ""
	}
	if err := p.clip.Write(text); err != nil {
		return fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}
	defer func() {
		// Give the target app time to read the pasted text.
		p.sleep(ctx)
		if err := p.clip.Write(prev); err != nil {
			p.logger.Warnf("restore clipboard: %v", err)
		}
	}()
	p.sleep(ctx)
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.keys.Paste()
}

func (p *Paster) sleep(ctx context.Context) {
	if p.delay <= 0 {
		return
	}
	t := time.NewTimer(p.delay)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

// keybdKeystroker synthesizes Ctrl+V (Cmd+V on macOS) with keybd_event.
// The virtual device is created on first use.
type keybdKeystroker struct {
	once sync.Once
	kb   *keybd_event.KeyBonding
	err  error
}

// NewKeystroker returns the system keystroke synthesizer.
func NewKeystroker() Keystroker { return &keybdKeystroker{} }

func (k *keybdKeystroker) init() {
	kb, err := keybd_event.NewKeyBonding()
	if err != nil {
		k.err = err
		return
	}
	if runtime.GOOS == "linux" {
		// uinput devices need a moment before the compositor sees them.
		time.Sleep(2 * time.Second)
	}
	k.kb = &kb
}

func (k *keybdKeystroker) Paste() error {
	k.once.Do(k.init)
	if k.err != nil {
		return fmt.Errorf("%w: %v", ErrPermissionRequired, k.err)
	}
	k.kb.Clear()
	if runtime.GOOS == "darwin" {
		k.kb.HasSuper(true)
	} else {
		k.kb.HasCTRL(true)
	}
	k.kb.SetKeys(keybd_event.VK_V)
	if err := k.kb.Launching(); err != nil {
		return fmt.Errorf("%w: %v", ErrPermissionRequired, err)
	}
	return nil
}

// Available reports whether keystrokes can be synthesized.
func Available(k Keystroker) error {
	kk, ok := k.(*keybdKeystroker)
	if !ok {
		return nil
	}
	kk.once.Do(kk.init)
	if kk.err != nil {
		return fmt.Errorf("%w: %v", ErrPermissionRequired, kk.err)
	}
	return nil
}
