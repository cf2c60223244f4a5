package output

import (
	"context"
	"errors"
	"testing"

	"holdtalk/internal/logging"
)

type fakeClipboard struct {
	content  string
	readErr  error
	writeErr error
	writes   []string
}

func (c *fakeClipboard) Read() (string, error) { return c.content, c.readErr }

func (c *fakeClipboard) Write(text string) error {
	if c.writeErr != nil {
		return c.writeErr
	}
	c.writes = append(c.writes, text)
	c.content = text
	return nil
}

type fakeKeys struct {
	err    error
	clip   *fakeClipboard
	pasted []string
}

func (k *fakeKeys) Paste() error {
	if k.err != nil {
		return k.err
	}
	k.pasted = append(k.pasted, k.clip.content)
	return nil
}

func TestPasteRestoresClipboard(t *testing.T) {
	clip := &fakeClipboard{content: "previous"}
	keys := &fakeKeys{clip: clip}
	p := NewPaster(clip, keys, 0, logging.NewTestLogger())
	if err := p.Emit(context.Background(), "hello"); err != nil {
		t.Fatalf("emit: %v", err)
	}
	if len(keys.pasted) != 1 || keys.pasted[0] != "hello" {
		t.Fatalf("pasted %v", keys.pasted)
	}
	if clip.content != "previous" {
		t.Fatalf("clipboard not restored: %q", clip.content)
	}
}

func TestPasteRestoresClipboardOnKeystrokeFailure(t *testing.T) {
	clip := &fakeClipboard{content: "previous"}
	keys := &fakeKeys{clip: clip, err: ErrPermissionRequired}
	p := NewPaster(clip, keys, 0, logging.NewTestLogger())
	err := p.Emit(context.Background(), "hello")
	if !errors.Is(err, ErrPermissionRequired) {
		t.Fatalf("got %v", err)
	}
	if clip.content != "previous" {
		t.Fatalf("clipboard not restored after failure: %q", clip.content)
	}
}

func TestPasteClearsClipboardWhenPreviousUnreadable(t *testing.T) {
	clip := &fakeClipboard{content: "stale", readErr: errors.New("no text")}
	keys := &fakeKeys{clip: clip}
	p := NewPaster(clip, keys, 0, logging.NewTestLogger())
	if err := p.Emit(context.Background(), "secret"); err != nil {
		t.Fatalf("emit: %v", err)
	}
	if len(keys.pasted) != 1 || keys.pasted[0] != "secret" {
		t.Fatalf("pasted %v", keys.pasted)
	}
	if clip.content != "" {
		t.Fatalf("transcript left on clipboard: %q", clip.content)
	}
	if len(clip.writes) != 2 {
		t.Fatalf("writes %v", clip.writes)
	}
}

func TestPasteWriteFailure(t *testing.T) {
	clip := &fakeClipboard{content: "previous", writeErr: errors.New("locked")}
	keys := &fakeKeys{clip: clip}
	p := NewPaster(clip, keys, 0, logging.NewTestLogger())
	if err := p.Emit(context.Background(), "hello"); !errors.Is(err, ErrWriteFailed) {
		t.Fatalf("got %v", err)
	}
	if len(keys.pasted) != 0 {
		t.Fatalf("pasted despite write failure")
	}
}

func TestCopierWrites(t *testing.T) {
	clip := &fakeClipboard{}
	if err := NewCopier(clip).Emit(context.Background(), "text"); err != nil {
		t.Fatalf("emit: %v", err)
	}
	if clip.content != "text" {
		t.Fatalf("clipboard = %q", clip.content)
	}
	clip.writeErr = errors.New("nope")
	if err := NewCopier(clip).Emit(context.Background(), "x"); !errors.Is(err, ErrWriteFailed) {
		t.Fatalf("got %v", err)
	}
}
