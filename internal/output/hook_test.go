package output

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"holdtalk/internal/config"
	"holdtalk/internal/logging"
)

func hookConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Default()
	if err != nil {
		t.Fatalf("default config: %v", err)
	}
	cfg.Output.Mode = "hook"
	return cfg
}

func TestHookRunsWithPrefixAndEnv(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out.txt")
	cfg := hookConfig(t)
	cfg.Output.Command = "/bin/sh"
	cfg.Output.ArgsLine = `-c 'printf "%s|%s" "$1" "$HOLDTALK_TEXT" > "$OUT"' hook`
	cfg.Output.Prefix = "pref: "
	cfg.Output.Env = map[string]string{"OUT": out}

	h, err := NewHook(cfg, logging.NewTestLogger())
	if err != nil {
		t.Fatalf("new hook: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.Emit(ctx, "hello"); err != nil {
		t.Fatalf("emit: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got := string(data); got != "pref: hello|hello" {
		t.Fatalf("hook saw %q", got)
	}
}

func TestHookFailure(t *testing.T) {
	cfg := hookConfig(t)
	cfg.Output.Command = "/bin/sh"
	cfg.Output.Args = []string{"-c", "exit 3"}
	h, err := NewHook(cfg, logging.NewTestLogger())
	if err != nil {
		t.Fatalf("new hook: %v", err)
	}
	if err := h.Emit(context.Background(), "x"); err == nil || !strings.Contains(err.Error(), "hook failed") {
		t.Fatalf("got %v", err)
	}
}

func TestHookRequiresCommand(t *testing.T) {
	if _, err := NewHook(hookConfig(t), logging.NewTestLogger()); err == nil {
		t.Fatalf("expected error without command")
	}
}

func TestParseArgs(t *testing.T) {
	args, err := ParseArgs(`--flag "two words" 'single'`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := []string{"--flag", "two words", "single"}
	if len(args) != len(want) {
		t.Fatalf("got %v", args)
	}
	for i := range want {
		if args[i] != want[i] {
			t.Fatalf("got %v", args)
		}
	}
	if args, _ := ParseArgs("   "); len(args) != 0 {
		t.Fatalf("blank line gave %v", args)
	}
}

func TestRedactPII(t *testing.T) {
	got := RedactPII("mail me at jo@example.com or call +1 (555) 123-4567")
	if strings.Contains(got, "example.com") || strings.Contains(got, "4567") {
		t.Fatalf("not redacted: %q", got)
	}
}

func TestNewSelectsMode(t *testing.T) {
	cfg := hookConfig(t)
	cfg.Output.Mode = "clipboard"
	e, err := New(cfg, logging.NewTestLogger())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, ok := e.(*Copier); !ok {
		t.Fatalf("clipboard mode gave %T", e)
	}
	cfg.Output.Mode = "telepathy"
	if _, err := New(cfg, logging.NewTestLogger()); err == nil {
		t.Fatalf("expected error for unknown mode")
	}
}
