package daemon

import (
	"fmt"
	"os"
	"reflect"
	"testing"
	"time"

	"holdtalk/internal/config"
)

func pidConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg, _ := config.Default()
	cfg.Paths.ConfigPath = dir + "/config.toml"
	cfg.Paths.PidPath = dir + "/holdtalk.pid"
	if err := config.Save(cfg, cfg.Paths.ConfigPath); err != nil {
		t.Fatalf("save cfg: %v", err)
	}
	return cfg
}

func TestWaitForShutdownSucceedsWhenPidFileRemoved(t *testing.T) {
	cfg := pidConfig(t)
	if err := os.WriteFile(cfg.Paths.PidPath, []byte("12345"), 0o644); err != nil {
		t.Fatalf("write pid: %v", err)
	}
	go func() {
		time.Sleep(100 * time.Millisecond)
		_ = os.Remove(cfg.Paths.PidPath)
	}()
	if err := waitForShutdown(cfg.Paths.ConfigPath, 2*time.Second); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
}

func TestWaitForShutdownTimesOutOnAlivePid(t *testing.T) {
	cfg := pidConfig(t)
	selfPid := os.Getpid()
	if err := os.WriteFile(cfg.Paths.PidPath, []byte(fmt.Sprintf("%d", selfPid)), 0o644); err != nil {
		t.Fatalf("write pid: %v", err)
	}
	if err := waitForShutdown(cfg.Paths.ConfigPath, 300*time.Millisecond); err == nil {
		t.Fatalf("expected timeout error")
	}
}

func TestEnsureNotRunning(t *testing.T) {
	cfg := pidConfig(t)
	if err := ensureNotRunning(cfg); err != nil {
		t.Fatalf("no pid file: %v", err)
	}
	if err := os.WriteFile(cfg.Paths.PidPath, []byte(fmt.Sprintf("%d\n", os.Getpid())), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := ensureNotRunning(cfg); err == nil {
		t.Fatal("live pid not detected")
	}
}

func TestRunEnvOnlySetFlags(t *testing.T) {
	cmd := NewStartCmd(new(string))
	if got := runEnv(cmd); len(got) != 0 {
		t.Fatalf("unset flags produced %v", got)
	}
	if err := cmd.Flags().Set("metrics-addr", "127.0.0.1:9317"); err != nil {
		t.Fatal(err)
	}
	if err := cmd.Flags().Set("output", "clipboard"); err != nil {
		t.Fatal(err)
	}
	want := []string{"HOLDTALK_METRICS_ADDR=127.0.0.1:9317", "HOLDTALK_OUTPUT_MODE=clipboard"}
	if got := runEnv(cmd); !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestEnsureNotRunningClearsStalePid(t *testing.T) {
	cfg := pidConfig(t)
	// Pids this large are never handed out.
	if err := os.WriteFile(cfg.Paths.PidPath, []byte("2147483000"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := ensureNotRunning(cfg); err != nil {
		t.Fatalf("stale pid blocked start: %v", err)
	}
	if _, err := os.Stat(cfg.Paths.PidPath); !os.IsNotExist(err) {
		t.Fatalf("stale pid file kept: %v", err)
	}
}
