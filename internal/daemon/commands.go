// Package daemon holds the lifecycle commands: start, stop, restart and the
// hidden serve command that start spawns.
package daemon

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"holdtalk/internal/config"
	"holdtalk/internal/logging"
	"holdtalk/internal/run"

	"github.com/spf13/cobra"
)

// runFlags are per-run overrides, passed to the daemon as HOLDTALK_* env.
var runFlags = []struct {
	name, env, usage string
}{
	{"metrics-addr", "HOLDTALK_METRICS_ADDR", "enable /metrics at address (e.g. 127.0.0.1:9317) for this run"},
	{"model", "HOLDTALK_MODEL", "model to load at startup for this run"},
	{"output", "HOLDTALK_OUTPUT_MODE", "output mode for this run (paste, clipboard, hook)"},
}

func addRunFlags(cmd *cobra.Command) {
	for _, f := range runFlags {
		cmd.Flags().String(f.name, "", f.usage)
	}
}

// runEnv returns KEY=VAL pairs for the run flags that were set.
func runEnv(cmd *cobra.Command) []string {
	var env []string
	for _, f := range runFlags {
		if v, _ := cmd.Flags().GetString(f.name); v != "" {
			env = append(env, f.env+"="+v)
		}
	}
	return env
}

// NewStartCmd starts the daemon (background).
func NewStartCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the holdtalk daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			if err := ensureNotRunning(cfg); err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(cfg.Paths.PidPath), 0o755); err != nil {
				return err
			}
			self, err := os.Executable()
			if err != nil {
				return err
			}
			child := exec.Command(self, "serve", "--config", cfg.Paths.ConfigPath)
			child.Env = append(os.Environ(), runEnv(cmd)...)
			child.Stdout = os.Stdout
			child.Stderr = os.Stderr
			if err := child.Start(); err != nil {
				return err
			}
			// Wait a moment and confirm pid file appears.
			for waited := 0; waited < 20; waited++ {
				if _, err := os.Stat(cfg.Paths.PidPath); err == nil {
					break
				}
				time.Sleep(100 * time.Millisecond)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "holdtalk started (pid %d)\n", child.Process.Pid)
			return nil
		},
	}
	addRunFlags(cmd)
	return cmd
}

// NewServeCmd runs the daemon foreground (internal).
func NewServeCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:    "serve",
		Short:  "Run the holdtalk daemon in the foreground",
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, kv := range runEnv(cmd) {
				k, v, _ := strings.Cut(kv, "=")
				if err := os.Setenv(k, v); err != nil {
					return fmt.Errorf("set %s: %w", k, err)
				}
			}
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			logger, err := logging.Configure(cfg)
			if err != nil {
				return err
			}
			return run.Serve(cfg, logger)
		},
	}
	addRunFlags(cmd)
	return cmd
}

// NewStopCmd stops the daemon.
func NewStopCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the holdtalk daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			pid, err := readPID(cfg.Paths.PidPath)
			if err != nil {
				return fmt.Errorf("daemon not running: %w", err)
			}
			proc, err := os.FindProcess(pid)
			if err != nil {
				return err
			}
			if err := proc.Signal(syscall.SIGTERM); err != nil {
				if errors.Is(err, os.ErrProcessDone) || errors.Is(err, syscall.ESRCH) {
					_ = os.Remove(cfg.Paths.PidPath)
					return fmt.Errorf("daemon not running (removed stale pid file for %d)", pid)
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "stop signal sent to %d\n", pid)
			return nil
		},
	}
}

// NewRestartCmd stops then starts.
func NewRestartCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "restart",
		Short: "Restart the holdtalk daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stopCmd := NewStopCmd(cfgPath)
			stopCmd.SetOut(cmd.OutOrStdout())
			_ = stopCmd.RunE(stopCmd, args) // ignore error if not running

			if err := waitForShutdown(*cfgPath, 5*time.Second); err != nil {
				return err
			}

			startCmd := NewStartCmd(cfgPath)
			startCmd.SetOut(cmd.OutOrStdout())
			for _, f := range runFlags {
				if v, _ := cmd.Flags().GetString(f.name); v != "" {
					_ = startCmd.Flags().Set(f.name, v)
				}
			}
			return startCmd.RunE(startCmd, args)
		},
	}
	addRunFlags(cmd)
	return cmd
}

func ensureNotRunning(cfg *config.Config) error {
	pid, err := readPID(cfg.Paths.PidPath)
	if err != nil {
		return nil
	}
	if alive(pid) {
		return fmt.Errorf("already running with pid %d", pid)
	}
	// Leftover from a crash.
	_ = os.Remove(cfg.Paths.PidPath)
	return nil
}

// alive reports whether pid names a running process we may signal.
func alive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}

func readPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	var pid int
	if _, err := fmt.Sscanf(string(data), "%d", &pid); err != nil {
		return 0, err
	}
	return pid, nil
}

func waitForShutdown(cfgPath string, timeout time.Duration) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		pid, err := readPID(cfg.Paths.PidPath)
		if err != nil {
			return nil // pid file gone
		}
		if !alive(pid) {
			_ = os.Remove(cfg.Paths.PidPath)
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("restart: daemon did not stop within %s", timeout)
}
