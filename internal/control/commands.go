package control

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"holdtalk/internal/config"
	"holdtalk/internal/doctor"
	"holdtalk/internal/logging"
	"holdtalk/internal/output"

	"github.com/spf13/cobra"
)

// NewStatusCmd queries daemon status.
func NewStatusCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			var status Status
			if err := Call(cfg.Paths.SocketPath, Request{Op: OpStatus}, &status); err != nil {
				return err
			}
			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(status)
			}
			writeStatus(cmd.OutOrStdout(), status)
			return nil
		},
	}
	cmd.Flags().Bool("json", false, "output JSON")
	return cmd
}

func writeStatus(w io.Writer, s Status) {
	fmt.Fprintf(w, "running: %v\nuptime: %.1fs\n", s.Running, s.UptimeSec)
	fmt.Fprintf(w, "phase: %s\n", s.Phase)
	model := s.Model
	if s.SelectedModel != "" {
		model = fmt.Sprintf("%s (%s)", s.SelectedModel, s.Model)
	}
	fmt.Fprintf(w, "model: %s\n", model)
	hk := s.Hotkey
	if s.EditingHotkey {
		hk += " (editing)"
	}
	fmt.Fprintf(w, "hotkey: %s\n", hk)
	if s.KeyFeeders == 0 {
		fmt.Fprintln(w, "keys: no feeder connected (run: holdtalk keys)")
	}
	for _, t := range s.Transcripts {
		fmt.Fprintf(w, "%s  %s\n", t.Timestamp.Format("15:04:05"), t.Text)
	}
}

// NewHealthCmd pings the control socket.
func NewHealthCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Ping the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			msg, err := CallSimple(cfg.Paths.SocketPath, Request{Op: OpHealth})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), msg)
			return nil
		},
	}
}

// NewTailLogCmd tails the main log file.
func NewTailLogCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tail-log",
		Short: "Show the last log lines",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			n, _ := cmd.Flags().GetInt("lines")
			data, err := os.ReadFile(cfg.Paths.LogPath)
			if err != nil {
				return err
			}
			for _, l := range lastLines(string(data), n) {
				fmt.Fprintln(cmd.OutOrStdout(), l)
			}
			return nil
		},
	}
	cmd.Flags().IntP("lines", "n", 50, "number of lines")
	return cmd
}

// lastLines returns the last n non-blank lines of text.
func lastLines(text string, n int) []string {
	var lines []string
	for _, l := range strings.Split(text, "\n") {
		if strings.TrimSpace(l) != "" {
			lines = append(lines, l)
		}
	}
	if n >= 0 && len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines
}

// NewTestOutputCmd sends text through the configured output.
func NewTestOutputCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "test-output \"some text\"",
		Short: "Send sample text through the configured output",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			logger, err := logging.Configure(cfg)
			if err != nil {
				return err
			}
			out, err := output.New(cfg, logger)
			if err != nil {
				return err
			}
			return out.Emit(cmd.Context(), args[0])
		},
	}
}

// NewDoctorCmd runs environment checks.
func NewDoctorCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check dependencies and config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			logger, err := logging.Configure(cfg)
			if err != nil {
				return err
			}
			results := doctor.Run(cfg, logger)
			failed := false
			for _, r := range results {
				status := "ok"
				if !r.Pass {
					status = "fail"
					failed = true
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-14s %-4s %s\n", r.Name, status, r.Detail)
			}
			if failed {
				return fmt.Errorf("doctor found issues")
			}
			return nil
		},
	}
}

// NewServiceCmd manages the per-user service file.
func NewServiceCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "service",
		Short: "Manage the user service (launchd or systemd)",
	}
	cmd.AddCommand(newServiceInstallCmd(cfgPath))
	cmd.AddCommand(newServiceUninstallCmd())
	cmd.AddCommand(newServiceStatusCmd())
	return cmd
}
