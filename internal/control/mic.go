package control

import (
	"encoding/json"
	"fmt"
	"runtime"

	"holdtalk/internal/audio"
	"holdtalk/internal/config"

	"github.com/spf13/cobra"
)

// NewMicCmd groups microphone subcommands.
func NewMicCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "mic",
		Aliases: []string{"microphone", "mics"},
		Short:   "Microphone management",
	}
	cmd.AddCommand(newMicListCmd())
	cmd.AddCommand(newMicSetCmd(cfgPath))
	return cmd
}

func newMicListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List available microphones",
		RunE: func(cmd *cobra.Command, args []string) error {
			devs, err := audio.Devices()
			if err != nil {
				return err
			}
			if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(devs)
			}
			out := cmd.OutOrStdout()
			for _, d := range devs {
				defMark := ""
				if d.Default {
					defMark = " (default)"
				}
				fmt.Fprintf(out, "[%d] %s%s (in %d ch, latency %.2fms)\n", d.Index, d.Name, defMark, d.Channels, d.LatencyMs)
			}
			if len(devs) == 0 && runtime.GOOS == "darwin" {
				fmt.Fprintln(out, "tip: if no devices appear, install PortAudio: brew install portaudio")
			}
			return nil
		},
	}
	cmd.Flags().Bool("json", false, "output JSON")
	return cmd
}

func newMicSetCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "set <name>",
		Short: "Set microphone device name in config",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			cfg.Audio.DeviceName = args[0]
			if err := config.Save(cfg, cfg.Paths.ConfigPath); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "mic set to %q in %s (restart the daemon to apply)\n", args[0], cfg.Paths.ConfigPath)
			return nil
		},
	}
}
