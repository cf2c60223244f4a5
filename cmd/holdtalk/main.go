package main

import (
	"fmt"
	"os"

	"holdtalk/internal/control"
	"holdtalk/internal/daemon"

	"github.com/spf13/cobra"
)

const version = "0.1.0"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	root := &cobra.Command{
		Use:   "holdtalk",
		Short: "holdtalk: hold a hotkey, speak, release to paste",
		Long: `holdtalk records while you hold a hotkey, transcribes locally with whisper.cpp
when you let go, and pastes the text into the focused app (or copies it, or
hands it to a hook command).

Key commands:
  start|stop|restart                  Daemon lifecycle
  status [--json]                     Phase, model, hotkey, last transcripts
  keys                                Feed key events from stdin
  hotkey show|set|edit                Push-to-talk binding
  models list|download|set|load|delete  Manage whisper.cpp models
  mic list|set                        Select microphone (alias: microphone, mics)
  doctor|setup                        Check deps / download default model
  transcribe <file.wav>               One-shot transcription
  service install|uninstall|status    launchd or systemd user service
  health|tail-log|test-output         Liveness, log tail, manual output

Notable flags/env:
  --metrics-addr <addr>     Enable /metrics (Prometheus)
  --model <name>            Model to load for this run
  --output <mode>           paste, clipboard or hook for this run
  Env overrides: HOLDTALK_MODEL, HOLDTALK_METRICS_ADDR, HOLDTALK_OUTPUT_MODE,
                 HOLDTALK_LOG_LEVEL/FORMAT, HOLDTALK_TRANSCRIPTS_ENABLED,
                 HOLDTALK_REDACT_PII, HOLDTALK_NOTIFY`,
		Example: `  holdtalk setup
  holdtalk start --metrics-addr 127.0.0.1:9317
  holdtalk hotkey set ctrl+alt
  printf 'down ctrl\ndown alt\n' | holdtalk keys
  holdtalk models download ggml-small.en-q5_1.bin
  holdtalk models set ggml-small.en-q5_1.bin --load
  holdtalk transcribe memo.wav --output`,
		DisableFlagsInUseLine: true,
	}

	root.Version = version
	root.SetVersionTemplate("holdtalk v{{.Version}}\n")

	cfgPath := root.PersistentFlags().StringP("config", "c", "", "Path to config file (TOML or YAML). Defaults to ~/.config/holdtalk/config.toml")
	root.CompletionOptions.DisableDefaultCmd = true

	root.AddCommand(daemon.NewStartCmd(cfgPath))
	root.AddCommand(daemon.NewStopCmd(cfgPath))
	root.AddCommand(daemon.NewRestartCmd(cfgPath))
	root.AddCommand(control.NewStatusCmd(cfgPath))
	root.AddCommand(control.NewKeysCmd(cfgPath))
	root.AddCommand(control.NewHotkeyCmd(cfgPath))
	root.AddCommand(control.NewModelsCmd(cfgPath))
	root.AddCommand(control.NewMicCmd(cfgPath))
	root.AddCommand(control.NewDoctorCmd(cfgPath))
	root.AddCommand(control.NewSetupCmd(cfgPath))
	root.AddCommand(control.NewTranscribeCmd(cfgPath))
	root.AddCommand(control.NewServiceCmd(cfgPath))
	root.AddCommand(control.NewHealthCmd(cfgPath))
	root.AddCommand(control.NewTailLogCmd(cfgPath))
	root.AddCommand(control.NewTestOutputCmd(cfgPath))

	// Hidden internal serve command used by start and the service file.
	root.AddCommand(daemon.NewServeCmd(cfgPath))

	applyColorHelp(root)

	return root.Execute()
}

func applyColorHelp(root *cobra.Command) {
	const (
		boldBlue = "\033[1;34m"
		green    = "\033[32m"
		bold     = "\033[1m"
		dim      = "\033[2m"
		reset    = "\033[0m"
	)
	defaultHelp := root.HelpFunc()
	root.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		// Subcommands keep cobra's help with their flags.
		if cmd != root {
			defaultHelp(cmd, args)
			return
		}
		out := cmd.OutOrStdout()
		write := func(format string, args ...any) { _, _ = fmt.Fprintf(out, format, args...) }
		writeln := func(line string) { _, _ = fmt.Fprintln(out, line) }

		write("%sholdtalk%s: push-to-talk dictation %s(v%s)%s\n", boldBlue, reset, dim, version, reset)
		write("%sHold the hotkey to record, release to transcribe locally and paste.%s\n\n", dim, reset)

		write("%sUsage%s\n", bold, reset)
		write("  holdtalk [command] [flags]\n\n")

		write("%sKey commands%s\n", bold, reset)
		writeln("  start|stop|restart          daemon lifecycle")
		writeln("  status [--json]             phase, model, hotkey, last transcripts")
		writeln("  keys                        feed key events from stdin")
		writeln("  hotkey show|set|edit        push-to-talk binding")
		writeln("  models list|download|set|load|delete")
		writeln("  mic list|set                select input device (alias: microphone, mics)")
		writeln("  doctor                      check model/hotkey/output/portaudio")
		writeln("  setup                       download the default whisper model")
		writeln("  transcribe <file.wav>       one-shot transcription")
		writeln("  service install|uninstall|status")
		writeln("  health                      control-socket liveness ping")
		writeln("  tail-log                    show last log lines")
		writeln("  test-output \"text\"          deliver text through the output mode")
		writeln("")

		write("%sNotable flags & env%s\n", bold, reset)
		writeln("  --metrics-addr <addr>   enable /metrics (Prometheus)")
		writeln("  --model <name>          model to load for this run")
		writeln("  --output <mode>         paste, clipboard or hook for this run")
		writeln("  -c, --config <path>     config file (default ~/.config/holdtalk/config.toml)")
		writeln("  Env: HOLDTALK_MODEL=name, HOLDTALK_METRICS_ADDR=host:port,")
		writeln("       HOLDTALK_LOG_LEVEL=debug, HOLDTALK_LOG_FORMAT=json,")
		writeln("       HOLDTALK_OUTPUT_MODE=clipboard, HOLDTALK_NOTIFY=1")
		writeln("")

		write("%sExamples%s\n", bold, reset)
		writeln("  holdtalk setup")
		writeln("  holdtalk start --metrics-addr 127.0.0.1:9317")
		writeln("  holdtalk hotkey set ctrl+alt")
		writeln("  holdtalk models set ggml-small.en-q5_1.bin --load")
		writeln("  holdtalk service install --env HOLDTALK_NOTIFY=1")
		writeln("")

		write("%sCommands%s\n", bold, reset)
		for _, c := range cmd.Commands() {
			if c.Hidden {
				continue
			}
			write("  %s%-15s%s %s\n", green, c.Name(), reset, c.Short)
		}
	})
}
