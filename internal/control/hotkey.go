package control

import (
	"fmt"
	"strings"

	"holdtalk/internal/config"
	"holdtalk/internal/hotkey"
	"holdtalk/internal/logging"

	"github.com/spf13/cobra"
)

// NewHotkeyCmd shows and changes the push-to-talk binding.
func NewHotkeyCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hotkey",
		Short: "Show or change the push-to-talk hotkey",
	}
	cmd.AddCommand(newHotkeyShowCmd(cfgPath))
	cmd.AddCommand(newHotkeySetCmd(cfgPath))
	cmd.AddCommand(newHotkeyEditCmd(cfgPath))
	return cmd
}

func newHotkeyShowCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the active hotkey",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			msg, err := CallSimple(cfg.Paths.SocketPath, Request{Op: OpHotkey})
			if err == nil {
				fmt.Fprintln(cmd.OutOrStdout(), msg)
				return nil
			}
			if !daemonDown(err) {
				return err
			}
			// Fall back to the saved binding when the daemon is down.
			logger, lerr := logging.Configure(cfg)
			if lerr != nil {
				return lerr
			}
			b, note := hotkey.NewStore(cfg.Hotkey.BindingPath, logger).Load()
			fmt.Fprintf(cmd.OutOrStdout(), "%s (saved; daemon not reachable)\n", b)
			if note != "" {
				fmt.Fprintln(cmd.OutOrStdout(), note)
			}
			return nil
		},
	}
}

func newHotkeySetCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "set <keys>",
		Short: "Set the hotkey, e.g. \"ctrl+alt\" or \"cmd + shift + space\"",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			raw := strings.Join(args, " ")
			b, err := hotkey.ParseBinding(raw)
			if err != nil {
				return err
			}
			if b.Empty() {
				return fmt.Errorf("hotkey needs at least one key")
			}
			msg, err := CallSimple(cfg.Paths.SocketPath, Request{Op: OpSetHotkey, Binding: b.String()})
			if daemonDown(err) {
				logger, lerr := logging.Configure(cfg)
				if lerr != nil {
					return lerr
				}
				hotkey.NewStore(cfg.Hotkey.BindingPath, logger).Save(b)
				msg = fmt.Sprintf("%s saved; applies when the daemon starts", b)
			} else if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), msg)
			return nil
		},
	}
}

func newHotkeyEditCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:       "edit on|off",
		Short:     "Suspend dictation while a new hotkey is being recorded",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"on", "off"},
		RunE: func(cmd *cobra.Command, args []string) error {
			var editing bool
			switch args[0] {
			case "on":
				editing = true
			case "off":
			default:
				return fmt.Errorf("want on or off, got %q", args[0])
			}
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			msg, err := CallSimple(cfg.Paths.SocketPath, Request{Op: OpEditHotkey, Editing: editing})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), msg)
			return nil
		},
	}
}
