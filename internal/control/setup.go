package control

import (
	"fmt"
	"os"

	"holdtalk/internal/config"

	"github.com/spf13/cobra"
)

// NewSetupCmd downloads the configured model if missing.
func NewSetupCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Download the configured whisper model if missing",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			if err := config.MustStatePaths(cfg); err != nil {
				return err
			}
			cat, err := catalogFor(cfg)
			if err != nil {
				return err
			}
			model := cfg.ASR.Model
			if model == "" {
				model = config.DefaultModel
			}
			path, err := cat.Resolve(model)
			if err != nil {
				return err
			}
			if _, err := os.Stat(path); err == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "model already present at", path)
				return nil
			}
			path, err = cat.Fetch(cmd.Context(), model, progressPrinter(cmd.OutOrStdout(), "downloading "+model))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "model ready at", path)
			return nil
		},
	}
}
