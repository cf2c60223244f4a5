package control

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"holdtalk/internal/asr"
	"holdtalk/internal/config"
	"holdtalk/internal/logging"

	"github.com/spf13/cobra"
)

// NewModelsCmd wires up the models subcommands.
func NewModelsCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "List/download/set/load/delete whisper models",
	}
	cmd.AddCommand(newModelsListCmd(cfgPath))
	cmd.AddCommand(newModelsDownloadCmd(cfgPath))
	cmd.AddCommand(newModelsSetCmd(cfgPath))
	cmd.AddCommand(newModelsLoadCmd(cfgPath))
	cmd.AddCommand(newModelsDeleteCmd(cfgPath))
	return cmd
}

func catalogFor(cfg *config.Config) (*asr.Catalog, error) {
	logger, err := logging.Configure(cfg)
	if err != nil {
		return nil, err
	}
	return asr.NewCatalog(cfg.ASR.ModelsDir, nil, logger), nil
}

func newModelsListCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List known models and those present locally",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			cat, err := catalogFor(cfg)
			if err != nil {
				return err
			}
			for _, line := range modelLines(cat, cfg.ASR.Model) {
				fmt.Fprintln(cmd.OutOrStdout(), line)
			}
			return nil
		},
	}
}

// modelLines lists catalog models plus any other model files in the models
// directory, marking what is downloaded and which one is configured.
func modelLines(cat *asr.Catalog, active string) []string {
	names := cat.Names()
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		seen[n] = true
	}
	entries, _ := os.ReadDir(cat.Dir())
	var extra []string
	for _, e := range entries {
		n := e.Name()
		if e.IsDir() || seen[n] || strings.HasSuffix(n, ".part") {
			continue
		}
		extra = append(extra, n)
	}
	sort.Strings(extra)

	lines := make([]string, 0, len(names)+len(extra))
	for _, n := range append(names, extra...) {
		var tags []string
		if cat.Downloaded(n) {
			tags = append(tags, "downloaded")
		}
		if n == active {
			tags = append(tags, "active")
		}
		line := "- " + n
		if len(tags) > 0 {
			line += " (" + strings.Join(tags, ", ") + ")"
		}
		lines = append(lines, line)
	}
	return lines
}

// progressPrinter renders download progress on one terminal line.
func progressPrinter(w io.Writer, label string) func(float64) {
	last := -1
	return func(p float64) {
		pct := int(p * 100)
		if pct == last {
			return
		}
		last = pct
		fmt.Fprintf(w, "\r%s %3d%%", label, pct)
		if pct >= 100 {
			fmt.Fprintln(w)
		}
	}
}

func newModelsDownloadCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "download <model>",
		Short: "Download a model from the catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			cat, err := catalogFor(cfg)
			if err != nil {
				return err
			}
			name := args[0]
			if !cat.Known(name) {
				return fmt.Errorf("unknown model %q; run models list", name)
			}
			if cat.Downloaded(name) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s already downloaded\n", name)
				return nil
			}
			path, err := cat.Fetch(cmd.Context(), name, progressPrinter(cmd.OutOrStdout(), "downloading "+name))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "saved %s\n", path)
			return nil
		},
	}
}

func newModelsSetCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set <model-name-or-path>",
		Short: "Set asr.model in config",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			cat, err := catalogFor(cfg)
			if err != nil {
				return err
			}
			val := args[0]
			if _, err := cat.Resolve(val); err != nil {
				return err
			}
			cfg.ASR.Model = val
			if err := config.Save(cfg, cfg.Paths.ConfigPath); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "model set to %s\n", val)
			if load, _ := cmd.Flags().GetBool("load"); load {
				msg, err := CallSimple(cfg.Paths.SocketPath, Request{Op: OpLoadModel, Model: val})
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), msg)
			}
			return nil
		},
	}
	cmd.Flags().Bool("load", false, "also ask the running daemon to load it")
	return cmd
}

func newModelsLoadCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "load <model-name-or-path>",
		Short: "Load a model in the running daemon",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			wait, _ := cmd.Flags().GetBool("wait")
			msg, err := CallSimple(cfg.Paths.SocketPath, Request{Op: OpLoadModel, Model: args[0], Wait: wait})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), msg)
			return nil
		},
	}
	cmd.Flags().Bool("wait", false, "wait until the load settles")
	return cmd
}

func newModelsDeleteCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <model>",
		Short: "Delete a downloaded model (unloading it if active)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			msg, err := CallSimple(cfg.Paths.SocketPath, Request{Op: OpDeleteModel, Model: args[0]})
			if daemonDown(err) {
				// Daemon not running; nothing can have the model loaded.
				cat, cerr := catalogFor(cfg)
				if cerr != nil {
					return cerr
				}
				if err := cat.Remove(context.Background(), args[0]); err != nil {
					return err
				}
				msg = fmt.Sprintf("%s deleted from %s", filepath.Base(args[0]), cat.Dir())
			} else if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), msg)
			return nil
		},
	}
}
