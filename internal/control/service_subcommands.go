package control

import (
	"fmt"
	"os"
	"strings"

	"holdtalk/internal/config"
	"holdtalk/internal/service"

	"github.com/spf13/cobra"
)

func newServiceInstallCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "install",
		Short: "Install the user service (launchd on macOS, systemd elsewhere)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			exe, err := os.Executable()
			if err != nil {
				return err
			}
			envPairs, _ := cmd.Flags().GetStringArray("env")
			env, err := parseEnvPairs(envPairs)
			if err != nil {
				return err
			}
			params := service.Params{
				Label:  service.Label,
				Binary: exe,
				Config: cfg.Paths.ConfigPath,
				Log:    cfg.Paths.LogPath,
				Env:    env,
			}
			path, err := service.Write(params)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "service file written: %s\n", path)
			if service.Launchd() {
				fmt.Fprintln(out, "Load:   launchctl load -w", path)
				fmt.Fprintf(out, "Start:  launchctl kickstart gui/$(id -u)/%s\n", params.Label)
				fmt.Fprintf(out, "Stop:   launchctl bootout gui/$(id -u)/%s\n", params.Label)
			} else {
				fmt.Fprintf(out, "Enable: systemctl --user enable --now %s\n", params.Label)
				fmt.Fprintf(out, "Stop:   systemctl --user stop %s\n", params.Label)
			}
			return nil
		},
	}
	cmd.Flags().StringArray("env", nil, "Env to set in the service (KEY=VAL)")
	return cmd
}

func parseEnvPairs(pairs []string) (map[string]string, error) {
	env := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("bad env %q, want KEY=VAL", p)
		}
		env[k] = v
	}
	return env, nil
}

func newServiceUninstallCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "uninstall",
		Short: "Remove the user service file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := service.Path(service.Label)
			_ = os.Remove(path)
			if service.Launchd() {
				fmt.Fprintf(cmd.OutOrStdout(), "removed %s (if present); unload manually with: launchctl bootout gui/$(id -u) %s\n", path, path)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "removed %s (if present); stop with: systemctl --user disable --now %s\n", path, service.Label)
			}
			return nil
		},
	}
}

func newServiceStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the service file and what the service manager reports",
		RunE: func(cmd *cobra.Command, args []string) error {
			st := service.Status(service.Label)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "service file: %s\n", st.Path)
			if !st.Installed {
				fmt.Fprintln(out, "status: missing (install via: holdtalk service install)")
				return nil
			}
			fmt.Fprintln(out, "status: present")
			if st.Manager != "" {
				fmt.Fprintf(out, "manager: %s\n", st.Manager)
			}
			return nil
		},
	}
}
