// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fabgo/fab/internal/config"

	"github.com/spf13/cobra"
)

const (
	formatCUE  = "cue"
	formatTOML = "toml"
)

// newConfigCommand creates the `fab config` command tree.
// Subcommands that read configuration use the App's config.Provider.
func newConfigCommand(app *App, flags *rootFlags) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage fab configuration",
		Long: `Manage fab configuration.

Configuration is stored in:
  - Linux: $XDG_CONFIG_HOME/fab/config.cue (default ~/.config/fab/config.cue)
  - macOS: ~/Library/Application Support/fab/config.cue
  - Windows: %APPDATA%\fab\config.cue

A config.cue in the current directory is used when the user file is missing.
Every key can be overridden with a FAB_ environment variable, e.g.
FAB_SSH_USER=deploy or FAB_EXECUTION_PARALLEL=true.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	var format string
	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		Long: `Show the effective configuration after defaults, the config file and
FAB_ environment overrides are merged. Passwords are never shown.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.Config.Load(cmd.Context(), config.LoadOptions{ConfigFilePath: flags.configPath})
			if err != nil {
				return renderError(cmd, app.stderr, err, flags.verbose, config.ColorSchemeAuto)
			}
			return showConfig(cmd, app, cfg, format)
		},
	}
	showCmd.Flags().StringVar(&format, "format", formatCUE, "output format: cue or toml")
	cfgCmd.AddCommand(showCmd)

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Create the default configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.CreateDefaultConfig()
			if err != nil {
				return renderError(cmd, app.stderr, err, flags.verbose, config.ColorSchemeAuto)
			}
			fmt.Fprintf(app.stdout, "%s Created default configuration at %s\n", SuccessStyle.Render("✓"), path)
			return nil
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show the configuration file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgDir, err := config.ConfigDir()
			if err != nil {
				return err
			}
			path := filepath.Join(cfgDir, config.ConfigFileName+"."+config.ConfigFileExt)
			fmt.Fprintf(app.stdout, "Config directory: %s\n", cfgDir)
			if _, err := os.Stat(path); err == nil {
				fmt.Fprintf(app.stdout, "Config file: %s\n", path)
			} else {
				fmt.Fprintf(app.stdout, "Config file: %s %s\n", path, SubtitleStyle.Render("(not created, using defaults)"))
			}
			return nil
		},
	})

	return cfgCmd
}

func showConfig(cmd *cobra.Command, app *App, cfg *config.Config, format string) error {
	switch format {
	case formatCUE:
		fmt.Fprint(app.stdout, config.GenerateCUE(cfg))
	case formatTOML:
		out, err := config.GenerateTOML(cfg)
		if err != nil {
			return err
		}
		fmt.Fprint(app.stdout, out)
	default:
		cmd.SilenceUsage = false
		return fmt.Errorf("unknown format %q (want %s or %s)", format, formatCUE, formatTOML)
	}
	return nil
}
