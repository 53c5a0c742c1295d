// SPDX-License-Identifier: MPL-2.0

// Package cmd contains all CLI commands for fab.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime/debug"

	"github.com/fabgo/fab/internal/issue"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// rootFlags holds the values of the root command's flags.
type rootFlags struct {
	hosts          []string
	fabfile        string
	configPath     string
	verbose        bool
	parallel       bool
	maxWorkers     int
	hookMode       string
	failFast       bool
	dryRun         bool
	identities     []string
	port           int
	user           string
	promptSudoPass bool
}

// NewRootCommand builds the fab command tree around app.
func NewRootCommand(app *App) *cobra.Command {
	flags := &rootFlags{}

	rootCmd := &cobra.Command{
		Use:   "fab [flags] [task[:arg=value,...]...] [-- command]",
		Short: "Run tasks and shell commands across many hosts",
		Long: TitleStyle.Render("fab") + SubtitleStyle.Render(" - Run tasks and shell commands across many hosts") + `

fab expands every task you name on the command line into one unit of work
per target host, then runs them over SSH. Tasks are defined in a
'fabfile.cue' in the current directory. Anything after '--' is run as a
raw shell command on every host.

` + SubtitleStyle.Render("Examples:") + `
  fab list                                List tasks in ./fabfile.cue
  fab -H web1,web2 deploy:env=prod        Run 'deploy' on two hosts
  fab -H web1 -H web2 -- uptime           Run a raw command on two hosts
  fab -H web1,web2 -P --dry-run deploy    Show the planned work items
  fab build                               Run 'build' locally (no hosts)`,
		SilenceUsage: true,
		Args:         cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.run(cmd, args, flags)
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "enable verbose output")
	pf.StringVar(&flags.configPath, "config", "", "config file (default is $XDG_CONFIG_HOME/fab/config.cue)")
	pf.StringVarP(&flags.fabfile, "fabfile", "f", "", "fabfile to load (default is ./"+fabfileDefault+")")

	f := rootCmd.Flags()
	f.StringArrayVarP(&flags.hosts, "hosts", "H", nil, "comma-separated target hosts ([user@]host[:port]); repeatable")
	f.BoolVarP(&flags.parallel, "parallel", "P", false, "run different hosts concurrently")
	f.IntVar(&flags.maxWorkers, "max-workers", 0, "maximum hosts running at once with --parallel")
	f.StringVar(&flags.hookMode, "hook-mode", "", "where pre/post tasks run: per_target or per_invocation")
	f.BoolVar(&flags.failFast, "fail-fast", false, "skip remaining work items after the first failure")
	f.BoolVar(&flags.dryRun, "dry-run", false, "print the planned work items without running them")
	f.StringArrayVarP(&flags.identities, "identity", "i", nil, "private key file for SSH authentication; repeatable")
	f.IntVar(&flags.port, "port", 0, "SSH port when a host names none")
	f.StringVarP(&flags.user, "user", "u", "", "SSH user when a host names none")
	f.BoolVar(&flags.promptSudoPass, "prompt-for-sudo-password", false, "ask for the sudo password before running")

	rootCmd.AddCommand(newListCommand(app, flags))
	rootCmd.AddCommand(newConfigCommand(app, flags))
	rootCmd.AddCommand(newServeCommand(app, flags))
	rootCmd.AddCommand(newCompletionCommand())

	return rootCmd
}

// getVersionString returns a formatted version string for display.
// Builds without ldflags fall back to the module version recorded by the
// Go toolchain when one is available.
func getVersionString() string {
	if Version != "dev" {
		return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return "dev (built from source)"
}

// Execute runs the fab CLI. It is called by main.main().
func Execute() {
	app := NewApp(Dependencies{})

	// fang overrides rootCmd.Version, so the version is passed explicitly.
	if err := fang.Execute(
		context.Background(),
		NewRootCommand(app),
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(int(exitErr.Code))
		}
		os.Exit(1)
	}
}

// formatErrorForDisplay formats an error for user display.
// If the error is an ActionableError, it uses the Format method.
// In verbose mode, shows the full error chain.
func formatErrorForDisplay(err error, verboseMode bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verboseMode)
	}
	return err.Error()
}
