// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/fabgo/fab/internal/config"
	"github.com/fabgo/fab/internal/connection"
	"github.com/fabgo/fab/internal/engine"
	"github.com/fabgo/fab/internal/fabfile"
	"github.com/fabgo/fab/internal/issue"
	"github.com/fabgo/fab/internal/plan"
	"github.com/fabgo/fab/internal/target"
	"github.com/fabgo/fab/internal/task"
	"github.com/fabgo/fab/pkg/types"

	"github.com/spf13/cobra"
)

// fabfileDefault is shown in flag help.
const fabfileDefault = fabfile.DefaultFilename

// run is the root command: plan the named tasks and the raw command across
// the selected hosts and execute the resulting work items.
func (a *App) run(cmd *cobra.Command, args []string, flags *rootFlags) error {
	ctx := cmd.Context()

	cfg, err := a.loadConfig(ctx, cmd, flags)
	if err != nil {
		return renderError(cmd, a.stderr, err, flags.verbose, config.ColorSchemeAuto)
	}
	verbose := cfg.UI.Verbose
	scheme := cfg.UI.ColorScheme
	logger := a.newLogger(verbose)

	names, anonymous := splitArgs(args, cmd.ArgsLenAtDash())
	if len(names) == 0 && anonymous == "" {
		return cmd.Help()
	}

	hosts, err := target.ParseHosts(flags.hosts)
	if err != nil {
		return renderError(cmd, a.stderr, issue.Op(opParseHosts, strings.Join(flags.hosts, ","), err), verbose, scheme)
	}

	// with no hosts the planner reports the missing targets first
	if anonymous != "" && len(hosts) > 0 {
		if err := task.ValidateCommand(anonymous); err != nil {
			return renderError(cmd, a.stderr, issue.Op(opParseCommand, anonymous, err), verbose, scheme)
		}
	}

	reg := task.NewRegistry()
	if len(names) > 0 {
		reg, err = loadRegistry(flags.fabfile)
		if err != nil {
			return renderError(cmd, a.stderr, err, verbose, scheme)
		}
	}

	calls := make([]*task.Call, 0, len(names))
	for _, name := range names {
		call, err := task.ParseInvocation(reg, name)
		if err != nil {
			return renderError(cmd, a.stderr, invocationError(name, reg, err), verbose, scheme)
		}
		calls = append(calls, call)
	}

	if flags.promptSudoPass && !flags.dryRun {
		password, err := readSudoPassword(a.stdin, a.stderr)
		if err != nil {
			return renderError(cmd, a.stderr, issue.Op(opReadSudoPass, "", err), verbose, scheme)
		}
		cfg.Sudo.Password = password
	}

	snapshot := cfg.Snapshot()
	planner := plan.NewPlanner(a.NewFactory(a.streams(), logger), plan.WithLogger(logger))
	items, err := planner.Expand(calls, hosts, anonymous)
	if err != nil {
		return renderError(cmd, a.stderr, noTargetsError(err), verbose, scheme)
	}

	if flags.dryRun {
		for _, item := range items {
			fmt.Fprintln(a.stdout, item.String())
		}
		return nil
	}

	eng := engine.New(snapshot,
		engine.WithRegistry(reg),
		engine.WithDeduper(plan.NoDedupe{}),
		engine.WithLogger(logger),
		engine.WithDefaultContext(connection.NewLocalContext(snapshot,
			connection.WithStreams(a.streams()),
			connection.WithLogger(logger),
		)),
	)
	report, err := eng.Execute(ctx, items)
	if err != nil {
		return renderError(cmd, a.stderr, issue.Op(opPlanExecution, "", err), verbose, scheme)
	}

	if !report.OK() {
		fmt.Fprint(a.stderr, renderReport(report, verbose))
		if failures := report.Failures(); len(failures) > 0 && verbose {
			renderIssue(a.stderr, classifyError(failures[0].Err), scheme)
		}
		cmd.SilenceErrors = true
		cmd.SilenceUsage = true
		return &ExitError{Code: types.ExitFailure}
	}
	if verbose {
		fmt.Fprint(a.stderr, renderReport(report, verbose))
	}
	return nil
}

// loadConfig loads the configuration file and applies flag overrides.
// Flags only override when set explicitly.
func (a *App) loadConfig(ctx context.Context, cmd *cobra.Command, flags *rootFlags) (*config.Config, error) {
	cfg, err := a.Config.Load(ctx, config.LoadOptions{ConfigFilePath: flags.configPath})
	if err != nil {
		return nil, err
	}

	changed := cmd.Flags().Changed
	if changed("verbose") {
		cfg.UI.Verbose = flags.verbose
	}
	if changed("parallel") {
		cfg.Execution.Parallel = flags.parallel
	}
	if changed("max-workers") {
		cfg.Execution.MaxWorkers = flags.maxWorkers
	}
	if changed("fail-fast") {
		cfg.Execution.FailFast = flags.failFast
	}
	if changed("hook-mode") {
		cfg.Hooks.Mode = config.HookMode(flags.hookMode)
	}
	if changed("identity") {
		cfg.SSH.IdentityFiles = append(append([]string(nil), flags.identities...), cfg.SSH.IdentityFiles...)
	}
	if changed("port") {
		cfg.SSH.Port = flags.port
	}
	if changed("user") {
		cfg.SSH.User = flags.user
	}

	if err := cfg.Validate(); err != nil {
		return nil, issue.NewErrorContext().
			WithOperation("validate configuration").
			WithSuggestion("Check the values passed to --hook-mode, --max-workers and --port").
			Wrap(err).
			BuildError()
	}
	return cfg, nil
}

// splitArgs separates task invocations from the raw command that follows
// "--". dash is cobra's ArgsLenAtDash (-1 when there is no "--").
func splitArgs(args []string, dash int) (names []string, anonymous string) {
	if dash < 0 {
		return args, ""
	}
	return args[:dash], strings.TrimSpace(strings.Join(args[dash:], " "))
}

// loadRegistry finds and parses the fabfile and builds its task registry.
func loadRegistry(explicit string) (*task.Registry, error) {
	dir, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}

	path, err := fabfile.Find(explicit, dir)
	if err != nil {
		return nil, issue.NewErrorContext().
			WithOperation("find fabfile").
			WithSuggestion("Create a " + fabfile.DefaultFilename + " in the current directory").
			WithSuggestion("Pass --fabfile to load another file").
			Wrap(err).
			BuildError()
	}

	ff, err := fabfile.Parse(path)
	if err != nil {
		return nil, issue.NewErrorContext().
			WithOperation(opLoadFabfile).
			WithResource(path).
			Wrap(err).
			BuildError()
	}

	reg, err := ff.Registry()
	if err != nil {
		return nil, issue.NewErrorContext().
			WithOperation(opLoadFabfile).
			WithResource(path).
			Wrap(err).
			BuildError()
	}
	return reg, nil
}

// invocationError adds task listing hints to a failed invocation parse.
func invocationError(input string, reg *task.Registry, err error) error {
	ec := issue.NewErrorContext().
		WithOperation(opParseTask).
		WithResource(input).
		Wrap(err)

	var nf *task.NotFoundError
	if errors.As(err, &nf) {
		if known := reg.Names(); len(known) > 0 {
			ec.WithSuggestion("Available tasks: " + strings.Join(known, ", "))
		}
		ec.WithSuggestion("Run 'fab list' to see task arguments")
	}
	return ec.BuildError()
}

func noTargetsError(err error) error {
	var nt *plan.NoTargetsError
	if !errors.As(err, &nt) {
		return err
	}
	return issue.NewErrorContext().
		WithOperation("run command").
		WithResource(nt.Command).
		WithSuggestion("Pass target hosts with -H, e.g. fab -H web1,web2 -- " + nt.Command).
		Wrap(err).
		BuildError()
}
