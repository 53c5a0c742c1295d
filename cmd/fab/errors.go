// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fabgo/fab/internal/config"
	"github.com/fabgo/fab/internal/connection"
	"github.com/fabgo/fab/internal/dag"
	"github.com/fabgo/fab/internal/fabfile"
	"github.com/fabgo/fab/internal/issue"
	"github.com/fabgo/fab/internal/plan"
	"github.com/fabgo/fab/internal/task"
	"github.com/fabgo/fab/pkg/types"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

const (
	opLoadFabfile   = "load fabfile"
	opLoadConfig    = "load configuration"
	opReadSudoPass  = "read sudo password"
	opParseHosts    = "parse hosts"
	opParseCommand  = "parse command"
	opParseTask     = "parse task invocation"
	opPlanExecution = "plan execution"
)

// classifyError maps a failure to the issue catalog entry that explains it.
// The zero Id means no guidance applies.
func classifyError(err error) issue.Id {
	switch {
	case errors.Is(err, plan.ErrNoTargets):
		return issue.NoHostsId
	case errors.Is(err, fabfile.ErrNotFound):
		return issue.FabfileNotFoundId
	case errors.Is(err, task.ErrTaskNotFound):
		return issue.TaskNotFoundId
	case errors.Is(err, dag.ErrCycle):
		return issue.HookCycleId
	case errors.Is(err, connection.ErrHostKey):
		return issue.HostKeyMismatchId
	case errors.Is(err, connection.ErrAuthFailed):
		return issue.AuthenticationFailedId
	case errors.Is(err, connection.ErrConnect):
		return issue.HostUnreachableId
	case errors.Is(err, connection.ErrSudoPassword):
		return issue.SudoPasswordRequiredId
	}

	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		switch ae.Operation {
		case opLoadFabfile:
			return issue.FabfileParseErrorId
		case opLoadConfig, "validate configuration":
			return issue.ConfigLoadFailedId
		}
	}
	var verrs fabfile.ValidationErrors
	if errors.As(err, &verrs) {
		return issue.FabfileParseErrorId
	}
	return 0
}

// exitCodeFor returns the process exit code for a failure that stopped fab
// before any work item ran.
func exitCodeFor(err error) types.ExitCode {
	switch {
	case errors.Is(err, plan.ErrNoTargets),
		errors.Is(err, task.ErrInvalidInvocation),
		errors.Is(err, task.ErrUnknownArg),
		errors.Is(err, task.ErrMissingArg),
		errors.Is(err, task.ErrInvalidCommand),
		errors.Is(err, config.ErrInvalidConfig):
		return types.ExitUsage
	default:
		return types.ExitFailure
	}
}

// renderError writes err and any matching issue guidance to w, then returns
// the ExitError the command should return. Cobra's own error printing is
// silenced since the message has already been shown.
func renderError(cmd *cobra.Command, w io.Writer, err error, verbose bool, scheme config.ColorScheme) error {
	renderIssue(w, classifyError(err), scheme)
	fmt.Fprintf(w, "%s %s\n", ErrorStyle.Render("Error:"), formatErrorForDisplay(err, verbose))

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true
	return &ExitError{Code: exitCodeFor(err)}
}

// renderIssue writes the guidance for id, if any, to w.
func renderIssue(w io.Writer, id issue.Id, scheme config.ColorScheme) {
	if id == 0 {
		return
	}
	iss := issue.Get(id)
	if iss == nil {
		return
	}
	if rendered, err := iss.Render(glamourStyle(w, scheme)); err == nil {
		fmt.Fprint(w, rendered)
	}
}

// glamourStyle picks the markdown style for issue guidance.
func glamourStyle(w io.Writer, scheme config.ColorScheme) string {
	switch scheme {
	case config.ColorSchemeDark:
		return "dark"
	case config.ColorSchemeLight:
		return "light"
	}
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return "dark"
	}
	return "notty"
}
