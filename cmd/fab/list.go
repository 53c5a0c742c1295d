// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/fabgo/fab/internal/config"
	"github.com/fabgo/fab/internal/task"

	"github.com/spf13/cobra"
)

// newListCommand creates the `fab list` command.
func newListCommand(app *App, flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List the tasks defined in the fabfile",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := loadRegistry(flags.fabfile)
			if err != nil {
				return renderError(cmd, app.stderr, err, flags.verbose, config.ColorSchemeAuto)
			}
			renderTaskList(app.stdout, reg)
			return nil
		},
	}
}

// renderTaskList writes one line per task: name, argument signature and
// description, followed by its pre/post tasks when it has any.
func renderTaskList(w io.Writer, reg *task.Registry) {
	fmt.Fprintln(w, TitleStyle.Render("Available tasks:"))
	if reg.Len() == 0 {
		fmt.Fprintln(w, SubtitleStyle.Render("  (none)"))
		return
	}

	width := 0
	for _, t := range reg.Tasks() {
		width = max(width, len(signature(t)))
	}

	for _, t := range reg.Tasks() {
		sig := signature(t)
		line := "  " + CmdStyle.Render(sig)
		if t.Description != "" {
			line += strings.Repeat(" ", width-len(sig)+2) + SubtitleStyle.Render(t.Description)
		}
		fmt.Fprintln(w, line)
		if len(t.Pre) > 0 {
			fmt.Fprintln(w, VerboseStyle.Render("      pre:  "+strings.Join(t.Pre, ", ")))
		}
		if len(t.Post) > 0 {
			fmt.Fprintln(w, VerboseStyle.Render("      post: "+strings.Join(t.Post, ", ")))
		}
	}
}

// signature renders a task the way it is invoked, e.g. "deploy:env,tag=latest".
func signature(t *task.Task) string {
	if len(t.Args) == 0 {
		return t.Name
	}
	parts := make([]string, len(t.Args))
	for i, a := range t.Args {
		if a.HasDefault {
			parts[i] = a.Name + "=" + a.Default
		} else {
			parts[i] = a.Name
		}
	}
	return t.Name + ":" + strings.Join(parts, ",")
}
