// SPDX-License-Identifier: MPL-2.0

package fabfile

import (
	"fmt"
	"strings"

	"github.com/fabgo/fab/internal/task"
)

type (
	// ValidationError is one problem found in a fabfile.
	ValidationError struct {
		// Field locates the problem, e.g. "task 'deploy' cmds[1]".
		Field   string
		Message string
	}

	// ValidationErrors collects every problem from one validation pass.
	ValidationErrors []ValidationError
)

func (e ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

func (errs ValidationErrors) Error() string {
	if len(errs) == 1 {
		return errs[0].Error()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "fabfile has %d errors:", len(errs))
	for _, e := range errs {
		b.WriteString("\n  - ")
		b.WriteString(e.Error())
	}
	return b.String()
}

// Validate checks what the schema cannot: unique task and argument names,
// resolvable pre/post references and commands that parse as shell.
func (f *Fabfile) Validate() ValidationErrors {
	var errs ValidationErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	names := make(map[string]bool, len(f.Tasks))
	for _, t := range f.Tasks {
		if names[t.Name] {
			add(fmt.Sprintf("task '%s'", t.Name), "defined more than once")
		}
		names[t.Name] = true
	}

	for _, t := range f.Tasks {
		field := fmt.Sprintf("task '%s'", t.Name)

		seen := make(map[string]bool, len(t.Args))
		for _, a := range t.Args {
			if seen[a.Name] {
				add(field, "argument %q declared more than once", a.Name)
			}
			seen[a.Name] = true
		}

		for _, hook := range [...]struct {
			kind  string
			names []string
		}{{"pre", t.Pre}, {"post", t.Post}} {
			for _, name := range hook.names {
				if !names[name] {
					add(field, "%s task %q is not defined", hook.kind, name)
				}
			}
		}

		for i, c := range t.Cmds {
			cmdField := fmt.Sprintf("%s cmds[%d]", field, i)
			if c.Sudo && (c.Local || t.Local) {
				add(cmdField, "sudo cannot be combined with local")
			}
			if err := task.ValidateCommand(c.Run); err != nil {
				add(cmdField, "%v", err)
			}
		}
	}
	return errs
}
