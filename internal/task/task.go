// SPDX-License-Identifier: MPL-2.0

package task

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/fabgo/fab/internal/connection"

	"mvdan.cc/sh/v3/syntax"
)

// AnonymousName is the name of the synthetic task built from a raw command.
const AnonymousName = "<remainder>"

type (
	// Body is the work a task performs on one execution context.
	Body func(ctx context.Context, c connection.Context, args Args) error

	// Args is a task's argument bag.
	Args map[string]string

	// Arg declares a task argument. Arguments without a default are required.
	Arg struct {
		Name       string
		Default    string
		HasDefault bool
	}

	// Task is a named unit of work.
	Task struct {
		Name        string
		Description string
		Args        []Arg
		// Pre and Post name tasks that run before and after this one.
		Pre  []string
		Post []string
		// Command is the raw command line of an anonymous task.
		Command string
		Body    Body
	}

	// Call is a Task bound to arguments. It is immutable once built.
	Call struct {
		task *Task
		args Args
	}
)

// Clone returns a copy of a.
func (a Args) Clone() Args {
	if a == nil {
		return Args{}
	}
	return maps.Clone(a)
}

// Equal reports whether a and b hold the same keys and values.
func (a Args) Equal(b Args) bool {
	return maps.Equal(a, b)
}

// String renders the bag as "k=v,k2=v2" with keys sorted.
func (a Args) String() string {
	keys := slices.Sorted(maps.Keys(a))
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+escapeArg(a[k]))
	}
	return strings.Join(parts, ",")
}

// IsAnonymous reports whether t wraps a raw command line.
func (t *Task) IsAnonymous() bool { return t.Name == AnonymousName }

// Arg returns the declaration of name, if any.
func (t *Task) Arg(name string) (Arg, bool) {
	for _, a := range t.Args {
		if a.Name == name {
			return a, true
		}
	}
	return Arg{}, false
}

// Anonymous builds the task that runs command on whatever context it is
// given. stdin is not forwarded, so fanning out one command to many hosts
// never competes for the terminal.
func Anonymous(command string) *Task {
	return &Task{
		Name:        AnonymousName,
		Description: command,
		Command:     command,
		Body: func(ctx context.Context, c connection.Context, _ Args) error {
			_, err := c.Run(ctx, command, connection.WithInStream(false))
			return err
		},
	}
}

// ValidateCommand checks that command parses as a POSIX shell program, so a
// typo in a raw command fails before any host is contacted.
func ValidateCommand(command string) error {
	if strings.TrimSpace(command) == "" {
		return &InvalidCommandError{Command: command, Err: errEmptyCommand}
	}
	if _, err := syntax.NewParser().Parse(strings.NewReader(command), ""); err != nil {
		return &InvalidCommandError{Command: command, Err: err}
	}
	return nil
}

// NewCall binds t to a copy of args.
func NewCall(t *Task, args Args) *Call {
	return &Call{task: t, args: args.Clone()}
}

// Task returns the bound task.
func (c *Call) Task() *Task { return c.task }

// Name returns the bound task's name.
func (c *Call) Name() string { return c.task.Name }

// Args returns a copy of the argument bag.
func (c *Call) Args() Args { return c.args.Clone() }

// Clone returns a deep copy sharing only the (read-only) Task.
func (c *Call) Clone() *Call {
	return &Call{task: c.task, args: c.args.Clone()}
}

// Equal reports whether c and other invoke the same task with the same arguments.
func (c *Call) Equal(other *Call) bool {
	return c.task == other.task && c.args.Equal(other.args)
}

// Run executes the task body on cc.
func (c *Call) Run(ctx context.Context, cc connection.Context) error {
	if c.task.Body == nil {
		return nil
	}
	return c.task.Body(ctx, cc, c.args.Clone())
}

// String renders the call in its command line form, e.g. "deploy:env=prod".
// Anonymous calls render as the quoted command.
func (c *Call) String() string {
	if c.task.IsAnonymous() {
		return fmt.Sprintf("%q", c.task.Command)
	}
	if len(c.args) == 0 {
		return c.task.Name
	}
	return c.task.Name + ":" + c.args.String()
}
