// SPDX-License-Identifier: MPL-2.0

package fabfile

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/fabgo/fab/internal/connection"
	"github.com/fabgo/fab/internal/task"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/syntax"
)

// Registry builds the task registry for f. Task bodies run their cmds in
// order on the context they are given and stop at the first failure.
func (f *Fabfile) Registry() (*task.Registry, error) {
	reg := task.NewRegistry()
	for _, t := range f.Tasks {
		if err := reg.Add(t.toTask()); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

func (t Task) toTask() *task.Task {
	args := make([]task.Arg, 0, len(t.Args))
	for _, a := range t.Args {
		arg := task.Arg{Name: a.Name}
		if a.Default != nil {
			arg.Default, arg.HasDefault = *a.Default, true
		}
		args = append(args, arg)
	}
	return &task.Task{
		Name:        t.Name,
		Description: t.Description,
		Args:        args,
		Pre:         slices.Clone(t.Pre),
		Post:        slices.Clone(t.Post),
		Body:        t.body(),
	}
}

func (t Task) body() task.Body {
	cmds := slices.Clone(t.Cmds)
	env := maps.Clone(t.Env)
	local := t.Local

	return func(ctx context.Context, c connection.Context, args task.Args) error {
		for i, cmd := range cmds {
			line, err := ExpandArgs(cmd.Run, args)
			if err != nil {
				return fmt.Errorf("cmds[%d]: %w", i, err)
			}

			var opts []connection.RunOption
			if cmd.Warn {
				opts = append(opts, connection.WithWarn(true))
			}
			if cmd.Hide {
				opts = append(opts, connection.WithHide(true))
			}
			if len(env) > 0 {
				opts = append(opts, connection.WithEnv(env))
			}

			run := c.Run
			switch {
			case cmd.Sudo:
				run = c.Sudo
			case cmd.Local || local:
				run = c.Local
			}
			if _, err := run(ctx, line, opts...); err != nil {
				return err
			}
		}
		return nil
	}
}

// ExpandArgs substitutes task arguments into command. Only parameter
// expansions naming a key of args are replaced, and each result is quoted
// so it stays one shell word; everything else is left for the shell that
// runs the command. Expansion operators such as ${env:-prod} apply.
func ExpandArgs(command string, args task.Args) (string, error) {
	if len(args) == 0 || !strings.Contains(command, "$") {
		return command, nil
	}

	file, err := syntax.NewParser().Parse(strings.NewReader(command), "")
	if err != nil {
		return "", &task.InvalidCommandError{Command: command, Err: err}
	}

	pairs := make([]string, 0, len(args))
	for k, v := range args {
		pairs = append(pairs, k+"="+v)
	}
	cfg := &expand.Config{Env: expand.ListEnviron(pairs...)}

	var (
		changed bool
		walkErr error
	)
	substitute := func(parts []syntax.WordPart, quoted bool) {
		for i, part := range parts {
			pe, ok := part.(*syntax.ParamExp)
			if !ok || pe.Param == nil {
				continue
			}
			if _, declared := args[pe.Param.Value]; !declared {
				continue
			}
			value, err := expand.Literal(cfg, &syntax.Word{Parts: []syntax.WordPart{pe}})
			if err != nil {
				walkErr = err
				return
			}
			if quoted {
				value = escapeDoubleQuoted(value)
			} else {
				value = quote(value)
			}
			parts[i] = &syntax.Lit{Value: value}
			changed = true
		}
	}
	syntax.Walk(file, func(node syntax.Node) bool {
		if walkErr != nil {
			return false
		}
		switch n := node.(type) {
		case *syntax.Word:
			substitute(n.Parts, false)
		case *syntax.DblQuoted:
			substitute(n.Parts, true)
		}
		return true
	})
	if walkErr != nil {
		return "", fmt.Errorf("expanding %q: %w", command, walkErr)
	}
	if !changed {
		return command, nil
	}

	var sb strings.Builder
	if err := syntax.NewPrinter().Print(&sb, file); err != nil {
		return "", err
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}

// quote renders s as a single POSIX shell word.
func quote(s string) string {
	if s == "" {
		return "''"
	}
	q, err := syntax.Quote(s, syntax.LangPOSIX)
	if err != nil {
		// Quote only fails for strings POSIX cannot represent, such as NUL
		// bytes; fall back to single quotes with the usual escape.
		return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
	}
	return q
}

var dblQuoteEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "$", `\$`, "`", "\\`")

func escapeDoubleQuoted(s string) string { return dblQuoteEscaper.Replace(s) }
