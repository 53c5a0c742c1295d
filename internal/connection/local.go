// SPDX-License-Identifier: MPL-2.0

package connection

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"

	"github.com/fabgo/fab/internal/config"
	"github.com/fabgo/fab/internal/target"
	"github.com/fabgo/fab/pkg/types"

	"github.com/charmbracelet/log"
	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

// LocalContext runs commands on this machine through an embedded POSIX shell
// interpreter. It never opens a network connection.
type LocalContext struct {
	host    target.Host
	cfg     config.Snapshot
	streams Streams
	logger  *log.Logger
}

// NewLocalContext creates a context that runs everything locally.
func NewLocalContext(cfg config.Snapshot, opts ...Option) *LocalContext {
	o := applyOptions(opts)
	return &LocalContext{
		host:    LocalHost,
		cfg:     cfg,
		streams: o.streams,
		logger:  o.logger,
	}
}

// Host returns LocalHost.
func (l *LocalContext) Host() target.Host { return l.host }

// Run is Local: the local context has no remote side.
func (l *LocalContext) Run(ctx context.Context, command string, opts ...RunOption) (*Result, error) {
	return l.Local(ctx, command, opts...)
}

// Local parses command as a POSIX shell program and interprets it.
func (l *LocalContext) Local(ctx context.Context, command string, opts ...RunOption) (*Result, error) {
	o := resolveRunOptions(l.cfg, opts)
	var stdin io.Reader
	if o.InStream {
		stdin = l.streams.Stdin
	}
	return l.interpret(ctx, command, stdin, o)
}

// Sudo runs command under sudo on this machine, answering the password
// prompt from sudo.password. sudo is started directly rather than through the
// interpreter so its stdin pipe is closed as soon as it exits.
func (l *LocalContext) Sudo(ctx context.Context, command string, opts ...RunOption) (*Result, error) {
	o := resolveRunOptions(l.cfg, opts)
	sudo := l.cfg.Sudo()

	cmd := exec.CommandContext(ctx, "sudo", sudoArgs(sudo, l.cfg.Run().Shell, command)...)
	cmd.Env = environ(o.Env)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("sudo stdin: %w", err)
	}

	streams := l.streams.withDefaults()
	var stdout, stderr bytes.Buffer
	watcher := newPromptWatcher(sudo.Prompt, sudo.Password, stdin, nil)
	cmd.Stdout, cmd.Stderr = &stdout, io.MultiWriter(&stderr, watcher)
	if !o.Hide {
		cmd.Stdout = io.MultiWriter(&stdout, streams.Stdout)
		cmd.Stderr = io.MultiWriter(&stderr, streams.Stderr, watcher)
	}

	l.logger.Debug("running", "host", l.host, "command", command, "sudo", true)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start sudo: %w", err)
	}
	done := make(chan struct{})
	if o.InStream && l.streams.Stdin != nil {
		in := sharedStdin(l.streams.Stdin).attach(done)
		go func() { _, _ = io.Copy(stdin, in) }() //nolint:errcheck // Wait closes the pipe
	}
	waitErr := cmd.Wait()
	close(done)

	res := &Result{Host: l.host, Command: command, Stdout: stdout.String(), Stderr: stderr.String()}
	if werr := watcher.err(l.host); werr != nil {
		res.ExitCode = types.ExitFailure
		return res, werr
	}
	var exitErr *exec.ExitError
	switch {
	case waitErr == nil:
		res.ExitCode = types.ExitSuccess
	case errors.As(waitErr, &exitErr):
		res.ExitCode = types.NormalizeExitCode(exitErr.ExitCode())
	default:
		return res, fmt.Errorf("run %q: %w", command, waitErr)
	}
	return checkExit(res, o.Warn)
}

// Close is a no-op.
func (l *LocalContext) Close() error { return nil }

func (l *LocalContext) interpret(ctx context.Context, command string, stdin io.Reader, o RunOptions) (*Result, error) {
	file, err := syntax.NewParser().Parse(strings.NewReader(command), "")
	if err != nil {
		return nil, fmt.Errorf("parse command %q: %w", command, err)
	}

	streams := l.streams.withDefaults()
	var stdout, stderr bytes.Buffer
	outW, errW := io.Writer(&stdout), io.Writer(&stderr)
	if !o.Hide {
		outW = io.MultiWriter(&stdout, streams.Stdout)
		errW = io.MultiWriter(&stderr, streams.Stderr)
	}

	runner, err := interp.New(
		interp.StdIO(stdin, outW, errW),
		interp.Env(expand.ListEnviron(environ(o.Env)...)),
	)
	if err != nil {
		return nil, fmt.Errorf("create interpreter: %w", err)
	}

	l.logger.Debug("running", "host", l.host, "command", command)
	res := &Result{Host: l.host, Command: command}
	runErr := runner.Run(ctx, file)
	res.Stdout, res.Stderr = stdout.String(), stderr.String()

	var status interp.ExitStatus
	switch {
	case runErr == nil:
		res.ExitCode = types.ExitSuccess
	case errors.As(runErr, &status):
		res.ExitCode = types.ExitCode(status)
	default:
		return res, fmt.Errorf("run %q: %w", command, runErr)
	}
	return checkExit(res, o.Warn)
}

// environ merges extra over the process environment in KEY=VALUE form.
func environ(extra map[string]string) []string {
	env := os.Environ()
	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, k+"="+extra[k])
	}
	return env
}
