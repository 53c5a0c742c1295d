// SPDX-License-Identifier: MPL-2.0

package connection

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"

	"github.com/fabgo/fab/internal/config"
	"github.com/fabgo/fab/internal/target"
	"github.com/fabgo/fab/pkg/types"
)

// LocalHost is the Host reported by contexts that run on this machine.
const LocalHost target.Host = "localhost"

var (
	// ErrUnexpectedExit is the sentinel error wrapped by UnexpectedExitError.
	ErrUnexpectedExit = errors.New("command exited with non-zero status")
	// ErrConnect is the sentinel error wrapped by ConnectError.
	ErrConnect = errors.New("connection failed")
	// ErrAuthFailed marks a ConnectError caused by rejected credentials.
	ErrAuthFailed = errors.New("authentication failed")
	// ErrHostKey marks a ConnectError caused by host key verification.
	ErrHostKey = errors.New("host key verification failed")
	// ErrSudoPassword is the sentinel error wrapped by SudoPasswordError.
	ErrSudoPassword = errors.New("sudo password required or rejected")
	// ErrClosed is returned when running a command on a closed Connection.
	ErrClosed = errors.New("connection closed")
)

type (
	// Context runs commands against exactly one target.
	Context interface {
		// Host identifies the target this context is bound to.
		Host() target.Host
		// Run executes command on the target.
		Run(ctx context.Context, command string, opts ...RunOption) (*Result, error)
		// Sudo executes command on the target through sudo.
		Sudo(ctx context.Context, command string, opts ...RunOption) (*Result, error)
		// Local executes command on the machine running fab.
		Local(ctx context.Context, command string, opts ...RunOption) (*Result, error)
		// Close releases the context's resources. Safe to call repeatedly.
		Close() error
	}

	// RunOptions controls a single command run. Zero values of Hide and Warn
	// are replaced with the config defaults by the context.
	RunOptions struct {
		// Hide suppresses streaming output to the context's writers.
		Hide bool
		// Warn reports non-zero exits in the Result instead of as an error.
		Warn bool
		// InStream forwards the context's stdin to the command.
		InStream bool
		// Env is exported to the command on top of run.env.
		Env map[string]string
	}

	// RunOption mutates RunOptions.
	RunOption func(*RunOptions)

	// Streams are the writers command output is copied to and the reader
	// forwarded as stdin when InStream is set.
	Streams struct {
		Stdin  io.Reader
		Stdout io.Writer
		Stderr io.Writer
	}

	// Result describes a finished command.
	Result struct {
		Host     target.Host
		Command  string
		Stdout   string
		Stderr   string
		ExitCode types.ExitCode
	}

	// UnexpectedExitError is returned when a command exits non-zero and
	// Warn was not set.
	UnexpectedExitError struct {
		Result *Result
	}

	// ConnectError is returned when the SSH session to a host cannot be opened.
	ConnectError struct {
		Host target.Host
		Err  error
	}

	// SudoPasswordError is returned when sudo prompts and no password is
	// configured, or when the configured password is rejected.
	SudoPasswordError struct {
		Host     target.Host
		Rejected bool
	}
)

// WithHide overrides run.hide for one command.
func WithHide(hide bool) RunOption {
	return func(o *RunOptions) { o.Hide = hide }
}

// WithWarn overrides run.warn for one command.
func WithWarn(warn bool) RunOption {
	return func(o *RunOptions) { o.Warn = warn }
}

// WithInStream controls whether stdin is forwarded to the command.
func WithInStream(in bool) RunOption {
	return func(o *RunOptions) { o.InStream = in }
}

// WithEnv adds environment variables for one command.
func WithEnv(env map[string]string) RunOption {
	return func(o *RunOptions) {
		if o.Env == nil {
			o.Env = make(map[string]string, len(env))
		}
		maps.Copy(o.Env, env)
	}
}

// resolveRunOptions applies opts over the run section of cfg.
func resolveRunOptions(cfg config.Snapshot, opts []RunOption) RunOptions {
	run := cfg.Run()
	o := RunOptions{
		Hide:     run.Hide,
		Warn:     run.Warn,
		InStream: true,
		Env:      run.Env,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// DefaultStreams returns the process's standard streams.
func DefaultStreams() Streams {
	return Streams{Stdin: os.Stdin, Stdout: os.Stdout, Stderr: os.Stderr}
}

func (s Streams) withDefaults() Streams {
	if s.Stdout == nil {
		s.Stdout = io.Discard
	}
	if s.Stderr == nil {
		s.Stderr = io.Discard
	}
	return s
}

// OK reports whether the command exited zero.
func (r *Result) OK() bool { return r.ExitCode.IsSuccess() }

// Error implements the error interface for UnexpectedExitError.
func (e *UnexpectedExitError) Error() string {
	return fmt.Sprintf("%s: %q exited with status %d", e.Result.Host, e.Result.Command, e.Result.ExitCode)
}

// Unwrap returns ErrUnexpectedExit for errors.Is() compatibility.
func (e *UnexpectedExitError) Unwrap() error { return ErrUnexpectedExit }

// Error implements the error interface for ConnectError.
func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect to %s: %v", e.Host, e.Err)
}

// Unwrap exposes both ErrConnect and the underlying cause.
func (e *ConnectError) Unwrap() []error { return []error{ErrConnect, e.Err} }

// Error implements the error interface for SudoPasswordError.
func (e *SudoPasswordError) Error() string {
	if e.Rejected {
		return fmt.Sprintf("%s: sudo rejected the configured password", e.Host)
	}
	return fmt.Sprintf("%s: sudo asked for a password but none is configured", e.Host)
}

// Unwrap returns ErrSudoPassword for errors.Is() compatibility.
func (e *SudoPasswordError) Unwrap() error { return ErrSudoPassword }

// checkExit turns a non-zero result into an UnexpectedExitError unless warn is set.
func checkExit(res *Result, warn bool) (*Result, error) {
	if res.OK() || warn {
		return res, nil
	}
	return res, &UnexpectedExitError{Result: res}
}
