// SPDX-License-Identifier: MPL-2.0

package task

import (
	"errors"
	"fmt"
)

var (
	// ErrTaskNotFound is the sentinel error wrapped by NotFoundError.
	ErrTaskNotFound = errors.New("task not found")
	// ErrUnknownArg is the sentinel error wrapped by UnknownArgError.
	ErrUnknownArg = errors.New("unknown task argument")
	// ErrMissingArg is the sentinel error wrapped by MissingArgError.
	ErrMissingArg = errors.New("missing task argument")
	// ErrInvalidInvocation is the sentinel error wrapped by InvalidInvocationError.
	ErrInvalidInvocation = errors.New("invalid task invocation")
	// ErrDuplicateTask is the sentinel error wrapped by DuplicateTaskError.
	ErrDuplicateTask = errors.New("duplicate task")
	// ErrInvalidCommand is the sentinel error wrapped by InvalidCommandError.
	ErrInvalidCommand = errors.New("invalid command")

	errEmptyCommand = errors.New("command is empty")
)

type (
	// NotFoundError is returned when an invocation names an unknown task.
	NotFoundError struct {
		Name string
		// Known lists the registered task names, for suggestions.
		Known []string
	}

	// UnknownArgError is returned when an invocation passes an argument the
	// task does not declare.
	UnknownArgError struct {
		Task string
		Arg  string
	}

	// MissingArgError is returned when a required argument is not given.
	MissingArgError struct {
		Task string
		Arg  string
	}

	// InvalidInvocationError is returned for malformed invocation strings.
	InvalidInvocationError struct {
		Input  string
		Reason string
	}

	// DuplicateTaskError is returned when two tasks share a name.
	DuplicateTaskError struct {
		Name string
	}

	// InvalidCommandError is returned when a raw command does not parse.
	InvalidCommandError struct {
		Command string
		Err     error
	}
)

// Error implements the error interface for NotFoundError.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("task %q not found", e.Name)
}

// Unwrap returns ErrTaskNotFound for errors.Is() compatibility.
func (e *NotFoundError) Unwrap() error { return ErrTaskNotFound }

// Error implements the error interface for UnknownArgError.
func (e *UnknownArgError) Error() string {
	return fmt.Sprintf("task %q has no argument %q", e.Task, e.Arg)
}

// Unwrap returns ErrUnknownArg for errors.Is() compatibility.
func (e *UnknownArgError) Unwrap() error { return ErrUnknownArg }

// Error implements the error interface for MissingArgError.
func (e *MissingArgError) Error() string {
	return fmt.Sprintf("task %q requires argument %q", e.Task, e.Arg)
}

// Unwrap returns ErrMissingArg for errors.Is() compatibility.
func (e *MissingArgError) Unwrap() error { return ErrMissingArg }

// Error implements the error interface for InvalidInvocationError.
func (e *InvalidInvocationError) Error() string {
	return fmt.Sprintf("invalid task invocation %q: %s", e.Input, e.Reason)
}

// Unwrap returns ErrInvalidInvocation for errors.Is() compatibility.
func (e *InvalidInvocationError) Unwrap() error { return ErrInvalidInvocation }

// Error implements the error interface for DuplicateTaskError.
func (e *DuplicateTaskError) Error() string {
	return fmt.Sprintf("task %q is defined more than once", e.Name)
}

// Unwrap returns ErrDuplicateTask for errors.Is() compatibility.
func (e *DuplicateTaskError) Unwrap() error { return ErrDuplicateTask }

// Error implements the error interface for InvalidCommandError.
func (e *InvalidCommandError) Error() string {
	return fmt.Sprintf("invalid command %q: %v", e.Command, e.Err)
}

// Unwrap exposes both ErrInvalidCommand and the parser error.
func (e *InvalidCommandError) Unwrap() []error { return []error{ErrInvalidCommand, e.Err} }
