// SPDX-License-Identifier: MPL-2.0

package types

import (
	"errors"
	"fmt"
	"strconv"
)

// ErrInvalidExitCode is the sentinel error wrapped by InvalidExitCodeError.
var ErrInvalidExitCode = errors.New("invalid exit code")

const (
	// ExitSuccess is returned when every work item completed.
	ExitSuccess ExitCode = 0
	// ExitFailure is returned when at least one work item failed.
	ExitFailure ExitCode = 1
	// ExitUsage is returned for invalid invocations (bad flags, nothing to run on).
	ExitUsage ExitCode = 2
	// ExitCommandNotFound mirrors the POSIX shell convention for unknown commands.
	ExitCommandNotFound ExitCode = 127
)

type (
	// ExitCode represents a process exit status code, local or remote.
	// Exit codes are in the range 0-255 on POSIX systems.
	// The zero value (0) means success.
	ExitCode int

	// InvalidExitCodeError is returned when an ExitCode is outside the
	// valid range (0-255).
	InvalidExitCodeError struct {
		Value ExitCode
	}
)

// Error implements the error interface.
func (e *InvalidExitCodeError) Error() string {
	return fmt.Sprintf("invalid exit code %d (must be in range 0-255)", e.Value)
}

// Unwrap returns ErrInvalidExitCode so callers can use errors.Is for programmatic detection.
func (e *InvalidExitCodeError) Unwrap() error { return ErrInvalidExitCode }

// Validate returns an error if the ExitCode is outside the valid range (0-255).
func (c ExitCode) Validate() error {
	if c < 0 || c > 255 {
		return &InvalidExitCodeError{Value: c}
	}
	return nil
}

// IsSuccess returns true if the exit code indicates successful execution.
func (c ExitCode) IsSuccess() bool { return c == ExitSuccess }

// String returns the decimal string representation of the ExitCode.
func (c ExitCode) String() string { return strconv.Itoa(int(c)) }

// NormalizeExitCode folds an arbitrary status (e.g. a negative value reported
// for a signal-terminated remote process) into the valid 0-255 range.
func NormalizeExitCode(status int) ExitCode {
	if status < 0 {
		return ExitFailure
	}
	return ExitCode(status % 256)
}
