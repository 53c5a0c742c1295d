// SPDX-License-Identifier: MPL-2.0

package plan

import "errors"

// ErrNoTargets is the sentinel error wrapped by NoTargetsError.
var ErrNoTargets = errors.New("no targets")

// NoTargetsError is returned when a raw command is given without any hosts
// to run it on.
type NoTargetsError struct {
	Command string
}

// Error implements the error interface for NoTargetsError.
func (e *NoTargetsError) Error() string {
	return "was told to run a command, but not given any hosts to run it on"
}

// Unwrap returns ErrNoTargets for errors.Is() compatibility.
func (e *NoTargetsError) Unwrap() error { return ErrNoTargets }
