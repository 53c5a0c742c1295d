// SPDX-License-Identifier: MPL-2.0

package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrFailFast marks items skipped because an earlier item failed.
	ErrFailFast = errors.New("skipped after an earlier failure")
	// ErrHookFailed is the sentinel error wrapped by HookError.
	ErrHookFailed = errors.New("hook failed")
	// ErrHookResolution is the sentinel error wrapped by HookResolutionError.
	ErrHookResolution = errors.New("cannot resolve hooks")
)

type (
	// HookError reports a pre or post task failure around Task.
	HookError struct {
		Task string
		Hook string
		Err  error
	}

	// HookResolutionError reports a pre/post declaration that cannot be
	// ordered: an unknown task, a hook needing arguments, or a cycle.
	HookResolutionError struct {
		Task string
		Err  error
	}
)

// Error implements the error interface for HookError.
func (e *HookError) Error() string {
	return fmt.Sprintf("hook %q of task %q: %v", e.Hook, e.Task, e.Err)
}

// Unwrap returns ErrHookFailed and the underlying error.
func (e *HookError) Unwrap() []error { return []error{ErrHookFailed, e.Err} }

// Error implements the error interface for HookResolutionError.
func (e *HookResolutionError) Error() string {
	return fmt.Sprintf("hooks of task %q: %v", e.Task, e.Err)
}

// Unwrap returns ErrHookResolution and the underlying error.
func (e *HookResolutionError) Unwrap() []error { return []error{ErrHookResolution, e.Err} }
