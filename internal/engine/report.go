// SPDX-License-Identifier: MPL-2.0

package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/fabgo/fab/internal/plan"
	"github.com/fabgo/fab/internal/target"
)

// Status values for an Outcome.
const (
	StatusSucceeded Status = iota
	StatusFailed
	StatusSkipped
)

type (
	// Status is the final state of one work item.
	Status uint8

	// Outcome captures how one work item (or, in per-invocation hook mode,
	// one hook task) ended.
	Outcome struct {
		Item plan.Item
		// Host is the bound host, empty for items on the default context.
		Host target.Host
		// Hook marks a pre/post task run on its own.
		Hook   bool
		Status Status
		// Err is the failure, or the reason the item was skipped.
		Err         error
		StartedAt   time.Time
		CompletedAt time.Time
	}

	// Report summarises one Execute call. Outcomes follow emission order.
	Report struct {
		ExecutionID string
		Outcomes    []Outcome
	}
)

func (s Status) String() string {
	switch s {
	case StatusSucceeded:
		return "succeeded"
	case StatusFailed:
		return "failed"
	case StatusSkipped:
		return "skipped"
	default:
		return fmt.Sprintf("Status(%d)", uint8(s))
	}
}

// Duration returns how long the item ran. Skipped items report zero.
func (o Outcome) Duration() time.Duration {
	if o.StartedAt.IsZero() || o.CompletedAt.IsZero() {
		return 0
	}
	return o.CompletedAt.Sub(o.StartedAt)
}

// Name renders the outcome's item, e.g. "deploy@web1".
func (o Outcome) Name() string {
	if o.Item == nil {
		return ""
	}
	return o.Item.String()
}

// Counts returns how many outcomes succeeded, failed and were skipped.
func (r *Report) Counts() (succeeded, failed, skipped int) {
	for _, o := range r.Outcomes {
		switch o.Status {
		case StatusSucceeded:
			succeeded++
		case StatusFailed:
			failed++
		case StatusSkipped:
			skipped++
		}
	}
	return succeeded, failed, skipped
}

// Failures returns the failed outcomes in emission order.
func (r *Report) Failures() []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if o.Status == StatusFailed {
			out = append(out, o)
		}
	}
	return out
}

// OK reports whether every item succeeded.
func (r *Report) OK() bool {
	_, failed, skipped := r.Counts()
	return failed == 0 && skipped == 0
}

// Err joins the errors of every failed outcome, prefixed with the item name.
func (r *Report) Err() error {
	var errs []error
	for _, o := range r.Failures() {
		errs = append(errs, fmt.Errorf("%s: %w", o.Name(), o.Err))
	}
	return errors.Join(errs...)
}
