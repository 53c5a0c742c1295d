// SPDX-License-Identifier: MPL-2.0

package engine

import (
	"slices"

	"github.com/fabgo/fab/internal/plan"
)

type (
	// Deduper filters the work-item list before execution.
	Deduper interface {
		Dedupe(items []plan.Item) []plan.Item
	}

	// StructuralDedupe drops every item whose call equals an earlier item's
	// call (same task, same arguments). Host bindings are not compared, so
	// fanned-out planner output must not go through it; see plan.NoDedupe.
	StructuralDedupe struct{}
)

// Dedupe keeps the first item of each structurally identical group.
func (StructuralDedupe) Dedupe(items []plan.Item) []plan.Item {
	out := make([]plan.Item, 0, len(items))
	for _, it := range items {
		dup := slices.ContainsFunc(out, func(kept plan.Item) bool {
			return kept.Call().Equal(it.Call())
		})
		if !dup {
			out = append(out, it)
		}
	}
	return out
}
