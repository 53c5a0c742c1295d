// SPDX-License-Identifier: MPL-2.0

package plan

// NoDedupe is the dedup policy for planner output: it keeps every item.
// Fan-out deliberately produces calls that differ only in their host, and
// each of them must run.
type NoDedupe struct{}

// Dedupe returns items unchanged.
func (NoDedupe) Dedupe(items []Item) []Item { return items }
