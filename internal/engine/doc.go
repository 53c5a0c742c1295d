// SPDX-License-Identifier: MPL-2.0

// Package engine executes planned work items.
//
// Items run in emission order, or concurrently across hosts when parallel
// execution is enabled; items bound to the same host always keep their
// relative order. A task's pre and post tasks run around it according to the
// configured hook mode. One item's failure is recorded in its Outcome and
// does not stop the others unless fail-fast is on.
package engine
