// SPDX-License-Identifier: MPL-2.0

// Package target resolves the flat, ordered list of execution targets that
// work items are fanned out across.
//
// The list is taken literally: order is preserved, empty segments are
// dropped, and duplicates are kept. Roles or other indirect target
// expressions are not resolved here; ParseHosts is the single entry point a
// future resolver would hook into.
package target
