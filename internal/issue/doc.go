// SPDX-License-Identifier: MPL-2.0

// Package issue provides actionable error handling with user-friendly messages.
//
// ActionableError carries the failed operation, the resource involved and
// remediation hints. Issue is a catalog of longer Markdown guidance, rendered
// with glamour, for the failures users hit most often (no hosts, no fabfile,
// unreachable hosts).
package issue
