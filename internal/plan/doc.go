// SPDX-License-Identifier: MPL-2.0

// Package plan turns requested task calls and a target host list into the
// ordered list of work items the engine executes.
//
// Each call is fanned out to one ParameterizedInvocation per host, in host
// order, and calls keep their relative order. With no hosts a call passes
// through as a plain Invocation. A raw command line becomes an anonymous task
// fanned out after all named calls. Planning is pure: no host is contacted
// until the engine asks an item for its execution context.
package plan
