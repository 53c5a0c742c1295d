// SPDX-License-Identifier: MPL-2.0

// Package task defines named units of work and their invocations.
//
// A Task pairs a name with a Body that runs against an execution context.
// A Call binds a Task to an argument bag; calls are immutable, so fanning one
// out across hosts only ever copies it. ParseInvocation turns the command
// line form "name:key=value,key2=value2" into a Call.
package task
