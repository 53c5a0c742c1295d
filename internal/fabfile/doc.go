// SPDX-License-Identifier: MPL-2.0

// Package fabfile loads task definitions from fabfile.cue.
//
// A fabfile is validated against the embedded #Fabfile schema, then checked
// for cross-references the schema cannot express (unique names, known
// pre/post tasks, parseable commands). Registry turns it into the task
// registry the CLI resolves invocations against.
package fabfile
