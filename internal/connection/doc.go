// SPDX-License-Identifier: MPL-2.0

// Package connection provides execution contexts: handles that run shell
// commands against exactly one target.
//
// Connection runs commands over SSH and opens its session lazily on the first
// remote command. LocalContext runs commands on the local machine through an
// embedded POSIX shell interpreter and is the default context for work items
// that have no target.
package connection
