// SPDX-License-Identifier: MPL-2.0

// Package serverbase holds the lifecycle state machine shared by long-running
// servers: created, starting, running, stopping, then stopped or failed.
package serverbase
