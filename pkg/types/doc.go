// SPDX-License-Identifier: MPL-2.0

// Package types holds small validated value types shared across packages:
// process exit codes and TCP ports.
package types
