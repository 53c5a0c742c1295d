// SPDX-License-Identifier: MPL-2.0

// Package testutil provides test helpers: a controllable clock, environment
// and filesystem helpers that fail the test on error, and a semaphore that
// bounds concurrent container tests.
package testutil
