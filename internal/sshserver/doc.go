// SPDX-License-Identifier: MPL-2.0

// Package sshserver provides a small SSH server for development and tests.
//
// It runs exec requests through a shell and interactive sessions under a PTY,
// which is enough to act as a fab target without a system sshd. Logins are
// checked against a static password, short-lived tokens, or authorized keys.
package sshserver
