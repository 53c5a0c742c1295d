// SPDX-License-Identifier: MPL-2.0

// Package config handles application configuration using Viper with CUE as the file format.
//
// Configuration is loaded from ~/.config/fab/config.cue (or the XDG/platform
// equivalent), falling back to ./config.cue, then to built-in defaults. Values
// are validated against the embedded #Config schema (config_schema.cue) and
// may be overridden through FAB_* environment variables (e.g. FAB_SSH_USER,
// FAB_EXECUTION_PARALLEL).
//
// Execution contexts never read a *Config directly: callers take a Snapshot,
// an immutable copy that is safe to share across concurrently running work
// items.
package config
