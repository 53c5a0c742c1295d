// SPDX-License-Identifier: MPL-2.0

package config

import (
	"maps"
	"slices"
)

// Snapshot is an immutable copy of a Config. It is handed by value to every
// execution-context factory, so work items running concurrently never observe
// each other's (or the caller's) later changes.
type Snapshot struct {
	cfg Config
}

// Snapshot returns an immutable copy of c. A nil Config snapshots the defaults.
func (c *Config) Snapshot() Snapshot {
	if c == nil {
		c = DefaultConfig()
	}
	return Snapshot{cfg: c.clone()}
}

// SSH returns the SSH section.
func (s Snapshot) SSH() SSHConfig {
	out := s.cfg.SSH
	out.IdentityFiles = slices.Clone(out.IdentityFiles)
	return out
}

// Run returns the run section.
func (s Snapshot) Run() RunConfig {
	out := s.cfg.Run
	out.Env = maps.Clone(out.Env)
	return out
}

// Sudo returns the sudo section.
func (s Snapshot) Sudo() SudoConfig { return s.cfg.Sudo }

// Execution returns the execution section.
func (s Snapshot) Execution() ExecutionConfig { return s.cfg.Execution }

// Hooks returns the hooks section.
func (s Snapshot) Hooks() HooksConfig { return s.cfg.Hooks }

// UI returns the UI section.
func (s Snapshot) UI() UIConfig { return s.cfg.UI }

// Config returns a mutable copy of the snapshot's configuration.
func (s Snapshot) Config() *Config {
	cfg := s.cfg.clone()
	return &cfg
}

func (c *Config) clone() Config {
	out := *c
	out.SSH.IdentityFiles = slices.Clone(c.SSH.IdentityFiles)
	out.Run.Env = maps.Clone(c.Run.Env)
	return out
}
