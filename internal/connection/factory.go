// SPDX-License-Identifier: MPL-2.0

package connection

import (
	"github.com/fabgo/fab/internal/config"
	"github.com/fabgo/fab/internal/target"
)

// Factory builds the execution context for one target. Implementations must
// not perform I/O: the session is opened when the first command runs.
type Factory func(host target.Host, cfg config.Snapshot) (Context, error)

// NewFactory returns a Factory that builds SSH connections.
func NewFactory(opts ...Option) Factory {
	return func(host target.Host, cfg config.Snapshot) (Context, error) {
		return NewConnection(host, cfg, opts...)
	}
}

// NewLocalFactory returns a Factory whose contexts run every command on this
// machine regardless of host, for callers that need a Factory without SSH.
func NewLocalFactory(opts ...Option) Factory {
	return func(host target.Host, cfg config.Snapshot) (Context, error) {
		if err := host.Validate(); err != nil {
			return nil, err
		}
		l := NewLocalContext(cfg, opts...)
		l.host = host
		return l, nil
	}
}
