// SPDX-License-Identifier: MPL-2.0

package plan

import (
	"io"

	"github.com/fabgo/fab/internal/connection"
	"github.com/fabgo/fab/internal/target"
	"github.com/fabgo/fab/internal/task"

	"github.com/charmbracelet/log"
)

type (
	// Planner expands task calls across hosts.
	Planner struct {
		factory connection.Factory
		logger  *log.Logger
	}

	// Option configures a Planner.
	Option func(*Planner)
)

// WithLogger sets the planner's logger. Parameterization is logged at debug level.
func WithLogger(l *log.Logger) Option {
	return func(p *Planner) { p.logger = l }
}

// NewPlanner returns a Planner whose parameterized items build their contexts
// with factory.
func NewPlanner(factory connection.Factory, opts ...Option) *Planner {
	p := &Planner{factory: factory}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = log.New(io.Discard)
	}
	return p
}

// Expand returns the work items for calls on hosts.
//
// Items are ordered call-major: every host for the first call, then every
// host for the second. With no hosts each call is returned as an Invocation.
// A non-empty anonymous command is fanned out across hosts after the named
// calls and requires at least one host. Hosts are used as given, duplicates
// included.
func (p *Planner) Expand(calls []*task.Call, hosts []target.Host, anonymous string) ([]Item, error) {
	if anonymous != "" && len(hosts) == 0 {
		return nil, &NoTargetsError{Command: anonymous}
	}

	size := len(calls)
	if len(hosts) > 0 {
		size = (len(calls) + 1) * len(hosts)
	}
	items := make([]Item, 0, size)

	for i, call := range calls {
		if len(hosts) == 0 {
			items = append(items, NewInvocation(call))
			continue
		}
		for _, host := range hosts {
			item := p.Parameterize(call, host)
			item.origin = i + 1
			items = append(items, item)
		}
	}

	if anonymous != "" {
		call := task.NewCall(task.Anonymous(anonymous), nil)
		for _, host := range hosts {
			item := p.Parameterize(call, host)
			item.origin = len(calls) + 1
			items = append(items, item)
		}
	}

	return items, nil
}

// Parameterize binds a clone of call to host. The clone shares only the
// read-only task with call and with its siblings.
func (p *Planner) Parameterize(call *task.Call, host target.Host) *ParameterizedInvocation {
	p.logger.Debug("parameterizing", "task", call.Name(), "host", host)
	return &ParameterizedInvocation{
		call:    call.Clone(),
		host:    host,
		factory: p.factory,
	}
}
