// SPDX-License-Identifier: MPL-2.0

package plan

import (
	"errors"
	"sync"

	"github.com/fabgo/fab/internal/config"
	"github.com/fabgo/fab/internal/connection"
	"github.com/fabgo/fab/internal/target"
	"github.com/fabgo/fab/internal/task"
)

var errNilFactory = errors.New("work item has no context factory")

type (
	// Item is one unit of planned work. It is either an *Invocation or a
	// *ParameterizedInvocation.
	Item interface {
		// Call returns the bound task call.
		Call() *task.Call
		// Target returns the host the item is bound to, if any.
		Target() (target.Host, bool)
		// String renders the item as "call" or "call@host".
		String() string

		sealed()
	}

	// Invocation is a call with no host binding. It runs on the engine's
	// default execution context.
	Invocation struct {
		call *task.Call
	}

	// ParameterizedInvocation is a call bound to exactly one host. Its
	// execution context is built on first use and reused afterwards.
	ParameterizedInvocation struct {
		call    *task.Call
		host    target.Host
		factory connection.Factory
		origin  int

		once sync.Once
		ctx  connection.Context
		err  error
	}
)

// NewInvocation wraps call without a host binding.
func NewInvocation(call *task.Call) *Invocation {
	return &Invocation{call: call}
}

// Call returns the bound task call.
func (i *Invocation) Call() *task.Call { return i.call }

// Target always reports no host.
func (i *Invocation) Target() (target.Host, bool) { return "", false }

func (i *Invocation) String() string { return i.call.String() }

func (*Invocation) sealed() {}

// Call returns the bound task call.
func (p *ParameterizedInvocation) Call() *task.Call { return p.call }

// Target returns the bound host.
func (p *ParameterizedInvocation) Target() (target.Host, bool) { return p.host, true }

// Host returns the bound host.
func (p *ParameterizedInvocation) Host() target.Host { return p.host }

// Origin returns the 1-based position, among the calls given to Expand, of
// the call this item was fanned out from. The anonymous command counts as
// the call after the last named one. Items built with Parameterize directly
// report 0.
func (p *ParameterizedInvocation) Origin() int { return p.origin }

func (p *ParameterizedInvocation) String() string {
	return p.call.String() + "@" + p.host.String()
}

// Context builds the item's execution context with cfg. The factory runs at
// most once; later calls return the first result and ignore cfg.
func (p *ParameterizedInvocation) Context(cfg config.Snapshot) (connection.Context, error) {
	p.once.Do(func() {
		if p.factory == nil {
			p.err = errNilFactory
			return
		}
		p.ctx, p.err = p.factory(p.host, cfg)
	})
	return p.ctx, p.err
}

func (*ParameterizedInvocation) sealed() {}
