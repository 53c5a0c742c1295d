// SPDX-License-Identifier: MPL-2.0

package engine

import (
	"context"
	"io"
	"sync/atomic"
	"time"

	"github.com/fabgo/fab/internal/config"
	"github.com/fabgo/fab/internal/connection"
	"github.com/fabgo/fab/internal/plan"
	"github.com/fabgo/fab/internal/target"
	"github.com/fabgo/fab/internal/task"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

type (
	// Engine executes work items with one configuration snapshot.
	Engine struct {
		cfg      config.Snapshot
		registry *task.Registry
		deduper  Deduper
		local    connection.Context
		logger   *log.Logger
		newID    func() string
		now      func() time.Time
	}

	// Option configures an Engine.
	Option func(*Engine)

	// unit is one schedulable piece of work with its own outcome slot.
	unit struct {
		index int
		item  plan.Item
		hook  bool
		hooks hooks
	}

	// stage is a set of units that must all finish before the next stage
	// starts. gate, when set, is checked first; a non-nil result skips every
	// unit of the stage with that error.
	stage struct {
		units []unit
		gate  func() error
	}

	// run is the state of one Execute call.
	run struct {
		*Engine
		logger   *log.Logger
		report   *Report
		failed   atomic.Bool
		failFast bool
	}
)

// WithRegistry sets the registry pre and post task names resolve against.
// Without one, hooks are not run.
func WithRegistry(reg *task.Registry) Option {
	return func(e *Engine) { e.registry = reg }
}

// WithDeduper replaces the default StructuralDedupe.
func WithDeduper(d Deduper) Option {
	return func(e *Engine) { e.deduper = d }
}

// WithDefaultContext sets the context for items with no host binding.
// The default is a local context built from the engine's snapshot.
func WithDefaultContext(c connection.Context) Option {
	return func(e *Engine) { e.local = c }
}

// WithLogger sets the engine's logger.
func WithLogger(l *log.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithExecutionID makes every Execute call use id instead of a random UUID.
func WithExecutionID(id string) Option {
	return func(e *Engine) { e.newID = func() string { return id } }
}

// New returns an Engine running with cfg.
func New(cfg config.Snapshot, opts ...Option) *Engine {
	e := &Engine{
		cfg:     cfg,
		deduper: StructuralDedupe{},
		newID:   uuid.NewString,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = log.New(io.Discard)
	}
	if e.local == nil {
		e.local = connection.NewLocalContext(cfg, connection.WithLogger(e.logger))
	}
	return e
}

// Execute runs items and reports each one's outcome. The returned error is
// non-nil only when nothing could run, e.g. when hooks cannot be resolved;
// item failures are reported in the Report.
func (e *Engine) Execute(ctx context.Context, items []plan.Item) (*Report, error) {
	items = e.deduper.Dedupe(items)
	id := e.newID()
	r := &run{
		Engine:   e,
		logger:   e.logger.With("exec", id),
		report:   &Report{ExecutionID: id},
		failFast: e.cfg.Execution().FailFast,
	}

	stages, err := r.schedule(items)
	if err != nil {
		return nil, err
	}

	r.logger.Debug("execution started", "items", len(items), "slots", len(r.report.Outcomes))
	for _, s := range stages {
		r.runStage(ctx, s)
	}

	succeeded, failed, skipped := r.report.Counts()
	r.logger.Debug("execution finished", "succeeded", succeeded, "failed", failed, "skipped", skipped)
	return r.report, nil
}

// schedule lays items out in stages according to the hook mode and
// allocates one outcome slot per unit.
func (r *run) schedule(items []plan.Item) ([]stage, error) {
	resolver := newHookResolver(r.registry)
	newUnit := func(it plan.Item, hook bool, h hooks) unit {
		host, _ := it.Target()
		r.report.Outcomes = append(r.report.Outcomes, Outcome{Item: it, Host: host, Hook: hook, Status: StatusSkipped})
		return unit{index: len(r.report.Outcomes) - 1, item: it, hook: hook, hooks: h}
	}

	if r.cfg.Hooks().Mode != config.HookModePerInvocation {
		s := stage{}
		for _, it := range items {
			h, err := resolver.resolve(it.Call().Task())
			if err != nil {
				return nil, err
			}
			s.units = append(s.units, newUnit(it, false, h))
		}
		return []stage{s}, nil
	}

	var stages []stage
	for _, group := range groupInvocations(items) {
		h, err := resolver.resolve(group[0].Call().Task())
		if err != nil {
			return nil, err
		}

		pre := stage{}
		for _, c := range h.pre {
			pre.units = append(pre.units, newUnit(plan.NewInvocation(c), true, hooks{}))
		}
		body := stage{gate: r.firstError(pre.units)}
		for _, it := range group {
			body.units = append(body.units, newUnit(it, false, hooks{}))
		}
		post := stage{gate: r.firstError(append(pre.units[:len(pre.units):len(pre.units)], body.units...))}
		for _, c := range h.post {
			post.units = append(post.units, newUnit(plan.NewInvocation(c), true, hooks{}))
		}
		stages = append(stages, pre, body, post)
	}
	return stages, nil
}

// groupInvocations splits items into runs of consecutive items fanned out
// from the same invocation. Items from Planner.Expand are grouped by origin,
// so repeating an invocation starts a new group. Without an origin, a run of
// equal calls ends when a host repeats.
func groupInvocations(items []plan.Item) [][]plan.Item {
	var groups [][]plan.Item
	for _, it := range items {
		if n := len(groups); n > 0 {
			last := groups[n-1]
			if sameInvocation(last, it) {
				groups[n-1] = append(last, it)
				continue
			}
		}
		groups = append(groups, []plan.Item{it})
	}
	return groups
}

func sameInvocation(group []plan.Item, it plan.Item) bool {
	prev, ok := group[len(group)-1].(*plan.ParameterizedInvocation)
	if !ok {
		return false
	}
	cur, ok := it.(*plan.ParameterizedInvocation)
	if !ok {
		return false
	}
	if prev.Origin() != 0 && cur.Origin() != 0 {
		return prev.Origin() == cur.Origin()
	}
	if !prev.Call().Equal(cur.Call()) {
		return false
	}
	for _, g := range group {
		if h, _ := g.Target(); h == cur.Host() {
			return false
		}
	}
	return true
}

// firstError returns a gate that fails if any of units did not succeed.
func (r *run) firstError(units []unit) func() error {
	if len(units) == 0 {
		return nil
	}
	return func() error {
		for _, u := range units {
			o := r.report.Outcomes[u.index]
			if o.Status != StatusSucceeded {
				if o.Err != nil {
					return o.Err
				}
				return ErrFailFast
			}
		}
		return nil
	}
}

// runStage runs every unit of s. Units are grouped into lanes by host; with
// parallel execution lanes run concurrently, otherwise units run one at a
// time in emission order.
func (r *run) runStage(ctx context.Context, s stage) {
	if len(s.units) == 0 {
		return
	}
	if s.gate != nil {
		if err := s.gate(); err != nil {
			for _, u := range s.units {
				r.report.Outcomes[u.index].Err = err
			}
			return
		}
	}

	exec := r.cfg.Execution()
	if !exec.Parallel {
		for _, u := range s.units {
			r.runUnit(ctx, u)
		}
		return
	}

	workers := exec.MaxWorkers
	if workers <= 0 {
		workers = config.DefaultMaxWorkers
	}
	var g errgroup.Group
	g.SetLimit(workers)
	for _, lane := range lanes(s.units) {
		g.Go(func() error {
			for _, u := range lane {
				r.runUnit(ctx, u)
			}
			return nil
		})
	}
	_ = g.Wait()
}

// lanes partitions units by bound host, preserving emission order inside
// each lane and ordering lanes by first appearance. Unbound units share the
// default context and therefore one lane.
func lanes(units []unit) [][]unit {
	index := make(map[target.Host]int)
	var out [][]unit
	for _, u := range units {
		host, _ := u.item.Target()
		i, ok := index[host]
		if !ok {
			i = len(out)
			index[host] = i
			out = append(out, nil)
		}
		out[i] = append(out[i], u)
	}
	return out
}

// runUnit executes one unit and records its outcome.
func (r *run) runUnit(ctx context.Context, u unit) {
	out := &r.report.Outcomes[u.index]
	if err := ctx.Err(); err != nil {
		out.Err = err
		return
	}
	if r.failFast && r.failed.Load() {
		out.Err = ErrFailFast
		return
	}

	logger := r.logger.With("item", u.item.String())
	logger.Debug("running")
	out.StartedAt = r.now()
	err := r.exec(ctx, u, logger)
	out.CompletedAt = r.now()

	if err != nil {
		out.Status = StatusFailed
		out.Err = err
		r.failed.Store(true)
		logger.Error("failed", "err", err)
		return
	}
	out.Status = StatusSucceeded
	logger.Debug("done", "took", out.Duration())
}

// exec runs the unit's pre chain, call and post chain on one context. A
// context built here is closed before returning.
func (r *run) exec(ctx context.Context, u unit, logger *log.Logger) error {
	cc := r.local
	if p, ok := u.item.(*plan.ParameterizedInvocation); ok {
		c, err := p.Context(r.cfg)
		if err != nil {
			return err
		}
		defer func() {
			if err := c.Close(); err != nil {
				logger.Warn("closing context", "err", err)
			}
		}()
		cc = c
	}

	name := u.item.Call().Name()
	for _, c := range u.hooks.pre {
		if err := c.Run(ctx, cc); err != nil {
			return &HookError{Task: name, Hook: c.Name(), Err: err}
		}
	}
	if err := u.item.Call().Run(ctx, cc); err != nil {
		return err
	}
	for _, c := range u.hooks.post {
		if err := c.Run(ctx, cc); err != nil {
			return &HookError{Task: name, Hook: c.Name(), Err: err}
		}
	}
	return nil
}
