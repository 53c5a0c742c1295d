// SPDX-License-Identifier: MPL-2.0

package engine

import (
	"github.com/fabgo/fab/internal/dag"
	"github.com/fabgo/fab/internal/task"
)

type (
	// hooks is the flattened pre and post chain of one task.
	hooks struct {
		pre  []*task.Call
		post []*task.Call
	}

	// hookResolver computes and caches hook chains per task name.
	hookResolver struct {
		registry *task.Registry
		cache    map[string]hooks
	}
)

func newHookResolver(reg *task.Registry) *hookResolver {
	return &hookResolver{registry: reg, cache: make(map[string]hooks)}
}

// resolve returns the hook chains of t. Anonymous tasks and tasks without a
// registry have none.
func (r *hookResolver) resolve(t *task.Task) (hooks, error) {
	if r.registry == nil || t.IsAnonymous() || (len(t.Pre) == 0 && len(t.Post) == 0) {
		return hooks{}, nil
	}
	if h, ok := r.cache[t.Name]; ok {
		return h, nil
	}

	pre, err := r.chain(t, func(x *task.Task) []string { return x.Pre }, true)
	if err != nil {
		return hooks{}, &HookResolutionError{Task: t.Name, Err: err}
	}
	post, err := r.chain(t, func(x *task.Task) []string { return x.Post }, false)
	if err != nil {
		return hooks{}, &HookResolutionError{Task: t.Name, Err: err}
	}

	h := hooks{pre: pre, post: post}
	r.cache[t.Name] = h
	return h, nil
}

// chain orders the tasks reachable from root through next. Pre chains run
// dependencies first; post chains run them after the task that names them.
// root itself is not part of the result.
func (r *hookResolver) chain(root *task.Task, next func(*task.Task) []string, before bool) ([]*task.Call, error) {
	g := dag.New()
	g.AddNode(root.Name)
	visited := map[string]bool{root.Name: true}

	var visit func(t *task.Task) error
	visit = func(t *task.Task) error {
		for _, name := range next(t) {
			dep, err := r.registry.Lookup(name)
			if err != nil {
				return err
			}
			if before {
				g.AddEdge(name, t.Name)
			} else {
				g.AddEdge(t.Name, name)
			}
			if visited[name] {
				continue
			}
			visited[name] = true
			if err := visit(dep); err != nil {
				return err
			}
		}
		return nil
	}
	if err := visit(root); err != nil {
		return nil, err
	}

	order, err := g.TopologicalSort()
	if err != nil {
		return nil, err
	}

	calls := make([]*task.Call, 0, len(order)-1)
	for _, name := range order {
		if name == root.Name {
			continue
		}
		// ParseInvocation applies declared defaults and rejects hooks that
		// need arguments.
		call, err := task.ParseInvocation(r.registry, name)
		if err != nil {
			return nil, err
		}
		calls = append(calls, call)
	}
	return calls, nil
}
