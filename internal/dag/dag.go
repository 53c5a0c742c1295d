// SPDX-License-Identifier: MPL-2.0

// Package dag orders task names by "runs before" edges. The engine uses it to
// flatten a task's transitive pre and post tasks into a run order and to
// reject hook cycles.
package dag

import (
	"errors"
	"fmt"
	"strings"
)

// ErrCycle is the sentinel error wrapped by CycleError.
var ErrCycle = errors.New("dependency cycle")

type (
	// CycleError reports that the graph cannot be ordered.
	CycleError struct {
		// Cycle holds the nodes left unordered: every node on a cycle and
		// any node reachable only through one.
		Cycle []string
	}

	// Graph is a directed graph of named nodes. An edge from A to B means A
	// must run before B.
	Graph struct {
		edges map[string][]string
		seen  map[[2]string]bool
		// nodes keeps insertion order so sorting is deterministic.
		nodes []string
		index map[string]bool
	}
)

// Error implements the error interface for CycleError.
func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle detected: %s", strings.Join(e.Cycle, " -> "))
}

// Unwrap returns ErrCycle for errors.Is() compatibility.
func (e *CycleError) Unwrap() error { return ErrCycle }

// New creates an empty Graph.
func New() *Graph {
	return &Graph{
		edges: make(map[string][]string),
		seen:  make(map[[2]string]bool),
		index: make(map[string]bool),
	}
}

// AddNode adds name if it is not already present.
func (g *Graph) AddNode(name string) {
	if g.index[name] {
		return
	}
	g.index[name] = true
	g.nodes = append(g.nodes, name)
}

// AddEdge records that from runs before to, adding both nodes as needed.
// Repeated edges are ignored.
func (g *Graph) AddEdge(from, to string) {
	g.AddNode(from)
	g.AddNode(to)
	key := [2]string{from, to}
	if g.seen[key] {
		return
	}
	g.seen[key] = true
	g.edges[from] = append(g.edges[from], to)
}

// Has reports whether name is a node of g.
func (g *Graph) Has(name string) bool { return g.index[name] }

// Len returns the number of nodes.
func (g *Graph) Len() int { return len(g.nodes) }

// TopologicalSort returns every node in an order that honors all edges
// (Kahn's algorithm). Among nodes that are ready at the same time, the one
// added first comes first.
func (g *Graph) TopologicalSort() ([]string, error) {
	if len(g.nodes) == 0 {
		return nil, nil
	}

	inDegree := make(map[string]int, len(g.nodes))
	for _, targets := range g.edges {
		for _, to := range targets {
			inDegree[to]++
		}
	}

	queue := make([]string, 0, len(g.nodes))
	for _, node := range g.nodes {
		if inDegree[node] == 0 {
			queue = append(queue, node)
		}
	}

	order := make([]string, 0, len(g.nodes))
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		order = append(order, node)
		for _, to := range g.edges[node] {
			inDegree[to]--
			if inDegree[to] == 0 {
				queue = append(queue, to)
			}
		}
	}

	if len(order) != len(g.nodes) {
		var stuck []string
		for _, node := range g.nodes {
			if inDegree[node] > 0 {
				stuck = append(stuck, node)
			}
		}
		return nil, &CycleError{Cycle: stuck}
	}
	return order, nil
}
