package workflow

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
)

// Compile validates the graph and creates an executable CompiledGraph.
// Returns an error if validation fails. Multiple errors are joined together.
//
// Validation checks:
//  1. Entry point must be set and reference an existing node
//  2. Edge and branch sources must reference existing nodes
//  3. Edge and branch targets must reference existing nodes or END
//  4. Every node has exactly one way out: a single plain edge or a branch
//  5. Every branch outcome has a path, and every path a declared outcome
//  6. The OnError target must exist
//  7. The entry must have a path to END
//
// Unreachable nodes (not reachable from entry) are logged as warnings
// but do not cause compilation to fail.
func (g *Graph[S]) Compile() (*CompiledGraph[S], error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var errs []error

	if g.entryPoint == "" {
		errs = append(errs, ErrNoEntryPoint)
	} else if _, exists := g.nodes[g.entryPoint]; !exists {
		errs = append(errs, fmt.Errorf("%w: %s", ErrEntryNotFound, g.entryPoint))
	}

	for _, from := range sortedKeys(g.edges) {
		targets := g.edges[from]
		if _, exists := g.nodes[from]; !exists {
			errs = append(errs, fmt.Errorf("%w: edge source '%s' does not exist", ErrNodeNotFound, from))
		}
		if len(targets) > 1 {
			errs = append(errs, fmt.Errorf("%w: node '%s' has %d plain edges", ErrMultipleEdges, from, len(targets)))
		}
		for _, to := range targets {
			if !g.validTarget(to) {
				errs = append(errs, fmt.Errorf("%w: edge target '%s' does not exist", ErrNodeNotFound, to))
			}
		}
	}

	for _, from := range sortedKeys(g.branches) {
		b := g.branches[from]
		if _, exists := g.nodes[from]; !exists {
			errs = append(errs, fmt.Errorf("%w: branch source '%s' does not exist", ErrNodeNotFound, from))
		}
		if _, plain := g.edges[from]; plain {
			errs = append(errs, fmt.Errorf("%w: node '%s' has both an edge and a branch", ErrConflictingEdges, from))
		}
		errs = append(errs, b.validate(from)...)
		for _, to := range b.Targets() {
			if !g.validTarget(to) {
				errs = append(errs, fmt.Errorf("%w: branch target '%s' does not exist", ErrNodeNotFound, to))
			}
		}
	}

	for _, id := range g.order {
		_, plain := g.edges[id]
		_, branch := g.branches[id]
		if !plain && !branch {
			errs = append(errs, fmt.Errorf("%w: %s", ErrNoOutgoingEdge, id))
		}
	}

	if g.recoverFn != nil && !g.validTarget(g.recoverNext) {
		errs = append(errs, fmt.Errorf("%w: recovery target '%s' does not exist", ErrNodeNotFound, g.recoverNext))
	}

	if g.entryPoint != "" {
		if _, exists := g.nodes[g.entryPoint]; exists && !g.hasPathToEnd() {
			errs = append(errs, ErrNoPathToEnd)
		}
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	g.warnUnreachableNodes()

	return g.buildCompiledGraph(), nil
}

func (g *Graph[S]) validTarget(id string) bool {
	if id == END {
		return true
	}
	_, exists := g.nodes[id]
	return exists
}

// successorsOf returns every node the given node may hand over to.
func (g *Graph[S]) successorsOf(id string) []string {
	if b, ok := g.branches[id]; ok {
		return b.Targets()
	}
	return g.edges[id]
}

// hasPathToEnd checks if there's a path from entry to END using reverse
// propagation over plain edges and declared branch targets.
func (g *Graph[S]) hasPathToEnd() bool {
	canReachEnd := map[string]bool{END: true}

	changed := true
	for changed {
		changed = false
		for _, id := range g.order {
			if canReachEnd[id] {
				continue
			}
			for _, to := range g.successorsOf(id) {
				if canReachEnd[to] {
					canReachEnd[id] = true
					changed = true
					break
				}
			}
		}
	}

	return canReachEnd[g.entryPoint]
}

// warnUnreachableNodes logs warnings for nodes not reachable from entry.
func (g *Graph[S]) warnUnreachableNodes() {
	reachable := g.findReachableNodes()
	for _, id := range g.order {
		if !reachable[id] {
			slog.Warn("node is unreachable from entry", "node_id", id)
		}
	}
}

// findReachableNodes returns the set of nodes reachable from the entry point.
// The recovery target counts as reachable from every node.
func (g *Graph[S]) findReachableNodes() map[string]bool {
	reachable := make(map[string]bool)
	if g.entryPoint == "" {
		return reachable
	}

	queue := []string{g.entryPoint}
	reachable[g.entryPoint] = true
	if g.recoverFn != nil && g.recoverNext != END {
		queue = append(queue, g.recoverNext)
		reachable[g.recoverNext] = true
	}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, target := range g.successorsOf(current) {
			if target != END && !reachable[target] {
				reachable[target] = true
				queue = append(queue, target)
			}
		}
	}

	return reachable
}

// buildCompiledGraph creates the immutable CompiledGraph from the builder state.
func (g *Graph[S]) buildCompiledGraph() *CompiledGraph[S] {
	nodes := make(map[string]node[S], len(g.nodes))
	for id, n := range g.nodes {
		nodes[id] = n
	}

	edges := make(map[string]string, len(g.edges))
	for from, targets := range g.edges {
		edges[from] = targets[0]
	}

	branches := make(map[string]Branch[S], len(g.branches))
	for from, b := range g.branches {
		branches[from] = b
	}

	predecessors := make(map[string][]string)
	for _, from := range g.order {
		for _, to := range g.successorsOf(from) {
			if to != END {
				predecessors[to] = append(predecessors[to], from)
			}
		}
	}

	order := make([]string, len(g.order))
	copy(order, g.order)

	return &CompiledGraph[S]{
		nodes:        nodes,
		order:        order,
		edges:        edges,
		branches:     branches,
		entryPoint:   g.entryPoint,
		predecessors: predecessors,
		recoverFn:    g.recoverFn,
		recoverNext:  g.recoverNext,
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
