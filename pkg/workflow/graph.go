package workflow

import (
	"fmt"
	"strings"
	"sync"
)

// Graph is a mutable builder for creating execution graphs.
// Use NewGraph to create a new graph, then chain AddNode, AddEdge,
// AddBranch and SetEntry calls to define the workflow.
//
// Graph is NOT thread-safe during building. Use a single goroutine
// to construct the graph, then call Compile() to create an immutable
// CompiledGraph that can be safely shared.
//
// Example:
//
//	graph := workflow.NewGraph[State]().
//	    AddNode("classify", classify).
//	    AddInterruptNode("ask", ask).
//	    AddBranch("classify", workflow.NewBranch(route, outcomes, paths)).
//	    AddEdge("ask", workflow.END).
//	    SetEntry("classify")
//
//	compiled, err := graph.Compile()
type Graph[S any] struct {
	mu         sync.RWMutex
	nodes      map[string]node[S]
	order      []string
	edges      map[string][]string
	branches   map[string]Branch[S]
	entryPoint string

	recoverFn   RecoverFunc[S]
	recoverNext string
}

// NewGraph creates a new graph builder for state type S.
// The type parameter S defines the state that flows through the graph.
func NewGraph[S any]() *Graph[S] {
	return &Graph[S]{
		nodes:    make(map[string]node[S]),
		edges:    make(map[string][]string),
		branches: make(map[string]Branch[S]),
	}
}

// AddNode adds a named node to the graph.
// Returns the graph for method chaining.
//
// Panics if:
//   - id is empty
//   - id is the reserved word "END" or "__end__" (case-insensitive)
//   - id contains whitespace or '/'
//   - fn is nil
//   - id already exists in the graph
func (g *Graph[S]) AddNode(id string, fn NodeFunc[S]) *Graph[S] {
	if fn == nil {
		panic("workflow: node function cannot be nil")
	}
	return g.add(id, node[S]{kind: kindPlain, fn: fn})
}

// AddInterruptNode adds a node that may suspend the run by returning
// Interrupt(prompt). On resume the node runs again with the caller's input
// visible through ResumeInput.
func (g *Graph[S]) AddInterruptNode(id string, fn NodeFunc[S]) *Graph[S] {
	if fn == nil {
		panic("workflow: node function cannot be nil")
	}
	return g.add(id, node[S]{kind: kindInterrupt, fn: fn})
}

// AddSubgraph adds a compiled graph over the same state as a single node.
// The subgraph runs from its own entry to its own END; if it suspends, the
// enclosing run suspends too, with Pending.Inner describing the inner point.
func (g *Graph[S]) AddSubgraph(id string, sub *CompiledGraph[S]) *Graph[S] {
	if sub == nil {
		panic("workflow: subgraph cannot be nil")
	}
	return g.add(id, node[S]{kind: kindSubgraph, sub: sub})
}

func (g *Graph[S]) add(id string, n node[S]) *Graph[S] {
	if id == "" {
		panic("workflow: node ID cannot be empty")
	}

	idLower := strings.ToLower(id)
	if idLower == "end" || idLower == END {
		panic("workflow: node ID cannot be reserved word 'END'")
	}

	// '/' separates levels in a pending path.
	if strings.ContainsAny(id, " \t\n\r/") {
		panic("workflow: node ID cannot contain whitespace or '/'")
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.nodes[id]; exists {
		panic(fmt.Sprintf("workflow: duplicate node ID: %s", id))
	}

	g.nodes[id] = n
	g.order = append(g.order, id)
	return g
}

// AddEdge adds an unconditional edge from one node to another.
// The target can be a node ID or workflow.END.
// Returns the graph for method chaining.
//
// Edge validation happens at Compile() time, not here.
// This allows edges to be added in any order.
func (g *Graph[S]) AddEdge(from, to string) *Graph[S] {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.edges[from] = append(g.edges[from], to)
	return g
}

// AddBranch attaches a conditional edge to a node. A node has either one
// plain edge or one branch.
func (g *Graph[S]) AddBranch(from string, b Branch[S]) *Graph[S] {
	if b.route == nil {
		panic("workflow: branch must be built with NewBranch")
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.branches[from]; exists {
		panic(fmt.Sprintf("workflow: duplicate branch from node: %s", from))
	}
	g.branches[from] = b
	return g
}

// SetEntry designates the entry point node.
// This must be called before Compile().
// Returns the graph for method chaining.
func (g *Graph[S]) SetEntry(id string) *Graph[S] {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.entryPoint = id
	return g
}

// OnError installs failure recovery. When a node fails (error, panic,
// timeout) or the run is cancelled between nodes, fn derives a degraded
// state and execution continues at next instead of returning the error.
// A failure after recovery has started is returned as is.
func (g *Graph[S]) OnError(fn RecoverFunc[S], next string) *Graph[S] {
	if fn == nil {
		panic("workflow: recover function cannot be nil")
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.recoverFn = fn
	g.recoverNext = next
	return g
}
