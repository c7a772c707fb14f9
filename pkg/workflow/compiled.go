package workflow

// CompiledGraph is an immutable, executable graph.
// It is created by calling Compile() on a Graph builder.
//
// CompiledGraph is thread-safe and can be used concurrently for multiple
// Run() calls. The graph structure cannot be modified after compilation.
type CompiledGraph[S any] struct {
	nodes      map[string]node[S]
	order      []string
	edges      map[string]string
	branches   map[string]Branch[S]
	entryPoint string

	predecessors map[string][]string

	recoverFn   RecoverFunc[S]
	recoverNext string
}

// EntryPoint returns the entry node ID.
func (cg *CompiledGraph[S]) EntryPoint() string {
	return cg.entryPoint
}

// NodeIDs returns all node identifiers in registration order.
func (cg *CompiledGraph[S]) NodeIDs() []string {
	ids := make([]string, len(cg.order))
	copy(ids, cg.order)
	return ids
}

// HasNode checks if a node exists in the graph.
func (cg *CompiledGraph[S]) HasNode(id string) bool {
	_, exists := cg.nodes[id]
	return exists
}

// IsInterrupt reports whether id was added with AddInterruptNode.
func (cg *CompiledGraph[S]) IsInterrupt(id string) bool {
	n, ok := cg.nodes[id]
	return ok && n.kind == kindInterrupt
}

// Subgraph returns the compiled graph behind a subgraph node, or nil.
func (cg *CompiledGraph[S]) Subgraph(id string) *CompiledGraph[S] {
	n, ok := cg.nodes[id]
	if !ok || n.kind != kindSubgraph {
		return nil
	}
	return n.sub
}

// Successors returns the nodes that can run after id: the plain edge target
// or every declared branch target. Returns nil for END or unknown nodes.
func (cg *CompiledGraph[S]) Successors(id string) []string {
	if b, ok := cg.branches[id]; ok {
		return b.Targets()
	}
	if to, ok := cg.edges[id]; ok {
		return []string{to}
	}
	return nil
}

// Predecessors returns the node IDs that have edges to the given node.
func (cg *CompiledGraph[S]) Predecessors(id string) []string {
	return cg.predecessors[id]
}

// IsConditional returns true if the node routes through a branch.
func (cg *CompiledGraph[S]) IsConditional(id string) bool {
	_, ok := cg.branches[id]
	return ok
}

// Outcomes returns the declared outcomes of the branch leaving id.
func (cg *CompiledGraph[S]) Outcomes(id string) []string {
	b, ok := cg.branches[id]
	if !ok {
		return nil
	}
	return b.Outcomes()
}
