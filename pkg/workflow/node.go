package workflow

import (
	"fmt"
	"time"

	"github.com/randalmurphal/finflow/pkg/workflow/checkpoint"
)

// END is the terminal node identifier.
// Use this as an edge target to indicate the graph should terminate.
const END = "__end__"

// NodeFunc is the signature for all node functions.
// Nodes receive the execution context and current state,
// and return the updated state (or the same state) and any error.
//
// The state parameter is passed by value. Nodes should modify and return
// a new state value, not rely on pointer mutation.
//
// Example:
//
//	func appendHistory(ctx workflow.Context, s conversation.State) (conversation.State, error) {
//	    s.History.Append(history.Assistant(s.Answer))
//	    return s, nil
//	}
type NodeFunc[S any] func(ctx Context, state S) (S, error)

// RecoverFunc turns a failed node into a degraded state. It receives the
// state as it was when the node failed and the error that made it fail.
type RecoverFunc[S any] func(ctx Context, state S, err error) S

type nodeKind int

const (
	kindPlain nodeKind = iota
	kindInterrupt
	kindSubgraph
)

func (k nodeKind) String() string {
	switch k {
	case kindInterrupt:
		return "interrupt"
	case kindSubgraph:
		return "subgraph"
	default:
		return "node"
	}
}

// node is one registered vertex of a graph.
type node[S any] struct {
	kind nodeKind
	fn   NodeFunc[S]
	sub  *CompiledGraph[S]
}

// interruptSignal is the error value an interrupt node returns to suspend.
type interruptSignal struct {
	prompt string
}

func (s *interruptSignal) Error() string {
	return fmt.Sprintf("interrupt: %s", s.prompt)
}

// Interrupt suspends the run at the current node. The prompt is handed back
// to the caller in Result.Pending and the node is executed again, with the
// caller's answer available through ResumeInput, when the run is resumed.
//
// Only nodes registered with AddInterruptNode may interrupt.
//
// Example:
//
//	func askCategory(ctx workflow.Context, s State) (State, error) {
//	    answer, ok := workflow.ResumeInput(ctx)
//	    if !ok {
//	        return s, workflow.Interrupt("어떤 상품을 계산할까요?")
//	    }
//	    s.Category = answer
//	    return s, nil
//	}
func Interrupt(prompt string) error {
	return &interruptSignal{prompt: prompt}
}

// NodeTiming records one node execution.
type NodeTiming struct {
	NodeID   string
	Duration time.Duration
	Err      error
}

// Pending is the continuation of a suspended run. It is the same record
// the checkpoint package persists.
type Pending = checkpoint.Pending
