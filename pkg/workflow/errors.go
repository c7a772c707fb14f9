package workflow

import (
	"errors"
	"fmt"
)

// Sentinel errors for graph building and compilation.
var (
	// ErrNoEntryPoint indicates SetEntry() was not called before Compile().
	ErrNoEntryPoint = errors.New("entry point not set")

	// ErrEntryNotFound indicates the entry point references a non-existent node.
	ErrEntryNotFound = errors.New("entry point node not found")

	// ErrNodeNotFound indicates an edge references a non-existent node.
	ErrNodeNotFound = errors.New("node not found")

	// ErrNoPathToEnd indicates no path exists from the entry point to END.
	ErrNoPathToEnd = errors.New("no path to END from entry")

	// ErrNoOutgoingEdge indicates a node has neither an edge nor a branch.
	ErrNoOutgoingEdge = errors.New("node has no outgoing edge")

	// ErrMultipleEdges indicates a node has more than one plain edge.
	ErrMultipleEdges = errors.New("node has multiple plain edges")

	// ErrConflictingEdges indicates a node has both a plain edge and a branch.
	ErrConflictingEdges = errors.New("node has both edge and branch")

	// ErrInvalidBranch indicates a branch with an empty or repeated codomain.
	ErrInvalidBranch = errors.New("invalid branch")

	// ErrUnmappedOutcome indicates a declared branch outcome has no path.
	ErrUnmappedOutcome = errors.New("branch outcome has no path")

	// ErrUndeclaredOutcome indicates a branch path for an outcome that was
	// not declared, or a router returning such an outcome at runtime.
	ErrUndeclaredOutcome = errors.New("branch outcome not declared")
)

// Sentinel errors for execution.
var (
	// ErrMaxIterations indicates the execution loop exceeded the configured limit.
	ErrMaxIterations = errors.New("exceeded maximum iterations")

	// ErrNilContext indicates Run() was called with a nil context.
	ErrNilContext = errors.New("context cannot be nil")

	// ErrInterruptNotAllowed indicates a plain node returned Interrupt.
	ErrInterruptNotAllowed = errors.New("only interrupt nodes may suspend")
)

// Sentinel errors for checkpointing, resume and recovery.
var (
	// ErrKeyRequired indicates checkpointing was enabled without a key.
	ErrKeyRequired = errors.New("key required for checkpointing")

	// ErrDeserializeState indicates state deserialization failed.
	ErrDeserializeState = errors.New("failed to deserialize state")

	// ErrNoCheckpoints indicates no checkpoints exist for the key.
	ErrNoCheckpoints = errors.New("no checkpoints found")

	// ErrNothingToRecover indicates the latest checkpoint is not mid-run.
	ErrNothingToRecover = errors.New("latest checkpoint is not an interrupted run")

	// ErrInvalidResume indicates a resume request that does not match the
	// pending point of the run.
	ErrInvalidResume = errors.New("invalid resume")
)

// CheckpointError wraps errors from checkpoint operations.
type CheckpointError struct {
	// NodeID is the node where checkpointing failed.
	NodeID string
	// Op is the operation that failed ("save", "marshal", "serialize").
	Op string
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *CheckpointError) Error() string {
	return fmt.Sprintf("checkpoint %s at node %s: %v", e.Op, e.NodeID, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *CheckpointError) Unwrap() error {
	return e.Err
}

// NodeError wraps an error with node context.
// It provides information about which node failed and what operation was attempted.
type NodeError struct {
	// NodeID is the identifier of the node that failed.
	NodeID string
	// Op is the operation that failed ("execute", "route", "suspend").
	Op string
	// Err is the underlying error from the node.
	Err error
}

// Error implements the error interface.
func (e *NodeError) Error() string {
	return fmt.Sprintf("node %s: %s: %v", e.NodeID, e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *NodeError) Unwrap() error {
	return e.Err
}

// PanicError captures panic information from node execution.
// It includes the stack trace for debugging.
type PanicError struct {
	// NodeID is the identifier of the node that panicked.
	NodeID string
	// Value is the value passed to panic().
	Value any
	// Stack is the full stack trace at the point of panic.
	Stack string
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("node %s panicked: %v", e.NodeID, e.Value)
}

// CancellationError captures the state when execution was cancelled.
// Cancellation is only observed between nodes.
type CancellationError struct {
	// NodeID is the node that was about to execute.
	NodeID string
	// State is the state at cancellation (can type-assert to the actual type).
	State any
	// Cause is context.Canceled or context.DeadlineExceeded.
	Cause error
}

// Error implements the error interface.
func (e *CancellationError) Error() string {
	return fmt.Sprintf("cancelled before node %s: %v", e.NodeID, e.Cause)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *CancellationError) Unwrap() error {
	return e.Cause
}

// RouterError wraps errors from branch routing.
// It provides context about which router failed and what it returned.
type RouterError struct {
	// FromNode is the node with the branch.
	FromNode string
	// Returned is the value the router returned.
	Returned string
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *RouterError) Error() string {
	return fmt.Sprintf("router from %s returned %q: %v", e.FromNode, e.Returned, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *RouterError) Unwrap() error {
	return e.Err
}

// MaxIterationsError provides context when the loop limit is exceeded.
// It includes the state at termination for inspection.
type MaxIterationsError struct {
	// Max is the configured iteration limit.
	Max int
	// LastNodeID is the node that would have executed next.
	LastNodeID string
	// State is the state at termination (can type-assert to the actual type).
	State any
}

// Error implements the error interface.
func (e *MaxIterationsError) Error() string {
	return fmt.Sprintf("exceeded maximum iterations (%d) at node %s", e.Max, e.LastNodeID)
}

// Unwrap returns ErrMaxIterations for errors.Is support.
func (e *MaxIterationsError) Unwrap() error {
	return ErrMaxIterations
}

// InvalidResumeError reports why a resume request was refused.
type InvalidResumeError struct {
	// NodeID is the node the request tried to resume, if known.
	NodeID string
	// Reason describes the mismatch.
	Reason string
}

// Error implements the error interface.
func (e *InvalidResumeError) Error() string {
	if e.NodeID == "" {
		return fmt.Sprintf("invalid resume: %s", e.Reason)
	}
	return fmt.Sprintf("invalid resume at %s: %s", e.NodeID, e.Reason)
}

// Unwrap returns ErrInvalidResume for errors.Is support.
func (e *InvalidResumeError) Unwrap() error {
	return ErrInvalidResume
}

// failedNode returns the node a run error points at, if any.
func failedNode(err error) string {
	var nodeErr *NodeError
	var panicErr *PanicError
	var cancelErr *CancellationError
	var maxErr *MaxIterationsError
	var routerErr *RouterError
	switch {
	case errors.As(err, &nodeErr):
		return nodeErr.NodeID
	case errors.As(err, &panicErr):
		return panicErr.NodeID
	case errors.As(err, &routerErr):
		return routerErr.FromNode
	case errors.As(err, &cancelErr):
		return cancelErr.NodeID
	case errors.As(err, &maxErr):
		return maxErr.LastNodeID
	}
	return ""
}
