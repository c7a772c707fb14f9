package workflow

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// Context provides execution context to nodes.
// It extends context.Context with run metadata and the injected logger.
//
// Context is immutable after creation. The executor creates derived contexts
// for each node with updated NodeID, enriched logger and, for the first node
// of a resumed run, the resume input.
type Context interface {
	context.Context

	// Logger returns the configured logger, enriched with run and node context.
	// Never returns nil - defaults to slog.Default() if not configured.
	Logger() *slog.Logger

	// RunID returns the unique identifier for this execution run.
	// Auto-generated if not configured.
	RunID() string

	// NodeID returns the current node being executed.
	// Empty string before execution starts.
	NodeID() string
}

// executionContext is the internal implementation of Context.
type executionContext struct {
	context.Context

	logger *slog.Logger
	runID  string
	nodeID string

	resumeInput *string
}

// Logger returns the configured logger.
func (c *executionContext) Logger() *slog.Logger {
	return c.logger
}

// RunID returns the run identifier.
func (c *executionContext) RunID() string {
	return c.runID
}

// NodeID returns the current node identifier.
func (c *executionContext) NodeID() string {
	return c.nodeID
}

// ContextOption configures a Context.
type ContextOption func(*executionContext)

// WithLogger sets the logger for the context.
// The logger will be enriched with run_id and node_id during execution.
func WithLogger(logger *slog.Logger) ContextOption {
	return func(c *executionContext) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithContextRunID sets the run identifier for the context.
// If not set, a UUID will be auto-generated.
func WithContextRunID(id string) ContextOption {
	return func(c *executionContext) {
		c.runID = id
	}
}

// NewContext creates an execution context from a standard context.
//
// Example:
//
//	ctx := workflow.NewContext(context.Background(),
//	    workflow.WithLogger(logger),
//	    workflow.WithContextRunID("u1:r1"))
func NewContext(ctx context.Context, opts ...ContextOption) Context {
	ec := &executionContext{
		Context: ctx,
		logger:  slog.Default(),
		runID:   uuid.NewString(),
	}

	for _, opt := range opts {
		opt(ec)
	}

	return ec
}

// ResumeInput returns the caller's answer when the current node is the
// interrupt node a run is being resumed at. Every other node, and the same
// node on a fresh run, sees ok == false.
func ResumeInput(ctx Context) (input string, ok bool) {
	ec, isExec := ctx.(*executionContext)
	if !isExec || ec.resumeInput == nil {
		return "", false
	}
	return *ec.resumeInput, true
}

// asExecution returns ctx as an executionContext, wrapping foreign
// implementations so the executor can derive per-node contexts.
func asExecution(ctx Context) *executionContext {
	if ec, ok := ctx.(*executionContext); ok {
		return ec
	}
	return &executionContext{
		Context: ctx,
		logger:  ctx.Logger(),
		runID:   ctx.RunID(),
		nodeID:  ctx.NodeID(),
	}
}

// withNodeID returns a new context with the given node ID set.
// The resume input is never inherited.
func (c *executionContext) withNodeID(nodeID string) *executionContext {
	return &executionContext{
		Context: c.Context,
		logger:  c.logger.With("run_id", c.runID, "node_id", nodeID),
		runID:   c.runID,
		nodeID:  nodeID,
	}
}

// withStd returns a copy carrying a different standard context, such as
// one with a node deadline.
func (c *executionContext) withStd(std context.Context) *executionContext {
	cp := *c
	cp.Context = std
	return &cp
}

// withResumeInput returns a copy that exposes input through ResumeInput.
func (c *executionContext) withResumeInput(input string) *executionContext {
	cp := *c
	cp.resumeInput = &input
	return &cp
}
