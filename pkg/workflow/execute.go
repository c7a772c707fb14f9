package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/randalmurphal/finflow/pkg/workflow/checkpoint"
	wferrors "github.com/randalmurphal/finflow/pkg/workflow/errors"
	"github.com/randalmurphal/finflow/pkg/workflow/observability"
)

// Result is the outcome of Run, Resume or Recover.
type Result[S any] struct {
	// State is the state after the last executed node. On suspension it is
	// the state the interrupt node returned together with Interrupt.
	State S

	// Pending is set when the run suspended at an interrupt node.
	Pending *Pending

	// Trace lists every executed node in order. Nodes inside a subgraph
	// appear as "subgraph/node".
	Trace []NodeTiming
}

// Suspended reports whether the run stopped at an interrupt node.
func (r Result[S]) Suspended() bool {
	return r.Pending != nil
}

// resumePoint carries the caller's answer down to the interrupt node.
type resumePoint struct {
	input string
	inner *Pending
}

// Run executes the graph with the given initial state.
//
// The run ends when END is reached, when an interrupt node suspends (the
// result then carries Pending) or when a node fails and no recovery is
// configured. On error, the result holds the state at the point of failure.
//
// Example:
//
//	ctx := workflow.NewContext(context.Background())
//	res, err := compiled.Run(ctx, initialState)
//	if res.Suspended() {
//	    // show res.Pending.Prompt, later call Resume
//	}
func (cg *CompiledGraph[S]) Run(ctx Context, state S, opts ...RunOption) (Result[S], error) {
	if ctx == nil {
		return Result[S]{State: state}, ErrNilContext
	}
	cfg := newRunConfig(opts)
	return cg.execute(asExecution(ctx), state, cg.entryPoint, nil, &cfg, false)
}

// execute wraps a walk with run-level logging, metrics and tracing.
func (cg *CompiledGraph[S]) execute(ec *executionContext, state S, start string, resume *resumePoint, cfg *runConfig, resumed bool) (res Result[S], runErr error) {
	if cfg.checkpointStore != nil && cfg.checkpointKey == "" {
		return Result[S]{State: state}, ErrKeyRequired
	}

	runID := ec.RunID()
	startTime := time.Now()
	observability.LogRunStart(cfg.logger, runID, start, resumed)

	var tracingCtx context.Context = ec
	if cfg.tracingEnabled {
		var runSpan trace.Span
		tracingCtx, runSpan = cfg.spans.StartRunSpan(ec, "finflow", runID)
		defer func() {
			cfg.spans.EndSpanWithError(runSpan, runErr)
		}()
	}

	w := &walker[S]{cg: cg, cfg: cfg, top: true}
	res, runErr = w.walk(ec, tracingCtx, state, start, resume)

	duration := time.Since(startTime)
	durationMs := float64(duration.Milliseconds())

	switch {
	case runErr != nil:
		cfg.metrics.RecordRun(ec, observability.OutcomeFailed, duration)
		observability.LogRunError(cfg.logger, runID, runErr, durationMs, failedNode(runErr))
	case res.Pending != nil:
		cfg.metrics.RecordRun(ec, observability.OutcomeSuspended, duration)
		observability.LogRunSuspended(cfg.logger, runID, res.Pending.Path(), durationMs)
	default:
		cfg.metrics.RecordRun(ec, observability.OutcomeCompleted, duration)
		observability.LogRunComplete(cfg.logger, runID, durationMs, w.nodeCount)
	}

	return res, runErr
}

// walker runs one graph level. Subgraphs get their own walker sharing the
// run configuration and trace.
type walker[S any] struct {
	cg     *CompiledGraph[S]
	cfg    *runConfig
	top    bool
	prefix string

	trace     []NodeTiming
	nodeCount int
}

func (w *walker[S]) walk(ec *executionContext, tracingCtx context.Context, state S, start string, resume *resumePoint) (Result[S], error) {
	current := start
	prevNode := ""
	iterations := 0
	recovering := false

	result := func(s S, p *Pending) Result[S] {
		return Result[S]{State: s, Pending: p, Trace: w.trace}
	}

	// fail routes a failure through OnError, once per walk.
	fail := func(nodeID string, before S, err error) (string, S, bool) {
		if w.cg.recoverFn == nil || recovering {
			return "", before, false
		}
		recovering = true
		recovered := w.cg.recoverFn(ec.withNodeID(nodeID), before, err)
		observability.LogRecovered(w.cfg.logger, nodeID, w.cg.recoverNext)
		w.cfg.metrics.RecordRecovery(ec, nodeID)
		return w.cg.recoverNext, recovered, true
	}

	for current != END {
		iterations++
		if iterations > w.cfg.maxIterations {
			return result(state, nil), &MaxIterationsError{
				Max:        w.cfg.maxIterations,
				LastNodeID: current,
				State:      state,
			}
		}

		// Cancellation is observed between nodes only. The recovery path
		// runs to completion once entered.
		if !recovering {
			if err := ec.Err(); err != nil {
				cancelErr := &CancellationError{NodeID: current, State: state, Cause: err}
				next, recovered, ok := fail(current, state, cancelErr)
				if !ok {
					return result(state, nil), cancelErr
				}
				state = recovered
				prevNode, current = current, next
				continue
			}
		}

		var point *resumePoint
		if resume != nil {
			point, resume = resume, nil
		}

		out, pending, err := w.step(ec, tracingCtx, current, state, point)
		if err != nil {
			next, recovered, ok := fail(current, state, err)
			if !ok {
				return result(out, nil), err
			}
			if err := w.checkpoint(ec, current, prevNode, recovered, next, nil); err != nil {
				return result(recovered, nil), err
			}
			state = recovered
			prevNode, current = current, next
			continue
		}
		state = out

		if pending != nil {
			if err := w.checkpoint(ec, current, prevNode, state, current, pending); err != nil {
				return result(state, nil), err
			}
			return result(state, pending), nil
		}

		next, err := w.cg.nextNode(ec, state, current)
		if err != nil {
			var recovered S
			var ok bool
			if next, recovered, ok = fail(current, state, err); !ok {
				return result(state, nil), err
			}
			state = recovered
		}

		if err := w.checkpoint(ec, current, prevNode, state, next, nil); err != nil {
			return result(state, nil), err
		}

		prevNode = current
		current = next
	}

	return result(state, nil), nil
}

// step executes one node with logging, metrics, tracing and timing.
func (w *walker[S]) step(ec *executionContext, tracingCtx context.Context, nodeID string, state S, point *resumePoint) (S, *Pending, error) {
	cfg := w.cfg
	observability.LogNodeStart(cfg.logger, nodeID)

	nodeTracingCtx := tracingCtx
	var nodeSpan trace.Span
	if cfg.tracingEnabled {
		nodeTracingCtx, nodeSpan = cfg.spans.StartNodeSpan(tracingCtx, nodeID)
	}

	start := time.Now()

	var (
		out     S
		pending *Pending
		err     error
	)
	n := w.cg.nodes[nodeID]
	if n.kind == kindSubgraph {
		out, pending, err = w.runSubgraph(ec, nodeTracingCtx, nodeID, n.sub, state, point)
	} else {
		out, pending, err = w.executeNode(ec, nodeID, n, state, point)
	}

	duration := time.Since(start)
	cfg.metrics.RecordNodeExecution(nodeTracingCtx, nodeID, duration, err)
	if pending != nil && n.kind == kindInterrupt {
		cfg.metrics.RecordSuspension(nodeTracingCtx, nodeID)
	}
	if cfg.tracingEnabled {
		cfg.spans.EndSpanWithError(nodeSpan, err)
	}

	w.trace = append(w.trace, NodeTiming{NodeID: w.prefix + nodeID, Duration: duration, Err: err})

	if err != nil {
		observability.LogNodeError(cfg.logger, nodeID, err)
		return out, nil, err
	}
	observability.LogNodeComplete(cfg.logger, nodeID, float64(duration.Milliseconds()))
	w.nodeCount++
	return out, pending, nil
}

// executeNode runs a plain or interrupt node with panic recovery and the
// configured node timeout.
func (w *walker[S]) executeNode(ec *executionContext, nodeID string, n node[S], state S, point *resumePoint) (result S, pending *Pending, err error) {
	nodeCtx := ec.withNodeID(nodeID)
	if point != nil {
		nodeCtx = nodeCtx.withResumeInput(point.input)
	}
	if d := w.cfg.nodeTimeout; d > 0 {
		std, cancel := context.WithTimeout(nodeCtx.Context, d)
		defer cancel()
		nodeCtx = nodeCtx.withStd(std)
	}

	defer func() {
		if r := recover(); r != nil {
			result = state
			pending = nil
			err = &PanicError{
				NodeID: nodeID,
				Value:  r,
				Stack:  string(debug.Stack()),
			}
		}
	}()

	result, err = n.fn(nodeCtx, state)
	if err == nil {
		return result, nil, nil
	}

	var sig *interruptSignal
	if errors.As(err, &sig) {
		if n.kind != kindInterrupt {
			return result, nil, &NodeError{NodeID: nodeID, Op: "suspend", Err: ErrInterruptNotAllowed}
		}
		return result, &Pending{Token: uuid.NewString(), NodeID: nodeID, Prompt: sig.prompt}, nil
	}

	if w.cfg.nodeTimeout > 0 && ec.Err() == nil && errors.Is(nodeCtx.Err(), context.DeadlineExceeded) {
		err = &wferrors.TimeoutError{Operation: "node " + nodeID, Duration: w.cfg.nodeTimeout}
	}
	return result, nil, &NodeError{NodeID: nodeID, Op: "execute", Err: err}
}

// runSubgraph walks a nested graph. A suspension inside it is reported as a
// pending point on the subgraph node with Inner set.
func (w *walker[S]) runSubgraph(ec *executionContext, tracingCtx context.Context, nodeID string, sub *CompiledGraph[S], state S, point *resumePoint) (S, *Pending, error) {
	inner := &walker[S]{cg: sub, cfg: w.cfg, prefix: w.prefix + nodeID + "/"}

	start := sub.entryPoint
	var innerResume *resumePoint
	if point != nil && point.inner != nil {
		start = point.inner.NodeID
		innerResume = &resumePoint{input: point.input, inner: point.inner.Inner}
	}

	res, err := inner.walk(ec, tracingCtx, state, start, innerResume)
	w.trace = append(w.trace, inner.trace...)
	w.nodeCount += inner.nodeCount
	if err != nil {
		return res.State, nil, err
	}
	if res.Pending != nil {
		return res.State, &Pending{
			Token:  res.Pending.Token,
			NodeID: nodeID,
			Prompt: res.Pending.Prompt,
			Inner:  res.Pending,
		}, nil
	}
	return res.State, nil, nil
}

// nextNode determines the next node to execute.
func (cg *CompiledGraph[S]) nextNode(ec *executionContext, state S, current string) (string, error) {
	if b, ok := cg.branches[current]; ok {
		outcome := b.route(ec.withNodeID(current), state)
		target, declared := b.paths[outcome]
		if !declared {
			return "", &RouterError{
				FromNode: current,
				Returned: outcome,
				Err:      ErrUndeclaredOutcome,
			}
		}
		return target, nil
	}

	if to, ok := cg.edges[current]; ok {
		return to, nil
	}

	// Compile rejects nodes without a way out.
	return "", &NodeError{
		NodeID: current,
		Op:     "route",
		Err:    fmt.Errorf("no outgoing edge from node %s", current),
	}
}

// checkpoint persists the state after a node of the outermost graph.
func (w *walker[S]) checkpoint(ctx context.Context, nodeID, prevNodeID string, state S, nextNode string, pending *Pending) error {
	cfg := w.cfg
	if !w.top || cfg.checkpointStore == nil {
		return nil
	}

	fail := func(op string, err error) error {
		if cfg.checkpointFailureFatal {
			return &CheckpointError{NodeID: nodeID, Op: op, Err: err}
		}
		observability.LogCheckpointError(cfg.logger, nodeID, op, err)
		return nil
	}

	stateBytes, err := json.Marshal(state)
	if err != nil {
		return fail("serialize", err)
	}

	cfg.sequence++
	cp := checkpoint.New(cfg.checkpointKey, nodeID, cfg.sequence, stateBytes, nextNode).
		WithPrevNode(prevNodeID).
		WithPending(pending)
	if pending == nil && nextNode == END {
		cp = cp.WithStatus(checkpoint.StatusCompleted)
	}

	data, err := cp.Marshal()
	if err != nil {
		return fail("marshal", err)
	}

	// A run recovering from a cancelled context still records where it ended.
	if err := cfg.checkpointStore.Save(context.WithoutCancel(ctx), cfg.checkpointKey, nodeID, data); err != nil {
		return fail("save", err)
	}

	observability.LogCheckpoint(cfg.logger, nodeID, len(data))
	cfg.metrics.RecordCheckpoint(ctx, nodeID, int64(len(data)))
	return nil
}
