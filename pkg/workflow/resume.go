package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/randalmurphal/finflow/pkg/workflow/checkpoint"
)

// Resume continues a suspended run at its pending interrupt node. The token
// must be the one handed out with pending; input becomes visible to that
// node through ResumeInput. Any mismatch returns an *InvalidResumeError and
// the state is returned untouched.
//
// Example:
//
//	res, err := compiled.Run(ctx, state)
//	// ... show res.Pending.Prompt to the user ...
//	res, err = compiled.Resume(ctx, res.State, res.Pending, res.Pending.Token, answer)
func (cg *CompiledGraph[S]) Resume(ctx Context, state S, pending *Pending, token, input string, opts ...RunOption) (Result[S], error) {
	if ctx == nil {
		return Result[S]{State: state}, ErrNilContext
	}

	if pending == nil {
		return Result[S]{State: state}, &InvalidResumeError{Reason: "run is not suspended"}
	}
	if token == "" || token != pending.Token {
		return Result[S]{State: state}, &InvalidResumeError{NodeID: pending.Path(), Reason: "token does not match the pending point"}
	}
	if err := cg.validatePoint(pending, ""); err != nil {
		return Result[S]{State: state}, err
	}

	cfg := newRunConfig(opts)
	return cg.execute(asExecution(ctx), state, pending.NodeID, &resumePoint{input: input, inner: pending.Inner}, &cfg, true)
}

// validatePoint checks that p names a suspendable node of this graph, and
// recursively of the subgraphs it descends into.
func (cg *CompiledGraph[S]) validatePoint(p *Pending, prefix string) error {
	path := prefix + p.NodeID
	n, ok := cg.nodes[p.NodeID]
	if !ok {
		return &InvalidResumeError{NodeID: path, Reason: "unknown node"}
	}

	switch n.kind {
	case kindInterrupt:
		if p.Inner != nil {
			return &InvalidResumeError{NodeID: path, Reason: "interrupt node cannot hold an inner point"}
		}
		return nil
	case kindSubgraph:
		if p.Inner == nil {
			return &InvalidResumeError{NodeID: path, Reason: "subgraph point without inner point"}
		}
		return n.sub.validatePoint(p.Inner, path+"/")
	default:
		return &InvalidResumeError{NodeID: path, Reason: "node is not an interrupt node"}
	}
}

// Recover continues a run that stopped between nodes, typically because the
// process died mid-turn. It loads the latest checkpoint for key and runs
// from its next node with checkpointing enabled. A key whose latest
// checkpoint is suspended or completed returns ErrNothingToRecover.
func (cg *CompiledGraph[S]) Recover(ctx Context, store checkpoint.Store, key string, opts ...RunOption) (Result[S], error) {
	var zero Result[S]
	if ctx == nil {
		return zero, ErrNilContext
	}

	cp, err := checkpoint.Latest(ctx, store, key)
	if err != nil {
		if errors.Is(err, checkpoint.ErrNotFound) {
			return zero, fmt.Errorf("%w: %s", ErrNoCheckpoints, key)
		}
		return zero, err
	}
	if cp.Status != checkpoint.StatusRunning {
		return zero, fmt.Errorf("%w: %s is %s", ErrNothingToRecover, key, cp.Status)
	}

	state, err := DecodeState[S](cp)
	if err != nil {
		return zero, err
	}

	if cp.NextNode != END && !cg.HasNode(cp.NextNode) {
		return Result[S]{State: state}, fmt.Errorf("%w: resume node %s", ErrNodeNotFound, cp.NextNode)
	}

	cfg := newRunConfig(append([]RunOption{WithCheckpointing(store, key)}, opts...))
	cfg.sequence = cp.Sequence
	return cg.execute(asExecution(ctx), state, cp.NextNode, nil, &cfg, true)
}

// DecodeState unmarshals the state stored in a checkpoint.
func DecodeState[S any](cp *checkpoint.Checkpoint) (S, error) {
	var state S
	if cp == nil {
		return state, fmt.Errorf("%w: nil checkpoint", ErrDeserializeState)
	}
	if err := json.Unmarshal(cp.State, &state); err != nil {
		return state, fmt.Errorf("%w: %w", ErrDeserializeState, err)
	}
	return state, nil
}

// LatestCheckpoint returns the newest checkpoint for key, or nil when the
// key has none.
func LatestCheckpoint(ctx context.Context, store checkpoint.Store, key string) (*checkpoint.Checkpoint, error) {
	cp, err := checkpoint.Latest(ctx, store, key)
	if errors.Is(err, checkpoint.ErrNotFound) {
		return nil, nil
	}
	return cp, err
}
