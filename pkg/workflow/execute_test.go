package workflow

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	wferrors "github.com/randalmurphal/finflow/pkg/workflow/errors"
)

// TestRun_LinearFlow tests basic linear execution.
func TestRun_LinearFlow(t *testing.T) {
	compiled, err := NewGraph[Counter]().
		AddNode("inc1", increment).
		AddNode("inc2", increment).
		AddNode("inc3", increment).
		AddEdge("inc1", "inc2").
		AddEdge("inc2", "inc3").
		AddEdge("inc3", END).
		SetEntry("inc1").
		Compile()
	require.NoError(t, err)

	res, err := compiled.Run(testCtx(), Counter{Value: 0})

	require.NoError(t, err)
	assert.Equal(t, 3, res.State.Value)
	assert.False(t, res.Suspended())
}

// TestRun_StatePassedBetweenNodes tests state flows correctly.
func TestRun_StatePassedBetweenNodes(t *testing.T) {
	var nodeAState, nodeBState State

	nodeA := func(ctx Context, s State) (State, error) {
		nodeAState = s
		s.Step = 1
		return s, nil
	}
	nodeB := func(ctx Context, s State) (State, error) {
		nodeBState = s
		s.Step = 2
		return s, nil
	}

	compiled, err := NewGraph[State]().
		AddNode("a", nodeA).
		AddNode("b", nodeB).
		AddEdge("a", "b").
		AddEdge("b", END).
		SetEntry("a").
		Compile()
	require.NoError(t, err)

	res, err := compiled.Run(testCtx(), State{Initial: "test"})

	require.NoError(t, err)
	assert.Equal(t, "test", nodeAState.Initial)
	assert.Equal(t, 1, nodeBState.Step)
	assert.Equal(t, 2, res.State.Step)
}

func TestRun_Branch(t *testing.T) {
	tests := []struct {
		name   string
		goLeft bool
		want   []string
	}{
		{"left", true, []string{"start", "left"}},
		{"right", false, []string{"start", "right"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var executed []string
			compiled, err := NewGraph[State]().
				AddNode("start", makeTrackingNode("start", &executed)).
				AddNode("left", makeTrackingNode("left", &executed)).
				AddNode("right", makeTrackingNode("right", &executed)).
				AddBranch("start", sideBranch("left", "right")).
				AddEdge("left", END).
				AddEdge("right", END).
				SetEntry("start").
				Compile()
			require.NoError(t, err)

			_, err = compiled.Run(testCtx(), State{GoLeft: tt.goLeft})

			require.NoError(t, err)
			assert.Equal(t, tt.want, executed)
		})
	}
}

func TestRun_Loop(t *testing.T) {
	loop := func(ctx Context, s State) (State, error) {
		s.Count++
		s.GoLeft = s.Count < 3
		return s, nil
	}

	compiled, err := NewGraph[State]().
		AddNode("loop", loop).
		AddBranch("loop", sideBranch("loop", END)).
		SetEntry("loop").
		Compile()
	require.NoError(t, err)

	res, err := compiled.Run(testCtx(), State{})

	require.NoError(t, err)
	assert.Equal(t, 3, res.State.Count)
	assert.Len(t, res.Trace, 3)
}

func TestRun_RouterReturnsUndeclaredOutcome_Error(t *testing.T) {
	b := NewBranch(func(ctx Context, s State) Side { return "sideways" },
		[]Side{Left}, map[Side]string{Left: END})

	compiled, err := NewGraph[State]().
		AddNode("start", passthrough[State]).
		AddBranch("start", b).
		SetEntry("start").
		Compile()
	require.NoError(t, err)

	_, err = compiled.Run(testCtx(), State{})

	var routerErr *RouterError
	require.ErrorAs(t, err, &routerErr)
	assert.Equal(t, "start", routerErr.FromNode)
	assert.Equal(t, "sideways", routerErr.Returned)
	assert.ErrorIs(t, err, ErrUndeclaredOutcome)
}

func TestRun_NodeError_WrapsWithNodeID(t *testing.T) {
	boom := errors.New("boom")
	compiled, err := NewGraph[State]().
		AddNode("ok", passthrough[State]).
		AddNode("bad", makeFailingNode(boom)).
		AddEdge("ok", "bad").
		AddEdge("bad", END).
		SetEntry("ok").
		Compile()
	require.NoError(t, err)

	res, err := compiled.Run(testCtx(), State{Initial: "kept"})

	var nodeErr *NodeError
	require.ErrorAs(t, err, &nodeErr)
	assert.Equal(t, "bad", nodeErr.NodeID)
	assert.Equal(t, "execute", nodeErr.Op)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "kept", res.State.Initial)
	require.Len(t, res.Trace, 2)
	assert.ErrorIs(t, res.Trace[1].Err, boom)
}

func TestRun_PanicRecovery(t *testing.T) {
	compiled, err := NewGraph[State]().
		AddNode("panic", makePanicNode(42)).
		AddEdge("panic", END).
		SetEntry("panic").
		Compile()
	require.NoError(t, err)

	_, err = compiled.Run(testCtx(), State{})

	var panicErr *PanicError
	require.ErrorAs(t, err, &panicErr)
	assert.Equal(t, 42, panicErr.Value)
	assert.Equal(t, "panic", panicErr.NodeID)
	assert.NotEmpty(t, panicErr.Stack)
}

// degrade records the failure the way a conversation graph would.
func degrade(ctx Context, s State, err error) State {
	s.Failure = fmt.Sprintf("%s: %v", ctx.NodeID(), err)
	s.Output = "degraded"
	return s
}

func TestRun_OnError_RecoversNodeError(t *testing.T) {
	var executed []string
	compiled, err := NewGraph[State]().
		AddNode("bad", makeFailingNode(errors.New("search down"))).
		AddNode("finish", makeTrackingNode("finish", &executed)).
		AddEdge("bad", "finish").
		AddEdge("finish", END).
		OnError(degrade, "finish").
		SetEntry("bad").
		Compile()
	require.NoError(t, err)

	res, err := compiled.Run(testCtx(), State{})

	require.NoError(t, err)
	assert.Equal(t, "degraded", res.State.Output)
	assert.Contains(t, res.State.Failure, "bad")
	assert.Contains(t, res.State.Failure, "search down")
	assert.Equal(t, []string{"finish"}, executed)
}

func TestRun_OnError_RecoversPanic(t *testing.T) {
	compiled, err := NewGraph[State]().
		AddNode("panic", makePanicNode("nil map")).
		AddNode("finish", passthrough[State]).
		AddEdge("panic", "finish").
		AddEdge("finish", END).
		OnError(degrade, "finish").
		SetEntry("panic").
		Compile()
	require.NoError(t, err)

	res, err := compiled.Run(testCtx(), State{})

	require.NoError(t, err)
	assert.Contains(t, res.State.Failure, "panicked")
}

func TestRun_OnError_FailureDuringRecoveryIsReturned(t *testing.T) {
	second := errors.New("history store gone")
	compiled, err := NewGraph[State]().
		AddNode("bad", makeFailingNode(errors.New("first"))).
		AddNode("finish", makeFailingNode(second)).
		AddEdge("bad", "finish").
		AddEdge("finish", END).
		OnError(degrade, "finish").
		SetEntry("bad").
		Compile()
	require.NoError(t, err)

	_, err = compiled.Run(testCtx(), State{})

	assert.ErrorIs(t, err, second)
}

func TestRun_OnError_RecoversUndeclaredOutcome(t *testing.T) {
	b := NewBranch(func(ctx Context, s State) Side { return "bogus" },
		[]Side{Left}, map[Side]string{Left: END})

	compiled, err := NewGraph[State]().
		AddNode("start", passthrough[State]).
		AddNode("finish", passthrough[State]).
		AddBranch("start", b).
		AddEdge("finish", END).
		OnError(degrade, "finish").
		SetEntry("start").
		Compile()
	require.NoError(t, err)

	res, err := compiled.Run(testCtx(), State{})

	require.NoError(t, err)
	assert.Equal(t, "degraded", res.State.Output)
}

func TestRun_NodeTimeout(t *testing.T) {
	slow := func(ctx Context, s State) (State, error) {
		select {
		case <-ctx.Done():
			return s, ctx.Err()
		case <-time.After(time.Second):
			return s, nil
		}
	}

	compiled, err := NewGraph[State]().
		AddNode("slow", slow).
		AddEdge("slow", END).
		SetEntry("slow").
		Compile()
	require.NoError(t, err)

	_, err = compiled.Run(testCtx(), State{}, WithNodeTimeout(20*time.Millisecond))

	var nodeErr *NodeError
	require.ErrorAs(t, err, &nodeErr)
	var timeoutErr *wferrors.TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.Equal(t, "node slow", timeoutErr.Operation)
	assert.Equal(t, 20*time.Millisecond, timeoutErr.Duration)
}

func TestRun_NodeTimeout_DeadlineVisibleToNode(t *testing.T) {
	var hasDeadline bool
	node := func(ctx Context, s State) (State, error) {
		_, hasDeadline = ctx.Deadline()
		return s, nil
	}

	compiled, err := NewGraph[State]().
		AddNode("n", node).
		AddEdge("n", END).
		SetEntry("n").
		Compile()
	require.NoError(t, err)

	_, err = compiled.Run(testCtx(), State{}, WithNodeTimeout(time.Second))

	require.NoError(t, err)
	assert.True(t, hasDeadline)
}

// TestRun_CancellationBetweenNodes tests cancellation is checked between nodes.
func TestRun_CancellationBetweenNodes(t *testing.T) {
	var executed []string
	ctx, cancel := context.WithCancel(context.Background())

	cancelAfterFirst := func(fgCtx Context, s State) (State, error) {
		executed = append(executed, "first")
		cancel()
		return s, nil
	}

	compiled, err := NewGraph[State]().
		AddNode("first", cancelAfterFirst).
		AddNode("second", makeTrackingNode("second", &executed)).
		AddEdge("first", "second").
		AddEdge("second", END).
		SetEntry("first").
		Compile()
	require.NoError(t, err)

	_, err = compiled.Run(NewContext(ctx), State{})

	assert.ErrorIs(t, err, context.Canceled)
	var cancelErr *CancellationError
	require.ErrorAs(t, err, &cancelErr)
	assert.Equal(t, "second", cancelErr.NodeID)
	assert.Equal(t, []string{"first"}, executed)
}

func TestRun_CancellationRecoveredRunsRecoveryPath(t *testing.T) {
	var executed []string
	ctx, cancel := context.WithCancel(context.Background())

	first := func(fgCtx Context, s State) (State, error) {
		cancel()
		return s, nil
	}

	compiled, err := NewGraph[State]().
		AddNode("first", first).
		AddNode("second", makeTrackingNode("second", &executed)).
		AddNode("finish", makeTrackingNode("finish", &executed)).
		AddEdge("first", "second").
		AddEdge("second", "finish").
		AddEdge("finish", END).
		OnError(degrade, "finish").
		SetEntry("first").
		Compile()
	require.NoError(t, err)

	res, err := compiled.Run(NewContext(ctx), State{})

	require.NoError(t, err)
	assert.Equal(t, []string{"finish"}, executed)
	assert.Contains(t, res.State.Failure, "cancelled before node second")
}

func TestRun_MaxIterations_PreventsInfiniteLoop(t *testing.T) {
	forever := NewBranch(func(ctx Context, s State) Side { return Left },
		[]Side{Left, Right}, map[Side]string{Left: "loop", Right: END})

	compiled, err := NewGraph[State]().
		AddNode("loop", func(ctx Context, s State) (State, error) {
			s.Count++
			return s, nil
		}).
		AddBranch("loop", forever).
		SetEntry("loop").
		Compile()
	require.NoError(t, err)

	res, err := compiled.Run(testCtx(), State{}, WithMaxIterations(10))

	var maxErr *MaxIterationsError
	require.ErrorAs(t, err, &maxErr)
	assert.Equal(t, 10, maxErr.Max)
	assert.Equal(t, "loop", maxErr.LastNodeID)
	assert.ErrorIs(t, err, ErrMaxIterations)
	assert.Equal(t, 10, res.State.Count)
}

func TestRun_NilContext_Error(t *testing.T) {
	compiled, err := NewGraph[Counter]().
		AddNode("a", increment).
		AddEdge("a", END).
		SetEntry("a").
		Compile()
	require.NoError(t, err)

	//nolint:staticcheck // nil context is the case under test
	_, err = compiled.Run(nil, Counter{})

	assert.ErrorIs(t, err, ErrNilContext)
}

func TestRun_ContextPropagated(t *testing.T) {
	var runID, nodeID string
	node := func(ctx Context, s State) (State, error) {
		runID = ctx.RunID()
		nodeID = ctx.NodeID()
		return s, nil
	}

	compiled, err := NewGraph[State]().
		AddNode("probe", node).
		AddEdge("probe", END).
		SetEntry("probe").
		Compile()
	require.NoError(t, err)

	_, err = compiled.Run(NewContext(context.Background(), WithContextRunID("u1:r1")), State{})

	require.NoError(t, err)
	assert.Equal(t, "u1:r1", runID)
	assert.Equal(t, "probe", nodeID)
}

func TestRun_TraceRecordsEveryNode(t *testing.T) {
	slow := func(ctx Context, s State) (State, error) {
		time.Sleep(5 * time.Millisecond)
		return s, nil
	}

	compiled, err := NewGraph[State]().
		AddNode("a", passthrough[State]).
		AddNode("b", slow).
		AddEdge("a", "b").
		AddEdge("b", END).
		SetEntry("a").
		Compile()
	require.NoError(t, err)

	res, err := compiled.Run(testCtx(), State{})

	require.NoError(t, err)
	require.Len(t, res.Trace, 2)
	assert.Equal(t, "a", res.Trace[0].NodeID)
	assert.Equal(t, "b", res.Trace[1].NodeID)
	assert.GreaterOrEqual(t, res.Trace[1].Duration, 5*time.Millisecond)
	assert.NoError(t, res.Trace[1].Err)
}

func TestRun_ReusableCompiledGraph(t *testing.T) {
	compiled, err := NewGraph[Counter]().
		AddNode("inc", increment).
		AddEdge("inc", END).
		SetEntry("inc").
		Compile()
	require.NoError(t, err)

	for i := range 3 {
		res, err := compiled.Run(testCtx(), Counter{Value: i})
		require.NoError(t, err)
		assert.Equal(t, i+1, res.State.Value)
	}
}

func TestContext_DefaultValues(t *testing.T) {
	ctx := NewContext(context.Background())

	assert.NotNil(t, ctx.Logger())
	assert.NotEmpty(t, ctx.RunID())
	assert.Empty(t, ctx.NodeID())
	_, ok := ResumeInput(ctx)
	assert.False(t, ok)
}

func TestContext_ValuesFromParent(t *testing.T) {
	type key struct{}
	parent := context.WithValue(context.Background(), key{}, "v")

	ctx := NewContext(parent)

	assert.Equal(t, "v", ctx.Value(key{}))
}

func TestWithMaxIterations_IgnoresNonPositive(t *testing.T) {
	cfg := newRunConfig([]RunOption{WithMaxIterations(0), WithMaxIterations(-1)})
	assert.Equal(t, 1000, cfg.maxIterations)

	cfg = newRunConfig([]RunOption{WithMaxIterations(5), WithNodeTimeout(-time.Second)})
	assert.Equal(t, 5, cfg.maxIterations)
	assert.Zero(t, cfg.nodeTimeout)
}
