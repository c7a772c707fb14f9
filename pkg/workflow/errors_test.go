package workflow

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNodeError(t *testing.T) {
	base := errors.New("search timeout")
	err := &NodeError{NodeID: "recommend", Op: "execute", Err: base}

	assert.Equal(t, "node recommend: execute: search timeout", err.Error())
	assert.ErrorIs(t, err, base)
}

func TestPanicError_Error(t *testing.T) {
	err := &PanicError{NodeID: "compute", Value: "index out of range"}
	assert.Equal(t, "node compute panicked: index out of range", err.Error())
}

func TestCancellationError(t *testing.T) {
	err := &CancellationError{NodeID: "recommend", Cause: context.DeadlineExceeded}

	assert.Equal(t, "cancelled before node recommend: context deadline exceeded", err.Error())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRouterError(t *testing.T) {
	err := &RouterError{FromNode: "active_intent", Returned: "weather", Err: ErrUndeclaredOutcome}

	assert.Equal(t, `router from active_intent returned "weather": branch outcome not declared`, err.Error())
	assert.ErrorIs(t, err, ErrUndeclaredOutcome)
}

func TestMaxIterationsError(t *testing.T) {
	err := &MaxIterationsError{Max: 100, LastNodeID: "check_complete"}

	assert.Equal(t, "exceeded maximum iterations (100) at node check_complete", err.Error())
	assert.ErrorIs(t, err, ErrMaxIterations)
}

func TestInvalidResumeError(t *testing.T) {
	err := &InvalidResumeError{NodeID: "calculate/request_missing", Reason: "token does not match the pending point"}

	assert.Equal(t, "invalid resume at calculate/request_missing: token does not match the pending point", err.Error())
	assert.ErrorIs(t, err, ErrInvalidResume)
	assert.Equal(t, "invalid resume: run is not suspended", (&InvalidResumeError{Reason: "run is not suspended"}).Error())
}

func TestCheckpointError(t *testing.T) {
	base := errors.New("disk full")
	err := &CheckpointError{NodeID: "entry", Op: "save", Err: base}

	assert.Equal(t, "checkpoint save at node entry: disk full", err.Error())
	assert.ErrorIs(t, err, base)
}

func TestFailedNode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"node error", &NodeError{NodeID: "a"}, "a"},
		{"panic", &PanicError{NodeID: "b"}, "b"},
		{"router", &RouterError{FromNode: "c"}, "c"},
		{"cancel", &CancellationError{NodeID: "d"}, "d"},
		{"max iterations", &MaxIterationsError{LastNodeID: "e"}, "e"},
		{"other", errors.New("x"), ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, failedNode(tt.err))
		})
	}
}
