package workflow

import (
	"context"
)

// Counter is a simple state for testing incrementing.
type Counter struct {
	Value int
}

// State is a more complex state for testing various scenarios.
type State struct {
	Step     int
	Progress []string
	Initial  string
	Output   string
	Done     bool
	GoLeft   bool
	Count    int
	Answers  []string
	Waiting  bool
	Failure  string
}

// Side is the outcome type used by test branches.
type Side string

const (
	Left  Side = "left"
	Right Side = "right"
)

// increment is a node that increments the counter.
func increment(ctx Context, s Counter) (Counter, error) {
	s.Value++
	return s, nil
}

// passthrough returns the state unchanged.
func passthrough[S any](ctx Context, s S) (S, error) {
	return s, nil
}

// makeTrackingNode creates a node that records its execution.
func makeTrackingNode(name string, tracker *[]string) NodeFunc[State] {
	return func(ctx Context, s State) (State, error) {
		*tracker = append(*tracker, name)
		s.Progress = append(s.Progress, name)
		return s, nil
	}
}

// makeFailingNode creates a node that returns the given error.
func makeFailingNode(err error) NodeFunc[State] {
	return func(ctx Context, s State) (State, error) {
		return s, err
	}
}

// makePanicNode creates a node that panics with the given value.
func makePanicNode(value any) NodeFunc[State] {
	return func(ctx Context, s State) (State, error) {
		panic(value)
	}
}

// askNode is an interrupt node that stores the answer it is resumed with.
func askNode(prompt string) NodeFunc[State] {
	return func(ctx Context, s State) (State, error) {
		answer, ok := ResumeInput(ctx)
		if !ok {
			s.Waiting = true
			return s, Interrupt(prompt)
		}
		s.Waiting = false
		s.Answers = append(s.Answers, answer)
		return s, nil
	}
}

// sideBranch routes on State.GoLeft.
func sideBranch(left, right string) Branch[State] {
	return NewBranch(func(ctx Context, s State) Side {
		if s.GoLeft {
			return Left
		}
		return Right
	}, []Side{Left, Right}, map[Side]string{Left: left, Right: right})
}

// testCtx creates a simple test context.
func testCtx() Context {
	return NewContext(context.Background())
}
