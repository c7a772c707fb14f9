package workflow

import "fmt"

// Branch is a conditional edge with a declared codomain. The route function
// picks one of Outcomes at runtime; Paths maps every outcome to the node
// that runs next (or END). Compile rejects a branch whose outcomes and paths
// disagree, so a router can never produce a value with no matching edge.
type Branch[S any] struct {
	route    func(ctx Context, state S) string
	outcomes []string
	paths    map[string]string
}

// NewBranch builds a Branch from a typed router. O is usually a string enum
// such as an intent label.
//
// Example:
//
//	workflow.NewBranch(routeIntent,
//	    []Intent{Recommend, Calculate, Explain, Chat},
//	    map[Intent]string{
//	        Recommend: "recommend",
//	        Calculate: "calculate",
//	        Explain:   "explain",
//	        Chat:      "chat",
//	    })
func NewBranch[S any, O ~string](route func(ctx Context, state S) O, outcomes []O, paths map[O]string) Branch[S] {
	if route == nil {
		panic("workflow: branch route function cannot be nil")
	}

	b := Branch[S]{
		route: func(ctx Context, state S) string {
			return string(route(ctx, state))
		},
		outcomes: make([]string, len(outcomes)),
		paths:    make(map[string]string, len(paths)),
	}
	for i, o := range outcomes {
		b.outcomes[i] = string(o)
	}
	for o, target := range paths {
		b.paths[string(o)] = target
	}
	return b
}

// Outcomes returns the declared outcomes in declaration order.
func (b Branch[S]) Outcomes() []string {
	out := make([]string, len(b.outcomes))
	copy(out, b.outcomes)
	return out
}

// Targets returns the distinct target nodes of the branch in outcome order.
func (b Branch[S]) Targets() []string {
	seen := make(map[string]bool, len(b.paths))
	var out []string
	for _, o := range b.outcomes {
		t, ok := b.paths[o]
		if !ok || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// validate reports every mismatch between outcomes and paths.
func (b Branch[S]) validate(from string) []error {
	var errs []error
	declared := make(map[string]bool, len(b.outcomes))

	if len(b.outcomes) == 0 {
		errs = append(errs, fmt.Errorf("%w: branch from '%s' declares no outcomes", ErrInvalidBranch, from))
	}
	for _, o := range b.outcomes {
		if declared[o] {
			errs = append(errs, fmt.Errorf("%w: branch from '%s' declares outcome %q twice", ErrInvalidBranch, from, o))
			continue
		}
		declared[o] = true
		if _, ok := b.paths[o]; !ok {
			errs = append(errs, fmt.Errorf("%w: branch from '%s' has no path for outcome %q", ErrUnmappedOutcome, from, o))
		}
	}
	for o := range b.paths {
		if !declared[o] {
			errs = append(errs, fmt.Errorf("%w: branch from '%s' maps undeclared outcome %q", ErrUndeclaredOutcome, from, o))
		}
	}
	return errs
}
