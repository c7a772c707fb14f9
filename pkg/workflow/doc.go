/*
Package workflow executes conversation turns as a walk over a directed graph.

# Overview

A graph is built from nodes (functions over a state value) joined by plain
edges and branches. Compile validates the structure once; the resulting
CompiledGraph is immutable and safe for concurrent runs. A run can suspend
at an interrupt node to ask the user something and be resumed later, in
another process, with the answer.

# Basic Usage

	type State struct {
	    Query  string
	    Answer string
	}

	func answer(ctx workflow.Context, s State) (State, error) {
	    s.Answer = "echo: " + s.Query
	    return s, nil
	}

	graph := workflow.NewGraph[State]().
	    AddNode("answer", answer).
	    AddEdge("answer", workflow.END).
	    SetEntry("answer")

	compiled, err := graph.Compile()
	if err != nil {
	    log.Fatal(err)
	}

	ctx := workflow.NewContext(context.Background())
	res, err := compiled.Run(ctx, State{Query: "hello"})
	fmt.Println(res.State.Answer)

# Branches

A branch routes on state to one of a declared set of outcomes. Every
outcome must have a path and every path must belong to a declared outcome;
Compile fails otherwise, so routing can never produce an unknown target:

	graph.AddBranch("classify", workflow.NewBranch(
	    func(ctx workflow.Context, s State) Intent { return s.Intent },
	    []Intent{Recommend, Chat},
	    map[Intent]string{Recommend: "recommend", Chat: "chat"},
	))

# Interrupts

Nodes added with AddInterruptNode may return Interrupt(prompt). The run
stops without advancing and Result.Pending carries the node, the prompt and
a single-use token. Resume re-executes the node with the caller's answer
available through ResumeInput:

	res, _ := compiled.Run(ctx, state)
	if res.Suspended() {
	    res, err = compiled.Resume(ctx, res.State, res.Pending, res.Pending.Token, answer)
	}

A compiled graph can be embedded with AddSubgraph. A suspension inside it
surfaces as a pending point on the subgraph node with Inner set.

# Failure Recovery

Node errors and panics become *NodeError and *PanicError. With OnError the
executor instead derives a degraded state with the recover function and
continues at the recovery node, so a turn still ends with an answer. Node
deadlines are set with WithNodeTimeout.

# Checkpointing

WithCheckpointing saves a checkpoint after every node and on suspension.
Recover continues a run that died between nodes.

	store, _ := checkpoint.NewSQLiteStore("./finbot.db")
	res, err := compiled.Run(ctx, state, workflow.WithCheckpointing(store, "u1:r1"))

	// after a crash
	res, err = compiled.Recover(ctx, store, "u1:r1")

# Observability

WithObservabilityLogger, WithMetrics and WithTracing enable slog lifecycle
logs, OpenTelemetry metrics and spans per run and per node. Result.Trace
records the duration of every node regardless.
*/
package workflow
