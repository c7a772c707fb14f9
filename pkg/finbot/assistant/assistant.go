// Package assistant wires the finance assistant's conversation graph.
//
// One call of Run or Resume handles one user turn:
//
//	entry ─┬─ first_hello ─────────────────────────────────┐
//	       ├─ returning_hello ─────────────────────────────┤
//	       └─ active_intent ─┬─ recommend ─ human_feedback ─ feedback_classify ─┬─ calculate
//	                         │                                                 └─ active_intent
//	                         ├─ calculate (collector) ─────────────────────────┤
//	                         ├─ explain ───────────────────────────────────────┤
//	                         └─ chat ──────────────────────────────────────────┴─ append_history ─ END
//
// Any node failure is recovered into the degraded node, which answers with
// an apology and joins append_history. The calculate node is a subgraph
// that collects calculator inputs over as many turns as needed.
package assistant

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/randalmurphal/finflow/pkg/finbot/conversation"
	"github.com/randalmurphal/finflow/pkg/finbot/intent"
	"github.com/randalmurphal/finflow/pkg/finbot/llm"
	"github.com/randalmurphal/finflow/pkg/finbot/prompt"
	"github.com/randalmurphal/finflow/pkg/finbot/search"
	"github.com/randalmurphal/finflow/pkg/finbot/slots"
	"github.com/randalmurphal/finflow/pkg/workflow"
	"github.com/randalmurphal/finflow/pkg/workflow/observability"
)

// Node IDs of the top-level graph.
const (
	NodeEntry            = "entry"
	NodeFirstHello       = "first_hello"
	NodeReturningHello   = "returning_hello"
	NodeActiveIntent     = "active_intent"
	NodeRecommend        = "recommend"
	NodeHumanFeedback    = "human_feedback"
	NodeFeedbackClassify = "feedback_classify"
	NodeCalculate        = "calculate"
	NodeExplain          = "explain"
	NodeChat             = "chat"
	NodeAppendHistory    = "append_history"
	NodeDegraded         = "degraded"
)

// Node IDs of the collector subgraph.
const (
	NodeDetermineSource = "determine_source"
	NodeAskCategory     = "ask_category"
	NodeCheckComplete   = "check_complete"
	NodeRequestMissing  = "request_missing"
	NodeMergeInput      = "merge_input"
	NodeComplete        = "complete"
)

// DefaultTopK is the number of products retrieved for a recommendation.
const DefaultTopK = 3

// Graph is the compiled conversation graph.
type Graph = workflow.CompiledGraph[conversation.State]

// Deps are the services the nodes call. Reasoner, Extractor, Embedder and
// Searcher are required; the rest default to the compiled-in tables.
type Deps struct {
	Reasoner  llm.Reasoner
	Extractor llm.Extractor
	Embedder  search.Embedder
	Searcher  search.Searcher

	Registry   *slots.Registry
	Labels     *intent.Sets
	Prompts    *prompt.Catalog
	Classifier *intent.Classifier
	Metrics    observability.MetricsRecorder
	Logger     *slog.Logger

	// TopK is the number of products retrieved per recommendation.
	TopK int
}

func (d Deps) withDefaults() (Deps, error) {
	var errs []error
	if d.Reasoner == nil {
		errs = append(errs, errors.New("reasoner is required"))
	}
	if d.Extractor == nil {
		errs = append(errs, errors.New("extractor is required"))
	}
	if d.Embedder == nil {
		errs = append(errs, errors.New("embedder is required"))
	}
	if d.Searcher == nil {
		errs = append(errs, errors.New("searcher is required"))
	}
	if err := errors.Join(errs...); err != nil {
		return d, err
	}

	if d.Registry == nil {
		d.Registry = slots.DefaultRegistry()
	}
	if d.Labels == nil {
		sets := intent.DefaultSets()
		d.Labels = &sets
	}
	if d.Prompts == nil {
		d.Prompts = prompt.Default()
	}
	if d.Metrics == nil {
		d.Metrics = observability.NoopMetrics{}
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Classifier == nil {
		d.Classifier = intent.NewClassifier(d.Reasoner,
			intent.WithPrompts(d.Prompts),
			intent.WithMetrics(d.Metrics),
			intent.WithLogger(d.Logger),
		)
	}
	if d.TopK <= 0 {
		d.TopK = DefaultTopK
	}
	return d, nil
}

// NewGraph builds and compiles the conversation graph.
func NewGraph(deps Deps) (*Graph, error) {
	deps, err := deps.withDefaults()
	if err != nil {
		return nil, fmt.Errorf("assistant: %w", err)
	}

	collector, err := newCollector(deps)
	if err != nil {
		return nil, fmt.Errorf("assistant: collector: %w", err)
	}

	n := &nodes{deps: deps}
	g := workflow.NewGraph[conversation.State]().
		AddNode(NodeEntry, n.entry).
		AddNode(NodeFirstHello, n.firstHello).
		AddNode(NodeReturningHello, n.returningHello).
		AddNode(NodeActiveIntent, n.activeIntent).
		AddNode(NodeRecommend, n.recommend).
		AddInterruptNode(NodeHumanFeedback, n.humanFeedback).
		AddNode(NodeFeedbackClassify, n.feedbackClassify).
		AddSubgraph(NodeCalculate, collector).
		AddNode(NodeExplain, n.explain).
		AddNode(NodeChat, n.chat).
		AddNode(NodeDegraded, n.degraded).
		AddNode(NodeAppendHistory, n.appendHistory).
		SetEntry(NodeEntry).
		OnError(n.recover, NodeDegraded)

	g.AddBranch(NodeEntry, workflow.NewBranch(routeMode,
		[]conversation.Mode{conversation.ModeFirstHello, conversation.ModeReturningHello, conversation.ModeActive},
		map[conversation.Mode]string{
			conversation.ModeFirstHello:     NodeFirstHello,
			conversation.ModeReturningHello: NodeReturningHello,
			conversation.ModeActive:         NodeActiveIntent,
		}))
	g.AddBranch(NodeActiveIntent, workflow.NewBranch(routeIntent,
		[]conversation.Intent{conversation.IntentRecommend, conversation.IntentCalculate, conversation.IntentExplain, conversation.IntentChat},
		map[conversation.Intent]string{
			conversation.IntentRecommend: NodeRecommend,
			conversation.IntentCalculate: NodeCalculate,
			conversation.IntentExplain:   NodeExplain,
			conversation.IntentChat:      NodeChat,
		}))
	g.AddBranch(NodeRecommend, workflow.NewBranch(routeRecommendation,
		[]recommendation{recommendationFound, recommendationNone},
		map[recommendation]string{
			recommendationFound: NodeHumanFeedback,
			recommendationNone:  NodeAppendHistory,
		}))
	g.AddEdge(NodeHumanFeedback, NodeFeedbackClassify)
	g.AddBranch(NodeFeedbackClassify, workflow.NewBranch(routeFeedback,
		[]conversation.Feedback{conversation.FeedbackYes, conversation.FeedbackNo},
		map[conversation.Feedback]string{
			conversation.FeedbackYes: NodeCalculate,
			conversation.FeedbackNo:  NodeActiveIntent,
		}))

	for _, id := range []string{NodeFirstHello, NodeReturningHello, NodeCalculate, NodeExplain, NodeChat, NodeDegraded} {
		g.AddEdge(id, NodeAppendHistory)
	}
	g.AddEdge(NodeAppendHistory, workflow.END)

	compiled, err := g.Compile()
	if err != nil {
		return nil, fmt.Errorf("assistant: %w", err)
	}
	return compiled, nil
}

func routeMode(_ workflow.Context, s conversation.State) conversation.Mode {
	return s.Mode
}

func routeIntent(_ workflow.Context, s conversation.State) conversation.Intent {
	return s.Intent
}

type recommendation string

const (
	recommendationFound recommendation = "found"
	recommendationNone  recommendation = "none"
)

func routeRecommendation(_ workflow.Context, s conversation.State) recommendation {
	if s.Product == nil {
		return recommendationNone
	}
	return recommendationFound
}

func routeFeedback(_ workflow.Context, s conversation.State) conversation.Feedback {
	return s.Feedback
}
