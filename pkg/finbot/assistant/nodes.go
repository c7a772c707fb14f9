package assistant

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/randalmurphal/finflow/pkg/finbot/conversation"
	"github.com/randalmurphal/finflow/pkg/finbot/history"
	"github.com/randalmurphal/finflow/pkg/finbot/prompt"
	"github.com/randalmurphal/finflow/pkg/finbot/search"
	"github.com/randalmurphal/finflow/pkg/workflow"
)

// nodes holds the top-level node functions.
type nodes struct {
	deps Deps
}

// entry decides how the turn opens and records the user's message.
func (n *nodes) entry(ctx workflow.Context, s conversation.State) (conversation.State, error) {
	s.Mode = openingMode(s)
	if s.PendingQuery != "" {
		s.History.Append(history.User(s.PendingQuery))
	}
	ctx.Logger().Debug("turn opened", slog.String("mode", string(s.Mode)))
	return s, nil
}

func openingMode(s conversation.State) conversation.Mode {
	if strings.TrimSpace(s.PendingQuery) != "" {
		return conversation.ModeActive
	}
	if !s.Visited {
		return conversation.ModeFirstHello
	}
	if last, ok := s.History.Last(); ok && last.Origin == history.OriginReplayed {
		return conversation.ModeReturningHello
	}
	return conversation.ModeFirstHello
}

func (n *nodes) firstHello(_ workflow.Context, s conversation.State) (conversation.State, error) {
	s.Answer = n.deps.Prompts.Text(prompt.Greeting)
	return s, nil
}

// returningHello greets a user who comes back, summarizing what they asked
// during earlier visits. Without a usable summary it falls back to the
// first-visit greeting.
func (n *nodes) returningHello(ctx workflow.Context, s conversation.State) (conversation.State, error) {
	s.Answer = n.deps.Prompts.Text(prompt.Greeting)

	questions := s.History.UserQuestions(history.OriginReplayed)
	if len(questions) == 0 {
		return s, nil
	}

	user, err := n.deps.Prompts.Render(prompt.SummaryUser, map[string]any{
		"questions": strings.Join(questions, "\n"),
	})
	if err != nil {
		return s, err
	}
	summary, err := n.deps.Reasoner.Complete(ctx, n.deps.Prompts.Text(prompt.SummarySystem), []string{user})
	if err != nil {
		ctx.Logger().Warn("summary unavailable, greeting as first visit", slog.String("error", err.Error()))
		return s, nil
	}
	summary = strings.TrimSpace(summary)
	if summary == "" {
		return s, nil
	}

	answer, err := n.deps.Prompts.Render(prompt.ReturningGreeting, map[string]any{"summary": summary})
	if err != nil {
		return s, err
	}
	s.Answer = answer
	return s, nil
}

func (n *nodes) activeIntent(ctx workflow.Context, s conversation.State) (conversation.State, error) {
	label, err := n.deps.Classifier.Classify(ctx, s.PendingQuery, n.deps.Labels.Intents)
	if err != nil {
		ctx.Logger().Warn("intent defaulted", slog.String("intent", string(label)), slog.String("error", err.Error()))
	}
	s.Intent = conversation.Intent(label)
	return s, nil
}

// recommend retrieves products for the query and answers from them. The
// best hit is kept as the product snapshot for a later calculation.
func (n *nodes) recommend(ctx workflow.Context, s conversation.State) (conversation.State, error) {
	label, err := n.deps.Classifier.Classify(ctx, s.PendingQuery, n.deps.Labels.RecommendCategories)
	if err != nil {
		ctx.Logger().Warn("recommend category defaulted", slog.String("category", string(label)), slog.String("error", err.Error()))
	}
	s.RecommendCategory = conversation.RecommendCategory(label)

	vec, err := n.deps.Embedder.Embed(ctx, s.PendingQuery)
	if err != nil {
		return s, fmt.Errorf("embed query: %w", err)
	}
	collection := search.Collection(string(s.RecommendCategory))
	hits, err := n.deps.Searcher.Search(ctx, vec, collection, n.deps.TopK)
	if err != nil && !errors.Is(err, search.ErrUnknownCollection) {
		return s, fmt.Errorf("search %s: %w", collection, err)
	}

	if len(hits) == 0 {
		s.Product = nil
		s.Answer = n.deps.Prompts.Text(prompt.NoProducts)
		return s, nil
	}

	s.Product = conversation.SnapshotFromPayload(hits[0].Payload)

	products := make([]string, len(hits))
	for i, h := range hits {
		products[i] = fmt.Sprintf("%d. %s", i+1, search.ProductText(h.Payload))
	}
	user, err := n.deps.Prompts.Render(prompt.RecommendUser, map[string]any{
		"products": strings.Join(products, "\n"),
		"query":    s.PendingQuery,
	})
	if err != nil {
		return s, err
	}
	answer, err := n.deps.Reasoner.Complete(ctx, n.deps.Prompts.Text(prompt.RecommendSystem), []string{user})
	if err != nil {
		return s, fmt.Errorf("recommend: %w", err)
	}
	s.Answer = answer

	ctx.Logger().Debug("recommended",
		slog.String("collection", collection),
		slog.Int("hits", len(hits)),
		slog.String("product", s.Product.Code),
	)
	return s, nil
}

// humanFeedback shows the recommendation and asks whether to calculate it.
// The answer becomes the query of the rest of the turn.
func (n *nodes) humanFeedback(ctx workflow.Context, s conversation.State) (conversation.State, error) {
	question := n.deps.Prompts.Text(prompt.FeedbackQuestion)
	input, ok := workflow.ResumeInput(ctx)
	if !ok {
		return s, workflow.Interrupt(joinParagraphs(s.Answer, question))
	}

	recordExchange(&s, joinParagraphs(s.Answer, question), input)
	s.Answer = ""
	s.PendingQuery = input
	return s, nil
}

func (n *nodes) feedbackClassify(ctx workflow.Context, s conversation.State) (conversation.State, error) {
	label, err := n.deps.Classifier.Classify(ctx, s.PendingQuery, n.deps.Labels.Feedback)
	if err != nil {
		ctx.Logger().Warn("feedback defaulted", slog.String("feedback", string(label)), slog.String("error", err.Error()))
	}
	s.Feedback = conversation.Feedback(label)
	if s.Feedback == conversation.FeedbackYes {
		s.Intent = conversation.IntentCalculate
	}
	return s, nil
}

func (n *nodes) explain(ctx workflow.Context, s conversation.State) (conversation.State, error) {
	return n.answer(ctx, s, prompt.ExplainSystem, prompt.ExplainUser)
}

func (n *nodes) chat(ctx workflow.Context, s conversation.State) (conversation.State, error) {
	return n.answer(ctx, s, prompt.ChatSystem, prompt.ChatUser)
}

func (n *nodes) answer(ctx workflow.Context, s conversation.State, system, user prompt.Name) (conversation.State, error) {
	text, err := n.deps.Prompts.Render(user, map[string]any{"query": s.PendingQuery})
	if err != nil {
		return s, err
	}
	answer, err := n.deps.Reasoner.Complete(ctx, n.deps.Prompts.Text(system), []string{text})
	if err != nil {
		return s, fmt.Errorf("%s: %w", ctx.NodeID(), err)
	}
	s.Answer = answer
	return s, nil
}

// recover keeps the failure on the state; the degraded node answers.
func (n *nodes) recover(ctx workflow.Context, s conversation.State, err error) conversation.State {
	s.Error = err.Error()
	s.ErrorNode = ctx.NodeID()
	var nodeErr *workflow.NodeError
	if errors.As(err, &nodeErr) && nodeErr.NodeID != ctx.NodeID() {
		s.ErrorNode = ctx.NodeID() + "/" + nodeErr.NodeID
	}
	return s
}

func (n *nodes) degraded(ctx workflow.Context, s conversation.State) (conversation.State, error) {
	ctx.Logger().Warn("turn degraded",
		slog.String("error_node", s.ErrorNode),
		slog.String("error", s.Error),
	)
	s.Answer = n.deps.Prompts.Text(prompt.Degraded)
	return s, nil
}

func (n *nodes) appendHistory(_ workflow.Context, s conversation.State) (conversation.State, error) {
	if s.Answer != "" {
		s.History.Append(history.Assistant(s.Answer))
	}
	s.Visited = true
	return s, nil
}

// recordExchange appends a question shown to the user and their reply.
func recordExchange(s *conversation.State, asked, reply string) {
	if asked != "" {
		s.History.Append(history.Assistant(asked))
	}
	s.History.Append(history.User(reply))
}

func joinParagraphs(parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "\n\n")
}
