package assistant

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/randalmurphal/finflow/pkg/finbot/calc"
	"github.com/randalmurphal/finflow/pkg/finbot/conversation"
	"github.com/randalmurphal/finflow/pkg/finbot/llm"
	"github.com/randalmurphal/finflow/pkg/finbot/prompt"
	"github.com/randalmurphal/finflow/pkg/finbot/slots"
	"github.com/randalmurphal/finflow/pkg/workflow"
)

// collector gathers the inputs of a calculator over as many turns as it
// takes. Each loop either fills at least one field or sets Reprompt and
// asks again, so a user who answers every question finishes within one
// round per required field.
type collector struct {
	deps Deps
}

type source string

const (
	sourceKnown   source = "known"
	sourceUnknown source = "unknown"
)

type completeness string

const (
	completenessDone    completeness = "done"
	completenessMissing completeness = "missing"
)

func newCollector(deps Deps) (*Graph, error) {
	c := &collector{deps: deps}
	g := workflow.NewGraph[conversation.State]().
		AddNode(NodeDetermineSource, c.determineSource).
		AddInterruptNode(NodeAskCategory, c.askCategory).
		AddNode(NodeCheckComplete, c.checkComplete).
		AddInterruptNode(NodeRequestMissing, c.requestMissing).
		AddNode(NodeMergeInput, c.mergeInput).
		AddNode(NodeComplete, c.complete).
		SetEntry(NodeDetermineSource)

	g.AddBranch(NodeDetermineSource, workflow.NewBranch(routeSource,
		[]source{sourceKnown, sourceUnknown},
		map[source]string{
			sourceKnown:   NodeCheckComplete,
			sourceUnknown: NodeAskCategory,
		}))
	g.AddEdge(NodeAskCategory, NodeCheckComplete)
	g.AddBranch(NodeCheckComplete, workflow.NewBranch(c.routeCompleteness,
		[]completeness{completenessDone, completenessMissing},
		map[completeness]string{
			completenessDone:    NodeComplete,
			completenessMissing: NodeRequestMissing,
		}))
	g.AddEdge(NodeRequestMissing, NodeMergeInput)
	g.AddEdge(NodeMergeInput, NodeCheckComplete)
	g.AddEdge(NodeComplete, workflow.END)

	return g.Compile()
}

func routeSource(_ workflow.Context, s conversation.State) source {
	if s.SlotCategory.Known() {
		return sourceKnown
	}
	return sourceUnknown
}

func (c *collector) routeCompleteness(_ workflow.Context, s conversation.State) completeness {
	if len(c.missing(s)) == 0 {
		return completenessDone
	}
	return completenessMissing
}

// determineSource starts the slot set from the recommended product when
// there is one, otherwise from the category named in the query.
func (c *collector) determineSource(ctx workflow.Context, s conversation.State) (conversation.State, error) {
	if p := s.Product; p != nil && len(p.Options) > 0 {
		cat := c.deps.Registry.CategoryFromProduct(p.Category)
		if schema, ok := c.deps.Registry.Schema(cat); ok {
			s = begin(s, schema, slots.Prefill(schema, p.Base, p.Options))
			ctx.Logger().Debug("slots prefilled from product",
				slog.String("product", p.Code),
				slog.String("category", string(cat)),
			)
			return s, nil
		}
	}

	schema, ok := c.classify(ctx, s.PendingQuery)
	if !ok {
		s.SlotCategory = slots.Unknown
		return s, nil
	}
	s = begin(s, schema, slots.NewSet(schema))
	return c.seed(ctx, s, schema, s.PendingQuery), nil
}

// askCategory asks which kind of product to calculate until the answer
// names one.
func (c *collector) askCategory(ctx workflow.Context, s conversation.State) (conversation.State, error) {
	question := c.withReprompt(s, c.deps.Prompts.Text(prompt.CategoryQuestion))
	input, ok := workflow.ResumeInput(ctx)
	if !ok {
		return s, workflow.Interrupt(question)
	}
	recordExchange(&s, question, input)
	s.PendingQuery = input

	schema, ok := c.classify(ctx, input)
	if !ok {
		s.Reprompt = true
		return s, workflow.Interrupt(c.withReprompt(s, c.deps.Prompts.Text(prompt.CategoryQuestion)))
	}
	s = begin(s, schema, slots.NewSet(schema))
	return c.seed(ctx, s, schema, input), nil
}

func (c *collector) checkComplete(ctx workflow.Context, s conversation.State) (conversation.State, error) {
	if _, ok := c.deps.Registry.Schema(s.SlotCategory); !ok {
		return s, fmt.Errorf("no slot schema for category %q", s.SlotCategory)
	}
	ctx.Logger().Debug("slots checked",
		slog.String("category", string(s.SlotCategory)),
		slog.Any("missing", c.missing(s)),
	)
	return s, nil
}

// requestMissing asks for every required field that is still empty.
func (c *collector) requestMissing(ctx workflow.Context, s conversation.State) (conversation.State, error) {
	question, err := c.deps.Prompts.Render(prompt.MissingFields, map[string]any{
		"fields": strings.Join(c.missing(s), ", "),
	})
	if err != nil {
		return s, err
	}
	question = c.withReprompt(s, question)

	input, ok := workflow.ResumeInput(ctx)
	if !ok {
		return s, workflow.Interrupt(question)
	}
	recordExchange(&s, question, input)
	s.PendingQuery = input
	return s, nil
}

// mergeInput extracts values from the user's reply. Output that does not
// fit the schema asks again instead of failing the turn.
func (c *collector) mergeInput(ctx workflow.Context, s conversation.State) (conversation.State, error) {
	schema, ok := c.deps.Registry.Schema(s.SlotCategory)
	if !ok {
		return s, fmt.Errorf("no slot schema for category %q", s.SlotCategory)
	}

	record, err := c.extract(ctx, s, schema, s.PendingQuery)
	if err != nil {
		if errors.Is(err, llm.ErrExtractionMalformed) {
			ctx.Logger().Warn("extraction malformed, asking again", slog.String("error", err.Error()))
			s.Reprompt = true
			return s, nil
		}
		return s, fmt.Errorf("extract slots: %w", err)
	}

	merged, filled, mergeErr := s.SlotSet.Merge(schema, record)
	s.SlotSet = merged
	s.Reprompt = len(filled) == 0
	logMerge(ctx, filled, mergeErr)
	return s, nil
}

func (c *collector) complete(ctx workflow.Context, s conversation.State) (conversation.State, error) {
	result, err := calc.Compute(s.SlotCategory, s.SlotSet, calc.Options{})
	if err != nil {
		return s, err
	}
	s.CalculatedResult = &result
	s.Answer = calc.Render(result)
	s.Reprompt = false
	ctx.Logger().Info("calculated", slog.String("category", string(s.SlotCategory)))
	return s, nil
}

// classify maps text onto a calculator category and its schema.
func (c *collector) classify(ctx workflow.Context, text string) (slots.Schema, bool) {
	label, err := c.deps.Classifier.Classify(ctx, text, c.deps.Labels.SlotCategories)
	if err != nil {
		ctx.Logger().Warn("slot category defaulted", slog.String("category", string(label)), slog.String("error", err.Error()))
	}
	return c.deps.Registry.Schema(slots.Category(label))
}

// seed fills what the first message already says. Failures leave the set
// as it is; the missing fields are asked for next.
func (c *collector) seed(ctx workflow.Context, s conversation.State, schema slots.Schema, text string) conversation.State {
	record, err := c.extract(ctx, s, schema, text)
	if err != nil {
		ctx.Logger().Warn("seed extraction failed", slog.String("error", err.Error()))
		return s
	}
	merged, filled, mergeErr := s.SlotSet.Merge(schema, record)
	s.SlotSet = merged
	logMerge(ctx, filled, mergeErr)
	return s
}

func (c *collector) extract(ctx workflow.Context, s conversation.State, schema slots.Schema, input string) (map[string]any, error) {
	data, err := json.Marshal(s.SlotSet.ToMap())
	if err != nil {
		return nil, err
	}
	text, err := c.deps.Prompts.Render(prompt.ExtractUser, map[string]any{
		"data":  string(data),
		"input": input,
	})
	if err != nil {
		return nil, err
	}
	return c.deps.Extractor.Extract(ctx, text, schema)
}

func (c *collector) missing(s conversation.State) []string {
	schema, ok := c.deps.Registry.Schema(s.SlotCategory)
	if !ok {
		return s.RequiredFields
	}
	return s.SlotSet.Missing(s.RequiredFields, schema)
}

func (c *collector) withReprompt(s conversation.State, question string) string {
	if !s.Reprompt {
		return question
	}
	text, err := c.deps.Prompts.Render(prompt.Reprompt, map[string]any{"prompt": question})
	if err != nil {
		return question
	}
	return text
}

func begin(s conversation.State, schema slots.Schema, set slots.Set) conversation.State {
	s.SlotCategory = schema.Category()
	s.SlotSet = set
	s.RequiredFields = schema.Required()
	s.CalculatedResult = nil
	s.Reprompt = false
	return s
}

func logMerge(ctx workflow.Context, filled []string, err error) {
	attrs := []any{slog.Any("filled", filled)}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	ctx.Logger().Debug("slots merged", attrs...)
}
