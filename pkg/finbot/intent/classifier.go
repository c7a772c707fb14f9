package intent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/randalmurphal/finflow/pkg/finbot/llm"
	"github.com/randalmurphal/finflow/pkg/finbot/prompt"
	"github.com/randalmurphal/finflow/pkg/workflow/observability"
)

// ErrClassificationUnavailable indicates the reasoning call failed and the
// default label was used.
var ErrClassificationUnavailable = errors.New("classification unavailable")

// UnavailableError wraps the failure of the reasoning call.
type UnavailableError struct {
	Set string
	Err error
}

// Error implements the error interface.
func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%s for %s: %v", ErrClassificationUnavailable, e.Set, e.Err)
}

// Unwrap returns the underlying error.
func (e *UnavailableError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrClassificationUnavailable) hold.
func (e *UnavailableError) Is(target error) bool {
	return target == ErrClassificationUnavailable
}

// Classifier asks the reasoner to pick one label of a set.
type Classifier struct {
	reasoner llm.Reasoner
	prompts  *prompt.Catalog
	metrics  observability.MetricsRecorder
	logger   *slog.Logger
}

// ClassifierOption configures a Classifier.
type ClassifierOption func(*Classifier)

// WithPrompts sets the prompt catalog.
func WithPrompts(c *prompt.Catalog) ClassifierOption {
	return func(cl *Classifier) {
		if c != nil {
			cl.prompts = c
		}
	}
}

// WithMetrics records fallbacks to the default label.
func WithMetrics(m observability.MetricsRecorder) ClassifierOption {
	return func(cl *Classifier) {
		if m != nil {
			cl.metrics = m
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) ClassifierOption {
	return func(cl *Classifier) {
		if l != nil {
			cl.logger = l
		}
	}
}

// NewClassifier creates a classifier backed by reasoner.
func NewClassifier(reasoner llm.Reasoner, opts ...ClassifierOption) *Classifier {
	c := &Classifier{
		reasoner: reasoner,
		prompts:  prompt.Default(),
		metrics:  observability.NoopMetrics{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify returns the label of set that best describes query. The result
// is always a member of set. When the reasoner fails the default label is
// returned together with an *UnavailableError; callers continue with the
// label.
func (c *Classifier) Classify(ctx context.Context, query string, set *LabelSet) (Label, error) {
	system, user, err := c.render(query, set)
	if err != nil {
		return c.fallback(ctx, set, "prompt", err)
	}

	raw, err := c.reasoner.Complete(ctx, system, []string{user})
	if err != nil {
		return c.fallback(ctx, set, "unavailable", err)
	}

	label, match := set.Match(raw)
	if match == MatchDefault {
		c.metrics.RecordClassifyFallback(ctx, set.Name(), "unrecognized")
	}
	c.logger.Debug("classified",
		slog.String("label_set", set.Name()),
		slog.String("label", string(label)),
		slog.String("raw", raw),
		slog.String("match", string(match)),
	)
	return label, nil
}

func (c *Classifier) fallback(ctx context.Context, set *LabelSet, reason string, err error) (Label, error) {
	c.metrics.RecordClassifyFallback(ctx, set.Name(), reason)
	c.logger.Warn("classification fell back to default",
		slog.String("label_set", set.Name()),
		slog.String("label", string(set.Default())),
		slog.String("error", err.Error()),
	)
	return set.Default(), &UnavailableError{Set: set.Name(), Err: err}
}

func (c *Classifier) render(query string, set *LabelSet) (string, string, error) {
	labels := set.Labels()
	var choices strings.Builder
	quoted := make([]string, len(labels))
	for i, l := range labels {
		fmt.Fprintf(&choices, "%d. %s\n", i+1, set.Description(l))
		quoted[i] = "'" + string(l) + "'"
	}

	system, err := c.prompts.Render(prompt.ClassifySystem, map[string]any{
		"count":   len(labels),
		"choices": strings.TrimRight(choices.String(), "\n"),
		"labels":  strings.Join(quoted, ", "),
	})
	if err != nil {
		return "", "", err
	}
	user, err := c.prompts.Render(prompt.ClassifyUser, map[string]any{"query": query})
	if err != nil {
		return "", "", err
	}
	return system, user, nil
}
