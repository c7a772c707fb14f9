package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/randalmurphal/finflow/pkg/finbot/slots"
	wferrors "github.com/randalmurphal/finflow/pkg/workflow/errors"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "claude-sonnet-4-5"

// recordTool is the tool the model is forced to call during extraction.
const recordTool = "record_slots"

// AnthropicClient implements Reasoner and Extractor with the Messages API.
// Transient failures (rate limits, overload, 5xx, timeouts) are retried
// with backoff; everything else is returned at once.
type AnthropicClient struct {
	client      anthropic.Client
	model       string
	maxTokens   int64
	retry       wferrors.RetryConfig
	extractSys  string
	logger      *slog.Logger
	clientOpts  []option.RequestOption
	callTimeout time.Duration
}

// AnthropicOption configures AnthropicClient.
type AnthropicOption func(*AnthropicClient)

// NewAnthropicClient creates a client. The SDK's own retries are disabled;
// retries go through the configured RetryConfig instead.
func NewAnthropicClient(apiKey string, opts ...AnthropicOption) *AnthropicClient {
	c := &AnthropicClient{
		model:     DefaultModel,
		maxTokens: 1024,
		retry:     wferrors.DefaultRetry,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}

	reqOpts := append([]option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}, c.clientOpts...)
	c.client = anthropic.NewClient(reqOpts...)
	return c
}

// WithModel sets the model name.
func WithModel(model string) AnthropicOption {
	return func(c *AnthropicClient) {
		if model != "" {
			c.model = model
		}
	}
}

// WithMaxTokens bounds the length of every answer.
func WithMaxTokens(n int) AnthropicOption {
	return func(c *AnthropicClient) {
		if n > 0 {
			c.maxTokens = int64(n)
		}
	}
}

// WithBaseURL points the client at another endpoint.
func WithBaseURL(url string) AnthropicOption {
	return func(c *AnthropicClient) {
		if url != "" {
			c.clientOpts = append(c.clientOpts, option.WithBaseURL(url))
		}
	}
}

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(hc *http.Client) AnthropicOption {
	return func(c *AnthropicClient) {
		c.clientOpts = append(c.clientOpts, option.WithHTTPClient(hc))
	}
}

// WithRetry sets the retry policy for transient failures.
func WithRetry(cfg wferrors.RetryConfig) AnthropicOption {
	return func(c *AnthropicClient) { c.retry = cfg }
}

// WithCallTimeout bounds each attempt. Zero leaves only the caller's deadline.
func WithCallTimeout(d time.Duration) AnthropicOption {
	return func(c *AnthropicClient) { c.callTimeout = d }
}

// WithExtractionSystem sets the system prompt used by Extract.
func WithExtractionSystem(system string) AnthropicOption {
	return func(c *AnthropicClient) { c.extractSys = system }
}

// WithLogger sets the logger for retry diagnostics.
func WithLogger(l *slog.Logger) AnthropicOption {
	return func(c *AnthropicClient) {
		if l != nil {
			c.logger = l
		}
	}
}

// Complete implements Reasoner.
func (c *AnthropicClient) Complete(ctx context.Context, system string, prompts []string) (string, error) {
	params := c.params(system, prompts)

	msg, err := c.send(ctx, "complete", params)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if text, ok := block.AsAny().(anthropic.TextBlock); ok {
			sb.WriteString(text.Text)
		}
	}
	return strings.TrimSpace(sb.String()), nil
}

// Extract implements Extractor. The model is forced to answer through a
// tool whose input schema is the slot schema; the tool input is then
// validated with ValidateRecord.
func (c *AnthropicClient) Extract(ctx context.Context, prompt string, schema slots.Schema) (map[string]any, error) {
	params := c.params(c.extractSys, []string{prompt})

	js := schema.JSONSchema()
	params.Tools = []anthropic.ToolUnionParam{{
		OfTool: &anthropic.ToolParam{
			Name:        recordTool,
			Description: anthropic.String(fmt.Sprintf("Record the %s fields found in the user input.", schema.Category())),
			InputSchema: anthropic.ToolInputSchemaParam{
				Properties: js["properties"],
			},
		},
	}}
	params.ToolChoice = anthropic.ToolChoiceUnionParam{
		OfTool: &anthropic.ToolChoiceToolParam{Name: recordTool},
	}

	msg, err := c.send(ctx, "extract", params)
	if err != nil {
		return nil, err
	}

	var text strings.Builder
	for _, block := range msg.Content {
		switch b := block.AsAny().(type) {
		case anthropic.ToolUseBlock:
			if b.Name == recordTool {
				return ValidateRecord(string(b.Input), schema)
			}
		case anthropic.TextBlock:
			text.WriteString(b.Text)
		}
	}
	// Some models answer in text despite the forced tool.
	return ValidateRecord(text.String(), schema)
}

func (c *AnthropicClient) params(system string, prompts []string) anthropic.MessageNewParams {
	blocks := make([]anthropic.ContentBlockParamUnion, 0, len(prompts))
	for _, p := range prompts {
		blocks = append(blocks, anthropic.NewTextBlock(p))
	}
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: c.maxTokens,
		Messages:  []anthropic.MessageParam{anthropic.NewUserMessage(blocks...)},
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	return params
}

func (c *AnthropicClient) send(ctx context.Context, op string, params anthropic.MessageNewParams) (*anthropic.Message, error) {
	cfg := c.retry
	cfg.OnRetry = func(attempt int, err error, wait time.Duration) {
		c.logger.Warn("retrying model call",
			slog.String("op", op),
			slog.Int("attempt", attempt),
			slog.Duration("wait", wait),
			slog.String("error", err.Error()),
		)
	}

	res := wferrors.WithRetryContext(ctx, cfg, func(ctx context.Context) (*anthropic.Message, error) {
		if c.callTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, c.callTimeout)
			defer cancel()
		}
		msg, err := c.client.Messages.New(ctx, params)
		if err != nil {
			return nil, translate(err)
		}
		return msg, nil
	})
	if res.Err != nil {
		return nil, fmt.Errorf("anthropic %s: %w", op, res.Err)
	}
	return res.Value, nil
}

// translate maps API failures to status errors so they categorize.
func translate(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return &wferrors.StatusError{
			StatusCode: apiErr.StatusCode,
			Message:    apiErr.Error(),
			Service:    "anthropic",
		}
	}
	return err
}
