// Package llm is the assistant's boundary to the language model.
//
// Two narrow interfaces are consumed by the rest of the module: a Reasoner
// that turns a system prompt and user prompts into text, and an Extractor
// that fills a slot schema from free text. AnthropicClient implements both;
// MockReasoner and MockExtractor are deterministic stand-ins for tests.
package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/randalmurphal/finflow/pkg/finbot/slots"
)

// Reasoner produces free text.
type Reasoner interface {
	// Complete sends system as the system prompt and prompts, in order, as
	// the user turn.
	Complete(ctx context.Context, system string, prompts []string) (string, error)
}

// Extractor produces a record constrained to a slot schema.
type Extractor interface {
	// Extract returns the fields found in prompt. Keys are field names of
	// schema; values are raw (json.Number, string or nil) and still need
	// normalization. Output that does not parse or validate returns a
	// *MalformedError.
	Extract(ctx context.Context, prompt string, schema slots.Schema) (map[string]any, error)
}

// ErrExtractionMalformed indicates extraction output that could not be used.
var ErrExtractionMalformed = errors.New("extraction output malformed")

// MalformedError carries the raw output that failed to parse or validate.
type MalformedError struct {
	Raw    string
	Reason string
	Err    error
}

// Error implements the error interface.
func (e *MalformedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", ErrExtractionMalformed, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", ErrExtractionMalformed, e.Reason)
}

// Unwrap returns the underlying error.
func (e *MalformedError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrExtractionMalformed) hold.
func (e *MalformedError) Is(target error) bool {
	return target == ErrExtractionMalformed
}
