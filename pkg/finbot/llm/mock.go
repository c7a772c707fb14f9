package llm

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/randalmurphal/finflow/pkg/finbot/slots"
)

// Call records one Complete invocation.
type Call struct {
	System  string
	Prompts []string
}

// MockReasoner is a Reasoner for tests. Responses are returned in order
// and cycle; a CompleteFunc, when set, takes precedence.
type MockReasoner struct {
	mu        sync.Mutex
	responses []string
	index     int
	err       error
	fn        func(ctx context.Context, system string, prompts []string) (string, error)

	Calls []Call
}

// NewMockReasoner returns a reasoner answering with responses in turn.
func NewMockReasoner(responses ...string) *MockReasoner {
	return &MockReasoner{responses: responses}
}

// WithError makes every call fail with err.
func (m *MockReasoner) WithError(err error) *MockReasoner {
	m.err = err
	return m
}

// WithCompleteFunc answers every call with fn.
func (m *MockReasoner) WithCompleteFunc(fn func(ctx context.Context, system string, prompts []string) (string, error)) *MockReasoner {
	m.fn = fn
	return m
}

// Complete implements Reasoner.
func (m *MockReasoner) Complete(ctx context.Context, system string, prompts []string) (string, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, Call{System: system, Prompts: slices.Clone(prompts)})
	fn, err := m.fn, m.err
	var resp string
	if len(m.responses) > 0 {
		resp = m.responses[m.index%len(m.responses)]
		m.index++
	}
	m.mu.Unlock()

	if err != nil {
		return "", err
	}
	if fn != nil {
		return fn(ctx, system, prompts)
	}
	return resp, nil
}

// CallCount returns the number of calls made.
func (m *MockReasoner) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// LastCall returns the most recent call, or nil.
func (m *MockReasoner) LastCall() *Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Calls) == 0 {
		return nil
	}
	c := m.Calls[len(m.Calls)-1]
	return &c
}

// MockExtractor is an Extractor for tests. Records are returned in order;
// once they run out every call returns an empty record.
type MockExtractor struct {
	mu      sync.Mutex
	records []map[string]any
	index   int
	err     error
	fn      func(ctx context.Context, prompt string, schema slots.Schema) (map[string]any, error)

	Prompts []string
}

// NewMockExtractor returns an extractor answering with records in turn.
func NewMockExtractor(records ...map[string]any) *MockExtractor {
	return &MockExtractor{records: records}
}

// WithError makes every call fail with err.
func (m *MockExtractor) WithError(err error) *MockExtractor {
	m.err = err
	return m
}

// WithExtractFunc answers every call with fn.
func (m *MockExtractor) WithExtractFunc(fn func(ctx context.Context, prompt string, schema slots.Schema) (map[string]any, error)) *MockExtractor {
	m.fn = fn
	return m
}

// Extract implements Extractor.
func (m *MockExtractor) Extract(ctx context.Context, prompt string, schema slots.Schema) (map[string]any, error) {
	m.mu.Lock()
	m.Prompts = append(m.Prompts, prompt)
	fn, err := m.fn, m.err
	rec := map[string]any{}
	if m.index < len(m.records) {
		rec = maps.Clone(m.records[m.index])
		m.index++
	}
	m.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if fn != nil {
		return fn(ctx, prompt, schema)
	}
	return rec, nil
}

// CallCount returns the number of calls made.
func (m *MockExtractor) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Prompts)
}
