package llm_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/finflow/pkg/finbot/llm"
	"github.com/randalmurphal/finflow/pkg/finbot/slots"
	wferrors "github.com/randalmurphal/finflow/pkg/workflow/errors"
)

func loanSchema(t *testing.T) slots.Schema {
	t.Helper()
	s, ok := slots.DefaultRegistry().Schema(slots.JeonseLoan)
	require.True(t, ok)
	return s
}

func TestValidateRecord(t *testing.T) {
	schema := loanSchema(t)

	tests := []struct {
		name string
		raw  string
		want map[string]any
	}{
		{
			name: "plain object",
			raw:  `{"대출액": 300000000, "대출금리유형": null}`,
			want: map[string]any{"대출액": json.Number("300000000"), "대출금리유형": nil},
		},
		{
			name: "json fence",
			raw:  "```json\n{\"대출금리최저\": \"2.78%\"}\n```",
			want: map[string]any{"대출금리최저": "2.78%"},
		},
		{
			name: "bare fence on one line",
			raw:  "```{\"대출금리최고\": 7.09}```",
			want: map[string]any{"대출금리최고": json.Number("7.09")},
		},
		{
			name: "empty object",
			raw:  "{}",
			want: map[string]any{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := llm.ValidateRecord(tt.raw, schema)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidateRecord_Malformed(t *testing.T) {
	schema := loanSchema(t)

	tests := []struct {
		name   string
		raw    string
		reason string
	}{
		{"empty", "   ", "empty output"},
		{"not json", "대출액은 3억이에요", "not a JSON object"},
		{"array", `[1, 2]`, "not a JSON object"},
		{"unknown field", `{"이자": 1}`, "이자"},
		{"wrong type", `{"대출액": true}`, "대출액"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := llm.ValidateRecord(tt.raw, schema)

			require.ErrorIs(t, err, llm.ErrExtractionMalformed)
			var malformed *llm.MalformedError
			require.ErrorAs(t, err, &malformed)
			assert.Equal(t, tt.raw, malformed.Raw)
			assert.Contains(t, err.Error(), tt.reason)
		})
	}
}

// messageServer answers the Messages API with the given bodies in turn,
// repeating the last one.
func messageServer(t *testing.T, responses ...func(w http.ResponseWriter, r *http.Request)) (*httptest.Server, *atomic.Int32, func() []map[string]any) {
	t.Helper()
	var hits atomic.Int32
	var mu sync.Mutex
	var requests []map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		var req map[string]any
		_ = json.Unmarshal(body, &req)
		mu.Lock()
		requests = append(requests, req)
		mu.Unlock()

		n := int(hits.Add(1)) - 1
		if n >= len(responses) {
			n = len(responses) - 1
		}
		responses[n](w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits, func() []map[string]any {
		mu.Lock()
		defer mu.Unlock()
		return requests
	}
}

func reply(content string) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"msg_1","type":"message","role":"assistant","model":"test",`+
			`"content":`+content+`,"stop_reason":"end_turn","usage":{"input_tokens":10,"output_tokens":5}}`)
	}
}

func failure(status int, kind string) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, `{"type":"error","error":{"type":"`+kind+`","message":"try later"}}`)
	}
}

func fastRetry() wferrors.RetryConfig {
	return wferrors.NewRetryConfig(
		wferrors.WithMaxAttempts(3),
		wferrors.WithInitialBackoff(time.Millisecond),
		wferrors.WithJitter(0),
	)
}

func TestAnthropicClient_Complete(t *testing.T) {
	srv, hits, requests := messageServer(t, reply(`[{"type":"text","text":" calculate "}]`))
	c := llm.NewAnthropicClient("test-key", llm.WithBaseURL(srv.URL), llm.WithModel("test-model"), llm.WithMaxTokens(64))

	got, err := c.Complete(context.Background(), "classify", []string{"질문: 예금 이자 계산해줘"})

	require.NoError(t, err)
	assert.Equal(t, "calculate", got)
	assert.Equal(t, int32(1), hits.Load())

	req := requests()[0]
	assert.Equal(t, "test-model", req["model"])
	assert.EqualValues(t, 64, req["max_tokens"])
	system := req["system"].([]any)
	assert.Equal(t, "classify", system[0].(map[string]any)["text"])
}

func TestAnthropicClient_RetriesTransientFailures(t *testing.T) {
	srv, hits, _ := messageServer(t,
		failure(http.StatusTooManyRequests, "rate_limit_error"),
		failure(529, "overloaded_error"),
		reply(`[{"type":"text","text":"ok"}]`),
	)
	c := llm.NewAnthropicClient("test-key", llm.WithBaseURL(srv.URL), llm.WithRetry(fastRetry()))

	got, err := c.Complete(context.Background(), "", []string{"hi"})

	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, int32(3), hits.Load())
}

func TestAnthropicClient_PermanentFailure(t *testing.T) {
	srv, hits, _ := messageServer(t, failure(http.StatusBadRequest, "invalid_request_error"))
	c := llm.NewAnthropicClient("test-key", llm.WithBaseURL(srv.URL), llm.WithRetry(fastRetry()))

	_, err := c.Complete(context.Background(), "", []string{"hi"})

	require.Error(t, err)
	assert.Equal(t, int32(1), hits.Load())
	var statusErr *wferrors.StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusBadRequest, statusErr.StatusCode)
	assert.Equal(t, "anthropic", statusErr.Service)
	assert.False(t, wferrors.IsRetryable(err))
}

func TestAnthropicClient_Extract(t *testing.T) {
	srv, _, requests := messageServer(t, reply(
		`[{"type":"tool_use","id":"tu_1","name":"record_slots","input":{"대출금리유형":"변동금리","대출금리최저":2.78}}]`,
	))
	c := llm.NewAnthropicClient("test-key", llm.WithBaseURL(srv.URL), llm.WithExtractionSystem("extract"))

	got, err := c.Extract(context.Background(), "사용자 입력: 변동금리, 2.78%", loanSchema(t))

	require.NoError(t, err)
	assert.Equal(t, "변동금리", got["대출금리유형"])
	assert.Equal(t, json.Number("2.78"), got["대출금리최저"])

	req := requests()[0]
	choice := req["tool_choice"].(map[string]any)
	assert.Equal(t, "tool", choice["type"])
	assert.Equal(t, "record_slots", choice["name"])
	tools := req["tools"].([]any)
	require.Len(t, tools, 1)
	props := tools[0].(map[string]any)["input_schema"].(map[string]any)["properties"].(map[string]any)
	assert.Contains(t, props, "대출금리최고")
}

func TestAnthropicClient_ExtractMalformed(t *testing.T) {
	srv, hits, _ := messageServer(t, reply(`[{"type":"text","text":"잘 모르겠어요"}]`))
	c := llm.NewAnthropicClient("test-key", llm.WithBaseURL(srv.URL), llm.WithRetry(fastRetry()))

	_, err := c.Extract(context.Background(), "사용자 입력: 음", loanSchema(t))

	assert.ErrorIs(t, err, llm.ErrExtractionMalformed)
	assert.Equal(t, int32(1), hits.Load())
}

func TestAnthropicClient_RespectsCancellation(t *testing.T) {
	srv, hits, _ := messageServer(t, reply(`[{"type":"text","text":"ok"}]`))
	c := llm.NewAnthropicClient("test-key", llm.WithBaseURL(srv.URL))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Complete(ctx, "", []string{"hi"})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(0), hits.Load())
}

func TestMockReasoner(t *testing.T) {
	m := llm.NewMockReasoner("a", "b")

	first, _ := m.Complete(context.Background(), "sys", []string{"q1"})
	second, _ := m.Complete(context.Background(), "sys", []string{"q2"})
	third, _ := m.Complete(context.Background(), "sys", []string{"q3"})

	assert.Equal(t, []string{"a", "b", "a"}, []string{first, second, third})
	assert.Equal(t, 3, m.CallCount())
	assert.Equal(t, []string{"q3"}, m.LastCall().Prompts)

	boom := errors.New("boom")
	_, err := llm.NewMockReasoner().WithError(boom).Complete(context.Background(), "", nil)
	assert.ErrorIs(t, err, boom)
}

func TestMockExtractor(t *testing.T) {
	m := llm.NewMockExtractor(map[string]any{"대출액": "3억"})
	schema := loanSchema(t)

	first, err := m.Extract(context.Background(), "p1", schema)
	require.NoError(t, err)
	second, err := m.Extract(context.Background(), "p2", schema)
	require.NoError(t, err)

	assert.Equal(t, "3억", first["대출액"])
	assert.Empty(t, second)
	assert.Equal(t, []string{"p1", "p2"}, m.Prompts)
}
