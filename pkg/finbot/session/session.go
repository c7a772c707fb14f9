// Package session runs conversation turns for one user in one room.
//
// A Session owns the read-modify-write cycle around the durable checkpoint
// store: it takes the per-key lock, loads the latest checkpoint, decides
// whether the message starts a new turn or answers a pending question, runs
// the graph with checkpointing and releases the lock. Node failures never
// reach the caller; they come back as a degraded Reply. Only store and lock
// failures are returned as errors.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/randalmurphal/finflow/pkg/finbot/assistant"
	"github.com/randalmurphal/finflow/pkg/finbot/calc"
	"github.com/randalmurphal/finflow/pkg/finbot/conversation"
	"github.com/randalmurphal/finflow/pkg/finbot/history"
	"github.com/randalmurphal/finflow/pkg/finbot/prompt"
	"github.com/randalmurphal/finflow/pkg/workflow"
	"github.com/randalmurphal/finflow/pkg/workflow/checkpoint"
	"github.com/randalmurphal/finflow/pkg/workflow/observability"
)

// Defaults for a Session.
const (
	DefaultTurnTimeout = 2 * time.Minute
	DefaultLockTTL     = 3 * time.Minute
)

// ErrInvalidKey indicates a key with an empty user or room.
var ErrInvalidKey = errors.New("invalid session key")

// Key identifies a conversation.
type Key struct {
	UserID string
	RoomID string
}

// String renders the key as used in the checkpoint store, "user:room".
func (k Key) String() string {
	return k.UserID + ":" + k.RoomID
}

// Validate reports an empty user or room.
func (k Key) Validate() error {
	if k.UserID == "" || k.RoomID == "" {
		return fmt.Errorf("%w: %q", ErrInvalidKey, k.String())
	}
	return nil
}

// Reply is the outcome of one call.
type Reply struct {
	// Answer is the text to show the user. While Awaiting it is the
	// question the turn stopped at.
	Answer string `json:"answer"`

	// Awaiting is set when the turn stopped for user input. Prompt and
	// Token then describe the pending question.
	Awaiting bool   `json:"awaiting"`
	Prompt   string `json:"prompt,omitempty"`
	Token    string `json:"token,omitempty"`

	Mode   conversation.Mode   `json:"mode,omitempty"`
	Intent conversation.Intent `json:"intent,omitempty"`
	Result *calc.Result        `json:"result,omitempty"`

	// Error describes a failure that was answered with an apology.
	Error string `json:"error,omitempty"`
}

// Session runs turns against a compiled graph and a checkpoint store. It is
// safe for concurrent use; calls for the same key are serialized.
type Session struct {
	graph   *assistant.Graph
	store   checkpoint.Store
	locker  checkpoint.Locker
	prompts *prompt.Catalog
	logger  *slog.Logger
	metrics observability.MetricsRecorder
	spans   observability.SpanManager

	historySize int
	nodeTimeout time.Duration
	turnTimeout time.Duration
	lockTTL     time.Duration

	locks *keyLocks
}

// Option configures a Session.
type Option func(*Session)

// WithLocker adds a distributed lock taken after the in-process one, for
// deployments where several processes share the store.
func WithLocker(l checkpoint.Locker) Option {
	return func(s *Session) { s.locker = l }
}

// WithLockTTL sets how long a distributed lock lives if never released.
func WithLockTTL(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.lockTTL = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics records run and node metrics.
func WithMetrics(m observability.MetricsRecorder) Option {
	return func(s *Session) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithTracing creates a span per turn and per node.
func WithTracing(spans observability.SpanManager) Option {
	return func(s *Session) { s.spans = spans }
}

// WithPrompts sets the catalog used for session-level replies.
func WithPrompts(c *prompt.Catalog) Option {
	return func(s *Session) {
		if c != nil {
			s.prompts = c
		}
	}
}

// WithHistorySize sets the window size of new conversations.
func WithHistorySize(n int) Option {
	return func(s *Session) {
		if n > 0 {
			s.historySize = n
		}
	}
}

// WithNodeTimeout bounds every node of a turn.
func WithNodeTimeout(d time.Duration) Option {
	return func(s *Session) { s.nodeTimeout = d }
}

// WithTurnTimeout bounds a whole turn. Zero disables the bound.
func WithTurnTimeout(d time.Duration) Option {
	return func(s *Session) { s.turnTimeout = d }
}

// New creates a Session.
func New(graph *assistant.Graph, store checkpoint.Store, opts ...Option) *Session {
	s := &Session{
		graph:       graph,
		store:       store,
		prompts:     prompt.Default(),
		logger:      slog.Default(),
		metrics:     observability.NoopMetrics{},
		historySize: history.DefaultCapacity,
		turnTimeout: DefaultTurnTimeout,
		lockTTL:     DefaultLockTTL,
		locks:       newKeyLocks(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ask handles one user message. If the previous turn stopped for input the
// message answers that question; otherwise it starts a new turn. A turn
// interrupted by a crash is finished first.
func (s *Session) Ask(ctx context.Context, key Key, message string) (Reply, error) {
	return s.locked(ctx, key, func(ctx workflow.Context) (Reply, error) {
		state, pending, err := s.current(ctx, key)
		if err != nil {
			return Reply{}, err
		}
		if pending != nil {
			return s.resume(ctx, key, state, pending, pending.Token, message)
		}
		return s.run(ctx, key, state.BeginTurn(message))
	})
}

// Open starts a new visit to the room. Earlier records are marked as
// replayed and a question left pending is dropped; the turn answers with a
// greeting.
func (s *Session) Open(ctx context.Context, key Key) (Reply, error) {
	return s.locked(ctx, key, func(ctx workflow.Context) (Reply, error) {
		state, pending, err := s.current(ctx, key)
		if err != nil {
			return Reply{}, err
		}
		if pending != nil {
			ctx.Logger().Info("dropping pending question", slog.String("path", pending.Path()))
		}
		state.History = state.History.MarkReplayed()
		return s.run(ctx, key, state.BeginTurn(""))
	})
}

// Resume answers the pending question identified by token. A token that
// does not match returns the refusal Reply together with a
// *workflow.InvalidResumeError; the stored state is not changed.
func (s *Session) Resume(ctx context.Context, key Key, token, input string) (Reply, error) {
	return s.locked(ctx, key, func(ctx workflow.Context) (Reply, error) {
		state, pending, err := s.current(ctx, key)
		if err != nil {
			return Reply{}, err
		}
		if pending == nil {
			return s.refuse(ctx, &workflow.InvalidResumeError{Reason: "session is not awaiting input"})
		}
		return s.resume(ctx, key, state, pending, token, input)
	})
}

// State returns the stored conversation state, or a new one for a key that
// has none.
func (s *Session) State(ctx context.Context, key Key) (conversation.State, error) {
	if err := key.Validate(); err != nil {
		return conversation.State{}, err
	}
	cp, err := workflow.LatestCheckpoint(ctx, s.store, key.String())
	if err != nil {
		return conversation.State{}, fmt.Errorf("load session %s: %w", key, err)
	}
	if cp == nil {
		return conversation.New(s.historySize), nil
	}
	state, err := workflow.DecodeState[conversation.State](cp)
	if err != nil {
		return conversation.State{}, fmt.Errorf("decode session %s: %w", key, err)
	}
	return settle(state, pendingOf(cp)), nil
}

// Keys lists the conversations in the store, sorted.
func (s *Session) Keys(ctx context.Context) ([]Key, error) {
	raw, err := s.store.Keys(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	keys := make([]Key, 0, len(raw))
	for _, k := range raw {
		user, room, ok := strings.Cut(k, ":")
		if !ok {
			continue
		}
		keys = append(keys, Key{UserID: user, RoomID: room})
	}
	slices.SortFunc(keys, func(a, b Key) int { return strings.Compare(a.String(), b.String()) })
	return keys, nil
}

// Reset forgets the conversation.
func (s *Session) Reset(ctx context.Context, key Key) error {
	_, err := s.locked(ctx, key, func(ctx workflow.Context) (Reply, error) {
		if err := s.store.DeleteKey(ctx, key.String()); err != nil {
			return Reply{}, fmt.Errorf("reset session %s: %w", key, err)
		}
		ctx.Logger().Info("session reset")
		return Reply{}, nil
	})
	return err
}

// locked runs fn holding the key's lock, under the turn timeout.
func (s *Session) locked(ctx context.Context, key Key, fn func(ctx workflow.Context) (Reply, error)) (Reply, error) {
	if err := key.Validate(); err != nil {
		return Reply{}, err
	}

	release, err := s.lock(ctx, key.String())
	if err != nil {
		return Reply{}, err
	}
	defer release()

	if s.turnTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.turnTimeout)
		defer cancel()
	}
	logger := s.logger.With(slog.String("session_key", key.String()))
	return fn(workflow.NewContext(ctx, workflow.WithLogger(logger)))
}

func (s *Session) lock(ctx context.Context, key string) (func(), error) {
	unlockLocal, err := s.locks.lock(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("lock session %s: %w", key, err)
	}
	if s.locker == nil {
		return unlockLocal, nil
	}

	unlock, err := s.locker.Lock(ctx, key, s.lockTTL)
	if err != nil {
		unlockLocal()
		return nil, fmt.Errorf("lock session %s: %w", key, err)
	}
	return func() {
		if err := unlock(context.WithoutCancel(ctx)); err != nil {
			s.logger.Warn("session lock release failed",
				slog.String("session_key", key),
				slog.String("error", err.Error()),
			)
		}
		unlockLocal()
	}, nil
}

// current loads the latest state of key and the question it is waiting on,
// if any. A turn that stopped between nodes is run to its end first.
func (s *Session) current(ctx workflow.Context, key Key) (conversation.State, *workflow.Pending, error) {
	cp, err := workflow.LatestCheckpoint(ctx, s.store, key.String())
	if err != nil {
		return conversation.State{}, nil, fmt.Errorf("load session %s: %w", key, err)
	}
	if cp == nil {
		return conversation.New(s.historySize), nil, nil
	}

	if cp.Status == checkpoint.StatusRunning {
		ctx.Logger().Info("finishing interrupted turn", slog.String("next_node", cp.NextNode))
		res, err := s.graph.Recover(ctx, s.store, key.String(), s.runOptions(key)...)
		if err != nil {
			return conversation.State{}, nil, fmt.Errorf("recover session %s: %w", key, err)
		}
		return settle(res.State, res.Pending), res.Pending, nil
	}

	state, err := workflow.DecodeState[conversation.State](cp)
	if errors.Is(err, conversation.ErrVersionMismatch) {
		ctx.Logger().Warn("discarding session state of another version", slog.String("error", err.Error()))
		return conversation.New(s.historySize), nil, nil
	}
	if err != nil {
		return conversation.State{}, nil, fmt.Errorf("decode session %s: %w", key, err)
	}
	pending := pendingOf(cp)
	return settle(state, pending), pending, nil
}

func pendingOf(cp *checkpoint.Checkpoint) *workflow.Pending {
	if cp.Suspended() {
		return cp.Pending
	}
	return nil
}

// settle marks whether the turn waits at an interrupt node. It is the only
// writer of AwaitingFeedback.
func settle(state conversation.State, pending *workflow.Pending) conversation.State {
	state.AwaitingFeedback = pending != nil
	return state
}

func (s *Session) run(ctx workflow.Context, key Key, state conversation.State) (Reply, error) {
	res, err := s.graph.Run(ctx, state, s.checkpointed(key)...)
	if err != nil {
		return Reply{}, fmt.Errorf("run turn for %s: %w", key, err)
	}
	return s.reply(res), nil
}

func (s *Session) resume(ctx workflow.Context, key Key, state conversation.State, pending *workflow.Pending, token, input string) (Reply, error) {
	res, err := s.graph.Resume(ctx, state, pending, token, input, s.checkpointed(key)...)
	var invalid *workflow.InvalidResumeError
	if errors.As(err, &invalid) {
		return s.refuse(ctx, invalid)
	}
	if err != nil {
		return Reply{}, fmt.Errorf("resume turn for %s: %w", key, err)
	}
	return s.reply(res), nil
}

func (s *Session) refuse(ctx workflow.Context, err *workflow.InvalidResumeError) (Reply, error) {
	ctx.Logger().Warn("resume refused", slog.String("error", err.Error()))
	return Reply{
		Answer: s.prompts.Text(prompt.InvalidResume),
		Error:  err.Error(),
	}, err
}

func (s *Session) runOptions(key Key) []workflow.RunOption {
	opts := []workflow.RunOption{
		workflow.WithObservabilityLogger(s.logger.With(slog.String("session_key", key.String()))),
		workflow.WithMetrics(s.metrics),
	}
	if s.nodeTimeout > 0 {
		opts = append(opts, workflow.WithNodeTimeout(s.nodeTimeout))
	}
	if s.spans != nil {
		opts = append(opts, workflow.WithTracing(s.spans))
	}
	return opts
}

// checkpointed adds fatal checkpointing: a turn that cannot be saved is
// reported rather than answered.
func (s *Session) checkpointed(key Key) []workflow.RunOption {
	return append(s.runOptions(key),
		workflow.WithCheckpointing(s.store, key.String()),
		workflow.WithCheckpointFailureFatal(),
	)
}

func (s *Session) reply(res workflow.Result[conversation.State]) Reply {
	st := settle(res.State, res.Pending)
	r := Reply{
		Answer:   st.Answer,
		Awaiting: st.AwaitingFeedback,
		Mode:     st.Mode,
		Intent:   st.Intent,
		Result:   st.CalculatedResult,
		Error:    st.Error,
	}
	if st.AwaitingFeedback {
		r.Prompt = res.Pending.Prompt
		r.Token = res.Pending.Token
		r.Answer = res.Pending.Prompt
		r.Result = nil
	}
	return r
}
