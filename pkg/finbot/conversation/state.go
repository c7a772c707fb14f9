// Package conversation defines the state threaded through one turn of the
// finance assistant.
//
// State is a closed, versioned record: every field the graph reads or
// writes is declared here and persisted as JSON in checkpoints. A state
// written by a different Version is rejected on load rather than guessed at.
package conversation

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/randalmurphal/finflow/pkg/finbot/calc"
	"github.com/randalmurphal/finflow/pkg/finbot/history"
	"github.com/randalmurphal/finflow/pkg/finbot/search"
	"github.com/randalmurphal/finflow/pkg/finbot/slots"
)

// Version is the current state format version.
const Version = 1

// ErrVersionMismatch indicates a persisted state of another format version.
var ErrVersionMismatch = errors.New("conversation state version mismatch")

// Mode is how a turn opens.
type Mode string

const (
	ModeFirstHello     Mode = "first_hello"
	ModeReturningHello Mode = "returning_hello"
	ModeActive         Mode = "active"
)

// Intent is what the user wants from an active turn.
type Intent string

const (
	IntentRecommend Intent = "recommend"
	IntentCalculate Intent = "calculate"
	IntentExplain   Intent = "explain"
	IntentChat      Intent = "chat"
)

// RecommendCategory narrows a recommendation search.
type RecommendCategory string

const (
	RecommendDeposit RecommendCategory = "fixed_deposit"
	RecommendSavings RecommendCategory = "installment_deposit"
	RecommendLoan    RecommendCategory = "jeonse_loan"
	RecommendAny     RecommendCategory = "all"
)

// Feedback is the user's answer to the offer to calculate a recommendation.
type Feedback string

const (
	FeedbackYes Feedback = "yes"
	FeedbackNo  Feedback = "no"
)

// ProductSnapshot is the most recently recommended product.
type ProductSnapshot struct {
	// Category is the catalog category, e.g. "전세자금대출".
	Category string           `json:"category"`
	Code     string           `json:"code"`
	Name     string           `json:"name"`
	Company  string           `json:"company,omitempty"`
	Base     map[string]any   `json:"base,omitempty"`
	Options  []map[string]any `json:"options,omitempty"`
}

// SnapshotFromPayload captures a search hit's product record.
func SnapshotFromPayload(p search.Payload) *ProductSnapshot {
	return &ProductSnapshot{
		Category: p.String(search.KeyCategory, ""),
		Code:     p.String(search.KeyCode, ""),
		Name:     p.String(search.KeyName, ""),
		Company:  p.String(search.KeyCompany, ""),
		Base:     p.Base(),
		Options:  p.Records(search.KeyOptions),
	}
}

// State is the conversation state of one session.
type State struct {
	Version int `json:"version"`

	Visited           bool              `json:"visited"`
	Mode              Mode              `json:"mode,omitempty"`
	Intent            Intent            `json:"intent,omitempty"`
	RecommendCategory RecommendCategory `json:"recommend_category,omitempty"`
	Feedback          Feedback          `json:"feedback,omitempty"`

	PendingQuery string `json:"pending_query,omitempty"`
	Answer       string `json:"answer,omitempty"`

	// AwaitingFeedback is true iff the turn is suspended at an interrupt
	// node. It is derived from the stored pending point when a session
	// loads or finishes a turn and is never persisted, so it cannot
	// disagree with the checkpoint.
	AwaitingFeedback bool `json:"-"`

	Product *ProductSnapshot `json:"product,omitempty"`

	SlotCategory     slots.Category `json:"slot_category,omitempty"`
	SlotSet          slots.Set      `json:"slot_set,omitempty"`
	RequiredFields   []string       `json:"required_fields,omitempty"`
	CalculatedResult *calc.Result   `json:"calculated_result,omitempty"`
	Reprompt         bool           `json:"reprompt,omitempty"`

	History history.Window `json:"history"`

	Error     string `json:"error,omitempty"`
	ErrorNode string `json:"error_node,omitempty"`
}

// New returns the state of a session that has never been seen.
func New(historySize int) State {
	return State{
		Version: Version,
		History: history.New(historySize),
	}
}

// BeginTurn clears everything a previous turn left behind and sets the
// message of the new turn. Visited and History carry over.
func (s State) BeginTurn(message string) State {
	return State{
		Version:      Version,
		Visited:      s.Visited,
		History:      s.History,
		PendingQuery: message,
	}
}

// Failed reports whether the turn ended on the degraded path.
func (s State) Failed() bool {
	return s.Error != ""
}

// Validate checks the invariants a state must hold between turns.
func (s State) Validate() error {
	var errs []error
	if s.Version != Version {
		errs = append(errs, fmt.Errorf("%w: got %d, expected %d", ErrVersionMismatch, s.Version, Version))
	}
	if s.SlotCategory != "" && s.SlotCategory != slots.Unknown && !s.SlotCategory.Known() {
		errs = append(errs, fmt.Errorf("unknown slot category %q", s.SlotCategory))
	}
	return errors.Join(errs...)
}

// stateJSON breaks the UnmarshalJSON recursion.
type stateJSON State

// UnmarshalJSON decodes a state and rejects other format versions.
func (s *State) UnmarshalJSON(data []byte) error {
	var raw stateJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Version != Version {
		return fmt.Errorf("%w: got %d, expected %d", ErrVersionMismatch, raw.Version, Version)
	}
	*s = State(raw)
	return nil
}
