// Package intent maps free text onto closed label sets.
//
// A LabelSet is an ordered list of labels whose last entry is the catch-all
// default. Model output is turned into a label by a fixed cascade (exact
// name, then synonym containment, then the default), so a label set never
// yields anything outside itself.
package intent

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"

	"github.com/randalmurphal/finflow/pkg/finbot/config"
)

// Names of the built-in label sets in config.Tables.
const (
	SetIntent            = "intent"
	SetRecommendCategory = "recommend_category"
	SetSlotCategory      = "slot_category"
	SetFeedback          = "feedback"
)

// Label is one member of a label set.
type Label string

// Match names the cascade step that produced a label.
type Match string

const (
	MatchExact   Match = "exact"
	MatchSynonym Match = "synonym"
	MatchDefault Match = "default"
)

// ErrInvalidLabelSet indicates a label table that cannot be used.
var ErrInvalidLabelSet = errors.New("invalid label set")

type labelDef struct {
	name        Label
	folded      string
	description string
	synonyms    []string // folded
}

// LabelSet is an ordered, closed set of labels. It is immutable and safe
// for concurrent use.
type LabelSet struct {
	name   string
	labels []labelDef
}

// NewLabelSet builds a label set from its table. Empty sets, unnamed labels
// and duplicate labels are rejected.
func NewLabelSet(name string, table config.LabelSetTable) (*LabelSet, error) {
	if len(table.Labels) == 0 {
		return nil, fmt.Errorf("%w: %s has no labels", ErrInvalidLabelSet, name)
	}

	fold := cases.Fold()
	set := &LabelSet{name: name, labels: make([]labelDef, 0, len(table.Labels))}
	seen := make(map[string]bool, len(table.Labels))
	var errs []error
	for i, lt := range table.Labels {
		n := strings.TrimSpace(lt.Name)
		if n == "" {
			errs = append(errs, fmt.Errorf("%w: %s label %d has no name", ErrInvalidLabelSet, name, i))
			continue
		}
		folded := fold.String(n)
		if seen[folded] {
			errs = append(errs, fmt.Errorf("%w: %s label %s declared twice", ErrInvalidLabelSet, name, n))
			continue
		}
		seen[folded] = true

		def := labelDef{name: Label(n), folded: folded, description: lt.Description}
		def.synonyms = append(def.synonyms, folded)
		for _, syn := range lt.Synonyms {
			if s := fold.String(strings.TrimSpace(syn)); s != "" {
				def.synonyms = append(def.synonyms, s)
			}
		}
		set.labels = append(set.labels, def)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return set, nil
}

// Name returns the set's name.
func (s *LabelSet) Name() string { return s.name }

// Labels returns the labels in order.
func (s *LabelSet) Labels() []Label {
	out := make([]Label, len(s.labels))
	for i, l := range s.labels {
		out[i] = l.name
	}
	return out
}

// Default returns the catch-all label, the last one of the set.
func (s *LabelSet) Default() Label {
	return s.labels[len(s.labels)-1].name
}

// Contains reports whether l belongs to the set.
func (s *LabelSet) Contains(l Label) bool {
	for _, def := range s.labels {
		if def.name == l {
			return true
		}
	}
	return false
}

// Description returns the description of l shown to the model.
func (s *LabelSet) Description(l Label) string {
	for _, def := range s.labels {
		if def.name == l {
			return def.description
		}
	}
	return ""
}

// Normalize maps raw text onto the set.
func (s *LabelSet) Normalize(raw string) Label {
	l, _ := s.Match(raw)
	return l
}

// Match maps raw text onto the set and reports which step matched:
// an exact name (case-insensitive, surrounding quotes, punctuation and
// whitespace ignored), else the label with the longest synonym contained
// in the text (ties go to the earlier label), else the default.
func (s *LabelSet) Match(raw string) (Label, Match) {
	text := cases.Fold().String(trim(raw))
	if text == "" {
		return s.Default(), MatchDefault
	}

	for _, def := range s.labels {
		if def.folded == text {
			return def.name, MatchExact
		}
	}

	best, bestLen := -1, 0
	for i, def := range s.labels {
		for _, syn := range def.synonyms {
			n := utf8.RuneCountInString(syn)
			if n > bestLen && strings.Contains(text, syn) {
				best, bestLen = i, n
			}
		}
	}
	if best >= 0 {
		return s.labels[best].name, MatchSynonym
	}
	return s.Default(), MatchDefault
}

func trim(raw string) string {
	return strings.TrimFunc(raw, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r) || unicode.IsSymbol(r)
	})
}

// Sets holds the built-in label sets.
type Sets struct {
	Intents             *LabelSet
	RecommendCategories *LabelSet
	SlotCategories      *LabelSet
	Feedback            *LabelSet
}

// NewSets builds the built-in label sets from tables.
func NewSets(tables config.Tables) (Sets, error) {
	var errs []error
	build := func(name string) *LabelSet {
		table, ok := tables.LabelSets[name]
		if !ok {
			errs = append(errs, fmt.Errorf("%w: %s is not defined", ErrInvalidLabelSet, name))
			return nil
		}
		set, err := NewLabelSet(name, table)
		if err != nil {
			errs = append(errs, err)
		}
		return set
	}

	sets := Sets{
		Intents:             build(SetIntent),
		RecommendCategories: build(SetRecommendCategory),
		SlotCategories:      build(SetSlotCategory),
		Feedback:            build(SetFeedback),
	}
	if err := errors.Join(errs...); err != nil {
		return Sets{}, err
	}
	return sets, nil
}

// DefaultSets returns the sets built from config.DefaultTables. It panics
// if the compiled-in tables are invalid.
func DefaultSets() Sets {
	sets, err := NewSets(config.DefaultTables())
	if err != nil {
		panic(fmt.Sprintf("intent: default tables: %v", err))
	}
	return sets
}
