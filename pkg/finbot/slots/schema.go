// Package slots describes the inputs a calculator needs and how user
// answers are turned into them.
//
// A Schema lists the fields of one calculator category in prompt order,
// marks the ones that never trigger a question, and carries the rule used to
// pick a single option out of a recommended product's option list. A Set holds
// the values collected so far; merging into a Set never changes a field
// that is already filled.
package slots

import (
	"errors"
	"fmt"
	"slices"
	"sort"
)

// Category is a calculator category.
type Category string

const (
	FixedDeposit       Category = "fixed_deposit"
	InstallmentDeposit Category = "installment_deposit"
	JeonseLoan         Category = "jeonse_loan"
	Unknown            Category = "unknown"
)

// Known reports whether c names a calculator.
func (c Category) Known() bool {
	switch c {
	case FixedDeposit, InstallmentDeposit, JeonseLoan:
		return true
	}
	return false
}

// Kind is the value type of a field.
type Kind string

const (
	KindMoney  Kind = "money"
	KindRate   Kind = "rate"
	KindMonths Kind = "months"
	KindText   Kind = "text"
)

func (k Kind) valid() bool {
	switch k {
	case KindMoney, KindRate, KindMonths, KindText:
		return true
	}
	return false
}

// Field is one slot of a schema.
type Field struct {
	Name        string
	Kind        Kind
	Optional    bool
	Description string
}

// RankRule is one step of option ranking. Options are compared on Field;
// Descending puts the largest value first.
type RankRule struct {
	Field      string
	Descending bool
}

// ErrInvalidSchema indicates a schema definition that cannot be used.
var ErrInvalidSchema = errors.New("invalid slot schema")

// Schema is the slot definition of one category. The zero value has no
// fields.
type Schema struct {
	category Category
	fields   []Field
	index    map[string]int
	rank     []RankRule
}

// NewSchema validates and builds a schema. Field names must be unique and
// non-empty, kinds must be known and rank rules must name fields.
func NewSchema(category Category, fields []Field, rank []RankRule) (Schema, error) {
	var errs []error
	index := make(map[string]int, len(fields))

	if !category.Known() {
		errs = append(errs, fmt.Errorf("%w: unknown category %q", ErrInvalidSchema, category))
	}
	if len(fields) == 0 {
		errs = append(errs, fmt.Errorf("%w: %s has no fields", ErrInvalidSchema, category))
	}
	for i, f := range fields {
		switch {
		case f.Name == "":
			errs = append(errs, fmt.Errorf("%w: %s field %d has no name", ErrInvalidSchema, category, i))
			continue
		case !f.Kind.valid():
			errs = append(errs, fmt.Errorf("%w: %s field %s has unknown kind %q", ErrInvalidSchema, category, f.Name, f.Kind))
		}
		if _, dup := index[f.Name]; dup {
			errs = append(errs, fmt.Errorf("%w: %s field %s declared twice", ErrInvalidSchema, category, f.Name))
			continue
		}
		index[f.Name] = i
	}
	for _, r := range rank {
		if _, ok := index[r.Field]; !ok {
			errs = append(errs, fmt.Errorf("%w: %s rank rule names unknown field %s", ErrInvalidSchema, category, r.Field))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return Schema{}, err
	}

	return Schema{
		category: category,
		fields:   slices.Clone(fields),
		index:    index,
		rank:     slices.Clone(rank),
	}, nil
}

// Category returns the category the schema belongs to.
func (s Schema) Category() Category { return s.category }

// Fields returns the fields in declaration order.
func (s Schema) Fields() []Field { return slices.Clone(s.fields) }

// FieldNames returns every field name in declaration order.
func (s Schema) FieldNames() []string {
	names := make([]string, len(s.fields))
	for i, f := range s.fields {
		names[i] = f.Name
	}
	return names
}

// Required returns the names of the fields that must be filled before the
// calculator can run.
func (s Schema) Required() []string {
	var names []string
	for _, f := range s.fields {
		if !f.Optional {
			names = append(names, f.Name)
		}
	}
	return names
}

// Field looks up a field by name.
func (s Schema) Field(name string) (Field, bool) {
	i, ok := s.index[name]
	if !ok {
		return Field{}, false
	}
	return s.fields[i], true
}

// IsOptional reports whether name is a field that is never asked for.
// Names outside the schema are treated as optional.
func (s Schema) IsOptional(name string) bool {
	f, ok := s.Field(name)
	return !ok || f.Optional
}

// Rank picks the single best option according to the rank rules. Options
// are compared rule by rule; an option lacking a usable value for a rule's
// field sorts after those that have one, and remaining ties keep list
// order. Returns false for an empty list.
func (s Schema) Rank(options []map[string]any) (map[string]any, bool) {
	if len(options) == 0 {
		return nil, false
	}

	type candidate struct {
		option map[string]any
		keys   []rankKey
	}
	candidates := make([]candidate, len(options))
	for i, opt := range options {
		keys := make([]rankKey, len(s.rank))
		for j, r := range s.rank {
			keys[j] = s.rankKey(r.Field, opt[r.Field])
		}
		candidates[i] = candidate{option: opt, keys: keys}
	}

	sort.SliceStable(candidates, func(a, b int) bool {
		for j, r := range s.rank {
			ka, kb := candidates[a].keys[j], candidates[b].keys[j]
			if c := ka.compare(kb, r.Descending); c != 0 {
				return c < 0
			}
		}
		return false
	})
	return candidates[0].option, true
}

type rankKey struct {
	ok  bool
	num float64
	str string
}

// compare orders usable keys before unusable ones, then by value.
func (k rankKey) compare(o rankKey, descending bool) int {
	switch {
	case k.ok && !o.ok:
		return -1
	case !k.ok && o.ok:
		return 1
	case !k.ok && !o.ok:
		return 0
	}
	c := 0
	switch {
	case k.num < o.num || (k.num == o.num && k.str < o.str):
		c = -1
	case k.num > o.num || (k.num == o.num && k.str > o.str):
		c = 1
	}
	if descending {
		c = -c
	}
	return c
}

func (s Schema) rankKey(name string, raw any) rankKey {
	f, ok := s.Field(name)
	if !ok || raw == nil {
		return rankKey{}
	}
	v, err := Normalize(f, raw)
	if err != nil || v.Empty() {
		return rankKey{}
	}
	switch v.Kind {
	case KindMoney, KindMonths:
		return rankKey{ok: true, num: float64(v.Amount)}
	case KindRate:
		return rankKey{ok: true, num: v.Rate}
	default:
		return rankKey{ok: true, str: v.Text}
	}
}

// JSONSchema returns the JSON schema an extracted record must satisfy.
// Numeric fields also accept strings so that phrases such as "2천만원" can
// be normalized afterwards; every field may be null.
func (s Schema) JSONSchema() map[string]any {
	props := make(map[string]any, len(s.fields))
	for _, f := range s.fields {
		var types []any
		switch f.Kind {
		case KindMoney, KindMonths:
			types = []any{"integer", "string", "null"}
		case KindRate:
			types = []any{"number", "string", "null"}
		default:
			types = []any{"string", "null"}
		}
		prop := map[string]any{"type": types}
		if f.Description != "" {
			prop["description"] = f.Description
		}
		props[f.Name] = prop
	}
	return map[string]any{
		"type":                 "object",
		"properties":           props,
		"additionalProperties": false,
	}
}
