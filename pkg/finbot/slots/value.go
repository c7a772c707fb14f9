package slots

import (
	"errors"
	"maps"
	"strconv"
	"strings"
)

// Value is a normalized slot value. Money and months are held in Amount,
// rates in Rate (percent, e.g. 2.78) and text in Text.
type Value struct {
	Kind   Kind    `json:"kind"`
	Amount int64   `json:"amount,omitempty"`
	Rate   float64 `json:"rate,omitempty"`
	Text   string  `json:"text,omitempty"`
}

// Money returns a money value in won.
func Money(won int64) *Value { return &Value{Kind: KindMoney, Amount: won} }

// Rate returns a rate value in percent.
func Rate(percent float64) *Value { return &Value{Kind: KindRate, Rate: percent} }

// Months returns a term value.
func Months(n int) *Value { return &Value{Kind: KindMonths, Amount: int64(n)} }

// Text returns a text value.
func Text(s string) *Value { return &Value{Kind: KindText, Text: s} }

// Empty reports whether the value leaves its field unsatisfied: a nil value
// or blank text.
func (v *Value) Empty() bool {
	if v == nil {
		return true
	}
	return v.Kind == KindText && strings.TrimSpace(v.Text) == ""
}

// String renders the value the way it is shown to the extraction call.
func (v *Value) String() string {
	if v == nil {
		return ""
	}
	switch v.Kind {
	case KindMoney, KindMonths:
		return strconv.FormatInt(v.Amount, 10)
	case KindRate:
		return strconv.FormatFloat(v.Rate, 'f', -1, 64)
	default:
		return v.Text
	}
}

// Any returns the plain Go value: int64 for money and months, float64 for
// rates, string for text and nil for a nil value.
func (v *Value) Any() any {
	if v == nil {
		return nil
	}
	switch v.Kind {
	case KindMoney, KindMonths:
		return v.Amount
	case KindRate:
		return v.Rate
	default:
		return v.Text
	}
}

// Set maps field names to values; a nil value is an unfilled field.
type Set map[string]*Value

// NewSet returns a set with every field of schema present and unfilled.
func NewSet(schema Schema) Set {
	s := make(Set, len(schema.fields))
	for _, f := range schema.fields {
		s[f.Name] = nil
	}
	return s
}

// Filled reports whether name holds a non-empty value.
func (s Set) Filled(name string) bool {
	return !s[name].Empty()
}

// Missing returns the fields of required that still need an answer, in
// order. Optional fields are never missing.
func (s Set) Missing(required []string, schema Schema) []string {
	var out []string
	for _, name := range required {
		if schema.IsOptional(name) || s.Filled(name) {
			continue
		}
		out = append(out, name)
	}
	return out
}

// Clone returns a copy that shares no values with s.
func (s Set) Clone() Set {
	if s == nil {
		return nil
	}
	out := make(Set, len(s))
	for k, v := range s {
		if v != nil {
			cp := *v
			v = &cp
		}
		out[k] = v
	}
	return out
}

// ToMap returns the plain values keyed by field name, nil for unfilled
// fields.
func (s Set) ToMap() map[string]any {
	out := make(map[string]any, len(s))
	for k, v := range s {
		out[k] = v.Any()
	}
	return out
}

// Merge returns a copy of s with updates normalized into the fields of
// schema that are still unfilled. Filled fields are never changed, unknown
// keys and null values are ignored. The names of newly filled fields are
// returned in schema order; a value that fails to normalize is skipped and
// reported in the joined error.
func (s Set) Merge(schema Schema, updates map[string]any) (Set, []string, error) {
	out := s.Clone()
	if out == nil {
		out = make(Set, len(schema.fields))
	}

	var filled []string
	var errs []error
	for _, f := range schema.fields {
		if out.Filled(f.Name) {
			continue
		}
		if _, present := out[f.Name]; !present {
			out[f.Name] = nil
		}
		raw, ok := updates[f.Name]
		if !ok || raw == nil {
			continue
		}
		v, err := Normalize(f, raw)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if v.Empty() {
			continue
		}
		out[f.Name] = v
		filled = append(filled, f.Name)
	}
	return out, filled, errors.Join(errs...)
}

// Prefill builds a set for schema from a product's base fields and the
// option chosen by the schema's rank rules. Option values take precedence
// over base values; values that fail to normalize are left unfilled.
func Prefill(schema Schema, base map[string]any, options []map[string]any) Set {
	merged := maps.Clone(base)
	if merged == nil {
		merged = make(map[string]any)
	}
	if chosen, ok := schema.Rank(options); ok {
		for k, v := range chosen {
			if v != nil {
				merged[k] = v
			}
		}
	}
	out, _, _ := NewSet(schema).Merge(schema, merged)
	return out
}
