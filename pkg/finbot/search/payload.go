package search

import (
	"encoding/json"
	"strconv"
)

// Payload is the product record stored with an indexed document.
// Accessors return the given default when the key is missing or the value
// cannot be converted, so callers never type-switch on catalog data.
type Payload map[string]any

// Well-known payload keys of the product catalog.
const (
	KeyCategory = "상품카테고리"
	KeyCode     = "금융상품코드"
	KeyName     = "금융상품명"
	KeyCompany  = "금융회사명"
	KeyOptions  = "옵션"
	KeyText     = "text"
)

// String returns the string value for key, or defaultVal if missing or not
// a string.
func (p Payload) String(key, defaultVal string) string {
	if s, ok := p[key].(string); ok {
		return s
	}
	return defaultVal
}

// Int returns the integer value for key, or defaultVal if missing or not
// convertible.
//
// Accepts:
//   - int, int64: used directly
//   - float64: only if there is no fractional part
//   - json.Number and numeric strings: parsed
func (p Payload) Int(key string, defaultVal int64) int64 {
	switch v := p[key].(type) {
	case int:
		return int64(v)
	case int64:
		return v
	case float64:
		if v == float64(int64(v)) {
			return int64(v)
		}
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n
		}
	case string:
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return defaultVal
}

// Float returns the float64 value for key, or defaultVal if missing or not
// convertible.
func (p Payload) Float(key string, defaultVal float64) float64 {
	switch v := p[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return f
		}
	case string:
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

// Any returns the raw value for key, or defaultVal if missing.
func (p Payload) Any(key string, defaultVal any) any {
	v, ok := p[key]
	if !ok {
		return defaultVal
	}
	return v
}

// Has returns true if the key exists.
func (p Payload) Has(key string) bool {
	_, ok := p[key]
	return ok
}

// Records returns a list of nested records, such as the option list of a
// product. Elements that are not records are skipped; a missing or
// non-list value returns nil.
func (p Payload) Records(key string) []map[string]any {
	switch v := p[key].(type) {
	case []map[string]any:
		return v
	case []any:
		out := make([]map[string]any, 0, len(v))
		for _, item := range v {
			if m, ok := item.(map[string]any); ok {
				out = append(out, m)
			}
		}
		return out
	}
	return nil
}

// Base returns the scalar fields of the payload: everything except the
// option list and the indexed text.
func (p Payload) Base() map[string]any {
	out := make(map[string]any, len(p))
	for k, v := range p {
		if k == KeyOptions || k == KeyText {
			continue
		}
		out[k] = v
	}
	return out
}
