package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/randalmurphal/finflow/pkg/finbot/slots"
)

// ValidateRecord parses raw model output as a JSON object and validates it
// against the schema's JSON schema. A surrounding ``` or ```json fence is
// tolerated. Numbers are returned as json.Number.
func ValidateRecord(raw string, schema slots.Schema) (map[string]any, error) {
	body := stripFence(raw)
	if body == "" {
		return nil, &MalformedError{Raw: raw, Reason: "empty output"}
	}

	dec := json.NewDecoder(strings.NewReader(body))
	dec.UseNumber()
	var record map[string]any
	if err := dec.Decode(&record); err != nil {
		return nil, &MalformedError{Raw: raw, Reason: "not a JSON object", Err: err}
	}
	if record == nil {
		return nil, &MalformedError{Raw: raw, Reason: "not a JSON object"}
	}

	schemaJSON, err := json.Marshal(schema.JSONSchema())
	if err != nil {
		return nil, fmt.Errorf("encode schema: %w", err)
	}
	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schemaJSON),
		gojsonschema.NewBytesLoader([]byte(body)),
	)
	if err != nil {
		return nil, &MalformedError{Raw: raw, Reason: "schema validation failed", Err: err}
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, &MalformedError{Raw: raw, Reason: strings.Join(msgs, "; ")}
	}
	return record, nil
}

func stripFence(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimSuffix(strings.TrimPrefix(s, "```"), "```")
	if i := strings.IndexAny(s, "{\n"); i >= 0 && s[i] == '\n' {
		s = s[i+1:]
	} else if i >= 0 {
		s = s[i:]
	}
	return strings.TrimSpace(s)
}
