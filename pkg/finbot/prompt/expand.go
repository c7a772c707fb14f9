package prompt

import (
	"fmt"
	"regexp"
	"strings"
)

// placeholder matches ${name}; name is an ASCII identifier.
var placeholder = regexp.MustCompile(`\$\{([a-zA-Z_][a-zA-Z0-9_]*)\}`)

// MissingAction specifies how to handle missing variables.
type MissingAction int

const (
	// MissingError returns an error when a variable is not found.
	// This is the default.
	MissingError MissingAction = iota

	// MissingKeep keeps the placeholder as-is.
	MissingKeep

	// MissingEmpty replaces the placeholder with an empty string.
	MissingEmpty
)

// Expander replaces ${name} placeholders. It is safe for concurrent use.
type Expander struct {
	missing MissingAction
}

// NewExpander creates an expander with the given missing-variable policy.
func NewExpander(missing MissingAction) *Expander {
	return &Expander{missing: missing}
}

// Expand replaces every placeholder of s with the matching value of vars,
// formatted with %v. Errors are only returned with MissingError.
func (e *Expander) Expand(s string, vars map[string]any) (string, error) {
	var missing []string
	out := placeholder.ReplaceAllStringFunc(s, func(match string) string {
		name := match[2 : len(match)-1]
		if v, ok := vars[name]; ok {
			return fmt.Sprint(v)
		}
		switch e.missing {
		case MissingEmpty:
			return ""
		case MissingError:
			missing = append(missing, name)
		}
		return match
	})
	if len(missing) > 0 {
		return out, &UndefinedVariableError{Names: missing}
	}
	return out, nil
}

// Variables returns the placeholder names of s in order of appearance,
// without duplicates.
func Variables(s string) []string {
	var names []string
	seen := make(map[string]bool)
	for _, m := range placeholder.FindAllStringSubmatch(s, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			names = append(names, m[1])
		}
	}
	return names
}

// UndefinedVariableError is returned when one or more variables are not
// found.
type UndefinedVariableError struct {
	Names []string
}

// Error implements the error interface.
func (e *UndefinedVariableError) Error() string {
	if len(e.Names) == 1 {
		return fmt.Sprintf("undefined variable: %s", e.Names[0])
	}
	return fmt.Sprintf("undefined variables: %s", strings.Join(e.Names, ", "))
}
