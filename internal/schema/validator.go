// Package schema validates LLM output against JSON Schemas. Model output
// is treated as hostile input: prose wrappers, markdown fences, and shape
// violations are all expected failure modes, not exceptions.
package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// FailureKind classifies why validation failed.
type FailureKind string

const (
	// KindNoJSON means no JSON value could be located in the text.
	KindNoJSON FailureKind = "no_json"
	// KindMalformed means a JSON-looking region was found but did not parse.
	KindMalformed FailureKind = "malformed_json"
	// KindSchemaViolation means the JSON parsed but violated the schema.
	KindSchemaViolation FailureKind = "schema_violation"
)

// ValidationError reports a failed extraction or validation with enough
// detail to feed back into a retry prompt.
type ValidationError struct {
	Kind   FailureKind
	Detail string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("output validation: %s: %s", e.Kind, e.Detail)
}

// Validator compiles and caches a single JSON Schema.
type Validator struct {
	compiled *jsonschema.Schema
}

// Compile builds a Validator from raw JSON Schema text.
func Compile(name string, schemaJSON []byte) (*Validator, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	if err := c.AddResource(name, strings.NewReader(string(schemaJSON))); err != nil {
		return nil, fmt.Errorf("add schema %s: %w", name, err)
	}
	compiled, err := c.Compile(name)
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", name, err)
	}
	return &Validator{compiled: compiled}, nil
}

// ExtractAndValidate locates a JSON value inside raw model output,
// parses it, and checks it against the schema. On success it returns the
// canonical JSON bytes of the extracted value.
func (v *Validator) ExtractAndValidate(text string) (json.RawMessage, error) {
	candidate, ok := extractJSON(text)
	if !ok {
		return nil, &ValidationError{Kind: KindNoJSON, Detail: "no JSON object or array found in output"}
	}

	var parsed any
	dec := json.NewDecoder(strings.NewReader(candidate))
	dec.UseNumber()
	if err := dec.Decode(&parsed); err != nil {
		return nil, &ValidationError{Kind: KindMalformed, Detail: err.Error()}
	}

	if err := v.compiled.Validate(parsed); err != nil {
		detail := err.Error()
		var verr *jsonschema.ValidationError
		if errors.As(err, &verr) {
			detail = flattenValidationError(verr)
		}
		return nil, &ValidationError{Kind: KindSchemaViolation, Detail: detail}
	}

	canonical, err := json.Marshal(parsed)
	if err != nil {
		return nil, &ValidationError{Kind: KindMalformed, Detail: err.Error()}
	}
	return canonical, nil
}

// extractJSON finds the most plausible JSON value in model output.
// It prefers fenced code blocks, then falls back to the outermost
// brace-balanced region.
func extractJSON(text string) (string, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", false
	}

	if fenced, ok := extractFenced(text); ok {
		text = fenced
	}

	start := strings.IndexAny(text, "{[")
	if start < 0 {
		return "", false
	}
	end := matchBracket(text, start)
	if end < 0 {
		// Unbalanced: hand the remainder to the parser so the caller
		// gets a malformed error with a position, not a vague no_json.
		return text[start:], true
	}
	return text[start : end+1], true
}

// extractFenced returns the body of the first ``` code fence, tolerating
// a language tag such as ```json.
func extractFenced(text string) (string, bool) {
	open := strings.Index(text, "```")
	if open < 0 {
		return "", false
	}
	rest := text[open+3:]
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		// Drop the language tag line if present.
		tag := strings.TrimSpace(rest[:nl])
		if tag == "" || !strings.ContainsAny(tag, "{[") {
			rest = rest[nl+1:]
		}
	}
	closeIdx := strings.Index(rest, "```")
	if closeIdx < 0 {
		return strings.TrimSpace(rest), true
	}
	return strings.TrimSpace(rest[:closeIdx]), true
}

// matchBracket returns the index of the bracket closing text[start],
// respecting strings and escapes. Returns -1 if unbalanced.
func matchBracket(text string, start int) int {
	open := text[start]
	var close byte = '}'
	if open == '[' {
		close = ']'
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// flattenValidationError collapses a nested jsonschema error into a
// single line naming the deepest failing location.
func flattenValidationError(err *jsonschema.ValidationError) string {
	leaf := err
	for len(leaf.Causes) > 0 {
		leaf = leaf.Causes[0]
	}
	loc := leaf.InstanceLocation
	if loc == "" {
		loc = "/"
	}
	return fmt.Sprintf("%s: %s", loc, leaf.Message)
}
