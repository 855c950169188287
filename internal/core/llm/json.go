package llm

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/markdave123-py/docpipe/internal/core"
)

// ParseJSONObject decodes a model reply into a JSON object. Markdown code fences
// are tolerated; anything that is not a single object wraps core.ErrInvalidJSON.
func ParseJSONObject(raw string) (map[string]any, error) {
	text := cleanJSONBlock(raw)
	if text == "" {
		return nil, fmt.Errorf("%w: empty response", core.ErrInvalidJSON)
	}

	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrInvalidJSON, err)
	}
	// Anything after the value, including stray closing brackets, is malformed.
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: trailing data after JSON value", core.ErrInvalidJSON)
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: expected object, got %T", core.ErrInvalidJSON, v)
	}
	return obj, nil
}

// cleanJSONBlock removes markdown code block wrappers from JSON
func cleanJSONBlock(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

// Schema is a compiled JSON Schema, reusable across documents.
type Schema struct {
	compiled *jsonschema.Schema
}

// CompileSchema compiles a JSON Schema given as a map.
func CompileSchema(schemaMap map[string]any) (*Schema, error) {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	compiled, err := compiler.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &Schema{compiled: compiled}, nil
}

// Validate checks obj against the schema.
func (s *Schema) Validate(obj map[string]any) error {
	// Re-decode so the validator sees plain JSON values.
	data, err := json.Marshal(obj)
	if err != nil {
		return fmt.Errorf("marshal data: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := s.compiled.Validate(v); err != nil {
		return fmt.Errorf("%w: does not match schema: %v", core.ErrInvalidJSON, err)
	}
	return nil
}

// ValidateAgainstSchema compiles schemaMap and checks obj against it.
func ValidateAgainstSchema(schemaMap map[string]any, obj map[string]any) error {
	schema, err := CompileSchema(schemaMap)
	if err != nil {
		return err
	}
	return schema.Validate(obj)
}
