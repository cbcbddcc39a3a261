package tools

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
)

// compileSchema resolves an input schema once at registration time.
// A nil schema accepts any object.
func compileSchema(schema map[string]any) (*jsonschema.Resolved, error) {
	if schema == nil {
		return nil, nil
	}

	data, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}

	var s jsonschema.Schema
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode schema: %w", err)
	}

	return s.Resolve(nil)
}

// normalizeArguments validates raw call arguments and fills schema defaults.
// Missing or null arguments are treated as an empty object.
func normalizeArguments(validator *jsonschema.Resolved, raw json.RawMessage) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		trimmed = []byte("{}")
	}

	args := make(map[string]any)
	if err := json.Unmarshal(trimmed, &args); err != nil {
		return nil, fmt.Errorf("arguments must be a JSON object: %w", err)
	}
	if validator == nil {
		return trimmed, nil
	}

	if err := validator.ApplyDefaults(&args); err != nil {
		return nil, err
	}
	if err := validator.Validate(args); err != nil {
		return nil, err
	}

	return json.Marshal(args)
}
