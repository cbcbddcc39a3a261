package tools

// Common JSON Schema building blocks

// StringSchema creates a JSON schema for a string field
func StringSchema(description string) map[string]any {
	return map[string]any{
		"type":        "string",
		"description": description,
	}
}

// URLSchema creates a JSON schema for an absolute URL field
func URLSchema(description string) map[string]any {
	return map[string]any{
		"type":        "string",
		"format":      "uri",
		"description": description,
	}
}

// IntegerSchema creates a JSON schema for an integer field with optional min/max
func IntegerSchema(description string, min, max *int) map[string]any {
	schema := map[string]any{
		"type":        "integer",
		"description": description,
	}
	if min != nil {
		schema["minimum"] = *min
	}
	if max != nil {
		schema["maximum"] = *max
	}
	return schema
}

// BoundedIntegerSchema is IntegerSchema with both bounds and a default
func BoundedIntegerSchema(description string, min, max, def int) map[string]any {
	return WithDefault(IntegerSchema(description, &min, &max), def)
}

// BooleanSchema creates a JSON schema for a boolean field
func BooleanSchema(description string) map[string]any {
	return map[string]any{
		"type":        "boolean",
		"description": description,
	}
}

// EnumSchema creates a JSON schema for an enum field
func EnumSchema(description string, values []string) map[string]any {
	return map[string]any{
		"type":        "string",
		"description": description,
		"enum":        values,
	}
}

// WithDefault sets the default value of a property schema
func WithDefault(schema map[string]any, value any) map[string]any {
	schema["default"] = value
	return schema
}

// BuildSchema creates a complete JSON schema object with properties and required fields
func BuildSchema(properties map[string]any, required []string) map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// EmptySchema is the schema of a tool that takes no arguments
func EmptySchema() map[string]any {
	return BuildSchema(map[string]any{}, nil)
}
