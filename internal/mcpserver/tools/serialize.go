package tools

import (
	"encoding/json"
	"fmt"
	"reflect"
)

// SerializeResult renders a handler result as the text of a content block.
// Strings pass through unchanged; maps, structs and slices become indented
// JSON; everything else uses its default formatting.
func SerializeResult(v any) (string, error) {
	switch r := v.(type) {
	case nil:
		return "null", nil
	case string:
		return r, nil
	case json.RawMessage:
		return string(r), nil
	case []byte:
		return string(r), nil
	case error:
		return r.Error(), nil
	case fmt.Stringer:
		if !isStructured(v) {
			return r.String(), nil
		}
	}

	if !isStructured(v) {
		return fmt.Sprintf("%v", v), nil
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func isStructured(v any) bool {
	t := reflect.TypeOf(v)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.Map, reflect.Struct, reflect.Slice, reflect.Array:
		return true
	default:
		return false
	}
}
