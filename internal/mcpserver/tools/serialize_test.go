package tools

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

type point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func TestSerializeResult(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"string unchanged", "plain {text", "plain {text"},
		{"nil", nil, "null"},
		{"integer", 42, "42"},
		{"bool", true, "true"},
		{"map", map[string]any{"a": 1}, "{\n  \"a\": 1\n}"},
		{"struct pointer", &point{X: 1, Y: 2}, "{\n  \"x\": 1,\n  \"y\": 2\n}"},
		{"slice", []string{"a", "b"}, "[\n  \"a\",\n  \"b\"\n]"},
		{"raw json", json.RawMessage(`{"k":1}`), `{"k":1}`},
		{"stringer", 1500 * time.Millisecond, "1.5s"},
		{"error value", errors.New("e"), "e"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SerializeResult(tt.in)
			if err != nil {
				t.Fatalf("SerializeResult failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("SerializeResult(%v) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSerializeResult_Unmarshalable(t *testing.T) {
	if _, err := SerializeResult(map[string]any{"ch": make(chan int)}); err == nil {
		t.Error("Expected error for unserializable map")
	}
}
