package jsonrpc

import (
	"encoding/json"
	"testing"
)

func TestMessage_Parsing(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
		check   func(*testing.T, *Message)
	}{
		{
			name:  "valid request with id",
			input: `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`,
			check: func(t *testing.T, msg *Message) {
				if msg.JSONRPC != "2.0" {
					t.Errorf("Expected jsonrpc 2.0, got %s", msg.JSONRPC)
				}
				if msg.Method != MethodInitialize {
					t.Errorf("Expected method initialize, got %s", msg.Method)
				}
				if !msg.IsRequest() {
					t.Error("Expected IsRequest to be true")
				}
			},
		},
		{
			name:  "notification without id",
			input: `{"jsonrpc":"2.0","method":"notifications/initialized"}`,
			check: func(t *testing.T, msg *Message) {
				if !msg.IsNotification() {
					t.Error("Expected IsNotification to be true")
				}
			},
		},
		{
			name:  "request with string id",
			input: `{"jsonrpc":"2.0","id":"abc123","method":"ping"}`,
			check: func(t *testing.T, msg *Message) {
				if msg.IsNotification() {
					t.Error("Expected IsNotification to be false")
				}
				if !SameID(msg.ID, json.RawMessage(`"abc123"`)) {
					t.Errorf("Expected id \"abc123\", got %s", msg.ID)
				}
			},
		},
		{
			name:  "error response",
			input: `{"jsonrpc":"2.0","id":7,"error":{"code":-32601,"message":"nope"}}`,
			check: func(t *testing.T, msg *Message) {
				if !msg.IsResponse() {
					t.Error("Expected IsResponse to be true")
				}
				if msg.Error.Code != MethodNotFound {
					t.Errorf("Expected code %d, got %d", MethodNotFound, msg.Error.Code)
				}
			},
		},
		{
			name:    "truncated frame",
			input:   `{"jsonrpc":"2.0","id":1,"meth`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var msg Message
			err := json.Unmarshal([]byte(tt.input), &msg)

			if (err != nil) != tt.wantErr {
				t.Errorf("Unmarshal() error = %v, wantErr %v", err, tt.wantErr)
				return
			}

			if !tt.wantErr && tt.check != nil {
				tt.check(t, &msg)
			}
		})
	}
}

func TestMessage_Marshaling(t *testing.T) {
	result, err := NewResult(json.RawMessage(`1`), map[string]string{"status": "ok"})
	if err != nil {
		t.Fatalf("NewResult() error = %v", err)
	}

	tests := []struct {
		name     string
		message  Message
		wantJSON string
	}{
		{
			name:     "success response",
			message:  result,
			wantJSON: `{"jsonrpc":"2.0","id":1,"result":{"status":"ok"}}`,
		},
		{
			name:     "error response",
			message:  NewError(json.RawMessage(`1`), InvalidRequest, "invalid request", nil),
			wantJSON: `{"jsonrpc":"2.0","id":1,"error":{"code":-32600,"message":"invalid request"}}`,
		},
		{
			name:     "error response without request id",
			message:  NewError(nil, ParseError, "parse error", nil),
			wantJSON: `{"jsonrpc":"2.0","id":null,"error":{"code":-32700,"message":"parse error"}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := json.Marshal(tt.message)
			if err != nil {
				t.Fatalf("Marshal() error = %v", err)
			}

			// Compare as JSON to ignore whitespace
			var gotObj, wantObj interface{}
			if err := json.Unmarshal(got, &gotObj); err != nil {
				t.Fatalf("Failed to unmarshal got: %v", err)
			}
			if err := json.Unmarshal([]byte(tt.wantJSON), &wantObj); err != nil {
				t.Fatalf("Failed to unmarshal want: %v", err)
			}

			gotJSON, _ := json.Marshal(gotObj)
			wantJSON, _ := json.Marshal(wantObj)

			if string(gotJSON) != string(wantJSON) {
				t.Errorf("Marshal() = %s, want %s", gotJSON, wantJSON)
			}
		})
	}
}

func TestNewNotification_HasNoID(t *testing.T) {
	msg, err := NewNotification(MethodInitialized, nil)
	if err != nil {
		t.Fatalf("NewNotification() error = %v", err)
	}
	if !msg.IsNotification() {
		t.Error("Expected IsNotification to be true")
	}

	data, _ := json.Marshal(msg)
	if string(data) != `{"jsonrpc":"2.0","method":"notifications/initialized"}` {
		t.Errorf("unexpected encoding: %s", data)
	}
}

func TestNegotiateVersion(t *testing.T) {
	tests := []struct {
		requested string
		want      string
	}{
		{"2024-11-05", "2024-11-05"},
		{"2025-06-18", "2025-06-18"},
		{LatestProtocolVersion, LatestProtocolVersion},
		{"1999-01-01", LatestProtocolVersion},
		{"", LatestProtocolVersion},
	}

	for _, tt := range tests {
		t.Run(tt.requested, func(t *testing.T) {
			if got := NegotiateVersion(tt.requested); got != tt.want {
				t.Errorf("NegotiateVersion(%q) = %q, want %q", tt.requested, got, tt.want)
			}
		})
	}
}
