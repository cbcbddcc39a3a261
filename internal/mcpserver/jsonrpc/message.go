package jsonrpc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Version is the only JSON-RPC version accepted on the wire
const Version = "2.0"

// Standard JSON-RPC 2.0 error codes
const (
	ParseError     = -32700
	InvalidRequest = -32600
	MethodNotFound = -32601
	InvalidParams  = -32602
	InternalError  = -32603
)

// NullID is used for error responses to requests whose id could not be read
var NullID = json.RawMessage("null")

// Message is a JSON-RPC 2.0 envelope. The same shape carries requests,
// notifications and responses; which one it is depends on the fields set.
type Message struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Error is the JSON-RPC error object
type Error struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

// IsNotification reports whether the message is a request without an id
func (m Message) IsNotification() bool {
	return m.Method != "" && len(m.ID) == 0
}

// IsRequest reports whether the message expects a response
func (m Message) IsRequest() bool {
	return m.Method != "" && len(m.ID) > 0
}

// IsResponse reports whether the message answers an earlier request
func (m Message) IsResponse() bool {
	return m.Method == "" && (m.Result != nil || m.Error != nil)
}

// NewRequest builds a request with a numeric id
func NewRequest(id int64, method string, params any) (Message, error) {
	msg := Message{
		JSONRPC: Version,
		ID:      IntID(id),
		Method:  method,
	}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return Message{}, fmt.Errorf("encode %s params: %w", method, err)
		}
		msg.Params = raw
	}
	return msg, nil
}

// NewNotification builds a request that carries no id
func NewNotification(method string, params any) (Message, error) {
	msg, err := NewRequest(0, method, params)
	if err != nil {
		return Message{}, err
	}
	msg.ID = nil
	return msg, nil
}

// NewResult builds a success response for the given id
func NewResult(id json.RawMessage, result any) (Message, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return Message{}, fmt.Errorf("encode result: %w", err)
	}
	return Message{
		JSONRPC: Version,
		ID:      responseID(id),
		Result:  raw,
	}, nil
}

// NewError builds an error response for the given id
func NewError(id json.RawMessage, code int, message string, data json.RawMessage) Message {
	return Message{
		JSONRPC: Version,
		ID:      responseID(id),
		Error: &Error{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// IntID encodes a numeric request id
func IntID(id int64) json.RawMessage {
	return json.RawMessage(strconv.FormatInt(id, 10))
}

// SameID compares two ids by their compact JSON encoding
func SameID(a, b json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(a), bytes.TrimSpace(b))
}

// responses always carry an id, null when the request's id is unknown
func responseID(id json.RawMessage) json.RawMessage {
	if len(id) == 0 {
		return NullID
	}
	return id
}
