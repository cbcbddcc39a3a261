package client

import (
	"errors"
	"fmt"

	"github.com/erauner12/topicbridge/internal/mcpserver/tools"
)

var (
	// ErrConnectionFailed matches spawn, handshake and lost-connection failures
	ErrConnectionFailed = errors.New("connection failed")

	// ErrNotConnected is returned by operations on a disconnected client
	ErrNotConnected = errors.New("client not connected")

	// ErrToolNotFound matches calls to absent or filtered-out tools
	ErrToolNotFound = errors.New("tool not found")

	// ErrExecutionFailed matches every other tool failure
	ErrExecutionFailed = errors.New("tool execution failed")

	// ErrRequestTimeout is returned when a response does not arrive within
	// the request timeout
	ErrRequestTimeout = errors.New("request timed out")
)

// ConnectionError reports a server that could not be started or reached
type ConnectionError struct {
	Command string
	Stderr  string
	Err     error
}

func (e *ConnectionError) Error() string {
	msg := fmt.Sprintf("connect to %s: %v", e.Command, e.Err)
	if e.Stderr != "" {
		msg += " (stderr: " + e.Stderr + ")"
	}
	return msg
}

func (e *ConnectionError) Unwrap() []error {
	return []error{ErrConnectionFailed, e.Err}
}

// ToolCallError is a failure reported by the server for one tool call
type ToolCallError struct {
	Tool    string
	Kind    tools.ErrorCode
	Code    int
	Message string
	Data    map[string]any
}

func (e *ToolCallError) Error() string {
	return e.Message
}

// Is matches ErrToolNotFound for NOT_FOUND and ErrExecutionFailed otherwise
func (e *ToolCallError) Is(target error) bool {
	switch target {
	case ErrToolNotFound:
		return e.Kind == tools.ErrCodeNotFound
	case ErrExecutionFailed:
		return e.Kind != tools.ErrCodeNotFound
	}
	return false
}

// Retryable reports whether the server marked the failure as transient
func (e *ToolCallError) Retryable() bool {
	retryable, _ := e.Data["retryable"].(bool)
	return retryable
}
