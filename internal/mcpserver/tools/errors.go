package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/erauner12/topicbridge/internal/mcpserver/jsonrpc"
	"github.com/erauner12/topicbridge/internal/mcpserver/remote"
)

// ErrDuplicateName is returned when a tool name is registered twice
var ErrDuplicateName = errors.New("duplicate tool name")

// ToolError represents a structured error from tool execution
type ToolError struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// ErrorCode categorizes tool errors for JSON-RPC translation
type ErrorCode string

const (
	ErrCodeInvalidParams   ErrorCode = "INVALID_PARAMS"
	ErrCodeNotFound        ErrorCode = "NOT_FOUND"
	ErrCodeExecutionFailed ErrorCode = "EXECUTION_FAILED"
	ErrCodeInternal        ErrorCode = "INTERNAL_ERROR"
)

// NewToolError creates a tool error with optional data
func NewToolError(code ErrorCode, message string, data map[string]any) *ToolError {
	return &ToolError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// NewNotFoundError reports a tool that is unregistered or hidden from the caller
func NewNotFoundError(name string) *ToolError {
	return NewToolError(ErrCodeNotFound, fmt.Sprintf("Tool '%s' not found", name), map[string]any{
		"tool": name,
	})
}

// NewExecutionError wraps a failure raised by a tool body
func NewExecutionError(name string, err error) *ToolError {
	data := map[string]any{"tool": name}
	if isTransient(err) {
		data["retryable"] = true
	}
	return NewToolError(ErrCodeExecutionFailed, fmt.Sprintf("Tool '%s' execution failed: %v", name, err), data)
}

// asCallError attaches the tool name to whatever a body returned. Parameter
// errors keep their code; everything else becomes EXECUTION_FAILED.
func asCallError(name string, err error) *ToolError {
	var toolErr *ToolError
	if !errors.As(err, &toolErr) {
		return NewExecutionError(name, err)
	}

	data := map[string]any{"tool": name}
	for k, v := range toolErr.Data {
		data[k] = v
	}
	if toolErr.Code == ErrCodeInvalidParams {
		return NewToolError(ErrCodeInvalidParams, fmt.Sprintf("Tool '%s' rejected its arguments: %s", name, toolErr.Message), data)
	}
	return NewToolError(ErrCodeExecutionFailed, fmt.Sprintf("Tool '%s' execution failed: %s", name, toolErr.Message), data)
}

// remoteFailure wraps a remote error and prefixes the action that failed
func remoteFailure(action string, err error) error {
	toolErr := WrapRemoteError(err).(*ToolError)
	toolErr.Message = action + ": " + toolErr.Message
	return toolErr
}

// WrapRemoteError converts remote dependency failures into ToolErrors
func WrapRemoteError(err error) error {
	if err == nil {
		return nil
	}

	var toolErr *ToolError
	var rateLimited remote.ErrRateLimited
	var statusErr *remote.StatusError

	switch {
	case errors.As(err, &toolErr):
		return toolErr

	case errors.Is(err, remote.ErrMissingCredentials):
		return NewToolError(ErrCodeExecutionFailed, err.Error(), nil)

	case errors.As(err, &rateLimited):
		return NewToolError(ErrCodeExecutionFailed, "Rate limit exceeded", map[string]any{
			"retryAfter": rateLimited.RetryAfter,
			"retryable":  true,
		})

	case errors.As(err, &statusErr):
		return NewToolError(ErrCodeExecutionFailed, statusErr.Error(), map[string]any{
			"status": statusErr.StatusCode,
		})

	case isTransient(err):
		return NewToolError(ErrCodeExecutionFailed, err.Error(), map[string]any{
			"retryable": true,
		})

	default:
		return NewToolError(ErrCodeExecutionFailed, err.Error(), nil)
	}
}

// ToJSONRPCError converts ToolError to JSON-RPC error code
func (e *ToolError) ToJSONRPCError() (int, string, json.RawMessage) {
	var code int
	switch e.Code {
	case ErrCodeInvalidParams:
		code = jsonrpc.InvalidParams
	case ErrCodeNotFound:
		code = jsonrpc.MethodNotFound
	default:
		code = jsonrpc.InternalError
	}

	payload := map[string]any{"kind": string(e.Code)}
	for k, v := range e.Data {
		payload[k] = v
	}
	data, _ := json.Marshal(payload)

	return code, e.Message, data
}

func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var rateLimited remote.ErrRateLimited
	return errors.As(err, &rateLimited)
}
