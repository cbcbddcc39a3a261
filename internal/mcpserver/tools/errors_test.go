package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/erauner12/topicbridge/internal/mcpserver/jsonrpc"
	"github.com/erauner12/topicbridge/internal/mcpserver/remote"
)

func TestWrapRemoteError_MissingCredentials(t *testing.T) {
	err := fmt.Errorf("%w: NOTION_API_KEY is not set", remote.ErrMissingCredentials)
	toolErr := WrapRemoteError(err)

	te, ok := toolErr.(*ToolError)
	if !ok {
		t.Fatalf("Expected *ToolError, got %T", toolErr)
	}
	if te.Code != ErrCodeExecutionFailed {
		t.Errorf("Expected code EXECUTION_FAILED, got %s", te.Code)
	}
	if te.Message == "" {
		t.Error("Expected non-empty message")
	}
}

func TestWrapRemoteError_RateLimited(t *testing.T) {
	toolErr := WrapRemoteError(remote.ErrRateLimited{RetryAfter: 60})

	te, ok := toolErr.(*ToolError)
	if !ok {
		t.Fatalf("Expected *ToolError, got %T", toolErr)
	}
	if te.Data["retryAfter"] != 60 {
		t.Errorf("Expected retryAfter = 60, got %v", te.Data["retryAfter"])
	}
	if te.Data["retryable"] != true {
		t.Errorf("Expected retryable = true, got %v", te.Data["retryable"])
	}
}

func TestWrapRemoteError_Status(t *testing.T) {
	toolErr := WrapRemoteError(&remote.StatusError{Service: "Notion", StatusCode: 400, Body: "bad"})

	te := toolErr.(*ToolError)
	if te.Data["status"] != 400 {
		t.Errorf("Expected status = 400, got %v", te.Data["status"])
	}
	if te.Message != "Notion API error: 400 - bad" {
		t.Errorf("Unexpected message: %s", te.Message)
	}
}

func TestWrapRemoteError_Deadline(t *testing.T) {
	toolErr := WrapRemoteError(fmt.Errorf("post: %w", context.DeadlineExceeded))

	te := toolErr.(*ToolError)
	if te.Data["retryable"] != true {
		t.Errorf("Expected timeouts to be retryable, got %v", te.Data)
	}
}

func TestWrapRemoteError_Nil(t *testing.T) {
	if WrapRemoteError(nil) != nil {
		t.Error("Expected nil for nil error")
	}
}

func TestToolError_ToJSONRPCError(t *testing.T) {
	tests := []struct {
		name         string
		err          *ToolError
		expectedCode int
		expectedKind string
	}{
		{"not found", NewNotFoundError("x"), jsonrpc.MethodNotFound, "NOT_FOUND"},
		{"invalid params", NewToolError(ErrCodeInvalidParams, "bad", nil), jsonrpc.InvalidParams, "INVALID_PARAMS"},
		{"execution failed", NewExecutionError("x", errors.New("boom")), jsonrpc.InternalError, "EXECUTION_FAILED"},
		{"internal", NewToolError(ErrCodeInternal, "oops", nil), jsonrpc.InternalError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, msg, data := tt.err.ToJSONRPCError()

			if code != tt.expectedCode {
				t.Errorf("Expected code %d, got %d", tt.expectedCode, code)
			}
			if msg != tt.err.Message {
				t.Errorf("Expected message %q, got %q", tt.err.Message, msg)
			}

			var payload map[string]any
			if err := json.Unmarshal(data, &payload); err != nil {
				t.Fatalf("Failed to unmarshal data: %v", err)
			}
			if payload["kind"] != tt.expectedKind {
				t.Errorf("Expected kind %s, got %v", tt.expectedKind, payload["kind"])
			}
		})
	}
}

func TestToolError_Error(t *testing.T) {
	err := NewToolError(ErrCodeExecutionFailed, "Tool 'x' execution failed: boom", nil)
	expected := "EXECUTION_FAILED: Tool 'x' execution failed: boom"
	if err.Error() != expected {
		t.Errorf("Expected error string %q, got %q", expected, err.Error())
	}
}
