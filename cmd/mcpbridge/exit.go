package main

import "fmt"

// Exit codes other than the generic failure (1)
const (
	exitInvalidConfig = 2
	exitToolNotFound  = 3
)

// ExitError is an error that carries a specific process exit code.
// RunE returns this to signal the desired exit code to main.
type ExitError struct {
	Code    int
	Message string
}

func (e *ExitError) Error() string {
	return e.Message
}

func exitError(code int, format string, args ...any) *ExitError {
	return &ExitError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}
