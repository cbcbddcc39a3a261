package remote

import (
	"errors"
	"fmt"
)

// ErrMissingCredentials is returned when a remote API is called without its key
var ErrMissingCredentials = errors.New("missing credentials")

// ErrRateLimited is returned when the remote kept answering 429
type ErrRateLimited struct {
	RetryAfter int // seconds
}

func (e ErrRateLimited) Error() string {
	return fmt.Sprintf("rate limited (retry after %ds)", e.RetryAfter)
}

// StatusError is a non-success HTTP response
type StatusError struct {
	Service    string // "Notion", "Exa"; empty for plain page fetches
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Service == "" {
		return fmt.Sprintf("HTTP %d when accessing %s", e.StatusCode, e.URL)
	}
	return fmt.Sprintf("%s API error: %d - %s", e.Service, e.StatusCode, e.Body)
}

// IsStatus reports whether err is a StatusError with the given code
func IsStatus(err error, code int) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.StatusCode == code
}
