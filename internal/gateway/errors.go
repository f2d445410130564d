package gateway

import (
	"fmt"
	"net/http"
	"time"
)

// Code is a stable machine-readable error classification. Callers see one
// of these or a result, never a raw provider or store error.
type Code string

const (
	CodeRateLimited          Code = "RATE_LIMITED"
	CodeRateLimitUnavailable Code = "RATE_LIMIT_BACKEND_UNAVAILABLE"
	CodeUsageLimitExceeded   Code = "USAGE_LIMIT_EXCEEDED"
	CodeUsageUnavailable     Code = "USAGE_BACKEND_UNAVAILABLE"
	CodeProviderUnavailable  Code = "PROVIDER_UNAVAILABLE"
	CodeInvalidRequest       Code = "INVALID_REQUEST"
)

// Error is a terminal, classified gateway failure.
type Error struct {
	Code     Code
	Message  string
	Task     Task
	Attempts int
	// RetryAfter is a hint for 429 responses.
	RetryAfter time.Duration
}

func (e *Error) Error() string {
	if e.Attempts > 0 {
		return fmt.Sprintf("%s: %s (task=%s attempts=%d)", e.Code, e.Message, e.Task, e.Attempts)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// HTTPStatus maps a code to its HTTP status class.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeRateLimited:
		return http.StatusTooManyRequests
	case CodeUsageLimitExceeded:
		return http.StatusForbidden
	case CodeInvalidRequest:
		return http.StatusBadRequest
	case CodeRateLimitUnavailable, CodeUsageUnavailable, CodeProviderUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
