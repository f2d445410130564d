package server

import (
	"encoding/json"
	"net/http"
	"strconv"
)

// Problem types for RFC 7807 Problem Details responses.
const (
	ProblemTypeNotFound     = "https://lingora.app/problems/not-found"
	ProblemTypeBadRequest   = "https://lingora.app/problems/bad-request"
	ProblemTypeInternal     = "https://lingora.app/problems/internal-error"
	ProblemTypeUnauthorized = "https://lingora.app/problems/unauthorized"
	ProblemTypeRateLimited  = "https://lingora.app/problems/rate-limited"
	ProblemTypeQuota        = "https://lingora.app/problems/quota-exceeded"
	ProblemTypeUpstream     = "https://lingora.app/problems/upstream-error"
	ProblemTypeUnavailable  = "https://lingora.app/problems/backend-unavailable"
	ProblemTypeValidation   = "https://lingora.app/problems/output-validation-failed"
)

// Problem represents an RFC 7807 Problem Details response.
type Problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
	// RetryAfter is set on 429 responses, in seconds.
	RetryAfter int `json:"retry_after,omitempty"`
}

// WriteProblem writes an RFC 7807 Problem Details JSON response.
func WriteProblem(w http.ResponseWriter, p Problem) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}

// BadRequest writes a 400 problem response.
func BadRequest(w http.ResponseWriter, detail, instance string) {
	WriteProblem(w, Problem{
		Type:     ProblemTypeBadRequest,
		Title:    "Bad Request",
		Status:   http.StatusBadRequest,
		Detail:   detail,
		Instance: instance,
	})
}

// InternalError writes a 500 problem response.
func InternalError(w http.ResponseWriter, detail, instance string) {
	WriteProblem(w, Problem{
		Type:     ProblemTypeInternal,
		Title:    "Internal Server Error",
		Status:   http.StatusInternalServerError,
		Detail:   detail,
		Instance: instance,
	})
}

// RateLimited writes a 429 problem response with a Retry-After header.
func RateLimited(w http.ResponseWriter, detail, instance string, retryAfterSec int) {
	if retryAfterSec > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSec))
	}
	WriteProblem(w, Problem{
		Type:       ProblemTypeRateLimited,
		Title:      "Too Many Requests",
		Status:     http.StatusTooManyRequests,
		Detail:     detail,
		Instance:   instance,
		RetryAfter: retryAfterSec,
	})
}

// QuotaExceeded writes a 403 problem response for an exhausted daily quota.
// The quota is identity-bound, not time-bound, so this is a Forbidden rather
// than a Too Many Requests: retrying sooner cannot help.
func QuotaExceeded(w http.ResponseWriter, detail, instance string) {
	WriteProblem(w, Problem{
		Type:     ProblemTypeQuota,
		Title:    "Daily Quota Exceeded",
		Status:   http.StatusForbidden,
		Detail:   detail,
		Instance: instance,
	})
}

// Unavailable writes a 503 problem response.
func Unavailable(w http.ResponseWriter, detail, instance string) {
	WriteProblem(w, Problem{
		Type:     ProblemTypeUnavailable,
		Title:    "Service Unavailable",
		Status:   http.StatusServiceUnavailable,
		Detail:   detail,
		Instance: instance,
	})
}
