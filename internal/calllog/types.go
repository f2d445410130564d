// Package calllog records the outcome of every provider attempt for
// debugging and cost attribution. Logging is best effort: a failed insert
// is logged and dropped, never surfaced to the caller.
package calllog

import (
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Status classifies how an attempt ended.
type Status string

const (
	StatusOK              Status = "ok"
	StatusProviderError   Status = "provider_error"
	StatusValidationError Status = "validation_error"
	StatusQuotaRejected   Status = "quota_rejected"
)

// maxErrorLen bounds stored error text so a pathological provider
// response cannot bloat the table.
const maxErrorLen = 512

// Entry is one provider attempt.
type Entry struct {
	ID               uuid.UUID `json:"id"`
	CallerID         string    `json:"caller_id"`
	Task             string    `json:"task"`
	Provider         string    `json:"provider"`
	Model            string    `json:"model"`
	PromptTokens     int       `json:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens"`
	LatencyMS        int64     `json:"latency_ms"`
	Status           Status    `json:"status"`
	ErrorMessage     string    `json:"error_message,omitempty"`
	Attempt          int       `json:"attempt"`
	UsedFallback     bool      `json:"used_fallback"`
	CreatedAt        time.Time `json:"created_at"`
}

func truncateError(msg string) string {
	if len(msg) <= maxErrorLen {
		return msg
	}
	// Back up to a rune boundary so the stored text stays valid UTF-8.
	cut := maxErrorLen
	for cut > 0 && !utf8.RuneStart(msg[cut]) {
		cut--
	}
	return msg[:cut]
}
