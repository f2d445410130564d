package usage

import (
	"encoding/json"
	"net/http"

	"github.com/lingora-app/llmgate/internal/auth"
	"github.com/lingora-app/llmgate/pkg/module"
)

func (m *Module) Routes() []module.Route {
	return []module.Route{
		{Method: "GET", Path: "/api/v1/usage/today", Handler: m.handleToday},
	}
}

type todayResponse struct {
	Day      string `json:"day"`
	Plan     string `json:"plan"`
	Messages int    `json:"messages"`
	Tokens   int    `json:"tokens"`
	// Limits use -1 for unlimited.
	MessagesLimit int `json:"messages_limit"`
	TokensLimit   int `json:"tokens_limit"`
}

// handleToday reports the caller's current-day consumption and limits.
func (m *Module) handleToday(w http.ResponseWriter, r *http.Request) {
	caller := auth.CallerFromContext(r.Context())
	if caller.Anonymous {
		writeProblem(w, http.StatusUnauthorized, "usage reporting requires an authenticated caller")
		return
	}
	plan := Plan(caller.Plan)

	totals, limits, err := m.ledger.Today(r.Context(), caller.ID, plan)
	if err != nil {
		writeProblem(w, http.StatusServiceUnavailable, "usage data is temporarily unavailable")
		return
	}

	writeJSON(w, http.StatusOK, todayResponse{
		Day:           m.ledger.dayKey(),
		Plan:          string(plan),
		Messages:      totals.Messages,
		Tokens:        totals.Tokens,
		MessagesLimit: limits.MessagesPerDay,
		TokensLimit:   limits.TokensPerDay,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeProblem(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"type":   "https://lingora.app/problems/usage-error",
		"title":  http.StatusText(status),
		"status": status,
		"detail": detail,
	})
}
