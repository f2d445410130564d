package calllog

import (
	"encoding/json"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/lingora-app/llmgate/pkg/module"
)

func (m *Module) Routes() []module.Route {
	return []module.Route{
		{Method: "GET", Path: "/api/v1/calls", Handler: m.guard.Require(m.handleList)},
	}
}

// handleList returns recent call log entries for operators. Supports
// caller_id, task, status, and limit query filters.
func (m *Module) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ListFilter{
		CallerID: q.Get("caller_id"),
		Task:     q.Get("task"),
		Status:   Status(q.Get("status")),
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeProblem(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		filter.Limit = n
	}

	entries, err := m.store.list(r.Context(), filter)
	if err != nil {
		m.logger.Error("call log list failed", zap.Error(err))
		writeProblem(w, http.StatusInternalServerError, "failed to read call log")
		return
	}
	if entries == nil {
		entries = []Entry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"calls": entries})
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
		"type":   "https://lingora.app/problems/calllog-error",
		"title":  http.StatusText(status),
		"status": status,
		"detail": detail,
	})
}
