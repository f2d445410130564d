package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/lingora-app/llmgate/internal/auth"
	"github.com/lingora-app/llmgate/internal/server"
	"github.com/lingora-app/llmgate/pkg/llm"
	"github.com/lingora-app/llmgate/pkg/module"
)

func (m *Module) Routes() []module.Route {
	return []module.Route{
		{Method: "POST", Path: "/api/v1/gateway/call", Handler: m.handleCall},
		{Method: "GET", Path: "/api/v1/gateway/tasks", Handler: m.handleTasks},
	}
}

type callBody struct {
	Task          string `json:"task"`
	Locale        string `json:"locale"`
	SchemaVersion int    `json:"schema_version"`
	Messages      []struct {
		Role string `json:"role"`
		Text string `json:"text"`
	} `json:"messages"`
}

// handleCall runs one orchestrated gateway call.
func (m *Module) handleCall(w http.ResponseWriter, r *http.Request) {
	if m.orchestrator == nil {
		server.Unavailable(w, "gateway is not wired", r.URL.Path)
		return
	}

	var body callBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		server.BadRequest(w, "invalid JSON body", r.URL.Path)
		return
	}
	task, err := ParseTask(body.Task)
	if err != nil {
		server.BadRequest(w, err.Error(), r.URL.Path)
		return
	}

	messages := make([]llm.Message, 0, len(body.Messages))
	for _, msg := range body.Messages {
		switch msg.Role {
		case llm.RoleSystem, llm.RoleUser, llm.RoleAssistant:
		default:
			server.BadRequest(w, "message role must be system, user, or assistant", r.URL.Path)
			return
		}
		messages = append(messages, llm.Message{Role: msg.Role, Content: msg.Text})
	}

	caller := auth.CallerFromContext(r.Context())
	req := CallRequest{
		Task:          task,
		Locale:        body.Locale,
		CallerID:      caller.ID,
		Plan:          caller.Plan,
		Anonymous:     caller.Anonymous,
		SchemaVersion: body.SchemaVersion,
		Messages:      messages,
	}

	result, gerr := m.orchestrator.Call(r.Context(), req)
	if gerr != nil {
		writeGatewayError(w, r, gerr)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(result)
}

// handleTasks lists the routable tasks and their model configuration.
func (m *Module) handleTasks(w http.ResponseWriter, _ *http.Request) {
	type taskInfo struct {
		Task       Task        `json:"task"`
		Primary    ModelConfig `json:"primary"`
		Fallback   ModelConfig `json:"fallback"`
		Structured bool        `json:"structured"`
	}
	out := make([]taskInfo, 0, len(routingTable))
	for _, t := range Tasks() {
		r := routingTable[t]
		out = append(out, taskInfo{Task: t, Primary: r.Primary, Fallback: r.Fallback, Structured: r.Structured})
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"tasks": out})
}

// writeGatewayError maps a classified gateway error to a problem response.
func writeGatewayError(w http.ResponseWriter, r *http.Request, gerr *Error) {
	status := gerr.Code.HTTPStatus()
	switch gerr.Code {
	case CodeRateLimited:
		server.RateLimited(w, gerr.Message, r.URL.Path, int(gerr.RetryAfter.Seconds()))
	case CodeUsageLimitExceeded:
		server.QuotaExceeded(w, gerr.Message, r.URL.Path)
	case CodeInvalidRequest:
		server.BadRequest(w, gerr.Message, r.URL.Path)
	default:
		server.WriteProblem(w, server.Problem{
			Type:     server.ProblemTypeUnavailable,
			Title:    "Service Unavailable",
			Status:   status,
			Detail:   gerr.Message,
			Instance: r.URL.Path,
		})
	}
}
