package gateway

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/lingora-app/llmgate/internal/auth"
	"github.com/lingora-app/llmgate/internal/ratelimit"
	"github.com/lingora-app/llmgate/internal/server"
	"github.com/lingora-app/llmgate/pkg/llm"
	"github.com/lingora-app/llmgate/pkg/llm/llmtest"
)

func testModule(t *testing.T, primary, fallback llm.Provider, admitter Admitter, ledger Ledger) *Module {
	t.Helper()
	m := New()
	m.logger = zap.NewNop()
	m.SetOrchestrator(testOrchestrator(t, primary, fallback, admitter, ledger, &fakeRecorder{}))
	return m
}

func callRoute(t *testing.T, m *Module) http.HandlerFunc {
	t.Helper()
	for _, r := range m.Routes() {
		if r.Method == "POST" && r.Path == "/api/v1/gateway/call" {
			return r.Handler
		}
	}
	t.Fatal("call route not registered")
	return nil
}

func postCall(t *testing.T, m *Module, body string, caller auth.Caller) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("POST", "/api/v1/gateway/call", strings.NewReader(body))
	req = req.WithContext(auth.WithCaller(req.Context(), caller))
	rec := httptest.NewRecorder()
	callRoute(t, m)(rec, req)
	return rec
}

const quizBody = `{
	"task": "quiz_generation",
	"locale": "es",
	"messages": [{"role": "user", "text": "quiz me on greetings"}]
}`

func TestHandleCallSuccess(t *testing.T) {
	m := testModule(t,
		llmtest.NewFake("openai", llmtest.Respond(validQuiz, 100, 50)),
		llmtest.NewFake("anthropic"),
		allowAll(), &fakeLedger{checkAllowed: true, consumeAllow: true})

	rec := postCall(t, m, quizBody, auth.Caller{ID: "user-1", Plan: "plus"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var result CallResult
	if err := json.NewDecoder(rec.Body).Decode(&result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result.Meta.Provider != "openai" || result.Meta.Attempts != 1 {
		t.Errorf("meta = %+v", result.Meta)
	}
	if len(result.Data) == 0 {
		t.Error("data missing")
	}
}

func TestHandleCallBadJSON(t *testing.T) {
	m := testModule(t, llmtest.NewFake("openai"), llmtest.NewFake("anthropic"),
		allowAll(), &fakeLedger{checkAllowed: true, consumeAllow: true})

	rec := postCall(t, m, "{not json", auth.Caller{ID: "user-1"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHandleCallUnknownTask(t *testing.T) {
	m := testModule(t, llmtest.NewFake("openai"), llmtest.NewFake("anthropic"),
		allowAll(), &fakeLedger{checkAllowed: true, consumeAllow: true})

	rec := postCall(t, m, `{"task": "summarize", "messages": [{"role": "user", "text": "hi"}]}`,
		auth.Caller{ID: "user-1"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHandleCallBadRole(t *testing.T) {
	m := testModule(t, llmtest.NewFake("openai"), llmtest.NewFake("anthropic"),
		allowAll(), &fakeLedger{checkAllowed: true, consumeAllow: true})

	rec := postCall(t, m, `{"task": "quiz_generation", "messages": [{"role": "tool", "text": "hi"}]}`,
		auth.Caller{ID: "user-1"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHandleCallRateLimitedProblem(t *testing.T) {
	admitter := &fakeAdmitter{decision: ratelimit.Decision{Allowed: false, Reason: ratelimit.ReasonLimited}}
	m := testModule(t, llmtest.NewFake("openai"), llmtest.NewFake("anthropic"),
		admitter, &fakeLedger{checkAllowed: true, consumeAllow: true})

	rec := postCall(t, m, quizBody, auth.Caller{ID: "user-1", Plan: "free"})
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/problem+json" {
		t.Errorf("Content-Type = %q", ct)
	}
}

func TestHandleCallQuotaProblem(t *testing.T) {
	m := testModule(t, llmtest.NewFake("openai"), llmtest.NewFake("anthropic"),
		allowAll(), &fakeLedger{checkAllowed: false})

	rec := postCall(t, m, quizBody, auth.Caller{ID: "user-1", Plan: "free"})
	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
	var p server.Problem
	if err := json.Unmarshal(rec.Body.Bytes(), &p); err != nil {
		t.Fatalf("decode problem body: %v", err)
	}
	if p.Type != server.ProblemTypeQuota {
		t.Errorf("problem type = %q, want %q", p.Type, server.ProblemTypeQuota)
	}
	if p.Status != http.StatusForbidden {
		t.Errorf("problem status = %d, want 403", p.Status)
	}
}

func TestHandleCallUnwired(t *testing.T) {
	m := New()
	m.logger = zap.NewNop()

	rec := postCall(t, m, quizBody, auth.Caller{ID: "user-1"})
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestHandleTasks(t *testing.T) {
	m := testModule(t, llmtest.NewFake("openai"), llmtest.NewFake("anthropic"),
		allowAll(), &fakeLedger{checkAllowed: true, consumeAllow: true})

	var handler http.HandlerFunc
	for _, r := range m.Routes() {
		if r.Path == "/api/v1/gateway/tasks" {
			handler = r.Handler
		}
	}
	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest("GET", "/api/v1/gateway/tasks", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Tasks []struct {
			Task Task `json:"task"`
		} `json:"tasks"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Tasks) != len(Tasks()) {
		t.Errorf("len(tasks) = %d, want %d", len(body.Tasks), len(Tasks()))
	}
}
