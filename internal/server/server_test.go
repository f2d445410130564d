package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/lingora-app/llmgate/pkg/module"
)

type stubSource struct {
	routes map[string][]module.Route
}

func (s *stubSource) AllRoutes() map[string][]module.Route { return s.routes }
func (s *stubSource) All() []module.Module                 { return nil }

func testServer(t *testing.T, ready ReadinessChecker) *Server {
	t.Helper()
	src := &stubSource{routes: map[string][]module.Route{
		"usage": {{
			Method: "GET",
			Path:   "/api/v1/usage/today",
			Handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			},
		}},
	}}
	return New("127.0.0.1:0", src, zap.NewNop(), ready, nil)
}

func TestHealthz(t *testing.T) {
	s := testServer(t, nil)
	rec := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, httptest.NewRequest("GET", "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "alive" {
		t.Errorf("status = %q, want %q", body["status"], "alive")
	}
}

func TestReadyzNotReady(t *testing.T) {
	s := testServer(t, func(ctx context.Context) error {
		return errors.New("store not migrated")
	})
	rec := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, httptest.NewRequest("GET", "/readyz", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}

func TestModuleRoutesMounted(t *testing.T) {
	s := testServer(t, nil)
	rec := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/usage/today", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestSecurityAndVersionHeaders(t *testing.T) {
	s := testServer(t, nil)
	rec := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, httptest.NewRequest("GET", "/healthz", nil))

	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", got)
	}
	if got := rec.Header().Get("X-Llmgate-Version"); got == "" {
		t.Error("X-Llmgate-Version header missing")
	}
}

func TestRequestIDGeneratedAndPropagated(t *testing.T) {
	s := testServer(t, nil)

	rec := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, httptest.NewRequest("GET", "/healthz", nil))
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID not generated")
	}

	req := httptest.NewRequest("GET", "/healthz", nil)
	req.Header.Set("X-Request-ID", "fixed-id")
	rec = httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Request-ID"); got != "fixed-id" {
		t.Errorf("X-Request-ID = %q, want propagation", got)
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	panicking := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})
	h := RecoveryMiddleware(zap.NewNop())(panicking)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/gateway/call", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/problem+json" {
		t.Errorf("Content-Type = %q, want problem+json", ct)
	}
}

func TestEdgeRateLimit(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	h := EdgeRateLimitMiddleware(1, 2, []string{"/healthz"})(ok)

	codes := []int{}
	for i := 0; i < 4; i++ {
		req := httptest.NewRequest("GET", "/api/v1/gateway/call", nil)
		req.RemoteAddr = "198.51.100.1:1234"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK {
		t.Errorf("burst requests rejected: %v", codes)
	}
	if codes[3] != http.StatusTooManyRequests {
		t.Errorf("codes = %v, want 429 after burst", codes)
	}

	// Skipped paths are never limited.
	for i := 0; i < 10; i++ {
		req := httptest.NewRequest("GET", "/healthz", nil)
		req.RemoteAddr = "198.51.100.1:1234"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("skipped path limited on request %d", i)
		}
	}
}

func TestEdgeRateLimitPerIP(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	h := EdgeRateLimitMiddleware(1, 1, nil)(ok)

	req := httptest.NewRequest("GET", "/api/v1/gateway/call", nil)
	req.RemoteAddr = "198.51.100.1:1234"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request same IP = %d, want 429", rec.Code)
	}

	req2 := httptest.NewRequest("GET", "/api/v1/gateway/call", nil)
	req2.RemoteAddr = "198.51.100.2:1234"
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req2)
	if rec.Code != http.StatusOK {
		t.Errorf("different IP = %d, want 200", rec.Code)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	v, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if got := v.GetInt("server.port"); got != 8080 {
		t.Errorf("server.port = %d, want 8080", got)
	}
	if got := v.GetString("providers.openai.model"); got != "gpt-4o-mini" {
		t.Errorf("providers.openai.model = %q", got)
	}
	if got := v.GetInt("modules.ratelimit.standard_limit"); got != 30 {
		t.Errorf("standard_limit = %d, want 30", got)
	}
}
