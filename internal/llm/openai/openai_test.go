package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lingora-app/llmgate/pkg/llm"
	"go.uber.org/zap"
)

func testProvider(t *testing.T, handler http.HandlerFunc) *Provider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := DefaultConfig()
	cfg.BaseURL = srv.URL
	cfg.Timeout = 5 * time.Second

	p, err := New(cfg, "test-key", zap.NewNop())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return p
}

func TestNew_MissingKeyIsConfigurationError(t *testing.T) {
	_, err := New(DefaultConfig(), "", zap.NewNop())
	if err == nil {
		t.Fatal("New() with empty key should fail")
	}
	if !llm.IsConfigurationError(err) {
		t.Errorf("error = %v, want configuration error", err)
	}
}

func TestChat_NormalizesResponse(t *testing.T) {
	p := testProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}

		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.ResponseFormat == nil || req.ResponseFormat.Type != "json_object" {
			t.Error("expected json_object response format")
		}

		_ = json.NewEncoder(w).Encode(map[string]any{
			"model": "gpt-4o-mini-2024",
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": `{"ok":true}`}, "finish_reason": "stop"},
			},
			"usage": map[string]int{"prompt_tokens": 12, "completion_tokens": 5, "total_tokens": 17},
		})
	})

	resp, err := p.Chat(context.Background(),
		[]llm.Message{{Role: llm.RoleUser, Content: "hi"}},
		llm.WithJSONMode(),
	)
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if resp.Content != `{"ok":true}` {
		t.Errorf("Content = %q", resp.Content)
	}
	if resp.Provider != "openai" {
		t.Errorf("Provider = %q, want openai", resp.Provider)
	}
	if resp.Model != "gpt-4o-mini-2024" {
		t.Errorf("Model = %q", resp.Model)
	}
	if resp.Usage.TotalTokens != 17 {
		t.Errorf("TotalTokens = %d, want 17", resp.Usage.TotalTokens)
	}
	if resp.Latency <= 0 {
		t.Error("Latency should be measured")
	}
	if !resp.Done {
		t.Error("Done = false, want true for finish_reason=stop")
	}
}

func TestChat_TruncatedSetsDoneFalse(t *testing.T) {
	p := testProvider(t, func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"model": "gpt-4o-mini",
			"choices": []map[string]any{
				{"message": map[string]string{"content": "partial"}, "finish_reason": "length"},
			},
		})
	})

	resp, err := p.Chat(context.Background(), []llm.Message{{Role: llm.RoleUser, Content: "hi"}})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if resp.Done {
		t.Error("Done = true, want false for finish_reason=length")
	}
}

func TestChat_EmptyMessages(t *testing.T) {
	p := testProvider(t, func(http.ResponseWriter, *http.Request) {
		t.Error("no request should be sent")
	})

	_, err := p.Chat(context.Background(), nil)
	if err == nil {
		t.Fatal("Chat() with no messages should fail")
	}
}

func TestChat_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(error) bool
	}{
		{"rate limit", 429, `{"error":{"message":"slow down"}}`, llm.IsRateLimitError},
		{"auth", 401, `{"error":{"message":"bad key"}}`, llm.IsAuthenticationError},
		{"server", 503, `{"error":{"message":"overloaded"}}`, llm.IsServerError},
		{"model missing", 404, `{"error":{"message":"model not found"}}`, llm.IsModelNotFoundError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := testProvider(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := p.Chat(context.Background(), []llm.Message{{Role: llm.RoleUser, Content: "hi"}})
			if err == nil {
				t.Fatal("Chat() should fail")
			}
			if !tt.check(err) {
				t.Errorf("error = %v, wrong classification", err)
			}
		})
	}
}

func TestChat_CancelledContext(t *testing.T) {
	p := testProvider(t, func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(50 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Chat(ctx, []llm.Message{{Role: llm.RoleUser, Content: "hi"}})
	if err == nil {
		t.Fatal("Chat() with cancelled context should fail")
	}
	if !llm.IsTimeoutError(err) {
		t.Errorf("error = %v, want timeout classification", err)
	}
}
