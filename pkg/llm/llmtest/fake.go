// Package llmtest provides a scriptable fake llm.Provider for tests that
// exercise retry, fallback, and validation behavior without real network
// calls.
package llmtest

import (
	"context"
	"sync"
	"time"

	"github.com/lingora-app/llmgate/pkg/llm"
)

// Compile-time interface guard.
var _ llm.Provider = (*FakeProvider)(nil)

// Step is one scripted outcome for a FakeProvider call.
// Exactly one of Response or Err should be set.
type Step struct {
	Response *llm.Response
	Err      error
}

// FakeProvider replays a scripted sequence of outcomes. Once the script is
// exhausted, the last step repeats. Safe for concurrent use.
type FakeProvider struct {
	mu     sync.Mutex
	name   string
	script []Step
	calls  int
	seen   [][]llm.Message
}

// NewFake creates a FakeProvider that reports the given provider name in
// its responses.
func NewFake(name string, script ...Step) *FakeProvider {
	return &FakeProvider{name: name, script: script}
}

// Respond builds a successful step with the given content and token counts.
func Respond(content string, promptTokens, completionTokens int) Step {
	return Step{Response: &llm.Response{
		Content: content,
		Model:   "fake-model",
		Usage: llm.Usage{
			PromptTokens:     promptTokens,
			CompletionTokens: completionTokens,
			TotalTokens:      promptTokens + completionTokens,
		},
		Latency: time.Millisecond,
		Done:    true,
	}}
}

// Fail builds a failing step with a typed server error.
func Fail(message string) Step {
	return Step{Err: llm.NewProviderError(llm.ErrCodeServerError, message, nil)}
}

// FailWith builds a failing step with the given error.
func FailWith(err error) Step {
	return Step{Err: err}
}

// Chat implements llm.Provider.
func (f *FakeProvider) Chat(ctx context.Context, messages []llm.Message, opts ...llm.CallOption) (*llm.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, llm.NewProviderError(llm.ErrCodeTimeout, "context done", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.seen = append(f.seen, messages)
	step := Step{Err: llm.NewProviderError(llm.ErrCodeServerError, "no script configured", nil)}
	if len(f.script) > 0 {
		i := f.calls
		if i >= len(f.script) {
			i = len(f.script) - 1
		}
		step = f.script[i]
	}
	f.calls++

	if step.Err != nil {
		return nil, step.Err
	}

	// Copy so callers can't mutate the script's response.
	resp := *step.Response
	resp.Provider = f.name
	cfg := llm.ApplyOptions(opts...)
	if cfg.Model != "" {
		resp.Model = cfg.Model
	}
	return &resp, nil
}

// Calls returns how many times Chat was invoked.
func (f *FakeProvider) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// LastMessages returns the message list from the most recent call, or nil.
func (f *FakeProvider) LastMessages() []llm.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.seen) == 0 {
		return nil
	}
	return f.seen[len(f.seen)-1]
}
