// Package llm provides the provider SDK for the gateway's upstream model
// integrations. Every provider adapter (OpenAI, Anthropic) implements these
// interfaces; implementations live in internal/llm/{provider}/.
package llm

import "context"

// Provider is the core interface implemented by all provider adapters.
// A Provider is a stateless dispatcher: it translates a canonical message
// list into one upstream call and normalizes the result into a Response.
type Provider interface {
	// Chat creates a completion from a conversation history.
	// Use CallOption values to override model, temperature, or token budget.
	Chat(ctx context.Context, messages []Message, opts ...CallOption) (*Response, error)
}

// HealthReporter is optionally implemented by providers that can report
// connection health. Detected via type assertion.
type HealthReporter interface {
	// Heartbeat checks whether the upstream API is reachable.
	Heartbeat(ctx context.Context) error
}

// CallOption configures a single Chat call.
type CallOption func(*CallConfig)

// CallConfig holds the resolved configuration for a single call.
// Callers interact through CallOption functions, not this struct directly.
type CallConfig struct {
	Model       string
	Temperature float64
	MaxTokens   int
	JSONMode    bool
}

// WithModel sets the model for this call, overriding the provider default.
func WithModel(model string) CallOption {
	return func(c *CallConfig) { c.Model = model }
}

// WithTemperature sets the sampling temperature.
// 0.0 = deterministic, 1.0+ = creative. Provider default if unset.
func WithTemperature(temp float64) CallOption {
	return func(c *CallConfig) { c.Temperature = temp }
}

// WithMaxTokens sets the maximum number of tokens to generate.
func WithMaxTokens(max int) CallOption {
	return func(c *CallConfig) { c.MaxTokens = max }
}

// WithJSONMode asks the provider to constrain output to a JSON object,
// where the upstream API supports it. Providers without native JSON mode
// ignore this; the output validator remains the authoritative gate.
func WithJSONMode() CallOption {
	return func(c *CallConfig) { c.JSONMode = true }
}

// ApplyOptions creates a CallConfig from a list of options, starting from defaults.
func ApplyOptions(opts ...CallOption) CallConfig {
	cfg := CallConfig{
		Temperature: 0.7,
		MaxTokens:   2048,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}
