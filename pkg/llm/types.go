package llm

import "time"

// Message represents a single message in a chat conversation.
type Message struct {
	Role    string `json:"role"` // One of RoleSystem, RoleUser, RoleAssistant.
	Content string `json:"content"`
}

// Role constants for the Message.Role field.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Response contains a provider's generated text and normalized metadata.
// Produced fresh per attempt; never shared across attempts.
type Response struct {
	Content  string        `json:"content"`  // Generated text.
	Model    string        `json:"model"`    // Resolved model name reported upstream.
	Provider string        `json:"provider"` // Adapter name: "openai", "anthropic".
	Usage    Usage         `json:"usage"`    // Normalized token accounting.
	Latency  time.Duration `json:"latency"`  // Wall-clock time around the network call.
	Done     bool          `json:"done"`     // True if generation completed (false if truncated).
}

// Usage tracks token consumption for a single provider call.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}
