package openai

import "time"

// Config holds the OpenAI adapter configuration.
type Config struct {
	BaseURL string        `mapstructure:"base_url"` // Override for compatible endpoints (Azure, proxies).
	Model   string        `mapstructure:"model"`    // Default model when the caller sets none.
	Timeout time.Duration `mapstructure:"timeout"`
}

// DefaultConfig returns sensible defaults for OpenAI.
func DefaultConfig() Config {
	return Config{
		BaseURL: "https://api.openai.com",
		Model:   "gpt-4o-mini",
		Timeout: 2 * time.Minute,
	}
}
