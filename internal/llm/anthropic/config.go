package anthropic

import "time"

// Config holds the Anthropic adapter configuration.
type Config struct {
	BaseURL string        `mapstructure:"base_url"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// DefaultConfig returns sensible defaults for Anthropic.
func DefaultConfig() Config {
	return Config{
		BaseURL: "https://api.anthropic.com",
		Model:   "claude-3-5-haiku-latest",
		Timeout: 2 * time.Minute,
	}
}
