package ratelimit

import "time"

// Config holds the ratelimit module configuration.
type Config struct {
	// Environment selects the failure policy when the shared counter
	// backend is unreachable: "production" fails closed, anything else
	// falls back to the in-process limiter with a one-time warning.
	Environment string `mapstructure:"environment"`

	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`
	KeyPrefix     string `mapstructure:"key_prefix"`

	StandardLimit  int           `mapstructure:"standard_limit"`
	StandardWindow time.Duration `mapstructure:"standard_window"`
	StrictLimit    int           `mapstructure:"strict_limit"`
	StrictWindow   time.Duration `mapstructure:"strict_window"`
}

// DefaultConfig returns the default rate-limit windows: 30 req/60s standard,
// 5 req/60s strict.
func DefaultConfig() Config {
	return Config{
		Environment:    "development",
		RedisAddr:      "localhost:6379",
		KeyPrefix:      "llmgate:rl:",
		StandardLimit:  30,
		StandardWindow: time.Minute,
		StrictLimit:    5,
		StrictWindow:   time.Minute,
	}
}

// Production reports whether the fail-closed policy applies.
func (c Config) Production() bool {
	return c.Environment == "production"
}
