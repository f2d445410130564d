package server

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds the server configuration.
type Config struct {
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
	DataDir string `mapstructure:"data_dir"`
}

// Addr returns the listen address as host:port.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LoadConfig reads configuration from file and environment variables.
func LoadConfig(configPath string) (*viper.Viper, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.data_dir", "./data")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("database.dsn", "./data/llmgate.db")
	v.SetDefault("environment", "development")

	// Auth defaults. jwt_secret and admin.key_hash have no default on
	// purpose: unset means anonymous-only and admin endpoints disabled.
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("admin.key_hash", "")

	// Module defaults
	v.SetDefault("modules.ratelimit.redis_addr", "localhost:6379")
	v.SetDefault("modules.ratelimit.redis_db", 0)
	v.SetDefault("modules.ratelimit.standard_limit", 30)
	v.SetDefault("modules.ratelimit.standard_window", "60s")
	v.SetDefault("modules.ratelimit.strict_limit", 5)
	v.SetDefault("modules.ratelimit.strict_window", "60s")
	v.SetDefault("modules.calllog.retention_days", 30)
	v.SetDefault("modules.calllog.sweep_interval", "1h")
	v.SetDefault("modules.gateway.retry_base_backoff", "500ms")
	v.SetDefault("modules.gateway.call_timeout", "2m")

	// Provider defaults. API keys come from env only.
	v.SetDefault("providers.openai.base_url", "https://api.openai.com")
	v.SetDefault("providers.openai.model", "gpt-4o-mini")
	v.SetDefault("providers.openai.timeout", "2m")
	v.SetDefault("providers.anthropic.base_url", "https://api.anthropic.com")
	v.SetDefault("providers.anthropic.model", "claude-3-5-haiku-latest")
	v.SetDefault("providers.anthropic.timeout", "2m")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("llmgate")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/llmgate")
	}

	// Environment variable support: LG_SERVER_PORT=9090
	v.SetEnvPrefix("LG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		// Config file not found is fine -- use defaults
	}

	return v, nil
}
