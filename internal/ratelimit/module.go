package ratelimit

import (
	"context"
	"fmt"

	"github.com/lingora-app/llmgate/pkg/module"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Compile-time interface guards.
var (
	_ module.Module        = (*Module)(nil)
	_ module.HealthChecker = (*Module)(nil)
)

// Module wires the rate limiter into the module lifecycle.
type Module struct {
	logger  *zap.Logger
	cfg     Config
	client  *redis.Client
	counter *RedisCounter
	limiter *Limiter
}

// New creates a new ratelimit module instance.
func New() *Module {
	return &Module{}
}

func (m *Module) Info() module.Info {
	return module.Info{
		Name:        "ratelimit",
		Version:     "0.3.0",
		Description: "Per-identifier sliding-window admission control (Redis-backed)",
		Required:    true,
	}
}

func (m *Module) Init(_ context.Context, deps module.Dependencies) error {
	m.logger = deps.Logger

	m.cfg = DefaultConfig()
	if deps.Config != nil {
		if err := deps.Config.Unmarshal(&m.cfg); err != nil {
			return fmt.Errorf("unmarshal ratelimit config: %w", err)
		}
	}
	if m.cfg.StandardLimit <= 0 || m.cfg.StrictLimit <= 0 {
		return fmt.Errorf("ratelimit: limits must be positive (standard=%d strict=%d)",
			m.cfg.StandardLimit, m.cfg.StrictLimit)
	}

	m.client = redis.NewClient(&redis.Options{
		Addr:     m.cfg.RedisAddr,
		Password: m.cfg.RedisPassword,
		DB:       m.cfg.RedisDB,
	})
	m.counter = NewRedisCounter(m.client)
	m.limiter = NewLimiter(m.counter, m.cfg, m.logger)

	m.logger.Info("rate limiter initialized",
		zap.String("redis_addr", m.cfg.RedisAddr),
		zap.String("environment", m.cfg.Environment),
		zap.Int("standard_limit", m.cfg.StandardLimit),
		zap.Int("strict_limit", m.cfg.StrictLimit),
	)
	return nil
}

func (m *Module) Start(ctx context.Context) error {
	if err := m.counter.Ping(ctx); err != nil {
		if m.cfg.Production() {
			// Fail-closed policy still applies per request; surface the
			// broken backend loudly at startup instead of refusing to boot.
			m.logger.Error("rate limit backend unreachable at startup; all requests will be rejected until it recovers",
				zap.Error(err),
			)
			return nil
		}
		m.logger.Warn("rate limit backend unreachable; development fallback limiter will be used",
			zap.Error(err),
		)
		return nil
	}
	m.logger.Info("rate limit backend connected")
	return nil
}

func (m *Module) Stop(_ context.Context) error {
	if m.client != nil {
		return m.client.Close()
	}
	return nil
}

// Health implements module.HealthChecker.
func (m *Module) Health(ctx context.Context) module.HealthStatus {
	if err := m.counter.Ping(ctx); err != nil {
		status := "degraded"
		if m.cfg.Production() {
			status = "unhealthy"
		}
		return module.HealthStatus{Status: status, Message: err.Error()}
	}
	return module.HealthStatus{Status: "healthy"}
}

// Limiter returns the admission limiter for wiring into the orchestrator.
func (m *Module) Limiter() *Limiter {
	return m.limiter
}
