package calllog

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/lingora-app/llmgate/internal/auth"
	"github.com/lingora-app/llmgate/pkg/module"
)

var (
	_ module.Module       = (*Module)(nil)
	_ module.HTTPProvider = (*Module)(nil)
)

// Config controls retention of call log entries.
type Config struct {
	RetentionDays int           `mapstructure:"retention_days"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

func DefaultConfig() Config {
	return Config{RetentionDays: 30, SweepInterval: time.Hour}
}

// Module owns the call_log table, the best-effort recorder, and the
// retention sweep.
type Module struct {
	logger   *zap.Logger
	config   Config
	store    *sqlStore
	recorder *Recorder
	guard    *auth.AdminGuard

	cancel context.CancelFunc
	done   chan struct{}
}

func New() *Module {
	return &Module{guard: auth.NewAdminGuard("")}
}

func (m *Module) Info() module.Info {
	return module.Info{
		Name:        "calllog",
		Version:     "0.1.0",
		Description: "Best-effort provider call logging",
	}
}

func (m *Module) Init(ctx context.Context, deps module.Dependencies) error {
	m.logger = deps.Logger
	m.config = DefaultConfig()
	if deps.Config != nil {
		if err := deps.Config.Unmarshal(&m.config); err != nil {
			return err
		}
	}
	if m.config.RetentionDays <= 0 {
		m.config.RetentionDays = DefaultConfig().RetentionDays
	}
	if m.config.SweepInterval <= 0 {
		m.config.SweepInterval = DefaultConfig().SweepInterval
	}

	if err := deps.Store.Migrate(ctx, "calllog", migrations()); err != nil {
		return err
	}
	m.store = newSQLStore(deps.Store.DB())
	m.recorder = NewRecorder(m.store, deps.Logger)
	return nil
}

func (m *Module) Start(ctx context.Context) error {
	sweepCtx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.done = make(chan struct{})
	go m.sweepLoop(sweepCtx)
	m.logger.Info("calllog module started",
		zap.Int("retention_days", m.config.RetentionDays))
	return nil
}

func (m *Module) Stop(ctx context.Context) error {
	if m.cancel != nil {
		m.cancel()
		select {
		case <-m.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Recorder exposes the best-effort recorder for orchestrator wiring.
func (m *Module) Recorder() *Recorder {
	return m.recorder
}

// SetAdminGuard installs the guard protecting the list endpoint.
func (m *Module) SetAdminGuard(g *auth.AdminGuard) {
	m.guard = g
}

func (m *Module) sweepLoop(ctx context.Context) {
	defer close(m.done)
	ticker := time.NewTicker(m.config.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sweep(ctx)
		}
	}
}

func (m *Module) sweep(ctx context.Context) {
	cutoff := time.Now().AddDate(0, 0, -m.config.RetentionDays)
	n, err := m.store.deleteOlderThan(ctx, cutoff)
	if err != nil {
		m.logger.Warn("call log sweep failed", zap.Error(err))
		return
	}
	if n > 0 {
		m.logger.Info("call log sweep", zap.Int64("removed", n))
	}
}
