// Package usage meters per-user daily message and token consumption and
// enforces plan quotas. The consume path is a single conditional UPDATE so
// that concurrent calls can never spend the same unit of quota twice.
package usage

import (
	"context"

	"go.uber.org/zap"

	"github.com/lingora-app/llmgate/pkg/module"
)

var (
	_ module.Module       = (*Module)(nil)
	_ module.HTTPProvider = (*Module)(nil)
)

// Module owns the usage ledger and its tables.
type Module struct {
	logger *zap.Logger
	ledger *Ledger
}

func New() *Module {
	return &Module{}
}

func (m *Module) Info() module.Info {
	return module.Info{
		Name:        "usage",
		Version:     "0.1.0",
		Description: "Per-user daily quota enforcement",
		Required:    true,
	}
}

func (m *Module) Init(ctx context.Context, deps module.Dependencies) error {
	m.logger = deps.Logger
	if err := deps.Store.Migrate(ctx, "usage", migrations()); err != nil {
		return err
	}
	m.ledger = NewLedger(newSQLStore(deps.Store.DB()), deps.Logger)
	return nil
}

func (m *Module) Start(ctx context.Context) error {
	m.logger.Info("usage module started")
	return nil
}

func (m *Module) Stop(ctx context.Context) error {
	return nil
}

// Ledger exposes the quota ledger for wiring into the orchestrator.
func (m *Module) Ledger() *Ledger {
	return m.ledger
}
