package gateway

import (
	"context"

	"go.uber.org/zap"

	"github.com/lingora-app/llmgate/pkg/module"
)

var (
	_ module.Module       = (*Module)(nil)
	_ module.HTTPProvider = (*Module)(nil)
)

// Module exposes the orchestrator over HTTP. The orchestrator itself is
// wired in by main after all modules have initialized, since it spans
// the rate limiter, the usage ledger, the call log, and the providers.
type Module struct {
	logger       *zap.Logger
	config       Config
	orchestrator *Orchestrator
}

func New() *Module {
	return &Module{}
}

func (m *Module) Info() module.Info {
	return module.Info{
		Name:         "gateway",
		Version:      "0.1.0",
		Description:  "LLM call orchestration with retry and fallback",
		Dependencies: []string{"ratelimit", "usage", "calllog"},
		Required:     true,
	}
}

func (m *Module) Init(ctx context.Context, deps module.Dependencies) error {
	m.logger = deps.Logger
	m.config = DefaultOrchestratorConfig()
	if deps.Config != nil {
		if err := deps.Config.Unmarshal(&m.config); err != nil {
			return err
		}
	}
	return nil
}

func (m *Module) Start(ctx context.Context) error {
	if m.orchestrator == nil {
		m.logger.Warn("gateway started without an orchestrator; calls will be rejected")
	}
	return nil
}

func (m *Module) Stop(ctx context.Context) error {
	return nil
}

// Config returns the module's orchestrator configuration for wiring.
func (m *Module) Config() Config {
	return m.config
}

// SetOrchestrator installs the wired orchestrator.
func (m *Module) SetOrchestrator(o *Orchestrator) {
	m.orchestrator = o
}
