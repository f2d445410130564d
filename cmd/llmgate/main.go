package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/lingora-app/llmgate/internal/auth"
	"github.com/lingora-app/llmgate/internal/calllog"
	"github.com/lingora-app/llmgate/internal/config"
	"github.com/lingora-app/llmgate/internal/event"
	"github.com/lingora-app/llmgate/internal/gateway"
	"github.com/lingora-app/llmgate/internal/llm/anthropic"
	"github.com/lingora-app/llmgate/internal/llm/openai"
	"github.com/lingora-app/llmgate/internal/ratelimit"
	"github.com/lingora-app/llmgate/internal/registry"
	"github.com/lingora-app/llmgate/internal/schema"
	"github.com/lingora-app/llmgate/internal/server"
	"github.com/lingora-app/llmgate/internal/store"
	"github.com/lingora-app/llmgate/internal/usage"
	"github.com/lingora-app/llmgate/internal/version"
	"github.com/lingora-app/llmgate/pkg/llm"
	"github.com/lingora-app/llmgate/pkg/module"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "version" {
		fmt.Println(version.Info())
		return
	}

	configPath := flag.String("config", "", "path to configuration file")
	showVersion := flag.Bool("version", false, "print version information and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Info())
		os.Exit(0)
	}

	// Load configuration (before logger, so log level/format can be configured).
	viperCfg, err := server.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	cfg := config.New(viperCfg)

	logger, err := config.NewLogger(viperCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("llmgate starting", zap.String("version", version.Short()))

	if f := viperCfg.ConfigFileUsed(); f != "" {
		logger.Info("configuration loaded", zap.String("source", f))
	} else {
		logger.Warn("no configuration file found, using defaults")
	}

	// The rate limiter's fail-open/fail-closed policy follows the
	// deployment environment.
	environment := viperCfg.GetString("environment")
	viperCfg.Set("modules.ratelimit.environment", environment)

	// Open database
	dbPath := viperCfg.GetString("database.dsn")
	db, err := store.New(dbPath)
	if err != nil {
		logger.Fatal("failed to open database", zap.Error(err))
	}
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := db.CheckVersion(ctx, version.Short()); err != nil {
		logger.Fatal("schema version check failed", zap.Error(err))
	}
	logger.Info("database initialized", zap.String("path", dbPath))

	bus := event.NewBus(logger.Named("event"))
	reg := registry.New(logger.Named("registry"))

	// Register all modules (compile-time composition).
	rlMod := ratelimit.New()
	usageMod := usage.New()
	calllogMod := calllog.New()
	gwMod := gateway.New()
	for _, m := range []module.Module{rlMod, usageMod, calllogMod, gwMod} {
		if err := reg.Register(m); err != nil {
			logger.Fatal("failed to register module", zap.Error(err))
		}
	}

	if err := reg.Validate(); err != nil {
		logger.Fatal("module validation failed", zap.Error(err))
	}

	if err := reg.InitAll(ctx, func(name string) module.Dependencies {
		return module.Dependencies{
			Config: cfg.Sub("modules." + name),
			Logger: logger.Named(name),
			Store:  db,
			Bus:    bus,
		}
	}); err != nil {
		logger.Fatal("failed to initialize modules", zap.Error(err))
	}

	// Admin guard for operator endpoints.
	adminGuard := auth.NewAdminGuard(viperCfg.GetString("admin.key_hash"))
	calllogMod.SetAdminGuard(adminGuard)

	// Provider clients: constructed once here and injected, never
	// created lazily inside the dispatcher.
	providers := buildProviders(viperCfg, logger)
	if len(providers) == 0 {
		logger.Fatal("no providers configured; set OPENAI_API_KEY or ANTHROPIC_API_KEY")
	}

	schemas := schema.NewRegistry()
	if err := gateway.RegisterBuiltinSchemas(schemas); err != nil {
		logger.Fatal("failed to register schemas", zap.Error(err))
	}

	orch := gateway.NewOrchestrator(
		providers,
		rlMod.Limiter(),
		usageMod.Ledger(),
		calllogMod.Recorder(),
		schemas,
		logger.Named("orchestrator"),
		gwMod.Config(),
	)
	orch.SetEventSink(bus)
	gwMod.SetOrchestrator(orch)

	// Completed calls are announced on the bus for loosely-coupled
	// consumers; the audit log subscriber here is the first of them.
	auditLog := logger.Named("audit")
	bus.Subscribe(gateway.TopicCallCompleted, func(_ context.Context, ev module.Event) {
		cc, ok := ev.Payload.(gateway.CallCompleted)
		if !ok {
			return
		}
		auditLog.Info("call completed",
			zap.String("caller_id", cc.CallerID),
			zap.String("task", string(cc.Task)),
			zap.String("provider", cc.Meta.Provider),
			zap.String("model", cc.Meta.Model),
			zap.Int("input_tokens", cc.Meta.InputTokens),
			zap.Int("output_tokens", cc.Meta.OutputTokens),
			zap.Int("attempts", cc.Meta.Attempts),
			zap.Bool("used_fallback", cc.Meta.UsedFallback),
		)
	})

	if err := reg.StartAll(ctx); err != nil {
		logger.Fatal("failed to start modules", zap.Error(err))
	}

	// Caller resolution middleware. With an empty secret every bearer
	// token is rejected and unauthenticated callers stay anonymous.
	jwtSecret := viperCfg.GetString("auth.jwt_secret")
	if jwtSecret == "" {
		logger.Warn("auth.jwt_secret not set; all callers will be treated as anonymous")
	}
	srvMW := auth.Middleware(auth.NewVerifier([]byte(jwtSecret)))

	addr := fmt.Sprintf("%s:%d", viperCfg.GetString("server.host"), viperCfg.GetInt("server.port"))
	readyCheck := server.ReadinessChecker(func(ctx context.Context) error {
		return db.DB().PingContext(ctx)
	})
	srv := server.New(addr, reg, logger.Named("server"), readyCheck, srvMW)

	go func() {
		if err := srv.Start(); err != nil {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	logger.Info("llmgate ready", zap.String("addr", addr), zap.String("environment", environment))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh

	logger.Info("received shutdown signal", zap.String("signal", sig.String()))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	reg.StopAll(shutdownCtx)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}

	logger.Info("llmgate stopped")
}

// buildProviders constructs one client per provider with a configured
// credential. API keys come from the environment only, never config files.
func buildProviders(v interface {
	GetString(string) string
	GetDuration(string) time.Duration
}, logger *zap.Logger) map[string]llm.Provider {
	providers := make(map[string]llm.Provider)

	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		client, err := openai.New(openai.Config{
			BaseURL: v.GetString("providers.openai.base_url"),
			Model:   v.GetString("providers.openai.model"),
			Timeout: v.GetDuration("providers.openai.timeout"),
		}, key, logger.Named("openai"))
		if err != nil {
			logger.Fatal("failed to build openai client", zap.Error(err))
		}
		providers["openai"] = client
		logger.Info("provider configured", zap.String("provider", "openai"))
	}

	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		client, err := anthropic.New(anthropic.Config{
			BaseURL: v.GetString("providers.anthropic.base_url"),
			Model:   v.GetString("providers.anthropic.model"),
			Timeout: v.GetDuration("providers.anthropic.timeout"),
		}, key, logger.Named("anthropic"))
		if err != nil {
			logger.Fatal("failed to build anthropic client", zap.Error(err))
		}
		providers["anthropic"] = client
		logger.Info("provider configured", zap.String("provider", "anthropic"))
	}

	return providers
}
