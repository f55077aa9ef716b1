package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v4/pgxpool"
	"go.uber.org/zap"

	httpadapter "resume-copilot/internal/adapter/http"
	"resume-copilot/internal/adapter/memory"
	"resume-copilot/internal/adapter/redisstore"
	repo "resume-copilot/internal/adapter/repository"
	"resume-copilot/internal/config"
	"resume-copilot/internal/infrastructure/migration"
	"resume-copilot/internal/logging"
	"resume-copilot/internal/usecase"
	"resume-copilot/pkg/ai"
	infra "resume-copilot/pkg/infrastructure"
)

type stores struct {
	tasks     usecase.TaskRepo
	approvals usecase.ApprovalRepo
	cache     usecase.CacheRepo
	ratelimit usecase.RateLimitRepo
	documents usecase.DocumentStore
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(2)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	pool, err := infra.NewPool(ctx, cfg.Database.URL)
	if err != nil {
		logger.Warn("database not available, using in-memory stores", zap.Error(err))
		pool = nil
	}
	if pool != nil {
		defer pool.Close()
		if err := migration.RunMigrations(ctx, pool, logger); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
	}

	st := newStores(pool)
	if cfg.RateLimit.Backend == config.BackendRedis {
		rs, err := redisstore.NewRateLimitStore(cfg.Redis.URL)
		if err != nil {
			return fmt.Errorf("redis rate limit store: %w", err)
		}
		defer rs.Close()
		st.ratelimit = rs
	}

	completer, err := ai.NewCompleter(cfg.AI, logger.Named("ai"))
	if err != nil {
		return fmt.Errorf("ai completer: %w", err)
	}
	logger.Info("ai backend configured", zap.String("provider", cfg.AI.Provider), zap.String("model", cfg.AI.Model))

	ledger := usecase.NewLedger(st.tasks, logger.Named("ledger"))
	gate := usecase.NewApprovalGate(st.approvals, logger.Named("approvals"))
	cache := usecase.NewCache(st.cache, logger.Named("cache"))
	limiter := usecase.NewLimiter(st.ratelimit, logger.Named("ratelimit"))

	executor := usecase.NewExecutor(usecase.PipelineDeps{
		Ledger:         ledger,
		Approvals:      gate,
		Cache:          cache,
		Completer:      completer,
		Documents:      st.documents,
		Logger:         logger.Named("pipeline"),
		ModelTTL:       cfg.Cache.ModelTTL,
		MaxSourceChars: cfg.Pipeline.MaxSourceChars,
	})
	svc := usecase.NewService(usecase.ServiceDeps{
		Executor:  executor,
		Ledger:    ledger,
		Approvals: gate,
		Artifacts: usecase.NewArtifactGenerator(ledger, gate, completer, st.documents, logger.Named("artifact")),
		Limiter:   limiter,
		Markup:    infra.NewMarkdownRenderer(),
		Renderer:  infra.NewChromedpRenderer(cfg.Render.ChromePath),
		Logger:    logger,
	}, usecase.ServiceConfig{
		PipelineLimit:   cfg.RateLimit.PipelineLimit,
		PipelineWindow:  cfg.RateLimit.PipelineWindow,
		PollMaxAttempts: cfg.Pipeline.PollMaxAttempts,
		PollInterval:    cfg.Pipeline.PollInterval,
	})

	if cfg.Server.MaintenanceInterval > 0 {
		maxWindow := cfg.RateLimit.PipelineWindow
		if cfg.RateLimit.HTTPWindow > maxWindow {
			maxWindow = cfg.RateLimit.HTTPWindow
		}
		m := usecase.NewMaintenance(cache, limiter, maxWindow, logger.Named("maintenance"))
		go m.Run(ctx, cfg.Server.MaintenanceInterval)
	}

	app := fiber.New(fiber.Config{
		AppName:      "resume-copilot",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.AI.Timeout + 30*time.Second,
		BodyLimit:    8 * 1024 * 1024,
	})
	app.Use(recover.New())
	app.Use(fiberlogger.New())

	httpadapter.NewHandler(svc, logger.Named("http")).Register(app, httpadapter.RouterConfig{
		JWTSecret:  cfg.Auth.JWTSecret,
		Limiter:    limiter,
		HTTPLimit:  cfg.RateLimit.HTTPLimit,
		HTTPWindow: cfg.RateLimit.HTTPWindow,
	})
	if cfg.Auth.JWTSecret == "" {
		logger.Warn("no jwt secret configured, trusting the X-User-ID header")
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("port", cfg.Server.Port))
		errCh <- app.Listen(":" + cfg.Server.Port)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down")
	return app.ShutdownWithTimeout(15 * time.Second)
}

func newStores(pool *pgxpool.Pool) stores {
	if pool == nil {
		return stores{
			tasks:     memory.NewTaskRepo(),
			approvals: memory.NewApprovalRepo(),
			cache:     memory.NewCacheRepo(),
			ratelimit: memory.NewRateLimitRepo(),
			documents: memory.NewDocumentStore(),
		}
	}
	return stores{
		tasks:     repo.NewTaskRepo(pool),
		approvals: repo.NewApprovalRepo(pool),
		cache:     repo.NewCacheRepo(pool),
		ratelimit: repo.NewRateLimitRepo(pool),
		documents: repo.NewDocumentStore(pool),
	}
}
