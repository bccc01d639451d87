package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/phrazzld/eco-queue/internal/auth"
	"github.com/phrazzld/eco-queue/internal/chat"
	"github.com/phrazzld/eco-queue/internal/config"
	"github.com/phrazzld/eco-queue/internal/dispatch"
	"github.com/phrazzld/eco-queue/internal/executor"
	"github.com/phrazzld/eco-queue/internal/platform/chatgateway"
	"github.com/phrazzld/eco-queue/internal/platform/postgres"
	"github.com/phrazzld/eco-queue/internal/platform/redis"
	"github.com/phrazzld/eco-queue/internal/provision"
	"github.com/phrazzld/eco-queue/internal/ratelimit"
	"github.com/phrazzld/eco-queue/internal/service"
	"github.com/phrazzld/eco-queue/internal/task"
)

// application holds all the shared application dependencies to simplify management
// and ensure proper cleanup on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB
	rdb    goredis.UniversalClient

	tasks      task.Store
	governor   ratelimit.Governor
	ecosystems *service.EcosystemService

	// tokens is nil when no trigger secret is configured.
	tokens  *auth.TriggerTokens
	invoker *dispatch.HTTPInvoker

	dispatcher *dispatch.Dispatcher
	chain      *dispatch.Chain
	loop       *dispatch.Loop
}

// newApplication creates a new application instance with all dependencies initialized.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger, db *sql.DB) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
		db:     db,
	}

	app.tasks = postgres.NewPostgresTaskStore(db, logger)

	var err error
	app.governor, err = app.setupGovernor(ctx)
	if err != nil {
		return nil, err
	}

	app.ecosystems, err = service.NewEcosystemService(
		db,
		postgres.NewPostgresEcosystemStore(db, logger),
		postgres.NewPostgresShortLinkStore(db, logger),
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create ecosystem service: %w", err)
	}

	client := chatgateway.New(cfg.Chat.GatewayURL, cfg.Chat.GatewayToken, cfg.Chat.Timeout, nil, logger)
	resolver := chat.NewResolver(client, cfg.Chat.DialogsLimit)
	provisioner := provision.New(client, app.ecosystems, app.tasks, cfg.Provision, logger)
	executors := executor.NewRegistry(client, resolver, provisioner, executor.PromoConfig{
		Topic:  cfg.Provision.PromoTopic,
		Text:   cfg.Provision.PromoText,
		Button: cfg.Provision.PromoButton,
	}, logger)

	app.dispatcher = dispatch.NewDispatcher(app.tasks, app.governor, executors, logger)

	if cfg.Dispatch.TriggerSecret != "" {
		app.tokens, err = auth.NewTriggerTokens(cfg.Dispatch.TriggerSecret, auth.DefaultTokenLifetime)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize trigger tokens: %w", err)
		}
	}

	var scheduler dispatch.Scheduler
	if cfg.Dispatch.TriggerURL != "" {
		var issuer dispatch.TokenIssuer
		if app.tokens != nil {
			issuer = app.tokens
		}
		app.invoker = dispatch.NewHTTPInvoker(cfg.Dispatch.TriggerURL, issuer, nil, logger)
		scheduler = app.invoker
		logger.Info("self-chaining dispatcher enabled", "authenticated", issuer != nil)
	}

	app.chain = dispatch.NewChain(
		app.dispatcher,
		app.tasks,
		postgres.NewPostgresContinuationStore(db, logger),
		scheduler,
		dispatch.ChainConfig{
			InlineWaitMax: cfg.Dispatch.InlineWaitMax,
			ChainDelay:    cfg.Dispatch.ChainDelay,
		},
		logger,
	)

	queues := make([]task.Queue, 0, len(cfg.Dispatch.Queues))
	for _, q := range cfg.Dispatch.Queues {
		queues = append(queues, task.Queue(q))
	}
	app.loop = dispatch.NewLoop(app.dispatcher, app.tasks, dispatch.LoopConfig{
		Queues:         queues,
		InterTaskDelay: cfg.Dispatch.InterTaskDelay,
		IdleDelay:      cfg.Dispatch.IdleDelay,
		StuckAfter:     cfg.Dispatch.StuckAfter,
	}, logger)

	logger.Info("Application initialized successfully", "dispatcher_id", app.dispatcher.Owner())
	return app, nil
}

// setupGovernor builds the configured rate-limit governor backend.
func (app *application) setupGovernor(ctx context.Context) (ratelimit.Governor, error) {
	cfg := app.config.Governor
	switch cfg.Backend {
	case "redis":
		app.rdb = goredis.NewUniversalClient(&goredis.UniversalOptions{Addrs: []string{cfg.RedisAddr}})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := app.rdb.Ping(pingCtx).Err(); err != nil {
			return nil, fmt.Errorf("failed to reach redis governor: %w", err)
		}
		app.logger.Info("Rate-limit governor backed by redis", "key", cfg.RedisKey)
		return redis.NewGovernor(app.rdb, cfg.RedisKey, app.logger), nil
	default:
		app.logger.Info("Rate-limit governor backed by postgres")
		return postgres.NewPostgresGovernor(app.db, app.logger), nil
	}
}

// Run serves HTTP and, when configured, runs the persistent loop alongside it.
// Both stop when ctx is cancelled; the first failure stops the other.
func (app *application) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return app.startHTTPServer(gctx, app.setupRouter())
	})

	if app.config.Dispatch.Worker {
		g.Go(func() error {
			app.logger.Info("persistent dispatch loop starting")
			return app.loop.Run(gctx)
		})
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// cleanup handles graceful shutdown of application resources.
func (app *application) cleanup() {
	if app.invoker != nil {
		app.invoker.Stop()
	}
	if app.rdb != nil {
		if err := app.rdb.Close(); err != nil {
			app.logger.Error("Error closing redis connection", "error", err)
		}
	}
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("Error closing database connection", "error", err)
		}
	}
	app.logger.Info("Application shutdown completed")
}
