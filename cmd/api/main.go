package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/user-provisioning/internal/api/http"
	"github.com/spec-kit/user-provisioning/internal/api/http/handlers"
	"github.com/spec-kit/user-provisioning/internal/config"
	"github.com/spec-kit/user-provisioning/internal/events"
	"github.com/spec-kit/user-provisioning/internal/identity"
	"github.com/spec-kit/user-provisioning/internal/observability"
	"github.com/spec-kit/user-provisioning/internal/persistence"
	"github.com/spec-kit/user-provisioning/internal/repository"
	"github.com/spec-kit/user-provisioning/internal/service"
	"github.com/spec-kit/user-provisioning/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	pool := pg.PoolHandle()
	userRepo := repository.NewUserRepository(pool)
	sequenceRepo := repository.NewSequenceRepository(pool)

	registrar := identity.NewClient(cfg.Identity, logger)
	dispatcher := events.NewInMemoryDispatcher()
	metrics := observability.NewMetrics()

	userService := service.NewUserService(service.UserDependencies{
		UserRepo:   userRepo,
		Registrar:  registrar,
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Logger:     logger,
	})
	accountService := service.NewAccountService(service.AccountDependencies{
		SequenceRepo: sequenceRepo,
		Dispatcher:   dispatcher,
		Logger:       logger,
	})

	var orphanQueue *persistence.OrphanQueue
	if cfg.Reconciler.Enabled {
		orphanQueue = persistence.NewOrphanQueue(redis, cfg.Reconciler.QueueKey)
	}

	var queue service.OrphanQueue
	if orphanQueue != nil {
		queue = orphanQueue
	}
	reconciliation := service.NewReconciliationService(dispatcher, queue, logger)
	reconciliation.RegisterHandlers()

	if orphanQueue != nil {
		reconciler := worker.NewReconciliationWorker(orphanQueue, registrar, logger, cfg.Reconciler)
		go reconciler.Run(ctx)
	}

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:   handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Users:    handlers.NewUsersHandler(userService),
		Accounts: handlers.NewAccountsHandler(accountService),
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	cancel()
	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
