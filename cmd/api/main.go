package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/commerce-support/internal/access"
	httptransport "github.com/spec-kit/commerce-support/internal/api/http"
	"github.com/spec-kit/commerce-support/internal/api/http/handlers"
	"github.com/spec-kit/commerce-support/internal/auth"
	"github.com/spec-kit/commerce-support/internal/config"
	"github.com/spec-kit/commerce-support/internal/events"
	"github.com/spec-kit/commerce-support/internal/notify"
	"github.com/spec-kit/commerce-support/internal/observability"
	"github.com/spec-kit/commerce-support/internal/persistence"
	"github.com/spec-kit/commerce-support/internal/ratelimit"
	"github.com/spec-kit/commerce-support/internal/realtime"
	"github.com/spec-kit/commerce-support/internal/repository"
	"github.com/spec-kit/commerce-support/internal/service"
	"github.com/spec-kit/commerce-support/internal/worker"
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
	orderRepo := repository.NewOrderRepository(pool)
	ticketRepo := repository.NewTicketRepository(pool)
	notificationRepo := repository.NewNotificationRepository(pool)

	var limiter ratelimit.Limiter
	if cfg.Redis.Addr != "" {
		limiter = ratelimit.NewRedisLimiter(redis.Client)
	} else {
		limiter = ratelimit.NewMemoryLimiter()
	}

	registry := realtime.NewRegistry(realtime.NewRepositoryRoleLookup(userRepo), logger)
	defer registry.Close()

	var mailer notify.Mailer
	if cfg.Email.Host != "" {
		mailer = notify.NewSMTPMailer(cfg.Email)
	} else {
		mailer = notify.NewNopMailer(logger)
	}
	notifyDispatcher := notify.NewDispatcher(notificationRepo, userRepo, registry, mailer, logger, cfg.Email.SendTimeout())
	notifyService := notify.NewService(notifyDispatcher, registry, logger)

	bus := events.NewInMemoryDispatcher(logger)
	notifyService.RegisterHandlers(bus)

	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo: ticketRepo,
		OrderRepo:  orderRepo,
		UserRepo:   userRepo,
		Gate:       access.NewGate(),
		Limiter:    limiter,
		Limits:     cfg.RateLimit,
		StaleAfter: cfg.Escalation.StaleAfter(),
		Dispatcher: bus,
		Logger:     logger,
	})
	authService := service.NewAuthService(*cfg, userRepo)
	notificationService := service.NewNotificationService(notificationRepo)
	orderService := service.NewOrderService(orderRepo)

	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), userRepo)
	realtimeHandler := realtime.NewHandler(authMiddleware, registry, ticketService, logger)

	metrics := observability.NewMetrics()
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout(), cfg.App.IsDevelopment())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Users:          handlers.NewUsersHandler(authService),
		Tickets:        handlers.NewTicketsHandler(ticketService),
		Notifications:  handlers.NewNotificationsHandler(notificationService),
		Orders:         handlers.NewOrdersHandler(orderService),
		Realtime:       realtimeHandler,
		AuthMiddleware: authMiddleware,
	})

	worker.NewEscalationWorker(ticketService, cfg.Escalation.SweepInterval(), logger).Start(ctx)

	go func() {
		logger.Info("listening", zap.String("addr", cfg.App.Addr()))
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
