package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/jetwayz/admin-console/internal/app"
	"github.com/jetwayz/admin-console/internal/auth"
	"github.com/jetwayz/admin-console/internal/dashboard"
	jobmetrics "github.com/jetwayz/admin-console/internal/jobs"
	"github.com/jetwayz/admin-console/internal/observability"
	"github.com/jetwayz/admin-console/internal/platform/cache"
	"github.com/jetwayz/admin-console/internal/rbac"
	"github.com/jetwayz/admin-console/internal/shared"
	"github.com/jetwayz/admin-console/internal/upstream"
	"github.com/jetwayz/admin-console/internal/users"
	"github.com/jetwayz/admin-console/internal/view"
	"github.com/jetwayz/admin-console/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "console_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	templates, err := view.NewEngine()
	if err != nil {
		logger.Error("parse templates", slog.Any("error", err))
		os.Exit(1)
	}

	metrics := observability.NewMetrics()

	client := upstream.NewClient(upstream.Options{
		BaseURL:  cfg.UpstreamBaseURL,
		Timeout:  cfg.UpstreamTimeout,
		Logger:   logger,
		Observer: metrics,
	})
	backend := users.UpstreamBackend(client)

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	var auditPublisher jobs.AuditPublisher = jobs.NopAuditPublisher{}
	if cfg.AuditEnabled {
		jobClient := jobs.NewClient(redisOpts, logger, jobmetrics.NewMetrics(metrics.Registerer()))
		defer func() {
			if err := jobClient.Close(); err != nil {
				logger.Warn("job client close", slog.Any("error", err))
			}
		}()
		auditPublisher = jobClient
	}

	rbacMiddleware := rbac.Middleware{Logger: logger}

	authService := auth.NewService(auth.NewGateway(client), sessionManager.TTL())
	authHandler := auth.NewHandler(logger, authService, templates, sessionManager, csrfManager, auditPublisher)

	usersService := users.NewService(backend, logger, cfg.DirectoryRole, cfg.DirectoryPageSize)
	usersHandler := users.NewHandler(logger, usersService, templates, csrfManager, rbacMiddleware, cfg.AdminRoles, auditPublisher)

	dashboardService := dashboard.NewService(backend, cfg.DirectoryRole, cfg.AdminRoles[0])
	dashboardHandler := dashboard.NewHandler(logger, dashboardService, templates, csrfManager, rbacMiddleware)

	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		Templates:        templates,
		SessionManager:   sessionManager,
		CSRFManager:      csrfManager,
		AuthHandler:      authHandler,
		UsersHandler:     usersHandler,
		DashboardHandler: dashboardHandler,
		JobHandler:       jobHandler,
		Metrics:          metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("upstream", cfg.UpstreamBaseURL))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
