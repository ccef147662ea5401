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

	"github.com/portal-sekolah/portal-sekolah/internal/admin"
	"github.com/portal-sekolah/portal-sekolah/internal/announcements"
	"github.com/portal-sekolah/portal-sekolah/internal/api"
	"github.com/portal-sekolah/portal-sekolah/internal/app"
	"github.com/portal-sekolah/portal-sekolah/internal/auth"
	"github.com/portal-sekolah/portal-sekolah/internal/authz"
	"github.com/portal-sekolah/portal-sekolah/internal/calendar"
	"github.com/portal-sekolah/portal-sekolah/internal/notifications"
	"github.com/portal-sekolah/portal-sekolah/internal/observability"
	"github.com/portal-sekolah/portal-sekolah/internal/platform/cache"
	"github.com/portal-sekolah/portal-sekolah/internal/platform/db"
	"github.com/portal-sekolah/portal-sekolah/internal/resources"
	"github.com/portal-sekolah/portal-sekolah/internal/shared"
	"github.com/portal-sekolah/portal-sekolah/internal/training"
	"github.com/portal-sekolah/portal-sekolah/internal/users"
	"github.com/portal-sekolah/portal-sekolah/internal/view"
	"github.com/portal-sekolah/portal-sekolah/jobs"
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

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

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

	sessionManager := shared.NewSessionManager(redisClient, "portal_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	templates, err := view.NewEngine()
	if err != nil {
		logger.Error("parse templates", slog.Any("error", err))
		os.Exit(1)
	}

	metrics := observability.NewMetrics()

	authRepo := auth.NewRepository(dbpool)
	authService := auth.NewService(authRepo, logger)
	authHandler := auth.NewHandler(logger, authService, templates, sessionManager, csrfManager)

	guard := authz.NewGuard(authService, logger, metrics)

	auditLogger := shared.NewAuditLogger(dbpool)

	jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	usersService := users.NewService(users.NewRepository(dbpool), auditLogger, logger)
	usersHandler := users.NewHandler(logger, usersService, guard, templates, csrfManager)

	announcementsService := announcements.NewService(announcements.NewRepository(dbpool), guard, jobClient, auditLogger, logger)
	announcementsHandler := announcements.NewHandler(logger, announcementsService, guard, templates, csrfManager)

	resourcesService := resources.NewService(resources.NewRepository(dbpool), guard, auditLogger, logger)
	resourcesHandler := resources.NewHandler(logger, resourcesService, guard, templates, csrfManager)

	trainingService := training.NewService(training.NewRepository(dbpool), guard, auditLogger, logger)
	trainingHandler := training.NewHandler(logger, trainingService, guard, templates, csrfManager)

	calendarService := calendar.NewService(calendar.NewRepository(dbpool), guard, jobClient, auditLogger, logger)
	calendarHandler := calendar.NewHandler(logger, calendarService, guard, templates, csrfManager)

	notificationsService := notifications.NewService(notifications.NewRepository(dbpool), logger)
	notificationsHandler := notifications.NewHandler(logger, notificationsService, guard, templates, csrfManager)

	adminHandler := admin.NewHandler(logger, admin.NewRepository(dbpool), guard, templates, csrfManager)

	apiHandler := api.NewHandler(logger, guard, announcementsService, notificationsService)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	home := &app.HomeHandler{
		Logger:        logger,
		Guard:         guard,
		Users:         usersService,
		Announcements: announcementsService,
		Resources:     resourcesService,
		Calendar:      calendarService,
		Notifications: notificationsService,
		Templates:     templates,
		CSRF:          csrfManager,
	}

	router := app.NewRouter(app.RouterParams{
		Logger:               logger,
		Config:               cfg,
		Templates:            templates,
		SessionManager:       sessionManager,
		CSRFManager:          csrfManager,
		Home:                 home,
		AuthHandler:          authHandler,
		UsersHandler:         usersHandler,
		AnnouncementsHandler: announcementsHandler,
		ResourcesHandler:     resourcesHandler,
		TrainingHandler:      trainingHandler,
		CalendarHandler:      calendarHandler,
		NotificationsHandler: notificationsHandler,
		AdminHandler:         adminHandler,
		APIHandler:           apiHandler,
		JobHandler:           jobHandler,
		Metrics:              metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
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
