package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentryfiber "github.com/getsentry/sentry-go/fiber"

	"github.com/ahmetcoskunkizilkaya/watchlist-backend/internal/apps"
	"github.com/ahmetcoskunkizilkaya/watchlist-backend/internal/apps/watchlist"
	"github.com/ahmetcoskunkizilkaya/watchlist-backend/internal/cache"
	"github.com/ahmetcoskunkizilkaya/watchlist-backend/internal/config"
	"github.com/ahmetcoskunkizilkaya/watchlist-backend/internal/database"
	"github.com/ahmetcoskunkizilkaya/watchlist-backend/internal/handlers"
	"github.com/ahmetcoskunkizilkaya/watchlist-backend/internal/hasher"
	"github.com/ahmetcoskunkizilkaya/watchlist-backend/internal/logging"
	"github.com/ahmetcoskunkizilkaya/watchlist-backend/internal/middleware"
	"github.com/ahmetcoskunkizilkaya/watchlist-backend/internal/notify"
	"github.com/ahmetcoskunkizilkaya/watchlist-backend/internal/routes"
	"github.com/ahmetcoskunkizilkaya/watchlist-backend/internal/services"
	"github.com/ahmetcoskunkizilkaya/watchlist-backend/internal/store"
	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
)

func main() {
	cfg := config.Load()

	// Structured logging (JSON to stdout)
	logging.Setup(cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	// Database
	if err := database.Connect(cfg); err != nil {
		slog.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	db := database.DB

	// Migrate shared models
	if err := database.MigrateShared(db); err != nil {
		slog.Error("shared migration failed", "error", err)
		os.Exit(1)
	}

	// DB log handler (async batch, ERROR+ unless LOG_DB_LEVEL says otherwise)
	dbLogHandler := logging.NewDBHandler(db, logging.WithMinLevel(logging.ParseLevel(cfg.LogDBLevel)))
	slog.SetDefault(slog.New(logging.NewMultiHandler(
		logging.NewJSONHandler(os.Stdout, cfg.LogLevel),
		dbLogHandler,
	)))

	cleanupDone := make(chan struct{})
	logging.StartCleanup(db, cfg.LogRetentionDays, cleanupDone)

	// Sentry error tracking
	if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              dsn,
			EnableTracing:    true,
			TracesSampleRate: 0.2,
			Environment:      os.Getenv("APP_ENV"),
		}); err != nil {
			slog.Error("sentry init failed", "error", err)
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	// Notifications
	var delivery notify.Notifier
	if cfg.SMTPHost != "" {
		smtpNotifier, err := notify.NewSMTPNotifier(cfg)
		if err != nil {
			slog.Error("smtp notifier setup failed", "error", err)
			os.Exit(1)
		}
		delivery = smtpNotifier
		slog.Info("smtp notifier enabled", "host", cfg.SMTPHost, "port", cfg.SMTPPort)
	} else {
		delivery = notify.NewLogNotifier(slog.Default())
		slog.Warn("SMTP_HOST not set, notifications are only logged")
	}
	notifier := notify.NewAsyncNotifier(delivery, cfg.MailTimeout, slog.Default())

	// Services
	bcryptHasher, err := hasher.NewBcryptHasher(cfg.BcryptCost)
	if err != nil {
		slog.Error("invalid bcrypt cost", "cost", cfg.BcryptCost, "error", err)
		os.Exit(1)
	}
	slog.Info("password hasher ready", "algorithm", "bcrypt", "cost", bcryptHasher.Cost())
	authService := services.NewAuthService(store.NewGormUserStore(db), bcryptHasher, notifier, cfg)

	if cfg.AdminEmail != "" {
		created, err := authService.SeedAdmin(context.Background(), cfg.AdminEmail, cfg.AdminPassword)
		if err != nil {
			slog.Error("admin seed failed", "error", err)
			os.Exit(1)
		}
		if created {
			slog.Info("admin account created", "email", cfg.AdminEmail)
		}
	}

	plugins := []apps.Plugin{
		watchlist.New(),
	}

	// Migrate plugin models
	for _, p := range plugins {
		if models := p.Models(); len(models) > 0 {
			if err := database.MigrateModels(db, models); err != nil {
				slog.Error("plugin migration failed", "plugin", p.ID(), "error", err)
				os.Exit(1)
			}
			slog.Info("plugin migrated", "plugin", p.ID(), "models", len(models))
		}
	}

	// Shared limiter counters when Redis is configured
	var routeOpts routes.Options
	if cfg.RedisAddr != "" {
		client, err := cache.ConnectRedis(context.Background(), cfg)
		if err != nil {
			slog.Error("redis connection failed", "addr", cfg.RedisAddr, "error", err)
			os.Exit(1)
		}
		storage := cache.NewRedisStorage(client, "watchlist:limiter:")
		defer storage.Close()
		routeOpts.LimiterStorage = storage
		slog.Info("redis limiter storage enabled", "addr", cfg.RedisAddr)
	}

	// Fiber app
	app := fiber.New(fiber.Config{
		BodyLimit:    1 * 1024 * 1024,
		ErrorHandler: customErrorHandler,
	})

	// Sentry middleware
	app.Use(sentryfiber.New(sentryfiber.Options{
		Repanic:         true,
		WaitForDelivery: false,
	}))

	// Global middleware
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "${time} | ${status} | ${latency} | ${ip} | ${method} | ${path}\n",
	}))
	app.Use(middleware.CORS(cfg))
	app.Use(middleware.SecurityHeaders())

	routes.Setup(app, cfg, db,
		handlers.NewAuthHandler(authService),
		handlers.NewHealthHandler(db),
		handlers.NewAdminHandler(db),
		plugins,
		routeOpts,
	)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "port", cfg.Port)
		if err := app.Listen(":" + cfg.Port); err != nil {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	<-quit
	slog.Info("shutting down server...")

	if err := app.Shutdown(); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	// pending mails may still log failures, so drain them before the log sink
	notifier.Wait()
	close(cleanupDone)
	dbLogHandler.Stop()
	sentry.Flush(2 * time.Second)

	// Close database connections
	if sqlDB, err := db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			slog.Error("database close error", "error", err)
		}
	}

	slog.Info("server stopped")
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal server error"
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	// Only expose error details for client errors (4xx), not server errors (5xx)
	if code >= 500 {
		slog.Error("unhandled server error", "method", c.Method(), "path", c.Path(), "error", err.Error())
		message = "Internal server error"
	}

	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": message,
	})
}
