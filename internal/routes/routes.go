package routes

import (
	"time"

	"github.com/ahmetcoskunkizilkaya/watchlist-backend/internal/apps"
	"github.com/ahmetcoskunkizilkaya/watchlist-backend/internal/config"
	"github.com/ahmetcoskunkizilkaya/watchlist-backend/internal/handlers"
	"github.com/ahmetcoskunkizilkaya/watchlist-backend/internal/middleware"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"gorm.io/gorm"
)

type Options struct {
	// LimiterStorage shares limiter counters across instances. Nil keeps
	// them in process memory.
	LimiterStorage fiber.Storage
	// DisableLimiter turns rate limiting off entirely (tests).
	DisableLimiter bool
}

func Setup(
	app *fiber.App,
	cfg *config.Config,
	db *gorm.DB,
	authHandler *handlers.AuthHandler,
	healthHandler *handlers.HealthHandler,
	adminHandler *handlers.AdminHandler,
	plugins []apps.Plugin,
	opts Options,
) {
	api := app.Group("/api")

	if !opts.DisableLimiter {
		// General API rate limiter: 60 req/min per IP
		api.Use(newLimiter(60, opts.LimiterStorage))
	}

	api.Get("/health", healthHandler.Check)

	auth := api.Group("/auth")
	if !opts.DisableLimiter {
		// Auth-specific rate limit: 10 req/min per IP (stricter)
		auth.Use(newLimiter(10, opts.LimiterStorage))
	}
	auth.Post("/register", authHandler.Register)
	auth.Get("/verify-email", authHandler.VerifyEmail)
	auth.Post("/login", authHandler.Login)
	auth.Post("/verify-2fa", authHandler.Verify2FA)

	// JWT applied per route so the public auth routes stay open
	api.Get("/auth/me", middleware.JWTProtected(cfg), authHandler.Me)

	admin := api.Group("/admin", middleware.JWTProtected(cfg), middleware.AdminRequired())
	admin.Get("/logs", adminHandler.ListLogs)

	for _, p := range plugins {
		p.RegisterRoutes(api.Group("/"+p.ID(), middleware.JWTProtected(cfg)), db, cfg)
	}
}

func newLimiter(max int, storage fiber.Storage) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:               max,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return c.IP() },
		Storage:           storage,
	})
}
