package watchlist

import (
	"github.com/ahmetcoskunkizilkaya/watchlist-backend/internal/config"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type WatchlistPlugin struct{}

func New() *WatchlistPlugin {
	return &WatchlistPlugin{}
}

func (p *WatchlistPlugin) ID() string { return "movies" }

func (p *WatchlistPlugin) Models() []interface{} {
	return []interface{}{
		&Movie{},
	}
}

func (p *WatchlistPlugin) RegisterRoutes(router fiber.Router, db *gorm.DB, cfg *config.Config) {
	svc := NewMovieService(db)
	handler := NewMovieHandler(svc)

	router.Post("/", handler.Create)
	router.Get("/", handler.List)
	router.Get("/user/:userId", handler.ListByOwner)
	router.Get("/:id", handler.Get)
	router.Patch("/:id", handler.Update)
	router.Delete("/:id", handler.Delete)
}
