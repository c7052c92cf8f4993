package apps

import (
	"github.com/ahmetcoskunkizilkaya/watchlist-backend/internal/config"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// Plugin is a resource module mounted behind the JWT middleware.
type Plugin interface {
	// ID returns the unique module identifier. It doubles as the route
	// prefix: the module is mounted at /api/<ID>.
	ID() string

	// Models returns the list of GORM model pointers for AutoMigrate.
	Models() []interface{}

	// RegisterRoutes mounts module routes on the given Fiber group.
	// The group is already prefixed with /api/<ID> and has JWT middleware applied;
	// handlers read the caller with authz.GetCaller.
	RegisterRoutes(router fiber.Router, db *gorm.DB, cfg *config.Config)
}
