package middleware

import (
	"github.com/ahmetcoskunkizilkaya/watchlist-backend/internal/authz"
	"github.com/ahmetcoskunkizilkaya/watchlist-backend/internal/dto"
	"github.com/gofiber/fiber/v2"
)

// AdminRequired lets through only callers allowed to act across owners.
// It must run after JWTProtected.
func AdminRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		caller, err := authz.GetCaller(c)
		if err != nil {
			return unauthorized(c)
		}
		if !authz.CanListAll(caller) {
			return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{
				Error: true, Message: "Admin access required",
			})
		}
		return c.Next()
	}
}
