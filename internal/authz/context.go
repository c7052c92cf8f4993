package authz

import (
	"errors"
	"strconv"

	"github.com/ahmetcoskunkizilkaya/watchlist-backend/internal/models"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

var ErrNoCaller = errors.New("no authenticated caller")

// GetCaller rebuilds the caller from the JWT the middleware stored in locals.
func GetCaller(c *fiber.Ctx) (Caller, error) {
	token, ok := c.Locals("user").(*jwt.Token)
	if !ok || token == nil {
		return Caller{}, ErrNoCaller
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Caller{}, errors.New("invalid claims")
	}
	return CallerFromClaims(claims)
}

func CallerFromClaims(claims jwt.MapClaims) (Caller, error) {
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return Caller{}, errors.New("missing sub claim")
	}
	id, err := strconv.ParseUint(sub, 10, 64)
	if err != nil || id == 0 {
		return Caller{}, errors.New("invalid sub claim")
	}

	roleStr, _ := claims["role"].(string)
	role := models.Role(roleStr)
	if !role.Valid() {
		return Caller{}, errors.New("invalid role claim")
	}

	email, _ := claims["email"].(string)
	return Caller{ID: uint(id), Email: email, Role: role}, nil
}
