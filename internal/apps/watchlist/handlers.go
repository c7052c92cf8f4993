package watchlist

import (
	"errors"
	"log/slog"
	"strconv"
	"strings"

	"github.com/ahmetcoskunkizilkaya/watchlist-backend/internal/authz"
	"github.com/ahmetcoskunkizilkaya/watchlist-backend/internal/dto"
	"github.com/gofiber/fiber/v2"
)

type MovieHandler struct {
	service *MovieService
}

func NewMovieHandler(service *MovieService) *MovieHandler {
	return &MovieHandler{service: service}
}

func (h *MovieHandler) Create(c *fiber.Ctx) error {
	caller, err := authz.GetCaller(c)
	if err != nil {
		return unauthorized(c)
	}

	var req CreateMovieRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if err := dto.Validate(&req); err != nil {
		return badRequest(c, err.Error())
	}

	movie, err := h.service.Create(c.UserContext(), caller, req)
	if err != nil {
		return serverError(c, "Failed to create movie", err)
	}

	return c.Status(fiber.StatusCreated).JSON(movie)
}

func (h *MovieHandler) List(c *fiber.Ctx) error {
	caller, err := authz.GetCaller(c)
	if err != nil {
		return unauthorized(c)
	}

	movies, err := h.service.List(c.UserContext(), caller)
	if err != nil {
		return serverError(c, "Failed to fetch movies", err)
	}

	return c.JSON(MovieListResponse{Movies: movies, Total: len(movies)})
}

func (h *MovieHandler) ListByOwner(c *fiber.Ctx) error {
	caller, err := authz.GetCaller(c)
	if err != nil {
		return unauthorized(c)
	}

	ownerID, err := parseID(c.Params("userId"))
	if err != nil {
		return badRequest(c, "Invalid user ID")
	}

	movies, err := h.service.ListByOwner(c.UserContext(), caller, ownerID)
	if err != nil {
		return mapError(c, err, "Failed to fetch movies")
	}

	return c.JSON(MovieListResponse{Movies: movies, Total: len(movies)})
}

func (h *MovieHandler) Get(c *fiber.Ctx) error {
	caller, err := authz.GetCaller(c)
	if err != nil {
		return unauthorized(c)
	}

	id, err := parseID(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid movie ID")
	}

	movie, err := h.service.Get(c.UserContext(), caller, id)
	if err != nil {
		return mapError(c, err, "Failed to fetch movie")
	}

	return c.JSON(movie)
}

func (h *MovieHandler) Update(c *fiber.Ctx) error {
	caller, err := authz.GetCaller(c)
	if err != nil {
		return unauthorized(c)
	}

	id, err := parseID(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid movie ID")
	}

	var req UpdateMovieRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if err := dto.Validate(&req); err != nil {
		return badRequest(c, err.Error())
	}

	movie, err := h.service.Update(c.UserContext(), caller, id, req)
	if err != nil {
		return mapError(c, err, "Failed to update movie")
	}

	return c.JSON(movie)
}

func (h *MovieHandler) Delete(c *fiber.Ctx) error {
	caller, err := authz.GetCaller(c)
	if err != nil {
		return unauthorized(c)
	}

	id, err := parseID(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid movie ID")
	}

	if err := h.service.Delete(c.UserContext(), caller, id); err != nil {
		return mapError(c, err, "Failed to delete movie")
	}

	return c.JSON(DeleteMovieResponse{Message: "Movie deleted successfully"})
}

func parseID(raw string) (uint, error) {
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, errors.New("invalid id")
	}
	return uint(id), nil
}

func mapError(c *fiber.Ctx, err error, fallback string) error {
	switch {
	case errors.Is(err, ErrMovieNotFound):
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{
			Error: true, Message: "Movie not found",
		})
	case errors.Is(err, ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{
			Error: true, Message: "You can only access your own movies",
		})
	}
	return serverError(c, fallback, err)
}

func unauthorized(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
		Error: true, Message: "Unauthorized",
	})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
		Error: true, Message: msg,
	})
}

func serverError(c *fiber.Ctx, msg string, err error) error {
	slog.ErrorContext(c.UserContext(), msg,
		"action", "movies."+strings.ToLower(c.Method()),
		"path", c.Path(),
		"error", err,
	)
	return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
		Error: true, Message: msg,
	})
}
