package handlers

import (
	"strings"

	"github.com/ahmetcoskunkizilkaya/watchlist-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/watchlist-backend/internal/models"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

const defaultLogLimit = 50

// AdminHandler exposes the persisted ERROR+ logs to administrators.
type AdminHandler struct {
	db *gorm.DB
}

func NewAdminHandler(db *gorm.DB) *AdminHandler {
	return &AdminHandler{db: db}
}

func (h *AdminHandler) ListLogs(c *fiber.Ctx) error {
	var q dto.LogQuery
	if err := c.QueryParser(&q); err != nil {
		return badRequest(c, "Invalid query")
	}
	q.Level = strings.ToUpper(q.Level)
	if err := dto.Validate(&q); err != nil {
		return badRequest(c, err.Error())
	}
	if q.Limit == 0 {
		q.Limit = defaultLogLimit
	}

	query := h.db.WithContext(c.UserContext()).Model(&models.SystemLog{})
	if q.Level != "" {
		query = query.Where("level = ?", q.Level)
	}
	if q.Action != "" {
		query = query.Where("action = ?", q.Action)
	}

	logs := make([]models.SystemLog, 0, q.Limit)
	if err := query.Order("timestamp DESC").Limit(q.Limit).Find(&logs).Error; err != nil {
		return internalError(c, "admin.list_logs", err)
	}

	return c.JSON(dto.LogListResponse{Logs: logs, Count: len(logs)})
}
