package dto

import "github.com/ahmetcoskunkizilkaya/watchlist-backend/internal/models"

type LogQuery struct {
	Level  string `query:"level" validate:"omitempty,oneof=DEBUG INFO WARN ERROR"`
	Action string `query:"action" validate:"omitempty,max=100"`
	Limit  int    `query:"limit" validate:"omitempty,min=1,max=200"`
}

type LogListResponse struct {
	Logs  []models.SystemLog `json:"logs"`
	Count int                `json:"count"`
}
