package logging

import (
	"log/slog"
	"time"

	"github.com/ahmetcoskunkizilkaya/watchlist-backend/internal/models"
	"gorm.io/gorm"
)

// PurgeBefore deletes system_logs recorded before cutoff and returns the count.
func PurgeBefore(db *gorm.DB, cutoff time.Time) (int64, error) {
	result := db.Where("timestamp < ?", cutoff).Delete(&models.SystemLog{})
	return result.RowsAffected, result.Error
}

// StartCleanup runs a daily goroutine that deletes system_logs older than
// retentionDays. A non-positive retention disables cleanup.
func StartCleanup(db *gorm.DB, retentionDays int, done chan struct{}) {
	if retentionDays <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				deleted, err := PurgeBefore(db, time.Now().AddDate(0, 0, -retentionDays))
				if err != nil {
					slog.Error("log cleanup failed", "action", "logging.cleanup", "error", err)
				} else if deleted > 0 {
					slog.Info("log cleanup completed", "action", "logging.cleanup", "deleted", deleted)
				}
			case <-done:
				return
			}
		}
	}()
}
