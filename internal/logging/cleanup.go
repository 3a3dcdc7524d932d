package logging

import (
	"log/slog"
	"time"

	"github.com/lowtherloudspeakers/listening-circle/internal/models"
	"gorm.io/gorm"
)

// StartCleanup deletes system_logs older than retentionDays once a day until done is closed.
func StartCleanup(db *gorm.DB, retentionDays int, done chan struct{}) {
	if retentionDays <= 0 {
		retentionDays = 30
	}
	go func() {
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				purge(db, retentionDays)
			case <-done:
				return
			}
		}
	}()
}

func purge(db *gorm.DB, retentionDays int) {
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	result := db.Where("timestamp < ?", cutoff).Delete(&models.SystemLog{})
	if result.Error != nil {
		slog.Error("log cleanup failed", "error", result.Error)
		return
	}
	if result.RowsAffected > 0 {
		slog.Info("log cleanup completed", "deleted", result.RowsAffected, "retention_days", retentionDays)
	}
}
