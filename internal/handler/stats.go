package handler

import (
	"net/http"

	"gateway/internal/logger"
	"gateway/internal/service"
)

// DetectionStatsHandler returns per-label counts from the database mirror.
func DetectionStatsHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		repo := manager.GetDetectionRepository()
		if repo == nil {
			http.Error(w, "Detection database disabled", http.StatusNotFound)
			return
		}

		stats, err := repo.CountByLabel()
		if err != nil {
			logger.Error("Failed to query detection stats: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		if err := writeJSON(w, http.StatusOK, stats); err != nil {
			logger.Error("Error encoding JSON: %v", err)
		}
	}
}
