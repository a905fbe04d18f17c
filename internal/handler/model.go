package handler

import (
	"net/http"

	"gateway/internal/config"
	"gateway/internal/dto"
	"gateway/internal/logger"
	"gateway/internal/service"
	"gateway/internal/service/ai"
)

// ModelStatusHandler reports the detector lifecycle state.
func ModelStatusHandler(manager *service.Manager, cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, modelStatus(manager.GetDetectorService(), cfg))
	}
}

// ModelReloadHandler starts an explicit reload; the only way out of the failed state.
func ModelReloadHandler(manager *service.Manager, cfg *config.Config, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		detector := manager.GetDetectorService()
		if detector.Reload() {
			logger.Info("Model reload requested")
		}
		writeJSON(w, http.StatusAccepted, modelStatus(detector, cfg))
	}
}

func modelStatus(detector *ai.Service, cfg *config.Config) dto.ModelStatus {
	status := dto.ModelStatus{
		State:     detector.State().String(),
		Backend:   cfg.DetectorBackend,
		ModelPath: cfg.ModelPath,
		Workers:   cfg.InferenceWorkers,
		InUse:     detector.Metrics().InUse,
	}
	if err := detector.LastError(); err != nil {
		status.Error = err.Error()
	}
	return status
}
