package handler

import (
	"context"
	"errors"
	"net/http"

	"gateway/internal/apperror"
	"gateway/internal/dto"
	"gateway/internal/logger"
	"gateway/internal/service"
)

// DetectHandler runs the detection pipeline on the uploaded image and
// returns [{label, confidence, bbox}]. A failed log append is logged only.
func DetectHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := manager.CheckReady(); err != nil {
			writeError(w, err)
			return
		}

		img, err := manager.Ingest(w, r)
		if err != nil {
			logger.Warning("Rejected detect request: %v", err)
			writeError(w, err)
			return
		}

		batch, err := manager.Detect(r.Context(), img)
		switch {
		case err == nil, apperror.Is(err, apperror.KindLogWrite):
			writeJSON(w, http.StatusOK, dto.FromBatch(batch))
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			// klient rozlaczony, nie ma komu odpowiadac
			return
		default:
			logger.Error("Detection failed: %v", err)
			writeError(w, err)
		}
	}
}
