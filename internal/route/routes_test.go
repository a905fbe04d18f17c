package route

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"gateway/internal/config"
	"gateway/internal/logger"
	"gateway/internal/middleware"
	"gateway/internal/service"
	"gateway/internal/service/ai"
	"gateway/internal/service/camera"
	"gateway/internal/service/storage"
	"gateway/internal/service/vision"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	log := logger.NewNop()
	logDir := filepath.Join(t.TempDir(), "logs")
	cfg := &config.Config{DetectorBackend: ai.BackendDNN, InferenceWorkers: 1, TailRows: 10, DetectRateBurst: 1}

	detector := ai.NewService(func() (ai.Backend, error) {
		return nil, errors.New("no model in router tests")
	}, 1, ai.Params{Size: 416}, log)
	mng := service.NewManager(service.Deps{
		Ingestor:     vision.NewIngestor(1 << 20),
		Preprocessor: vision.NewPreprocessor(640),
		Detector:     detector,
		CSVLogger:    storage.NewCSVLoggerWithClock(logDir, config.RotationNone, time.Now, log),
		Aggregator:   storage.NewAggregator(logDir, log),
		Camera: camera.NewSession(func() (camera.Device, error) {
			return nil, http.ErrNotSupported
		}, log),
		Logger: log,
	})
	t.Cleanup(mng.Stop)

	return SetupRoutes(mng, cfg, log)
}

func TestRoutes_Methods(t *testing.T) {
	router := newTestRouter(t)

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodGet, "/health", http.StatusOK},
		{http.MethodGet, "/csv-data", http.StatusOK},
		{http.MethodGet, "/logs/detections.csv", http.StatusOK},
		{http.MethodPost, "/camera/release", http.StatusOK},
		{http.MethodGet, "/model", http.StatusOK},
		{http.MethodGet, "/model/reload", http.StatusMethodNotAllowed},
		{http.MethodGet, "/no-such-page", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, httptest.NewRequest(tt.method, tt.path, nil))
			if rr.Code != tt.want {
				t.Errorf("Expected %d, got %d", tt.want, rr.Code)
			}
		})
	}
}

func TestRoutes_RequestIDHeader(t *testing.T) {
	router := newTestRouter(t)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rr.Header().Get(middleware.RequestIDKey) == "" {
		t.Error("Expected request id header on every response")
	}
}
