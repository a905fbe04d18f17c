package route

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/gorilla/mux"

	"gateway/internal/config"
	"gateway/internal/handler"
	"gateway/internal/logger"
	"gateway/internal/middleware"
	"gateway/internal/service"
)

// dynamicHTMLHandler serves /path as /static/path.html if the file exists; otherwise 404.
func dynamicHTMLHandler(w http.ResponseWriter, r *http.Request) {
	page := mux.Vars(r)["page"]
	filePath := filepath.Join(handler.StaticDir, filepath.Clean("/"+page)+".html")

	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		http.NotFound(w, r)
		return
	}

	http.ServeFile(w, r, filePath)
}

// SetupRoutes registers HTTP routes, static file serving and API endpoints,
// and wraps the router with request id and access log middleware.
func SetupRoutes(manager *service.Manager, cfg *config.Config, logger *logger.Logger) http.Handler {
	r := mux.NewRouter()
	limiter := middleware.NewRateLimiter(cfg.DetectRateLimit, cfg.DetectRateBurst, logger)

	// Static files
	r.PathPrefix("/static/").Handler(http.StripPrefix("/static/", http.FileServer(http.Dir(handler.StaticDir))))

	r.HandleFunc("/", handler.IndexHandler(manager, logger)).Methods(http.MethodGet)
	r.HandleFunc("/health", handler.HealthHandler()).Methods(http.MethodGet)

	// Detection
	r.Handle("/detect", limiter.Limit(handler.DetectHandler(manager, logger))).Methods(http.MethodPost)
	r.HandleFunc("/model", handler.ModelStatusHandler(manager, cfg)).Methods(http.MethodGet)
	r.HandleFunc("/model/reload", handler.ModelReloadHandler(manager, cfg, logger)).Methods(http.MethodPost)

	// Camera
	r.HandleFunc("/camera-feed", handler.CameraFeedHandler(manager, logger)).Methods(http.MethodGet)
	r.HandleFunc("/camera/release", handler.CameraReleaseHandler(manager, logger)).Methods(http.MethodPost)

	// Detection log
	r.HandleFunc("/csv-data", handler.CSVDataHandler(manager, logger)).Methods(http.MethodGet)
	r.HandleFunc("/csv", handler.CSVPageHandler(manager, cfg, logger)).Methods(http.MethodGet)
	r.HandleFunc("/logs/detections.csv", handler.CSVDownloadHandler(manager, logger)).Methods(http.MethodGet)

	// API endpoints
	r.HandleFunc("/api/view", handler.DetectionFeedHandler(manager, logger)).Methods(http.MethodGet)
	r.HandleFunc("/api/detections/stats", handler.DetectionStatsHandler(manager, logger)).Methods(http.MethodGet)

	// Service log
	r.HandleFunc("/logs/service", handler.ShowServiceLogHandler(logger)).Methods(http.MethodGet)
	r.HandleFunc("/logs/service/clear", handler.ClearServiceLogHandler(logger)).Methods(http.MethodPost)

	// Automatic HTML handler mapping for example: /camera -> /static/camera.html
	r.HandleFunc("/{page}", dynamicHTMLHandler).Methods(http.MethodGet)

	r.Use(middleware.RequestID, middleware.AccessLog(logger))
	return r
}
