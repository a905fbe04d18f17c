package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"gateway/internal/config"
	"gateway/internal/logger"
	"gateway/internal/repository"
	"gateway/internal/repository/sqlite"
	"gateway/internal/route"
	"gateway/internal/service"
	"gateway/internal/service/ai"
	"gateway/internal/service/camera"
	"gateway/internal/service/storage"
	"gateway/internal/service/vision"
	"gateway/internal/service/websocket"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	config     *config.Config
	logger     *logger.Logger
	db         *sqlite.DB
	detector   *ai.Service
	hubService *websocket.HubService
	manager    *service.Manager
}

func NewApp() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	log, err := logger.NewLogger(cfg)
	if err != nil {
		return nil, err
	}

	var (
		db            *sqlite.DB
		detectionRepo repository.DetectionRepository
	)
	if cfg.DatabasePath != "" {
		db, err = sqlite.New(cfg.DatabasePath)
		if err != nil {
			log.Close()
			return nil, fmt.Errorf("failed to open detection database: %w", err)
		}
		detectionRepo = sqlite.NewDetectionRepository(db)
	}

	detector := ai.NewDetectorService(cfg, log)
	hub := websocket.NewHubService(log)

	mng := service.NewManager(service.Deps{
		Ingestor:      vision.NewIngestor(cfg.MaxUploadBytes),
		Preprocessor:  vision.NewPreprocessor(cfg.MaxImageWidth),
		Detector:      detector,
		CSVLogger:     storage.NewCSVLogger(cfg, log),
		Aggregator:    storage.NewAggregator(cfg.LogDirectory, log),
		Camera:        camera.NewSession(camera.NewGoCVOpener(cfg.CameraDevice), log),
		Hub:           hub,
		DetectionRepo: detectionRepo,
		Logger:        log,
	})

	return &App{
		config:     cfg,
		logger:     log,
		db:         db,
		detector:   detector,
		hubService: hub,
		manager:    mng,
	}, nil
}

// Run serves HTTP until SIGINT/SIGTERM, then releases the camera, the model pool and the database.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go a.hubService.Run(ctx)

	// model laduje sie w tle, /detect zwraca 503 do czasu gotowosci
	a.detector.EnsureReady()

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.config.Port),
		Handler:           route.SetupRoutes(a.manager, a.config, a.logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	a.logger.Info("Detection gateway listening on http://localhost:%d", a.config.Port)
	a.logger.Info("Model: %s (%s backend, %d worker(s))", a.config.ModelPath, a.config.DetectorBackend, a.config.InferenceWorkers)
	a.logger.Info("Detection log: %s", a.config.LogDirectory)

	serveErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var runErr error
	select {
	case runErr = <-serveErr:
	case <-ctx.Done():
		a.logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := server.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("HTTP shutdown: %v", err)
		}
		cancel()
	}

	a.manager.Stop()
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Error("Error closing database: %v", err)
		}
	}
	a.logger.Close()
	return runErr
}
