package ai

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"

	"gocv.io/x/gocv"

	"gateway/internal/apperror"
	"gateway/internal/config"
	"gateway/internal/logger"
	"gateway/internal/model"
)

// Service owns the model pool and its lifecycle state.
// Detect is only served in StateReady; every other state fails fast.
type Service struct {
	factory Factory
	workers int
	params  Params
	labels  Labels
	logger  *logger.Logger

	labelsPath string
	onnx       bool

	mu      sync.RWMutex
	state   State
	lastErr error
	pool    *Pool
	loaded  chan struct{}
}

// NewDetectorService builds the service for the configured backend. Nothing is loaded yet.
func NewDetectorService(cfg *config.Config, logger *logger.Logger) *Service {
	exportThreadCaps(cfg, logger)

	var factory Factory
	switch cfg.DetectorBackend {
	case BackendONNX:
		labels, _ := LoadLabels(cfg.LabelsPath)
		factory = NewONNXFactory(ONNXOptions{
			ModelPath:   cfg.ModelPath,
			LibraryPath: cfg.OnnxRuntimeLib,
			Size:        cfg.InferenceSize,
			Threads:     cfg.InferenceThreads,
			NumClasses:  len(labels),
		})
	default:
		factory = NewDNNFactory(cfg.ModelPath, cfg.ModelConfigPath)
	}

	s := NewService(factory, cfg.InferenceWorkers, Params{
		Confidence: cfg.ConfidenceThreshold,
		IoU:        cfg.IoUThreshold,
		Size:       cfg.InferenceSize,
	}, logger)
	s.labelsPath = cfg.LabelsPath
	s.onnx = cfg.DetectorBackend == BackendONNX
	return s
}

// NewService wires an arbitrary backend factory. Used directly by tests.
func NewService(factory Factory, workers int, params Params, logger *logger.Logger) *Service {
	return &Service{
		factory: factory,
		workers: workers,
		params:  params,
		logger:  logger,
		state:   StateUninitialized,
	}
}

// exportThreadCaps hands the configured limits to OpenCV before the first net is built.
func exportThreadCaps(cfg *config.Config, logger *logger.Logger) {
	if cfg.InferenceThreads > 0 && os.Getenv("OPENCV_FOR_THREADS_NUM") == "" {
		os.Setenv("OPENCV_FOR_THREADS_NUM", strconv.Itoa(cfg.InferenceThreads))
	}

	if err := os.MkdirAll(cfg.CacheDirectory, 0755); err != nil {
		logger.Warning("Could not create cache directory %s: %v", cfg.CacheDirectory, err)
		return
	}
	if os.Getenv("OPENCV_OPENCL_CACHE_DIR") == "" {
		os.Setenv("OPENCV_OPENCL_CACHE_DIR", cfg.CacheDirectory)
	}
}

// State returns the current lifecycle state.
func (s *Service) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// LastError returns why the last load failed, if it did.
func (s *Service) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// Load loads the model synchronously. It is a no-op unless the service is Uninitialized.
func (s *Service) Load() error {
	done, started := s.begin(false)
	if !started {
		<-done
		return s.LastError()
	}
	s.load(done)
	return s.LastError()
}

// EnsureReady starts a background load the first time it is called and returns
// the current state. Calling it again never restarts a load.
func (s *Service) EnsureReady() State {
	if done, started := s.begin(false); started {
		go s.load(done)
	}
	return s.State()
}

// Reload discards the current model and loads it again in the background.
// It is the only way out of StateFailed. Returns false if a load is already running.
func (s *Service) Reload() bool {
	done, started := s.begin(true)
	if !started {
		return false
	}
	go s.load(done)
	return true
}

// Wait blocks until the running load, if any, has finished.
func (s *Service) Wait() {
	s.mu.RLock()
	done := s.loaded
	s.mu.RUnlock()
	if done != nil {
		<-done
	}
}

// begin moves the state to Loading when allowed and returns the completion channel.
func (s *Service) begin(force bool) (chan struct{}, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateLoading {
		return s.loaded, false
	}
	if !force && s.state != StateUninitialized {
		done := make(chan struct{})
		close(done)
		return done, false
	}

	old := s.pool
	s.pool = nil
	if old != nil {
		old.Close()
	}

	s.state = StateLoading
	s.lastErr = nil
	s.loaded = make(chan struct{})
	return s.loaded, true
}

func (s *Service) load(done chan struct{}) {
	defer close(done)

	s.logger.Info("Loading detection model (%d instance(s))", s.workers)

	var labels Labels
	if s.labelsPath != "" {
		var err error
		labels, err = LoadLabels(s.labelsPath)
		if err != nil {
			s.logger.Warning("Labels unavailable, class ids will be used: %v", err)
		}
	}

	pool, err := s.buildPool()

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.state = StateFailed
		s.lastErr = err
		s.logger.Error("Could not initialize detection model: %v", err)
		return
	}
	s.labels = labels
	s.pool = pool
	s.state = StateReady
	s.logger.Info("Detection model ready")
}

// buildPool converts factory panics into errors so a broken model ends in StateFailed.
func (s *Service) buildPool() (pool *Pool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("model loader panic: %v", r)
		}
	}()
	return NewPool(s.factory, s.workers)
}

// Detect runs inference on img. The returned detections keep backend order.
func (s *Service) Detect(ctx context.Context, img gocv.Mat) ([]model.RawDetection, error) {
	s.mu.RLock()
	state, pool := s.state, s.pool
	s.mu.RUnlock()

	if state != StateReady || pool == nil {
		return nil, apperror.ServiceUnavailable(state.String())
	}

	backend, err := pool.Acquire(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, ErrPoolClosed) {
			return nil, apperror.ServiceUnavailable(StateLoading.String())
		}
		return nil, apperror.ServiceUnavailable("busy")
	}
	defer pool.Release(backend)

	return s.infer(backend, img)
}

func (s *Service) infer(backend Backend, img gocv.Mat) (detections []model.RawDetection, err error) {
	defer func() {
		if r := recover(); r != nil {
			detections = nil
			err = apperror.InferenceError(fmt.Errorf("backend panic: %v", r))
		}
	}()

	detections, err = backend.Infer(img, s.params)
	if err != nil {
		return nil, apperror.InferenceError(err)
	}

	s.mu.RLock()
	labels := s.labels
	s.mu.RUnlock()
	for i := range detections {
		if detections[i].Label == "" {
			detections[i].Label = labels.Name(detections[i].ClassID)
		}
	}
	return detections, nil
}

// Metrics reports pool usage, zero when no model is loaded.
func (s *Service) Metrics() PoolStats {
	s.mu.RLock()
	pool := s.pool
	s.mu.RUnlock()
	if pool == nil {
		return PoolStats{}
	}
	return pool.GetMetrics()
}

// Close releases every model instance.
func (s *Service) Close() {
	s.Wait()

	s.mu.Lock()
	pool := s.pool
	s.pool = nil
	s.state = StateUninitialized
	s.mu.Unlock()

	if pool != nil {
		pool.Close()
	}
	if s.onnx {
		DestroyONNXEnvironment()
	}
}
