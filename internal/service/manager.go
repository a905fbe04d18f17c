package service

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"gateway/internal/apperror"
	"gateway/internal/dto"
	"gateway/internal/logger"
	"gateway/internal/model"
	"gateway/internal/repository"
	"gateway/internal/service/ai"
	"gateway/internal/service/camera"
	"gateway/internal/service/detection"
	"gateway/internal/service/storage"
	"gateway/internal/service/vision"
	"gateway/internal/service/websocket"
)

// Manager wires the detection pipeline: ingest, preprocess, detect, normalize, log.
type Manager struct {
	ingestor         *vision.Ingestor
	preprocessor     *vision.Preprocessor
	detectorService  *ai.Service
	csvLogger        *storage.CSVLogger
	aggregator       *storage.Aggregator
	cameraSession    *camera.Session
	websocketService *websocket.HubService
	detectionRepo    repository.DetectionRepository // opcjonalne, nil gdy baza wylaczona
	logger           *logger.Logger
	clock            func() time.Time
}

// Deps groups the collaborators of a Manager.
type Deps struct {
	Ingestor      *vision.Ingestor
	Preprocessor  *vision.Preprocessor
	Detector      *ai.Service
	CSVLogger     *storage.CSVLogger
	Aggregator    *storage.Aggregator
	Camera        *camera.Session
	Hub           *websocket.HubService
	DetectionRepo repository.DetectionRepository
	Logger        *logger.Logger
}

func NewManager(deps Deps) *Manager {
	return &Manager{
		ingestor:         deps.Ingestor,
		preprocessor:     deps.Preprocessor,
		detectorService:  deps.Detector,
		csvLogger:        deps.CSVLogger,
		aggregator:       deps.Aggregator,
		cameraSession:    deps.Camera,
		websocketService: deps.Hub,
		detectionRepo:    deps.DetectionRepo,
		logger:           deps.Logger,
		clock:            time.Now,
	}
}

// CheckReady triggers the first model load and fails fast unless the detector is Ready.
func (m *Manager) CheckReady() error {
	if state := m.detectorService.EnsureReady(); state != ai.StateReady {
		return apperror.ServiceUnavailable(state.String())
	}
	return nil
}

// Ingest reads and decodes the single image carried by the request.
func (m *Manager) Ingest(w http.ResponseWriter, r *http.Request) (*vision.DecodedImage, error) {
	payload, err := m.ingestor.ReadPayload(w, r)
	if err != nil {
		return nil, err
	}

	img, err := vision.Decode(payload.Data)
	if err != nil {
		m.logger.Warning("Undecodable %s image (%d bytes): %v", payload.Encoding, len(payload.Data), err)
		return nil, err
	}

	m.logger.Debug("Ingested %s image %dx%d", payload.Encoding, img.Width(), img.Height())
	return img, nil
}

// Detect runs the pipeline on img and closes it. A non-nil batch may come
// with a LogWriteError: the detections are valid but were not persisted.
func (m *Manager) Detect(ctx context.Context, img *vision.DecodedImage) (model.DetectionBatch, error) {
	defer img.Close()

	if err := m.CheckReady(); err != nil {
		return nil, err
	}

	if err := m.preprocessor.Apply(img); err != nil {
		return nil, apperror.InferenceError(err)
	}

	raw, err := m.detectorService.Detect(ctx, img.Mat)
	if err != nil {
		return nil, err
	}

	// klient juz sie rozlaczyl, wynik nie jest logowany
	if err := ctx.Err(); err != nil {
		m.logger.Warning("Request canceled, discarding %d detection(s)", len(raw))
		return nil, err
	}

	batch := detection.Normalize(raw, m.clock())
	return batch, m.record(batch)
}

// record persists a batch and notifies viewers. Only the CSV append is reported.
func (m *Manager) record(batch model.DetectionBatch) error {
	if len(batch) == 0 {
		return nil
	}

	logErr := m.csvLogger.Append(batch)
	if logErr != nil {
		m.logger.Error("Detection log write failed: %v", logErr)
	}

	if m.detectionRepo != nil {
		if err := m.detectionRepo.InsertBatch(batch); err != nil {
			m.logger.Error("Error saving detections to database: %v", err)
		}
	}

	if m.websocketService != nil {
		if msg, err := json.Marshal(dto.NewDetectionFeed(batch)); err == nil {
			m.websocketService.Broadcast(msg)
		}
	}

	m.logger.Info("Detected %d object(s)", len(batch))
	return logErr
}

func (m *Manager) GetDetectorService() *ai.Service {
	return m.detectorService
}

func (m *Manager) GetAggregator() *storage.Aggregator {
	return m.aggregator
}

func (m *Manager) GetCameraSession() *camera.Session {
	return m.cameraSession
}

func (m *Manager) GetWebsocketService() *websocket.HubService {
	return m.websocketService
}

func (m *Manager) GetDetectionRepository() repository.DetectionRepository {
	return m.detectionRepo
}

// Stop releases the camera and every model instance.
func (m *Manager) Stop() {
	if m.cameraSession != nil {
		m.cameraSession.Close()
	}
	m.detectorService.Close()
	m.logger.Info("Manager stopped")
}
