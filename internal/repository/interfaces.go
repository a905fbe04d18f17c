package repository

import (
	"gateway/internal/model"
)

// DetectionRepository mirrors logged detections into a queryable store.
type DetectionRepository interface {
	// Create operations
	InsertBatch(batch model.DetectionBatch) error
	InsertRecords(records []model.LogRecord) (int, error)

	// Read operations
	GetTotalCount() (int, error)
	GetAllLabels() ([]string, error)
	CountByLabel() ([]model.LabelCount, error)

	// Delete operations
	DeleteAll() error
}
