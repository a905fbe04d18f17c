package sqlite

import (
	"fmt"

	"gateway/internal/model"
)

const insertDetection = `
	INSERT INTO detections (time, label, confidence, x1, y1, x2, y2)
	VALUES (?, ?, ?, ?, ?, ?, ?)
`

// DetectionRepository implements repository.DetectionRepository for SQLite.
type DetectionRepository struct {
	db *DB
}

// NewDetectionRepository creates a new SQLite detection repository.
func NewDetectionRepository(db *DB) *DetectionRepository {
	return &DetectionRepository{db: db}
}

// InsertBatch adds every event of a batch in a single transaction.
func (r *DetectionRepository) InsertBatch(batch model.DetectionBatch) error {
	if len(batch) == 0 {
		return nil
	}

	records := make([]model.LogRecord, len(batch))
	for i, e := range batch {
		records[i] = model.LogRecord{
			Time:       e.Timestamp.Format(model.TimeLayout),
			Label:      e.Label,
			Confidence: e.Confidence,
			X1:         e.Box.X1,
			Y1:         e.Box.Y1,
			X2:         e.Box.X2,
			Y2:         e.Box.Y2,
		}
	}
	_, err := r.InsertRecords(records)
	return err
}

// InsertRecords adds parsed log rows in a single transaction and returns how many were stored.
func (r *DetectionRepository) InsertRecords(records []model.LogRecord) (int, error) {
	r.db.Lock()
	defer r.db.Unlock()

	tx, err := r.db.Conn().Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(insertDetection)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		if _, err := stmt.Exec(rec.Time, rec.Label, rec.Confidence, rec.X1, rec.Y1, rec.X2, rec.Y2); err != nil {
			return 0, fmt.Errorf("failed to insert detection: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit detections: %w", err)
	}
	return len(records), nil
}

// GetTotalCount returns the number of mirrored detections.
func (r *DetectionRepository) GetTotalCount() (int, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var count int
	if err := r.db.Conn().QueryRow(`SELECT COUNT(*) FROM detections`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count detections: %w", err)
	}
	return count, nil
}

// GetAllLabels returns a list of all unique detected labels.
func (r *DetectionRepository) GetAllLabels() ([]string, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().Query(`SELECT DISTINCT label FROM detections ORDER BY label`)
	if err != nil {
		return nil, fmt.Errorf("failed to query labels: %w", err)
	}
	defer rows.Close()

	labels := make([]string, 0)
	for rows.Next() {
		var label string
		if err := rows.Scan(&label); err != nil {
			return nil, fmt.Errorf("failed to scan label: %w", err)
		}
		labels = append(labels, label)
	}

	return labels, rows.Err()
}

// CountByLabel aggregates detections per label, most frequent first.
func (r *DetectionRepository) CountByLabel() ([]model.LabelCount, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().Query(`
		SELECT label, COUNT(*), MAX(confidence), MAX(time)
		FROM detections
		GROUP BY label
		ORDER BY COUNT(*) DESC, label
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query label counts: %w", err)
	}
	defer rows.Close()

	stats := make([]model.LabelCount, 0)
	for rows.Next() {
		var s model.LabelCount
		if err := rows.Scan(&s.Label, &s.Count, &s.MaxConfidence, &s.LastSeen); err != nil {
			return nil, fmt.Errorf("failed to scan label count: %w", err)
		}
		stats = append(stats, s)
	}

	return stats, rows.Err()
}

// DeleteAll removes every mirrored detection.
func (r *DetectionRepository) DeleteAll() error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().Exec(`DELETE FROM detections`); err != nil {
		return fmt.Errorf("failed to delete detections: %w", err)
	}
	return nil
}
