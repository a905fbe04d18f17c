package sqlite

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"gateway/internal/model"
)

// ========================================
// Database Integration Tests
// ========================================

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "data", "test.db"))
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestDatabase_Connection(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "test.db")
	db, err := New(dbPath)
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("Database file should exist")
	}
}

func TestDatabase_MigrationIsIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	for i := 0; i < 2; i++ {
		db, err := New(dbPath)
		if err != nil {
			t.Fatalf("Open %d failed: %v", i, err)
		}
		db.Close()
	}
}

func TestDetectionRepository_InsertBatchAndCount(t *testing.T) {
	repo := NewDetectionRepository(newTestDB(t))
	ts := time.Date(2024, 5, 1, 10, 0, 0, 0, time.Local)

	batch := model.DetectionBatch{
		{Timestamp: ts, Label: "person", Confidence: 0.9, Box: model.BBox{X1: 1, Y1: 2, X2: 3, Y2: 4}},
		{Timestamp: ts, Label: "person", Confidence: 0.7},
		{Timestamp: ts.Add(time.Minute), Label: "car", Confidence: 0.5},
	}
	if err := repo.InsertBatch(batch); err != nil {
		t.Fatalf("InsertBatch failed: %v", err)
	}

	count, err := repo.GetTotalCount()
	if err != nil {
		t.Fatalf("GetTotalCount failed: %v", err)
	}
	if count != 3 {
		t.Errorf("Expected 3 detections, got %d", count)
	}

	stats, err := repo.CountByLabel()
	if err != nil {
		t.Fatalf("CountByLabel failed: %v", err)
	}
	if len(stats) != 2 {
		t.Fatalf("Expected 2 labels, got %d", len(stats))
	}
	if stats[0].Label != "person" || stats[0].Count != 2 || stats[0].MaxConfidence != 0.9 {
		t.Errorf("Unexpected person stats %+v", stats[0])
	}
	if stats[1].LastSeen != "2024-05-01 10:01:00" {
		t.Errorf("Unexpected car last seen %q", stats[1].LastSeen)
	}
}

func TestDetectionRepository_EmptyBatch(t *testing.T) {
	repo := NewDetectionRepository(newTestDB(t))
	if err := repo.InsertBatch(nil); err != nil {
		t.Fatalf("InsertBatch(nil) failed: %v", err)
	}

	labels, err := repo.GetAllLabels()
	if err != nil {
		t.Fatalf("GetAllLabels failed: %v", err)
	}
	if len(labels) != 0 {
		t.Errorf("Expected no labels, got %v", labels)
	}

	stats, err := repo.CountByLabel()
	if err != nil {
		t.Fatalf("CountByLabel failed: %v", err)
	}
	if stats == nil || len(stats) != 0 {
		t.Errorf("Expected empty non-nil stats, got %#v", stats)
	}
}

func TestDetectionRepository_InsertRecordsAndDeleteAll(t *testing.T) {
	repo := NewDetectionRepository(newTestDB(t))
	records := []model.LogRecord{
		{Time: "2024-05-01 10:00:00", Label: "dog", Confidence: 0.4},
		{Time: "2024-05-01 10:00:01", Label: "cat", Confidence: 0.6},
	}

	n, err := repo.InsertRecords(records)
	if err != nil {
		t.Fatalf("InsertRecords failed: %v", err)
	}
	if n != 2 {
		t.Errorf("Expected 2 inserted, got %d", n)
	}

	labels, _ := repo.GetAllLabels()
	if len(labels) != 2 || labels[0] != "cat" {
		t.Errorf("Expected sorted labels [cat dog], got %v", labels)
	}

	if err := repo.DeleteAll(); err != nil {
		t.Fatalf("DeleteAll failed: %v", err)
	}
	if count, _ := repo.GetTotalCount(); count != 0 {
		t.Errorf("Expected 0 after DeleteAll, got %d", count)
	}
}

func TestDatabase_ConcurrentAccess(t *testing.T) {
	repo := NewDetectionRepository(newTestDB(t))

	done := make(chan bool, 10)
	for i := 0; i < 10; i++ {
		go func(idx int) {
			batch := model.DetectionBatch{{Timestamp: time.Now(), Label: string(rune('a' + idx)), Confidence: 0.5}}
			if err := repo.InsertBatch(batch); err != nil {
				t.Errorf("Concurrent insert %d failed: %v", idx, err)
			}
			done <- true
		}(i)
	}

	for i := 0; i < 10; i++ {
		<-done
	}

	if count, _ := repo.GetTotalCount(); count != 10 {
		t.Errorf("Expected 10 detections, got %d", count)
	}
}
