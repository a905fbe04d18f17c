package storage

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gateway/internal/config"
	"gateway/internal/logger"
	"gateway/internal/model"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", name, err)
	}
}

func TestExport_Empty(t *testing.T) {
	a := NewAggregator(filepath.Join(t.TempDir(), "missing"), logger.NewNop())

	rows, err := a.Export()
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if rows == nil || len(rows) != 0 {
		t.Errorf("Expected empty non-nil result, got %#v", rows)
	}

	var buf bytes.Buffer
	if err := a.WriteCSV(&buf); err != nil {
		t.Fatalf("WriteCSV failed: %v", err)
	}
	if strings.TrimSpace(buf.String()) != "time,label,confidence,x1,y1,x2,y2" {
		t.Errorf("Expected header-only CSV, got %q", buf.String())
	}
}

func TestExport_SkipsMalformedAndSortsDescending(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "detections.csv", strings.Join([]string{
		"time,label,confidence,x1,y1,x2,y2",
		"2024-05-01 10:00:01,person,0.9,1,2,3,4",
		"2024-05-01 10:00:03,car,0.8,1,2,3",
		"2024-05-01 10:00:02,dog,abc,1,2,3,4",
		"yesterday,cat,0.5,1,2,3,4",
		"2024-05-01 10:00:05,bike,0.7,1,2,3,4",
		"2024-05-01 10:00:05,bus,0.6,1,2,3,4",
		"",
	}, "\n"))

	rows, err := NewAggregator(dir, logger.NewNop()).Export()
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	labels := make([]string, len(rows))
	for i, r := range rows {
		labels[i] = r.Label
	}
	if strings.Join(labels, ",") != "bike,bus,person" {
		t.Errorf("Expected bike,bus,person got %v", labels)
	}
}

func TestExport_LegacyHeaderAndMultiplePartitions(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "detections_20240501_1000.csv",
		"time,label,conf,x1,y1,x2,y2\n2024-05-01 10:00:10,person,0.91,1,2,3,4\n")
	writeFile(t, dir, "detections_20240501_1001.csv",
		"time,label,conf,x1,y1,x2,y2\n2024-05-01 10:01:10,car,0.5,5,6,7,8\n")
	writeFile(t, dir, "notes.csv", "time,label\nignored,row\n")

	rows, err := NewAggregator(dir, logger.NewNop()).Export()
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("Expected 2 rows, got %d", len(rows))
	}
	if rows[0].Label != "car" || rows[1].Confidence != 0.91 {
		t.Errorf("Unexpected rows %+v", rows)
	}
}

func TestExport_AtLeastWhatWasAppended(t *testing.T) {
	dir := t.TempDir()
	l := NewCSVLoggerWithClock(dir, config.RotationNone, time.Now, logger.NewNop())
	a := NewAggregator(dir, logger.NewNop())

	// identyczne wiersze nie sa deduplikowane
	for i := 0; i < 3; i++ {
		if err := l.Append(model.DetectionBatch{event("person", 0.9), event("person", 0.9)}); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	rows, err := a.Export()
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if len(rows) != 6 {
		t.Errorf("Expected 6 rows, got %d", len(rows))
	}
}

func TestTail(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "detections.csv", strings.Join([]string{
		"time,label,confidence,x1,y1,x2,y2",
		"2024-05-01 10:00:03,a,0.9,1,2,3,4",
		"2024-05-01 10:00:01,b,0.9,1,2,3,4",
		"2024-05-01 10:00:02,c,0.9,1,2,3,4",
		"2024-05-01 10:00:00,d,0.9,1,2,3,4",
	}, "\n")+"\n")

	rows, err := NewAggregator(dir, logger.NewNop()).Tail(2)
	if err != nil {
		t.Fatalf("Tail failed: %v", err)
	}
	if len(rows) != 2 || rows[0].Label != "c" || rows[1].Label != "d" {
		t.Errorf("Expected c,d in file order, got %+v", rows)
	}
}

func TestWriteCSV_FileOrderWithoutMalformedRows(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "detections.csv", strings.Join([]string{
		"time,label,confidence,x1,y1,x2,y2",
		"2024-05-01 10:00:03,a,0.9,1,2,3,4",
		"broken",
		"2024-05-01 10:00:01,b,0.25,1.5,2,3,4",
	}, "\n")+"\n")

	var buf bytes.Buffer
	if err := NewAggregator(dir, logger.NewNop()).WriteCSV(&buf); err != nil {
		t.Fatalf("WriteCSV failed: %v", err)
	}

	expected := "time,label,confidence,x1,y1,x2,y2\n" +
		"2024-05-01 10:00:03,a,0.9,1,2,3,4\n" +
		"2024-05-01 10:00:01,b,0.25,1.5,2,3,4\n"
	if buf.String() != expected {
		t.Errorf("Unexpected CSV:\n%s", buf.String())
	}
}

func TestExport_HeaderOnlyPartition(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "detections.csv", "time,label,confidence,x1,y1,x2,y2\n")

	rows, err := NewAggregator(dir, logger.NewNop()).Export()
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("Expected no rows, got %d", len(rows))
	}
}
