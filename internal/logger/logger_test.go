package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gateway/internal/config"
)

func TestLogger_WritesLevels(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf)

	l.Info("model %s loaded", "best.onnx")
	l.Warning("skipping row %d", 3)
	l.Error("write failed: %v", os.ErrPermission)
	l.Debug("hidden at info level")

	out := buf.String()
	for _, want := range []string{"model best.onnx loaded", "skipping row 3", "permission denied"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected log output to contain %q, got: %s", want, out)
		}
	}
	if strings.Contains(out, "hidden at info level") {
		t.Error("Debug entry should be filtered at info level")
	}
}

func TestNewLogger_CreatesServiceLog(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "service")
	cfg := &config.Config{ServiceLogDirectory: dir, LogLevel: "debug"}

	l, err := NewLogger(cfg)
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	l.Info("hello")

	if l.FilePath() != filepath.Join(dir, ServiceLogFile) {
		t.Errorf("Unexpected log file path %s", l.FilePath())
	}
	data, err := os.ReadFile(l.FilePath())
	if err != nil {
		t.Fatalf("Service log not written: %v", err)
	}
	if !strings.Contains(string(data), "hello") {
		t.Errorf("Expected service log to contain entry, got: %s", data)
	}
}

func TestLogger_RotateStartsEmptyFile(t *testing.T) {
	cfg := &config.Config{ServiceLogDirectory: t.TempDir(), LogLevel: "info"}
	l, err := NewLogger(cfg)
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	defer l.Close()

	l.Info("before rotation")
	if err := l.Rotate(); err != nil {
		t.Fatalf("Rotate failed: %v", err)
	}

	data, err := os.ReadFile(l.FilePath())
	if err != nil {
		t.Fatalf("Service log missing after rotation: %v", err)
	}
	if strings.Contains(string(data), "before rotation") {
		t.Error("Expected rotated log to start empty")
	}
}

func TestNop_RotateIsNoop(t *testing.T) {
	if err := NewNop().Rotate(); err != nil {
		t.Errorf("Rotate on nop logger returned %v", err)
	}
}

func TestLogger_ReportsCallSite(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf)

	l.Warning("frame dropped")

	out := buf.String()
	if !strings.Contains(out, "logger_test.go:") || !strings.Contains(out, "TestLogger_ReportsCallSite()") {
		t.Errorf("Expected caller of Warning in output, got: %s", out)
	}
	if strings.Contains(out, "logger.go:") {
		t.Errorf("Caller must not point into the logger itself, got: %s", out)
	}
}
