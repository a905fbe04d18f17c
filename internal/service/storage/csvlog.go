package storage

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"gateway/internal/apperror"
	"gateway/internal/config"
	"gateway/internal/logger"
	"gateway/internal/model"
)

const (
	// PartitionPrefix starts the name of every log partition file.
	PartitionPrefix = "detections"
	// DefaultPartition is the cumulative log used without rotation.
	DefaultPartition = PartitionPrefix + ".csv"
	minuteLayout     = "20060102_1504"
)

// CSVLogger appends detection batches to CSV partitions under one directory.
type CSVLogger struct {
	dir      string
	rotation string
	clock    func() time.Time
	logger   *logger.Logger

	mu    sync.Mutex
	locks map[string]*partitionLock
	last  time.Time
}

// partitionLock serializes writers of one file; refs counts holders and
// waiters so the entry can be dropped once nobody uses it.
type partitionLock struct {
	sync.Mutex
	refs int
}

// NewCSVLogger creates a logger for cfg.LogDirectory. The directory is created on first write.
func NewCSVLogger(cfg *config.Config, logger *logger.Logger) *CSVLogger {
	return NewCSVLoggerWithClock(cfg.LogDirectory, cfg.LogRotation, time.Now, logger)
}

func NewCSVLoggerWithClock(dir, rotation string, clock func() time.Time, logger *logger.Logger) *CSVLogger {
	return &CSVLogger{
		dir:      dir,
		rotation: rotation,
		clock:    clock,
		logger:   logger,
		locks:    make(map[string]*partitionLock),
	}
}

func (l *CSVLogger) Dir() string {
	return l.dir
}

// PartitionPath returns the file a row stamped at t belongs to.
func (l *CSVLogger) PartitionPath(t time.Time) string {
	if l.rotation == config.RotationMinute {
		return filepath.Join(l.dir, fmt.Sprintf("%s_%s.csv", PartitionPrefix, t.Format(minuteLayout)))
	}
	return filepath.Join(l.dir, DefaultPartition)
}

// Append writes every event of batch as one row. Rows of one batch are never
// interleaved with rows of another batch. An empty batch performs no I/O.
func (l *CSVLogger) Append(batch model.DetectionBatch) error {
	if len(batch) == 0 {
		return nil
	}

	stamp := l.stamp()
	path := l.PartitionPath(stamp)

	unlock := l.lockPartition(path)
	defer unlock()

	if err := os.MkdirAll(l.dir, 0755); err != nil {
		return apperror.LogWriteError(path, err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0644)
	if err != nil {
		return apperror.LogWriteError(path, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return apperror.LogWriteError(path, err)
	}

	var buf bytes.Buffer
	if info.Size() > 0 && !endsWithNewline(file, info.Size()) {
		// urwany wiersz po awarii, nowa partia zaczyna sie od nowej linii
		l.warn("Partition %s ends mid-row, starting batch on a new line", path)
		buf.WriteByte('\n')
	}

	w := csv.NewWriter(&buf)
	if info.Size() == 0 {
		w.Write(model.LogColumns)
	}
	ts := stamp.Format(model.TimeLayout)
	for _, event := range batch {
		w.Write(FormatRow(ts, event))
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return apperror.LogWriteError(path, err)
	}

	// jeden zapis na partie, zeby wiersze nie mieszaly sie miedzy procesami
	if _, err := file.Write(buf.Bytes()); err != nil {
		return apperror.LogWriteError(path, err)
	}

	if l.logger != nil {
		l.logger.Debug("Appended %d detection(s) to %s", len(batch), path)
	}
	return nil
}

// stamp returns the write time, never earlier than the previous one.
func (l *CSVLogger) stamp() time.Time {
	now := l.clock().Truncate(time.Second)

	l.mu.Lock()
	defer l.mu.Unlock()
	if now.Before(l.last) {
		now = l.last
	}
	l.last = now
	return now
}

// lockPartition locks path and returns the matching unlock. Entries are
// removed when released by the last user, so minute partitions do not pile up.
func (l *CSVLogger) lockPartition(path string) func() {
	l.mu.Lock()
	lock, ok := l.locks[path]
	if !ok {
		lock = &partitionLock{}
		l.locks[path] = lock
	}
	lock.refs++
	l.mu.Unlock()

	lock.Lock()
	return func() {
		lock.Unlock()

		l.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(l.locks, path)
		}
		l.mu.Unlock()
	}
}

func endsWithNewline(file *os.File, size int64) bool {
	last := make([]byte, 1)
	if _, err := file.ReadAt(last, size-1); err != nil {
		return true
	}
	return last[0] == '\n'
}

func (l *CSVLogger) warn(format string, v ...interface{}) {
	if l.logger != nil {
		l.logger.Warning(format, v...)
	}
}

// FormatRow renders one event in LogColumns order.
func FormatRow(ts string, e model.DetectionEvent) []string {
	return []string{
		ts,
		e.Label,
		formatFloat(e.Confidence),
		formatFloat(e.Box.X1),
		formatFloat(e.Box.Y1),
		formatFloat(e.Box.X2),
		formatFloat(e.Box.Y2),
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
