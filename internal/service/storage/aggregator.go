package storage

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"gateway/internal/logger"
	"gateway/internal/model"
)

// headerAliases maps column names of older log variants onto LogColumns.
var headerAliases = map[string]string{
	"conf": "confidence",
}

// Aggregator reads every partition written by CSVLogger.
type Aggregator struct {
	dir    string
	logger *logger.Logger
}

func NewAggregator(dir string, logger *logger.Logger) *Aggregator {
	return &Aggregator{dir: dir, logger: logger}
}

type parsedRecord struct {
	model.LogRecord
	at time.Time
}

// Partitions lists the partition files in name order.
func (a *Aggregator) Partitions() ([]string, error) {
	files, err := filepath.Glob(filepath.Join(a.dir, PartitionPrefix+"*.csv"))
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// Export returns every well-formed row, newest first. Rows with equal
// timestamps keep their file order.
func (a *Aggregator) Export() ([]model.LogRecord, error) {
	rows, err := a.readAll()
	if err != nil {
		return nil, err
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].at.After(rows[j].at)
	})
	return records(rows), nil
}

// Tail returns the last n rows in file order.
func (a *Aggregator) Tail(n int) ([]model.LogRecord, error) {
	rows, err := a.readAll()
	if err != nil {
		return nil, err
	}
	if n >= 0 && len(rows) > n {
		rows = rows[len(rows)-n:]
	}
	return records(rows), nil
}

// WriteCSV streams the canonical header and every well-formed row in file order.
func (a *Aggregator) WriteCSV(w io.Writer) error {
	rows, err := a.readAll()
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(model.LogColumns); err != nil {
		return err
	}
	for _, r := range rows {
		cw.Write([]string{
			r.Time,
			r.Label,
			formatFloat(r.Confidence),
			formatFloat(r.X1),
			formatFloat(r.Y1),
			formatFloat(r.X2),
			formatFloat(r.Y2),
		})
	}
	cw.Flush()
	return cw.Error()
}

func (a *Aggregator) readAll() ([]parsedRecord, error) {
	files, err := a.Partitions()
	if err != nil {
		return nil, err
	}

	rows := make([]parsedRecord, 0)
	for _, path := range files {
		partition, err := a.readPartition(path)
		if err != nil {
			a.warn("Skipping log partition %s: %v", path, err)
			continue
		}
		rows = append(rows, partition...)
	}
	return rows, nil
}

func (a *Aggregator) readPartition(path string) ([]parsedRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("unreadable header: %w", err)
	}

	index, err := columnIndex(header)
	if err != nil {
		return nil, err
	}

	var rows []parsedRecord
	line := 1
	for {
		record, err := reader.Read()
		line++
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				a.warn("Malformed row %s:%d: %v", path, line, err)
				continue
			}
			return rows, err
		}

		row, err := parseRow(record, len(header), index)
		if err != nil {
			a.warn("Malformed row %s:%d: %v", path, line, err)
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// columnIndex locates each canonical column in header by name.
func columnIndex(header []string) (map[string]int, error) {
	index := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		if alias, ok := headerAliases[name]; ok {
			name = alias
		}
		index[name] = i
	}

	for _, col := range model.LogColumns {
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("header has no %q column", col)
		}
	}
	return index, nil
}

func parseRow(record []string, width int, index map[string]int) (parsedRecord, error) {
	if len(record) != width {
		return parsedRecord{}, fmt.Errorf("expected %d fields, got %d", width, len(record))
	}

	field := func(name string) string {
		return strings.TrimSpace(record[index[name]])
	}

	at, err := time.ParseInLocation(model.TimeLayout, field("time"), time.Local)
	if err != nil {
		return parsedRecord{}, fmt.Errorf("bad timestamp: %w", err)
	}

	label := field("label")
	if label == "" {
		return parsedRecord{}, errors.New("empty label")
	}

	values := make([]float64, 0, 5)
	for _, name := range []string{"confidence", "x1", "y1", "x2", "y2"} {
		v, err := strconv.ParseFloat(field(name), 64)
		if err != nil {
			return parsedRecord{}, fmt.Errorf("bad %s: %w", name, err)
		}
		values = append(values, v)
	}

	return parsedRecord{
		LogRecord: model.LogRecord{
			Time:       at.Format(model.TimeLayout),
			Label:      label,
			Confidence: values[0],
			X1:         values[1],
			Y1:         values[2],
			X2:         values[3],
			Y2:         values[4],
		},
		at: at,
	}, nil
}

func records(rows []parsedRecord) []model.LogRecord {
	out := make([]model.LogRecord, len(rows))
	for i, r := range rows {
		out[i] = r.LogRecord
	}
	return out
}

func (a *Aggregator) warn(format string, v ...interface{}) {
	if a.logger != nil {
		a.logger.Warning(format, v...)
	}
}
