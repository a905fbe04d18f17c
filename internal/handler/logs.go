package handler

import (
	"html/template"
	"net/http"
	"os"
	"path/filepath"

	"gateway/internal/config"
	"gateway/internal/logger"
	"gateway/internal/model"
	"gateway/internal/service"
)

var csvPageTemplate = template.Must(template.New("csv").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Detection log</title>
<style>
body { font-family: sans-serif; margin: 2em; }
table { border-collapse: collapse; }
th, td { border: 1px solid #ccc; padding: 4px 8px; text-align: right; }
th { background: #f0f0f0; }
</style>
</head>
<body>
<h1>Detection log</h1>
<p>Last {{len .Rows}} row(s). <a href="/logs/detections.csv" download>Download CSV</a></p>
<table>
<tr>{{range .Columns}}<th>{{.}}</th>{{end}}</tr>
{{range .Rows}}<tr><td>{{.Time}}</td><td>{{.Label}}</td><td>{{.Confidence}}</td><td>{{.X1}}</td><td>{{.Y1}}</td><td>{{.X2}}</td><td>{{.Y2}}</td></tr>
{{end}}</table>
</body>
</html>
`))

type csvPage struct {
	Columns []string
	Rows    []model.LogRecord
}

// CSVDataHandler returns the full detection log as JSON, newest first.
func CSVDataHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		records, err := manager.GetAggregator().Export()
		if err != nil {
			logger.Error("Failed to export detection log: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		if err := writeJSON(w, http.StatusOK, records); err != nil {
			logger.Error("Error encoding JSON: %v", err)
		}
	}
}

// CSVPageHandler renders the last rows of the detection log as an HTML table.
func CSVPageHandler(manager *service.Manager, cfg *config.Config, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		records, err := manager.GetAggregator().Tail(cfg.TailRows)
		if err != nil {
			logger.Error("Failed to read detection log: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := csvPageTemplate.Execute(w, csvPage{Columns: model.LogColumns, Rows: records}); err != nil {
			logger.Error("Failed to render log page: %v", err)
		}
	}
}

// CSVDownloadHandler serves every well-formed row as one CSV file.
func CSVDownloadHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="detections.csv"`)
		w.Header().Set("Cache-Control", "no-cache")

		if err := manager.GetAggregator().WriteCSV(w); err != nil {
			logger.Error("Failed to write CSV download: %v", err)
		}
	}
}

// ShowServiceLogHandler serves the service's own log file as text/plain.
func ShowServiceLogHandler(logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := logger.FilePath()
		if path == "" {
			http.NotFound(w, r)
			return
		}
		serveLogFile(w, r, filepath.Dir(path), filepath.Base(path))
	}
}

// ClearServiceLogHandler rotates the service log so the served file starts empty.
func ClearServiceLogHandler(logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := logger.Rotate(); err != nil {
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// serveLogFile is a helper that sets headers and serves a log file if it exists.
func serveLogFile(w http.ResponseWriter, r *http.Request, logDir, filename string) {
	filePath := filepath.Join(logDir, filename)

	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte("Log file not found: " + filename))
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")

	http.ServeFile(w, r, filePath)
}
