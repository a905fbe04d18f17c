package handler

import (
	"html/template"
	"net/http"
	"os"
	"path/filepath"

	"gateway/internal/logger"
	"gateway/internal/service"
)

// StaticDir holds the browser pages and assets.
const StaticDir = "static"

var statusPageTemplate = template.Must(template.New("status").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Detection gateway</title></head>
<body>
<h1>Detection gateway</h1>
<ul>
<li>Model: {{.Model}}</li>
<li>Camera: {{.Camera}} ({{.Readers}} reader(s))</li>
<li>Logged detections: {{.Rows}}</li>
<li>Live viewers: {{.Viewers}}</li>
</ul>
<p><a href="/camera-feed">Camera feed</a> | <a href="/csv">Detection log</a> | <a href="/logs/detections.csv">Download CSV</a></p>
</body>
</html>
`))

type statusPage struct {
	Model   string
	Camera  string
	Readers int
	Rows    int
	Viewers int
}

// IndexHandler serves static/index.html when present, otherwise a generated status page.
func IndexHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		index := filepath.Join(StaticDir, "index.html")
		if _, err := os.Stat(index); err == nil {
			http.ServeFile(w, r, index)
			return
		}

		records, err := manager.GetAggregator().Export()
		if err != nil {
			logger.Warning("Status page could not read detection log: %v", err)
		}

		session := manager.GetCameraSession()
		page := statusPage{
			Model:   manager.GetDetectorService().State().String(),
			Camera:  session.State().String(),
			Readers: session.Readers(),
			Rows:    len(records),
		}
		if hub := manager.GetWebsocketService(); hub != nil {
			page.Viewers = hub.GetClientCount()
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := statusPageTemplate.Execute(w, page); err != nil {
			logger.Error("Failed to render status page: %v", err)
		}
	}
}
