package handler

import (
	"net/http"

	"github.com/gorilla/websocket"

	"gateway/internal/logger"
	"gateway/internal/service"
)

// viewerReadLimit caps inbound frames; viewers only receive and send control frames.
const viewerReadLimit = 512

// Upgrader upgrades HTTP connections to WebSocket; CheckOrigin allows all origins.
var Upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// DetectionFeedHandler subscribes a viewer to the live detection feed. Every
// logged batch arrives as one dto.DetectionFeed JSON text message
// ({"time": ..., "detections": [{label, confidence, bbox}]}).
func DetectionFeedHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		hub := manager.GetWebsocketService()
		if hub == nil {
			http.Error(w, "Detection feed disabled", http.StatusNotFound)
			return
		}

		conn, err := Upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Error("WebSocket upgrade error: %v", err)
			return
		}
		conn.SetReadLimit(viewerReadLimit)

		hub.Register(conn)
		defer hub.Unregister(conn)
		logger.Info("Detection feed viewer %s subscribed", r.RemoteAddr)

		// czytamy tylko po to, zeby zauwazyc zamkniecie polaczenia
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					logger.Info("Detection feed viewer %s left", r.RemoteAddr)
				} else {
					logger.Warning("Detection feed viewer %s dropped: %v", r.RemoteAddr, err)
				}
				return
			}
		}
	}
}
