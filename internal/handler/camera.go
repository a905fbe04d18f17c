package handler

import (
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"

	"gateway/internal/dto"
	"gateway/internal/logger"
	"gateway/internal/service"
	"gateway/internal/service/camera"
)

// FrameBoundary separates JPEG parts of the camera stream.
const FrameBoundary = "frame"

// CameraFeedHandler streams the shared camera as multipart/x-mixed-replace JPEG.
// The reader detaches when the client goes away or the session ends.
func CameraFeedHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session := manager.GetCameraSession()

		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "Streaming not supported", http.StatusInternalServerError)
			return
		}

		frames, detach, err := session.Attach(r.Context())
		if err != nil {
			if r.Context().Err() != nil {
				// klient rozlaczyl sie w trakcie otwierania kamery
				return
			}
			w.Header().Set("Connection", "close")
			writeError(w, err)
			return
		}
		defer detach()

		mw := multipart.NewWriter(w)
		if err := mw.SetBoundary(FrameBoundary); err != nil {
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary="+FrameBoundary)
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("X-Accel-Buffering", "no")
		w.WriteHeader(http.StatusOK)

		logger.Info("Camera viewer connected from %s", r.RemoteAddr)

		for {
			select {
			case <-r.Context().Done():
				logger.Info("Camera viewer disconnected")
				return
			case frame, ok := <-frames:
				if !ok {
					logger.Warning("Camera session ended, closing stream")
					return
				}

				part, err := mw.CreatePart(textproto.MIMEHeader{
					"Content-Type":   {"image/jpeg"},
					"Content-Length": {strconv.Itoa(len(frame))},
				})
				if err != nil {
					return
				}
				if _, err := part.Write(frame); err != nil {
					return
				}
				flusher.Flush()
			}
		}
	}
}

// CameraReleaseHandler tears the camera session down. Safe when not open.
func CameraReleaseHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session := manager.GetCameraSession()
		session.Release()
		logger.Info("Camera release requested")

		// nigdy nie otwarta kamera tez jest zwolniona
		state := session.State()
		if state == camera.StateUnopened {
			state = camera.StateReleased
		}
		writeJSON(w, http.StatusOK, dto.CameraStatus{
			State:   state.String(),
			Readers: session.Readers(),
		})
	}
}
