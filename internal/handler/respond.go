package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"gateway/internal/apperror"
	"gateway/internal/dto"
)

// writeJSON sets the content type, status and encodes data.
func writeJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// writeError maps err onto a status code and the {"error", "reason"} body.
func writeError(w http.ResponseWriter, err error) {
	status := apperror.HTTPStatus(err)
	body := dto.ErrorResponse{Error: "internal error"}

	var appErr *apperror.Error
	if errors.As(err, &appErr) {
		body.Error = appErr.Message
		body.Reason = appErr.Reason
	}
	writeJSON(w, status, body)
}
