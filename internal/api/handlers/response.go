package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/isdelr/ender-feed-be/internal/services"
	"github.com/rs/zerolog/log"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("Failed to encode response")
	}
}

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, services.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, services.ErrInvalidOperation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, services.ErrPartialGraphUpdate):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeError responds with {"error": ...}. Client errors carry the error text;
// server failures are logged and answered with msg only.
func writeError(w http.ResponseWriter, err error, msg string) {
	status := statusFor(err)
	text := err.Error()
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Msg(msg)
		text = msg
	}
	writeJSON(w, status, map[string]string{"error": text})
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return false
	}
	return true
}
