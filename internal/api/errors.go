package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/lowaak/smart-trainer/trainer-engine/internal/engine"
	"github.com/lowaak/smart-trainer/trainer-engine/internal/session"
	"github.com/lowaak/smart-trainer/trainer-engine/internal/tracks"
	"github.com/lowaak/smart-trainer/trainer-engine/internal/workout"
)

// errorResponse is the body of every non-2xx reply.
type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), errorResponse{Error: err.Error()})
}

// statusFor maps engine sentinel errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, tracks.ErrTrackOutOfRange):
		return http.StatusNotFound
	case errors.Is(err, tracks.ErrDeviceAlreadyBound),
		errors.Is(err, session.ErrInvalidTransition),
		errors.Is(err, session.ErrNoWorkoutLoaded):
		return http.StatusConflict
	case errors.Is(err, tracks.ErrUnknownClass),
		errors.Is(err, workout.ErrEmptyWorkout):
		return http.StatusBadRequest
	case errors.Is(err, engine.ErrCommandQueueFull),
		errors.Is(err, engine.ErrClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
