package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/lowaak/smart-trainer/trainer-engine/internal/tracks"
	"github.com/lowaak/smart-trainer/trainer-engine/internal/workout"
)

type bindRequest struct {
	DeviceID uint32             `json:"device_id"`
	Class    tracks.DeviceClass `json:"class"`
}

type baselineRequest struct {
	Baseline float64 `json:"baseline"`
}

type resizeRequest struct {
	Tracks int `json:"tracks"`
}

type catalogEntry struct {
	Name        string `json:"name"`
	Segments    int    `json:"segments"`
	DurationSec int    `json:"duration_sec"`
}

func badRequest(w http.ResponseWriter, format string, args ...any) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf(format, args...)})
}

func trackParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	track, err := strconv.Atoi(chi.URLParam(r, "track"))
	if err != nil {
		badRequest(w, "invalid track %q", chi.URLParam(r, "track"))
		return 0, false
	}
	return track, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		badRequest(w, "invalid body: %v", err)
		return false
	}
	return true
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Snapshot())
}

func (s *Server) handleTracks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Snapshot().Tracks)
}

// handleResize recreates the track pool. Every binding is lost.
func (s *Server) handleResize(w http.ResponseWriter, r *http.Request) {
	var req resizeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Tracks <= 0 {
		badRequest(w, "tracks must be positive, got %d", req.Tracks)
		return
	}
	if err := s.engine.Resize(req.Tracks); err != nil {
		writeError(w, err)
		return
	}
	s.handleTracks(w, r)
}

func (s *Server) handleTrack(w http.ResponseWriter, r *http.Request) {
	track, ok := trackParam(w, r)
	if !ok {
		return
	}
	t, err := s.engine.Telemetry(track)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleBind(w http.ResponseWriter, r *http.Request) {
	track, ok := trackParam(w, r)
	if !ok {
		return
	}
	var req bindRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.engine.Bind(track, req.DeviceID, req.Class); err != nil {
		writeError(w, err)
		return
	}
	s.handleTrack(w, r)
}

func (s *Server) handleUnbind(w http.ResponseWriter, r *http.Request) {
	track, ok := trackParam(w, r)
	if !ok {
		return
	}
	if err := s.engine.Unbind(track); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleBaseline(w http.ResponseWriter, r *http.Request) {
	track, ok := trackParam(w, r)
	if !ok {
		return
	}
	var req baselineRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.engine.SetBaseline(track, req.Baseline); err != nil {
		writeError(w, err)
		return
	}
	s.handleTrack(w, r)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Status())
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	commands := map[string]func() error{
		"start":  s.engine.Start,
		"pause":  s.engine.Pause,
		"resume": s.engine.Resume,
		"stop":   s.engine.Stop,
		"skip":   s.engine.Skip,
	}
	name := chi.URLParam(r, "command")
	run, ok := commands[name]
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: fmt.Sprintf("unknown command %q", name)})
		return
	}
	if !s.commands.Allow() {
		writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "too many session commands"})
		return
	}
	if err := run(); err != nil {
		writeError(w, err)
		return
	}
	// applied at the next tick
	writeJSON(w, http.StatusAccepted, map[string]string{"command": name})
}

func (s *Server) handleGetWorkout(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Workout())
}

func (s *Server) handlePutWorkout(w http.ResponseWriter, r *http.Request) {
	var wo workout.Workout
	if !decodeBody(w, r, &wo) {
		return
	}
	if err := wo.Validate(); err != nil {
		badRequest(w, "%v", err)
		return
	}
	if err := s.engine.LoadWorkout(wo); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.engine.Workout())
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	entries := make([]catalogEntry, 0, len(workout.Catalog))
	for _, wo := range workout.Catalog {
		entries = append(entries, catalogEntry{
			Name:        wo.Name,
			Segments:    len(wo.Segments),
			DurationSec: int(wo.TotalDuration().Seconds()),
		})
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleLoadCatalog(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	wo, ok := workout.Lookup(name)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: fmt.Sprintf("no catalog workout %q", name)})
		return
	}
	if err := s.engine.LoadWorkout(wo); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.engine.Workout())
}
