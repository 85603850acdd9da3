package simulator

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// DeviceState is the JSON view of a simulated device.
type DeviceState struct {
	DeviceConfig
	Values Values `json:"values"`
	Sent   uint64 `json:"sent"`
}

func stateOf(d *Device) DeviceState {
	return DeviceState{DeviceConfig: d.Config(), Values: d.Values(), Sent: d.Sent()}
}

// Handler returns the control API:
//
//	GET /devices          list devices and their values
//	GET /devices/{id}     one device
//	PUT /devices/{id}     replace its broadcast values
func (s *Simulator) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/devices", s.handleList)
	r.Route("/devices/{id}", func(r chi.Router) {
		r.Get("/", s.handleGet)
		r.Put("/", s.handleSet)
	})
	return r
}

func (s *Simulator) handleList(w http.ResponseWriter, r *http.Request) {
	states := make([]DeviceState, 0, len(s.devices))
	for _, d := range s.devices {
		states = append(states, stateOf(d))
	}
	writeJSON(w, http.StatusOK, states)
}

func (s *Simulator) handleGet(w http.ResponseWriter, r *http.Request) {
	d, ok := s.deviceFromRequest(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, stateOf(d))
}

func (s *Simulator) handleSet(w http.ResponseWriter, r *http.Request) {
	d, ok := s.deviceFromRequest(w, r)
	if !ok {
		return
	}
	var v Values
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body: " + err.Error()})
		return
	}
	d.Set(v)
	s.logger.Printf("Simulator: device %d set to %d W, %d rpm, %d bpm (silent=%v)",
		d.cfg.DeviceID, v.Power, v.Cadence, v.HeartRate, v.Silent)
	writeJSON(w, http.StatusOK, stateOf(d))
}

func (s *Simulator) deviceFromRequest(w http.ResponseWriter, r *http.Request) (*Device, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 32)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid device id"})
		return nil, false
	}
	d, err := s.Device(uint32(id))
	if errors.Is(err, ErrUnknownDevice) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return nil, false
	}
	return d, true
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
