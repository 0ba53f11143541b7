package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/homify-core/internal/device"
)

// msgCommunicationFailed is the only detail a failed command exposes.
const msgCommunicationFailed = "failed to communicate with device"

// controlRequest is the body of POST /api/devices/{id}.
type controlRequest struct {
	On *bool `json:"on"`
}

// handleListDevices returns the state of every live device keyed by id.
// Unreachable devices are listed with an "(ERROR: Offline)" name; this
// endpoint never fails because of a device.
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.devices.ListAll(r.Context()))
}

// handleGetDevice returns the state of one live device.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	entry, err := s.devices.Get(r.Context(), id)
	if err != nil {
		writeNotFound(w, "device not found")
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// handleControlDevice switches a device on or off.
func (s *Server) handleControlDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req controlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.On == nil {
		writeBadRequest(w, `field "on" is required`)
		return
	}

	ctx := device.WithSource(r.Context(), device.SourceAPI)
	result, err := s.devices.Control(ctx, id, *req.On)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, result)
	case errors.Is(err, device.ErrNotFound):
		writeNotFound(w, "device not found")
	default:
		s.logger.Error("device command failed",
			"device_id", id,
			"on", *req.On,
			"error", err,
			"request_id", r.Context().Value(ctxKeyRequestID),
		)
		writeInternalError(w, msgCommunicationFailed)
	}
}
