package api

import "net/http"

// handleSensors returns a fresh simulated sensor reading.
func (s *Server) handleSensors(w http.ResponseWriter, _ *http.Request) {
	reading := s.sensors.Read()
	if s.readings != nil {
		s.readings.RecordReading(reading)
	}
	writeJSON(w, http.StatusOK, reading)
}
