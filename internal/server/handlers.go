// Package server provides the HTTP server and routing for the market calendar API.
package server

import (
	"encoding/json"
	"net/http"
	"time"
)

// Version is reported by /health. Overridden at build time with
// -ldflags "-X github.com/aristath/marketcal/internal/server.Version=...".
var Version = "dev"

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	code := http.StatusOK
	calendars := 0
	if s.service != nil {
		calendars = s.service.Registry().Len()
	}
	if calendars == 0 {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	response := map[string]interface{}{
		"status":         status,
		"version":        Version,
		"service":        "marketcal",
		"calendars":      calendars,
		"uptime_seconds": int(time.Since(s.started).Seconds()),
	}

	s.writeJSON(w, code, response)
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
