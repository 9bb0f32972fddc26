package handlers

import (
	"net/http"

	"github.com/flowmesh/schemaui/internal/version"
)

// HealthResponse represents a health check response
type HealthResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// HealthCheck handles health check requests
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "healthy"})
}

// ReadinessCheck returns a handler that reports ready once ready returns
// nil. The error text is reported as the message otherwise.
func ReadinessCheck(ready func() error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		if ready != nil {
			err = ready()
		}

		if err != nil {
			writeJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "not ready", Message: err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, HealthResponse{Status: "ready"})
	}
}

// Version handles GET /version
func Version(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, version.Get())
}
