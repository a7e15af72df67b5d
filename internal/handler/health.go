package handler

import (
	"context"
	"net/http"
)

// HealthProbe reports the process-level counters exposed by /health.
type HealthProbe struct {
	Games       func() int
	Subscribers func() int
	Dropped     func() uint64
	// Archive is nil when archiving is disabled.
	Archive func(ctx context.Context) error
}

// HealthHandler returns a health check endpoint.
func HealthHandler(p HealthProbe) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body := map[string]any{"status": "healthy"}
		if p.Games != nil {
			body["games"] = p.Games()
		}
		if p.Subscribers != nil {
			body["subscribers"] = p.Subscribers()
		}
		if p.Dropped != nil {
			body["relay_dropped"] = p.Dropped()
		}
		if p.Archive != nil {
			if err := p.Archive(r.Context()); err != nil {
				body["status"] = "unhealthy"
				body["error"] = err.Error()
				RespondJSON(w, http.StatusServiceUnavailable, body)
				return
			}
		}
		RespondJSON(w, http.StatusOK, body)
	}
}
