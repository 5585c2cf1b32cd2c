package handlers

import (
	"net/http"

	"github.com/liamwears/reelswipe/internal/database"
)

// HealthHandler reports dependency status
type HealthHandler struct {
	checks map[string]database.HealthCheck
	titles int
}

// NewHealthHandler creates a new health handler. titles is the size of the
// loaded title corpus.
func NewHealthHandler(checks map[string]database.HealthCheck, titles int) *HealthHandler {
	return &HealthHandler{checks: checks, titles: titles}
}

// ServeHTTP handles GET /health
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{"titles": h.titles}
	status := http.StatusOK
	body["status"] = "ok"

	for name, err := range database.CheckAll(r.Context(), h.checks) {
		if err != nil {
			body[name] = "down"
			body["status"] = "unhealthy"
			status = http.StatusServiceUnavailable
			continue
		}
		body[name] = "up"
	}

	writeJSON(w, status, body)
}
