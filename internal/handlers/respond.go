package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/jackc/pgx/v5"
	"github.com/liamwears/reelswipe/internal/models"
	"github.com/liamwears/reelswipe/internal/services"
)

// writeJSON encodes v with the given status
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error body
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeServiceError maps a service error onto a status code. Only server
// side failures are logged.
func writeServiceError(w http.ResponseWriter, logger *log.Logger, action string, err error) {
	var authErr *services.AuthError
	switch {
	case errors.As(err, &authErr):
		logger.Printf("Failed to %s: %v", action, err)
		writeError(w, http.StatusBadGateway, "Movie catalog authentication failed")
	case errors.Is(err, pgx.ErrNoRows):
		writeError(w, http.StatusNotFound, "Interaction not found")
	case errors.Is(err, services.ErrInvalidPage),
		errors.Is(err, services.ErrUnresolvedMovie),
		errors.Is(err, models.ErrInvalidWatchedInput):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		logger.Printf("Failed to %s: %v", action, err)
		writeError(w, http.StatusInternalServerError, "Failed to "+action)
	}
}
