package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/google/uuid"
	"github.com/liamwears/reelswipe/internal/models"
)

// InteractionStore persists swipe decisions
type InteractionStore interface {
	SaveMatch(ctx context.Context, movie models.Movie) (*models.Interaction, error)
	SaveRejection(ctx context.Context, movie models.Movie) (*models.Interaction, error)
	ListMatched(ctx context.Context) ([]models.Interaction, error)
	ListRejected(ctx context.Context) ([]models.Interaction, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Interaction, error)
	MarkWatched(ctx context.Context, id uuid.UUID, input models.MarkWatchedInput) (*models.Interaction, error)
	UnmarkWatched(ctx context.Context, id uuid.UUID) (*models.Interaction, error)
	Remove(ctx context.Context, id uuid.UUID) error
}

// InteractionHandler handles swipe decision requests
type InteractionHandler struct {
	store  InteractionStore
	logger *log.Logger
}

// NewInteractionHandler creates a new interaction handler
func NewInteractionHandler(store InteractionStore, logger *log.Logger) *InteractionHandler {
	return &InteractionHandler{
		store:  store,
		logger: logger,
	}
}

// List handles GET /api/interactions
func (h *InteractionHandler) List(w http.ResponseWriter, r *http.Request) {
	typ := models.InteractionMatched
	if raw := r.URL.Query().Get("type"); raw != "" {
		parsed, err := models.ParseInteractionType(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Type must be matched or rejected")
			return
		}
		typ = parsed
	}

	var (
		interactions []models.Interaction
		err          error
	)
	if typ == models.InteractionMatched {
		interactions, err = h.store.ListMatched(r.Context())
	} else {
		interactions, err = h.store.ListRejected(r.Context())
	}
	if err != nil {
		writeServiceError(w, h.logger, "list interactions", err)
		return
	}

	writeJSON(w, http.StatusOK, interactions)
}

// Match handles POST /api/interactions/match
func (h *InteractionHandler) Match(w http.ResponseWriter, r *http.Request) {
	h.record(w, r, h.store.SaveMatch)
}

// Reject handles POST /api/interactions/reject
func (h *InteractionHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.record(w, r, h.store.SaveRejection)
}

func (h *InteractionHandler) record(w http.ResponseWriter, r *http.Request, save func(context.Context, models.Movie) (*models.Interaction, error)) {
	var movie models.Movie
	if err := json.NewDecoder(r.Body).Decode(&movie); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	interaction, err := save(r.Context(), movie)
	if err != nil {
		writeServiceError(w, h.logger, "save interaction", err)
		return
	}

	writeJSON(w, http.StatusCreated, interaction)
}

// Get handles GET /api/interactions/{id}
func (h *InteractionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := interactionID(w, r)
	if !ok {
		return
	}

	interaction, err := h.store.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.logger, "fetch interaction", err)
		return
	}

	writeJSON(w, http.StatusOK, interaction)
}

// Delete handles DELETE /api/interactions/{id}
func (h *InteractionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := interactionID(w, r)
	if !ok {
		return
	}

	if err := h.store.Remove(r.Context(), id); err != nil {
		writeServiceError(w, h.logger, "delete interaction", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// MarkWatched handles PUT /api/interactions/{id}/watched
func (h *InteractionHandler) MarkWatched(w http.ResponseWriter, r *http.Request) {
	id, ok := interactionID(w, r)
	if !ok {
		return
	}

	var input models.MarkWatchedInput
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	interaction, err := h.store.MarkWatched(r.Context(), id, input)
	if err != nil {
		writeServiceError(w, h.logger, "mark interaction watched", err)
		return
	}

	writeJSON(w, http.StatusOK, interaction)
}

// UnmarkWatched handles DELETE /api/interactions/{id}/watched
func (h *InteractionHandler) UnmarkWatched(w http.ResponseWriter, r *http.Request) {
	id, ok := interactionID(w, r)
	if !ok {
		return
	}

	interaction, err := h.store.UnmarkWatched(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.logger, "unmark interaction watched", err)
		return
	}

	writeJSON(w, http.StatusOK, interaction)
}

func interactionID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid interaction ID")
		return uuid.Nil, false
	}
	return id, true
}

// Register mounts the interaction routes on mux, wrapping each with wrap
func (h *InteractionHandler) Register(mux *http.ServeMux, wrap func(http.Handler) http.Handler) {
	mux.Handle("GET /api/interactions", wrap(http.HandlerFunc(h.List)))
	mux.Handle("POST /api/interactions/match", wrap(http.HandlerFunc(h.Match)))
	mux.Handle("POST /api/interactions/reject", wrap(http.HandlerFunc(h.Reject)))
	mux.Handle("GET /api/interactions/{id}", wrap(http.HandlerFunc(h.Get)))
	mux.Handle("DELETE /api/interactions/{id}", wrap(http.HandlerFunc(h.Delete)))
	mux.Handle("PUT /api/interactions/{id}/watched", wrap(http.HandlerFunc(h.MarkWatched)))
	mux.Handle("DELETE /api/interactions/{id}/watched", wrap(http.HandlerFunc(h.UnmarkWatched)))
}
