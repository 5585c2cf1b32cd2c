package handlers

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/liamwears/reelswipe/internal/models"
)

// PageSource builds discovery pages
type PageSource interface {
	GetPage(ctx context.Context, page int) ([]models.Movie, error)
}

// Catalog answers free-text searches and detail lookups
type Catalog interface {
	Search(ctx context.Context, query string) ([]models.Movie, error)
	GetDetails(ctx context.Context, movieID int) (*models.Movie, error)
}

// DiscoveryHandler handles movie discovery requests
type DiscoveryHandler struct {
	pages   PageSource
	catalog Catalog
	logger  *log.Logger
}

// NewDiscoveryHandler creates a new discovery handler
func NewDiscoveryHandler(pages PageSource, catalog Catalog, logger *log.Logger) *DiscoveryHandler {
	return &DiscoveryHandler{
		pages:   pages,
		catalog: catalog,
		logger:  logger,
	}
}

// Popular handles GET /api/movies/popular
func (h *DiscoveryHandler) Popular(w http.ResponseWriter, r *http.Request) {
	page := 1
	if raw := r.URL.Query().Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "Page must be a positive integer")
			return
		}
		page = n
	}

	movies, err := h.pages.GetPage(r.Context(), page)
	if err != nil {
		writeServiceError(w, h.logger, "fetch popular movies", err)
		return
	}

	writeJSON(w, http.StatusOK, models.NewMovieViews(movies))
}

// Search handles GET /api/movies/search
func (h *DiscoveryHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("query"))
	if query == "" {
		writeError(w, http.StatusBadRequest, "Query parameter is required")
		return
	}

	movies, err := h.catalog.Search(r.Context(), query)
	if err != nil {
		writeServiceError(w, h.logger, "search movies", err)
		return
	}

	writeJSON(w, http.StatusOK, models.NewMovieViews(movies))
}

// Details handles GET /api/movies/{id}
func (h *DiscoveryHandler) Details(w http.ResponseWriter, r *http.Request) {
	movieID, err := strconv.Atoi(r.PathValue("id"))
	if err != nil || movieID < 1 {
		writeError(w, http.StatusBadRequest, "Invalid movie ID")
		return
	}

	movie, err := h.catalog.GetDetails(r.Context(), movieID)
	if err != nil {
		writeServiceError(w, h.logger, "fetch movie", err)
		return
	}
	if movie == nil {
		writeError(w, http.StatusNotFound, "Movie not found")
		return
	}

	writeJSON(w, http.StatusOK, models.NewMovieView(*movie))
}

// Register mounts the discovery routes on mux, wrapping each with wrap
func (h *DiscoveryHandler) Register(mux *http.ServeMux, wrap func(http.Handler) http.Handler) {
	mux.Handle("GET /api/movies/popular", wrap(http.HandlerFunc(h.Popular)))
	mux.Handle("GET /api/movies/search", wrap(http.HandlerFunc(h.Search)))
	mux.Handle("GET /api/movies/{id}", wrap(http.HandlerFunc(h.Details)))
}
