package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/liamwears/reelswipe/internal/models"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

// CatalogCache stores successful catalog responses. Misses and failures are
// indistinguishable to the caller.
type CatalogCache interface {
	GetSearch(ctx context.Context, query string) ([]models.Movie, bool)
	SetSearch(ctx context.Context, query string, movies []models.Movie)
	GetMovie(ctx context.Context, id int) (*models.Movie, bool)
	SetMovie(ctx context.Context, id int, movie *models.Movie)
}

// TVDBService handles interactions with the TVDB v4 API
type TVDBService struct {
	client  *http.Client
	auth    *TVDBAuth
	baseURL string
	limiter *rate.Limiter
	cache   CatalogCache
	logger  *log.Logger
}

// TVDBConfig holds TVDB service configuration
type TVDBConfig struct {
	APIKey  string
	PIN     string
	BaseURL string
	// RateLimit is the maximum number of requests per second; 0 disables throttling
	RateLimit     float64
	LoginAttempts int
}

// statusError is a non-2xx catalog response
type statusError struct {
	StatusCode int
	Body       string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("TVDB API error: status %d, body: %s", e.StatusCode, e.Body)
}

// NewTVDBService creates a new TVDB service. httpc supplies the base
// transport and timeout; cache may be nil.
func NewTVDBService(cfg TVDBConfig, httpc *http.Client, cache CatalogCache, logger *log.Logger) *TVDBService {
	if logger == nil {
		logger = log.Default()
	}

	timeout := 15 * time.Second
	var base http.RoundTripper = http.DefaultTransport
	if httpc != nil {
		if httpc.Timeout > 0 {
			timeout = httpc.Timeout
		}
		if httpc.Transport != nil {
			base = httpc.Transport
		}
	}

	auth := NewTVDBAuth(TVDBAuthConfig{
		APIKey:        cfg.APIKey,
		PIN:           cfg.PIN,
		BaseURL:       cfg.BaseURL,
		LoginAttempts: cfg.LoginAttempts,
	}, &http.Client{Transport: base, Timeout: timeout}, logger)

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}

	return &TVDBService{
		client: &http.Client{
			Transport: &oauth2.Transport{Source: auth, Base: base},
			Timeout:   timeout,
		},
		auth:    auth,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		limiter: rate.NewLimiter(limit, 1),
		cache:   cache,
		logger:  logger,
	}
}

// Auth returns the service's auth manager
func (s *TVDBService) Auth() *TVDBAuth {
	return s.auth
}

// doRequest performs a GET request to the TVDB API
func (s *TVDBService) doRequest(ctx context.Context, endpoint string, params map[string]string) ([]byte, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	q := req.URL.Query()
	for key, value := range params {
		q.Add(key, value)
	}
	req.URL.RawQuery = q.Encode()

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &statusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	return body, nil
}

// Search searches the catalog for movies. Failed or empty searches return an
// empty list; only authentication failures are returned as errors.
func (s *TVDBService) Search(ctx context.Context, query string) ([]models.Movie, error) {
	if err := s.auth.EnsureAuthenticated(ctx); err != nil {
		return nil, err
	}

	if s.cache != nil {
		if movies, ok := s.cache.GetSearch(ctx, query); ok {
			return movies, nil
		}
	}

	movies, err := s.search(ctx, query)
	if err != nil {
		var authErr *AuthError
		if errors.As(err, &authErr) {
			return nil, authErr
		}
		s.logger.Printf("TVDB search %q failed: %v", query, err)
		return []models.Movie{}, nil
	}

	if s.cache != nil {
		s.cache.SetSearch(ctx, query, movies)
	}
	return movies, nil
}

func (s *TVDBService) search(ctx context.Context, query string) ([]models.Movie, error) {
	body, err := s.doRequest(ctx, "/search", map[string]string{
		"query": query,
		"type":  "movie",
	})
	if err != nil {
		return nil, err
	}

	var response models.TVDBResponse[[]models.TVDBSearchResult]
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to unmarshal search results: %w", err)
	}

	movies := []models.Movie{}
	if response.Data == nil {
		return movies, nil
	}
	for _, result := range *response.Data {
		if !strings.EqualFold(result.Type, "movie") {
			continue
		}
		movies = append(movies, movieFromSearchResult(result))
	}
	return movies, nil
}

// GetDetails retrieves the extended record of a movie. A missing or failed
// lookup returns nil without an error.
func (s *TVDBService) GetDetails(ctx context.Context, movieID int) (*models.Movie, error) {
	if err := s.auth.EnsureAuthenticated(ctx); err != nil {
		return nil, err
	}
	if movieID <= 0 {
		return nil, nil
	}

	if s.cache != nil {
		if movie, ok := s.cache.GetMovie(ctx, movieID); ok {
			return movie, nil
		}
	}

	body, err := s.doRequest(ctx, fmt.Sprintf("/movies/%d/extended", movieID), nil)
	if err != nil {
		var authErr *AuthError
		if errors.As(err, &authErr) {
			return nil, authErr
		}
		s.logger.Printf("TVDB details for movie %d failed: %v", movieID, err)
		return nil, nil
	}

	var response models.TVDBResponse[models.TVDBMovieDetails]
	if err := json.Unmarshal(body, &response); err != nil {
		s.logger.Printf("Failed to unmarshal details for movie %d: %v", movieID, err)
		return nil, nil
	}
	if response.Data == nil {
		return nil, nil
	}

	movie := movieFromDetails(*response.Data)
	if s.cache != nil {
		s.cache.SetMovie(ctx, movieID, movie)
	}
	return movie, nil
}

func movieFromSearchResult(r models.TVDBSearchResult) models.Movie {
	id, err := strconv.Atoi(strings.TrimSpace(r.TVDBID))
	if err != nil {
		id = 0
	}
	return models.Movie{
		ID:         id,
		Title:      r.Name,
		Overview:   r.Overview,
		FirstAired: parseAirDate(r.FirstAirTime),
		PosterURL:  optionalString(r.ImageURL),
		Genres:     []string{},
		Companies:  []string{},
	}
}

func movieFromDetails(d models.TVDBMovieDetails) *models.Movie {
	movie := &models.Movie{
		ID:         d.ID,
		Title:      d.Name,
		Overview:   d.Overview,
		FirstAired: parseAirDate(d.FirstAirTime),
		PosterURL:  optionalString(d.Image),
		Genres:     names(d.Genres),
		Rating:     d.Score,
		Runtime:    d.Runtime,
		Companies:  names(d.Companies),
	}
	if d.Status != nil && d.Status.Name != "" {
		status := d.Status.Name
		movie.Status = &status
	}
	return movie
}

var airDateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006",
}

// parseAirDate returns nil for blank or unparsable dates rather than a zero time
func parseAirDate(s *string) *time.Time {
	if s == nil {
		return nil
	}
	value := strings.TrimSpace(*s)
	if value == "" {
		return nil
	}
	for _, layout := range airDateLayouts {
		t, err := time.Parse(layout, value)
		if err == nil && !t.IsZero() {
			return &t
		}
	}
	return nil
}

func optionalString(s *string) *string {
	if s == nil {
		return nil
	}
	value := strings.TrimSpace(*s)
	if value == "" {
		return nil
	}
	return &value
}

func names(items []models.TVDBNamed) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item.Name != "" {
			out = append(out, item.Name)
		}
	}
	return out
}
