package services

import (
	"context"
	"errors"
	"log"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/liamwears/reelswipe/internal/corpus"
	"github.com/liamwears/reelswipe/internal/models"
)

const (
	// DefaultPageSize is the number of movies per discovery page
	DefaultPageSize = 10
	// attemptsPerSlot bounds the searches issued for one page to pageSize*3
	attemptsPerSlot = 3
	// maxPerSearch keeps one query from dominating a page
	maxPerSearch = 2
)

var (
	// ErrInvalidPage is returned for page numbers below 1
	ErrInvalidPage = errors.New("page must be a positive integer")

	errEmptyCorpus = errors.New("title corpus is empty")
)

// genreLabels are genre tags the catalog search sometimes returns as results
var genreLabels = map[string]struct{}{
	"action":      {},
	"adventure":   {},
	"animation":   {},
	"comedy":      {},
	"crime":       {},
	"documentary": {},
	"drama":       {},
	"fantasy":     {},
	"horror":      {},
	"romance":     {},
	"sci-fi":      {},
	"thriller":    {},
}

// variations derive a search term for repeated passes through the corpus,
// selected by cycle modulo len(variations)
var variations = []func(string) string{
	func(t string) string { return t },
	func(t string) string { return t + " 2" },
	func(t string) string { return t + " II" },
	func(t string) string { return t + " Returns" },
	func(t string) string { return t + " Reloaded" },
	func(t string) string { return strings.TrimPrefix(t, "The ") },
	func(t string) string { return t + " movie" },
}

// MovieSearcher is the catalog search used to fill pages
type MovieSearcher interface {
	Search(ctx context.Context, query string) ([]models.Movie, error)
}

// SeenChecker reports whether a movie already has a recorded swipe decision
type SeenChecker interface {
	HasInteracted(ctx context.Context, movieID int) (bool, error)
}

// DiscoveryConfig holds discovery configuration
type DiscoveryConfig struct {
	PageSize int
	// Seen is optional; when set, movies with a recorded decision are skipped
	Seen SeenChecker
}

// DiscoveryService builds "popular" pages out of title searches, since the
// catalog has no browse endpoint
type DiscoveryService struct {
	searcher MovieSearcher
	corpus   *corpus.Corpus
	pageSize int
	seen     SeenChecker
	logger   *log.Logger
}

// NewDiscoveryService creates a new DiscoveryService
func NewDiscoveryService(searcher MovieSearcher, titles *corpus.Corpus, cfg DiscoveryConfig, logger *log.Logger) *DiscoveryService {
	if cfg.PageSize < 1 {
		cfg.PageSize = DefaultPageSize
	}
	if logger == nil {
		logger = log.Default()
	}
	return &DiscoveryService{
		searcher: searcher,
		corpus:   titles,
		pageSize: cfg.PageSize,
		seen:     cfg.Seen,
		logger:   logger,
	}
}

// PageSize returns the configured page size
func (s *DiscoveryService) PageSize() int {
	return s.pageSize
}

// SearchTerm returns the query used for a corpus title on the given cycle
func SearchTerm(title string, cycle int) string {
	if cycle == 0 {
		return title
	}
	return variations[cycle%len(variations)](title)
}

// Plan returns the ordered search terms a page may issue, pageSize*3 at most.
// The plan depends only on the page number and the corpus.
func (s *DiscoveryService) Plan(page int) ([]string, error) {
	if page < 1 || page > math.MaxInt/s.pageSize {
		return nil, ErrInvalidPage
	}

	n := s.corpus.Len()
	if n == 0 {
		return nil, errEmptyCorpus
	}
	startIndex := (page - 1) * s.pageSize
	cycle := startIndex / n
	offset := startIndex % n

	budget := s.pageSize * attemptsPerSlot
	terms := make([]string, budget)
	for attempt := 0; attempt < budget; attempt++ {
		terms[attempt] = SearchTerm(s.corpus.At((offset+attempt)%n), cycle)
	}
	return terms, nil
}

// attemptOutcome is the result of one search in the page loop
type attemptOutcome struct {
	attempt int
	term    string
	movies  []models.Movie
	err     error
}

// GetPage returns up to pageSize unique movies for the page. A short page is
// not an error; only authentication failures and cancellation are returned.
func (s *DiscoveryService) GetPage(ctx context.Context, page int) ([]models.Movie, error) {
	plan, err := s.Plan(page)
	if err != nil {
		return nil, err
	}

	movies := make([]models.Movie, 0, s.pageSize)
	onPage := make(map[int]struct{}, s.pageSize)

	for attempt, term := range plan {
		if len(movies) >= s.pageSize {
			break
		}
		if err := ctx.Err(); err != nil {
			return movies, err
		}

		outcome := s.search(ctx, attempt, term)
		if outcome.err != nil {
			var authErr *AuthError
			if errors.As(outcome.err, &authErr) {
				return nil, outcome.err
			}
			s.logger.Printf("Discovery attempt %d (%q) skipped: %v", outcome.attempt, outcome.term, outcome.err)
			continue
		}

		for _, movie := range usableResults(outcome.movies) {
			if len(movies) >= s.pageSize {
				break
			}
			if _, dup := onPage[movie.ID]; dup {
				continue
			}
			if s.alreadySeen(ctx, movie.ID) {
				continue
			}
			onPage[movie.ID] = struct{}{}
			movies = append(movies, movie)
		}
	}

	return movies, nil
}

func (s *DiscoveryService) search(ctx context.Context, attempt int, term string) attemptOutcome {
	movies, err := s.searcher.Search(ctx, term)
	return attemptOutcome{attempt: attempt, term: term, movies: movies, err: err}
}

func (s *DiscoveryService) alreadySeen(ctx context.Context, movieID int) bool {
	if s.seen == nil {
		return false
	}
	seen, err := s.seen.HasInteracted(ctx, movieID)
	if err != nil {
		s.logger.Printf("Failed to check interaction for movie %d: %v", movieID, err)
		return false
	}
	return seen
}

// usableResults drops noise entries and keeps at most maxPerSearch survivors
func usableResults(results []models.Movie) []models.Movie {
	out := make([]models.Movie, 0, maxPerSearch)
	for _, movie := range results {
		if len(out) == maxPerSearch {
			break
		}
		if !isUsable(movie) {
			continue
		}
		out = append(out, movie)
	}
	return out
}

func isUsable(movie models.Movie) bool {
	if movie.ID <= 0 {
		return false
	}
	title := strings.TrimSpace(movie.Title)
	if utf8.RuneCountInString(title) <= 1 {
		return false
	}
	_, isGenre := genreLabels[strings.ToLower(title)]
	return !isGenre
}
