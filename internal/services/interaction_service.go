package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/liamwears/reelswipe/internal/models"
)

// ErrUnresolvedMovie is returned when a decision is recorded for a movie
// without a catalog ID
var ErrUnresolvedMovie = errors.New("movie has no catalog ID")

const interactionColumns = `
	id, "movieId", "movieTitle", "moviePosterUrl", "movieOverview", "movieYear",
	"movieGenres", "movieRating", "interactionType", "interactionDate",
	"isWatched", "userRating", "userReview", "watchedDate"
`

// InteractionService records swipe decisions
type InteractionService struct {
	db *pgxpool.Pool
}

// NewInteractionService creates a new InteractionService
func NewInteractionService(db *pgxpool.Pool) *InteractionService {
	return &InteractionService{db: db}
}

// HasInteracted reports whether a decision exists for the movie
func (s *InteractionService) HasInteracted(ctx context.Context, movieID int) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM "UserMovieInteraction" WHERE "movieId" = $1)`,
		movieID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check interaction: %w", err)
	}
	return exists, nil
}

// SaveMatch records a right swipe
func (s *InteractionService) SaveMatch(ctx context.Context, movie models.Movie) (*models.Interaction, error) {
	return s.save(ctx, movie, models.InteractionMatched)
}

// SaveRejection records a left swipe
func (s *InteractionService) SaveRejection(ctx context.Context, movie models.Movie) (*models.Interaction, error) {
	return s.save(ctx, movie, models.InteractionRejected)
}

// save inserts a snapshot of the movie, or switches the decision of an
// existing row for the same movie
func (s *InteractionService) save(ctx context.Context, movie models.Movie, typ models.InteractionType) (*models.Interaction, error) {
	if movie.ID <= 0 {
		return nil, ErrUnresolvedMovie
	}

	params := snapshotOf(movie)

	query := `
		INSERT INTO "UserMovieInteraction" ("movieId", "movieTitle", "moviePosterUrl",
			"movieOverview", "movieYear", "movieGenres", "movieRating", "interactionType")
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT ("movieId") DO UPDATE
		SET "interactionType" = EXCLUDED."interactionType",
		    "interactionDate" = NOW()
		RETURNING ` + interactionColumns

	interaction, err := scanInteraction(s.db.QueryRow(ctx, query,
		movie.ID,
		params.title,
		params.posterURL,
		params.overview,
		params.year,
		params.genres,
		movie.Rating,
		int(typ),
	))
	if err != nil {
		return nil, fmt.Errorf("failed to save %s: %w", typ, err)
	}
	return interaction, nil
}

// ListMatched returns matched movies, most recent first
func (s *InteractionService) ListMatched(ctx context.Context) ([]models.Interaction, error) {
	return s.list(ctx, models.InteractionMatched)
}

// ListRejected returns rejected movies, most recent first
func (s *InteractionService) ListRejected(ctx context.Context) ([]models.Interaction, error) {
	return s.list(ctx, models.InteractionRejected)
}

func (s *InteractionService) list(ctx context.Context, typ models.InteractionType) ([]models.Interaction, error) {
	query := `SELECT ` + interactionColumns + `
		FROM "UserMovieInteraction"
		WHERE "interactionType" = $1
		ORDER BY "interactionDate" DESC
	`

	rows, err := s.db.Query(ctx, query, int(typ))
	if err != nil {
		return nil, fmt.Errorf("failed to query interactions: %w", err)
	}
	defer rows.Close()

	interactions := []models.Interaction{}
	for rows.Next() {
		interaction, err := scanInteraction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan interaction: %w", err)
		}
		interactions = append(interactions, *interaction)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating interactions: %w", err)
	}

	return interactions, nil
}

// Get retrieves an interaction by ID
func (s *InteractionService) Get(ctx context.Context, id uuid.UUID) (*models.Interaction, error) {
	query := `SELECT ` + interactionColumns + `
		FROM "UserMovieInteraction"
		WHERE id = $1
	`
	return scanInteraction(s.db.QueryRow(ctx, query, id))
}

// MarkWatched flags a match as watched with an optional rating and review
func (s *InteractionService) MarkWatched(ctx context.Context, id uuid.UUID, input models.MarkWatchedInput) (*models.Interaction, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	query := `
		UPDATE "UserMovieInteraction"
		SET "isWatched" = TRUE, "watchedDate" = NOW(), "userRating" = $2, "userReview" = $3
		WHERE id = $1
		RETURNING ` + interactionColumns

	return scanInteraction(s.db.QueryRow(ctx, query, id, input.Rating, input.Review))
}

// UnmarkWatched clears the watched state, rating and review
func (s *InteractionService) UnmarkWatched(ctx context.Context, id uuid.UUID) (*models.Interaction, error) {
	query := `
		UPDATE "UserMovieInteraction"
		SET "isWatched" = FALSE, "watchedDate" = NULL, "userRating" = NULL, "userReview" = NULL
		WHERE id = $1
		RETURNING ` + interactionColumns

	return scanInteraction(s.db.QueryRow(ctx, query, id))
}

// Remove deletes an interaction
func (s *InteractionService) Remove(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM "UserMovieInteraction" WHERE id = $1`

	result, err := s.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete interaction: %w", err)
	}

	if result.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}

	return nil
}

// movieSnapshot holds the display fields stored with a decision
type movieSnapshot struct {
	title     string
	posterURL *string
	overview  *string
	year      *string
	genres    *string
}

// column limits of "UserMovieInteraction"
const (
	maxTitleLen    = 500
	maxPosterLen   = 1000
	maxOverviewLen = 2000
	maxYearLen     = 10
	maxGenresLen   = 500
)

func snapshotOf(movie models.Movie) movieSnapshot {
	return movieSnapshot{
		title:     truncate(strings.TrimSpace(movie.Title), maxTitleLen),
		posterURL: trimmedOrNil(truncate(derefOr(movie.PosterURL, ""), maxPosterLen)),
		overview:  trimmedOrNil(truncate(movie.Overview, maxOverviewLen)),
		year:      trimmedOrNil(truncate(movie.Year(), maxYearLen)),
		genres:    trimmedOrNil(truncate(movie.GenreText(), maxGenresLen)),
	}
}

// truncate cuts s to at most n runes
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

func derefOr(s *string, fallback string) string {
	if s == nil {
		return fallback
	}
	return *s
}

func trimmedOrNil(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func scanInteraction(row pgx.Row) (*models.Interaction, error) {
	var interaction models.Interaction
	var typ int
	err := row.Scan(
		&interaction.ID,
		&interaction.MovieID,
		&interaction.MovieTitle,
		&interaction.MoviePosterURL,
		&interaction.MovieOverview,
		&interaction.MovieYear,
		&interaction.MovieGenres,
		&interaction.MovieRating,
		&typ,
		&interaction.InteractionDate,
		&interaction.IsWatched,
		&interaction.UserRating,
		&interaction.UserReview,
		&interaction.WatchedDate,
	)
	if err != nil {
		return nil, err
	}
	interaction.InteractionType = models.InteractionType(typ)
	return &interaction, nil
}
