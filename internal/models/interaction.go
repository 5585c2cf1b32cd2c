package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// InteractionType records the swipe decision for a movie
type InteractionType int

const (
	InteractionRejected InteractionType = 0
	InteractionMatched  InteractionType = 1
)

// String returns the string representation of InteractionType
func (t InteractionType) String() string {
	switch t {
	case InteractionRejected:
		return "rejected"
	case InteractionMatched:
		return "matched"
	default:
		return fmt.Sprintf("InteractionType(%d)", int(t))
	}
}

// IsValid checks if the interaction type is valid
func (t InteractionType) IsValid() bool {
	return t == InteractionRejected || t == InteractionMatched
}

// MarshalText encodes the type by name
func (t InteractionType) MarshalText() ([]byte, error) {
	if !t.IsValid() {
		return nil, fmt.Errorf("invalid interaction type: %d", int(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText decodes a type name
func (t *InteractionType) UnmarshalText(text []byte) error {
	parsed, err := ParseInteractionType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// ParseInteractionType parses "matched" or "rejected"
func ParseInteractionType(s string) (InteractionType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "matched", "match":
		return InteractionMatched, nil
	case "rejected", "reject":
		return InteractionRejected, nil
	default:
		return 0, fmt.Errorf("invalid interaction type: %q", s)
	}
}

// Interaction is a recorded swipe decision with a snapshot of the movie
type Interaction struct {
	ID              uuid.UUID       `db:"id" json:"id"`
	MovieID         int             `db:"movieId" json:"movieId"`
	MovieTitle      string          `db:"movieTitle" json:"movieTitle"`
	MoviePosterURL  *string         `db:"moviePosterUrl" json:"moviePosterUrl"`
	MovieOverview   *string         `db:"movieOverview" json:"movieOverview"`
	MovieYear       *string         `db:"movieYear" json:"movieYear"`
	MovieGenres     *string         `db:"movieGenres" json:"movieGenres"`
	MovieRating     *float64        `db:"movieRating" json:"movieRating"`
	InteractionType InteractionType `db:"interactionType" json:"interactionType"`
	InteractionDate time.Time       `db:"interactionDate" json:"interactionDate"`
	IsWatched       bool            `db:"isWatched" json:"isWatched"`
	UserRating      *int            `db:"userRating" json:"userRating"`
	UserReview      *string         `db:"userReview" json:"userReview"`
	WatchedDate     *time.Time      `db:"watchedDate" json:"watchedDate"`
}

// MarkWatchedInput represents the input for marking a match as watched
type MarkWatchedInput struct {
	Rating *int    `json:"rating,omitempty"`
	Review *string `json:"review,omitempty"`
}

// MaxReviewLength is the longest review the store accepts, in characters
const MaxReviewLength = 2000

// ErrInvalidWatchedInput is returned by Validate
var ErrInvalidWatchedInput = errors.New("invalid watched input")

// Validate checks the optional star rating and review length
func (in MarkWatchedInput) Validate() error {
	if in.Rating != nil && (*in.Rating < 1 || *in.Rating > 5) {
		return fmt.Errorf("%w: rating must be between 1 and 5", ErrInvalidWatchedInput)
	}
	if in.Review != nil && utf8.RuneCountInString(*in.Review) > MaxReviewLength {
		return fmt.Errorf("%w: review exceeds %d characters", ErrInvalidWatchedInput, MaxReviewLength)
	}
	return nil
}
