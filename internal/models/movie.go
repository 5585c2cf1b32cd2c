package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Movie represents a catalog movie as returned by discovery, search and details
type Movie struct {
	ID            int        `json:"id"`
	Title         string     `json:"title"`
	Overview      string     `json:"overview"`
	FirstAired    *time.Time `json:"firstAired"`
	PosterURL     *string    `json:"posterUrl"`
	BackdropURL   *string    `json:"backdropUrl"`
	Genres        []string   `json:"genres"`
	Rating        *float64   `json:"rating"`
	ContentRating *string    `json:"contentRating"`
	Runtime       *int       `json:"runtime"`
	Status        *string    `json:"status"`
	Companies     []string   `json:"companies"`
}

// Year returns the release year or "Unknown"
func (m Movie) Year() string {
	if m.FirstAired == nil {
		return "Unknown"
	}
	return strconv.Itoa(m.FirstAired.Year())
}

// GenreText returns the first two genres joined for display
func (m Movie) GenreText() string {
	genres := m.Genres
	if len(genres) > 2 {
		genres = genres[:2]
	}
	return strings.Join(genres, ", ")
}

// RuntimeText returns the runtime formatted in minutes
func (m Movie) RuntimeText() string {
	if m.Runtime == nil {
		return "Unknown"
	}
	return fmt.Sprintf("%d min", *m.Runtime)
}

// RatingText returns the rating on a ten point scale
func (m Movie) RatingText() string {
	if m.Rating == nil {
		return "No rating"
	}
	return fmt.Sprintf("%.1f/10", *m.Rating)
}

// MovieView is the API representation of a Movie. The display strings are
// computed from the canonical fields on every call.
type MovieView struct {
	Movie
	Year        string `json:"year"`
	GenreText   string `json:"genreText"`
	RuntimeText string `json:"runtimeText"`
	RatingText  string `json:"ratingText"`
}

// NewMovieView builds the API view for a movie
func NewMovieView(m Movie) MovieView {
	return MovieView{
		Movie:       m,
		Year:        m.Year(),
		GenreText:   m.GenreText(),
		RuntimeText: m.RuntimeText(),
		RatingText:  m.RatingText(),
	}
}

// NewMovieViews builds API views for a list of movies
func NewMovieViews(movies []Movie) []MovieView {
	views := make([]MovieView, 0, len(movies))
	for _, m := range movies {
		views = append(views, NewMovieView(m))
	}
	return views
}
