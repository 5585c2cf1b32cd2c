package models

// TVDBResponse is the envelope every TVDB v4 endpoint returns
type TVDBResponse[T any] struct {
	Status  string  `json:"status"`
	Data    *T      `json:"data"`
	Message *string `json:"message,omitempty"`
}

// TVDBLoginRequest is the body of POST /login. PIN is omitted when empty.
type TVDBLoginRequest struct {
	APIKey string `json:"apikey"`
	PIN    string `json:"pin,omitempty"`
}

// TVDBAuthData holds the token returned by POST /login
type TVDBAuthData struct {
	Token string `json:"token"`
}

// TVDBSearchResult is one entry of GET /search
type TVDBSearchResult struct {
	TVDBID       string  `json:"tvdb_id"`
	Name         string  `json:"name"`
	Overview     string  `json:"overview"`
	FirstAirTime *string `json:"first_air_time"`
	ImageURL     *string `json:"image_url"`
	Type         string  `json:"type"`
	Year         *string `json:"year"`
}

// TVDBMovieDetails is the data of GET /movies/{id}/extended
type TVDBMovieDetails struct {
	ID           int         `json:"id"`
	Name         string      `json:"name"`
	Overview     string      `json:"overview"`
	FirstAirTime *string     `json:"first_air_time"`
	Image        *string     `json:"image"`
	Genres       []TVDBNamed `json:"genres"`
	Score        *float64    `json:"score"`
	Status       *TVDBNamed  `json:"status"`
	Runtime      *int        `json:"runtime"`
	Companies    []TVDBNamed `json:"companies"`
}

// TVDBNamed covers the TVDB sub-records where only the name is used
// (genres, status, companies)
type TVDBNamed struct {
	ID   int    `json:"id,omitempty"`
	Name string `json:"name"`
}
