package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/liamwears/reelswipe/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

// fakeTVDB is a minimal stand-in for the TVDB v4 API
type fakeTVDB struct {
	logins      atomic.Int32
	loginStatus int
	loginReply  string
	loginDelay  time.Duration

	mu          sync.Mutex
	loginBodies []map[string]any
	authHeaders []string
	lastRequest *http.Request

	search  http.HandlerFunc
	details http.HandlerFunc
}

func newFakeTVDB(t *testing.T) (*fakeTVDB, *httptest.Server) {
	t.Helper()
	f := &fakeTVDB{
		loginStatus: http.StatusOK,
		loginReply:  `{"status":"success","data":{"token":"test-token"}}`,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /login", func(w http.ResponseWriter, r *http.Request) {
		f.logins.Add(1)
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		f.loginBodies = append(f.loginBodies, body)
		f.mu.Unlock()
		if f.loginDelay > 0 {
			time.Sleep(f.loginDelay)
		}
		w.WriteHeader(f.loginStatus)
		io.WriteString(w, f.loginReply)
	})
	mux.HandleFunc("GET /search", func(w http.ResponseWriter, r *http.Request) {
		f.recordAuth(r)
		if f.search == nil {
			io.WriteString(w, `{"status":"success","data":[]}`)
			return
		}
		f.search(w, r)
	})
	mux.HandleFunc("GET /movies/{id}/extended", func(w http.ResponseWriter, r *http.Request) {
		f.recordAuth(r)
		if f.details == nil {
			http.NotFound(w, r)
			return
		}
		f.details(w, r)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeTVDB) recordAuth(r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.authHeaders = append(f.authHeaders, r.Header.Get("Authorization"))
	f.lastRequest = r.Clone(context.Background())
}

func (f *fakeTVDB) headers() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.authHeaders...)
}

func (f *fakeTVDB) bodies() []map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]map[string]any(nil), f.loginBodies...)
}

func (f *fakeTVDB) last() *http.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastRequest
}

func newTestTVDBService(srv *httptest.Server, pin string, cache CatalogCache) *TVDBService {
	return NewTVDBService(TVDBConfig{
		APIKey:  "test-api-key",
		PIN:     pin,
		BaseURL: srv.URL,
	}, srv.Client(), cache, quietLogger())
}

func TestEnsureAuthenticatedReusesTokenUntilExpiry(t *testing.T) {
	fake, srv := newFakeTVDB(t)
	svc := newTestTVDBService(srv, "", nil)

	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	svc.Auth().now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, svc.Auth().EnsureAuthenticated(ctx))
	require.NoError(t, svc.Auth().EnsureAuthenticated(ctx))
	assert.EqualValues(t, 1, fake.logins.Load())

	now = now.Add(22*time.Hour + 59*time.Minute)
	require.NoError(t, svc.Auth().EnsureAuthenticated(ctx))
	assert.EqualValues(t, 1, fake.logins.Load())

	now = now.Add(time.Minute)
	require.NoError(t, svc.Auth().EnsureAuthenticated(ctx))
	assert.EqualValues(t, 2, fake.logins.Load())

	tok, err := svc.Auth().Token()
	require.NoError(t, err)
	assert.Equal(t, "test-token", tok.AccessToken)
	assert.Equal(t, now.Add(23*time.Hour), tok.Expiry)
}

func TestLoginOmitsEmptyPIN(t *testing.T) {
	fake, srv := newFakeTVDB(t)
	require.NoError(t, newTestTVDBService(srv, "", nil).Auth().EnsureAuthenticated(context.Background()))
	require.NoError(t, newTestTVDBService(srv, "4321", nil).Auth().EnsureAuthenticated(context.Background()))

	bodies := fake.bodies()
	require.Len(t, bodies, 2)
	assert.Equal(t, "test-api-key", bodies[0]["apikey"])
	assert.NotContains(t, bodies[0], "pin")
	assert.Equal(t, "4321", bodies[1]["pin"])
}

func TestLoginFailureReturnsAuthError(t *testing.T) {
	fake, srv := newFakeTVDB(t)
	fake.loginStatus = http.StatusUnauthorized
	fake.loginReply = `{"status":"failure","message":"invalid key"}`

	err := newTestTVDBService(srv, "", nil).Auth().EnsureAuthenticated(context.Background())

	var authErr *AuthError
	require.True(t, errors.As(err, &authErr))
	assert.Equal(t, http.StatusUnauthorized, authErr.StatusCode)
	assert.Contains(t, authErr.Body, "invalid key")
}

func TestLoginWithoutTokenReturnsAuthError(t *testing.T) {
	fake, srv := newFakeTVDB(t)
	fake.loginReply = `{"status":"success","data":{}}`

	err := newTestTVDBService(srv, "", nil).Auth().EnsureAuthenticated(context.Background())

	var authErr *AuthError
	require.True(t, errors.As(err, &authErr))
	assert.Equal(t, "no token returned", authErr.Reason)
}

func TestConcurrentCallersShareOneLogin(t *testing.T) {
	fake, srv := newFakeTVDB(t)
	fake.loginDelay = 50 * time.Millisecond
	auth := newTestTVDBService(srv, "", nil).Auth()

	var wg sync.WaitGroup
	errs := make([]error, 10)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = auth.EnsureAuthenticated(context.Background())
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.EqualValues(t, 1, fake.logins.Load())
}

func TestCancelledCallerDoesNotFailSharedLogin(t *testing.T) {
	fake, srv := newFakeTVDB(t)
	fake.loginDelay = 200 * time.Millisecond
	auth := newTestTVDBService(srv, "", nil).Auth()

	first, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() { firstErr <- auth.EnsureAuthenticated(first) }()

	require.Eventually(t, func() bool { return fake.logins.Load() == 1 }, time.Second, 5*time.Millisecond)

	secondErr := make(chan error, 1)
	go func() { secondErr <- auth.EnsureAuthenticated(context.Background()) }()
	time.Sleep(20 * time.Millisecond)
	cancel()

	err := <-firstErr
	assert.ErrorIs(t, err, context.Canceled)
	var authErr *AuthError
	assert.False(t, errors.As(err, &authErr), "a cancelled caller is not an auth failure")

	require.NoError(t, <-secondErr)
	assert.EqualValues(t, 1, fake.logins.Load())

	tok, err := auth.Token()
	require.NoError(t, err)
	assert.Equal(t, "test-token", tok.AccessToken)
	assert.EqualValues(t, 1, fake.logins.Load())
}

func TestCancelledLoginLeaderStillCachesToken(t *testing.T) {
	fake, srv := newFakeTVDB(t)
	fake.loginDelay = 100 * time.Millisecond
	auth := newTestTVDBService(srv, "", nil).Auth()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, auth.EnsureAuthenticated(ctx), context.DeadlineExceeded)

	require.Eventually(t, func() bool { return auth.cached() != nil }, time.Second, 5*time.Millisecond)
	require.NoError(t, auth.EnsureAuthenticated(context.Background()))
	assert.EqualValues(t, 1, fake.logins.Load())
}

func TestSearchMapsMovieResults(t *testing.T) {
	fake, srv := newFakeTVDB(t)
	fake.search = func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"status":"success","data":[
			{"tvdb_id":"123","name":"The Matrix","overview":"Neo","first_air_time":"1999-03-31","image_url":"https://img/matrix.jpg","type":"movie","year":"1999"},
			{"tvdb_id":"456","name":"The Matrix (series)","overview":"","type":"series"},
			{"tvdb_id":"789","name":"The Matrix Reloaded","overview":"","first_air_time":"not a date","image_url":"","type":"MOVIE"},
			{"tvdb_id":"abc","name":"Broken","overview":"","type":"movie"}
		]}`)
	}
	svc := newTestTVDBService(srv, "", nil)

	movies, err := svc.Search(context.Background(), "The Matrix")
	require.NoError(t, err)

	req := fake.last()
	require.NotNil(t, req)
	assert.Equal(t, "The Matrix", req.URL.Query().Get("query"))
	assert.Equal(t, "movie", req.URL.Query().Get("type"))
	assert.Equal(t, []string{"Bearer test-token"}, fake.headers())

	require.Len(t, movies, 3)
	assert.Equal(t, 123, movies[0].ID)
	require.NotNil(t, movies[0].FirstAired)
	assert.Equal(t, 1999, movies[0].FirstAired.Year())
	require.NotNil(t, movies[0].PosterURL)
	assert.Equal(t, "https://img/matrix.jpg", *movies[0].PosterURL)
	assert.Empty(t, movies[0].Genres)
	assert.Nil(t, movies[0].Rating)

	assert.Equal(t, 789, movies[1].ID)
	assert.Nil(t, movies[1].FirstAired)
	assert.Nil(t, movies[1].PosterURL)

	assert.Equal(t, 0, movies[2].ID)
}

func TestSearchServerErrorYieldsEmptyList(t *testing.T) {
	fake, srv := newFakeTVDB(t)
	fake.search = func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"status":"failure"}`, http.StatusInternalServerError)
	}

	movies, err := newTestTVDBService(srv, "", nil).Search(context.Background(), "Heat")
	require.NoError(t, err)
	assert.NotNil(t, movies)
	assert.Empty(t, movies)
}

func TestSearchNullDataYieldsEmptyList(t *testing.T) {
	fake, srv := newFakeTVDB(t)
	fake.search = func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"status":"success","data":null}`)
	}

	movies, err := newTestTVDBService(srv, "", nil).Search(context.Background(), "Heat")
	require.NoError(t, err)
	assert.Empty(t, movies)
}

func TestSearchSurfacesAuthFailure(t *testing.T) {
	fake, srv := newFakeTVDB(t)
	fake.loginStatus = http.StatusForbidden

	movies, err := newTestTVDBService(srv, "", nil).Search(context.Background(), "Heat")

	var authErr *AuthError
	require.True(t, errors.As(err, &authErr))
	assert.Nil(t, movies)
	assert.Empty(t, fake.headers())
}

func TestGetDetailsMapsExtendedRecord(t *testing.T) {
	fake, srv := newFakeTVDB(t)
	fake.details = func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"status":"success","data":{
			"id":603,"name":"The Matrix","overview":"Neo","first_air_time":"",
			"image":"https://img/603.jpg",
			"genres":[{"id":1,"name":"Action"},{"id":2,"name":"Science Fiction"}],
			"score":8.7,"status":{"name":"Released"},"runtime":136,
			"companies":[{"name":"Warner Bros."},{"name":""}]
		}}`)
	}

	movie, err := newTestTVDBService(srv, "", nil).GetDetails(context.Background(), 603)
	require.NoError(t, err)
	require.NotNil(t, movie)

	assert.Equal(t, "/movies/603/extended", fake.last().URL.Path)
	assert.Equal(t, 603, movie.ID)
	assert.Nil(t, movie.FirstAired)
	assert.Equal(t, []string{"Action", "Science Fiction"}, movie.Genres)
	require.NotNil(t, movie.Rating)
	assert.Equal(t, 8.7, *movie.Rating)
	require.NotNil(t, movie.Runtime)
	assert.Equal(t, 136, *movie.Runtime)
	require.NotNil(t, movie.Status)
	assert.Equal(t, "Released", *movie.Status)
	assert.Equal(t, []string{"Warner Bros."}, movie.Companies)
}

func TestGetDetailsMissingIsAbsent(t *testing.T) {
	_, srv := newFakeTVDB(t)

	movie, err := newTestTVDBService(srv, "", nil).GetDetails(context.Background(), 1)
	require.NoError(t, err)
	assert.Nil(t, movie)
}

func TestParseAirDate(t *testing.T) {
	str := func(s string) *string { return &s }

	assert.Nil(t, parseAirDate(nil))
	assert.Nil(t, parseAirDate(str("")))
	assert.Nil(t, parseAirDate(str("   ")))
	assert.Nil(t, parseAirDate(str("31/03/1999")))
	assert.Nil(t, parseAirDate(str("0000-00-00")))

	for _, s := range []string{"1999-03-31", "1999-03-31T00:00:00Z", "1999-03-31 10:00:00"} {
		got := parseAirDate(str(s))
		require.NotNil(t, got, s)
		assert.Equal(t, time.March, got.Month(), s)
	}
}

// memoryCache is a CatalogCache backed by maps
type memoryCache struct {
	searches map[string][]models.Movie
	movies   map[int]*models.Movie
}

func newMemoryCache() *memoryCache {
	return &memoryCache{searches: map[string][]models.Movie{}, movies: map[int]*models.Movie{}}
}

func (c *memoryCache) GetSearch(_ context.Context, q string) ([]models.Movie, bool) {
	m, ok := c.searches[q]
	return m, ok
}

func (c *memoryCache) SetSearch(_ context.Context, q string, movies []models.Movie) {
	c.searches[q] = movies
}

func (c *memoryCache) GetMovie(_ context.Context, id int) (*models.Movie, bool) {
	m, ok := c.movies[id]
	return m, ok
}

func (c *memoryCache) SetMovie(_ context.Context, id int, movie *models.Movie) {
	c.movies[id] = movie
}

func TestSearchUsesCacheForSuccessfulResponses(t *testing.T) {
	fake, srv := newFakeTVDB(t)
	var calls atomic.Int32
	var fail atomic.Bool
	fake.search = func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if fail.Load() {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		io.WriteString(w, `{"status":"success","data":[{"tvdb_id":"1","name":"Heat","type":"movie"}]}`)
	}
	cache := newMemoryCache()
	svc := newTestTVDBService(srv, "", cache)
	ctx := context.Background()

	first, err := svc.Search(ctx, "Heat")
	require.NoError(t, err)
	second, err := svc.Search(ctx, "Heat")
	require.NoError(t, err)

	assert.EqualValues(t, 1, calls.Load())
	assert.Equal(t, first, second)

	fail.Store(true)
	_, err = svc.Search(ctx, "Alien")
	require.NoError(t, err)
	_, cached := cache.searches["Alien"]
	assert.False(t, cached)
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

func TestLoginTransportFailureIsAuthError(t *testing.T) {
	var calls atomic.Int32
	client := &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		calls.Add(1)
		return nil, errors.New("dial tcp: connection refused")
	})}
	svc := NewTVDBService(TVDBConfig{APIKey: "k", BaseURL: "https://tvdb.invalid/v4"}, client, nil, quietLogger())

	movies, err := svc.Search(context.Background(), "Heat")
	assert.Nil(t, movies)
	var authErr *AuthError
	require.True(t, errors.As(err, &authErr))
	assert.ErrorContains(t, err, "connection refused")

	// a failed login is not cached
	_, err = svc.GetDetails(context.Background(), 1)
	require.Error(t, err)
	assert.EqualValues(t, 2, calls.Load())
}

func TestRequestPathDoesNotRetryLogin(t *testing.T) {
	fake, srv := newFakeTVDB(t)
	fake.loginStatus = http.StatusServiceUnavailable
	fake.loginReply = `{"status":"failure"}`

	_, err := newTestTVDBService(srv, "", nil).Search(context.Background(), "Heat")
	var authErr *AuthError
	require.True(t, errors.As(err, &authErr))
	assert.EqualValues(t, 1, fake.logins.Load())
}

func TestWarmRetriesServerErrors(t *testing.T) {
	fake, srv := newFakeTVDB(t)
	fake.loginStatus = http.StatusServiceUnavailable
	fake.loginReply = `{"status":"failure"}`
	auth := newTestTVDBService(srv, "", nil).Auth()
	auth.retryDelay = time.Millisecond

	err := auth.Warm(context.Background())
	var authErr *AuthError
	require.True(t, errors.As(err, &authErr))
	assert.Equal(t, http.StatusServiceUnavailable, authErr.StatusCode)
	assert.EqualValues(t, defaultLoginAttempts, fake.logins.Load())
}

func TestWarmDoesNotRetryRejectedCredentials(t *testing.T) {
	fake, srv := newFakeTVDB(t)
	fake.loginStatus = http.StatusUnauthorized
	auth := newTestTVDBService(srv, "", nil).Auth()
	auth.retryDelay = time.Millisecond

	require.Error(t, auth.Warm(context.Background()))
	assert.EqualValues(t, 1, fake.logins.Load())
}

func TestWarmRecoversAfterTransientFailure(t *testing.T) {
	var calls atomic.Int32
	client := &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		if calls.Add(1) == 1 {
			return nil, errors.New("connection reset by peer")
		}
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(strings.NewReader(`{"status":"success","data":{"token":"second-try"}}`)),
			Request:    r,
		}, nil
	})}
	auth := NewTVDBAuth(TVDBAuthConfig{APIKey: "k", BaseURL: "https://tvdb.invalid/v4"}, client, quietLogger())
	auth.retryDelay = time.Millisecond

	require.NoError(t, auth.Warm(context.Background()))
	tok, err := auth.Token()
	require.NoError(t, err)
	assert.Equal(t, "second-try", tok.AccessToken)
	assert.EqualValues(t, 2, calls.Load())
}

func TestRequestsCarryBearerToken(t *testing.T) {
	var seen []string
	client := &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		seen = append(seen, r.Method+" "+r.URL.Path+" "+r.Header.Get("Authorization"))
		body := `{"status":"success","data":{"token":"abc"}}`
		if r.URL.Path != "/v4/login" {
			body = `{"status":"success","data":{"id":5,"name":"Five"}}`
		}
		return &http.Response{
			StatusCode: http.StatusOK,
			Header:     http.Header{"Content-Type": []string{"application/json"}},
			Body:       io.NopCloser(strings.NewReader(body)),
			Request:    r,
		}, nil
	})}
	svc := NewTVDBService(TVDBConfig{APIKey: "k", BaseURL: "https://tvdb.invalid/v4/"}, client, nil, quietLogger())

	movie, err := svc.GetDetails(context.Background(), 5)
	require.NoError(t, err)
	require.NotNil(t, movie)
	assert.Equal(t, "Five", movie.Title)
	assert.Equal(t, []string{
		"POST /v4/login ",
		"GET /v4/movies/5/extended Bearer abc",
	}, seen)
}
