package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/liamwears/reelswipe/internal/models"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

// tokenLifetime is one hour short of the 24 hour TVDB token lifetime
const tokenLifetime = 23 * time.Hour

const (
	defaultLoginAttempts = 3
	defaultRetryDelay    = 250 * time.Millisecond
)

// loginTimeout bounds a shared login independently of any one caller
const loginTimeout = 30 * time.Second

// AuthError is returned when the TVDB login fails. It is the only error the
// catalog operations surface to callers.
type AuthError struct {
	StatusCode int
	Body       string
	Reason     string
	Err        error
}

func (e *AuthError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("tvdb authentication failed: %v", e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("tvdb authentication failed: status %d, body: %s", e.StatusCode, e.Body)
	default:
		return "tvdb authentication failed: " + e.Reason
	}
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// TVDBAuth obtains and caches the TVDB bearer token
type TVDBAuth struct {
	client  *http.Client
	baseURL string
	apiKey  string
	pin     string
	logger  *log.Logger
	now     func() time.Time

	attempts   uint
	retryDelay time.Duration

	mu    sync.RWMutex
	token *oauth2.Token

	group singleflight.Group
}

// TVDBAuthConfig holds TVDB login configuration
type TVDBAuthConfig struct {
	APIKey  string
	PIN     string
	BaseURL string
	// LoginAttempts bounds Warm's retries of transient failures; 0 means 3
	LoginAttempts int
}

// NewTVDBAuth creates a new auth manager. client must not carry the bearer
// transport itself.
func NewTVDBAuth(cfg TVDBAuthConfig, client *http.Client, logger *log.Logger) *TVDBAuth {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	if logger == nil {
		logger = log.Default()
	}
	attempts := uint(defaultLoginAttempts)
	if cfg.LoginAttempts > 0 {
		attempts = uint(cfg.LoginAttempts)
	}
	return &TVDBAuth{
		client:     client,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		pin:        cfg.PIN,
		logger:     logger,
		now:        time.Now,
		attempts:   attempts,
		retryDelay: defaultRetryDelay,
	}
}

// EnsureAuthenticated makes sure a valid token is cached before the next request
func (a *TVDBAuth) EnsureAuthenticated(ctx context.Context) error {
	_, err := a.credential(ctx)
	return err
}

// Warm logs in ahead of the first request. Transport failures and 5xx
// replies are retried with backoff; rejected credentials fail at once.
// Request paths never retry a failed login.
func (a *TVDBAuth) Warm(ctx context.Context) error {
	err := retry.Do(
		func() error { return a.EnsureAuthenticated(ctx) },
		retry.Context(ctx),
		retry.Attempts(a.attempts),
		retry.Delay(a.retryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(isTransientLoginError),
		retry.OnRetry(func(n uint, err error) {
			a.logger.Printf("TVDB login attempt %d failed, retrying: %v", n+1, err)
		}),
	)
	if err == nil {
		return nil
	}
	var authErr *AuthError
	if !errors.As(err, &authErr) {
		err = &AuthError{Err: err}
	}
	return err
}

func isTransientLoginError(err error) bool {
	var authErr *AuthError
	if !errors.As(err, &authErr) {
		return false
	}
	if authErr.StatusCode == 0 {
		return authErr.Err != nil
	}
	return authErr.StatusCode >= 500
}

// Token implements oauth2.TokenSource so the token can be installed with
// oauth2.Transport. The interface carries no context; a login started here
// is bounded by loginTimeout like every other shared login.
func (a *TVDBAuth) Token() (*oauth2.Token, error) {
	return a.credential(context.Background())
}

// cached returns the current token if it is still valid
func (a *TVDBAuth) cached() *oauth2.Token {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.token != nil && a.token.AccessToken != "" && a.now().Before(a.token.Expiry) {
		return a.token
	}
	return nil
}

func (a *TVDBAuth) credential(ctx context.Context) (*oauth2.Token, error) {
	if tok := a.cached(); tok != nil {
		return tok, nil
	}

	// Concurrent callers share one login. It runs detached from the caller
	// that started it, so one cancelled request cannot fail the others.
	ch := a.group.DoChan("login", func() (any, error) {
		if tok := a.cached(); tok != nil {
			return tok, nil
		}
		loginCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loginTimeout)
		defer cancel()
		tok, err := a.login(loginCtx)
		if err != nil {
			return nil, err
		}
		a.mu.Lock()
		a.token = tok
		a.mu.Unlock()
		return tok, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*oauth2.Token), nil
	}
}

func (a *TVDBAuth) login(ctx context.Context) (*oauth2.Token, error) {
	buf, err := json.Marshal(models.TVDBLoginRequest{APIKey: a.apiKey, PIN: a.pin})
	if err != nil {
		return nil, &AuthError{Err: fmt.Errorf("failed to encode login request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/login", bytes.NewReader(buf))
	if err != nil {
		return nil, &AuthError{Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, &AuthError{Err: fmt.Errorf("failed to execute request: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &AuthError{StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &AuthError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var envelope models.TVDBResponse[models.TVDBAuthData]
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, &AuthError{StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to unmarshal login response: %w", err)}
	}
	if envelope.Data == nil || envelope.Data.Token == "" {
		return nil, &AuthError{Reason: "no token returned"}
	}

	a.logger.Printf("Authenticated with TVDB")

	return &oauth2.Token{
		AccessToken: envelope.Data.Token,
		TokenType:   "Bearer",
		Expiry:      a.now().Add(tokenLifetime),
	}, nil
}
