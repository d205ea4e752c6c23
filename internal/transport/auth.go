package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// CredentialRefresher forces a fresh credential set. The dispatcher invokes
// it exactly once per request on an Unauthorized outcome before giving up.
type CredentialRefresher interface {
	Refresh(ctx context.Context) error
}

// StaticToken is a fixed-token source (API-key style deployments).
type StaticToken string

func (s StaticToken) Token(ctx context.Context) (string, error) {
	return string(s), nil
}

// expiryMargin is how close to expiry a cached token may get before it is
// renewed proactively instead of burning a 401 round trip.
const expiryMargin = 2 * time.Minute

// LoginTokenSource obtains bearer tokens from the remote login endpoint
// using cached worker credentials and renews them before expiry. It also
// implements CredentialRefresher for the dispatcher's single-shot
// re-authentication on 401.
type LoginTokenSource struct {
	httpClient *http.Client
	baseURL    string
	username   string
	password   string
	log        *slog.Logger

	mu     sync.Mutex
	token  string
	expiry time.Time
}

// NewLoginTokenSource creates a token source against baseURL's login
// endpoint.
func NewLoginTokenSource(baseURL, username, password string) *LoginTokenSource {
	return &LoginTokenSource{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    baseURL,
		username:   username,
		password:   password,
		log:        slog.Default().With("component", "auth"),
	}
}

// Token returns the cached access token, logging in when none is held or
// the held one is about to expire.
func (s *LoginTokenSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" && (s.expiry.IsZero() || time.Until(s.expiry) > expiryMargin) {
		return s.token, nil
	}
	if err := s.login(ctx); err != nil {
		return "", err
	}
	return s.token, nil
}

// Refresh discards the cached token and logs in again.
func (s *LoginTokenSource) Refresh(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = ""
	return s.login(ctx)
}

// login performs the OAuth2 password flow the remote exposes. Caller holds
// the mutex.
func (s *LoginTokenSource) login(ctx context.Context) error {
	form := url.Values{}
	form.Set("username", s.username)
	form.Set("password", s.password)

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		s.baseURL+"/api/v1/auth/login",
		strings.NewReader(form.Encode()),
	)
	if err != nil {
		return fmt.Errorf("create login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read login response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("login failed: http %d", resp.StatusCode)
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return fmt.Errorf("parse login response: %w", err)
	}
	if payload.AccessToken == "" {
		return fmt.Errorf("login response missing access token")
	}

	s.token = payload.AccessToken
	s.expiry = tokenExpiry(payload.AccessToken)
	s.log.Debug("obtained access token", "expires_at", s.expiry)
	return nil
}

// tokenExpiry reads the exp claim without verifying the signature; the
// client only needs it to schedule renewal. Returns zero time for opaque
// tokens.
func tokenExpiry(token string) time.Time {
	claims := jwt.RegisteredClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, &claims); err != nil {
		return time.Time{}
	}
	if claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}
