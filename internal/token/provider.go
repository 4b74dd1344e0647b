package token

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrAuthRequired means the identity session is gone and the user must
	// re-authenticate. Callers pause sync; the provider stops calling the
	// endpoint until Reset.
	ErrAuthRequired = errors.New("authentication required")
)

// Provider fetches and caches the bearer token used to open hub connections.
// Refreshes are single-flighted: concurrent callers share one request.
type Provider struct {
	endpoint     string
	client       *http.Client
	logger       *log.Logger
	lifetime     time.Duration // fallback when the token carries no exp claim
	refreshEarly time.Duration

	mu           sync.RWMutex
	cachedToken  string
	tokenExpiry  time.Time
	authRequired bool
}

// Config holds configuration for creating a Provider.
type Config struct {
	Endpoint     string
	Lifetime     time.Duration // assumed token TTL, default 24h
	RefreshEarly time.Duration // refresh window before expiry, default 1h
	HTTPClient   *http.Client
	Logger       *log.Logger
}

// NewProvider creates a token provider for the given auth endpoint.
func NewProvider(cfg Config) (*Provider, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("token endpoint is required")
	}
	if cfg.Lifetime <= 0 {
		cfg.Lifetime = 24 * time.Hour
	}
	if cfg.RefreshEarly <= 0 {
		cfg.RefreshEarly = time.Hour
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	return &Provider{
		endpoint:     cfg.Endpoint,
		client:       cfg.HTTPClient,
		logger:       cfg.Logger,
		lifetime:     cfg.Lifetime,
		refreshEarly: cfg.RefreshEarly,
	}, nil
}

// GetToken returns a valid bearer token, fetching a new one if the cached one
// is missing or within the refresh window of expiry.
func (p *Provider) GetToken(ctx context.Context) (string, error) {
	p.mu.RLock()
	if p.authRequired {
		p.mu.RUnlock()
		return "", ErrAuthRequired
	}
	if p.cachedToken != "" && time.Now().Add(p.refreshEarly).Before(p.tokenExpiry) {
		token := p.cachedToken
		p.mu.RUnlock()
		return token, nil
	}
	p.mu.RUnlock()

	p.mu.Lock()
	defer p.mu.Unlock()

	// Double-check after acquiring write lock: another caller may have
	// refreshed while we waited.
	if p.authRequired {
		return "", ErrAuthRequired
	}
	if p.cachedToken != "" && time.Now().Add(p.refreshEarly).Before(p.tokenExpiry) {
		return p.cachedToken, nil
	}

	token, expiry, err := p.fetch(ctx)
	if err != nil {
		if errors.Is(err, ErrAuthRequired) {
			p.authRequired = true
			p.cachedToken = ""
			p.logger.Printf("token refresh rejected, sync paused until re-auth")
		}
		return "", err
	}

	p.cachedToken = token
	p.tokenExpiry = expiry
	return token, nil
}

// AuthRequired reports whether the provider is in the terminal auth-failed
// state.
func (p *Provider) AuthRequired() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.authRequired
}

// Reset clears the auth-failed state after the user re-authenticates.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.authRequired = false
	p.cachedToken = ""
	p.tokenExpiry = time.Time{}
}

type tokenResponse struct {
	Token        string `json:"token"`
	ExpiresInSec int    `json:"expiresIn,omitempty"`
}

func (p *Provider) fetch(ctx context.Context) (string, time.Time, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint, nil)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("build token request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("fetch token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return "", time.Time{}, ErrAuthRequired
	}
	if resp.StatusCode != http.StatusOK {
		return "", time.Time{}, fmt.Errorf("token endpoint returned %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("read token response: %w", err)
	}

	var parsed tokenResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", time.Time{}, fmt.Errorf("decode token response: %w", err)
	}
	if parsed.Token == "" {
		return "", time.Time{}, fmt.Errorf("token endpoint returned empty token")
	}

	return parsed.Token, p.expiryFor(parsed), nil
}

// expiryFor prefers the server-declared lifetime, then the token's own exp
// claim, then the configured fallback.
func (p *Provider) expiryFor(resp tokenResponse) time.Time {
	if resp.ExpiresInSec > 0 {
		return time.Now().Add(time.Duration(resp.ExpiresInSec) * time.Second)
	}
	if exp, ok := jwtExpiry(resp.Token); ok {
		return exp
	}
	return time.Now().Add(p.lifetime)
}

// jwtExpiry reads the exp claim without verifying the signature. The agent is
// not the token's audience; it only needs a refresh schedule.
func jwtExpiry(token string) (time.Time, bool) {
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
