package token

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, expiry time.Time) string {
	t.Helper()
	claims := jwt.MapClaims{"sub": "user-1", "exp": expiry.Unix()}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

func newTestProvider(t *testing.T, handler http.HandlerFunc) (*Provider, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	provider, err := NewProvider(Config{Endpoint: srv.URL})
	require.NoError(t, err)
	return provider, srv
}

func TestGetToken_CachesUntilRefreshWindow(t *testing.T) {
	var calls atomic.Int64
	tok := signedToken(t, time.Now().Add(24*time.Hour))

	provider, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"token":"` + tok + `"}`))
	})

	first, err := provider.GetToken(context.Background())
	require.NoError(t, err)
	require.Equal(t, tok, first)

	second, err := provider.GetToken(context.Background())
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.EqualValues(t, 1, calls.Load())
}

func TestGetToken_RefreshesNearExpiry(t *testing.T) {
	var calls atomic.Int64

	provider, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		// Expires inside the 1h refresh window, so every call refreshes.
		tok := signedToken(t, time.Now().Add(30*time.Minute))
		_, _ = w.Write([]byte(`{"token":"` + tok + `"}`))
	})

	_, err := provider.GetToken(context.Background())
	require.NoError(t, err)
	_, err = provider.GetToken(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 2, calls.Load())
}

func TestGetToken_SingleFlight(t *testing.T) {
	var calls atomic.Int64
	tok := signedToken(t, time.Now().Add(24*time.Hour))

	provider, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		time.Sleep(50 * time.Millisecond)
		_, _ = w.Write([]byte(`{"token":"` + tok + `"}`))
	})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := provider.GetToken(context.Background())
			require.NoError(t, err)
			require.Equal(t, tok, got)
		}()
	}
	wg.Wait()

	require.EqualValues(t, 1, calls.Load())
}

func TestGetToken_AuthFailureIsTerminal(t *testing.T) {
	var calls atomic.Int64

	provider, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := provider.GetToken(context.Background())
	require.ErrorIs(t, err, ErrAuthRequired)
	require.True(t, provider.AuthRequired())

	// No retry storm: the endpoint is not hit again.
	_, err = provider.GetToken(context.Background())
	require.ErrorIs(t, err, ErrAuthRequired)
	require.EqualValues(t, 1, calls.Load())
}

func TestGetToken_ResetClearsAuthFailure(t *testing.T) {
	var unauthorized atomic.Bool
	unauthorized.Store(true)
	tok := signedToken(t, time.Now().Add(24*time.Hour))

	provider, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if unauthorized.Load() {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"token":"` + tok + `"}`))
	})

	_, err := provider.GetToken(context.Background())
	require.ErrorIs(t, err, ErrAuthRequired)

	unauthorized.Store(false)
	provider.Reset()

	got, err := provider.GetToken(context.Background())
	require.NoError(t, err)
	require.Equal(t, tok, got)
	require.False(t, provider.AuthRequired())
}

func TestGetToken_ServerLifetimeWins(t *testing.T) {
	var calls atomic.Int64

	provider, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		// Opaque token with a declared lifetime outside the refresh window.
		_, _ = w.Write([]byte(`{"token":"opaque-token","expiresIn":7200}`))
	})

	_, err := provider.GetToken(context.Background())
	require.NoError(t, err)
	_, err = provider.GetToken(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 1, calls.Load())
}
