package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/vinay10949/chaum-pedersen-auth/pkg/jwt"
)

func newTokenPair(t *testing.T, group string) (*jwt.SessionTokenIssuer, *jwt.Verifier) {
	t.Helper()

	signer, err := jwt.NewEphemeralSigner()
	require.NoError(t, err)

	issuer := &jwt.SessionTokenIssuer{
		Signer:   signer,
		Issuer:   "https://auth.example",
		Audience: "zkauth",
		TTL:      time.Minute,
		Group:    group,
	}
	return issuer, jwt.NewVerifier(signer.JWKS(), issuer.Issuer, issuer.Audience, nil)
}

func okHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func TestJWTMiddleware(t *testing.T) {
	issuer, verifier := newTokenPair(t, "rfc5054-2048")

	token, err := issuer.Issue("alice", time.Now())
	require.NoError(t, err)

	var subject string
	handler := JWTMiddleware(verifier)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := GetJWTClaims(r)
		require.True(t, ok)
		subject = claims.Subject
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"valid token", "Bearer " + token, http.StatusOK},
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic " + token, http.StatusUnauthorized},
		{"garbage token", "Bearer not-a-jwt", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			require.Equal(t, tt.want, rec.Code)
		})
	}

	require.Equal(t, "alice", subject)
}

func TestJWTMiddlewareRejectsForeignSigner(t *testing.T) {
	_, verifier := newTokenPair(t, "rfc5054-2048")
	otherIssuer, _ := newTokenPair(t, "rfc5054-2048")

	token, err := otherIssuer.Issue("mallory", time.Now())
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	JWTMiddleware(verifier)(http.HandlerFunc(okHandler)).ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireZKClaims(t *testing.T) {
	issuer, verifier := newTokenPair(t, "rfc5054-2048")
	token, err := issuer.Issue("alice", time.Now())
	require.NoError(t, err)

	tests := []struct {
		name  string
		guard func(http.Handler) http.Handler
		want  int
	}{
		{"matching scheme", RequireZKScheme(jwt.SchemeChaumPedersen), http.StatusOK},
		{"other scheme", RequireZKScheme("schnorr"), http.StatusForbidden},
		{"matching group", RequireGroup("rfc5054-2048"), http.StatusOK},
		{"other group", RequireGroup("rfc3526-4096"), http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := JWTMiddleware(verifier)(tt.guard(http.HandlerFunc(okHandler)))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Authorization", "Bearer "+token)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			require.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestRequireZKSchemeWithoutClaims(t *testing.T) {
	handler := RequireZKScheme(jwt.SchemeChaumPedersen)(http.HandlerFunc(okHandler))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestCORS(t *testing.T) {
	handler := CORS(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	t.Run("preflight", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/register", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("passthrough", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/register", nil))
		require.Equal(t, http.StatusTeapot, rec.Code)
		require.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "POST")
	})
}

func TestRateLimit(t *testing.T) {
	clock := clockwork.NewFakeClock()
	limiter := NewRateLimiter(2, time.Minute, clock)
	defer limiter.Close()

	counter := 0
	handler := limiter.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		counter++
		w.WriteHeader(http.StatusOK)
	}))

	send := func(addr string) int {
		req := httptest.NewRequest(http.MethodPost, "/auth/challenge", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	require.Equal(t, http.StatusOK, send("192.0.2.1:1234"))
	require.Equal(t, http.StatusOK, send("192.0.2.1:1235"))
	require.Equal(t, http.StatusTooManyRequests, send("192.0.2.1:1236"))

	// separate bucket per client
	require.Equal(t, http.StatusOK, send("192.0.2.2:1234"))

	require.Equal(t, 3, counter)
}

func TestRateLimitRefills(t *testing.T) {
	clock := clockwork.NewFakeClock()
	limiter := NewRateLimiter(2, time.Minute, clock)
	defer limiter.Close()

	require.True(t, limiter.Allow("a"))
	require.True(t, limiter.Allow("a"))
	require.False(t, limiter.Allow("a"))

	clock.Advance(30 * time.Second)
	require.True(t, limiter.Allow("a"))
	require.False(t, limiter.Allow("a"))
}

func TestRateLimitForgetsIdleClients(t *testing.T) {
	clock := clockwork.NewFakeClock()
	limiter := NewRateLimiter(1, time.Minute, clock)
	defer limiter.Close()

	require.True(t, limiter.Allow("a"))

	clock.Advance(2 * time.Minute)
	limiter.forgetIdle()

	limiter.mu.Lock()
	defer limiter.mu.Unlock()
	require.Empty(t, limiter.visitors)
}

func TestRateLimiterCloseIsIdempotent(t *testing.T) {
	limiter := NewRateLimiter(1, time.Second, nil)
	limiter.Close()
	limiter.Close()
}
