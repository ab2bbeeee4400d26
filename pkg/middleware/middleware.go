// Package middleware holds the HTTP middleware shared by the auth server:
// bearer-token verification and per-client rate limiting.
package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/vinay10949/chaum-pedersen-auth/pkg/jwt"
)

// ContextKey is used for storing values in context
type ContextKey string

// JWTClaimsKey is the context key for verified session token claims
const JWTClaimsKey ContextKey = "jwt_claims"

// JWTMiddleware rejects requests without a valid bearer session token and
// stores the verified claims on the request context.
func JWTMiddleware(verifier *jwt.Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "missing Authorization header", http.StatusUnauthorized)
				return
			}

			const bearerPrefix = "Bearer "
			if !strings.HasPrefix(authHeader, bearerPrefix) {
				http.Error(w, "invalid Authorization header format", http.StatusUnauthorized)
				return
			}

			claims, err := verifier.Verify(strings.TrimPrefix(authHeader, bearerPrefix))
			if err != nil {
				http.Error(w, fmt.Sprintf("JWT verification failed: %v", err), http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), JWTClaimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetJWTClaims extracts JWT claims from request context
func GetJWTClaims(r *http.Request) (*jwt.Claims, bool) {
	claims, ok := r.Context().Value(JWTClaimsKey).(*jwt.Claims)
	return claims, ok
}

// RequireZKScheme ensures the token was issued after a proof of the given scheme
func RequireZKScheme(expectedScheme string) func(http.Handler) http.Handler {
	return requireZK(func(zk *jwt.ZKClaims) error {
		if zk.Scheme != expectedScheme {
			return fmt.Errorf("invalid ZK scheme: expected %s, got %s", expectedScheme, zk.Scheme)
		}
		return nil
	})
}

// RequireGroup ensures the token was issued for proofs over the named group
func RequireGroup(expectedGroup string) func(http.Handler) http.Handler {
	return requireZK(func(zk *jwt.ZKClaims) error {
		if zk.Group != expectedGroup {
			return fmt.Errorf("invalid group: expected %s, got %s", expectedGroup, zk.Group)
		}
		return nil
	})
}

func requireZK(check func(*jwt.ZKClaims) error) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := GetJWTClaims(r)
			if !ok {
				http.Error(w, "JWT claims required", http.StatusInternalServerError)
				return
			}

			if claims.ZK == nil {
				http.Error(w, "JWT missing ZK claims", http.StatusForbidden)
				return
			}

			if err := check(claims.ZK); err != nil {
				http.Error(w, err.Error(), http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// CORS allows browser clients on other origins to drive the protocol
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
