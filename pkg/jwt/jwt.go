// Package jwt issues and verifies the ES256 session tokens handed out after
// a successful Chaum-Pedersen authentication.
package jwt

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwk"
)

// SchemeChaumPedersen is the value of the zk.scheme claim.
const SchemeChaumPedersen = "chaum-pedersen"

// TokenSigner signs claims and publishes the matching public keys.
type TokenSigner interface {
	// Sign creates a JWT with the given claims
	Sign(claims jwt.Claims) (string, error)

	// JWKS returns the public keys for JWT verification
	JWKS() jwk.Set

	// Algorithm returns the signing algorithm
	Algorithm() string
}

// Claims are the claims carried by a session token.
type Claims struct {
	jwt.RegisteredClaims
	ZK *ZKClaims `json:"zk,omitempty"`
}

// ZKClaims records how the subject authenticated.
type ZKClaims struct {
	Scheme string `json:"scheme"`
	Group  string `json:"grp"`
}

// ES256Signer implements JWT signing using ECDSA P-256
type ES256Signer struct {
	privateKey *ecdsa.PrivateKey
	keyID      string
	jwks       jwk.Set
}

// NewES256Signer creates a new ES256 JWT signer
func NewES256Signer(privateKey *ecdsa.PrivateKey, keyID string) (*ES256Signer, error) {
	publicJWK, err := jwk.FromRaw(&privateKey.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create JWK from public key: %w", err)
	}

	if err := publicJWK.Set(jwk.KeyIDKey, keyID); err != nil {
		return nil, fmt.Errorf("failed to set key ID: %w", err)
	}

	if err := publicJWK.Set(jwk.AlgorithmKey, "ES256"); err != nil {
		return nil, fmt.Errorf("failed to set algorithm: %w", err)
	}

	if err := publicJWK.Set(jwk.KeyUsageKey, "sig"); err != nil {
		return nil, fmt.Errorf("failed to set key usage: %w", err)
	}

	jwks := jwk.NewSet()
	if err := jwks.AddKey(publicJWK); err != nil {
		return nil, fmt.Errorf("failed to build JWKS: %w", err)
	}

	return &ES256Signer{
		privateKey: privateKey,
		keyID:      keyID,
		jwks:       jwks,
	}, nil
}

// Sign creates a JWT with the given claims
func (s *ES256Signer) Sign(claims jwt.Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodES256, claims)
	token.Header["kid"] = s.keyID

	tokenString, err := token.SignedString(s.privateKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign JWT: %w", err)
	}

	return tokenString, nil
}

// JWKS returns the public keys for JWT verification
func (s *ES256Signer) JWKS() jwk.Set {
	return s.jwks
}

// Algorithm returns the signing algorithm
func (s *ES256Signer) Algorithm() string {
	return "ES256"
}

// KeyID returns the kid placed in token headers
func (s *ES256Signer) KeyID() string {
	return s.keyID
}

// SessionTokenIssuer mints session tokens for authenticated identities.
type SessionTokenIssuer struct {
	Signer   TokenSigner
	Issuer   string
	Audience string
	TTL      time.Duration
	Group    string
}

// Issue returns a signed token with subject identity, valid from now for TTL.
func (i *SessionTokenIssuer) Issue(identity string, now time.Time) (string, error) {
	if i.Signer == nil {
		return "", errors.New("no token signer configured")
	}

	jti, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("failed to generate token id: %w", err)
	}

	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.Issuer,
			Subject:   identity,
			Audience:  jwt.ClaimStrings{i.Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.TTL)),
			ID:        jti.String(),
		},
		ZK: &ZKClaims{
			Scheme: SchemeChaumPedersen,
			Group:  i.Group,
		},
	}

	return i.Signer.Sign(claims)
}

// ExpiresIn is the lifetime of issued tokens.
func (i *SessionTokenIssuer) ExpiresIn() time.Duration {
	return i.TTL
}

// Verifier checks session tokens against a JWKS.
type Verifier struct {
	jwks     jwk.Set
	issuer   string
	audience string
	now      func() time.Time
}

// NewVerifier returns a verifier that requires the given issuer and audience.
// A nil now uses time.Now.
func NewVerifier(jwks jwk.Set, issuer, audience string, now func() time.Time) *Verifier {
	if now == nil {
		now = time.Now
	}
	return &Verifier{
		jwks:     jwks,
		issuer:   issuer,
		audience: audience,
		now:      now,
	}
}

// Verify parses and validates tokenString and returns its claims.
func (v *Verifier) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, v.keyFunc,
		jwt.WithValidMethods([]string{"ES256"}),
		jwt.WithIssuer(v.issuer),
		jwt.WithAudience(v.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to parse JWT: %w", err)
	}

	if !token.Valid {
		return nil, fmt.Errorf("invalid JWT")
	}

	if claims.ZK == nil || claims.ZK.Scheme == "" {
		return nil, fmt.Errorf("missing zk claim")
	}

	return claims, nil
}

func (v *Verifier) keyFunc(token *jwt.Token) (interface{}, error) {
	kid, ok := token.Header["kid"].(string)
	if !ok {
		return nil, fmt.Errorf("missing key ID")
	}

	key, ok := v.jwks.LookupKeyID(kid)
	if !ok {
		return nil, fmt.Errorf("key not found: %s", kid)
	}

	var publicKey interface{}
	if err := key.Raw(&publicKey); err != nil {
		return nil, fmt.Errorf("failed to extract public key: %w", err)
	}

	return publicKey, nil
}
