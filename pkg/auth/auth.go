// Package auth implements the stateful side of Chaum-Pedersen
// authentication: a registry of public values per identity and a registry
// of pending challenges, driven by three operations.
//
//	Register(identity, y1, y2)
//	BeginAuthentication(identity, r1, r2)  -> (session_id, c)
//	CompleteAuthentication(session_id, s)  -> session_token
//
// A session ID is consumed by the first CompleteAuthentication call that
// presents it, whatever the outcome.
package auth

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/vinay10949/chaum-pedersen-auth/pkg/chaumpedersen"
	"github.com/vinay10949/chaum-pedersen-auth/pkg/log"
	"github.com/vinay10949/chaum-pedersen-auth/pkg/metrics"
	"github.com/vinay10949/chaum-pedersen-auth/pkg/storage"
)

// MaxIdentityLength is the longest identity accepted, in bytes.
const MaxIdentityLength = 256

var (
	// ErrInvalidEncoding indicates a malformed identity or integer
	ErrInvalidEncoding = errors.New("invalid encoding")

	// ErrUnknownIdentity indicates an identity with no registered public values
	ErrUnknownIdentity = errors.New("unknown identity")

	// ErrUnknownSession indicates a session that is not pending: never
	// issued, already completed, expired or evicted
	ErrUnknownSession = errors.New("unknown or consumed session")

	// ErrVerificationFailed indicates the response did not satisfy the proof
	ErrVerificationFailed = errors.New("verification failed")
)

// TokenIssuer mints the session token returned after a successful proof.
type TokenIssuer interface {
	Issue(identity string, now time.Time) (string, error)
	ExpiresIn() time.Duration
}

// Challenge is the reply to BeginAuthentication.
type Challenge struct {
	SessionID string
	C         []byte
}

// Session is the reply to CompleteAuthentication.
type Session struct {
	Identity  string
	Token     string
	ExpiresIn time.Duration
}

// Stats summarizes the registries.
type Stats struct {
	Group           string `json:"group"`
	Users           int    `json:"users"`
	PendingSessions int    `json:"pending_sessions"`
}

// Service is the authentication service. It is safe for concurrent use.
type Service struct {
	params   *chaumpedersen.Params
	verifier *chaumpedersen.Verifier
	store    storage.Store
	users    storage.UserStore
	sessions storage.SessionStore
	tokens   TokenIssuer
	clock    clockwork.Clock
	log      log.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithClock sets the clock used for token timestamps.
func WithClock(clock clockwork.Clock) Option {
	return func(s *Service) { s.clock = clock }
}

// WithLogger sets the service logger.
func WithLogger(l log.Logger) Option {
	return func(s *Service) { s.log = l }
}

// WithTokenIssuer replaces the default opaque token issuer.
func WithTokenIssuer(tokens TokenIssuer) Option {
	return func(s *Service) { s.tokens = tokens }
}

// WithVerifier replaces the default verifier, typically to control the
// challenge randomness in tests.
func WithVerifier(v *chaumpedersen.Verifier) Option {
	return func(s *Service) { s.verifier = v }
}

// NewService returns a service over params backed by store.
func NewService(params *chaumpedersen.Params, store storage.Store, opts ...Option) *Service {
	s := &Service{
		params:   params,
		verifier: chaumpedersen.NewVerifier(params),
		store:    store,
		users:    store,
		sessions: store,
		tokens:   opaqueTokens{},
		clock:    clockwork.NewRealClock(),
		log:      log.DefaultLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.Named("auth")
	return s
}

// Params returns the group parameters the service verifies against.
func (s *Service) Params() *chaumpedersen.Params {
	return s.params
}

// Register stores (y1, y2) for identity, replacing any earlier values.
func (s *Service) Register(ctx context.Context, identity string, y1, y2 []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateIdentity(identity); err != nil {
		return err
	}
	if _, err := s.element("y1", y1); err != nil {
		return err
	}
	if _, err := s.element("y2", y2); err != nil {
		return err
	}

	user := &storage.User{Identity: identity, Y1: y1, Y2: y2}
	if err := s.users.PutUser(user); err != nil {
		return fmt.Errorf("failed to store user: %w", err)
	}

	metrics.Registrations.Inc()
	s.log.Infow("identity registered", "identity", identity)
	return nil
}

// BeginAuthentication records the commitment (r1, r2) for a registered
// identity and returns a fresh challenge under a new session ID.
func (s *Service) BeginAuthentication(ctx context.Context, identity string, r1, r2 []byte) (*Challenge, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validateIdentity(identity); err != nil {
		return nil, err
	}
	if _, err := s.element("r1", r1); err != nil {
		return nil, err
	}
	if _, err := s.element("r2", r2); err != nil {
		return nil, err
	}

	if _, err := s.users.GetUser(identity); err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownIdentity, identity)
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	c, err := s.verifier.GenerateChallenge()
	if err != nil {
		return nil, err
	}

	id, err := uuid.NewRandom()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session id: %w", err)
	}

	session := &storage.PendingSession{
		ID:        id.String(),
		Identity:  identity,
		Challenge: c.Bytes(),
		R1:        r1,
		R2:        r2,
	}
	if err := s.sessions.CreateSession(session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	metrics.Challenges.Inc()
	s.log.Debugw("challenge issued", "identity", identity, "session", session.ID)

	return &Challenge{SessionID: session.ID, C: session.Challenge}, nil
}

// CompleteAuthentication consumes the pending session and checks the
// response s against it. The session is gone afterwards whether or not the
// proof verifies.
func (s *Service) CompleteAuthentication(ctx context.Context, sessionID string, response []byte) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if sessionID == "" {
		return nil, fmt.Errorf("%w: empty session id", ErrInvalidEncoding)
	}
	resp, err := s.scalar("s", response)
	if err != nil {
		metrics.AuthAttempts.WithLabelValues("invalid").Inc()
		return nil, err
	}

	pending, err := s.sessions.TakeSession(sessionID)
	if err != nil {
		if errors.Is(err, storage.ErrSessionNotFound) {
			metrics.AuthAttempts.WithLabelValues("unknown_session").Inc()
			return nil, ErrUnknownSession
		}
		return nil, fmt.Errorf("failed to take session: %w", err)
	}

	user, err := s.users.GetUser(pending.Identity)
	if err != nil {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		if errors.Is(err, storage.ErrUserNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownIdentity, pending.Identity)
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	commitment := chaumpedersen.Commitment{
		R1: new(big.Int).SetBytes(pending.R1),
		R2: new(big.Int).SetBytes(pending.R2),
	}
	public := chaumpedersen.PublicValues{
		Y1: new(big.Int).SetBytes(user.Y1),
		Y2: new(big.Int).SetBytes(user.Y2),
	}
	c := new(big.Int).SetBytes(pending.Challenge)

	start := s.clock.Now()
	ok := s.verifier.Verify(commitment, c, resp, public)
	metrics.VerifyLatency.Observe(s.clock.Since(start).Seconds())

	if !ok {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		s.log.Infow("authentication failed", "identity", pending.Identity, "session", sessionID)
		return nil, ErrVerificationFailed
	}

	token, err := s.tokens.Issue(pending.Identity, s.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to issue session token: %w", err)
	}

	metrics.AuthAttempts.WithLabelValues("success").Inc()
	s.log.Infow("authentication succeeded", "identity", pending.Identity, "session", sessionID)

	return &Session{
		Identity:  pending.Identity,
		Token:     token,
		ExpiresIn: s.tokens.ExpiresIn(),
	}, nil
}

// Ping reports whether the backing store is usable.
func (s *Service) Ping() error {
	return s.store.Ping()
}

// Stats reports registry sizes.
func (s *Service) Stats() (Stats, error) {
	users, err := s.users.ListUsers()
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		Group:           s.params.Name(),
		Users:           len(users),
		PendingSessions: s.sessions.PendingSessions(),
	}, nil
}

func validateIdentity(identity string) error {
	switch {
	case identity == "":
		return fmt.Errorf("%w: empty identity", ErrInvalidEncoding)
	case len(identity) > MaxIdentityLength:
		return fmt.Errorf("%w: identity longer than %d bytes", ErrInvalidEncoding, MaxIdentityLength)
	case !utf8.ValidString(identity):
		return fmt.Errorf("%w: identity is not valid UTF-8", ErrInvalidEncoding)
	}
	return nil
}

// element decodes a big-endian group element and checks 1 <= v < p.
func (s *Service) element(name string, b []byte) (*big.Int, error) {
	if len(b) > s.params.ElementSize() {
		return nil, fmt.Errorf("%w: %s is too long", ErrInvalidEncoding, name)
	}
	v := new(big.Int).SetBytes(b)
	if !s.params.IsElement(v) {
		return nil, fmt.Errorf("%w: %s is not in [1, p)", ErrInvalidEncoding, name)
	}
	return v, nil
}

// scalar decodes a big-endian exponent and checks 0 <= v < q.
func (s *Service) scalar(name string, b []byte) (*big.Int, error) {
	if len(b) > s.params.ElementSize() {
		return nil, fmt.Errorf("%w: %s is too long", ErrInvalidEncoding, name)
	}
	v := new(big.Int).SetBytes(b)
	if !s.params.IsScalar(v) {
		return nil, fmt.Errorf("%w: %s is not in [0, q)", ErrInvalidEncoding, name)
	}
	return v, nil
}

// opaqueTokens issues random tokens with no embedded claims.
type opaqueTokens struct{}

func (opaqueTokens) Issue(string, time.Time) (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

func (opaqueTokens) ExpiresIn() time.Duration { return 0 }
