package auth

import (
	"bytes"
	"context"
	"math/big"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/vinay10949/chaum-pedersen-auth/pkg/chaumpedersen"
	jwtpkg "github.com/vinay10949/chaum-pedersen-auth/pkg/jwt"
	"github.com/vinay10949/chaum-pedersen-auth/pkg/log"
	"github.com/vinay10949/chaum-pedersen-auth/pkg/storage"
)

func toyParams(t *testing.T) *chaumpedersen.Params {
	t.Helper()
	params, err := chaumpedersen.NewParams(chaumpedersen.Config{
		Name:  "toy",
		P:     big.NewInt(23),
		Q:     big.NewInt(11),
		Alpha: big.NewInt(4),
		Beta:  big.NewInt(2),
	})
	require.NoError(t, err)
	return params
}

func newTestService(t *testing.T, params *chaumpedersen.Params, clock clockwork.Clock, opts ...Option) *Service {
	t.Helper()

	store, err := storage.NewMemoryStore(storage.SessionOptions{
		TTL:    time.Minute,
		Clock:  clock,
		Logger: log.Nop(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	opts = append([]Option{WithClock(clock), WithLogger(log.Nop())}, opts...)
	return NewService(params, store, opts...)
}

// login runs one full attempt for the prover and returns the outcome.
func login(t *testing.T, svc *Service, identity string, prover *chaumpedersen.Prover) (*Session, error) {
	t.Helper()
	ctx := context.Background()

	commitment, k, err := prover.GenerateCommitment()
	require.NoError(t, err)

	challenge, err := svc.BeginAuthentication(ctx, identity, commitment.R1.Bytes(), commitment.R2.Bytes())
	require.NoError(t, err)

	s, err := prover.GenerateResponse(new(big.Int).SetBytes(challenge.C), k)
	require.NoError(t, err)

	return svc.CompleteAuthentication(ctx, challenge.SessionID, s.Bytes())
}

func register(t *testing.T, svc *Service, identity string, prover *chaumpedersen.Prover) {
	t.Helper()
	public := prover.PublicValues()
	require.NoError(t, svc.Register(context.Background(), identity, public.Y1.Bytes(), public.Y2.Bytes()))
}

func TestToyGroupScenario(t *testing.T) {
	params := toyParams(t)
	challenges := chaumpedersen.NewVerifier(params, chaumpedersen.WithRandom(bytes.NewReader([]byte{3})))
	svc := newTestService(t, params, clockwork.NewFakeClock(), WithVerifier(challenges))
	ctx := context.Background()

	require.NoError(t, svc.Register(ctx, "alice", []byte{2}, []byte{18}))

	challenge, err := svc.BeginAuthentication(ctx, "alice", []byte{8}, []byte{13})
	require.NoError(t, err)
	require.Equal(t, []byte{3}, challenge.C)
	require.NotEmpty(t, challenge.SessionID)

	session, err := svc.CompleteAuthentication(ctx, challenge.SessionID, nil)
	require.NoError(t, err)
	require.Equal(t, "alice", session.Identity)
	require.NotEmpty(t, session.Token)

	_, err = svc.CompleteAuthentication(ctx, challenge.SessionID, nil)
	require.ErrorIs(t, err, ErrUnknownSession)
}

func TestAuthenticationFlow(t *testing.T) {
	params, err := chaumpedersen.Group("rfc5054-1024")
	require.NoError(t, err)
	svc := newTestService(t, params, clockwork.NewRealClock())

	secret, err := params.GenerateSecret()
	require.NoError(t, err)
	prover, err := chaumpedersen.NewProver(params, secret)
	require.NoError(t, err)
	register(t, svc, "alice", prover)

	t.Run("Success", func(t *testing.T) {
		session, err := login(t, svc, "alice", prover)
		require.NoError(t, err)
		require.Equal(t, "alice", session.Identity)
	})

	t.Run("TokensAreUnique", func(t *testing.T) {
		a, err := login(t, svc, "alice", prover)
		require.NoError(t, err)
		b, err := login(t, svc, "alice", prover)
		require.NoError(t, err)
		require.NotEqual(t, a.Token, b.Token)
	})

	t.Run("WrongSecret", func(t *testing.T) {
		other, err := params.GenerateSecret()
		require.NoError(t, err)
		impostor, err := chaumpedersen.NewProver(params, other)
		require.NoError(t, err)

		_, err = login(t, svc, "alice", impostor)
		require.ErrorIs(t, err, ErrVerificationFailed)
	})

	t.Run("UnknownIdentity", func(t *testing.T) {
		commitment, _, err := prover.GenerateCommitment()
		require.NoError(t, err)
		_, err = svc.BeginAuthentication(context.Background(), "bob", commitment.R1.Bytes(), commitment.R2.Bytes())
		require.ErrorIs(t, err, ErrUnknownIdentity)
	})

	t.Run("NeverIssuedSession", func(t *testing.T) {
		_, err := svc.CompleteAuthentication(context.Background(), "no-such-session", []byte{1})
		require.ErrorIs(t, err, ErrUnknownSession)
	})
}

func TestFailedAttemptConsumesSession(t *testing.T) {
	params, err := chaumpedersen.Group("rfc5054-1024")
	require.NoError(t, err)
	svc := newTestService(t, params, clockwork.NewRealClock())
	ctx := context.Background()

	secret, err := params.GenerateSecret()
	require.NoError(t, err)
	prover, err := chaumpedersen.NewProver(params, secret)
	require.NoError(t, err)
	register(t, svc, "alice", prover)

	commitment, k, err := prover.GenerateCommitment()
	require.NoError(t, err)
	challenge, err := svc.BeginAuthentication(ctx, "alice", commitment.R1.Bytes(), commitment.R2.Bytes())
	require.NoError(t, err)

	_, err = svc.CompleteAuthentication(ctx, challenge.SessionID, []byte{1})
	require.ErrorIs(t, err, ErrVerificationFailed)

	s, err := prover.GenerateResponse(new(big.Int).SetBytes(challenge.C), k)
	require.NoError(t, err)
	_, err = svc.CompleteAuthentication(ctx, challenge.SessionID, s.Bytes())
	require.ErrorIs(t, err, ErrUnknownSession)
}

func TestReRegistrationOverwrites(t *testing.T) {
	params, err := chaumpedersen.Group("rfc5054-1024")
	require.NoError(t, err)
	svc := newTestService(t, params, clockwork.NewRealClock())

	first, err := chaumpedersen.NewProver(params, big.NewInt(12345))
	require.NoError(t, err)
	second, err := chaumpedersen.NewProver(params, big.NewInt(67890))
	require.NoError(t, err)

	register(t, svc, "alice", first)
	register(t, svc, "alice", second)

	_, err = login(t, svc, "alice", first)
	require.ErrorIs(t, err, ErrVerificationFailed)

	_, err = login(t, svc, "alice", second)
	require.NoError(t, err)
}

func TestSwappedPublicValuesFail(t *testing.T) {
	params, err := chaumpedersen.Group("rfc5054-1024")
	require.NoError(t, err)
	svc := newTestService(t, params, clockwork.NewRealClock())
	ctx := context.Background()

	secret, err := params.GenerateSecret()
	require.NoError(t, err)
	prover, err := chaumpedersen.NewProver(params, secret)
	require.NoError(t, err)
	register(t, svc, "alice", prover)

	commitment, k, err := prover.GenerateCommitment()
	require.NoError(t, err)
	challenge, err := svc.BeginAuthentication(ctx, "alice", commitment.R1.Bytes(), commitment.R2.Bytes())
	require.NoError(t, err)

	public := prover.PublicValues()
	require.NoError(t, svc.Register(ctx, "alice", public.Y2.Bytes(), public.Y1.Bytes()))

	s, err := prover.GenerateResponse(new(big.Int).SetBytes(challenge.C), k)
	require.NoError(t, err)
	_, err = svc.CompleteAuthentication(ctx, challenge.SessionID, s.Bytes())
	require.ErrorIs(t, err, ErrVerificationFailed)
}

func TestExpiredSession(t *testing.T) {
	params := toyParams(t)
	clock := clockwork.NewFakeClock()
	svc := newTestService(t, params, clock)
	ctx := context.Background()

	require.NoError(t, svc.Register(ctx, "alice", []byte{2}, []byte{18}))
	challenge, err := svc.BeginAuthentication(ctx, "alice", []byte{8}, []byte{13})
	require.NoError(t, err)

	clock.Advance(2 * time.Minute)

	_, err = svc.CompleteAuthentication(ctx, challenge.SessionID, nil)
	require.ErrorIs(t, err, ErrUnknownSession)
}

func TestConcurrentCompletion(t *testing.T) {
	params, err := chaumpedersen.Group("rfc5054-1024")
	require.NoError(t, err)
	svc := newTestService(t, params, clockwork.NewRealClock())
	ctx := context.Background()

	secret, err := params.GenerateSecret()
	require.NoError(t, err)
	prover, err := chaumpedersen.NewProver(params, secret)
	require.NoError(t, err)
	register(t, svc, "alice", prover)

	commitment, k, err := prover.GenerateCommitment()
	require.NoError(t, err)
	challenge, err := svc.BeginAuthentication(ctx, "alice", commitment.R1.Bytes(), commitment.R2.Bytes())
	require.NoError(t, err)
	s, err := prover.GenerateResponse(new(big.Int).SetBytes(challenge.C), k)
	require.NoError(t, err)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		unknown   int
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.CompleteAuthentication(ctx, challenge.SessionID, s.Bytes())
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case err == ErrUnknownSession:
				unknown++
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 1, successes)
	require.Equal(t, 15, unknown)
}

func TestInvalidEncoding(t *testing.T) {
	params := toyParams(t)
	svc := newTestService(t, params, clockwork.NewFakeClock())
	ctx := context.Background()

	tests := []struct {
		name string
		call func() error
	}{
		{"empty identity", func() error { return svc.Register(ctx, "", []byte{2}, []byte{18}) }},
		{"long identity", func() error {
			return svc.Register(ctx, strings.Repeat("a", MaxIdentityLength+1), []byte{2}, []byte{18})
		}},
		{"non utf8 identity", func() error { return svc.Register(ctx, "\xff\xfe", []byte{2}, []byte{18}) }},
		{"zero y1", func() error { return svc.Register(ctx, "alice", []byte{0}, []byte{18}) }},
		{"empty y2", func() error { return svc.Register(ctx, "alice", []byte{2}, nil) }},
		{"y1 equal to p", func() error { return svc.Register(ctx, "alice", []byte{23}, []byte{18}) }},
		{"oversized y2", func() error { return svc.Register(ctx, "alice", []byte{2}, []byte{0, 18}) }},
		{"zero r1", func() error {
			_, err := svc.BeginAuthentication(ctx, "alice", []byte{0}, []byte{13})
			return err
		}},
		{"s equal to q", func() error {
			_, err := svc.CompleteAuthentication(ctx, "session", []byte{11})
			return err
		}},
		{"empty session id", func() error {
			_, err := svc.CompleteAuthentication(ctx, "", []byte{1})
			return err
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.ErrorIs(t, tt.call(), ErrInvalidEncoding)
		})
	}

	stats, err := svc.Stats()
	require.NoError(t, err)
	require.Equal(t, 0, stats.Users)
}

func TestInvalidResponseKeepsSession(t *testing.T) {
	params := toyParams(t)
	challenges := chaumpedersen.NewVerifier(params, chaumpedersen.WithRandom(bytes.NewReader([]byte{3})))
	svc := newTestService(t, params, clockwork.NewFakeClock(), WithVerifier(challenges))
	ctx := context.Background()

	require.NoError(t, svc.Register(ctx, "alice", []byte{2}, []byte{18}))
	challenge, err := svc.BeginAuthentication(ctx, "alice", []byte{8}, []byte{13})
	require.NoError(t, err)

	_, err = svc.CompleteAuthentication(ctx, challenge.SessionID, []byte{200})
	require.ErrorIs(t, err, ErrInvalidEncoding)

	_, err = svc.CompleteAuthentication(ctx, challenge.SessionID, []byte{0})
	require.NoError(t, err)
}

func TestJWTSessionTokens(t *testing.T) {
	params := toyParams(t)
	clock := clockwork.NewFakeClockAt(time.Now())

	signer, err := jwtpkg.NewEphemeralSigner()
	require.NoError(t, err)
	issuer := &jwtpkg.SessionTokenIssuer{
		Signer:   signer,
		Issuer:   "zkauthd",
		Audience: "zkauth",
		TTL:      time.Hour,
		Group:    params.Name(),
	}

	challenges := chaumpedersen.NewVerifier(params, chaumpedersen.WithRandom(bytes.NewReader([]byte{3})))
	svc := newTestService(t, params, clock, WithVerifier(challenges), WithTokenIssuer(issuer))
	ctx := context.Background()

	require.NoError(t, svc.Register(ctx, "alice", []byte{2}, []byte{18}))
	challenge, err := svc.BeginAuthentication(ctx, "alice", []byte{8}, []byte{13})
	require.NoError(t, err)
	session, err := svc.CompleteAuthentication(ctx, challenge.SessionID, nil)
	require.NoError(t, err)
	require.Equal(t, time.Hour, session.ExpiresIn)

	claims, err := jwtpkg.NewVerifier(signer.JWKS(), "zkauthd", "zkauth", clock.Now).Verify(session.Token)
	require.NoError(t, err)
	require.Equal(t, "alice", claims.Subject)
	require.Equal(t, "toy", claims.ZK.Group)
}

func TestStats(t *testing.T) {
	params := toyParams(t)
	svc := newTestService(t, params, clockwork.NewFakeClock())
	ctx := context.Background()

	require.NoError(t, svc.Register(ctx, "alice", []byte{2}, []byte{18}))
	require.NoError(t, svc.Register(ctx, "bob", []byte{3}, []byte{6}))
	_, err := svc.BeginAuthentication(ctx, "alice", []byte{8}, []byte{13})
	require.NoError(t, err)

	stats, err := svc.Stats()
	require.NoError(t, err)
	require.Equal(t, Stats{Group: "toy", Users: 2, PendingSessions: 1}, stats)
}

func TestPing(t *testing.T) {
	svc := newTestService(t, toyParams(t), clockwork.NewFakeClock())
	require.NoError(t, svc.Ping())
}

func TestCanceledContext(t *testing.T) {
	svc := newTestService(t, toyParams(t), clockwork.NewFakeClock())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.ErrorIs(t, svc.Register(ctx, "alice", []byte{2}, []byte{18}), context.Canceled)
}
