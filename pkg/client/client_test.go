package client

import (
	"context"
	"math/big"
	"net"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"

	"github.com/vinay10949/chaum-pedersen-auth/pkg/auth"
	"github.com/vinay10949/chaum-pedersen-auth/pkg/chaumpedersen"
	"github.com/vinay10949/chaum-pedersen-auth/pkg/httpapi"
	"github.com/vinay10949/chaum-pedersen-auth/pkg/log"
	"github.com/vinay10949/chaum-pedersen-auth/pkg/rpc"
	"github.com/vinay10949/chaum-pedersen-auth/pkg/storage"
)

func testParams(t *testing.T) *chaumpedersen.Params {
	t.Helper()
	params, err := chaumpedersen.Group("rfc5054-1024")
	require.NoError(t, err)
	return params
}

func newService(t *testing.T, params *chaumpedersen.Params) *auth.Service {
	t.Helper()
	store, err := storage.NewMemoryStore(storage.SessionOptions{Logger: log.Nop()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return auth.NewService(params, store, auth.WithLogger(log.Nop()))
}

func httpTransport(t *testing.T, svc *auth.Service) Transport {
	t.Helper()
	srv := httpapi.New(svc, httpapi.Options{Logger: log.Nop()})
	ts := httptest.NewServer(srv)
	t.Cleanup(func() {
		ts.Close()
		srv.Close()
	})
	return NewHTTPTransport(ts.URL+"/", nil)
}

func grpcTransport(t *testing.T, svc *auth.Service) Transport {
	t.Helper()
	srv := rpc.NewServer(svc, log.Nop())
	lis := bufconn.Listen(1 << 20)
	go func() { _ = srv.Serve(lis) }()

	client, err := rpc.Dial(context.Background(), "bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}))
	require.NoError(t, err)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Stop(ctx)
	})
	return client
}

var transports = map[string]func(*testing.T, *auth.Service) Transport{
	"http": httpTransport,
	"grpc": grpcTransport,
}

func TestFlows(t *testing.T) {
	for name, newTransport := range transports {
		t.Run(name, func(t *testing.T) {
			params := testParams(t)
			transport := newTransport(t, newService(t, params))
			defer transport.Close()

			dir := t.TempDir()
			c := New(transport, params, WithSecretDir(dir), WithLogger(log.Nop()))
			ctx := context.Background()

			require.NoError(t, c.CheckParams(ctx))

			_, err := c.Login(ctx, "alice")
			require.ErrorIs(t, err, ErrNoSecret)

			require.NoError(t, c.Register(ctx, "alice"))

			info, err := os.Stat(filepath.Join(dir, ".secret_alice"))
			require.NoError(t, err)
			require.Equal(t, os.FileMode(SecretFilePerm), info.Mode().Perm())

			session, err := c.Login(ctx, "alice")
			require.NoError(t, err)
			require.NotEmpty(t, session.Token)

			session, err = c.Both(ctx, "bob")
			require.NoError(t, err)
			require.NotEmpty(t, session.Token)
		})
	}
}

func TestLoginWithWrongSecret(t *testing.T) {
	for name, newTransport := range transports {
		t.Run(name, func(t *testing.T) {
			params := testParams(t)
			transport := newTransport(t, newService(t, params))
			defer transport.Close()

			c := New(transport, params, WithSecretDir(t.TempDir()), WithLogger(log.Nop()))
			ctx := context.Background()

			require.NoError(t, c.Register(ctx, "carol"))

			secret, err := c.Secrets().Load("carol")
			require.NoError(t, err)
			secret.Add(secret, big.NewInt(1)).Mod(secret, params.Q())
			require.NoError(t, c.Secrets().Save("carol", secret))

			_, err = c.Login(ctx, "carol")
			require.ErrorIs(t, err, auth.ErrVerificationFailed)
		})
	}
}

func TestLoginUnknownUser(t *testing.T) {
	for name, newTransport := range transports {
		t.Run(name, func(t *testing.T) {
			params := testParams(t)
			transport := newTransport(t, newService(t, params))
			defer transport.Close()

			secrets := SecretStore{Dir: t.TempDir()}
			require.NoError(t, secrets.Save("dave", big.NewInt(42)))

			c := New(transport, params, WithSecretDir(secrets.Dir), WithLogger(log.Nop()))
			_, err := c.Login(context.Background(), "dave")
			require.ErrorIs(t, err, auth.ErrUnknownIdentity)
		})
	}
}

func TestCheckParamsMismatch(t *testing.T) {
	for name, newTransport := range transports {
		t.Run(name, func(t *testing.T) {
			transport := newTransport(t, newService(t, testParams(t)))
			defer transport.Close()

			local, err := chaumpedersen.Group("rfc5054-1536")
			require.NoError(t, err)

			c := New(transport, local, WithLogger(log.Nop()))
			require.ErrorIs(t, c.CheckParams(context.Background()), ErrGroupMismatch)
		})
	}
}

func TestSecretStore(t *testing.T) {
	s := SecretStore{Dir: t.TempDir()}

	require.NoError(t, s.Save("erin", big.NewInt(123456789)))
	x, err := s.Load("erin")
	require.NoError(t, err)
	require.Equal(t, int64(123456789), x.Int64())

	data, err := os.ReadFile(filepath.Join(s.Dir, ".secret_erin"))
	require.NoError(t, err)
	require.Equal(t, "123456789", string(data))

	info, err := os.Stat(filepath.Join(s.Dir, ".secret_erin"))
	require.NoError(t, err)
	require.Equal(t, os.FileMode(SecretFilePerm), info.Mode().Perm())

	require.NoError(t, os.WriteFile(filepath.Join(s.Dir, ".secret_frank"), []byte("0xzz"), 0o600))
	_, err = s.Load("frank")
	require.Error(t, err)

	for _, bad := range []string{"", "..", "a/b", `a\b`} {
		_, err := s.Path(bad)
		require.Error(t, err, bad)
	}
}

type rejectingTransport struct {
	Transport
}

func (rejectingTransport) Register(context.Context, *rpc.RegisterRequest) (*rpc.RegisterResponse, error) {
	return nil, auth.ErrInvalidEncoding
}

func TestFailedRegistrationKeepsSecret(t *testing.T) {
	params := testParams(t)
	transport := httpTransport(t, newService(t, params))
	defer transport.Close()

	dir := t.TempDir()
	c := New(transport, params, WithSecretDir(dir), WithLogger(log.Nop()))
	ctx := context.Background()

	require.NoError(t, c.Register(ctx, "grace"))
	saved, err := c.Secrets().Load("grace")
	require.NoError(t, err)

	rejected := New(rejectingTransport{transport}, params, WithSecretDir(dir), WithLogger(log.Nop()))
	require.ErrorIs(t, rejected.Register(ctx, "grace"), auth.ErrInvalidEncoding)

	kept, err := c.Secrets().Load("grace")
	require.NoError(t, err)
	require.Equal(t, 0, saved.Cmp(kept))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, ".secret_grace", entries[0].Name())

	_, err = c.Login(ctx, "grace")
	require.NoError(t, err)
}

