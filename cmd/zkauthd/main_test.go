package main

import (
	"bytes"
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vinay10949/chaum-pedersen-auth/pkg/chaumpedersen"
	"github.com/vinay10949/chaum-pedersen-auth/pkg/client"
	"github.com/vinay10949/chaum-pedersen-auth/pkg/config"
	"github.com/vinay10949/chaum-pedersen-auth/pkg/log"
	"github.com/vinay10949/chaum-pedersen-auth/pkg/rpc"
)

func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &out
	err := app.Run(append([]string{"zkauthd"}, args...))
	return out.String(), err
}

func TestGroupsCommand(t *testing.T) {
	out, err := runApp(t, "groups")
	require.NoError(t, err)
	for _, name := range chaumpedersen.GroupNames() {
		require.Contains(t, out, name)
	}
	require.Contains(t, out, "(default)")
}

func TestKeygenCommand(t *testing.T) {
	dir := t.TempDir()
	keyFile := filepath.Join(dir, "signing.pem")
	configFile := filepath.Join(dir, "signing.json")

	_, err := runApp(t, "keygen", "--key-file", keyFile, "--key-config", configFile)
	require.NoError(t, err)
	require.FileExists(t, keyFile)
	require.FileExists(t, configFile)

	_, err = runApp(t, "keygen", "--key-file", keyFile)
	require.Error(t, err)
}

func TestCheckConfigCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zkauthd.toml")
	require.NoError(t, os.WriteFile(path, []byte("[protocol]\ngroup = \"rfc5054-1536\"\n"), 0o600))

	out, err := runApp(t, "check-config", "--config", path)
	require.NoError(t, err)
	require.Contains(t, out, "rfc5054-1536")

	require.NoError(t, os.WriteFile(path, []byte("[sessions]\nmax_pending = 0\n"), 0o600))
	_, err = runApp(t, "check-config", "--config", path)
	require.Error(t, err)
}

func TestDaemonServesBothTransports(t *testing.T) {
	dir := t.TempDir()

	cfg := config.Default()
	cfg.Protocol.Group = "rfc5054-1024"
	cfg.Storage.UsersDB = filepath.Join(dir, "users.db")
	cfg.Tokens.KeyFile = filepath.Join(dir, "signing.pem")
	cfg.Tokens.KeyConfigFile = filepath.Join(dir, "signing.json")
	cfg.Log.Level = "error"
	require.NoError(t, cfg.Validate())

	d, err := newDaemon(cfg)
	require.NoError(t, err)
	defer d.Close()

	httpLis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	grpcLis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx, httpLis, grpcLis) }()

	params, err := cfg.Params()
	require.NoError(t, err)
	secrets := t.TempDir()

	httpClient := client.New(client.NewHTTPTransport("http://"+httpLis.Addr().String(), nil), params,
		client.WithSecretDir(secrets), client.WithLogger(log.Nop()))
	require.NoError(t, httpClient.CheckParams(ctx))
	session, err := httpClient.Both(ctx, "alice")
	require.NoError(t, err)
	require.NotEmpty(t, session.Token)
	require.Equal(t, cfg.Tokens.TTL.Duration, session.ExpiresIn)

	dialCtx, dialCancel := context.WithTimeout(ctx, 5*time.Second)
	defer dialCancel()
	grpcTransport, err := rpc.Dial(dialCtx, grpcLis.Addr().String())
	require.NoError(t, err)
	defer grpcTransport.Close()

	// same user, same secret, other transport
	grpcClient := client.New(grpcTransport, params, client.WithSecretDir(secrets), client.WithLogger(log.Nop()))
	_, err = grpcClient.Login(ctx, "alice")
	require.NoError(t, err)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("daemon did not stop")
	}
}
