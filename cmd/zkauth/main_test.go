package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vinay10949/chaum-pedersen-auth/pkg/crypto/curve"
)

func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &out
	err := app.Run(append([]string{"zkauth"}, args...))
	return out.String(), err
}

func TestDemo(t *testing.T) {
	for _, name := range curve.SupportedCurves() {
		t.Run(name, func(t *testing.T) {
			out, err := runApp(t, "demo", "--curve", name)
			require.NoError(t, err)
			require.Contains(t, out, "curve: "+name)
			require.Contains(t, out, "interactive proof valid: true")
			require.Contains(t, out, "non-interactive proof valid: true")
		})
	}

	_, err := runApp(t, "demo", "--curve", "p256")
	require.Error(t, err)
}

func TestUserCommandsRequireUser(t *testing.T) {
	for _, cmd := range []string{"register", "login", "both"} {
		_, err := runApp(t, cmd)
		require.Error(t, err)
	}
}

func TestUnknownTransport(t *testing.T) {
	_, err := runApp(t, "--transport", "carrier-pigeon", "params")
	require.Error(t, err)
}

func TestUnknownGroup(t *testing.T) {
	_, err := runApp(t, "--group", "modp-17", "login", "alice")
	require.Error(t, err)
}

func TestVerboseFlag(t *testing.T) {
	out, err := runApp(t, "--verbose", "demo", "--curve", "ristretto255")
	require.NoError(t, err)
	require.Contains(t, out, "interactive proof valid: true")

	out, err = runApp(t, "-v")
	require.NoError(t, err)
	require.Contains(t, out, "zkauth version "+version)
}
