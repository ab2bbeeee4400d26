// Package client drives the prover side of the protocol against a remote
// server over HTTP or gRPC.
package client

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/vinay10949/chaum-pedersen-auth/pkg/chaumpedersen"
	"github.com/vinay10949/chaum-pedersen-auth/pkg/log"
	"github.com/vinay10949/chaum-pedersen-auth/pkg/rpc"
)

// ErrGroupMismatch is returned when the server runs a different group.
var ErrGroupMismatch = errors.New("server group differs from local group")

// Session is the outcome of a successful login.
type Session struct {
	Token     string
	ExpiresIn time.Duration
}

// Client runs register and login flows for a local group.
type Client struct {
	transport Transport
	params    *chaumpedersen.Params
	secrets   SecretStore
	log       log.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithSecretDir stores secret files under dir instead of the working directory.
func WithSecretDir(dir string) Option {
	return func(c *Client) {
		c.secrets.Dir = dir
	}
}

// WithLogger sets the client logger.
func WithLogger(l log.Logger) Option {
	return func(c *Client) {
		c.log = l
	}
}

// New returns a client speaking to transport with params.
func New(transport Transport, params *chaumpedersen.Params, opts ...Option) *Client {
	c := &Client{
		transport: transport,
		params:    params,
		log:       log.DefaultLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.Named("client")
	return c
}

// Secrets returns the client's secret store.
func (c *Client) Secrets() SecretStore {
	return c.secrets
}

// CheckParams fails with ErrGroupMismatch unless the server advertises
// the local group.
func (c *Client) CheckParams(ctx context.Context) error {
	resp, err := c.transport.Params(ctx)
	if err != nil {
		return err
	}
	remote, err := resp.ToParams()
	if err != nil {
		return fmt.Errorf("server advertised invalid group: %w", err)
	}
	if !c.params.Equal(remote) {
		return fmt.Errorf("%w: server runs %s, client runs %s", ErrGroupMismatch, remote, c.params)
	}
	return nil
}

// Register generates a fresh secret for user and registers the derived
// public values. The secret file is replaced only once the server accepts
// the registration.
func (c *Client) Register(ctx context.Context, user string) error {
	secret, err := c.params.GenerateSecret()
	if err != nil {
		return err
	}
	staged, err := c.secrets.Stage(user, secret)
	if err != nil {
		return fmt.Errorf("failed to save secret: %w", err)
	}

	if err := c.register(ctx, user, secret); err != nil {
		staged.Discard()
		return err
	}
	if err := staged.Commit(); err != nil {
		return fmt.Errorf("registered but failed to save secret: %w", err)
	}
	c.log.Infow("saved secret", "user", user)
	return nil
}

func (c *Client) register(ctx context.Context, user string, secret *big.Int) error {
	prover, err := chaumpedersen.NewProver(c.params, secret)
	if err != nil {
		return err
	}
	public := prover.PublicValues()

	if _, err := c.transport.Register(ctx, &rpc.RegisterRequest{
		User: user,
		Y1:   public.Y1.Bytes(),
		Y2:   public.Y2.Bytes(),
	}); err != nil {
		return fmt.Errorf("register: %w", err)
	}
	c.log.Infow("registered", "user", user)
	return nil
}

// Login proves knowledge of the saved secret for user.
func (c *Client) Login(ctx context.Context, user string) (*Session, error) {
	secret, err := c.secrets.Load(user)
	if err != nil {
		return nil, err
	}
	return c.login(ctx, user, secret)
}

func (c *Client) login(ctx context.Context, user string, secret *big.Int) (*Session, error) {
	prover, err := chaumpedersen.NewProver(c.params, secret)
	if err != nil {
		return nil, err
	}

	commitment, k, err := prover.GenerateCommitment()
	if err != nil {
		return nil, err
	}

	ch, err := c.transport.CreateAuthenticationChallenge(ctx, &rpc.AuthenticationChallengeRequest{
		User: user,
		R1:   commitment.R1.Bytes(),
		R2:   commitment.R2.Bytes(),
	})
	if err != nil {
		return nil, fmt.Errorf("challenge: %w", err)
	}
	c.log.Debugw("received challenge", "user", user, "auth_id", ch.AuthID)

	s, err := prover.GenerateResponse(new(big.Int).SetBytes(ch.C), k)
	if err != nil {
		return nil, fmt.Errorf("server sent an invalid challenge: %w", err)
	}

	answer, err := c.transport.VerifyAuthentication(ctx, &rpc.AuthenticationAnswerRequest{
		AuthID: ch.AuthID,
		S:      s.Bytes(),
	})
	if err != nil {
		return nil, fmt.Errorf("verify: %w", err)
	}
	c.log.Infow("authenticated", "user", user)

	return &Session{
		Token:     answer.SessionID,
		ExpiresIn: time.Duration(answer.ExpiresIn) * time.Second,
	}, nil
}

// Both registers a fresh secret for user and logs in with it.
func (c *Client) Both(ctx context.Context, user string) (*Session, error) {
	if err := c.Register(ctx, user); err != nil {
		return nil, err
	}
	secret, err := c.secrets.Load(user)
	if err != nil {
		return nil, err
	}
	return c.login(ctx, user, secret)
}
