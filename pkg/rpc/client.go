package rpc

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/vinay10949/chaum-pedersen-auth/pkg/auth"
)

// Client calls a remote zkauth.Auth service.
type Client struct {
	conn *grpc.ClientConn
}

// Dial connects to addr without transport security. Extra options are
// applied after the defaults.
func Dial(ctx context.Context, addr string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(CodecName)),
	}, opts...)

	conn, err := grpc.DialContext(ctx, addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", addr, err)
	}
	return &Client{conn: conn}, nil
}

// Close tears down the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Register calls zkauth.Auth/Register.
func (c *Client) Register(ctx context.Context, req *RegisterRequest) (*RegisterResponse, error) {
	out := new(RegisterResponse)
	if err := c.invoke(ctx, "Register", req, out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateAuthenticationChallenge calls zkauth.Auth/CreateAuthenticationChallenge.
func (c *Client) CreateAuthenticationChallenge(ctx context.Context, req *AuthenticationChallengeRequest) (*AuthenticationChallengeResponse, error) {
	out := new(AuthenticationChallengeResponse)
	if err := c.invoke(ctx, "CreateAuthenticationChallenge", req, out); err != nil {
		return nil, err
	}
	return out, nil
}

// VerifyAuthentication calls zkauth.Auth/VerifyAuthentication.
func (c *Client) VerifyAuthentication(ctx context.Context, req *AuthenticationAnswerRequest) (*AuthenticationAnswerResponse, error) {
	out := new(AuthenticationAnswerResponse)
	if err := c.invoke(ctx, "VerifyAuthentication", req, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Params calls zkauth.Auth/Params.
func (c *Client) Params(ctx context.Context) (*ParamsResponse, error) {
	out := new(ParamsResponse)
	if err := c.invoke(ctx, "Params", &ParamsRequest{}, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) invoke(ctx context.Context, method string, in, out interface{}) error {
	if err := c.conn.Invoke(ctx, fullMethod(method), in, out); err != nil {
		return FromStatus(err)
	}
	return nil
}

// FromStatus maps a gRPC status error back onto the service error it
// came from. Errors without a known code are returned unchanged.
func FromStatus(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}

	var candidates []error
	switch st.Code() {
	case codes.InvalidArgument:
		candidates = []error{auth.ErrInvalidEncoding}
	case codes.NotFound:
		candidates = []error{auth.ErrUnknownIdentity, auth.ErrUnknownSession}
	case codes.Unauthenticated:
		candidates = []error{auth.ErrVerificationFailed}
	default:
		return err
	}

	msg := st.Message()
	for _, sentinel := range candidates {
		if detail, ok := strings.CutPrefix(msg, sentinel.Error()); ok {
			if detail == "" {
				return sentinel
			}
			return fmt.Errorf("%w%s", sentinel, detail)
		}
	}
	return fmt.Errorf("%w: %s", candidates[len(candidates)-1], msg)
}
