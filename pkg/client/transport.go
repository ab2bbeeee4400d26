package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	json "github.com/nikkolasg/hexjson"

	"github.com/vinay10949/chaum-pedersen-auth/pkg/httpapi"
	"github.com/vinay10949/chaum-pedersen-auth/pkg/rpc"
)

// Transport carries the protocol messages to a server. *rpc.Client
// implements it directly.
type Transport interface {
	Params(ctx context.Context) (*rpc.ParamsResponse, error)
	Register(ctx context.Context, req *rpc.RegisterRequest) (*rpc.RegisterResponse, error)
	CreateAuthenticationChallenge(ctx context.Context, req *rpc.AuthenticationChallengeRequest) (*rpc.AuthenticationChallengeResponse, error)
	VerifyAuthentication(ctx context.Context, req *rpc.AuthenticationAnswerRequest) (*rpc.AuthenticationAnswerResponse, error)
	Close() error
}

var _ Transport = (*rpc.Client)(nil)
var _ Transport = (*HTTPTransport)(nil)

// HTTPTransport talks to the JSON endpoints served by httpapi.
type HTTPTransport struct {
	baseURL string
	client  *http.Client
}

// NewHTTPTransport returns a transport for the server at baseURL. A nil
// client uses one with a 30 second timeout.
func NewHTTPTransport(baseURL string, client *http.Client) *HTTPTransport {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPTransport{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  client,
	}
}

// Params implements Transport.
func (t *HTTPTransport) Params(ctx context.Context) (*rpc.ParamsResponse, error) {
	out := new(rpc.ParamsResponse)
	if err := t.do(ctx, http.MethodGet, "/params", nil, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Register implements Transport.
func (t *HTTPTransport) Register(ctx context.Context, req *rpc.RegisterRequest) (*rpc.RegisterResponse, error) {
	out := new(rpc.RegisterResponse)
	if err := t.do(ctx, http.MethodPost, "/register", req, out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateAuthenticationChallenge implements Transport.
func (t *HTTPTransport) CreateAuthenticationChallenge(ctx context.Context, req *rpc.AuthenticationChallengeRequest) (*rpc.AuthenticationChallengeResponse, error) {
	out := new(rpc.AuthenticationChallengeResponse)
	if err := t.do(ctx, http.MethodPost, "/auth/challenge", req, out); err != nil {
		return nil, err
	}
	return out, nil
}

// VerifyAuthentication implements Transport.
func (t *HTTPTransport) VerifyAuthentication(ctx context.Context, req *rpc.AuthenticationAnswerRequest) (*rpc.AuthenticationAnswerResponse, error) {
	out := new(rpc.AuthenticationAnswerResponse)
	if err := t.do(ctx, http.MethodPost, "/auth/verify", req, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Close implements Transport.
func (t *HTTPTransport) Close() error {
	t.client.CloseIdleConnections()
	return nil
}

func (t *HTTPTransport) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, t.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(data, &e) != nil || e.Error == "" {
			e.Error = strings.TrimSpace(string(data))
		}
		return httpapi.ErrorFromStatus(resp.StatusCode, e.Error)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}
