package rpc

import (
	"math/big"

	"github.com/vinay10949/chaum-pedersen-auth/pkg/chaumpedersen"
)

// Integers travel as big-endian unsigned byte strings, rendered as hex by
// the JSON codec. The same messages are used as HTTP bodies.

// RegisterRequest stores (y1, y2) for User.
type RegisterRequest struct {
	User string `json:"user"`
	Y1   []byte `json:"y1"`
	Y2   []byte `json:"y2"`
}

// RegisterResponse acknowledges a registration.
type RegisterResponse struct {
	Status string `json:"status,omitempty"`
}

// AuthenticationChallengeRequest carries the commitment (r1, r2).
type AuthenticationChallengeRequest struct {
	User string `json:"user"`
	R1   []byte `json:"r1"`
	R2   []byte `json:"r2"`
}

// AuthenticationChallengeResponse names the pending session and its challenge.
type AuthenticationChallengeResponse struct {
	AuthID string `json:"auth_id"`
	C      []byte `json:"c"`
}

// AuthenticationAnswerRequest carries the response s for a pending session.
type AuthenticationAnswerRequest struct {
	AuthID string `json:"auth_id"`
	S      []byte `json:"s"`
}

// AuthenticationAnswerResponse holds the session token. ExpiresIn is in
// seconds and zero when the token does not expire.
type AuthenticationAnswerResponse struct {
	SessionID string `json:"session_id"`
	ExpiresIn int64  `json:"expires_in,omitempty"`
}

// ParamsRequest asks for the server's group.
type ParamsRequest struct{}

// ParamsResponse describes the server's group.
type ParamsResponse struct {
	Group string `json:"group"`
	P     []byte `json:"p"`
	Q     []byte `json:"q"`
	Alpha []byte `json:"alpha"`
	Beta  []byte `json:"beta"`
}

// NewParamsResponse encodes params for the wire.
func NewParamsResponse(params *chaumpedersen.Params) *ParamsResponse {
	return &ParamsResponse{
		Group: params.Name(),
		P:     params.P().Bytes(),
		Q:     params.Q().Bytes(),
		Alpha: params.Alpha().Bytes(),
		Beta:  params.Beta().Bytes(),
	}
}

// ToParams decodes and validates the advertised group.
func (r *ParamsResponse) ToParams() (*chaumpedersen.Params, error) {
	return chaumpedersen.NewParams(chaumpedersen.Config{
		Name:  r.Group,
		P:     decodeInt(r.P),
		Q:     decodeInt(r.Q),
		Alpha: decodeInt(r.Alpha),
		Beta:  decodeInt(r.Beta),
	})
}

func decodeInt(b []byte) *big.Int {
	if len(b) == 0 {
		return nil
	}
	return new(big.Int).SetBytes(b)
}
