// Package dleq implements the Chaum-Pedersen proof of discrete logarithm
// equality over an elliptic curve group.
//
// The prover knows x with Y1 = x*G and Y2 = x*H, where G is the curve base
// point and H a second generator with unknown log_G(H).
//
//  1. COMMITMENT: R1 = k*G, R2 = k*H for a fresh random k
//  2. CHALLENGE:  c, random (interactive) or hashed from the transcript
//  3. RESPONSE:   s = k - c*x mod q
//
// The verifier accepts when R1 == s*G + c*Y1 and R2 == s*H + c*Y2.
package dleq

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"math/big"

	"github.com/vinay10949/chaum-pedersen-auth/pkg/chaumpedersen"
	"github.com/vinay10949/chaum-pedersen-auth/pkg/crypto/curve"
)

// DomainChallenge separates Fiat-Shamir challenges from other hashes.
const DomainChallenge = "chaum-pedersen-auth/v1/dleq/chal"

// ErrDegenerate is returned when a computation hits the identity or a
// zero scalar. It happens with negligible probability for honest inputs.
var ErrDegenerate = errors.New("degenerate proof value")

// Statement is the public pair (Y1, Y2).
type Statement struct {
	Y1 curve.Point
	Y2 curve.Point
}

// Commitment is the prover's first message (R1, R2).
type Commitment struct {
	R1 curve.Point
	R2 curve.Point
}

// VerificationResult contains the result of a proof check
type VerificationResult struct {
	Valid bool
	Error error
}

func invalid(format string, args ...interface{}) *VerificationResult {
	return &VerificationResult{Valid: false, Error: fmt.Errorf(format, args...)}
}

// Prover holds the secret x.
type Prover struct {
	crv       curve.Curve
	x         curve.Scalar
	statement Statement
}

// NewProver derives the statement for x.
func NewProver(crv curve.Curve, x curve.Scalar) (*Prover, error) {
	y1 := crv.ScalarBaseMult(x)
	y2 := crv.ScalarMult(crv.SecondGenerator(), x)
	if y1 == nil || y2 == nil {
		return nil, fmt.Errorf("%w: public values", ErrDegenerate)
	}

	return &Prover{
		crv:       crv,
		x:         x,
		statement: Statement{Y1: y1, Y2: y2},
	}, nil
}

// Statement returns (Y1, Y2).
func (p *Prover) Statement() Statement {
	return p.statement
}

// Commit draws a fresh nonce k and returns (R1, R2) together with k.
func (p *Prover) Commit() (Commitment, curve.Scalar, error) {
	k, err := p.crv.GenerateScalar()
	if err != nil {
		return Commitment{}, nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	r1 := p.crv.ScalarBaseMult(k)
	r2 := p.crv.ScalarMult(p.crv.SecondGenerator(), k)
	if r1 == nil || r2 == nil {
		return Commitment{}, nil, fmt.Errorf("%w: commitment", ErrDegenerate)
	}

	return Commitment{R1: r1, R2: r2}, k, nil
}

// Respond computes s = k - c*x mod q.
func (p *Prover) Respond(k, c curve.Scalar) (curve.Scalar, error) {
	s := chaumpedersen.Response(k.BigInt(), c.BigInt(), p.x.BigInt(), p.crv.Order())
	if s.Sign() == 0 {
		return nil, fmt.Errorf("%w: zero response", ErrDegenerate)
	}
	return p.crv.NewScalar(s)
}

// GenerateChallenge draws a random challenge for the interactive protocol.
func GenerateChallenge(crv curve.Curve) (curve.Scalar, error) {
	return crv.GenerateScalar()
}

// Verify checks R1 == s*G + c*Y1 and R2 == s*H + c*Y2.
func Verify(crv curve.Curve, statement Statement, commitment Commitment, c, s curve.Scalar) *VerificationResult {
	for name, pt := range map[string]curve.Point{
		"Y1": statement.Y1, "Y2": statement.Y2,
		"R1": commitment.R1, "R2": commitment.R2,
	} {
		if pt == nil {
			return invalid("missing %s", name)
		}
		if err := crv.ValidatePoint(pt); err != nil {
			return invalid("invalid %s: %w", name, err)
		}
	}
	if c == nil || s == nil {
		return invalid("missing scalar")
	}

	r1, r2, err := recompute(crv, statement, c, s)
	if err != nil {
		return &VerificationResult{Valid: false, Error: err}
	}

	return &VerificationResult{Valid: r1.Equal(commitment.R1) && r2.Equal(commitment.R2)}
}

// recompute returns s*G + c*Y1 and s*H + c*Y2.
func recompute(crv curve.Curve, statement Statement, c, s curve.Scalar) (curve.Point, curve.Point, error) {
	r1 := crv.Add(crv.ScalarBaseMult(s), crv.ScalarMult(statement.Y1, c))
	r2 := crv.Add(crv.ScalarMult(crv.SecondGenerator(), s), crv.ScalarMult(statement.Y2, c))
	if r1 == nil || r2 == nil {
		return nil, nil, fmt.Errorf("%w: recomputed commitment", ErrDegenerate)
	}
	return r1, r2, nil
}

// DeriveChallenge hashes the full transcript into a challenge:
//
//	c = SHA-256(DomainChallenge || G || H || Y1 || Y2 || R1 || R2 || context) mod q
func DeriveChallenge(crv curve.Curve, statement Statement, commitment Commitment, context []byte) (curve.Scalar, error) {
	h := sha256.New()
	h.Write([]byte(DomainChallenge))
	h.Write([]byte(crv.Name()))
	h.Write(crv.Generator().Bytes())
	h.Write(crv.SecondGenerator().Bytes())
	h.Write(statement.Y1.Bytes())
	h.Write(statement.Y2.Bytes())
	h.Write(commitment.R1.Bytes())
	h.Write(commitment.R2.Bytes())
	h.Write(context)

	c, err := crv.NewScalar(new(big.Int).SetBytes(h.Sum(nil)))
	if err != nil {
		return nil, fmt.Errorf("%w: challenge", ErrDegenerate)
	}
	return c, nil
}
