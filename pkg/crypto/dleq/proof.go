package dleq

import (
	"errors"
	"fmt"

	"github.com/vinay10949/chaum-pedersen-auth/pkg/crypto/curve"
)

// maxAttempts bounds retries on degenerate nonces.
const maxAttempts = 8

// Proof is a non-interactive proof (c, s) bound to a context string.
type Proof struct {
	C curve.Scalar
	S curve.Scalar
}

// Bytes encodes the proof as c || s, 64 bytes.
func (p *Proof) Bytes() []byte {
	return append(p.C.Bytes(), p.S.Bytes()...)
}

// ParseProof decodes a proof produced by Bytes.
func ParseProof(crv curve.Curve, b []byte) (*Proof, error) {
	if len(b) != 64 {
		return nil, fmt.Errorf("proof must be 64 bytes, got %d", len(b))
	}
	c, err := crv.ParseScalar(b[:32])
	if err != nil {
		return nil, fmt.Errorf("invalid challenge: %w", err)
	}
	s, err := crv.ParseScalar(b[32:])
	if err != nil {
		return nil, fmt.Errorf("invalid response: %w", err)
	}
	return &Proof{C: c, S: s}, nil
}

// Prove produces a Fiat-Shamir proof that the prover's statement shares one
// discrete log, bound to context.
func (p *Prover) Prove(context []byte) (*Proof, error) {
	for i := 0; i < maxAttempts; i++ {
		commitment, k, err := p.Commit()
		if err != nil {
			return nil, err
		}

		c, err := DeriveChallenge(p.crv, p.statement, commitment, context)
		if errors.Is(err, ErrDegenerate) {
			continue
		} else if err != nil {
			return nil, err
		}

		s, err := p.Respond(k, c)
		if errors.Is(err, ErrDegenerate) {
			continue
		} else if err != nil {
			return nil, err
		}

		return &Proof{C: c, S: s}, nil
	}
	return nil, fmt.Errorf("%w: retries exhausted", ErrDegenerate)
}

// VerifyProof recomputes the commitment from (c, s), rehashes the
// transcript and compares challenges.
func VerifyProof(crv curve.Curve, statement Statement, proof *Proof, context []byte) *VerificationResult {
	if proof == nil || proof.C == nil || proof.S == nil {
		return invalid("missing proof")
	}
	for name, pt := range map[string]curve.Point{"Y1": statement.Y1, "Y2": statement.Y2} {
		if pt == nil {
			return invalid("missing %s", name)
		}
		if err := crv.ValidatePoint(pt); err != nil {
			return invalid("invalid %s: %w", name, err)
		}
	}

	r1, r2, err := recompute(crv, statement, proof.C, proof.S)
	if err != nil {
		return &VerificationResult{Valid: false, Error: err}
	}

	c, err := DeriveChallenge(crv, statement, Commitment{R1: r1, R2: r2}, context)
	if err != nil {
		return &VerificationResult{Valid: false, Error: err}
	}

	return &VerificationResult{Valid: c.BigInt().Cmp(proof.C.BigInt()) == 0}
}
