package chaumpedersen

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"math/big"
)

// Option configures a Prover or Verifier.
type Option func(*options)

type options struct {
	rand io.Reader
}

// WithRandom overrides the randomness source. Tests use it to make nonces
// and challenges reproducible.
func WithRandom(r io.Reader) Option {
	return func(o *options) {
		o.rand = r
	}
}

func buildOptions(opts []Option) options {
	o := options{rand: rand.Reader}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Prover holds a secret x and produces commitments and responses.
type Prover struct {
	params *Params
	secret *big.Int
	public PublicValues
	rand   io.Reader
}

// NewProver returns a prover for secret, which must lie in [0, q).
func NewProver(params *Params, secret *big.Int, opts ...Option) (*Prover, error) {
	if params == nil {
		return nil, errors.New("params are required")
	}
	if !params.IsScalar(secret) {
		return nil, fmt.Errorf("secret must lie in [0, q)")
	}

	o := buildOptions(opts)
	x := new(big.Int).Set(secret)
	return &Prover{
		params: params,
		secret: x,
		public: params.DerivePublicValues(x),
		rand:   o.rand,
	}, nil
}

// PublicValues returns (y1, y2) for the prover's secret.
func (p *Prover) PublicValues() PublicValues {
	return p.public
}

// GenerateCommitment draws a fresh nonce k and returns (r1, r2) together
// with k. The nonce must be used for exactly one response.
func (p *Prover) GenerateCommitment() (Commitment, *big.Int, error) {
	k, err := RandomScalar(p.rand, p.params.q)
	if err != nil {
		return Commitment{}, nil, err
	}
	return p.params.DeriveCommitment(k), k, nil
}

// GenerateResponse returns s = (k - c*x) mod q.
func (p *Prover) GenerateResponse(c, k *big.Int) (*big.Int, error) {
	if !p.params.IsScalar(c) {
		return nil, fmt.Errorf("challenge must lie in [0, q)")
	}
	if !p.params.IsScalar(k) {
		return nil, fmt.Errorf("nonce must lie in [0, q)")
	}
	return p.params.DeriveResponse(k, c, p.secret), nil
}
