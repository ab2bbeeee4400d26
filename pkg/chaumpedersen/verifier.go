package chaumpedersen

import (
	"io"
	"math/big"
)

// Verifier issues challenges and checks responses. It is stateless apart
// from its randomness source and safe for concurrent use when the source is.
type Verifier struct {
	params *Params
	rand   io.Reader
}

// NewVerifier returns a verifier for params.
func NewVerifier(params *Params, opts ...Option) *Verifier {
	o := buildOptions(opts)
	return &Verifier{params: params, rand: o.rand}
}

// Params returns the verifier's group parameters.
func (v *Verifier) Params() *Params {
	return v.params
}

// GenerateChallenge draws c uniformly from [0, q).
func (v *Verifier) GenerateChallenge() (*big.Int, error) {
	return RandomScalar(v.rand, v.params.q)
}

// Verify reports whether s answers challenge c for the commitment under
// the registered public values.
func (v *Verifier) Verify(commitment Commitment, c, s *big.Int, public PublicValues) bool {
	return v.params.Verify(commitment, c, s, public)
}
