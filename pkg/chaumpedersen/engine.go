package chaumpedersen

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
)

// PublicValues is the pair (y1, y2) = (alpha^x, beta^x) mod p.
type PublicValues struct {
	Y1 *big.Int
	Y2 *big.Int
}

// Commitment is the pair (r1, r2) = (alpha^k, beta^k) mod p.
type Commitment struct {
	R1 *big.Int
	R2 *big.Int
}

// DerivePublicValues computes y1 = alpha^secret mod p and y2 = beta^secret mod p.
// The secret is conventionally in [0, q) but any non-negative exponent works.
func (p *Params) DerivePublicValues(secret *big.Int) PublicValues {
	return PublicValues{
		Y1: new(big.Int).Exp(p.alpha, secret, p.p),
		Y2: new(big.Int).Exp(p.beta, secret, p.p),
	}
}

// DeriveCommitment computes r1 = alpha^k mod p and r2 = beta^k mod p.
func (p *Params) DeriveCommitment(k *big.Int) Commitment {
	return Commitment{
		R1: new(big.Int).Exp(p.alpha, k, p.p),
		R2: new(big.Int).Exp(p.beta, k, p.p),
	}
}

// DeriveResponse computes s = (k - c*x) mod q, always in [0, q).
func (p *Params) DeriveResponse(k, c, x *big.Int) *big.Int {
	return Response(k, c, x, p.q)
}

// Response computes (k - c*x) mod q for non-negative k, c and x.
//
// The difference is formed on magnitudes only: when k < c*x the result is
// q - ((c*x - k) mod q), except that a zero remainder yields 0 rather than q.
// The result always lies in [0, q).
func Response(k, c, x, q *big.Int) *big.Int {
	cx := new(big.Int).Mul(c, x)

	if k.Cmp(cx) >= 0 {
		d := cx.Sub(k, cx)
		return d.Mod(d, q)
	}

	d := cx.Sub(cx, k)
	d.Mod(d, q)
	if d.Sign() == 0 {
		return d
	}
	return d.Sub(q, d)
}

// Verify checks r1 == alpha^s * y1^c mod p and r2 == beta^s * y2^c mod p.
// Nil inputs never verify.
func (p *Params) Verify(commitment Commitment, c, s *big.Int, public PublicValues) bool {
	if commitment.R1 == nil || commitment.R2 == nil || c == nil || s == nil ||
		public.Y1 == nil || public.Y2 == nil {
		return false
	}

	ok1 := commitment.R1.Cmp(p.combine(p.alpha, s, public.Y1, c)) == 0
	ok2 := commitment.R2.Cmp(p.combine(p.beta, s, public.Y2, c)) == 0
	return ok1 && ok2
}

// combine returns g^s * y^c mod p.
func (p *Params) combine(g, s, y, c *big.Int) *big.Int {
	gs := new(big.Int).Exp(g, s, p.p)
	yc := new(big.Int).Exp(y, c, p.p)
	gs.Mul(gs, yc)
	return gs.Mod(gs, p.p)
}

// RandomScalar returns a uniformly random integer in [0, q) read from r.
func RandomScalar(r io.Reader, q *big.Int) (*big.Int, error) {
	if r == nil {
		r = rand.Reader
	}
	v, err := rand.Int(r, q)
	if err != nil {
		return nil, fmt.Errorf("failed to sample scalar: %w", err)
	}
	return v, nil
}

// GenerateSecret draws a fresh secret x uniformly from [0, q).
func (p *Params) GenerateSecret() (*big.Int, error) {
	return RandomScalar(rand.Reader, p.q)
}
