// Package chaumpedersen implements the Chaum-Pedersen proof of discrete
// logarithm equality over a prime-order subgroup of Z_p^*.
//
// # Protocol Overview
//
// The prover knows x and publishes y1 = alpha^x mod p and y2 = beta^x mod p.
// To authenticate it runs a three-move Sigma protocol:
//
//  1. COMMITMENT (Prover → Verifier): r1 = alpha^k, r2 = beta^k for fresh k in [0, q)
//  2. CHALLENGE (Verifier → Prover): c uniform in [0, q)
//  3. RESPONSE (Prover → Verifier): s = (k - c*x) mod q
//
// The verifier accepts when r1 == alpha^s * y1^c and r2 == beta^s * y2^c (mod p).
//
// Everything in this package is free of I/O apart from reading randomness.
// Params values are immutable and safe to share between goroutines.
package chaumpedersen

import (
	"errors"
	"fmt"
	"math/big"
)

var (
	// ErrMissingPrime indicates the prime modulus p was not provided
	ErrMissingPrime = errors.New("prime p is required")

	// ErrMissingOrder indicates the subgroup order q was not provided
	ErrMissingOrder = errors.New("order q is required")

	// ErrMissingGenerator indicates the generator alpha was not provided
	ErrMissingGenerator = errors.New("generator alpha is required")

	// ErrMissingSecondGenerator indicates the generator beta was not provided
	ErrMissingSecondGenerator = errors.New("second generator beta is required")

	// ErrInvalidParams indicates the values do not describe a usable group
	ErrInvalidParams = errors.New("invalid group parameters")

	// ErrUnknownGroup indicates a group name that is not built in
	ErrUnknownGroup = errors.New("unknown group")
)

var one = big.NewInt(1)

// Config lists the values needed to build Params. Every field except Name
// is required.
type Config struct {
	Name  string
	P     *big.Int
	Q     *big.Int
	Alpha *big.Int
	Beta  *big.Int
}

// Params holds the group parameters (p, q, alpha, beta).
type Params struct {
	name  string
	p     *big.Int
	q     *big.Int
	alpha *big.Int
	beta  *big.Int
}

// NewParams validates cfg and returns the corresponding Params. A missing
// field is reported with its own error before any arithmetic checks run.
func NewParams(cfg Config) (*Params, error) {
	switch {
	case cfg.P == nil:
		return nil, ErrMissingPrime
	case cfg.Q == nil:
		return nil, ErrMissingOrder
	case cfg.Alpha == nil:
		return nil, ErrMissingGenerator
	case cfg.Beta == nil:
		return nil, ErrMissingSecondGenerator
	}

	name := cfg.Name
	if name == "" {
		name = "custom"
	}

	params := &Params{
		name:  name,
		p:     new(big.Int).Set(cfg.P),
		q:     new(big.Int).Set(cfg.Q),
		alpha: new(big.Int).Set(cfg.Alpha),
		beta:  new(big.Int).Set(cfg.Beta),
	}

	if err := params.Validate(); err != nil {
		return nil, err
	}

	return params, nil
}

// Validate checks that alpha and beta are distinct generators of a subgroup
// of prime order q modulo the prime p.
func (p *Params) Validate() error {
	if p.p.Cmp(big.NewInt(3)) <= 0 || !p.p.ProbablyPrime(0) {
		return fmt.Errorf("%w: p is not a prime greater than 3", ErrInvalidParams)
	}
	if p.q.Cmp(one) <= 0 || !p.q.ProbablyPrime(0) {
		return fmt.Errorf("%w: q is not a prime", ErrInvalidParams)
	}

	pMinus1 := new(big.Int).Sub(p.p, one)
	if new(big.Int).Mod(pMinus1, p.q).Sign() != 0 {
		return fmt.Errorf("%w: q does not divide p-1", ErrInvalidParams)
	}

	for _, g := range []struct {
		name  string
		value *big.Int
	}{{"alpha", p.alpha}, {"beta", p.beta}} {
		if g.value.Cmp(one) <= 0 || g.value.Cmp(p.p) >= 0 {
			return fmt.Errorf("%w: %s must lie in (1, p)", ErrInvalidParams, g.name)
		}
		if new(big.Int).Exp(g.value, p.q, p.p).Cmp(one) != 0 {
			return fmt.Errorf("%w: %s does not have order q", ErrInvalidParams, g.name)
		}
	}

	if p.alpha.Cmp(p.beta) == 0 {
		return fmt.Errorf("%w: alpha and beta must differ", ErrInvalidParams)
	}

	return nil
}

// Name returns the group name, or "custom" for unnamed parameters.
func (p *Params) Name() string { return p.name }

// P returns a copy of the prime modulus.
func (p *Params) P() *big.Int { return new(big.Int).Set(p.p) }

// Q returns a copy of the subgroup order.
func (p *Params) Q() *big.Int { return new(big.Int).Set(p.q) }

// Alpha returns a copy of the first generator.
func (p *Params) Alpha() *big.Int { return new(big.Int).Set(p.alpha) }

// Beta returns a copy of the second generator.
func (p *Params) Beta() *big.Int { return new(big.Int).Set(p.beta) }

// ElementSize is the length in bytes of a fixed-width group element.
func (p *Params) ElementSize() int { return (p.p.BitLen() + 7) / 8 }

// Equal reports whether both parameter sets describe the same group.
func (p *Params) Equal(other *Params) bool {
	if p == nil || other == nil {
		return p == other
	}
	return p.p.Cmp(other.p) == 0 &&
		p.q.Cmp(other.q) == 0 &&
		p.alpha.Cmp(other.alpha) == 0 &&
		p.beta.Cmp(other.beta) == 0
}

// IsElement reports whether v lies in [1, p).
func (p *Params) IsElement(v *big.Int) bool {
	return v != nil && v.Sign() > 0 && v.Cmp(p.p) < 0
}

// IsScalar reports whether v lies in [0, q).
func (p *Params) IsScalar(v *big.Int) bool {
	return v != nil && v.Sign() >= 0 && v.Cmp(p.q) < 0
}

func (p *Params) String() string {
	return fmt.Sprintf("%s (%d-bit p, %d-bit q)", p.name, p.p.BitLen(), p.q.BitLen())
}
