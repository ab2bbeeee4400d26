// Package curve provides prime-order elliptic curve groups for the
// elliptic-curve variant of the Chaum-Pedersen proof.
//
// Each group exposes two generators: the standard base point G and a second
// point H derived by hashing a fixed domain string to the curve, so that
// nobody knows log_G(H).
//
//   - secp256k1: points are 33-byte compressed encodings, scalars 32 bytes
//     big-endian. H is found by try-and-increment on SHA-256.
//   - ristretto255: points and scalars are 32 bytes. H is the element mapped
//     from a SHA-512 digest.
package curve

import (
	"errors"
	"math/big"
)

// Point is an element of the group.
type Point interface {
	// Bytes returns the canonical encoding of the point.
	Bytes() []byte

	// Equal checks if two points are equal.
	Equal(other Point) bool

	// IsIdentity checks if this is the identity element.
	IsIdentity() bool
}

// Scalar is an integer modulo the group order, in [1, q-1].
type Scalar interface {
	// Bytes returns the scalar as 32 big-endian bytes.
	Bytes() []byte

	// BigInt returns the scalar as a big.Int.
	BigInt() *big.Int
}

// Curve abstracts the group operations the proofs need.
type Curve interface {
	// Name returns the curve identifier ("secp256k1" or "ristretto255").
	Name() string

	// Generator returns the standard base point G.
	Generator() Point

	// SecondGenerator returns H, a generator with unknown discrete log to G.
	SecondGenerator() Point

	// ParsePoint decodes and validates a point, rejecting the identity.
	ParsePoint(b []byte) (Point, error)

	// ParseScalar decodes a 32-byte big-endian scalar in [1, q-1].
	ParseScalar(b []byte) (Scalar, error)

	// NewScalar reduces v modulo the order. Zero is rejected.
	NewScalar(v *big.Int) (Scalar, error)

	// ScalarBaseMult computes s * G.
	ScalarBaseMult(s Scalar) Point

	// ScalarMult computes s * P. It returns nil for foreign types.
	ScalarMult(p Point, s Scalar) Point

	// Add computes P + Q. It returns nil for foreign types, and for
	// secp256k1 also when the sum is the identity.
	Add(p, q Point) Point

	// Order returns q, the order of the group.
	Order() *big.Int

	// GenerateScalar returns a uniformly random scalar in [1, q-1].
	GenerateScalar() (Scalar, error)

	// ValidatePoint rejects foreign, off-curve and identity points.
	ValidatePoint(p Point) error
}

var (
	// ErrInvalidPoint indicates an invalid point
	ErrInvalidPoint = errors.New("invalid point")

	// ErrInvalidScalar indicates an invalid scalar
	ErrInvalidScalar = errors.New("invalid scalar")

	// ErrIdentityPoint indicates the point is the identity point
	ErrIdentityPoint = errors.New("point is identity")

	// ErrPointNotOnCurve indicates the point is not on the curve
	ErrPointNotOnCurve = errors.New("point is not on curve")
)

// generatorDomain seeds the derivation of the second generator.
const generatorDomain = "chaum-pedersen-auth/v1/H/"

func reverse(b []byte) []byte {
	out := make([]byte, len(b))
	for i := range b {
		out[len(b)-1-i] = b[i]
	}
	return out
}
