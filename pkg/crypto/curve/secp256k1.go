package curve

import (
	"crypto/sha256"
	"fmt"
	"math/big"
	"sync"

	"github.com/btcsuite/btcd/btcec/v2"
)

// Secp256k1Point represents a point on the secp256k1 curve
type Secp256k1Point struct {
	point *btcec.PublicKey
}

// Bytes returns the compressed point encoding (33 bytes)
func (p *Secp256k1Point) Bytes() []byte {
	if p == nil || p.point == nil {
		return nil
	}
	return p.point.SerializeCompressed()
}

// Equal checks if two points are equal
func (p *Secp256k1Point) Equal(other Point) bool {
	o, ok := other.(*Secp256k1Point)
	if !ok {
		return false
	}
	if p.point == nil || o.point == nil {
		return p.point == nil && o.point == nil
	}
	return p.point.IsEqual(o.point)
}

// IsIdentity reports whether p is the point at infinity, which btcec cannot
// represent as a public key.
func (p *Secp256k1Point) IsIdentity() bool {
	return p == nil || p.point == nil
}

// Secp256k1Scalar represents a scalar for secp256k1 operations
type Secp256k1Scalar struct {
	scalar *big.Int
}

// Bytes returns the scalar as a 32-byte slice (big-endian)
func (s *Secp256k1Scalar) Bytes() []byte {
	if s == nil || s.scalar == nil {
		return nil
	}
	return s.scalar.FillBytes(make([]byte, 32))
}

// BigInt returns the scalar as a big.Int
func (s *Secp256k1Scalar) BigInt() *big.Int {
	return new(big.Int).Set(s.scalar)
}

// Secp256k1Curve implements the Curve interface for secp256k1
type Secp256k1Curve struct {
	hOnce sync.Once
	h     *Secp256k1Point
}

// NewSecp256k1 creates a new secp256k1 curve instance
func NewSecp256k1() Curve {
	return &Secp256k1Curve{}
}

// Name returns the curve name
func (c *Secp256k1Curve) Name() string {
	return "secp256k1"
}

// Generator returns the standard base point
func (c *Secp256k1Curve) Generator() Point {
	one := make([]byte, 32)
	one[31] = 1
	_, pub := btcec.PrivKeyFromBytes(one)
	return &Secp256k1Point{point: pub}
}

// SecondGenerator hashes the domain with an increasing counter until the
// digest is the x-coordinate of a curve point with even y.
func (c *Secp256k1Curve) SecondGenerator() Point {
	c.hOnce.Do(func() {
		for counter := 0; counter < 256; counter++ {
			digest := sha256.Sum256(append([]byte(generatorDomain+"secp256k1/"), byte(counter)))
			pub, err := btcec.ParsePubKey(append([]byte{0x02}, digest[:]...))
			if err == nil {
				c.h = &Secp256k1Point{point: pub}
				return
			}
		}
		panic("secp256k1: no second generator found")
	})
	return c.h
}

// ParsePoint parses a point from bytes (33-byte compressed or 65-byte uncompressed)
func (c *Secp256k1Curve) ParsePoint(b []byte) (Point, error) {
	if len(b) == 0 {
		return nil, ErrInvalidPoint
	}

	pubKey, err := btcec.ParsePubKey(b)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPoint, err)
	}

	point := &Secp256k1Point{point: pubKey}
	if err := c.ValidatePoint(point); err != nil {
		return nil, err
	}

	return point, nil
}

// ParseScalar parses a scalar from bytes (32 bytes, big-endian)
func (c *Secp256k1Curve) ParseScalar(b []byte) (Scalar, error) {
	if len(b) != 32 {
		return nil, fmt.Errorf("%w: expected 32 bytes, got %d", ErrInvalidScalar, len(b))
	}

	scalar := new(big.Int).SetBytes(b)
	if scalar.Sign() <= 0 || scalar.Cmp(c.Order()) >= 0 {
		return nil, fmt.Errorf("%w: scalar out of range", ErrInvalidScalar)
	}

	return &Secp256k1Scalar{scalar: scalar}, nil
}

// NewScalar reduces v modulo n
func (c *Secp256k1Curve) NewScalar(v *big.Int) (Scalar, error) {
	reduced := new(big.Int).Mod(v, c.Order())
	if reduced.Sign() == 0 {
		return nil, fmt.Errorf("%w: zero", ErrInvalidScalar)
	}
	return &Secp256k1Scalar{scalar: reduced}, nil
}

// ScalarBaseMult computes s * G
func (c *Secp256k1Curve) ScalarBaseMult(s Scalar) Point {
	sc, ok := s.(*Secp256k1Scalar)
	if !ok {
		return nil
	}

	_, pubKey := btcec.PrivKeyFromBytes(sc.Bytes())
	return &Secp256k1Point{point: pubKey}
}

// ScalarMult computes s * P
func (c *Secp256k1Curve) ScalarMult(p Point, s Scalar) Point {
	pt, ok := p.(*Secp256k1Point)
	if !ok || pt.point == nil {
		return nil
	}
	sc, ok := s.(*Secp256k1Scalar)
	if !ok {
		return nil
	}

	rx, ry := btcec.S256().ScalarMult(pt.point.X(), pt.point.Y(), sc.Bytes())
	return fromAffine(rx, ry)
}

// Add adds two points: P + Q
func (c *Secp256k1Curve) Add(p, q Point) Point {
	a, ok := p.(*Secp256k1Point)
	if !ok || a.point == nil {
		return nil
	}
	b, ok := q.(*Secp256k1Point)
	if !ok || b.point == nil {
		return nil
	}

	rx, ry := btcec.S256().Add(a.point.X(), a.point.Y(), b.point.X(), b.point.Y())
	return fromAffine(rx, ry)
}

// fromAffine converts coordinates back into a point; the identity (0, 0)
// fails to parse and yields nil.
func fromAffine(x, y *big.Int) Point {
	encoded := make([]byte, 65)
	encoded[0] = 0x04
	x.FillBytes(encoded[1:33])
	y.FillBytes(encoded[33:])

	pubKey, err := btcec.ParsePubKey(encoded)
	if err != nil {
		return nil
	}
	return &Secp256k1Point{point: pubKey}
}

// Order returns the order of the secp256k1 curve
func (c *Secp256k1Curve) Order() *big.Int {
	return new(big.Int).Set(btcec.S256().N)
}

// GenerateScalar generates a cryptographically secure random scalar
func (c *Secp256k1Curve) GenerateScalar() (Scalar, error) {
	privKey, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate scalar: %w", err)
	}

	return &Secp256k1Scalar{scalar: new(big.Int).SetBytes(privKey.Serialize())}, nil
}

// ValidatePoint validates that a point is on the curve and not the identity
func (c *Secp256k1Curve) ValidatePoint(p Point) error {
	pt, ok := p.(*Secp256k1Point)
	if !ok || pt == nil {
		return ErrInvalidPoint
	}

	if pt.point == nil {
		return ErrIdentityPoint
	}

	if !btcec.S256().IsOnCurve(pt.point.X(), pt.point.Y()) {
		return ErrPointNotOnCurve
	}

	return nil
}
