package curve

import (
	"crypto/rand"
	"crypto/sha512"
	"fmt"
	"math/big"

	"github.com/gtank/ristretto255"
)

// Ristretto255Point represents a point in the Ristretto255 prime-order group.
type Ristretto255Point struct {
	point *ristretto255.Element
}

// Bytes returns the canonical 32-byte encoding of the point.
func (p *Ristretto255Point) Bytes() []byte {
	if p == nil || p.point == nil {
		return nil
	}
	return p.point.Encode(nil)
}

// Equal reports whether two points are identical.
func (p *Ristretto255Point) Equal(other Point) bool {
	o, ok := other.(*Ristretto255Point)
	if !ok {
		return false
	}
	if p.point == nil || o.point == nil {
		return p.point == nil && o.point == nil
	}
	return p.point.Equal(o.point) == 1
}

// IsIdentity reports whether the point is the identity element.
func (p *Ristretto255Point) IsIdentity() bool {
	if p == nil || p.point == nil {
		return true
	}
	return p.point.Equal(identityElement()) == 1
}

func identityElement() *ristretto255.Element {
	return ristretto255.NewElement().ScalarBaseMult(ristretto255.NewScalar())
}

// Ristretto255Scalar represents a scalar modulo the Ristretto255 group order.
type Ristretto255Scalar struct {
	scalar *ristretto255.Scalar
}

// Bytes returns the scalar as 32 big-endian bytes.
func (s *Ristretto255Scalar) Bytes() []byte {
	if s == nil || s.scalar == nil {
		return nil
	}
	return reverse(s.scalar.Encode(nil))
}

// BigInt returns the scalar value as a big.Int.
func (s *Ristretto255Scalar) BigInt() *big.Int {
	if s == nil || s.scalar == nil {
		return big.NewInt(0)
	}
	return new(big.Int).SetBytes(s.Bytes())
}

// Ristretto255Curve implements the Curve interface for the Ristretto group.
type Ristretto255Curve struct{}

// NewRistretto255 creates a new Ristretto255 curve instance.
func NewRistretto255() Curve {
	return &Ristretto255Curve{}
}

// Name returns the canonical group name.
func (c *Ristretto255Curve) Name() string {
	return "ristretto255"
}

// Generator returns the canonical base point.
func (c *Ristretto255Curve) Generator() Point {
	one := make([]byte, 32)
	one[0] = 1
	s := ristretto255.NewScalar()
	_ = s.Decode(one)
	return &Ristretto255Point{point: ristretto255.NewElement().ScalarBaseMult(s)}
}

// SecondGenerator maps a SHA-512 digest of the domain onto the group.
func (c *Ristretto255Curve) SecondGenerator() Point {
	digest := sha512.Sum512([]byte(generatorDomain + "ristretto255"))
	return &Ristretto255Point{point: ristretto255.NewElement().FromUniformBytes(digest[:])}
}

// ParsePoint decodes a canonical 32-byte Ristretto point encoding.
func (c *Ristretto255Curve) ParsePoint(b []byte) (Point, error) {
	if len(b) != 32 {
		return nil, fmt.Errorf("%w: expected 32 bytes, got %d", ErrInvalidPoint, len(b))
	}

	elem := ristretto255.NewElement()
	if err := elem.Decode(b); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPoint, err)
	}

	point := &Ristretto255Point{point: elem}
	if err := c.ValidatePoint(point); err != nil {
		return nil, err
	}
	return point, nil
}

// ParseScalar decodes a 32-byte big-endian scalar in [1, q-1].
func (c *Ristretto255Curve) ParseScalar(b []byte) (Scalar, error) {
	if len(b) != 32 {
		return nil, fmt.Errorf("%w: expected 32 bytes, got %d", ErrInvalidScalar, len(b))
	}

	bi := new(big.Int).SetBytes(b)
	if bi.Sign() <= 0 || bi.Cmp(c.Order()) >= 0 {
		return nil, fmt.Errorf("%w: scalar out of range", ErrInvalidScalar)
	}

	return c.fromBigInt(bi)
}

// NewScalar reduces v modulo the group order.
func (c *Ristretto255Curve) NewScalar(v *big.Int) (Scalar, error) {
	reduced := new(big.Int).Mod(v, c.Order())
	if reduced.Sign() == 0 {
		return nil, fmt.Errorf("%w: zero", ErrInvalidScalar)
	}
	return c.fromBigInt(reduced)
}

func (c *Ristretto255Curve) fromBigInt(v *big.Int) (Scalar, error) {
	sc := ristretto255.NewScalar()
	if err := sc.Decode(reverse(v.FillBytes(make([]byte, 32)))); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidScalar, err)
	}
	return &Ristretto255Scalar{scalar: sc}, nil
}

// ScalarBaseMult returns s*B, where B is the canonical generator.
func (c *Ristretto255Curve) ScalarBaseMult(s Scalar) Point {
	sc, ok := s.(*Ristretto255Scalar)
	if !ok || sc.scalar == nil {
		return nil
	}
	return &Ristretto255Point{point: ristretto255.NewElement().ScalarBaseMult(sc.scalar)}
}

// ScalarMult computes s * P for the provided point and scalar.
func (c *Ristretto255Curve) ScalarMult(p Point, s Scalar) Point {
	pt, ok := p.(*Ristretto255Point)
	if !ok || pt.point == nil {
		return nil
	}
	sc, ok := s.(*Ristretto255Scalar)
	if !ok || sc.scalar == nil {
		return nil
	}
	return &Ristretto255Point{point: ristretto255.NewElement().ScalarMult(sc.scalar, pt.point)}
}

// Add returns P + Q for two group elements.
func (c *Ristretto255Curve) Add(p, q Point) Point {
	a, ok := p.(*Ristretto255Point)
	if !ok || a.point == nil {
		return nil
	}
	b, ok := q.(*Ristretto255Point)
	if !ok || b.point == nil {
		return nil
	}
	return &Ristretto255Point{point: ristretto255.NewElement().Add(a.point, b.point)}
}

// Order returns l = 2^252 + 27742317777372353535851937790883648493.
func (c *Ristretto255Curve) Order() *big.Int {
	order := new(big.Int).Lsh(big.NewInt(1), 252)
	addend, _ := new(big.Int).SetString("27742317777372353535851937790883648493", 10)
	return order.Add(order, addend)
}

// GenerateScalar returns a uniformly random non-zero scalar.
func (c *Ristretto255Curve) GenerateScalar() (Scalar, error) {
	seed := make([]byte, 64)
	for {
		if _, err := rand.Read(seed); err != nil {
			return nil, fmt.Errorf("failed to generate random scalar: %w", err)
		}

		s := &Ristretto255Scalar{scalar: ristretto255.NewScalar().FromUniformBytes(seed)}
		if s.BigInt().Sign() != 0 {
			return s, nil
		}
	}
}

// ValidatePoint ensures the point is non-identity and properly encoded.
func (c *Ristretto255Curve) ValidatePoint(p Point) error {
	pt, ok := p.(*Ristretto255Point)
	if !ok || pt == nil || pt.point == nil {
		return ErrInvalidPoint
	}

	if pt.IsIdentity() {
		return ErrIdentityPoint
	}

	return nil
}
