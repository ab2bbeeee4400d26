package curve

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func allCurves() []Curve {
	return []Curve{NewSecp256k1(), NewRistretto255()}
}

func TestCurveOperations(t *testing.T) {
	for _, c := range allCurves() {
		c := c
		t.Run(c.Name(), func(t *testing.T) {
			t.Run("GenerateScalar", func(t *testing.T) {
				s1, err := c.GenerateScalar()
				require.NoError(t, err)
				s2, err := c.GenerateScalar()
				require.NoError(t, err)

				require.NotEqual(t, s1.Bytes(), s2.Bytes())
				require.Len(t, s1.Bytes(), 32)
				require.True(t, s1.BigInt().Sign() > 0)
				require.True(t, s1.BigInt().Cmp(c.Order()) < 0)
			})

			t.Run("ParseRoundTrip", func(t *testing.T) {
				s, err := c.GenerateScalar()
				require.NoError(t, err)

				parsed, err := c.ParseScalar(s.Bytes())
				require.NoError(t, err)
				require.Equal(t, 0, parsed.BigInt().Cmp(s.BigInt()))

				p := c.ScalarBaseMult(s)
				require.NoError(t, c.ValidatePoint(p))

				q, err := c.ParsePoint(p.Bytes())
				require.NoError(t, err)
				require.True(t, p.Equal(q))
			})

			t.Run("GeneratorMatchesBaseMult", func(t *testing.T) {
				one, err := c.NewScalar(big.NewInt(1))
				require.NoError(t, err)
				require.True(t, c.Generator().Equal(c.ScalarBaseMult(one)))
				require.True(t, c.Generator().Equal(c.ScalarMult(c.Generator(), one)))
			})

			t.Run("SecondGenerator", func(t *testing.T) {
				h := c.SecondGenerator()
				require.NoError(t, c.ValidatePoint(h))
				require.False(t, h.Equal(c.Generator()))
				require.True(t, h.Equal(c.SecondGenerator()))
			})

			t.Run("Distributivity", func(t *testing.T) {
				a, err := c.NewScalar(big.NewInt(7))
				require.NoError(t, err)
				b, err := c.NewScalar(big.NewInt(11))
				require.NoError(t, err)
				sum, err := c.NewScalar(big.NewInt(18))
				require.NoError(t, err)

				h := c.SecondGenerator()
				lhs := c.Add(c.ScalarMult(h, a), c.ScalarMult(h, b))
				require.True(t, lhs.Equal(c.ScalarMult(h, sum)))
			})

			t.Run("NewScalarReduces", func(t *testing.T) {
				v := new(big.Int).Add(c.Order(), big.NewInt(5))
				s, err := c.NewScalar(v)
				require.NoError(t, err)
				require.Equal(t, int64(5), s.BigInt().Int64())

				_, err = c.NewScalar(c.Order())
				require.ErrorIs(t, err, ErrInvalidScalar)
			})

			t.Run("RejectsInvalidInput", func(t *testing.T) {
				_, err := c.ParseScalar(make([]byte, 32))
				require.ErrorIs(t, err, ErrInvalidScalar)

				_, err = c.ParseScalar(make([]byte, 16))
				require.ErrorIs(t, err, ErrInvalidScalar)

				_, err = c.ParseScalar(c.Order().FillBytes(make([]byte, 32)))
				require.ErrorIs(t, err, ErrInvalidScalar)

				_, err = c.ParsePoint(nil)
				require.Error(t, err)

				_, err = c.ParsePoint([]byte{0x01, 0x02, 0x03})
				require.Error(t, err)
			})
		})
	}
}

func TestRistrettoRejectsIdentity(t *testing.T) {
	c := NewRistretto255()

	_, err := c.ParsePoint(make([]byte, 32))
	require.ErrorIs(t, err, ErrIdentityPoint)
}

func TestSecp256k1IdentitySum(t *testing.T) {
	c := NewSecp256k1()

	minusOne, err := c.NewScalar(big.NewInt(-1))
	require.NoError(t, err)

	g := c.Generator()
	require.Nil(t, c.Add(g, c.ScalarMult(g, minusOne)))
}

func TestCrossCurvePointsDiffer(t *testing.T) {
	secp := NewSecp256k1()
	rist := NewRistretto255()

	require.False(t, secp.Generator().Equal(rist.Generator()))
	require.Error(t, secp.ValidatePoint(rist.Generator()))
	require.Error(t, rist.ValidatePoint(secp.Generator()))
}
