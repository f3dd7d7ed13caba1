package numeric

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func Test_FromPlank(t *testing.T) {
	t.Run("Should scale a raw amount down by 1e12", func(t *testing.T) {
		out := FromPlank(decimal.NewFromInt(1_500_000_000_000))
		assert.True(t, out.Equal(decimal.NewFromFloat(1.5)), out.String())
	})
	t.Run("Should keep sub-unit precision", func(t *testing.T) {
		out := FromPlank(decimal.NewFromInt(1))
		assert.Equal(t, "0.000000000001", out.String())
	})
	t.Run("Should parse string amounts", func(t *testing.T) {
		out, err := FromPlankString("2000000000000")
		assert.Nil(t, err)
		assert.True(t, out.Equal(decimal.NewFromInt(2)))

		_, err = FromPlankString("not a number")
		assert.NotNil(t, err)
	})
}

func Test_FromBits(t *testing.T) {
	t.Run("Should divide by 2^64", func(t *testing.T) {
		out, err := FromBitsString("18446744073709551616")
		assert.Nil(t, err)
		assert.True(t, out.Equal(decimal.NewFromInt(1)), out.String())
	})
	t.Run("Should round to the balance scale", func(t *testing.T) {
		out, err := FromBitsString("27670116110564327424") // 1.5 * 2^64
		assert.Nil(t, err)
		assert.True(t, out.Equal(decimal.NewFromFloat(1.5)), out.String())
	})
}

func Test_DivSafe(t *testing.T) {
	t.Run("Should divide normally", func(t *testing.T) {
		out := DivSafe(decimal.NewFromInt(10), decimal.NewFromInt(4))
		assert.True(t, out.Equal(decimal.NewFromFloat(2.5)))
	})
	t.Run("Should return zero on a zero denominator", func(t *testing.T) {
		out := DivSafe(decimal.NewFromInt(10), decimal.Zero)
		assert.True(t, out.IsZero())
	})
}

func Test_Sqrt(t *testing.T) {
	t.Run("Should take exact roots", func(t *testing.T) {
		out := Sqrt(decimal.NewFromInt(1600))
		assert.True(t, out.Equal(decimal.NewFromInt(40)), out.String())
	})
	t.Run("Should round irrational roots to the balance scale", func(t *testing.T) {
		out := Sqrt(decimal.NewFromInt(2))
		assert.Equal(t, "1.414213562373", out.String())
	})
	t.Run("Should return zero for non-positive inputs", func(t *testing.T) {
		assert.True(t, Sqrt(decimal.Zero).IsZero())
		assert.True(t, Sqrt(decimal.NewFromInt(-4)).IsZero())
	})
}

func Test_RoundBalance(t *testing.T) {
	out := RoundBalance(decimal.RequireFromString("1.98765432109876"))
	assert.Equal(t, "1.987654321099", out.String())
}
