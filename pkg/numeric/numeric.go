package numeric

import (
	"math/big"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// BalanceScale is the number of decimal places carried by the chain's balance
// unit. All pool/delegation values are stored at this scale.
const BalanceScale = 12

var (
	// two64 is the divisor for U64F64 fixed-point values.
	two64 = decimal.NewFromBigInt(new(big.Int).Lsh(big.NewInt(1), 64), 0)

	balanceUnit = decimal.New(1, BalanceScale)
)

// FromPlank converts a raw integer chain amount (plank) into the 12-decimal
// balance unit.
func FromPlank(amount decimal.Decimal) decimal.Decimal {
	return amount.DivRound(balanceUnit, BalanceScale)
}

// FromPlankString parses a raw integer chain amount from its string form.
func FromPlankString(amount string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "invalid plank amount %q", amount)
	}
	return FromPlank(d), nil
}

// FromBits converts a U64F64 fixed-point value (used on-chain for scores and
// ratios) into a decimal rounded to the balance scale.
func FromBits(bits decimal.Decimal) decimal.Decimal {
	return bits.DivRound(two64, BalanceScale)
}

// FromBitsString parses a U64F64 fixed-point value from its integer string form.
func FromBitsString(bits string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(bits)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "invalid bits value %q", bits)
	}
	return FromBits(d), nil
}

// RoundBalance rounds half away from zero to the balance scale.
func RoundBalance(d decimal.Decimal) decimal.Decimal {
	return d.Round(BalanceScale)
}

// DivSafe divides a by b at the balance scale, returning zero when the
// denominator is zero. Share-price style computations never fault on empty
// pools.
func DivSafe(a, b decimal.Decimal) decimal.Decimal {
	if b.IsZero() {
		return decimal.Zero
	}
	return a.DivRound(b, BalanceScale)
}

// Sqrt returns the square root of d rounded to the balance scale. Negative
// inputs yield zero; they only arise from malformed chain data and the
// scoring function treats them as no score.
func Sqrt(d decimal.Decimal) decimal.Decimal {
	if d.Sign() <= 0 {
		return decimal.Zero
	}
	f, _, err := big.ParseFloat(d.String(), 10, 128, big.ToNearestEven)
	if err != nil {
		return decimal.Zero
	}
	root := new(big.Float).SetPrec(128).Sqrt(f)
	out, err := decimal.NewFromString(root.Text('f', BalanceScale+6))
	if err != nil {
		return decimal.Zero
	}
	return out.Round(BalanceScale)
}
