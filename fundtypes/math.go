package fundtypes

import (
	"errors"

	"github.com/holiman/uint256"
)

// ErrCalculationArithmetic is the fatal arithmetic fault class: any overflow
// or underflow in amount math aborts the instruction before state mutates.
var ErrCalculationArithmetic = errors.New("fundtypes: calculation arithmetic exception")

const (
	// BpsDenominator is the scale of basis-point rates (10_000 = 100%).
	BpsDenominator = 10_000

	// MaxU128 guards accumulators that keep u128 semantics while computed in
	// 256-bit space.
	maxU128Bits = 128
)

func CheckedAdd(a, b uint64) (uint64, error) {
	sum := a + b
	if sum < a {
		return 0, ErrCalculationArithmetic
	}
	return sum, nil
}

func CheckedSub(a, b uint64) (uint64, error) {
	if b > a {
		return 0, ErrCalculationArithmetic
	}
	return a - b, nil
}

// MulDiv computes a*b/d with the intermediate product in 256-bit space,
// truncating the quotient.
func MulDiv(a, b, d uint64) (uint64, error) {
	if d == 0 {
		return 0, ErrCalculationArithmetic
	}
	product := new(uint256.Int).Mul(uint256.NewInt(a), uint256.NewInt(b))
	quotient := product.Div(product, uint256.NewInt(d))
	if !quotient.IsUint64() {
		return 0, ErrCalculationArithmetic
	}
	return quotient.Uint64(), nil
}

// MulBps applies a basis-point rate to an amount, truncating.
func MulBps(amount uint64, bps uint16) (uint64, error) {
	return MulDiv(amount, uint64(bps), BpsDenominator)
}

// AccumulateU128 adds delta into acc, enforcing the accumulator's u128 bound.
func AccumulateU128(acc *uint256.Int, delta *uint256.Int) error {
	if _, overflow := acc.AddOverflow(acc, delta); overflow {
		return ErrCalculationArithmetic
	}
	if acc.BitLen() > maxU128Bits {
		return ErrCalculationArithmetic
	}
	return nil
}

// U128FromParts builds a 256-bit value from amount*rate*slots without
// intermediate overflow.
func U128FromParts(amount uint64, rate uint16, slots uint64) *uint256.Int {
	out := new(uint256.Int).Mul(uint256.NewInt(amount), uint256.NewInt(uint64(rate)))
	return out.Mul(out, uint256.NewInt(slots))
}
