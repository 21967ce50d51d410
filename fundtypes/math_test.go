package fundtypes_test

import (
	"math"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/fragmetric-labs/fragmetric-engine/fundtypes"
)

func TestFundTypes_CheckedMath(t *testing.T) {
	t.Parallel()

	t.Run("add overflow", func(t *testing.T) {
		t.Parallel()
		sum, err := fundtypes.CheckedAdd(1, 2)
		require.NoError(t, err)
		require.Equal(t, uint64(3), sum)

		_, err = fundtypes.CheckedAdd(math.MaxUint64, 1)
		require.ErrorIs(t, err, fundtypes.ErrCalculationArithmetic)
	})

	t.Run("sub underflow", func(t *testing.T) {
		t.Parallel()
		diff, err := fundtypes.CheckedSub(3, 2)
		require.NoError(t, err)
		require.Equal(t, uint64(1), diff)

		_, err = fundtypes.CheckedSub(2, 3)
		require.ErrorIs(t, err, fundtypes.ErrCalculationArithmetic)
	})
}

func TestFundTypes_MulDiv(t *testing.T) {
	t.Parallel()

	t.Run("truncates", func(t *testing.T) {
		t.Parallel()
		got, err := fundtypes.MulDiv(10, 10, 3)
		require.NoError(t, err)
		require.Equal(t, uint64(33), got)
	})

	t.Run("intermediate product exceeds 64 bits", func(t *testing.T) {
		t.Parallel()
		got, err := fundtypes.MulDiv(math.MaxUint64, 2, 4)
		require.NoError(t, err)
		require.Equal(t, uint64(math.MaxUint64/2), got)
	})

	t.Run("quotient overflow", func(t *testing.T) {
		t.Parallel()
		_, err := fundtypes.MulDiv(math.MaxUint64, 3, 2)
		require.ErrorIs(t, err, fundtypes.ErrCalculationArithmetic)
	})

	t.Run("zero denominator", func(t *testing.T) {
		t.Parallel()
		_, err := fundtypes.MulDiv(1, 1, 0)
		require.ErrorIs(t, err, fundtypes.ErrCalculationArithmetic)
	})
}

func TestFundTypes_MulBps(t *testing.T) {
	t.Parallel()

	got, err := fundtypes.MulBps(1_000_000, 250)
	require.NoError(t, err)
	require.Equal(t, uint64(25_000), got)

	got, err = fundtypes.MulBps(1_000_000, 10_000)
	require.NoError(t, err)
	require.Equal(t, uint64(1_000_000), got)
}

func TestFundTypes_AccumulateU128(t *testing.T) {
	t.Parallel()

	t.Run("accumulates parts", func(t *testing.T) {
		t.Parallel()
		acc := new(uint256.Int)
		require.NoError(t, fundtypes.AccumulateU128(acc, fundtypes.U128FromParts(1000, 100, 5)))
		require.NoError(t, fundtypes.AccumulateU128(acc, fundtypes.U128FromParts(3000, 100, 5)))
		require.Equal(t, uint64(2_000_000), acc.Uint64())
	})

	t.Run("rejects accumulator past 128 bits", func(t *testing.T) {
		t.Parallel()
		acc := new(uint256.Int).Lsh(uint256.NewInt(1), 127)
		require.NoError(t, fundtypes.AccumulateU128(acc, uint256.NewInt(0)))
		require.ErrorIs(t, fundtypes.AccumulateU128(acc, acc.Clone()), fundtypes.ErrCalculationArithmetic)
	})
}
