package amm_v3

import (
	"testing"

	cosmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"
	"lukechampine.com/uint128"
)

// testPool builds a pool at tick 0 with a single position spanning
// [-1000, 1000) and the given liquidity, tick spacing 1.
func testPool(t *testing.T, liquidity uint64) (*PoolState, map[int32]*TickArrayState) {
	t.Helper()

	pool := &PoolState{
		TickSpacing:  1,
		TickCurrent:  0,
		Liquidity:    uint128.From64(liquidity),
		SqrtPriceX64: uint128.FromBig(Q64.BigInt()),
	}

	lowerArray := &TickArrayState{StartTickIndex: -1020}
	lowerArray.Ticks[20] = TickState{
		Tick:           -1000,
		LiquidityNet:   cosmath.NewIntFromUint64(liquidity),
		LiquidityGross: uint128.From64(liquidity),
	}
	upperArray := &TickArrayState{StartTickIndex: 960}
	upperArray.Ticks[40] = TickState{
		Tick:           1000,
		LiquidityNet:   cosmath.NewIntFromUint64(liquidity).Neg(),
		LiquidityGross: uint128.From64(liquidity),
	}

	markArray(&pool.TickArrayBitmap, -1020, 1)
	markArray(&pool.TickArrayBitmap, 960, 1)

	return pool, map[int32]*TickArrayState{
		-1020: lowerArray,
		960:   upperArray,
	}
}

func TestEstimateSwapExactIn(t *testing.T) {
	pool, tickArrays := testPool(t, 1_000_000_000_000)
	amountIn := cosmath.NewInt(1_000_000_000)

	estimate, err := EstimateSwap(pool, 2500, tickArrays, nil, true, amountIn, cosmath.ZeroInt())
	require.NoError(t, err)

	// The full input splits into the pool leg and the fee.
	require.True(t, estimate.AmountIn.Add(estimate.FeeAmount).Equal(amountIn))
	require.True(t, estimate.FeeAmount.IsPositive())
	require.True(t, estimate.AmountOut.IsPositive())
	require.True(t, estimate.AmountOut.LT(amountIn), "near-unit price minus fee must yield less than input")

	// Selling token0 pushes the price down.
	require.True(t, estimate.EndSqrtPriceX64.LT(Q64))
	require.Negative(t, estimate.EndTick)
	require.Equal(t, []int32{-1020}, estimate.TickArrayStartIndexes)
}

func TestEstimateSwapExactOut(t *testing.T) {
	pool, tickArrays := testPool(t, 1_000_000_000_000)
	desiredOut := cosmath.NewInt(1_000_000_000)

	estimate, err := EstimateSwap(pool, 2500, tickArrays, nil, false, desiredOut.Neg(), cosmath.ZeroInt())
	require.NoError(t, err)

	require.True(t, estimate.AmountOut.Equal(desiredOut))
	require.True(t, estimate.AmountIn.IsPositive())
	require.True(t, estimate.AmountIn.Add(estimate.FeeAmount).GT(estimate.AmountOut),
		"buying token0 above unit price costs more than it yields")
	require.True(t, estimate.EndSqrtPriceX64.GT(Q64))
	require.Equal(t, []int32{960}, estimate.TickArrayStartIndexes)
}

func TestEstimateSwapDirectionsDisjoint(t *testing.T) {
	pool, tickArrays := testPool(t, 1_000_000_000_000)
	amount := cosmath.NewInt(500_000_000)

	down, err := EstimateSwap(pool, 2500, tickArrays, nil, true, amount, cosmath.ZeroInt())
	require.NoError(t, err)
	up, err := EstimateSwap(pool, 2500, tickArrays, nil, false, amount, cosmath.ZeroInt())
	require.NoError(t, err)

	require.True(t, down.EndSqrtPriceX64.LT(up.EndSqrtPriceX64))
}

func TestEstimateSwapMissingTickArray(t *testing.T) {
	pool, _ := testPool(t, 1_000_000_000_000)

	_, err := EstimateSwap(pool, 2500, map[int32]*TickArrayState{}, nil, true, cosmath.NewInt(1000), cosmath.ZeroInt())
	require.ErrorIs(t, err, ErrMissingTickArray)
}

func TestEstimateSwapRunsOutOfLiquidity(t *testing.T) {
	pool, tickArrays := testPool(t, 1_000_000)

	// Asking for far more than the single position can supply drains the
	// pool past its last initialized tick.
	_, err := EstimateSwap(pool, 2500, tickArrays, nil, true, cosmath.NewInt(1_000_000_000_000), cosmath.ZeroInt())
	require.ErrorIs(t, err, ErrInsufficientLiquidity)
}

func TestEstimateSwapRespectsPriceLimit(t *testing.T) {
	pool, tickArrays := testPool(t, 1_000_000_000_000)

	limit, err := SqrtPriceX64FromTick(-10)
	require.NoError(t, err)

	// Exact-out stops at the limit and reports only what was reachable.
	estimate, err := EstimateSwap(pool, 2500, tickArrays, nil, true, cosmath.NewInt(1_000_000_000).Neg(), limit)
	require.NoError(t, err)
	require.True(t, estimate.EndSqrtPriceX64.Equal(limit))
	require.True(t, estimate.AmountOut.LT(cosmath.NewInt(1_000_000_000)))
}

func TestEstimateSwapRejectsZeroAmount(t *testing.T) {
	pool, tickArrays := testPool(t, 1_000_000_000_000)

	_, err := EstimateSwap(pool, 2500, tickArrays, nil, true, cosmath.ZeroInt(), cosmath.ZeroInt())
	require.Error(t, err)
}

func TestFirstInitializedTickArrayStartIndex(t *testing.T) {
	pool, _ := testPool(t, 1_000_000_000_000)

	down, err := FirstInitializedTickArrayStartIndex(pool, nil, true)
	require.NoError(t, err)
	require.Equal(t, int32(-1020), down)

	up, err := FirstInitializedTickArrayStartIndex(pool, nil, false)
	require.NoError(t, err)
	require.Equal(t, int32(960), up)

	// When the current array itself is initialized, it wins regardless of
	// direction.
	markArray(&pool.TickArrayBitmap, 0, 1)
	current, err := FirstInitializedTickArrayStartIndex(pool, nil, true)
	require.NoError(t, err)
	require.Zero(t, current)
}

func TestNextInitializedTickWithinArray(t *testing.T) {
	_, tickArrays := testPool(t, 1_000_000_000_000)
	lower := tickArrays[-1020]

	// Walking down from inside the array lands on the boundary tick.
	tick := lower.nextInitializedTick(-961, 1, true, false)
	require.NotNil(t, tick)
	require.Equal(t, int32(-1000), tick.Tick)

	// Walking down from below it finds nothing.
	require.Nil(t, lower.nextInitializedTick(-1001, 1, true, false))

	// A tick outside the array is not this array's business.
	require.Nil(t, lower.nextInitializedTick(0, 1, true, false))
}

func TestEstimateSwapLargerOutputWithMoreLiquidity(t *testing.T) {
	amount := cosmath.NewInt(100_000_000)

	poolThin, arraysThin := testPool(t, 10_000_000_000)
	thin, err := EstimateSwap(poolThin, 2500, arraysThin, nil, true, amount, cosmath.ZeroInt())
	require.NoError(t, err)

	poolDeep, arraysDeep := testPool(t, 1_000_000_000_000)
	deep, err := EstimateSwap(poolDeep, 2500, arraysDeep, nil, true, amount, cosmath.ZeroInt())
	require.NoError(t, err)

	require.True(t, deep.AmountOut.GT(thin.AmountOut), "deeper pool gives better execution")
}
