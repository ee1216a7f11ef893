package amm_v3

import (
	"testing"

	cosmath "cosmossdk.io/math"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestSqrtPriceX64FromTickBounds(t *testing.T) {
	minPrice, err := SqrtPriceX64FromTick(MinTick)
	require.NoError(t, err)
	require.True(t, minPrice.Equal(MinSqrtPriceX64), "got %s", minPrice)

	maxPrice, err := SqrtPriceX64FromTick(MaxTick)
	require.NoError(t, err)
	require.True(t, maxPrice.Equal(MaxSqrtPriceX64), "got %s", maxPrice)

	zero, err := SqrtPriceX64FromTick(0)
	require.NoError(t, err)
	require.True(t, zero.Equal(Q64), "tick 0 must be the fixed-point one, got %s", zero)

	_, err = SqrtPriceX64FromTick(MinTick - 1)
	require.ErrorIs(t, err, ErrTickOutOfBounds)
	_, err = SqrtPriceX64FromTick(MaxTick + 1)
	require.ErrorIs(t, err, ErrTickOutOfBounds)
}

func TestSqrtPriceX64FromTickMonotonic(t *testing.T) {
	ticks := []int32{MinTick, -443600, -100000, -29528, -1000, -64, -1, 0, 1, 64, 1000, 29528, 100000, 443600, MaxTick}
	prev := cosmath.ZeroInt()
	for _, tick := range ticks {
		price, err := SqrtPriceX64FromTick(tick)
		require.NoError(t, err)
		require.True(t, price.GT(prev), "price at tick %d must exceed the one before", tick)
		prev = price
	}
}

func TestTickSqrtPriceRoundTrip(t *testing.T) {
	ticks := []int32{
		MinTick, MinTick + 1, -443635, -250000, -100001, -38280, -1440,
		-120, -64, -2, -1, 0, 1, 2, 64, 120, 1440, 38280, 100001, 250000,
		443635, MaxTick - 1, MaxTick,
	}
	for _, tick := range ticks {
		price, err := SqrtPriceX64FromTick(tick)
		require.NoError(t, err)

		back, err := TickFromSqrtPriceX64(price)
		require.NoError(t, err)
		require.Equal(t, tick, back, "round trip through sqrt price %s", price)
	}
}

func TestTickFromSqrtPriceX64Rejects(t *testing.T) {
	_, err := TickFromSqrtPriceX64(MinSqrtPriceX64.Sub(cosmath.OneInt()))
	require.ErrorIs(t, err, ErrTickOutOfBounds)

	_, err = TickFromSqrtPriceX64(MaxSqrtPriceX64.Add(cosmath.OneInt()))
	require.ErrorIs(t, err, ErrTickOutOfBounds)
}

func TestPriceConversions(t *testing.T) {
	// A price of 1 with equal decimals sits at the fixed-point one.
	sqrtPrice := SqrtPriceX64FromPrice(decimal.NewFromInt(1), 6, 6)
	diff := sqrtPrice.Sub(Q64).Abs()
	require.True(t, diff.LTE(cosmath.OneInt()), "sqrt of unit price off by %s", diff)

	// Decimal scaling: USDC/SOL style with 6 vs 9 decimals.
	price := decimal.RequireFromString("152.75")
	sqrtPrice = SqrtPriceX64FromPrice(price, 9, 6)
	back := PriceFromSqrtPriceX64(sqrtPrice, 9, 6)
	delta := back.Sub(price).Abs()
	require.True(t, delta.LessThan(decimal.New(1, -9)), "price round trip off by %s", delta)
}

func TestPriceFromTickRoundTrip(t *testing.T) {
	for _, tick := range []int32{-30000, -600, 0, 600, 30000} {
		price, err := PriceFromTick(tick, 6, 6)
		require.NoError(t, err)

		back, err := TickFromPrice(price, 6, 6, 1, RoundingDown)
		require.NoError(t, err)
		// Decimal conversion may land one tick below the exact value.
		require.InDelta(t, tick, back, 1)
	}
}

func TestTickFromPriceRoundsPerDirection(t *testing.T) {
	price, err := PriceFromTick(1005, 6, 6)
	require.NoError(t, err)

	lower, err := TickFromPrice(price, 6, 6, 10, RoundingDown)
	require.NoError(t, err)
	require.Equal(t, int32(1000), lower)

	upper, err := TickFromPrice(price, 6, 6, 10, RoundingUp)
	require.NoError(t, err)
	require.Equal(t, int32(1010), upper)
}

func TestAlignTickToSpacing(t *testing.T) {
	tests := []struct {
		tick     int32
		spacing  uint16
		rounding Rounding
		want     int32
	}{
		{0, 10, RoundingDown, 0},
		{0, 10, RoundingUp, 0},
		{4, 10, RoundingDown, 0},
		{4, 10, RoundingUp, 10},
		{7, 10, RoundingDown, 0},
		{7, 10, RoundingUp, 10},
		{-4, 10, RoundingDown, -10},
		{-4, 10, RoundingUp, 0},
		{-7, 10, RoundingDown, -10},
		{-7, 10, RoundingUp, 0},
		{60, 10, RoundingDown, 60},
		{60, 10, RoundingUp, 60},
		{63, 64, RoundingUp, 64},
		{-63, 64, RoundingDown, -64},
		{MaxTick, 64, RoundingUp, 443584},
		{MinTick, 64, RoundingDown, -443584},
	}
	for _, tc := range tests {
		require.Equal(t, tc.want, AlignTickToSpacing(tc.tick, tc.spacing, tc.rounding),
			"align %d to spacing %d rounding %d", tc.tick, tc.spacing, tc.rounding)
	}
}
