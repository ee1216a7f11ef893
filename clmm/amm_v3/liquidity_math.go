package amm_v3

import (
	cosmath "cosmossdk.io/math"
)

// TokenAmount0FromLiquidity returns the token0 amount backing liquidity
// between two sqrt prices. Rounding up charges the depositor; rounding down
// pays the withdrawer.
func TokenAmount0FromLiquidity(sqrtPriceX64A, sqrtPriceX64B cosmath.Int, liquidity cosmath.Int, rounding Rounding) cosmath.Int {
	if sqrtPriceX64A.GT(sqrtPriceX64B) {
		sqrtPriceX64A, sqrtPriceX64B = sqrtPriceX64B, sqrtPriceX64A
	}
	if !sqrtPriceX64A.IsPositive() {
		panic("sqrt price must be positive")
	}

	numerator1 := liquidity.Mul(Q64)
	numerator2 := sqrtPriceX64B.Sub(sqrtPriceX64A)

	if rounding == RoundingUp {
		return MulDivCeil(MulDivCeil(numerator1, numerator2, sqrtPriceX64B), cosmath.OneInt(), sqrtPriceX64A)
	}
	return MulDivFloor(numerator1, numerator2, sqrtPriceX64B).Quo(sqrtPriceX64A)
}

// TokenAmount1FromLiquidity returns the token1 amount backing liquidity
// between two sqrt prices.
func TokenAmount1FromLiquidity(sqrtPriceX64A, sqrtPriceX64B cosmath.Int, liquidity cosmath.Int, rounding Rounding) cosmath.Int {
	if sqrtPriceX64A.GT(sqrtPriceX64B) {
		sqrtPriceX64A, sqrtPriceX64B = sqrtPriceX64B, sqrtPriceX64A
	}
	if !sqrtPriceX64A.IsPositive() {
		panic("sqrt price must be positive")
	}

	diff := sqrtPriceX64B.Sub(sqrtPriceX64A)
	if rounding == RoundingUp {
		return MulDivCeil(liquidity, diff, Q64)
	}
	return MulDivFloor(liquidity, diff, Q64)
}

// AmountsFromLiquidity splits a liquidity delta over a tick range into the
// token amounts it moves at the current price.
func AmountsFromLiquidity(sqrtPriceCurrentX64, sqrtPriceX64A, sqrtPriceX64B cosmath.Int, liquidity cosmath.Int, rounding Rounding) (amount0, amount1 cosmath.Int) {
	if sqrtPriceX64A.GT(sqrtPriceX64B) {
		sqrtPriceX64A, sqrtPriceX64B = sqrtPriceX64B, sqrtPriceX64A
	}

	switch {
	case sqrtPriceCurrentX64.LTE(sqrtPriceX64A):
		// Price below the range, position is entirely token0.
		return TokenAmount0FromLiquidity(sqrtPriceX64A, sqrtPriceX64B, liquidity, rounding), cosmath.ZeroInt()
	case sqrtPriceCurrentX64.LT(sqrtPriceX64B):
		amount0 = TokenAmount0FromLiquidity(sqrtPriceCurrentX64, sqrtPriceX64B, liquidity, rounding)
		amount1 = TokenAmount1FromLiquidity(sqrtPriceX64A, sqrtPriceCurrentX64, liquidity, rounding)
		return amount0, amount1
	default:
		// Price above the range, position is entirely token1.
		return cosmath.ZeroInt(), TokenAmount1FromLiquidity(sqrtPriceX64A, sqrtPriceX64B, liquidity, rounding)
	}
}

// LiquidityFromTokenAmount0 returns the largest liquidity fully backed by
// amount0 between two sqrt prices.
func LiquidityFromTokenAmount0(sqrtPriceX64A, sqrtPriceX64B cosmath.Int, amount0 cosmath.Int) cosmath.Int {
	if sqrtPriceX64A.GT(sqrtPriceX64B) {
		sqrtPriceX64A, sqrtPriceX64B = sqrtPriceX64B, sqrtPriceX64A
	}

	numerator := amount0.Mul(sqrtPriceX64A).Mul(sqrtPriceX64B)
	denominator := sqrtPriceX64B.Sub(sqrtPriceX64A)
	return numerator.Quo(denominator).Quo(Q64)
}

// LiquidityFromTokenAmount1 returns the largest liquidity fully backed by
// amount1 between two sqrt prices.
func LiquidityFromTokenAmount1(sqrtPriceX64A, sqrtPriceX64B cosmath.Int, amount1 cosmath.Int) cosmath.Int {
	if sqrtPriceX64A.GT(sqrtPriceX64B) {
		sqrtPriceX64A, sqrtPriceX64B = sqrtPriceX64B, sqrtPriceX64A
	}
	return MulDivFloor(amount1, Q64, sqrtPriceX64B.Sub(sqrtPriceX64A))
}

// LiquidityFromTokenAmounts returns the largest liquidity both deposits can
// back at the current price. Converting the result back through
// AmountsFromLiquidity never asks for more than the original amounts.
func LiquidityFromTokenAmounts(sqrtPriceCurrentX64, sqrtPriceX64A, sqrtPriceX64B cosmath.Int, amount0, amount1 cosmath.Int) cosmath.Int {
	if sqrtPriceX64A.GT(sqrtPriceX64B) {
		sqrtPriceX64A, sqrtPriceX64B = sqrtPriceX64B, sqrtPriceX64A
	}

	switch {
	case sqrtPriceCurrentX64.LTE(sqrtPriceX64A):
		return LiquidityFromTokenAmount0(sqrtPriceX64A, sqrtPriceX64B, amount0)
	case sqrtPriceCurrentX64.LT(sqrtPriceX64B):
		liquidity0 := LiquidityFromTokenAmount0(sqrtPriceCurrentX64, sqrtPriceX64B, amount0)
		liquidity1 := LiquidityFromTokenAmount1(sqrtPriceX64A, sqrtPriceCurrentX64, amount1)
		return cosmath.MinInt(liquidity0, liquidity1)
	default:
		return LiquidityFromTokenAmount1(sqrtPriceX64A, sqrtPriceX64B, amount1)
	}
}

// LiquidityFromSingleAmount0 sizes a position from a token0-only deposit,
// clamping the range to the side of the current price the deposit can fill.
func LiquidityFromSingleAmount0(sqrtPriceCurrentX64, sqrtPriceX64A, sqrtPriceX64B cosmath.Int, amount0 cosmath.Int) cosmath.Int {
	if sqrtPriceX64A.GT(sqrtPriceX64B) {
		sqrtPriceX64A, sqrtPriceX64B = sqrtPriceX64B, sqrtPriceX64A
	}
	if sqrtPriceCurrentX64.GT(sqrtPriceX64A) && sqrtPriceCurrentX64.LT(sqrtPriceX64B) {
		sqrtPriceX64A = sqrtPriceCurrentX64
	}
	return LiquidityFromTokenAmount0(sqrtPriceX64A, sqrtPriceX64B, amount0)
}

// LiquidityFromSingleAmount1 sizes a position from a token1-only deposit.
func LiquidityFromSingleAmount1(sqrtPriceCurrentX64, sqrtPriceX64A, sqrtPriceX64B cosmath.Int, amount1 cosmath.Int) cosmath.Int {
	if sqrtPriceX64A.GT(sqrtPriceX64B) {
		sqrtPriceX64A, sqrtPriceX64B = sqrtPriceX64B, sqrtPriceX64A
	}
	if sqrtPriceCurrentX64.GT(sqrtPriceX64A) && sqrtPriceCurrentX64.LT(sqrtPriceX64B) {
		sqrtPriceX64B = sqrtPriceCurrentX64
	}
	return LiquidityFromTokenAmount1(sqrtPriceX64A, sqrtPriceX64B, amount1)
}
