package amm_v3

import (
	"fmt"

	cosmath "cosmossdk.io/math"
)

// swapStep is the outcome of moving the price within a single liquidity
// region, at most up to the target price.
type swapStep struct {
	sqrtPriceNextX64 cosmath.Int
	amountIn         cosmath.Int
	amountOut        cosmath.Int
	feeAmount        cosmath.Int
}

// computeSwapStep advances the price toward target within constant
// liquidity. baseInput is signalled by a non-negative amountRemaining; exact
// output passes the still-owed output negated.
func computeSwapStep(
	sqrtPriceCurrentX64, sqrtPriceTargetX64 cosmath.Int,
	liquidity cosmath.Int,
	amountRemaining cosmath.Int,
	feeRate uint32,
	zeroForOne bool,
) swapStep {
	var step swapStep
	baseInput := !amountRemaining.IsNegative()
	feeRateInt := cosmath.NewInt(int64(feeRate))

	if baseInput {
		amountRemainingSubtractFee := MulDivFloor(
			amountRemaining, FeeRateDenominator.Sub(feeRateInt), FeeRateDenominator,
		)
		if zeroForOne {
			step.amountIn = TokenAmount0FromLiquidity(sqrtPriceTargetX64, sqrtPriceCurrentX64, liquidity, RoundingUp)
		} else {
			step.amountIn = TokenAmount1FromLiquidity(sqrtPriceCurrentX64, sqrtPriceTargetX64, liquidity, RoundingUp)
		}
		if amountRemainingSubtractFee.GTE(step.amountIn) {
			step.sqrtPriceNextX64 = sqrtPriceTargetX64
		} else {
			step.sqrtPriceNextX64 = nextSqrtPriceX64FromInput(sqrtPriceCurrentX64, liquidity, amountRemainingSubtractFee, zeroForOne)
		}
	} else {
		if zeroForOne {
			step.amountOut = TokenAmount1FromLiquidity(sqrtPriceTargetX64, sqrtPriceCurrentX64, liquidity, RoundingDown)
		} else {
			step.amountOut = TokenAmount0FromLiquidity(sqrtPriceCurrentX64, sqrtPriceTargetX64, liquidity, RoundingDown)
		}
		if amountRemaining.Neg().GTE(step.amountOut) {
			step.sqrtPriceNextX64 = sqrtPriceTargetX64
		} else {
			step.sqrtPriceNextX64 = nextSqrtPriceX64FromOutput(sqrtPriceCurrentX64, liquidity, amountRemaining.Neg(), zeroForOne)
		}
	}

	reachTarget := step.sqrtPriceNextX64.Equal(sqrtPriceTargetX64)

	if zeroForOne {
		if !(reachTarget && baseInput) {
			step.amountIn = TokenAmount0FromLiquidity(step.sqrtPriceNextX64, sqrtPriceCurrentX64, liquidity, RoundingUp)
		}
		if !(reachTarget && !baseInput) {
			step.amountOut = TokenAmount1FromLiquidity(step.sqrtPriceNextX64, sqrtPriceCurrentX64, liquidity, RoundingDown)
		}
	} else {
		if !(reachTarget && baseInput) {
			step.amountIn = TokenAmount1FromLiquidity(sqrtPriceCurrentX64, step.sqrtPriceNextX64, liquidity, RoundingUp)
		}
		if !(reachTarget && !baseInput) {
			step.amountOut = TokenAmount0FromLiquidity(sqrtPriceCurrentX64, step.sqrtPriceNextX64, liquidity, RoundingDown)
		}
	}

	if !baseInput && step.amountOut.GT(amountRemaining.Neg()) {
		step.amountOut = amountRemaining.Neg()
	}

	if baseInput && !step.sqrtPriceNextX64.Equal(sqrtPriceTargetX64) {
		// Price stopped short of the target, everything left is fee.
		step.feeAmount = amountRemaining.Sub(step.amountIn)
	} else {
		step.feeAmount = MulDivCeil(step.amountIn, feeRateInt, FeeRateDenominator.Sub(feeRateInt))
	}
	return step
}

func nextSqrtPriceX64FromInput(sqrtPriceX64, liquidity, amount cosmath.Int, zeroForOne bool) cosmath.Int {
	if !sqrtPriceX64.IsPositive() || !liquidity.IsPositive() {
		panic("sqrt price and liquidity must be positive")
	}
	if amount.IsZero() {
		return sqrtPriceX64
	}
	if zeroForOne {
		return nextSqrtPriceFromAmount0RoundingUp(sqrtPriceX64, liquidity, amount, true)
	}
	return nextSqrtPriceFromAmount1RoundingDown(sqrtPriceX64, liquidity, amount, true)
}

func nextSqrtPriceX64FromOutput(sqrtPriceX64, liquidity, amount cosmath.Int, zeroForOne bool) cosmath.Int {
	if !sqrtPriceX64.IsPositive() || !liquidity.IsPositive() {
		panic("sqrt price and liquidity must be positive")
	}
	if zeroForOne {
		return nextSqrtPriceFromAmount1RoundingDown(sqrtPriceX64, liquidity, amount, false)
	}
	return nextSqrtPriceFromAmount0RoundingUp(sqrtPriceX64, liquidity, amount, false)
}

// nextSqrtPriceFromAmount0RoundingUp solves for the price after adding
// (add=true) or removing token0. Rounds up so the pool never undercharges.
func nextSqrtPriceFromAmount0RoundingUp(sqrtPriceX64, liquidity, amount cosmath.Int, add bool) cosmath.Int {
	if amount.IsZero() {
		return sqrtPriceX64
	}
	liquidityShifted := liquidity.Mul(Q64)

	if add {
		denominator := liquidityShifted.Add(amount.Mul(sqrtPriceX64))
		if denominator.GTE(liquidityShifted) {
			return MulDivCeil(liquidityShifted, sqrtPriceX64, denominator)
		}
		temp := liquidityShifted.Quo(sqrtPriceX64).Add(amount)
		return cosmath.NewIntFromBigInt(mulDivRoundingUp(liquidityShifted.BigInt(), oneBig, temp.BigInt()))
	}

	amountMulSqrtPrice := amount.Mul(sqrtPriceX64)
	if liquidityShifted.LTE(amountMulSqrtPrice) {
		panic("requested output exceeds pool token0 reserves")
	}
	return MulDivCeil(liquidityShifted, sqrtPriceX64, liquidityShifted.Sub(amountMulSqrtPrice))
}

// nextSqrtPriceFromAmount1RoundingDown solves for the price after adding
// (add=true) or removing token1.
func nextSqrtPriceFromAmount1RoundingDown(sqrtPriceX64, liquidity, amount cosmath.Int, add bool) cosmath.Int {
	deltaY := amount.Mul(Q64)

	if add {
		return sqrtPriceX64.Add(deltaY.Quo(liquidity))
	}

	amountDivLiquidity := cosmath.NewIntFromBigInt(mulDivRoundingUp(deltaY.BigInt(), oneBig, liquidity.BigInt()))
	if sqrtPriceX64.LTE(amountDivLiquidity) {
		panic("requested output exceeds pool token1 reserves")
	}
	return sqrtPriceX64.Sub(amountDivLiquidity)
}

// SwapEstimate is the result of simulating a swap against loaded tick
// arrays.
type SwapEstimate struct {
	AmountIn  cosmath.Int
	AmountOut cosmath.Int
	FeeAmount cosmath.Int

	EndSqrtPriceX64 cosmath.Int
	EndTick         int32

	// TickArrayStartIndexes lists every array the simulated price path
	// touched, in crossing order starting with the current one. The swap
	// instruction passes these as remaining accounts.
	TickArrayStartIndexes []int32
}

const maxSwapLoops = 100

// EstimateSwap walks the price through the supplied tick arrays.
// amountSpecified is the input amount when positive (exact in) and the
// negated desired output when negative (exact out). sqrtPriceLimitX64 of
// zero means no limit beyond the representable price range.
func EstimateSwap(
	pool *PoolState,
	feeRate uint32,
	tickArrays map[int32]*TickArrayState,
	ext *TickArrayBitmapExtension,
	zeroForOne bool,
	amountSpecified cosmath.Int,
	sqrtPriceLimitX64 cosmath.Int,
) (*SwapEstimate, error) {
	if amountSpecified.IsZero() {
		return nil, fmt.Errorf("swap amount must be non-zero")
	}

	baseInput := amountSpecified.IsPositive()

	if sqrtPriceLimitX64.IsNil() || sqrtPriceLimitX64.IsZero() {
		if zeroForOne {
			sqrtPriceLimitX64 = MinSqrtPriceX64.Add(cosmath.OneInt())
		} else {
			sqrtPriceLimitX64 = MaxSqrtPriceX64.Sub(cosmath.OneInt())
		}
	}

	firstArrayStartIndex, err := FirstInitializedTickArrayStartIndex(pool, ext, zeroForOne)
	if err != nil {
		return nil, err
	}

	est := &SwapEstimate{
		AmountIn:              cosmath.ZeroInt(),
		AmountOut:             cosmath.ZeroInt(),
		FeeAmount:             cosmath.ZeroInt(),
		TickArrayStartIndexes: []int32{firstArrayStartIndex},
	}

	// When the current tick sits past the first initialized array, clamp the
	// walk entry point to that array's last tick.
	tick := pool.TickCurrent
	if tick > firstArrayStartIndex {
		if last := firstArrayStartIndex + TickArraySpan(pool.TickSpacing) - 1; last < tick {
			tick = last
		}
	} else {
		tick = firstArrayStartIndex
	}

	amountRemaining := amountSpecified
	sqrtPriceX64 := pool.SqrtPrice()
	liquidity := cosmath.NewIntFromBigInt(pool.Liquidity.Big())
	currentArrayStartIndex := firstArrayStartIndex

	currentArray, ok := tickArrays[currentArrayStartIndex]
	if !ok {
		return nil, fmt.Errorf("%w: start index %d", ErrMissingTickArray, currentArrayStartIndex)
	}

	atArrayStart := !zeroForOne && currentArray.StartTickIndex == tick

	for loop := 0; ; loop++ {
		if amountRemaining.IsZero() || sqrtPriceX64.Equal(sqrtPriceLimitX64) {
			break
		}
		if loop >= maxSwapLoops {
			return nil, fmt.Errorf("swap estimate did not converge")
		}

		sqrtPriceStartX64 := sqrtPriceX64
		nextInitTick := currentArray.nextInitializedTick(tick, pool.TickSpacing, zeroForOne, atArrayStart)

		if nextInitTick == nil || !nextInitTick.IsInitialized() {
			found, nextArrayStartIndex, err := NextInitializedTickArrayStartIndex(
				ext, tick, pool.TickSpacing, pool.TickArrayBitmap, zeroForOne,
			)
			if err != nil {
				return nil, err
			}
			if !found {
				return nil, fmt.Errorf("%w: no initialized tick array past tick %d", ErrInsufficientLiquidity, tick)
			}

			currentArrayStartIndex = nextArrayStartIndex
			currentArray, ok = tickArrays[currentArrayStartIndex]
			if !ok {
				return nil, fmt.Errorf("%w: start index %d", ErrMissingTickArray, currentArrayStartIndex)
			}
			est.TickArrayStartIndexes = append(est.TickArrayStartIndexes, currentArrayStartIndex)

			nextInitTick, err = currentArray.firstInitializedTick(zeroForOne)
			if err != nil {
				return nil, err
			}
		}

		tickNext := nextInitTick.Tick
		initialized := nextInitTick.IsInitialized()
		if tickNext < MinTick {
			tickNext = MinTick
		} else if tickNext > MaxTick {
			tickNext = MaxTick
		}

		sqrtPriceNextX64, err := SqrtPriceX64FromTick(tickNext)
		if err != nil {
			return nil, err
		}

		var targetPrice cosmath.Int
		if (zeroForOne && sqrtPriceNextX64.LT(sqrtPriceLimitX64)) ||
			(!zeroForOne && sqrtPriceNextX64.GT(sqrtPriceLimitX64)) {
			targetPrice = sqrtPriceLimitX64
		} else {
			targetPrice = sqrtPriceNextX64
		}

		step := computeSwapStep(sqrtPriceX64, targetPrice, liquidity, amountRemaining, feeRate, zeroForOne)
		sqrtPriceX64 = step.sqrtPriceNextX64

		est.AmountIn = est.AmountIn.Add(step.amountIn)
		est.AmountOut = est.AmountOut.Add(step.amountOut)
		est.FeeAmount = est.FeeAmount.Add(step.feeAmount)
		if baseInput {
			amountRemaining = amountRemaining.Sub(step.amountIn.Add(step.feeAmount))
		} else {
			amountRemaining = amountRemaining.Add(step.amountOut)
		}

		if sqrtPriceX64.Equal(sqrtPriceNextX64) {
			if initialized {
				liquidityNet := nextInitTick.LiquidityNet
				if zeroForOne {
					liquidityNet = liquidityNet.Neg()
				}
				liquidity = liquidity.Add(liquidityNet)
			}
			atArrayStart = tickNext != tick && !zeroForOne && currentArray.StartTickIndex == tickNext
			if zeroForOne {
				tick = tickNext - 1
			} else {
				tick = tickNext
			}
		} else if !sqrtPriceX64.Equal(sqrtPriceStartX64) {
			crossed, err := TickFromSqrtPriceX64(sqrtPriceX64)
			if err != nil {
				return nil, err
			}
			atArrayStart = crossed != tick && !zeroForOne && currentArray.StartTickIndex == crossed
			tick = crossed
		}
	}

	if baseInput && !amountRemaining.IsZero() && sqrtPriceX64.Equal(sqrtPriceLimitX64) {
		return nil, fmt.Errorf("%w: input not fully consumed before price limit", ErrInsufficientLiquidity)
	}

	est.EndSqrtPriceX64 = sqrtPriceX64
	est.EndTick = tick
	return est, nil
}

// FirstInitializedTickArrayStartIndex locates the array the swap starts
// crossing from, which is the one containing the current tick when
// initialized, otherwise the nearest initialized array in the swap
// direction.
func FirstInitializedTickArrayStartIndex(pool *PoolState, ext *TickArrayBitmapExtension, zeroForOne bool) (int32, error) {
	startIndex := TickArrayStartIndex(pool.TickCurrent, pool.TickSpacing)

	var initialized bool
	if IsOverflowDefaultBitmap(pool.TickCurrent, pool.TickSpacing) {
		if ext != nil {
			initialized = ext.IsTickArrayInitialized(startIndex, pool.TickSpacing)
		}
	} else {
		initialized = IsTickArrayInitialized(pool.TickArrayBitmap, pool.TickCurrent, pool.TickSpacing)
	}
	if initialized {
		return startIndex, nil
	}

	found, nextStartIndex, err := NextInitializedTickArrayStartIndex(
		ext, pool.TickCurrent, pool.TickSpacing, pool.TickArrayBitmap, zeroForOne,
	)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, fmt.Errorf("%w: pool has no initialized tick arrays", ErrInsufficientLiquidity)
	}
	return nextStartIndex, nil
}

// nextInitializedTick scans this array from currentTick in the swap
// direction. atArrayStart marks that the previous crossing landed exactly on
// the array's first tick, which must not be skipped on an upward walk.
func (t *TickArrayState) nextInitializedTick(currentTick int32, tickSpacing uint16, zeroForOne, atArrayStart bool) *TickState {
	if TickArrayStartIndex(currentTick, tickSpacing) != t.StartTickIndex {
		return nil
	}

	offset := (currentTick - t.StartTickIndex) / int32(tickSpacing)
	if zeroForOne {
		for ; offset >= 0; offset-- {
			if t.Ticks[offset].IsInitialized() {
				return &t.Ticks[offset]
			}
		}
	} else {
		if !atArrayStart {
			offset++
		}
		for ; offset < TickArraySize; offset++ {
			if t.Ticks[offset].IsInitialized() {
				return &t.Ticks[offset]
			}
		}
	}
	return nil
}

// firstInitializedTick returns the initialized tick a swap entering this
// array meets first.
func (t *TickArrayState) firstInitializedTick(zeroForOne bool) (*TickState, error) {
	if zeroForOne {
		for i := TickArraySize - 1; i >= 0; i-- {
			if t.Ticks[i].IsInitialized() {
				return &t.Ticks[i], nil
			}
		}
	} else {
		for i := 0; i < TickArraySize; i++ {
			if t.Ticks[i].IsInitialized() {
				return &t.Ticks[i], nil
			}
		}
	}
	return nil, fmt.Errorf("%w: tick array %d has no initialized tick", ErrInsufficientLiquidity, t.StartTickIndex)
}
