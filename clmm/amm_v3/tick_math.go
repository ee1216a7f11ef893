package amm_v3

import (
	"fmt"
	"math/big"

	cosmath "cosmossdk.io/math"
	"github.com/shopspring/decimal"

	"github.com/goran9999/raydium-clmm/decimal_math"
)

var (
	bitPrecision = 14

	// log2(sqrt(1.0001)) in Q32.32, and the rounding error margins of the
	// fixed-point log below in Q64.64.
	logB2X32, _               = cosmath.NewIntFromString("59543866431248")
	logBPErrMarginLowerX64, _ = cosmath.NewIntFromString("184467440737095516")
	logBPErrMarginUpperX64, _ = cosmath.NewIntFromString("15793534762490258745")

	// sqrt(1.0001)^(2^k) factors in Q64.64, k = 0..18, used by the
	// bit-ladder in SqrtPriceX64FromTick. tickLadder[0] holds the base
	// factor for odd ticks.
	tickLadder = mustTickLadder([]string{
		"18445821805675395072",
		"18444899583751176192",
		"18443055278223355904",
		"18439367220385607680",
		"18431993317065453568",
		"18417254355718170624",
		"18387811781193609216",
		"18329067761203558400",
		"18212142134806163456",
		"17980523815641700352",
		"17526086738831433728",
		"16651378430235570176",
		"15030750278694412288",
		"12247334978884435968",
		"8131365268886854656",
		"3584323654725218816",
		"696457651848324352",
		"26294789957507116",
		"37481735321082",
	})
)

func mustTickLadder(values []string) []cosmath.Int {
	ladder := make([]cosmath.Int, len(values))
	for i, v := range values {
		n, ok := cosmath.NewIntFromString(v)
		if !ok {
			panic("bad tick ladder constant: " + v)
		}
		ladder[i] = n
	}
	return ladder
}

// SqrtPriceX64FromTick converts a tick index to the Q64.64 sqrt price
// sqrt(1.0001^tick) * 2^64.
func SqrtPriceX64FromTick(tick int32) (cosmath.Int, error) {
	if tick < MinTick || tick > MaxTick {
		return cosmath.Int{}, fmt.Errorf("%w: tick %d", ErrTickOutOfBounds, tick)
	}

	tickAbs := tick
	if tick < 0 {
		tickAbs = -tick
	}

	ratio := Q64
	if (tickAbs & 0x1) != 0 {
		ratio = tickLadder[0]
	}
	for k := 1; k < len(tickLadder); k++ {
		if (tickAbs & (1 << uint(k))) != 0 {
			ratio = mulRightShift(ratio, tickLadder[k])
		}
	}

	// Ticks above zero are the reciprocal of the negative-tick ladder.
	if tick > 0 {
		ratio = MaxUint128.Quo(ratio)
	}

	return ratio, nil
}

// TickFromSqrtPriceX64 inverts SqrtPriceX64FromTick: it returns the largest
// tick whose sqrt price does not exceed the argument.
func TickFromSqrtPriceX64(sqrtPriceX64 cosmath.Int) (int32, error) {
	if sqrtPriceX64.GT(MaxSqrtPriceX64) || sqrtPriceX64.LT(MinSqrtPriceX64) {
		return 0, fmt.Errorf("%w: sqrt price %s outside supported range", ErrTickOutOfBounds, sqrtPriceX64)
	}

	// Integer part of log2(price) relative to the Q64.64 fixed point.
	msb := sqrtPriceX64.BigInt().BitLen() - 1
	log2pIntegerX32 := new(big.Int).Lsh(big.NewInt(int64(msb-64)), 32)

	// Fractional part by repeated squaring, bitPrecision bits deep.
	var r *big.Int
	if msb >= 64 {
		r = new(big.Int).Rsh(sqrtPriceX64.BigInt(), uint(msb-63))
	} else {
		r = new(big.Int).Lsh(sqrtPriceX64.BigInt(), uint(63-msb))
	}

	bit, _ := new(big.Int).SetString("8000000000000000", 16)
	log2pFractionX64 := big.NewInt(0)
	for precision := 0; bit.Sign() > 0 && precision < bitPrecision; precision++ {
		r = new(big.Int).Mul(r, r)
		rMoreThanTwo := new(big.Int).Rsh(r, 127)
		r = new(big.Int).Rsh(r, uint(63+rMoreThanTwo.Int64()))
		log2pFractionX64.Add(log2pFractionX64, new(big.Int).Mul(bit, rMoreThanTwo))
		bit = new(big.Int).Rsh(bit, 1)
	}

	log2pFractionX32 := new(big.Int).Rsh(log2pFractionX64, 32)
	log2pX32 := new(big.Int).Add(log2pIntegerX32, log2pFractionX32)
	logbpX64 := new(big.Int).Mul(log2pX32, logB2X32.BigInt())

	tickLow32 := new(big.Int).Rsh(
		new(big.Int).Sub(logbpX64, logBPErrMarginLowerX64.BigInt()), 64,
	).Int64()
	tickHigh32 := new(big.Int).Rsh(
		new(big.Int).Add(logbpX64, logBPErrMarginUpperX64.BigInt()), 64,
	).Int64()

	tickLow, tickHigh := int32(tickLow32), int32(tickHigh32)
	if tickLow == tickHigh {
		return tickLow, nil
	}

	// The margins bracket the true tick by at most one, disambiguate by
	// converting back.
	derived, err := SqrtPriceX64FromTick(tickHigh)
	if err != nil {
		return 0, err
	}
	if derived.LTE(sqrtPriceX64) {
		return tickHigh, nil
	}
	return tickLow, nil
}

// SqrtPriceX64FromPrice converts a human-readable token1/token0 price
// (adjusted for mint decimals) to the Q64.64 sqrt price.
func SqrtPriceX64FromPrice(price decimal.Decimal, decimals0, decimals1 uint8) cosmath.Int {
	scaled := price.Mul(decimal_math.Pow10(int(decimals1) - int(decimals0)))
	sqrt := decimal_math.Sqrt(scaled, 256)
	return cosmath.NewIntFromBigInt(sqrt.Mul(decimal.NewFromBigInt(Q64.BigInt(), 0)).BigInt())
}

// PriceFromSqrtPriceX64 is the inverse of SqrtPriceX64FromPrice.
func PriceFromSqrtPriceX64(sqrtPriceX64 cosmath.Int, decimals0, decimals1 uint8) decimal.Decimal {
	sqrt := decimal.NewFromBigInt(sqrtPriceX64.BigInt(), 0).
		DivRound(decimal.NewFromBigInt(Q64.BigInt(), 0), 40)
	return sqrt.Mul(sqrt).Mul(decimal_math.Pow10(int(decimals0) - int(decimals1)))
}

// TickFromPrice returns a spacing-aligned tick for a price. When the raw
// tick falls between two multiples of the spacing, rounding picks the
// direction: down for a lower-bound tick, up for an upper bound.
func TickFromPrice(price decimal.Decimal, decimals0, decimals1 uint8, tickSpacing uint16, rounding Rounding) (int32, error) {
	sqrtPriceX64 := SqrtPriceX64FromPrice(price, decimals0, decimals1)
	tick, err := TickFromSqrtPriceX64(sqrtPriceX64)
	if err != nil {
		return 0, err
	}
	return AlignTickToSpacing(tick, tickSpacing, rounding), nil
}

// PriceFromTick returns the price at a tick, adjusted for mint decimals.
func PriceFromTick(tick int32, decimals0, decimals1 uint8) (decimal.Decimal, error) {
	sqrtPriceX64, err := SqrtPriceX64FromTick(tick)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return PriceFromSqrtPriceX64(sqrtPriceX64, decimals0, decimals1), nil
}

// AlignTickToSpacing snaps a tick to a multiple of the spacing in the given
// direction, clamped into the representable domain. An aligned tick is
// returned unchanged regardless of the direction.
func AlignTickToSpacing(tick int32, tickSpacing uint16, rounding Rounding) int32 {
	spacing := int32(tickSpacing)
	quotient := tick / spacing
	remainder := tick % spacing
	if remainder != 0 {
		// Integer division truncates toward zero, so positive ticks are
		// already floored and negative ones already ceiled.
		switch {
		case rounding == RoundingUp && tick > 0:
			quotient++
		case rounding == RoundingDown && tick < 0:
			quotient--
		}
	}
	aligned := quotient * spacing
	if aligned < MinTick {
		aligned += spacing
	} else if aligned > MaxTick {
		aligned -= spacing
	}
	return aligned
}
