package amm_v3

import (
	"math/big"

	cosmath "cosmossdk.io/math"
)

var oneBig = big.NewInt(1)

// MulDivFloor computes a*b/denominator truncated toward zero.
func MulDivFloor(a, b, denominator cosmath.Int) cosmath.Int {
	if denominator.IsZero() {
		panic("division by zero")
	}
	return a.Mul(b).Quo(denominator)
}

// MulDivCeil computes a*b/denominator rounded up.
func MulDivCeil(a, b, denominator cosmath.Int) cosmath.Int {
	if denominator.IsZero() {
		panic("division by zero")
	}
	numerator := a.Mul(b).Add(denominator.Sub(cosmath.OneInt()))
	return numerator.Quo(denominator)
}

func mulDivRoundingUp(a, b, denominator *big.Int) *big.Int {
	numerator := new(big.Int).Mul(a, b)
	result, rem := new(big.Int).QuoRem(numerator, denominator, new(big.Int))
	if rem.Sign() != 0 {
		result.Add(result, big.NewInt(1))
	}
	return result
}

// mulRightShift multiplies two Q64.64 values, dropping the low 64 fractional
// bits of the product.
func mulRightShift(val, mulBy cosmath.Int) cosmath.Int {
	return val.Mul(mulBy).Quo(Q64)
}

func absInt64(x int64) int64 {
	if x < 0 {
		return -x
	}
	return x
}

// leadingZeros counts zero bits from bit bitNum-1 down to the highest set
// bit, nil when the masked value is zero.
func leadingZeros(bitNum int, data *big.Int) *int {
	if isZeroBits(bitNum, data) {
		return nil
	}
	count := 0
	for j := bitNum - 1; j >= 0; j-- {
		if data.Bit(j) == 0 {
			count++
		} else {
			break
		}
	}
	return &count
}

// trailingZeros counts zero bits upward from bit 0, nil when the masked
// value is zero.
func trailingZeros(bitNum int, data *big.Int) *int {
	if isZeroBits(bitNum, data) {
		return nil
	}
	count := 0
	for j := 0; j < bitNum; j++ {
		if data.Bit(j) == 0 {
			count++
		} else {
			break
		}
	}
	return &count
}

// isZeroBits reports whether the low bitNum bits of data are all zero.
func isZeroBits(bitNum int, data *big.Int) bool {
	mask := new(big.Int).Lsh(big.NewInt(1), uint(bitNum))
	mask.Sub(mask, big.NewInt(1))
	return new(big.Int).And(data, mask).Sign() == 0
}
