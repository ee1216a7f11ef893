package amm_v3

import "errors"

var (
	// ErrInvalidSeed is returned when a derivation input violates the
	// program's seed rules, e.g. a tick-array start index that is not a
	// multiple of the array span.
	ErrInvalidSeed = errors.New("invalid derivation seed")

	// ErrInvalidRange is returned for tick ranges that are empty, inverted
	// or not aligned to the pool's tick spacing.
	ErrInvalidRange = errors.New("invalid tick range")

	// ErrTickOutOfBounds is returned when a tick falls outside the
	// representable [MinTick, MaxTick] interval.
	ErrTickOutOfBounds = errors.New("tick out of bounds")

	// ErrInsufficientLiquidity is returned when a swap estimate runs out of
	// initialized tick arrays before consuming the input amount.
	ErrInsufficientLiquidity = errors.New("insufficient liquidity")

	// ErrSnapshotDecode is returned when raw account data does not match the
	// program's binary layout. This is a versioned-contract violation, not a
	// recoverable condition.
	ErrSnapshotDecode = errors.New("snapshot decode failure")

	// ErrMissingTickArray is returned when a swap estimate needs a tick
	// array the caller did not supply.
	ErrMissingTickArray = errors.New("tick array not loaded")
)
