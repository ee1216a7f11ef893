package clmm

import (
	"errors"

	"github.com/goran9999/raydium-clmm/clmm/amm_v3"
)

// Sentinels shared with the program-level package, re-exported so callers
// can match every failure of this module with a single import.
var (
	ErrInvalidSeed           = amm_v3.ErrInvalidSeed
	ErrInvalidRange          = amm_v3.ErrInvalidRange
	ErrTickOutOfBounds       = amm_v3.ErrTickOutOfBounds
	ErrInsufficientLiquidity = amm_v3.ErrInsufficientLiquidity
	ErrSnapshotDecode        = amm_v3.ErrSnapshotDecode
)

var (
	// ErrAccountResolution is returned when a required account cannot be
	// derived or is missing from the snapshot.
	ErrAccountResolution = errors.New("account resolution failed")

	// ErrStaleSnapshot is returned when a builder is handed chain state
	// older than the client's freshness bound.
	ErrStaleSnapshot = errors.New("snapshot too old")

	// ErrSlippageExceeded is returned by the pre-submit check when the
	// amounts computed from the snapshot already violate the caller's
	// limits.
	ErrSlippageExceeded = errors.New("slippage tolerance exceeded")

	// ErrTransactionTooLarge is returned when an atomic instruction set
	// cannot fit a single transaction.
	ErrTransactionTooLarge = errors.New("transaction exceeds size limit")

	// ErrRoutingDisabled is returned by SwapRoute when the client was built
	// without WithRoutedSwaps.
	ErrRoutingDisabled = errors.New("routed swaps not enabled")
)

// Recoverable reports whether retrying with a fresh snapshot can clear the
// error. Decode failures, invalid inputs and oversized transactions are
// deterministic and will fail again.
func Recoverable(err error) bool {
	return errors.Is(err, ErrStaleSnapshot) ||
		errors.Is(err, ErrSlippageExceeded) ||
		errors.Is(err, ErrAccountResolution) ||
		errors.Is(err, ErrInsufficientLiquidity)
}
