package amm_v3

import (
	"math/big"

	cosmath "cosmossdk.io/math"
	"github.com/gagliardetto/solana-go"
)

// ProgramID is the mainnet address of the concentrated-liquidity AMM
// program.
var ProgramID = solana.MustPublicKeyFromBase58("CAMMCzo5YL8w4VFF8KVHrK22GGUsp5VTaW7grrKgrWqK")

var MemoProgramID = solana.MustPublicKeyFromBase58("MemoSq4gqABAXKb96qnH8TysNcWxMyWCqXgDLGmfcHr")

// Account key constants used to build anchor account discriminators.
var (
	AccountKeyAmmConfig                = "AmmConfig"
	AccountKeyPoolState                = "PoolState"
	AccountKeyPersonalPositionState    = "PersonalPositionState"
	AccountKeyProtocolPositionState    = "ProtocolPositionState"
	AccountKeyTickArrayState           = "TickArrayState"
	AccountKeyObservationState         = "ObservationState"
	AccountKeyTickArrayBitmapExtension = "TickArrayBitmapExtension"
)

// PDA seed tags, byte-identical to the on-chain program's declarations.
var (
	AmmConfigSeed       = "amm_config"
	PoolSeed            = "pool"
	PoolVaultSeed       = "pool_vault"
	ObservationSeed     = "observation"
	PositionSeed        = "position"
	TickArraySeed       = "tick_array"
	BitmapExtensionSeed = "pool_tick_array_bitmap_extension"
	OperationSeed       = "operation"
)

const (
	// TickArraySize is the number of tick slots stored per tick-array account.
	TickArraySize = 60

	// TickArrayBitmapSize is the bit width of the pool's default tick-array
	// bitmap ([16]uint64 = 1024 bits, 512 per direction).
	TickArrayBitmapSize = 512

	// ExtensionBitmapSize is the per-direction word-group count of the
	// tick-array bitmap extension account.
	ExtensionBitmapSize = 14

	MinTick = -443636
	MaxTick = 443636

	// U64Resolution is the fractional bit count of the Q64.64 sqrt-price.
	U64Resolution = 64

	// PoolStateLen is the serialized pool account size including the
	// discriminator.
	PoolStateLen = 1544

	// TickArrayStateLen is the serialized tick-array account size including
	// the discriminator.
	TickArrayStateLen = 10240
)

var (
	MinSqrtPriceX64    = cosmath.NewInt(4295048016)
	MaxSqrtPriceX64, _ = cosmath.NewIntFromString("79226673515401279992447579055")

	FeeRateDenominator = cosmath.NewInt(1_000_000)

	// Q64 and Q128 are the fixed-point scale factors (2^64 and 2^128).
	Q64  = cosmath.NewIntFromBigInt(new(big.Int).Lsh(big.NewInt(1), 64))
	Q128 = cosmath.NewIntFromBigInt(new(big.Int).Lsh(big.NewInt(1), 128))

	MaxUint128 = cosmath.NewIntFromBigInt(new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1)))
)

// Rounding selects the integer truncation direction of the tick and
// liquidity math. The safe direction depends on which side of a transfer the
// caller sits: deposits round against the user, withdrawals round against the
// pool.
type Rounding uint8

const (
	RoundingDown Rounding = iota
	RoundingUp
)
