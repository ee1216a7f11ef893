package clmm

import (
	"bytes"
	"testing"
	"time"

	cosmath "cosmossdk.io/math"
	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"lukechampine.com/uint128"

	"github.com/goran9999/raydium-clmm/clmm/amm_v3"
)

var testOwner = solana.MustPublicKeyFromBase58("6tBou5MHL5aWpDy6cgf3wiwGGK2mR8qs68ujtpaoWrf2")

func markBitmap(bitmap *[16]uint64, startIndex int32, tickSpacing uint16) {
	bitPos := startIndex/amm_v3.TickArraySpan(tickSpacing) + amm_v3.TickArrayBitmapSize
	bitmap[bitPos/64] |= 1 << uint(bitPos%64)
}

// newTestSnapshot builds a pool at tick 0 with one position spanning
// [-1000, 1000) when the spacing is 1, or an empty tick landscape
// otherwise.
func newTestSnapshot(t *testing.T, tickSpacing uint16) *Snapshot {
	t.Helper()

	mintA := solana.NewWallet().PublicKey()
	mintB := solana.NewWallet().PublicKey()
	mint0, mint1 := amm_v3.SortMints(mintA, mintB)

	pool := &amm_v3.PoolState{
		AmmConfig:      solana.NewWallet().PublicKey(),
		TokenMint0:     mint0,
		TokenMint1:     mint1,
		TokenVault0:    solana.NewWallet().PublicKey(),
		TokenVault1:    solana.NewWallet().PublicKey(),
		ObservationKey: solana.NewWallet().PublicKey(),
		MintDecimals0:  6,
		MintDecimals1:  6,
		TickSpacing:    tickSpacing,
		TickCurrent:    0,
		Liquidity:      uint128.From64(1_000_000_000_000),
		SqrtPriceX64:   uint128.FromBig(amm_v3.Q64.BigInt()),
	}

	snapshot := &Snapshot{
		PoolID:     solana.NewWallet().PublicKey(),
		Pool:       pool,
		AmmConfig:  &amm_v3.AmmConfigState{TradeFeeRate: 2500, TickSpacing: tickSpacing},
		TickArrays: map[int32]*amm_v3.TickArrayState{},
		TakenAt:    time.Now(),
	}

	if tickSpacing == 1 {
		lower := &amm_v3.TickArrayState{PoolID: snapshot.PoolID, StartTickIndex: -1020}
		lower.Ticks[20] = amm_v3.TickState{
			Tick:           -1000,
			LiquidityNet:   cosmath.NewInt(1_000_000_000_000),
			LiquidityGross: uint128.From64(1_000_000_000_000),
		}
		upper := &amm_v3.TickArrayState{PoolID: snapshot.PoolID, StartTickIndex: 960}
		upper.Ticks[40] = amm_v3.TickState{
			Tick:           1000,
			LiquidityNet:   cosmath.NewInt(-1_000_000_000_000),
			LiquidityGross: uint128.From64(1_000_000_000_000),
		}
		snapshot.TickArrays[-1020] = lower
		snapshot.TickArrays[960] = upper
		markBitmap(&pool.TickArrayBitmap, -1020, 1)
		markBitmap(&pool.TickArrayBitmap, 960, 1)
	}
	return snapshot
}

func testPosition(snapshot *Snapshot, liquidity uint64) *amm_v3.PersonalPositionState {
	return &amm_v3.PersonalPositionState{
		NftMint:        solana.NewWallet().PublicKey(),
		PoolID:         snapshot.PoolID,
		TickLowerIndex: -1280,
		TickUpperIndex: 1280,
		Liquidity:      uint128.From64(liquidity),
	}
}

func decimalFromString(t *testing.T, value string) decimal.Decimal {
	t.Helper()
	parsed, err := decimal.NewFromString(value)
	require.NoError(t, err)
	return parsed
}

func instructionDiscriminator(t *testing.T, instruction solana.Instruction) []byte {
	t.Helper()
	data, err := instruction.Data()
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(data), 8)
	return data[:8]
}

func TestOpenPositionValidatesRange(t *testing.T) {
	client := NewClient(testOwner)
	snapshot := newTestSnapshot(t, 64)

	_, _, err := client.OpenPosition(OpenPositionRequest{
		TickLower: 100, TickUpper: 1280, Amount0Max: 1000, Amount1Max: 1000,
	}, snapshot)
	require.ErrorIs(t, err, ErrInvalidRange)

	_, _, err = client.OpenPosition(OpenPositionRequest{
		TickLower: 1280, TickUpper: -1280, Amount0Max: 1000, Amount1Max: 1000,
	}, snapshot)
	require.ErrorIs(t, err, ErrInvalidRange)

	_, _, err = client.OpenPosition(OpenPositionRequest{
		TickLower: -443648, TickUpper: 0, Amount0Max: 1000, Amount1Max: 1000,
	}, snapshot)
	require.ErrorIs(t, err, ErrTickOutOfBounds)
}

func TestOpenPositionOrdersInstructions(t *testing.T) {
	client := NewClient(testOwner)
	snapshot := newTestSnapshot(t, 64)

	set, result, err := client.OpenPosition(OpenPositionRequest{
		TickLower:   -1280,
		TickUpper:   1280,
		Amount0Max:  5_000_000,
		Amount1Max:  5_000_000,
		SlippageBps: 50,
	}, snapshot)
	require.NoError(t, err)
	require.True(t, set.Atomic)
	require.Len(t, set.Signers, 1, "position nft mint co-signs")
	require.False(t, result.NftMint.IsZero())
	require.True(t, result.Liquidity.IsPositive())

	// Two token account creations, then the program call.
	require.Len(t, set.Instructions, 3)
	require.Equal(t, solana.SPLAssociatedTokenAccountProgramID, set.Instructions[0].ProgramID())
	require.Equal(t, solana.SPLAssociatedTokenAccountProgramID, set.Instructions[1].ProgramID())
	require.Equal(t,
		amm_v3.InstructionDiscriminator("open_position_v2"),
		instructionDiscriminator(t, set.Instructions[2]))
}

func TestOpenPositionSkipsKnownAccounts(t *testing.T) {
	client := NewClient(testOwner)
	snapshot := newTestSnapshot(t, 64)

	// When the snapshot already lists both deposit accounts no creations
	// are emitted.
	for _, mint := range []solana.PublicKey{snapshot.Pool.TokenMint0, snapshot.Pool.TokenMint1} {
		ata, _, err := solana.FindAssociatedTokenAddress(testOwner, mint)
		require.NoError(t, err)
		snapshot.ExistingTokenAccounts = append(snapshot.ExistingTokenAccounts, ata)
	}

	set, _, err := client.OpenPosition(OpenPositionRequest{
		TickLower: -1280, TickUpper: 1280, Amount0Max: 5_000_000, Amount1Max: 5_000_000,
	}, snapshot)
	require.NoError(t, err)
	require.Len(t, set.Instructions, 1)
}

func TestOpenPositionExplicitLiquidity(t *testing.T) {
	client := NewClient(testOwner)
	snapshot := newTestSnapshot(t, 64)

	// At tick 0 a symmetric [-128, 128] range needs near-equal amounts of
	// both tokens: liquidity * (sqrt(1.0001^128) - 1) on each side.
	set, result, err := client.OpenPosition(OpenPositionRequest{
		TickLower: -128,
		TickUpper: 128,
		Liquidity: cosmath.NewInt(1_000_000),
	}, snapshot)
	require.NoError(t, err)
	require.NotEmpty(t, set.Instructions)
	require.InDelta(t, 6379, result.Amount0Max, 25)
	require.InDelta(t, 6379, result.Amount1Max, 25)
}

func TestOpenPositionZeroLiquidity(t *testing.T) {
	client := NewClient(testOwner)
	snapshot := newTestSnapshot(t, 64)

	_, _, err := client.OpenPosition(OpenPositionRequest{
		TickLower: -1280, TickUpper: 1280,
	}, snapshot)
	require.ErrorIs(t, err, ErrInsufficientLiquidity)
}

func TestStaleSnapshotRejected(t *testing.T) {
	now := time.Now()
	client := NewClient(testOwner,
		WithMaxSnapshotAge(time.Minute),
		withClock(func() time.Time { return now }),
	)

	snapshot := newTestSnapshot(t, 64)
	snapshot.TakenAt = now.Add(-2 * time.Minute)

	_, _, err := client.OpenPosition(OpenPositionRequest{
		TickLower: -1280, TickUpper: 1280, Amount0Max: 1000, Amount1Max: 1000,
	}, snapshot)
	require.ErrorIs(t, err, ErrStaleSnapshot)

	// Within the bound the same request goes through.
	snapshot.TakenAt = now.Add(-30 * time.Second)
	_, _, err = client.OpenPosition(OpenPositionRequest{
		TickLower: -1280, TickUpper: 1280, Amount0Max: 1_000_000, Amount1Max: 1_000_000,
	}, snapshot)
	require.NoError(t, err)
}

func TestIncreaseLiquidityRejectsForeignPosition(t *testing.T) {
	client := NewClient(testOwner)
	snapshot := newTestSnapshot(t, 64)

	position := testPosition(snapshot, 1000)
	position.PoolID = solana.NewWallet().PublicKey()

	_, _, err := client.IncreaseLiquidity(IncreaseLiquidityRequest{
		Position: position, Amount0Max: 1000, Amount1Max: 1000,
	}, snapshot)
	require.ErrorIs(t, err, ErrSnapshotDecode)
}

func TestDecreaseLiquiditySlippagePrecheck(t *testing.T) {
	client := NewClient(testOwner)
	snapshot := newTestSnapshot(t, 64)
	position := testPosition(snapshot, 1_000_000)

	// A minimum the snapshot price cannot deliver fails before any
	// instruction is built.
	tooMuch := uint64(1 << 60)
	_, _, err := client.DecreaseLiquidity(DecreaseLiquidityRequest{
		Position:   position,
		Liquidity:  cosmath.NewInt(1_000_000),
		Amount0Min: &tooMuch,
	}, snapshot)
	require.ErrorIs(t, err, ErrSlippageExceeded)

	// More liquidity than the position holds.
	_, _, err = client.DecreaseLiquidity(DecreaseLiquidityRequest{
		Position:  position,
		Liquidity: cosmath.NewInt(2_000_000),
	}, snapshot)
	require.ErrorIs(t, err, ErrInsufficientLiquidity)

	set, result, err := client.DecreaseLiquidity(DecreaseLiquidityRequest{
		Position:    position,
		Liquidity:   cosmath.NewInt(1_000_000),
		SlippageBps: 100,
	}, snapshot)
	require.NoError(t, err)
	require.Positive(t, result.Amount0Min)
	require.Positive(t, result.Amount1Min)
	require.Equal(t,
		amm_v3.InstructionDiscriminator("decrease_liquidity_v2"),
		instructionDiscriminator(t, set.Instructions[len(set.Instructions)-1]))
}

func TestCollectFeesIsZeroLiquidityWithdrawal(t *testing.T) {
	client := NewClient(testOwner)
	snapshot := newTestSnapshot(t, 64)
	position := testPosition(snapshot, 1_000_000)

	set, err := client.CollectFees(CollectFeesRequest{Position: position}, snapshot)
	require.NoError(t, err)

	last := set.Instructions[len(set.Instructions)-1]
	data, err := last.Data()
	require.NoError(t, err)
	require.Equal(t, amm_v3.InstructionDiscriminator("decrease_liquidity_v2"), data[:8])
	require.True(t, bytes.Equal(data[8:24], make([]byte, 16)), "liquidity arg must be zero")
}

func TestClosePositionWithdrawsFirst(t *testing.T) {
	client := NewClient(testOwner)
	snapshot := newTestSnapshot(t, 64)
	position := testPosition(snapshot, 1_000_000)

	set, err := client.ClosePosition(ClosePositionRequest{Position: position}, snapshot)
	require.NoError(t, err)
	require.True(t, set.Atomic)

	discriminators := make([][]byte, 0, len(set.Instructions))
	for _, instruction := range set.Instructions {
		data, err := instruction.Data()
		require.NoError(t, err)
		if len(data) >= 8 {
			discriminators = append(discriminators, data[:8])
		}
	}
	require.Contains(t, discriminators, amm_v3.InstructionDiscriminator("decrease_liquidity_v2"))
	require.Equal(t, amm_v3.InstructionDiscriminator("close_position"),
		discriminators[len(discriminators)-1])

	// An emptied position closes without a withdrawal.
	empty := testPosition(snapshot, 0)
	set, err = client.ClosePosition(ClosePositionRequest{Position: empty}, snapshot)
	require.NoError(t, err)
	require.Equal(t, amm_v3.InstructionDiscriminator("close_position"),
		instructionDiscriminator(t, set.Instructions[len(set.Instructions)-1]))
}

func TestCreatePoolDerivesCanonicalOrder(t *testing.T) {
	client := NewClient(testOwner)

	mintA := solana.NewWallet().PublicKey()
	mintB := solana.NewWallet().PublicKey()

	set1, addr1, err := client.CreatePool(CreatePoolRequest{
		AmmConfigIndex: 2, MintA: mintA, MintB: mintB,
		DecimalsA: 6, DecimalsB: 6,
		InitialPrice: decimalFromString(t, "1.5"),
	})
	require.NoError(t, err)
	require.Len(t, set1.Instructions, 1)

	// Swapping the mint order lands on the same pool.
	_, addr2, err := client.CreatePool(CreatePoolRequest{
		AmmConfigIndex: 2, MintA: mintB, MintB: mintA,
		DecimalsA: 6, DecimalsB: 6,
		InitialPrice: decimalFromString(t, "0.6666666666666667"),
	})
	require.NoError(t, err)
	require.Equal(t, addr1.PoolState, addr2.PoolState)

	_, _, err = client.CreatePool(CreatePoolRequest{
		AmmConfigIndex: 2, MintA: mintA, MintB: mintA,
		InitialPrice: decimalFromString(t, "1"),
	})
	require.ErrorIs(t, err, ErrInvalidSeed)
}
