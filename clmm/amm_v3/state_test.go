package amm_v3

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

// poolFixture describes a pool account the way an RPC dump would, with the
// binary layout reconstructed from the field values.
const poolFixture = `{
	"ammConfig": "9iFER3bpjf1PTTCQLxC6CZW7LBiftyqfTmdqWCvmqCLY",
	"tokenMint0": "So11111111111111111111111111111111111111112",
	"tokenMint1": "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v",
	"tokenVault0": "6P4tvbzRY6Bh3MiWDHuLqyHywovsRwRpfskPvyeSoHsz",
	"tokenVault1": "6mK4Pxs6GhwnessH7CvPivqDYauiHZmAdbEFDpXFk9zt",
	"observationKey": "3YzscuLGLvGGXp24B3qu6wdAYgBB9h6pY3C91C2VNk2q",
	"mintDecimals0": 9,
	"mintDecimals1": 6,
	"tickSpacing": 64,
	"liquidity": 776793921837364,
	"sqrtPriceX64": 2281419702239364224,
	"tickCurrent": -41817,
	"status": 0,
	"openTime": 1698765432,
	"recentEpoch": 540
}`

func writeLE(buf *bytes.Buffer, v any) {
	_ = binary.Write(buf, binary.LittleEndian, v)
}

func writeU128(buf *bytes.Buffer, lo uint64) {
	writeLE(buf, lo)
	writeLE(buf, uint64(0))
}

func buildPoolAccount(t *testing.T, fixture gjson.Result) []byte {
	t.Helper()
	buf := bytes.NewBuffer(AccountDiscriminator(AccountKeyPoolState))

	writeLE(buf, uint8(255)) // bump
	for _, field := range []string{"ammConfig", "ammConfig", "tokenMint0", "tokenMint1", "tokenVault0", "tokenVault1", "observationKey"} {
		key := solana.MustPublicKeyFromBase58(fixture.Get(field).String())
		buf.Write(key.Bytes())
	}
	// The second field above doubled as the pool owner slot; overwrite is
	// not needed since the decoder only checks positions.
	writeLE(buf, uint8(fixture.Get("mintDecimals0").Uint()))
	writeLE(buf, uint8(fixture.Get("mintDecimals1").Uint()))
	writeLE(buf, uint16(fixture.Get("tickSpacing").Uint()))
	writeU128(buf, fixture.Get("liquidity").Uint())
	writeU128(buf, fixture.Get("sqrtPriceX64").Uint())
	writeLE(buf, int32(fixture.Get("tickCurrent").Int()))
	writeLE(buf, uint16(0)) // observation index
	writeLE(buf, uint16(15))
	writeU128(buf, 0) // fee growth 0
	writeU128(buf, 0) // fee growth 1
	writeLE(buf, uint64(0))
	writeLE(buf, uint64(0))
	writeU128(buf, 0)
	writeU128(buf, 0)
	writeU128(buf, 0)
	writeU128(buf, 0)
	writeLE(buf, uint8(fixture.Get("status").Uint()))
	buf.Write(make([]byte, 7))

	rewardMint := solana.NewWallet().PublicKey()
	for i := 0; i < 3; i++ {
		writeLE(buf, uint8(0))
		writeLE(buf, uint64(0))
		writeLE(buf, uint64(0))
		writeLE(buf, uint64(0))
		writeU128(buf, 0)
		writeLE(buf, uint64(0))
		writeLE(buf, uint64(0))
		if i == 0 {
			buf.Write(rewardMint.Bytes())
		} else {
			buf.Write(make([]byte, 32))
		}
		buf.Write(make([]byte, 64))
		writeU128(buf, 0)
	}

	var bitmap [16]uint64
	markArray(&bitmap, TickArrayStartIndex(int32(fixture.Get("tickCurrent").Int()), uint16(fixture.Get("tickSpacing").Uint())), uint16(fixture.Get("tickSpacing").Uint()))
	for _, word := range bitmap {
		writeLE(buf, word)
	}

	for i := 0; i < 6; i++ {
		writeLE(buf, uint64(0))
	}
	writeLE(buf, fixture.Get("openTime").Uint())
	writeLE(buf, fixture.Get("recentEpoch").Uint())

	buf.Write(make([]byte, PoolStateLen-buf.Len()))
	return buf.Bytes()
}

func TestPoolStateDecode(t *testing.T) {
	fixture := gjson.Parse(poolFixture)
	data := buildPoolAccount(t, fixture)
	require.Len(t, data, PoolStateLen)

	pool := &PoolState{}
	require.NoError(t, pool.Decode(data))

	require.Equal(t, fixture.Get("tokenMint0").String(), pool.TokenMint0.String())
	require.Equal(t, fixture.Get("tokenMint1").String(), pool.TokenMint1.String())
	require.Equal(t, fixture.Get("tokenVault0").String(), pool.TokenVault0.String())
	require.Equal(t, fixture.Get("observationKey").String(), pool.ObservationKey.String())
	require.Equal(t, uint8(fixture.Get("mintDecimals0").Uint()), pool.MintDecimals0)
	require.Equal(t, uint16(fixture.Get("tickSpacing").Uint()), pool.TickSpacing)
	require.Equal(t, fixture.Get("liquidity").Uint(), pool.Liquidity.Lo)
	require.Equal(t, fixture.Get("sqrtPriceX64").Uint(), pool.SqrtPriceX64.Lo)
	require.Equal(t, int32(fixture.Get("tickCurrent").Int()), pool.TickCurrent)
	require.Equal(t, fixture.Get("openTime").Uint(), pool.OpenTime)
	require.Equal(t, fixture.Get("recentEpoch").Uint(), pool.RecentEpoch)

	require.True(t, IsTickArrayInitialized(pool.TickArrayBitmap, pool.TickCurrent, pool.TickSpacing))
	require.False(t, pool.RewardInfos[0].TokenMint.IsZero())
	require.True(t, pool.RewardInfos[1].TokenMint.IsZero())
}

// TestPoolStateFieldOffsets pins the decoder to the on-chain account layout
// by poking values at the absolute byte offsets of the deployed program's
// IDL, independent of how the decoder computes its own positions:
//
//	bump 8, amm_config 9, owner 41, token_mint_0 73, token_mint_1 105,
//	token_vault_0 137, token_vault_1 169, observation_key 201,
//	mint_decimals 233/234, tick_spacing 235, liquidity 237,
//	sqrt_price_x64 253, tick_current 269.
func TestPoolStateFieldOffsets(t *testing.T) {
	data := make([]byte, PoolStateLen)
	copy(data, AccountDiscriminator(AccountKeyPoolState))

	mint0 := solana.MustPublicKeyFromBase58("So11111111111111111111111111111111111111112")
	vault1 := solana.NewWallet().PublicKey()
	copy(data[73:105], mint0.Bytes())
	copy(data[169:201], vault1.Bytes())
	data[233] = 9
	data[234] = 6
	binary.LittleEndian.PutUint16(data[235:237], 64)
	binary.LittleEndian.PutUint64(data[237:245], 776793921837364)
	binary.LittleEndian.PutUint64(data[253:261], 2281419702239364224)
	tickCurrent := int32(-41817)
	binary.LittleEndian.PutUint32(data[269:273], uint32(tickCurrent))

	pool := &PoolState{}
	require.NoError(t, pool.Decode(data))

	require.Equal(t, mint0, pool.TokenMint0)
	require.Equal(t, vault1, pool.TokenVault1)
	require.Equal(t, uint8(9), pool.MintDecimals0)
	require.Equal(t, uint8(6), pool.MintDecimals1)
	require.Equal(t, uint16(64), pool.TickSpacing)
	require.Equal(t, uint64(776793921837364), pool.Liquidity.Lo)
	require.Equal(t, uint64(2281419702239364224), pool.SqrtPriceX64.Lo)
	require.Equal(t, int32(-41817), pool.TickCurrent)
}

func TestPoolStateDecodeRejectsWrongDiscriminator(t *testing.T) {
	data := make([]byte, PoolStateLen)
	copy(data, AccountDiscriminator(AccountKeyTickArrayState))

	pool := &PoolState{}
	require.ErrorIs(t, pool.Decode(data), ErrSnapshotDecode)

	require.ErrorIs(t, pool.Decode(data[:100]), ErrSnapshotDecode)
}

func buildTickArrayAccount(startIndex int32, poolID solana.PublicKey, initialized map[int]int64) []byte {
	buf := bytes.NewBuffer(AccountDiscriminator(AccountKeyTickArrayState))
	buf.Write(poolID.Bytes())
	writeLE(buf, startIndex)

	for i := 0; i < TickArraySize; i++ {
		net, ok := initialized[i]
		writeLE(buf, startIndex+int32(i)) // tick field, spacing 1 here

		// liquidity net as two's-complement i128
		var netBytes [16]byte
		binary.LittleEndian.PutUint64(netBytes[:8], uint64(net))
		if net < 0 {
			binary.LittleEndian.PutUint64(netBytes[8:], ^uint64(0))
		}
		buf.Write(netBytes[:])

		if ok {
			writeU128(buf, uint64(absInt64(net))) // liquidity gross
		} else {
			writeU128(buf, 0)
		}
		writeU128(buf, 0)
		writeU128(buf, 0)
		buf.Write(make([]byte, 48)) // reward growths
		buf.Write(make([]byte, 52)) // padding
	}
	writeLE(buf, uint8(len(initialized)))
	writeLE(buf, uint64(540))

	buf.Write(make([]byte, TickArrayStateLen-buf.Len()))
	return buf.Bytes()
}

func TestTickArrayStateDecode(t *testing.T) {
	poolID := solana.NewWallet().PublicKey()
	data := buildTickArrayAccount(-60, poolID, map[int]int64{
		10: 5_000_000,
		40: -5_000_000,
	})
	require.Len(t, data, TickArrayStateLen)

	tickArray := &TickArrayState{}
	require.NoError(t, tickArray.Decode(data))

	require.Equal(t, poolID, tickArray.PoolID)
	require.Equal(t, int32(-60), tickArray.StartTickIndex)
	require.Equal(t, uint8(2), tickArray.InitializedTickCount)

	require.True(t, tickArray.Ticks[10].IsInitialized())
	require.Equal(t, int64(5_000_000), tickArray.Ticks[10].LiquidityNet.Int64())
	require.True(t, tickArray.Ticks[40].IsInitialized())
	require.Equal(t, int64(-5_000_000), tickArray.Ticks[40].LiquidityNet.Int64())
	require.False(t, tickArray.Ticks[0].IsInitialized())
}

func TestPersonalPositionStateDecode(t *testing.T) {
	nftMint := solana.NewWallet().PublicKey()
	poolID := solana.NewWallet().PublicKey()

	buf := bytes.NewBuffer(AccountDiscriminator(AccountKeyPersonalPositionState))
	writeLE(buf, uint8(254))
	buf.Write(nftMint.Bytes())
	buf.Write(poolID.Bytes())
	writeLE(buf, int32(-1280))
	writeLE(buf, int32(1280))
	writeU128(buf, 98765)
	writeU128(buf, 0)
	writeU128(buf, 0)
	writeLE(buf, uint64(111))
	writeLE(buf, uint64(222))
	for i := 0; i < 3; i++ {
		writeU128(buf, 0)
		writeLE(buf, uint64(0))
	}
	writeLE(buf, uint64(540))

	position := &PersonalPositionState{}
	require.NoError(t, position.Decode(buf.Bytes()))

	require.Equal(t, nftMint, position.NftMint)
	require.Equal(t, poolID, position.PoolID)
	require.Equal(t, int32(-1280), position.TickLowerIndex)
	require.Equal(t, int32(1280), position.TickUpperIndex)
	require.Equal(t, uint64(98765), position.Liquidity.Lo)
	require.Equal(t, uint64(111), position.TokenFeesOwed0)
	require.Equal(t, uint64(222), position.TokenFeesOwed1)
}

func TestAmmConfigStateDecode(t *testing.T) {
	owner := solana.NewWallet().PublicKey()

	buf := bytes.NewBuffer(AccountDiscriminator(AccountKeyAmmConfig))
	writeLE(buf, uint8(253))
	writeLE(buf, uint16(4))
	buf.Write(owner.Bytes())
	writeLE(buf, uint32(120000)) // protocol fee rate
	writeLE(buf, uint32(2500))   // trade fee rate
	writeLE(buf, uint16(64))
	writeLE(buf, uint32(40000)) // fund fee rate
	writeLE(buf, uint32(0))     // padding
	buf.Write(owner.Bytes())

	config := &AmmConfigState{}
	require.NoError(t, config.Decode(buf.Bytes()))

	require.Equal(t, uint16(4), config.Index)
	require.Equal(t, owner, config.Owner)
	require.Equal(t, uint32(2500), config.TradeFeeRate)
	require.Equal(t, uint16(64), config.TickSpacing)
	require.Equal(t, uint32(40000), config.FundFeeRate)
}
