package amm_v3

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	cosmath "cosmossdk.io/math"
	"github.com/gagliardetto/solana-go"
	"lukechampine.com/uint128"
)

// AccountDiscriminator returns the 8-byte anchor discriminator for an
// account struct name.
func AccountDiscriminator(name string) []byte {
	hash := sha256.Sum256([]byte("account:" + name))
	var out [8]byte
	copy(out[:], hash[:8])
	return out[:]
}

// InstructionDiscriminator returns the 8-byte anchor discriminator for an
// instruction's snake_case name.
func InstructionDiscriminator(name string) []byte {
	hash := sha256.Sum256([]byte("global:" + name))
	var out [8]byte
	copy(out[:], hash[:8])
	return out[:]
}

func checkAccountData(data []byte, accountKey string, minLen int) error {
	if len(data) < minLen {
		return fmt.Errorf("%w: %s account data %d bytes, want at least %d", ErrSnapshotDecode, accountKey, len(data), minLen)
	}
	if !bytes.Equal(data[:8], AccountDiscriminator(accountKey)) {
		return fmt.Errorf("%w: %s discriminator mismatch", ErrSnapshotDecode, accountKey)
	}
	return nil
}

// AmmConfigState is the fee-tier configuration account.
type AmmConfigState struct {
	Bump            uint8
	Index           uint16
	Owner           solana.PublicKey
	ProtocolFeeRate uint32
	TradeFeeRate    uint32
	TickSpacing     uint16
	FundFeeRate     uint32
	FundOwner       solana.PublicKey
}

func (c *AmmConfigState) Decode(data []byte) error {
	if err := checkAccountData(data, AccountKeyAmmConfig, 8+1+2+32+4+4+2+4+4+32); err != nil {
		return err
	}
	data = data[8:]

	offset := 0
	c.Bump = data[offset]
	offset += 1

	c.Index = binary.LittleEndian.Uint16(data[offset : offset+2])
	offset += 2

	c.Owner = solana.PublicKeyFromBytes(data[offset : offset+32])
	offset += 32

	c.ProtocolFeeRate = binary.LittleEndian.Uint32(data[offset : offset+4])
	offset += 4

	c.TradeFeeRate = binary.LittleEndian.Uint32(data[offset : offset+4])
	offset += 4

	c.TickSpacing = binary.LittleEndian.Uint16(data[offset : offset+2])
	offset += 2

	c.FundFeeRate = binary.LittleEndian.Uint32(data[offset : offset+4])
	offset += 4

	// padding u32
	offset += 4

	c.FundOwner = solana.PublicKeyFromBytes(data[offset : offset+32])
	return nil
}

// RewardInfo is one of the pool's three reward emission slots.
type RewardInfo struct {
	RewardState           uint8
	OpenTime              uint64
	EndTime               uint64
	LastUpdateTime        uint64
	EmissionsPerSecondX64 uint128.Uint128
	RewardTotalEmissioned uint64
	RewardClaimed         uint64
	TokenMint             solana.PublicKey
	TokenVault            solana.PublicKey
	Authority             solana.PublicKey
	RewardGrowthGlobalX64 uint128.Uint128
}

// PoolState mirrors the on-chain pool account. The layout carries explicit
// padding, so decoding walks fixed offsets rather than relying on struct
// reflection.
type PoolState struct {
	Bump           uint8
	AmmConfig      solana.PublicKey
	Owner          solana.PublicKey
	TokenMint0     solana.PublicKey
	TokenMint1     solana.PublicKey
	TokenVault0    solana.PublicKey
	TokenVault1    solana.PublicKey
	ObservationKey solana.PublicKey
	MintDecimals0  uint8
	MintDecimals1  uint8
	TickSpacing    uint16

	Liquidity                 uint128.Uint128
	SqrtPriceX64              uint128.Uint128
	TickCurrent               int32
	ObservationIndex          uint16
	ObservationUpdateDuration uint16
	FeeGrowthGlobal0X64       uint128.Uint128
	FeeGrowthGlobal1X64       uint128.Uint128
	ProtocolFeesToken0        uint64
	ProtocolFeesToken1        uint64
	SwapInAmountToken0        uint128.Uint128
	SwapOutAmountToken1       uint128.Uint128
	SwapInAmountToken1        uint128.Uint128
	SwapOutAmountToken0       uint128.Uint128
	Status                    uint8

	RewardInfos [3]RewardInfo

	TickArrayBitmap [16]uint64

	TotalFeesToken0        uint64
	TotalFeesClaimedToken0 uint64
	TotalFeesToken1        uint64
	TotalFeesClaimedToken1 uint64
	FundFeesToken0         uint64
	FundFeesToken1         uint64

	OpenTime    uint64
	RecentEpoch uint64
}

func (p *PoolState) Decode(data []byte) error {
	if err := checkAccountData(data, AccountKeyPoolState, PoolStateLen); err != nil {
		return err
	}
	data = data[8:]

	offset := 0
	p.Bump = data[offset]
	offset += 1

	p.AmmConfig = solana.PublicKeyFromBytes(data[offset : offset+32])
	offset += 32

	p.Owner = solana.PublicKeyFromBytes(data[offset : offset+32])
	offset += 32

	p.TokenMint0 = solana.PublicKeyFromBytes(data[offset : offset+32])
	offset += 32

	p.TokenMint1 = solana.PublicKeyFromBytes(data[offset : offset+32])
	offset += 32

	p.TokenVault0 = solana.PublicKeyFromBytes(data[offset : offset+32])
	offset += 32

	p.TokenVault1 = solana.PublicKeyFromBytes(data[offset : offset+32])
	offset += 32

	p.ObservationKey = solana.PublicKeyFromBytes(data[offset : offset+32])
	offset += 32

	p.MintDecimals0 = data[offset]
	offset += 1

	p.MintDecimals1 = data[offset]
	offset += 1

	p.TickSpacing = binary.LittleEndian.Uint16(data[offset : offset+2])
	offset += 2

	p.Liquidity = uint128.FromBytes(data[offset : offset+16])
	offset += 16

	p.SqrtPriceX64 = uint128.FromBytes(data[offset : offset+16])
	offset += 16

	p.TickCurrent = int32(binary.LittleEndian.Uint32(data[offset : offset+4]))
	offset += 4

	p.ObservationIndex = binary.LittleEndian.Uint16(data[offset : offset+2])
	offset += 2

	p.ObservationUpdateDuration = binary.LittleEndian.Uint16(data[offset : offset+2])
	offset += 2

	p.FeeGrowthGlobal0X64 = uint128.FromBytes(data[offset : offset+16])
	offset += 16

	p.FeeGrowthGlobal1X64 = uint128.FromBytes(data[offset : offset+16])
	offset += 16

	p.ProtocolFeesToken0 = binary.LittleEndian.Uint64(data[offset : offset+8])
	offset += 8

	p.ProtocolFeesToken1 = binary.LittleEndian.Uint64(data[offset : offset+8])
	offset += 8

	p.SwapInAmountToken0 = uint128.FromBytes(data[offset : offset+16])
	offset += 16

	p.SwapOutAmountToken1 = uint128.FromBytes(data[offset : offset+16])
	offset += 16

	p.SwapInAmountToken1 = uint128.FromBytes(data[offset : offset+16])
	offset += 16

	p.SwapOutAmountToken0 = uint128.FromBytes(data[offset : offset+16])
	offset += 16

	p.Status = data[offset]
	offset += 1 + 7 // status + padding

	for i := 0; i < 3; i++ {
		p.RewardInfos[i].RewardState = data[offset]
		offset += 1

		p.RewardInfos[i].OpenTime = binary.LittleEndian.Uint64(data[offset : offset+8])
		offset += 8

		p.RewardInfos[i].EndTime = binary.LittleEndian.Uint64(data[offset : offset+8])
		offset += 8

		p.RewardInfos[i].LastUpdateTime = binary.LittleEndian.Uint64(data[offset : offset+8])
		offset += 8

		p.RewardInfos[i].EmissionsPerSecondX64 = uint128.FromBytes(data[offset : offset+16])
		offset += 16

		p.RewardInfos[i].RewardTotalEmissioned = binary.LittleEndian.Uint64(data[offset : offset+8])
		offset += 8

		p.RewardInfos[i].RewardClaimed = binary.LittleEndian.Uint64(data[offset : offset+8])
		offset += 8

		p.RewardInfos[i].TokenMint = solana.PublicKeyFromBytes(data[offset : offset+32])
		offset += 32

		p.RewardInfos[i].TokenVault = solana.PublicKeyFromBytes(data[offset : offset+32])
		offset += 32

		p.RewardInfos[i].Authority = solana.PublicKeyFromBytes(data[offset : offset+32])
		offset += 32

		p.RewardInfos[i].RewardGrowthGlobalX64 = uint128.FromBytes(data[offset : offset+16])
		offset += 16
	}

	for i := 0; i < 16; i++ {
		p.TickArrayBitmap[i] = binary.LittleEndian.Uint64(data[offset : offset+8])
		offset += 8
	}

	p.TotalFeesToken0 = binary.LittleEndian.Uint64(data[offset : offset+8])
	offset += 8

	p.TotalFeesClaimedToken0 = binary.LittleEndian.Uint64(data[offset : offset+8])
	offset += 8

	p.TotalFeesToken1 = binary.LittleEndian.Uint64(data[offset : offset+8])
	offset += 8

	p.TotalFeesClaimedToken1 = binary.LittleEndian.Uint64(data[offset : offset+8])
	offset += 8

	p.FundFeesToken0 = binary.LittleEndian.Uint64(data[offset : offset+8])
	offset += 8

	p.FundFeesToken1 = binary.LittleEndian.Uint64(data[offset : offset+8])
	offset += 8

	p.OpenTime = binary.LittleEndian.Uint64(data[offset : offset+8])
	offset += 8

	p.RecentEpoch = binary.LittleEndian.Uint64(data[offset : offset+8])
	return nil
}

// SqrtPrice returns the pool's current sqrt price as a math.Int.
func (p *PoolState) SqrtPrice() cosmath.Int {
	return cosmath.NewIntFromBigInt(p.SqrtPriceX64.Big())
}

// TickState is one tick slot inside a tick array.
type TickState struct {
	Tick                    int32
	LiquidityNet            cosmath.Int
	LiquidityGross          uint128.Uint128
	FeeGrowthOutside0X64    uint128.Uint128
	FeeGrowthOutside1X64    uint128.Uint128
	RewardGrowthsOutsideX64 [3]uint128.Uint128
}

// IsInitialized reports whether any position references this tick.
func (t *TickState) IsInitialized() bool {
	return !t.LiquidityGross.IsZero()
}

// TickArrayState mirrors the on-chain tick-array account.
type TickArrayState struct {
	PoolID               solana.PublicKey
	StartTickIndex       int32
	Ticks                [TickArraySize]TickState
	InitializedTickCount uint8
	RecentEpoch          uint64
}

func (t *TickArrayState) Decode(data []byte) error {
	if err := checkAccountData(data, AccountKeyTickArrayState, TickArrayStateLen); err != nil {
		return err
	}

	offset := 8
	t.PoolID = solana.PublicKeyFromBytes(data[offset : offset+32])
	offset += 32

	t.StartTickIndex = int32(binary.LittleEndian.Uint32(data[offset : offset+4]))
	offset += 4

	for i := 0; i < TickArraySize; i++ {
		t.Ticks[i].Tick = int32(binary.LittleEndian.Uint32(data[offset : offset+4]))
		offset += 4

		t.Ticks[i].LiquidityNet = decodeInt128LE(data[offset : offset+16])
		offset += 16

		t.Ticks[i].LiquidityGross = uint128.FromBytes(data[offset : offset+16])
		offset += 16

		t.Ticks[i].FeeGrowthOutside0X64 = uint128.FromBytes(data[offset : offset+16])
		offset += 16

		t.Ticks[i].FeeGrowthOutside1X64 = uint128.FromBytes(data[offset : offset+16])
		offset += 16

		for j := 0; j < 3; j++ {
			t.Ticks[i].RewardGrowthsOutsideX64[j] = uint128.FromBytes(data[offset : offset+16])
			offset += 16
		}

		// per-tick padding [13]u32
		offset += 52
	}

	t.InitializedTickCount = data[offset]
	offset += 1

	t.RecentEpoch = binary.LittleEndian.Uint64(data[offset : offset+8])
	return nil
}

// decodeInt128LE reads a little-endian two's-complement i128.
func decodeInt128LE(data []byte) cosmath.Int {
	u := uint128.FromBytes(data)
	v := cosmath.NewIntFromBigInt(u.Big())
	if data[15]&0x80 != 0 {
		v = v.Sub(cosmath.NewIntFromBigInt(Q128.BigInt()))
	}
	return v
}

// TickArrayBitmapExtension tracks initialized tick arrays beyond the reach
// of the pool's default bitmap, 14 word groups per direction.
type TickArrayBitmapExtension struct {
	PoolID                  solana.PublicKey
	PositiveTickArrayBitmap [ExtensionBitmapSize][8]uint64
	NegativeTickArrayBitmap [ExtensionBitmapSize][8]uint64
}

func (e *TickArrayBitmapExtension) Decode(data []byte) error {
	if err := checkAccountData(data, AccountKeyTickArrayBitmapExtension, 8+32+2*ExtensionBitmapSize*64); err != nil {
		return err
	}
	data = data[8:]

	e.PoolID = solana.PublicKeyFromBytes(data[:32])
	data = data[32:]

	for i := 0; i < ExtensionBitmapSize; i++ {
		for j := 0; j < 8; j++ {
			e.PositiveTickArrayBitmap[i][j] = binary.LittleEndian.Uint64(data[j*8 : (j+1)*8])
		}
		data = data[64:]
	}
	for i := 0; i < ExtensionBitmapSize; i++ {
		for j := 0; j < 8; j++ {
			e.NegativeTickArrayBitmap[i][j] = binary.LittleEndian.Uint64(data[j*8 : (j+1)*8])
		}
		data = data[64:]
	}
	return nil
}

// PositionRewardInfo is one reward slot of a personal position.
type PositionRewardInfo struct {
	GrowthInsideLastX64 uint128.Uint128
	RewardAmountOwed    uint64
}

// PersonalPositionState mirrors the per-owner position account keyed by its
// NFT mint.
type PersonalPositionState struct {
	Bump                    uint8
	NftMint                 solana.PublicKey
	PoolID                  solana.PublicKey
	TickLowerIndex          int32
	TickUpperIndex          int32
	Liquidity               uint128.Uint128
	FeeGrowthInside0LastX64 uint128.Uint128
	FeeGrowthInside1LastX64 uint128.Uint128
	TokenFeesOwed0          uint64
	TokenFeesOwed1          uint64
	RewardInfos             [3]PositionRewardInfo
	RecentEpoch             uint64
}

func (s *PersonalPositionState) Decode(data []byte) error {
	if err := checkAccountData(data, AccountKeyPersonalPositionState, 8+1+32+32+4+4+16+16+16+8+8+3*24+8); err != nil {
		return err
	}
	data = data[8:]

	offset := 0
	s.Bump = data[offset]
	offset += 1

	s.NftMint = solana.PublicKeyFromBytes(data[offset : offset+32])
	offset += 32

	s.PoolID = solana.PublicKeyFromBytes(data[offset : offset+32])
	offset += 32

	s.TickLowerIndex = int32(binary.LittleEndian.Uint32(data[offset : offset+4]))
	offset += 4

	s.TickUpperIndex = int32(binary.LittleEndian.Uint32(data[offset : offset+4]))
	offset += 4

	s.Liquidity = uint128.FromBytes(data[offset : offset+16])
	offset += 16

	s.FeeGrowthInside0LastX64 = uint128.FromBytes(data[offset : offset+16])
	offset += 16

	s.FeeGrowthInside1LastX64 = uint128.FromBytes(data[offset : offset+16])
	offset += 16

	s.TokenFeesOwed0 = binary.LittleEndian.Uint64(data[offset : offset+8])
	offset += 8

	s.TokenFeesOwed1 = binary.LittleEndian.Uint64(data[offset : offset+8])
	offset += 8

	for i := 0; i < 3; i++ {
		s.RewardInfos[i].GrowthInsideLastX64 = uint128.FromBytes(data[offset : offset+16])
		offset += 16

		s.RewardInfos[i].RewardAmountOwed = binary.LittleEndian.Uint64(data[offset : offset+8])
		offset += 8
	}

	s.RecentEpoch = binary.LittleEndian.Uint64(data[offset : offset+8])
	return nil
}
