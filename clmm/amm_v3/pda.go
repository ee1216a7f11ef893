package amm_v3

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// The Derive* functions take the program the pool is deployed under so the
// same client code works against mainnet, devnet and forked deployments.
// Each returns the canonical bump alongside the address.

// DeriveAmmConfigAddress derives the fee-tier config account for an index.
// The index is serialized big-endian, matching the on-chain seed encoding.
func DeriveAmmConfigAddress(programID solana.PublicKey, index uint16) (solana.PublicKey, uint8, error) {
	indexBytes := make([]byte, 2)
	binary.BigEndian.PutUint16(indexBytes, index)

	return findAddress(programID, [][]byte{[]byte(AmmConfigSeed), indexBytes})
}

// SortMints returns the two mints in the canonical pool order (mint0 < mint1
// bytewise). Pool seeds always use this order regardless of how the caller
// passes the pair.
func SortMints(mintA, mintB solana.PublicKey) (solana.PublicKey, solana.PublicKey) {
	if bytes.Compare(mintA.Bytes(), mintB.Bytes()) > 0 {
		return mintB, mintA
	}
	return mintA, mintB
}

func DerivePoolAddress(programID, ammConfig, mintA, mintB solana.PublicKey) (solana.PublicKey, uint8, error) {
	mint0, mint1 := SortMints(mintA, mintB)

	return findAddress(programID, [][]byte{[]byte(PoolSeed), ammConfig.Bytes(), mint0.Bytes(), mint1.Bytes()})
}

func DeriveTokenVaultAddress(programID, pool, mint solana.PublicKey) (solana.PublicKey, uint8, error) {
	return findAddress(programID, [][]byte{[]byte(PoolVaultSeed), pool.Bytes(), mint.Bytes()})
}

func DeriveObservationAddress(programID, pool solana.PublicKey) (solana.PublicKey, uint8, error) {
	return findAddress(programID, [][]byte{[]byte(ObservationSeed), pool.Bytes()})
}

// DeriveTickArrayAddress derives the tick-array account holding startIndex.
// startIndex must be a canonical array boundary for the pool's tick spacing;
// any other value would derive an address the program never initializes.
func DeriveTickArrayAddress(programID, pool solana.PublicKey, startIndex int32, tickSpacing uint16) (solana.PublicKey, uint8, error) {
	if err := CheckTickArrayStartIndex(startIndex, tickSpacing); err != nil {
		return solana.PublicKey{}, 0, err
	}

	startBytes := make([]byte, 4)
	binary.BigEndian.PutUint32(startBytes, uint32(startIndex))

	return findAddress(programID, [][]byte{[]byte(TickArraySeed), pool.Bytes(), startBytes})
}

// CheckTickArrayStartIndex rejects start indexes that are not aligned to the
// array span (tickSpacing * 60) or that fall outside the tick domain.
func CheckTickArrayStartIndex(startIndex int32, tickSpacing uint16) error {
	span := TickArraySpan(tickSpacing)
	if startIndex%span != 0 {
		return fmt.Errorf("%w: tick array start %d not a multiple of %d", ErrInvalidSeed, startIndex, span)
	}
	if startIndex < TickArrayStartIndex(MinTick, tickSpacing) || startIndex > MaxTick {
		return fmt.Errorf("%w: tick array start %d outside tick domain", ErrInvalidSeed, startIndex)
	}
	return nil
}

func DeriveTickArrayBitmapExtension(programID, pool solana.PublicKey) (solana.PublicKey, uint8, error) {
	return findAddress(programID, [][]byte{[]byte(BitmapExtensionSeed), pool.Bytes()})
}

// DerivePersonalPositionAddress derives the per-owner position account keyed
// by its NFT mint.
func DerivePersonalPositionAddress(programID, positionNftMint solana.PublicKey) (solana.PublicKey, uint8, error) {
	return findAddress(programID, [][]byte{[]byte(PositionSeed), positionNftMint.Bytes()})
}

// DeriveProtocolPositionAddress derives the pool-level position account for a
// tick range. Tick indexes are serialized big-endian.
func DeriveProtocolPositionAddress(programID, pool solana.PublicKey, tickLower, tickUpper int32) (solana.PublicKey, uint8, error) {
	lowerBytes := make([]byte, 4)
	binary.BigEndian.PutUint32(lowerBytes, uint32(tickLower))
	upperBytes := make([]byte, 4)
	binary.BigEndian.PutUint32(upperBytes, uint32(tickUpper))

	return findAddress(programID, [][]byte{[]byte(PositionSeed), pool.Bytes(), lowerBytes, upperBytes})
}

func DeriveOperationAddress(programID solana.PublicKey) (solana.PublicKey, uint8, error) {
	return findAddress(programID, [][]byte{[]byte(OperationSeed)})
}

// DeriveMetadataAddress derives the Metaplex metadata account for a mint.
// The metadata program is the same on every cluster.
func DeriveMetadataAddress(mint solana.PublicKey) (solana.PublicKey, uint8, error) {
	seeds := [][]byte{
		[]byte("metadata"),
		solana.TokenMetadataProgramID.Bytes(),
		mint.Bytes(),
	}

	return findAddress(solana.TokenMetadataProgramID, seeds)
}

func findAddress(programID solana.PublicKey, seeds [][]byte) (solana.PublicKey, uint8, error) {
	pda, bump, err := solana.FindProgramAddress(seeds, programID)
	if err != nil {
		return solana.PublicKey{}, 0, err
	}
	return pda, bump, nil
}
