package amm_v3

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"
)

func TestSortMints(t *testing.T) {
	a := solana.WrappedSol
	b := solana.MustPublicKeyFromBase58("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v") // USDC

	m0, m1 := SortMints(a, b)
	n0, n1 := SortMints(b, a)
	require.Equal(t, m0, n0)
	require.Equal(t, m1, n1)
	require.Equal(t, -1, bytesCompare(m0, m1))
}

func bytesCompare(a, b solana.PublicKey) int {
	for i := range a {
		switch {
		case a[i] < b[i]:
			return -1
		case a[i] > b[i]:
			return 1
		}
	}
	return 0
}

func TestDerivePoolAddressOrderInsensitive(t *testing.T) {
	config, _, err := DeriveAmmConfigAddress(ProgramID, 4)
	require.NoError(t, err)

	a := solana.WrappedSol
	b := solana.MustPublicKeyFromBase58("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v")

	pool1, bump1, err := DerivePoolAddress(ProgramID, config, a, b)
	require.NoError(t, err)
	pool2, bump2, err := DerivePoolAddress(ProgramID, config, b, a)
	require.NoError(t, err)
	require.Equal(t, pool1, pool2)
	require.Equal(t, bump1, bump2)
	require.False(t, pool1.IsZero())
}

func TestDeriveAmmConfigAddressDistinctPerIndex(t *testing.T) {
	seen := map[solana.PublicKey]bool{}
	for _, index := range []uint16{0, 1, 2, 255, 1024} {
		address, _, err := DeriveAmmConfigAddress(ProgramID, index)
		require.NoError(t, err)
		require.False(t, seen[address], "index %d collides", index)
		seen[address] = true
	}
}

func TestDeriveAddressesFollowProgramID(t *testing.T) {
	other := solana.NewWallet().PublicKey()
	pool := solana.NewWallet().PublicKey()

	mainnet, _, err := DeriveTickArrayAddress(ProgramID, pool, -28800, 64)
	require.NoError(t, err)
	forked, _, err := DeriveTickArrayAddress(other, pool, -28800, 64)
	require.NoError(t, err)
	require.NotEqual(t, mainnet, forked)

	config1, _, err := DeriveAmmConfigAddress(ProgramID, 0)
	require.NoError(t, err)
	config2, _, err := DeriveAmmConfigAddress(other, 0)
	require.NoError(t, err)
	require.NotEqual(t, config1, config2)
}

func TestDeriveReturnsCanonicalBump(t *testing.T) {
	pool := solana.NewWallet().PublicKey()

	address, bump, err := DeriveObservationAddress(ProgramID, pool)
	require.NoError(t, err)

	derived, err := solana.CreateProgramAddress([][]byte{
		[]byte(ObservationSeed), pool.Bytes(), {bump},
	}, ProgramID)
	require.NoError(t, err)
	require.Equal(t, address, derived)
}

func TestDeriveTickArrayAddressValidatesStart(t *testing.T) {
	pool := solana.NewWallet().PublicKey()

	address, _, err := DeriveTickArrayAddress(ProgramID, pool, -28800, 64)
	require.NoError(t, err)
	require.False(t, address.IsZero())

	// Not a multiple of the array span.
	_, _, err = DeriveTickArrayAddress(ProgramID, pool, -28801, 64)
	require.ErrorIs(t, err, ErrInvalidSeed)

	// Aligned but beyond the tick domain.
	_, _, err = DeriveTickArrayAddress(ProgramID, pool, 120*3840, 64)
	require.ErrorIs(t, err, ErrInvalidSeed)
}

func TestDeriveProtocolPositionAddressSignedTicks(t *testing.T) {
	pool := solana.NewWallet().PublicKey()

	neg, _, err := DeriveProtocolPositionAddress(ProgramID, pool, -120, 120)
	require.NoError(t, err)
	pos, _, err := DeriveProtocolPositionAddress(ProgramID, pool, 120, 240)
	require.NoError(t, err)
	require.NotEqual(t, neg, pos)

	// Deterministic across calls.
	again, _, err := DeriveProtocolPositionAddress(ProgramID, pool, -120, 120)
	require.NoError(t, err)
	require.Equal(t, neg, again)
}

func TestDerivationFamiliesDoNotCollide(t *testing.T) {
	pool := solana.NewWallet().PublicKey()
	mint := solana.NewWallet().PublicKey()

	vault, _, err := DeriveTokenVaultAddress(ProgramID, pool, mint)
	require.NoError(t, err)
	observation, _, err := DeriveObservationAddress(ProgramID, pool)
	require.NoError(t, err)
	bitmapExt, _, err := DeriveTickArrayBitmapExtension(ProgramID, pool)
	require.NoError(t, err)
	personal, _, err := DerivePersonalPositionAddress(ProgramID, mint)
	require.NoError(t, err)

	addresses := []solana.PublicKey{vault, observation, bitmapExt, personal}
	for i := range addresses {
		for j := i + 1; j < len(addresses); j++ {
			require.NotEqual(t, addresses[i], addresses[j])
		}
	}
}

func TestDeriveMetadataAddressUsesMetadataProgram(t *testing.T) {
	mint := solana.NewWallet().PublicKey()

	metadata, _, err := DeriveMetadataAddress(mint)
	require.NoError(t, err)
	require.False(t, metadata.IsZero())

	other, _, err := DeriveMetadataAddress(solana.NewWallet().PublicKey())
	require.NoError(t, err)
	require.NotEqual(t, metadata, other)
}
