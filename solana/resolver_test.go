package solana

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"
)

var (
	testOwner = solana.MustPublicKeyFromBase58("6tBou5MHL5aWpDy6cgf3wiwGGK2mR8qs68ujtpaoWrf2")
	token2022 = solana.MustPublicKeyFromBase58("TokenzQdBNbLqP5VEhdkAS6EPFLC1PHnBqCXEpPxuEb")
)

func TestResolverCreatesOnce(t *testing.T) {
	mint := solana.NewWallet().PublicKey()
	resolver := NewResolver(testOwner, nil)

	ata, creates, err := resolver.Resolve(testOwner, mint, solana.TokenProgramID)
	require.NoError(t, err)
	require.False(t, ata.IsZero())
	require.Len(t, creates, 1)

	// The same pair a second time emits nothing.
	again, creates, err := resolver.Resolve(testOwner, mint, solana.TokenProgramID)
	require.NoError(t, err)
	require.Equal(t, ata, again)
	require.Empty(t, creates)

	require.True(t, resolver.Lookup(ata))
}

func TestResolverSkipsKnownAccounts(t *testing.T) {
	mint := solana.NewWallet().PublicKey()
	ata, err := FindAssociatedTokenAddress(testOwner, mint, solana.TokenProgramID)
	require.NoError(t, err)

	resolver := NewResolver(testOwner, []solana.PublicKey{ata})
	resolved, creates, err := resolver.Resolve(testOwner, mint, solana.TokenProgramID)
	require.NoError(t, err)
	require.Equal(t, ata, resolved)
	require.Empty(t, creates)
}

func TestResolverRejectsZeroKeys(t *testing.T) {
	resolver := NewResolver(testOwner, nil)

	_, _, err := resolver.Resolve(solana.PublicKey{}, solana.NewWallet().PublicKey(), solana.TokenProgramID)
	require.Error(t, err)

	_, _, err = resolver.Resolve(testOwner, solana.PublicKey{}, solana.TokenProgramID)
	require.Error(t, err)
}

func TestFindAssociatedTokenAddressPerProgram(t *testing.T) {
	mint := solana.NewWallet().PublicKey()

	legacy, err := FindAssociatedTokenAddress(testOwner, mint, solana.TokenProgramID)
	require.NoError(t, err)

	// A zero token program falls back to the legacy derivation.
	fallback, err := FindAssociatedTokenAddress(testOwner, mint, solana.PublicKey{})
	require.NoError(t, err)
	require.Equal(t, legacy, fallback)

	// The library helper agrees on the legacy path.
	reference, _, err := solana.FindAssociatedTokenAddress(testOwner, mint)
	require.NoError(t, err)
	require.Equal(t, reference, legacy)

	// Token-2022 accounts live at a different address.
	modern, err := FindAssociatedTokenAddress(testOwner, mint, token2022)
	require.NoError(t, err)
	require.NotEqual(t, legacy, modern)
}

func TestResolverTokenProgramsIndependent(t *testing.T) {
	mint := solana.NewWallet().PublicKey()
	resolver := NewResolver(testOwner, nil)

	legacy, creates, err := resolver.Resolve(testOwner, mint, solana.TokenProgramID)
	require.NoError(t, err)
	require.Len(t, creates, 1)

	modern, creates, err := resolver.Resolve(testOwner, mint, token2022)
	require.NoError(t, err)
	require.Len(t, creates, 1, "different token program means a different account")
	require.NotEqual(t, legacy, modern)

	// The hand-built token-2022 create references its token program.
	programs := creates[0].Accounts()
	require.Equal(t, token2022, programs[len(programs)-1].PublicKey)
}
