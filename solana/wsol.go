package solana

import (
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/programs/token"
)

// WrapSOLInstructions funds a WSOL token account with lamports and syncs its
// balance. The account itself must already exist or be created earlier in
// the same transaction.
func WrapSOLInstructions(owner, wsolAccount solana.PublicKey, lamports uint64) []solana.Instruction {
	transferIx := system.NewTransferInstruction(
		lamports,
		owner,
		wsolAccount,
	).Build()
	syncNativeIx := token.NewSyncNativeInstruction(
		wsolAccount,
	).Build()
	return []solana.Instruction{transferIx, syncNativeIx}
}

// UnwrapSOLInstruction closes a WSOL token account, returning its lamports
// to the owner.
func UnwrapSOLInstruction(owner, wsolAccount solana.PublicKey) solana.Instruction {
	return token.NewCloseAccountInstruction(
		wsolAccount,
		owner,
		owner,
		[]solana.PublicKey{},
	).Build()
}
