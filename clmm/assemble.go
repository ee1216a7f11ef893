package clmm

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"

	solanago "github.com/goran9999/raydium-clmm/solana"
)

// maxPacketSize is the wire limit of a serialized transaction. Packages are
// measured against it with a placeholder blockhash, which has the same
// encoded length as a real one.
const maxPacketSize = 1232

// InstructionSet is the output of a builder: instructions already in
// execution order, plus any throwaway keypairs (position NFT mints) that
// must co-sign.
type InstructionSet struct {
	Instructions []solana.Instruction
	Signers      []solana.PrivateKey

	// Atomic sets must land in one transaction or not at all.
	Atomic bool
}

func (s *InstructionSet) append(instructions ...solana.Instruction) {
	s.Instructions = append(s.Instructions, instructions...)
}

// TxPackage is one transaction ready for signing and submission.
type TxPackage struct {
	Transaction *solana.Transaction

	// Signers are the extra keypairs beyond the fee payer.
	Signers []solana.PrivateKey

	// AbortOnFail marks packages whose successors depend on them.
	AbortOnFail bool
}

// Assemble partitions the given sets into transactions under the packet
// limit. Relative instruction order is preserved; duplicate account
// creations within a package are merged away; an atomic set that cannot fit
// alone fails with ErrTransactionTooLarge.
func (c *Client) Assemble(payer solana.PublicKey, recentBlockhash solana.Hash, sets ...*InstructionSet) ([]*TxPackage, error) {
	var packages []*TxPackage

	var pending []solana.Instruction
	var pendingSigners []solana.PrivateKey

	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		tx, err := buildTransaction(payer, recentBlockhash, pending)
		if err != nil {
			return err
		}
		packages = append(packages, &TxPackage{
			Transaction: tx,
			Signers:     pendingSigners,
		})
		pending = nil
		pendingSigners = nil
		return nil
	}

	for _, set := range sets {
		if set == nil || len(set.Instructions) == 0 {
			continue
		}
		merged := mergePackage(append(append([]solana.Instruction{}, pending...), set.Instructions...))

		size, err := transactionSize(payer, recentBlockhash, merged)
		if err != nil {
			return nil, err
		}
		if size <= maxPacketSize {
			pending = merged
			pendingSigners = append(pendingSigners, set.Signers...)
			continue
		}

		// Does not fit alongside what is queued; close the current package
		// and retry alone.
		if err := flush(); err != nil {
			return nil, err
		}
		alone := mergePackage(set.Instructions)
		size, err = transactionSize(payer, recentBlockhash, alone)
		if err != nil {
			return nil, err
		}
		if size <= maxPacketSize {
			pending = alone
			pendingSigners = append(pendingSigners, set.Signers...)
			continue
		}
		if set.Atomic {
			return nil, fmt.Errorf("%w: atomic set serializes to %d bytes", ErrTransactionTooLarge, size)
		}

		// Non-atomic sets spill instruction by instruction. Every package
		// holding any of the set's instructions carries its signers, so the
		// signers are attached before the first spill and restored after
		// each mid-loop flush.
		pendingSigners = append(pendingSigners, set.Signers...)
		for _, instruction := range alone {
			candidate := append(append([]solana.Instruction{}, pending...), instruction)
			size, err = transactionSize(payer, recentBlockhash, candidate)
			if err != nil {
				return nil, err
			}
			if size > maxPacketSize {
				if len(pending) == 0 {
					return nil, fmt.Errorf("%w: single instruction serializes to %d bytes", ErrTransactionTooLarge, size)
				}
				if err := flush(); err != nil {
					return nil, err
				}
				candidate = []solana.Instruction{instruction}
				pendingSigners = append(pendingSigners, set.Signers...)
			}
			pending = candidate
		}
	}

	if err := flush(); err != nil {
		return nil, err
	}
	// Every package but the last gates the ones after it.
	for i := 0; i < len(packages)-1; i++ {
		packages[i].AbortOnFail = true
	}
	return packages, nil
}

// AssembleWithLatestBlockhash fetches a finalized blockhash and packs the
// sets against it.
func (c *Client) AssembleWithLatestBlockhash(ctx context.Context, payer solana.PublicKey, sets ...*InstructionSet) ([]*TxPackage, error) {
	if c.rpcClient == nil {
		return nil, fmt.Errorf("%w: client has no rpc endpoint", ErrAccountResolution)
	}
	recentBlockhash, err := solanago.GetLatestBlockhash(ctx, c.rpcClient)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAccountResolution, err)
	}
	return c.Assemble(payer, recentBlockhash, sets...)
}

// mergePackage collapses duplicate account creations and wrap transfers,
// then restores create-first close-last ordering.
func mergePackage(instructions []solana.Instruction) []solana.Instruction {
	return solanago.MergeInstructions(solanago.MergeInstructions2(instructions))
}

func buildTransaction(payer solana.PublicKey, recentBlockhash solana.Hash, instructions []solana.Instruction) (*solana.Transaction, error) {
	return solana.NewTransaction(instructions, recentBlockhash, solana.TransactionPayer(payer))
}

func transactionSize(payer solana.PublicKey, recentBlockhash solana.Hash, instructions []solana.Instruction) (int, error) {
	if recentBlockhash.IsZero() {
		recentBlockhash = solana.HashFromBytes(make([]byte, 32))
	}
	tx, err := buildTransaction(payer, recentBlockhash, instructions)
	if err != nil {
		return 0, err
	}
	message, err := tx.Message.MarshalBinary()
	if err != nil {
		return 0, err
	}
	// compact-u16 signature count (1 byte at this scale) + signatures.
	return 1 + 64*int(tx.Message.Header.NumRequiredSignatures) + len(message), nil
}
