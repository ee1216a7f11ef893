package solana

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	associatedtokenaccount "github.com/gagliardetto/solana-go/programs/associated-token-account"
)

// Resolver maps (owner, mint) pairs to associated token accounts without
// touching the network. Accounts known to exist on chain are supplied up
// front; the resolver emits a create instruction the first time an unknown
// account is requested and never a second time, so resolving the same pair
// twice in one build is safe.
type Resolver struct {
	payer    solana.PublicKey
	existing map[solana.PublicKey]struct{}
	created  map[solana.PublicKey]struct{}
}

func NewResolver(payer solana.PublicKey, existing []solana.PublicKey) *Resolver {
	r := &Resolver{
		payer:    payer,
		existing: make(map[solana.PublicKey]struct{}, len(existing)),
		created:  make(map[solana.PublicKey]struct{}),
	}
	for _, account := range existing {
		r.existing[account] = struct{}{}
	}
	return r
}

// Resolve returns the associated token account for owner and mint, plus the
// create instruction when the account is not known to exist yet.
func (r *Resolver) Resolve(owner, mint, tokenProgram solana.PublicKey) (solana.PublicKey, []solana.Instruction, error) {
	if owner.IsZero() || mint.IsZero() {
		return solana.PublicKey{}, nil, fmt.Errorf("resolve ata: owner and mint must be set")
	}
	ata, err := FindAssociatedTokenAddress(owner, mint, tokenProgram)
	if err != nil {
		return solana.PublicKey{}, nil, fmt.Errorf("derive ata for mint %s: %w", mint, err)
	}

	if _, ok := r.existing[ata]; ok {
		return ata, nil, nil
	}
	if _, ok := r.created[ata]; ok {
		return ata, nil, nil
	}
	r.created[ata] = struct{}{}

	ix, err := newCreateATAInstruction(r.payer, owner, mint, ata, tokenProgram)
	if err != nil {
		return solana.PublicKey{}, nil, err
	}
	return ata, []solana.Instruction{ix}, nil
}

// Lookup reports whether the resolver already accounts for the address,
// either as pre-existing or as created earlier in this build.
func (r *Resolver) Lookup(account solana.PublicKey) bool {
	if _, ok := r.existing[account]; ok {
		return true
	}
	_, ok := r.created[account]
	return ok
}

// FindAssociatedTokenAddress derives the ATA for any token program. The
// helper shipped with solana-go is hardwired to the legacy token program.
func FindAssociatedTokenAddress(owner, mint, tokenProgram solana.PublicKey) (solana.PublicKey, error) {
	if tokenProgram.IsZero() || tokenProgram.Equals(solana.TokenProgramID) {
		ata, _, err := solana.FindAssociatedTokenAddress(owner, mint)
		return ata, err
	}
	ata, _, err := solana.FindProgramAddress(
		[][]byte{owner.Bytes(), tokenProgram.Bytes(), mint.Bytes()},
		solana.SPLAssociatedTokenAccountProgramID,
	)
	return ata, err
}

func newCreateATAInstruction(payer, owner, mint, ata, tokenProgram solana.PublicKey) (solana.Instruction, error) {
	if tokenProgram.IsZero() || tokenProgram.Equals(solana.TokenProgramID) {
		return associatedtokenaccount.NewCreateInstruction(payer, owner, mint).Build(), nil
	}

	// The generated builder pins the legacy token program, so token-2022
	// ATAs are assembled by hand.
	metas := solana.AccountMetaSlice{
		solana.NewAccountMeta(payer, true, true),
		solana.NewAccountMeta(ata, true, false),
		solana.NewAccountMeta(owner, false, false),
		solana.NewAccountMeta(mint, false, false),
		solana.NewAccountMeta(solana.SystemProgramID, false, false),
		solana.NewAccountMeta(tokenProgram, false, false),
	}
	return solana.NewInstruction(solana.SPLAssociatedTokenAccountProgramID, metas, nil), nil
}
