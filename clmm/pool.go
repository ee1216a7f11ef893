package clmm

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"

	"github.com/goran9999/raydium-clmm/clmm/amm_v3"
	solanago "github.com/goran9999/raydium-clmm/solana"
	"github.com/goran9999/raydium-clmm/u128"
)

// CreatePoolRequest describes a pool to initialize. MintA/MintB may be given
// in either order; InitialPrice is units of MintB per one MintA and is
// inverted automatically when the canonical mint order swaps them.
type CreatePoolRequest struct {
	AmmConfigIndex uint16

	MintA     solana.PublicKey
	MintB     solana.PublicKey
	DecimalsA uint8
	DecimalsB uint8

	// TokenProgramA/B default to the legacy token program when zero.
	TokenProgramA solana.PublicKey
	TokenProgramB solana.PublicKey

	InitialPrice decimal.Decimal

	// OpenTime of zero opens the pool immediately.
	OpenTime uint64
}

// CreatePoolAddresses are the derived accounts of a new pool, returned so
// the caller can load a snapshot or fund positions afterwards.
type CreatePoolAddresses struct {
	AmmConfig   solana.PublicKey
	PoolState   solana.PublicKey
	TokenMint0  solana.PublicKey
	TokenMint1  solana.PublicKey
	TokenVault0 solana.PublicKey
	TokenVault1 solana.PublicKey
	Observation solana.PublicKey
	BitmapExt   solana.PublicKey
}

// CreatePool builds the create_pool instruction with all accounts derived
// from the config index and the sorted mint pair.
func (c *Client) CreatePool(request CreatePoolRequest) (*InstructionSet, *CreatePoolAddresses, error) {
	if request.MintA.IsZero() || request.MintB.IsZero() || request.MintA.Equals(request.MintB) {
		return nil, nil, fmt.Errorf("%w: pool needs two distinct mints", ErrInvalidSeed)
	}
	if !request.InitialPrice.IsPositive() {
		return nil, nil, fmt.Errorf("%w: initial price must be positive", ErrInvalidRange)
	}

	mint0, mint1 := amm_v3.SortMints(request.MintA, request.MintB)
	price := request.InitialPrice
	decimals0, decimals1 := request.DecimalsA, request.DecimalsB
	program0, program1 := request.TokenProgramA, request.TokenProgramB
	if !mint0.Equals(request.MintA) {
		price = decimal.NewFromInt(1).Div(price)
		decimals0, decimals1 = request.DecimalsB, request.DecimalsA
		program0, program1 = request.TokenProgramB, request.TokenProgramA
	}
	if program0.IsZero() {
		program0 = solana.TokenProgramID
	}
	if program1.IsZero() {
		program1 = solana.TokenProgramID
	}

	sqrtPriceX64 := amm_v3.SqrtPriceX64FromPrice(price, decimals0, decimals1)
	if sqrtPriceX64.LT(amm_v3.MinSqrtPriceX64) || sqrtPriceX64.GT(amm_v3.MaxSqrtPriceX64) {
		return nil, nil, fmt.Errorf("%w: initial price out of representable range", ErrTickOutOfBounds)
	}
	sqrtPrice, err := u128.GenUint128FromBig(sqrtPriceX64.BigInt())
	if err != nil {
		return nil, nil, err
	}

	addresses := &CreatePoolAddresses{TokenMint0: mint0, TokenMint1: mint1}
	if addresses.AmmConfig, _, err = amm_v3.DeriveAmmConfigAddress(c.programID, request.AmmConfigIndex); err != nil {
		return nil, nil, err
	}
	if addresses.PoolState, _, err = amm_v3.DerivePoolAddress(c.programID, addresses.AmmConfig, mint0, mint1); err != nil {
		return nil, nil, err
	}
	if addresses.TokenVault0, _, err = amm_v3.DeriveTokenVaultAddress(c.programID, addresses.PoolState, mint0); err != nil {
		return nil, nil, err
	}
	if addresses.TokenVault1, _, err = amm_v3.DeriveTokenVaultAddress(c.programID, addresses.PoolState, mint1); err != nil {
		return nil, nil, err
	}
	if addresses.Observation, _, err = amm_v3.DeriveObservationAddress(c.programID, addresses.PoolState); err != nil {
		return nil, nil, err
	}
	if addresses.BitmapExt, _, err = amm_v3.DeriveTickArrayBitmapExtension(c.programID, addresses.PoolState); err != nil {
		return nil, nil, err
	}

	instruction, err := amm_v3.NewCreatePoolInstruction(
		c.programID,
		amm_v3.CreatePoolParams{SqrtPriceX64: sqrtPrice, OpenTime: request.OpenTime},
		c.owner,
		addresses.AmmConfig,
		addresses.PoolState,
		mint0,
		mint1,
		addresses.TokenVault0,
		addresses.TokenVault1,
		addresses.Observation,
		addresses.BitmapExt,
		program0,
		program1,
	)
	if err != nil {
		return nil, nil, err
	}

	return &InstructionSet{
		Instructions: []solana.Instruction{instruction},
		Atomic:       true,
	}, addresses, nil
}

// CreatePoolFromChain fills the mint decimals and owning token programs from
// the chain before building, so callers only supply the mints and the price.
func (c *Client) CreatePoolFromChain(ctx context.Context, request CreatePoolRequest) (*InstructionSet, *CreatePoolAddresses, error) {
	if c.rpcClient == nil {
		return nil, nil, fmt.Errorf("%w: client has no rpc endpoint", ErrAccountResolution)
	}

	tokens, err := solanago.GetMultipleToken(ctx, c.rpcClient, request.MintA, request.MintB)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrAccountResolution, err)
	}
	if tokens[0] == nil || tokens[1] == nil {
		return nil, nil, fmt.Errorf("%w: pool mint missing", ErrAccountResolution)
	}

	request.DecimalsA, request.DecimalsB = tokens[0].Decimals, tokens[1].Decimals
	request.TokenProgramA, request.TokenProgramB = tokens[0].Owner, tokens[1].Owner
	return c.CreatePool(request)
}
