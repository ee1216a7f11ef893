package clmm

import (
	"fmt"

	cosmath "cosmossdk.io/math"
	"github.com/gagliardetto/solana-go"

	"github.com/goran9999/raydium-clmm/clmm/amm_v3"
	"github.com/goran9999/raydium-clmm/u128"
	solanago "github.com/goran9999/raydium-clmm/solana"
)

// OpenPositionRequest describes a new position. Liquidity may be given
// explicitly; otherwise it is computed from the two deposit budgets at the
// snapshot price.
type OpenPositionRequest struct {
	TickLower int32
	TickUpper int32

	Amount0Max uint64
	Amount1Max uint64

	Liquidity cosmath.Int

	// BaseToken0, when set, asks the program to treat one side as the fixed
	// base amount instead of the liquidity value.
	BaseToken0 *bool

	SlippageBps  uint16
	WithMetadata bool

	// FundWithSOL wraps lamports into the WSOL account before the deposit
	// and closes it afterwards, when one of the pool mints is wrapped SOL.
	FundWithSOL bool
}

// OpenPositionResult reports the accounts a fresh position lives at.
type OpenPositionResult struct {
	NftMint          solana.PublicKey
	NftAccount       solana.PublicKey
	PersonalPosition solana.PublicKey
	Liquidity        cosmath.Int
	Amount0Max       uint64
	Amount1Max       uint64
}

// OpenPosition builds open_position_v2 together with any missing token
// account creations. Tick arrays for the range boundaries are derived and
// passed writable; the program initializes them when absent.
func (c *Client) OpenPosition(request OpenPositionRequest, snapshot *Snapshot) (*InstructionSet, *OpenPositionResult, error) {
	if err := c.checkFresh(snapshot); err != nil {
		return nil, nil, err
	}
	if err := validateTickRange(request.TickLower, request.TickUpper, snapshot.Pool.TickSpacing); err != nil {
		return nil, nil, err
	}

	sqrtLower, err := amm_v3.SqrtPriceX64FromTick(request.TickLower)
	if err != nil {
		return nil, nil, err
	}
	sqrtUpper, err := amm_v3.SqrtPriceX64FromTick(request.TickUpper)
	if err != nil {
		return nil, nil, err
	}
	sqrtCurrent := snapshot.Pool.SqrtPrice()

	liquidity := request.Liquidity
	if liquidity.IsNil() || liquidity.IsZero() {
		liquidity = amm_v3.LiquidityFromTokenAmounts(
			sqrtCurrent, sqrtLower, sqrtUpper,
			cosmath.NewIntFromUint64(request.Amount0Max),
			cosmath.NewIntFromUint64(request.Amount1Max),
		)
	}
	if liquidity.IsZero() {
		return nil, nil, fmt.Errorf("%w: deposit amounts yield zero liquidity in range [%d, %d)",
			ErrInsufficientLiquidity, request.TickLower, request.TickUpper)
	}

	amount0, amount1 := amm_v3.AmountsFromLiquidity(sqrtCurrent, sqrtLower, sqrtUpper, liquidity, amm_v3.RoundingUp)
	amount0Max, err := slippageUp(amount0, request.SlippageBps)
	if err != nil {
		return nil, nil, err
	}
	amount1Max, err := slippageUp(amount1, request.SlippageBps)
	if err != nil {
		return nil, nil, err
	}

	nftWallet := solana.NewWallet()
	nftMint := nftWallet.PublicKey()
	nftAccount, err := solanago.FindAssociatedTokenAddress(c.owner, nftMint, solana.TokenProgramID)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrAccountResolution, err)
	}
	metadata, _, err := amm_v3.DeriveMetadataAddress(nftMint)
	if err != nil {
		return nil, nil, err
	}
	personalPosition, _, err := amm_v3.DerivePersonalPositionAddress(c.programID, nftMint)
	if err != nil {
		return nil, nil, err
	}
	protocolPosition, _, err := amm_v3.DeriveProtocolPositionAddress(c.programID, snapshot.PoolID, request.TickLower, request.TickUpper)
	if err != nil {
		return nil, nil, err
	}
	tickArrayLower, tickArrayUpper, lowerStart, upperStart, err := c.rangeTickArrays(snapshot, request.TickLower, request.TickUpper)
	if err != nil {
		return nil, nil, err
	}

	set := &InstructionSet{Atomic: true, Signers: []solana.PrivateKey{nftWallet.PrivateKey}}

	resolver := solanago.NewResolver(c.owner, snapshot.ExistingTokenAccounts)
	tokenAccount0, err := c.resolveDeposit(set, resolver, snapshot.Pool.TokenMint0, snapshot.tokenProgram0(), amount0Max, request.FundWithSOL)
	if err != nil {
		return nil, nil, err
	}
	tokenAccount1, err := c.resolveDeposit(set, resolver, snapshot.Pool.TokenMint1, snapshot.tokenProgram1(), amount1Max, request.FundWithSOL)
	if err != nil {
		return nil, nil, err
	}

	liquidityU128, err := u128.GenUint128FromBig(liquidity.BigInt())
	if err != nil {
		return nil, nil, err
	}
	instruction, err := amm_v3.NewOpenPositionInstruction(
		c.programID,
		amm_v3.OpenPositionParams{
			TickLowerIndex:           request.TickLower,
			TickUpperIndex:           request.TickUpper,
			TickArrayLowerStartIndex: lowerStart,
			TickArrayUpperStartIndex: upperStart,
			Liquidity:                liquidityU128,
			Amount0Max:               amount0Max,
			Amount1Max:               amount1Max,
			WithMetadata:             request.WithMetadata,
			BaseFlag:                 request.BaseToken0,
		},
		amm_v3.OpenPositionAccounts{
			Payer:              c.owner,
			PositionNftOwner:   c.owner,
			PositionNftMint:    nftMint,
			PositionNftAccount: nftAccount,
			MetadataAccount:    metadata,
			PoolState:          snapshot.PoolID,
			ProtocolPosition:   protocolPosition,
			TickArrayLower:     tickArrayLower,
			TickArrayUpper:     tickArrayUpper,
			PersonalPosition:   personalPosition,
			TokenAccount0:      tokenAccount0,
			TokenAccount1:      tokenAccount1,
			TokenVault0:        snapshot.Pool.TokenVault0,
			TokenVault1:        snapshot.Pool.TokenVault1,
			Vault0Mint:         snapshot.Pool.TokenMint0,
			Vault1Mint:         snapshot.Pool.TokenMint1,
		},
	)
	if err != nil {
		return nil, nil, err
	}
	set.append(instruction)
	c.unwrapLeftoverSOL(set, snapshot, request.FundWithSOL)

	return set, &OpenPositionResult{
		NftMint:          nftMint,
		NftAccount:       nftAccount,
		PersonalPosition: personalPosition,
		Liquidity:        liquidity,
		Amount0Max:       amount0Max,
		Amount1Max:       amount1Max,
	}, nil
}

// ClosePositionRequest burns an emptied position. When the position still
// carries liquidity or owed fees, a full withdrawal is built in front of the
// close so both land atomically.
type ClosePositionRequest struct {
	Position    *amm_v3.PersonalPositionState
	SlippageBps uint16
	UnwrapSOL   bool
}

func (c *Client) ClosePosition(request ClosePositionRequest, snapshot *Snapshot) (*InstructionSet, error) {
	if request.Position == nil {
		return nil, fmt.Errorf("%w: no position state", ErrSnapshotDecode)
	}
	if err := c.checkFresh(snapshot); err != nil {
		return nil, err
	}
	if !request.Position.PoolID.Equals(snapshot.PoolID) {
		return nil, fmt.Errorf("%w: position belongs to pool %s", ErrSnapshotDecode, request.Position.PoolID)
	}

	set := &InstructionSet{Atomic: true}
	if !request.Position.Liquidity.IsZero() || request.Position.TokenFeesOwed0 > 0 || request.Position.TokenFeesOwed1 > 0 {
		withdraw, _, err := c.DecreaseLiquidity(DecreaseLiquidityRequest{
			Position:    request.Position,
			Liquidity:   cosmath.NewIntFromBigInt(request.Position.Liquidity.Big()),
			SlippageBps: request.SlippageBps,
			UnwrapSOL:   false,
		}, snapshot)
		if err != nil {
			return nil, err
		}
		set.Instructions = withdraw.Instructions
	}

	nftAccount, err := solanago.FindAssociatedTokenAddress(c.owner, request.Position.NftMint, solana.TokenProgramID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAccountResolution, err)
	}
	personalPosition, _, err := amm_v3.DerivePersonalPositionAddress(c.programID, request.Position.NftMint)
	if err != nil {
		return nil, err
	}
	closeIx, err := amm_v3.NewClosePositionInstruction(c.programID, c.owner, request.Position.NftMint, nftAccount, personalPosition)
	if err != nil {
		return nil, err
	}
	set.append(closeIx)
	c.unwrapLeftoverSOL(set, snapshot, request.UnwrapSOL)
	return set, nil
}

// validateTickRange enforces bounds, ordering and spacing alignment.
func validateTickRange(tickLower, tickUpper int32, tickSpacing uint16) error {
	if tickLower < amm_v3.MinTick || tickUpper > amm_v3.MaxTick {
		return fmt.Errorf("%w: range [%d, %d)", ErrTickOutOfBounds, tickLower, tickUpper)
	}
	if tickLower >= tickUpper {
		return fmt.Errorf("%w: lower %d, upper %d", ErrInvalidRange, tickLower, tickUpper)
	}
	spacing := int32(tickSpacing)
	if tickLower%spacing != 0 || tickUpper%spacing != 0 {
		return fmt.Errorf("%w: ticks must be multiples of spacing %d", ErrInvalidRange, spacing)
	}
	return nil
}

// rangeTickArrays derives the tick array accounts covering both range
// boundaries.
func (c *Client) rangeTickArrays(snapshot *Snapshot, tickLower, tickUpper int32) (lower, upper solana.PublicKey, lowerStart, upperStart int32, err error) {
	spacing := snapshot.Pool.TickSpacing
	lowerStart = amm_v3.TickArrayStartIndex(tickLower, spacing)
	upperStart = amm_v3.TickArrayStartIndex(tickUpper, spacing)
	if lower, _, err = amm_v3.DeriveTickArrayAddress(c.programID, snapshot.PoolID, lowerStart, spacing); err != nil {
		return
	}
	upper, _, err = amm_v3.DeriveTickArrayAddress(c.programID, snapshot.PoolID, upperStart, spacing)
	return
}

// resolveDeposit ensures the owner's account for a deposit mint exists and
// wraps SOL into it when the mint is wrapped SOL and funding from lamports
// was requested.
func (c *Client) resolveDeposit(set *InstructionSet, resolver *solanago.Resolver, mint, tokenProgram solana.PublicKey, amount uint64, fundWithSOL bool) (solana.PublicKey, error) {
	account, creates, err := resolver.Resolve(c.owner, mint, tokenProgram)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("%w: %v", ErrAccountResolution, err)
	}
	set.append(creates...)
	if fundWithSOL && mint.Equals(solana.WrappedSol) && amount > 0 {
		set.append(solanago.WrapSOLInstructions(c.owner, account, amount)...)
	}
	return account, nil
}

// unwrapLeftoverSOL closes the owner's WSOL account after the operation so
// leftover lamports return to the wallet.
func (c *Client) unwrapLeftoverSOL(set *InstructionSet, snapshot *Snapshot, enabled bool) {
	if !enabled {
		return
	}
	if !snapshot.Pool.TokenMint0.Equals(solana.WrappedSol) && !snapshot.Pool.TokenMint1.Equals(solana.WrappedSol) {
		return
	}
	wsolAccount, err := solanago.FindAssociatedTokenAddress(c.owner, solana.WrappedSol, solana.TokenProgramID)
	if err != nil {
		return
	}
	set.append(solanago.UnwrapSOLInstruction(c.owner, wsolAccount))
}
