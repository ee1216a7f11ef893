package clmm

import (
	"fmt"

	cosmath "cosmossdk.io/math"
	"github.com/gagliardetto/solana-go"

	"github.com/goran9999/raydium-clmm/clmm/amm_v3"
	"github.com/goran9999/raydium-clmm/u128"
	solanago "github.com/goran9999/raydium-clmm/solana"
)

const slippageDenominator = 10_000

// slippageUp pads an expected amount by the basis-point tolerance, rounding
// against the caller.
func slippageUp(amount cosmath.Int, bps uint16) (uint64, error) {
	padded := amm_v3.MulDivCeil(amount,
		cosmath.NewInt(slippageDenominator+int64(bps)),
		cosmath.NewInt(slippageDenominator))
	if !padded.BigInt().IsUint64() {
		return 0, fmt.Errorf("%w: amount %s exceeds u64 after slippage", ErrInvalidRange, amount)
	}
	return padded.Uint64(), nil
}

// slippageDown shaves an expected amount by the basis-point tolerance.
func slippageDown(amount cosmath.Int, bps uint16) (uint64, error) {
	if bps >= slippageDenominator {
		return 0, nil
	}
	shaved := amm_v3.MulDivFloor(amount,
		cosmath.NewInt(slippageDenominator-int64(bps)),
		cosmath.NewInt(slippageDenominator))
	if !shaved.BigInt().IsUint64() {
		return 0, fmt.Errorf("%w: amount %s exceeds u64", ErrInvalidRange, amount)
	}
	return shaved.Uint64(), nil
}

// IncreaseLiquidityRequest adds to an existing position. As with
// OpenPosition, liquidity is either explicit or computed from the budgets.
type IncreaseLiquidityRequest struct {
	Position *amm_v3.PersonalPositionState

	Amount0Max uint64
	Amount1Max uint64
	Liquidity  cosmath.Int
	BaseToken0 *bool

	SlippageBps uint16
	FundWithSOL bool
}

// IncreaseLiquidityResult reports the bounds encoded in the instruction.
type IncreaseLiquidityResult struct {
	Liquidity  cosmath.Int
	Amount0Max uint64
	Amount1Max uint64
}

func (c *Client) IncreaseLiquidity(request IncreaseLiquidityRequest, snapshot *Snapshot) (*InstructionSet, *IncreaseLiquidityResult, error) {
	if request.Position == nil {
		return nil, nil, fmt.Errorf("%w: no position state", ErrSnapshotDecode)
	}
	if err := c.checkFresh(snapshot); err != nil {
		return nil, nil, err
	}
	if !request.Position.PoolID.Equals(snapshot.PoolID) {
		return nil, nil, fmt.Errorf("%w: position belongs to pool %s", ErrSnapshotDecode, request.Position.PoolID)
	}

	sqrtLower, err := amm_v3.SqrtPriceX64FromTick(request.Position.TickLowerIndex)
	if err != nil {
		return nil, nil, err
	}
	sqrtUpper, err := amm_v3.SqrtPriceX64FromTick(request.Position.TickUpperIndex)
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
		return nil, nil, fmt.Errorf("%w: deposit amounts yield zero liquidity", ErrInsufficientLiquidity)
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

	accounts, set, err := c.positionAccounts(request.Position, snapshot)
	if err != nil {
		return nil, nil, err
	}
	tokenAccount0, err := c.resolveDeposit(set, accounts.resolver, snapshot.Pool.TokenMint0, snapshot.tokenProgram0(), amount0Max, request.FundWithSOL)
	if err != nil {
		return nil, nil, err
	}
	tokenAccount1, err := c.resolveDeposit(set, accounts.resolver, snapshot.Pool.TokenMint1, snapshot.tokenProgram1(), amount1Max, request.FundWithSOL)
	if err != nil {
		return nil, nil, err
	}

	liquidityU128, err := u128.GenUint128FromBig(liquidity.BigInt())
	if err != nil {
		return nil, nil, err
	}
	instruction, err := amm_v3.NewIncreaseLiquidityInstruction(
		c.programID,
		amm_v3.IncreaseLiquidityParams{
			Liquidity:  liquidityU128,
			Amount0Max: amount0Max,
			Amount1Max: amount1Max,
			BaseFlag:   request.BaseToken0,
		},
		amm_v3.IncreaseLiquidityAccounts{
			NftOwner:         c.owner,
			NftAccount:       accounts.nftAccount,
			PoolState:        snapshot.PoolID,
			ProtocolPosition: accounts.protocolPosition,
			PersonalPosition: accounts.personalPosition,
			TickArrayLower:   accounts.tickArrayLower,
			TickArrayUpper:   accounts.tickArrayUpper,
			TokenAccount0:    tokenAccount0,
			TokenAccount1:    tokenAccount1,
			TokenVault0:      snapshot.Pool.TokenVault0,
			TokenVault1:      snapshot.Pool.TokenVault1,
			Vault0Mint:       snapshot.Pool.TokenMint0,
			Vault1Mint:       snapshot.Pool.TokenMint1,
		},
	)
	if err != nil {
		return nil, nil, err
	}
	set.append(instruction)
	c.unwrapLeftoverSOL(set, snapshot, request.FundWithSOL)

	return set, &IncreaseLiquidityResult{
		Liquidity:  liquidity,
		Amount0Max: amount0Max,
		Amount1Max: amount1Max,
	}, nil
}

// DecreaseLiquidityRequest withdraws liquidity plus any fees and rewards
// owed. Explicit minima override the slippage-derived ones; minima above
// what the snapshot price can yield fail fast.
type DecreaseLiquidityRequest struct {
	Position *amm_v3.PersonalPositionState

	Liquidity cosmath.Int

	Amount0Min *uint64
	Amount1Min *uint64

	SlippageBps uint16
	UnwrapSOL   bool
}

// DecreaseLiquidityResult reports the minima encoded in the instruction.
type DecreaseLiquidityResult struct {
	Amount0Min uint64
	Amount1Min uint64
}

func (c *Client) DecreaseLiquidity(request DecreaseLiquidityRequest, snapshot *Snapshot) (*InstructionSet, *DecreaseLiquidityResult, error) {
	if request.Position == nil {
		return nil, nil, fmt.Errorf("%w: no position state", ErrSnapshotDecode)
	}
	if err := c.checkFresh(snapshot); err != nil {
		return nil, nil, err
	}
	if !request.Position.PoolID.Equals(snapshot.PoolID) {
		return nil, nil, fmt.Errorf("%w: position belongs to pool %s", ErrSnapshotDecode, request.Position.PoolID)
	}

	liquidity := request.Liquidity
	if liquidity.IsNil() {
		liquidity = cosmath.ZeroInt()
	}
	held := cosmath.NewIntFromBigInt(request.Position.Liquidity.Big())
	if liquidity.GT(held) {
		return nil, nil, fmt.Errorf("%w: position holds %s, requested %s", ErrInsufficientLiquidity, held, liquidity)
	}

	var amount0Min, amount1Min uint64
	if !liquidity.IsZero() {
		sqrtLower, err := amm_v3.SqrtPriceX64FromTick(request.Position.TickLowerIndex)
		if err != nil {
			return nil, nil, err
		}
		sqrtUpper, err := amm_v3.SqrtPriceX64FromTick(request.Position.TickUpperIndex)
		if err != nil {
			return nil, nil, err
		}
		amount0, amount1 := amm_v3.AmountsFromLiquidity(snapshot.Pool.SqrtPrice(), sqrtLower, sqrtUpper, liquidity, amm_v3.RoundingDown)

		if amount0Min, err = slippageDown(amount0, request.SlippageBps); err != nil {
			return nil, nil, err
		}
		if amount1Min, err = slippageDown(amount1, request.SlippageBps); err != nil {
			return nil, nil, err
		}
		if request.Amount0Min != nil {
			if !amount0.BigInt().IsUint64() || *request.Amount0Min > amount0.Uint64() {
				return nil, nil, fmt.Errorf("%w: token0 minimum %d, snapshot yields %s", ErrSlippageExceeded, *request.Amount0Min, amount0)
			}
			amount0Min = *request.Amount0Min
		}
		if request.Amount1Min != nil {
			if !amount1.BigInt().IsUint64() || *request.Amount1Min > amount1.Uint64() {
				return nil, nil, fmt.Errorf("%w: token1 minimum %d, snapshot yields %s", ErrSlippageExceeded, *request.Amount1Min, amount1)
			}
			amount1Min = *request.Amount1Min
		}
	}

	accounts, set, err := c.positionAccounts(request.Position, snapshot)
	if err != nil {
		return nil, nil, err
	}
	recipient0, err := c.resolveDeposit(set, accounts.resolver, snapshot.Pool.TokenMint0, snapshot.tokenProgram0(), 0, false)
	if err != nil {
		return nil, nil, err
	}
	recipient1, err := c.resolveDeposit(set, accounts.resolver, snapshot.Pool.TokenMint1, snapshot.tokenProgram1(), 0, false)
	if err != nil {
		return nil, nil, err
	}
	rewardAccounts, err := c.rewardAccounts(set, accounts.resolver, snapshot)
	if err != nil {
		return nil, nil, err
	}

	liquidityU128, err := u128.GenUint128FromBig(liquidity.BigInt())
	if err != nil {
		return nil, nil, err
	}
	instruction, err := amm_v3.NewDecreaseLiquidityInstruction(
		c.programID,
		amm_v3.DecreaseLiquidityParams{
			Liquidity:  liquidityU128,
			Amount0Min: amount0Min,
			Amount1Min: amount1Min,
		},
		amm_v3.DecreaseLiquidityAccounts{
			NftOwner:               c.owner,
			NftAccount:             accounts.nftAccount,
			PersonalPosition:       accounts.personalPosition,
			PoolState:              snapshot.PoolID,
			ProtocolPosition:       accounts.protocolPosition,
			TokenVault0:            snapshot.Pool.TokenVault0,
			TokenVault1:            snapshot.Pool.TokenVault1,
			TickArrayLower:         accounts.tickArrayLower,
			TickArrayUpper:         accounts.tickArrayUpper,
			RecipientTokenAccount0: recipient0,
			RecipientTokenAccount1: recipient1,
			Vault0Mint:             snapshot.Pool.TokenMint0,
			Vault1Mint:             snapshot.Pool.TokenMint1,
			RewardAccounts:         rewardAccounts,
		},
	)
	if err != nil {
		return nil, nil, err
	}
	set.append(instruction)
	c.unwrapLeftoverSOL(set, snapshot, request.UnwrapSOL)

	return set, &DecreaseLiquidityResult{Amount0Min: amount0Min, Amount1Min: amount1Min}, nil
}

// CollectFeesRequest withdraws only the fees and rewards owed to a
// position.
type CollectFeesRequest struct {
	Position  *amm_v3.PersonalPositionState
	UnwrapSOL bool
}

// CollectFees is a zero-liquidity withdrawal, the program's fee-collection
// path.
func (c *Client) CollectFees(request CollectFeesRequest, snapshot *Snapshot) (*InstructionSet, error) {
	set, _, err := c.DecreaseLiquidity(DecreaseLiquidityRequest{
		Position:  request.Position,
		Liquidity: cosmath.ZeroInt(),
		UnwrapSOL: request.UnwrapSOL,
	}, snapshot)
	return set, err
}

// positionAccountSet bundles the derived accounts every position mutation
// needs.
type positionAccountSet struct {
	nftAccount       solana.PublicKey
	personalPosition solana.PublicKey
	protocolPosition solana.PublicKey
	tickArrayLower   solana.PublicKey
	tickArrayUpper   solana.PublicKey
	resolver         *solanago.Resolver
}

func (c *Client) positionAccounts(position *amm_v3.PersonalPositionState, snapshot *Snapshot) (*positionAccountSet, *InstructionSet, error) {
	accounts := &positionAccountSet{
		resolver: solanago.NewResolver(c.owner, snapshot.ExistingTokenAccounts),
	}

	var err error
	if accounts.nftAccount, err = solanago.FindAssociatedTokenAddress(c.owner, position.NftMint, solana.TokenProgramID); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrAccountResolution, err)
	}
	if accounts.personalPosition, _, err = amm_v3.DerivePersonalPositionAddress(c.programID, position.NftMint); err != nil {
		return nil, nil, err
	}
	if accounts.protocolPosition, _, err = amm_v3.DeriveProtocolPositionAddress(c.programID, snapshot.PoolID, position.TickLowerIndex, position.TickUpperIndex); err != nil {
		return nil, nil, err
	}
	if accounts.tickArrayLower, accounts.tickArrayUpper, _, _, err = c.rangeTickArrays(snapshot, position.TickLowerIndex, position.TickUpperIndex); err != nil {
		return nil, nil, err
	}
	return accounts, &InstructionSet{Atomic: true}, nil
}

// rewardAccounts builds the vault/recipient/mint triples for every active
// reward slot, creating recipient accounts as needed.
func (c *Client) rewardAccounts(set *InstructionSet, resolver *solanago.Resolver, snapshot *Snapshot) ([]solana.PublicKey, error) {
	var accounts []solana.PublicKey
	for _, reward := range snapshot.Pool.RewardInfos {
		if reward.TokenMint.IsZero() {
			continue
		}
		recipient, creates, err := resolver.Resolve(c.owner, reward.TokenMint, solana.TokenProgramID)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrAccountResolution, err)
		}
		set.append(creates...)
		accounts = append(accounts, reward.TokenVault, recipient, reward.TokenMint)
	}
	return accounts, nil
}
