package clmm

import (
	"fmt"
	"math"
	"math/big"

	cosmath "cosmossdk.io/math"
	"github.com/gagliardetto/solana-go"

	"github.com/goran9999/raydium-clmm/clmm/amm_v3"
	"github.com/goran9999/raydium-clmm/u128"
	solanago "github.com/goran9999/raydium-clmm/solana"
	"github.com/goran9999/raydium-clmm/solana/token2022"
)

// SwapRequest describes a single-hop swap. Amount is the input amount for
// exact-in, or the desired output for exact-out. An explicit
// OtherAmountThreshold overrides the slippage-derived one.
type SwapRequest struct {
	InputMint solana.PublicKey
	Amount    uint64
	ExactOut  bool

	SlippageBps          uint16
	OtherAmountThreshold *uint64

	// SqrtPriceLimitX64 of nil means no limit beyond the representable
	// price range.
	SqrtPriceLimitX64 cosmath.Int

	FundWithSOL bool
	UnwrapSOL   bool
}

// SwapResult carries the client-side estimate backing the built
// instruction.
type SwapResult struct {
	Estimate *amm_v3.SwapEstimate

	// AmountOut and AmountIn are net of token-2022 transfer fees.
	AmountIn  uint64
	AmountOut uint64

	OtherAmountThreshold uint64
}

// Swap estimates the trade against the snapshot, fails fast when the
// estimate already violates the caller's limit, and builds swap_v2 with the
// tick arrays the simulated path touched as remaining accounts.
func (c *Client) Swap(request SwapRequest, snapshot *Snapshot) (*InstructionSet, *SwapResult, error) {
	if err := c.checkFresh(snapshot); err != nil {
		return nil, nil, err
	}
	if snapshot.AmmConfig == nil {
		return nil, nil, fmt.Errorf("%w: snapshot has no fee config", ErrSnapshotDecode)
	}
	if request.Amount == 0 {
		return nil, nil, fmt.Errorf("%w: zero swap amount", ErrInvalidRange)
	}

	zeroForOne, err := swapDirection(request.InputMint, snapshot)
	if err != nil {
		return nil, nil, err
	}
	inputMint, outputMint := snapshot.Pool.TokenMint0, snapshot.Pool.TokenMint1
	inputProgram, outputProgram := snapshot.tokenProgram0(), snapshot.tokenProgram1()
	inputVault, outputVault := snapshot.Pool.TokenVault0, snapshot.Pool.TokenVault1
	if !zeroForOne {
		inputMint, outputMint = outputMint, inputMint
		inputProgram, outputProgram = outputProgram, inputProgram
		inputVault, outputVault = outputVault, inputVault
	}

	estimate, amountIn, amountOut, err := c.estimateWithTransferFees(request, snapshot, inputMint, outputMint, zeroForOne)
	if err != nil {
		return nil, nil, err
	}

	threshold, err := swapThreshold(request, amountIn, amountOut)
	if err != nil {
		return nil, nil, err
	}

	set := &InstructionSet{Atomic: true}
	resolver := solanago.NewResolver(c.owner, snapshot.ExistingTokenAccounts)
	inputAccount, err := c.resolveDeposit(set, resolver, inputMint, inputProgram, amountIn, request.FundWithSOL)
	if err != nil {
		return nil, nil, err
	}
	outputAccount, err := c.resolveDeposit(set, resolver, outputMint, outputProgram, 0, false)
	if err != nil {
		return nil, nil, err
	}

	remaining, err := c.swapRemainingAccounts(snapshot, estimate, zeroForOne)
	if err != nil {
		return nil, nil, err
	}
	limit, err := u128.GenUint128FromBig(swapPriceLimit(request.SqrtPriceLimitX64).BigInt())
	if err != nil {
		return nil, nil, err
	}

	instruction, err := amm_v3.NewSwapInstruction(
		c.programID,
		amm_v3.SwapParams{
			Amount:               request.Amount,
			OtherAmountThreshold: threshold,
			SqrtPriceLimitX64:    limit,
			IsBaseInput:          !request.ExactOut,
		},
		amm_v3.SwapAccounts{
			Payer:              c.owner,
			AmmConfig:          snapshot.Pool.AmmConfig,
			PoolState:          snapshot.PoolID,
			InputTokenAccount:  inputAccount,
			OutputTokenAccount: outputAccount,
			InputVault:         inputVault,
			OutputVault:        outputVault,
			ObservationState:   snapshot.Pool.ObservationKey,
			InputVaultMint:     inputMint,
			OutputVaultMint:    outputMint,
			RemainingAccounts:  remaining,
		},
	)
	if err != nil {
		return nil, nil, err
	}
	set.append(instruction)
	c.unwrapLeftoverSOL(set, snapshot, request.UnwrapSOL)

	return set, &SwapResult{
		Estimate:             estimate,
		AmountIn:             amountIn,
		AmountOut:            amountOut,
		OtherAmountThreshold: threshold,
	}, nil
}

// estimateWithTransferFees runs the swap simulation with token-2022
// transfer fees folded in on both legs.
func (c *Client) estimateWithTransferFees(request SwapRequest, snapshot *Snapshot, inputMint, outputMint solana.PublicKey, zeroForOne bool) (*amm_v3.SwapEstimate, uint64, uint64, error) {
	inputFee := snapshot.transferFeeFor(inputMint)
	outputFee := snapshot.transferFeeFor(outputMint)

	amountSpecified := cosmath.NewIntFromUint64(request.Amount)
	if request.ExactOut {
		// The pool must emit enough that the desired amount survives the
		// output transfer fee.
		gross := grossUpTransferFee(request.Amount, outputFee)
		amountSpecified = cosmath.NewIntFromUint64(gross).Neg()
	} else {
		fee := token2022.CalculateFee(inputFee, amountSpecified.BigInt())
		amountSpecified = amountSpecified.Sub(cosmath.NewIntFromBigInt(fee))
		if !amountSpecified.IsPositive() {
			return nil, 0, 0, fmt.Errorf("%w: transfer fee consumes the whole input", ErrInsufficientLiquidity)
		}
	}

	estimate, err := amm_v3.EstimateSwap(
		snapshot.Pool,
		snapshot.AmmConfig.TradeFeeRate,
		snapshot.TickArrays,
		snapshot.BitmapExtension,
		zeroForOne,
		amountSpecified,
		swapPriceLimit(request.SqrtPriceLimitX64),
	)
	if err != nil {
		return nil, 0, 0, err
	}

	amountIn := estimate.AmountIn.Add(estimate.FeeAmount)
	if !request.ExactOut {
		// Report the wallet-side input, transfer fee included.
		amountIn = cosmath.NewIntFromUint64(request.Amount)
	} else {
		amountIn = amountIn.Add(cosmath.NewIntFromBigInt(token2022.CalculateFee(inputFee, amountIn.BigInt())))
	}
	amountOut := estimate.AmountOut.Sub(cosmath.NewIntFromBigInt(token2022.CalculateFee(outputFee, estimate.AmountOut.BigInt())))

	if !amountIn.BigInt().IsUint64() || !amountOut.BigInt().IsUint64() {
		return nil, 0, 0, fmt.Errorf("%w: estimated amounts exceed u64", ErrInvalidRange)
	}
	return estimate, amountIn.Uint64(), amountOut.Uint64(), nil
}

// grossUpTransferFee returns the amount that nets the given amount after
// the basis-point fee, respecting the fee ceiling. At a 100% rate no gross
// amount nets anything, so only the ceiling bounds the answer.
func grossUpTransferFee(net uint64, fee token2022.TransferFee) uint64 {
	if fee.BasisPoints == 0 || net == 0 {
		return net
	}
	if int64(fee.BasisPoints) >= token2022.BasisPointsDenominator {
		return saturatingAddUint64(net, fee.MaximumFee)
	}

	denominator := big.NewInt(token2022.BasisPointsDenominator - int64(fee.BasisPoints))
	gross := new(big.Int).Mul(new(big.Int).SetUint64(net), big.NewInt(token2022.BasisPointsDenominator))
	gross.Add(gross, new(big.Int).Sub(denominator, big.NewInt(1)))
	gross.Div(gross, denominator)

	charged := new(big.Int).Sub(gross, new(big.Int).SetUint64(net))
	if charged.Cmp(new(big.Int).SetUint64(fee.MaximumFee)) > 0 {
		return saturatingAddUint64(net, fee.MaximumFee)
	}
	if !gross.IsUint64() {
		return math.MaxUint64
	}
	return gross.Uint64()
}

func saturatingAddUint64(a, b uint64) uint64 {
	if a > math.MaxUint64-b {
		return math.MaxUint64
	}
	return a + b
}

func swapDirection(inputMint solana.PublicKey, snapshot *Snapshot) (bool, error) {
	switch {
	case inputMint.Equals(snapshot.Pool.TokenMint0):
		return true, nil
	case inputMint.Equals(snapshot.Pool.TokenMint1):
		return false, nil
	default:
		return false, fmt.Errorf("%w: mint %s is not traded by pool %s", ErrAccountResolution, inputMint, snapshot.PoolID)
	}
}

func swapPriceLimit(limit cosmath.Int) cosmath.Int {
	if limit.IsNil() {
		return cosmath.ZeroInt()
	}
	return limit
}

// swapThreshold derives the unfixed-side bound and prechecks an explicit
// one against the estimate.
func swapThreshold(request SwapRequest, amountIn, amountOut uint64) (uint64, error) {
	if request.ExactOut {
		if request.OtherAmountThreshold != nil {
			if amountIn > *request.OtherAmountThreshold {
				return 0, fmt.Errorf("%w: needs %d in, limit %d", ErrSlippageExceeded, amountIn, *request.OtherAmountThreshold)
			}
			return *request.OtherAmountThreshold, nil
		}
		return slippageUp(cosmath.NewIntFromUint64(amountIn), request.SlippageBps)
	}
	if request.OtherAmountThreshold != nil {
		if amountOut < *request.OtherAmountThreshold {
			return 0, fmt.Errorf("%w: estimated %d out, minimum %d", ErrSlippageExceeded, amountOut, *request.OtherAmountThreshold)
		}
		return *request.OtherAmountThreshold, nil
	}
	return slippageDown(cosmath.NewIntFromUint64(amountOut), request.SlippageBps)
}

// swapRemainingAccounts derives the bitmap extension plus the tick arrays
// the estimate crossed, in crossing order, then keeps walking the bitmap in
// the trade direction. The on-chain swap can cross further than the
// client-side estimate when the pool moved since the snapshot, so the
// instruction carries a margin of extra initialized arrays.
func (c *Client) swapRemainingAccounts(snapshot *Snapshot, estimate *amm_v3.SwapEstimate, zeroForOne bool) ([]solana.PublicKey, error) {
	var accounts []solana.PublicKey
	if snapshot.BitmapExtension != nil {
		ext, _, err := amm_v3.DeriveTickArrayBitmapExtension(c.programID, snapshot.PoolID)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, ext)
	}

	startIndexes := append([]int32(nil), estimate.TickArrayStartIndexes...)
	for len(startIndexes) > 0 && len(startIndexes) < tickArraysToLoad {
		last := startIndexes[len(startIndexes)-1]
		found, next, err := amm_v3.NextInitializedTickArrayStartIndex(
			snapshot.BitmapExtension,
			last,
			snapshot.Pool.TickSpacing,
			snapshot.Pool.TickArrayBitmap,
			zeroForOne,
		)
		if err != nil {
			return nil, err
		}
		if !found {
			break
		}
		startIndexes = append(startIndexes, next)
	}

	for _, startIndex := range startIndexes {
		address, _, err := amm_v3.DeriveTickArrayAddress(c.programID, snapshot.PoolID, startIndex, snapshot.Pool.TickSpacing)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, address)
	}
	return accounts, nil
}

// RouteHop is one pool traversal of a multi-hop swap.
type RouteHop struct {
	Snapshot  *Snapshot
	InputMint solana.PublicKey
}

// SwapRouteRequest chains exact-in swaps through several pools. Only the
// final hop enforces a minimum out: each intermediate hop consumes whatever
// the previous one actually emitted, which can fall short of the estimate
// its instruction was built from, so a bound there would make the route
// fail spuriously.
type SwapRouteRequest struct {
	Hops         []RouteHop
	AmountIn     uint64
	MinAmountOut uint64
	SlippageBps  uint16
	FundWithSOL  bool
	UnwrapSOL    bool
}

// SwapRoute builds one instruction per hop, feeding each hop's estimated
// output into the next. Requires the WithRoutedSwaps client option.
func (c *Client) SwapRoute(request SwapRouteRequest) (*InstructionSet, *SwapResult, error) {
	if !c.routedSwaps {
		return nil, nil, ErrRoutingDisabled
	}
	if len(request.Hops) < 2 {
		return nil, nil, fmt.Errorf("%w: route needs at least two hops", ErrInvalidRange)
	}

	// Consecutive hops must chain mints: each hop's output is the next
	// hop's input.
	for i := 0; i < len(request.Hops)-1; i++ {
		hop := request.Hops[i]
		zeroForOne, err := swapDirection(hop.InputMint, hop.Snapshot)
		if err != nil {
			return nil, nil, err
		}
		outputMint := hop.Snapshot.Pool.TokenMint0
		if zeroForOne {
			outputMint = hop.Snapshot.Pool.TokenMint1
		}
		if !outputMint.Equals(request.Hops[i+1].InputMint) {
			return nil, nil, fmt.Errorf("%w: hop %d emits %s, hop %d consumes %s",
				ErrAccountResolution, i, outputMint, i+1, request.Hops[i+1].InputMint)
		}
	}

	combined := &InstructionSet{Atomic: true}
	amount := request.AmountIn
	var last *SwapResult
	noBound := uint64(0)
	for i, hop := range request.Hops {
		hopRequest := SwapRequest{
			InputMint: hop.InputMint,
			Amount:    amount,
			// Intermediate hops run unconstrained; the final bound covers
			// the whole route.
			OtherAmountThreshold: &noBound,
			FundWithSOL:          request.FundWithSOL && i == 0,
		}
		if i == len(request.Hops)-1 {
			hopRequest.SlippageBps = request.SlippageBps
			hopRequest.UnwrapSOL = request.UnwrapSOL
			if request.MinAmountOut > 0 {
				hopRequest.OtherAmountThreshold = &request.MinAmountOut
			} else {
				hopRequest.OtherAmountThreshold = nil
			}
		}
		set, result, err := c.Swap(hopRequest, hop.Snapshot)
		if err != nil {
			return nil, nil, err
		}
		combined.append(set.Instructions...)
		combined.Signers = append(combined.Signers, set.Signers...)
		amount = result.AmountOut
		last = result
	}

	return combined, &SwapResult{
		Estimate:             last.Estimate,
		AmountIn:             request.AmountIn,
		AmountOut:            last.AmountOut,
		OtherAmountThreshold: last.OtherAmountThreshold,
	}, nil
}
