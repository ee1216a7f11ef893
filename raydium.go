package raydium

import (
	"github.com/goran9999/raydium-clmm/clmm"
)

// NewCLMMClient creates a client for the Raydium concentrated-liquidity
// program.
//
// Example:
//
// client := NewCLMMClient(owner, clmm.WithRPCClient(rpcClient))
//
// snapshot, _ := client.LoadPoolSnapshot(ctx, poolID)
//
// client.Swap(clmm.SwapRequest{InputMint: inputMint, Amount: amountIn, SlippageBps: 250}, snapshot)
var NewCLMMClient = clmm.NewClient
