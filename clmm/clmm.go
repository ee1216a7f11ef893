package clmm

import (
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/goran9999/raydium-clmm/clmm/amm_v3"
)

// Client builds Raydium CLMM instructions for a single owner. All builders
// are pure over a Snapshot; the rpc client is only used by the snapshot
// loaders, so a Client without one can still build from caller-supplied
// state.
type Client struct {
	rpcClient *rpc.Client
	owner     solana.PublicKey
	programID solana.PublicKey

	maxSnapshotAge time.Duration
	routedSwaps    bool

	now func() time.Time
}

func NewClient(
	owner solana.PublicKey,
	opts ...Option,
) *Client {
	c := &Client{
		owner:     owner,
		programID: amm_v3.ProgramID,
		now:       time.Now,
	}
	for _, fn := range opts {
		fn(c)
	}
	return c
}

type Option func(*Client)

// WithRPCClient enables the snapshot loaders.
func WithRPCClient(rpcClient *rpc.Client) Option {
	return func(c *Client) {
		c.rpcClient = rpcClient
	}
}

// WithProgramID targets a deployment other than the mainnet program. Every
// address derivation and built instruction uses it.
func WithProgramID(programID solana.PublicKey) Option {
	return func(c *Client) {
		c.programID = programID
	}
}

// WithMaxSnapshotAge makes builders reject snapshots older than the given
// duration. Zero disables the check.
func WithMaxSnapshotAge(age time.Duration) Option {
	return func(c *Client) {
		c.maxSnapshotAge = age
	}
}

// WithRoutedSwaps enables multi-hop swap construction across several pools.
func WithRoutedSwaps() Option {
	return func(c *Client) {
		c.routedSwaps = true
	}
}

func withClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}
