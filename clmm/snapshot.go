package clmm

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/goran9999/raydium-clmm/clmm/amm_v3"
	solanago "github.com/goran9999/raydium-clmm/solana"
	"github.com/goran9999/raydium-clmm/solana/token2022"
)

// Snapshot is the chain state a builder works from. Builders never touch the
// network; everything they need is captured here, so the caller controls
// when and how state is fetched and how long it is trusted.
type Snapshot struct {
	PoolID    solana.PublicKey
	Pool      *amm_v3.PoolState
	AmmConfig *amm_v3.AmmConfigState

	// TickArrays is keyed by start index. Swap builders need the arrays on
	// the swap path; liquidity builders can leave it empty.
	TickArrays map[int32]*amm_v3.TickArrayState

	// BitmapExtension is nil when the account does not exist yet.
	BitmapExtension *amm_v3.TickArrayBitmapExtension

	// TokenProgram0 and TokenProgram1 are the owning programs of the two
	// vault mints. Zero values mean the legacy token program.
	TokenProgram0 solana.PublicKey
	TokenProgram1 solana.PublicKey

	// TransferFees carries token-2022 transfer-fee configs keyed by mint,
	// for mints that have the extension.
	TransferFees map[solana.PublicKey]token2022.TransferFee

	// ExistingTokenAccounts lists token accounts known to exist, consulted
	// by the resolver to decide whether a create instruction is needed.
	ExistingTokenAccounts []solana.PublicKey

	TakenAt time.Time
}

// Validate rejects snapshots whose pieces disagree with each other.
func (s *Snapshot) Validate() error {
	if s == nil || s.Pool == nil {
		return fmt.Errorf("%w: snapshot has no pool state", ErrSnapshotDecode)
	}
	for startIndex, tickArray := range s.TickArrays {
		if tickArray == nil {
			return fmt.Errorf("%w: tick array %d is nil", ErrSnapshotDecode, startIndex)
		}
		if !tickArray.PoolID.Equals(s.PoolID) {
			return fmt.Errorf("%w: tick array %d belongs to pool %s", ErrSnapshotDecode, startIndex, tickArray.PoolID)
		}
		if tickArray.StartTickIndex != startIndex {
			return fmt.Errorf("%w: tick array keyed %d has start index %d", ErrSnapshotDecode, startIndex, tickArray.StartTickIndex)
		}
	}
	if s.BitmapExtension != nil && !s.BitmapExtension.PoolID.Equals(s.PoolID) {
		return fmt.Errorf("%w: bitmap extension belongs to pool %s", ErrSnapshotDecode, s.BitmapExtension.PoolID)
	}
	return nil
}

// tokenProgram0 returns the owning program of mint 0, defaulting to the
// legacy token program.
func (s *Snapshot) tokenProgram0() solana.PublicKey {
	if s.TokenProgram0.IsZero() {
		return solana.TokenProgramID
	}
	return s.TokenProgram0
}

func (s *Snapshot) tokenProgram1() solana.PublicKey {
	if s.TokenProgram1.IsZero() {
		return solana.TokenProgramID
	}
	return s.TokenProgram1
}

// transferFeeFor returns the mint's current transfer fee, zero for plain SPL
// mints.
func (s *Snapshot) transferFeeFor(mint solana.PublicKey) token2022.TransferFee {
	if s.TransferFees == nil {
		return token2022.TransferFee{}
	}
	return s.TransferFees[mint]
}

// checkFresh enforces the client's staleness bound.
func (c *Client) checkFresh(snapshot *Snapshot) error {
	if err := snapshot.Validate(); err != nil {
		return err
	}
	if c.maxSnapshotAge <= 0 {
		return nil
	}
	if age := c.now().Sub(snapshot.TakenAt); age > c.maxSnapshotAge {
		return fmt.Errorf("%w: taken %s ago, limit %s", ErrStaleSnapshot, age, c.maxSnapshotAge)
	}
	return nil
}

// tickArraysToLoad is how many initialized arrays LoadPoolSnapshot pulls on
// each side of the current price.
const tickArraysToLoad = 5

// LoadPoolSnapshot fetches everything a builder needs in a handful of RPC
// round trips: pool state, fee config, bitmap extension, the initialized
// tick arrays around the current price and the owner's token accounts for
// the pool mints.
func (c *Client) LoadPoolSnapshot(ctx context.Context, poolID solana.PublicKey) (*Snapshot, error) {
	if c.rpcClient == nil {
		return nil, fmt.Errorf("%w: client has no rpc endpoint", ErrAccountResolution)
	}

	poolInfo, err := solanago.GetAccountInfo(ctx, c.rpcClient, poolID)
	if err != nil {
		return nil, fmt.Errorf("%w: pool %s: %v", ErrAccountResolution, poolID, err)
	}

	pool := &amm_v3.PoolState{}
	if err := pool.Decode(poolInfo.Value.Data.GetBinary()); err != nil {
		return nil, err
	}

	snapshot := &Snapshot{
		PoolID:     poolID,
		Pool:       pool,
		TickArrays: make(map[int32]*amm_v3.TickArrayState),
		TakenAt:    c.now(),
	}

	bitmapExtAddress, _, err := amm_v3.DeriveTickArrayBitmapExtension(c.programID, poolID)
	if err != nil {
		return nil, err
	}

	configAndExt, err := solanago.GetMultipleAccountInfo(ctx, c.rpcClient, []solana.PublicKey{pool.AmmConfig, bitmapExtAddress})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAccountResolution, err)
	}
	if acc := configAndExt.Value[0]; acc != nil {
		config := &amm_v3.AmmConfigState{}
		if err := config.Decode(acc.Data.GetBinary()); err != nil {
			return nil, err
		}
		snapshot.AmmConfig = config
	}
	if acc := configAndExt.Value[1]; acc != nil {
		ext := &amm_v3.TickArrayBitmapExtension{}
		if err := ext.Decode(acc.Data.GetBinary()); err != nil {
			return nil, err
		}
		snapshot.BitmapExtension = ext
	}

	if err := c.loadTickArrays(ctx, snapshot); err != nil {
		return nil, err
	}
	if err := c.loadMintInfo(ctx, snapshot); err != nil {
		return nil, err
	}
	return snapshot, nil
}

func (c *Client) loadTickArrays(ctx context.Context, snapshot *Snapshot) error {
	startIndexes := amm_v3.InitializedTickArrayStartIndexes(
		snapshot.Pool.TickArrayBitmap,
		snapshot.BitmapExtension,
		snapshot.Pool.TickCurrent,
		snapshot.Pool.TickSpacing,
		tickArraysToLoad,
	)
	if len(startIndexes) == 0 {
		return nil
	}

	addresses := make([]solana.PublicKey, 0, len(startIndexes))
	for _, startIndex := range startIndexes {
		address, _, err := amm_v3.DeriveTickArrayAddress(c.programID, snapshot.PoolID, startIndex, snapshot.Pool.TickSpacing)
		if err != nil {
			return err
		}
		addresses = append(addresses, address)
	}

	accounts, err := solanago.GetMultipleAccountInfo(ctx, c.rpcClient, addresses)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAccountResolution, err)
	}
	for _, account := range accounts.Value {
		if account == nil {
			continue
		}
		tickArray := &amm_v3.TickArrayState{}
		if err := tickArray.Decode(account.Data.GetBinary()); err != nil {
			return err
		}
		snapshot.TickArrays[tickArray.StartTickIndex] = tickArray
	}
	return nil
}

// loadMintInfo resolves the token programs owning the two mints, their
// transfer fees and the owner's associated accounts.
func (c *Client) loadMintInfo(ctx context.Context, snapshot *Snapshot) error {
	mints, err := solanago.GetMultipleAccountInfo(ctx, c.rpcClient, []solana.PublicKey{
		snapshot.Pool.TokenMint0, snapshot.Pool.TokenMint1,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAccountResolution, err)
	}

	epoch, _ := c.rpcClient.GetEpochInfo(ctx, rpc.CommitmentFinalized)

	programs := [2]solana.PublicKey{}
	for i, account := range mints.Value {
		if account == nil {
			return fmt.Errorf("%w: pool mint missing", ErrAccountResolution)
		}
		programs[i] = account.Owner

		if account.Owner.Equals(solana.Token2022ProgramID) && epoch != nil {
			cfg, err := token2022.ParseTransferFeeConfig(account.Data.GetBinary())
			if err != nil || cfg == nil {
				continue
			}
			if snapshot.TransferFees == nil {
				snapshot.TransferFees = make(map[solana.PublicKey]token2022.TransferFee)
			}
			mint := snapshot.Pool.TokenMint0
			if i == 1 {
				mint = snapshot.Pool.TokenMint1
			}
			snapshot.TransferFees[mint] = token2022.GetEpochFee(cfg, epoch.Epoch)
		}
	}
	snapshot.TokenProgram0 = programs[0]
	snapshot.TokenProgram1 = programs[1]

	if c.owner.IsZero() {
		return nil
	}
	candidates := make([]solana.PublicKey, 0, 2)
	for i, mint := range []solana.PublicKey{snapshot.Pool.TokenMint0, snapshot.Pool.TokenMint1} {
		ata, err := solanago.FindAssociatedTokenAddress(c.owner, mint, programs[i])
		if err != nil {
			return fmt.Errorf("%w: %v", ErrAccountResolution, err)
		}
		candidates = append(candidates, ata)
	}
	existing, err := solanago.GetMultipleAccountInfo(ctx, c.rpcClient, candidates)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAccountResolution, err)
	}
	for i, account := range existing.Value {
		if account == nil {
			continue
		}
		decoded, err := new(solanago.AccountLayout).Decode(account.Data.GetBinary())
		if err != nil || !decoded.IsInitialized || decoded.IsFrozen {
			continue
		}
		snapshot.ExistingTokenAccounts = append(snapshot.ExistingTokenAccounts, candidates[i])
	}
	return nil
}

// FetchPoolTickArrays loads every tick array of a pool through a filtered
// program-account scan, for callers that need the full picture rather than
// the swap window.
func (c *Client) FetchPoolTickArrays(ctx context.Context, poolID solana.PublicKey) (map[int32]*amm_v3.TickArrayState, error) {
	if c.rpcClient == nil {
		return nil, fmt.Errorf("%w: client has no rpc endpoint", ErrAccountResolution)
	}

	opts := solanago.GenProgramAccountFilter(
		amm_v3.AccountDiscriminator(amm_v3.AccountKeyTickArrayState), poolID, 8,
	)
	accounts, err := c.rpcClient.GetProgramAccountsWithOpts(ctx, c.programID, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAccountResolution, err)
	}

	tickArrays := make(map[int32]*amm_v3.TickArrayState, len(accounts))
	for _, account := range accounts {
		tickArray := &amm_v3.TickArrayState{}
		if err := tickArray.Decode(account.Account.Data.GetBinary()); err != nil {
			return nil, err
		}
		tickArrays[tickArray.StartTickIndex] = tickArray
	}
	return tickArrays, nil
}
