package amm_v3

import (
	"bytes"
	"encoding/binary"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// Instruction is the common shape of every instruction this package builds:
// an 8-byte anchor discriminator followed by borsh-encoded args.
type Instruction struct {
	bin.BaseVariant
	programID               solana.PublicKey
	discriminator           []byte
	args                    func(*bin.Encoder) error
	solana.AccountMetaSlice `bin:"-" borsh_skip:"true"`
}

func (inst *Instruction) ProgramID() solana.PublicKey {
	return inst.programID
}

func (inst *Instruction) Accounts() []*solana.AccountMeta {
	return inst.AccountMetaSlice
}

func (inst *Instruction) Data() ([]byte, error) {
	buf := new(bytes.Buffer)
	if _, err := buf.Write(inst.discriminator); err != nil {
		return nil, fmt.Errorf("failed to write discriminator: %w", err)
	}
	if inst.args != nil {
		if err := inst.args(bin.NewBorshEncoder(buf)); err != nil {
			return nil, fmt.Errorf("failed to encode args: %w", err)
		}
	}
	return buf.Bytes(), nil
}

func newInstruction(programID solana.PublicKey, name string, args func(*bin.Encoder) error, accounts solana.AccountMetaSlice) *Instruction {
	inst := &Instruction{
		programID:        programID,
		discriminator:    InstructionDiscriminator(name),
		args:             args,
		AccountMetaSlice: accounts,
	}
	inst.BaseVariant = bin.BaseVariant{Impl: inst}
	return inst
}

func encodeOptionBool(enc *bin.Encoder, v *bool) error {
	if v == nil {
		return enc.WriteUint8(0)
	}
	if err := enc.WriteUint8(1); err != nil {
		return err
	}
	return enc.WriteBool(*v)
}

// CreatePoolParams are the args of the create_pool instruction.
type CreatePoolParams struct {
	SqrtPriceX64 bin.Uint128
	OpenTime     uint64
}

// NewCreatePoolInstruction initializes a pool account together with its
// vaults, observation account and default tick-array bitmap.
func NewCreatePoolInstruction(
	programID solana.PublicKey,
	params CreatePoolParams,

	poolCreator solana.PublicKey,
	ammConfig solana.PublicKey,
	poolState solana.PublicKey,
	tokenMint0 solana.PublicKey,
	tokenMint1 solana.PublicKey,
	tokenVault0 solana.PublicKey,
	tokenVault1 solana.PublicKey,
	observationState solana.PublicKey,
	tickArrayBitmap solana.PublicKey,
	tokenProgram0 solana.PublicKey,
	tokenProgram1 solana.PublicKey,
) (solana.Instruction, error) {
	if bytes.Compare(tokenMint0.Bytes(), tokenMint1.Bytes()) >= 0 {
		return nil, fmt.Errorf("%w: token mints must be in canonical order", ErrInvalidSeed)
	}

	accounts := solana.AccountMetaSlice{
		solana.NewAccountMeta(poolCreator, true, true),
		solana.NewAccountMeta(ammConfig, false, false),
		solana.NewAccountMeta(poolState, true, false),
		solana.NewAccountMeta(tokenMint0, false, false),
		solana.NewAccountMeta(tokenMint1, false, false),
		solana.NewAccountMeta(tokenVault0, true, false),
		solana.NewAccountMeta(tokenVault1, true, false),
		solana.NewAccountMeta(observationState, true, false),
		solana.NewAccountMeta(tickArrayBitmap, true, false),
		solana.NewAccountMeta(tokenProgram0, false, false),
		solana.NewAccountMeta(tokenProgram1, false, false),
		solana.NewAccountMeta(solana.SystemProgramID, false, false),
		solana.NewAccountMeta(solana.SysVarRentPubkey, false, false),
	}

	return newInstruction(programID, "create_pool", func(enc *bin.Encoder) error {
		if err := enc.WriteUint128(params.SqrtPriceX64, binary.LittleEndian); err != nil {
			return err
		}
		return enc.WriteUint64(params.OpenTime, binary.LittleEndian)
	}, accounts), nil
}

// OpenPositionParams are the args of open_position_v2.
type OpenPositionParams struct {
	TickLowerIndex           int32
	TickUpperIndex           int32
	TickArrayLowerStartIndex int32
	TickArrayUpperStartIndex int32
	Liquidity                bin.Uint128
	Amount0Max               uint64
	Amount1Max               uint64
	WithMetadata             bool
	BaseFlag                 *bool
}

// OpenPositionAccounts collects the account inputs of open_position_v2; the
// instruction touches too many for a flat parameter list.
type OpenPositionAccounts struct {
	Payer              solana.PublicKey
	PositionNftOwner   solana.PublicKey
	PositionNftMint    solana.PublicKey
	PositionNftAccount solana.PublicKey
	MetadataAccount    solana.PublicKey
	PoolState          solana.PublicKey
	ProtocolPosition   solana.PublicKey
	TickArrayLower     solana.PublicKey
	TickArrayUpper     solana.PublicKey
	PersonalPosition   solana.PublicKey
	TokenAccount0      solana.PublicKey
	TokenAccount1      solana.PublicKey
	TokenVault0        solana.PublicKey
	TokenVault1        solana.PublicKey
	Vault0Mint         solana.PublicKey
	Vault1Mint         solana.PublicKey
}

func NewOpenPositionInstruction(programID solana.PublicKey, params OpenPositionParams, accounts OpenPositionAccounts) (solana.Instruction, error) {
	if params.TickLowerIndex >= params.TickUpperIndex {
		return nil, fmt.Errorf("%w: lower %d, upper %d", ErrInvalidRange, params.TickLowerIndex, params.TickUpperIndex)
	}

	metas := solana.AccountMetaSlice{
		solana.NewAccountMeta(accounts.Payer, true, true),
		solana.NewAccountMeta(accounts.PositionNftOwner, false, false),
		solana.NewAccountMeta(accounts.PositionNftMint, true, true),
		solana.NewAccountMeta(accounts.PositionNftAccount, true, false),
		solana.NewAccountMeta(accounts.MetadataAccount, true, false),
		solana.NewAccountMeta(accounts.PoolState, true, false),
		solana.NewAccountMeta(accounts.ProtocolPosition, true, false),
		solana.NewAccountMeta(accounts.TickArrayLower, true, false),
		solana.NewAccountMeta(accounts.TickArrayUpper, true, false),
		solana.NewAccountMeta(accounts.PersonalPosition, true, false),
		solana.NewAccountMeta(accounts.TokenAccount0, true, false),
		solana.NewAccountMeta(accounts.TokenAccount1, true, false),
		solana.NewAccountMeta(accounts.TokenVault0, true, false),
		solana.NewAccountMeta(accounts.TokenVault1, true, false),
		solana.NewAccountMeta(solana.SysVarRentPubkey, false, false),
		solana.NewAccountMeta(solana.SystemProgramID, false, false),
		solana.NewAccountMeta(solana.TokenProgramID, false, false),
		solana.NewAccountMeta(solana.SPLAssociatedTokenAccountProgramID, false, false),
		solana.NewAccountMeta(solana.TokenMetadataProgramID, false, false),
		solana.NewAccountMeta(solana.Token2022ProgramID, false, false),
		solana.NewAccountMeta(accounts.Vault0Mint, false, false),
		solana.NewAccountMeta(accounts.Vault1Mint, false, false),
	}

	return newInstruction(programID, "open_position_v2", func(enc *bin.Encoder) error {
		for _, tick := range []int32{
			params.TickLowerIndex, params.TickUpperIndex,
			params.TickArrayLowerStartIndex, params.TickArrayUpperStartIndex,
		} {
			if err := enc.WriteInt32(tick, binary.LittleEndian); err != nil {
				return err
			}
		}
		if err := enc.WriteUint128(params.Liquidity, binary.LittleEndian); err != nil {
			return err
		}
		if err := enc.WriteUint64(params.Amount0Max, binary.LittleEndian); err != nil {
			return err
		}
		if err := enc.WriteUint64(params.Amount1Max, binary.LittleEndian); err != nil {
			return err
		}
		if err := enc.WriteBool(params.WithMetadata); err != nil {
			return err
		}
		return encodeOptionBool(enc, params.BaseFlag)
	}, metas), nil
}

// IncreaseLiquidityParams are the args of increase_liquidity_v2.
type IncreaseLiquidityParams struct {
	Liquidity  bin.Uint128
	Amount0Max uint64
	Amount1Max uint64
	BaseFlag   *bool
}

type IncreaseLiquidityAccounts struct {
	NftOwner         solana.PublicKey
	NftAccount       solana.PublicKey
	PoolState        solana.PublicKey
	ProtocolPosition solana.PublicKey
	PersonalPosition solana.PublicKey
	TickArrayLower   solana.PublicKey
	TickArrayUpper   solana.PublicKey
	TokenAccount0    solana.PublicKey
	TokenAccount1    solana.PublicKey
	TokenVault0      solana.PublicKey
	TokenVault1      solana.PublicKey
	Vault0Mint       solana.PublicKey
	Vault1Mint       solana.PublicKey
}

func NewIncreaseLiquidityInstruction(programID solana.PublicKey, params IncreaseLiquidityParams, accounts IncreaseLiquidityAccounts) (solana.Instruction, error) {
	metas := solana.AccountMetaSlice{
		solana.NewAccountMeta(accounts.NftOwner, false, true),
		solana.NewAccountMeta(accounts.NftAccount, false, false),
		solana.NewAccountMeta(accounts.PoolState, true, false),
		solana.NewAccountMeta(accounts.ProtocolPosition, true, false),
		solana.NewAccountMeta(accounts.PersonalPosition, true, false),
		solana.NewAccountMeta(accounts.TickArrayLower, true, false),
		solana.NewAccountMeta(accounts.TickArrayUpper, true, false),
		solana.NewAccountMeta(accounts.TokenAccount0, true, false),
		solana.NewAccountMeta(accounts.TokenAccount1, true, false),
		solana.NewAccountMeta(accounts.TokenVault0, true, false),
		solana.NewAccountMeta(accounts.TokenVault1, true, false),
		solana.NewAccountMeta(solana.TokenProgramID, false, false),
		solana.NewAccountMeta(solana.Token2022ProgramID, false, false),
		solana.NewAccountMeta(accounts.Vault0Mint, false, false),
		solana.NewAccountMeta(accounts.Vault1Mint, false, false),
	}

	return newInstruction(programID, "increase_liquidity_v2", func(enc *bin.Encoder) error {
		if err := enc.WriteUint128(params.Liquidity, binary.LittleEndian); err != nil {
			return err
		}
		if err := enc.WriteUint64(params.Amount0Max, binary.LittleEndian); err != nil {
			return err
		}
		if err := enc.WriteUint64(params.Amount1Max, binary.LittleEndian); err != nil {
			return err
		}
		return encodeOptionBool(enc, params.BaseFlag)
	}, metas), nil
}

// DecreaseLiquidityParams are the args of decrease_liquidity_v2. Zero
// liquidity withdraws only the fees and rewards already owed to the
// position.
type DecreaseLiquidityParams struct {
	Liquidity  bin.Uint128
	Amount0Min uint64
	Amount1Min uint64
}

type DecreaseLiquidityAccounts struct {
	NftOwner               solana.PublicKey
	NftAccount             solana.PublicKey
	PersonalPosition       solana.PublicKey
	PoolState              solana.PublicKey
	ProtocolPosition       solana.PublicKey
	TokenVault0            solana.PublicKey
	TokenVault1            solana.PublicKey
	TickArrayLower         solana.PublicKey
	TickArrayUpper         solana.PublicKey
	RecipientTokenAccount0 solana.PublicKey
	RecipientTokenAccount1 solana.PublicKey
	Vault0Mint             solana.PublicKey
	Vault1Mint             solana.PublicKey

	// RewardAccounts holds vault/recipient pairs for active reward slots,
	// appended as remaining accounts.
	RewardAccounts []solana.PublicKey
}

func NewDecreaseLiquidityInstruction(programID solana.PublicKey, params DecreaseLiquidityParams, accounts DecreaseLiquidityAccounts) (solana.Instruction, error) {
	metas := solana.AccountMetaSlice{
		solana.NewAccountMeta(accounts.NftOwner, false, true),
		solana.NewAccountMeta(accounts.NftAccount, false, false),
		solana.NewAccountMeta(accounts.PersonalPosition, true, false),
		solana.NewAccountMeta(accounts.PoolState, true, false),
		solana.NewAccountMeta(accounts.ProtocolPosition, true, false),
		solana.NewAccountMeta(accounts.TokenVault0, true, false),
		solana.NewAccountMeta(accounts.TokenVault1, true, false),
		solana.NewAccountMeta(accounts.TickArrayLower, true, false),
		solana.NewAccountMeta(accounts.TickArrayUpper, true, false),
		solana.NewAccountMeta(accounts.RecipientTokenAccount0, true, false),
		solana.NewAccountMeta(accounts.RecipientTokenAccount1, true, false),
		solana.NewAccountMeta(solana.TokenProgramID, false, false),
		solana.NewAccountMeta(solana.Token2022ProgramID, false, false),
		solana.NewAccountMeta(MemoProgramID, false, false),
		solana.NewAccountMeta(accounts.Vault0Mint, false, false),
		solana.NewAccountMeta(accounts.Vault1Mint, false, false),
	}
	for _, acc := range accounts.RewardAccounts {
		metas = append(metas, solana.NewAccountMeta(acc, true, false))
	}

	return newInstruction(programID, "decrease_liquidity_v2", func(enc *bin.Encoder) error {
		if err := enc.WriteUint128(params.Liquidity, binary.LittleEndian); err != nil {
			return err
		}
		if err := enc.WriteUint64(params.Amount0Min, binary.LittleEndian); err != nil {
			return err
		}
		return enc.WriteUint64(params.Amount1Min, binary.LittleEndian)
	}, metas), nil
}

// NewClosePositionInstruction burns the position NFT and reclaims the rent
// of an emptied position.
func NewClosePositionInstruction(
	programID solana.PublicKey,
	nftOwner solana.PublicKey,
	positionNftMint solana.PublicKey,
	positionNftAccount solana.PublicKey,
	personalPosition solana.PublicKey,
) (solana.Instruction, error) {
	accounts := solana.AccountMetaSlice{
		solana.NewAccountMeta(nftOwner, true, true),
		solana.NewAccountMeta(positionNftMint, true, false),
		solana.NewAccountMeta(positionNftAccount, true, false),
		solana.NewAccountMeta(personalPosition, true, false),
		solana.NewAccountMeta(solana.SystemProgramID, false, false),
		solana.NewAccountMeta(solana.TokenProgramID, false, false),
	}
	return newInstruction(programID, "close_position", nil, accounts), nil
}

// SwapParams are the args of swap_v2. OtherAmountThreshold bounds the
// unfixed side: minimum out for exact in, maximum in for exact out.
type SwapParams struct {
	Amount               uint64
	OtherAmountThreshold uint64
	SqrtPriceLimitX64    bin.Uint128
	IsBaseInput          bool
}

type SwapAccounts struct {
	Payer              solana.PublicKey
	AmmConfig          solana.PublicKey
	PoolState          solana.PublicKey
	InputTokenAccount  solana.PublicKey
	OutputTokenAccount solana.PublicKey
	InputVault         solana.PublicKey
	OutputVault        solana.PublicKey
	ObservationState   solana.PublicKey
	InputVaultMint     solana.PublicKey
	OutputVaultMint    solana.PublicKey

	// RemainingAccounts carries the bitmap extension followed by every tick
	// array the swap may cross, in crossing order.
	RemainingAccounts []solana.PublicKey
}

func NewSwapInstruction(programID solana.PublicKey, params SwapParams, accounts SwapAccounts) (solana.Instruction, error) {
	metas := solana.AccountMetaSlice{
		solana.NewAccountMeta(accounts.Payer, false, true),
		solana.NewAccountMeta(accounts.AmmConfig, false, false),
		solana.NewAccountMeta(accounts.PoolState, true, false),
		solana.NewAccountMeta(accounts.InputTokenAccount, true, false),
		solana.NewAccountMeta(accounts.OutputTokenAccount, true, false),
		solana.NewAccountMeta(accounts.InputVault, true, false),
		solana.NewAccountMeta(accounts.OutputVault, true, false),
		solana.NewAccountMeta(accounts.ObservationState, true, false),
		solana.NewAccountMeta(solana.TokenProgramID, false, false),
		solana.NewAccountMeta(solana.Token2022ProgramID, false, false),
		solana.NewAccountMeta(MemoProgramID, false, false),
		solana.NewAccountMeta(accounts.InputVaultMint, false, false),
		solana.NewAccountMeta(accounts.OutputVaultMint, false, false),
	}
	for _, acc := range accounts.RemainingAccounts {
		metas = append(metas, solana.NewAccountMeta(acc, true, false))
	}

	return newInstruction(programID, "swap_v2", func(enc *bin.Encoder) error {
		if err := enc.WriteUint64(params.Amount, binary.LittleEndian); err != nil {
			return err
		}
		if err := enc.WriteUint64(params.OtherAmountThreshold, binary.LittleEndian); err != nil {
			return err
		}
		if err := enc.WriteUint128(params.SqrtPriceLimitX64, binary.LittleEndian); err != nil {
			return err
		}
		return enc.WriteBool(params.IsBaseInput)
	}, metas), nil
}
