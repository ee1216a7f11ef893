package solana

import (
	bin "encoding/binary"

	binary "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	associatedtokenaccount "github.com/gagliardetto/solana-go/programs/associated-token-account"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/programs/token"
)

var (
	ataInstructionTypeID          = binary.NoTypeIDDefaultID
	transferInstructionTypeID     = binary.TypeIDFromUint32(system.Instruction_Transfer, bin.LittleEndian)
	syncNativeInstructionTypeID   = binary.TypeIDFromUint8(token.Instruction_SyncNative)
	closeAccountInstructionTypeID = binary.TypeIDFromUint8(token.Instruction_CloseAccount)
)

// SplitInstructions splits instructions into three phases: start, middle,
// end. Account creations float to the start, account closes sink to the end,
// and duplicates within those phases are dropped. The middle keeps its
// original order.
func SplitInstructions(oldInstructions []solana.Instruction) ([]solana.Instruction, []solana.Instruction, []solana.Instruction) {
	var (
		startInstruction  []solana.Instruction
		middleInstruction []solana.Instruction
		endInstruction    []solana.Instruction
	)
loop:
	for _, v := range oldInstructions {
		switch inst := v.(type) {
		case *associatedtokenaccount.Instruction:
			switch inst.BaseVariant.TypeID {
			case ataInstructionTypeID:
				vs := v.Accounts()
				bJump := false
				for _, vv := range startInstruction {
					vvs := vv.Accounts()
					if vs[0].PublicKey != vvs[0].PublicKey || vs[1].PublicKey != vvs[1].PublicKey ||
						vs[2].PublicKey != vvs[2].PublicKey || vs[3].PublicKey != vvs[3].PublicKey {
						continue
					}
					bJump = true
					break
				}
				if !bJump {
					startInstruction = append(startInstruction, v)
				}
				continue loop
			}
		case *token.Instruction:
			switch inst.BaseVariant.TypeID {
			case closeAccountInstructionTypeID:
				vs := v.Accounts()
				bJump := false
				for _, vv := range endInstruction {
					vvs := vv.Accounts()
					if vs[0].PublicKey != vvs[0].PublicKey || vs[1].PublicKey != vvs[1].PublicKey || vs[2].PublicKey != vvs[2].PublicKey {
						continue
					}
					bJump = true
					break
				}
				if !bJump {
					endInstruction = append(endInstruction, v)
				}
				continue loop
			}
		default:
		}
		middleInstruction = append(middleInstruction, v)
	}
	return startInstruction, middleInstruction, endInstruction
}

// MergeInstructions reorders instructions so account creations come first
// and account closes last, deduplicated.
func MergeInstructions(oldInstructions []solana.Instruction) []solana.Instruction {
	var (
		newInstructions []solana.Instruction
	)

	startInstruction, middleInstruction, endInstruction := SplitInstructions(oldInstructions)

	newInstructions = append(newInstructions, startInstruction...)
	newInstructions = append(newInstructions, middleInstruction...)
	newInstructions = append(newInstructions, endInstruction...)

	return newInstructions
}

// MergeInstructions2 deduplicates in place without reordering: repeated ATA
// creates, SOL wraps, native syncs and account closes collapse into one,
// with wrap lamports summed into the surviving transfer.
func MergeInstructions2(oldInstructions []solana.Instruction) []solana.Instruction {
	var (
		ataCreateInstructions    []*associatedtokenaccount.Create
		transferInstructions     []*system.Transfer
		closeAccountInstructions []*token.CloseAccount
		syncNativeInstructions   []*token.SyncNative

		newInstructions []solana.Instruction
	)

	for _, v := range oldInstructions {
		switch inst := v.(type) {
		case *associatedtokenaccount.Instruction:
			if inst.TypeID != ataInstructionTypeID {
				newInstructions = append(newInstructions, v)
				break
			}

			ataCreate, ok := inst.Impl.(associatedtokenaccount.Create)
			if !ok {
				newInstructions = append(newInstructions, v)
				break
			}

			bSave := false
			for _, instruction := range ataCreateInstructions {
				if ataCreate.Mint != instruction.Mint ||
					ataCreate.Payer != instruction.Payer ||
					ataCreate.Wallet != instruction.Wallet {
					continue
				}

				bSave = true
				break
			}

			if !bSave {
				ataCreateInstructions = append(ataCreateInstructions, &ataCreate)
				newInstructions = append(newInstructions, v)
			}
		case *system.Instruction:
			if inst.TypeID != transferInstructionTypeID {
				newInstructions = append(newInstructions, v)
				break
			}

			transfer, ok := inst.Impl.(system.Transfer)
			if !ok {
				newInstructions = append(newInstructions, v)
				break
			}

			bSave := false
			for _, instruction := range transferInstructions {
				if transfer.GetFundingAccount().PublicKey != instruction.GetFundingAccount().PublicKey ||
					transfer.GetRecipientAccount().PublicKey != instruction.GetRecipientAccount().PublicKey {
					continue
				}

				bSave = true
				// add lamports to first
				*instruction.Lamports += *transfer.Lamports
				break
			}
			if !bSave {
				transferInstructions = append(transferInstructions, &transfer)
				newInstructions = append(newInstructions, v)
			}
		case *token.Instruction:
			switch inst.TypeID {
			case syncNativeInstructionTypeID:
				syncNative, ok := inst.Impl.(token.SyncNative)
				if !ok {
					newInstructions = append(newInstructions, v)
					break
				}
				bSave := false
				for _, instruction := range syncNativeInstructions {
					if syncNative.GetTokenAccount().PublicKey != instruction.GetTokenAccount().PublicKey {
						continue
					}

					bSave = true
					break
				}
				if !bSave {
					syncNativeInstructions = append(syncNativeInstructions, &syncNative)
					newInstructions = append(newInstructions, v)
				}
			case closeAccountInstructionTypeID:
				closeAccount, ok := inst.Impl.(token.CloseAccount)
				if !ok {
					newInstructions = append(newInstructions, v)
					break
				}

				bSave := false
				for _, instruction := range closeAccountInstructions {
					if closeAccount.GetAccount().PublicKey != instruction.GetAccount().PublicKey ||
						closeAccount.GetDestinationAccount().PublicKey != instruction.GetDestinationAccount().PublicKey ||
						closeAccount.GetOwnerAccount().PublicKey != instruction.GetOwnerAccount().PublicKey {
						continue
					}

					bSave = true
					break
				}

				if !bSave {
					closeAccountInstructions = append(closeAccountInstructions, &closeAccount)
					newInstructions = append(newInstructions, v)
				}
			default:
				newInstructions = append(newInstructions, v)
			}
		default:
			newInstructions = append(newInstructions, v)
		}
	}

	return newInstructions
}
