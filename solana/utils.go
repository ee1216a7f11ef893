package solana

import (
	"context"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

func GetLatestBlockhash(ctx context.Context, rpcClient *rpc.Client) (solana.Hash, error) {

	recent, err := rpcClient.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return solana.Hash{}, err
	}
	return recent.Value.Blockhash, nil
}

// GenProgramAccountFilter builds a getProgramAccounts filter matching an
// account discriminator at offset 0, optionally narrowed by an owner key at
// a fixed field offset.
func GenProgramAccountFilter(accountDiscriminator []byte, owner solana.PublicKey, offset uint64) *rpc.GetProgramAccountsOpts {

	opt := &rpc.GetProgramAccountsOpts{
		Commitment: rpc.CommitmentFinalized,
		Encoding:   solana.EncodingBase64,
		Filters: []rpc.RPCFilter{
			{
				Memcmp: &rpc.RPCFilterMemcmp{
					Offset: 0,
					Bytes:  accountDiscriminator,
				},
			},
		},
	}
	if owner.Equals(solana.PublicKey{}) {
		return opt
	}

	opt.Filters = append(opt.Filters, rpc.RPCFilter{
		Memcmp: &rpc.RPCFilterMemcmp{
			Offset: offset,
			Bytes:  owner[:],
		},
	})
	return opt
}

func GetAccountInfo(ctx context.Context, rpcClient *rpc.Client, account solana.PublicKey) (*rpc.GetAccountInfoResult, error) {
	return rpcClient.GetAccountInfoWithOpts(ctx, account, &rpc.GetAccountInfoOpts{Commitment: rpc.CommitmentFinalized})
}

func GetMultipleAccountInfo(ctx context.Context, rpcClient *rpc.Client, accounts []solana.PublicKey) (*rpc.GetMultipleAccountsResult, error) {
	return rpcClient.GetMultipleAccountsWithOpts(ctx, accounts, &rpc.GetMultipleAccountsOpts{Commitment: rpc.CommitmentFinalized, Encoding: solana.EncodingBase64})
}

// GetMultipleToken fetches and decodes several mints at once. Entries for
// missing accounts stay nil.
func GetMultipleToken(ctx context.Context, rpcClient *rpc.Client, tokens ...solana.PublicKey) ([]*Token, error) {
	outs, err := GetMultipleAccountInfo(ctx, rpcClient, tokens)
	if err != nil {
		return nil, err
	}
	list := make([]*Token, len(outs.Value))
	for i, out := range outs.Value {
		if out == nil {
			continue
		}

		token, err := new(TokenLayout).Decode(out.Data.GetBinary())
		if err != nil {
			return nil, err
		}
		token.Owner = out.Owner

		list[i] = token
	}
	return list, nil
}
