package evm

import (
	"context"
	"math/big"

	"github.com/fystack/multichain-wallet/internal/rpc"
)

// EthereumAPI is the raw JSON-RPC surface the wallet uses.
type EthereumAPI interface {
	rpc.NetworkClient
	GetBalanceWei(ctx context.Context, address string) (*big.Int, error)
	GetGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGasLimit(ctx context.Context, from, to string, value *big.Int) (uint64, error)
	GetTransactionCount(ctx context.Context, address string) (uint64, error)
	SendRawTransaction(ctx context.Context, rawTx string) (string, error)
	GetTransactionReceipt(ctx context.Context, hash string) (*TxnReceipt, error)
	GetTransactionByHash(ctx context.Context, hash string) (*Txn, error)
}

var (
	_ EthereumAPI     = (*Client)(nil)
	_ rpc.ChainClient = (*Client)(nil)
)
