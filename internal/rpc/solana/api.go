package solana

import (
	"context"

	"github.com/fystack/multichain-wallet/internal/rpc"
)

// SolanaAPI is the raw JSON-RPC surface the wallet uses.
type SolanaAPI interface {
	rpc.NetworkClient
	GetBalanceLamports(ctx context.Context, address string) (uint64, error)
	GetLatestBlockhash(ctx context.Context) (LatestBlockhash, error)
	GetFeeForMessage(ctx context.Context, message []byte) (uint64, error)
	SendRawTransaction(ctx context.Context, tx []byte) (string, error)
	GetSignatureStatus(ctx context.Context, signature string) (*SignatureStatus, error)
}

var (
	_ SolanaAPI       = (*Client)(nil)
	_ rpc.ChainClient = (*Client)(nil)
)
