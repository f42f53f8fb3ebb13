package rpc

import (
	"context"
	"math/big"
)

type ReceiptStatus string

const (
	ReceiptConfirmed ReceiptStatus = "confirmed"
	ReceiptFailed    ReceiptStatus = "failed"
	ReceiptPending   ReceiptStatus = "pending"
	// ReceiptUnknown means the node has never seen the transaction.
	ReceiptUnknown ReceiptStatus = "unknown"
)

// Receipt is the chain-neutral outcome of a transaction lookup. Gas fields are
// zero until the transaction is mined.
type Receipt struct {
	Hash              string
	Status            ReceiptStatus
	BlockNumber       uint64
	GasUsed           uint64
	EffectiveGasPrice *big.Int
}

type SendRequest struct {
	From  string
	To    string
	Value *big.Int
	// GasPrice and GasLimit are fetched from the node when unset.
	GasPrice *big.Int
	GasLimit uint64
	// Key is the raw private key. The caller owns and zeroes it.
	Key []byte
}

type Keypair struct {
	Address    string
	PrivateKey []byte
	PublicKey  []byte
}

// ChainClient is what the pool needs from one network. Amounts are base units.
type ChainClient interface {
	GetBalance(ctx context.Context, address string) (*big.Int, error)
	GasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, from, to string, value *big.Int) (uint64, error)
	SendTransaction(ctx context.Context, req SendRequest) (string, error)
	TransactionStatus(ctx context.Context, hash string) (Receipt, error)

	ValidateAddress(address string) bool
	CreateKeypair() (Keypair, error)
	KeypairFromSeed(seed []byte, index uint32) (Keypair, error)
	AddressFromKey(key []byte) (string, error)

	Close() error
}
