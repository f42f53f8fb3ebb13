// Package rpctest provides an in-memory rpc.ChainClient for tests. Key
// handling uses the real chain implementations; only the network is faked.
package rpctest

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/fystack/multichain-wallet/internal/rpc"
	"github.com/fystack/multichain-wallet/internal/rpc/evm"
	"github.com/fystack/multichain-wallet/internal/rpc/solana"
	"github.com/fystack/multichain-wallet/pkg/common/types"
)

type keyOps interface {
	ValidateAddress(address string) bool
	CreateKeypair() (rpc.Keypair, error)
	KeypairFromSeed(seed []byte, index uint32) (rpc.Keypair, error)
	AddressFromKey(key []byte) (string, error)
}

type FakeClient struct {
	keyOps

	mu           sync.Mutex
	balances     map[string]*big.Int
	receipts     map[string]rpc.Receipt
	sent         []rpc.SendRequest
	networkCalls int
	closed       bool

	GasPriceWei *big.Int
	GasUnits    uint64
	// NetworkErr, when set, fails every network call.
	NetworkErr error
	// SendErr fails only SendTransaction.
	SendErr   error
	SendDelay time.Duration
	// HashFor overrides the hash returned for the n-th send (0-based).
	HashFor func(n int) string
}

var _ rpc.ChainClient = (*FakeClient)(nil)

func NewFakeEVM() *FakeClient {
	return newFake(evm.NewEthereumClient("http://127.0.0.1:0", 1, nil, time.Second, nil), big.NewInt(20_000_000_000), 21000)
}

func NewFakeSolana() *FakeClient {
	return newFake(solana.NewSolanaClient("http://127.0.0.1:0", nil, time.Second, nil), big.NewInt(5000), 1)
}

func newFake(keys keyOps, gasPrice *big.Int, units uint64) *FakeClient {
	return &FakeClient{
		keyOps:      keys,
		balances:    make(map[string]*big.Int),
		receipts:    make(map[string]rpc.Receipt),
		GasPriceWei: gasPrice,
		GasUnits:    units,
	}
}

func (f *FakeClient) SetBalance(address string, v *big.Int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.balances[strings.ToLower(address)] = new(big.Int).Set(v)
}

func (f *FakeClient) SetReceipt(r rpc.Receipt) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.receipts[r.Hash] = r
}

// Sent returns the submitted requests with keys stripped.
func (f *FakeClient) Sent() []rpc.SendRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]rpc.SendRequest(nil), f.sent...)
}

func (f *FakeClient) NetworkCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.networkCalls
}

func (f *FakeClient) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *FakeClient) enter(ctx context.Context) error {
	f.mu.Lock()
	f.networkCalls++
	f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", types.ErrNetwork, err)
	}
	return f.NetworkErr
}

func (f *FakeClient) GetBalance(ctx context.Context, address string) (*big.Int, error) {
	if err := f.enter(ctx); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if v, ok := f.balances[strings.ToLower(address)]; ok {
		return new(big.Int).Set(v), nil
	}
	return big.NewInt(0), nil
}

func (f *FakeClient) GasPrice(ctx context.Context) (*big.Int, error) {
	if err := f.enter(ctx); err != nil {
		return nil, err
	}
	return new(big.Int).Set(f.GasPriceWei), nil
}

func (f *FakeClient) EstimateGas(ctx context.Context, from, to string, value *big.Int) (uint64, error) {
	if err := f.enter(ctx); err != nil {
		return 0, err
	}
	return f.GasUnits, nil
}

func (f *FakeClient) SendTransaction(ctx context.Context, req rpc.SendRequest) (string, error) {
	if err := f.enter(ctx); err != nil {
		return "", err
	}
	addr, err := f.AddressFromKey(req.Key)
	if err != nil {
		return "", err
	}
	if !strings.EqualFold(addr, req.From) {
		return "", fmt.Errorf("%w: key does not control %s", types.ErrSigning, req.From)
	}
	if f.SendDelay > 0 {
		time.Sleep(f.SendDelay)
	}
	if f.SendErr != nil {
		return "", f.SendErr
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	n := len(f.sent)
	req.Key = nil
	f.sent = append(f.sent, req)
	if f.HashFor != nil {
		return f.HashFor(n), nil
	}
	return fmt.Sprintf("0x%064x", n+1), nil
}

// TransactionStatus reports pending for hashes without a stored receipt.
func (f *FakeClient) TransactionStatus(ctx context.Context, hash string) (rpc.Receipt, error) {
	if err := f.enter(ctx); err != nil {
		return rpc.Receipt{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.receipts[hash]; ok {
		return r, nil
	}
	return rpc.Receipt{Hash: hash, Status: rpc.ReceiptPending}, nil
}

func (f *FakeClient) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}
