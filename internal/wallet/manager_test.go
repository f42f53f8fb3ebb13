package wallet

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fystack/multichain-wallet/internal/chains"
	"github.com/fystack/multichain-wallet/internal/keystore"
	"github.com/fystack/multichain-wallet/internal/pool"
	"github.com/fystack/multichain-wallet/internal/price"
	"github.com/fystack/multichain-wallet/internal/rpc"
	"github.com/fystack/multichain-wallet/internal/rpc/evm"
	"github.com/fystack/multichain-wallet/internal/rpc/rpctest"
	"github.com/fystack/multichain-wallet/pkg/common/config"
	"github.com/fystack/multichain-wallet/pkg/common/constant"
	"github.com/fystack/multichain-wallet/pkg/common/enum"
	"github.com/fystack/multichain-wallet/pkg/common/types"
	"github.com/fystack/multichain-wallet/pkg/events"
	"github.com/fystack/multichain-wallet/pkg/infra"
	"github.com/fystack/multichain-wallet/pkg/kvstore"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tyler-smith/go-bip39"
)

var abcHash = "0xabc" + strings.Repeat("0", 61)

type recordingEmitter struct {
	mu    sync.Mutex
	types []events.EventType
}

func (r *recordingEmitter) add(t events.EventType) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types = append(r.types, t)
	return nil
}

func (r *recordingEmitter) EmitWalletCreated(context.Context, types.Wallet) error {
	return r.add(events.WalletCreated)
}

func (r *recordingEmitter) EmitTransactionPending(context.Context, types.TransactionRecord) error {
	return r.add(events.TransactionPending)
}

func (r *recordingEmitter) EmitTransactionStatus(context.Context, types.TransactionRecord) error {
	return r.add(events.TransactionStatus)
}

func (r *recordingEmitter) Emit(_ context.Context, e events.WalletEvent, _ string) error {
	return r.add(e.Type)
}

func (r *recordingEmitter) Close() {}

func (r *recordingEmitter) seen() []events.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]events.EventType(nil), r.types...)
}

type harness struct {
	m        *Manager
	registry *chains.Registry
	pool     *pool.Pool
	store    *keystore.Store
	auth     *keystore.StaticAuthenticator
	kv       infra.KVStore
	emitter  *recordingEmitter

	mu    sync.Mutex
	fakes map[enum.Chain]*rpctest.FakeClient
}

func (h *harness) fake(chain enum.Chain) *rpctest.FakeClient {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.fakes[chain]; ok {
		return c
	}
	var c *rpctest.FakeClient
	if chain == enum.ChainSolana {
		c = rpctest.NewFakeSolana()
	} else {
		c = rpctest.NewFakeEVM()
	}
	h.fakes[chain] = c
	return c
}

// newManager builds a fresh manager over h's shared pool, store and KV.
func (h *harness) newManager(opts ...Option) *Manager {
	var tick atomic.Int64
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time {
		return base.Add(time.Duration(tick.Add(1)) * time.Second)
	}
	all := append([]Option{WithEmitter(h.emitter), WithClock(clock)}, opts...)
	return NewManager(h.registry, h.pool, h.store, NewRepository(h.kv), all...)
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	cfg := config.Default()
	cfg.ApiKey = "test"
	registry, err := chains.NewRegistry(cfg)
	require.NoError(t, err)

	kv, err := kvstore.NewInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { kv.Close() })

	mk, err := keystore.NewRandomMasterKey()
	require.NoError(t, err)
	auth := keystore.NewStaticAuthenticator(keystore.DecisionGranted)

	h := &harness{
		registry: registry,
		store:    keystore.NewStore(kv, mk, auth),
		auth:     auth,
		kv:       kv,
		emitter:  &recordingEmitter{},
		fakes:    make(map[enum.Chain]*rpctest.FakeClient),
	}
	h.pool = pool.New(registry, pool.WithFactory(func(d chains.ChainDescriptor, _ bool) (rpc.ChainClient, error) {
		return h.fake(d.ID), nil
	}))
	h.m = h.newManager(opts...)
	return h
}

func eth(v string) *big.Int {
	return decimal.RequireFromString(v).Shift(18).BigInt()
}

func (h *harness) fundedWallet(t *testing.T, chain enum.Chain, balance *big.Int) types.Wallet {
	t.Helper()
	w, err := h.m.CreateWallet(context.Background(), chain, "")
	require.NoError(t, err)
	h.fake(chain).SetBalance(w.Address, balance)
	return w
}

func TestInitialize_Idempotent(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	chainIDs := []enum.Chain{enum.ChainEthereum, enum.ChainSolana}

	require.NoError(t, h.m.Initialize(ctx, chainIDs))
	first := h.m.Wallets()
	require.Len(t, first, 2)

	require.NoError(t, h.m.Initialize(ctx, chainIDs))
	require.NoError(t, h.m.Initialize(ctx, append(chainIDs, enum.ChainPolygon)))
	assert.Equal(t, first, h.m.Wallets())

	restarted := h.newManager()
	require.NoError(t, restarted.Initialize(ctx, chainIDs))
	assert.ElementsMatch(t, first, restarted.Wallets())

	w, ok := h.m.WalletByChain(enum.ChainEthereum)
	require.True(t, ok)
	assert.Equal(t, "Ethereum Wallet", w.Label)
	assert.True(t, h.m.registry.IsSupported(w.Chain))
	assert.True(t, evm.IsValidAddress(w.Address))
}

func TestInitialize_UnsupportedChain(t *testing.T) {
	h := newHarness(t)
	err := h.m.Initialize(context.Background(), []enum.Chain{enum.ChainEthereum, "dogecoin"})
	assert.ErrorIs(t, err, types.ErrUnsupportedChain)
	_, ok := h.m.WalletByChain(enum.ChainEthereum)
	assert.True(t, ok)
}

func TestInitialize_OrphanedRecord(t *testing.T) {
	h := newHarness(t)
	repo := NewRepository(h.kv)
	require.NoError(t, repo.SaveRecord(types.TransactionRecord{ID: "r-1", WalletID: "ghost", Status: enum.TxStatusPending}))

	err := h.m.Initialize(context.Background(), nil)
	assert.ErrorIs(t, err, types.ErrOrphanedRecord)
}

func TestCreateWallet_SealsMnemonicAndKey(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	w, err := h.m.CreateWallet(ctx, enum.ChainEthereum, "Main")
	require.NoError(t, err)
	assert.Equal(t, "Main", w.Label)
	assert.Equal(t, keystore.WalletRef(w.ID), w.KeyRef)

	_, err = h.store.Authenticate(ctx)
	require.NoError(t, err)
	secrets, err := h.store.GetWalletSecrets(ctx, w.KeyRef)
	require.NoError(t, err)
	defer secrets.Zero()

	assert.True(t, bip39.IsMnemonicValid(string(secrets.Mnemonic)))
	assert.Equal(t, w.Address, secrets.Address)

	kp, err := h.pool.KeypairFromSeed(enum.ChainEthereum, bip39.NewSeed(string(secrets.Mnemonic), ""), 0)
	require.NoError(t, err)
	assert.Equal(t, w.Address, kp.Address)
	assert.Equal(t, secrets.PrivateKey, kp.PrivateKey)

	assert.Contains(t, h.emitter.seen(), events.WalletCreated)
}

func TestCreateWallet_DeactivatesPrevious(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	first, err := h.m.CreateWallet(ctx, enum.ChainSolana, "")
	require.NoError(t, err)
	second, err := h.m.CreateWallet(ctx, enum.ChainSolana, "")
	require.NoError(t, err)
	assert.NotEqual(t, first.Address, second.Address)

	active, ok := h.m.WalletByChain(enum.ChainSolana)
	require.True(t, ok)
	assert.Equal(t, second.ID, active.ID)

	all := h.m.WalletsByChain(enum.ChainSolana)
	require.Len(t, all, 2)
	assert.False(t, all[0].Active)
	assert.True(t, all[1].Active)

	_, err = h.m.CreateWallet(ctx, "dogecoin", "")
	assert.ErrorIs(t, err, types.ErrUnsupportedChain)
}

// failingKV rejects writes to keys ending in failSuffix.
type failingKV struct {
	infra.KVStore
	failSuffix string
}

func (f *failingKV) SetAny(k string, v any) error {
	if strings.HasSuffix(k, f.failSuffix) {
		return errors.New("disk full")
	}
	return f.KVStore.SetAny(k, v)
}

func TestCreateWallet_StoreFailureLeavesNoSecrets(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	mk, err := keystore.NewRandomMasterKey()
	require.NoError(t, err)
	flaky := keystore.NewStore(&failingKV{KVStore: h.kv, failSuffix: "/" + keystore.FieldAddress}, mk, h.auth)
	m := NewManager(h.registry, h.pool, flaky, NewRepository(h.kv))

	_, err = m.CreateWallet(ctx, enum.ChainEthereum, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store wallet secrets")

	pairs, err := h.kv.List("secrets/" + constant.WalletSecretPrefix + "/")
	require.NoError(t, err)
	assert.Empty(t, pairs, "partially sealed envelopes left behind")
	assert.Empty(t, m.Wallets())
}

func TestBalances_TotalUSD(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, WithPriceFeed(price.NewStatic(map[string]decimal.Decimal{
		"ethereum": decimal.NewFromInt(1800),
	})))
	w := h.fundedWallet(t, enum.ChainEthereum, eth("2.5"))

	live, err := h.m.GetBalance(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, "2.5", live.String())
	assert.True(t, h.m.GetTotalBalanceUSD().IsZero(), "GetBalance must not touch the cache")

	require.NoError(t, h.m.RefreshBalances(ctx))
	assert.Equal(t, "4500.00", h.m.GetTotalBalanceUSD().StringFixed(2))

	balances := h.m.Balances(w.ID)
	require.Len(t, balances, 1)
	assert.Equal(t, "ETH", balances[0].Symbol)
	assert.Equal(t, "Ethereum", balances[0].Name)
	assert.Equal(t, "2.5", balances[0].Quantity.String())

	restarted := h.newManager()
	require.NoError(t, restarted.Initialize(ctx, nil))
	assert.Equal(t, "4500.00", restarted.GetTotalBalanceUSD().StringFixed(2))
}

func TestRefreshBalances_PartialFailure(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, WithPriceFeed(price.NewStatic(map[string]decimal.Decimal{
		"ethereum": decimal.NewFromInt(2000),
		"solana":   decimal.NewFromInt(100),
	})))
	ethWallet := h.fundedWallet(t, enum.ChainEthereum, eth("1"))
	h.fundedWallet(t, enum.ChainSolana, big.NewInt(1_000_000_000))
	h.fake(enum.ChainSolana).NetworkErr = fmt.Errorf("%w: connection refused", types.ErrNetwork)

	err := h.m.RefreshBalances(ctx)
	assert.ErrorIs(t, err, types.ErrNetwork)

	var merr *types.MultiError
	require.ErrorAs(t, err, &merr)
	assert.Len(t, merr.Errors, 1)

	assert.Len(t, h.m.Balances(ethWallet.ID), 1)
	assert.Equal(t, "2000.00", h.m.GetTotalBalanceUSD().StringFixed(2))
}

func TestSend_InvalidAddressLeavesNoRecord(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	w := h.fundedWallet(t, enum.ChainEthereum, eth("1"))
	fake := h.fake(enum.ChainEthereum)
	before := fake.NetworkCalls()

	_, err := h.m.SendTransaction(ctx, w.ID, "not-an-address", decimal.RequireFromString("0.1"), enum.ChainEthereum)
	assert.ErrorIs(t, err, types.ErrInvalidAddress)

	assert.Empty(t, h.m.GetRecentTransactions(10))
	assert.Equal(t, before, fake.NetworkCalls())
	assert.Equal(t, 0, h.auth.Calls())
}

func TestSend_PendingThenConfirmedTouchesOnlyThatRecord(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	w := h.fundedWallet(t, enum.ChainEthereum, eth("1"))
	fake := h.fake(enum.ChainEthereum)
	fake.HashFor = func(n int) string {
		if n == 0 {
			return abcHash
		}
		return fmt.Sprintf("0x%064x", n+100)
	}
	to := "0x9858EfFD232B4033E47d90003D41EC34EcaEda94"

	hash, err := h.m.SendTransaction(ctx, w.ID, to, decimal.RequireFromString("0.1"), enum.ChainEthereum)
	require.NoError(t, err)
	assert.Equal(t, abcHash, hash)

	other, err := h.m.SendTransaction(ctx, w.ID, to, decimal.RequireFromString("0.2"), enum.ChainEthereum)
	require.NoError(t, err)

	recs, err := h.m.Transactions(w.ID)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, other, recs[0].Hash, "newest first")
	target := recs[1]
	assert.Equal(t, abcHash, target.Hash)
	assert.Equal(t, enum.TxStatusPending, target.Status)
	assert.Equal(t, enum.TxKindSend, target.Kind)
	assert.Equal(t, "ETH", target.Symbol)
	assert.Nil(t, target.GasUsed)
	assert.Nil(t, target.BlockNumber)

	fake.SetReceipt(rpc.Receipt{
		Hash:              abcHash,
		Status:            rpc.ReceiptConfirmed,
		BlockNumber:       12,
		GasUsed:           21000,
		EffectiveGasPrice: big.NewInt(20_000_000_000),
	})

	updated, err := h.m.RefreshTransactionStatus(ctx, w.ID, target.ID)
	require.NoError(t, err)
	assert.Equal(t, enum.TxStatusConfirmed, updated.Status)
	require.NotNil(t, updated.GasUsed)
	assert.Equal(t, uint64(21000), *updated.GasUsed)
	require.NotNil(t, updated.BlockNumber)
	assert.Equal(t, uint64(12), *updated.BlockNumber)
	assert.Equal(t, "20000000000", updated.GasPrice.String())

	recs, err = h.m.Transactions(w.ID)
	require.NoError(t, err)
	assert.Equal(t, enum.TxStatusPending, recs[0].Status)
	assert.Equal(t, enum.TxStatusConfirmed, recs[1].Status)

	seen := h.emitter.seen()
	assert.Contains(t, seen, events.TransactionPending)
	assert.Contains(t, seen, events.TransactionStatus)
}

func TestSend_ConcurrentSendsKeepEveryRecord(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	evmWallet := h.fundedWallet(t, enum.ChainEthereum, eth("10"))
	solWallet := h.fundedWallet(t, enum.ChainSolana, big.NewInt(10_000_000_000))
	h.fake(enum.ChainEthereum).SendDelay = time.Millisecond

	solTo, err := h.pool.CreateKeypair(enum.ChainSolana)
	require.NoError(t, err)

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var err error
			if i%2 == 0 {
				_, err = h.m.SendTransaction(ctx, evmWallet.ID, "0x9858EfFD232B4033E47d90003D41EC34EcaEda94", decimal.RequireFromString("0.001"), enum.ChainEthereum)
			} else {
				_, err = h.m.SendTransaction(ctx, solWallet.ID, solTo.Address, decimal.RequireFromString("0.001"), enum.ChainSolana)
			}
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	recent := h.m.GetRecentTransactions(100)
	assert.Len(t, recent, n)
	for _, r := range recent {
		assert.Equal(t, enum.TxStatusPending, r.Status)
	}
	evmRecs, err := h.m.Transactions(evmWallet.ID)
	require.NoError(t, err)
	assert.Len(t, evmRecs, n/2)
	assert.Len(t, h.fake(enum.ChainEthereum).Sent(), n/2)
}

func TestSend_Errors(t *testing.T) {
	ctx := context.Background()
	to := "0x9858EfFD232B4033E47d90003D41EC34EcaEda94"

	tests := []struct {
		name    string
		setup   func(h *harness, w types.Wallet)
		wallet  func(w types.Wallet) string
		chain   enum.Chain
		amount  string
		wantErr error
	}{
		{
			name:    "unknown wallet",
			wallet:  func(types.Wallet) string { return "missing" },
			chain:   enum.ChainEthereum,
			amount:  "0.1",
			wantErr: types.ErrWalletNotFound,
		},
		{
			name:    "unregistered chain",
			chain:   "dogecoin",
			amount:  "0.1",
			wantErr: types.ErrUnsupportedChain,
		},
		{
			name:    "wallet on another chain",
			chain:   enum.ChainPolygon,
			amount:  "0.1",
			wantErr: types.ErrUnsupportedChain,
		},
		{
			name:    "negative amount",
			chain:   enum.ChainEthereum,
			amount:  "-1",
			wantErr: types.ErrInvalidAmount,
		},
		{
			name:    "too many decimals",
			chain:   enum.ChainEthereum,
			amount:  "0.0000000000000000001",
			wantErr: types.ErrInvalidAmount,
		},
		{
			name:    "insufficient balance",
			chain:   enum.ChainEthereum,
			amount:  "5",
			wantErr: types.ErrInsufficientBalance,
		},
		{
			name:    "authentication denied",
			setup:   func(h *harness, _ types.Wallet) { h.auth.Set(keystore.DecisionDenied) },
			chain:   enum.ChainEthereum,
			amount:  "0.1",
			wantErr: types.ErrAuthDenied,
		},
		{
			name: "node rejects",
			setup: func(h *harness, _ types.Wallet) {
				h.fake(enum.ChainEthereum).SendErr = &rpc.RPCError{Code: -32000, Message: "nonce too low"}
			},
			chain:   enum.ChainEthereum,
			amount:  "0.1",
			wantErr: types.ErrRPC,
		},
		{
			name: "network down",
			setup: func(h *harness, _ types.Wallet) {
				h.fake(enum.ChainEthereum).NetworkErr = fmt.Errorf("%w: timeout", types.ErrNetwork)
			},
			chain:   enum.ChainEthereum,
			amount:  "0.1",
			wantErr: types.ErrNetwork,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			w := h.fundedWallet(t, enum.ChainEthereum, eth("1"))
			if tt.setup != nil {
				tt.setup(h, w)
			}
			id := w.ID
			if tt.wallet != nil {
				id = tt.wallet(w)
			}

			hash, err := h.m.SendTransaction(ctx, id, to, decimal.RequireFromString(tt.amount), tt.chain)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, hash)
			assert.Empty(t, h.m.GetRecentTransactions(10), "a failed send must not leave a record")
		})
	}
}

func TestSend_AddressDriftAborts(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	w := h.fundedWallet(t, enum.ChainEthereum, eth("1"))

	other, err := h.pool.CreateKeypair(enum.ChainEthereum)
	require.NoError(t, err)
	require.NoError(t, h.store.Store(ctx, w.KeyRef+"/"+keystore.FieldPrivateKey, other.PrivateKey))

	_, err = h.m.SendTransaction(ctx, w.ID, "0x9858EfFD232B4033E47d90003D41EC34EcaEda94", decimal.RequireFromString("0.1"), enum.ChainEthereum)
	assert.ErrorIs(t, err, types.ErrSigning)
	assert.Empty(t, h.fake(enum.ChainEthereum).Sent())
	assert.Empty(t, h.m.GetRecentTransactions(10))
}

func TestSend_CallerCancelAfterBroadcastKeepsRecord(t *testing.T) {
	h := newHarness(t)
	w := h.fundedWallet(t, enum.ChainEthereum, eth("1"))
	fake := h.fake(enum.ChainEthereum)

	ctx, cancel := context.WithCancel(context.Background())
	fake.HashFor = func(int) string {
		cancel()
		return abcHash
	}

	hash, err := h.m.SendTransaction(ctx, w.ID, "0x9858EfFD232B4033E47d90003D41EC34EcaEda94", decimal.RequireFromString("0.1"), enum.ChainEthereum)
	require.NoError(t, err)
	assert.Equal(t, abcHash, hash)
	assert.Len(t, h.m.GetRecentTransactions(10), 1)
}

func TestSendTransactionResult(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	w := h.fundedWallet(t, enum.ChainEthereum, eth("1"))
	to := "0x9858EfFD232B4033E47d90003D41EC34EcaEda94"

	switch r := h.m.SendTransactionResult(ctx, w.ID, to, decimal.RequireFromString("0.1"), enum.ChainEthereum).(type) {
	case types.TxSuccess:
		assert.NotEmpty(t, r.Hash)
		assert.NotEmpty(t, r.RecordID)
		assert.Equal(t, uint64(21000), r.GasUsed)
		assert.Equal(t, "20000000000", r.GasPrice.String())
	default:
		t.Fatalf("expected success, got %#v", r)
	}

	switch r := h.m.SendTransactionResult(ctx, w.ID, "nope", decimal.RequireFromString("0.1"), enum.ChainEthereum).(type) {
	case types.TxFailure:
		assert.ErrorIs(t, r.Err, types.ErrInvalidAddress)
		assert.NotEmpty(t, r.Message)
	default:
		t.Fatalf("expected failure, got %#v", r)
	}
}

func TestEstimateGas(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	w := h.fundedWallet(t, enum.ChainEthereum, eth("1"))

	fee, err := h.m.EstimateGas(ctx, w.ID, "0x9858EfFD232B4033E47d90003D41EC34EcaEda94", decimal.RequireFromString("0.1"), enum.ChainEthereum)
	require.NoError(t, err)
	assert.Equal(t, "0.00042", fee.String())
	assert.Equal(t, 0, h.auth.Calls())

	_, err = h.m.EstimateGas(ctx, w.ID, "bad", decimal.RequireFromString("0.1"), enum.ChainEthereum)
	assert.ErrorIs(t, err, types.ErrInvalidAddress)
}

func TestCancelTransaction(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	w := h.fundedWallet(t, enum.ChainEthereum, eth("1"))
	hash, err := h.m.SendTransaction(ctx, w.ID, "0x9858EfFD232B4033E47d90003D41EC34EcaEda94", decimal.RequireFromString("0.1"), enum.ChainEthereum)
	require.NoError(t, err)

	recs, err := h.m.Transactions(w.ID)
	require.NoError(t, err)
	id := recs[0].ID

	require.NoError(t, h.m.CancelTransaction(w.ID, id))
	assert.ErrorIs(t, h.m.CancelTransaction(w.ID, id), types.ErrInvalidTransition)
	assert.ErrorIs(t, h.m.CancelTransaction(w.ID, "missing"), types.ErrRecordNotFound)
	assert.ErrorIs(t, h.m.CancelTransaction("missing", id), types.ErrWalletNotFound)

	h.fake(enum.ChainEthereum).SetReceipt(rpc.Receipt{Hash: hash, Status: rpc.ReceiptConfirmed})
	rec, err := h.m.RefreshTransactionStatus(ctx, w.ID, id)
	require.NoError(t, err)
	assert.Equal(t, enum.TxStatusCancelled, rec.Status)
}

func TestRefreshTransactionStatus_Errors(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	w := h.fundedWallet(t, enum.ChainEthereum, eth("1"))

	_, err := h.m.RefreshTransactionStatus(ctx, "missing", "r")
	assert.ErrorIs(t, err, types.ErrWalletNotFound)
	_, err = h.m.RefreshTransactionStatus(ctx, w.ID, "r")
	assert.ErrorIs(t, err, types.ErrRecordNotFound)
}

func TestRefreshPendingTransactions(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	w := h.fundedWallet(t, enum.ChainEthereum, eth("1"))
	fake := h.fake(enum.ChainEthereum)
	to := "0x9858EfFD232B4033E47d90003D41EC34EcaEda94"

	h1, err := h.m.SendTransaction(ctx, w.ID, to, decimal.RequireFromString("0.1"), enum.ChainEthereum)
	require.NoError(t, err)
	_, err = h.m.SendTransaction(ctx, w.ID, to, decimal.RequireFromString("0.1"), enum.ChainEthereum)
	require.NoError(t, err)
	fake.SetReceipt(rpc.Receipt{Hash: h1, Status: rpc.ReceiptFailed, BlockNumber: 3, GasUsed: 21000})

	remaining, err := h.m.RefreshPendingTransactions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, remaining)

	recs, err := h.m.Transactions(w.ID)
	require.NoError(t, err)
	assert.Equal(t, enum.TxStatusPending, recs[0].Status)
	assert.Equal(t, enum.TxStatusFailed, recs[1].Status)
}

func TestRecordRewardCredit(t *testing.T) {
	h := newHarness(t)
	w := h.fundedWallet(t, enum.ChainPolygon, eth("0"))

	rec, err := h.m.RecordRewardCredit(w.ID, decimal.NewFromInt(5), "", "daily streak")
	require.NoError(t, err)
	assert.Equal(t, enum.TxKindRewardCredit, rec.Kind)
	assert.Equal(t, enum.TxStatusConfirmed, rec.Status)
	assert.Equal(t, "MATIC", rec.Symbol)
	assert.Equal(t, w.Address, rec.To)
	assert.Empty(t, rec.Hash)
	assert.Empty(t, h.fake(enum.ChainPolygon).Sent())

	_, err = h.m.RecordRewardCredit(w.ID, decimal.Zero, "GLW", "")
	assert.ErrorIs(t, err, types.ErrInvalidAmount)
	_, err = h.m.RecordRewardCredit("missing", decimal.NewFromInt(1), "GLW", "")
	assert.ErrorIs(t, err, types.ErrWalletNotFound)
}

func TestGetRecentTransactions_OrderAndLimit(t *testing.T) {
	h := newHarness(t)
	a := h.fundedWallet(t, enum.ChainEthereum, eth("0"))
	b := h.fundedWallet(t, enum.ChainSolana, big.NewInt(0))

	var ids []string
	for i := 0; i < 6; i++ {
		w := a
		if i%2 == 1 {
			w = b
		}
		rec, err := h.m.RecordRewardCredit(w.ID, decimal.NewFromInt(int64(i+1)), "GLW", "")
		require.NoError(t, err)
		ids = append(ids, rec.ID)
	}

	recent := h.m.GetRecentTransactions(4)
	require.Len(t, recent, 4)
	for i, r := range recent {
		assert.Equal(t, ids[len(ids)-1-i], r.ID)
	}
	assert.Len(t, h.m.GetRecentTransactions(0), 6)
}

func TestSubscribe(t *testing.T) {
	h := newHarness(t)
	ch, cancel := h.m.Subscribe()
	defer cancel()

	initial := <-ch
	assert.Empty(t, initial.Wallets)

	w, err := h.m.CreateWallet(context.Background(), enum.ChainEthereum, "")
	require.NoError(t, err)
	snap := <-ch
	require.Len(t, snap.Wallets, 1)
	assert.Equal(t, w.ID, snap.Wallets[0].ID)

	// Unread snapshots are replaced by the newest one.
	for i := 0; i < 3; i++ {
		_, err := h.m.RecordRewardCredit(w.ID, decimal.NewFromInt(1), "GLW", "")
		require.NoError(t, err)
	}
	latest := <-ch
	assert.Equal(t, h.m.Snapshot().Version, latest.Version)
	assert.Len(t, latest.Transactions[w.ID], 3)

	// Snapshots are copies.
	latest.Transactions[w.ID][0].Status = enum.TxStatusFailed
	recs, err := h.m.Transactions(w.ID)
	require.NoError(t, err)
	assert.Equal(t, enum.TxStatusConfirmed, recs[0].Status)

	cancel()
	_, open := <-ch
	assert.False(t, open)
	cancel()
}

func TestWatchPending(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	w := h.fundedWallet(t, enum.ChainEthereum, eth("1"))
	hash, err := h.m.SendTransaction(ctx, w.ID, "0x9858EfFD232B4033E47d90003D41EC34EcaEda94", decimal.RequireFromString("0.1"), enum.ChainEthereum)
	require.NoError(t, err)

	err = h.m.WatchPending(ctx, WatchOptions{Interval: time.Millisecond, Timeout: 30 * time.Millisecond})
	assert.Error(t, err)

	h.fake(enum.ChainEthereum).SetReceipt(rpc.Receipt{Hash: hash, Status: rpc.ReceiptConfirmed, BlockNumber: 1})
	var polls atomic.Int32
	err = h.m.WatchPending(ctx, WatchOptions{
		Interval: time.Millisecond,
		Timeout:  time.Second,
		OnPoll:   func(int, error) { polls.Add(1) },
	})
	require.NoError(t, err)
	assert.Equal(t, int32(1), polls.Load())
}

func TestSeedDemoData(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	require.NoError(t, h.m.Initialize(ctx, []enum.Chain{enum.ChainEthereum, enum.ChainBSC}))
	require.NoError(t, SeedDemoData(h.m))

	assert.Equal(t, "100.00", h.m.GetTotalBalanceUSD().StringFixed(2))
	recent := h.m.GetRecentTransactions(10)
	require.Len(t, recent, 2)
	for _, r := range recent {
		assert.Equal(t, enum.TxKindReceive, r.Kind)
		assert.Equal(t, enum.TxStatusConfirmed, r.Status)
	}

	require.NoError(t, SeedDemoData(h.m))
	assert.Len(t, h.m.GetRecentTransactions(10), 2, "seeding twice adds nothing")
}

func TestSeedDemoData_KeepsNewestFirst(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	w := h.fundedWallet(t, enum.ChainEthereum, eth("1"))

	hash, err := h.m.SendTransaction(ctx, w.ID, "0x9858EfFD232B4033E47d90003D41EC34EcaEda94", decimal.RequireFromString("0.1"), enum.ChainEthereum)
	require.NoError(t, err)
	require.NoError(t, SeedDemoData(h.m))

	recs, err := h.m.Transactions(w.ID)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, hash, recs[0].Hash)
	assert.Equal(t, demoNote, recs[1].Note)
	assert.True(t, recs[0].Timestamp.After(recs[1].Timestamp))
}

func TestPersistedRecordsSurviveRestart(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	w := h.fundedWallet(t, enum.ChainEthereum, eth("1"))
	_, err := h.m.SendTransaction(ctx, w.ID, "0x9858EfFD232B4033E47d90003D41EC34EcaEda94", decimal.RequireFromString("0.1"), enum.ChainEthereum)
	require.NoError(t, err)

	restarted := h.newManager()
	require.NoError(t, restarted.Initialize(ctx, nil))
	recs, err := restarted.Transactions(w.ID)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, enum.TxStatusPending, recs[0].Status)
	assert.True(t, decimal.RequireFromString("0.1").Equal(recs[0].Amount))
}

func TestWalletLookups(t *testing.T) {
	h := newHarness(t)
	_, err := h.m.Wallet("missing")
	assert.True(t, errors.Is(err, types.ErrWalletNotFound))
	_, ok := h.m.WalletByChain(enum.ChainBase)
	assert.False(t, ok)
	assert.Empty(t, h.m.WalletsByChain(enum.ChainBase))
}
