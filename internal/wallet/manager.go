package wallet

import (
	"context"
	"encoding/hex"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fystack/multichain-wallet/internal/chains"
	"github.com/fystack/multichain-wallet/internal/keystore"
	"github.com/fystack/multichain-wallet/internal/pool"
	"github.com/fystack/multichain-wallet/internal/rpc"
	"github.com/fystack/multichain-wallet/pkg/common/constant"
	"github.com/fystack/multichain-wallet/pkg/common/enum"
	"github.com/fystack/multichain-wallet/pkg/common/logger"
	"github.com/fystack/multichain-wallet/pkg/common/types"
	"github.com/fystack/multichain-wallet/pkg/common/utils"
	"github.com/fystack/multichain-wallet/pkg/events"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/tyler-smith/go-bip39"
	"golang.org/x/sync/errgroup"
)

// refreshConcurrency caps balance queries in flight during a refresh.
const refreshConcurrency = 8

// Network is the chain access the manager needs. *pool.Pool implements it.
type Network interface {
	GetBalance(ctx context.Context, address string, chain enum.Chain) (decimal.Decimal, error)
	EstimateFee(ctx context.Context, from, to string, amount decimal.Decimal, chain enum.Chain) (pool.Quote, error)
	Send(ctx context.Context, from, to string, amount decimal.Decimal, key []byte, chain enum.Chain) (pool.Submission, error)
	GetTransactionStatus(ctx context.Context, hash string, chain enum.Chain) (rpc.Receipt, error)
	ValidateAddress(address string, chain enum.Chain) bool
	KeypairFromSeed(chain enum.Chain, seed []byte, index uint32) (rpc.Keypair, error)
	AddressFromKey(chain enum.Chain, key []byte) (string, error)
}

// Credentials is the secret storage the manager needs. *keystore.Store
// implements it.
type Credentials interface {
	StoreWalletSecrets(ctx context.Context, walletID string, w keystore.WalletSecrets) (string, error)
	RemoveWalletSecrets(ctx context.Context, ref string) error
	PrivateKey(ctx context.Context, ref string) ([]byte, error)
	Authorized() bool
	Authenticate(ctx context.Context) (keystore.Decision, error)
}

// PriceFeed quotes USD prices keyed by the descriptor's price id.
type PriceFeed interface {
	Prices(ctx context.Context, ids []string) (map[string]decimal.Decimal, error)
}

type Option func(*Manager)

func WithPriceFeed(p PriceFeed) Option {
	return func(m *Manager) { m.prices = p }
}

func WithEmitter(e events.Emitter) Option {
	return func(m *Manager) { m.events = e }
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// Manager owns wallet, balance and transaction state. All state lives behind
// mu; network and key-store calls are made without it.
type Manager struct {
	registry *chains.Registry
	network  Network
	creds    Credentials
	repo     *Repository
	prices   PriceFeed
	events   events.Emitter
	now      func() time.Time

	initMu sync.Mutex

	mu          sync.Mutex
	initialized bool
	version     uint64
	wallets     []types.Wallet
	balances    map[string][]types.Balance
	records     map[string][]types.TransactionRecord
	lastPrices  map[string]decimal.Decimal
	sendLocks   map[string]chan struct{}

	broker *broker
}

func NewManager(registry *chains.Registry, network Network, creds Credentials, repo *Repository, opts ...Option) *Manager {
	m := &Manager{
		registry:   registry,
		network:    network,
		creds:      creds,
		repo:       repo,
		events:     events.NewNoop(),
		now:        time.Now,
		balances:   make(map[string][]types.Balance),
		records:    make(map[string][]types.TransactionRecord),
		lastPrices: make(map[string]decimal.Decimal),
		sendLocks:  make(map[string]chan struct{}),
		broker:     newBroker(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Initialize restores persisted state on the first call and bootstraps a
// wallet for every requested chain that has no active one. Later calls are
// no-ops.
func (m *Manager) Initialize(ctx context.Context, chainIDs []enum.Chain) error {
	m.initMu.Lock()
	defer m.initMu.Unlock()

	m.mu.Lock()
	if m.initialized {
		m.mu.Unlock()
		return nil
	}
	st, err := m.repo.Load()
	if err != nil {
		m.mu.Unlock()
		return fmt.Errorf("restore wallet state: %w", err)
	}
	m.wallets = st.wallets
	m.balances = st.balances
	m.records = st.records
	m.publishLocked()
	m.mu.Unlock()

	logger.Info("Wallet state restored", "wallets", len(st.wallets))

	errs := &types.MultiError{}
	for _, chain := range chainIDs {
		if _, ok := m.WalletByChain(chain); ok {
			continue
		}
		d, err := m.registry.Descriptor(chain)
		if err != nil {
			errs.Add(err)
			continue
		}
		if _, err := m.createWallet(ctx, d, d.Name+" Wallet"); err != nil {
			errs.Add(fmt.Errorf("bootstrap %s wallet: %w", chain, err))
		}
	}
	if err := errs.ErrOrNil(); err != nil {
		return err
	}

	m.mu.Lock()
	m.initialized = true
	m.mu.Unlock()
	return nil
}

// CreateWallet generates a mnemonic, derives the chain's first account from
// it and seals both. The new wallet becomes the chain's active wallet.
func (m *Manager) CreateWallet(ctx context.Context, chain enum.Chain, label string) (types.Wallet, error) {
	d, err := m.registry.Descriptor(chain)
	if err != nil {
		return types.Wallet{}, err
	}
	if label == "" {
		label = d.Name + " Wallet"
	}
	return m.createWallet(ctx, d, label)
}

func (m *Manager) createWallet(ctx context.Context, d chains.ChainDescriptor, label string) (types.Wallet, error) {
	entropy, err := bip39.NewEntropy(128)
	if err != nil {
		return types.Wallet{}, fmt.Errorf("generate entropy: %w", err)
	}
	defer keystore.Zero(entropy)
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return types.Wallet{}, fmt.Errorf("generate mnemonic: %w", err)
	}
	mnemonicBytes := []byte(mnemonic)
	defer keystore.Zero(mnemonicBytes)

	seed := bip39.NewSeed(mnemonic, "")
	defer keystore.Zero(seed)

	kp, err := m.network.KeypairFromSeed(d.ID, seed, 0)
	if err != nil {
		return types.Wallet{}, fmt.Errorf("derive %s key: %w", d.ID, err)
	}
	defer keystore.Zero(kp.PrivateKey)

	id := uuid.NewString()
	ref, err := m.creds.StoreWalletSecrets(ctx, id, keystore.WalletSecrets{
		Mnemonic:   mnemonicBytes,
		PrivateKey: kp.PrivateKey,
		PublicKey:  hex.EncodeToString(kp.PublicKey),
		Address:    kp.Address,
		Chain:      d.ID,
	})
	if err != nil {
		if rmErr := m.creds.RemoveWalletSecrets(context.WithoutCancel(ctx), keystore.WalletRef(id)); rmErr != nil {
			logger.Error("Failed to remove partially stored secrets", "wallet_id", id, "error", rmErr)
		}
		return types.Wallet{}, fmt.Errorf("store wallet secrets: %w", err)
	}

	w := types.Wallet{
		ID:        id,
		Chain:     d.ID,
		Address:   kp.Address,
		Label:     label,
		KeyRef:    ref,
		CreatedAt: m.now().UTC(),
		Active:    true,
	}

	m.mu.Lock()
	if err := m.repo.SaveWallet(w); err != nil {
		m.mu.Unlock()
		if rmErr := m.creds.RemoveWalletSecrets(context.WithoutCancel(ctx), ref); rmErr != nil {
			logger.Error("Failed to remove secrets of unsaved wallet", "wallet_id", id, "error", rmErr)
		}
		return types.Wallet{}, fmt.Errorf("persist wallet: %w", err)
	}
	for i := range m.wallets {
		if m.wallets[i].Chain == d.ID && m.wallets[i].Active {
			m.wallets[i].Active = false
			if err := m.repo.SaveWallet(m.wallets[i]); err != nil {
				logger.Error("Failed to persist deactivated wallet", "wallet_id", m.wallets[i].ID, "error", err)
			}
		}
	}
	m.wallets = append(m.wallets, w)
	m.publishLocked()
	m.mu.Unlock()

	logger.Info("Wallet created", "wallet_id", id, "chain", d.ID, "address", w.Address)
	if err := m.events.EmitWalletCreated(context.WithoutCancel(ctx), w); err != nil {
		logger.Warn("Failed to emit wallet event", "wallet_id", id, "error", err)
	}
	return w, nil
}

// GetBalance queries the chain for the wallet's native balance. The cache is
// left untouched.
func (m *Manager) GetBalance(ctx context.Context, walletID string) (decimal.Decimal, error) {
	w, err := m.Wallet(walletID)
	if err != nil {
		return decimal.Zero, err
	}
	return m.network.GetBalance(ctx, w.Address, w.Chain)
}

type balanceResult struct {
	wallet   types.Wallet
	desc     chains.ChainDescriptor
	quantity decimal.Decimal
}

// RefreshBalances re-reads every wallet's native balance and reprices it.
// Wallets that fail keep their cached balance; the failures are returned
// together.
func (m *Manager) RefreshBalances(ctx context.Context) error {
	wallets := m.Wallets()
	errs := &types.MultiError{}

	results := make([]*balanceResult, len(wallets))
	var g errgroup.Group
	g.SetLimit(refreshConcurrency)
	for i, w := range wallets {
		d, err := m.registry.Descriptor(w.Chain)
		if err != nil {
			errs.Add(fmt.Errorf("wallet %s: %w", w.ID, err))
			continue
		}
		g.Go(func() error {
			q, err := m.network.GetBalance(ctx, w.Address, w.Chain)
			if err != nil {
				errs.Add(fmt.Errorf("wallet %s (%s): %w", w.ID, w.Chain, err))
				return nil
			}
			results[i] = &balanceResult{wallet: w, desc: d, quantity: q}
			return nil
		})
	}
	_ = g.Wait()

	ids := lo.Uniq(lo.FilterMap(results, func(r *balanceResult, _ int) (string, bool) {
		if r == nil {
			return "", false
		}
		return r.desc.PriceID, r.desc.PriceID != ""
	}))
	var quotes map[string]decimal.Decimal
	if m.prices != nil && len(ids) > 0 {
		var err error
		if quotes, err = m.prices.Prices(ctx, ids); err != nil {
			errs.Add(fmt.Errorf("prices: %w", err))
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for id, p := range quotes {
		m.lastPrices[id] = p
	}
	now := m.now().UTC()
	for _, r := range results {
		if r == nil || m.indexLocked(r.wallet.ID) < 0 {
			continue
		}
		b := types.Balance{
			WalletID:  r.wallet.ID,
			Symbol:    r.desc.Symbol,
			Name:      r.desc.Name,
			Quantity:  r.quantity,
			UpdatedAt: now,
		}
		if p, ok := m.lastPrices[r.desc.PriceID]; ok {
			b.FiatValue = r.quantity.Mul(p).Round(2)
		} else if m.prices != nil {
			errs.Add(fmt.Errorf("no %s price for %s", constant.USD, r.desc.PriceID))
		}
		m.upsertBalanceLocked(b)
		if err := m.repo.SaveBalance(b); err != nil {
			errs.Add(fmt.Errorf("persist balance %s: %w", r.wallet.ID, err))
		}
	}
	m.publishLocked()
	return errs.ErrOrNil()
}

// GetTotalBalanceUSD sums cached fiat values. No network access.
func (m *Manager) GetTotalBalanceUSD() decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.totalLocked()
}

// SendTransaction signs and submits a native transfer from walletID and
// records it as pending. Nothing is recorded when submission fails.
func (m *Manager) SendTransaction(ctx context.Context, walletID, to string, amount decimal.Decimal, chain enum.Chain) (string, error) {
	rec, _, err := m.send(ctx, walletID, to, amount, chain)
	if err != nil {
		return "", err
	}
	return rec.Hash, nil
}

// SendTransactionResult is SendTransaction reporting through TxResult.
func (m *Manager) SendTransactionResult(ctx context.Context, walletID, to string, amount decimal.Decimal, chain enum.Chain) types.TxResult {
	rec, sub, err := m.send(ctx, walletID, to, amount, chain)
	if err != nil {
		return types.TxFailure{Message: err.Error(), Err: err}
	}
	return types.TxSuccess{
		Hash:     rec.Hash,
		RecordID: rec.ID,
		GasUsed:  sub.GasLimit,
		GasPrice: decimal.NewFromBigInt(sub.GasPrice, 0),
	}
}

func (m *Manager) send(ctx context.Context, walletID, to string, amount decimal.Decimal, chain enum.Chain) (types.TransactionRecord, pool.Submission, error) {
	w, d, err := m.prepareTransfer(walletID, to, amount, chain)
	if err != nil {
		return types.TransactionRecord{}, pool.Submission{}, err
	}

	if err := m.ensureAuthenticated(ctx); err != nil {
		return types.TransactionRecord{}, pool.Submission{}, err
	}

	// The EVM client reads the pending nonce from the node, so two transfers
	// from one wallet must not be in flight at once.
	unlock, err := m.lockWallet(ctx, w.ID)
	if err != nil {
		return types.TransactionRecord{}, pool.Submission{}, err
	}
	defer unlock()

	key, err := m.creds.PrivateKey(ctx, w.KeyRef)
	if err != nil {
		return types.TransactionRecord{}, pool.Submission{}, fmt.Errorf("unlock key for wallet %s: %w", w.ID, err)
	}
	defer keystore.Zero(key)

	derived, err := m.network.AddressFromKey(chain, key)
	if err != nil {
		return types.TransactionRecord{}, pool.Submission{}, fmt.Errorf("%w: %v", types.ErrSigning, err)
	}
	if !sameAddress(d.Type, derived, w.Address) {
		logger.Error("Stored key does not match wallet address", "wallet_id", w.ID, "chain", chain)
		return types.TransactionRecord{}, pool.Submission{}, fmt.Errorf("%w: key for wallet %s derives a different address", types.ErrSigning, w.ID)
	}

	sub, err := m.network.Send(ctx, w.Address, to, amount, key, chain)
	if err != nil {
		return types.TransactionRecord{}, pool.Submission{}, err
	}

	rec := types.TransactionRecord{
		ID:        uuid.NewString(),
		WalletID:  w.ID,
		Hash:      sub.Hash,
		From:      w.Address,
		To:        to,
		Amount:    amount,
		Symbol:    d.Symbol,
		Status:    enum.TxStatusPending,
		Kind:      enum.TxKindSend,
		Chain:     chain,
		Timestamp: m.now().UTC(),
	}

	// The transaction is on the network now; the caller's ctx no longer matters.
	m.mu.Lock()
	m.prependRecordLocked(rec)
	m.publishLocked()
	m.mu.Unlock()

	if err := m.events.EmitTransactionPending(context.WithoutCancel(ctx), rec); err != nil {
		logger.Warn("Failed to emit transaction event", "hash", rec.Hash, "error", err)
	}
	return rec, sub, nil
}

// lockWallet blocks until the caller holds walletID's send slot or ctx ends.
func (m *Manager) lockWallet(ctx context.Context, walletID string) (func(), error) {
	m.mu.Lock()
	slot, ok := m.sendLocks[walletID]
	if !ok {
		slot = make(chan struct{}, 1)
		m.sendLocks[walletID] = slot
	}
	m.mu.Unlock()

	select {
	case slot <- struct{}{}:
		return func() { <-slot }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// EstimateGas returns the fee for a transfer in the chain's native asset.
// The key store is not touched.
func (m *Manager) EstimateGas(ctx context.Context, walletID, to string, amount decimal.Decimal, chain enum.Chain) (decimal.Decimal, error) {
	w, _, err := m.prepareTransfer(walletID, to, amount, chain)
	if err != nil {
		return decimal.Zero, err
	}
	q, err := m.network.EstimateFee(ctx, w.Address, to, amount, chain)
	if err != nil {
		return decimal.Zero, err
	}
	return q.Fee, nil
}

// prepareTransfer runs every check that needs neither network nor keys.
func (m *Manager) prepareTransfer(walletID, to string, amount decimal.Decimal, chain enum.Chain) (types.Wallet, chains.ChainDescriptor, error) {
	w, err := m.Wallet(walletID)
	if err != nil {
		return w, chains.ChainDescriptor{}, err
	}
	d, err := m.registry.Descriptor(chain)
	if err != nil {
		return w, d, err
	}
	if w.Chain != chain {
		return w, d, fmt.Errorf("%w: wallet %s is on %s, not %s", types.ErrUnsupportedChain, w.ID, w.Chain, chain)
	}
	if !m.network.ValidateAddress(to, chain) {
		return w, d, fmt.Errorf("%w: recipient %q on %s", types.ErrInvalidAddress, to, chain)
	}
	if _, err := utils.ToBaseUnits(amount, d.Decimals); err != nil {
		return w, d, err
	}
	return w, d, nil
}

func (m *Manager) ensureAuthenticated(ctx context.Context) error {
	if m.creds.Authorized() {
		return nil
	}
	decision, err := m.creds.Authenticate(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrAuthDenied, err)
	}
	if decision != keystore.DecisionGranted {
		return fmt.Errorf("%w: %s", types.ErrAuthDenied, decision)
	}
	return nil
}

func sameAddress(t enum.ChainType, a, b string) bool {
	if t == enum.ChainTypeEVM {
		return strings.EqualFold(a, b)
	}
	return a == b
}

// GetRecentTransactions merges every wallet's records newest first. A
// non-positive limit means the default of ten.
func (m *Manager) GetRecentTransactions(limit int) []types.TransactionRecord {
	if limit <= 0 {
		limit = constant.DefaultRecentTransactions
	}
	m.mu.Lock()
	var all []types.TransactionRecord
	for _, recs := range m.records {
		for _, r := range recs {
			all = append(all, r.Clone())
		}
	}
	m.mu.Unlock()

	sortRecords(all)
	if len(all) > limit {
		all = all[:limit]
	}
	return all
}

// Transactions returns one wallet's records, newest first.
func (m *Manager) Transactions(walletID string) ([]types.TransactionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.indexLocked(walletID) < 0 {
		return nil, fmt.Errorf("%w: %s", types.ErrWalletNotFound, walletID)
	}
	return cloneRecords(m.records[walletID]), nil
}

// RefreshTransactionStatus polls the receipt of one pending record and applies
// the transition it reports. Records that are not pending are returned as is.
func (m *Manager) RefreshTransactionStatus(ctx context.Context, walletID, recordID string) (types.TransactionRecord, error) {
	m.mu.Lock()
	rec, err := m.recordLocked(walletID, recordID)
	m.mu.Unlock()
	if err != nil {
		return rec, err
	}
	if rec.Status != enum.TxStatusPending || rec.Hash == "" {
		return rec, nil
	}

	receipt, err := m.network.GetTransactionStatus(ctx, rec.Hash, rec.Chain)
	if err != nil {
		return rec, fmt.Errorf("status of %s: %w", rec.Hash, err)
	}

	var next enum.TxStatus
	switch receipt.Status {
	case rpc.ReceiptConfirmed:
		next = enum.TxStatusConfirmed
	case rpc.ReceiptFailed:
		next = enum.TxStatusFailed
	default:
		return rec, nil
	}

	m.mu.Lock()
	rec, changed, err := m.applyReceiptLocked(walletID, recordID, next, receipt)
	if changed {
		m.publishLocked()
	}
	m.mu.Unlock()
	if err != nil || !changed {
		return rec, err
	}

	logger.Info("Transaction settled", "wallet_id", walletID, "hash", rec.Hash, "status", rec.Status)
	if err := m.events.EmitTransactionStatus(context.WithoutCancel(ctx), rec); err != nil {
		logger.Warn("Failed to emit transaction event", "hash", rec.Hash, "error", err)
	}
	return rec, nil
}

func (m *Manager) applyReceiptLocked(walletID, recordID string, next enum.TxStatus, receipt rpc.Receipt) (types.TransactionRecord, bool, error) {
	recs := m.records[walletID]
	i := slices.IndexFunc(recs, func(r types.TransactionRecord) bool { return r.ID == recordID })
	if i < 0 {
		return types.TransactionRecord{}, false, fmt.Errorf("%w: %s", types.ErrRecordNotFound, recordID)
	}
	// Cancelled while the poll was in flight.
	if recs[i].Status != enum.TxStatusPending {
		return recs[i].Clone(), false, nil
	}

	r := &recs[i]
	r.Status = next
	gasUsed := receipt.GasUsed
	r.GasUsed = &gasUsed
	block := receipt.BlockNumber
	r.BlockNumber = &block
	if receipt.EffectiveGasPrice != nil {
		p := decimal.NewFromBigInt(receipt.EffectiveGasPrice, 0)
		r.GasPrice = &p
	}
	if err := m.repo.SaveRecord(*r); err != nil {
		logger.Error("Failed to persist record", "record_id", r.ID, "error", err)
	}
	return r.Clone(), true, nil
}

// RefreshPendingTransactions polls every pending record and returns how many
// are still pending afterwards.
func (m *Manager) RefreshPendingTransactions(ctx context.Context) (int, error) {
	type ref struct{ walletID, recordID string }
	var pending []ref
	m.mu.Lock()
	for walletID, recs := range m.records {
		for _, r := range recs {
			if r.Status == enum.TxStatusPending && r.Hash != "" {
				pending = append(pending, ref{walletID, r.ID})
			}
		}
	}
	m.mu.Unlock()

	errs := &types.MultiError{}
	remaining := 0
	for _, p := range pending {
		rec, err := m.RefreshTransactionStatus(ctx, p.walletID, p.recordID)
		if err != nil {
			errs.Add(err)
		}
		if rec.Status == enum.TxStatusPending {
			remaining++
		}
	}
	return remaining, errs.ErrOrNil()
}

// CancelTransaction marks a pending record cancelled locally. It does not
// replace the transaction on chain.
func (m *Manager) CancelTransaction(walletID, recordID string) error {
	m.mu.Lock()
	recs := m.records[walletID]
	i := slices.IndexFunc(recs, func(r types.TransactionRecord) bool { return r.ID == recordID })
	if m.indexLocked(walletID) < 0 {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", types.ErrWalletNotFound, walletID)
	}
	if i < 0 {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", types.ErrRecordNotFound, recordID)
	}
	if recs[i].Status != enum.TxStatusPending {
		status := recs[i].Status
		m.mu.Unlock()
		return fmt.Errorf("%w: %s -> %s", types.ErrInvalidTransition, status, enum.TxStatusCancelled)
	}
	recs[i].Status = enum.TxStatusCancelled
	rec := recs[i].Clone()
	if err := m.repo.SaveRecord(rec); err != nil {
		logger.Error("Failed to persist record", "record_id", rec.ID, "error", err)
	}
	m.publishLocked()
	m.mu.Unlock()

	if err := m.events.EmitTransactionStatus(context.Background(), rec); err != nil {
		logger.Warn("Failed to emit transaction event", "record_id", rec.ID, "error", err)
	}
	return nil
}

// RecordRewardCredit books an off-chain credit. Nothing is signed or sent.
func (m *Manager) RecordRewardCredit(walletID string, amount decimal.Decimal, symbol, note string) (types.TransactionRecord, error) {
	if !amount.IsPositive() {
		return types.TransactionRecord{}, fmt.Errorf("%w: reward %s must be positive", types.ErrInvalidAmount, amount)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.indexLocked(walletID)
	if i < 0 {
		return types.TransactionRecord{}, fmt.Errorf("%w: %s", types.ErrWalletNotFound, walletID)
	}
	w := m.wallets[i]
	if symbol == "" {
		if d, err := m.registry.Descriptor(w.Chain); err == nil {
			symbol = d.Symbol
		}
	}
	rec := types.TransactionRecord{
		ID:        uuid.NewString(),
		WalletID:  w.ID,
		To:        w.Address,
		Amount:    amount,
		Symbol:    symbol,
		Status:    enum.TxStatusConfirmed,
		Kind:      enum.TxKindRewardCredit,
		Chain:     w.Chain,
		Timestamp: m.now().UTC(),
		Note:      note,
	}
	m.prependRecordLocked(rec)
	m.publishLocked()
	return rec.Clone(), nil
}

// WalletByChain returns the active wallet for chain.
func (m *Manager) WalletByChain(chain enum.Chain) (types.Wallet, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, w := range m.wallets {
		if w.Chain == chain && w.Active {
			return w, true
		}
	}
	return types.Wallet{}, false
}

// WalletsByChain returns active and inactive wallets for chain in creation order.
func (m *Manager) WalletsByChain(chain enum.Chain) []types.Wallet {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []types.Wallet
	for _, w := range m.wallets {
		if w.Chain == chain {
			out = append(out, w)
		}
	}
	return out
}

func (m *Manager) Wallet(id string) (types.Wallet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.indexLocked(id)
	if i < 0 {
		return types.Wallet{}, fmt.Errorf("%w: %s", types.ErrWalletNotFound, id)
	}
	return m.wallets[i], nil
}

func (m *Manager) Wallets() []types.Wallet {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.wallets)
}

// Balances returns the cached balances of one wallet.
func (m *Manager) Balances(walletID string) []types.Balance {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.balances[walletID])
}

func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// Subscribe delivers the current snapshot immediately and then one per
// mutation. A slow reader only ever sees the latest snapshot.
func (m *Manager) Subscribe() (<-chan Snapshot, func()) {
	return m.broker.subscribe()
}

// Close ends every subscription.
func (m *Manager) Close() {
	m.broker.close()
}

func (m *Manager) indexLocked(walletID string) int {
	return slices.IndexFunc(m.wallets, func(w types.Wallet) bool { return w.ID == walletID })
}

func (m *Manager) recordLocked(walletID, recordID string) (types.TransactionRecord, error) {
	if m.indexLocked(walletID) < 0 {
		return types.TransactionRecord{}, fmt.Errorf("%w: %s", types.ErrWalletNotFound, walletID)
	}
	for _, r := range m.records[walletID] {
		if r.ID == recordID {
			return r.Clone(), nil
		}
	}
	return types.TransactionRecord{}, fmt.Errorf("%w: %s", types.ErrRecordNotFound, recordID)
}

func (m *Manager) prependRecordLocked(rec types.TransactionRecord) {
	m.records[rec.WalletID] = append([]types.TransactionRecord{rec}, m.records[rec.WalletID]...)
	if err := m.repo.SaveRecord(rec); err != nil {
		logger.Error("Failed to persist record", "record_id", rec.ID, "hash", rec.Hash, "error", err)
	}
}

func (m *Manager) upsertBalanceLocked(b types.Balance) {
	list := m.balances[b.WalletID]
	for i := range list {
		if list[i].Symbol == b.Symbol {
			list[i] = b
			return
		}
	}
	m.balances[b.WalletID] = append(list, b)
}

func (m *Manager) totalLocked() decimal.Decimal {
	total := decimal.Zero
	for _, list := range m.balances {
		for _, b := range list {
			total = total.Add(b.FiatValue)
		}
	}
	return total
}

func (m *Manager) snapshotLocked() Snapshot {
	s := Snapshot{
		Version:      m.version,
		Wallets:      slices.Clone(m.wallets),
		Balances:     make(map[string][]types.Balance, len(m.balances)),
		Transactions: make(map[string][]types.TransactionRecord, len(m.records)),
		TotalUSD:     m.totalLocked(),
	}
	for id, list := range m.balances {
		s.Balances[id] = slices.Clone(list)
	}
	for id, list := range m.records {
		s.Transactions[id] = cloneRecords(list)
	}
	return s
}

func (m *Manager) publishLocked() {
	m.version++
	m.broker.publish(m.snapshotLocked())
}

func cloneRecords(in []types.TransactionRecord) []types.TransactionRecord {
	out := make([]types.TransactionRecord, len(in))
	for i, r := range in {
		out[i] = r.Clone()
	}
	return out
}
