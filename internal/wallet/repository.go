package wallet

import (
	"fmt"
	"sort"

	"github.com/fystack/multichain-wallet/pkg/common/constant"
	"github.com/fystack/multichain-wallet/pkg/common/types"
	"github.com/fystack/multichain-wallet/pkg/infra"
)

// Repository persists wallets, cached balances and transaction records in a
// KV store. Key material never passes through here.
type Repository struct {
	kv infra.KVStore
}

func NewRepository(kv infra.KVStore) *Repository {
	return &Repository{kv: kv}
}

func walletKey(id string) string {
	return fmt.Sprintf("%s/%s", constant.WalletKeyPrefix, id)
}

func recordKey(walletID, recordID string) string {
	return fmt.Sprintf("%s/%s/%s", constant.RecordKeyPrefix, walletID, recordID)
}

func balanceKey(walletID, symbol string) string {
	return fmt.Sprintf("%s/%s/%s", constant.BalanceKeyPrefix, walletID, symbol)
}

func (r *Repository) SaveWallet(w types.Wallet) error {
	return r.kv.SetAny(walletKey(w.ID), w)
}

func (r *Repository) SaveRecord(rec types.TransactionRecord) error {
	return r.kv.SetAny(recordKey(rec.WalletID, rec.ID), rec)
}

func (r *Repository) SaveBalance(b types.Balance) error {
	return r.kv.SetAny(balanceKey(b.WalletID, b.Symbol), b)
}

type persistedState struct {
	wallets  []types.Wallet
	balances map[string][]types.Balance
	records  map[string][]types.TransactionRecord
}

// Load restores everything. A balance or record whose wallet is missing fails
// the whole load with ErrOrphanedRecord.
func (r *Repository) Load() (persistedState, error) {
	st := persistedState{
		balances: make(map[string][]types.Balance),
		records:  make(map[string][]types.TransactionRecord),
	}

	pairs, err := r.kv.List(constant.WalletKeyPrefix + "/")
	if err != nil {
		return st, fmt.Errorf("list wallets: %w", err)
	}
	known := make(map[string]bool, len(pairs))
	for _, p := range pairs {
		var w types.Wallet
		if err := infra.JSON.Unmarshal(p.Value, &w); err != nil {
			return st, fmt.Errorf("decode %s: %w", p.Key, err)
		}
		st.wallets = append(st.wallets, w)
		known[w.ID] = true
	}
	sort.SliceStable(st.wallets, func(i, j int) bool {
		return st.wallets[i].CreatedAt.Before(st.wallets[j].CreatedAt)
	})

	pairs, err = r.kv.List(constant.BalanceKeyPrefix + "/")
	if err != nil {
		return st, fmt.Errorf("list balances: %w", err)
	}
	for _, p := range pairs {
		var b types.Balance
		if err := infra.JSON.Unmarshal(p.Value, &b); err != nil {
			return st, fmt.Errorf("decode %s: %w", p.Key, err)
		}
		if !known[b.WalletID] {
			return st, fmt.Errorf("%w: balance %s", types.ErrOrphanedRecord, p.Key)
		}
		st.balances[b.WalletID] = append(st.balances[b.WalletID], b)
	}

	pairs, err = r.kv.List(constant.RecordKeyPrefix + "/")
	if err != nil {
		return st, fmt.Errorf("list records: %w", err)
	}
	for _, p := range pairs {
		var rec types.TransactionRecord
		if err := infra.JSON.Unmarshal(p.Value, &rec); err != nil {
			return st, fmt.Errorf("decode %s: %w", p.Key, err)
		}
		if !known[rec.WalletID] {
			return st, fmt.Errorf("%w: record %s", types.ErrOrphanedRecord, p.Key)
		}
		st.records[rec.WalletID] = append(st.records[rec.WalletID], rec)
	}
	for id := range st.records {
		sortRecords(st.records[id])
	}
	return st, nil
}

// sortRecords orders most recent first.
func sortRecords(recs []types.TransactionRecord) {
	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].Timestamp.After(recs[j].Timestamp)
	})
}
