package wallet

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"slices"
	"time"

	"github.com/fystack/multichain-wallet/pkg/common/enum"
	"github.com/fystack/multichain-wallet/pkg/common/types"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	demoTokenSymbol = "GLW"
	demoTokenName   = "Global Wallet Token"
	demoNote        = "demo"
)

// SeedDemoData gives every wallet a zero native balance, 100 GLW worth $50
// and one confirmed incoming transfer from two hours ago. Wallets already
// seeded are skipped. Only for demo builds; callers gate it behind
// features.mock_data.
func SeedDemoData(m *Manager) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now().UTC()
	for _, w := range m.wallets {
		if slices.ContainsFunc(m.records[w.ID], func(r types.TransactionRecord) bool { return r.Note == demoNote }) {
			continue
		}
		d, err := m.registry.Descriptor(w.Chain)
		if err != nil {
			return err
		}
		for _, b := range []types.Balance{
			{WalletID: w.ID, Symbol: d.Symbol, Name: d.Name, Quantity: decimal.Zero, FiatValue: decimal.Zero, UpdatedAt: now},
			{WalletID: w.ID, Symbol: demoTokenSymbol, Name: demoTokenName, Quantity: decimal.NewFromInt(100), FiatValue: decimal.NewFromInt(50), UpdatedAt: now},
		} {
			m.upsertBalanceLocked(b)
			if err := m.repo.SaveBalance(b); err != nil {
				return fmt.Errorf("persist demo balance: %w", err)
			}
		}

		gasUsed := uint64(21000)
		gasPrice := decimal.NewFromInt(20_000_000_000)
		block := uint64(0)
		m.prependRecordLocked(types.TransactionRecord{
			ID:          uuid.NewString(),
			WalletID:    w.ID,
			Hash:        demoHash(w.Chain),
			From:        demoHash(w.Chain),
			To:          w.Address,
			Amount:      decimal.RequireFromString("0.1"),
			Symbol:      d.Symbol,
			GasUsed:     &gasUsed,
			GasPrice:    &gasPrice,
			Status:      enum.TxStatusConfirmed,
			Kind:        enum.TxKindReceive,
			Chain:       w.Chain,
			Timestamp:   now.Add(-2 * time.Hour),
			BlockNumber: &block,
			Note:        demoNote,
		})
		// The demo transfer predates anything the wallet already holds.
		sortRecords(m.records[w.ID])
	}
	m.publishLocked()
	return nil
}

func demoHash(chain enum.Chain) string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	if chain == enum.ChainSolana {
		return "demo" + hex.EncodeToString(b)
	}
	return "0x" + hex.EncodeToString(b)
}
