package types

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/fystack/multichain-wallet/pkg/common/enum"
	"github.com/shopspring/decimal"
)

// Wallet never carries key material. KeyRef is the credential-store handle
// under which the wallet's secrets are sealed.
type Wallet struct {
	ID        string     `json:"id"`
	Chain     enum.Chain `json:"chain"`
	Address   string     `json:"address"`
	Label     string     `json:"label"`
	KeyRef    string     `json:"keyRef"`
	CreatedAt time.Time  `json:"createdAt"`
	Active    bool       `json:"active"`
}

type Balance struct {
	WalletID  string          `json:"walletId"`
	Symbol    string          `json:"symbol"`
	Name      string          `json:"name"`
	Quantity  decimal.Decimal `json:"quantity"`
	FiatValue decimal.Decimal `json:"fiatValue"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

type TransactionRecord struct {
	ID          string           `json:"id"`
	WalletID    string           `json:"walletId"`
	Hash        string           `json:"hash,omitempty"`
	From        string           `json:"from"`
	To          string           `json:"to"`
	Amount      decimal.Decimal  `json:"amount"`
	Symbol      string           `json:"symbol"`
	GasUsed     *uint64          `json:"gasUsed,omitempty"`
	GasPrice    *decimal.Decimal `json:"gasPrice,omitempty"`
	Status      enum.TxStatus    `json:"status"`
	Kind        enum.TxKind      `json:"kind"`
	Chain       enum.Chain       `json:"chain"`
	Timestamp   time.Time        `json:"timestamp"`
	BlockNumber *uint64          `json:"blockNumber,omitempty"`
	Note        string           `json:"note,omitempty"`
}

func (w Wallet) MarshalBinary() ([]byte, error) {
	return json.Marshal(w)
}

func (w *Wallet) UnmarshalBinary(data []byte) error {
	return json.Unmarshal(data, w)
}

func (w Wallet) String() string {
	return fmt.Sprintf("{ID: %s, Chain: %s, Address: %s, Label: %s, Active: %t}",
		w.ID, w.Chain, w.Address, w.Label, w.Active)
}

func (t TransactionRecord) MarshalBinary() ([]byte, error) {
	return json.Marshal(t)
}

func (t *TransactionRecord) UnmarshalBinary(data []byte) error {
	return json.Unmarshal(data, t)
}

func (t TransactionRecord) String() string {
	return fmt.Sprintf(
		"{ID: %s, WalletID: %s, Hash: %s, From: %s, To: %s, Amount: %s %s, Status: %s, Kind: %s, Chain: %s, Timestamp: %s}",
		t.ID,
		t.WalletID,
		t.Hash,
		t.From,
		t.To,
		t.Amount,
		t.Symbol,
		t.Status,
		t.Kind,
		t.Chain,
		t.Timestamp.Format(time.RFC3339),
	)
}

// Clone returns a deep copy so snapshots never alias live state.
func (t TransactionRecord) Clone() TransactionRecord {
	out := t
	if t.GasUsed != nil {
		v := *t.GasUsed
		out.GasUsed = &v
	}
	if t.GasPrice != nil {
		v := *t.GasPrice
		out.GasPrice = &v
	}
	if t.BlockNumber != nil {
		v := *t.BlockNumber
		out.BlockNumber = &v
	}
	return out
}

// TxResult is the outcome of a send. It is implemented only by TxSuccess and
// TxFailure.
type TxResult interface {
	isTxResult()
}

type TxSuccess struct {
	Hash     string
	RecordID string
	GasUsed  uint64
	GasPrice decimal.Decimal
}

type TxFailure struct {
	Message string
	Err     error
}

func (TxSuccess) isTxResult() {}
func (TxFailure) isTxResult() {}
