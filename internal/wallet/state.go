package wallet

import (
	"sync"

	"github.com/fystack/multichain-wallet/pkg/common/types"
	"github.com/shopspring/decimal"
)

// Snapshot is an immutable copy of the manager's state. Version increases by
// one per published mutation.
type Snapshot struct {
	Version      uint64
	Wallets      []types.Wallet
	Balances     map[string][]types.Balance
	Transactions map[string][]types.TransactionRecord
	TotalUSD     decimal.Decimal
}

type broker struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan Snapshot
	last   Snapshot
}

func newBroker() *broker {
	return &broker{subs: make(map[int]chan Snapshot)}
}

// publish hands s to every subscriber. A subscriber that has not consumed the
// previous snapshot has it replaced, so nobody blocks the publisher.
func (b *broker) publish(s Snapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.last = s
	for _, ch := range b.subs {
		offer(ch, s)
	}
}

func offer(ch chan Snapshot, s Snapshot) {
	select {
	case ch <- s:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- s:
	default:
	}
}

func (b *broker) subscribe() (<-chan Snapshot, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan Snapshot, 1)
	b.subs[id] = ch
	ch <- b.last

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if c, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(c)
		}
	}
}

func (b *broker) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
