package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fystack/multichain-wallet/pkg/common/enum"
	"github.com/fystack/multichain-wallet/pkg/common/types"
	"github.com/fystack/multichain-wallet/pkg/infra"
)

type EventType string

const (
	WalletCreated      EventType = "wallet.created"
	TransactionPending EventType = "transaction.pending"
	TransactionStatus  EventType = "transaction.status"
)

// WalletEvent is the JSON payload published for every event type.
type WalletEvent struct {
	Type      EventType  `json:"type"`
	Chain     enum.Chain `json:"chain"`
	Data      any        `json:"data"`
	Timestamp int64      `json:"timestamp"`
}

type Emitter interface {
	EmitWalletCreated(ctx context.Context, w types.Wallet) error
	EmitTransactionPending(ctx context.Context, rec types.TransactionRecord) error
	EmitTransactionStatus(ctx context.Context, rec types.TransactionRecord) error
	Emit(ctx context.Context, event WalletEvent, idempotentKey string) error
	Close()
}

type emitter struct {
	queue         infra.Publisher
	subjectPrefix string
}

func NewEmitter(queue infra.Publisher, subjectPrefix string) Emitter {
	return &emitter{
		queue:         queue,
		subjectPrefix: subjectPrefix,
	}
}

// Subject returns the NATS subject an event type is published on.
func Subject(prefix string, t EventType) string {
	return fmt.Sprintf("%s.%s", prefix, t)
}

// Subjects lists every subject under prefix, used to bind a JetStream stream.
func Subjects(prefix string) []string {
	return []string{
		Subject(prefix, WalletCreated),
		Subject(prefix, TransactionPending),
		Subject(prefix, TransactionStatus),
	}
}

func (e *emitter) EmitWalletCreated(ctx context.Context, w types.Wallet) error {
	// KeyRef stays inside the process.
	w.KeyRef = ""
	return e.Emit(ctx, WalletEvent{
		Type:      WalletCreated,
		Chain:     w.Chain,
		Data:      w,
		Timestamp: time.Now().UTC().Unix(),
	}, "wallet:"+w.ID)
}

func (e *emitter) EmitTransactionPending(ctx context.Context, rec types.TransactionRecord) error {
	return e.Emit(ctx, WalletEvent{
		Type:      TransactionPending,
		Chain:     rec.Chain,
		Data:      rec,
		Timestamp: time.Now().UTC().Unix(),
	}, rec.Hash)
}

func (e *emitter) EmitTransactionStatus(ctx context.Context, rec types.TransactionRecord) error {
	return e.Emit(ctx, WalletEvent{
		Type:      TransactionStatus,
		Chain:     rec.Chain,
		Data:      rec,
		Timestamp: time.Now().UTC().Unix(),
	}, fmt.Sprintf("%s:%s", rec.ID, rec.Status))
}

func (e *emitter) Emit(ctx context.Context, event WalletEvent, idempotentKey string) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if len(data) > infra.MaxMsgSize {
		return fmt.Errorf("event %s is %d bytes, limit %d", event.Type, len(data), infra.MaxMsgSize)
	}
	var opts *infra.EnqueueOptions
	if idempotentKey != "" {
		opts = &infra.EnqueueOptions{IdempotentKey: idempotentKey}
	}
	return e.queue.Enqueue(ctx, Subject(e.subjectPrefix, event.Type), data, opts)
}

func (e *emitter) Close() {
	if e.queue != nil {
		e.queue.Close()
	}
}

type noop struct{}

// NewNoop returns an Emitter that drops every event.
func NewNoop() Emitter { return noop{} }

func (noop) EmitWalletCreated(context.Context, types.Wallet) error                 { return nil }
func (noop) EmitTransactionPending(context.Context, types.TransactionRecord) error { return nil }
func (noop) EmitTransactionStatus(context.Context, types.TransactionRecord) error  { return nil }
func (noop) Emit(context.Context, WalletEvent, string) error                       { return nil }
func (noop) Close()                                                                {}
