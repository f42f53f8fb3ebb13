package infra

import (
	"context"
	"fmt"
	"time"

	"github.com/fystack/multichain-wallet/pkg/common/logger"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

const MaxMsgSize = 64 * 1024

type EnqueueOptions struct {
	// IdempotentKey becomes Nats-Msg-Id so JetStream drops duplicates.
	IdempotentKey string
}

// Publisher delivers event payloads to a subject.
type Publisher interface {
	Enqueue(ctx context.Context, subject string, message []byte, options *EnqueueOptions) error
	Close()
}

type corePublisher struct {
	nc *nats.Conn
}

// NewCorePublisher publishes fire-and-forget on a plain NATS connection.
func NewCorePublisher(nc *nats.Conn) Publisher {
	return &corePublisher{nc: nc}
}

func (p *corePublisher) Enqueue(_ context.Context, subject string, message []byte, options *EnqueueOptions) error {
	msg := &nats.Msg{Subject: subject, Data: message, Header: nats.Header{}}
	if options != nil && options.IdempotentKey != "" {
		msg.Header.Set(nats.MsgIdHdr, options.IdempotentKey)
	}
	if err := p.nc.PublishMsg(msg); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

func (p *corePublisher) Close() {
	if err := p.nc.Drain(); err != nil {
		logger.Warn("NATS drain failed", "error", err)
	}
}

type streamPublisher struct {
	nc *nats.Conn
	js jetstream.JetStream
}

// NewStreamPublisher ensures stream captures subjects and publishes with
// acknowledgement.
func NewStreamPublisher(ctx context.Context, nc *nats.Conn, stream string, subjects []string) (Publisher, error) {
	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:        stream,
		Description: "Stream for " + stream,
		Subjects:    subjects,
		MaxMsgSize:  MaxMsgSize,
		Storage:     jetstream.FileStorage,
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      7 * 24 * time.Hour,
		Duplicates:  10 * time.Minute,
	})
	if err != nil {
		return nil, fmt.Errorf("create stream %s: %w", stream, err)
	}
	logger.Info("JetStream stream ready", "stream", stream, "subjects", subjects)
	return &streamPublisher{nc: nc, js: js}, nil
}

func (p *streamPublisher) Enqueue(ctx context.Context, subject string, message []byte, options *EnqueueOptions) error {
	header := nats.Header{}
	if options != nil && options.IdempotentKey != "" {
		header.Set(jetstream.MsgIDHeader, options.IdempotentKey)
	}
	_, err := p.js.PublishMsg(ctx, &nats.Msg{
		Subject: subject,
		Data:    message,
		Header:  header,
	})
	if err != nil {
		return fmt.Errorf("error enqueueing message: %w", err)
	}
	return nil
}

func (p *streamPublisher) Close() {
	if err := p.nc.Drain(); err != nil {
		logger.Warn("NATS drain failed", "error", err)
	}
}
