package wallet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fystack/multichain-wallet/pkg/common/logger"
	"github.com/fystack/multichain-wallet/pkg/retry"
)

var errStillPending = errors.New("transactions still pending")

type WatchOptions struct {
	Interval    time.Duration
	MaxInterval time.Duration
	// Timeout bounds the whole watch. Zero means 15 minutes.
	Timeout time.Duration
	OnPoll  func(remaining int, err error)
}

// WatchPending polls pending records with exponential backoff until none is
// left, ctx ends or the timeout passes.
func (m *Manager) WatchPending(ctx context.Context, opts WatchOptions) error {
	if opts.Interval <= 0 {
		opts.Interval = 2 * time.Second
	}
	if opts.MaxInterval <= 0 {
		opts.MaxInterval = 30 * time.Second
	}

	err := retry.Exponential(ctx, func() error {
		remaining, err := m.RefreshPendingTransactions(ctx)
		if opts.OnPoll != nil {
			opts.OnPoll(remaining, err)
		}
		if err != nil {
			return err
		}
		if remaining > 0 {
			return fmt.Errorf("%w: %d", errStillPending, remaining)
		}
		return nil
	}, retry.ExponentialConfig{
		InitialInterval: opts.Interval,
		MaxInterval:     opts.MaxInterval,
		MaxElapsedTime:  opts.Timeout,
		OnRetry: func(err error, next time.Duration) {
			logger.Debug("Pending transactions not settled", "reason", err, "next_poll", next)
		},
	})
	if err != nil {
		return fmt.Errorf("watch pending transactions: %w", err)
	}
	return nil
}
