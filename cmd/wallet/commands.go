package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fystack/multichain-wallet/internal/wallet"
	"github.com/fystack/multichain-wallet/pkg/common/enum"
	"github.com/fystack/multichain-wallet/pkg/common/logger"
	"github.com/fystack/multichain-wallet/pkg/common/types"
	"github.com/fystack/multichain-wallet/pkg/events"
	"github.com/nats-io/nats.go"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

// withApp opens the stack, runs fn and closes everything afterwards.
func withApp(cmd *cobra.Command, opts *rootOptions, bootstrap []enum.Chain, fn func(context.Context, *app) error) error {
	ctx := cmd.Context()
	a, err := openApp(ctx, opts, bootstrap)
	if err != nil {
		return err
	}
	defer a.close()
	return fn(ctx, a)
}

func parseChains(raw string) []enum.Chain {
	out := []enum.Chain{}
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(strings.ToLower(s)); s != "" {
			out = append(out, enum.Chain(s))
		}
	}
	return out
}

func parseAmount(raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return d, fmt.Errorf("invalid amount %q: %w", raw, err)
	}
	return d, nil
}

func newTable() *tabwriter.Writer {
	return tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
}

func printRecords(recs []types.TransactionRecord) error {
	w := newTable()
	fmt.Fprintln(w, "ID\tCHAIN\tKIND\tSTATUS\tAMOUNT\tTO\tHASH\tTIME")
	for _, r := range recs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s %s\t%s\t%s\t%s\n",
			r.ID, r.Chain, r.Kind, r.Status, r.Amount, r.Symbol, r.To, r.Hash,
			r.Timestamp.Format(time.RFC3339))
	}
	return w.Flush()
}

func newInitCmd(opts *rootOptions) *cobra.Command {
	var chainList string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Restore state and create a default wallet for every chain that has none",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, parseChains(chainList), func(ctx context.Context, a *app) error {
				w := newTable()
				fmt.Fprintln(w, "ID\tCHAIN\tADDRESS\tLABEL\tACTIVE")
				for _, wl := range a.manager.Wallets() {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\n", wl.ID, wl.Chain, wl.Address, wl.Label, wl.Active)
				}
				return w.Flush()
			})
		},
	}
	cmd.Flags().StringVar(&chainList, "chains", "", "Comma separated chains to bootstrap (default all)")
	return cmd
}

func newCreateCmd(opts *rootOptions) *cobra.Command {
	var label string
	cmd := &cobra.Command{
		Use:   "create <chain>",
		Short: "Create a new wallet and make it the active one for its chain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, nil, func(ctx context.Context, a *app) error {
				wl, err := a.manager.CreateWallet(ctx, enum.Chain(strings.ToLower(args[0])), label)
				if err != nil {
					return err
				}
				fmt.Printf("%s\t%s\t%s\n", wl.ID, wl.Chain, wl.Address)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&label, "label", "", "Wallet label (default \"<Chain> Wallet\")")
	return cmd
}

func newListCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List wallets with their last known balances",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, nil, func(ctx context.Context, a *app) error {
				w := newTable()
				fmt.Fprintln(w, "ID\tCHAIN\tADDRESS\tLABEL\tACTIVE\tBALANCES")
				for _, wl := range a.manager.Wallets() {
					var parts []string
					for _, b := range a.manager.Balances(wl.ID) {
						parts = append(parts, fmt.Sprintf("%s %s ($%s)", b.Quantity, b.Symbol, b.FiatValue.StringFixed(2)))
					}
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\t%s\n",
						wl.ID, wl.Chain, wl.Address, wl.Label, wl.Active, strings.Join(parts, ", "))
				}
				return w.Flush()
			})
		},
	}
}

func newBalanceCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "balance <wallet-id>",
		Short: "Query the live native balance of a wallet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, nil, func(ctx context.Context, a *app) error {
				wl, err := a.manager.Wallet(args[0])
				if err != nil {
					return err
				}
				bal, err := a.manager.GetBalance(ctx, wl.ID)
				if err != nil {
					return err
				}
				d, err := a.registry.Descriptor(wl.Chain)
				if err != nil {
					return err
				}
				fmt.Printf("%s %s\n", bal, d.Symbol)
				return nil
			})
		},
	}
}

func newRefreshCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Refresh balances and fiat values of every wallet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, nil, func(ctx context.Context, a *app) error {
				// partial failures still leave the refreshed wallets updated
				if err := a.manager.RefreshBalances(ctx); err != nil {
					logger.Warn("Some balances could not be refreshed", "error", err)
				}
				fmt.Printf("Total: $%s\n", a.manager.GetTotalBalanceUSD().StringFixed(2))
				return nil
			})
		},
	}
}

func newTotalCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "total",
		Short: "Print the portfolio total in USD from the last refresh",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, nil, func(ctx context.Context, a *app) error {
				fmt.Printf("$%s\n", a.manager.GetTotalBalanceUSD().StringFixed(2))
				return nil
			})
		},
	}
}

func newSendCmd(opts *rootOptions) *cobra.Command {
	var chain string
	cmd := &cobra.Command{
		Use:   "send <wallet-id> <to> <amount>",
		Short: "Sign and broadcast a native transfer",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := parseAmount(args[2])
			if err != nil {
				return err
			}
			return withApp(cmd, opts, nil, func(ctx context.Context, a *app) error {
				c, err := resolveChain(a, args[0], chain)
				if err != nil {
					return err
				}
				switch res := a.manager.SendTransactionResult(ctx, args[0], args[1], amount, c).(type) {
				case types.TxSuccess:
					fmt.Printf("record: %s\nhash:   %s\n", res.RecordID, res.Hash)
					if url := a.registry.ResolveExplorerURL(c, res.Hash); url != "" {
						fmt.Printf("view:   %s\n", url)
					}
					return nil
				case types.TxFailure:
					return fmt.Errorf("%s: %w", res.Message, res.Err)
				default:
					return fmt.Errorf("unexpected send result %T", res)
				}
			})
		},
	}
	cmd.Flags().StringVar(&chain, "chain", "", "Chain of the wallet (default the wallet's own chain)")
	return cmd
}

// resolveChain defaults to the wallet's chain when none is given.
func resolveChain(a *app, walletID, chain string) (enum.Chain, error) {
	if chain != "" {
		return enum.Chain(strings.ToLower(chain)), nil
	}
	wl, err := a.manager.Wallet(walletID)
	if err != nil {
		return "", err
	}
	return wl.Chain, nil
}

func newEstimateCmd(opts *rootOptions) *cobra.Command {
	var chain string
	cmd := &cobra.Command{
		Use:   "estimate <wallet-id> <to> <amount>",
		Short: "Estimate the network fee of a transfer in native units",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := parseAmount(args[2])
			if err != nil {
				return err
			}
			return withApp(cmd, opts, nil, func(ctx context.Context, a *app) error {
				c, err := resolveChain(a, args[0], chain)
				if err != nil {
					return err
				}
				fee, err := a.manager.EstimateGas(ctx, args[0], args[1], amount, c)
				if err != nil {
					return err
				}
				d, err := a.registry.Descriptor(c)
				if err != nil {
					return err
				}
				fmt.Printf("%s %s\n", fee, d.Symbol)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&chain, "chain", "", "Chain of the wallet (default the wallet's own chain)")
	return cmd
}

func newHistoryCmd(opts *rootOptions) *cobra.Command {
	var (
		limit    int
		walletID string
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent transactions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, nil, func(ctx context.Context, a *app) error {
				if walletID == "" {
					return printRecords(a.manager.GetRecentTransactions(limit))
				}
				recs, err := a.manager.Transactions(walletID)
				if err != nil {
					return err
				}
				if limit > 0 && len(recs) > limit {
					recs = recs[:limit]
				}
				return printRecords(recs)
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "Maximum number of records")
	cmd.Flags().StringVar(&walletID, "wallet", "", "Only show records of this wallet")
	return cmd
}

func newStatusCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status <wallet-id> <record-id>",
		Short: "Re-check a pending transaction on chain",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, nil, func(ctx context.Context, a *app) error {
				rec, err := a.manager.RefreshTransactionStatus(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				fmt.Printf("%s\t%s\t%s\n", rec.ID, rec.Hash, rec.Status)
				return nil
			})
		},
	}
}

func newCancelCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <wallet-id> <record-id>",
		Short: "Mark a pending record as cancelled locally",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, nil, func(ctx context.Context, a *app) error {
				return a.manager.CancelTransaction(args[0], args[1])
			})
		},
	}
}

func newRewardCmd(opts *rootOptions) *cobra.Command {
	var symbol, note string
	cmd := &cobra.Command{
		Use:   "reward <wallet-id> <amount>",
		Short: "Record an off-chain reward credit",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := parseAmount(args[1])
			if err != nil {
				return err
			}
			return withApp(cmd, opts, nil, func(ctx context.Context, a *app) error {
				rec, err := a.manager.RecordRewardCredit(args[0], amount, symbol, note)
				if err != nil {
					return err
				}
				fmt.Println(rec.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&symbol, "symbol", "", "Asset symbol (default the chain's native symbol)")
	cmd.Flags().StringVar(&note, "note", "", "Free-form note")
	return cmd
}

func newWatchCmd(opts *rootOptions) *cobra.Command {
	var interval, timeout time.Duration
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Poll pending transactions until they settle",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, nil, func(ctx context.Context, a *app) error {
				updates, cancel := a.manager.Subscribe()
				defer cancel()
				go func() {
					for s := range updates {
						logger.Debug("State updated", "version", s.Version, "totalUSD", s.TotalUSD.StringFixed(2))
					}
				}()

				err := a.manager.WatchPending(ctx, wallet.WatchOptions{
					Interval: interval,
					Timeout:  timeout,
					OnPoll: func(remaining int, err error) {
						if err != nil {
							logger.Warn("Poll failed", "error", err)
							return
						}
						logger.Info("Polled pending transactions", "remaining", remaining)
					},
				})
				if err != nil {
					return err
				}
				return printRecords(a.manager.GetRecentTransactions(10))
			})
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", 2*time.Second, "Initial poll interval")
	cmd.Flags().DurationVar(&timeout, "timeout", 15*time.Minute, "Give up after this long")
	return cmd
}

// newEventsCmd prints wallet events from NATS. It needs no keystore.
func newEventsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "events",
		Short: "Print wallet events published on NATS",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			if !cfg.NATS.Enabled {
				return fmt.Errorf("nats is disabled in config")
			}
			nc, err := connectNATS(ctx, cfg)
			if err != nil {
				return err
			}
			defer nc.Close()

			subject := events.Subject(cfg.NATS.SubjectPrefix, ">")
			sub, err := nc.Subscribe(subject, func(msg *nats.Msg) {
				fmt.Printf("[%s] %s\n", msg.Subject, string(msg.Data))
			})
			if err != nil {
				return fmt.Errorf("subscribe %s: %w", subject, err)
			}
			defer func() { _ = sub.Unsubscribe() }()

			logger.Info("Subscribed", "subject", subject)
			<-ctx.Done()
			return nil
		},
	}
}
