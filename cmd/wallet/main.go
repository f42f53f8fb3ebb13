package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fystack/multichain-wallet/pkg/common/logger"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
	configSet  bool
	debug      bool
	testnet    bool
	testnetSet bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		logger.Error("Command failed", "error", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "wallet",
		Short:         "Multi-chain wallet: keys, balances and transfers for EVM chains and Solana",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			level := slog.LevelInfo
			if opts.debug {
				level = slog.LevelDebug
			}
			logger.Init(&logger.Options{Level: level, TimeFormat: time.RFC3339})
			// .env is optional; real environment variables take precedence
			if err := godotenv.Load(); err == nil {
				logger.Debug("Loaded .env")
			}
			opts.configSet = cmd.Flags().Changed("config")
			opts.testnetSet = cmd.Flags().Changed("testnet")
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "configs/config.yaml", "Path to configuration file")
	pf.BoolVar(&opts.debug, "debug", false, "Enable debug logs")
	pf.BoolVar(&opts.testnet, "testnet", false, "Use testnet endpoints (overrides config)")

	root.AddCommand(
		newInitCmd(opts),
		newCreateCmd(opts),
		newListCmd(opts),
		newBalanceCmd(opts),
		newRefreshCmd(opts),
		newTotalCmd(opts),
		newSendCmd(opts),
		newEstimateCmd(opts),
		newHistoryCmd(opts),
		newStatusCmd(opts),
		newCancelCmd(opts),
		newRewardCmd(opts),
		newWatchCmd(opts),
		newEventsCmd(opts),
	)
	return root
}
