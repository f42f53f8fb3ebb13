package constant

import "time"

const (
	EnvProduction  = "production"
	EnvDevelopment = "development"

	DefaultAuthValidity  = 5 * time.Minute
	DefaultClientTimeout = 15 * time.Second

	// Fixed name templates inside the credential store.
	WalletSecretPrefix = "wallet"
	UserSecretPrefix   = "user"

	WalletKeyPrefix  = "wallets"
	RecordKeyPrefix  = "records"
	BalanceKeyPrefix = "balances"

	DefaultRecentTransactions = 10
	USD                       = "usd"
)
