package price

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fystack/multichain-wallet/pkg/common/config"
	"github.com/fystack/multichain-wallet/pkg/common/constant"
	"github.com/shopspring/decimal"
)

// Feed quotes fiat prices keyed by price id (CoinGecko coin id).
type Feed interface {
	Prices(ctx context.Context, ids []string) (map[string]decimal.Decimal, error)
}

// NewFromConfig returns the configured feed. The CoinGecko feed does no I/O
// until the first Prices call.
func NewFromConfig(cfg config.PricesCfg) (Feed, error) {
	switch cfg.Provider {
	case "", "coingecko":
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		var apiKey string
		if cfg.ApiKeyEnv != "" {
			apiKey = os.Getenv(cfg.ApiKeyEnv)
		}
		return NewCoinGecko(cfg.BaseURL, apiKey, constant.USD, timeout), nil
	case "static":
		return NewStaticFromStrings(cfg.Static)
	default:
		return nil, fmt.Errorf("unknown price provider %q", cfg.Provider)
	}
}
