package price

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/fystack/multichain-wallet/internal/rpc"
	"github.com/fystack/multichain-wallet/pkg/common/types"
	"github.com/fystack/multichain-wallet/pkg/ratelimiter"
	"github.com/shopspring/decimal"
)

const (
	DefaultCoinGeckoURL = "https://api.coingecko.com"
	simplePricePath     = "/api/v3/simple/price"
	demoKeyHeader       = "x-cg-demo-api-key"
)

// CoinGecko reads spot prices from the public simple/price endpoint.
type CoinGecko struct {
	client   *rpc.BaseClient
	currency string
}

var _ Feed = (*CoinGecko)(nil)

func NewCoinGecko(baseURL, apiKey, currency string, timeout time.Duration) *CoinGecko {
	if baseURL == "" {
		baseURL = DefaultCoinGeckoURL
	}
	var auth *rpc.AuthConfig
	if apiKey != "" {
		auth = &rpc.AuthConfig{Type: rpc.AuthTypeCustom, Headers: map[string]string{demoKeyHeader: apiKey}}
	}
	rl := ratelimiter.NewPooledRateLimiter(1, 5)
	return &CoinGecko{
		client:   rpc.NewBaseClient(baseURL, rpc.NetworkREST, rpc.ClientTypeREST, auth, timeout, rl),
		currency: strings.ToLower(currency),
	}
}

// Prices returns the quote for every id CoinGecko knows. Unknown ids are
// absent from the result rather than zero.
func (c *CoinGecko) Prices(ctx context.Context, ids []string) (map[string]decimal.Decimal, error) {
	unique := slices.Compact(slices.Sorted(slices.Values(ids)))
	if len(unique) == 0 {
		return map[string]decimal.Decimal{}, nil
	}

	raw, err := c.client.Do(ctx, http.MethodGet, simplePricePath, nil, map[string]string{
		"ids":           strings.Join(unique, ","),
		"vs_currencies": c.currency,
	})
	if err != nil {
		return nil, fmt.Errorf("coingecko simple price: %w", err)
	}

	var body map[string]map[string]decimal.Decimal
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, fmt.Errorf("%w: decode coingecko response: %w", types.ErrNetwork, err)
	}

	out := make(map[string]decimal.Decimal, len(body))
	for id, quotes := range body {
		if p, ok := quotes[c.currency]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (c *CoinGecko) Close() error {
	return c.client.Close()
}
