package price

import (
	"context"
	"fmt"
	"maps"

	"github.com/shopspring/decimal"
)

// Static serves fixed prices. Used offline and with demo data.
type Static struct {
	prices map[string]decimal.Decimal
}

var _ Feed = (*Static)(nil)

func NewStatic(prices map[string]decimal.Decimal) *Static {
	return &Static{prices: maps.Clone(prices)}
}

func NewStaticFromStrings(prices map[string]string) (*Static, error) {
	out := make(map[string]decimal.Decimal, len(prices))
	for id, s := range prices {
		d, err := decimal.NewFromString(s)
		if err != nil {
			return nil, fmt.Errorf("price for %s: %w", id, err)
		}
		if d.IsNegative() {
			return nil, fmt.Errorf("price for %s is negative", id)
		}
		out[id] = d
	}
	return &Static{prices: out}, nil
}

func (s *Static) Prices(_ context.Context, ids []string) (map[string]decimal.Decimal, error) {
	out := make(map[string]decimal.Decimal, len(ids))
	for _, id := range ids {
		if p, ok := s.prices[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}
