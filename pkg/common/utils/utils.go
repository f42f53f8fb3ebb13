package utils

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/fystack/multichain-wallet/pkg/common/types"
	"github.com/shopspring/decimal"
)

func ParseHexUint64(h string) (uint64, error) {
	h = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(h)), "0x")
	if h == "" {
		return 0, fmt.Errorf("empty hex")
	}
	return strconv.ParseUint(h, 16, 64)
}

func ParseHexBigInt(h string) (*big.Int, error) {
	h = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(h)), "0x")
	if h == "" {
		return big.NewInt(0), nil
	}
	bi := new(big.Int)
	if _, ok := bi.SetString(h, 16); !ok {
		return nil, fmt.Errorf("invalid hex: %s", h)
	}
	return bi, nil
}

// FromBaseUnits scales an integer base-unit amount (wei, lamports) to the
// human-readable asset quantity.
func FromBaseUnits(v *big.Int, decimals int32) decimal.Decimal {
	if v == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(v, -decimals)
}

// ToBaseUnits converts a positive quantity to base units. Quantities finer than
// the asset precision are rejected rather than rounded.
func ToBaseUnits(amount decimal.Decimal, decimals int32) (*big.Int, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: %s must be positive", types.ErrInvalidAmount, amount)
	}
	shifted := amount.Shift(decimals)
	if !shifted.Equal(shifted.Truncate(0)) {
		return nil, fmt.Errorf("%w: %s exceeds %d decimal places", types.ErrInvalidAmount, amount, decimals)
	}
	return shifted.BigInt(), nil
}

// Fee returns price*units expressed in the native asset.
func Fee(price *big.Int, units uint64, decimals int32) decimal.Decimal {
	if price == nil {
		return decimal.Zero
	}
	total := new(big.Int).Mul(price, new(big.Int).SetUint64(units))
	return FromBaseUnits(total, decimals)
}
