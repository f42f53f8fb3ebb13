package utils

import (
	"errors"
	"math/big"
	"testing"

	"github.com/fystack/multichain-wallet/pkg/common/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHex(t *testing.T) {
	n, err := ParseHexUint64("0x5208")
	require.NoError(t, err)
	assert.Equal(t, uint64(21000), n)

	_, err = ParseHexUint64("")
	assert.Error(t, err)

	bi, err := ParseHexBigInt("0x22b1c8c1227a0000")
	require.NoError(t, err)
	assert.Equal(t, "2500000000000000000", bi.String())

	_, err = ParseHexBigInt("0xzz")
	assert.Error(t, err)
}

func TestFromBaseUnits(t *testing.T) {
	wei, _ := new(big.Int).SetString("2500000000000000000", 10)
	assert.True(t, FromBaseUnits(wei, 18).Equal(decimal.RequireFromString("2.5")))
	assert.True(t, FromBaseUnits(big.NewInt(1_500_000_000), 9).Equal(decimal.RequireFromString("1.5")))
	assert.True(t, FromBaseUnits(nil, 18).IsZero())
}

func TestToBaseUnits(t *testing.T) {
	tests := []struct {
		name    string
		amount  string
		dec     int32
		want    string
		wantErr bool
	}{
		{name: "whole ether", amount: "1", dec: 18, want: "1000000000000000000"},
		{name: "fractional", amount: "0.000000001", dec: 9, want: "1"},
		{name: "too precise", amount: "0.0000000001", dec: 9, wantErr: true},
		{name: "zero", amount: "0", dec: 18, wantErr: true},
		{name: "negative", amount: "-1", dec: 18, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToBaseUnits(decimal.RequireFromString(tt.amount), tt.dec)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, types.ErrInvalidAmount))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestFee(t *testing.T) {
	fee := Fee(big.NewInt(20_000_000_000), 21000, 18)
	assert.True(t, fee.Equal(decimal.RequireFromString("0.00042")))
}
