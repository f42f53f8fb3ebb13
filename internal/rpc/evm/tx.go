package evm

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/fystack/multichain-wallet/pkg/common/types"
)

type transfer struct {
	nonce    uint64
	to       string
	value    *big.Int
	gasLimit uint64
	gasPrice *big.Int
	chainID  *big.Int
}

// signTransfer returns the RLP-encoded signed transaction as 0x-hex and its hash.
func signTransfer(t transfer, key *ecdsa.PrivateKey) (string, string, error) {
	if !IsValidAddress(t.to) {
		return "", "", fmt.Errorf("%w: %q", types.ErrInvalidAddress, t.to)
	}
	to := common.HexToAddress(t.to)
	tx := ethtypes.NewTx(&ethtypes.LegacyTx{
		Nonce:    t.nonce,
		To:       &to,
		Value:    t.value,
		Gas:      t.gasLimit,
		GasPrice: t.gasPrice,
	})

	signed, err := ethtypes.SignTx(tx, ethtypes.NewEIP155Signer(t.chainID), key)
	if err != nil {
		return "", "", fmt.Errorf("%w: %w", types.ErrSigning, err)
	}
	raw, err := signed.MarshalBinary()
	if err != nil {
		return "", "", fmt.Errorf("%w: encode: %w", types.ErrSigning, err)
	}
	return hexutil.Encode(raw), signed.Hash().Hex(), nil
}
