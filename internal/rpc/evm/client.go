package evm

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/fystack/multichain-wallet/internal/rpc"
	"github.com/fystack/multichain-wallet/pkg/common/logger"
	"github.com/fystack/multichain-wallet/pkg/common/types"
	"github.com/fystack/multichain-wallet/pkg/common/utils"
	"github.com/fystack/multichain-wallet/pkg/ratelimiter"
)

type Client struct {
	*rpc.BaseClient
	chainID *big.Int
}

// NewEthereumClient does no network I/O; chainID is used for EIP-155 signing.
func NewEthereumClient(
	url string,
	chainID int64,
	auth *rpc.AuthConfig,
	timeout time.Duration,
	rateLimiter *ratelimiter.PooledRateLimiter,
) *Client {
	return &Client{
		BaseClient: rpc.NewBaseClient(
			url,
			rpc.NetworkEVM,
			rpc.ClientTypeRPC,
			auth,
			timeout,
			rateLimiter,
		),
		chainID: big.NewInt(chainID),
	}
}

func (c *Client) GetBalanceWei(ctx context.Context, address string) (*big.Int, error) {
	return c.callBigInt(ctx, "eth_getBalance", []any{address, "latest"})
}

func (c *Client) GetGasPrice(ctx context.Context) (*big.Int, error) {
	return c.callBigInt(ctx, "eth_gasPrice", nil)
}

func (c *Client) EstimateGasLimit(ctx context.Context, from, to string, value *big.Int) (uint64, error) {
	msg := callMsg{From: from, To: to, Value: hexutil.EncodeBig(value)}
	return c.callUint64(ctx, "eth_estimateGas", []any{msg})
}

// GetTransactionCount returns the pending nonce of address.
func (c *Client) GetTransactionCount(ctx context.Context, address string) (uint64, error) {
	return c.callUint64(ctx, "eth_getTransactionCount", []any{address, "pending"})
}

func (c *Client) SendRawTransaction(ctx context.Context, rawTx string) (string, error) {
	resp, err := c.CallRPC(ctx, "eth_sendRawTransaction", []any{rawTx})
	if err != nil {
		return "", err
	}
	var hash string
	if err := json.Unmarshal(resp.Result, &hash); err != nil {
		return "", fmt.Errorf("%w: decode tx hash: %w", types.ErrNetwork, err)
	}
	return hash, nil
}

// GetTransactionReceipt returns nil without error when the node has no receipt.
func (c *Client) GetTransactionReceipt(ctx context.Context, hash string) (*TxnReceipt, error) {
	resp, err := c.CallRPC(ctx, "eth_getTransactionReceipt", []any{hash})
	if err != nil {
		return nil, err
	}
	if resp.IsNull() {
		return nil, nil
	}
	var receipt TxnReceipt
	if err := json.Unmarshal(resp.Result, &receipt); err != nil {
		return nil, fmt.Errorf("%w: decode receipt: %w", types.ErrNetwork, err)
	}
	return &receipt, nil
}

func (c *Client) GetTransactionByHash(ctx context.Context, hash string) (*Txn, error) {
	resp, err := c.CallRPC(ctx, "eth_getTransactionByHash", []any{hash})
	if err != nil {
		return nil, err
	}
	if resp.IsNull() {
		return nil, nil
	}
	var tx Txn
	if err := json.Unmarshal(resp.Result, &tx); err != nil {
		return nil, fmt.Errorf("%w: decode transaction: %w", types.ErrNetwork, err)
	}
	return &tx, nil
}

func (c *Client) GetBalance(ctx context.Context, address string) (*big.Int, error) {
	return c.GetBalanceWei(ctx, address)
}

func (c *Client) GasPrice(ctx context.Context) (*big.Int, error) {
	return c.GetGasPrice(ctx)
}

func (c *Client) EstimateGas(ctx context.Context, from, to string, value *big.Int) (uint64, error) {
	return c.EstimateGasLimit(ctx, from, to, value)
}

// SendTransaction signs a legacy EIP-155 value transfer locally and submits it.
func (c *Client) SendTransaction(ctx context.Context, req rpc.SendRequest) (string, error) {
	priv, err := privateKeyFromBytes(req.Key)
	if err != nil {
		return "", err
	}
	if !sameAddress(addressOf(priv), req.From) {
		return "", fmt.Errorf("%w: key does not control %s", types.ErrSigning, req.From)
	}

	nonce, err := c.GetTransactionCount(ctx, req.From)
	if err != nil {
		return "", err
	}
	gasPrice := req.GasPrice
	if gasPrice == nil {
		if gasPrice, err = c.GetGasPrice(ctx); err != nil {
			return "", err
		}
	}
	gasLimit := req.GasLimit
	if gasLimit == 0 {
		if gasLimit, err = c.EstimateGasLimit(ctx, req.From, req.To, req.Value); err != nil {
			return "", err
		}
	}

	raw, localHash, err := signTransfer(transfer{
		nonce:    nonce,
		to:       req.To,
		value:    req.Value,
		gasLimit: gasLimit,
		gasPrice: gasPrice,
		chainID:  c.chainID,
	}, priv)
	if err != nil {
		return "", err
	}

	hash, err := c.SendRawTransaction(ctx, raw)
	if err != nil {
		return "", err
	}
	if hash == "" {
		hash = localHash
	}
	logger.Debug("Broadcast EVM transaction", "chain_id", c.chainID, "hash", hash, "nonce", nonce)
	return hash, nil
}

// TransactionStatus maps the receipt to a chain-neutral status. A transaction
// the node knows but has not mined is pending; one it has never seen is unknown.
func (c *Client) TransactionStatus(ctx context.Context, hash string) (rpc.Receipt, error) {
	out := rpc.Receipt{Hash: hash}

	receipt, err := c.GetTransactionReceipt(ctx, hash)
	if err != nil {
		return out, err
	}
	if receipt == nil {
		tx, err := c.GetTransactionByHash(ctx, hash)
		if err != nil {
			return out, err
		}
		if tx == nil {
			out.Status = rpc.ReceiptUnknown
		} else {
			out.Status = rpc.ReceiptPending
		}
		return out, nil
	}

	switch receipt.Status {
	case receiptStatusSuccess:
		out.Status = rpc.ReceiptConfirmed
	case receiptStatusFailure:
		out.Status = rpc.ReceiptFailed
	default:
		return out, fmt.Errorf("%w: unexpected receipt status %q", types.ErrNetwork, receipt.Status)
	}

	if out.BlockNumber, err = utils.ParseHexUint64(receipt.BlockNumber); err != nil {
		return out, fmt.Errorf("%w: block number: %w", types.ErrNetwork, err)
	}
	if out.GasUsed, err = utils.ParseHexUint64(receipt.GasUsed); err != nil {
		return out, fmt.Errorf("%w: gas used: %w", types.ErrNetwork, err)
	}
	if receipt.EffectiveGasPrice != "" {
		if out.EffectiveGasPrice, err = utils.ParseHexBigInt(receipt.EffectiveGasPrice); err != nil {
			return out, fmt.Errorf("%w: gas price: %w", types.ErrNetwork, err)
		}
	}
	return out, nil
}

func (c *Client) ValidateAddress(address string) bool {
	return IsValidAddress(address)
}

func (c *Client) callBigInt(ctx context.Context, method string, params any) (*big.Int, error) {
	resp, err := c.CallRPC(ctx, method, params)
	if err != nil {
		return nil, err
	}
	var hex string
	if err := json.Unmarshal(resp.Result, &hex); err != nil {
		return nil, fmt.Errorf("%w: %s: decode result: %w", types.ErrNetwork, method, err)
	}
	v, err := utils.ParseHexBigInt(hex)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", types.ErrNetwork, method, err)
	}
	return v, nil
}

func (c *Client) callUint64(ctx context.Context, method string, params any) (uint64, error) {
	v, err := c.callBigInt(ctx, method, params)
	if err != nil {
		return 0, err
	}
	if !v.IsUint64() {
		return 0, fmt.Errorf("%w: %s: value overflows uint64", types.ErrNetwork, method)
	}
	return v.Uint64(), nil
}
