package solana

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"github.com/fystack/multichain-wallet/internal/rpc"
	"github.com/fystack/multichain-wallet/pkg/common/logger"
	"github.com/fystack/multichain-wallet/pkg/common/types"
	"github.com/fystack/multichain-wallet/pkg/ratelimiter"
	"github.com/mr-tron/base58"
)

type Client struct {
	*rpc.BaseClient
}

func NewSolanaClient(
	baseURL string,
	auth *rpc.AuthConfig,
	timeout time.Duration,
	rl *ratelimiter.PooledRateLimiter,
) *Client {
	return &Client{
		BaseClient: rpc.NewBaseClient(baseURL, rpc.NetworkSolana, rpc.ClientTypeRPC, auth, timeout, rl),
	}
}

func (c *Client) GetBalanceLamports(ctx context.Context, address string) (uint64, error) {
	var res GetBalanceResult
	if err := c.call(ctx, "getBalance", []any{address, commitmentConfig{Commitment: commitmentConfirmed}}, &res); err != nil {
		return 0, err
	}
	return res.Value, nil
}

func (c *Client) GetLatestBlockhash(ctx context.Context) (LatestBlockhash, error) {
	var res GetLatestBlockhashResult
	if err := c.call(ctx, "getLatestBlockhash", []any{commitmentConfig{Commitment: commitmentFinalized}}, &res); err != nil {
		return LatestBlockhash{}, err
	}
	return res.Value, nil
}

// GetFeeForMessage returns the fee in lamports the cluster would charge for message.
func (c *Client) GetFeeForMessage(ctx context.Context, message []byte) (uint64, error) {
	var res GetFeeForMessageResult
	encoded := base64.StdEncoding.EncodeToString(message)
	if err := c.call(ctx, "getFeeForMessage", []any{encoded, commitmentConfig{Commitment: commitmentConfirmed}}, &res); err != nil {
		return 0, err
	}
	if res.Value == nil {
		return 0, fmt.Errorf("%w: getFeeForMessage: blockhash expired", types.ErrNetwork)
	}
	return *res.Value, nil
}

func (c *Client) SendRawTransaction(ctx context.Context, tx []byte) (string, error) {
	var sig string
	params := []any{
		base64.StdEncoding.EncodeToString(tx),
		sendConfig{Encoding: "base64", PreflightCommitment: commitmentConfirmed},
	}
	if err := c.call(ctx, "sendTransaction", params, &sig); err != nil {
		return "", err
	}
	return sig, nil
}

// GetSignatureStatus returns nil without error when the cluster has no record
// of signature.
func (c *Client) GetSignatureStatus(ctx context.Context, signature string) (*SignatureStatus, error) {
	var res GetSignatureStatusesResult
	params := []any{[]string{signature}, statusConfig{SearchTransactionHistory: true}}
	if err := c.call(ctx, "getSignatureStatuses", params, &res); err != nil {
		return nil, err
	}
	if len(res.Value) == 0 {
		return nil, nil
	}
	return res.Value[0], nil
}

func (c *Client) GetBalance(ctx context.Context, address string) (*big.Int, error) {
	lamports, err := c.GetBalanceLamports(ctx, address)
	if err != nil {
		return nil, err
	}
	return new(big.Int).SetUint64(lamports), nil
}

// GasPrice is the fee per signature, priced by the cluster against a
// template transfer under the latest blockhash.
func (c *Client) GasPrice(ctx context.Context) (*big.Int, error) {
	bh, err := c.GetLatestBlockhash(ctx)
	if err != nil {
		return nil, err
	}
	blockhash, err := decodePubkey(bh.Blockhash)
	if err != nil {
		return nil, fmt.Errorf("%w: blockhash: %w", types.ErrNetwork, err)
	}
	var payer, dest [pubkeySize]byte
	payer[0], dest[0] = 1, 2
	fee, err := c.GetFeeForMessage(ctx, transferMessage(payer, dest, 1, blockhash))
	if err != nil {
		return nil, err
	}
	return new(big.Int).SetUint64(fee), nil
}

// EstimateGas reports the number of signatures a transfer needs.
func (c *Client) EstimateGas(ctx context.Context, from, to string, value *big.Int) (uint64, error) {
	return 1, nil
}

func (c *Client) SendTransaction(ctx context.Context, req rpc.SendRequest) (string, error) {
	priv, err := privateKeyFromBytes(req.Key)
	if err != nil {
		return "", err
	}
	from, err := decodePubkey(req.From)
	if err != nil {
		return "", fmt.Errorf("%w: %q", types.ErrInvalidAddress, req.From)
	}
	to, err := decodePubkey(req.To)
	if err != nil {
		return "", fmt.Errorf("%w: %q", types.ErrInvalidAddress, req.To)
	}
	if !ed25519.PublicKey(from[:]).Equal(priv.Public()) {
		return "", fmt.Errorf("%w: key does not control %s", types.ErrSigning, req.From)
	}
	if req.Value == nil || !req.Value.IsUint64() {
		return "", fmt.Errorf("%w: lamports out of range", types.ErrInvalidAmount)
	}

	bh, err := c.GetLatestBlockhash(ctx)
	if err != nil {
		return "", err
	}
	blockhash, err := decodePubkey(bh.Blockhash)
	if err != nil {
		return "", fmt.Errorf("%w: blockhash: %w", types.ErrNetwork, err)
	}

	msg := transferMessage(from, to, req.Value.Uint64(), blockhash)
	sig := ed25519.Sign(priv, msg)

	signature, err := c.SendRawTransaction(ctx, wireTransaction(msg, sig))
	if err != nil {
		return "", err
	}
	if signature == "" {
		signature = base58.Encode(sig)
	}
	logger.Debug("Broadcast Solana transaction", "signature", signature)
	return signature, nil
}

func (c *Client) TransactionStatus(ctx context.Context, hash string) (rpc.Receipt, error) {
	out := rpc.Receipt{Hash: hash}
	status, err := c.GetSignatureStatus(ctx, hash)
	if err != nil {
		return out, err
	}
	if status == nil {
		out.Status = rpc.ReceiptUnknown
		return out, nil
	}

	out.BlockNumber = status.Slot
	switch {
	case status.Err != nil:
		out.Status = rpc.ReceiptFailed
	case status.ConfirmationStatus == commitmentConfirmed || status.ConfirmationStatus == commitmentFinalized:
		out.Status = rpc.ReceiptConfirmed
	default:
		out.Status = rpc.ReceiptPending
		out.BlockNumber = 0
		return out, nil
	}
	out.GasUsed = 1
	return out, nil
}

func (c *Client) call(ctx context.Context, method string, params any, out any) error {
	resp, err := c.CallRPC(ctx, method, params)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(resp.Result, out); err != nil {
		return fmt.Errorf("%w: %s: decode result: %w", types.ErrNetwork, method, err)
	}
	return nil
}
