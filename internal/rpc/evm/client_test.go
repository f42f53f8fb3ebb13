package evm

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/fystack/multichain-wallet/internal/rpc"
	"github.com/fystack/multichain-wallet/pkg/common/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tyler-smith/go-bip39"
)

type handlerFunc func(params []json.RawMessage) (any, *rpc.RPCError)

// fakeNode answers JSON-RPC calls from a method table and records call order.
type fakeNode struct {
	mu       sync.Mutex
	handlers map[string]handlerFunc
	calls    []string
}

func newFakeNode(t *testing.T, handlers map[string]handlerFunc) (*fakeNode, *httptest.Server) {
	t.Helper()
	node := &fakeNode{handlers: handlers}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     any               `json:"id"`
			Method string            `json:"method"`
			Params []json.RawMessage `json:"params"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		node.mu.Lock()
		node.calls = append(node.calls, req.Method)
		h, ok := node.handlers[req.Method]
		node.mu.Unlock()

		resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
		if !ok {
			resp["error"] = rpc.RPCError{Code: -32601, Message: "method not found"}
		} else if result, rpcErr := h(req.Params); rpcErr != nil {
			resp["error"] = rpcErr
		} else {
			resp["result"] = result
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(server.Close)
	return node, server
}

func (n *fakeNode) Calls() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.calls...)
}

func newTestClient(url string) *Client {
	return NewEthereumClient(url, 11155111, nil, 2*time.Second, nil)
}

func TestGetBalance(t *testing.T) {
	_, server := newFakeNode(t, map[string]handlerFunc{
		"eth_getBalance": func(params []json.RawMessage) (any, *rpc.RPCError) {
			var addr string
			json.Unmarshal(params[0], &addr)
			assert.Equal(t, "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", addr)
			return "0x22b1c8c1227a0000", nil
		},
	})

	bal, err := newTestClient(server.URL).GetBalance(context.Background(), "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed")
	require.NoError(t, err)
	want, _ := new(big.Int).SetString("2500000000000000000", 10)
	assert.Equal(t, 0, want.Cmp(bal))
}

func TestGasPriceAndEstimate(t *testing.T) {
	_, server := newFakeNode(t, map[string]handlerFunc{
		"eth_gasPrice":    func([]json.RawMessage) (any, *rpc.RPCError) { return "0x4a817c800", nil },
		"eth_estimateGas": func([]json.RawMessage) (any, *rpc.RPCError) { return "0x5208", nil },
	})
	client := newTestClient(server.URL)

	price, err := client.GasPrice(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(20_000_000_000), price.Int64())

	gas, err := client.EstimateGas(context.Background(), "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed", "0xfb6916095ca1df60bb79ce92ce3ea74c37c5d359", big.NewInt(1))
	require.NoError(t, err)
	assert.Equal(t, uint64(21000), gas)
}

func TestSendTransaction_SignsEIP155(t *testing.T) {
	client := newTestClient("")
	kp, err := client.CreateKeypair()
	require.NoError(t, err)
	to := "0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359"

	var submitted *ethtypes.Transaction
	node, server := newFakeNode(t, map[string]handlerFunc{
		"eth_getTransactionCount": func(params []json.RawMessage) (any, *rpc.RPCError) {
			var tag string
			json.Unmarshal(params[1], &tag)
			assert.Equal(t, "pending", tag)
			return "0x7", nil
		},
		"eth_sendRawTransaction": func(params []json.RawMessage) (any, *rpc.RPCError) {
			var raw string
			json.Unmarshal(params[0], &raw)
			b, err := hexutil.Decode(raw)
			assert.NoError(t, err)
			submitted = new(ethtypes.Transaction)
			assert.NoError(t, submitted.UnmarshalBinary(b))
			return submitted.Hash().Hex(), nil
		},
	})
	client = newTestClient(server.URL)

	hash, err := client.SendTransaction(context.Background(), rpc.SendRequest{
		From:     kp.Address,
		To:       to,
		Value:    big.NewInt(1_000_000),
		GasPrice: big.NewInt(20_000_000_000),
		GasLimit: 21000,
		Key:      kp.PrivateKey,
	})
	require.NoError(t, err)
	require.NotNil(t, submitted)

	assert.Equal(t, submitted.Hash().Hex(), hash)
	assert.Equal(t, uint64(7), submitted.Nonce())
	assert.Equal(t, to, submitted.To().Hex())
	assert.Equal(t, int64(1_000_000), submitted.Value().Int64())
	assert.Equal(t, uint64(21000), submitted.Gas())

	sender, err := ethtypes.Sender(ethtypes.NewEIP155Signer(big.NewInt(11155111)), submitted)
	require.NoError(t, err)
	assert.Equal(t, kp.Address, sender.Hex())
	assert.Equal(t, []string{"eth_getTransactionCount", "eth_sendRawTransaction"}, node.Calls())
}

func TestSendTransaction_RejectsForeignKey(t *testing.T) {
	node, server := newFakeNode(t, map[string]handlerFunc{})
	client := newTestClient(server.URL)

	kp, err := client.CreateKeypair()
	require.NoError(t, err)

	_, err = client.SendTransaction(context.Background(), rpc.SendRequest{
		From:  "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
		To:    "0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359",
		Value: big.NewInt(1),
		Key:   kp.PrivateKey,
	})
	assert.ErrorIs(t, err, types.ErrSigning)
	assert.Empty(t, node.Calls())
}

func TestSendTransaction_NodeRejects(t *testing.T) {
	kp, err := newTestClient("").CreateKeypair()
	require.NoError(t, err)

	_, server := newFakeNode(t, map[string]handlerFunc{
		"eth_getTransactionCount": func([]json.RawMessage) (any, *rpc.RPCError) { return "0x0", nil },
		"eth_sendRawTransaction": func([]json.RawMessage) (any, *rpc.RPCError) {
			return nil, &rpc.RPCError{Code: -32000, Message: "insufficient funds for gas * price + value"}
		},
	})

	_, err = newTestClient(server.URL).SendTransaction(context.Background(), rpc.SendRequest{
		From:     kp.Address,
		To:       "0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359",
		Value:    big.NewInt(1),
		GasPrice: big.NewInt(1),
		GasLimit: 21000,
		Key:      kp.PrivateKey,
	})
	assert.ErrorIs(t, err, types.ErrRPC)
}

func TestTransactionStatus(t *testing.T) {
	tests := []struct {
		name      string
		receipt   any
		tx        any
		want      rpc.ReceiptStatus
		wantGas   uint64
		wantBlock uint64
	}{
		{
			name: "confirmed",
			receipt: TxnReceipt{
				TransactionHash:   "0xabc",
				BlockNumber:       "0x10",
				GasUsed:           "0x5208",
				EffectiveGasPrice: "0x4a817c800",
				Status:            "0x1",
			},
			want:      rpc.ReceiptConfirmed,
			wantGas:   21000,
			wantBlock: 16,
		},
		{
			name: "reverted",
			receipt: TxnReceipt{
				TransactionHash:   "0xabc",
				BlockNumber:       "0x11",
				GasUsed:           "0x5208",
				EffectiveGasPrice: "0x1",
				Status:            "0x0",
			},
			want:      rpc.ReceiptFailed,
			wantGas:   21000,
			wantBlock: 17,
		},
		{
			name: "in mempool",
			tx:   Txn{Hash: "0xabc", Nonce: "0x1"},
			want: rpc.ReceiptPending,
		},
		{
			name: "never seen",
			want: rpc.ReceiptUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, server := newFakeNode(t, map[string]handlerFunc{
				"eth_getTransactionReceipt": func([]json.RawMessage) (any, *rpc.RPCError) { return tt.receipt, nil },
				"eth_getTransactionByHash":  func([]json.RawMessage) (any, *rpc.RPCError) { return tt.tx, nil },
			})

			receipt, err := newTestClient(server.URL).TransactionStatus(context.Background(), "0xabc")
			require.NoError(t, err)
			assert.Equal(t, tt.want, receipt.Status)
			assert.Equal(t, tt.wantGas, receipt.GasUsed)
			assert.Equal(t, tt.wantBlock, receipt.BlockNumber)
		})
	}
}

func TestKeypairFromSeed_BIP44Vector(t *testing.T) {
	mnemonic := "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"
	seed, err := bip39.NewSeedWithErrorChecking(mnemonic, "")
	require.NoError(t, err)

	client := newTestClient("")
	kp, err := client.KeypairFromSeed(seed, 0)
	require.NoError(t, err)
	assert.Equal(t, "0x9858EfFD232B4033E47d90003D41EC34EcaEda94", kp.Address)
	assert.Len(t, kp.PrivateKey, 32)

	again, err := client.KeypairFromSeed(seed, 0)
	require.NoError(t, err)
	assert.Equal(t, kp.Address, again.Address)

	next, err := client.KeypairFromSeed(seed, 1)
	require.NoError(t, err)
	assert.NotEqual(t, kp.Address, next.Address)
}

func TestCreateKeypair_UniqueAndRederivable(t *testing.T) {
	client := newTestClient("")
	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		kp, err := client.CreateKeypair()
		require.NoError(t, err)
		assert.False(t, seen[kp.Address], "duplicate address %s", kp.Address)
		seen[kp.Address] = true

		addr, err := client.AddressFromKey(kp.PrivateKey)
		require.NoError(t, err)
		assert.Equal(t, kp.Address, addr)
		assert.True(t, client.ValidateAddress(kp.Address))
	}
}

func TestAddressFromKey_Invalid(t *testing.T) {
	_, err := newTestClient("").AddressFromKey([]byte{1, 2, 3})
	assert.ErrorIs(t, err, types.ErrSigning)
}
