package rpc

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fystack/multichain-wallet/pkg/common/types"
)

const (
	NetworkEVM    = "evm"
	NetworkSolana = "solana"
	NetworkREST   = "rest"
)

// Client types - communication protocols used by providers
const (
	ClientTypeRPC  = "rpc"
	ClientTypeREST = "rest"
)

// RPCRequest represents a JSON-RPC request
type RPCRequest struct {
	ID      any    `json:"id"`
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// RPCResponse represents a JSON-RPC response
type RPCResponse struct {
	ID      any             `json:"id"`
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// IsNull reports whether the node answered with a null result.
func (r *RPCResponse) IsNull() bool {
	return len(r.Result) == 0 || string(r.Result) == "null"
}

// RPCError is the error payload returned by a node.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

func (e *RPCError) Is(target error) bool {
	return target == types.ErrRPC
}

// AsRPCError extracts the node error payload from err, if any.
func AsRPCError(err error) (*RPCError, bool) {
	var rpcErr *RPCError
	if errors.As(err, &rpcErr) {
		return rpcErr, true
	}
	return nil, false
}
