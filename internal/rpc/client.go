package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/fystack/multichain-wallet/pkg/common/logger"
	"github.com/fystack/multichain-wallet/pkg/common/types"
	"github.com/fystack/multichain-wallet/pkg/ratelimiter"
)

type NetworkClient interface {
	CallRPC(ctx context.Context, method string, params any) (*RPCResponse, error)
	Do(ctx context.Context, method, endpoint string, body any, params map[string]string) ([]byte, error)
	GetNetworkType() string
	GetClientType() string
	GetURL() string
	Close() error
}

// BaseClient speaks JSON-RPC or plain REST to a single endpoint. Every
// transport failure, timeout and non-2xx status is reported as types.ErrNetwork;
// node error payloads come back as *RPCError. Nothing is retried here.
type BaseClient struct {
	httpClient  *http.Client
	baseURL     string
	auth        *AuthConfig
	network     string
	clientType  string
	rateLimiter *ratelimiter.PooledRateLimiter

	rpcID int64
	mutex sync.Mutex
}

var _ NetworkClient = (*BaseClient)(nil)

func NewBaseClient(
	baseURL, network, clientType string,
	auth *AuthConfig,
	timeout time.Duration,
	rateLimiter *ratelimiter.PooledRateLimiter,
) *BaseClient {
	return &BaseClient{
		httpClient:  &http.Client{Timeout: timeout},
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		auth:        auth,
		network:     network,
		clientType:  clientType,
		rateLimiter: rateLimiter,
		rpcID:       1,
	}
}

func (c *BaseClient) CallRPC(ctx context.Context, method string, params any) (*RPCResponse, error) {
	if c.clientType != ClientTypeRPC {
		return nil, fmt.Errorf("client is %s, not RPC", c.clientType)
	}
	c.mutex.Lock()
	reqID := c.rpcID
	c.rpcID++
	c.mutex.Unlock()

	req := &RPCRequest{ID: reqID, JSONRPC: "2.0", Method: method, Params: params}
	raw, err := c.Do(ctx, http.MethodPost, "", req, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}

	var rpcResp RPCResponse
	if err := json.Unmarshal(raw, &rpcResp); err != nil {
		return nil, fmt.Errorf("%w: %s: unmarshal response: %w", types.ErrNetwork, method, err)
	}
	if rpcResp.Error != nil {
		return &rpcResp, fmt.Errorf("%s: %w", method, rpcResp.Error)
	}
	return &rpcResp, nil
}

func (c *BaseClient) Do(ctx context.Context, method, endpoint string, body any, params map[string]string) ([]byte, error) {
	if c.rateLimiter != nil {
		if err := c.rateLimiter.Wait(ctx, c.baseURL); err != nil {
			return nil, fmt.Errorf("%w: rate limit: %w", types.ErrNetwork, err)
		}
	}

	target := c.baseURL + endpoint
	if len(params) > 0 {
		q := url.Values{}
		for k, v := range params {
			q.Set(k, v)
		}
		target += "?" + q.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reqBody = bytes.NewBuffer(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reqBody)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	c.setAuthHeaders(req)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %w", types.ErrNetwork, method, c.redactedURL(), err)
	}
	defer resp.Body.Close()

	logger.Debug("HTTP request completed", "url", c.redactedURL(), "status", resp.StatusCode, "elapsed", time.Since(start))

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %w", types.ErrNetwork, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return data, fmt.Errorf("%w: HTTP %d from %s", types.ErrNetwork, resp.StatusCode, c.redactedURL())
	}
	return data, nil
}

func (c *BaseClient) setAuthHeaders(req *http.Request) {
	if c.auth == nil {
		return
	}
	switch c.auth.Type {
	case AuthTypeBearer:
		req.Header.Set("Authorization", "Bearer "+c.auth.Token)
	case AuthTypeAPIKey:
		req.Header.Set("X-API-Key", c.auth.Token)
	case AuthTypeBasic:
		req.SetBasicAuth(c.auth.Username, c.auth.Password)
	case AuthTypeCustom:
		for k, v := range c.auth.Headers {
			req.Header.Set(k, v)
		}
	}
}

// redactedURL strips the path so keys embedded in provider URLs stay out of
// logs and errors.
func (c *BaseClient) redactedURL() string {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "<invalid url>"
	}
	return u.Scheme + "://" + u.Host
}

func (c *BaseClient) GetNetworkType() string { return c.network }
func (c *BaseClient) GetClientType() string  { return c.clientType }
func (c *BaseClient) GetURL() string         { return c.baseURL }

func (c *BaseClient) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
