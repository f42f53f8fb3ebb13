package pool

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/fystack/multichain-wallet/internal/chains"
	"github.com/fystack/multichain-wallet/internal/rpc"
	"github.com/fystack/multichain-wallet/internal/rpc/evm"
	"github.com/fystack/multichain-wallet/internal/rpc/solana"
	"github.com/fystack/multichain-wallet/pkg/common/enum"
	"github.com/fystack/multichain-wallet/pkg/common/logger"
	"github.com/fystack/multichain-wallet/pkg/common/types"
	"github.com/fystack/multichain-wallet/pkg/common/utils"
	"github.com/fystack/multichain-wallet/pkg/ratelimiter"
	"github.com/shopspring/decimal"
)

// Factory builds the client for one chain. It must not do network I/O.
type Factory func(d chains.ChainDescriptor, testnet bool) (rpc.ChainClient, error)

// DefaultFactory builds JSON-RPC clients from the descriptor's network,
// auth and throttle settings.
func DefaultFactory(d chains.ChainDescriptor, testnet bool) (rpc.ChainClient, error) {
	n := d.Network(testnet)
	auth := rpc.NodeAuth(d.Headers, d.APIKey, d.KeyInURL)
	rl := ratelimiter.NewPooledRateLimiter(d.Client.Throttle.RPS, d.Client.Throttle.Burst)

	switch d.Type {
	case enum.ChainTypeEVM:
		return evm.NewEthereumClient(n.RPCURL, n.ChainID, auth, d.Client.Timeout, rl), nil
	case enum.ChainTypeSolana:
		return solana.NewSolanaClient(n.RPCURL, auth, d.Client.Timeout, rl), nil
	default:
		return nil, fmt.Errorf("%w: no client for chain type %q", types.ErrUnsupportedChain, d.Type)
	}
}

type Option func(*Pool)

func WithFactory(f Factory) Option {
	return func(p *Pool) { p.factory = f }
}

// Pool hands out one lazily created client per chain.
type Pool struct {
	registry *chains.Registry
	factory  Factory
	clients  map[enum.Chain]rpc.ChainClient
	mutex    sync.Mutex
}

func New(registry *chains.Registry, opts ...Option) *Pool {
	p := &Pool{
		registry: registry,
		factory:  DefaultFactory,
		clients:  make(map[enum.Chain]rpc.ChainClient),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Client returns the memoised client for chain. The lock is held across
// construction so concurrent first callers share one instance.
func (p *Pool) Client(chain enum.Chain) (rpc.ChainClient, chains.ChainDescriptor, error) {
	d, err := p.registry.Descriptor(chain)
	if err != nil {
		return nil, d, err
	}

	p.mutex.Lock()
	defer p.mutex.Unlock()

	if c, ok := p.clients[chain]; ok {
		return c, d, nil
	}
	c, err := p.factory(d, p.registry.Testnet())
	if err != nil {
		return nil, d, fmt.Errorf("create %s client: %w", chain, err)
	}
	p.clients[chain] = c
	logger.Debug("Created chain client", "chain", chain, "testnet", p.registry.Testnet())
	return c, d, nil
}

// GetBalance returns the native balance of address in whole units.
func (p *Pool) GetBalance(ctx context.Context, address string, chain enum.Chain) (decimal.Decimal, error) {
	c, d, err := p.Client(chain)
	if err != nil {
		return decimal.Zero, err
	}
	if !c.ValidateAddress(address) {
		return decimal.Zero, fmt.Errorf("%w: %q on %s", types.ErrInvalidAddress, address, chain)
	}
	wei, err := c.GetBalance(ctx, address)
	if err != nil {
		return decimal.Zero, err
	}
	return utils.FromBaseUnits(wei, d.Decimals), nil
}

func (p *Pool) GetGasPrice(ctx context.Context, chain enum.Chain) (*big.Int, error) {
	c, _, err := p.Client(chain)
	if err != nil {
		return nil, err
	}
	return c.GasPrice(ctx)
}

func (p *Pool) EstimateGas(ctx context.Context, from, to string, amount decimal.Decimal, chain enum.Chain) (uint64, error) {
	c, d, err := p.Client(chain)
	if err != nil {
		return 0, err
	}
	if err := validatePair(c, from, to, chain); err != nil {
		return 0, err
	}
	value, err := utils.ToBaseUnits(amount, d.Decimals)
	if err != nil {
		return 0, err
	}
	return c.EstimateGas(ctx, from, to, value)
}

// Quote is the fee a transfer would pay at current prices.
type Quote struct {
	GasPrice *big.Int
	GasLimit uint64
	Fee      decimal.Decimal
}

// EstimateFee prices a transfer in the chain's native asset.
func (p *Pool) EstimateFee(ctx context.Context, from, to string, amount decimal.Decimal, chain enum.Chain) (Quote, error) {
	c, d, err := p.Client(chain)
	if err != nil {
		return Quote{}, err
	}
	if err := validatePair(c, from, to, chain); err != nil {
		return Quote{}, err
	}
	value, err := utils.ToBaseUnits(amount, d.Decimals)
	if err != nil {
		return Quote{}, err
	}
	return quote(ctx, c, d, from, to, value)
}

func quote(ctx context.Context, c rpc.ChainClient, d chains.ChainDescriptor, from, to string, value *big.Int) (Quote, error) {
	price, err := c.GasPrice(ctx)
	if err != nil {
		return Quote{}, err
	}
	units, err := c.EstimateGas(ctx, from, to, value)
	if err != nil {
		return Quote{}, err
	}
	return Quote{GasPrice: price, GasLimit: units, Fee: utils.Fee(price, units, d.Decimals)}, nil
}

// Submission describes a transaction the node accepted.
type Submission struct {
	Hash string
	Quote
}

// Send validates, prices, balance-checks, signs and submits a native
// transfer. Nothing is submitted unless every check passes.
func (p *Pool) Send(ctx context.Context, from, to string, amount decimal.Decimal, key []byte, chain enum.Chain) (Submission, error) {
	c, d, err := p.Client(chain)
	if err != nil {
		return Submission{}, err
	}
	if err := validatePair(c, from, to, chain); err != nil {
		return Submission{}, err
	}
	value, err := utils.ToBaseUnits(amount, d.Decimals)
	if err != nil {
		return Submission{}, err
	}

	q, err := quote(ctx, c, d, from, to, value)
	if err != nil {
		return Submission{}, err
	}
	balance, err := c.GetBalance(ctx, from)
	if err != nil {
		return Submission{}, err
	}
	fee := new(big.Int).Mul(q.GasPrice, new(big.Int).SetUint64(q.GasLimit))
	if need := new(big.Int).Add(value, fee); balance.Cmp(need) < 0 {
		return Submission{}, fmt.Errorf("%w: have %s, need %s %s",
			types.ErrInsufficientBalance,
			utils.FromBaseUnits(balance, d.Decimals),
			utils.FromBaseUnits(need, d.Decimals),
			d.Symbol,
		)
	}

	hash, err := c.SendTransaction(ctx, rpc.SendRequest{
		From:     from,
		To:       to,
		Value:    value,
		GasPrice: q.GasPrice,
		GasLimit: q.GasLimit,
		Key:      key,
	})
	if err != nil {
		return Submission{}, err
	}
	logger.Info("Transaction submitted", "chain", chain, "hash", hash, "amount", amount, "symbol", d.Symbol)
	return Submission{Hash: hash, Quote: q}, nil
}

func (p *Pool) SendTransaction(ctx context.Context, from, to string, amount decimal.Decimal, key []byte, chain enum.Chain) (string, error) {
	sub, err := p.Send(ctx, from, to, amount, key, chain)
	if err != nil {
		return "", err
	}
	return sub.Hash, nil
}

// GetTransactionStatus never treats a missing receipt as an error.
func (p *Pool) GetTransactionStatus(ctx context.Context, hash string, chain enum.Chain) (rpc.Receipt, error) {
	c, _, err := p.Client(chain)
	if err != nil {
		return rpc.Receipt{}, err
	}
	return c.TransactionStatus(ctx, hash)
}

// ValidateAddress is false for unsupported chains.
func (p *Pool) ValidateAddress(address string, chain enum.Chain) bool {
	c, _, err := p.Client(chain)
	if err != nil {
		return false
	}
	return c.ValidateAddress(address)
}

func (p *Pool) CreateKeypair(chain enum.Chain) (rpc.Keypair, error) {
	c, _, err := p.Client(chain)
	if err != nil {
		return rpc.Keypair{}, err
	}
	return c.CreateKeypair()
}

func (p *Pool) KeypairFromSeed(chain enum.Chain, seed []byte, index uint32) (rpc.Keypair, error) {
	c, _, err := p.Client(chain)
	if err != nil {
		return rpc.Keypair{}, err
	}
	return c.KeypairFromSeed(seed, index)
}

func (p *Pool) AddressFromKey(chain enum.Chain, key []byte) (string, error) {
	c, _, err := p.Client(chain)
	if err != nil {
		return "", err
	}
	return c.AddressFromKey(key)
}

func (p *Pool) Registry() *chains.Registry { return p.registry }

func (p *Pool) Close() error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	errs := &types.MultiError{}
	for chain, c := range p.clients {
		if err := c.Close(); err != nil {
			errs.Add(fmt.Errorf("%s: %w", chain, err))
		}
	}
	p.clients = make(map[enum.Chain]rpc.ChainClient)
	return errs.ErrOrNil()
}

func validatePair(c rpc.ChainClient, from, to string, chain enum.Chain) error {
	if !c.ValidateAddress(from) {
		return fmt.Errorf("%w: sender %q on %s", types.ErrInvalidAddress, from, chain)
	}
	if !c.ValidateAddress(to) {
		return fmt.Errorf("%w: recipient %q on %s", types.ErrInvalidAddress, to, chain)
	}
	return nil
}
