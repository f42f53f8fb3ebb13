package chains

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/fystack/multichain-wallet/pkg/common/config"
	"github.com/fystack/multichain-wallet/pkg/common/enum"
	"github.com/fystack/multichain-wallet/pkg/common/logger"
	"github.com/fystack/multichain-wallet/pkg/common/types"
	"github.com/go-playground/validator/v10"
	"github.com/imdario/mergo"
)

const apiKeyPlaceholder = "${API_KEY}"

type Network struct {
	RPCURL        string `validate:"required,url"`
	ChainID       int64  `validate:"required"`
	ExplorerTxURL string `validate:"required"`
}

type ChainDescriptor struct {
	ID              enum.Chain     `validate:"required"`
	Type            enum.ChainType `validate:"required,oneof=evm solana"`
	Name            string         `validate:"required"`
	Symbol          string         `validate:"required"`
	AssetName       string
	Decimals        int32 `validate:"gte=0,lte=36"`
	PriceID         string
	Mainnet         Network
	Testnet         Network
	DefaultGasLimit uint64
	// DefaultGasPrice is in the chain's smallest unit (wei, lamports).
	DefaultGasPrice uint64

	APIKey string
	// KeyInURL is set when the provider key was substituted into the RPC URL.
	KeyInURL bool
	Headers  map[string]string
	Client   config.ClientCfg
}

// Network returns the mainnet or testnet parameters.
func (d ChainDescriptor) Network(testnet bool) Network {
	if testnet {
		return d.Testnet
	}
	return d.Mainnet
}

// Registry is the immutable chain table. It does no I/O after construction.
type Registry struct {
	descriptors  map[enum.Chain]ChainDescriptor
	order        []enum.Chain
	testnet      bool
	defaultChain enum.Chain
}

// NewRegistry merges the built-in descriptors with cfg's chain overrides.
func NewRegistry(cfg config.Config) (*Registry, error) {
	return newRegistry(DefaultDescriptors(), cfg)
}

func newRegistry(builtin []ChainDescriptor, cfg config.Config) (*Registry, error) {
	r := &Registry{
		descriptors:  make(map[enum.Chain]ChainDescriptor, len(builtin)),
		testnet:      cfg.Testnet,
		defaultChain: enum.ChainEthereum,
	}

	byID := make(map[enum.Chain]ChainDescriptor, len(builtin))
	for _, d := range builtin {
		if _, dup := byID[d.ID]; dup {
			return nil, fmt.Errorf("duplicate chain descriptor %q", d.ID)
		}
		byID[d.ID] = d
		r.order = append(r.order, d.ID)
	}

	// chains configured but not built in must be fully described by config
	extra := slices.Sorted(maps.Keys(cfg.Chains.Items))
	for _, name := range extra {
		id := enum.Chain(name)
		if _, ok := byID[id]; !ok {
			byID[id] = ChainDescriptor{ID: id}
			r.order = append(r.order, id)
		}
	}

	validate := validator.New()
	for _, id := range r.order {
		override := cfg.Chains.Items[string(id)]
		if err := mergo.Merge(&override, cfg.Chains.Defaults); err != nil {
			return nil, fmt.Errorf("%s: merge chain defaults: %w", id, err)
		}

		d := fromConfig(id, override)
		if err := mergo.Merge(&d, byID[id]); err != nil {
			return nil, fmt.Errorf("%s: merge descriptor: %w", id, err)
		}
		if err := mergo.Merge(&d.Client, DefaultClientConfig); err != nil {
			return nil, err
		}

		d.APIKey = override.ResolveAPIKey(cfg.APIKey())
		for _, n := range []*Network{&d.Mainnet, &d.Testnet} {
			if strings.Contains(n.RPCURL, apiKeyPlaceholder) {
				if d.APIKey == "" {
					logger.Warn("No API key for provider URL", "chain", id)
				}
				n.RPCURL = config.SubstituteKey(n.RPCURL, d.APIKey)
				d.KeyInURL = true
			}
		}

		if err := validate.Struct(d); err != nil {
			return nil, fmt.Errorf("chain %s: %w", id, err)
		}
		r.descriptors[id] = d
	}

	return r, nil
}

func fromConfig(id enum.Chain, c config.ChainConfig) ChainDescriptor {
	return ChainDescriptor{
		ID:        id,
		Type:      c.Type,
		Name:      c.Name,
		Symbol:    c.Symbol,
		AssetName: c.AssetName,
		Decimals:  c.Decimals,
		PriceID:   c.PriceID,
		Mainnet: Network{
			RPCURL:        c.Mainnet.RPCURL,
			ChainID:       c.Mainnet.ChainID,
			ExplorerTxURL: c.Mainnet.ExplorerTxURL,
		},
		Testnet: Network{
			RPCURL:        c.Testnet.RPCURL,
			ChainID:       c.Testnet.ChainID,
			ExplorerTxURL: c.Testnet.ExplorerTxURL,
		},
		DefaultGasLimit: c.DefaultGasLimit,
		DefaultGasPrice: c.DefaultGasPrice,
		Headers:         c.Headers,
		Client:          c.Client,
	}
}

// Descriptor returns the descriptor for chain or ErrUnsupportedChain.
func (r *Registry) Descriptor(chain enum.Chain) (ChainDescriptor, error) {
	d, ok := r.descriptors[chain]
	if !ok {
		return ChainDescriptor{}, fmt.Errorf("%w: %q", types.ErrUnsupportedChain, chain)
	}
	return d, nil
}

func (r *Registry) IsSupported(chain enum.Chain) bool {
	_, ok := r.descriptors[chain]
	return ok
}

// Chains returns the registered chains in registration order.
func (r *Registry) Chains() []enum.Chain {
	return slices.Clone(r.order)
}

func (r *Registry) Testnet() bool { return r.testnet }

func (r *Registry) DefaultChain() enum.Chain { return r.defaultChain }

// ResolveEndpoint returns the RPC URL of chain. Unknown chains resolve to the
// default chain.
func (r *Registry) ResolveEndpoint(chain enum.Chain, testnet bool) string {
	return r.lenient(chain).Network(testnet).RPCURL
}

func (r *Registry) ResolveChainID(chain enum.Chain, testnet bool) int64 {
	return r.lenient(chain).Network(testnet).ChainID
}

// ResolveExplorerURL links txHash on the block explorer of the configured network.
func (r *Registry) ResolveExplorerURL(chain enum.Chain, txHash string) string {
	tmpl := r.lenient(chain).Network(r.testnet).ExplorerTxURL
	return strings.ReplaceAll(tmpl, "{hash}", txHash)
}

func (r *Registry) lenient(chain enum.Chain) ChainDescriptor {
	if d, ok := r.descriptors[chain]; ok {
		return d
	}
	logger.Debug("Unknown chain, using default", "chain", chain, "default", r.defaultChain)
	return r.descriptors[r.defaultChain]
}
