package chains

import (
	"net/url"
	"testing"

	"github.com/fystack/multichain-wallet/pkg/common/config"
	"github.com/fystack/multichain-wallet/pkg/common/enum"
	"github.com/fystack/multichain-wallet/pkg/common/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.ApiKey = "test-key"
	return cfg
}

func TestRegistry_EndpointsAreDistinctAndWellFormed(t *testing.T) {
	r, err := NewRegistry(testConfig(t))
	require.NoError(t, err)

	require.ElementsMatch(t, enum.SupportedChains, r.Chains())
	for _, chain := range r.Chains() {
		mainnet := r.ResolveEndpoint(chain, false)
		testnet := r.ResolveEndpoint(chain, true)

		assert.NotEqual(t, mainnet, testnet, "chain %s", chain)
		for _, raw := range []string{mainnet, testnet} {
			u, err := url.Parse(raw)
			require.NoError(t, err)
			assert.Equal(t, "https", u.Scheme, raw)
			assert.NotEmpty(t, u.Host, raw)
			assert.NotContains(t, raw, "${API_KEY}")
		}
		assert.NotEqual(t, r.ResolveChainID(chain, false), r.ResolveChainID(chain, true), "chain %s", chain)
	}
}

func TestRegistry_KnownChainIDs(t *testing.T) {
	r, err := NewRegistry(testConfig(t))
	require.NoError(t, err)

	tests := []struct {
		chain   enum.Chain
		mainnet int64
		testnet int64
	}{
		{enum.ChainEthereum, 1, 11155111},
		{enum.ChainPolygon, 137, 80002},
		{enum.ChainBSC, 56, 97},
		{enum.ChainAvalanche, 43114, 43113},
		{enum.ChainBase, 8453, 84532},
		{enum.ChainSolana, 101, 103},
	}
	for _, tt := range tests {
		t.Run(string(tt.chain), func(t *testing.T) {
			assert.Equal(t, tt.mainnet, r.ResolveChainID(tt.chain, false))
			assert.Equal(t, tt.testnet, r.ResolveChainID(tt.chain, true))
		})
	}
}

func TestRegistry_UnknownChainFallsBackToDefault(t *testing.T) {
	r, err := NewRegistry(testConfig(t))
	require.NoError(t, err)

	unknown := enum.Chain("dogechain")
	assert.Equal(t, r.ResolveEndpoint(enum.ChainEthereum, false), r.ResolveEndpoint(unknown, false))
	assert.Equal(t, int64(1), r.ResolveChainID(unknown, false))
	assert.Equal(t, "https://etherscan.io/tx/0xabc", r.ResolveExplorerURL(unknown, "0xabc"))

	_, err = r.Descriptor(unknown)
	assert.ErrorIs(t, err, types.ErrUnsupportedChain)
	assert.False(t, r.IsSupported(unknown))
}

func TestRegistry_ExplorerFollowsNetwork(t *testing.T) {
	cfg := testConfig(t)
	cfg.Testnet = true
	r, err := NewRegistry(cfg)
	require.NoError(t, err)

	assert.True(t, r.Testnet())
	assert.Equal(t, "https://sepolia.etherscan.io/tx/0x1", r.ResolveExplorerURL(enum.ChainEthereum, "0x1"))
	assert.Equal(t, "https://solscan.io/tx/sig?cluster=devnet", r.ResolveExplorerURL(enum.ChainSolana, "sig"))
}

func TestRegistry_ConfigOverrides(t *testing.T) {
	cfg := testConfig(t)
	cfg.Chains.Items = map[string]config.ChainConfig{
		"polygon": {
			Mainnet: config.NetworkCfg{RPCURL: "https://polygon.example.org/${API_KEY}"},
			ApiKey:  "poly-key",
		},
		"bsc": {
			Headers: map[string]string{"x-api-key": "abc"},
		},
	}

	r, err := NewRegistry(cfg)
	require.NoError(t, err)

	d, err := r.Descriptor(enum.ChainPolygon)
	require.NoError(t, err)
	assert.Equal(t, "https://polygon.example.org/poly-key", d.Mainnet.RPCURL)
	assert.Equal(t, int64(137), d.Mainnet.ChainID, "unset fields keep built-in values")
	assert.Equal(t, "MATIC", d.Symbol)
	assert.True(t, d.KeyInURL)

	d, err = r.Descriptor(enum.ChainBSC)
	require.NoError(t, err)
	assert.Equal(t, "abc", d.Headers["x-api-key"])
	assert.False(t, d.KeyInURL)
	assert.Equal(t, DefaultClientConfig.Timeout, d.Client.Timeout)
}

func TestRegistry_RejectsIncompleteCustomChain(t *testing.T) {
	cfg := testConfig(t)
	cfg.Chains.Items = map[string]config.ChainConfig{
		"fantom": {Type: enum.ChainTypeEVM, Name: "Fantom"},
	}
	_, err := NewRegistry(cfg)
	assert.Error(t, err)
}

func TestRegistry_RejectsDuplicates(t *testing.T) {
	builtin := DefaultDescriptors()
	builtin = append(builtin, builtin[0])
	_, err := newRegistry(builtin, testConfig(t))
	assert.Error(t, err)
}

func TestRegistry_NativeAssets(t *testing.T) {
	r, err := NewRegistry(testConfig(t))
	require.NoError(t, err)

	want := map[enum.Chain][2]string{
		enum.ChainEthereum:  {"ETH", "Ethereum"},
		enum.ChainPolygon:   {"MATIC", "Polygon"},
		enum.ChainBSC:       {"BNB", "Binance Smart Chain"},
		enum.ChainAvalanche: {"AVAX", "Avalanche"},
		enum.ChainBase:      {"ETH", "Base"},
		enum.ChainSolana:    {"SOL", "Solana"},
	}
	for chain, w := range want {
		d, err := r.Descriptor(chain)
		require.NoError(t, err)
		assert.Equal(t, w[0], d.Symbol)
		assert.Equal(t, w[1], d.Name)
	}
}
