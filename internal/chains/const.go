package chains

import (
	"time"

	"github.com/fystack/multichain-wallet/pkg/common/config"
	"github.com/fystack/multichain-wallet/pkg/common/enum"
)

const (
	evmGasLimit    = 21000
	evmGasPriceWei = 20_000_000_000 // 20 gwei
	// Solana charges a flat fee per signature; a transfer carries one.
	solanaSignatures      = 1
	solanaLamportsPerSign = 5000
)

var DefaultClientConfig = config.ClientCfg{
	Timeout:  15 * time.Second,
	Throttle: config.ThrottleCfg{RPS: 10, Burst: 20},
}

// DefaultDescriptors returns the built-in chain table. URLs containing
// ${API_KEY} are completed from configuration when the registry is built.
func DefaultDescriptors() []ChainDescriptor {
	return []ChainDescriptor{
		{
			ID:        enum.ChainEthereum,
			Type:      enum.ChainTypeEVM,
			Name:      "Ethereum",
			Symbol:    "ETH",
			AssetName: "Ether",
			Decimals:  18,
			PriceID:   "ethereum",
			Mainnet: Network{
				RPCURL:        "https://mainnet.infura.io/v3/${API_KEY}",
				ChainID:       1,
				ExplorerTxURL: "https://etherscan.io/tx/{hash}",
			},
			Testnet: Network{
				RPCURL:        "https://sepolia.infura.io/v3/${API_KEY}",
				ChainID:       11155111,
				ExplorerTxURL: "https://sepolia.etherscan.io/tx/{hash}",
			},
			DefaultGasLimit: evmGasLimit,
			DefaultGasPrice: evmGasPriceWei,
		},
		{
			ID:        enum.ChainPolygon,
			Type:      enum.ChainTypeEVM,
			Name:      "Polygon",
			Symbol:    "MATIC",
			AssetName: "Matic",
			Decimals:  18,
			PriceID:   "matic-network",
			Mainnet: Network{
				RPCURL:        "https://polygon-mainnet.infura.io/v3/${API_KEY}",
				ChainID:       137,
				ExplorerTxURL: "https://polygonscan.com/tx/{hash}",
			},
			Testnet: Network{
				RPCURL:        "https://polygon-amoy.infura.io/v3/${API_KEY}",
				ChainID:       80002,
				ExplorerTxURL: "https://amoy.polygonscan.com/tx/{hash}",
			},
			DefaultGasLimit: evmGasLimit,
			DefaultGasPrice: evmGasPriceWei,
		},
		{
			ID:        enum.ChainBSC,
			Type:      enum.ChainTypeEVM,
			Name:      "Binance Smart Chain",
			Symbol:    "BNB",
			AssetName: "BNB",
			Decimals:  18,
			PriceID:   "binancecoin",
			Mainnet: Network{
				RPCURL:        "https://bsc-dataseed.binance.org",
				ChainID:       56,
				ExplorerTxURL: "https://bscscan.com/tx/{hash}",
			},
			Testnet: Network{
				RPCURL:        "https://data-seed-prebsc-1-s1.binance.org:8545",
				ChainID:       97,
				ExplorerTxURL: "https://testnet.bscscan.com/tx/{hash}",
			},
			DefaultGasLimit: evmGasLimit,
			DefaultGasPrice: evmGasPriceWei,
		},
		{
			ID:        enum.ChainAvalanche,
			Type:      enum.ChainTypeEVM,
			Name:      "Avalanche",
			Symbol:    "AVAX",
			AssetName: "Avalanche",
			Decimals:  18,
			PriceID:   "avalanche-2",
			Mainnet: Network{
				RPCURL:        "https://avalanche-mainnet.infura.io/v3/${API_KEY}",
				ChainID:       43114,
				ExplorerTxURL: "https://snowtrace.io/tx/{hash}",
			},
			Testnet: Network{
				RPCURL:        "https://avalanche-fuji.infura.io/v3/${API_KEY}",
				ChainID:       43113,
				ExplorerTxURL: "https://testnet.snowtrace.io/tx/{hash}",
			},
			DefaultGasLimit: evmGasLimit,
			DefaultGasPrice: evmGasPriceWei,
		},
		{
			ID:        enum.ChainBase,
			Type:      enum.ChainTypeEVM,
			Name:      "Base",
			Symbol:    "ETH",
			AssetName: "Ether",
			Decimals:  18,
			PriceID:   "ethereum",
			Mainnet: Network{
				RPCURL:        "https://base-mainnet.infura.io/v3/${API_KEY}",
				ChainID:       8453,
				ExplorerTxURL: "https://basescan.org/tx/{hash}",
			},
			Testnet: Network{
				RPCURL:        "https://base-sepolia.infura.io/v3/${API_KEY}",
				ChainID:       84532,
				ExplorerTxURL: "https://sepolia.basescan.org/tx/{hash}",
			},
			DefaultGasLimit: evmGasLimit,
			DefaultGasPrice: evmGasPriceWei,
		},
		{
			ID:        enum.ChainSolana,
			Type:      enum.ChainTypeSolana,
			Name:      "Solana",
			Symbol:    "SOL",
			AssetName: "Solana",
			Decimals:  9,
			PriceID:   "solana",
			Mainnet: Network{
				RPCURL:        "https://api.mainnet-beta.solana.com",
				ChainID:       101,
				ExplorerTxURL: "https://solscan.io/tx/{hash}",
			},
			Testnet: Network{
				RPCURL:        "https://api.devnet.solana.com",
				ChainID:       103,
				ExplorerTxURL: "https://solscan.io/tx/{hash}?cluster=devnet",
			},
			DefaultGasLimit: solanaSignatures,
			DefaultGasPrice: solanaLamportsPerSign,
		},
	}
}
