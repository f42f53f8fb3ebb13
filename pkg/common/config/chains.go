package config

import (
	"fmt"
	"time"

	"github.com/fystack/multichain-wallet/pkg/common/enum"
	"gopkg.in/yaml.v3"
)

type ChainsConfig struct {
	Defaults ChainConfig            `yaml:"defaults" validate:"-"`
	Items    map[string]ChainConfig `yaml:",inline" validate:"dive"`
}

// UnmarshalYAML splits out "defaults" from inline chain entries
func (c *ChainsConfig) UnmarshalYAML(value *yaml.Node) error {
	var raw map[string]ChainConfig
	if err := value.Decode(&raw); err != nil {
		return err
	}
	if raw == nil {
		raw = map[string]ChainConfig{}
	}
	if def, ok := raw["defaults"]; ok {
		c.Defaults = def
		delete(raw, "defaults")
	} else {
		c.Defaults = ChainConfig{}
	}
	c.Items = raw
	return nil
}

// ChainConfig overrides the built-in descriptor of a chain. Zero fields keep the
// built-in value.
type ChainConfig struct {
	Name            string            `yaml:"name"`
	Type            enum.ChainType    `yaml:"type" validate:"omitempty,oneof=evm solana"`
	Symbol          string            `yaml:"symbol"`
	AssetName       string            `yaml:"asset_name"`
	Decimals        int32             `yaml:"decimals" validate:"gte=0,lte=36"`
	PriceID         string            `yaml:"price_id"`
	Mainnet         NetworkCfg        `yaml:"mainnet"`
	Testnet         NetworkCfg        `yaml:"testnet"`
	DefaultGasLimit uint64            `yaml:"default_gas_limit"`
	DefaultGasPrice uint64            `yaml:"default_gas_price"`
	ApiKey          string            `yaml:"api_key"`
	ApiKeyEnv       string            `yaml:"api_key_env"`
	Headers         map[string]string `yaml:"headers,omitempty"`
	Client          ClientCfg         `yaml:"client"`
}

type NetworkCfg struct {
	RPCURL        string `yaml:"rpc_url" validate:"omitempty,url"`
	ChainID       int64  `yaml:"chain_id"`
	ExplorerTxURL string `yaml:"explorer_tx_url"`
}

type ClientCfg struct {
	Timeout  time.Duration `yaml:"timeout"`
	Throttle ThrottleCfg   `yaml:"throttle"`
}

type ThrottleCfg struct {
	RPS   int `yaml:"rps"`
	Burst int `yaml:"burst"`
}

func (c *ChainsConfig) GetAllChainNames() []string {
	names := make([]string, 0, len(c.Items))
	for name := range c.Items {
		names = append(names, name)
	}
	return names
}

func (c *ChainsConfig) GetChain(chain string) (ChainConfig, error) {
	if cc, ok := c.Items[chain]; ok {
		return cc, nil
	}
	return ChainConfig{}, fmt.Errorf("chain %s not configured", chain)
}
