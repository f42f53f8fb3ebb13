package config

import (
	"fmt"
	"os"
	"time"

	"github.com/fystack/multichain-wallet/pkg/common/constant"
	"github.com/fystack/multichain-wallet/pkg/common/enum"
	"github.com/go-playground/validator/v10"
	"github.com/imdario/mergo"
	"gopkg.in/yaml.v3"
)

var validate = validator.New()

type Config struct {
	Environment string       `yaml:"environment" validate:"required,oneof=production development"`
	Testnet     bool         `yaml:"testnet"`
	ApiKey      string       `yaml:"api_key"`
	ApiKeyEnv   string       `yaml:"api_key_env"`
	Chains      ChainsConfig `yaml:"chains"`
	Keystore    KeystoreCfg  `yaml:"keystore"`
	KVStore     KVStoreCfg   `yaml:"kvstore" validate:"required"`
	NATS        NATSConfig   `yaml:"nats"`
	Prices      PricesCfg    `yaml:"prices"`
	Features    FeaturesCfg  `yaml:"features"`
}

type KeystoreCfg struct {
	AuthValidity  time.Duration `yaml:"auth_validity"`
	PassphraseEnv string        `yaml:"passphrase_env"`
	Argon2        Argon2Cfg     `yaml:"argon2"`
}

type Argon2Cfg struct {
	MemoryKiB   uint32 `yaml:"memory_kib"`
	Iterations  uint32 `yaml:"iterations"`
	Parallelism uint8  `yaml:"parallelism"`
}

type KVStoreCfg struct {
	Type   enum.KVStoreType `yaml:"type" validate:"required,oneof=badger consul redis"`
	Badger BadgerKVCfg      `yaml:"badger"`
	Consul ConsulKVCfg      `yaml:"consul"`
	Redis  RedisKVCfg       `yaml:"redis"`
}

type RedisKVCfg struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db" validate:"gte=0"`
	Prefix   string `yaml:"prefix"`
	TLS      TLSCfg `yaml:"tls"`
}

type BadgerKVCfg struct {
	Directory string `yaml:"directory"`
	Prefix    string `yaml:"prefix"`
	InMemory  bool   `yaml:"in_memory"`
}

type ConsulKVCfg struct {
	Scheme   string      `yaml:"scheme"`
	Address  string      `yaml:"address"`
	Folder   string      `yaml:"folder"`
	Token    string      `yaml:"token"`
	HttpAuth HttpAuthCfg `yaml:"http_auth"`
}

type HttpAuthCfg struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

type NATSConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url" validate:"required_if=Enabled true"`
	SubjectPrefix string `yaml:"subject_prefix"`
	Username      string `yaml:"username"`
	Password      string `yaml:"password"`
	// JetStream persists events in a stream named Stream; plain publish otherwise.
	JetStream bool   `yaml:"jetstream"`
	Stream    string `yaml:"stream"`
	TLS       TLSCfg `yaml:"tls"`
}

type TLSCfg struct {
	ClientCert string `yaml:"client_cert"`
	ClientKey  string `yaml:"client_key"`
	CACert     string `yaml:"ca_cert"`
}

type PricesCfg struct {
	Provider  string            `yaml:"provider" validate:"omitempty,oneof=coingecko static"`
	BaseURL   string            `yaml:"base_url" validate:"omitempty,url"`
	ApiKeyEnv string            `yaml:"api_key_env"`
	Timeout   time.Duration     `yaml:"timeout"`
	Static    map[string]string `yaml:"static"`
}

type FeaturesCfg struct {
	// MockData seeds demo wallets, balances and records. Never enable in production.
	MockData bool `yaml:"mock_data"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Environment: constant.EnvDevelopment,
		ApiKeyEnv:   "INFURA_API_KEY",
		Keystore: KeystoreCfg{
			AuthValidity:  constant.DefaultAuthValidity,
			PassphraseEnv: "WALLET_PASSPHRASE",
			Argon2: Argon2Cfg{
				MemoryKiB:   64 * 1024,
				Iterations:  3,
				Parallelism: 4,
			},
		},
		KVStore: KVStoreCfg{
			Type:   enum.KVStoreTypeBadger,
			Badger: BadgerKVCfg{Directory: "data/wallet"},
		},
		NATS: NATSConfig{SubjectPrefix: "wallet", Stream: "WALLET_EVENTS"},
		Prices: PricesCfg{
			Provider: "coingecko",
			BaseURL:  "https://api.coingecko.com",
			Timeout:  10 * time.Second,
		},
		Chains: ChainsConfig{
			Defaults: ChainConfig{
				Client: ClientCfg{
					Timeout:  constant.DefaultClientTimeout,
					Throttle: ThrottleCfg{RPS: 10, Burst: 20},
				},
			},
			Items: map[string]ChainConfig{},
		},
	}
}

func Load(path string) (Config, error) {
	cfg := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}

	var fileCfg Config
	if err := yaml.Unmarshal(b, &fileCfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	return Finalize(fileCfg)
}

// Finalize fills unset fields from Default and validates the result.
func Finalize(cfg Config) (Config, error) {
	if err := mergo.Merge(&cfg, Default()); err != nil {
		return cfg, err
	}

	// merge chain defaults into every configured chain
	for name, chain := range cfg.Chains.Items {
		if err := mergo.Merge(&chain, cfg.Chains.Defaults); err != nil {
			return cfg, err
		}
		cfg.Chains.Items[name] = chain
	}

	if err := cfg.Chains.FinalizeNodes(cfg.APIKey()); err != nil {
		return cfg, err
	}

	if err := validate.Struct(cfg); err != nil {
		return cfg, fmt.Errorf("struct validation failed: %w", err)
	}
	return cfg, nil
}

// APIKey returns the global node API key, preferring the literal value.
func (c Config) APIKey() string {
	if c.ApiKey != "" {
		return c.ApiKey
	}
	if c.ApiKeyEnv != "" {
		return os.Getenv(c.ApiKeyEnv)
	}
	return ""
}
