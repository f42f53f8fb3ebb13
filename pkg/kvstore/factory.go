package kvstore

import (
	"fmt"

	"github.com/fystack/multichain-wallet/pkg/common/config"
	"github.com/fystack/multichain-wallet/pkg/common/enum"
	"github.com/fystack/multichain-wallet/pkg/infra"
	"github.com/hashicorp/consul/api"
)

// NewFromConfig constructs an infra.KVStore based on kvstore configuration.
// environment selects TLS for backends that support it.
func NewFromConfig(cfg config.KVStoreCfg, environment string) (infra.KVStore, error) {
	switch cfg.Type {
	case enum.KVStoreTypeBadger:
		return NewBadgerStore(BadgerOptions{
			Directory: cfg.Badger.Directory,
			Prefix:    cfg.Badger.Prefix,
			InMemory:  cfg.Badger.InMemory,
			Codec:     infra.JSON,
		})
	case enum.KVStoreTypeConsul:
		return NewConsulClient(ConsulOptions{
			Scheme:  cfg.Consul.Scheme,
			Address: cfg.Consul.Address,
			Folder:  cfg.Consul.Folder,
			Codec:   infra.JSON,
			Token:   cfg.Consul.Token,
			HttpAuth: &api.HttpBasicAuth{
				Username: cfg.Consul.HttpAuth.Username,
				Password: cfg.Consul.HttpAuth.Password,
			},
		})
	case enum.KVStoreTypeRedis:
		return NewRedisStore(RedisOptions{
			Address:     cfg.Redis.Address,
			Password:    cfg.Redis.Password,
			DB:          cfg.Redis.DB,
			Prefix:      cfg.Redis.Prefix,
			Codec:       infra.JSON,
			Environment: environment,
			CACert:      cfg.Redis.TLS.CACert,
			ClientCert:  cfg.Redis.TLS.ClientCert,
			ClientKey:   cfg.Redis.TLS.ClientKey,
		})
	default:
		return nil, fmt.Errorf("unsupported kvstore type: %s", cfg.Type)
	}
}

// NewInMemory returns an in-memory badger store, used by tests and --ephemeral runs.
func NewInMemory() (infra.KVStore, error) {
	return NewBadgerStore(BadgerOptions{InMemory: true, Codec: infra.JSON})
}
