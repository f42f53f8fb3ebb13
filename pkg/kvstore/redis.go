package kvstore

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/fystack/multichain-wallet/pkg/common/constant"
	"github.com/fystack/multichain-wallet/pkg/common/enum"
	"github.com/fystack/multichain-wallet/pkg/common/logger"
	"github.com/fystack/multichain-wallet/pkg/infra"
	"github.com/redis/go-redis/v9"
)

const redisOpTimeout = 5 * time.Second

// RedisStore implements infra.KVStore on a single redis database. Keys are
// namespaced under Prefix so several wallets can share one server.
type RedisStore struct {
	client *redis.Client
	prefix string
	codec  infra.Codec
}

type RedisOptions struct {
	Address  string
	Password string
	DB       int
	Prefix   string
	Codec    infra.Codec
	// Environment "production" turns on mutual TLS with the cert paths below.
	Environment string
	CACert      string
	ClientCert  string
	ClientKey   string
}

func redisTLSConfig(caCertPath, clientCertPath, clientKeyPath string) (*tls.Config, error) {
	caCert, err := os.ReadFile(caCertPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA cert: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caCert) {
		return nil, fmt.Errorf("failed to append CA cert to pool")
	}
	cert, err := tls.LoadX509KeyPair(clientCertPath, clientKeyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load client certificate: %w", err)
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		RootCAs:      pool,
		MinVersion:   tls.VersionTLS12,
	}, nil
}

// NewRedisStore connects and pings before returning.
func NewRedisStore(o RedisOptions) (*RedisStore, error) {
	if o.Address == "" {
		o.Address = "localhost:6379"
	}
	if o.Codec == nil {
		o.Codec = infra.JSON
	}

	cpus := runtime.GOMAXPROCS(0)
	opts := &redis.Options{
		Addr:            o.Address,
		Password:        o.Password,
		DB:              o.DB,
		PoolSize:        cpus * 4,
		MinIdleConns:    1,
		ConnMaxIdleTime: 5 * time.Minute,
		DialTimeout:     5 * time.Second,
		ReadTimeout:     3 * time.Second,
		WriteTimeout:    3 * time.Second,
		MaxRetries:      3,
		MinRetryBackoff: 100 * time.Millisecond,
		MaxRetryBackoff: 500 * time.Millisecond,
	}
	if o.Environment == constant.EnvProduction {
		tlsCfg, err := redisTLSConfig(o.CACert, o.ClientCert, o.ClientKey)
		if err != nil {
			return nil, fmt.Errorf("failed to create TLS config for redis client: %w", err)
		}
		opts.TLSConfig = tlsCfg
	}

	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	logger.Debug("Connected to Redis", "addr", o.Address, "db", o.DB)

	return &RedisStore{client: client, prefix: o.Prefix, codec: o.Codec}, nil
}

func (r *RedisStore) GetName() string {
	return string(enum.KVStoreTypeRedis)
}

func (r *RedisStore) fullKey(k string) (string, error) {
	if k == "" {
		return "", ErrKeyEmpty
	}
	if r.prefix != "" {
		return r.prefix + "/" + k, nil
	}
	return k, nil
}

func opCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), redisOpTimeout)
}

func (r *RedisStore) set(k string, v []byte) error {
	key, err := r.fullKey(k)
	if err != nil {
		return err
	}
	ctx, cancel := opCtx()
	defer cancel()
	return r.client.Set(ctx, key, v, 0).Err()
}

func (r *RedisStore) get(k string) ([]byte, error) {
	key, err := r.fullKey(k)
	if err != nil {
		return nil, err
	}
	ctx, cancel := opCtx()
	defer cancel()
	b, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrKeyNotFound
	}
	return b, err
}

func (r *RedisStore) Set(k string, v string) error {
	return r.set(k, []byte(v))
}

func (r *RedisStore) Get(k string) (string, error) {
	b, err := r.get(k)
	return string(b), err
}

func (r *RedisStore) SetAny(k string, v any) error {
	if err := checkKeyAndValue(k, v); err != nil {
		return err
	}
	data, err := r.codec.Marshal(v)
	if err != nil {
		return err
	}
	return r.set(k, data)
}

func (r *RedisStore) GetAny(k string, v any) (bool, error) {
	if err := checkKeyAndValue(k, v); err != nil {
		return false, err
	}
	b, err := r.get(k)
	if errors.Is(err, ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, r.codec.Unmarshal(b, v)
}

// List scans keys under prefix and returns them sorted, like the badger
// iterator does.
func (r *RedisStore) List(prefix string) ([]*infra.KVPair, error) {
	if prefix == "" {
		return nil, fmt.Errorf("prefix is empty")
	}
	search, _ := r.fullKey(prefix)
	ctx, cancel := context.WithTimeout(context.Background(), 4*redisOpTimeout)
	defer cancel()

	var keys []string
	iter := r.client.Scan(ctx, 0, escapeGlob(search)+"*", 256).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	sort.Strings(keys)

	result := make([]*infra.KVPair, 0, len(keys))
	if len(keys) == 0 {
		return result, nil
	}
	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	for i, raw := range values {
		s, ok := raw.(string)
		if !ok {
			// deleted between SCAN and MGET
			continue
		}
		key := keys[i]
		if r.prefix != "" {
			key = strings.TrimPrefix(key, r.prefix+"/")
		}
		result = append(result, &infra.KVPair{Key: key, Value: []byte(s)})
	}
	return result, nil
}

func (r *RedisStore) Delete(k string) error {
	key, err := r.fullKey(k)
	if err != nil {
		return err
	}
	ctx, cancel := opCtx()
	defer cancel()
	return r.client.Del(ctx, key).Err()
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}

var globReplacer = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

func escapeGlob(s string) string {
	return globReplacer.Replace(s)
}
