package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/fystack/multichain-wallet/internal/chains"
	"github.com/fystack/multichain-wallet/internal/keystore"
	"github.com/fystack/multichain-wallet/internal/pool"
	"github.com/fystack/multichain-wallet/internal/price"
	"github.com/fystack/multichain-wallet/internal/wallet"
	"github.com/fystack/multichain-wallet/pkg/common/config"
	"github.com/fystack/multichain-wallet/pkg/common/enum"
	"github.com/fystack/multichain-wallet/pkg/common/logger"
	"github.com/fystack/multichain-wallet/pkg/events"
	"github.com/fystack/multichain-wallet/pkg/infra"
	"github.com/fystack/multichain-wallet/pkg/kvstore"
	"github.com/fystack/multichain-wallet/pkg/retry"
	"github.com/nats-io/nats.go"
	"golang.org/x/term"
)

// app is everything a command needs, built once per invocation.
type app struct {
	cfg      config.Config
	kv       infra.KVStore
	registry *chains.Registry
	pool     *pool.Pool
	store    *keystore.Store
	emitter  events.Emitter
	manager  *wallet.Manager
	closers  []func()
}

func loadConfig(opts *rootOptions) (config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if errors.Is(err, fs.ErrNotExist) && !opts.configSet {
		logger.Debug("No config file, using defaults", "path", opts.configPath)
		cfg, err = config.Finalize(config.Default())
	}
	if err != nil {
		return cfg, fmt.Errorf("load config: %w", err)
	}
	if opts.testnetSet {
		cfg.Testnet = opts.testnet
	}
	return cfg, nil
}

// openApp wires the full stack. bootstrap lists chains that should get a
// wallet if they have none; an empty non-nil slice means every registered
// chain and nil only restores state.
func openApp(ctx context.Context, opts *rootOptions, bootstrap []enum.Chain) (*app, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg}
	ok := false
	defer func() {
		if !ok {
			a.close()
		}
	}()

	if a.kv, err = kvstore.NewFromConfig(cfg.KVStore, cfg.Environment); err != nil {
		return nil, fmt.Errorf("open kv store: %w", err)
	}
	a.closers = append(a.closers, func() {
		if err := a.kv.Close(); err != nil {
			logger.Warn("Close kv store failed", "error", err)
		}
	})

	if a.registry, err = chains.NewRegistry(cfg); err != nil {
		return nil, fmt.Errorf("build chain registry: %w", err)
	}
	if bootstrap != nil && len(bootstrap) == 0 {
		bootstrap = a.registry.Chains()
	}
	a.pool = pool.New(a.registry)
	a.closers = append(a.closers, func() {
		if err := a.pool.Close(); err != nil {
			logger.Warn("Close clients failed", "error", err)
		}
	})

	if a.store, err = openKeystore(a.kv, cfg.Keystore); err != nil {
		return nil, err
	}

	if a.emitter, err = openEmitter(ctx, cfg); err != nil {
		return nil, err
	}
	a.closers = append(a.closers, a.emitter.Close)

	feed, err := price.NewFromConfig(cfg.Prices)
	if err != nil {
		return nil, err
	}

	a.manager = wallet.NewManager(a.registry, a.pool, a.store, wallet.NewRepository(a.kv),
		wallet.WithPriceFeed(feed),
		wallet.WithEmitter(a.emitter),
	)
	a.closers = append(a.closers, a.manager.Close)

	if err := a.manager.Initialize(ctx, bootstrap); err != nil {
		return nil, err
	}
	if cfg.Features.MockData && bootstrap != nil {
		logger.Warn("Seeding demo data")
		if err := wallet.SeedDemoData(a.manager); err != nil {
			return nil, fmt.Errorf("seed demo data: %w", err)
		}
	}

	ok = true
	return a, nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func readPassphrase(prompt string) ([]byte, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return nil, fmt.Errorf("no terminal to prompt for the passphrase")
	}
	fmt.Fprint(os.Stderr, prompt)
	p, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	return p, err
}

// openKeystore unlocks the master key with the passphrase from the
// environment, or from a prompt. A prompted session confirms the passphrase
// again before keys are released; an environment passphrase is trusted.
func openKeystore(kv infra.KVStore, cfg config.KeystoreCfg) (*keystore.Store, error) {
	passphrase := []byte(os.Getenv(cfg.PassphraseEnv))
	fromEnv := len(passphrase) > 0
	if !fromEnv {
		var err error
		if passphrase, err = readPassphrase("Wallet passphrase: "); err != nil {
			return nil, fmt.Errorf("set %s or run interactively: %w", cfg.PassphraseEnv, err)
		}
	}
	defer keystore.Zero(passphrase)

	mk, err := keystore.OpenPassphraseMasterKey(kv, passphrase, keystore.Argon2Params{
		Memory:      cfg.Argon2.MemoryKiB,
		Iterations:  cfg.Argon2.Iterations,
		Parallelism: cfg.Argon2.Parallelism,
	})
	if err != nil {
		return nil, fmt.Errorf("unlock master key: %w", err)
	}

	var auth keystore.Authenticator = keystore.NewStaticAuthenticator(keystore.DecisionGranted)
	if !fromEnv {
		auth = &keystore.TerminalAuthenticator{
			Fd:     int(os.Stdin.Fd()),
			Out:    os.Stderr,
			Prompt: "Confirm passphrase to sign: ",
			Verify: mk.Verify,
		}
	}
	return keystore.NewStore(kv, mk, auth, keystore.WithAuthValidity(cfg.AuthValidity)), nil
}

func connectNATS(ctx context.Context, cfg config.Config) (*nats.Conn, error) {
	var nc *nats.Conn
	err := retry.Constant(ctx, func() error {
		var err error
		nc, err = infra.GetNATSConnection(cfg.NATS, cfg.Environment)
		if err != nil {
			logger.Warn("NATS connect failed", "error", err)
		}
		return err
	}, 2*time.Second, retry.DefaultMaxAttempts)
	return nc, err
}

func openEmitter(ctx context.Context, cfg config.Config) (events.Emitter, error) {
	if !cfg.NATS.Enabled {
		return events.NewNoop(), nil
	}
	nc, err := connectNATS(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect NATS: %w", err)
	}

	var pub infra.Publisher
	if cfg.NATS.JetStream {
		pub, err = infra.NewStreamPublisher(ctx, nc, cfg.NATS.Stream, events.Subjects(cfg.NATS.SubjectPrefix))
		if err != nil {
			nc.Close()
			return nil, err
		}
	} else {
		pub = infra.NewCorePublisher(nc)
	}
	return events.NewEmitter(pub, cfg.NATS.SubjectPrefix), nil
}
