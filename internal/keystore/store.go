package keystore

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fystack/multichain-wallet/pkg/common/constant"
	"github.com/fystack/multichain-wallet/pkg/common/logger"
	"github.com/fystack/multichain-wallet/pkg/common/types"
	"github.com/fystack/multichain-wallet/pkg/infra"
)

const envelopePrefix = "secrets/"

// Envelope is the persisted form of one secret.
type Envelope struct {
	Name       string    `json:"name"`
	Ciphertext []byte    `json:"ciphertext"`
	Nonce      []byte    `json:"nonce"`
	Scheme     string    `json:"scheme"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

type Option func(*Store)

func WithAuthValidity(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.validity = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Store keeps secrets sealed under a MasterKey. Plaintext is only handed out
// while an authentication grant is live.
type Store struct {
	kv       infra.KVStore
	key      MasterKey
	auth     Authenticator
	validity time.Duration
	now      func() time.Time

	mu        sync.Mutex
	grantedAt time.Time
}

func NewStore(kv infra.KVStore, key MasterKey, auth Authenticator, opts ...Option) *Store {
	s := &Store{
		kv:       kv,
		key:      key,
		auth:     auth,
		validity: constant.DefaultAuthValidity,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func envelopeKey(name string) string {
	return envelopePrefix + name
}

func checkName(name string) error {
	if name == "" || strings.HasPrefix(name, "/") || strings.HasSuffix(name, "/") {
		return fmt.Errorf("invalid secret name %q", name)
	}
	return nil
}

// Store seals plaintext under name, replacing any previous envelope. The name
// is bound as associated data so envelopes cannot be swapped between names.
func (s *Store) Store(ctx context.Context, name string, plaintext []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := checkName(name); err != nil {
		return err
	}
	nonce, ciphertext, err := s.key.Seal(plaintext, []byte(name))
	if err != nil {
		return fmt.Errorf("seal %s: %w", name, err)
	}
	env := Envelope{
		Name:       name,
		Ciphertext: ciphertext,
		Nonce:      nonce,
		Scheme:     s.key.Scheme(),
		UpdatedAt:  s.now().UTC(),
	}
	if err := s.kv.SetAny(envelopeKey(name), env); err != nil {
		return fmt.Errorf("persist %s: %w", name, err)
	}
	return nil
}

// Retrieve returns the plaintext for name. The caller owns the buffer and
// should Zero it when done.
func (s *Store) Retrieve(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.grantLiveLocked() {
		return nil, fmt.Errorf("%w: no live authentication grant", types.ErrAuthDenied)
	}

	var env Envelope
	found, err := s.kv.GetAny(envelopeKey(name), &env)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", name, err)
	}
	if !found {
		return nil, fmt.Errorf("%w: %s", types.ErrSecretNotFound, name)
	}
	if env.Scheme != s.key.Scheme() {
		return nil, fmt.Errorf("%w: %s sealed with %q", types.ErrDecryption, name, env.Scheme)
	}
	plaintext, err := s.key.Open(env.Nonce, env.Ciphertext, []byte(name))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	return plaintext, nil
}

func (s *Store) Remove(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := checkName(name); err != nil {
		return err
	}
	return s.kv.Delete(envelopeKey(name))
}

// RemovePrefix deletes every secret whose name starts with prefix.
func (s *Store) RemovePrefix(ctx context.Context, prefix string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	pairs, err := s.kv.List(envelopeKey(prefix))
	if err != nil {
		return fmt.Errorf("list secrets: %w", err)
	}
	errs := &types.MultiError{}
	for _, p := range pairs {
		errs.Add(s.kv.Delete(p.Key))
	}
	return errs.ErrOrNil()
}

// ClearAll deletes every secret and revokes the current grant.
func (s *Store) ClearAll(ctx context.Context) error {
	err := s.RemovePrefix(ctx, "")
	s.Lock()
	return err
}

// Authenticate consults the Authenticator and opens a grant window on success.
func (s *Store) Authenticate(ctx context.Context) (Decision, error) {
	d, err := s.auth.Authenticate(ctx)
	if err != nil {
		return d, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if d == DecisionGranted {
		s.grantedAt = s.now()
		logger.Debug("Credential store unlocked", "validity", s.validity)
	} else {
		s.grantedAt = time.Time{}
		logger.Warn("Credential store authentication refused", "decision", d)
	}
	return d, nil
}

// Authorized reports whether a grant is currently live.
func (s *Store) Authorized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.grantLiveLocked()
}

// Lock revokes the current grant.
func (s *Store) Lock() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grantedAt = time.Time{}
}

func (s *Store) grantLiveLocked() bool {
	if s.grantedAt.IsZero() {
		return false
	}
	return s.now().Before(s.grantedAt.Add(s.validity))
}

// Zero overwrites b.
func Zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
