package keystore

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"sync"

	"github.com/fystack/multichain-wallet/pkg/common/types"
	"github.com/fystack/multichain-wallet/pkg/infra"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

const (
	SchemeArgon2XChaCha = "argon2id-xchacha20poly1305"
	SchemeRandomXChaCha = "random-xchacha20poly1305"

	saltSize = 32
	metaKey  = "keystore/meta"
)

// checkPlaintext is sealed at creation and opened on every unlock to detect a
// wrong passphrase before any secret is touched.
var checkPlaintext = []byte("multichain-wallet master key check")

// MasterKey seals and opens secrets. Implementations never expose the key.
type MasterKey interface {
	Scheme() string
	Seal(plaintext, additionalData []byte) (nonce, ciphertext []byte, err error)
	Open(nonce, ciphertext, additionalData []byte) ([]byte, error)
}

type Argon2Params struct {
	Memory      uint32 // KiB
	Iterations  uint32
	Parallelism uint8
}

func DefaultArgon2Params() Argon2Params {
	return Argon2Params{
		Memory:      64 * 1024,
		Iterations:  3,
		Parallelism: 4,
	}
}

type masterKeyMeta struct {
	Scheme      string `json:"scheme"`
	Salt        []byte `json:"salt"`
	Memory      uint32 `json:"memory"`
	Iterations  uint32 `json:"iterations"`
	Parallelism uint8  `json:"parallelism"`
	CheckNonce  []byte `json:"checkNonce"`
	Check       []byte `json:"check"`
}

type aeadKey struct {
	mu   sync.RWMutex
	key  []byte
	aead cipher.AEAD
}

func newAEADKey(key []byte) (*aeadKey, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	return &aeadKey{key: key, aead: aead}, nil
}

func (k *aeadKey) Seal(plaintext, additionalData []byte) ([]byte, []byte, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if k.aead == nil {
		return nil, nil, fmt.Errorf("%w: master key destroyed", types.ErrDecryption)
	}
	nonce := make([]byte, k.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, fmt.Errorf("generate nonce: %w", err)
	}
	return nonce, k.aead.Seal(nil, nonce, plaintext, additionalData), nil
}

func (k *aeadKey) Open(nonce, ciphertext, additionalData []byte) ([]byte, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if k.aead == nil {
		return nil, fmt.Errorf("%w: master key destroyed", types.ErrDecryption)
	}
	if len(nonce) != k.aead.NonceSize() {
		return nil, fmt.Errorf("%w: bad nonce length %d", types.ErrDecryption, len(nonce))
	}
	out, err := k.aead.Open(nil, nonce, ciphertext, additionalData)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrDecryption, err)
	}
	return out, nil
}

// Destroy zeroes the key. Later Seal/Open calls fail.
func (k *aeadKey) Destroy() {
	k.mu.Lock()
	defer k.mu.Unlock()
	Zero(k.key)
	k.key = nil
	k.aead = nil
}

// PassphraseMasterKey derives its key from a passphrase with Argon2id. Salt,
// parameters and a sealed check value live in the KV store so the same
// passphrase reopens the same key.
type PassphraseMasterKey struct {
	*aeadKey
	meta masterKeyMeta
}

// OpenPassphraseMasterKey creates the key material on first use and verifies
// the passphrase on every later open. A wrong passphrase yields ErrAuthDenied.
func OpenPassphraseMasterKey(kv infra.KVStore, passphrase []byte, params Argon2Params) (*PassphraseMasterKey, error) {
	if len(passphrase) == 0 {
		return nil, fmt.Errorf("%w: empty passphrase", types.ErrAuthDenied)
	}

	var meta masterKeyMeta
	found, err := kv.GetAny(metaKey, &meta)
	if err != nil {
		return nil, fmt.Errorf("load master key metadata: %w", err)
	}

	if !found {
		return createPassphraseMasterKey(kv, passphrase, params)
	}
	if meta.Scheme != SchemeArgon2XChaCha {
		return nil, fmt.Errorf("%w: unknown master key scheme %q", types.ErrDecryption, meta.Scheme)
	}

	k, err := newAEADKey(deriveKey(passphrase, meta))
	if err != nil {
		return nil, err
	}
	if _, err := k.Open(meta.CheckNonce, meta.Check, nil); err != nil {
		k.Destroy()
		return nil, fmt.Errorf("%w: passphrase does not match", types.ErrAuthDenied)
	}
	return &PassphraseMasterKey{aeadKey: k, meta: meta}, nil
}

func createPassphraseMasterKey(kv infra.KVStore, passphrase []byte, params Argon2Params) (*PassphraseMasterKey, error) {
	if params.Memory == 0 || params.Iterations == 0 || params.Parallelism == 0 {
		params = DefaultArgon2Params()
	}
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	meta := masterKeyMeta{
		Scheme:      SchemeArgon2XChaCha,
		Salt:        salt,
		Memory:      params.Memory,
		Iterations:  params.Iterations,
		Parallelism: params.Parallelism,
	}

	k, err := newAEADKey(deriveKey(passphrase, meta))
	if err != nil {
		return nil, err
	}
	meta.CheckNonce, meta.Check, err = k.Seal(checkPlaintext, nil)
	if err != nil {
		k.Destroy()
		return nil, err
	}
	if err := kv.SetAny(metaKey, meta); err != nil {
		k.Destroy()
		return nil, fmt.Errorf("persist master key metadata: %w", err)
	}
	return &PassphraseMasterKey{aeadKey: k, meta: meta}, nil
}

func deriveKey(passphrase []byte, meta masterKeyMeta) []byte {
	return argon2.IDKey(passphrase, meta.Salt, meta.Iterations, meta.Memory, meta.Parallelism, chacha20poly1305.KeySize)
}

func (m *PassphraseMasterKey) Scheme() string { return SchemeArgon2XChaCha }

// Verify reports whether passphrase derives this key.
func (m *PassphraseMasterKey) Verify(passphrase []byte) bool {
	candidate := deriveKey(passphrase, m.meta)
	defer Zero(candidate)

	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.key != nil && subtle.ConstantTimeCompare(candidate, m.key) == 1
}

// RandomMasterKey holds a random in-memory key. Nothing is persisted, so
// secrets sealed with it die with the process.
type RandomMasterKey struct {
	*aeadKey
}

func NewRandomMasterKey() (*RandomMasterKey, error) {
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	k, err := newAEADKey(key)
	if err != nil {
		return nil, err
	}
	return &RandomMasterKey{aeadKey: k}, nil
}

func (m *RandomMasterKey) Scheme() string { return SchemeRandomXChaCha }
