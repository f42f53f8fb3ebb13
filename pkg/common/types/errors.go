package types

import (
	"errors"
	"strings"
	"sync"
)

var (
	ErrInvalidAddress      = errors.New("invalid address")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrUnsupportedChain    = errors.New("unsupported chain")
	ErrWalletNotFound      = errors.New("wallet not found")
	ErrRecordNotFound      = errors.New("transaction record not found")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInvalidTransition   = errors.New("invalid transaction status transition")
	ErrOrphanedRecord      = errors.New("record references unknown wallet")

	// ErrNetwork covers transport failures, timeouts and non-2xx responses.
	ErrNetwork = errors.New("network error")
	// ErrRPC is matched by errors the node itself reported.
	ErrRPC = errors.New("rpc error")

	ErrSecretNotFound = errors.New("secret not found")
	ErrDecryption     = errors.New("decryption failed")
	ErrAuthDenied     = errors.New("authentication denied")
	ErrSigning        = errors.New("signing failed")
)

type MultiError struct {
	mu     sync.Mutex
	Errors []error
}

func (m *MultiError) Error() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	msgs := make([]string, len(m.Errors))
	for i, err := range m.Errors {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

func (m *MultiError) Add(err error) {
	if err == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Errors = append(m.Errors, err)
}

func (m *MultiError) IsEmpty() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Errors) == 0
}

// Unwrap lets errors.Is match any collected error.
func (m *MultiError) Unwrap() []error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]error(nil), m.Errors...)
}

// ErrOrNil returns m as an error, or nil when nothing was collected.
func (m *MultiError) ErrOrNil() error {
	if m == nil || m.IsEmpty() {
		return nil
	}
	return m
}
