package keystore

import (
	"context"
	"fmt"
	"io"
	"sync"

	"golang.org/x/term"
)

type Decision string

const (
	DecisionGranted   Decision = "granted"
	DecisionDenied    Decision = "denied"
	DecisionCancelled Decision = "cancelled"
)

// Authenticator is the user-presence gate consulted before secrets are
// released.
type Authenticator interface {
	Authenticate(ctx context.Context) (Decision, error)
}

// TerminalAuthenticator asks for the passphrase on a terminal with echo
// disabled and checks it with Verify.
type TerminalAuthenticator struct {
	Fd     int
	Out    io.Writer
	Prompt string
	Verify func(passphrase []byte) bool
}

func (a *TerminalAuthenticator) Authenticate(ctx context.Context) (Decision, error) {
	if err := ctx.Err(); err != nil {
		return DecisionCancelled, err
	}
	if !term.IsTerminal(a.Fd) {
		return DecisionDenied, fmt.Errorf("passphrase prompt needs a terminal")
	}

	prompt := a.Prompt
	if prompt == "" {
		prompt = "Passphrase: "
	}
	fmt.Fprint(a.Out, prompt)
	passphrase, err := term.ReadPassword(a.Fd)
	fmt.Fprintln(a.Out)
	if err != nil {
		return DecisionCancelled, fmt.Errorf("read passphrase: %w", err)
	}
	defer Zero(passphrase)

	if len(passphrase) == 0 {
		return DecisionCancelled, nil
	}
	if a.Verify == nil || !a.Verify(passphrase) {
		return DecisionDenied, nil
	}
	return DecisionGranted, nil
}

// StaticAuthenticator returns a fixed decision and counts calls.
type StaticAuthenticator struct {
	mu       sync.Mutex
	decision Decision
	calls    int
}

func NewStaticAuthenticator(d Decision) *StaticAuthenticator {
	return &StaticAuthenticator{decision: d}
}

func (a *StaticAuthenticator) Authenticate(ctx context.Context) (Decision, error) {
	if err := ctx.Err(); err != nil {
		return DecisionCancelled, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	return a.decision, nil
}

func (a *StaticAuthenticator) Set(d Decision) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.decision = d
}

func (a *StaticAuthenticator) Calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}
