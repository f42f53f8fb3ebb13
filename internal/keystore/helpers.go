package keystore

import (
	"context"
	"errors"
	"fmt"

	"github.com/fystack/multichain-wallet/pkg/common/constant"
	"github.com/fystack/multichain-wallet/pkg/common/enum"
	"github.com/fystack/multichain-wallet/pkg/common/types"
)

const (
	FieldMnemonic   = "mnemonic"
	FieldPrivateKey = "private_key"
	FieldPublicKey  = "public_key"
	FieldAddress    = "address"
	FieldChain      = "chain"

	FieldUsername     = "username"
	FieldEmail        = "email"
	FieldDID          = "did"
	FieldReferralCode = "referral_code"
	FieldReferredBy   = "referred_by"
)

// WalletRef is the handle a wallet carries instead of its keys.
func WalletRef(walletID string) string {
	return constant.WalletSecretPrefix + "/" + walletID
}

func UserRef(userID string) string {
	return constant.UserSecretPrefix + "/" + userID
}

func fieldName(ref, field string) string {
	return ref + "/" + field
}

type WalletSecrets struct {
	Mnemonic   []byte
	PrivateKey []byte
	PublicKey  string
	Address    string
	Chain      enum.Chain
}

// Zero wipes the mnemonic and private key.
func (w *WalletSecrets) Zero() {
	Zero(w.Mnemonic)
	Zero(w.PrivateKey)
}

type UserSecrets struct {
	Username     string
	Email        string
	DID          string
	ReferralCode string
	ReferredBy   string
}

// StoreWalletSecrets seals every field under WalletRef(walletID) and returns
// the ref.
func (s *Store) StoreWalletSecrets(ctx context.Context, walletID string, w WalletSecrets) (string, error) {
	ref := WalletRef(walletID)
	fields := []struct {
		name  string
		value []byte
	}{
		{FieldMnemonic, w.Mnemonic},
		{FieldPrivateKey, w.PrivateKey},
		{FieldPublicKey, []byte(w.PublicKey)},
		{FieldAddress, []byte(w.Address)},
		{FieldChain, []byte(w.Chain)},
	}
	for _, f := range fields {
		if err := s.Store(ctx, fieldName(ref, f.name), f.value); err != nil {
			return "", err
		}
	}
	return ref, nil
}

func (s *Store) GetWalletSecrets(ctx context.Context, ref string) (WalletSecrets, error) {
	var out WalletSecrets
	var err error
	if out.Mnemonic, err = s.Retrieve(ctx, fieldName(ref, FieldMnemonic)); err != nil {
		return WalletSecrets{}, err
	}
	if out.PrivateKey, err = s.Retrieve(ctx, fieldName(ref, FieldPrivateKey)); err != nil {
		out.Zero()
		return WalletSecrets{}, err
	}
	rest := []struct {
		name string
		dst  *string
	}{
		{FieldPublicKey, &out.PublicKey},
		{FieldAddress, &out.Address},
	}
	for _, f := range rest {
		v, err := s.Retrieve(ctx, fieldName(ref, f.name))
		if err != nil {
			out.Zero()
			return WalletSecrets{}, err
		}
		*f.dst = string(v)
	}
	chain, err := s.Retrieve(ctx, fieldName(ref, FieldChain))
	if err != nil {
		out.Zero()
		return WalletSecrets{}, err
	}
	out.Chain = enum.Chain(chain)
	return out, nil
}

// PrivateKey returns only the signing key under ref.
func (s *Store) PrivateKey(ctx context.Context, ref string) ([]byte, error) {
	return s.Retrieve(ctx, fieldName(ref, FieldPrivateKey))
}

func (s *Store) RemoveWalletSecrets(ctx context.Context, ref string) error {
	return s.RemovePrefix(ctx, ref+"/")
}

// StoreUserSecrets seals the profile fields. Empty optional fields are skipped.
func (s *Store) StoreUserSecrets(ctx context.Context, userID string, u UserSecrets) error {
	if u.Username == "" || u.ReferralCode == "" {
		return fmt.Errorf("username and referral code are required")
	}
	ref := UserRef(userID)
	fields := map[string]string{
		FieldUsername:     u.Username,
		FieldEmail:        u.Email,
		FieldDID:          u.DID,
		FieldReferralCode: u.ReferralCode,
		FieldReferredBy:   u.ReferredBy,
	}
	for name, v := range fields {
		if v == "" {
			continue
		}
		if err := s.Store(ctx, fieldName(ref, name), []byte(v)); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) GetUserSecrets(ctx context.Context, userID string) (UserSecrets, error) {
	ref := UserRef(userID)
	read := func(field string, required bool) (string, error) {
		v, err := s.Retrieve(ctx, fieldName(ref, field))
		if err != nil {
			if !required && errors.Is(err, types.ErrSecretNotFound) {
				return "", nil
			}
			return "", err
		}
		return string(v), nil
	}

	var u UserSecrets
	var err error
	if u.Username, err = read(FieldUsername, true); err != nil {
		return UserSecrets{}, err
	}
	if u.ReferralCode, err = read(FieldReferralCode, true); err != nil {
		return UserSecrets{}, err
	}
	if u.Email, err = read(FieldEmail, false); err != nil {
		return UserSecrets{}, err
	}
	if u.DID, err = read(FieldDID, false); err != nil {
		return UserSecrets{}, err
	}
	if u.ReferredBy, err = read(FieldReferredBy, false); err != nil {
		return UserSecrets{}, err
	}
	return u, nil
}
