package evm

import (
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/fystack/multichain-wallet/internal/rpc"
	"github.com/fystack/multichain-wallet/pkg/common/types"
	"github.com/tyler-smith/go-bip32"
)

// BIP-44 path m/44'/60'/0'/0/index
const (
	purposeBIP44    = bip32.FirstHardenedChild + 44
	coinTypeEther   = bip32.FirstHardenedChild + 60
	accountDefault  = bip32.FirstHardenedChild + 0
	changeExternal  = 0
	privateKeyBytes = 32
)

func (c *Client) CreateKeypair() (rpc.Keypair, error) {
	priv, err := crypto.GenerateKey()
	if err != nil {
		return rpc.Keypair{}, fmt.Errorf("generate key: %w", err)
	}
	return keypairOf(priv), nil
}

// KeypairFromSeed derives the external key at index from a BIP-39 seed.
func (c *Client) KeypairFromSeed(seed []byte, index uint32) (rpc.Keypair, error) {
	key, err := bip32.NewMasterKey(seed)
	if err != nil {
		return rpc.Keypair{}, fmt.Errorf("create master key: %w", err)
	}
	for _, idx := range []uint32{purposeBIP44, coinTypeEther, accountDefault, changeExternal, index} {
		if key, err = key.NewChildKey(idx); err != nil {
			return rpc.Keypair{}, fmt.Errorf("derive child %d: %w", idx, err)
		}
	}

	raw := key.Key
	if len(raw) == privateKeyBytes+1 && raw[0] == 0 {
		raw = raw[1:]
	}
	priv, err := privateKeyFromBytes(raw)
	if err != nil {
		return rpc.Keypair{}, err
	}
	return keypairOf(priv), nil
}

func (c *Client) AddressFromKey(key []byte) (string, error) {
	priv, err := privateKeyFromBytes(key)
	if err != nil {
		return "", err
	}
	return addressOf(priv), nil
}

func privateKeyFromBytes(key []byte) (*ecdsa.PrivateKey, error) {
	priv, err := crypto.ToECDSA(key)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid private key: %w", types.ErrSigning, err)
	}
	return priv, nil
}

func keypairOf(priv *ecdsa.PrivateKey) rpc.Keypair {
	return rpc.Keypair{
		Address:    addressOf(priv),
		PrivateKey: crypto.FromECDSA(priv),
		PublicKey:  crypto.CompressPubkey(&priv.PublicKey),
	}
}

func addressOf(priv *ecdsa.PrivateKey) string {
	return crypto.PubkeyToAddress(priv.PublicKey).Hex()
}

func sameAddress(a, b string) bool {
	return strings.EqualFold(a, b)
}
