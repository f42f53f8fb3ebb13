package solana

import (
	"crypto/ed25519"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha512"
	"encoding/binary"
	"fmt"

	"github.com/fystack/multichain-wallet/internal/rpc"
	"github.com/fystack/multichain-wallet/pkg/common/types"
	"github.com/mr-tron/base58"
)

const (
	hardened     uint32 = 0x80000000
	purposeBIP44        = hardened + 44
	coinTypeSol         = hardened + 501
)

func (c *Client) CreateKeypair() (rpc.Keypair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return rpc.Keypair{}, fmt.Errorf("generate key: %w", err)
	}
	return keypairOf(pub, priv), nil
}

// KeypairFromSeed derives m/44'/501'/index'/0' with SLIP-0010, the path
// used by common Solana wallets.
func (c *Client) KeypairFromSeed(seed []byte, index uint32) (rpc.Keypair, error) {
	if len(seed) < 16 {
		return rpc.Keypair{}, fmt.Errorf("seed too short: %d bytes", len(seed))
	}
	key, chain := slip10Master(seed)
	for _, idx := range []uint32{purposeBIP44, coinTypeSol, hardened + index, hardened} {
		key, chain = slip10Child(key, chain, idx)
	}
	priv := ed25519.NewKeyFromSeed(key)
	return keypairOf(priv.Public().(ed25519.PublicKey), priv), nil
}

func (c *Client) AddressFromKey(key []byte) (string, error) {
	priv, err := privateKeyFromBytes(key)
	if err != nil {
		return "", err
	}
	return base58.Encode(priv.Public().(ed25519.PublicKey)), nil
}

func (c *Client) ValidateAddress(address string) bool {
	_, err := decodePubkey(address)
	return err == nil
}

// privateKeyFromBytes accepts a 64-byte ed25519 key or its 32-byte seed.
func privateKeyFromBytes(key []byte) (ed25519.PrivateKey, error) {
	switch len(key) {
	case ed25519.PrivateKeySize:
		return ed25519.PrivateKey(key), nil
	case ed25519.SeedSize:
		return ed25519.NewKeyFromSeed(key), nil
	default:
		return nil, fmt.Errorf("%w: invalid ed25519 key length %d", types.ErrSigning, len(key))
	}
}

func keypairOf(pub ed25519.PublicKey, priv ed25519.PrivateKey) rpc.Keypair {
	return rpc.Keypair{
		Address:    base58.Encode(pub),
		PrivateKey: []byte(priv),
		PublicKey:  []byte(pub),
	}
}

func slip10Master(seed []byte) ([]byte, []byte) {
	mac := hmac.New(sha512.New, []byte("ed25519 seed"))
	mac.Write(seed)
	sum := mac.Sum(nil)
	return sum[:32], sum[32:]
}

// slip10Child only supports hardened indices, the only kind ed25519 allows.
func slip10Child(key, chainCode []byte, index uint32) ([]byte, []byte) {
	data := make([]byte, 0, 1+32+4)
	data = append(data, 0)
	data = append(data, key...)
	data = binary.BigEndian.AppendUint32(data, index)

	mac := hmac.New(sha512.New, chainCode)
	mac.Write(data)
	sum := mac.Sum(nil)
	return sum[:32], sum[32:]
}
