package keyring

import (
	"bytes"
	"crypto/ed25519"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
)

// slip10Curve is the HMAC key for the SLIP-0010 ed25519 master node.
var slip10Curve = []byte("ed25519 seed")

type ed25519Family struct{}

func (ed25519Family) keyType() KeyType    { return KeyTypeEd25519 }
func (ed25519Family) defaultPath() string { return DefaultEd25519Path }

// SLIP-0010 ed25519 only defines hardened children.
func (ed25519Family) validatePath(components []uint32) error {
	for _, c := range components {
		if c < hdkeychain.HardenedKeyStart {
			return fmt.Errorf("%w: ed25519 paths must be fully hardened", ErrInvalidPath)
		}
	}
	return nil
}

func (ed25519Family) derive(seed []byte, base []uint32, index uint32) (privateKey, error) {
	if index >= hdkeychain.HardenedKeyStart {
		return nil, fmt.Errorf("%w: index %d out of range", ErrInvalidPath, index)
	}

	key, chain := slip10Master(seed)
	for _, c := range append(append([]uint32{}, base...), index+hdkeychain.HardenedKeyStart) {
		nextKey, nextChain := slip10Child(key, chain, c)
		zero(key)
		zero(chain)
		key, chain = nextKey, nextChain
	}
	defer zero(chain)
	defer zero(key)

	return ed25519Family{}.fromRaw(key)
}

func slip10Master(seed []byte) (key, chain []byte) {
	mac := hmac.New(sha512.New, slip10Curve)
	mac.Write(seed)
	sum := mac.Sum(nil)
	return sum[:32], sum[32:]
}

func slip10Child(key, chain []byte, index uint32) ([]byte, []byte) {
	data := make([]byte, 0, 1+len(key)+4)
	data = append(data, 0x00)
	data = append(data, key...)
	data = binary.BigEndian.AppendUint32(data, index)
	defer zero(data)

	mac := hmac.New(sha512.New, chain)
	mac.Write(data)
	sum := mac.Sum(nil)
	return sum[:32], sum[32:]
}

// fromRaw accepts a 32-byte seed or a 64-byte seed||public key.
func (ed25519Family) fromRaw(raw []byte) (privateKey, error) {
	switch len(raw) {
	case ed25519.SeedSize:
		return &edKey{priv: ed25519.NewKeyFromSeed(raw)}, nil
	case ed25519.PrivateKeySize:
		priv := ed25519.NewKeyFromSeed(raw[:ed25519.SeedSize])
		if !bytes.Equal(priv[ed25519.SeedSize:], raw[ed25519.SeedSize:]) {
			zero(priv)
			return nil, fmt.Errorf("%w: public half does not match seed", ErrInvalidPrivateKey)
		}
		return &edKey{priv: priv}, nil
	default:
		return nil, fmt.Errorf("%w: ed25519 keys are 32 or 64 bytes, got %d", ErrInvalidPrivateKey, len(raw))
	}
}

func (ed25519Family) identity(raw []byte) []byte {
	if len(raw) > ed25519.SeedSize {
		return raw[:ed25519.SeedSize]
	}
	return raw
}

// edKey is a POKT account key.
type edKey struct {
	priv ed25519.PrivateKey
}

// address is the lowercase hex of the first 20 bytes of SHA-256(pubkey).
func (k *edKey) address() string {
	sum := sha256.Sum256(k.publicKey())
	return hex.EncodeToString(sum[:20])
}

func (k *edKey) publicKey() []byte {
	return bytes.Clone(k.priv[ed25519.SeedSize:])
}

func (k *edKey) export() string { return hex.EncodeToString(k.priv) }

func (k *edKey) destroy() {
	zero(k.priv)
	k.priv = nil
}
