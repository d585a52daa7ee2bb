package keyring

import (
	"crypto/ed25519"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// base carries the accounts and signing behaviour shared by both variants.
type base struct {
	fam         family
	fingerprint string
	keys        []privateKey
	destroyed   bool
}

func (b *base) Fingerprint() string { return b.fingerprint }
func (b *base) KeyType() KeyType    { return b.fam.keyType() }

func (b *base) Addresses() []string {
	out := make([]string, len(b.keys))
	for i, k := range b.keys {
		out[i] = k.address()
	}
	return out
}

func (b *base) HasAddress(address string) bool {
	_, err := b.key(address)
	return err == nil
}

func (b *base) key(address string) (privateKey, error) {
	if b.destroyed {
		return nil, ErrDestroyed
	}
	for _, k := range b.keys {
		if sameAddress(k.address(), address) {
			return k, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrAddressNotFound, address)
}

func (b *base) secp(address string) (*secpKey, error) {
	k, err := b.key(address)
	if err != nil {
		return nil, err
	}
	sk, ok := k.(*secpKey)
	if !ok {
		return nil, fmt.Errorf("%w: %s keyring", ErrUnsupportedOperation, b.KeyType())
	}
	return sk, nil
}

func (b *base) PublicKey(address string) ([]byte, error) {
	k, err := b.key(address)
	if err != nil {
		return nil, err
	}
	return k.publicKey(), nil
}

func (b *base) ExportPrivateKey(address string) (string, error) {
	k, err := b.key(address)
	if err != nil {
		return "", err
	}
	return k.export(), nil
}

func (b *base) SignTransaction(address string, tx *types.Transaction, chainID *big.Int) ([]byte, error) {
	k, err := b.secp(address)
	if err != nil {
		return nil, err
	}
	signed, err := types.SignTx(tx, types.NewLondonSigner(chainID), k.pk)
	if err != nil {
		return nil, fmt.Errorf("sign transaction: %w", err)
	}
	return signed.MarshalBinary()
}

func (b *base) SignTypedData(address string, td apitypes.TypedData) ([]byte, error) {
	k, err := b.secp(address)
	if err != nil {
		return nil, err
	}

	full, err := completeTypedData(td)
	if err != nil {
		return nil, err
	}
	hash, _, err := apitypes.TypedDataAndHash(full)
	if err != nil {
		return nil, fmt.Errorf("hash typed data: %w", err)
	}
	return signHash(k, hash)
}

// PersonalSign produces an EIP-191 signature for secp256k1 keys and a plain
// ed25519 signature over the message for ed25519 keys.
func (b *base) PersonalSign(address string, message []byte) ([]byte, error) {
	k, err := b.key(address)
	if err != nil {
		return nil, err
	}
	switch k := k.(type) {
	case *secpKey:
		return signHash(k, accounts.TextHash(message))
	case *edKey:
		return ed25519.Sign(k.priv, message), nil
	default:
		return nil, ErrUnsupportedOperation
	}
}

func (b *base) SignBytes(address string, message []byte) ([]byte, error) {
	k, err := b.key(address)
	if err != nil {
		return nil, err
	}
	ek, ok := k.(*edKey)
	if !ok {
		return nil, fmt.Errorf("%w: %s keyring", ErrUnsupportedOperation, b.KeyType())
	}
	return ed25519.Sign(ek.priv, message), nil
}

func (b *base) Destroy() {
	for _, k := range b.keys {
		k.destroy()
	}
	b.keys = nil
	b.destroyed = true
}

// signHash returns r||s||v with v in {27, 28}.
func signHash(k *secpKey, hash []byte) ([]byte, error) {
	sig, err := crypto.Sign(hash, k.pk)
	if err != nil {
		return nil, fmt.Errorf("sign hash: %w", err)
	}
	sig[crypto.RecoveryIDOffset] += 27
	return sig, nil
}
