package keyring

import (
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

type secp256k1Family struct{}

func (secp256k1Family) keyType() KeyType    { return KeyTypeSecp256k1 }
func (secp256k1Family) defaultPath() string { return DefaultSecp256k1Path }

func (secp256k1Family) validatePath(components []uint32) error {
	if len(components) == 0 {
		return fmt.Errorf("%w: empty base path", ErrInvalidPath)
	}
	return nil
}

func (secp256k1Family) derive(seed []byte, base []uint32, index uint32) (privateKey, error) {
	if index >= hdkeychain.HardenedKeyStart {
		return nil, fmt.Errorf("%w: index %d out of range", ErrInvalidPath, index)
	}

	master, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	if err != nil {
		return nil, fmt.Errorf("master key: %w", err)
	}

	key := master
	for _, c := range append(append([]uint32{}, base...), index) {
		child, err := key.Derive(c)
		key.Zero()
		if err != nil {
			return nil, fmt.Errorf("derive child %d: %w", c, err)
		}
		key = child
	}
	defer key.Zero()

	ec, err := key.ECPrivKey()
	if err != nil {
		return nil, fmt.Errorf("extract private key: %w", err)
	}
	raw := ec.Serialize()
	ec.Zero()
	defer zero(raw)

	return secp256k1Family{}.fromRaw(raw)
}

func (secp256k1Family) fromRaw(raw []byte) (privateKey, error) {
	if len(raw) != 32 {
		return nil, fmt.Errorf("%w: secp256k1 keys are 32 bytes, got %d", ErrInvalidPrivateKey, len(raw))
	}
	pk, err := crypto.ToECDSA(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPrivateKey, err)
	}
	return &secpKey{pk: pk, addr: crypto.PubkeyToAddress(pk.PublicKey)}, nil
}

func (secp256k1Family) identity(raw []byte) []byte { return raw }

// secpKey is an EVM account key.
type secpKey struct {
	pk   *ecdsa.PrivateKey
	addr common.Address
}

// address is the EIP-55 checksummed form.
func (k *secpKey) address() string { return k.addr.Hex() }

func (k *secpKey) publicKey() []byte { return crypto.FromECDSAPub(&k.pk.PublicKey) }

func (k *secpKey) export() string { return hex.EncodeToString(crypto.FromECDSA(k.pk)) }

func (k *secpKey) destroy() {
	if k.pk != nil && k.pk.D != nil {
		k.pk.D.SetInt64(0)
	}
	k.pk = nil
}
