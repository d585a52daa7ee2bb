package keyring

import "fmt"

// privateKey is one account's key inside a keyring.
type privateKey interface {
	address() string
	publicKey() []byte
	export() string
	destroy()
}

// family implements a key type's derivation and raw key handling.
type family interface {
	keyType() KeyType
	defaultPath() string
	validatePath(components []uint32) error
	// derive returns the key at base/index.
	derive(seed []byte, base []uint32, index uint32) (privateKey, error)
	fromRaw(raw []byte) (privateKey, error)
	// identity returns the bytes a fixed key is fingerprinted on.
	identity(raw []byte) []byte
}

func familyFor(t KeyType) (family, error) {
	switch t {
	case KeyTypeSecp256k1:
		return secp256k1Family{}, nil
	case KeyTypeEd25519:
		return ed25519Family{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedKeyType, t)
	}
}
