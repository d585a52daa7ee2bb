// Package keyring holds key material and exposes it only through address
// derivation and signing capabilities.
//
// Two families are supported: secp256k1 (EVM accounts, BIP-32/BIP-44) and
// ed25519 (POKT accounts, SLIP-0010). Each family has a Derivable variant
// backed by a BIP-39 mnemonic that can mint further addresses, and a Fixed
// variant holding exactly one raw private key.
package keyring

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// KeyType is the signature scheme of a keyring.
type KeyType string

const (
	KeyTypeSecp256k1 KeyType = "secp256k1"
	KeyTypeEd25519   KeyType = "ed25519"
)

// Variant distinguishes mnemonic-backed keyrings from single-key ones.
type Variant string

const (
	VariantDerivable Variant = "derivable"
	VariantFixed     Variant = "fixed"
)

var (
	// ErrUnsupportedKeyType is returned for an unknown KeyType.
	ErrUnsupportedKeyType = errors.New("unsupported key type")

	// ErrInvalidMnemonic is returned when a recovery phrase fails BIP-39 validation.
	ErrInvalidMnemonic = errors.New("invalid mnemonic")

	// ErrInvalidPath is returned when a derivation path cannot be parsed or is
	// not usable by the key type.
	ErrInvalidPath = errors.New("invalid derivation path")

	// ErrInvalidPrivateKey is returned when raw key material is malformed.
	ErrInvalidPrivateKey = errors.New("invalid private key")

	// ErrAddressNotFound is returned when the keyring does not own an address.
	ErrAddressNotFound = errors.New("address not found in keyring")

	// ErrUnsupportedOperation is returned when a signing capability does not
	// apply to the key type.
	ErrUnsupportedOperation = errors.New("operation not supported by key type")

	// ErrDestroyed is returned after a keyring has been wiped.
	ErrDestroyed = errors.New("keyring destroyed")

	// ErrUserRejected is the classification a signer returns when a human
	// declined the request. Software keyrings never produce it; hardware
	// signers plugged in behind the same interface do.
	ErrUserRejected = errors.New("user rejected signing request")
)

// Default base derivation paths. The account index is appended as the last
// component (hardened for ed25519).
const (
	DefaultSecp256k1Path = "m/44'/60'/0'/0"
	DefaultEd25519Path   = "m/44'/635'/0'/0'"
)

// Keyring is a container of key material that can sign for the addresses it
// owns.
type Keyring interface {
	Fingerprint() string
	KeyType() KeyType
	Variant() Variant

	// Addresses returns every address in derivation order.
	Addresses() []string
	HasAddress(address string) bool
	PublicKey(address string) ([]byte, error)
	ExportPrivateKey(address string) (string, error)

	// SignTransaction signs an EVM transaction and returns its binary encoding.
	SignTransaction(address string, tx *types.Transaction, chainID *big.Int) ([]byte, error)
	// SignTypedData signs EIP-712 data. The EIP712Domain type is rebuilt
	// from the domain and must not be supplied in td.Types.
	SignTypedData(address string, td apitypes.TypedData) ([]byte, error)
	// PersonalSign signs message with the family's plain message scheme.
	PersonalSign(address string, message []byte) ([]byte, error)
	// SignBytes signs raw bytes (ed25519 only).
	SignBytes(address string, message []byte) ([]byte, error)

	// Record returns the serializable form, including secret material.
	Record() Record
	// Destroy zeroes secret material. The keyring is unusable afterwards.
	Destroy()
}

// Derivable is a keyring that can mint additional addresses.
type Derivable interface {
	Keyring
	DeriveAddress() (string, error)
	// Index returns the derivation index of address.
	Index(address string) (int, bool)
}

// Record is the serialized form of a keyring inside the vault payload.
type Record struct {
	Type             KeyType `json:"type"`
	Variant          Variant `json:"variant"`
	Mnemonic         string  `json:"mnemonic,omitempty"`
	Seed             string  `json:"seed,omitempty"` // hex BIP-39 seed; legacy records only
	Path             string  `json:"path,omitempty"`
	NumberOfAccounts int     `json:"numberOfAccounts,omitempty"`
	PrivateKey       string  `json:"privateKey,omitempty"`
	Fingerprint      string  `json:"fingerprint,omitempty"`
}

// SeedIdentity returns the value that groups keyrings built from the same
// underlying material: the mnemonic, else the private key, else the
// fingerprint for legacy records that carry neither.
func (r Record) SeedIdentity() string {
	switch {
	case r.Mnemonic != "":
		return "mnemonic:" + NormalizeMnemonic(r.Mnemonic)
	case r.PrivateKey != "":
		k := strings.ToLower(strings.TrimPrefix(r.PrivateKey, "0x"))
		// 64-byte ed25519 keys are seed||pub; group on the seed half.
		if len(k) > 64 {
			k = k[:64]
		}
		return "key:" + k
	default:
		return "fingerprint:" + r.Fingerprint
	}
}

// FromRecord rebuilds a keyring from its serialized form.
func FromRecord(r Record) (Keyring, error) {
	fam, err := familyFor(r.Type)
	if err != nil {
		return nil, err
	}

	switch r.Variant {
	case VariantDerivable:
		var seed []byte
		var mnemonic []byte
		switch {
		case r.Mnemonic != "":
			mnemonic = []byte(NormalizeMnemonic(r.Mnemonic))
			seed, err = seedFromMnemonic(string(mnemonic))
		case r.Seed != "":
			seed, err = hex.DecodeString(r.Seed)
		default:
			err = errors.New("derivable record has no seed material")
		}
		if err != nil {
			return nil, fmt.Errorf("restore %s keyring: %w", r.Type, err)
		}
		n := r.NumberOfAccounts
		if n < 1 {
			n = 1
		}
		return newDerivable(fam, mnemonic, seed, r.Path, n, r.Fingerprint)
	case VariantFixed:
		raw, err := decodeHexKey(r.PrivateKey)
		if err != nil {
			return nil, err
		}
		return newFixed(fam, raw, r.Fingerprint)
	default:
		return nil, fmt.Errorf("unknown keyring variant %q", r.Variant)
	}
}

// NewDerivable creates a mnemonic-backed keyring. An empty path selects the
// family default. One address is derived up front.
func NewDerivable(keyType KeyType, mnemonic, path string) (Derivable, error) {
	fam, err := familyFor(keyType)
	if err != nil {
		return nil, err
	}
	mnemonic = NormalizeMnemonic(mnemonic)
	seed, err := seedFromMnemonic(mnemonic)
	if err != nil {
		return nil, err
	}
	return newDerivable(fam, []byte(mnemonic), seed, path, 1, "")
}

// NewFixed creates a single-key keyring from hex encoded key material.
func NewFixed(keyType KeyType, privateKeyHex string) (Keyring, error) {
	fam, err := familyFor(keyType)
	if err != nil {
		return nil, err
	}
	raw, err := decodeHexKey(privateKeyHex)
	if err != nil {
		return nil, err
	}
	return newFixed(fam, raw, "")
}

// ParseKeyType converts s to a KeyType.
func ParseKeyType(s string) (KeyType, error) {
	switch KeyType(strings.ToLower(s)) {
	case KeyTypeSecp256k1:
		return KeyTypeSecp256k1, nil
	case KeyTypeEd25519:
		return KeyTypeEd25519, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedKeyType, s)
	}
}

// KeyTypes lists every supported family in a stable order.
func KeyTypes() []KeyType {
	return []KeyType{KeyTypeSecp256k1, KeyTypeEd25519}
}

// fingerprint is the content hash that identifies a keyring within a vault.
func fingerprint(keyType KeyType, variant Variant, path string, material []byte) string {
	h := sha256.New()
	h.Write([]byte(keyType))
	h.Write([]byte{'|'})
	h.Write([]byte(variant))
	h.Write([]byte{'|'})
	h.Write([]byte(path))
	h.Write([]byte{'|'})
	h.Write(material)
	return hex.EncodeToString(h.Sum(nil)[:16])
}

func decodeHexKey(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: not hex", ErrInvalidPrivateKey)
	}
	return raw, nil
}

func sameAddress(a, b string) bool {
	return strings.EqualFold(strings.TrimPrefix(a, "0x"), strings.TrimPrefix(b, "0x"))
}
