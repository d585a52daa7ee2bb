package keyring

import (
	"fmt"
)

// derivableKeyring mints addresses from a BIP-39 seed along a base path.
type derivableKeyring struct {
	base
	mnemonic []byte
	seed     []byte
	path     string
	pathBase []uint32
}

func newDerivable(fam family, mnemonic, seed []byte, path string, accounts int, fp string) (*derivableKeyring, error) {
	if path == "" {
		path = fam.defaultPath()
	}
	components, err := ParsePath(path)
	if err != nil {
		return nil, err
	}
	if err := fam.validatePath(components); err != nil {
		return nil, err
	}
	path = FormatPath(components)

	if fp == "" {
		material := mnemonic
		if len(material) == 0 {
			material = seed
		}
		fp = fingerprint(fam.keyType(), VariantDerivable, path, material)
	}

	k := &derivableKeyring{
		base:     base{fam: fam, fingerprint: fp},
		mnemonic: mnemonic,
		seed:     seed,
		path:     path,
		pathBase: components,
	}
	for i := 0; i < accounts; i++ {
		if _, err := k.DeriveAddress(); err != nil {
			k.Destroy()
			return nil, err
		}
	}
	return k, nil
}

func (k *derivableKeyring) Variant() Variant { return VariantDerivable }

// DeriveAddress mints the next address in sequence.
func (k *derivableKeyring) DeriveAddress() (string, error) {
	if k.destroyed {
		return "", ErrDestroyed
	}
	pk, err := k.fam.derive(k.seed, k.pathBase, uint32(len(k.keys)))
	if err != nil {
		return "", fmt.Errorf("derive %s address %d: %w", k.KeyType(), len(k.keys), err)
	}
	k.keys = append(k.keys, pk)
	return pk.address(), nil
}

func (k *derivableKeyring) Index(address string) (int, bool) {
	for i, pk := range k.keys {
		if sameAddress(pk.address(), address) {
			return i, true
		}
	}
	return 0, false
}

func (k *derivableKeyring) Record() Record {
	r := Record{
		Type:             k.KeyType(),
		Variant:          VariantDerivable,
		Path:             k.path,
		NumberOfAccounts: len(k.keys),
		Fingerprint:      k.fingerprint,
	}
	if len(k.mnemonic) > 0 {
		r.Mnemonic = string(k.mnemonic)
	} else {
		r.Seed = fmt.Sprintf("%x", k.seed)
	}
	return r
}

func (k *derivableKeyring) Destroy() {
	k.base.Destroy()
	zero(k.mnemonic)
	zero(k.seed)
	k.mnemonic = nil
	k.seed = nil
}
