package keyring

// fixedKeyring holds exactly one private key and never mints addresses.
type fixedKeyring struct {
	base
	raw []byte
}

func newFixed(fam family, raw []byte, fp string) (*fixedKeyring, error) {
	pk, err := fam.fromRaw(raw)
	if err != nil {
		zero(raw)
		return nil, err
	}
	if fp == "" {
		fp = fingerprint(fam.keyType(), VariantFixed, "", fam.identity(raw))
	}
	return &fixedKeyring{
		base: base{fam: fam, fingerprint: fp, keys: []privateKey{pk}},
		raw:  raw,
	}, nil
}

func (k *fixedKeyring) Variant() Variant { return VariantFixed }

func (k *fixedKeyring) Record() Record {
	r := Record{
		Type:        k.KeyType(),
		Variant:     VariantFixed,
		Fingerprint: k.fingerprint,
	}
	if len(k.keys) > 0 {
		r.PrivateKey = k.keys[0].export()
	}
	return r
}

func (k *fixedKeyring) Destroy() {
	k.base.Destroy()
	zero(k.raw)
	k.raw = nil
}
