package session

import (
	"context"
	"fmt"

	"github.com/sendnodes-io/sendwallet-sub000/internal/crypto"
	"github.com/sendnodes-io/sendwallet-sub000/internal/events"
	"github.com/sendnodes-io/sendwallet-sub000/internal/keyring"
	"github.com/sendnodes-io/sendwallet-sub000/internal/logging"
	"github.com/sendnodes-io/sendwallet-sub000/internal/registry"
	"github.com/sendnodes-io/sendwallet-sub000/internal/vault"
)

// GetKeyrings lists keyrings with visible addresses. It is empty while
// locked and does not count as keyring activity.
func (m *Manager) GetKeyrings() []registry.Info {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.unlocked() {
		return []registry.Info{}
	}
	return m.registry.Keyrings()
}

// KeyringMetadata returns per-fingerprint metadata; empty while locked.
func (m *Manager) KeyringMetadata() map[string]registry.Metadata {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.unlocked() {
		return map[string]registry.Metadata{}
	}
	return m.registry.Metadata()
}

// GenerateNewKeyring returns a fresh 256-bit mnemonic and the fingerprint it
// will have once imported. Nothing is stored.
func (m *Manager) GenerateNewKeyring(ctx context.Context, strength int, keyType keyring.KeyType) (registry.Generated, error) {
	var gen registry.Generated
	err := m.guard(ctx, func(reg *registry.Registry) error {
		var err error
		gen, err = reg.Generate(strength, keyType)
		return err
	})
	return gen, err
}

// ImportKeyring adds derivable keyrings built from mnemonic and persists.
func (m *Manager) ImportKeyring(ctx context.Context, mnemonic string, source registry.Source, path string, keyType keyring.KeyType) ([]string, error) {
	ctx = logging.WithOperation(ctx, "import_keyring")
	var fps []string
	err := m.mutate(ctx, func(reg *registry.Registry) error {
		var err error
		fps, err = reg.ImportMnemonic(mnemonic, source, path, keyType)
		return err
	})
	if err != nil {
		return nil, err
	}
	logging.Logger(ctx).Info("keyring imported", "fingerprints", fps, "source", source)
	return fps, nil
}

// ImportPrivateKey adds a fixed keyring and persists.
func (m *Manager) ImportPrivateKey(ctx context.Context, privateKey string, keyType keyring.KeyType, source registry.Source) (string, error) {
	ctx = logging.WithOperation(ctx, "import_private_key")
	var fp string
	err := m.mutate(ctx, func(reg *registry.Registry) error {
		var err error
		fp, err = reg.ImportPrivateKey(privateKey, keyType, source)
		return err
	})
	if err != nil {
		return "", err
	}
	logging.Logger(ctx).Info("private key imported", "fingerprint", fp, "key_type", keyType)
	return fp, nil
}

// DeriveAddress reuses the lowest hidden address of the keyring or mints a
// new one, and persists.
func (m *Manager) DeriveAddress(ctx context.Context, fingerprint string) (string, error) {
	ctx = logging.WithOperation(ctx, "derive_address")
	var (
		addr    string
		keyType keyring.KeyType
	)
	err := m.mutate(ctx, func(reg *registry.Registry) error {
		var err error
		addr, _, err = reg.DeriveAddress(fingerprint)
		if err != nil {
			return err
		}
		k, err := reg.Find(addr)
		if err != nil {
			return err
		}
		keyType = k.KeyType()
		return nil
	}, func() events.Event { return events.Derived(addr, keyType) })
	if err != nil {
		return "", err
	}
	return addr, nil
}

// HideAccount hides address, removing its keyring when no visible address
// remains, and persists.
func (m *Manager) HideAccount(ctx context.Context, address string) error {
	ctx = logging.WithOperation(ctx, "hide_account")
	var removed bool
	err := m.mutate(ctx, func(reg *registry.Registry) error {
		var err error
		removed, err = reg.Hide(address)
		return err
	})
	if err != nil {
		return err
	}
	logging.Logger(ctx).Info("account hidden", "address", address, "keyring_removed", removed)
	return nil
}

// RemoveKeyring deletes a keyring with its metadata and hidden flags, and
// persists.
func (m *Manager) RemoveKeyring(ctx context.Context, fingerprint string) error {
	ctx = logging.WithOperation(ctx, "remove_keyring")
	err := m.mutate(ctx, func(reg *registry.Registry) error {
		return reg.Remove(fingerprint)
	})
	if err != nil {
		return err
	}
	logging.Logger(ctx).Info("keyring removed", "fingerprint", fingerprint)
	return nil
}

// ExportPrivateKey returns the hex private key behind address.
func (m *Manager) ExportPrivateKey(ctx context.Context, address string) (string, error) {
	var key string
	err := m.guard(ctx, func(reg *registry.Registry) error {
		var err error
		key, err = reg.ExportPrivateKey(address)
		return err
	})
	if err == nil {
		logging.Logger(ctx).Warn("private key exported", "address", address)
	}
	return key, err
}

// WithKeyring runs fn with the keyring that owns address while holding the
// session. fn must not retain k.
func (m *Manager) WithKeyring(ctx context.Context, address string, fn func(k keyring.Keyring) error) error {
	return m.guard(ctx, func(reg *registry.Registry) error {
		k, err := reg.Find(address)
		if err != nil {
			return err
		}
		return fn(k)
	})
}

// guard runs a read-only operation on the unlocked registry and counts it
// as keyring activity when it succeeds.
func (m *Manager) guard(ctx context.Context, fn func(reg *registry.Registry) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.unlocked() {
		return ErrNotUnlocked
	}
	if err := fn(m.registry); err != nil {
		return err
	}
	m.lastKeyringActivity = m.now()
	m.saveCache(ctx)
	return nil
}

// mutate applies fn to a copy of the registry, persists the copy and only
// then swaps it in. A failure at any step leaves the session unchanged. The
// registry snapshot and then each follow event are published before mu is
// released.
func (m *Manager) mutate(ctx context.Context, fn func(reg *registry.Registry) error, follow ...func() events.Event) error {
	m.mu.Lock()

	if !m.unlocked() {
		m.mu.Unlock()
		return ErrNotUnlocked
	}

	next, err := m.registry.Clone()
	if err != nil {
		m.mu.Unlock()
		return fmt.Errorf("copy registry: %w", err)
	}
	if err := fn(next); err != nil {
		next.Destroy()
		m.mu.Unlock()
		return err
	}
	if err := m.persist(ctx, next); err != nil {
		next.Destroy()
		m.mu.Unlock()
		return err
	}

	m.registry.Destroy()
	m.registry = next
	m.lastKeyringActivity = m.now()
	m.saveCache(ctx)
	m.observe()
	m.bus.Publish(m.snapshot())
	for _, f := range follow {
		m.bus.Publish(f())
	}
	m.mu.Unlock()
	return nil
}

// persist encrypts reg under the session key and appends it to the log.
// Must be called with mu held.
func (m *Manager) persist(ctx context.Context, reg *registry.Registry) error {
	buf, err := m.key.Open()
	if err != nil {
		return fmt.Errorf("open session key: %w", err)
	}
	defer buf.Destroy()

	v, err := vault.Encrypt(reg.Payload(), buf.Bytes(), m.salt)
	if err != nil {
		return fmt.Errorf("encrypt vault: %w", err)
	}
	if _, err := m.vaults.Append(ctx, v); err != nil {
		return err
	}
	return nil
}

// keyMatches reports whether key equals the session key. Must be called
// with mu held.
func (m *Manager) keyMatches(key []byte) bool {
	buf, err := m.key.Open()
	if err != nil {
		return false
	}
	defer buf.Destroy()
	return crypto.CompareTokens(buf.Bytes(), key)
}
