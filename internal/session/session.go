// Package session owns the locked/unlocked state machine, the cached vault
// key and the registry, and serializes every operation that touches them.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/awnumar/memguard"

	"github.com/sendnodes-io/sendwallet-sub000/internal/crypto"
	"github.com/sendnodes-io/sendwallet-sub000/internal/events"
	"github.com/sendnodes-io/sendwallet-sub000/internal/logging"
	"github.com/sendnodes-io/sendwallet-sub000/internal/metrics"
	"github.com/sendnodes-io/sendwallet-sub000/internal/registry"
	"github.com/sendnodes-io/sendwallet-sub000/internal/vault"
)

// Default idle limits and autolock tick.
const (
	DefaultKeyringIdleLimit = 30 * time.Minute
	DefaultOutsideIdleLimit = 30 * time.Minute
	DefaultAutolockInterval = time.Minute
)

// State is the externally visible session state.
type State string

const (
	StateUninitialized State = "uninitialized"
	StateLocked        State = "locked"
	StateUnlocked      State = "unlocked"
)

// Lock reasons, also used as metric labels.
const (
	ReasonExplicit     = "explicit"
	ReasonKeyringIdle  = "keyring_idle"
	ReasonOutsideIdle  = "outside_idle"
	ReasonInconsistent = "inconsistent"
	ReasonReset        = "reset"
)

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides the clock.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithKDFParams overrides the Argon2id cost.
func WithKDFParams(p crypto.KDFParams) Option {
	return func(m *Manager) { m.kdf = p }
}

// WithIdleLimits overrides the two autolock thresholds.
func WithIdleLimits(keyringIdle, outsideIdle time.Duration) Option {
	return func(m *Manager) {
		m.keyringIdle = keyringIdle
		m.outsideIdle = outsideIdle
	}
}

// WithCache enables the session cache.
func WithCache(c Cache) Option {
	return func(m *Manager) { m.cache = c }
}

// WithEvents publishes notifications on bus.
func WithEvents(bus *events.Bus) Option {
	return func(m *Manager) { m.bus = bus }
}

// Manager is the single owner of the session key and the registry.
//
// mu guards all state and is held across every read-mutate-persist sequence
// and every autolock check, so persistence writes happen in operation order
// and a lock never interleaves with a write. Notifications are published
// under mu as well, so subscribers observe transitions in the same order. unlockMu serializes the
// password-driven transitions whose key derivation runs outside mu.
type Manager struct {
	vaults      *vault.LogStore
	cache       Cache
	bus         *events.Bus
	kdf         crypto.KDFParams
	keyringIdle time.Duration
	outsideIdle time.Duration
	now         func() time.Time

	unlockMu sync.Mutex

	mu                  sync.Mutex
	key                 *memguard.Enclave
	salt                []byte
	registry            *registry.Registry
	lastKeyringActivity time.Time
	lastOutsideActivity time.Time
}

// NewManager creates a locked session over the vault log.
func NewManager(vaults *vault.LogStore, opts ...Option) *Manager {
	m := &Manager{
		vaults:      vaults,
		kdf:         crypto.DefaultKDFParams(),
		keyringIdle: DefaultKeyringIdleLimit,
		outsideIdle: DefaultOutsideIdleLimit,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	metrics.SessionUnlocked.Set(0)
	return m
}

// State reports the current state. Distinguishing Uninitialized from Locked
// reads the vault log.
func (m *Manager) State(ctx context.Context) (State, error) {
	if m.IsUnlocked() {
		return StateUnlocked, nil
	}
	latest, err := m.vaults.Latest(ctx)
	if err != nil {
		return "", err
	}
	if latest == nil {
		return StateUninitialized, nil
	}
	return StateLocked, nil
}

// IsUnlocked reports whether the session holds a key.
func (m *Manager) IsUnlocked() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.unlocked()
}

// unlocked must be called with mu held.
func (m *Manager) unlocked() bool {
	return m.registry != nil
}

// Activity returns the two activity timestamps; zero when unset.
func (m *Manager) Activity() (keyringActivity, outsideActivity time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastKeyringActivity, m.lastOutsideActivity
}

// Unlock derives the vault key from password and loads the registry. With
// no stored vault it initializes an empty one. A wrong password returns
// false with a nil error and changes nothing. Calling Unlock on an unlocked
// session only refreshes activity.
func (m *Manager) Unlock(ctx context.Context, password string) (bool, error) {
	ctx = logging.WithOperation(ctx, "unlock")
	log := logging.Logger(ctx)

	m.unlockMu.Lock()
	defer m.unlockMu.Unlock()

	m.mu.Lock()
	if m.unlocked() {
		now := m.now()
		m.lastKeyringActivity = now
		m.lastOutsideActivity = now
		m.saveCache(ctx)
		m.mu.Unlock()
		metrics.UnlockAttempts.WithLabelValues("already_unlocked").Inc()
		return true, nil
	}
	m.mu.Unlock()

	latest, err := m.vaults.Latest(ctx)
	if err != nil {
		metrics.UnlockAttempts.WithLabelValues("error").Inc()
		log.Error("failed to read vault log", "error", err)
		return false, err
	}

	var (
		key, salt []byte
		reg       *registry.Registry
		result    = "success"
	)
	if latest == nil {
		key, salt, err = crypto.DeriveKey([]byte(password), nil, m.kdf)
		if err != nil {
			metrics.UnlockAttempts.WithLabelValues("error").Inc()
			return false, fmt.Errorf("derive key: %w", err)
		}
		v, err := vault.Encrypt(registry.EmptyPayload(), key, salt)
		if err != nil {
			crypto.ZeroBytes(key)
			metrics.UnlockAttempts.WithLabelValues("error").Inc()
			return false, fmt.Errorf("encrypt initial vault: %w", err)
		}
		if _, err := m.vaults.Append(ctx, v); err != nil {
			crypto.ZeroBytes(key)
			metrics.UnlockAttempts.WithLabelValues("error").Inc()
			return false, err
		}
		reg = registry.New(registry.WithClock(m.now))
		result = "initialized"
	} else {
		key, salt, err = crypto.DeriveKey([]byte(password), latest.Salt, m.kdf)
		if err != nil {
			metrics.UnlockAttempts.WithLabelValues("error").Inc()
			return false, fmt.Errorf("derive key: %w", err)
		}
		payload, err := vault.Decrypt[registry.Payload](latest, key)
		switch {
		case errors.Is(err, vault.ErrAuthenticationFailure):
			crypto.ZeroBytes(key)
			metrics.UnlockAttempts.WithLabelValues("wrong_password").Inc()
			log.Warn("unlock rejected")
			return false, nil
		case errors.Is(err, vault.ErrMalformedPayload):
			crypto.ZeroBytes(key)
			metrics.UnlockAttempts.WithLabelValues("error").Inc()
			return false, fmt.Errorf("%w: %v", vault.ErrCorruptStorage, err)
		case err != nil:
			crypto.ZeroBytes(key)
			metrics.UnlockAttempts.WithLabelValues("error").Inc()
			return false, err
		}
		reg, err = registry.Load(payload, registry.WithClock(m.now))
		if err != nil {
			crypto.ZeroBytes(key)
			metrics.UnlockAttempts.WithLabelValues("error").Inc()
			return false, fmt.Errorf("%w: %v", vault.ErrCorruptStorage, err)
		}
	}

	m.mu.Lock()
	m.install(ctx, key, salt, reg)
	m.bus.Publish(events.LockedState(false))
	m.bus.Publish(m.snapshot())
	m.mu.Unlock()

	metrics.UnlockAttempts.WithLabelValues(result).Inc()
	log.Info("session unlocked", "result", result, "keyrings", reg.Len())
	return true, nil
}

// install moves key into guarded memory and marks the session unlocked.
// key is wiped. Must be called with mu held.
func (m *Manager) install(ctx context.Context, key, salt []byte, reg *registry.Registry) {
	m.key = memguard.NewEnclave(key)
	m.salt = salt
	m.registry = reg
	now := m.now()
	m.lastKeyringActivity = now
	m.lastOutsideActivity = now
	m.saveCache(ctx)
	m.observe()
}

// Lock wipes the in-memory key and registry. The persisted vault is not
// touched. Lock always succeeds.
func (m *Manager) Lock(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lockLocked(ctx, ReasonExplicit)
}

// lockLocked performs the transition with mu held, publishing the locked
// state when the session was unlocked, and reports whether it was.
func (m *Manager) lockLocked(ctx context.Context, reason string) bool {
	wasUnlocked := m.unlocked()

	if m.registry != nil {
		m.registry.Destroy()
	}
	m.registry = nil
	m.key = nil
	m.salt = nil
	m.lastKeyringActivity = time.Time{}
	m.lastOutsideActivity = time.Time{}
	m.clearCache(ctx)
	m.observe()

	if wasUnlocked {
		metrics.Locks.WithLabelValues(reason).Inc()
		logging.Logger(ctx).Info("session locked", "reason", reason)
		m.bus.Publish(events.LockedState(true))
	}
	return wasUnlocked
}

// MarkOutsideActivity records user presence outside the keyring. It is a
// no-op while locked.
func (m *Manager) MarkOutsideActivity(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.lastOutsideActivity.IsZero() {
		return
	}
	m.lastOutsideActivity = m.now()
	m.saveCache(ctx)
}

// CheckAutolock locks the session when either idle limit has elapsed or the
// activity state is inconsistent. It reports whether it locked.
func (m *Manager) CheckAutolock(ctx context.Context) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	reason := m.autolockReason()
	if reason == "" {
		return false
	}
	return m.lockLocked(ctx, reason)
}

// autolockReason must be called with mu held.
func (m *Manager) autolockReason() string {
	if !m.unlocked() {
		return ""
	}
	if m.lastKeyringActivity.IsZero() || m.lastOutsideActivity.IsZero() {
		return ReasonInconsistent
	}
	now := m.now()
	if now.Sub(m.lastKeyringActivity) >= m.keyringIdle {
		return ReasonKeyringIdle
	}
	if now.Sub(m.lastOutsideActivity) >= m.outsideIdle {
		return ReasonOutsideIdle
	}
	return ""
}

// Run checks autolock every interval until ctx is cancelled.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.CheckAutolock(ctx)
		}
	}
}

// Restore resumes a cached session if one exists, matches the current
// vault and has not idled out. Any problem leaves the session locked and
// the cache cleared.
func (m *Manager) Restore(ctx context.Context) (bool, error) {
	if m.cache == nil {
		return false, nil
	}
	ctx = logging.WithOperation(ctx, "restore")
	log := logging.Logger(ctx)

	m.unlockMu.Lock()
	defer m.unlockMu.Unlock()

	if m.IsUnlocked() {
		return true, nil
	}

	cached, err := m.cache.Load(ctx)
	if err != nil {
		log.Warn("session cache unreadable", "error", err)
		m.discardCache(ctx)
		return false, nil
	}
	if cached == nil || cached.SaltedKey == nil {
		return false, nil
	}
	if len(cached.SaltedKey.Key) != crypto.KeySize {
		m.discardCache(ctx)
		return false, nil
	}

	now := m.now()
	keyringAt := fromMillis(cached.LastKeyringActivity)
	outsideAt := fromMillis(cached.LastOutsideActivity)
	if keyringAt.IsZero() || outsideAt.IsZero() ||
		now.Sub(keyringAt) >= m.keyringIdle || now.Sub(outsideAt) >= m.outsideIdle {
		log.Info("cached session expired")
		m.discardCache(ctx)
		return false, nil
	}

	latest, err := m.vaults.Latest(ctx)
	if err != nil {
		return false, err
	}
	if latest == nil || !crypto.CompareTokens(latest.Salt, cached.SaltedKey.Salt) {
		m.discardCache(ctx)
		return false, nil
	}

	key := cached.SaltedKey.Key
	payload, err := vault.Decrypt[registry.Payload](latest, key)
	if err != nil {
		crypto.ZeroBytes(key)
		log.Warn("cached session key rejected", "error", err)
		m.discardCache(ctx)
		return false, nil
	}
	reg, err := registry.Load(payload, registry.WithClock(m.now))
	if err != nil {
		crypto.ZeroBytes(key)
		return false, fmt.Errorf("%w: %v", vault.ErrCorruptStorage, err)
	}

	m.mu.Lock()
	m.key = memguard.NewEnclave(key)
	m.salt = cached.SaltedKey.Salt
	m.registry = reg
	m.lastKeyringActivity = keyringAt
	m.lastOutsideActivity = outsideAt
	m.observe()
	m.bus.Publish(events.LockedState(false))
	m.bus.Publish(m.snapshot())
	m.mu.Unlock()

	log.Info("session restored", "keyrings", reg.Len())
	return true, nil
}

// ChangePassword re-encrypts the current payload under a key derived from
// newPassword with a fresh salt.
func (m *Manager) ChangePassword(ctx context.Context, oldPassword, newPassword string) error {
	ctx = logging.WithOperation(ctx, "change_password")

	m.unlockMu.Lock()
	defer m.unlockMu.Unlock()

	m.mu.Lock()
	if !m.unlocked() {
		m.mu.Unlock()
		return ErrNotUnlocked
	}
	salt := m.salt
	m.mu.Unlock()

	oldKey, _, err := crypto.DeriveKey([]byte(oldPassword), salt, m.kdf)
	if err != nil {
		return fmt.Errorf("derive old key: %w", err)
	}
	defer crypto.ZeroBytes(oldKey)

	newKey, newSalt, err := crypto.DeriveKey([]byte(newPassword), nil, m.kdf)
	if err != nil {
		return fmt.Errorf("derive new key: %w", err)
	}
	defer crypto.ZeroBytes(newKey)

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.unlocked() {
		return ErrNotUnlocked
	}
	if !m.keyMatches(oldKey) {
		return ErrWrongPassword
	}

	v, err := vault.Encrypt(m.registry.Payload(), newKey, newSalt)
	if err != nil {
		return fmt.Errorf("encrypt vault: %w", err)
	}
	if _, err := m.vaults.Append(ctx, v); err != nil {
		return err
	}

	m.key = memguard.NewEnclave(newKey)
	m.salt = newSalt
	m.lastKeyringActivity = m.now()
	m.saveCache(ctx)
	logging.Logger(ctx).Info("vault password changed")
	return nil
}

// Reset locks the session and deletes the whole vault log. It is never
// called automatically.
func (m *Manager) Reset(ctx context.Context) error {
	ctx = logging.WithOperation(ctx, "reset")

	m.unlockMu.Lock()
	defer m.unlockMu.Unlock()

	m.mu.Lock()
	m.lockLocked(ctx, ReasonReset)
	err := m.vaults.Reset(ctx)
	m.mu.Unlock()

	if err != nil {
		return err
	}
	logging.Logger(ctx).Warn("vault reset")
	return nil
}

// MetricsSnapshot implements metrics.Source.
func (m *Manager) MetricsSnapshot() metrics.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.metricsSnapshot()
}

func (m *Manager) metricsSnapshot() metrics.Snapshot {
	if !m.unlocked() {
		return metrics.Snapshot{}
	}
	return metrics.Snapshot{
		Unlocked:         true,
		Keyrings:         m.registry.Len(),
		VisibleAddresses: m.registry.VisibleAddressCount(),
	}
}

// observe refreshes the gauges. Must be called with mu held.
func (m *Manager) observe() {
	metrics.Observe(m.metricsSnapshot())
}

// snapshot builds a registry event. Must be called with mu held.
func (m *Manager) snapshot() events.Event {
	if !m.unlocked() {
		return events.Snapshot([]registry.Info{}, map[string]registry.Metadata{})
	}
	return events.Snapshot(m.registry.Keyrings(), m.registry.Metadata())
}

// saveCache writes the session cache. Failures only cost a password prompt
// after restart, so they are logged. Must be called with mu held.
func (m *Manager) saveCache(ctx context.Context) {
	if m.cache == nil || m.key == nil {
		return
	}
	buf, err := m.key.Open()
	if err != nil {
		slog.Warn("failed to open session key for cache", "error", err)
		return
	}
	defer buf.Destroy()

	s := &CachedSession{
		SaltedKey:           &SaltedKey{Key: buf.Bytes(), Salt: m.salt},
		LastKeyringActivity: toMillis(m.lastKeyringActivity),
		LastOutsideActivity: toMillis(m.lastOutsideActivity),
	}
	if err := m.cache.Save(ctx, s); err != nil {
		logging.Logger(ctx).Warn("failed to save session cache", "error", err)
	}
}

func (m *Manager) clearCache(ctx context.Context) {
	if m.cache == nil {
		return
	}
	if err := m.cache.Clear(ctx); err != nil {
		logging.Logger(ctx).Warn("failed to clear session cache", "error", err)
	}
}

func (m *Manager) discardCache(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clearCache(ctx)
}
