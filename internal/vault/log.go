package vault

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sendnodes-io/sendwallet-sub000/internal/crypto"
	"github.com/sendnodes-io/sendwallet-sub000/internal/metrics"
	"github.com/sendnodes-io/sendwallet-sub000/internal/store"
)

const (
	// LogVersion is the only persisted container version this package reads.
	LogVersion = 1

	// DefaultLogKey is the store key the vault log is written under.
	DefaultLogKey = "vaults"
)

// LogEntry is one timestamped snapshot in the vault log.
type LogEntry struct {
	TimeSaved int64           `json:"timeSaved"` // unix milliseconds
	Vault     *EncryptedVault `json:"vault"`
}

// logContainer is the persisted form of the log.
type logContainer struct {
	Version int        `json:"version"`
	Vaults  []LogEntry `json:"vaults"`
}

// LogStore is the append-only persisted log of encrypted vault snapshots.
// The current vault is the entry with the greatest TimeSaved.
type LogStore struct {
	kv  store.KV
	key string
	now func() time.Time
	mu  sync.Mutex
}

// LogOption configures a LogStore.
type LogOption func(*LogStore)

// WithLogKey overrides the store key.
func WithLogKey(key string) LogOption {
	return func(l *LogStore) { l.key = key }
}

// WithLogClock overrides the clock used to stamp entries.
func WithLogClock(now func() time.Time) LogOption {
	return func(l *LogStore) { l.now = now }
}

// NewLogStore creates a LogStore over kv.
func NewLogStore(kv store.KV, opts ...LogOption) *LogStore {
	l := &LogStore{
		kv:  kv,
		key: DefaultLogKey,
		now: time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Latest returns the current vault, or nil when nothing has been persisted.
func (l *LogStore) Latest(ctx context.Context) (*EncryptedVault, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	c, err := l.load(ctx)
	if err != nil {
		return nil, err
	}
	entry := c.latest()
	if entry == nil {
		return nil, nil
	}
	return entry.Vault, nil
}

// Append adds v to the log unless it is structurally equal to the current
// vault. It reports whether an entry was written.
func (l *LogStore) Append(ctx context.Context, v *EncryptedVault) (bool, error) {
	if v == nil {
		return false, errors.New("append nil vault")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	c, err := l.load(ctx)
	if err != nil {
		return false, err
	}

	current := c.latest()
	if current != nil && current.Vault.Equal(v) {
		metrics.VaultWrites.WithLabelValues("deduplicated").Inc()
		return false, nil
	}

	saved := l.now().UnixMilli()
	// Keep the new entry strictly newest even if the clock steps backwards.
	if current != nil && saved <= current.TimeSaved {
		saved = current.TimeSaved + 1
	}
	c.Vaults = append(c.Vaults, LogEntry{TimeSaved: saved, Vault: v})

	data, err := json.Marshal(c)
	if err != nil {
		return false, fmt.Errorf("marshal vault log: %w", err)
	}
	if err := l.kv.Put(ctx, l.key, data); err != nil {
		metrics.VaultWrites.WithLabelValues("error").Inc()
		return false, fmt.Errorf("write vault log: %w", err)
	}

	metrics.VaultWrites.WithLabelValues("appended").Inc()
	slog.Debug("vault snapshot appended", "entries", len(c.Vaults), "time_saved", saved)
	return true, nil
}

// Entries returns every log entry in persisted order.
func (l *LogStore) Entries(ctx context.Context) ([]LogEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	c, err := l.load(ctx)
	if err != nil {
		return nil, err
	}
	return c.Vaults, nil
}

// Reset deletes the whole log. It is destructive and only reachable through
// an explicit, separately confirmed user action.
func (l *LogStore) Reset(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.kv.Delete(ctx, l.key); err != nil {
		return fmt.Errorf("delete vault log: %w", err)
	}
	return nil
}

// load reads and validates the container. A missing key is an empty log.
func (l *LogStore) load(ctx context.Context) (*logContainer, error) {
	data, err := l.kv.Get(ctx, l.key)
	if errors.Is(err, store.ErrNotFound) {
		return &logContainer{Version: LogVersion}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read vault log: %w", err)
	}

	var c logContainer
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptStorage, err)
	}
	if c.Version != LogVersion {
		return nil, fmt.Errorf("%w: unsupported vault log version %d", ErrCorruptStorage, c.Version)
	}
	for i, e := range c.Vaults {
		if e.Vault == nil {
			return nil, fmt.Errorf("%w: entry %d has no vault", ErrCorruptStorage, i)
		}
		if len(e.Vault.Salt) != crypto.SaltSize || len(e.Vault.InitializationVector) != crypto.NonceSize {
			return nil, fmt.Errorf("%w: entry %d has a malformed salt or initialization vector", ErrCorruptStorage, i)
		}
	}
	return &c, nil
}

// latest returns the entry with the greatest TimeSaved; later entries win ties.
func (c *logContainer) latest() *LogEntry {
	var best *LogEntry
	for i := range c.Vaults {
		if best == nil || c.Vaults[i].TimeSaved >= best.TimeSaved {
			best = &c.Vaults[i]
		}
	}
	return best
}
