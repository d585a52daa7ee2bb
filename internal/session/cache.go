package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sendnodes-io/sendwallet-sub000/internal/store"
)

// DefaultCacheKey is the store key of the cached session.
const DefaultCacheKey = "session"

// SaltedKey is the derived vault key and the salt it was derived with.
type SaltedKey struct {
	Key  []byte `json:"key"`
	Salt []byte `json:"salt"`
}

// CachedSession lets a restarted process resume without the password.
// Timestamps are unix milliseconds; zero means unset.
type CachedSession struct {
	SaltedKey           *SaltedKey `json:"saltedKey"`
	LastKeyringActivity int64      `json:"lastKeyringActivity"`
	LastOutsideActivity int64      `json:"lastOutsideActivity"`
}

// Cache is the short-lived session store.
type Cache interface {
	Load(ctx context.Context) (*CachedSession, error)
	Save(ctx context.Context, s *CachedSession) error
	Clear(ctx context.Context) error
}

// KVCache keeps the cached session under one key of a store.KV. Backed by
// store.RedisKV the entry expires on its own.
type KVCache struct {
	kv  store.KV
	key string
}

// NewKVCache creates a cache over kv.
func NewKVCache(kv store.KV) *KVCache {
	return &KVCache{kv: kv, key: DefaultCacheKey}
}

// Load returns nil when nothing is cached.
func (c *KVCache) Load(ctx context.Context) (*CachedSession, error) {
	data, err := c.kv.Get(ctx, c.key)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session cache: %w", err)
	}

	var s CachedSession
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode session cache: %w", err)
	}
	return &s, nil
}

func (c *KVCache) Save(ctx context.Context, s *CachedSession) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session cache: %w", err)
	}
	if err := c.kv.Put(ctx, c.key, data); err != nil {
		return fmt.Errorf("write session cache: %w", err)
	}
	return nil
}

func (c *KVCache) Clear(ctx context.Context) error {
	if err := c.kv.Delete(ctx, c.key); err != nil {
		return fmt.Errorf("clear session cache: %w", err)
	}
	return nil
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
