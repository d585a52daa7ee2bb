package vault

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/sendnodes-io/sendwallet-sub000/internal/crypto"
	"github.com/sendnodes-io/sendwallet-sub000/internal/store"
)

func sampleVault(b byte) *EncryptedVault {
	return &EncryptedVault{
		Salt:                 bytes.Repeat([]byte{b}, crypto.SaltSize),
		InitializationVector: bytes.Repeat([]byte{b}, crypto.NonceSize),
		CipherText:           bytes.Repeat([]byte{b}, crypto.TagSize+1),
	}
}

func TestLogStore_LatestEmpty(t *testing.T) {
	l := NewLogStore(store.NewMemoryKV())

	v, err := l.Latest(context.Background())
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if v != nil {
		t.Fatalf("expected nil vault, got %+v", v)
	}
}

func TestLogStore_AppendDedup(t *testing.T) {
	ctx := context.Background()
	l := NewLogStore(store.NewMemoryKV())

	appended, err := l.Append(ctx, sampleVault(1))
	if err != nil || !appended {
		t.Fatalf("first Append = %v, %v", appended, err)
	}

	// Structurally identical value (distinct pointer) is a no-op.
	appended, err = l.Append(ctx, sampleVault(1))
	if err != nil {
		t.Fatalf("second Append: %v", err)
	}
	if appended {
		t.Fatal("identical vault should not be appended")
	}

	entries, _ := l.Entries(ctx)
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}

	appended, err = l.Append(ctx, sampleVault(2))
	if err != nil || !appended {
		t.Fatalf("third Append = %v, %v", appended, err)
	}
	entries, _ = l.Entries(ctx)
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}

	latest, _ := l.Latest(ctx)
	if !latest.Equal(sampleVault(2)) {
		t.Fatal("Latest should return the most recently appended vault")
	}
}

func TestLogStore_DedupComparesAgainstLatestOnly(t *testing.T) {
	ctx := context.Background()
	l := NewLogStore(store.NewMemoryKV())

	l.Append(ctx, sampleVault(1))
	l.Append(ctx, sampleVault(2))

	// Equal to an older entry but not the current one: appended.
	appended, err := l.Append(ctx, sampleVault(1))
	if err != nil || !appended {
		t.Fatalf("Append = %v, %v", appended, err)
	}
	entries, _ := l.Entries(ctx)
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
}

func TestLogStore_MonotonicTimeSaved(t *testing.T) {
	ctx := context.Background()
	fixed := time.UnixMilli(1_700_000_000_000)
	l := NewLogStore(store.NewMemoryKV(), WithLogClock(func() time.Time { return fixed }))

	l.Append(ctx, sampleVault(1))
	l.Append(ctx, sampleVault(2))
	l.Append(ctx, sampleVault(3))

	entries, _ := l.Entries(ctx)
	for i := 1; i < len(entries); i++ {
		if entries[i].TimeSaved <= entries[i-1].TimeSaved {
			t.Fatalf("entry %d TimeSaved %d not after %d", i, entries[i].TimeSaved, entries[i-1].TimeSaved)
		}
	}

	latest, _ := l.Latest(ctx)
	if !latest.Equal(sampleVault(3)) {
		t.Fatal("Latest should be the last append under a frozen clock")
	}
}

func TestLogStore_LatestIsMaxTimeSaved(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemoryKV()

	// Persisted out of order: the newest entry is first.
	raw, err := json.Marshal(logContainer{Version: LogVersion, Vaults: []LogEntry{
		{TimeSaved: 300, Vault: sampleVault(1)},
		{TimeSaved: 100, Vault: sampleVault(4)},
	}})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	kv.Put(ctx, DefaultLogKey, raw)

	latest, err := NewLogStore(kv).Latest(ctx)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if latest.Salt[0] != 1 {
		t.Fatalf("Latest picked the wrong entry: %+v", latest)
	}
}

func TestLogStore_CorruptStorage(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"unversioned_array", `[{"timeSaved":1,"vault":{}}]`},
		{"missing_version", `{"vaults":[]}`},
		{"future_version", `{"version":2,"vaults":[]}`},
		{"not_json", `garbage`},
		{"null_vault", `{"version":1,"vaults":[{"timeSaved":1,"vault":null}]}`},
		{"short_salt", `{"version":1,"vaults":[{"timeSaved":1,"vault":{"salt":"AQID","initializationVector":"AAAAAAAAAAAAAAAA","cipherText":"AAAAAAAAAAAAAAAAAAAAAA=="}}]}`},
		{"short_iv", `{"version":1,"vaults":[{"timeSaved":1,"vault":{"salt":"AAAAAAAAAAAAAAAAAAAAAA==","initializationVector":"AQID","cipherText":"AAAAAAAAAAAAAAAAAAAAAA=="}}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			kv := store.NewMemoryKV()
			kv.Put(ctx, DefaultLogKey, []byte(tt.raw))
			l := NewLogStore(kv)

			if _, err := l.Latest(ctx); !errors.Is(err, ErrCorruptStorage) {
				t.Fatalf("Latest: expected ErrCorruptStorage, got %v", err)
			}
			if _, err := l.Append(ctx, sampleVault(1)); !errors.Is(err, ErrCorruptStorage) {
				t.Fatalf("Append: expected ErrCorruptStorage, got %v", err)
			}

			// The corrupt value must be left untouched.
			got, _ := kv.Get(ctx, DefaultLogKey)
			if string(got) != tt.raw {
				t.Fatal("corrupt storage was modified")
			}
		})
	}
}

func TestLogStore_Reset(t *testing.T) {
	ctx := context.Background()
	l := NewLogStore(store.NewMemoryKV())
	l.Append(ctx, sampleVault(1))

	if err := l.Reset(ctx); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	v, err := l.Latest(ctx)
	if err != nil || v != nil {
		t.Fatalf("Latest after reset = %v, %v", v, err)
	}
}
