package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func newTestBolt(t *testing.T) *BoltKV {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := NewBoltKV(path)
	if err != nil {
		t.Fatalf("NewBoltKV: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// ---------------------------------------------------------------------------
// Store creation
// ---------------------------------------------------------------------------

func TestNewBoltKV_CreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vault.db")

	s, err := NewBoltKV(path)
	if err != nil {
		t.Fatalf("NewBoltKV: %v", err)
	}
	defer s.Close()

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Size() == 0 {
		t.Fatal("database file is empty")
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("expected file permissions 0600, got %04o", perm)
	}
}

// ---------------------------------------------------------------------------
// KV contract, shared by every in-process backend
// ---------------------------------------------------------------------------

func TestKV_Contract(t *testing.T) {
	backends := []struct {
		name string
		open func(t *testing.T) KV
	}{
		{"bolt", func(t *testing.T) KV { return newTestBolt(t) }},
		{"memory", func(t *testing.T) KV { return NewMemoryKV() }},
	}

	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			kv := b.open(t)

			if _, err := kv.Get(ctx, "vaults"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("Get on empty store: expected ErrNotFound, got %v", err)
			}

			value := []byte(`{"version":1,"vaults":[]}`)
			if err := kv.Put(ctx, "vaults", value); err != nil {
				t.Fatalf("Put: %v", err)
			}

			// The store must not alias the caller's slice.
			value[0] = 'X'

			got, err := kv.Get(ctx, "vaults")
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if string(got) != `{"version":1,"vaults":[]}` {
				t.Errorf("Get = %q", got)
			}

			if err := kv.Put(ctx, "vaults", []byte("v2")); err != nil {
				t.Fatalf("Put (overwrite): %v", err)
			}
			got, _ = kv.Get(ctx, "vaults")
			if string(got) != "v2" {
				t.Errorf("Get after overwrite = %q, want %q", got, "v2")
			}

			if err := kv.Delete(ctx, "vaults"); err != nil {
				t.Fatalf("Delete: %v", err)
			}
			if _, err := kv.Get(ctx, "vaults"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("Get after delete: expected ErrNotFound, got %v", err)
			}

			// Deleting a missing key is fine.
			if err := kv.Delete(ctx, "missing"); err != nil {
				t.Fatalf("Delete missing: %v", err)
			}
		})
	}
}

func TestBoltKV_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "vault.db")

	s, err := NewBoltKV(path)
	if err != nil {
		t.Fatalf("NewBoltKV: %v", err)
	}
	if err := s.Put(ctx, "vaults", []byte("persisted")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	s.Close()

	s2, err := NewBoltKV(path)
	if err != nil {
		t.Fatalf("NewBoltKV (reopen): %v", err)
	}
	defer s2.Close()

	got, err := s2.Get(ctx, "vaults")
	if err != nil {
		t.Fatalf("Get after reopen: %v", err)
	}
	if string(got) != "persisted" {
		t.Errorf("Get after reopen = %q, want %q", got, "persisted")
	}
}
