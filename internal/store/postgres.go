package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/sendnodes-io/sendwallet-sub000/internal/database"
)

// PostgresKV implements KV on the keyring_kv table.
type PostgresKV struct {
	db *database.DB
}

// NewPostgresKV wraps an open database. The schema must already exist
// (see database.EnsureSchema).
func NewPostgresKV(db *database.DB) *PostgresKV {
	return &PostgresKV{db: db}
}

// Get returns the value stored under key, or ErrNotFound.
func (p *PostgresKV) Get(ctx context.Context, key string) ([]byte, error) {
	var val []byte
	err := p.db.Pool.QueryRow(ctx, `SELECT value FROM keyring_kv WHERE key = $1`, key).Scan(&val)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", key, err)
	}
	return val, nil
}

// Put upserts value under key.
func (p *PostgresKV) Put(ctx context.Context, key string, value []byte) error {
	_, err := p.db.Pool.Exec(ctx, `
		INSERT INTO keyring_kv (key, value, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		key, value)
	if err != nil {
		return fmt.Errorf("upsert %s: %w", key, err)
	}
	return nil
}

// Delete removes key.
func (p *PostgresKV) Delete(ctx context.Context, key string) error {
	if _, err := p.db.Pool.Exec(ctx, `DELETE FROM keyring_kv WHERE key = $1`, key); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// Ping checks the database connection.
func (p *PostgresKV) Ping(ctx context.Context) error {
	return p.db.Ping(ctx)
}

// Close closes the connection pool.
func (p *PostgresKV) Close() error {
	p.db.Close()
	return nil
}
