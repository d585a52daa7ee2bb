package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sendnodes-io/sendwallet-sub000/internal/database"
)

// PostgresStore keeps entries in the audit_log table.
type PostgresStore struct {
	db *database.DB
}

// NewPostgresStore wraps an open database. The schema must already exist
// (see database.EnsureSchema).
func NewPostgresStore(db *database.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Append creates a new audit log entry.
func (s *PostgresStore) Append(ctx context.Context, e Entry) error {
	var address *string
	if e.Address != "" {
		address = &e.Address
	}

	var metadata []byte
	if e.Metadata != nil {
		var err error
		metadata, err = json.Marshal(e.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}
	}

	_, err := s.db.Pool.Exec(ctx, `
		INSERT INTO audit_log (id, action, address, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		e.ID, string(e.Action), address, metadata, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}
	return nil
}

// List retrieves the newest audit log entries.
func (s *PostgresStore) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	rows, err := s.db.Pool.Query(ctx, `
		SELECT id, action, address, metadata, created_at
		FROM audit_log
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit logs: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e        Entry
			id       uuid.UUID
			action   string
			address  *string
			metadata []byte
		)
		if err := rows.Scan(&id, &action, &address, &metadata, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit log: %w", err)
		}
		e.ID = id
		e.Action = Action(action)
		if address != nil {
			e.Address = *address
		}
		if metadata != nil {
			_ = json.Unmarshal(metadata, &e.Metadata)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list audit logs: %w", err)
	}
	return entries, nil
}

// Cleanup removes audit logs created before cutoff.
func (s *PostgresStore) Cleanup(ctx context.Context, cutoff time.Time) error {
	if _, err := s.db.Pool.Exec(ctx, `DELETE FROM audit_log WHERE created_at < $1`, cutoff); err != nil {
		return fmt.Errorf("failed to cleanup audit logs: %w", err)
	}
	return nil
}
