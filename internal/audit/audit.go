// Package audit records an append-only trail of session and signing activity.
// Entries carry addresses and outcomes only, never key material.
package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/sendnodes-io/sendwallet-sub000/internal/events"
)

// Action defines the types of actions that are audited.
type Action string

const (
	ActionSessionUnlock Action = "session.unlock"
	ActionSessionLock   Action = "session.lock"
	ActionAddressDerive Action = "address.derive"
	ActionSignCreate    Action = "signature.create"
	ActionSignFail      Action = "signature.fail"
)

// DefaultListLimit bounds List when no limit is given.
const DefaultListLimit = 100

// Entry represents an audit log entry.
type Entry struct {
	ID        uuid.UUID      `json:"id"`
	Action    Action         `json:"action"`
	Address   string         `json:"address,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}

// Store persists entries.
type Store interface {
	Append(ctx context.Context, e Entry) error
	// List returns the newest entries first.
	List(ctx context.Context, limit int) ([]Entry, error)
	// Cleanup removes entries created before cutoff.
	Cleanup(ctx context.Context, cutoff time.Time) error
}

// FromEvent maps a notification onto an audit entry. Registry snapshots are
// not audited.
func FromEvent(e events.Event) (Entry, bool) {
	entry := Entry{
		ID:        uuid.New(),
		CreatedAt: e.Time,
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	switch {
	case e.Kind == events.KindLockedState && e.Locked != nil:
		entry.Action = ActionSessionUnlock
		if *e.Locked {
			entry.Action = ActionSessionLock
		}
	case e.Kind == events.KindAddressDerived && e.AddressDerived != nil:
		entry.Action = ActionAddressDerive
		entry.Address = e.AddressDerived.Address
		entry.Metadata = map[string]any{"keyType": string(e.AddressDerived.KeyType)}
	case e.Kind == events.KindSigningOutcome && e.SigningOutcome != nil:
		out := e.SigningOutcome
		entry.Action = ActionSignCreate
		entry.Address = out.Address
		entry.Metadata = map[string]any{"kind": out.Kind}
		if !out.Success {
			entry.Action = ActionSignFail
			entry.Metadata["reason"] = out.Reason
		}
	default:
		return Entry{}, false
	}
	return entry, true
}

// Recorder copies bus notifications into a Store.
type Recorder struct {
	store Store
	bus   *events.Bus
}

// NewRecorder creates a recorder for bus.
func NewRecorder(store Store, bus *events.Bus) *Recorder {
	return &Recorder{store: store, bus: bus}
}

// Run records events until ctx is cancelled. Write failures are logged and
// never block the publisher.
func (r *Recorder) Run(ctx context.Context) {
	ch, cancel := r.bus.Subscribe(256)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-ch:
			if !ok {
				return
			}
			entry, ok := FromEvent(e)
			if !ok {
				continue
			}
			writeCtx, done := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			if err := r.store.Append(writeCtx, entry); err != nil {
				slog.Error("failed to write audit entry", "action", entry.Action, "error", err)
			}
			done()
		}
	}
}

// RunCleanup removes entries older than retention on every tick until ctx is
// cancelled.
func RunCleanup(ctx context.Context, store Store, retention, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := store.Cleanup(ctx, time.Now().Add(-retention)); err != nil {
				slog.Error("failed to cleanup audit log", "error", err)
			}
		}
	}
}
