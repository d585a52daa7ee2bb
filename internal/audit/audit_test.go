package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sendnodes-io/sendwallet-sub000/internal/events"
	"github.com/sendnodes-io/sendwallet-sub000/internal/keyring"
)

func TestFromEvent(t *testing.T) {
	tests := []struct {
		name    string
		event   events.Event
		want    Action
		address string
		skip    bool
	}{
		{"unlock", events.LockedState(false), ActionSessionUnlock, "", false},
		{"lock", events.LockedState(true), ActionSessionLock, "", false},
		{"derive", events.Derived("0xabc", keyring.KeyTypeSecp256k1), ActionAddressDerive, "0xabc", false},
		{"signed", events.Signed("personalSign", "0xabc", nil), ActionSignCreate, "0xabc", false},
		{"failed", events.Signed("personalSign", "0xabc", errors.New("boom")), ActionSignFail, "0xabc", false},
		{"snapshot", events.Snapshot(nil, nil), "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry, ok := FromEvent(tt.event)
			if ok == tt.skip {
				t.Fatalf("FromEvent() ok = %v, want %v", ok, !tt.skip)
			}
			if tt.skip {
				return
			}
			if entry.Action != tt.want {
				t.Errorf("Action = %q, want %q", entry.Action, tt.want)
			}
			if entry.Address != tt.address {
				t.Errorf("Address = %q, want %q", entry.Address, tt.address)
			}
			if entry.CreatedAt.IsZero() {
				t.Error("CreatedAt is zero")
			}
		})
	}
}

func TestFromEvent_FailureReason(t *testing.T) {
	entry, _ := FromEvent(events.Signed("signTypedData", "0xabc", errors.New("boom")))
	if entry.Metadata["reason"] != events.ReasonGenericError {
		t.Errorf("reason = %v, want %q", entry.Metadata["reason"], events.ReasonGenericError)
	}
	if entry.Metadata["kind"] != "signTypedData" {
		t.Errorf("kind = %v, want signTypedData", entry.Metadata["kind"])
	}
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(3)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		e := Entry{Action: ActionSessionUnlock, CreatedAt: base.Add(time.Duration(i) * time.Hour)}
		if err := s.Append(ctx, e); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	got, err := s.List(ctx, 0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("List() returned %d entries, want 3", len(got))
	}
	if !got[0].CreatedAt.Equal(base.Add(4 * time.Hour)) {
		t.Errorf("List()[0] = %v, want newest first", got[0].CreatedAt)
	}

	limited, _ := s.List(ctx, 1)
	if len(limited) != 1 {
		t.Errorf("List(1) returned %d entries", len(limited))
	}

	if err := s.Cleanup(ctx, base.Add(4*time.Hour)); err != nil {
		t.Fatalf("Cleanup() error = %v", err)
	}
	got, _ = s.List(ctx, 10)
	if len(got) != 1 {
		t.Errorf("after Cleanup() List() returned %d entries, want 1", len(got))
	}
}

func TestRecorder(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := events.NewBus()
	store := NewMemoryStore(10)
	done := make(chan struct{})
	go func() {
		NewRecorder(store, bus).Run(ctx)
		close(done)
	}()

	deadline := time.Now().Add(time.Second)
	for bus.Subscribers() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("recorder never subscribed")
		}
		time.Sleep(time.Millisecond)
	}

	bus.Publish(events.Snapshot(nil, nil))
	bus.Publish(events.LockedState(false))
	bus.Publish(events.Derived("0xdef", keyring.KeyTypeSecp256k1))

	for {
		got, _ := store.List(ctx, 10)
		if len(got) == 2 {
			if got[0].Action != ActionAddressDerive || got[1].Action != ActionSessionUnlock {
				t.Errorf("recorded actions = %q, %q", got[0].Action, got[1].Action)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("recorded %d entries, want 2", len(got))
		}
		time.Sleep(time.Millisecond)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run() did not return after cancel")
	}
}
