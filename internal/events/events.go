// Package events fans out session notifications to subscribers.
package events

import (
	"log/slog"
	"sync"
	"time"

	"github.com/sendnodes-io/sendwallet-sub000/internal/keyring"
	"github.com/sendnodes-io/sendwallet-sub000/internal/registry"
)

// Kind names a notification shape.
type Kind string

const (
	KindLockedState    Kind = "lockedState"
	KindKeyrings       Kind = "keyrings"
	KindAddressDerived Kind = "addressDerived"
	KindSigningOutcome Kind = "signingOutcome"
)

// Outcome reasons for failed signing requests.
const (
	ReasonUserRejected = "userRejected"
	ReasonGenericError = "genericError"
)

// Event is one notification. Exactly one payload field is set, matching Kind.
type Event struct {
	Kind           Kind            `json:"kind"`
	Time           time.Time       `json:"time"`
	Locked         *bool           `json:"locked,omitempty"`
	Keyrings       *Keyrings       `json:"keyrings,omitempty"`
	AddressDerived *AddressDerived `json:"addressDerived,omitempty"`
	SigningOutcome *SigningOutcome `json:"signingOutcome,omitempty"`
}

// Keyrings is a registry snapshot. It never carries secret material.
type Keyrings struct {
	Keyrings        []registry.Info              `json:"keyrings"`
	KeyringMetadata map[string]registry.Metadata `json:"keyringMetadata"`
}

// AddressDerived announces a newly visible address.
type AddressDerived struct {
	Address string          `json:"address"`
	KeyType keyring.KeyType `json:"keyType"`
}

// SigningOutcome reports the terminal state of a signing request.
type SigningOutcome struct {
	Kind    string `json:"kind"`
	Address string `json:"address"`
	Success bool   `json:"success"`
	Reason  string `json:"reason,omitempty"`
}

// Bus delivers events to every subscriber without blocking the publisher.
// A subscriber whose buffer is full misses the event. The zero value is not
// usable; a nil *Bus discards everything.
type Bus struct {
	mu     sync.RWMutex
	subs   map[uint64]chan Event
	nextID uint64
	now    func() time.Time
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{
		subs: make(map[uint64]chan Event),
		now:  time.Now,
	}
}

// Subscribe registers a subscriber with the given buffer size. The returned
// function unsubscribes and closes the channel.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Event, buffer)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
}

// Publish stamps e and delivers it.
func (b *Bus) Publish(e Event) {
	if b == nil {
		return
	}
	if e.Time.IsZero() {
		e.Time = b.now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for id, ch := range b.subs {
		select {
		case ch <- e:
		default:
			slog.Warn("dropping event for slow subscriber", "subscriber", id, "kind", e.Kind)
		}
	}
}

// Subscribers returns the current subscriber count.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// LockedState builds a locked-state event.
func LockedState(locked bool) Event {
	return Event{Kind: KindLockedState, Locked: &locked}
}

// Snapshot builds a registry snapshot event.
func Snapshot(infos []registry.Info, md map[string]registry.Metadata) Event {
	return Event{Kind: KindKeyrings, Keyrings: &Keyrings{Keyrings: infos, KeyringMetadata: md}}
}

// Derived builds an address-derived event.
func Derived(address string, keyType keyring.KeyType) Event {
	return Event{Kind: KindAddressDerived, AddressDerived: &AddressDerived{Address: address, KeyType: keyType}}
}

// Signed builds a signing-outcome event from the request's terminal error.
func Signed(kind, address string, err error) Event {
	out := &SigningOutcome{Kind: kind, Address: address, Success: err == nil}
	if err != nil {
		out.Reason = Reason(err)
	}
	return Event{Kind: KindSigningOutcome, SigningOutcome: out}
}
