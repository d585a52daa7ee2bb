// Package registry tracks the unlocked keyrings, their metadata and the set
// of hidden addresses, and converts them to and from the vault payload.
//
// A Registry is not safe for concurrent use. The session owns exactly one
// and serializes every call.
package registry

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/sendnodes-io/sendwallet-sub000/internal/keyring"
)

// MaxAddresses is the per-keyring address cap.
const MaxAddresses = 10

// Source records where keyring material came from.
type Source string

const (
	SourceImport   Source = "import"
	SourceInternal Source = "internal"
)

// ParseSource validates s.
func ParseSource(s string) (Source, error) {
	switch Source(s) {
	case SourceImport, SourceInternal:
		return Source(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidSource, s)
	}
}

// Metadata is stored per fingerprint.
type Metadata struct {
	Source Source `json:"source"`
	SeedID int64  `json:"seedId"`
}

// Payload is the plaintext persisted inside an encrypted vault.
type Payload struct {
	Keyrings       []keyring.Record    `json:"keyrings"`
	Metadata       map[string]Metadata `json:"metadata"`
	HiddenAccounts map[string]bool     `json:"hiddenAccounts"`
}

// EmptyPayload is the content of a freshly initialized vault.
func EmptyPayload() Payload {
	return Payload{
		Keyrings:       []keyring.Record{},
		Metadata:       map[string]Metadata{},
		HiddenAccounts: map[string]bool{},
	}
}

// Info is the public view of a keyring.
type Info struct {
	Fingerprint string          `json:"fingerprint"`
	KeyType     keyring.KeyType `json:"keyType"`
	Variant     keyring.Variant `json:"variant"`
	Addresses   []string        `json:"addresses"`
}

// Generated is returned once by Generate.
type Generated struct {
	Fingerprint string `json:"fingerprint"`
	Mnemonic    string `json:"mnemonic"`
}

// Option configures a Registry.
type Option func(*Registry)

// WithClock overrides the clock used for runtime seed ids.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// Registry is the in-memory keyring collection.
type Registry struct {
	keyrings []keyring.Keyring
	metadata map[string]Metadata
	hidden   map[string]bool
	now      func() time.Time
}

// New creates an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		metadata: make(map[string]Metadata),
		hidden:   make(map[string]bool),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Load rebuilds a registry from a decrypted payload. Seed ids are reassigned
// 0..n in order of first occurrence of each keyring's seed identity.
func Load(p Payload, opts ...Option) (*Registry, error) {
	r, identities, err := restore(p, opts...)
	if err != nil {
		return nil, err
	}

	ids := make(map[string]int64)
	for i, k := range r.keyrings {
		identity := identities[i]
		id, ok := ids[identity]
		if !ok {
			id = int64(len(ids))
			ids[identity] = id
		}
		md := r.metadata[k.Fingerprint()]
		md.SeedID = id
		r.metadata[k.Fingerprint()] = md
	}
	return r, nil
}

// Clone returns an independent copy holding its own key material. Seed ids
// are preserved.
func (r *Registry) Clone() (*Registry, error) {
	c, _, err := restore(r.Payload())
	if err != nil {
		return nil, err
	}
	c.now = r.now
	return c, nil
}

// restore rebuilds keyrings in payload order and returns each kept
// keyring's seed identity alongside.
func restore(p Payload, opts ...Option) (*Registry, []string, error) {
	r := New(opts...)
	var identities []string
	for i, rec := range p.Keyrings {
		k, err := keyring.FromRecord(rec)
		if err != nil {
			r.Destroy()
			return nil, nil, fmt.Errorf("keyring %d: %w", i, err)
		}
		if r.byFingerprint(k.Fingerprint()) != nil {
			k.Destroy()
			continue
		}
		r.keyrings = append(r.keyrings, k)
		if rec.Fingerprint == "" {
			rec.Fingerprint = k.Fingerprint()
		}
		identities = append(identities, rec.SeedIdentity())

		md, ok := p.Metadata[k.Fingerprint()]
		if !ok {
			md = Metadata{Source: SourceImport}
		}
		r.metadata[k.Fingerprint()] = md
	}
	for addr, hidden := range p.HiddenAccounts {
		if hidden {
			r.hidden[normalize(addr)] = true
		}
	}
	return r, identities, nil
}

// Payload serializes the registry. Keyrings keep insertion order so seed
// grouping is reproducible.
func (r *Registry) Payload() Payload {
	p := EmptyPayload()
	for _, k := range r.keyrings {
		p.Keyrings = append(p.Keyrings, k.Record())
		p.Metadata[k.Fingerprint()] = r.metadata[k.Fingerprint()]
	}
	for addr := range r.hidden {
		p.HiddenAccounts[addr] = true
	}
	return p
}

// Generate creates a 256-bit derivable keyring without adding it. The
// mnemonic is returned exactly once and must be passed to ImportMnemonic to
// be kept.
func (r *Registry) Generate(strength int, keyType keyring.KeyType) (Generated, error) {
	if strength != keyring.MnemonicStrength {
		return Generated{}, fmt.Errorf("%w: %d-bit generation", ErrUnsupportedKeyringType, strength)
	}
	if keyType == "" {
		keyType = keyring.KeyTypeSecp256k1
	}

	mnemonic, err := keyring.NewMnemonic(strength)
	if err != nil {
		return Generated{}, err
	}
	k, err := keyring.NewDerivable(keyType, mnemonic, "")
	if err != nil {
		return Generated{}, mapKeyringError(err)
	}
	defer k.Destroy()

	return Generated{Fingerprint: k.Fingerprint(), Mnemonic: mnemonic}, nil
}

// ImportMnemonic adds derivable keyrings for mnemonic. With no path one
// keyring per key type is created on its default path; with a path only
// keyType is created (secp256k1 when empty). Material already present
// returns the existing fingerprint.
func (r *Registry) ImportMnemonic(mnemonic string, source Source, path string, keyType keyring.KeyType) ([]string, error) {
	if _, err := ParseSource(string(source)); err != nil {
		return nil, err
	}

	types := keyring.KeyTypes()
	if path != "" {
		if keyType == "" {
			keyType = keyring.KeyTypeSecp256k1
		}
		types = []keyring.KeyType{keyType}
	}

	var created []keyring.Keyring
	for _, t := range types {
		k, err := keyring.NewDerivable(t, mnemonic, path)
		if err != nil {
			for _, c := range created {
				c.Destroy()
			}
			return nil, mapKeyringError(err)
		}
		created = append(created, k)
	}
	return r.add(created, source), nil
}

// ImportPrivateKey adds a fixed keyring.
func (r *Registry) ImportPrivateKey(privateKey string, keyType keyring.KeyType, source Source) (string, error) {
	if _, err := ParseSource(string(source)); err != nil {
		return "", err
	}
	k, err := keyring.NewFixed(keyType, privateKey)
	if err != nil {
		return "", mapKeyringError(err)
	}
	return r.add([]keyring.Keyring{k}, source)[0], nil
}

// add inserts keyrings sharing one seed id. Duplicates are dropped in
// favour of the tracked keyring, and new siblings of a tracked keyring join
// its seed group.
func (r *Registry) add(ks []keyring.Keyring, source Source) []string {
	seedID := r.newSeedID()
	for _, k := range ks {
		if r.byFingerprint(k.Fingerprint()) != nil {
			seedID = r.metadata[k.Fingerprint()].SeedID
			break
		}
	}
	fps := make([]string, 0, len(ks))
	for _, k := range ks {
		fp := k.Fingerprint()
		fps = append(fps, fp)
		if r.byFingerprint(fp) != nil {
			k.Destroy()
			continue
		}
		r.keyrings = append(r.keyrings, k)
		r.metadata[fp] = Metadata{Source: source, SeedID: seedID}
	}
	return fps
}

// newSeedID only needs to be unique among runtime imports.
func (r *Registry) newSeedID() int64 {
	return r.now().UnixMilli()*1000 + rand.Int64N(1000)
}

// DeriveAddress un-hides the lowest-index hidden address of the keyring if
// there is one, otherwise mints the next address. It reports whether a new
// address was minted.
func (r *Registry) DeriveAddress(fingerprint string) (string, bool, error) {
	k := r.byFingerprint(fingerprint)
	if k == nil {
		return "", false, fmt.Errorf("%w: %s", ErrKeyringNotFound, fingerprint)
	}
	d, ok := k.(keyring.Derivable)
	if !ok {
		return "", false, fmt.Errorf("%w: %s keyrings cannot derive addresses", ErrUnsupportedKeyringType, k.Variant())
	}

	reuse, lowest := "", -1
	for _, addr := range d.Addresses() {
		if !r.hidden[normalize(addr)] {
			continue
		}
		if idx, ok := d.Index(addr); ok && (lowest < 0 || idx < lowest) {
			reuse, lowest = addr, idx
		}
	}
	if reuse != "" {
		delete(r.hidden, normalize(reuse))
		return reuse, false, nil
	}

	if len(d.Addresses())+1 > MaxAddresses {
		return "", false, fmt.Errorf("%w: keyring %s already has %d", ErrTooManyAddresses, fingerprint, len(d.Addresses()))
	}
	addr, err := d.DeriveAddress()
	if err != nil {
		return "", false, err
	}
	return addr, true, nil
}

// Hide flags address hidden. If no visible address remains on its keyring,
// the keyring is removed along with its metadata and hidden flags. It
// reports whether the keyring was removed.
func (r *Registry) Hide(address string) (bool, error) {
	k := r.owner(address)
	if k == nil {
		return false, fmt.Errorf("%w: %s", ErrKeyringNotFound, address)
	}
	r.hidden[normalize(address)] = true

	for _, a := range k.Addresses() {
		if !r.hidden[normalize(a)] {
			return false, nil
		}
	}
	r.remove(k)
	return true, nil
}

// Remove deletes a keyring by fingerprint.
func (r *Registry) Remove(fingerprint string) error {
	k := r.byFingerprint(fingerprint)
	if k == nil {
		return fmt.Errorf("%w: %s", ErrKeyringNotFound, fingerprint)
	}
	r.remove(k)
	return nil
}

func (r *Registry) remove(k keyring.Keyring) {
	for _, a := range k.Addresses() {
		delete(r.hidden, normalize(a))
	}
	delete(r.metadata, k.Fingerprint())
	for i, other := range r.keyrings {
		if other == k {
			r.keyrings = append(r.keyrings[:i], r.keyrings[i+1:]...)
			break
		}
	}
	k.Destroy()
}

// Find returns the keyring owning address.
func (r *Registry) Find(address string) (keyring.Keyring, error) {
	k := r.owner(address)
	if k == nil {
		return nil, fmt.Errorf("%w: %s", ErrKeyringNotFound, address)
	}
	return k, nil
}

// ExportPrivateKey returns the hex private key behind address.
func (r *Registry) ExportPrivateKey(address string) (string, error) {
	k, err := r.Find(address)
	if err != nil {
		return "", err
	}
	return k.ExportPrivateKey(address)
}

// Keyrings lists keyrings with their visible addresses only.
func (r *Registry) Keyrings() []Info {
	out := make([]Info, 0, len(r.keyrings))
	for _, k := range r.keyrings {
		visible := []string{}
		for _, a := range k.Addresses() {
			if !r.hidden[normalize(a)] {
				visible = append(visible, a)
			}
		}
		out = append(out, Info{
			Fingerprint: k.Fingerprint(),
			KeyType:     k.KeyType(),
			Variant:     k.Variant(),
			Addresses:   visible,
		})
	}
	return out
}

// Metadata returns a copy of the metadata map.
func (r *Registry) Metadata() map[string]Metadata {
	out := make(map[string]Metadata, len(r.metadata))
	for fp, md := range r.metadata {
		out[fp] = md
	}
	return out
}

// IsHidden reports whether address is flagged hidden.
func (r *Registry) IsHidden(address string) bool {
	return r.hidden[normalize(address)]
}

// VisibleAddressCount counts addresses across keyrings that are not hidden.
func (r *Registry) VisibleAddressCount() int {
	n := 0
	for _, info := range r.Keyrings() {
		n += len(info.Addresses)
	}
	return n
}

// Len returns the number of keyrings.
func (r *Registry) Len() int { return len(r.keyrings) }

// Destroy zeroes every keyring and clears all state.
func (r *Registry) Destroy() {
	for _, k := range r.keyrings {
		k.Destroy()
	}
	r.keyrings = nil
	r.metadata = make(map[string]Metadata)
	r.hidden = make(map[string]bool)
}

func (r *Registry) byFingerprint(fp string) keyring.Keyring {
	for _, k := range r.keyrings {
		if k.Fingerprint() == fp {
			return k
		}
	}
	return nil
}

func (r *Registry) owner(address string) keyring.Keyring {
	for _, k := range r.keyrings {
		if k.HasAddress(address) {
			return k
		}
	}
	return nil
}

// normalize keys the hidden set; EVM addresses compare case-insensitively.
func normalize(address string) string {
	return strings.ToLower(address)
}

func mapKeyringError(err error) error {
	if errors.Is(err, keyring.ErrUnsupportedKeyType) {
		return fmt.Errorf("%w: %v", ErrUnsupportedKeyringType, err)
	}
	return err
}
