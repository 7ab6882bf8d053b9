// Package registry models the MaterialRegistry contract: the append-only
// ledger of passport id -> (hash, owner, status). The state machine here is
// the source of truth for the invariants the anchor worker's retries depend
// on: one registration per id, one id per hash, owner-gated mutation, and a
// global pause switch.
package registry

import (
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Status enumerates on-chain passport lifecycle states. Values match the
// contract's uint8 encoding.
type Status uint8

const (
	StatusActive Status = iota
	StatusListed
	StatusReserved
	StatusSold
	StatusInstalled
	StatusDecommissioned
)

func (s Status) Valid() bool { return s <= StatusDecommissioned }

func (s Status) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusListed:
		return "listed"
	case StatusReserved:
		return "reserved"
	case StatusSold:
		return "sold"
	case StatusInstalled:
		return "installed"
	case StatusDecommissioned:
		return "decommissioned"
	}
	return "unknown"
}

// Record is the ledger-side passport entry. Records are never deleted.
type Record struct {
	Hash         [32]byte
	Owner        common.Address
	Status       Status
	MetadataURI  string
	RegisteredAt time.Time
}

// Contract is an in-process implementation of the registry state machine.
// It is safe for concurrent use; every mutating entry point takes the caller
// address explicitly, standing in for msg.sender.
type Contract struct {
	mu sync.Mutex

	records   map[[32]byte]Record
	hashIndex map[[32]byte][32]byte
	admins    map[common.Address]bool
	hubs      map[common.Address]bool
	paused    bool
	total     uint64

	events []Event
	now    func() time.Time
}

// Option configures a Contract.
type Option func(*Contract)

// WithClock overrides event timestamping, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Contract) { c.now = now }
}

// New deploys a fresh registry with the given admin. A zero admin address is
// rejected, mirroring the contract constructor.
func New(admin common.Address, opts ...Option) (*Contract, error) {
	if admin == (common.Address{}) {
		return nil, ErrInvalidAddress
	}
	c := &Contract{
		records:   make(map[[32]byte]Record),
		hashIndex: make(map[[32]byte][32]byte),
		admins:    map[common.Address]bool{admin: true},
		hubs:      make(map[common.Address]bool),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// GrantHubRole authorizes addr to register and mutate passports.
func (c *Contract) GrantHubRole(caller, addr common.Address) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.admins[caller] {
		return ErrNotAdmin
	}
	if addr == (common.Address{}) {
		return ErrInvalidAddress
	}
	c.hubs[addr] = true
	return nil
}

// RegisterPassport creates the ledger entry for id. Re-registration and hash
// reuse are rejected, not overwritten.
func (c *Contract) RegisterPassport(caller common.Address, id, hash [32]byte, metadataURI string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkRegister(caller, id, hash); err != nil {
		return err
	}
	c.apply(caller, id, hash, metadataURI)
	return nil
}

// RegisterPassportBatch registers all triples or none. Validation runs over
// the whole batch, including intra-batch duplicates, before any entry lands.
func (c *Contract) RegisterPassportBatch(caller common.Address, ids, hashes [][32]byte, metadataURIs []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(ids) != len(hashes) || len(ids) != len(metadataURIs) {
		return ErrLengthMismatch
	}
	seenIDs := make(map[[32]byte]bool, len(ids))
	seenHashes := make(map[[32]byte]bool, len(hashes))
	for i := range ids {
		if err := c.checkRegister(caller, ids[i], hashes[i]); err != nil {
			return err
		}
		if seenIDs[ids[i]] {
			return ErrPassportExists
		}
		if seenHashes[hashes[i]] {
			return ErrHashExists
		}
		seenIDs[ids[i]] = true
		seenHashes[hashes[i]] = true
	}
	for i := range ids {
		c.apply(caller, ids[i], hashes[i], metadataURIs[i])
	}
	return nil
}

// UpdateStatus sets any enumerated status. No transition ordering is
// enforced beyond the role check; off-chain logic owns the ordering.
func (c *Contract) UpdateStatus(caller common.Address, id [32]byte, status Status) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.paused {
		return ErrPaused
	}
	if !status.Valid() {
		return ErrInvalidStatus
	}
	rec, ok := c.records[id]
	if !ok {
		return ErrUnknownPassport
	}
	if rec.Owner != caller && !c.admins[caller] {
		return ErrNotOwner
	}
	old := rec.Status
	rec.Status = status
	c.records[id] = rec
	c.emit(Event{
		Type:      EventStatusChanged,
		ID:        id,
		OldStatus: old,
		NewStatus: status,
		Timestamp: c.now(),
	})
	return nil
}

// UpdatePassportHash supersedes the stored hash after an off-chain amendment.
// The old hash->id mapping is removed so the hash-uniqueness invariant holds
// over the new hash only.
func (c *Contract) UpdatePassportHash(caller common.Address, id, newHash [32]byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.paused {
		return ErrPaused
	}
	if newHash == ([32]byte{}) {
		return ErrInvalidHash
	}
	rec, ok := c.records[id]
	if !ok {
		return ErrUnknownPassport
	}
	if rec.Owner != caller && !c.admins[caller] {
		return ErrNotOwner
	}
	if existing, taken := c.hashIndex[newHash]; taken && existing != id {
		return ErrHashExists
	}
	old := rec.Hash
	delete(c.hashIndex, old)
	c.hashIndex[newHash] = id
	rec.Hash = newHash
	c.records[id] = rec
	c.emit(Event{
		Type:      EventHashUpdated,
		ID:        id,
		OldHash:   old,
		NewHash:   newHash,
		Timestamp: c.now(),
	})
	return nil
}

// TransferPassport hands ownership to newOwner; status and hash are untouched.
func (c *Contract) TransferPassport(caller common.Address, id [32]byte, newOwner common.Address) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.paused {
		return ErrPaused
	}
	if newOwner == (common.Address{}) {
		return ErrInvalidAddress
	}
	rec, ok := c.records[id]
	if !ok {
		return ErrUnknownPassport
	}
	if rec.Owner != caller && !c.admins[caller] {
		return ErrNotOwner
	}
	old := rec.Owner
	rec.Owner = newOwner
	c.records[id] = rec
	c.emit(Event{
		Type:      EventTransferred,
		ID:        id,
		OldOwner:  old,
		NewOwner:  newOwner,
		Timestamp: c.now(),
	})
	return nil
}

// Pause blocks every mutating entry point until Unpause. Reads stay open.
func (c *Contract) Pause(caller common.Address) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.admins[caller] {
		return ErrNotAdmin
	}
	c.paused = true
	return nil
}

func (c *Contract) Unpause(caller common.Address) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.admins[caller] {
		return ErrNotAdmin
	}
	c.paused = false
	return nil
}

// VerifyPassport reports whether hash matches the stored hash for id.
// Unknown ids verify false rather than erroring.
func (c *Contract) VerifyPassport(id, hash [32]byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.records[id]
	return ok && rec.Hash == hash
}

// GetPassport returns the ledger record for id.
func (c *Contract) GetPassport(id [32]byte) (Record, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.records[id]
	return rec, ok
}

// GetPassportByHash resolves the reverse index; the zero id means absent.
func (c *Contract) GetPassportByHash(hash [32]byte) [32]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hashIndex[hash]
}

// TotalPassports returns the number of registrations ever made.
func (c *Contract) TotalPassports() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.total
}

// Paused reports the pause flag.
func (c *Contract) Paused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

// Events returns a snapshot of emitted events in order.
func (c *Contract) Events() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Event, len(c.events))
	copy(out, c.events)
	return out
}

// checkRegister validates a single registration under the lock.
func (c *Contract) checkRegister(caller common.Address, id, hash [32]byte) error {
	if c.paused {
		return ErrPaused
	}
	if !c.hubs[caller] && !c.admins[caller] {
		return ErrNotAuthorized
	}
	if id == ([32]byte{}) {
		return ErrInvalidPassportID
	}
	if hash == ([32]byte{}) {
		return ErrInvalidHash
	}
	if _, exists := c.records[id]; exists {
		return ErrPassportExists
	}
	if _, taken := c.hashIndex[hash]; taken {
		return ErrHashExists
	}
	return nil
}

// apply installs a validated registration under the lock.
func (c *Contract) apply(caller common.Address, id, hash [32]byte, metadataURI string) {
	ts := c.now()
	c.records[id] = Record{
		Hash:         hash,
		Owner:        caller,
		Status:       StatusActive,
		MetadataURI:  metadataURI,
		RegisteredAt: ts,
	}
	c.hashIndex[hash] = id
	c.total++
	c.emit(Event{
		Type:      EventRegistered,
		ID:        id,
		NewHash:   hash,
		NewOwner:  caller,
		URI:       metadataURI,
		Timestamp: ts,
	})
}

func (c *Contract) emit(e Event) {
	c.events = append(c.events, e)
}
