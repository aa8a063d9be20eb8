package core

import (
	"encoding/hex"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Address identifies an owner or controller of a resource register: either a
// local account or an opaque domain-qualified identifier for a counterparty
// on another chain. 20 bytes, the same width as an account address.
type Address [20]byte

func (a Address) String() string { return hex.EncodeToString(a[:]) }

// IsZero reports whether a is the unset address.
func (a Address) IsZero() bool { return a == Address{} }

// ResourceState is the lifecycle state of a ResourceRegister. Every
// transition is validated against resourceTransitions; callers attempting an
// invalid move receive a *CausalityError of kind ErrResourceState rather
// than silently corrupting register state.
type ResourceState uint8

const (
	ResourceInitial ResourceState = iota
	ResourcePending
	ResourceActive
	ResourceLocked
	ResourceFrozen
	ResourceConsumed
	ResourceArchived
)

func (s ResourceState) String() string {
	switch s {
	case ResourceInitial:
		return "Initial"
	case ResourcePending:
		return "Pending"
	case ResourceActive:
		return "Active"
	case ResourceLocked:
		return "Locked"
	case ResourceFrozen:
		return "Frozen"
	case ResourceConsumed:
		return "Consumed"
	case ResourceArchived:
		return "Archived"
	default:
		return "Unknown"
	}
}

// resourceTransitions is the closed set of legal state moves: Initial begins
// a register's life and may go straight to Active or pass through Pending
// first, Pending is the provisional state before first activation, Active is
// the normal usable state, Locked and Frozen are reversible holds placed on
// an Active register (by a lock manager or an administrative freeze
// respectively), Consumed is terminal, and Archived is a reversible
// cold-storage state reachable only from Active.
var resourceTransitions = map[ResourceState]map[ResourceState]bool{
	ResourceInitial:  {ResourcePending: true, ResourceActive: true},
	ResourcePending:  {ResourceActive: true},
	ResourceActive:   {ResourceLocked: true, ResourceFrozen: true, ResourceConsumed: true, ResourceArchived: true},
	ResourceLocked:   {ResourceActive: true},
	ResourceFrozen:   {ResourceActive: true},
	ResourceArchived: {ResourceActive: true},
	ResourceConsumed: {},
}

// CanTransition reports whether moving from `from` to `to` is a legal
// ResourceRegister state transition.
func CanTransition(from, to ResourceState) bool {
	return resourceTransitions[from][to]
}

// ArchivalInfo records why and when a register was archived, cleared on
// unarchive.
type ArchivalInfo struct {
	ArchivedAt int64
	Reason     string
}

// ResourceRegister is a single linear resource slot: a content-addressed
// value under lifecycle management, owned by an Address, carrying
// free-form string metadata. All mutation goes through the register's own
// methods, which hold regMu for the duration of the state check and update.
type ResourceRegister struct {
	regMu sync.RWMutex

	id        EntityID
	content   Value
	state     ResourceState
	owner     Address
	metadata  map[string]string
	createdAt int64
	updatedAt int64
	archival  *ArchivalInfo

	log *logrus.Entry
}

// NewResourceRegister creates a register in the Initial state. Its id is
// hashed once, here, from content, owner and the creation time in unix
// seconds; later content, metadata or state changes do not alter it, and
// two registers with identical content and owner created in the same
// second share an id.
func NewResourceRegister(content Value, owner Address) *ResourceRegister {
	now := time.Now().Unix()
	r := &ResourceRegister{
		content:   content,
		state:     ResourceInitial,
		owner:     owner,
		metadata:  map[string]string{},
		createdAt: now,
		updatedAt: now,
		log:       logrus.WithField("component", "resource_register"),
	}
	enc := NewCanonicalEncoder()
	content.EncodeCanonical(enc)
	enc.Bytes(owner[:])
	enc.I64(now)
	r.id = HashValue(enc.Bytes())
	return r
}

func (r *ResourceRegister) ID() EntityID { return r.id }

func (r *ResourceRegister) State() ResourceState {
	r.regMu.RLock()
	defer r.regMu.RUnlock()
	return r.state
}

func (r *ResourceRegister) Owner() Address {
	r.regMu.RLock()
	defer r.regMu.RUnlock()
	return r.owner
}

func (r *ResourceRegister) Content() Value {
	r.regMu.RLock()
	defer r.regMu.RUnlock()
	return r.content
}

// ContentHash returns the EntityID of the register's current content,
// independent of the register's own id (which also folds in owner and
// creation time). Callers use this to detect silent content drift without
// recomputing the full register id.
func (r *ResourceRegister) ContentHash() EntityID {
	r.regMu.RLock()
	defer r.regMu.RUnlock()
	return ContentID(r.content)
}

// UpdateContents replaces the register's content in place. Only an Active
// or Locked register may have its contents updated; Frozen, Consumed and
// Archived registers reject the call.
func (r *ResourceRegister) UpdateContents(content Value) error {
	r.regMu.Lock()
	defer r.regMu.Unlock()
	if r.state != ResourceActive && r.state != ResourceLocked {
		return NewErrorFor(ErrResourceState, r.id, "cannot update contents of a register in state %s", r.state)
	}
	r.content = content
	r.updatedAt = time.Now().Unix()
	return nil
}

// Metadata returns a defensive copy of the register's metadata map.
func (r *ResourceRegister) Metadata() map[string]string {
	r.regMu.RLock()
	defer r.regMu.RUnlock()
	out := make(map[string]string, len(r.metadata))
	for k, v := range r.metadata {
		out[k] = v
	}
	return out
}

// SetMetadata sets key to value, bumping updatedAt.
func (r *ResourceRegister) SetMetadata(key, value string) {
	r.regMu.Lock()
	defer r.regMu.Unlock()
	r.metadata[key] = value
	r.updatedAt = time.Now().Unix()
}

func (r *ResourceRegister) transition(to ResourceState) error {
	r.regMu.Lock()
	defer r.regMu.Unlock()
	if !resourceTransitions[r.state][to] {
		r.log.WithFields(logrus.Fields{"from": r.state, "to": to, "register": r.id.String()}).Debug("rejected state transition")
		return NewErrorFor(ErrResourceState, r.id, "cannot transition register from %s to %s", r.state, to)
	}
	r.state = to
	r.updatedAt = time.Now().Unix()
	return nil
}

// Activate moves an Initial or Pending register to Active. It is the only
// way out of Initial/Pending.
func (r *ResourceRegister) Activate() error { return r.transition(ResourceActive) }

// Lock moves an Active register to Locked: an exclusive-access hold,
// typically placed by a cross-domain lock manager.
func (r *ResourceRegister) Lock() error { return r.transition(ResourceLocked) }

// Unlock moves a Locked register back to Active.
func (r *ResourceRegister) Unlock() error { return r.transition(ResourceActive) }

// Freeze moves an Active register to Frozen (an administrative hold,
// distinct from Locked in that it is not released by the lock manager).
func (r *ResourceRegister) Freeze() error { return r.transition(ResourceFrozen) }

// Unfreeze moves a Frozen register back to Active.
func (r *ResourceRegister) Unfreeze() error { return r.transition(ResourceActive) }

// Consume moves an Active register to the terminal Consumed state. A
// consumed register can never transition again.
func (r *ResourceRegister) Consume() error { return r.transition(ResourceConsumed) }

// Archive moves an Active register to Archived, recording why.
func (r *ResourceRegister) Archive(reason string) error {
	if err := r.transition(ResourceArchived); err != nil {
		return err
	}
	r.regMu.Lock()
	r.archival = &ArchivalInfo{ArchivedAt: time.Now().Unix(), Reason: reason}
	r.regMu.Unlock()
	return nil
}

// Unarchive moves an Archived register back to Active, clearing its
// archival metadata.
func (r *ResourceRegister) Unarchive() error {
	if err := r.transition(ResourceActive); err != nil {
		return err
	}
	r.regMu.Lock()
	r.archival = nil
	r.regMu.Unlock()
	return nil
}

// Archival returns archival metadata, or nil if the register has never been
// archived (or was unarchived since).
func (r *ResourceRegister) Archival() *ArchivalInfo {
	r.regMu.RLock()
	defer r.regMu.RUnlock()
	if r.archival == nil {
		return nil
	}
	cp := *r.archival
	return &cp
}

func (r *ResourceRegister) IsActive() bool   { return r.State() == ResourceActive }
func (r *ResourceRegister) IsLocked() bool   { return r.State() == ResourceLocked }
func (r *ResourceRegister) IsFrozen() bool   { return r.State() == ResourceFrozen }
func (r *ResourceRegister) IsConsumed() bool { return r.State() == ResourceConsumed }
func (r *ResourceRegister) IsArchived() bool { return r.State() == ResourceArchived }

// CreatedAt and UpdatedAt are unix-second timestamps.
func (r *ResourceRegister) CreatedAt() int64 {
	r.regMu.RLock()
	defer r.regMu.RUnlock()
	return r.createdAt
}

func (r *ResourceRegister) UpdatedAt() int64 {
	r.regMu.RLock()
	defer r.regMu.RUnlock()
	return r.updatedAt
}
