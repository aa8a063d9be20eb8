package core

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Right is a runtime permission a RigorousCapability may grant over a
// resource register, distinct from the compile-time Capability the type
// checker consults: this is the authorization the engine checks before
// executing an operation against a live register, not before accepting a
// term during type checking.
type Right uint8

const (
	RightRead Right = iota
	RightWrite
	RightCreate
	RightUpdate
	RightDelete
	RightExecute
	RightTransfer
	RightDelegate
)

// CapabilityStatus is the outcome of validating a RigorousCapability.
type CapabilityStatus uint8

const (
	CapabilityValid CapabilityStatus = iota
	CapabilityExpired
	CapabilityRevoked
	CapabilityMissingProof
	CapabilityConstraintViolated
)

func (s CapabilityStatus) String() string {
	switch s {
	case CapabilityValid:
		return "Valid"
	case CapabilityExpired:
		return "Expired"
	case CapabilityRevoked:
		return "Revoked"
	case CapabilityMissingProof:
		return "MissingProof"
	case CapabilityConstraintViolated:
		return "ConstraintViolated"
	default:
		return "Unknown"
	}
}

// RigorousCapability is a runtime grant of Rights over a single resource
// register, optionally chained to a parent it was delegated from, bearing
// an optional proof of validity and a set of usage constraints (the same
// Constraint union the type checker's compile-time Capability uses).
type RigorousCapability struct {
	ID            string
	ResourceID    EntityID
	Rights        map[Right]bool
	DelegatedFrom string
	Issuer        Address
	Owner         Address
	ExpiresAt     *int64
	RevocationID  string
	Delegatable   bool
	Constraints   []Constraint
	HasProof      bool
}

func (c *RigorousCapability) hasRight(r Right) bool { return c.Rights[r] }

// RightSet builds a Rights map from a variadic list, the usual way to
// construct a RigorousCapability's grant.
func RightSet(rights ...Right) map[Right]bool {
	out := make(map[Right]bool, len(rights))
	for _, r := range rights {
		out[r] = true
	}
	return out
}

// CapabilitySystem is a mutex-guarded store of RigorousCapabilities with
// revocation tracking and per-capability use counters, mirroring the
// register's own guarded-struct-plus-logrus idiom.
type CapabilitySystem struct {
	mu          sync.RWMutex
	caps        map[string]*RigorousCapability
	uses        map[string]int
	revocations map[string]bool

	log *logrus.Entry
}

func NewCapabilitySystem() *CapabilitySystem {
	return &CapabilitySystem{
		caps:        map[string]*RigorousCapability{},
		uses:        map[string]int{},
		revocations: map[string]bool{},
		log:         logrus.WithField("component", "capability_system"),
	}
}

// Create stores cap, assigning it a fresh ID if it doesn't already have one.
func (s *CapabilitySystem) Create(cap *RigorousCapability) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cap.ID == "" {
		cap.ID = uuid.NewString()
	}
	s.caps[cap.ID] = cap
	s.log.WithFields(logrus.Fields{"capability": cap.ID, "owner": cap.Owner.String()}).Debug("capability created")
	return cap.ID
}

// Get returns the capability with the given id.
func (s *CapabilitySystem) Get(id string) (*RigorousCapability, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cap, ok := s.caps[id]
	if !ok {
		return nil, NewError(ErrCapability, "capability not found: %s", id)
	}
	return cap, nil
}

func (s *CapabilitySystem) isRevoked(cap *RigorousCapability) bool {
	revocationID := cap.RevocationID
	if revocationID == "" {
		revocationID = cap.ID
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.revocations[revocationID]
}

func isExpired(cap *RigorousCapability, now int64) bool {
	return cap.ExpiresAt != nil && now > *cap.ExpiresAt
}

// validateConstraints checks cap's constraints against the operation being
// attempted (empty operation/params skip operation- and parameter-specific
// constraints, the case when validating a capability in the abstract).
func (s *CapabilitySystem) validateConstraints(cap *RigorousCapability, operation string, quantity uint64, now int64) CapabilityStatus {
	for _, c := range cap.Constraints {
		switch c.Kind {
		case ConstraintMaxUses:
			s.mu.RLock()
			used := s.uses[cap.ID]
			s.mu.RUnlock()
			if used >= c.MaxUses {
				return CapabilityConstraintViolated
			}
		case ConstraintTimeWindow:
			if now < c.WindowStart || now > c.WindowEnd {
				return CapabilityConstraintViolated
			}
		case ConstraintOperations:
			if operation != "" && !containsString(c.Operations, operation) {
				return CapabilityConstraintViolated
			}
		case ConstraintMaxQuantity:
			if quantity > c.MaxQuantity {
				return CapabilityConstraintViolated
			}
		}
	}
	return CapabilityValid
}

func containsString(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}

// Validate reports the capability's status: revoked and expired checks
// first, then a missing-proof check, then constraint validation with no
// operation or quantity context.
func (s *CapabilitySystem) Validate(id string) (CapabilityStatus, error) {
	cap, err := s.Get(id)
	if err != nil {
		return 0, err
	}
	if s.isRevoked(cap) {
		return CapabilityRevoked, nil
	}
	if isExpired(cap, time.Now().Unix()) {
		return CapabilityExpired, nil
	}
	if !cap.HasProof {
		return CapabilityMissingProof, nil
	}
	return s.validateConstraints(cap, "", 0, time.Now().Unix()), nil
}

// CheckRights reports whether the capability identified by id is valid and
// grants every right in rights.
func (s *CapabilitySystem) CheckRights(id string, rights ...Right) (bool, error) {
	cap, err := s.Get(id)
	if err != nil {
		return false, err
	}
	status, err := s.Validate(id)
	if err != nil {
		return false, err
	}
	if status != CapabilityValid {
		return false, nil
	}
	for _, r := range rights {
		if !cap.hasRight(r) {
			return false, nil
		}
	}
	return true, nil
}

// CanPerformOperation reports whether the capability is valid and its
// constraints permit operation at the given quantity (0 when the operation
// is not quantity-bearing).
func (s *CapabilitySystem) CanPerformOperation(id, operation string, quantity uint64) (bool, error) {
	cap, err := s.Get(id)
	if err != nil {
		return false, err
	}
	status, err := s.Validate(id)
	if err != nil {
		return false, err
	}
	if status != CapabilityValid {
		return false, nil
	}
	return s.validateConstraints(cap, operation, quantity, time.Now().Unix()) == CapabilityValid, nil
}

// ConsumeUse increments the use counter backing a MaxUses constraint.
func (s *CapabilitySystem) ConsumeUse(id string) error {
	if _, err := s.Get(id); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uses[id]++
	return nil
}

// Delegate creates a child capability owned by `to`, holding a subset of
// the parent's rights and a fresh set of constraints. The parent must be
// valid and delegatable, and must itself hold every right being delegated.
func (s *CapabilitySystem) Delegate(fromID string, to Address, rights []Right, constraints []Constraint, delegatable bool) (string, error) {
	parent, err := s.Get(fromID)
	if err != nil {
		return "", err
	}
	status, err := s.Validate(fromID)
	if err != nil {
		return "", err
	}
	if status != CapabilityValid {
		return "", NewError(ErrCapability, "cannot delegate from a capability in status %s", status)
	}
	if !parent.Delegatable {
		return "", NewError(ErrCapability, "capability %s is not delegatable", fromID)
	}
	for _, r := range rights {
		if !parent.hasRight(r) {
			return "", NewError(ErrCapability, "cannot delegate right %d absent from parent capability", r)
		}
	}

	child := &RigorousCapability{
		ID:            uuid.NewString(),
		ResourceID:    parent.ResourceID,
		Rights:        RightSet(rights...),
		DelegatedFrom: fromID,
		Issuer:        parent.Owner,
		Owner:         to,
		ExpiresAt:     parent.ExpiresAt,
		RevocationID:  uuid.NewString(),
		Delegatable:   delegatable,
		Constraints:   constraints,
		HasProof:      parent.HasProof,
	}
	s.Create(child)
	s.log.WithFields(logrus.Fields{"parent": fromID, "child": child.ID, "owner": to.String()}).Info("capability delegated")
	return child.ID, nil
}

// Revoke adds the capability's revocation id (or its own id, if it has
// none) to the revocation set. Every capability delegated from a revoked
// one that shares the same revocation id is revoked along with it.
func (s *CapabilitySystem) Revoke(id string) error {
	cap, err := s.Get(id)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	revocationID := cap.RevocationID
	if revocationID == "" {
		revocationID = id
	}
	s.revocations[revocationID] = true
	s.log.WithField("revocation", revocationID).Info("capability revoked")
	return nil
}

// ForResource returns every capability granted over resourceID.
func (s *CapabilitySystem) ForResource(resourceID EntityID) []*RigorousCapability {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*RigorousCapability
	for _, c := range s.caps {
		if c.ResourceID == resourceID {
			out = append(out, c)
		}
	}
	return out
}

// ForOwner returns every capability owned by owner.
func (s *CapabilitySystem) ForOwner(owner Address) []*RigorousCapability {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*RigorousCapability
	for _, c := range s.caps {
		if c.Owner == owner {
			out = append(out, c)
		}
	}
	return out
}

// AuthorizationService answers "may address perform this operation on this
// resource" by scanning the capability system for a valid, sufficient
// grant, consuming a use on success.
type AuthorizationService struct {
	system *CapabilitySystem
}

func NewAuthorizationService(system *CapabilitySystem) *AuthorizationService {
	return &AuthorizationService{system: system}
}

// Authorize reports whether address holds a capability over resourceID
// granting every right in required and permitting operation, consuming a
// use of the first capability that qualifies.
func (a *AuthorizationService) Authorize(address Address, resourceID EntityID, operation string, required []Right) (bool, error) {
	for _, cap := range a.system.ForResource(resourceID) {
		if cap.Owner != address {
			continue
		}
		ok, err := a.system.CheckRights(cap.ID, required...)
		if err != nil || !ok {
			continue
		}
		ok, err = a.system.CanPerformOperation(cap.ID, operation, 0)
		if err != nil || !ok {
			continue
		}
		_ = a.system.ConsumeUse(cap.ID)
		return true, nil
	}
	return false, nil
}
