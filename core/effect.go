package core

import "github.com/sirupsen/logrus"

// EffectBoundary classifies where an effect's side-channel actually lands:
// Local effects touch only this process's registers; CrossDomain effects
// reach across a Domain adapter and so carry the additional authorization
// and locking discipline that requires.
type EffectBoundary uint8

const (
	EffectLocal EffectBoundary = iota
	EffectCrossDomain
)

func (b EffectBoundary) String() string {
	if b == EffectCrossDomain {
		return "CrossDomain"
	}
	return "Local"
}

// EffectContext carries the capabilities and identity an effect executes
// under. Effects consult it during Validate and never look anywhere else
// for authorization; there is no ambient global capability state.
type EffectContext struct {
	Caller            Address
	Capabilities      *CapabilitySystem
	CrossDomainGrants map[string]bool
}

func NewEffectContext(caller Address, capabilities *CapabilitySystem) *EffectContext {
	return &EffectContext{Caller: caller, Capabilities: capabilities, CrossDomainGrants: map[string]bool{}}
}

// GrantCrossDomain records that the context carries the named cross-domain
// grant (e.g. "transfer-assets", "resource-locking:Exclusive") — a coarser,
// boundary-level permission checked before any per-resource capability.
func (c *EffectContext) GrantCrossDomain(name string) { c.CrossDomainGrants[name] = true }

func (c *EffectContext) HasCrossDomainGrant(name string) bool { return c.CrossDomainGrants[name] }

// EffectOutcome is the result of successfully executing an Effect: which
// resources changed, under what domain, plus free-form metadata the caller
// can inspect (e.g. "source_domain"/"target_domain" on a transfer).
type EffectOutcome struct {
	EffectID string
	Success  bool
	Changed  []EntityID
	Domain   string
	Metadata map[string]string
}

func NewEffectOutcome(effectID string) *EffectOutcome {
	return &EffectOutcome{EffectID: effectID, Success: true, Metadata: map[string]string{}}
}

func (o *EffectOutcome) WithChange(id EntityID) *EffectOutcome {
	o.Changed = append(o.Changed, id)
	return o
}

func (o *EffectOutcome) WithMetadata(key, value string) *EffectOutcome {
	o.Metadata[key] = value
	return o
}

// Effect is a unit of cross-domain or local work that validates its
// preconditions before executing, so a caller can check `Validate` to fail
// fast without committing any side effect.
type Effect interface {
	ID() string
	Boundary() EffectBoundary
	Description() string
	Validate(ctx *EffectContext) error
	Execute(ctx *EffectContext) (*EffectOutcome, error)
}

// BaseEffect is embedded by every concrete Effect to supply the id/boundary
// bookkeeping common to all of them, the way a base class would in a
// language with inheritance.
type BaseEffect struct {
	id       string
	boundary EffectBoundary
	log      *logrus.Entry
}

func NewBaseEffect(id string, boundary EffectBoundary) BaseEffect {
	return BaseEffect{id: id, boundary: boundary, log: logrus.WithField("effect", id)}
}

func (e BaseEffect) ID() string              { return e.id }
func (e BaseEffect) Boundary() EffectBoundary { return e.boundary }

// requireCrossDomainGrant is the check every cross-domain effect's Validate
// performs first: without the coarse-grained grant, no per-resource
// capability check is even attempted.
func requireCrossDomainGrant(ctx *EffectContext, grant string) error {
	if !ctx.HasCrossDomainGrant(grant) {
		return NewError(ErrCapability, "missing cross-domain grant: %s", grant)
	}
	return nil
}

// requireRights is the per-resource authorization check every effect's
// Validate performs after the coarse-grained grant check passes.
func requireRights(ctx *EffectContext, resourceID EntityID, rights ...Right) error {
	if ctx.Capabilities == nil {
		return NewErrorFor(ErrCapability, resourceID, "no capability system attached to effect context")
	}
	authz := NewAuthorizationService(ctx.Capabilities)
	ok, err := authz.Authorize(ctx.Caller, resourceID, "", rights)
	if err != nil {
		return err
	}
	if !ok {
		return NewErrorFor(ErrCapability, resourceID, "caller lacks required rights %v", rights)
	}
	return nil
}
