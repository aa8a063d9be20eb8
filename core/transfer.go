package core

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DependencyKind tags how strongly one resource's state depends on
// another's: Strong dependents cannot outlive their dependency (deleting
// the dependency must fail or cascade), Data dependents merely reference
// it, and Domain dependents exist only to record a cross-domain placement
// edge ("resource R now also lives in domain D").
type DependencyKind uint8

const (
	DependencyStrong DependencyKind = iota
	DependencyData
	DependencyDomain
)

func (k DependencyKind) String() string {
	switch k {
	case DependencyStrong:
		return "Strong"
	case DependencyData:
		return "Data"
	case DependencyDomain:
		return "Domain"
	default:
		return "Unknown"
	}
}

// DependencyEdge is one edge of the resource dependency multigraph: source
// depends on target, of the given kind, optionally scoped to a
// source/target domain pair and the effect that created it.
type DependencyEdge struct {
	Source       EntityID
	Target       EntityID
	Kind         DependencyKind
	SourceDomain string
	TargetDomain string
	EffectID     string
	Metadata     map[string]string
}

// DependencyGraph is a mutex-guarded multigraph over resource ids: more
// than one edge may exist between the same pair of resources (e.g. one
// Strong and one Data edge), so lookups return slices rather than a single
// edge.
type DependencyGraph struct {
	mu       sync.RWMutex
	edges    map[EntityID][]DependencyEdge
	onMutate []func()
}

func NewDependencyGraph() *DependencyGraph {
	return &DependencyGraph{edges: map[EntityID][]DependencyEdge{}}
}

// OnMutate registers f to run after every AddDependency/RemoveDependency
// call that actually changes the graph. RelationshipQueryEngine hooks this
// to purge its cached paths so a query never serves a path computed before
// the mutation.
func (g *DependencyGraph) OnMutate(f func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.onMutate = append(g.onMutate, f)
}

func (g *DependencyGraph) notifyMutated() {
	g.mu.RLock()
	callbacks := append([]func(){}, g.onMutate...)
	g.mu.RUnlock()
	for _, f := range callbacks {
		f()
	}
}

// HasDependency reports whether any edge already runs from source to
// target, regardless of kind.
func (g *DependencyGraph) HasDependency(source, target EntityID) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, e := range g.edges[source] {
		if e.Target == target {
			return true
		}
	}
	return false
}

// AddDependency records edge, rejecting an exact duplicate (same source,
// target and kind).
func (g *DependencyGraph) AddDependency(edge DependencyEdge) error {
	g.mu.Lock()
	for _, e := range g.edges[edge.Source] {
		if e.Target == edge.Target && e.Kind == edge.Kind {
			g.mu.Unlock()
			return NewErrorFor(ErrInternal, edge.Source, "duplicate %s dependency to %s already exists", edge.Kind, edge.Target.String())
		}
	}
	g.edges[edge.Source] = append(g.edges[edge.Source], edge)
	g.mu.Unlock()
	g.notifyMutated()
	return nil
}

// DependenciesOf returns every edge whose source is resourceID.
func (g *DependencyGraph) DependenciesOf(resourceID EntityID) []DependencyEdge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]DependencyEdge, len(g.edges[resourceID]))
	copy(out, g.edges[resourceID])
	return out
}

// RemoveDependency drops any edge of the given kind from source to target.
// Removing the last Strong dependency on a resource is the caller's
// signal that it may now be safely archived or consumed.
func (g *DependencyGraph) RemoveDependency(source, target EntityID, kind DependencyKind) {
	g.mu.Lock()
	edges := g.edges[source]
	out := edges[:0]
	removed := false
	for _, e := range edges {
		if e.Target == target && e.Kind == kind {
			removed = true
			continue
		}
		out = append(out, e)
	}
	if len(out) == 0 {
		delete(g.edges, source)
	} else {
		g.edges[source] = out
	}
	g.mu.Unlock()
	if removed {
		g.notifyMutated()
	}
}

// TransferManagers bundles the collaborators a cross-domain transfer needs:
// the registry of registers being moved, the lock manager guarding
// exclusive access during the move, the capability system authorizing it,
// and the dependency graph recording the resulting domain placement.
type TransferManagers struct {
	Registers    *ResourceRegistry
	Locks        *LockManager
	Capabilities *CapabilitySystem
	Dependencies *DependencyGraph
}

// CrossDomainTransferEffect moves a resource register from a source domain
// to a target domain in seven steps: authorize, lock, freeze, record the
// domain placement as a dependency edge, unfreeze, set the register's
// "domain" metadata to the target, and release the lock. No register is
// created in the target domain; the move is recorded only by that edge and
// the metadata.
type CrossDomainTransferEffect struct {
	BaseEffect

	ResourceID   EntityID
	SourceDomain string
	TargetDomain string
	Timeout      time.Duration
	Metadata     map[string]string

	managers TransferManagers
	log      *zap.SugaredLogger
}

func NewCrossDomainTransferEffect(resourceID EntityID, sourceDomain, targetDomain string, managers TransferManagers) *CrossDomainTransferEffect {
	return &CrossDomainTransferEffect{
		BaseEffect:   NewBaseEffect(uuid.NewString(), EffectCrossDomain),
		ResourceID:   resourceID,
		SourceDomain: sourceDomain,
		TargetDomain: targetDomain,
		Metadata:     map[string]string{},
		managers:     managers,
		log:          zap.L().Sugar().With("component", "cross_domain_transfer"),
	}
}

func (e *CrossDomainTransferEffect) Description() string {
	return "transfer resource " + e.ResourceID.String() + " from domain " + e.SourceDomain + " to domain " + e.TargetDomain
}

// Validate checks the coarse-grained transfer grant, the per-resource
// Transfer right, and that the resource is not already locked by another
// holder.
func (e *CrossDomainTransferEffect) Validate(ctx *EffectContext) error {
	if err := requireCrossDomainGrant(ctx, "transfer-assets"); err != nil {
		return err
	}
	if err := requireRights(ctx, e.ResourceID, RightTransfer); err != nil {
		return err
	}
	if e.managers.Locks.IsLocked(e.ResourceID) {
		return NewErrorFor(ErrLock, e.ResourceID, "resource is locked and cannot be transferred")
	}
	return nil
}

// Execute performs the transfer. On any failure after the lock is
// acquired, the lock is always released before returning.
func (e *CrossDomainTransferEffect) Execute(ctx *EffectContext) (*EffectOutcome, error) {
	if err := e.Validate(ctx); err != nil {
		return nil, err
	}

	holder := e.ID()
	status, err := e.managers.Locks.Acquire(context.Background(), e.ResourceID, LockExclusive, holder, e.SourceDomain, e.Timeout)
	if err != nil {
		return nil, err
	}
	if status == LockAcquired {
		defer e.managers.Locks.Release(e.ResourceID, holder)
	}

	reg, err := e.managers.Registers.Get(e.ResourceID)
	if err != nil {
		return nil, err
	}
	if err := reg.Freeze(); err != nil {
		return nil, Wrapf(err, "marking resource pending transfer")
	}

	edge := DependencyEdge{
		Source:       e.ResourceID,
		Target:       domainPlacementID(e.TargetDomain),
		Kind:         DependencyDomain,
		SourceDomain: e.SourceDomain,
		TargetDomain: e.TargetDomain,
		EffectID:     e.ID(),
		Metadata:     e.Metadata,
	}
	if err := e.managers.Dependencies.AddDependency(edge); err != nil {
		_ = reg.Unfreeze()
		return nil, err
	}

	if err := reg.Unfreeze(); err != nil {
		return nil, Wrapf(err, "reactivating resource after transfer")
	}
	reg.SetMetadata("domain", e.TargetDomain)

	// The resource is now co-present in both domains until an external
	// reconciler observes and clears this marker; the core only exposes it.
	reg.SetMetadata("reconciliation_pending", "true")

	e.log.Infow("resource transferred across domains",
		"resource", e.ResourceID.String(), "from", e.SourceDomain, "to", e.TargetDomain)

	outcome := NewEffectOutcome(e.ID()).WithChange(e.ResourceID).WithMetadata("source_domain", e.SourceDomain).WithMetadata("target_domain", e.TargetDomain)
	outcome.Domain = e.TargetDomain
	return outcome, nil
}

// domainPlacementID derives a stable synthetic EntityID representing "the
// target domain itself" as a dependency-graph node, so a domain placement
// can be recorded as an ordinary dependency edge without a real resource on
// the other end.
func domainPlacementID(domain string) EntityID {
	enc := NewCanonicalEncoder()
	enc.Str("domain-placement")
	enc.Str(domain)
	return HashValue(enc.Bytes())
}

// CrossDomainDependencyEffect records a Strong or Data dependency between
// two resources that may live in different domains, failing if the edge
// already exists.
type CrossDomainDependencyEffect struct {
	BaseEffect

	Source       EntityID
	SourceDomain string
	Target       EntityID
	TargetDomain string
	Kind         DependencyKind
	Metadata     map[string]string

	managers TransferManagers
}

func NewCrossDomainDependencyEffect(source EntityID, sourceDomain string, target EntityID, targetDomain string, kind DependencyKind, managers TransferManagers) *CrossDomainDependencyEffect {
	return &CrossDomainDependencyEffect{
		BaseEffect:   NewBaseEffect(uuid.NewString(), EffectCrossDomain),
		Source:       source,
		SourceDomain: sourceDomain,
		Target:       target,
		TargetDomain: targetDomain,
		Kind:         kind,
		Metadata:     map[string]string{},
		managers:     managers,
	}
}

func (e *CrossDomainDependencyEffect) Description() string {
	return e.Kind.String() + " dependency from " + e.Source.String() + " to " + e.Target.String()
}

func (e *CrossDomainDependencyEffect) Validate(ctx *EffectContext) error {
	if err := requireCrossDomainGrant(ctx, "resource-dependency"); err != nil {
		return err
	}
	if err := requireRights(ctx, e.Source, RightRead); err != nil {
		return err
	}
	if err := requireRights(ctx, e.Target, RightRead); err != nil {
		return err
	}
	if e.managers.Dependencies.HasDependency(e.Source, e.Target) {
		return NewErrorFor(ErrInternal, e.Source, "dependency already exists to %s", e.Target.String())
	}
	return nil
}

func (e *CrossDomainDependencyEffect) Execute(ctx *EffectContext) (*EffectOutcome, error) {
	if err := e.Validate(ctx); err != nil {
		return nil, err
	}
	edge := DependencyEdge{
		Source:       e.Source,
		Target:       e.Target,
		Kind:         e.Kind,
		SourceDomain: e.SourceDomain,
		TargetDomain: e.TargetDomain,
		EffectID:     e.ID(),
		Metadata:     e.Metadata,
	}
	if err := e.managers.Dependencies.AddDependency(edge); err != nil {
		return nil, err
	}
	outcome := NewEffectOutcome(e.ID()).WithChange(e.Source).
		WithMetadata("target_resource", e.Target.String()).
		WithMetadata("dependency_type", e.Kind.String())
	return outcome, nil
}
