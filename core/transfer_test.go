package core

import (
	"context"
	"testing"
)

func newTransferManagers() TransferManagers {
	return TransferManagers{
		Registers:    NewResourceRegistry(),
		Locks:        NewLockManager(),
		Capabilities: NewCapabilitySystem(),
		Dependencies: NewDependencyGraph(),
	}
}

func TestCrossDomainTransferEffect(t *testing.T) {
	managers := newTransferManagers()
	var owner Address
	owner[0] = 1
	reg := NewResourceRegister(StringValue("payload"), owner)
	if err := reg.Activate(); err != nil {
		t.Fatalf("activate: %v", err)
	}
	managers.Registers.Register(reg)

	sys := managers.Capabilities
	sys.Create(&RigorousCapability{
		ResourceID: reg.ID(),
		Rights:     RightSet(RightTransfer),
		Owner:      owner,
		HasProof:   true,
	})

	ctx := NewEffectContext(owner, sys)
	ctx.GrantCrossDomain("transfer-assets")

	effect := NewCrossDomainTransferEffect(reg.ID(), "domain-a", "domain-b", managers)
	outcome, err := effect.Execute(ctx)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !outcome.Success {
		t.Fatalf("expected success")
	}
	if outcome.Metadata["target_domain"] != "domain-b" {
		t.Fatalf("expected target_domain metadata, got %v", outcome.Metadata)
	}
	if managers.Locks.IsLocked(reg.ID()) {
		t.Fatalf("expected lock released after transfer")
	}
	if !reg.IsActive() {
		t.Fatalf("expected register reactivated after transfer")
	}
	if reg.Metadata()["domain"] != "domain-b" {
		t.Fatalf("expected domain metadata updated")
	}

	edges := managers.Dependencies.DependenciesOf(reg.ID())
	if len(edges) != 1 || edges[0].Kind != DependencyDomain {
		t.Fatalf("expected one domain dependency edge, got %v", edges)
	}
}

func TestCrossDomainTransferEffectRequiresGrant(t *testing.T) {
	managers := newTransferManagers()
	var owner Address
	reg := NewResourceRegister(NilValue(), owner)
	managers.Registers.Register(reg)

	ctx := NewEffectContext(owner, managers.Capabilities)
	effect := NewCrossDomainTransferEffect(reg.ID(), "a", "b", managers)
	if _, err := effect.Execute(ctx); err == nil {
		t.Fatalf("expected error without cross-domain grant")
	}
}

func TestCrossDomainTransferEffectRejectsLockedResource(t *testing.T) {
	managers := newTransferManagers()
	var owner Address
	reg := NewResourceRegister(NilValue(), owner)
	managers.Registers.Register(reg)
	managers.Capabilities.Create(&RigorousCapability{
		ResourceID: reg.ID(), Rights: RightSet(RightTransfer), Owner: owner, HasProof: true,
	})

	if _, err := managers.Locks.Acquire(context.Background(), reg.ID(), LockExclusive, "someone-else", "", 0); err != nil {
		t.Fatalf("acquire: %v", err)
	}

	ctx := NewEffectContext(owner, managers.Capabilities)
	ctx.GrantCrossDomain("transfer-assets")
	effect := NewCrossDomainTransferEffect(reg.ID(), "a", "b", managers)
	if _, err := effect.Execute(ctx); err == nil {
		t.Fatalf("expected error transferring a resource locked by another holder")
	}
}

func TestCrossDomainDependencyEffect(t *testing.T) {
	managers := newTransferManagers()
	var owner Address
	source := NewResourceRegister(NumberValue(1), owner)
	target := NewResourceRegister(NumberValue(2), owner)
	managers.Registers.Register(source)
	managers.Registers.Register(target)
	for _, r := range []*ResourceRegister{source, target} {
		managers.Capabilities.Create(&RigorousCapability{ResourceID: r.ID(), Rights: RightSet(RightRead), Owner: owner, HasProof: true})
	}

	ctx := NewEffectContext(owner, managers.Capabilities)
	ctx.GrantCrossDomain("resource-dependency")

	effect := NewCrossDomainDependencyEffect(source.ID(), "a", target.ID(), "b", DependencyStrong, managers)
	if _, err := effect.Execute(ctx); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !managers.Dependencies.HasDependency(source.ID(), target.ID()) {
		t.Fatalf("expected dependency recorded")
	}

	if _, err := effect.Execute(ctx); err == nil {
		t.Fatalf("expected error on duplicate dependency")
	}
}
