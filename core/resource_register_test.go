package core

import (
	"sync"
	"testing"
)

func TestResourceRegisterLifecycle(t *testing.T) {
	var owner Address
	owner[0] = 7
	r := NewResourceRegister(NumberValue(42), owner)

	if r.State() != ResourceInitial {
		t.Fatalf("expected Initial, got %v", r.State())
	}
	if err := r.Activate(); err != nil {
		t.Fatalf("activate: %v", err)
	}
	if !r.IsActive() {
		t.Fatalf("expected Active after activation")
	}
	if err := r.Lock(); err != nil {
		t.Fatalf("lock: %v", err)
	}
	if !r.IsLocked() {
		t.Fatalf("expected Locked")
	}
	if err := r.Unlock(); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	if err := r.Freeze(); err != nil {
		t.Fatalf("freeze: %v", err)
	}
	if !r.IsFrozen() {
		t.Fatalf("expected Frozen")
	}
	if err := r.Unfreeze(); err != nil {
		t.Fatalf("unfreeze: %v", err)
	}
	if err := r.Archive("cold storage"); err != nil {
		t.Fatalf("archive: %v", err)
	}
	if !r.IsArchived() {
		t.Fatalf("expected Archived")
	}
	if r.Archival() == nil || r.Archival().Reason != "cold storage" {
		t.Fatalf("expected archival reason recorded")
	}
	if err := r.Unarchive(); err != nil {
		t.Fatalf("unarchive: %v", err)
	}
	if r.Archival() != nil {
		t.Fatalf("expected archival cleared after unarchive")
	}
	if err := r.Consume(); err != nil {
		t.Fatalf("consume: %v", err)
	}
	if !r.IsConsumed() {
		t.Fatalf("expected Consumed")
	}
}

func TestResourceRegisterIllegalTransitions(t *testing.T) {
	var owner Address
	r := NewResourceRegister(StringValue("x"), owner)

	if err := r.Lock(); err == nil {
		t.Fatalf("expected error locking an Initial register")
	} else if !IsKind(err, ErrResourceState) {
		t.Fatalf("expected ErrResourceState, got %v", err)
	}

	if err := r.Activate(); err != nil {
		t.Fatalf("activate: %v", err)
	}
	if err := r.Consume(); err != nil {
		t.Fatalf("consume: %v", err)
	}
	if err := r.Activate(); err == nil {
		t.Fatalf("expected error resurrecting a Consumed register")
	}
	if err := r.Archive("too late"); err == nil {
		t.Fatalf("expected error archiving a Consumed register")
	}
}

func TestResourceRegisterUpdateContents(t *testing.T) {
	var owner Address
	r := NewResourceRegister(NumberValue(1), owner)

	if err := r.UpdateContents(NumberValue(2)); err == nil {
		t.Fatalf("expected error updating contents before activation")
	}
	if err := r.Activate(); err != nil {
		t.Fatalf("activate: %v", err)
	}
	before := r.ContentHash()
	if err := r.UpdateContents(NumberValue(2)); err != nil {
		t.Fatalf("update contents: %v", err)
	}
	after := r.ContentHash()
	if before == after {
		t.Fatalf("expected content hash to change after update")
	}
	if !r.Content().Equal(NumberValue(2)) {
		t.Fatalf("expected updated content to read back")
	}

	if err := r.Consume(); err != nil {
		t.Fatalf("consume: %v", err)
	}
	if err := r.UpdateContents(NumberValue(3)); err == nil {
		t.Fatalf("expected error updating a Consumed register's contents")
	}
}

func TestResourceRegisterMetadata(t *testing.T) {
	var owner Address
	r := NewResourceRegister(NilValue(), owner)
	r.SetMetadata("domain", "ethereum")
	md := r.Metadata()
	if md["domain"] != "ethereum" {
		t.Fatalf("expected metadata to round-trip, got %v", md)
	}
	md["domain"] = "mutated"
	if r.Metadata()["domain"] != "ethereum" {
		t.Fatalf("Metadata() should return a defensive copy")
	}
}

func TestResourceRegisterConcurrentTransitions(t *testing.T) {
	var owner Address
	r := NewResourceRegister(BoolValue(true), owner)
	if err := r.Activate(); err != nil {
		t.Fatalf("activate: %v", err)
	}

	var wg sync.WaitGroup
	successes := make([]int32, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			if err := r.Lock(); err == nil {
				successes[idx] = 1
			}
		}(i)
	}
	wg.Wait()

	var total int32
	for _, s := range successes {
		total += s
	}
	if total != 1 {
		t.Fatalf("expected exactly one concurrent Lock to succeed from Active, got %d", total)
	}
	if !r.IsLocked() {
		t.Fatalf("expected register to end Locked")
	}
}

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to ResourceState
		want     bool
	}{
		{ResourceInitial, ResourcePending, true},
		{ResourceInitial, ResourceActive, true},
		{ResourceActive, ResourceConsumed, true},
		{ResourceConsumed, ResourceActive, false},
		{ResourceArchived, ResourceActive, true},
		{ResourceLocked, ResourceFrozen, false},
	}
	for _, c := range cases {
		if got := CanTransition(c.from, c.to); got != c.want {
			t.Errorf("CanTransition(%v, %v) = %v, want %v", c.from, c.to, got, c.want)
		}
	}
}
