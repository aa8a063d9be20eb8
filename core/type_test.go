package core

import "testing"

func TestTypeEqual(t *testing.T) {
	if !IntType().Equal(IntType()) {
		t.Fatal("expected Int to equal Int")
	}
	if IntType().Equal(BoolType()) {
		t.Fatal("expected Int to not equal Bool")
	}
	a := LinearFunctionType(IntType(), BoolType())
	b := LinearFunctionType(IntType(), BoolType())
	if !a.Equal(b) {
		t.Fatal("expected structurally identical function types to be equal")
	}
	c := LinearFunctionType(BoolType(), IntType())
	if a.Equal(c) {
		t.Fatal("expected function types with swapped domain/codomain to differ")
	}
}

func TestTypeEqualRecordDelegatesToRow(t *testing.T) {
	r1 := RecordType(ClosedRow(map[string]*Type{"name": SymbolType()}))
	r2 := RecordType(ClosedRow(map[string]*Type{"name": SymbolType()}))
	if !r1.Equal(r2) {
		t.Fatal("expected record types with equal rows to be equal")
	}
	r3 := RecordType(ClosedRow(map[string]*Type{"age": IntType()}))
	if r1.Equal(r3) {
		t.Fatal("expected record types with differing rows to differ")
	}
}

func TestTypeStringRendersEachKind(t *testing.T) {
	cases := []*Type{
		UnitType(), BoolType(), IntType(), SymbolType(),
		ProductType(IntType(), BoolType()),
		SumType(IntType(), BoolType()),
		LinearFunctionType(IntType(), BoolType()),
		RecordType(ClosedRow(nil)),
		ResourceType(IntType()),
	}
	for _, typ := range cases {
		if typ.String() == "" {
			t.Fatalf("expected non-empty String() for %+v", typ)
		}
	}
}

func TestSessionTypeDualIsInvolution(t *testing.T) {
	proto := SendSession(IntType(), ReceiveSession(BoolType(), EndSession()))
	dual := proto.Dual()
	if dual.Kind != SessionReceive {
		t.Fatalf("expected dual of Send to be Receive, got %v", dual.Kind)
	}
	if !dual.Dual().Equal(proto) {
		t.Fatal("expected Dual to be its own inverse")
	}
}

func TestSessionTypeDualOfChoice(t *testing.T) {
	internal := InternalChoiceSession(map[string]*SessionType{
		"ok":  EndSession(),
		"err": SendSession(SymbolType(), EndSession()),
	})
	dual := internal.Dual()
	if dual.Kind != SessionExternalChoice {
		t.Fatalf("expected dual of InternalChoice to be ExternalChoice, got %v", dual.Kind)
	}
	if dual.Branches["err"].Kind != SessionReceive {
		t.Fatalf("expected branch send to become receive, got %v", dual.Branches["err"].Kind)
	}
}

func TestSessionTypeAdvance(t *testing.T) {
	proto := SendSession(IntType(), ReceiveSession(BoolType(), EndSession()))
	next, err := proto.Advance("send", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if next.Kind != SessionReceive {
		t.Fatalf("expected continuation to be Receive, got %v", next.Kind)
	}
	if _, err := proto.Advance("receive", ""); err == nil || !IsKind(err, ErrType) {
		t.Fatalf("expected protocol violation advancing receive on a send head, got %v", err)
	}
}

func TestSessionTypeAdvanceChoice(t *testing.T) {
	proto := InternalChoiceSession(map[string]*SessionType{"ok": EndSession()})
	next, err := proto.Advance("select", "ok")
	if err != nil || next.Kind != SessionEnd {
		t.Fatalf("expected select ok to reach End, got %v/%v", next, err)
	}
	if _, err := proto.Advance("select", "missing"); err == nil || !IsKind(err, ErrType) {
		t.Fatalf("expected protocol violation for unknown branch, got %v", err)
	}
}
