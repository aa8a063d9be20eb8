package core

import "testing"

func TestRowProjectExtendRestrict(t *testing.T) {
	row := ClosedRow(map[string]*Type{"name": SymbolType()})

	if _, res := ProjectRow(row, "missing"); res != RowMissingField {
		t.Fatalf("expected RowMissingField, got %v", res)
	}
	if typ, res := ProjectRow(row, "name"); res != RowOK || !typ.Equal(SymbolType()) {
		t.Fatalf("expected RowOK with Symbol type, got %v/%v", typ, res)
	}

	extended, res := ExtendRow(row, "age", IntType())
	if res != RowOK {
		t.Fatalf("expected RowOK extending new field, got %v", res)
	}
	if _, res := ExtendRow(extended, "age", IntType()); res != RowDuplicateField {
		t.Fatalf("expected RowDuplicateField on duplicate extend, got %v", res)
	}

	restricted, res := RestrictRow(extended, "age")
	if res != RowOK || !restricted.Equal(row) {
		t.Fatalf("expected restrict to invert extend, got %v/%v", restricted, res)
	}
	if _, res := RestrictRow(row, "missing"); res != RowMissingField {
		t.Fatalf("expected RowMissingField restricting absent field, got %v", res)
	}
}

func TestRowUnifyClosedRowsRequireSameFields(t *testing.T) {
	a := ClosedRow(map[string]*Type{"name": SymbolType()})
	b := ClosedRow(map[string]*Type{"name": SymbolType()})
	if _, err := UnifyRows(a, b); err != nil {
		t.Fatalf("expected identical closed rows to unify, got %v", err)
	}

	c := ClosedRow(map[string]*Type{"name": SymbolType(), "age": IntType()})
	if _, err := UnifyRows(a, c); err == nil || !IsKind(err, ErrType) {
		t.Fatalf("expected RowConflict-classed error for mismatched closed rows, got %v", err)
	}
}

func TestRowUnifyConflictingFieldType(t *testing.T) {
	a := ClosedRow(map[string]*Type{"age": IntType()})
	b := ClosedRow(map[string]*Type{"age": BoolType()})
	if _, err := UnifyRows(a, b); err == nil || !IsKind(err, ErrType) {
		t.Fatalf("expected type error on conflicting field types, got %v", err)
	}
}

func TestRowUnifyOpenVarBindsExclusiveFields(t *testing.T) {
	open := OpenRow(map[string]*Type{"name": SymbolType()}, "r")
	closed := ClosedRow(map[string]*Type{"name": SymbolType(), "age": IntType()})
	sub, err := UnifyRows(open, closed)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	bound, ok := sub.Bindings["r"]
	if !ok {
		t.Fatal("expected tail variable r to be bound")
	}
	if _, res := ProjectRow(bound, "age"); res != RowOK {
		t.Fatalf("expected bound row to carry the exclusive field age, got %v", res)
	}
	if _, res := ProjectRow(bound, "name"); res != RowMissingField {
		t.Fatal("expected bound row to exclude the shared field name")
	}
}

func TestCapabilityImplies(t *testing.T) {
	writeName := Capability{Target: "record", Level: CapWrite, RecordCap: WriteFieldCap("name")}
	readName := Capability{Target: "record", Level: CapRead, RecordCap: ReadFieldCap("name")}
	readAge := Capability{Target: "record", Level: CapRead, RecordCap: ReadFieldCap("age")}

	if !writeName.Implies(readName) {
		t.Fatal("expected write capability to imply matching read capability")
	}
	if writeName.Implies(readAge) {
		t.Fatal("expected write capability on name to not imply read on age")
	}

	allFields := Capability{Target: "record", Level: CapRead, RecordCap: AllFieldsCap()}
	if !allFields.Implies(readAge) {
		t.Fatal("expected AllFields to imply any single-field read")
	}
}

func TestCapabilitySetAddRemoveHas(t *testing.T) {
	set := NewCapabilitySet()
	cap := Capability{Target: "record", Level: CapRead, RecordCap: ReadFieldCap("name")}
	if set.Has(cap) {
		t.Fatal("expected empty set to not have any capability")
	}
	set.Add(cap)
	if !set.Has(cap) {
		t.Fatal("expected set to have the capability after Add")
	}
	if !set.HasIndexed(cap) {
		t.Fatal("expected HasIndexed to agree with Has")
	}
	if !set.Remove("record", CapRead) {
		t.Fatal("expected Remove to report success")
	}
	if set.Has(cap) {
		t.Fatal("expected capability to be gone after Remove")
	}
}

func TestCapabilitySetCloneIsIndependent(t *testing.T) {
	set := NewCapabilitySet()
	set.Add(Capability{Target: "a", Level: CapRead})
	clone := set.Clone()
	set.Add(Capability{Target: "b", Level: CapRead})
	if clone.Has(Capability{Target: "b", Level: CapRead}) {
		t.Fatal("expected clone to be unaffected by later mutation of the original")
	}
}
