package core

import "sort"

// RowTailKind distinguishes a row with a fixed field set from one still open
// to unification with more fields.
type RowTailKind uint8

const (
	RowClosed RowTailKind = iota
	RowOpenVar
)

// RowType is a record type's field map plus an open-or-closed tail.
type RowType struct {
	Fields  map[string]*Type
	Tail    RowTailKind
	TailVar string // meaningful only when Tail == RowOpenVar
}

func ClosedRow(fields map[string]*Type) *RowType {
	return &RowType{Fields: fields, Tail: RowClosed}
}

func OpenRow(fields map[string]*Type, tailVar string) *RowType {
	return &RowType{Fields: fields, Tail: RowOpenVar, TailVar: tailVar}
}

// Equal reports structural equality of two row types.
func (r *RowType) Equal(other *RowType) bool {
	if r == nil || other == nil {
		return r == other
	}
	if r.Tail != other.Tail || (r.Tail == RowOpenVar && r.TailVar != other.TailVar) {
		return false
	}
	if len(r.Fields) != len(other.Fields) {
		return false
	}
	for k, t := range r.Fields {
		ot, ok := other.Fields[k]
		if !ok || !t.Equal(ot) {
			return false
		}
	}
	return true
}

func (r *RowType) sortedFieldNames() []string {
	keys := make([]string, 0, len(r.Fields))
	for k := range r.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// RowResult tags the disjoint outcomes of project/extend/restrict so callers
// can switch on a closed set rather than testing nil errors against magic
// sentinels.
type RowResult uint8

const (
	RowOK RowResult = iota
	RowMissingField
	RowDuplicateField
	RowBlocked
)

// ProjectRow returns the field's type if present.
func ProjectRow(row *RowType, field string) (*Type, RowResult) {
	t, ok := row.Fields[field]
	if !ok {
		return nil, RowMissingField
	}
	return t, RowOK
}

// ExtendRow returns a new row with field added, or RowDuplicateField if it
// is already present.
func ExtendRow(row *RowType, field string, t *Type) (*RowType, RowResult) {
	if _, ok := row.Fields[field]; ok {
		return nil, RowDuplicateField
	}
	fields := make(map[string]*Type, len(row.Fields)+1)
	for k, v := range row.Fields {
		fields[k] = v
	}
	fields[field] = t
	return &RowType{Fields: fields, Tail: row.Tail, TailVar: row.TailVar}, RowOK
}

// RestrictRow returns a new row with field removed, or RowMissingField if it
// is not present.
func RestrictRow(row *RowType, field string) (*RowType, RowResult) {
	if _, ok := row.Fields[field]; !ok {
		return nil, RowMissingField
	}
	fields := make(map[string]*Type, len(row.Fields)-1)
	for k, v := range row.Fields {
		if k != field {
			fields[k] = v
		}
	}
	return &RowType{Fields: fields, Tail: row.Tail, TailVar: row.TailVar}, RowOK
}

// RowSubstitution maps open row variables to concrete rows, the result of a
// successful unify.
type RowSubstitution struct {
	Bindings map[string]*RowType
}

// UnifyRows unifies r1 and r2: every field present in both must unify
// (here, be structurally equal — the language has no row-internal subtyping)
// and the tails must be compatible (two Closed rows must have exactly the
// same field set; an OpenVar tail unifies with anything, binding the
// variable to the other row's exclusive fields).
func UnifyRows(r1, r2 *RowType) (*RowSubstitution, error) {
	for k, t1 := range r1.Fields {
		if t2, ok := r2.Fields[k]; ok {
			if !t1.Equal(t2) {
				return nil, NewError(ErrType, "row conflict on field %q: %s != %s", k, t1, t2)
			}
		}
	}

	sub := &RowSubstitution{Bindings: make(map[string]*RowType)}

	if r1.Tail == RowClosed && r2.Tail == RowClosed {
		if len(r1.Fields) != len(r2.Fields) {
			return nil, NewError(ErrType, "row conflict: closed rows have different field sets")
		}
		for k := range r1.Fields {
			if _, ok := r2.Fields[k]; !ok {
				return nil, NewError(ErrType, "row conflict: field %q missing from second row", k)
			}
		}
		return sub, nil
	}

	if r1.Tail == RowOpenVar {
		exclusive := exclusiveFields(r2, r1)
		sub.Bindings[r1.TailVar] = ClosedRow(exclusive)
	}
	if r2.Tail == RowOpenVar {
		exclusive := exclusiveFields(r1, r2)
		sub.Bindings[r2.TailVar] = ClosedRow(exclusive)
	}
	return sub, nil
}

func exclusiveFields(from, excludeOwner *RowType) map[string]*Type {
	out := make(map[string]*Type)
	for k, t := range from.Fields {
		if _, ok := excludeOwner.Fields[k]; !ok {
			out[k] = t
		}
	}
	return out
}
