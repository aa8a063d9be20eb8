package core

import "sort"

// ValueKind tags the runtime Value universe.
type ValueKind uint8

const (
	ValueNil ValueKind = iota
	ValueBool
	ValueNumber
	ValueString
	ValueList
	ValueMap
	ValueRecord
	ValueRef
	ValueLambda
)

// LambdaValue is the closure form of a Value: a parameter list, the content
// id of its (already lowered) body, and a captured lexical environment.
// Bodies are referenced by id rather than embedded so that two lambdas with
// identical bodies but different captured environments still hash the body
// only once in the content-addressed store (C6).
type LambdaValue struct {
	Params       []string
	BodyID       EntityID
	CapturedEnv  map[string]Value
}

// Value is the tagged union:
//
//	Nil | Bool(b) | Number(n) | String(s) | List(Value*) | Map(Str→Value) |
//	Record(Str→Value) | Ref(EntityId) | Lambda{params, bodyId, capturedEnv}
//
// Only one field group is meaningful for a given Kind; constructors below are
// the only supported way to build a Value so that invariant always holds.
// There is deliberately no floating point representation (determinism).
type Value struct {
	Kind   ValueKind
	Bool   bool
	Number int64
	Str    string
	List   []Value
	Fields map[string]Value // Map and Record both use lexicographically ordered string keys
	Ref    EntityID
	Lambda *LambdaValue
}

func NilValue() Value                  { return Value{Kind: ValueNil} }
func BoolValue(b bool) Value            { return Value{Kind: ValueBool, Bool: b} }
func NumberValue(n int64) Value         { return Value{Kind: ValueNumber, Number: n} }
func StringValue(s string) Value        { return Value{Kind: ValueString, Str: s} }
func ListValue(items []Value) Value     { return Value{Kind: ValueList, List: items} }
func MapValue(fields map[string]Value) Value {
	return Value{Kind: ValueMap, Fields: fields}
}
func RecordValue(fields map[string]Value) Value {
	return Value{Kind: ValueRecord, Fields: fields}
}
func RefValue(id EntityID) Value { return Value{Kind: ValueRef, Ref: id} }
func LambdaVal(params []string, bodyID EntityID, captured map[string]Value) Value {
	return Value{Kind: ValueLambda, Lambda: &LambdaValue{Params: params, BodyID: bodyID, CapturedEnv: captured}}
}

func sortedKeys(m map[string]Value) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// EncodeCanonical writes v's canonical byte form (C2): a variant tag
// followed by the tag-specific payload. Maps/records always iterate their
// sorted key order.
func (v Value) EncodeCanonical(e *CanonicalEncoder) {
	switch v.Kind {
	case ValueNil:
		e.Tag(tagNil)
	case ValueBool:
		e.Tag(tagBool)
		e.Bool(v.Bool)
	case ValueNumber:
		e.Tag(tagNumber)
		e.I64(v.Number)
	case ValueString:
		e.Tag(tagString)
		e.Str(v.Str)
	case ValueList:
		e.Tag(tagList)
		e.U32(uint32(len(v.List)))
		for _, item := range v.List {
			item.EncodeCanonical(e)
		}
	case ValueMap:
		e.Tag(tagMap)
		keys := sortedKeys(v.Fields)
		e.U32(uint32(len(keys)))
		for _, k := range keys {
			e.Str(k)
			v.Fields[k].EncodeCanonical(e)
		}
	case ValueRecord:
		e.Tag(tagRecord)
		keys := sortedKeys(v.Fields)
		e.U32(uint32(len(keys)))
		for _, k := range keys {
			e.Str(k)
			v.Fields[k].EncodeCanonical(e)
		}
	case ValueRef:
		e.Tag(tagRef)
		e.Bytes32(v.Ref)
	case ValueLambda:
		e.Tag(tagLambda)
		e.U32(uint32(len(v.Lambda.Params)))
		for _, p := range v.Lambda.Params {
			e.Str(p)
		}
		e.Bytes32(v.Lambda.BodyID)
		keys := sortedKeys(v.Lambda.CapturedEnv)
		e.U32(uint32(len(keys)))
		for _, k := range keys {
			e.Str(k)
			v.Lambda.CapturedEnv[k].EncodeCanonical(e)
		}
	}
}

// DecodeValue reads a Value from d, the inverse of EncodeCanonical. Unknown
// tags and truncated/oversize fields are rejected rather than panicking
// (C2: "Decoding is total").
func DecodeValue(d *CanonicalDecoder) (Value, error) {
	tag, err := d.Tag()
	if err != nil {
		return Value{}, err
	}
	switch tag {
	case tagNil:
		return NilValue(), nil
	case tagBool:
		b, err := d.Bool()
		if err != nil {
			return Value{}, err
		}
		return BoolValue(b), nil
	case tagNumber:
		n, err := d.I64()
		if err != nil {
			return Value{}, err
		}
		return NumberValue(n), nil
	case tagString:
		s, err := d.Str()
		if err != nil {
			return Value{}, err
		}
		return StringValue(s), nil
	case tagList:
		n, err := d.U32()
		if err != nil {
			return Value{}, err
		}
		items := make([]Value, 0, n)
		for i := uint32(0); i < n; i++ {
			item, err := DecodeValue(d)
			if err != nil {
				return Value{}, err
			}
			items = append(items, item)
		}
		return ListValue(items), nil
	case tagMap, tagRecord:
		n, err := d.U32()
		if err != nil {
			return Value{}, err
		}
		fields := make(map[string]Value, n)
		for i := uint32(0); i < n; i++ {
			k, err := d.Str()
			if err != nil {
				return Value{}, err
			}
			fv, err := DecodeValue(d)
			if err != nil {
				return Value{}, err
			}
			fields[k] = fv
		}
		if tag == tagMap {
			return MapValue(fields), nil
		}
		return RecordValue(fields), nil
	case tagRef:
		b, err := d.Bytes32()
		if err != nil {
			return Value{}, err
		}
		return RefValue(EntityID(b)), nil
	case tagLambda:
		n, err := d.U32()
		if err != nil {
			return Value{}, err
		}
		params := make([]string, 0, n)
		for i := uint32(0); i < n; i++ {
			p, err := d.Str()
			if err != nil {
				return Value{}, err
			}
			params = append(params, p)
		}
		bodyID, err := d.Bytes32()
		if err != nil {
			return Value{}, err
		}
		nc, err := d.U32()
		if err != nil {
			return Value{}, err
		}
		captured := make(map[string]Value, nc)
		for i := uint32(0); i < nc; i++ {
			k, err := d.Str()
			if err != nil {
				return Value{}, err
			}
			cv, err := DecodeValue(d)
			if err != nil {
				return Value{}, err
			}
			captured[k] = cv
		}
		return LambdaVal(params, EntityID(bodyID), captured), nil
	default:
		return Value{}, NewError(ErrSerialization, "unknown value variant tag %d", tag)
	}
}

// ID computes v's content-addressed EntityID (C1): the hash of v's canonical
// encoding.
func (v Value) ID() EntityID { return ContentID(v) }

// Equal reports structural equality between v and other. Two values are
// equal iff their canonical encodings are byte-identical, which is also
// exactly the condition under which they share an EntityID.
func (v Value) Equal(other Value) bool {
	return v.ID() == other.ID()
}
