package core

// BaseType enumerates the primitive types.
type BaseType uint8

const (
	BaseUnit BaseType = iota
	BaseBool
	BaseInt
	BaseSymbol
)

// TypeKind tags the Type universe:
//
//	Base(Unit|Bool|Int|Symbol) | Product(T,T) | Sum(T,T) | LinearFunction(T,T)
//	| Record(RowType) | Session(SessionType) | Resource(T)
type TypeKind uint8

const (
	TypeBase TypeKind = iota
	TypeProduct
	TypeSum
	TypeLinearFunction
	TypeRecord
	TypeSession
	TypeResource
)

// Type is the static type assigned to a Term by the checker (C5).
type Type struct {
	Kind TypeKind

	Base Base

	Left  *Type // Product, Sum, LinearFunction domain
	Right *Type // Product, Sum, LinearFunction codomain

	Row *RowType

	Session *SessionType

	Inner *Type // Resource(T)
}

// Base is a thin wrapper so BaseType has a dedicated field name (`Base`)
// without shadowing the BaseType type itself.
type Base = BaseType

func UnitType() *Type   { return &Type{Kind: TypeBase, Base: BaseUnit} }
func BoolType() *Type   { return &Type{Kind: TypeBase, Base: BaseBool} }
func IntType() *Type    { return &Type{Kind: TypeBase, Base: BaseInt} }
func SymbolType() *Type { return &Type{Kind: TypeBase, Base: BaseSymbol} }

func ProductType(l, r *Type) *Type { return &Type{Kind: TypeProduct, Left: l, Right: r} }
func SumType(l, r *Type) *Type     { return &Type{Kind: TypeSum, Left: l, Right: r} }

func LinearFunctionType(dom, cod *Type) *Type {
	return &Type{Kind: TypeLinearFunction, Left: dom, Right: cod}
}

func RecordType(row *RowType) *Type       { return &Type{Kind: TypeRecord, Row: row} }
func SessionTypeOf(s *SessionType) *Type  { return &Type{Kind: TypeSession, Session: s} }
func ResourceType(inner *Type) *Type      { return &Type{Kind: TypeResource, Inner: inner} }

// Equal reports structural equality of two types.
func (t *Type) Equal(other *Type) bool {
	if t == nil || other == nil {
		return t == other
	}
	if t.Kind != other.Kind {
		return false
	}
	switch t.Kind {
	case TypeBase:
		return t.Base == other.Base
	case TypeProduct, TypeSum, TypeLinearFunction:
		return t.Left.Equal(other.Left) && t.Right.Equal(other.Right)
	case TypeRecord:
		return t.Row.Equal(other.Row)
	case TypeSession:
		return t.Session.Equal(other.Session)
	case TypeResource:
		return t.Inner.Equal(other.Inner)
	default:
		return false
	}
}

// String renders a human-readable type, used in error messages.
func (t *Type) String() string {
	if t == nil {
		return "<nil>"
	}
	switch t.Kind {
	case TypeBase:
		switch t.Base {
		case BaseUnit:
			return "Unit"
		case BaseBool:
			return "Bool"
		case BaseInt:
			return "Int"
		default:
			return "Symbol"
		}
	case TypeProduct:
		return "(" + t.Left.String() + " * " + t.Right.String() + ")"
	case TypeSum:
		return "(" + t.Left.String() + " + " + t.Right.String() + ")"
	case TypeLinearFunction:
		return "(" + t.Left.String() + " -o " + t.Right.String() + ")"
	case TypeRecord:
		return "Record{...}"
	case TypeSession:
		return "Session{...}"
	case TypeResource:
		return "Resource(" + t.Inner.String() + ")"
	default:
		return "?"
	}
}
