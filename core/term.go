package core

import "sort"

// TermKind tags the Term universe: the surface-level expression
// language that the type checker (C5) consumes and the IR builder (C6)
// lowers.
type TermKind uint8

const (
	TermInt TermKind = iota
	TermBool
	TermVar
	TermLet
	TermLambda
	TermApply
	TermPair
	TermProject
	TermRecord
	TermInl
	TermInr
	TermCase
	TermNewSession
	TermSend
	TermReceive
	TermSelect
	TermFork
	TermTensor
	TermLetTensor
	TermAlloc
	TermConsume
	TermRecordSet
)

// Term is the AST node for every surface form. Only the fields relevant to
// Kind are populated; constructing a Term never itself fails.
type Term struct {
	Kind TermKind
	Loc  SourceLocation

	IntVal  int64
	BoolVal bool
	Name    string // Var; Select's label is SelectLabel, letTensor/case bound names live in LeftName/RightName/InlName/InrName below

	// Let(var, value, body)
	LetVar   string
	LetValue *Term
	LetBody  *Term

	// Lambda(params, body)
	Params     []string
	LambdaBody *Term

	// Apply(fn, args)
	Fn   *Term
	Args []*Term

	// Pair / Tensor(left, right)
	Left  *Term
	Right *Term

	// Project(record, label)
	Record *Term
	Label  string

	// Record(fields) construction
	Fields map[string]*Term

	// RecordSet(record, label, value): a new record equal to Record with
	// Label replaced by Value.
	SetValue *Term

	// Inl(v) / Inr(v) / Alloc(v) / Consume(v) wrap a single subterm
	Inner *Term

	// Case(scrutinee, inlName, inlBody, inrName, inrBody)
	Scrutinee string2term
	InlName   string
	InlBody   *Term
	InrName   string
	InrBody   *Term

	// NewSession(type)
	SessionType *SessionType

	// Send(ch, v) / Receive(ch)
	Channel *Term
	SendVal *Term

	// Select(ch, label)
	SelectLabel string

	// Fork(body)
	ForkBody *Term

	// LetTensor(tensorExpr, leftName, rightName, body)
	TensorExpr *Term
	LeftName   string
	RightName  string
	TensorBody *Term
}

// string2term exists only to give Scrutinee a distinct documented type while
// remaining a plain *Term under the hood.
type string2term = *Term

func IntTerm(n int64) *Term  { return &Term{Kind: TermInt, IntVal: n} }
func BoolTerm(b bool) *Term  { return &Term{Kind: TermBool, BoolVal: b} }
func VarTerm(name string) *Term { return &Term{Kind: TermVar, Name: name} }

func LetTerm(v string, value, body *Term) *Term {
	return &Term{Kind: TermLet, LetVar: v, LetValue: value, LetBody: body}
}

func LambdaTerm(params []string, body *Term) *Term {
	return &Term{Kind: TermLambda, Params: params, LambdaBody: body}
}

func ApplyTerm(fn *Term, args []*Term) *Term {
	return &Term{Kind: TermApply, Fn: fn, Args: args}
}

func PairTerm(left, right *Term) *Term {
	return &Term{Kind: TermPair, Left: left, Right: right}
}

func ProjectTerm(record *Term, label string) *Term {
	return &Term{Kind: TermProject, Record: record, Label: label}
}

func RecordSetTerm(record *Term, label string, value *Term) *Term {
	return &Term{Kind: TermRecordSet, Record: record, Label: label, SetValue: value}
}

func RecordTerm(fields map[string]*Term) *Term {
	return &Term{Kind: TermRecord, Fields: fields}
}

func InlTerm(v *Term) *Term { return &Term{Kind: TermInl, Inner: v} }
func InrTerm(v *Term) *Term { return &Term{Kind: TermInr, Inner: v} }

func CaseTerm(scrutinee *Term, inlName string, inlBody *Term, inrName string, inrBody *Term) *Term {
	return &Term{Kind: TermCase, Scrutinee: scrutinee, InlName: inlName, InlBody: inlBody, InrName: inrName, InrBody: inrBody}
}

func NewSessionTerm(st *SessionType) *Term {
	return &Term{Kind: TermNewSession, SessionType: st}
}

func SendTerm(ch, v *Term) *Term { return &Term{Kind: TermSend, Channel: ch, SendVal: v} }
func ReceiveTerm(ch *Term) *Term { return &Term{Kind: TermReceive, Channel: ch} }

func SelectTerm(ch *Term, label string) *Term {
	return &Term{Kind: TermSelect, Channel: ch, SelectLabel: label}
}

func ForkTerm(body *Term) *Term { return &Term{Kind: TermFork, ForkBody: body} }

func TensorTerm(left, right *Term) *Term {
	return &Term{Kind: TermTensor, Left: left, Right: right}
}

func LetTensorTerm(expr *Term, leftName, rightName string, body *Term) *Term {
	return &Term{Kind: TermLetTensor, TensorExpr: expr, LeftName: leftName, RightName: rightName, TensorBody: body}
}

func AllocTerm(v *Term) *Term   { return &Term{Kind: TermAlloc, Inner: v} }
func ConsumeTerm(v *Term) *Term { return &Term{Kind: TermConsume, Inner: v} }

// FreeVars returns the set of variable names that occur free in t, i.e. not
// bound by an enclosing Let, Lambda, Case arm or LetTensor on the path from
// the root.
func (t *Term) FreeVars() map[string]struct{} {
	fv := make(map[string]struct{})
	t.collectFreeVars(fv)
	return fv
}

func (t *Term) collectFreeVars(fv map[string]struct{}) {
	if t == nil {
		return
	}
	switch t.Kind {
	case TermVar:
		fv[t.Name] = struct{}{}
	case TermLet:
		t.LetValue.collectFreeVars(fv)
		inner := t.LetBody.FreeVars()
		delete(inner, t.LetVar)
		for k := range inner {
			fv[k] = struct{}{}
		}
	case TermLambda:
		inner := t.LambdaBody.FreeVars()
		for _, p := range t.Params {
			delete(inner, p)
		}
		for k := range inner {
			fv[k] = struct{}{}
		}
	case TermApply:
		t.Fn.collectFreeVars(fv)
		for _, a := range t.Args {
			a.collectFreeVars(fv)
		}
	case TermPair, TermTensor:
		t.Left.collectFreeVars(fv)
		t.Right.collectFreeVars(fv)
	case TermProject:
		t.Record.collectFreeVars(fv)
	case TermRecordSet:
		t.Record.collectFreeVars(fv)
		t.SetValue.collectFreeVars(fv)
	case TermRecord:
		for _, v := range t.Fields {
			v.collectFreeVars(fv)
		}
	case TermInl, TermInr, TermAlloc, TermConsume:
		t.Inner.collectFreeVars(fv)
	case TermCase:
		t.Scrutinee.collectFreeVars(fv)
		innerL := t.InlBody.FreeVars()
		delete(innerL, t.InlName)
		for k := range innerL {
			fv[k] = struct{}{}
		}
		innerR := t.InrBody.FreeVars()
		delete(innerR, t.InrName)
		for k := range innerR {
			fv[k] = struct{}{}
		}
	case TermSend:
		t.Channel.collectFreeVars(fv)
		t.SendVal.collectFreeVars(fv)
	case TermReceive, TermFork:
		t.Channel.collectFreeVars(fv)
		t.ForkBody.collectFreeVars(fv)
	case TermSelect:
		t.Channel.collectFreeVars(fv)
	case TermLetTensor:
		t.TensorExpr.collectFreeVars(fv)
		inner := t.TensorBody.FreeVars()
		delete(inner, t.LeftName)
		delete(inner, t.RightName)
		for k := range inner {
			fv[k] = struct{}{}
		}
	}
}

// Substitute replaces every free occurrence of `name` in t with
// `replacement`. Bound occurrences that shadow `name` stop the substitution
// at that subtree: inner shadowing wins. Binders are never renamed, so a
// free variable of `replacement` that a binder inside t also names is
// captured by that binder.
func (t *Term) Substitute(name string, replacement *Term) *Term {
	if t == nil {
		return nil
	}
	switch t.Kind {
	case TermVar:
		if t.Name == name {
			return replacement
		}
		return t
	case TermLet:
		newValue := t.LetValue.Substitute(name, replacement)
		if t.LetVar == name {
			return LetTerm(t.LetVar, newValue, t.LetBody)
		}
		return LetTerm(t.LetVar, newValue, t.LetBody.Substitute(name, replacement))
	case TermLambda:
		for _, p := range t.Params {
			if p == name {
				return t
			}
		}
		return LambdaTerm(t.Params, t.LambdaBody.Substitute(name, replacement))
	case TermApply:
		args := make([]*Term, len(t.Args))
		for i, a := range t.Args {
			args[i] = a.Substitute(name, replacement)
		}
		return ApplyTerm(t.Fn.Substitute(name, replacement), args)
	case TermPair:
		return PairTerm(t.Left.Substitute(name, replacement), t.Right.Substitute(name, replacement))
	case TermTensor:
		return TensorTerm(t.Left.Substitute(name, replacement), t.Right.Substitute(name, replacement))
	case TermProject:
		return ProjectTerm(t.Record.Substitute(name, replacement), t.Label)
	case TermRecordSet:
		return RecordSetTerm(t.Record.Substitute(name, replacement), t.Label, t.SetValue.Substitute(name, replacement))
	case TermRecord:
		fields := make(map[string]*Term, len(t.Fields))
		for k, v := range t.Fields {
			fields[k] = v.Substitute(name, replacement)
		}
		return RecordTerm(fields)
	case TermInl:
		return InlTerm(t.Inner.Substitute(name, replacement))
	case TermInr:
		return InrTerm(t.Inner.Substitute(name, replacement))
	case TermAlloc:
		return AllocTerm(t.Inner.Substitute(name, replacement))
	case TermConsume:
		return ConsumeTerm(t.Inner.Substitute(name, replacement))
	case TermCase:
		newScrutinee := t.Scrutinee.Substitute(name, replacement)
		inlBody := t.InlBody
		if t.InlName != name {
			inlBody = t.InlBody.Substitute(name, replacement)
		}
		inrBody := t.InrBody
		if t.InrName != name {
			inrBody = t.InrBody.Substitute(name, replacement)
		}
		return CaseTerm(newScrutinee, t.InlName, inlBody, t.InrName, inrBody)
	case TermSend:
		return SendTerm(t.Channel.Substitute(name, replacement), t.SendVal.Substitute(name, replacement))
	case TermReceive:
		return ReceiveTerm(t.Channel.Substitute(name, replacement))
	case TermSelect:
		return SelectTerm(t.Channel.Substitute(name, replacement), t.SelectLabel)
	case TermFork:
		return ForkTerm(t.ForkBody.Substitute(name, replacement))
	case TermLetTensor:
		newExpr := t.TensorExpr.Substitute(name, replacement)
		if t.LeftName == name || t.RightName == name {
			return LetTensorTerm(newExpr, t.LeftName, t.RightName, t.TensorBody)
		}
		return LetTensorTerm(newExpr, t.LeftName, t.RightName, t.TensorBody.Substitute(name, replacement))
	default:
		return t
	}
}

// Equal reports structural equality between two Terms.
func (t *Term) Equal(other *Term) bool {
	if t == nil || other == nil {
		return t == other
	}
	if t.Kind != other.Kind {
		return false
	}
	switch t.Kind {
	case TermInt:
		return t.IntVal == other.IntVal
	case TermBool:
		return t.BoolVal == other.BoolVal
	case TermVar:
		return t.Name == other.Name
	case TermLet:
		return t.LetVar == other.LetVar && t.LetValue.Equal(other.LetValue) && t.LetBody.Equal(other.LetBody)
	case TermLambda:
		return stringsEqual(t.Params, other.Params) && t.LambdaBody.Equal(other.LambdaBody)
	case TermApply:
		if !t.Fn.Equal(other.Fn) || len(t.Args) != len(other.Args) {
			return false
		}
		for i := range t.Args {
			if !t.Args[i].Equal(other.Args[i]) {
				return false
			}
		}
		return true
	case TermPair, TermTensor:
		return t.Left.Equal(other.Left) && t.Right.Equal(other.Right)
	case TermProject:
		return t.Label == other.Label && t.Record.Equal(other.Record)
	case TermRecordSet:
		return t.Label == other.Label && t.Record.Equal(other.Record) && t.SetValue.Equal(other.SetValue)
	case TermRecord:
		if len(t.Fields) != len(other.Fields) {
			return false
		}
		for k, v := range t.Fields {
			ov, ok := other.Fields[k]
			if !ok || !v.Equal(ov) {
				return false
			}
		}
		return true
	case TermInl, TermInr, TermAlloc, TermConsume:
		return t.Inner.Equal(other.Inner)
	case TermCase:
		return t.Scrutinee.Equal(other.Scrutinee) && t.InlName == other.InlName && t.InlBody.Equal(other.InlBody) &&
			t.InrName == other.InrName && t.InrBody.Equal(other.InrBody)
	case TermSend:
		return t.Channel.Equal(other.Channel) && t.SendVal.Equal(other.SendVal)
	case TermReceive:
		return t.Channel.Equal(other.Channel)
	case TermSelect:
		return t.Channel.Equal(other.Channel) && t.SelectLabel == other.SelectLabel
	case TermFork:
		return t.ForkBody.Equal(other.ForkBody)
	case TermLetTensor:
		return t.LeftName == other.LeftName && t.RightName == other.RightName &&
			t.TensorExpr.Equal(other.TensorExpr) && t.TensorBody.Equal(other.TensorBody)
	case TermNewSession:
		return t.SessionType.Equal(other.SessionType)
	default:
		return true
	}
}

func stringsEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// sortedTermFieldKeys returns the field names of a Record term in sorted
// order, used wherever a deterministic traversal order is required.
func sortedTermFieldKeys(fields map[string]*Term) []string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
