package core

import (
	"github.com/sirupsen/logrus"
)

// LinearityStatus tags whether a binding must be used exactly once
// (Linear) or may be used any number of times (Unrestricted). Resources are
// Linear by construction.
type LinearityStatus uint8

const (
	LinearityLinear LinearityStatus = iota
	LinearityUnrestricted
)

// CheckEnv is the bidirectional checker's immutable-persistent environment:
// bindings, capabilities, row constraints, plus a per-
// binding usage tracker for linearity. Every mutator returns a new CheckEnv
// rather than mutating in place, so that sibling branches of a Case can
// check independently without leaking each other's usage.
type CheckEnv struct {
	bindings       map[string]*Type
	linearity      map[string]LinearityStatus
	used           map[string]bool
	capabilities   *CapabilitySet
	rowConstraints map[string]*RowType
}

// NewCheckEnv returns an empty environment holding the given capability set.
func NewCheckEnv(caps *CapabilitySet) *CheckEnv {
	if caps == nil {
		caps = NewCapabilitySet()
	}
	return &CheckEnv{
		bindings:       map[string]*Type{},
		linearity:      map[string]LinearityStatus{},
		used:           map[string]bool{},
		capabilities:   caps,
		rowConstraints: map[string]*RowType{},
	}
}

func copyTypes(m map[string]*Type) map[string]*Type {
	out := make(map[string]*Type, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	return out
}

func copyLinearity(m map[string]LinearityStatus) map[string]LinearityStatus {
	out := make(map[string]LinearityStatus, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	return out
}

func copyUsed(m map[string]bool) map[string]bool {
	out := make(map[string]bool, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Extend returns a new environment with name bound to t at the given
// linearity, shadowing any existing binding of the same name: inner
// shadowing wins, with no linearity error raised against the outer binding.
func (e *CheckEnv) Extend(name string, t *Type, lin LinearityStatus) *CheckEnv {
	nb := copyTypes(e.bindings)
	nb[name] = t
	nl := copyLinearity(e.linearity)
	nl[name] = lin
	nu := copyUsed(e.used)
	nu[name] = false
	return &CheckEnv{bindings: nb, linearity: nl, used: nu, capabilities: e.capabilities, rowConstraints: e.rowConstraints}
}

// Remove returns a new environment with name unbound ("remove on exit" for
// a Let binding going out of scope).
func (e *CheckEnv) Remove(name string) *CheckEnv {
	nb := copyTypes(e.bindings)
	delete(nb, name)
	nl := copyLinearity(e.linearity)
	delete(nl, name)
	nu := copyUsed(e.used)
	delete(nu, name)
	return &CheckEnv{bindings: nb, linearity: nl, used: nu, capabilities: e.capabilities, rowConstraints: e.rowConstraints}
}

// Lookup returns the bound type for name, if any.
func (e *CheckEnv) Lookup(name string) (*Type, bool) {
	t, ok := e.bindings[name]
	return t, ok
}

// Use marks name as used, returning a new environment and an error if name
// is Linear and was already used.
// Names not tracked for linearity (not present in the environment) are a
// no-op success, since they are not variables this checker bound.
func (e *CheckEnv) Use(name string) (*CheckEnv, error) {
	lin, tracked := e.linearity[name]
	if !tracked {
		return e, nil
	}
	if lin == LinearityLinear && e.used[name] {
		return e, NewError(ErrLinearity, "linear binding %q used more than once", name)
	}
	nu := copyUsed(e.used)
	nu[name] = true
	return &CheckEnv{bindings: e.bindings, linearity: e.linearity, used: nu, capabilities: e.capabilities, rowConstraints: e.rowConstraints}, nil
}

// WithRowConstraint returns a new environment recording that name is
// constrained to row.
func (e *CheckEnv) WithRowConstraint(name string, row *RowType) *CheckEnv {
	nr := make(map[string]*RowType, len(e.rowConstraints)+1)
	for k, v := range e.rowConstraints {
		nr[k] = v
	}
	nr[name] = row
	return &CheckEnv{bindings: e.bindings, linearity: e.linearity, used: e.used, capabilities: e.capabilities, rowConstraints: nr}
}

// TypeChecker performs bidirectional checking over the Term AST. It is
// stateless; all state lives in the CheckEnv threaded through Check.
type TypeChecker struct {
	log *logrus.Entry
}

// NewTypeChecker returns a checker that logs at the debug level on the error
// path only; no log line is ever relied on for control flow.
func NewTypeChecker() *TypeChecker {
	return &TypeChecker{log: logrus.WithField("component", "checker")}
}

// Check infers (or checks, for forms with no ambiguity) the type of t under
// env, returning the resulting environment (usage-tracking threaded
// forward) and the inferred type, or a *CausalityError from the closed
// error taxonomy.
func (tc *TypeChecker) Check(t *Term, env *CheckEnv) (*Type, *CheckEnv, error) {
	if t == nil {
		return nil, env, NewErrorAt(ErrInternal, t.locOrZero(), "nil term")
	}
	switch t.Kind {
	case TermInt:
		return IntType(), env, nil
	case TermBool:
		return BoolType(), env, nil
	case TermVar:
		typ, ok := env.Lookup(t.Name)
		if !ok {
			tc.log.WithField("symbol", t.Name).Debug("unknown symbol")
			return nil, env, NewErrorAt(ErrType, t.Loc, "unknown symbol %q", t.Name)
		}
		nextEnv, err := env.Use(t.Name)
		if err != nil {
			return nil, env, withLocation(err, t.Loc)
		}
		return typ, nextEnv, nil
	case TermLet:
		valType, env1, err := tc.Check(t.LetValue, env)
		if err != nil {
			return nil, env, err
		}
		lin := LinearityUnrestricted
		if valType.Kind == TypeResource {
			lin = LinearityLinear
		}
		env2 := env1.Extend(t.LetVar, valType, lin)
		bodyType, env3, err := tc.Check(t.LetBody, env2)
		if err != nil {
			return nil, env, err
		}
		if lin == LinearityLinear && !env3.used[t.LetVar] {
			tc.log.WithField("binding", t.LetVar).Debug("linear binding dropped without use")
			return nil, env, NewErrorAt(ErrLinearity, t.Loc, "linear binding %q never used", t.LetVar)
		}
		return bodyType, env3.Remove(t.LetVar), nil
	case TermLambda:
		// Fresh (unconstrained) parameter types: callers supply concrete
		// types via annotation elsewhere in a full surface language; here
		// we require the body to be checkable with Symbol-typed parameters,
		// a placeholder for an untyped lambda surface form.
		paramEnv := env
		for _, p := range t.Params {
			paramEnv = paramEnv.Extend(p, SymbolType(), LinearityUnrestricted)
		}
		// The body's resulting env, not just its type, must propagate outward:
		// an outer linear binding consumed only inside this closure needs to be
		// recorded as used in the caller's environment too, or a second use of
		// it after the lambda would escape the double-use check. Only the
		// lambda's own parameters are stripped back out, the way a Let binding
		// is removed once its scope ends.
		bodyType, bodyEnv, err := tc.Check(t.LambdaBody, paramEnv)
		if err != nil {
			return nil, env, err
		}
		outEnv := bodyEnv
		for _, p := range t.Params {
			outEnv = outEnv.Remove(p)
		}
		return LinearFunctionType(SymbolType(), bodyType), outEnv, nil
	case TermApply:
		fnType, env1, err := tc.Check(t.Fn, env)
		if err != nil {
			return nil, env, err
		}
		if fnType.Kind != TypeLinearFunction {
			return nil, env, NewErrorAt(ErrType, t.Loc, "cannot apply non-function type %s", fnType)
		}
		if len(t.Args) != 1 {
			// Curried application: fold left-to-right, one arg at a time.
			curr := fnType
			curEnv := env1
			for _, arg := range t.Args {
				if curr.Kind != TypeLinearFunction {
					return nil, env, NewErrorAt(ErrType, t.Loc, "invalid arity: too many arguments")
				}
				argType, nextEnv, err := tc.Check(arg, curEnv)
				if err != nil {
					return nil, env, err
				}
				if !argType.Equal(curr.Left) {
					return nil, env, NewErrorAt(ErrType, t.Loc, "type mismatch: expected %s, found %s", curr.Left, argType)
				}
				curr = curr.Right
				curEnv = nextEnv
			}
			return curr, curEnv, nil
		}
		argType, env2, err := tc.Check(t.Args[0], env1)
		if err != nil {
			return nil, env, err
		}
		if !argType.Equal(fnType.Left) {
			return nil, env, NewErrorAt(ErrType, t.Loc, "type mismatch: expected %s, found %s", fnType.Left, argType)
		}
		return fnType.Right, env2, nil
	case TermPair, TermTensor:
		lType, env1, err := tc.Check(t.Left, env)
		if err != nil {
			return nil, env, err
		}
		rType, env2, err := tc.Check(t.Right, env1)
		if err != nil {
			return nil, env, err
		}
		return ProductType(lType, rType), env2, nil
	case TermLetTensor:
		tensorType, env1, err := tc.Check(t.TensorExpr, env)
		if err != nil {
			return nil, env, err
		}
		if tensorType.Kind != TypeProduct {
			return nil, env, NewErrorAt(ErrType, t.Loc, "type mismatch: expected product type, found %s", tensorType)
		}
		env2 := env1.Extend(t.LeftName, tensorType.Left, LinearityUnrestricted).
			Extend(t.RightName, tensorType.Right, LinearityUnrestricted)
		bodyType, env3, err := tc.Check(t.TensorBody, env2)
		if err != nil {
			return nil, env, err
		}
		return bodyType, env3.Remove(t.LeftName).Remove(t.RightName), nil
	case TermRecord:
		fields := make(map[string]*Type, len(t.Fields))
		curEnv := env
		for _, name := range sortedTermFieldKeys(t.Fields) {
			ft, nextEnv, err := tc.Check(t.Fields[name], curEnv)
			if err != nil {
				return nil, env, err
			}
			fields[name] = ft
			curEnv = nextEnv
		}
		return RecordType(ClosedRow(fields)), curEnv, nil
	case TermProject:
		recType, env1, err := tc.Check(t.Record, env)
		if err != nil {
			return nil, env, err
		}
		if recType.Kind != TypeRecord {
			return nil, env, NewErrorAt(ErrType, t.Loc, "type mismatch: expected record type, found %s", recType)
		}
		if !env1.capabilities.HasIndexed(Capability{Target: t.Label, Level: CapRead, RecordCap: ReadFieldCap(t.Label)}) {
			return nil, env, NewErrorAt(ErrCapability, t.Loc, "missing read capability for field %q", t.Label)
		}
		ft, result := ProjectRow(recType.Row, t.Label)
		if result == RowMissingField {
			return nil, env, NewErrorAt(ErrType, t.Loc, "field %q not present in record", t.Label)
		}
		return ft, env1, nil
	case TermRecordSet:
		recType, env1, err := tc.Check(t.Record, env)
		if err != nil {
			return nil, env, err
		}
		if recType.Kind != TypeRecord {
			return nil, env, NewErrorAt(ErrType, t.Loc, "type mismatch: expected record type, found %s", recType)
		}
		if !env1.capabilities.HasIndexed(Capability{Target: t.Label, Level: CapWrite, RecordCap: WriteFieldCap(t.Label)}) {
			return nil, env, NewErrorAt(ErrCapability, t.Loc, "missing write capability for field %q", t.Label)
		}
		valType, env2, err := tc.Check(t.SetValue, env1)
		if err != nil {
			return nil, env, err
		}
		row := recType.Row
		if _, ok := row.Fields[t.Label]; ok {
			row, _ = RestrictRow(row, t.Label)
		}
		newRow, result := ExtendRow(row, t.Label, valType)
		if result != RowOK {
			return nil, env, NewErrorAt(ErrType, t.Loc, "cannot set field %q", t.Label)
		}
		return RecordType(newRow), env2, nil
	case TermInl:
		innerType, env1, err := tc.Check(t.Inner, env)
		if err != nil {
			return nil, env, err
		}
		return SumType(innerType, innerType), env1, nil
	case TermInr:
		innerType, env1, err := tc.Check(t.Inner, env)
		if err != nil {
			return nil, env, err
		}
		return SumType(innerType, innerType), env1, nil
	case TermCase:
		sumType, env1, err := tc.Check(t.Scrutinee, env)
		if err != nil {
			return nil, env, err
		}
		if sumType.Kind != TypeSum {
			return nil, env, NewErrorAt(ErrType, t.Loc, "type mismatch: expected sum type, found %s", sumType)
		}
		inlEnv := env1.Extend(t.InlName, sumType.Left, LinearityUnrestricted)
		inlType, inlEnv2, err := tc.Check(t.InlBody, inlEnv)
		if err != nil {
			return nil, env, err
		}
		inrEnv := env1.Extend(t.InrName, sumType.Right, LinearityUnrestricted)
		inrType, _, err := tc.Check(t.InrBody, inrEnv)
		if err != nil {
			return nil, env, err
		}
		if !inlType.Equal(inrType) {
			return nil, env, NewErrorAt(ErrType, t.Loc, "type mismatch: case arms disagree (%s vs %s)", inlType, inrType)
		}
		return inlType, inlEnv2.Remove(t.InlName), nil
	case TermAlloc:
		innerType, env1, err := tc.Check(t.Inner, env)
		if err != nil {
			return nil, env, err
		}
		return ResourceType(innerType), env1, nil
	case TermConsume:
		resType, env1, err := tc.Check(t.Inner, env)
		if err != nil {
			return nil, env, err
		}
		if resType.Kind != TypeResource {
			return nil, env, NewErrorAt(ErrType, t.Loc, "type mismatch: consume requires a resource type, found %s", resType)
		}
		return resType.Inner, env1, nil
	case TermNewSession:
		return SessionTypeOf(t.SessionType), env, nil
	case TermSend:
		chType, env1, err := tc.Check(t.Channel, env)
		if err != nil {
			return nil, env, err
		}
		if chType.Kind != TypeSession {
			return nil, env, NewErrorAt(ErrType, t.Loc, "type mismatch: expected session type, found %s", chType)
		}
		valType, env2, err := tc.Check(t.SendVal, env1)
		if err != nil {
			return nil, env, err
		}
		if chType.Session.Payload != nil && !chType.Session.Payload.Equal(valType) {
			return nil, env, NewErrorAt(ErrType, t.Loc, "type mismatch: session expects %s, sent %s", chType.Session.Payload, valType)
		}
		next, err := chType.Session.Advance("send", "")
		if err != nil {
			return nil, env, withLocation(err, t.Loc)
		}
		return SessionTypeOf(next), env2, nil
	case TermReceive:
		chType, env1, err := tc.Check(t.Channel, env)
		if err != nil {
			return nil, env, err
		}
		if chType.Kind != TypeSession {
			return nil, env, NewErrorAt(ErrType, t.Loc, "type mismatch: expected session type, found %s", chType)
		}
		next, err := chType.Session.Advance("receive", "")
		if err != nil {
			return nil, env, withLocation(err, t.Loc)
		}
		return ProductType(chType.Session.Payload, SessionTypeOf(next)), env1, nil
	case TermSelect:
		chType, env1, err := tc.Check(t.Channel, env)
		if err != nil {
			return nil, env, err
		}
		if chType.Kind != TypeSession {
			return nil, env, NewErrorAt(ErrType, t.Loc, "type mismatch: expected session type, found %s", chType)
		}
		next, err := chType.Session.Advance("select", t.SelectLabel)
		if err != nil {
			return nil, env, withLocation(err, t.Loc)
		}
		return SessionTypeOf(next), env1, nil
	case TermFork:
		_, _, err := tc.Check(t.ForkBody, env)
		if err != nil {
			return nil, env, err
		}
		return UnitType(), env, nil
	default:
		return nil, env, NewErrorAt(ErrInternal, t.Loc, "unhandled term kind %d", t.Kind)
	}
}

func (t *Term) locOrZero() SourceLocation {
	if t == nil {
		return SourceLocation{}
	}
	return t.Loc
}

func withLocation(err error, loc SourceLocation) error {
	if ce, ok := err.(*CausalityError); ok && ce.Location == nil {
		l := loc
		ce.Location = &l
		return ce
	}
	return err
}
