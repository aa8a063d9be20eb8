package core

import "sort"

// MapTerms rewrites every subterm of node's content with f, applied
// bottom-up (children first, then the node itself), and returns a new node
// carrying the transformed content under node's original metadata.
func MapTerms(node *IrNode, f func(*Term) *Term) *IrNode {
	transformed := mapTermRecursive(node.Content(), f)
	return NewIrNodeWithMetadata(transformed, node.Metadata())
}

func mapTermRecursive(t *Term, f func(*Term) *Term) *Term {
	if t == nil {
		return nil
	}
	var transformed *Term
	switch t.Kind {
	case TermPair, TermTensor:
		left := mapTermRecursive(t.Left, f)
		right := mapTermRecursive(t.Right, f)
		if t.Kind == TermPair {
			transformed = PairTerm(left, right)
		} else {
			transformed = TensorTerm(left, right)
		}
	case TermLet:
		transformed = LetTerm(t.LetVar, mapTermRecursive(t.LetValue, f), mapTermRecursive(t.LetBody, f))
	case TermSend:
		transformed = SendTerm(mapTermRecursive(t.Channel, f), mapTermRecursive(t.SendVal, f))
	case TermReceive:
		transformed = ReceiveTerm(mapTermRecursive(t.Channel, f))
	case TermProject:
		transformed = ProjectTerm(mapTermRecursive(t.Record, f), t.Label)
	case TermRecordSet:
		transformed = RecordSetTerm(mapTermRecursive(t.Record, f), t.Label, mapTermRecursive(t.SetValue, f))
	case TermRecord:
		fields := make(map[string]*Term, len(t.Fields))
		for k, v := range t.Fields {
			fields[k] = mapTermRecursive(v, f)
		}
		transformed = RecordTerm(fields)
	case TermLambda:
		transformed = LambdaTerm(t.Params, mapTermRecursive(t.LambdaBody, f))
	case TermApply:
		args := make([]*Term, len(t.Args))
		for i, a := range t.Args {
			args[i] = mapTermRecursive(a, f)
		}
		transformed = ApplyTerm(mapTermRecursive(t.Fn, f), args)
	case TermInl:
		transformed = InlTerm(mapTermRecursive(t.Inner, f))
	case TermInr:
		transformed = InrTerm(mapTermRecursive(t.Inner, f))
	case TermAlloc:
		transformed = AllocTerm(mapTermRecursive(t.Inner, f))
	case TermConsume:
		transformed = ConsumeTerm(mapTermRecursive(t.Inner, f))
	case TermCase:
		transformed = CaseTerm(mapTermRecursive(t.Scrutinee, f), t.InlName, mapTermRecursive(t.InlBody, f),
			t.InrName, mapTermRecursive(t.InrBody, f))
	case TermSelect:
		transformed = SelectTerm(mapTermRecursive(t.Channel, f), t.SelectLabel)
	case TermFork:
		transformed = ForkTerm(mapTermRecursive(t.ForkBody, f))
	case TermLetTensor:
		transformed = LetTensorTerm(mapTermRecursive(t.TensorExpr, f), t.LeftName, t.RightName, mapTermRecursive(t.TensorBody, f))
	default:
		transformed = t
	}
	return f(transformed)
}

// arithFolders maps a surface-language primitive name to the Go operation it
// denotes when applied to two integer literals. The surface grammar has no
// dedicated arithmetic TermKind: "(+ 1 2)" parses as an ordinary TermApply of
// the variable "+" to two TermInt arguments, so folding recognizes the
// pattern by name rather than by a reserved node kind.
var arithFolders = map[string]func(a, b int64) (int64, bool){
	"+": func(a, b int64) (int64, bool) { return a + b, true },
	"-": func(a, b int64) (int64, bool) { return a - b, true },
	"*": func(a, b int64) (int64, bool) { return a * b, true },
	"/": func(a, b int64) (int64, bool) {
		if b == 0 {
			return 0, false
		}
		return a / b, true
	},
}

// ConstantFold walks node looking for operations over literal operands that
// can be evaluated ahead of time: an Apply of a binary arithmetic primitive
// to two integer literals is replaced by the single literal result. Because
// MapTerms rewrites bottom-up, an arithmetic expression nested inside a Pair
// or another Apply is folded before its enclosing term is reconstructed, so
// nested literal arithmetic folds in one pass without separate handling.
func ConstantFold(node *IrNode) *IrNode {
	return MapTerms(node, func(t *Term) *Term {
		if t.Kind != TermApply || t.Fn == nil || t.Fn.Kind != TermVar || len(t.Args) != 2 {
			return t
		}
		fold, ok := arithFolders[t.Fn.Name]
		if !ok {
			return t
		}
		lhs, rhs := t.Args[0], t.Args[1]
		if lhs == nil || rhs == nil || lhs.Kind != TermInt || rhs.Kind != TermInt {
			return t
		}
		result, ok := fold(lhs.IntVal, rhs.IntVal)
		if !ok {
			return t
		}
		return IntTerm(result)
	})
}

// EliminateDeadCode removes Let bindings whose bound variable is never
// referenced in the body, replacing `let x = v in body` with `body` when x
// is unused. Shadowing stops the rewrite: a binding used only by an inner
// rebinding of the same name is still considered unused at this site.
func EliminateDeadCode(node *IrNode) *IrNode {
	return MapTerms(node, func(t *Term) *Term {
		if t.Kind != TermLet {
			return t
		}
		if !termUsesVariable(t.LetBody, t.LetVar) {
			return t.LetBody
		}
		return t
	})
}

func termUsesVariable(t *Term, name string) bool {
	if t == nil {
		return false
	}
	switch t.Kind {
	case TermVar:
		return t.Name == name
	case TermPair, TermTensor:
		return termUsesVariable(t.Left, name) || termUsesVariable(t.Right, name)
	case TermLet:
		usedInValue := termUsesVariable(t.LetValue, name)
		if t.LetVar == name {
			return usedInValue
		}
		return usedInValue || termUsesVariable(t.LetBody, name)
	case TermSend:
		return termUsesVariable(t.Channel, name) || termUsesVariable(t.SendVal, name)
	case TermReceive:
		return termUsesVariable(t.Channel, name)
	case TermProject:
		return termUsesVariable(t.Record, name)
	case TermRecordSet:
		return termUsesVariable(t.Record, name) || termUsesVariable(t.SetValue, name)
	case TermRecord:
		for _, v := range t.Fields {
			if termUsesVariable(v, name) {
				return true
			}
		}
		return false
	case TermLambda:
		for _, p := range t.Params {
			if p == name {
				return false
			}
		}
		return termUsesVariable(t.LambdaBody, name)
	case TermApply:
		if termUsesVariable(t.Fn, name) {
			return true
		}
		for _, a := range t.Args {
			if termUsesVariable(a, name) {
				return true
			}
		}
		return false
	case TermInl, TermInr, TermAlloc, TermConsume:
		return termUsesVariable(t.Inner, name)
	case TermCase:
		if termUsesVariable(t.Scrutinee, name) {
			return true
		}
		usedInl := t.InlName != name && termUsesVariable(t.InlBody, name)
		usedInr := t.InrName != name && termUsesVariable(t.InrBody, name)
		return usedInl || usedInr
	case TermSelect:
		return termUsesVariable(t.Channel, name)
	case TermFork:
		return termUsesVariable(t.ForkBody, name)
	case TermLetTensor:
		if termUsesVariable(t.TensorExpr, name) {
			return true
		}
		if t.LeftName == name || t.RightName == name {
			return false
		}
		return termUsesVariable(t.TensorBody, name)
	default:
		return false
	}
}

// CollectVariables returns the sorted, deduplicated set of variable names
// occurring anywhere in node's content, whether free or bound.
func CollectVariables(node *IrNode) []string {
	var vars []string
	collectVariablesRecursive(node.Content(), &vars)
	sort.Strings(vars)
	return dedupStrings(vars)
}

func collectVariablesRecursive(t *Term, vars *[]string) {
	if t == nil {
		return
	}
	switch t.Kind {
	case TermVar:
		*vars = append(*vars, t.Name)
	case TermPair, TermTensor:
		collectVariablesRecursive(t.Left, vars)
		collectVariablesRecursive(t.Right, vars)
	case TermLet:
		*vars = append(*vars, t.LetVar)
		collectVariablesRecursive(t.LetValue, vars)
		collectVariablesRecursive(t.LetBody, vars)
	case TermSend:
		collectVariablesRecursive(t.Channel, vars)
		collectVariablesRecursive(t.SendVal, vars)
	case TermReceive:
		collectVariablesRecursive(t.Channel, vars)
	case TermProject:
		collectVariablesRecursive(t.Record, vars)
	case TermRecordSet:
		collectVariablesRecursive(t.Record, vars)
		collectVariablesRecursive(t.SetValue, vars)
	case TermRecord:
		for _, v := range t.Fields {
			collectVariablesRecursive(v, vars)
		}
	case TermLambda:
		*vars = append(*vars, t.Params...)
		collectVariablesRecursive(t.LambdaBody, vars)
	case TermApply:
		collectVariablesRecursive(t.Fn, vars)
		for _, a := range t.Args {
			collectVariablesRecursive(a, vars)
		}
	case TermInl, TermInr, TermAlloc, TermConsume:
		collectVariablesRecursive(t.Inner, vars)
	case TermCase:
		collectVariablesRecursive(t.Scrutinee, vars)
		*vars = append(*vars, t.InlName, t.InrName)
		collectVariablesRecursive(t.InlBody, vars)
		collectVariablesRecursive(t.InrBody, vars)
	case TermSelect:
		collectVariablesRecursive(t.Channel, vars)
	case TermFork:
		collectVariablesRecursive(t.ForkBody, vars)
	case TermLetTensor:
		collectVariablesRecursive(t.TensorExpr, vars)
		*vars = append(*vars, t.LeftName, t.RightName)
		collectVariablesRecursive(t.TensorBody, vars)
	}
}

func dedupStrings(sorted []string) []string {
	if len(sorted) == 0 {
		return sorted
	}
	out := sorted[:1]
	for _, s := range sorted[1:] {
		if s != out[len(out)-1] {
			out = append(out, s)
		}
	}
	return out
}
