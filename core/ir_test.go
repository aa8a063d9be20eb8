package core

import "testing"

func TestIrNodeDeduplicatesStructurallyEqualContent(t *testing.T) {
	a := NewIrNode(LetTerm("x", IntTerm(1), VarTerm("x")))
	b := NewIrNode(LetTerm("x", IntTerm(1), VarTerm("x")))
	if a.ID() != b.ID() {
		t.Fatal("expected two structurally-identical IR trees to share an id")
	}
}

func TestIrNodeMetadataChangesID(t *testing.T) {
	base := NewIrNode(IntTerm(42))
	withHint := base.WithTargetHint("evm", SolidityHint(21000, []string{"slot0"}))
	if base.ID() == withHint.ID() {
		t.Fatal("expected attaching a target hint to change the node id")
	}
}

func TestIrNodeDiffersByContent(t *testing.T) {
	a := NewIrNode(IntTerm(1))
	b := NewIrNode(IntTerm(2))
	if a.ID() == b.ID() {
		t.Fatal("expected differing content to produce differing ids")
	}
}

func TestIrNodeRecordSetContentAddressed(t *testing.T) {
	a := NewIrNode(RecordSetTerm(RecordTerm(map[string]*Term{"n": IntTerm(1)}), "n", IntTerm(2)))
	b := NewIrNode(RecordSetTerm(RecordTerm(map[string]*Term{"n": IntTerm(1)}), "n", IntTerm(3)))
	if a.ID() == b.ID() {
		t.Fatal("expected record-set terms with differing set-values to hash differently")
	}
}

func TestMapTermsRewritesBottomUp(t *testing.T) {
	node := NewIrNode(PairTerm(IntTerm(1), IntTerm(2)))
	doubled := MapTerms(node, func(t *Term) *Term {
		if t.Kind == TermInt {
			return IntTerm(t.IntVal * 2)
		}
		return t
	})
	content := doubled.Content()
	if content.Left.IntVal != 2 || content.Right.IntVal != 4 {
		t.Fatalf("expected both leaves doubled, got %+v", content)
	}
}

func TestMapTermsRewritesRecordSet(t *testing.T) {
	node := NewIrNode(RecordSetTerm(RecordTerm(map[string]*Term{"n": IntTerm(1)}), "n", IntTerm(2)))
	result := MapTerms(node, func(t *Term) *Term {
		if t.Kind == TermInt {
			return IntTerm(t.IntVal + 10)
		}
		return t
	})
	rs := result.Content()
	if rs.SetValue.IntVal != 12 {
		t.Fatalf("expected set-value rewritten to 12, got %+v", rs.SetValue)
	}
	if rs.Record.Fields["n"].IntVal != 11 {
		t.Fatalf("expected record field rewritten to 11, got %+v", rs.Record.Fields["n"])
	}
}

func TestEliminateDeadCodeRemovesUnusedLet(t *testing.T) {
	node := NewIrNode(LetTerm("x", IntTerm(1), IntTerm(2)))
	result := EliminateDeadCode(node)
	if result.Content().Kind != TermInt || result.Content().IntVal != 2 {
		t.Fatalf("expected unused let eliminated down to the body, got %+v", result.Content())
	}
}

func TestEliminateDeadCodeKeepsUsedLet(t *testing.T) {
	node := NewIrNode(LetTerm("x", IntTerm(1), VarTerm("x")))
	result := EliminateDeadCode(node)
	if result.Content().Kind != TermLet {
		t.Fatalf("expected used let to survive, got %+v", result.Content())
	}
}

func TestEliminateDeadCodeIsIdempotent(t *testing.T) {
	node := NewIrNode(LetTerm("x", IntTerm(1), LetTerm("y", IntTerm(2), IntTerm(3))))
	once := EliminateDeadCode(node)
	twice := EliminateDeadCode(once)
	if once.ID() != twice.ID() {
		t.Fatal("expected eliminate_dead_code to be idempotent by id")
	}
}

func TestConstantFoldEvaluatesArithmeticOverLiterals(t *testing.T) {
	node := NewIrNode(ApplyTerm(VarTerm("+"), []*Term{IntTerm(1), IntTerm(2)}))
	folded := ConstantFold(node)
	content := folded.Content()
	if content.Kind != TermInt || content.IntVal != 3 {
		t.Fatalf("expected folded literal 3, got %+v", content)
	}
	if folded.ID() == node.ID() {
		t.Fatal("expected folding to change the node's content-addressed id")
	}
}

func TestConstantFoldFoldsNestedArithmeticInsidePair(t *testing.T) {
	node := NewIrNode(PairTerm(
		ApplyTerm(VarTerm("*"), []*Term{IntTerm(3), IntTerm(4)}),
		ApplyTerm(VarTerm("-"), []*Term{IntTerm(10), IntTerm(1)}),
	))
	folded := ConstantFold(node).Content()
	if folded.Left.Kind != TermInt || folded.Left.IntVal != 12 {
		t.Fatalf("expected left folded to 12, got %+v", folded.Left)
	}
	if folded.Right.Kind != TermInt || folded.Right.IntVal != 9 {
		t.Fatalf("expected right folded to 9, got %+v", folded.Right)
	}
}

func TestConstantFoldLeavesDivisionByZeroUnfolded(t *testing.T) {
	node := NewIrNode(ApplyTerm(VarTerm("/"), []*Term{IntTerm(5), IntTerm(0)}))
	folded := ConstantFold(node)
	if folded.ID() != node.ID() {
		t.Fatal("expected division by a literal zero to be left unfolded")
	}
}

func TestCollectVariablesIncludesRecordSetSubterms(t *testing.T) {
	node := NewIrNode(RecordSetTerm(VarTerm("r"), "n", VarTerm("v")))
	vars := CollectVariables(node)
	if len(vars) != 2 || vars[0] != "r" || vars[1] != "v" {
		t.Fatalf("expected sorted [r v], got %v", vars)
	}
}

func TestTermUsesVariableRecordSet(t *testing.T) {
	inUse := RecordSetTerm(VarTerm("r"), "n", VarTerm("v"))
	if !termUsesVariable(inUse, "v") {
		t.Fatal("expected set-value reference to count as a use")
	}
	if termUsesVariable(inUse, "other") {
		t.Fatal("expected unrelated name to not be in use")
	}
}
