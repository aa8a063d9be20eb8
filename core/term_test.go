package core

import "testing"

func setOf(names ...string) map[string]struct{} {
	out := make(map[string]struct{}, len(names))
	for _, n := range names {
		out[n] = struct{}{}
	}
	return out
}

func TestTermFreeVarsLetBindsShadowedName(t *testing.T) {
	term, err := ParseProgram("(let x y x)")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	fv := term.FreeVars()
	if _, ok := fv["x"]; ok {
		t.Fatal("expected let-bound x to not be free")
	}
	if _, ok := fv["y"]; !ok {
		t.Fatal("expected y to be free")
	}
}

func TestTermFreeVarsLambdaBindsParams(t *testing.T) {
	term := LambdaTerm([]string{"x"}, ApplyTerm(VarTerm("x"), []*Term{VarTerm("y")}))
	fv := term.FreeVars()
	if _, ok := fv["x"]; ok {
		t.Fatal("expected lambda parameter x to not be free")
	}
	if _, ok := fv["y"]; !ok {
		t.Fatal("expected y to be free")
	}
}

func TestTermFreeVarsCaseBindsArmNames(t *testing.T) {
	term := CaseTerm(VarTerm("s"), "l", VarTerm("l"), "r", ApplyTerm(VarTerm("r"), []*Term{VarTerm("outer")}))
	fv := term.FreeVars()
	if _, ok := fv["l"]; ok {
		t.Fatal("expected inl arm name to not be free")
	}
	if _, ok := fv["r"]; ok {
		t.Fatal("expected inr arm name to not be free")
	}
	if _, ok := fv["s"]; !ok {
		t.Fatal("expected scrutinee variable to be free")
	}
	if _, ok := fv["outer"]; !ok {
		t.Fatal("expected variable referenced inside an arm body to be free")
	}
}

func TestTermSubstituteReplacesFreeOccurrences(t *testing.T) {
	term := ApplyTerm(VarTerm("f"), []*Term{VarTerm("x"), VarTerm("y")})
	replaced := term.Substitute("x", IntTerm(5))
	if !replaced.Args[0].Equal(IntTerm(5)) {
		t.Fatalf("expected x replaced with 5, got %+v", replaced.Args[0])
	}
	if !replaced.Args[1].Equal(VarTerm("y")) {
		t.Fatal("expected y to be left alone")
	}
}

func TestTermSubstituteStopsAtShadow(t *testing.T) {
	term := LambdaTerm([]string{"x"}, VarTerm("x"))
	replaced := term.Substitute("x", IntTerm(5))
	if !replaced.Equal(term) {
		t.Fatal("expected substitution to stop at a shadowing lambda parameter")
	}
}

func TestTermSubstituteLetShadowsOnlyBody(t *testing.T) {
	term := LetTerm("x", VarTerm("x"), VarTerm("x"))
	replaced := term.Substitute("x", IntTerm(7))
	if !replaced.LetValue.Equal(IntTerm(7)) {
		t.Fatal("expected let value position to still substitute before the shadow takes effect")
	}
	if !replaced.LetBody.Equal(VarTerm("x")) {
		t.Fatal("expected let body to be shielded by the shadowing binder")
	}
}

func TestTermEqualStructural(t *testing.T) {
	a := RecordSetTerm(RecordTerm(map[string]*Term{"n": IntTerm(1)}), "n", IntTerm(2))
	b := RecordSetTerm(RecordTerm(map[string]*Term{"n": IntTerm(1)}), "n", IntTerm(2))
	if !a.Equal(b) {
		t.Fatal("expected structurally identical record-set terms to be equal")
	}
	c := RecordSetTerm(RecordTerm(map[string]*Term{"n": IntTerm(1)}), "n", IntTerm(3))
	if a.Equal(c) {
		t.Fatal("expected differing set-value to break equality")
	}
}

func TestTermEqualNilHandling(t *testing.T) {
	if !(*Term)(nil).Equal(nil) {
		t.Fatal("expected two nil terms to be equal")
	}
	if IntTerm(1).Equal(nil) {
		t.Fatal("expected a non-nil term to not equal nil")
	}
}
