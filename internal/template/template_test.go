package template

import (
	"testing"

	"cppc/internal/ast"
)

// typeRef builds a bare TypeRef node named text with no children.
func typeRef(arena *ast.Arena, text string) ast.NodeID {
	return arena.Add(ast.Node{Kind: ast.TypeRef, Text: text})
}

// wrap builds a "*"/"&"/"&&" TypeRef wrapper around inner.
func wrap(arena *ast.Arena, op string, inner ast.NodeID) ast.NodeID {
	return arena.Add(ast.Node{Kind: ast.TypeRef, Text: op, Children: []ast.NodeID{inner}})
}

func TestUnifyBareParamBindsDirectly(t *testing.T) {
	arena := ast.NewArena()
	tParam := typeRef(arena, "T")
	intArg := typeRef(arena, "int")
	out := Deduction{}
	if !Unify(arena, map[string]bool{"T": true}, tParam, intArg, out) {
		t.Fatalf("expected T to unify with int")
	}
	if out["T"] != intArg {
		t.Fatalf("expected T bound to the int node")
	}
}

func TestUnifyReferenceWrapperDeducesElement(t *testing.T) {
	arena := ast.NewArena()
	pattern := wrap(arena, "&", typeRef(arena, "T"))
	arg := wrap(arena, "&", typeRef(arena, "int"))
	out := Deduction{}
	if !Unify(arena, map[string]bool{"T": true}, pattern, arg, out) {
		t.Fatalf("expected T& to unify against int&")
	}
	if arena.At(out["T"]).Text != "int" {
		t.Fatalf("expected T deduced as int, got %q", arena.At(out["T"]).Text)
	}
}

func TestUnifyPointerWrapperDeducesElement(t *testing.T) {
	arena := ast.NewArena()
	pattern := wrap(arena, "*", typeRef(arena, "T"))
	arg := wrap(arena, "*", typeRef(arena, "int"))
	out := Deduction{}
	if !Unify(arena, map[string]bool{"T": true}, pattern, arg, out) {
		t.Fatalf("expected T* to unify against int*")
	}
	if arena.At(out["T"]).Text != "int" {
		t.Fatalf("expected T deduced as int, got %q", arena.At(out["T"]).Text)
	}
}

func TestUnifyMismatchedWrapperFails(t *testing.T) {
	arena := ast.NewArena()
	pattern := wrap(arena, "&", typeRef(arena, "T"))
	arg := wrap(arena, "*", typeRef(arena, "int"))
	if Unify(arena, map[string]bool{"T": true}, pattern, arg, Deduction{}) {
		t.Fatalf("expected T& not to unify against int*")
	}
}

func TestSelectPartialPointerSpecializationBeatsPrimary(t *testing.T) {
	arena := ast.NewArena()
	primary := &Definition{Name: "Pair", Params: []Param{{Name: "T"}}, Args: []ast.NodeID{typeRef(arena, "T")}}
	pointerSpec := &Definition{
		Name:      "Pair",
		Params:    []Param{{Name: "T"}},
		Args:      []ast.NodeID{wrap(arena, "*", typeRef(arena, "T"))},
		IsPartial: true,
	}
	got, err := SelectPartial(arena, []*Definition{primary, pointerSpec})
	if err != nil {
		t.Fatalf("unexpected ambiguity: %v", err)
	}
	if got != pointerSpec {
		t.Fatalf("expected the T* specialization to win over the unconstrained primary")
	}
}

func TestSelectPartialTieIsAmbiguous(t *testing.T) {
	arena := ast.NewArena()
	d1 := &Definition{Name: "Foo", Params: []Param{{Name: "T"}}, Args: []ast.NodeID{typeRef(arena, "T")}}
	d2 := &Definition{Name: "Foo", Params: []Param{{Name: "U"}}, Args: []ast.NodeID{typeRef(arena, "U")}}
	_, err := SelectPartial(arena, []*Definition{d1, d2})
	if err == nil {
		t.Fatalf("expected an ambiguity diagnostic when no specialization is more specialized than the other")
	}
}

func TestSelectPartialSingleMatch(t *testing.T) {
	arena := ast.NewArena()
	d1 := &Definition{Name: "Foo", Args: []ast.NodeID{typeRef(arena, "int")}}
	got, err := SelectPartial(arena, []*Definition{d1})
	if err != nil || got != d1 {
		t.Fatalf("expected the sole match to be selected unambiguously, got %v err=%v", got, err)
	}
}

func TestInstantiateSubstitutesTypeParameter(t *testing.T) {
	arena := ast.NewArena()
	tParam := typeRef(arena, "T")
	paramDecl := arena.Add(ast.Node{Kind: ast.ParamDecl, Text: "v", Type: tParam})
	body := arena.Add(ast.Node{Kind: ast.CompoundStmt})
	fnDef := arena.Add(ast.Node{Kind: ast.FunctionDef, Text: "identity", Type: tParam, Children: []ast.NodeID{paramDecl, body}})

	def := &Definition{Name: "identity", Kind: KindFunction, Params: []Param{{Name: "T"}}, Body: fnDef, Arena: arena}
	r := New()
	if err := r.Declare(def); err != nil {
		t.Fatalf("declare: %v", err)
	}

	intArg := typeRef(arena, "int")
	root, cached, err := r.Instantiate(def, arena, []string{"int"}, Deduction{"T": intArg})
	if err != nil {
		t.Fatalf("instantiate: %v", err)
	}
	if cached {
		t.Fatalf("expected the first instantiation not to be reported as cached")
	}
	got := arena.At(root)
	if got.Kind != ast.FunctionDef {
		t.Fatalf("expected a cloned FunctionDef, got %v", got.Kind)
	}
	if arena.At(got.Type).Text != "int" {
		t.Fatalf("expected the instantiated return type to be substituted to int, got %q", arena.At(got.Type).Text)
	}
	paramNode := arena.At(got.Children[0])
	if arena.At(paramNode.Type).Text != "int" {
		t.Fatalf("expected the instantiated parameter type to be substituted to int, got %q", arena.At(paramNode.Type).Text)
	}

	if _, cached2, err := r.Instantiate(def, arena, []string{"int"}, Deduction{"T": intArg}); err != nil || !cached2 {
		t.Fatalf("expected the second identical instantiation to hit the cache, cached=%v err=%v", cached2, err)
	}
}

func TestSplitInstantiationNameBasic(t *testing.T) {
	r := New()
	r.primaries["vector"] = &Definition{Name: "vector"}
	name, args, ok := r.SplitInstantiationName("vector<int>")
	if !ok || name != "vector" || args != "int" {
		t.Fatalf("got name=%q args=%q ok=%v", name, args, ok)
	}
}

func TestSplitInstantiationNameNested(t *testing.T) {
	r := New()
	r.primaries["pair"] = &Definition{Name: "pair"}
	name, args, ok := r.SplitInstantiationName("pair<pair<int, int>, int>")
	if !ok || name != "pair" || args != "pair<int, int>, int" {
		t.Fatalf("got name=%q args=%q ok=%v", name, args, ok)
	}
}

func TestLazyMemberRegistryMarksOnce(t *testing.T) {
	l := NewLazyMemberRegistry()
	if !l.MarkUsed("Box<int>", "get") {
		t.Fatalf("first use should report true")
	}
	if l.MarkUsed("Box<int>", "get") {
		t.Fatalf("second use of the same member should report false")
	}
}
