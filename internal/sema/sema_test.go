package sema

import (
	"testing"

	"cppc/internal/ast"
	"cppc/internal/types"
)

func TestResolveBuiltinIsStable(t *testing.T) {
	arena := ast.NewArena()
	reg := types.New()
	r := New(arena, reg)
	intRef := arena.Add(ast.Node{Kind: ast.TypeRef, Text: "int"})
	first := r.Resolve(intRef)
	if reg.At(first).Kind != types.KindInt {
		t.Fatalf("expected KindInt, got %v", reg.At(first).Kind)
	}
	// A second TypeRef node with the same spelling must resolve to the
	// registry's one interned "int", not a fresh entry.
	otherIntRef := arena.Add(ast.Node{Kind: ast.TypeRef, Text: "int"})
	if got := r.Resolve(otherIntRef); got != first {
		t.Fatalf("expected the same TypeID for two distinct int TypeRefs, got %d and %d", first, got)
	}
}

func TestResolvePointerWrapsElement(t *testing.T) {
	arena := ast.NewArena()
	reg := types.New()
	r := New(arena, reg)
	inner := arena.Add(ast.Node{Kind: ast.TypeRef, Text: "double"})
	ptr := arena.Add(ast.Node{Kind: ast.TypeRef, Text: "*", Children: []ast.NodeID{inner}})
	id := r.Resolve(ptr)
	ty := reg.At(id)
	if ty.Kind != types.KindPointer {
		t.Fatalf("expected KindPointer, got %v", ty.Kind)
	}
	if reg.At(ty.Elem).Kind != types.KindDouble {
		t.Fatalf("expected the pointee to be double, got %v", reg.At(ty.Elem).Kind)
	}
}

func TestResolveUnknownNameBecomesClass(t *testing.T) {
	arena := ast.NewArena()
	reg := types.New()
	r := New(arena, reg)
	ref := arena.Add(ast.Node{Kind: ast.TypeRef, Text: "Widget"})
	id := r.Resolve(ref)
	if reg.At(id).Kind != types.KindClass || reg.At(id).Name != "Widget" {
		t.Fatalf("expected a class type named Widget, got %+v", reg.At(id))
	}
	// A second reference to the same spelling must share the TypeID.
	ref2 := arena.Add(ast.Node{Kind: ast.TypeRef, Text: "Widget"})
	if got := r.Resolve(ref2); got != id {
		t.Fatalf("expected both Widget references to resolve to the same TypeID")
	}
}

func TestResolveInvalidIDIsVoid(t *testing.T) {
	arena := ast.NewArena()
	reg := types.New()
	r := New(arena, reg)
	if got := r.Resolve(ast.InvalidID); got != types.Invalid {
		t.Fatalf("expected types.Invalid for ast.InvalidID, got %d", got)
	}
}
