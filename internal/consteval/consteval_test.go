package consteval

import (
	"testing"

	"cppc/internal/ast"
	"cppc/internal/sema"
	"cppc/internal/types"
)

func evalInt(t *testing.T, arena *ast.Arena, root ast.NodeID) int64 {
	t.Helper()
	reg := types.New()
	e := New(arena, reg, sema.New(arena, reg), nil, 1_000_000, 1024)
	v, err := e.Eval(root)
	if err != nil {
		t.Fatalf("eval error: %v", err)
	}
	if v.Kind != VInt {
		t.Fatalf("expected an integer value, got kind %v", v.Kind)
	}
	return v.Int
}

func TestConstantFoldingAddition(t *testing.T) {
	arena := ast.NewArena()
	lhs := arena.Add(ast.Node{Kind: ast.IntLiteralExpr, Int: 2})
	rhs := arena.Add(ast.Node{Kind: ast.IntLiteralExpr, Int: 3})
	add := arena.Add(ast.Node{Kind: ast.BinaryExpr, Text: "+", Children: []ast.NodeID{lhs, rhs}})
	if got := evalInt(t, arena, add); got != 5 {
		t.Fatalf("got %d, want 5", got)
	}
}

func TestStrengthReductionMultiplyByPowerOfTwo(t *testing.T) {
	arena := ast.NewArena()
	lhs := arena.Add(ast.Node{Kind: ast.IntLiteralExpr, Int: 6})
	rhs := arena.Add(ast.Node{Kind: ast.IntLiteralExpr, Int: 8})
	mul := arena.Add(ast.Node{Kind: ast.BinaryExpr, Text: "*", Children: []ast.NodeID{lhs, rhs}})
	if got := evalInt(t, arena, mul); got != 48 {
		t.Fatalf("got %d, want 48", got)
	}
}

func TestDivisionByZeroIsDiagnostic(t *testing.T) {
	arena := ast.NewArena()
	lhs := arena.Add(ast.Node{Kind: ast.IntLiteralExpr, Int: 1})
	rhs := arena.Add(ast.Node{Kind: ast.IntLiteralExpr, Int: 0})
	div := arena.Add(ast.Node{Kind: ast.BinaryExpr, Text: "/", Children: []ast.NodeID{lhs, rhs}})
	reg := types.New()
	e := New(arena, reg, sema.New(arena, reg), nil, 1_000_000, 1024)
	if _, err := e.Eval(div); err == nil {
		t.Fatalf("expected a division-by-zero error")
	}
}

func TestStepLimitExceeded(t *testing.T) {
	arena := ast.NewArena()
	n := arena.Add(ast.Node{Kind: ast.IntLiteralExpr, Int: 1})
	reg := types.New()
	e := New(arena, reg, sema.New(arena, reg), nil, 2, 1024)
	if _, err := e.Eval(n); err != nil {
		t.Fatalf("first eval should stay under the step limit: %v", err)
	}
	if _, err := e.Eval(n); err != nil {
		t.Fatalf("second eval should stay under the step limit: %v", err)
	}
	if _, err := e.Eval(n); err == nil {
		t.Fatalf("expected a step-limit-exceeded error on the third evaluation")
	}
}

func TestPointerBoundsChecking(t *testing.T) {
	arena := ast.NewArena()
	reg := types.New()
	e := New(arena, reg, sema.New(arena, reg), nil, 1_000_000, 1024)
	ptr := e.Alloc(8, 0)
	if err := e.boundsCheck(ptr, 8); err != nil {
		t.Fatalf("in-bounds access should succeed: %v", err)
	}
	if err := e.boundsCheck(ptr, 16); err == nil {
		t.Fatalf("expected an out-of-bounds error")
	}
}

// TestEvalNewDeleteFunctionCall builds the AST for
// constexpr int f(){int*p=new int(42);int r=*p;delete p;return r;}
// and drives it entirely through Eval/EvalFunction/CallExpr, rather than
// calling Alloc/Free/boundsCheck directly, so the NewExpr/DeleteExpr
// wiring in Eval is what's actually under test.
func TestEvalNewDeleteFunctionCall(t *testing.T) {
	arena := ast.NewArena()
	reg := types.New()

	intRef := arena.Add(ast.Node{Kind: ast.TypeRef, Text: "int"})
	intPtrRef := arena.Add(ast.Node{Kind: ast.TypeRef, Text: "*", Children: []ast.NodeID{intRef}})

	lit42 := arena.Add(ast.Node{Kind: ast.IntLiteralExpr, Int: 42, Type: intRef})
	newExpr := arena.Add(ast.Node{Kind: ast.NewExpr, Type: intRef, Children: []ast.NodeID{lit42}})
	pDecl := arena.Add(ast.Node{Kind: ast.VarDecl, Text: "p", Type: intPtrRef, Children: []ast.NodeID{newExpr}})
	pDeclStmt := arena.Add(ast.Node{Kind: ast.DeclStmt, Children: []ast.NodeID{pDecl}})

	pRef := arena.Add(ast.Node{Kind: ast.IdExpr, Text: "p"})
	deref := arena.Add(ast.Node{Kind: ast.UnaryExpr, Text: "*", Children: []ast.NodeID{pRef}})
	rDecl := arena.Add(ast.Node{Kind: ast.VarDecl, Text: "r", Type: intRef, Children: []ast.NodeID{deref}})
	rDeclStmt := arena.Add(ast.Node{Kind: ast.DeclStmt, Children: []ast.NodeID{rDecl}})

	pRef2 := arena.Add(ast.Node{Kind: ast.IdExpr, Text: "p"})
	deleteStmt := arena.Add(ast.Node{Kind: ast.ExprStmt, Children: []ast.NodeID{
		arena.Add(ast.Node{Kind: ast.DeleteExpr, Children: []ast.NodeID{pRef2}}),
	}})

	rRef := arena.Add(ast.Node{Kind: ast.IdExpr, Text: "r"})
	returnStmt := arena.Add(ast.Node{Kind: ast.ReturnStmt, Children: []ast.NodeID{rRef}})

	body := arena.Add(ast.Node{Kind: ast.CompoundStmt, Children: []ast.NodeID{pDeclStmt, rDeclStmt, deleteStmt, returnStmt}})
	fnDef := arena.Add(ast.Node{Kind: ast.FunctionDef, Text: "f", Type: intRef, Children: []ast.NodeID{body}})

	callee := arena.Add(ast.Node{Kind: ast.IdExpr, Text: "f"})
	call := arena.Add(ast.Node{Kind: ast.CallExpr, Children: []ast.NodeID{callee}})

	resolver := sema.New(arena, reg)
	e := New(arena, reg, resolver, map[string]ast.NodeID{"f": fnDef}, 1_000_000, 1024)
	v, err := e.Eval(call)
	if err != nil {
		t.Fatalf("eval error: %v", err)
	}
	if v.Kind != VInt || v.Int != 42 {
		t.Fatalf("expected 42, got %+v", v)
	}
}

func TestDeleteThenAccessIsDiagnostic(t *testing.T) {
	arena := ast.NewArena()
	reg := types.New()
	e := New(arena, reg, sema.New(arena, reg), nil, 1_000_000, 1024)
	ptr := e.Alloc(8, 0)
	if err := e.Free(ptr); err != nil {
		t.Fatalf("unexpected error freeing: %v", err)
	}
	if err := e.boundsCheck(ptr, 4); err == nil {
		t.Fatalf("expected a use-after-delete error")
	}
	if err := e.Free(ptr); err == nil {
		t.Fatalf("expected a double-delete error")
	}
}
