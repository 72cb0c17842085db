package irgen

import (
	"testing"

	"cppc/internal/ast"
	"cppc/internal/diag"
	"cppc/internal/ir"
	"cppc/internal/sema"
	"cppc/internal/types"
)

func lower(t *testing.T, arena *ast.Arena, reg *types.Registry, fnDef ast.NodeID) *ir.Function {
	t.Helper()
	fn := &ir.Function{Name: "f"}
	fn.Blocks = append(fn.Blocks, ir.Block{Name: "entry"})
	b := ir.NewBuilder(fn)
	New(arena, reg, sema.New(arena, reg), b, diag.NewSink()).GenFunction(fnDef)
	return fn
}

// buildFunction assembles a FunctionDef whose body is the given statement
// list, mirroring the shape parser.parseFunctionOrVarDecl produces: the
// last child of a FunctionDef is its compound-statement body.
func buildFunction(arena *ast.Arena, stmts ...ast.NodeID) ast.NodeID {
	body := arena.Add(ast.Node{Kind: ast.CompoundStmt, Children: stmts})
	return arena.Add(ast.Node{Kind: ast.FunctionDef, Text: "f", Children: []ast.NodeID{body}})
}

func TestGenLocalDeclResolvesSyntacticTypeToTypeID(t *testing.T) {
	arena := ast.NewArena()
	reg := types.New()
	intRef := arena.Add(ast.Node{Kind: ast.TypeRef, Text: "int"})
	init := arena.Add(ast.Node{Kind: ast.IntLiteralExpr, Int: 7, Type: intRef})
	decl := arena.Add(ast.Node{Kind: ast.VarDecl, Text: "x", Type: intRef, Children: []ast.NodeID{init}})
	declStmt := arena.Add(ast.Node{Kind: ast.DeclStmt, Children: []ast.NodeID{decl}})
	fnDef := buildFunction(arena, declStmt)

	fn := lower(t, arena, reg, fnDef)

	var alloca *ir.Inst
	for i := range fn.Blocks[0].Insts {
		if fn.Blocks[0].Insts[i].Op == ir.OpAlloca {
			alloca = &fn.Blocks[0].Insts[i]
		}
	}
	if alloca == nil {
		t.Fatalf("expected an OpAlloca instruction, got %+v", fn.Blocks[0].Insts)
	}
	if reg.At(alloca.Type).Kind != types.KindInt {
		t.Fatalf("expected the alloca's resolved type to be KindInt, got %v", reg.At(alloca.Type).Kind)
	}
}

func TestGenFunctionEmitsImplicitReturnWhenBodyFallsThrough(t *testing.T) {
	arena := ast.NewArena()
	reg := types.New()
	fnDef := buildFunction(arena)

	fn := lower(t, arena, reg, fnDef)

	last := fn.Blocks[len(fn.Blocks)-1]
	if len(last.Insts) == 0 || last.Insts[len(last.Insts)-1].Op != ir.OpRet {
		t.Fatalf("expected a trailing OpRet, got %+v", last.Insts)
	}
}

func TestGenExprBinaryResolvesResultType(t *testing.T) {
	arena := ast.NewArena()
	reg := types.New()
	doubleRef := arena.Add(ast.Node{Kind: ast.TypeRef, Text: "double"})
	lhs := arena.Add(ast.Node{Kind: ast.FloatLiteralExpr, Float: 1, Type: doubleRef})
	rhs := arena.Add(ast.Node{Kind: ast.FloatLiteralExpr, Float: 2, Type: doubleRef})
	add := arena.Add(ast.Node{Kind: ast.BinaryExpr, Text: "+", Type: doubleRef, Children: []ast.NodeID{lhs, rhs}})
	exprStmt := arena.Add(ast.Node{Kind: ast.ExprStmt, Children: []ast.NodeID{add}})
	fnDef := buildFunction(arena, exprStmt)

	fn := lower(t, arena, reg, fnDef)

	var found bool
	for _, inst := range fn.Blocks[0].Insts {
		if inst.Op == ir.OpAdd {
			found = true
			if reg.At(inst.Type).Kind != types.KindDouble {
				t.Fatalf("expected the add's type to resolve to KindDouble, got %v", reg.At(inst.Type).Kind)
			}
		}
	}
	if !found {
		t.Fatalf("expected an OpAdd instruction, got %+v", fn.Blocks[0].Insts)
	}
}

// TestGenStmtSwitchBuildsCompareChain builds:
//
//	switch (x) { case 1: break; default: break; }
//
// and checks the dispatch chain compares against the case label with a
// two-way conditional branch.
func TestGenStmtSwitchBuildsCompareChain(t *testing.T) {
	arena := ast.NewArena()
	reg := types.New()
	intRef := arena.Add(ast.Node{Kind: ast.TypeRef, Text: "int"})
	cond := arena.Add(ast.Node{Kind: ast.IdExpr, Text: "x", Type: intRef})
	one := arena.Add(ast.Node{Kind: ast.IntLiteralExpr, Int: 1, Type: intRef})
	caseStmt := arena.Add(ast.Node{Kind: ast.CaseStmt, Children: []ast.NodeID{one}})
	caseBreak := arena.Add(ast.Node{Kind: ast.BreakStmt})
	defaultStmt := arena.Add(ast.Node{Kind: ast.DefaultStmt})
	defaultBreak := arena.Add(ast.Node{Kind: ast.BreakStmt})
	body := arena.Add(ast.Node{Kind: ast.CompoundStmt, Children: []ast.NodeID{caseStmt, caseBreak, defaultStmt, defaultBreak}})
	sw := arena.Add(ast.Node{Kind: ast.SwitchStmt, Children: []ast.NodeID{cond, body}})
	fnDef := buildFunction(arena, sw)

	fn := lower(t, arena, reg, fnDef)

	var sawCmp, sawBr bool
	for _, blk := range fn.Blocks {
		for _, inst := range blk.Insts {
			if inst.Op == ir.OpCmpEq {
				sawCmp = true
			}
			if inst.Op == ir.OpBr && len(inst.Targets) == 2 {
				sawBr = true
			}
		}
	}
	if !sawCmp || !sawBr {
		t.Fatalf("expected a compare-and-branch dispatch chain, got blocks %+v", fn.Blocks)
	}
}

func TestGenExprStaticCastNarrowsToTrunc(t *testing.T) {
	arena := ast.NewArena()
	reg := types.New()
	longRef := arena.Add(ast.Node{Kind: ast.TypeRef, Text: "long"})
	intRef := arena.Add(ast.Node{Kind: ast.TypeRef, Text: "int"})
	lit := arena.Add(ast.Node{Kind: ast.IntLiteralExpr, Int: 7, Type: longRef})
	cast := arena.Add(ast.Node{Kind: ast.StaticCastExpr, Type: intRef, Children: []ast.NodeID{lit}})
	exprStmt := arena.Add(ast.Node{Kind: ast.ExprStmt, Children: []ast.NodeID{cast}})
	fnDef := buildFunction(arena, exprStmt)

	fn := lower(t, arena, reg, fnDef)

	var found bool
	for _, inst := range fn.Blocks[0].Insts {
		if inst.Op == ir.OpCastTrunc {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected an OpCastTrunc instruction narrowing long to int, got %+v", fn.Blocks[0].Insts)
	}
}

func TestGenStmtLambdaIsDiagnosed(t *testing.T) {
	arena := ast.NewArena()
	reg := types.New()
	lambda := arena.Add(ast.Node{Kind: ast.LambdaExpr})
	exprStmt := arena.Add(ast.Node{Kind: ast.ExprStmt, Children: []ast.NodeID{lambda}})
	fnDef := buildFunction(arena, exprStmt)

	sink := diag.NewSink()
	fn := &ir.Function{Name: "f"}
	fn.Blocks = append(fn.Blocks, ir.Block{Name: "entry"})
	b := ir.NewBuilder(fn)
	New(arena, reg, sema.New(arena, reg), b, sink).GenFunction(fnDef)

	if !sink.HasErrors() {
		t.Fatalf("expected a diagnostic for an unlowerable lambda expression")
	}
}
