// Package irgen lowers a type-checked AST into internal/ir form. It
// follows the teacher's single-pass "walk the tree, emit as you go"
// structure, generalized from a small expression/statement set to C++'s
// scopes, destructors, virtual dispatch and casts. There is no teacher
// file that performs this AST-to-IR lowering directly: the nearest
// analogue, hhramberg-go-vslc/src/ir/optimise.go, is a folding pass over
// an IR tree that already exists, not a lowering pass from a source AST;
// this package's per-statement/per-expression walk is instead grounded on
// the teacher's generate-as-you-walk backend emission style in
// src/backend/lir, adapted to produce internal/ir's flat instruction list
// instead of the teacher's assembly-text lines.
package irgen

import (
	"fmt"

	"cppc/internal/ast"
	"cppc/internal/diag"
	"cppc/internal/ir"
	"cppc/internal/sema"
	"cppc/internal/types"
)

// scope tracks the variables (and their destructor obligations) live in
// one block. Destructor calls, in reverse declaration order, are emitted
// when the block is closed by popScope and on return; break, continue and
// goto jump out without emitting them.
type scope struct {
	parent *scope
	locals []localVar
}

type localVar struct {
	name    string
	typ     types.TypeID
	slot    ir.ValueID
	hasDtor bool
}

// Generator converts one function body's AST into IR, given its already
// resolved parameter and return types.
type Generator struct {
	arena    *ast.Arena
	types    *types.Registry
	resolver *sema.Resolver
	b        *ir.Builder
	sink     *diag.Sink
	scope    *scope
	// loopExit/loopContinue hold the block indices break/continue should
	// jump to for the innermost enclosing loop or switch.
	loopExit     []int
	loopContinue []int
	labels       map[string]int
	gotoFixups   []gotoFixup
}

type gotoFixup struct {
	block int
	inst  int
	label string
}

// New returns a Generator for one function body. resolver bridges the
// syntactic TypeRef nodes hanging off each ast.Node's Type field to the
// types.TypeID values ir.Inst and the rest of the pipeline deal in. sink
// receives diagnostics for constructs this package cannot lower, so that
// an unhandled AST shape is reported rather than silently dropped.
func New(arena *ast.Arena, reg *types.Registry, resolver *sema.Resolver, b *ir.Builder, sink *diag.Sink) *Generator {
	return &Generator{arena: arena, types: reg, resolver: resolver, b: b, sink: sink, labels: make(map[string]int)}
}

// typeOf resolves node's syntactic type reference to the semantic
// TypeID ir.Inst and localVar expect.
func (g *Generator) typeOf(node *ast.Node) types.TypeID {
	return g.resolver.Resolve(node.Type)
}

func (g *Generator) pushScope() { g.scope = &scope{parent: g.scope} }

func (g *Generator) popScope() {
	g.emitScopeDestructors(g.scope)
	g.scope = g.scope.parent
}

// emitScopeDestructors emits destructor calls for every local in s with a
// non-trivial destructor, in reverse declaration order.
func (g *Generator) emitScopeDestructors(s *scope) {
	for i := len(s.locals) - 1; i >= 0; i-- {
		lv := s.locals[i]
		if !lv.hasDtor {
			continue
		}
		g.b.Emit(ir.Inst{Op: ir.OpCall, Sym: dtorName(lv.typ, g.types), Args: []ir.ValueID{lv.slot}})
	}
}

func dtorName(t types.TypeID, reg *types.Registry) string {
	return fmt.Sprintf("%s::~%s", reg.At(t).Name, reg.At(t).Name)
}

// diagnose reports that node's kind cannot be lowered, instead of the
// default cases silently recursing into (or ignoring) its children.
func (g *Generator) diagnose(node *ast.Node, reason string) {
	if g.sink == nil {
		return
	}
	g.sink.Errorf(diag.Location{}, "cannot lower %v: %s", node.Kind, reason)
}

// GenFunction lowers a FunctionDef node's body into fn's blocks.
func (g *Generator) GenFunction(n ast.NodeID) {
	g.pushScope()
	node := g.arena.At(n)
	body := node.Children[len(node.Children)-1]
	g.genStmt(body)
	g.popScope()
	if !g.b.Terminated() {
		g.b.Emit(ir.Inst{Op: ir.OpRet})
	}
	g.resolveGotos()
}

func (g *Generator) resolveGotos() {
	for _, fx := range g.gotoFixups {
		if target, ok := g.labels[fx.label]; ok {
			g.b.Fn.Blocks[fx.block].Insts[fx.inst].Targets = []int{target}
		}
	}
}

func (g *Generator) genStmt(n ast.NodeID) {
	if n == ast.InvalidID {
		return
	}
	node := g.arena.At(n)
	switch node.Kind {
	case ast.CompoundStmt:
		g.pushScope()
		for _, c := range node.Children {
			if g.b.Terminated() {
				break
			}
			g.genStmt(c)
		}
		g.popScope()

	case ast.ExprStmt:
		if len(node.Children) > 0 {
			g.genExpr(node.Children[0])
		}

	case ast.DeclStmt:
		for _, c := range node.Children {
			g.genLocalDecl(c)
		}

	case ast.IfStmt:
		cond := g.genExpr(node.Children[0])
		thenBlk := g.b.NewBlock("if.then")
		var elseBlk int
		hasElse := len(node.Children) > 2
		if hasElse {
			elseBlk = g.b.NewBlock("if.else")
		}
		endBlk := g.b.NewBlock("if.end")

		targets := []int{thenBlk}
		if hasElse {
			targets = append(targets, elseBlk)
		} else {
			targets = append(targets, endBlk)
		}
		g.b.Emit(ir.Inst{Op: ir.OpBr, Args: []ir.ValueID{cond}, Targets: targets})

		g.b.SetBlock(thenBlk)
		g.genStmt(node.Children[1])
		if !g.b.Terminated() {
			g.b.Emit(ir.Inst{Op: ir.OpJmp, Targets: []int{endBlk}})
		}

		if hasElse {
			g.b.SetBlock(elseBlk)
			g.genStmt(node.Children[2])
			if !g.b.Terminated() {
				g.b.Emit(ir.Inst{Op: ir.OpJmp, Targets: []int{endBlk}})
			}
		}
		g.b.SetBlock(endBlk)

	case ast.WhileStmt:
		condBlk := g.b.NewBlock("while.cond")
		bodyBlk := g.b.NewBlock("while.body")
		endBlk := g.b.NewBlock("while.end")
		g.b.Emit(ir.Inst{Op: ir.OpJmp, Targets: []int{condBlk}})

		g.b.SetBlock(condBlk)
		cond := g.genExpr(node.Children[0])
		g.b.Emit(ir.Inst{Op: ir.OpBr, Args: []ir.ValueID{cond}, Targets: []int{bodyBlk, endBlk}})

		g.loopExit = append(g.loopExit, endBlk)
		g.loopContinue = append(g.loopContinue, condBlk)
		g.b.SetBlock(bodyBlk)
		g.genStmt(node.Children[1])
		if !g.b.Terminated() {
			g.b.Emit(ir.Inst{Op: ir.OpJmp, Targets: []int{condBlk}})
		}
		g.loopExit = g.loopExit[:len(g.loopExit)-1]
		g.loopContinue = g.loopContinue[:len(g.loopContinue)-1]
		g.b.SetBlock(endBlk)

	case ast.DoStmt:
		bodyBlk := g.b.NewBlock("do.body")
		condBlk := g.b.NewBlock("do.cond")
		endBlk := g.b.NewBlock("do.end")
		g.b.Emit(ir.Inst{Op: ir.OpJmp, Targets: []int{bodyBlk}})

		g.loopExit = append(g.loopExit, endBlk)
		g.loopContinue = append(g.loopContinue, condBlk)
		g.b.SetBlock(bodyBlk)
		g.genStmt(node.Children[0])
		if !g.b.Terminated() {
			g.b.Emit(ir.Inst{Op: ir.OpJmp, Targets: []int{condBlk}})
		}
		g.loopExit = g.loopExit[:len(g.loopExit)-1]
		g.loopContinue = g.loopContinue[:len(g.loopContinue)-1]

		g.b.SetBlock(condBlk)
		cond := g.genExpr(node.Children[1])
		g.b.Emit(ir.Inst{Op: ir.OpBr, Args: []ir.ValueID{cond}, Targets: []int{bodyBlk, endBlk}})
		g.b.SetBlock(endBlk)

	case ast.ForStmt:
		g.pushScope()
		if node.Children[0] != ast.InvalidID {
			g.genStmt(node.Children[0])
		}
		condBlk := g.b.NewBlock("for.cond")
		bodyBlk := g.b.NewBlock("for.body")
		stepBlk := g.b.NewBlock("for.step")
		endBlk := g.b.NewBlock("for.end")
		g.b.Emit(ir.Inst{Op: ir.OpJmp, Targets: []int{condBlk}})

		g.b.SetBlock(condBlk)
		if node.Children[1] != ast.InvalidID {
			cond := g.genExpr(node.Children[1])
			g.b.Emit(ir.Inst{Op: ir.OpBr, Args: []ir.ValueID{cond}, Targets: []int{bodyBlk, endBlk}})
		} else {
			g.b.Emit(ir.Inst{Op: ir.OpJmp, Targets: []int{bodyBlk}})
		}

		g.loopExit = append(g.loopExit, endBlk)
		g.loopContinue = append(g.loopContinue, stepBlk)
		g.b.SetBlock(bodyBlk)
		g.genStmt(node.Children[3])
		if !g.b.Terminated() {
			g.b.Emit(ir.Inst{Op: ir.OpJmp, Targets: []int{stepBlk}})
		}
		g.loopExit = g.loopExit[:len(g.loopExit)-1]
		g.loopContinue = g.loopContinue[:len(g.loopContinue)-1]

		g.b.SetBlock(stepBlk)
		if node.Children[2] != ast.InvalidID {
			g.genExpr(node.Children[2])
		}
		g.b.Emit(ir.Inst{Op: ir.OpJmp, Targets: []int{condBlk}})
		g.b.SetBlock(endBlk)
		g.popScope()

	case ast.RangeForStmt:
		// A range-based for needs an iterator protocol (begin()/end(),
		// operator!=, operator++, operator*) this pipeline does not yet
		// lower generically; diagnose rather than mis-lower it as a
		// no-op loop.
		g.diagnose(node, "range-based for requires begin()/end() iterator lowering, not yet implemented")

	case ast.SwitchStmt:
		g.genSwitch(node)

	case ast.BreakStmt:
		if len(g.loopExit) > 0 {
			g.b.Emit(ir.Inst{Op: ir.OpJmp, Targets: []int{g.loopExit[len(g.loopExit)-1]}})
		}

	case ast.ContinueStmt:
		if len(g.loopContinue) > 0 {
			g.b.Emit(ir.Inst{Op: ir.OpJmp, Targets: []int{g.loopContinue[len(g.loopContinue)-1]}})
		}

	case ast.ReturnStmt:
		var ret ir.ValueID
		if len(node.Children) > 0 {
			ret = g.genReturnValue(node.Children[0])
		}
		for s := g.scope; s != nil; s = s.parent {
			g.emitScopeDestructors(s)
		}
		args := []ir.ValueID{}
		if ret != 0 {
			args = []ir.ValueID{ret}
		}
		g.b.Emit(ir.Inst{Op: ir.OpRet, Args: args})

	case ast.LabelStmt:
		blk := g.b.NewBlock("label." + node.Text)
		if !g.b.Terminated() {
			g.b.Emit(ir.Inst{Op: ir.OpJmp, Targets: []int{blk}})
		}
		g.labels[node.Text] = blk
		g.b.SetBlock(blk)
		if len(node.Children) > 0 {
			g.genStmt(node.Children[0])
		}

	case ast.GotoStmt:
		blkIdx := g.b.CurrentBlock()
		instIdx := len(g.b.Fn.Blocks[blkIdx].Insts)
		g.b.Emit(ir.Inst{Op: ir.OpJmp, Targets: []int{0}})
		g.gotoFixups = append(g.gotoFixups, gotoFixup{block: blkIdx, inst: instIdx, label: node.Text})

	case ast.TryStmt:
		// Exception unwinding needs landing pads and unwind tables this
		// backend does not yet emit; lower the guarded body so normal
		// control flow still compiles, but diagnose the handlers rather
		// than silently discarding them.
		if len(node.Children) > 0 {
			g.genStmt(node.Children[0])
		}
		for _, c := range node.Children[1:] {
			g.diagnose(g.arena.At(c), "catch handlers require unwind-table support, not yet implemented")
		}

	case ast.ThrowStmt:
		g.diagnose(node, "throw requires exception unwind-table support, not yet implemented")

	case ast.StructuredBindingDecl:
		g.diagnose(node, "structured bindings require per-element aggregate destructuring, not yet implemented")

	default:
		g.diagnose(node, "statement kind is not lowered by this pass")
	}
}

// genSwitch lowers a switch statement into a dispatch chain of equality
// compares followed by per-label fallthrough blocks, rather than a real
// jump table: case labels are not required to be densely packed, and the
// teacher's own backend has no jump-table emission to generalize from.
func (g *Generator) genSwitch(node *ast.Node) {
	cond := g.genExpr(node.Children[0])
	bodyNode := g.arena.At(node.Children[1])

	type switchCase struct {
		label     ast.NodeID
		isDefault bool
		stmts     []ast.NodeID
	}
	var cases []switchCase
	for _, c := range bodyNode.Children {
		cn := g.arena.At(c)
		switch cn.Kind {
		case ast.CaseStmt:
			cases = append(cases, switchCase{label: cn.Children[0]})
			continue
		case ast.DefaultStmt:
			cases = append(cases, switchCase{isDefault: true})
			continue
		}
		if len(cases) == 0 {
			continue // statement before the first label is unreachable.
		}
		last := &cases[len(cases)-1]
		last.stmts = append(last.stmts, c)
	}

	endBlk := g.b.NewBlock("switch.end")
	blocks := make([]int, len(cases))
	for i := range cases {
		blocks[i] = g.b.NewBlock("switch.case")
	}
	defaultBlk := endBlk
	for i, cs := range cases {
		if cs.isDefault {
			defaultBlk = blocks[i]
		}
	}

	for i, cs := range cases {
		if cs.isDefault {
			continue
		}
		val := g.genExpr(cs.label)
		cmp := g.b.Emit(ir.Inst{Op: ir.OpCmpEq, Type: g.types.Builtin(types.KindBool), Args: []ir.ValueID{cond, val}})
		nextBlk := g.b.NewBlock("switch.test")
		g.b.Emit(ir.Inst{Op: ir.OpBr, Args: []ir.ValueID{cmp}, Targets: []int{blocks[i], nextBlk}})
		g.b.SetBlock(nextBlk)
	}
	g.b.Emit(ir.Inst{Op: ir.OpJmp, Targets: []int{defaultBlk}})

	g.loopExit = append(g.loopExit, endBlk)
	for i, cs := range cases {
		g.b.SetBlock(blocks[i])
		for _, s := range cs.stmts {
			if g.b.Terminated() {
				break
			}
			g.genStmt(s)
		}
		if !g.b.Terminated() {
			next := endBlk
			if i+1 < len(cases) {
				next = blocks[i+1]
			}
			g.b.Emit(ir.Inst{Op: ir.OpJmp, Targets: []int{next}})
		}
	}
	g.loopExit = g.loopExit[:len(g.loopExit)-1]
	g.b.SetBlock(endBlk)
}

func (g *Generator) genLocalDecl(n ast.NodeID) {
	node := g.arena.At(n)
	if node.Kind != ast.VarDecl {
		g.diagnose(node, "declaration kind is not lowered by this pass")
		return
	}
	slot := g.b.Emit(ir.Inst{Op: ir.OpAlloca, Type: g.typeOf(node), Sym: node.Text})
	if len(node.Children) > 0 {
		v := g.genExpr(node.Children[0])
		g.b.Emit(ir.Inst{Op: ir.OpStore, Args: []ir.ValueID{slot, v}})
	}
	g.scope.locals = append(g.scope.locals, localVar{name: node.Text, typ: g.typeOf(node), slot: slot})
}

var binOpMap = map[string]ir.Op{
	"+": ir.OpAdd, "-": ir.OpSub, "*": ir.OpMul, "/": ir.OpDiv, "%": ir.OpMod,
	"<<": ir.OpShl, ">>": ir.OpShr, "&": ir.OpAnd, "|": ir.OpOr, "^": ir.OpXor,
	"==": ir.OpCmpEq, "!=": ir.OpCmpNe, "<": ir.OpCmpLt, "<=": ir.OpCmpLe,
	">": ir.OpCmpGt, ">=": ir.OpCmpGe,
}

// castOp picks the conversion op for a scalar cast from the source and
// destination Kinds. Returns OpCastBitcast (a same-representation
// reinterpretation) when neither side is a float/int widening or
// narrowing, which also covers pointer-to-pointer reinterpret_cast and
// const_cast (no bit pattern changes, only the type changes).
func castOp(from, to *types.Type) ir.Op {
	fromFloat := isFloatKind(from.Kind)
	toFloat := isFloatKind(to.Kind)
	switch {
	case fromFloat && !toFloat:
		return ir.OpCastFloatToInt
	case !fromFloat && toFloat:
		return ir.OpCastIntToFloat
	case fromFloat && toFloat:
		if to.Size > from.Size {
			return ir.OpCastFloatExt
		}
		if to.Size < from.Size {
			return ir.OpCastFloatTrunc
		}
		return ir.OpCastBitcast
	case !fromFloat && !toFloat && isIntKind(from.Kind) && isIntKind(to.Kind):
		if to.Size > from.Size {
			if isUnsignedKind(from.Kind) {
				return ir.OpCastZExt
			}
			return ir.OpCastSExt
		}
		if to.Size < from.Size {
			return ir.OpCastTrunc
		}
		return ir.OpCastBitcast
	default:
		return ir.OpCastBitcast
	}
}

func isFloatKind(k types.Kind) bool {
	return k == types.KindFloat || k == types.KindDouble || k == types.KindLongDouble
}

func isIntKind(k types.Kind) bool {
	switch k {
	case types.KindBool, types.KindChar, types.KindChar8, types.KindChar16, types.KindChar32,
		types.KindWChar, types.KindSChar, types.KindUChar, types.KindShort, types.KindUShort,
		types.KindInt, types.KindUInt, types.KindLong, types.KindULong, types.KindLongLong, types.KindULongLong:
		return true
	}
	return false
}

func isUnsignedKind(k types.Kind) bool {
	switch k {
	case types.KindBool, types.KindChar8, types.KindUChar, types.KindUShort, types.KindUInt, types.KindULong, types.KindULongLong:
		return true
	}
	return false
}

func (g *Generator) genCast(node *ast.Node) ir.ValueID {
	v := g.genExpr(node.Children[0])
	to := g.typeOf(node)
	op := castOp(g.types.At(g.resolver.Resolve(g.arena.At(node.Children[0]).Type)), g.types.At(to))
	return g.b.Emit(ir.Inst{Op: op, Type: to, Args: []ir.ValueID{v}})
}

// classTypeOf unwraps pointer/reference indirection to reach the
// underlying class type, if any.
func (g *Generator) classTypeOf(t types.TypeID) (types.TypeID, bool) {
	ty := g.types.At(t)
	for ty.Kind == types.KindPointer || ty.Kind == types.KindLValueRef || ty.Kind == types.KindRValueRef {
		t = ty.Elem
		ty = g.types.At(t)
	}
	if ty.Kind == types.KindClass {
		return t, true
	}
	return 0, false
}

func (g *Generator) genExpr(n ast.NodeID) ir.ValueID {
	if n == ast.InvalidID {
		return 0
	}
	node := g.arena.At(n)
	switch node.Kind {
	case ast.IntLiteralExpr:
		return g.b.Emit(ir.Inst{Op: ir.OpCopy, Type: g.typeOf(node), Imm: node.Int})
	case ast.FloatLiteralExpr:
		return g.b.Emit(ir.Inst{Op: ir.OpCopy, Type: g.typeOf(node), FImm: node.Float})
	case ast.BoolLiteralExpr:
		return g.b.Emit(ir.Inst{Op: ir.OpCopy, Type: g.typeOf(node), Imm: node.Int})
	case ast.IdExpr:
		return g.b.Emit(ir.Inst{Op: ir.OpLoad, Type: g.typeOf(node), Sym: node.Text})
	case ast.BinaryExpr:
		lhs := g.genExpr(node.Children[0])
		rhs := g.genExpr(node.Children[1])
		op, ok := binOpMap[node.Text]
		if !ok {
			op = ir.OpAdd
		}
		return g.b.Emit(ir.Inst{Op: op, Type: g.typeOf(node), Args: []ir.ValueID{lhs, rhs}})
	case ast.UnaryExpr:
		v := g.genExpr(node.Children[0])
		switch node.Text {
		case "-":
			return g.b.Emit(ir.Inst{Op: ir.OpNeg, Type: g.typeOf(node), Args: []ir.ValueID{v}})
		case "!":
			return g.b.Emit(ir.Inst{Op: ir.OpNot, Type: g.typeOf(node), Args: []ir.ValueID{v}})
		default:
			return v
		}
	case ast.AssignExpr:
		rhs := g.genExpr(node.Children[1])
		target := g.arena.At(node.Children[0])
		g.b.Emit(ir.Inst{Op: ir.OpStore, Sym: target.Text, Args: []ir.ValueID{0, rhs}})
		return rhs
	case ast.CallExpr:
		return g.genCall(node)
	case ast.MemberExpr, ast.ArrowMemberExpr:
		base := g.genExpr(node.Children[0])
		addr := g.b.Emit(ir.Inst{Op: ir.OpGetFieldAddr, Type: g.types.Pointer(g.typeOf(node)), Args: []ir.ValueID{base}, Sym: node.Text})
		return g.b.Emit(ir.Inst{Op: ir.OpLoad, Type: g.typeOf(node), Args: []ir.ValueID{addr}})
	case ast.ConditionalExpr:
		cond := g.genExpr(node.Children[0])
		thenBlk := g.b.NewBlock("cond.then")
		elseBlk := g.b.NewBlock("cond.else")
		endBlk := g.b.NewBlock("cond.end")
		g.b.Emit(ir.Inst{Op: ir.OpBr, Args: []ir.ValueID{cond}, Targets: []int{thenBlk, elseBlk}})

		g.b.SetBlock(thenBlk)
		tv := g.genExpr(node.Children[1])
		g.b.Emit(ir.Inst{Op: ir.OpJmp, Targets: []int{endBlk}})

		g.b.SetBlock(elseBlk)
		ev := g.genExpr(node.Children[2])
		g.b.Emit(ir.Inst{Op: ir.OpJmp, Targets: []int{endBlk}})

		g.b.SetBlock(endBlk)
		return g.b.Emit(ir.Inst{Op: ir.OpPhi, Type: g.typeOf(node), Args: []ir.ValueID{tv, ev}})

	case ast.CastExpr, ast.StaticCastExpr, ast.ReinterpretCastExpr, ast.ConstCastExpr:
		return g.genCast(node)
	case ast.DynamicCastExpr:
		g.diagnose(node, "dynamic_cast requires a runtime type information table, not yet implemented")
		return g.genExpr(node.Children[0])

	case ast.NewExpr:
		return g.genNew(node)
	case ast.DeleteExpr:
		v := g.genExpr(node.Children[0])
		g.b.Emit(ir.Inst{Op: ir.OpCall, Sym: "operator delete", Args: []ir.ValueID{v}})
		return 0

	case ast.LambdaExpr:
		g.diagnose(node, "lambda expressions require closure-object synthesis, not yet implemented")
		return 0
	case ast.TypeidExpr:
		g.diagnose(node, "typeid requires a runtime type information table, not yet implemented")
		return 0
	case ast.FoldExpr:
		g.diagnose(node, "fold expressions require parameter-pack expansion, not yet implemented")
		return 0

	default:
		g.diagnose(node, "expression kind is not lowered by this pass")
		return 0
	}
}

// genNew lowers a new-expression to a call to the free-store allocator,
// storing the initializer (if any) into the freshly allocated object.
func (g *Generator) genNew(node *ast.Node) ir.ValueID {
	elemType := g.typeOf(node)
	size := g.types.At(elemType).Size
	if size <= 0 {
		size = 8
	}
	sizeArg := g.b.Emit(ir.Inst{Op: ir.OpCopy, Type: g.types.Builtin(types.KindULong), Imm: size})
	ptr := g.b.Emit(ir.Inst{Op: ir.OpCall, Type: g.types.Pointer(elemType), Sym: "operator new", Args: []ir.ValueID{sizeArg}})
	if len(node.Children) > 0 {
		v := g.genExpr(node.Children[0])
		g.b.Emit(ir.Inst{Op: ir.OpStore, Args: []ir.ValueID{ptr, v}})
	}
	return ptr
}

// genCall lowers an ordinary free-function call or, when the callee is a
// member-access expression naming a virtual method, an indirect call
// through the object's vtable: the callee is loaded from
// vtable[slot] rather than referenced by symbol, and Sym is left empty
// on the resulting OpCall to mark it as an indirect call whose target is
// Args[0] (codegen's direct-symbol-relocation OpCall lowering does not
// yet consume this shape; see DESIGN.md).
func (g *Generator) genCall(node *ast.Node) ir.ValueID {
	callee := g.arena.At(node.Children[0])
	if callee.Kind == ast.MemberExpr || callee.Kind == ast.ArrowMemberExpr {
		baseType := g.resolver.Resolve(g.arena.At(callee.Children[0]).Type)
		if classType, ok := g.classTypeOf(baseType); ok {
			if slot, ok := g.types.VTableSlot(classType, callee.Text); ok {
				base := g.genExpr(callee.Children[0])
				vtable := g.b.Emit(ir.Inst{Op: ir.OpVTableLoad, Args: []ir.ValueID{base}})
				slotAddr := g.b.Emit(ir.Inst{Op: ir.OpGetElemAddr, Args: []ir.ValueID{vtable}, Imm: int64(slot)})
				fnPtr := g.b.Emit(ir.Inst{Op: ir.OpLoad, Args: []ir.ValueID{slotAddr}})
				args := []ir.ValueID{fnPtr, base}
				for _, a := range node.Children[1:] {
					args = append(args, g.genExpr(a))
				}
				return g.b.Emit(ir.Inst{Op: ir.OpCall, Type: g.typeOf(node), Args: args})
			}
		}
	}
	var args []ir.ValueID
	for _, a := range node.Children[1:] {
		args = append(args, g.genExpr(a))
	}
	return g.b.Emit(ir.Inst{Op: ir.OpCall, Type: g.typeOf(node), Sym: callee.Text, Args: args})
}

// genReturnValue lowers a returned expression, constructing directly into
// the function's return slot instead of a temporary when it is a
// functional-style constructor call for the return type (return T(args)),
// eliding the copy a naive "construct a temporary, then copy it into the
// return slot" lowering would otherwise require.
func (g *Generator) genReturnValue(n ast.NodeID) ir.ValueID {
	node := g.arena.At(n)
	if node.Kind == ast.CallExpr && len(node.Children) > 0 {
		callee := g.arena.At(node.Children[0])
		retType := g.typeOf(node)
		if callee.Kind == ast.IdExpr && len(callee.Children) == 0 && retType != 0 {
			ct := g.types.At(retType)
			if ct.Kind == types.KindClass && ct.Name == callee.Text {
				slot := g.b.Emit(ir.Inst{Op: ir.OpAlloca, Type: retType})
				args := []ir.ValueID{slot}
				for _, a := range node.Children[1:] {
					args = append(args, g.genExpr(a))
				}
				g.b.Emit(ir.Inst{Op: ir.OpCall, Sym: ct.Name + "::" + ct.Name, Args: args})
				return slot
			}
		}
	}
	return g.genExpr(n)
}
