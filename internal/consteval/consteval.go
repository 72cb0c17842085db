// Package consteval implements the compile-time expression evaluator of
// §4.5: a recursive AST interpreter over the full constant-expression
// value universe, bounded by a step counter (default 1,000,000, §5), with
// a virtual arena modeling new/delete for constexpr allocation. Its
// constant-folding pass is adapted wholesale from the teacher's
// hhramberg-go-vslc/src/ir/optimise.go algorithm, generalized from
// VSL's int/float pair to the full arithmetic type lattice of
// internal/types.
package consteval

import (
	"encoding/binary"
	"fmt"
	"math"

	"cppc/internal/ast"
	"cppc/internal/sema"
	"cppc/internal/types"
)

// ValueKind discriminates the shape a Value holds.
type ValueKind int

const (
	VInt ValueKind = iota
	VFloat
	VBool
	VPointer
	VAggregate
	VNull
)

// Value is one constant-expression value.
type Value struct {
	Kind      ValueKind
	Int       int64
	Unsigned  uint64
	IsUnsigned bool
	Float     float64
	Bool      bool
	Type      types.TypeID
	// Pointer fields: an object id into the evaluator's virtual arena plus
	// a byte offset, with Bound the allocation's size for bounds checking.
	ArenaID int
	Offset  int64
	Bound   int64
	Fields  []Value // VAggregate member values, in declaration order.
}

// object is one live allocation in the evaluator's virtual heap, modeling
// both named locals/temporaries and new-expression allocations.
type object struct {
	bytes []byte
	freed bool
}

// Evaluator interprets constant expressions for one translation unit.
type Evaluator struct {
	arena      *ast.Arena
	types      *types.Registry
	resolver   *sema.Resolver
	funcs      map[string]ast.NodeID // constexpr FunctionDef nodes, by name, for CallExpr.
	steps      int64
	stepLimit  int64
	depth      int
	depthLimit int
	heap       []object
	scopes     []map[string]Value
}

// New returns an Evaluator with the given step and recursion-depth limits
// (§5's defaults: 1,000,000 steps, 1024 call depth). resolver bridges the
// literal nodes' syntactic TypeRef children to the types.TypeID values
// Value.Type carries. funcs maps a constexpr function's name to its
// FunctionDef node, so a CallExpr can find a body to interpret; it may be
// nil if the evaluated expression never calls a function.
func New(arena *ast.Arena, reg *types.Registry, resolver *sema.Resolver, funcs map[string]ast.NodeID, stepLimit, depthLimit int64) *Evaluator {
	return &Evaluator{
		arena: arena, types: reg, resolver: resolver, funcs: funcs, stepLimit: stepLimit, depthLimit: int(depthLimit),
		scopes: []map[string]Value{make(map[string]Value)},
	}
}

func (e *Evaluator) pushScope() { e.scopes = append(e.scopes, make(map[string]Value)) }

func (e *Evaluator) popScope() { e.scopes = e.scopes[:len(e.scopes)-1] }

func (e *Evaluator) setLocal(name string, v Value) {
	e.scopes[len(e.scopes)-1][name] = v
}

func (e *Evaluator) lookupLocal(name string) (Value, bool) {
	for i := len(e.scopes) - 1; i >= 0; i-- {
		if v, ok := e.scopes[i][name]; ok {
			return v, true
		}
	}
	return Value{}, false
}

// StepLimitExceeded is returned once Evaluator has executed more than its
// configured step budget, per §4.5/§5.
type StepLimitExceeded struct{ Limit int64 }

func (e *StepLimitExceeded) Error() string {
	return fmt.Sprintf("constant expression exceeded the step limit of %d", e.Limit)
}

func (e *Evaluator) tick() error {
	e.steps++
	if e.steps > e.stepLimit {
		return &StepLimitExceeded{Limit: e.stepLimit}
	}
	return nil
}

// Alloc creates a new heap object of size bytes (for a constexpr
// new-expression) and returns a pointer Value to it.
func (e *Evaluator) Alloc(size int64, elemType types.TypeID) Value {
	e.heap = append(e.heap, object{bytes: make([]byte, size)})
	return Value{Kind: VPointer, ArenaID: len(e.heap) - 1, Offset: 0, Bound: size, Type: elemType}
}

// Free marks the allocation pointed to by v as released; a subsequent
// access through a dangling pointer is a hard evaluation error.
func (e *Evaluator) Free(v Value) error {
	if v.Kind != VPointer || v.ArenaID < 0 || v.ArenaID >= len(e.heap) {
		return fmt.Errorf("delete of non-pointer or out-of-range constant expression value")
	}
	if e.heap[v.ArenaID].freed {
		return fmt.Errorf("double delete in constant expression")
	}
	e.heap[v.ArenaID].freed = true
	return nil
}

// boundsCheck validates that accessing size bytes at v.Offset stays
// within the pointed-to allocation (§4.5 "bounds-checked pointer access").
func (e *Evaluator) boundsCheck(v Value, size int64) error {
	if v.Kind != VPointer {
		return fmt.Errorf("dereference of non-pointer constant expression value")
	}
	if v.ArenaID < 0 || v.ArenaID >= len(e.heap) {
		return fmt.Errorf("dereference of invalid pointer in constant expression")
	}
	if e.heap[v.ArenaID].freed {
		return fmt.Errorf("dereference of a pointer to deleted storage in constant expression")
	}
	if v.Offset < 0 || v.Offset+size > v.Bound {
		return fmt.Errorf("out-of-bounds access in constant expression (offset %d, size %d, bound %d)", v.Offset, size, v.Bound)
	}
	return nil
}

// Eval evaluates expression n to a Value, enforcing the step limit at
// every node visited.
func (e *Evaluator) Eval(n ast.NodeID) (Value, error) {
	if err := e.tick(); err != nil {
		return Value{}, err
	}
	node := e.arena.At(n)
	switch node.Kind {
	case ast.IntLiteralExpr:
		return Value{Kind: VInt, Int: node.Int, Type: e.resolver.Resolve(node.Type)}, nil
	case ast.FloatLiteralExpr:
		return Value{Kind: VFloat, Float: node.Float, Type: e.resolver.Resolve(node.Type)}, nil
	case ast.BoolLiteralExpr:
		return Value{Kind: VBool, Bool: node.Int != 0, Type: e.resolver.Resolve(node.Type)}, nil
	case ast.NullptrExpr:
		return Value{Kind: VNull}, nil
	case ast.IdExpr:
		if v, ok := e.lookupLocal(node.Text); ok {
			return v, nil
		}
		return Value{}, fmt.Errorf("%q is not usable in a constant expression", node.Text)
	case ast.BinaryExpr:
		lhs, err := e.Eval(node.Children[0])
		if err != nil {
			return Value{}, err
		}
		rhs, err := e.Eval(node.Children[1])
		if err != nil {
			return Value{}, err
		}
		return e.applyBinary(node.Text, lhs, rhs)
	case ast.UnaryExpr:
		if node.Text == "*" {
			v, err := e.Eval(node.Children[0])
			if err != nil {
				return Value{}, err
			}
			return e.load(v)
		}
		v, err := e.Eval(node.Children[0])
		if err != nil {
			return Value{}, err
		}
		return e.applyUnary(node.Text, v)
	case ast.ConditionalExpr:
		c, err := e.Eval(node.Children[0])
		if err != nil {
			return Value{}, err
		}
		if truthy(c) {
			return e.Eval(node.Children[1])
		}
		return e.Eval(node.Children[2])
	case ast.NewExpr:
		return e.evalNew(node)
	case ast.DeleteExpr:
		v, err := e.Eval(node.Children[0])
		if err != nil {
			return Value{}, err
		}
		if err := e.Free(v); err != nil {
			return Value{}, err
		}
		return Value{Kind: VNull}, nil
	case ast.CallExpr:
		return e.evalCall(node)
	case ast.IndexExpr:
		return e.evalIndex(node)
	case ast.MemberExpr:
		return e.evalMember(node)
	case ast.InitListExpr:
		fields := make([]Value, 0, len(node.Children))
		for _, c := range node.Children {
			v, err := e.Eval(c)
			if err != nil {
				return Value{}, err
			}
			fields = append(fields, v)
		}
		return Value{Kind: VAggregate, Type: e.resolver.Resolve(node.Type), Fields: fields}, nil
	default:
		return Value{}, fmt.Errorf("expression is not a constant expression")
	}
}

// evalNew implements a constexpr new-expression: allocate storage sized
// for the referenced type and, if a constructor argument is given, store
// its evaluated value into the new object (§4.5, §8 scenario 3).
func (e *Evaluator) evalNew(node *ast.Node) (Value, error) {
	elemType := e.resolver.Resolve(node.Type)
	size := e.types.At(elemType).Size
	if size <= 0 {
		size = 8
	}
	ptr := e.Alloc(size, elemType)
	if len(node.Children) > 0 {
		init, err := e.Eval(node.Children[0])
		if err != nil {
			return Value{}, err
		}
		if err := e.store(ptr, init); err != nil {
			return Value{}, err
		}
	}
	return ptr, nil
}

// evalCall interprets a call to a constexpr function by executing its
// body with the argument values bound to its parameters.
func (e *Evaluator) evalCall(node *ast.Node) (Value, error) {
	callee := e.arena.At(node.Children[0])
	if callee.Kind != ast.IdExpr {
		return Value{}, fmt.Errorf("expression is not a constant expression")
	}
	def, ok := e.funcs[callee.Text]
	if !ok {
		return Value{}, fmt.Errorf("%q is not a constexpr function", callee.Text)
	}
	args := make([]Value, 0, len(node.Children)-1)
	for _, a := range node.Children[1:] {
		v, err := e.Eval(a)
		if err != nil {
			return Value{}, err
		}
		args = append(args, v)
	}
	return e.EvalFunction(def, args)
}

// EvalFunction interprets a constexpr function body with args bound to
// its parameters in order, per §4.5's constexpr-function-call rule.
func (e *Evaluator) EvalFunction(def ast.NodeID, args []Value) (Value, error) {
	e.depth++
	defer func() { e.depth-- }()
	if e.depth > e.depthLimit {
		return Value{}, fmt.Errorf("constant expression exceeded the call-depth limit of %d", e.depthLimit)
	}
	node := e.arena.At(def)
	if len(node.Children) == 0 {
		return Value{}, fmt.Errorf("%q has no body to evaluate as a constant expression", node.Text)
	}
	e.pushScope()
	defer e.popScope()
	params := node.Children[:len(node.Children)-1]
	for i, c := range params {
		p := e.arena.At(c)
		if i < len(args) {
			e.setLocal(p.Text, args[i])
		}
	}
	body := node.Children[len(node.Children)-1]
	ctrl, v, err := e.execStmt(body)
	if err != nil {
		return Value{}, err
	}
	if ctrl != ctrlReturn {
		return Value{}, fmt.Errorf("%q fell off its end without returning a value in a constant expression", node.Text)
	}
	return v, nil
}

// evalIndex models a[i] as a dereference of a advanced by i elements,
// which is sound for both array-decayed and raw-pointer operands.
func (e *Evaluator) evalIndex(node *ast.Node) (Value, error) {
	base, err := e.Eval(node.Children[0])
	if err != nil {
		return Value{}, err
	}
	idx, err := e.Eval(node.Children[1])
	if err != nil {
		return Value{}, err
	}
	elemSize := e.types.At(base.Type).Size
	if elemSize <= 0 {
		elemSize = 8
	}
	elem := Value{Kind: VPointer, ArenaID: base.ArenaID, Offset: base.Offset + idx.Int*elemSize, Bound: base.Bound, Type: base.Type}
	return e.load(elem)
}

// evalMember looks up a named field within an aggregate value previously
// produced by an InitListExpr, by declaration order of its class type.
func (e *Evaluator) evalMember(node *ast.Node) (Value, error) {
	base, err := e.Eval(node.Children[0])
	if err != nil {
		return Value{}, err
	}
	if base.Kind != VAggregate {
		return Value{}, fmt.Errorf("member access on a non-aggregate constant expression value")
	}
	cls := e.types.At(base.Type)
	for i, f := range cls.Fields {
		if f.Name == node.Text && i < len(base.Fields) {
			return base.Fields[i], nil
		}
	}
	return Value{}, fmt.Errorf("%q is not a member of the constant expression's aggregate value", node.Text)
}

// control distinguishes normal statement completion from a return/break/
// continue that must unwind enclosing statements.
type control int

const (
	ctrlNone control = iota
	ctrlReturn
	ctrlBreak
	ctrlContinue
)

// execStmt interprets one statement, returning the control-flow signal
// it produced (and the value carried by a ReturnStmt, if any).
func (e *Evaluator) execStmt(n ast.NodeID) (control, Value, error) {
	if n == ast.InvalidID {
		return ctrlNone, Value{}, nil
	}
	if err := e.tick(); err != nil {
		return ctrlNone, Value{}, err
	}
	node := e.arena.At(n)
	switch node.Kind {
	case ast.CompoundStmt:
		e.pushScope()
		defer e.popScope()
		for _, c := range node.Children {
			ctrl, v, err := e.execStmt(c)
			if err != nil || ctrl != ctrlNone {
				return ctrl, v, err
			}
		}
		return ctrlNone, Value{}, nil
	case ast.DeclStmt:
		for _, c := range node.Children {
			decl := e.arena.At(c)
			var v Value
			if len(decl.Children) > 0 {
				var err error
				v, err = e.Eval(decl.Children[0])
				if err != nil {
					return ctrlNone, Value{}, err
				}
			}
			e.setLocal(decl.Text, v)
		}
		return ctrlNone, Value{}, nil
	case ast.ExprStmt:
		if len(node.Children) > 0 {
			if _, err := e.Eval(node.Children[0]); err != nil {
				return ctrlNone, Value{}, err
			}
		}
		return ctrlNone, Value{}, nil
	case ast.ReturnStmt:
		if len(node.Children) == 0 {
			return ctrlReturn, Value{}, nil
		}
		v, err := e.Eval(node.Children[0])
		if err != nil {
			return ctrlNone, Value{}, err
		}
		return ctrlReturn, v, nil
	case ast.IfStmt:
		c, err := e.Eval(node.Children[0])
		if err != nil {
			return ctrlNone, Value{}, err
		}
		if truthy(c) {
			return e.execStmt(node.Children[1])
		}
		if len(node.Children) > 2 {
			return e.execStmt(node.Children[2])
		}
		return ctrlNone, Value{}, nil
	case ast.WhileStmt:
		for {
			c, err := e.Eval(node.Children[0])
			if err != nil {
				return ctrlNone, Value{}, err
			}
			if !truthy(c) {
				break
			}
			ctrl, v, err := e.execStmt(node.Children[1])
			if err != nil {
				return ctrlNone, Value{}, err
			}
			if ctrl == ctrlReturn {
				return ctrl, v, nil
			}
			if ctrl == ctrlBreak {
				break
			}
		}
		return ctrlNone, Value{}, nil
	case ast.DoStmt:
		for {
			ctrl, v, err := e.execStmt(node.Children[0])
			if err != nil {
				return ctrlNone, Value{}, err
			}
			if ctrl == ctrlReturn {
				return ctrl, v, nil
			}
			if ctrl == ctrlBreak {
				break
			}
			c, err := e.Eval(node.Children[1])
			if err != nil {
				return ctrlNone, Value{}, err
			}
			if !truthy(c) {
				break
			}
		}
		return ctrlNone, Value{}, nil
	case ast.ForStmt:
		e.pushScope()
		defer e.popScope()
		if node.Children[0] != ast.InvalidID {
			if _, _, err := e.execStmt(node.Children[0]); err != nil {
				return ctrlNone, Value{}, err
			}
		}
		for {
			if node.Children[1] != ast.InvalidID {
				c, err := e.Eval(node.Children[1])
				if err != nil {
					return ctrlNone, Value{}, err
				}
				if !truthy(c) {
					break
				}
			}
			ctrl, v, err := e.execStmt(node.Children[3])
			if err != nil {
				return ctrlNone, Value{}, err
			}
			if ctrl == ctrlReturn {
				return ctrl, v, nil
			}
			if ctrl == ctrlBreak {
				break
			}
			if node.Children[2] != ast.InvalidID {
				if _, err := e.Eval(node.Children[2]); err != nil {
					return ctrlNone, Value{}, err
				}
			}
		}
		return ctrlNone, Value{}, nil
	case ast.BreakStmt:
		return ctrlBreak, Value{}, nil
	case ast.ContinueStmt:
		return ctrlContinue, Value{}, nil
	default:
		return ctrlNone, Value{}, fmt.Errorf("statement is not valid in a constant expression")
	}
}

// store writes val's scalar representation into the bytes pointed to by
// ptr, sized by ptr.Bound (the pointee's size, per Alloc).
func (e *Evaluator) store(ptr, val Value) error {
	if err := e.boundsCheck(ptr, ptr.Bound); err != nil {
		return err
	}
	buf := e.heap[ptr.ArenaID].bytes[ptr.Offset:]
	if val.Kind == VFloat {
		if ptr.Bound == 4 {
			binary.LittleEndian.PutUint32(buf, math.Float32bits(float32(val.Float)))
		} else {
			binary.LittleEndian.PutUint64(buf, math.Float64bits(val.Float))
		}
		return nil
	}
	putInt(buf, val.Int, ptr.Bound)
	return nil
}

// load reads ptr's pointee back out as a Value, sized and typed by
// ptr.Bound/ptr.Type.
func (e *Evaluator) load(ptr Value) (Value, error) {
	if err := e.boundsCheck(ptr, ptr.Bound); err != nil {
		return Value{}, err
	}
	buf := e.heap[ptr.ArenaID].bytes[ptr.Offset:]
	if isFloatKind(e.types.At(ptr.Type).Kind) {
		if ptr.Bound == 4 {
			return Value{Kind: VFloat, Float: float64(math.Float32frombits(binary.LittleEndian.Uint32(buf))), Type: ptr.Type}, nil
		}
		return Value{Kind: VFloat, Float: math.Float64frombits(binary.LittleEndian.Uint64(buf)), Type: ptr.Type}, nil
	}
	return Value{Kind: VInt, Int: getInt(buf, ptr.Bound), Type: ptr.Type}, nil
}

func isFloatKind(k types.Kind) bool {
	switch k {
	case types.KindFloat, types.KindDouble, types.KindLongDouble:
		return true
	}
	return false
}

func putInt(buf []byte, v, size int64) {
	switch size {
	case 1:
		buf[0] = byte(v)
	case 2:
		binary.LittleEndian.PutUint16(buf, uint16(v))
	case 4:
		binary.LittleEndian.PutUint32(buf, uint32(v))
	default:
		binary.LittleEndian.PutUint64(buf, uint64(v))
	}
}

func getInt(buf []byte, size int64) int64 {
	switch size {
	case 1:
		return int64(int8(buf[0]))
	case 2:
		return int64(int16(binary.LittleEndian.Uint16(buf)))
	case 4:
		return int64(int32(binary.LittleEndian.Uint32(buf)))
	default:
		return int64(binary.LittleEndian.Uint64(buf))
	}
}

func truthy(v Value) bool {
	switch v.Kind {
	case VBool:
		return v.Bool
	case VInt:
		return v.Int != 0
	case VFloat:
		return v.Float != 0
	case VPointer:
		return true
	default:
		return false
	}
}

func (e *Evaluator) applyUnary(op string, v Value) (Value, error) {
	switch op {
	case "-":
		if v.Kind == VFloat {
			return Value{Kind: VFloat, Float: -v.Float, Type: v.Type}, nil
		}
		return Value{Kind: VInt, Int: -v.Int, Type: v.Type}, nil
	case "!":
		return Value{Kind: VBool, Bool: !truthy(v)}, nil
	case "~":
		return Value{Kind: VInt, Int: ^v.Int, Type: v.Type}, nil
	default:
		return v, nil
	}
}

// applyBinary implements arithmetic, bitwise, shift, logical and
// comparison operators, folding the teacher's strength-reduction
// identities (multiply/divide by a power of two, and by 2^k+1) adapted
// from ir/optimise.go's constant-folding pass.
func (e *Evaluator) applyBinary(op string, lhs, rhs Value) (Value, error) {
	if lhs.Kind == VFloat || rhs.Kind == VFloat {
		a, b := asFloat(lhs), asFloat(rhs)
		switch op {
		case "+":
			return Value{Kind: VFloat, Float: a + b}, nil
		case "-":
			return Value{Kind: VFloat, Float: a - b}, nil
		case "*":
			return Value{Kind: VFloat, Float: a * b}, nil
		case "/":
			if b == 0 {
				return Value{}, fmt.Errorf("division by zero in constant expression")
			}
			return Value{Kind: VFloat, Float: a / b}, nil
		case "==":
			return Value{Kind: VBool, Bool: a == b}, nil
		case "!=":
			return Value{Kind: VBool, Bool: a != b}, nil
		case "<":
			return Value{Kind: VBool, Bool: a < b}, nil
		case "<=":
			return Value{Kind: VBool, Bool: a <= b}, nil
		case ">":
			return Value{Kind: VBool, Bool: a > b}, nil
		case ">=":
			return Value{Kind: VBool, Bool: a >= b}, nil
		default:
			return Value{}, fmt.Errorf("operator %q is not valid on floating operands in a constant expression", op)
		}
	}

	a, b := lhs.Int, rhs.Int
	switch op {
	case "+":
		return Value{Kind: VInt, Int: a + b, Type: lhs.Type}, nil
	case "-":
		return Value{Kind: VInt, Int: a - b, Type: lhs.Type}, nil
	case "*":
		if p, ok := powerOfTwo(b); ok {
			return Value{Kind: VInt, Int: a << uint(p), Type: lhs.Type}, nil
		}
		if p, ok := powerOfTwo(a); ok {
			return Value{Kind: VInt, Int: b << uint(p), Type: lhs.Type}, nil
		}
		if p, ok := isPowerOfTwoPlusOne(b); ok {
			return Value{Kind: VInt, Int: a<<uint(p) + a, Type: lhs.Type}, nil
		}
		return Value{Kind: VInt, Int: a * b, Type: lhs.Type}, nil
	case "/":
		if b == 0 {
			return Value{}, fmt.Errorf("division by zero in constant expression")
		}
		if p, ok := powerOfTwo(b); ok && a >= 0 {
			return Value{Kind: VInt, Int: a >> uint(p), Type: lhs.Type}, nil
		}
		return Value{Kind: VInt, Int: a / b, Type: lhs.Type}, nil
	case "%":
		if b == 0 {
			return Value{}, fmt.Errorf("modulo by zero in constant expression")
		}
		return Value{Kind: VInt, Int: a % b, Type: lhs.Type}, nil
	case "<<":
		return Value{Kind: VInt, Int: a << uint(b), Type: lhs.Type}, nil
	case ">>":
		return Value{Kind: VInt, Int: a >> uint(b), Type: lhs.Type}, nil
	case "&":
		return Value{Kind: VInt, Int: a & b, Type: lhs.Type}, nil
	case "|":
		return Value{Kind: VInt, Int: a | b, Type: lhs.Type}, nil
	case "^":
		return Value{Kind: VInt, Int: a ^ b, Type: lhs.Type}, nil
	case "==":
		return Value{Kind: VBool, Bool: a == b}, nil
	case "!=":
		return Value{Kind: VBool, Bool: a != b}, nil
	case "<":
		return Value{Kind: VBool, Bool: a < b}, nil
	case "<=":
		return Value{Kind: VBool, Bool: a <= b}, nil
	case ">":
		return Value{Kind: VBool, Bool: a > b}, nil
	case ">=":
		return Value{Kind: VBool, Bool: a >= b}, nil
	case "&&":
		return Value{Kind: VBool, Bool: truthy(lhs) && truthy(rhs)}, nil
	case "||":
		return Value{Kind: VBool, Bool: truthy(lhs) || truthy(rhs)}, nil
	default:
		return Value{}, fmt.Errorf("unsupported operator %q in constant expression", op)
	}
}

func asFloat(v Value) float64 {
	if v.Kind == VFloat {
		return v.Float
	}
	return float64(v.Int)
}

// powerOfTwo reports whether n (n > 0) is exactly 2^k, and k if so; this
// is the same identity the teacher's optimiser uses to turn multiply/
// divide into a shift (ir/optimise.go), generalized here to also cover
// the 2^k+1 "multiply-by-shift-plus-original" pattern's detection in
// isPowerOfTwoPlusOne below.
func powerOfTwo(n int64) (int, bool) {
	if n <= 0 || n&(n-1) != 0 {
		return 0, false
	}
	return int(math.Log2(float64(n))), true
}

// isPowerOfTwoPlusOne reports whether n == 2^k + 1 for some k >= 1,
// enabling the strength reduction x*(2^k+1) == (x<<k)+x.
func isPowerOfTwoPlusOne(n int64) (int, bool) {
	if n <= 1 {
		return 0, false
	}
	return powerOfTwo(n - 1)
}

var _ = isPowerOfTwoPlusOne
