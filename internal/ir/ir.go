// Package ir defines the flat, typed-payload intermediate representation
// that internal/irgen produces from the AST and internal/codegen consumes.
// It generalizes the teacher's two-level IR/LIR split
// (hhramberg-go-vslc/src/ir and src/backend/lir) into a single SSA-ish
// per-function instruction list: each Value carries its own result id and
// source Location, which both the register allocator and the DWARF/CodeView
// line-table builder walk directly, rather than rebuilding a separate
// line-number side table the way the teacher's assembly-text backend does.
package ir

import "cppc/internal/types"

// Op identifies an instruction's operation.
type Op int

const (
	OpNop Op = iota
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpShl
	OpShr
	OpAnd
	OpOr
	OpXor
	OpNeg
	OpNot
	OpCmpEq
	OpCmpNe
	OpCmpLt
	OpCmpLe
	OpCmpGt
	OpCmpGe
	OpJmp
	OpBr
	OpCall
	OpRet
	OpLoad
	OpStore
	OpLea
	OpAlloca
	OpPhi
	OpCastSExt
	OpCastZExt
	OpCastTrunc
	OpCastFloatToInt
	OpCastIntToFloat
	OpCastFloatExt
	OpCastFloatTrunc
	OpCastBitcast
	OpCopy
	OpPushFrame
	OpPopFrame
	OpGetFieldAddr
	OpGetElemAddr
	OpVTableLoad
	OpLabel
)

// ValueID names the SSA result of an instruction, or a block parameter.
type ValueID int32

// Location is the source position an instruction is attributed to, used
// by the DWARF/CodeView line-table builder.
type Location struct {
	File string
	Line int
	Col  int
}

// Inst is one IR instruction.
type Inst struct {
	Op       Op
	Result   ValueID
	Type     types.TypeID
	Args     []ValueID
	Imm      int64
	FImm     float64
	Sym      string // Call target / global symbol name / label name.
	Targets  []int  // Block indices for Jmp/Br (Br: [then, else]).
	Loc      Location
}

// Block is a straight-line run of instructions ending in a terminator
// (Jmp, Br, Ret) except possibly the function's final block.
type Block struct {
	Name  string
	Insts []Inst
}

// Param is one formal parameter, already assigned its entry SSA value id.
type Param struct {
	Name  string
	Type  types.TypeID
	Value ValueID
}

// Function is one lowered function body in IR form.
type Function struct {
	Name       string
	Mangled    string
	Params     []Param
	ReturnType types.TypeID
	Blocks     []Block
	NumValues  int32
	Linkage    types.Linkage
}

// Builder accumulates instructions into the current block of a Function
// under construction, mirroring the teacher's incremental LIR emission
// in backend/lir (one emit call per generated instruction rather than a
// batch pass).
type Builder struct {
	Fn        *Function
	cur       int
	nextValue ValueID
	loc       Location
}

// NewBuilder starts building fn, which must already have its entry block
// appended.
func NewBuilder(fn *Function) *Builder {
	return &Builder{Fn: fn, cur: len(fn.Blocks) - 1}
}

// SetLoc sets the source location attributed to subsequently emitted
// instructions.
func (b *Builder) SetLoc(loc Location) { b.loc = loc }

// NewBlock appends a fresh block and returns its index.
func (b *Builder) NewBlock(name string) int {
	b.Fn.Blocks = append(b.Fn.Blocks, Block{Name: name})
	return len(b.Fn.Blocks) - 1
}

// SetBlock redirects subsequent emission to block index idx.
func (b *Builder) SetBlock(idx int) { b.cur = idx }

// CurrentBlock returns the index of the block currently being emitted into.
func (b *Builder) CurrentBlock() int { return b.cur }

// NewValue allocates a fresh SSA value id.
func (b *Builder) NewValue() ValueID {
	b.nextValue++
	b.Fn.NumValues = int32(b.nextValue)
	return b.nextValue
}

// Emit appends inst (stamped with the builder's current location if unset)
// to the current block and returns its result value id.
func (b *Builder) Emit(inst Inst) ValueID {
	if inst.Loc == (Location{}) {
		inst.Loc = b.loc
	}
	if inst.Result == 0 && needsResult(inst.Op) {
		inst.Result = b.NewValue()
	}
	b.Fn.Blocks[b.cur].Insts = append(b.Fn.Blocks[b.cur].Insts, inst)
	return inst.Result
}

func needsResult(op Op) bool {
	switch op {
	case OpJmp, OpBr, OpRet, OpStore, OpLabel, OpPushFrame, OpPopFrame:
		return false
	}
	return true
}

// Terminated reports whether the current block already ends in a
// terminator instruction.
func (b *Builder) Terminated() bool {
	insts := b.Fn.Blocks[b.cur].Insts
	if len(insts) == 0 {
		return false
	}
	switch insts[len(insts)-1].Op {
	case OpJmp, OpBr, OpRet:
		return true
	}
	return false
}
