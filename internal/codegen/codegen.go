// Package codegen lowers internal/ir functions to x86-64 machine code
// bytes plus the relocation/debug-line metadata internal/objfile needs,
// fanning work out across goroutines the way the teacher's
// hhramberg-go-vslc/src/backend/lir package parallelizes per-function
// codegen over opt.Threads worker goroutines feeding a shared perror
// collector.
package codegen

import (
	"fmt"
	"sync"

	"cppc/internal/codegen/regfile"
	"cppc/internal/driver"
	"cppc/internal/ir"
	"cppc/internal/perr"
	"cppc/internal/types"
)

// Relocation records one position in Code that the object writer must
// patch with a symbol's final address (§4.9.4).
type Relocation struct {
	Offset int
	Symbol string
	Kind   RelocKind
}

// RelocKind distinguishes PC-relative call/jump fixups from absolute
// data references; internal/objfile maps these onto the target format's
// own relocation type enum (R_X86_64_PLT32 / IMAGE_REL_AMD64_REL32, etc).
type RelocKind int

const (
	RelocPCRel32 RelocKind = iota
	RelocAbs64
)

// LineEntry maps one code offset back to a source location, feeding the
// DWARF/CodeView line table (§4.9.4).
type LineEntry struct {
	Offset int
	File   string
	Line   int
	Col    int
}

// Result is one function's finished machine code plus its metadata.
type Result struct {
	Name  string
	Code  []byte
	Relocs []Relocation
	Lines  []LineEntry
	Err    error
}

// CompileAll lowers every function in fns to machine code, using up to
// opt.Threads worker goroutines (mirroring the teacher's thread-count-
// driven fan-out) and a perr.Collector for aggregate error reporting. If
// progress is non-nil it is called once per finished function, from
// whichever worker goroutine finished it; callers driving a live display
// (internal/progress) must make progress safe for concurrent use.
func CompileAll(opt driver.Options, reg *types.Registry, fns []*ir.Function, progress func(name string)) ([]Result, error) {
	results := make([]Result, len(fns))
	threads := opt.Threads
	if threads < 1 {
		threads = 1
	}
	if threads > len(fns) {
		threads = len(fns)
	}
	if threads == 0 {
		return results, nil
	}

	collector := perr.New(threads)
	var wg sync.WaitGroup
	wg.Add(threads)

	chunk := (len(fns) + threads - 1) / threads
	for t := 0; t < threads; t++ {
		start := t * chunk
		end := start + chunk
		if end > len(fns) {
			end = len(fns)
		}
		go func(start, end int) {
			defer wg.Done()
			for i := start; i < end; i++ {
				if i < 0 || i >= len(fns) {
					continue
				}
				r := CompileFunction(opt, reg, fns[i])
				results[i] = r
				if r.Err != nil {
					collector.Append(r.Err)
				}
				if progress != nil {
					progress(r.Name)
				}
			}
		}(start, end)
	}
	wg.Wait()
	collector.Stop()

	if collector.Len() > 0 {
		return results, fmt.Errorf("code generation failed for %d function(s)", collector.Len())
	}
	return results, nil
}

// CompileFunction lowers one function's IR to machine code.
func CompileFunction(opt driver.Options, reg *types.Registry, fn *ir.Function) Result {
	win64 := opt.Target.ABI == driver.Win64
	rf := regfile.New(win64)
	alloc := NewAllocator(rf, reg)
	assign := alloc.Allocate(fn)

	e := NewEmitter()
	var relocs []Relocation
	var lines []LineEntry

	// Prologue: push rbp; mov rbp, rsp; sub rsp, frame.
	e.PushReg(rf.FP())
	e.MovRegReg(rf.FP(), rf.SP())
	layout := ComputeFrameLayout(opt.Target.ABI, alloc.nextSlot)
	if layout.LocalsSize > 0 {
		// sub rsp, imm32 (REX.W 81 /5 id), emitted directly rather than
		// through a MovRegImm64+SubRegReg sequence; the short 83 /5 ib form
		// is not used, even when the frame size fits in 8 bits.
		e.Code = append(e.Code, 0x48, 0x81, 0xEC)
		e.u32(uint32(layout.LocalsSize))
	}

	for bi, blk := range fn.Blocks {
		e.MarkLabel(bi)
		for _, inst := range blk.Insts {
			lines = append(lines, LineEntry{Offset: len(e.Code), File: inst.Loc.File, Line: inst.Loc.Line, Col: inst.Loc.Col})
			switch inst.Op {
			case ir.OpAdd:
				if d, s, ok := regPairFor(assign, inst); ok {
					e.AddRegReg(d, s)
				}
			case ir.OpSub:
				if d, s, ok := regPairFor(assign, inst); ok {
					e.SubRegReg(d, s)
				}
			case ir.OpMul:
				if d, s, ok := regPairFor(assign, inst); ok {
					e.ImulRegReg(d, s)
				}
			case ir.OpXor:
				if d, s, ok := regPairFor(assign, inst); ok {
					e.XorRegReg(d, s)
				}
			case ir.OpCmpEq, ir.OpCmpNe, ir.OpCmpLt, ir.OpCmpLe, ir.OpCmpGt, ir.OpCmpGe:
				if d, s, ok := regPairFor(assign, inst); ok {
					e.CmpRegReg(d, s)
				}
			case ir.OpCopy:
				if asg, ok := assign[inst.Result]; ok && !asg.Spilled {
					e.MovRegImm64(asg.Reg, inst.Imm)
				}
			case ir.OpJmp:
				if len(inst.Targets) == 1 {
					e.Jmp(inst.Targets[0])
				}
			case ir.OpBr:
				if len(inst.Targets) == 2 {
					e.Jcc(0x85, inst.Targets[0]) // jnz then; falls through to else via a following Jmp.
					e.Jmp(inst.Targets[1])
				}
			case ir.OpCall:
				patchAt := e.CallRel32()
				relocs = append(relocs, Relocation{Offset: patchAt, Symbol: inst.Sym, Kind: RelocPCRel32})
			case ir.OpRet:
				if layout.LocalsSize > 0 {
					e.MovRegReg(rf.SP(), rf.FP())
				}
				e.PopReg(rf.FP())
				e.Ret()
			default:
				e.Nop()
			}
		}
	}

	return Result{Name: fn.Name, Code: e.Code, Relocs: relocs, Lines: lines}
}

func regPairFor(assign map[ir.ValueID]Assignment, inst ir.Inst) (regfile.Register, regfile.Register, bool) {
	if len(inst.Args) < 2 {
		return nil, nil, false
	}
	d, ok1 := assign[inst.Args[0]]
	s, ok2 := assign[inst.Args[1]]
	if !ok1 || !ok2 || d.Spilled || s.Spilled {
		return nil, nil, false
	}
	return d.Reg, s.Reg, true
}
