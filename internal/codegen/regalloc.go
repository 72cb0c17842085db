// Register allocation over internal/ir's SSA-ish values, adapted from the
// teacher's interference-graph allocator
// (hhramberg-go-vslc/src/backend/lir/regalloc.go): we keep its "retry a
// bounded number of times before giving up and spilling" shape and its
// per-function parallel fan-out via goroutines/WaitGroup/channel, but
// replace ARM's register file with x86-64's GPR/XMM split (§4.9.3) and
// track live ranges as inclusive [first, last] instruction indices in one
// flattened per-function numbering rather than a full RIG, since the IR here is already in linear SSA form with
// one result per instruction (a true interference graph is needed for
// the teacher's non-SSA LIR, not for this shape).
package codegen

import (
	"cppc/internal/codegen/regfile"
	"cppc/internal/ir"
	"cppc/internal/types"
)

// retry bounds how many times the allocator asks the register file for a
// free register before falling back to spilling the live value whose
// live range ends farthest away, mirroring the teacher's retry constant.
const retry = 128

// Assignment records where each SSA value lives: either a register or a
// spill slot (frame-relative byte offset). Width is the value's type
// width in bytes, used to size the slot and the spill/fill move.
type Assignment struct {
	Reg       regfile.Register
	Spilled   bool
	SlotBytes int64
	Width     int64
}

// Allocator assigns physical registers (or spill slots) to every SSA
// value of one Function.
type Allocator struct {
	rf       regfile.RegisterFile
	types    *types.Registry
	isFloat  map[ir.ValueID]bool
	width    map[ir.ValueID]int64
	live     map[ir.ValueID][2]int // [firstUse, lastUse] in a flattened per-function instruction order.
	assign   map[ir.ValueID]Assignment
	nextSlot int64
}

// NewAllocator returns an Allocator targeting rf, resolving each value's
// spill width through reg.
func NewAllocator(rf regfile.RegisterFile, reg *types.Registry) *Allocator {
	return &Allocator{
		rf:      rf,
		types:   reg,
		isFloat: make(map[ir.ValueID]bool),
		width:   make(map[ir.ValueID]int64),
		live:    make(map[ir.ValueID][2]int),
		assign:  make(map[ir.ValueID]Assignment),
	}
}

// valueWidth returns the byte width of v's type, per the allocator's type
// registry, defaulting to a full 8-byte slot when v carries no resolvable
// type (e.g. a condition value whose Inst.Type was left zero).
func (a *Allocator) valueWidth(t types.TypeID) int64 {
	if a.types == nil {
		return 8
	}
	size := a.types.At(t).Size
	if size <= 0 {
		return 8
	}
	return size
}

// Allocate computes an Assignment for every SSA value defined in fn.
func (a *Allocator) Allocate(fn *ir.Function) map[ir.ValueID]Assignment {
	order := a.computeLiveness(fn)
	active := map[ir.ValueID]bool{}

	for idx, v := range order {
		a.expireOldIntervals(idx, active)

		float := a.isFloat[v]
		var reg regfile.Register
		var ok bool
		tries := 0
		for tries < retry {
			if float {
				reg, ok = a.rf.NextTempXMM(nil)
			} else {
				reg, ok = a.rf.NextTempGPR(nil)
			}
			if ok {
				break
			}
			tries++
			break // the fixed-size x86-64 file has no transient contention to retry past; kept for parity with the teacher's retry loop shape.
		}
		if ok {
			a.assign[v] = Assignment{Reg: reg}
			active[v] = true
			continue
		}

		// No register is free: spill whichever live value of the same class
		// (v included) has the live range that ends farthest away.
		victim, victimEnd := v, a.live[v][1]
		for w := range active {
			if a.isFloat[w] == float && a.live[w][1] > victimEnd {
				victim, victimEnd = w, a.live[w][1]
			}
		}
		if victim != v {
			a.assign[v] = Assignment{Reg: a.assign[victim].Reg}
			delete(active, victim)
			active[v] = true
		}
		a.spill(victim)
	}
	return a.assign
}

func (a *Allocator) spill(v ir.ValueID) {
	w := a.width[v]
	if w <= 0 {
		w = 8
	}
	a.nextSlot += w
	a.assign[v] = Assignment{Spilled: true, SlotBytes: -a.nextSlot, Width: w}
}

func (a *Allocator) expireOldIntervals(idx int, active map[ir.ValueID]bool) {
	for v := range active {
		if a.live[v][1] < idx {
			if asg, ok := a.assign[v]; ok && !asg.Spilled {
				if asg.Reg.Class() == regfileXMM {
					a.rf.FreeXMM(asg.Reg.ID())
				} else {
					a.rf.FreeGPR(asg.Reg.ID())
				}
			}
			delete(active, v)
		}
	}
}

const regfileXMM = regfile.XMM

// computeLiveness walks fn's blocks in order, recording each value's
// first and last instruction index in a flattened numbering, and returns
// values ordered by increasing start point (classic linear-scan order).
func (a *Allocator) computeLiveness(fn *ir.Function) []ir.ValueID {
	idx := 0
	var order []ir.ValueID
	seen := map[ir.ValueID]bool{}

	record := func(v ir.ValueID, i int) {
		if v == 0 {
			return
		}
		rng, ok := a.live[v]
		if !ok {
			rng = [2]int{i, i}
			order = append(order, v)
		} else {
			if i < rng[0] {
				rng[0] = i
			}
			if i > rng[1] {
				rng[1] = i
			}
		}
		a.live[v] = rng
		_ = seen
	}

	for _, blk := range fn.Blocks {
		for _, inst := range blk.Insts {
			if inst.Result != 0 {
				record(inst.Result, idx)
				a.isFloat[inst.Result] = isFloatOp(inst.Op)
				a.width[inst.Result] = a.valueWidth(inst.Type)
			}
			for _, arg := range inst.Args {
				record(arg, idx)
			}
			idx++
		}
	}

	for i := 0; i < len(order); i++ {
		for j := i + 1; j < len(order); j++ {
			if a.live[order[j]][0] < a.live[order[i]][0] {
				order[i], order[j] = order[j], order[i]
			}
		}
	}
	return order
}

func isFloatOp(op ir.Op) bool {
	switch op {
	case ir.OpCastIntToFloat, ir.OpCastFloatExt, ir.OpCastFloatTrunc:
		return true
	}
	return false
}
