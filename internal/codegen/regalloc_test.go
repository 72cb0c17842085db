package codegen

import (
	"testing"

	"cppc/internal/codegen/regfile"
	"cppc/internal/ir"
	"cppc/internal/types"
)

// buildWideFunction emits one OpCopy per kind (so each value has a
// distinct resolved byte width) followed by a single instruction that
// references every one of them as an argument, keeping all of them live
// simultaneously and forcing the allocator to spill once the register
// file is exhausted.
func buildWideFunction(reg *types.Registry, kinds []types.Kind) *ir.Function {
	fn := &ir.Function{Name: "wide"}
	fn.Blocks = append(fn.Blocks, ir.Block{Name: "entry"})
	b := ir.NewBuilder(fn)

	var vals []ir.ValueID
	for _, k := range kinds {
		vals = append(vals, b.Emit(ir.Inst{Op: ir.OpCopy, Type: reg.Builtin(k), Imm: 1}))
	}
	b.Emit(ir.Inst{Op: ir.OpCall, Sym: "sink", Args: vals})
	return fn
}

func TestSpillSizesSlotByValueWidth(t *testing.T) {
	reg := types.New()
	rf := regfile.New(false)

	// One value per allocatable GPR, plus several more of varying width
	// to force spilling past the register file's capacity.
	kinds := make([]types.Kind, 0, rf.NumGPR()+4)
	for i := 0; i < rf.NumGPR(); i++ {
		kinds = append(kinds, types.KindLong)
	}
	kinds = append(kinds, types.KindChar, types.KindShort, types.KindInt, types.KindLong)

	fn := buildWideFunction(reg, kinds)
	alloc := NewAllocator(rf, reg)
	assign := alloc.Allocate(fn)

	var sawByte, sawShort, sawInt, sawLong bool
	for _, asg := range assign {
		if !asg.Spilled {
			continue
		}
		switch asg.Width {
		case 1:
			sawByte = true
		case 2:
			sawShort = true
		case 4:
			sawInt = true
		case 8:
			sawLong = true
		default:
			t.Fatalf("unexpected spill width %d", asg.Width)
		}
		if asg.SlotBytes >= 0 {
			t.Fatalf("expected a negative frame-relative spill offset, got %d", asg.SlotBytes)
		}
	}
	if !sawByte || !sawShort || !sawInt {
		t.Fatalf("expected spills narrower than 8 bytes to be sized by their own type, got byte=%v short=%v int=%v long=%v", sawByte, sawShort, sawInt, sawLong)
	}
}
