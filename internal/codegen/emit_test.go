package codegen

import (
	"testing"

	"cppc/internal/codegen/regfile"
)

func TestPushRegExtendedGPRGetsRexB(t *testing.T) {
	rf := regfile.New(false)
	e := NewEmitter()
	e.PushReg(rf.GetGPR(12)) // r12 is extended.
	if len(e.Code) != 2 || e.Code[0] != 0x41 {
		t.Fatalf("expected a REX.B prefix before the push opcode, got % x", e.Code)
	}
}

func TestPushRegLowGPRNoRex(t *testing.T) {
	e := NewEmitter()
	rf := regfile.New(false)
	e.PushReg(rf.GetGPR(0)) // rax.
	if len(e.Code) != 1 || e.Code[0] != 0x50 {
		t.Fatalf("expected a bare push opcode with no REX, got % x", e.Code)
	}
}

func TestMarkLabelPatchesForwardJump(t *testing.T) {
	e := NewEmitter()
	e.Jmp(1) // forward reference to a block not yet emitted.
	patchAt := 1
	e.byte(0x90)
	e.MarkLabel(1)
	rel := int32(e.Code[patchAt]) | int32(e.Code[patchAt+1])<<8 | int32(e.Code[patchAt+2])<<16 | int32(e.Code[patchAt+3])<<24
	want := int32(len(e.Code) - (patchAt + 4))
	if rel != want {
		t.Fatalf("got rel32 %d, want %d", rel, want)
	}
}

func TestCallRel32ReturnsPatchOffset(t *testing.T) {
	e := NewEmitter()
	patchAt := e.CallRel32()
	if e.Code[patchAt-1] != 0xE8 {
		t.Fatalf("expected opcode 0xE8 before the patch site")
	}
	if len(e.Code) != patchAt+4 {
		t.Fatalf("expected a 4-byte rel32 placeholder after the opcode")
	}
}
