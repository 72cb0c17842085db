package codegen

import (
	"testing"

	"cppc/internal/driver"
)

func TestClassifyArgsSysVSeparatesIntAndFloatCounters(t *testing.T) {
	classes := ClassifyArgs(driver.SysV, []bool{false, true, false, true})
	if !classes[0].InReg || classes[0].Reg != 7 {
		t.Fatalf("first int arg should land in rdi (7), got %+v", classes[0])
	}
	if !classes[1].InReg || classes[1].Reg != 0 {
		t.Fatalf("first float arg should land in xmm0, got %+v", classes[1])
	}
	if !classes[2].InReg || classes[2].Reg != 6 {
		t.Fatalf("second int arg should land in rsi (6), got %+v", classes[2])
	}
	if !classes[3].InReg || classes[3].Reg != 1 {
		t.Fatalf("second float arg should land in xmm1, got %+v", classes[3])
	}
}

func TestClassifyArgsWin64SharesRegisterSlotNumbering(t *testing.T) {
	classes := ClassifyArgs(driver.Win64, []bool{false, true})
	if !classes[0].InReg || classes[0].Reg != 1 {
		t.Fatalf("first int arg should land in rcx (1), got %+v", classes[0])
	}
	if !classes[1].InReg || classes[1].Reg != 1 {
		t.Fatalf("second arg being float should still consume slot 1 (xmm1), got %+v", classes[1])
	}
}

func TestClassifyArgsSysVOverflowsToStack(t *testing.T) {
	isFloat := make([]bool, 8)
	classes := ClassifyArgs(driver.SysV, isFloat)
	for i := 0; i < 6; i++ {
		if !classes[i].InReg {
			t.Fatalf("arg %d should still be in a register, got %+v", i, classes[i])
		}
	}
	if classes[6].InReg || classes[6].StackOff != 0 {
		t.Fatalf("7th int arg should spill to the stack at offset 0, got %+v", classes[6])
	}
	if classes[7].StackOff != 8 {
		t.Fatalf("8th int arg should spill at offset 8, got %+v", classes[7])
	}
}

func TestComputeFrameLayoutAlignsTo16Bytes(t *testing.T) {
	layout := ComputeFrameLayout(driver.SysV, 3)
	if (layout.LocalsSize+layout.ShadowSize)%16 != 0 {
		t.Fatalf("frame size must be 16-byte aligned, got %d", layout.LocalsSize+layout.ShadowSize)
	}
}

func TestComputeFrameLayoutWin64ReservesShadowSpace(t *testing.T) {
	layout := ComputeFrameLayout(driver.Win64, 0)
	if layout.ShadowSize != 32 {
		t.Fatalf("expected a 32-byte Win64 shadow space, got %d", layout.ShadowSize)
	}
}
