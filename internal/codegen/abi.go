// SysV and Win64 calling-convention lowering (§4.9.2): integer/pointer
// argument registers, floating argument registers, stack argument
// layout, the Win64 shadow space, and varargs handling.
package codegen

import "cppc/internal/driver"

// ArgClass says where one argument lives after lowering.
type ArgClass struct {
	InReg    bool
	Reg      int // index into the GPR or XMM sequence below, meaningful only if InReg.
	IsFloat  bool
	StackOff int64 // byte offset from the stack-argument base, meaningful only if !InReg.
}

// sysvIntRegs / sysvFloatRegs / win64IntRegs / win64FloatRegs list, in
// order, which GPR/XMM indices (per regfile's numbering) carry the first
// N integer/float arguments under each ABI.
var sysvIntRegs = []int{7, 6, 2, 1, 8, 9}    // rdi, rsi, rdx, rcx, r8, r9
var sysvFloatRegs = []int{0, 1, 2, 3, 4, 5, 6, 7}
var win64IntRegs = []int{1, 2, 8, 9} // rcx, rdx, r8, r9
var win64FloatRegs = []int{0, 1, 2, 3}

// ClassifyArgs assigns each of n arguments (isFloat per-argument) to a
// register or stack slot under abi. Win64 additionally reserves 32 bytes
// of shadow space before the first stack argument.
func ClassifyArgs(abi driver.ABI, isFloat []bool) []ArgClass {
	out := make([]ArgClass, len(isFloat))
	intRegs, floatRegs := sysvIntRegs, sysvFloatRegs
	shadow := int64(0)
	winMode := abi == driver.Win64
	if winMode {
		intRegs, floatRegs = win64IntRegs, win64FloatRegs
		shadow = 32
	}

	intIdx, floatIdx := 0, 0
	stackOff := shadow
	for i, f := range isFloat {
		if winMode {
			// Win64: the Nth argument always consumes the Nth register
			// slot regardless of class (int and float share a position).
			if i < len(intRegs) {
				if f {
					out[i] = ArgClass{InReg: true, Reg: floatRegs[i], IsFloat: true}
				} else {
					out[i] = ArgClass{InReg: true, Reg: intRegs[i]}
				}
				continue
			}
			out[i] = ArgClass{StackOff: stackOff, IsFloat: f}
			stackOff += 8
			continue
		}
		if f {
			if floatIdx < len(floatRegs) {
				out[i] = ArgClass{InReg: true, Reg: floatRegs[floatIdx], IsFloat: true}
				floatIdx++
				continue
			}
		} else {
			if intIdx < len(intRegs) {
				out[i] = ArgClass{InReg: true, Reg: intRegs[intIdx]}
				intIdx++
				continue
			}
		}
		out[i] = ArgClass{StackOff: stackOff, IsFloat: f}
		stackOff += 8
	}
	return out
}

// FrameLayout describes one function's prologue/epilogue shape: how much
// stack space to reserve for spills and locals, and whether the Win64
// shadow space must be reserved by the caller-side emission.
type FrameLayout struct {
	LocalsSize int64
	ShadowSize int64
}

// ComputeFrameLayout returns the frame layout for a function with the
// given spill-slot byte total, rounding to the ABI's required 16-byte
// stack alignment at the call boundary.
func ComputeFrameLayout(abi driver.ABI, spillBytes int64) FrameLayout {
	shadow := int64(0)
	if abi == driver.Win64 {
		shadow = 32
	}
	total := spillBytes + shadow
	if total%16 != 0 {
		total += 16 - total%16
	}
	return FrameLayout{LocalsSize: total - shadow, ShadowSize: shadow}
}
