// x86-64 machine code emission: no external assembler, REX-prefix
// computation and opcode selection done directly, grounded on
// original_source's IRConverter_Emit_CallReturn.h (emitPush/emitPop/
// emitCallReg) which this package's pushReg/popReg/callReg mirror.
package codegen

import "cppc/internal/codegen/regfile"

// Emitter accumulates raw instruction bytes for one function body plus
// the forward-jump fixup list a single linear pass needs (§4.9.1).
type Emitter struct {
	Code    []byte
	fixups  []fixup
	labels  map[int]int // block index -> byte offset, once resolved.
}

type fixup struct {
	patchAt int // offset of the 4-byte rel32 operand to patch.
	target  int // target block index.
}

// NewEmitter returns an empty Emitter.
func NewEmitter() *Emitter {
	return &Emitter{labels: make(map[int]int)}
}

func (e *Emitter) byte(b byte) { e.Code = append(e.Code, b) }

func (e *Emitter) u32(v uint32) {
	e.Code = append(e.Code, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

func (e *Emitter) i64(v int64) {
	for i := 0; i < 8; i++ {
		e.Code = append(e.Code, byte(v>>(8*i)))
	}
}

// rex computes a REX prefix branchlessly from the three bits that can
// require register-extension encoding, matching the bit layout
// 0100WRXB; w selects 64-bit operand size.
func rex(w, r, x, b bool) byte {
	return 0x40 | boolBit(w)<<3 | boolBit(r)<<2 | boolBit(x)<<1 | boolBit(b)
}

func boolBit(b bool) byte {
	if b {
		return 1
	}
	return 0
}

func isExtended(id int) bool { return id >= 8 }

// modrmReg encodes a ModR/M byte for mod=11 (register-direct) addressing.
func modrmReg(dstLow, srcLow int) byte {
	return 0xC0 | byte(srcLow&7)<<3 | byte(dstLow&7)
}

// MarkLabel records the current code offset as the entry point of block
// idx, and patches every prior forward-reference fixup that targets it.
func (e *Emitter) MarkLabel(idx int) {
	off := len(e.Code)
	e.labels[idx] = off
	for _, fx := range e.fixups {
		if fx.target == idx {
			rel := int32(off - (fx.patchAt + 4))
			e.Code[fx.patchAt] = byte(rel)
			e.Code[fx.patchAt+1] = byte(rel >> 8)
			e.Code[fx.patchAt+2] = byte(rel >> 16)
			e.Code[fx.patchAt+3] = byte(rel >> 24)
		}
	}
}

// Jmp emits a near unconditional jump to block target, recording a fixup
// if target has not been marked yet (a backward branch resolves
// immediately; a forward branch is patched when MarkLabel reaches it).
func (e *Emitter) Jmp(target int) {
	e.byte(0xE9)
	patchAt := len(e.Code)
	if off, ok := e.labels[target]; ok {
		rel := int32(off - (patchAt + 4))
		e.u32(uint32(rel))
		return
	}
	e.u32(0)
	e.fixups = append(e.fixups, fixup{patchAt: patchAt, target: target})
}

// Jcc emits a near conditional jump using the given condition code
// nibble (e.g. 0x84 for JE/JZ, 0x85 for JNE/JNZ), two-byte opcode form
// (0x0F 0x8x) so every branch reaches the whole function body.
func (e *Emitter) Jcc(cc byte, target int) {
	e.byte(0x0F)
	e.byte(cc)
	patchAt := len(e.Code)
	if off, ok := e.labels[target]; ok {
		rel := int32(off - (patchAt + 4))
		e.u32(uint32(rel))
		return
	}
	e.u32(0)
	e.fixups = append(e.fixups, fixup{patchAt: patchAt, target: target})
}

// MovRegReg emits "mov dst, src" for two 64-bit GPRs.
func (e *Emitter) MovRegReg(dst, src regfile.Register) {
	e.byte(rex(true, isExtended(src.ID()), false, isExtended(dst.ID())))
	e.byte(0x89)
	e.byte(modrmReg(dst.ID(), src.ID()))
}

// MovRegImm64 emits "movabs dst, imm64".
func (e *Emitter) MovRegImm64(dst regfile.Register, imm int64) {
	e.byte(rex(true, false, false, isExtended(dst.ID())))
	e.byte(0xB8 | byte(dst.ID()&7))
	e.i64(imm)
}

// AddRegReg emits "add dst, src".
func (e *Emitter) AddRegReg(dst, src regfile.Register) {
	e.byte(rex(true, isExtended(src.ID()), false, isExtended(dst.ID())))
	e.byte(0x01)
	e.byte(modrmReg(dst.ID(), src.ID()))
}

// SubRegReg emits "sub dst, src".
func (e *Emitter) SubRegReg(dst, src regfile.Register) {
	e.byte(rex(true, isExtended(src.ID()), false, isExtended(dst.ID())))
	e.byte(0x29)
	e.byte(modrmReg(dst.ID(), src.ID()))
}

// ImulRegReg emits "imul dst, src" (two-operand signed multiply form,
// opcode 0F AF).
func (e *Emitter) ImulRegReg(dst, src regfile.Register) {
	e.byte(rex(true, isExtended(dst.ID()), false, isExtended(src.ID())))
	e.byte(0x0F)
	e.byte(0xAF)
	e.byte(modrmReg(src.ID(), dst.ID()))
}

// XorRegReg emits "xor dst, src" -- used for the common "zero a register"
// idiom as well as genuine XOR.
func (e *Emitter) XorRegReg(dst, src regfile.Register) {
	e.byte(rex(true, isExtended(src.ID()), false, isExtended(dst.ID())))
	e.byte(0x31)
	e.byte(modrmReg(dst.ID(), src.ID()))
}

// CmpRegReg emits "cmp a, b".
func (e *Emitter) CmpRegReg(a, b regfile.Register) {
	e.byte(rex(true, isExtended(b.ID()), false, isExtended(a.ID())))
	e.byte(0x39)
	e.byte(modrmReg(a.ID(), b.ID()))
}

// PushReg emits "push reg", 1-byte opcode 50+r, with a REX.B prefix only
// when reg is an extended (r8-r15) register -- ported from
// emitPush in original_source's IRConverter_Emit_CallReturn.h.
func (e *Emitter) PushReg(reg regfile.Register) {
	if isExtended(reg.ID()) {
		e.byte(rex(false, false, false, true))
	}
	e.byte(0x50 | byte(reg.ID()&7))
}

// PopReg emits "pop reg", mirroring PushReg.
func (e *Emitter) PopReg(reg regfile.Register) {
	if isExtended(reg.ID()) {
		e.byte(rex(false, false, false, true))
	}
	e.byte(0x58 | byte(reg.ID()&7))
}

// CallReg emits "call reg" (FF /2), ported from emitCallReg.
func (e *Emitter) CallReg(reg regfile.Register) {
	if isExtended(reg.ID()) {
		e.byte(rex(false, false, false, true))
	}
	e.byte(0xFF)
	e.byte(0xD0 | byte(reg.ID()&7))
}

// CallRel32 emits a direct "call rel32" to a symbol resolved later by the
// object writer's relocation table; the 4-byte placeholder's offset is
// returned so the caller can record a relocation entry against it.
func (e *Emitter) CallRel32() (patchAt int) {
	e.byte(0xE8)
	patchAt = len(e.Code)
	e.u32(0)
	return patchAt
}

// Ret emits a near return.
func (e *Emitter) Ret() { e.byte(0xC3) }

// Nop emits a single-byte no-op; CompileFunction emits one in place of
// each IR instruction it has no lowering for.
func (e *Emitter) Nop() { e.byte(0x90) }
