// Package regfile defines the virtual register file interface the
// allocator in internal/codegen targets, generalized from the teacher's
// ARM-oriented hhramberg-go-vslc/src/backend/regfile/regfile.go
// (SP/LR/FP + temp-register-only interface) to x86-64's richer model:
// a fixed set of 16 general-purpose registers and 16 XMM registers, a
// frame pointer but no link register (return address lives on the
// stack), and callee-saved/caller-saved classification the SysV and
// Win64 ABI lowering both need.
package regfile

// Class distinguishes the two register banks.
type Class int

const (
	GPR Class = iota
	XMM
)

// Register is one physical x86-64 register.
type Register interface {
	ID() int
	Class() Class
	String() string // AT&T-style name, e.g. "%rax", "%xmm3".
	CalleeSaved() bool
}

// RegisterFile is the fixed x86-64 register file: the allocator asks it
// for the next free temporary of a given class and frees registers back
// to it when a value's live range ends.
type RegisterFile interface {
	SP() Register
	FP() Register
	GetGPR(i int) Register
	GetXMM(i int) Register
	FreeGPR(i int)
	FreeXMM(i int)
	NextTempGPR(exclude []Register) (Register, bool)
	NextTempXMM(exclude []Register) (Register, bool)
	Reset()
	NumGPR() int
	NumXMM() int
}

type reg struct {
	id    int
	class Class
	name  string
	saved bool
}

func (r reg) ID() int          { return r.id }
func (r reg) Class() Class     { return r.class }
func (r reg) String() string   { return r.name }
func (r reg) CalleeSaved() bool { return r.saved }

// gprNames lists the 16 general-purpose registers in index order (the
// same for both ABIs); SP (rsp) and FP (rbp) are excluded from the allocatable
// pool and addressed through SP()/FP() instead.
var gprNames = [16]string{
	"%rax", "%rcx", "%rdx", "%rbx", "%rsp", "%rbp", "%rsi", "%rdi",
	"%r8", "%r9", "%r10", "%r11", "%r12", "%r13", "%r14", "%r15",
}

// calleeSavedSysV marks rbx, rbp, r12-r15 as callee-saved per the SysV ABI;
// Win64 additionally treats rsi/rdi as callee-saved, so the file is built
// per-ABI by New.
var calleeSavedSysV = map[int]bool{3: true, 5: true, 12: true, 13: true, 14: true, 15: true}
var calleeSavedWin64 = map[int]bool{3: true, 5: true, 6: true, 7: true, 12: true, 13: true, 14: true, 15: true}

type file struct {
	gprs    [16]reg
	xmms    [16]reg
	gprUsed [16]bool
	xmmUsed [16]bool
}

// New builds the x86-64 register file. win64 selects the Win64 ABI's
// callee-saved set (rsi/rdi additionally preserved) over SysV's.
func New(win64 bool) RegisterFile {
	saved := calleeSavedSysV
	if win64 {
		saved = calleeSavedWin64
	}
	f := &file{}
	for i := 0; i < 16; i++ {
		f.gprs[i] = reg{id: i, class: GPR, name: gprNames[i], saved: saved[i]}
		f.xmms[i] = reg{id: i, class: XMM, name: xmmName(i)}
	}
	// rsp (4) and rbp (5) are reserved for SP()/FP() and never handed out
	// as temporaries.
	f.gprUsed[4] = true
	f.gprUsed[5] = true
	return f
}

func xmmName(i int) string {
	return "%xmm" + xtoaInt(i)
}

func xtoaInt(i int) string {
	if i == 0 {
		return "0"
	}
	var b []byte
	for i > 0 {
		b = append([]byte{byte('0' + i%10)}, b...)
		i /= 10
	}
	return string(b)
}

func (f *file) SP() Register { return f.gprs[4] }
func (f *file) FP() Register { return f.gprs[5] }

func (f *file) GetGPR(i int) Register { return f.gprs[i] }
func (f *file) GetXMM(i int) Register { return f.xmms[i] }

func (f *file) FreeGPR(i int) { f.gprUsed[i] = false }
func (f *file) FreeXMM(i int) { f.xmmUsed[i] = false }

func (f *file) NextTempGPR(exclude []Register) (Register, bool) {
	return next(f.gprs[:], f.gprUsed[:], exclude)
}

func (f *file) NextTempXMM(exclude []Register) (Register, bool) {
	return next(f.xmms[:], f.xmmUsed[:], exclude)
}

func next(regs []reg, used []bool, exclude []Register) (Register, bool) {
	for i := range regs {
		if used[i] {
			continue
		}
		excluded := false
		for _, e := range exclude {
			if e.ID() == regs[i].id && e.Class() == regs[i].class {
				excluded = true
				break
			}
		}
		if excluded {
			continue
		}
		used[i] = true
		return regs[i], true
	}
	return nil, false
}

func (f *file) Reset() {
	for i := range f.gprUsed {
		f.gprUsed[i] = false
	}
	for i := range f.xmmUsed {
		f.xmmUsed[i] = false
	}
	f.gprUsed[4] = true
	f.gprUsed[5] = true
}

func (f *file) NumGPR() int { return len(f.gprs) - 2 } // minus SP, FP
func (f *file) NumXMM() int { return len(f.xmms) }
