// ELF64 relocatable object file writer (§4.9.4, §6): .text/.data/.rodata/
// .bss/.symtab/.strtab/.rela.text sections with a minimal but standards-
// conformant section header table, sized for x86-64 (EM_X86_64).
package objfile

import (
	"bytes"
	"encoding/binary"
)

const (
	elfMagic    = "\x7fELF"
	elfClass64  = 2
	elfDataLSB  = 1
	elfVersion  = 1
	elfOSABISysV = 0
	etRel       = 1
	emX8664     = 62
)

// ElfSection is one section to be written into the object file.
type ElfSection struct {
	Name    string
	Type    uint32 // SHT_PROGBITS, SHT_SYMTAB, SHT_STRTAB, SHT_RELA, SHT_NOBITS
	Flags   uint64 // SHF_WRITE, SHF_ALLOC, SHF_EXECINSTR
	Data    []byte
	Align   uint64
	EntSize uint64
	Link    uint32
	Info    uint32
}

const (
	ShtNull     = 0
	ShtProgbits = 1
	ShtSymtab   = 2
	ShtStrtab   = 3
	ShtRela     = 4
	ShtNobits   = 8

	ShfWrite     = 0x1
	ShfAlloc     = 0x2
	ShfExecinstr = 0x4
)

// ElfSymbol is one .symtab entry.
type ElfSymbol struct {
	Name    string
	Value   uint64
	Size    uint64
	Info    uint8 // (bind<<4)|type
	Shndx   uint16
}

const (
	SttNotype = 0
	SttObject = 1
	SttFunc   = 2

	StbLocal  = 0
	StbGlobal = 1
)

// ElfRela is one .rela.text/.rela.data entry.
type ElfRela struct {
	Offset uint64
	Sym    uint32
	Type   uint32
	Addend int64
}

const (
	RX8664PLT32 = 4 // R_X86_64_PLT32
	RX8664_64   = 1 // R_X86_64_64
)

// ElfWriter accumulates sections, symbols and relocations for one
// translation unit's output object.
type ElfWriter struct {
	sections []ElfSection
	symbols  []ElfSymbol
	relas    map[string][]ElfRela // keyed by the section name relocations apply to.
	Debug    *DebugBuilder
}

// NewElfWriter returns an empty ElfWriter with its DebugBuilder; the
// leading null section and the string tables are added by Write.
func NewElfWriter() *ElfWriter {
	return &ElfWriter{relas: make(map[string][]ElfRela), Debug: NewDebugBuilder()}
}

// AddSection appends s and returns its index (1-based, since index 0 is
// the reserved null section).
func (w *ElfWriter) AddSection(s ElfSection) int {
	w.sections = append(w.sections, s)
	return len(w.sections) // null section occupies 0.
}

// AddSymbol appends sym and returns its symbol-table index.
func (w *ElfWriter) AddSymbol(sym ElfSymbol) int {
	w.symbols = append(w.symbols, sym)
	return len(w.symbols) // index 0 is the reserved null symbol.
}

// AddRela records a relocation against sectionName.
func (w *ElfWriter) AddRela(sectionName string, r ElfRela) {
	w.relas[sectionName] = append(w.relas[sectionName], r)
}

type elf64Ehdr struct {
	Ident     [16]byte
	Type      uint16
	Machine   uint16
	Version   uint32
	Entry     uint64
	Phoff     uint64
	Shoff     uint64
	Flags     uint32
	Ehsize    uint16
	Phentsize uint16
	Phnum     uint16
	Shentsize uint16
	Shnum     uint16
	Shstrndx  uint16
}

type elf64Shdr struct {
	Name      uint32
	Type      uint32
	Flags     uint64
	Addr      uint64
	Off       uint64
	Size      uint64
	Link      uint32
	Info      uint32
	Addralign uint64
	Entsize   uint64
}

type elf64Sym struct {
	Name  uint32
	Info  uint8
	Other uint8
	Shndx uint16
	Value uint64
	Size  uint64
}

type elf64Rela struct {
	Offset uint64
	Info   uint64
	Addend int64
}

// strtabBuilder accumulates a NUL-terminated string table, returning each
// added string's byte offset.
type strtabBuilder struct {
	buf []byte
}

func newStrtabBuilder() *strtabBuilder { return &strtabBuilder{buf: []byte{0}} }

func (s *strtabBuilder) add(str string) uint32 {
	off := uint32(len(s.buf))
	s.buf = append(s.buf, []byte(str)...)
	s.buf = append(s.buf, 0)
	return off
}

// Write serializes the accumulated sections, symbols and relocations into
// a complete ELF64 relocatable object file.
func (w *ElfWriter) Write() []byte {
	shstrtab := newStrtabBuilder()
	strtab := newStrtabBuilder()

	// Append symtab/strtab/shstrtab/rela sections derived from accumulated state.
	var symBuf bytes.Buffer
	binary.Write(&symBuf, binary.LittleEndian, elf64Sym{}) // reserved null symbol.
	for _, sym := range w.symbols {
		binary.Write(&symBuf, binary.LittleEndian, elf64Sym{
			Name: strtab.add(sym.Name), Info: sym.Info, Shndx: sym.Shndx,
			Value: sym.Value, Size: sym.Size,
		})
	}

	allSections := append([]ElfSection{}, w.sections...)
	nameToIdx := map[string]int{}
	for i, s := range allSections {
		nameToIdx[s.Name] = i + 1
	}

	for secName, relas := range w.relas {
		var buf bytes.Buffer
		for _, r := range relas {
			binary.Write(&buf, binary.LittleEndian, elf64Rela{
				Offset: r.Offset,
				Info:   uint64(r.Sym)<<32 | uint64(r.Type),
				Addend: r.Addend,
			})
		}
		allSections = append(allSections, ElfSection{
			Name: ".rela" + secName, Type: ShtRela, Link: 0, Info: uint32(nameToIdx[secName]),
			Data: buf.Bytes(), EntSize: 24, Align: 8,
		})
	}

	symtabIdx := len(allSections) + 1
	allSections = append(allSections, ElfSection{Name: ".symtab", Type: ShtSymtab, Data: symBuf.Bytes(), EntSize: 24, Align: 8})
	strtabIdx := len(allSections) + 1
	allSections = append(allSections, ElfSection{Name: ".strtab", Type: ShtStrtab, Data: strtab.buf, Align: 1})

	// Fix up .symtab's Link field to point at .strtab, now that we know its index.
	for i := range allSections {
		if allSections[i].Name == ".symtab" {
			allSections[i].Link = uint32(strtabIdx)
		}
		if allSections[i].Type == ShtRela && allSections[i].Link == 0 {
			allSections[i].Link = uint32(symtabIdx)
		}
	}

	shstrIdx := len(allSections) + 1
	allSections = append(allSections, ElfSection{Name: ".shstrtab", Type: ShtStrtab, Align: 1})

	nameOffsets := make([]uint32, len(allSections))
	for i, s := range allSections {
		nameOffsets[i] = shstrtab.add(s.Name)
	}
	allSections[shstrIdx-1].Data = shstrtab.buf

	var out bytes.Buffer
	headerSize := 64
	shdrSize := 64
	off := uint64(headerSize)

	offsets := make([]uint64, len(allSections))
	for i, s := range allSections {
		if s.Type == ShtNobits {
			offsets[i] = off
			continue
		}
		if s.Align > 1 {
			pad := (uint64(s.Align) - off%uint64(s.Align)) % uint64(s.Align)
			off += pad
		}
		offsets[i] = off
		off += uint64(len(s.Data))
	}
	shoff := off

	ehdr := elf64Ehdr{
		Type: etRel, Machine: emX8664, Version: elfVersion,
		Shoff: shoff, Ehsize: uint16(headerSize), Shentsize: uint16(shdrSize),
		Shnum: uint16(len(allSections) + 1), Shstrndx: uint16(shstrIdx),
	}
	copy(ehdr.Ident[:], elfMagic)
	ehdr.Ident[4] = elfClass64
	ehdr.Ident[5] = elfDataLSB
	ehdr.Ident[6] = elfVersion
	ehdr.Ident[7] = elfOSABISysV
	binary.Write(&out, binary.LittleEndian, ehdr)

	for i, s := range allSections {
		if s.Type == ShtNobits {
			continue
		}
		for uint64(out.Len()) < offsets[i] {
			out.WriteByte(0)
		}
		out.Write(s.Data)
	}

	binary.Write(&out, binary.LittleEndian, elf64Shdr{}) // null section header.
	for i, s := range allSections {
		size := uint64(len(s.Data))
		binary.Write(&out, binary.LittleEndian, elf64Shdr{
			Name: nameOffsets[i], Type: s.Type, Flags: s.Flags,
			Off: offsets[i], Size: size, Link: s.Link, Info: s.Info,
			Addralign: max64(s.Align, 1), Entsize: s.EntSize,
		})
	}

	return out.Bytes()
}

func max64(a, b uint64) uint64 {
	if a > b {
		return a
	}
	return b
}
