// COFF object file writer for Windows targets (§4.9.4, §6):
// IMAGE_FILE_HEADER + section table + .text$mn/.data/.rdata/.bss sections
// with IMAGE_RELOCATION entries, sized for IMAGE_FILE_MACHINE_AMD64.
package objfile

import (
	"bytes"
	"encoding/binary"
)

const (
	imageFileMachineAMD64 = 0x8664
	imageSymClassExternal = 2
	imageSymClassStatic   = 3
	imageRelAMD64Rel32    = 0x0004
	imageRelAMD64Addr64   = 0x0001
)

// CoffSection is one section to emit into the COFF object.
type CoffSection struct {
	Name        string
	Characteristics uint32
	Data        []byte
	Relocs      []CoffReloc
}

const (
	imageScnCntCode             = 0x00000020
	imageScnCntInitializedData  = 0x00000040
	imageScnCntUninitializedData = 0x00000080
	imageScnMemExecute          = 0x20000000
	imageScnMemRead             = 0x40000000
	imageScnMemWrite            = 0x80000000
)

// CoffReloc is one IMAGE_RELOCATION entry.
type CoffReloc struct {
	Offset uint32
	Sym    uint32
	Type   uint16
}

// CoffSymbol is one IMAGE_SYMBOL entry (the short, non-auxiliary form;
// names longer than 8 bytes are written through the string table).
type CoffSymbol struct {
	Name        string
	Value       uint32
	SectionNum  int16
	StorageClass uint8
}

// CoffWriter accumulates sections and symbols for one translation unit.
type CoffWriter struct {
	sections []CoffSection
	symbols  []CoffSymbol
	Debug    *CodeViewBuilder
}

func NewCoffWriter() *CoffWriter {
	return &CoffWriter{Debug: NewCodeViewBuilder()}
}

func (w *CoffWriter) AddSection(s CoffSection) int {
	w.sections = append(w.sections, s)
	return len(w.sections) - 1
}

func (w *CoffWriter) AddSymbol(sym CoffSymbol) int {
	w.symbols = append(w.symbols, sym)
	return len(w.symbols)
}

type coffFileHeader struct {
	Machine              uint16
	NumberOfSections     uint16
	TimeDateStamp        uint32
	PointerToSymbolTable uint32
	NumberOfSymbols      uint32
	SizeOfOptionalHeader uint16
	Characteristics      uint16
}

type coffSectionHeader struct {
	Name                 [8]byte
	VirtualSize          uint32
	VirtualAddress       uint32
	SizeOfRawData        uint32
	PointerToRawData      uint32
	PointerToRelocations uint32
	PointerToLinenumbers uint32
	NumberOfRelocations  uint16
	NumberOfLinenumbers  uint16
	Characteristics      uint32
}

type coffRelocation struct {
	VirtualAddress  uint32
	SymbolTableIndex uint32
	Type            uint16
}

type coffSymbolRecord struct {
	Name           [8]byte
	Value          uint32
	SectionNumber  int16
	Type           uint16
	StorageClass   uint8
	NumberOfAuxSymbols uint8
}

// Write serializes the accumulated sections/symbols into a COFF object.
func (w *CoffWriter) Write() []byte {
	var strtab bytes.Buffer
	strtab.Write([]byte{0, 0, 0, 0}) // size field patched at the end.

	shortName := func(name string) (arr [8]byte, needsLong bool) {
		if len(name) <= 8 {
			copy(arr[:], name)
			return arr, false
		}
		return arr, true
	}

	headerSize := 20
	sectionHdrSize := 40
	relocSize := 10
	symSize := 18

	off := uint32(headerSize + sectionHdrSize*len(w.sections))
	sectionDataOffsets := make([]uint32, len(w.sections))
	sectionRelocOffsets := make([]uint32, len(w.sections))
	for i, s := range w.sections {
		sectionDataOffsets[i] = off
		off += uint32(len(s.Data))
	}
	for i, s := range w.sections {
		sectionRelocOffsets[i] = off
		off += uint32(len(s.Relocs) * relocSize)
	}
	symtabOffset := off

	var out bytes.Buffer
	binary.Write(&out, binary.LittleEndian, coffFileHeader{
		Machine: imageFileMachineAMD64, NumberOfSections: uint16(len(w.sections)),
		PointerToSymbolTable: symtabOffset, NumberOfSymbols: uint32(len(w.symbols) + 1),
	})

	for i, s := range w.sections {
		arr, long := shortName(s.Name)
		if long {
			soff := uint32(strtab.Len())
			strtab.Write([]byte(s.Name))
			strtab.WriteByte(0)
			copy(arr[:4], []byte{0, 0, 0, 0})
			binary.LittleEndian.PutUint32(arr[4:8], soff)
		}
		binary.Write(&out, binary.LittleEndian, coffSectionHeader{
			Name: arr, SizeOfRawData: uint32(len(s.Data)), PointerToRawData: sectionDataOffsets[i],
			PointerToRelocations: sectionRelocOffsets[i], NumberOfRelocations: uint16(len(s.Relocs)),
			Characteristics: s.Characteristics,
		})
	}

	for _, s := range w.sections {
		out.Write(s.Data)
	}
	for _, s := range w.sections {
		for _, r := range s.Relocs {
			binary.Write(&out, binary.LittleEndian, coffRelocation{
				VirtualAddress: r.Offset, SymbolTableIndex: r.Sym, Type: r.Type,
			})
		}
	}

	for _, sym := range w.symbols {
		arr, long := shortName(sym.Name)
		if long {
			soff := uint32(strtab.Len())
			strtab.Write([]byte(sym.Name))
			strtab.WriteByte(0)
			copy(arr[:4], []byte{0, 0, 0, 0})
			binary.LittleEndian.PutUint32(arr[4:8], soff)
		}
		binary.Write(&out, binary.LittleEndian, coffSymbolRecord{
			Name: arr, Value: sym.Value, SectionNumber: sym.SectionNum, StorageClass: sym.StorageClass,
		})
	}

	binary.LittleEndian.PutUint32(strtab.Bytes()[:4], uint32(strtab.Len()))
	out.Write(strtab.Bytes())

	_ = symSize
	return out.Bytes()
}
