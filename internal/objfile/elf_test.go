package objfile

import (
	"bytes"
	"testing"
)

func TestWriteProducesValidElfMagic(t *testing.T) {
	w := NewElfWriter()
	w.AddSection(ElfSection{Name: ".text", Type: ShtProgbits, Flags: ShfAlloc | ShfExecinstr, Data: []byte{0xC3}, Align: 16})
	out := w.Write()
	if !bytes.HasPrefix(out, []byte(elfMagic)) {
		t.Fatalf("expected the ELF magic number at offset 0")
	}
	if out[4] != elfClass64 {
		t.Fatalf("expected ELFCLASS64, got %d", out[4])
	}
}

func TestWriteIncludesSymbolAndRelocation(t *testing.T) {
	w := NewElfWriter()
	w.AddSection(ElfSection{Name: ".text", Type: ShtProgbits, Data: []byte{0x90, 0x90, 0xE8, 0, 0, 0, 0}, Align: 16})
	w.AddSymbol(ElfSymbol{Name: "main", Value: 0, Size: 7, Info: (StbGlobal << 4) | SttFunc, Shndx: 1})
	w.AddRela(".text", ElfRela{Offset: 3, Type: RX8664PLT32, Addend: -4})
	out := w.Write()
	if len(out) == 0 {
		t.Fatalf("expected non-empty object bytes")
	}
	if !bytes.Contains(out, []byte("main")) {
		t.Fatalf("expected the symbol name to appear in the serialized strtab")
	}
}

func TestDebugBuilderCarriesBuildID(t *testing.T) {
	w := NewElfWriter()
	w.Debug.SetBuildID("11111111-2222-3333-4444-555555555555")
	w.Debug.SetCurrentFunctionForDebug("main", 0)
	w.Debug.UpdateFunctionLength(16)
	w.Debug.FinalizeDebugInfo()
	info, _, _ := w.Debug.BuildSections()
	if !bytes.Contains(info, []byte("11111111-2222-3333-4444-555555555555")) {
		t.Fatalf("expected the build id to be embedded in .debug_info")
	}
}
