package objfile

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestCoffWriteHeaderReportsMachineAndSectionCount(t *testing.T) {
	w := NewCoffWriter()
	w.AddSection(CoffSection{Name: ".text$mn", Data: []byte{0x90, 0xC3}})
	out := w.Write()
	machine := binary.LittleEndian.Uint16(out[0:2])
	if machine != imageFileMachineAMD64 {
		t.Fatalf("expected IMAGE_FILE_MACHINE_AMD64, got 0x%x", machine)
	}
	numSections := binary.LittleEndian.Uint16(out[2:4])
	if numSections != 1 {
		t.Fatalf("expected 1 section, got %d", numSections)
	}
}

func TestCoffLongSectionNameGoesThroughStringTable(t *testing.T) {
	w := NewCoffWriter()
	longName := ".debug$Sxx" // > 8 bytes.
	w.AddSection(CoffSection{Name: longName, Data: []byte{1, 2, 3}})
	out := w.Write()
	if !bytes.Contains(out, []byte(longName)) {
		t.Fatalf("expected the long section name to be present via the string table")
	}
}

func TestCodeViewBuilderCarriesBuildID(t *testing.T) {
	w := NewCoffWriter()
	w.Debug.SetBuildID("build-42")
	w.Debug.SetCurrentFunctionForDebug("f", 0)
	w.Debug.UpdateFunctionLength(8)
	w.Debug.FinalizeDebugInfo()
	s, _ := w.Debug.BuildSections()
	if !bytes.Contains(s, []byte("build-42")) {
		t.Fatalf("expected the build id in .debug$S")
	}
}
