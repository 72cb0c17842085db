package driver

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ABI selects the calling-convention lowering of §4.9.2.
type ABI int

const (
	SysV ABI = iota
	Win64
)

// ObjectFormat selects the container format written by internal/objfile.
type ObjectFormat int

const (
	ELF ObjectFormat = iota
	COFF
)

// MangleScheme selects the name-mangling scheme of §4.7.
type MangleScheme int

const (
	Itanium MangleScheme = iota
	MSVC
)

// DebugFormat selects the debug-info encoding of §4.9.4.
type DebugFormat int

const (
	DWARF4 DebugFormat = iota
	CodeView
)

// Target fully describes an output triple: object container, ABI,
// mangling scheme and debug format, plus the predefined macro set (§6)
// the preprocessor exposes for this target.
type Target struct {
	Triple    string
	Format    ObjectFormat
	ABI       ABI
	Mangle    MangleScheme
	Debug     DebugFormat
	SizeTMang byte // mangled size_t token: 'm' (Itanium unsigned long) or a two-char MSVC code handled specially.
	Macros    map[string]string
}

// DefaultTarget returns x86_64-pc-linux-gnu, matching SPEC_FULL.md §13's
// decision to default to Linux/SysV/ELF/Itanium.
func DefaultTarget() Target {
	t, _ := ParseTriple("x86_64-pc-linux-gnu")
	return t
}

func predefinedMacros(abi ABI) map[string]string {
	m := map[string]string{
		"__cplusplus":                                 "202002L",
		"__cpp_lib_type_trait_variable_templates":     "201510L",
		"__cpp_lib_addressof_constexpr":                "201603L",
		"__cpp_lib_integral_constant_callable":        "201304L",
		"__cpp_lib_is_aggregate":                       "201703L",
		"__cpp_lib_void_t":                             "201411L",
		"__cpp_lib_bool_constant":                      "201505L",
	}
	if abi == Win64 {
		m["__SIZE_TYPE__"] = "unsigned __int64"
	} else {
		m["__SIZE_TYPE__"] = "unsigned long"
	}
	return m
}

// ParseTriple resolves one of the two built-in target triples this
// compiler supports: x86_64-pc-linux-gnu (ELF/SysV/Itanium/DWARF4) and
// x86_64-pc-windows-msvc (COFF/Win64/MSVC/CodeView).
func ParseTriple(triple string) (Target, error) {
	lower := strings.ToLower(triple)
	switch {
	case strings.Contains(lower, "linux"):
		return Target{
			Triple: triple, Format: ELF, ABI: SysV, Mangle: Itanium, Debug: DWARF4,
			SizeTMang: 'm', Macros: predefinedMacros(SysV),
		}, nil
	case strings.Contains(lower, "windows") || strings.Contains(lower, "msvc"):
		return Target{
			Triple: triple, Format: COFF, ABI: Win64, Mangle: MSVC, Debug: CodeView,
			SizeTMang: 'K', Macros: predefinedMacros(Win64),
		}, nil
	default:
		return Target{}, fmt.Errorf("unsupported target triple %q: only x86_64-*-linux-gnu and x86_64-*-windows-msvc are supported", triple)
	}
}

// targetFile is the on-disk YAML shape for -target-file, letting a user
// override or extend the built-in triples without recompiling the driver.
type targetFile struct {
	Triple string            `yaml:"triple"`
	Format string            `yaml:"format"` // "elf" | "coff"
	ABI    string            `yaml:"abi"`    // "sysv" | "win64"
	Mangle string            `yaml:"mangle"` // "itanium" | "msvc"
	Debug  string            `yaml:"debug"`  // "dwarf4" | "codeview"
	Macros map[string]string `yaml:"macros"`
}

// LoadTargetFile reads a YAML target descriptor from path.
func LoadTargetFile(path string) (Target, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Target{}, fmt.Errorf("reading target file: %w", err)
	}
	var tf targetFile
	if err := yaml.Unmarshal(b, &tf); err != nil {
		return Target{}, fmt.Errorf("parsing target file %s: %w", path, err)
	}

	t := Target{Triple: tf.Triple, Macros: tf.Macros}
	switch strings.ToLower(tf.Format) {
	case "elf":
		t.Format = ELF
	case "coff":
		t.Format = COFF
	default:
		return Target{}, fmt.Errorf("target file %s: unknown format %q", path, tf.Format)
	}
	switch strings.ToLower(tf.ABI) {
	case "sysv":
		t.ABI = SysV
		t.SizeTMang = 'm'
	case "win64":
		t.ABI = Win64
		t.SizeTMang = 'K'
	default:
		return Target{}, fmt.Errorf("target file %s: unknown abi %q", path, tf.ABI)
	}
	switch strings.ToLower(tf.Mangle) {
	case "itanium":
		t.Mangle = Itanium
	case "msvc":
		t.Mangle = MSVC
	default:
		return Target{}, fmt.Errorf("target file %s: unknown mangling scheme %q", path, tf.Mangle)
	}
	switch strings.ToLower(tf.Debug) {
	case "dwarf4":
		t.Debug = DWARF4
	case "codeview":
		t.Debug = CodeView
	default:
		return Target{}, fmt.Errorf("target file %s: unknown debug format %q", path, tf.Debug)
	}
	if t.Macros == nil {
		t.Macros = predefinedMacros(t.ABI)
	}
	return t, nil
}
