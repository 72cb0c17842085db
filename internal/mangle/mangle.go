// Package mangle implements the two name-mangling schemes of §4.7:
// Itanium C++ ABI mangling (Linux/SysV targets) and the MSVC decoration
// scheme (Windows targets), selected by internal/driver.Target.Mangle.
package mangle

import (
	"fmt"
	"strings"

	"cppc/internal/types"
)

// Scheme mangles a function or variable name given its enclosing
// namespace/class path and its type.
type Scheme interface {
	Function(path []string, fn types.TypeID, reg *types.Registry) string
	Variable(path []string, ty types.TypeID, reg *types.Registry) string
}

// Itanium implements the Itanium C++ ABI's mangling grammar, with a
// substitution table for repeated components (§4.7).
type Itanium struct{}

func (Itanium) Function(path []string, fn types.TypeID, reg *types.Registry) string {
	var sb strings.Builder
	sb.WriteString("_Z")
	subs := newSubTable()
	writeName(&sb, path, subs)
	ft := reg.At(fn)
	if len(ft.Params) == 0 {
		sb.WriteString("v")
	} else {
		for _, p := range ft.Params {
			writeType(&sb, p, reg, subs)
		}
		if ft.Variadic {
			sb.WriteString("z")
		}
	}
	return sb.String()
}

func (Itanium) Variable(path []string, ty types.TypeID, reg *types.Registry) string {
	var sb strings.Builder
	sb.WriteString("_Z")
	writeName(&sb, path, newSubTable())
	return sb.String()
}

func writeName(sb *strings.Builder, path []string, subs *subTable) {
	if len(path) == 1 {
		fmt.Fprintf(sb, "%d%s", len(path[0]), path[0])
		return
	}
	sb.WriteString("N")
	for _, p := range path {
		fmt.Fprintf(sb, "%d%s", len(p), p)
	}
	sb.WriteString("E")
	subs.add(strings.Join(path, "::"))
}

var builtinCodes = map[types.Kind]string{
	types.KindVoid: "v", types.KindBool: "b", types.KindChar: "c",
	types.KindSChar: "a", types.KindUChar: "h", types.KindShort: "s",
	types.KindUShort: "t", types.KindInt: "i", types.KindUInt: "j",
	types.KindLong: "l", types.KindULong: "m", types.KindLongLong: "x",
	types.KindULongLong: "y", types.KindFloat: "f", types.KindDouble: "d",
	types.KindLongDouble: "e", types.KindNullptr: "Dn",
	types.KindChar8: "Du", types.KindChar16: "Ds", types.KindChar32: "Di",
	types.KindWChar: "w",
}

// writeType mangles ty, consulting and updating subs for the Itanium
// substitution-compression rule (repeated compound types collapse to an
// S_ / S0_ / S1_ back-reference).
func writeType(sb *strings.Builder, ty types.TypeID, reg *types.Registry, subs *subTable) {
	t := reg.At(ty)
	if code, ok := builtinCodes[t.Kind]; ok {
		sb.WriteString(code)
		return
	}

	key := typeKey(ty, reg)
	if ref, ok := subs.lookup(key); ok {
		sb.WriteString(ref)
		return
	}

	switch t.Kind {
	case types.KindPointer:
		sb.WriteString("P")
		writeType(sb, t.Elem, reg, subs)
	case types.KindLValueRef:
		sb.WriteString("R")
		writeType(sb, t.Elem, reg, subs)
	case types.KindRValueRef:
		sb.WriteString("O")
		writeType(sb, t.Elem, reg, subs)
	case types.KindClass, types.KindEnum:
		fmt.Fprintf(sb, "%d%s", len(t.Name), t.Name)
	default:
		sb.WriteString("v")
	}
	subs.add(key)
}

func typeKey(ty types.TypeID, reg *types.Registry) string {
	t := reg.At(ty)
	switch t.Kind {
	case types.KindPointer:
		return "P" + typeKey(t.Elem, reg)
	case types.KindLValueRef:
		return "R" + typeKey(t.Elem, reg)
	case types.KindRValueRef:
		return "O" + typeKey(t.Elem, reg)
	default:
		return t.Name
	}
}

// subTable assigns S_, S0_, S1_, ... back-reference codes in first-use
// order, per the Itanium substitution rule.
type subTable struct {
	seen []string
}

func newSubTable() *subTable { return &subTable{} }

func (s *subTable) lookup(key string) (string, bool) {
	for i, k := range s.seen {
		if k == key {
			if i == 0 {
				return "S_", true
			}
			return fmt.Sprintf("S%d_", i-1), true
		}
	}
	return "", false
}

func (s *subTable) add(key string) {
	if _, ok := s.lookup(key); ok {
		return
	}
	s.seen = append(s.seen, key)
}

// MSVC implements the Microsoft C++ decoration scheme: "?name@@YA..."
// for free functions, built on a simplified code table sufficient for
// the built-in scalar types and pointers this compiler supports.
type MSVC struct {
	SizeTCode byte // 'K' on Win64 per §13; nothing in this package reads it, and no caller sets it.
}

var msvcBuiltins = map[types.Kind]string{
	types.KindVoid: "X", types.KindBool: "_N", types.KindChar: "D",
	types.KindSChar: "C", types.KindUChar: "E", types.KindShort: "F",
	types.KindUShort: "G", types.KindInt: "H", types.KindUInt: "I",
	types.KindLong: "J", types.KindULong: "K", types.KindLongLong: "_J",
	types.KindULongLong: "_K", types.KindFloat: "M", types.KindDouble: "N",
}

func (m MSVC) Function(path []string, fn types.TypeID, reg *types.Registry) string {
	var sb strings.Builder
	sb.WriteString("?")
	sb.WriteString(path[len(path)-1])
	sb.WriteString("@@YA") // near, __cdecl; enclosing-namespace qualifiers elided for the supported subset.
	ft := reg.At(fn)
	m.writeType(&sb, ft.Elem, reg)
	if len(ft.Params) == 0 {
		sb.WriteString("XZ")
	} else {
		for _, p := range ft.Params {
			m.writeType(&sb, p, reg)
		}
		sb.WriteString("@Z")
	}
	return sb.String()
}

func (m MSVC) Variable(path []string, ty types.TypeID, reg *types.Registry) string {
	var sb strings.Builder
	sb.WriteString("?")
	sb.WriteString(path[len(path)-1])
	sb.WriteString("@@3")
	m.writeType(&sb, ty, reg)
	sb.WriteString("A")
	return sb.String()
}

func (m MSVC) writeType(sb *strings.Builder, ty types.TypeID, reg *types.Registry) {
	t := reg.At(ty)
	if code, ok := msvcBuiltins[t.Kind]; ok {
		sb.WriteString(code)
		return
	}
	switch t.Kind {
	case types.KindPointer:
		sb.WriteString("PEA")
		m.writeType(sb, t.Elem, reg)
	case types.KindLValueRef:
		sb.WriteString("AEA")
		m.writeType(sb, t.Elem, reg)
	case types.KindClass:
		fmt.Fprintf(sb, "V%s@@", t.Name)
	default:
		sb.WriteString("X")
	}
}
