// Package sema bridges the parser's syntactic TypeRef nodes to the
// canonical types.TypeID values the rest of the pipeline computes with.
// A declarator's type is parsed once into an ast.NodeID-addressed tree
// (internal/parser's parseTypeRef); Resolver walks that tree exactly
// once per distinct node and interns the result through a
// types.Registry, the same intern-once-refer-by-id discipline the
// teacher uses for labels (hhramberg-go-vslc/src/util/label.go).
package sema

import (
	"cppc/internal/ast"
	"cppc/internal/types"
)

// builtinKinds maps the spellings parseTypeRef produces for fundamental
// types (specifier keywords joined with single spaces, in source order)
// to their types.Kind. A spelling not listed here, such as "int unsigned"
// or "long long int", is not recognized as a fundamental type.
var builtinKinds = map[string]types.Kind{
	"void": types.KindVoid,

	"bool": types.KindBool,

	"char":     types.KindChar,
	"char8_t":  types.KindChar8,
	"char16_t": types.KindChar16,
	"char32_t": types.KindChar32,
	"wchar_t":  types.KindWChar,

	"signed char":   types.KindSChar,
	"unsigned char": types.KindUChar,

	"short":          types.KindShort,
	"short int":      types.KindShort,
	"unsigned short": types.KindUShort,

	"int":          types.KindInt,
	"signed":       types.KindInt,
	"signed int":   types.KindInt,
	"unsigned":     types.KindUInt,
	"unsigned int": types.KindUInt,

	"long":          types.KindLong,
	"long int":      types.KindLong,
	"unsigned long": types.KindULong,

	"long long":          types.KindLongLong,
	"unsigned long long": types.KindULongLong,

	"float":       types.KindFloat,
	"double":      types.KindDouble,
	"long double": types.KindLongDouble,

	"decltype(nullptr)": types.KindNullptr,
	"nullptr_t":         types.KindNullptr,
}

// Resolver resolves TypeRef nodes against one translation unit's arena
// and type registry, memoizing per node so a type named in several
// declarators (e.g. a parameter list reusing "int") is only walked once.
type Resolver struct {
	arena   *ast.Arena
	types   *types.Registry
	classes map[string]types.TypeID
	cache   map[ast.NodeID]types.TypeID
}

// New returns a Resolver over arena, interning resolved types into reg.
func New(arena *ast.Arena, reg *types.Registry) *Resolver {
	return &Resolver{
		arena:   arena,
		types:   reg,
		classes: make(map[string]types.TypeID),
		cache:   make(map[ast.NodeID]types.TypeID),
	}
}

// Resolve turns the TypeRef subtree rooted at id into a types.TypeID.
// ast.InvalidID resolves to types.Invalid (the registry's void entry),
// which is what an omitted return type or an unresolved declarator
// should fall back to rather than a zero-value panic further down the
// pipeline.
func (r *Resolver) Resolve(id ast.NodeID) types.TypeID {
	if id == ast.InvalidID {
		return types.Invalid
	}
	if t, ok := r.cache[id]; ok {
		return t
	}
	t := r.resolve(id)
	r.cache[id] = t
	return t
}

func (r *Resolver) resolve(id ast.NodeID) types.TypeID {
	n := r.arena.At(id)
	switch n.Text {
	case "*":
		return r.types.Pointer(r.Resolve(n.Children[0]))
	case "&":
		return r.types.LValueRef(r.Resolve(n.Children[0]))
	case "&&":
		return r.types.RValueRef(r.Resolve(n.Children[0]))
	}

	name := n.Text
	if k, ok := builtinKinds[name]; ok {
		return r.types.Builtin(k)
	}
	if id, ok := r.classes[name]; ok {
		return id
	}
	// Not a built-in spelling: treat as a (possibly forward-declared)
	// class or enum name, interned once per spelling so every reference
	// to the same user type shares a TypeID.
	classID := r.types.NewClass(name)
	r.classes[name] = classID
	return classID
}
