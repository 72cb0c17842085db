// Package types implements the canonical type registry of §4.6: every
// distinct type (built-in, pointer, reference, array, function, class,
// enum) is interned once and referred to everywhere else by a 32-bit
// TypeID, mirroring the way the teacher interns labels/strings through a
// single serialized registry (hhramberg-go-vslc/src/util/label.go) rather
// than allocating ad hoc.
package types

import "fmt"

// TypeID indexes into a Registry. Zero is the invalid/unresolved type.
type TypeID uint32

const Invalid TypeID = 0

// Kind discriminates the shape a Type holds.
type Kind int

const (
	KindVoid Kind = iota
	KindBool
	KindChar
	KindChar8
	KindChar16
	KindChar32
	KindWChar
	KindSChar
	KindUChar
	KindShort
	KindUShort
	KindInt
	KindUInt
	KindLong
	KindULong
	KindLongLong
	KindULongLong
	KindFloat
	KindDouble
	KindLongDouble
	KindNullptr

	KindPointer
	KindLValueRef
	KindRValueRef
	KindArray
	KindFunction
	KindClass
	KindEnum
	KindMemberPointer
)

// Linkage distinguishes translation-unit-local from externally-visible
// names; Weak is reserved for the future multi-TU linker this compiler
// does not yet implement (§14.4 open-question decision).
type Linkage int

const (
	LinkageNone Linkage = iota
	LinkageInternal
	LinkageExternal
	LinkageWeak
)

// Type is one canonical, fully-resolved type.
type Type struct {
	Kind     Kind
	Elem     TypeID // Pointee / referenced / array-element / return type.
	ArrayLen int64  // -1 for an unbounded array.
	Params   []TypeID
	Variadic bool
	ClassOf  TypeID // Owning class, for KindMemberPointer.
	Name     string // Class/enum spelling, for diagnostics and mangling.
	Const    bool
	Volatile bool
	Size     int64 // Size in bytes, per the target's data model.
	Align    int64
	Linkage  Linkage

	// Class-specific fields.
	Bases      []TypeID
	Fields     []Field
	Methods    []Method
	Virtual    bool // Has at least one virtual function.
	Polymorphic bool
}

// Field is one non-static data member of a class type.
type Field struct {
	Name   string
	Type   TypeID
	Offset int64
}

// Method is one member function declared directly on a class, in
// declaration order. Virtual methods occupy vtable slots assigned by
// that same order, after any base class's own virtual slots.
type Method struct {
	Name    string
	Virtual bool
}

// VTableSlot returns the vtable slot index assigned to the virtual
// method named name on class t, searching t's first base (recursively)
// before t's own Methods, so a method found in the base keeps the base's
// slot. Other bases are not searched; their virtual methods are only
// counted to offset the slots of t's own methods. ok is false if name
// does not name a virtual method found this way.
func (r *Registry) VTableSlot(t TypeID, name string) (slot int, ok bool) {
	return r.vtableSlot(t, name, 0)
}

func (r *Registry) vtableSlot(t TypeID, name string, base int) (int, bool) {
	ty := r.At(t)
	if len(ty.Bases) > 0 {
		if slot, ok := r.vtableSlot(ty.Bases[0], name, base); ok {
			return slot, true
		}
		for _, m := range ty.Bases {
			if m != ty.Bases[0] {
				base += countVirtual(r.At(m).Methods)
			}
		}
		base += countVirtual(r.At(ty.Bases[0]).Methods)
	}
	for _, m := range ty.Methods {
		if !m.Virtual {
			continue
		}
		if m.Name == name {
			return base, true
		}
		base++
	}
	return 0, false
}

func countVirtual(methods []Method) int {
	n := 0
	for _, m := range methods {
		if m.Virtual {
			n++
		}
	}
	return n
}

// Registry interns every Type reachable from one translation unit.
type Registry struct {
	types []Type
	byKey map[string]TypeID
}

// New returns a Registry pre-populated with every built-in scalar type,
// sized for x86-64 (pointer-sized types are 8 bytes).
func New() *Registry {
	r := &Registry{types: []Type{{Kind: KindVoid}}, byKey: make(map[string]TypeID)}
	prims := []struct {
		k    Kind
		size int64
	}{
		{KindBool, 1}, {KindChar, 1}, {KindChar8, 1}, {KindChar16, 2}, {KindChar32, 4},
		{KindWChar, 4}, {KindSChar, 1}, {KindUChar, 1}, {KindShort, 2}, {KindUShort, 2},
		{KindInt, 4}, {KindUInt, 4}, {KindLong, 8}, {KindULong, 8}, {KindLongLong, 8},
		{KindULongLong, 8}, {KindFloat, 4}, {KindDouble, 8}, {KindLongDouble, 16}, {KindNullptr, 8},
	}
	for _, p := range prims {
		r.types = append(r.types, Type{Kind: p.k, Size: p.size, Align: p.size})
	}
	return r
}

func (r *Registry) intern(key string, t Type) TypeID {
	if id, ok := r.byKey[key]; ok {
		return id
	}
	r.types = append(r.types, t)
	id := TypeID(len(r.types) - 1)
	r.byKey[key] = id
	return id
}

// At returns the Type stored at id.
func (r *Registry) At(id TypeID) *Type { return &r.types[id] }

// Pointer interns and returns "pointer to elem".
func (r *Registry) Pointer(elem TypeID) TypeID {
	key := fmt.Sprintf("P%d", elem)
	return r.intern(key, Type{Kind: KindPointer, Elem: elem, Size: 8, Align: 8})
}

// LValueRef interns and returns "lvalue reference to elem".
func (r *Registry) LValueRef(elem TypeID) TypeID {
	key := fmt.Sprintf("R%d", elem)
	return r.intern(key, Type{Kind: KindLValueRef, Elem: elem, Size: 8, Align: 8})
}

// RValueRef interns and returns "rvalue reference to elem".
func (r *Registry) RValueRef(elem TypeID) TypeID {
	key := fmt.Sprintf("O%d", elem)
	return r.intern(key, Type{Kind: KindRValueRef, Elem: elem, Size: 8, Align: 8})
}

// CollapseRef implements reference collapsing (§4.6): T& & / T&& & / T& &&
// all collapse to T&, only T&& && collapses to T&&.
func (r *Registry) CollapseRef(outer, inner Kind) Kind {
	if outer == KindLValueRef || inner == KindLValueRef {
		return KindLValueRef
	}
	return KindRValueRef
}

// Array interns and returns "array of n elem" (n == -1 for unbounded).
func (r *Registry) Array(elem TypeID, n int64) TypeID {
	key := fmt.Sprintf("A%d_%d", elem, n)
	elemT := r.At(elem)
	size := int64(-1)
	if n >= 0 {
		size = n * elemT.Size
	}
	return r.intern(key, Type{Kind: KindArray, Elem: elem, ArrayLen: n, Size: size, Align: elemT.Align})
}

// Function interns and returns a function type.
func (r *Registry) Function(ret TypeID, params []TypeID, variadic bool) TypeID {
	key := fmt.Sprintf("F%d(", ret)
	for _, p := range params {
		key += fmt.Sprintf("%d,", p)
	}
	if variadic {
		key += "..."
	}
	key += ")"
	ps := append([]TypeID(nil), params...)
	return r.intern(key, Type{Kind: KindFunction, Elem: ret, Params: ps, Variadic: variadic, Size: 0, Align: 1})
}

// NewClass allocates a fresh (never deduplicated, since two distinct
// classes may share a spelling across scopes) incomplete class type.
func (r *Registry) NewClass(name string) TypeID {
	r.types = append(r.types, Type{Kind: KindClass, Name: name, Align: 1})
	return TypeID(len(r.types) - 1)
}

// Builtin returns the TypeID of the scalar New pre-populated for k. It
// panics if k does not name one of the scalar kinds New() interns, since
// callers only ever look up a builtin after already matching a spelling
// against the builtin-name table.
func (r *Registry) Builtin(k Kind) TypeID {
	for id, t := range r.types {
		if t.Kind == k {
			return TypeID(id)
		}
	}
	panic(fmt.Sprintf("types: %v is not a builtin scalar kind", k))
}

// rank implements the usual-arithmetic-conversions integer promotion
// order (§4.6): higher rank wins.
var rank = map[Kind]int{
	KindBool: 0, KindChar: 1, KindSChar: 1, KindUChar: 1,
	KindChar8: 1, KindChar16: 2, KindWChar: 2,
	KindShort: 2, KindUShort: 2, KindChar32: 3,
	KindInt: 3, KindUInt: 3, KindLong: 4, KindULong: 4,
	KindLongLong: 5, KindULongLong: 5,
}

func isUnsigned(k Kind) bool {
	switch k {
	case KindUChar, KindUShort, KindUInt, KindULong, KindULongLong, KindBool:
		return true
	}
	return false
}

func isFloating(k Kind) bool {
	switch k {
	case KindFloat, KindDouble, KindLongDouble:
		return true
	}
	return false
}

// UsualArithmeticConversion computes the common type of a and b per the
// C++ usual arithmetic conversion rules: floating beats integral (wider
// float wins among floats), otherwise promote-then-rank-then-unsigned.
func (r *Registry) UsualArithmeticConversion(a, b TypeID) TypeID {
	ta, tb := r.At(a).Kind, r.At(b).Kind
	if isFloating(ta) || isFloating(tb) {
		if !isFloating(ta) {
			return b
		}
		if !isFloating(tb) {
			return a
		}
		if floatRank(ta) >= floatRank(tb) {
			return a
		}
		return b
	}
	pa, pb := promote(ta), promote(tb)
	if rank[pa] == rank[pb] {
		if isUnsigned(pa) {
			return r.Builtin(pa)
		}
		return r.Builtin(pb)
	}
	if rank[pa] > rank[pb] {
		return r.Builtin(pa)
	}
	return r.Builtin(pb)
}

func floatRank(k Kind) int {
	switch k {
	case KindFloat:
		return 0
	case KindDouble:
		return 1
	case KindLongDouble:
		return 2
	}
	return -1
}

// promote applies integer promotion: anything with rank below int
// promotes to int (or unsigned int if it cannot fit).
func promote(k Kind) Kind {
	if rank[k] < rank[KindInt] {
		return KindInt
	}
	return k
}
