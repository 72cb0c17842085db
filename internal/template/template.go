// Package template implements class/function template registration,
// partial-specialization matching and partial ordering, SFINAE-aware
// substitution, and lazy member instantiation (§4.4, §13).
package template

import (
	"fmt"

	"cppc/internal/ast"
	"cppc/internal/stack"
	"cppc/internal/strtab"
)

// Kind distinguishes a class template from a function template.
type Kind int

const (
	KindClass Kind = iota
	KindFunction
)

// Param is one template parameter: a type parameter, a non-type
// parameter, or a template-template parameter.
type Param struct {
	Name       string
	IsNonType  bool
	IsTemplate bool
	Pack       bool
}

// Definition is one primary template or one of its partial specializations.
type Definition struct {
	Name      string
	Kind      Kind
	Params    []Param
	Args      []ast.NodeID // Specialization argument patterns; empty for the primary.
	Body      ast.NodeID
	Arena     *ast.Arena
	IsPartial bool
}

// Registry holds every template declared in one translation unit and
// caches completed instantiations by canonical argument key.
type Registry struct {
	primaries map[string]*Definition
	partials  map[string][]*Definition
	strs      *strtab.Table
	cache     map[strtab.Handle]ast.NodeID
	lazy      *LazyMemberRegistry
	// path guards against infinite instantiation recursion (a template
	// instantiating itself with the same arguments), mirroring the
	// teacher's Stack-based nesting guards in util/stack.go.
	path *stack.Stack
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{
		primaries: make(map[string]*Definition),
		partials:  make(map[string][]*Definition),
		strs:      strtab.New(),
		cache:     make(map[strtab.Handle]ast.NodeID),
		lazy:      NewLazyMemberRegistry(),
		path:      &stack.Stack{},
	}
}

// Declare registers def as a primary template or a partial specialization.
func (r *Registry) Declare(def *Definition) error {
	if def.IsPartial {
		r.partials[def.Name] = append(r.partials[def.Name], def)
		return nil
	}
	if _, exists := r.primaries[def.Name]; exists {
		return fmt.Errorf("redefinition of template %q", def.Name)
	}
	r.primaries[def.Name] = def
	return nil
}

// Lookup returns the primary template named name, if one was declared.
func (r *Registry) Lookup(name string) (*Definition, bool) {
	d, ok := r.primaries[name]
	return d, ok
}

// Partials returns the partial specializations declared for name, if any.
func (r *Registry) Partials(name string) []*Definition {
	return r.partials[name]
}

// instKey builds the canonical (template name, argument spelling) cache
// key, interned through the shared string table so repeated
// instantiations hash-compare in O(1).
func (r *Registry) instKey(name string, argSpellings []string) strtab.Handle {
	b := strtab.NewBuilder(r.strs)
	b.Append(name)
	for _, a := range argSpellings {
		b.Append("|")
		b.Append(a)
	}
	return b.Commit()
}

// SubstitutionFailure marks a failed substitution as "not an error" for
// SFINAE purposes, distinguishing it from a HardError that aborts
// compilation regardless of candidate-selection context (§4.4).
type SubstitutionFailure struct{ Reason string }

func (e *SubstitutionFailure) Error() string { return e.Reason }

// HardError marks a substitution failure that occurs outside the
// "immediate context" of signature substitution (e.g. inside a function
// body), and therefore cannot be silently discarded under SFINAE.
type HardError struct{ Reason string }

func (e *HardError) Error() string { return e.Reason }

// Candidate is one template considered for a given instantiation request.
type Candidate struct {
	Def *Definition
}

// Deduction maps a template parameter name to the concrete TypeRef node
// bound to it, either by explicit template arguments at a call site or
// by Unify matching a pattern against a concrete argument.
type Deduction map[string]ast.NodeID

// Unify attempts to match pattern (a TypeRef subtree that may mention a
// name in params) against the concrete TypeRef arg, recording any new
// bindings into out. It implements §4.4 item 2's deduction rule: a bare
// parameter binds directly ("T" against "int" deduces T=int), and a
// pointer/reference wrapper requires the same wrapper on both sides
// before recursing into the wrapped element ("T&" deduces T=int against
// "int&", "T*" deduces T=int against "int*"). A parameter bound more
// than once must agree with its earlier binding (same spelling) or
// unification fails.
func Unify(arena *ast.Arena, params map[string]bool, pattern, arg ast.NodeID, out Deduction) bool {
	if pattern == ast.InvalidID || arg == ast.InvalidID {
		return pattern == arg
	}
	p := arena.At(pattern)
	if params[p.Text] && len(p.Children) == 0 {
		if bound, ok := out[p.Text]; ok {
			return sameSpelling(arena, bound, arg)
		}
		out[p.Text] = arg
		return true
	}
	a := arena.At(arg)
	if p.Text != a.Text || len(p.Children) != len(a.Children) {
		return false
	}
	for i := range p.Children {
		if !Unify(arena, params, p.Children[i], a.Children[i], out) {
			return false
		}
	}
	return true
}

// sameSpelling reports whether two TypeRef subtrees name the same type,
// structurally, without resolving either side through internal/sema.
func sameSpelling(arena *ast.Arena, a, b ast.NodeID) bool {
	if a == ast.InvalidID || b == ast.InvalidID {
		return a == b
	}
	na, nb := arena.At(a), arena.At(b)
	if na.Text != nb.Text || len(na.Children) != len(nb.Children) {
		return false
	}
	for i := range na.Children {
		if !sameSpelling(arena, na.Children[i], nb.Children[i]) {
			return false
		}
	}
	return true
}

func paramSet(def *Definition) map[string]bool {
	m := make(map[string]bool, len(def.Params))
	for _, p := range def.Params {
		m[p.Name] = true
	}
	return m
}

// moreSpecialized reports whether a is at least as specialized as b, per
// partial ordering's synthesized-argument test (§4.4 item 2): b's
// parameters are treated as free variables and its argument patterns as
// the "pattern" side, matched against a's own argument patterns as the
// concrete side. a is at least as specialized as b exactly when every
// one of b's argument patterns unifies against the corresponding
// argument pattern of a.
func moreSpecialized(arena *ast.Arena, a, b *Definition) bool {
	if len(b.Args) > len(a.Args) {
		return false
	}
	bParams := paramSet(b)
	for i := range b.Args {
		if !Unify(arena, bParams, b.Args[i], a.Args[i], Deduction{}) {
			return false
		}
	}
	return true
}

// SelectPartial picks the best-matching partial specialization among
// matches using real pattern-vs-argument unification (moreSpecialized),
// not argument/parameter counting. Ties are a hard diagnostic per
// §14.1's resolution (no ad hoc tie-breaking for non-type parameters).
func SelectPartial(arena *ast.Arena, matches []*Definition) (*Definition, error) {
	if len(matches) == 0 {
		return nil, nil
	}
	if len(matches) == 1 {
		return matches[0], nil
	}
	best := matches[0]
	for _, m := range matches[1:] {
		if moreSpecialized(arena, m, best) && !moreSpecialized(arena, best, m) {
			best = m
		}
	}
	for _, m := range matches {
		if m == best {
			continue
		}
		if !moreSpecialized(arena, best, m) || moreSpecialized(arena, m, best) {
			return nil, fmt.Errorf("ambiguous partial specialization of %q: no specialization is more specialized than all others", best.Name)
		}
	}
	return best, nil
}

// Instantiate materializes def's body for the given argument spellings,
// substituting deduced's bindings for the generic definition's type
// parameters and cloning the rest of the AST into dst so the
// instantiation owns its own nodes (§3's "no shared subtrees"). Returns
// the cached root and cached=true if this exact (template, arguments)
// pair was already instantiated.
func (r *Registry) Instantiate(def *Definition, dst *ast.Arena, argSpellings []string, deduced Deduction) (root ast.NodeID, cached bool, err error) {
	key := r.instKey(def.Name, argSpellings)
	if root, ok := r.cache[key]; ok {
		return root, true, nil
	}

	sig := fmt.Sprintf("%s<%v>", def.Name, argSpellings)
	if r.path.Contains(func(e interface{}) bool { return e.(string) == sig }) {
		return ast.InvalidID, false, &HardError{Reason: fmt.Sprintf("infinite recursion instantiating %s", sig)}
	}
	r.path.Push(sig)
	defer r.path.Pop()

	root = substClone(dst, def.Arena, def.Body, deduced)
	r.cache[key] = root
	return root, false, nil
}

// substClone deep-copies the subtree rooted at id from src into dst,
// except that a bare TypeRef leaf (no template arguments of its own)
// whose spelling names one of deduced's keys is replaced by a fresh copy
// of the deduced argument subtree, rather than copied verbatim. deduced's
// nodes are assumed to already live in dst (they come from the call
// site's own explicit template-argument list, parsed into the same per-TU
// arena).
func substClone(dst, src *ast.Arena, id ast.NodeID, deduced Deduction) ast.NodeID {
	if id == ast.InvalidID {
		return ast.InvalidID
	}
	n := *src.At(id)
	if n.Kind == ast.TypeRef && len(n.Children) == 0 {
		if repl, ok := deduced[n.Text]; ok {
			return substClone(dst, dst, repl, nil)
		}
	}
	children := make([]ast.NodeID, len(n.Children))
	for i, c := range n.Children {
		children[i] = substClone(dst, src, c, deduced)
	}
	n.Children = children
	n.Type = substClone(dst, src, n.Type, deduced)
	return dst.Add(n)
}

// SplitInstantiationName recovers the bare template name and the raw
// argument-list text from a fully-written instantiation spelling such as
// "std::vector<std::pair<int, int>>", per §13's two-phase heuristic
// (forward search of the prefixes that end before the first '<', longest
// first, against known template names, then right-to-left suffix
// stripping of the trailing '<...>').
// Ported from the behavior of original_source's name-resolution pass
// since the distilled spec leaves the exact algorithm unspecified.
func (r *Registry) SplitInstantiationName(spelling string) (name string, args string, ok bool) {
	lt := indexByte(spelling, '<')
	if lt < 0 {
		return "", "", false
	}
	// Phase 1: try prefixes ending at or before the first '<', longest
	// first, so the longest recognized template name wins (handles qualified
	// names like "outer::inner<T>" where "outer" alone is not a template).
	for end := lt; end > 0; end-- {
		candidate := spelling[:end]
		if _, ok := r.primaries[candidate]; ok {
			if spelling[len(spelling)-1] != '>' {
				return "", "", false
			}
			return candidate, spelling[end+1 : len(spelling)-1], true
		}
	}
	// Phase 2: fall back to right-to-left suffix stripping: the name is
	// everything before the first '<', regardless of registry membership
	// (used during parsing, before every template is necessarily declared).
	if spelling[len(spelling)-1] != '>' {
		return "", "", false
	}
	return spelling[:lt], spelling[lt+1 : len(spelling)-1], true
}

func indexByte(s string, b byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == b {
			return i
		}
	}
	return -1
}

// LazyMemberRegistry tracks which member functions of which class
// template instantiations have actually been instantiated, implementing
// §13's lazy-instantiation rule: instantiating a class template does not
// instantiate its member function bodies until first use. Keys are
// normalized by stripping the leading "::" qualifier (if any) and joining
// as "class::member", per original_source's TemplateRegistry_Lazy.cpp.
type LazyMemberRegistry struct {
	done map[string]bool
}

func NewLazyMemberRegistry() *LazyMemberRegistry {
	return &LazyMemberRegistry{done: make(map[string]bool)}
}

func normalizeKey(class, member string) string {
	for len(class) > 0 && class[0] == ':' {
		class = class[1:]
	}
	return class + "::" + member
}

// MarkUsed records that member has been referenced and must have its body
// instantiated; returns true if this is the first such reference.
func (l *LazyMemberRegistry) MarkUsed(class, member string) bool {
	key := normalizeKey(class, member)
	if l.done[key] {
		return false
	}
	l.done[key] = true
	return true
}
