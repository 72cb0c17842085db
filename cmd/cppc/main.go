// Command cppc is the ahead-of-time C++20-subset compiler's entry point.
// Its run() shape mirrors the teacher's hhramberg-go-vslc/src/main.go:
// parse flags, read source, run the pipeline, flush output through the
// shared writer goroutine, and report a single aggregated exit code.
package main

import (
	"fmt"
	"os"
	"sync"

	"github.com/google/uuid"

	"cppc/internal/ast"
	"cppc/internal/codegen"
	"cppc/internal/diag"
	"cppc/internal/driver"
	"cppc/internal/ir"
	"cppc/internal/irgen"
	"cppc/internal/lexer"
	"cppc/internal/objfile"
	"cppc/internal/parser"
	"cppc/internal/preprocess"
	"cppc/internal/progress"
	"cppc/internal/sema"
	"cppc/internal/template"
	"cppc/internal/types"
)

func main() {
	os.Exit(run())
}

func run() int {
	opt, err := driver.ParseArgs()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	src, err := driver.ReadSource(opt)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	file := opt.Src
	if file == "" {
		file = "<stdin>"
	}

	pp := preprocess.New(nil, opt.Target.Macros)
	ppToks, err := pp.Run(file, src)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	sink := diag.NewSink()

	if opt.TokenStream {
		for _, t := range ppToks {
			fmt.Println(t.String())
		}
		return 0
	}

	toks, err := lexer.Tokenize(file, retokenize(ppToks))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	p := parser.New(toks)
	root, err := p.ParseTranslationUnit()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	if opt.DumpAST {
		dumpAST(p.Arena(), root, 0)
		return 0
	}

	reg := types.New()
	fns := lowerFunctions(p.Arena(), reg, root, sink)

	buildID := uuid.New().String()

	var reporter *progress.Reporter
	var reportFn func(string)
	if opt.Verbose {
		reporter = progress.Run(len(fns))
		reportFn = reporter.Report
	}

	results, err := codegen.CompileAll(opt, reg, fns, reportFn)
	if reporter != nil {
		reporter.Stop()
	}
	if err != nil {
		sink.Internalf(diag.Location{File: file}, "%v", err)
	}

	var out *os.File
	if opt.Out != "" {
		f, err := os.Create(opt.Out)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		defer f.Close()
		out = f
	}

	objBytes := assemble(opt, results, buildID)

	var wg sync.WaitGroup
	driver.ListenWrite(opt, out, &wg)
	writer := driver.NewWriter()
	writer.Write(objBytes)
	writer.Close()
	driver.CloseAll()
	wg.Wait()

	return sink.ExitCode()
}

// lowerFunctions walks the translation unit's top-level declarations,
// declares every template it finds into one per-TU template.Registry,
// then lowers every defined (non-declaration-only) function into IR via
// internal/irgen, instantiating any explicit-template-argument call
// reachable from it along the way (§4.4).
func lowerFunctions(arena *ast.Arena, reg *types.Registry, root ast.NodeID, sink *diag.Sink) []*ir.Function {
	if root == ast.InvalidID {
		return nil
	}
	resolver := sema.New(arena, reg)
	templates := template.New()
	for _, c := range arena.At(root).Children {
		declareTemplates(arena, c, templates)
	}
	var fns []*ir.Function
	for _, c := range arena.At(root).Children {
		collectFunctionDefs(arena, reg, resolver, templates, sink, c, &fns)
	}
	return fns
}

// declareTemplates registers every TemplateDecl reachable from id with
// templates, recursing into namespaces and class bodies the same way
// collectFunctionDefs does. A TemplateDecl's last child is the templated
// declaration itself (function or class); its own name and shape decide
// whether the template is a function or class template.
func declareTemplates(arena *ast.Arena, id ast.NodeID, templates *template.Registry) {
	if id == ast.InvalidID {
		return
	}
	n := arena.At(id)
	switch n.Kind {
	case ast.TemplateDecl:
		if len(n.Children) == 0 {
			return
		}
		params := n.Children[:len(n.Children)-1]
		body := n.Children[len(n.Children)-1]
		bodyNode := arena.At(body)
		kind := template.KindFunction
		if bodyNode.Kind == ast.ClassDef || bodyNode.Kind == ast.ClassDecl {
			kind = template.KindClass
		}
		def := &template.Definition{
			Name:   bodyNode.Text,
			Kind:   kind,
			Params: templateParams(arena, params),
			Body:   body,
			Arena:  arena,
		}
		if err := templates.Declare(def); err != nil {
			_ = err // a redeclared primary template is not reported: Declare keeps the first definition.
		}
	case ast.NamespaceDecl, ast.ClassDef:
		for _, c := range n.Children {
			declareTemplates(arena, c, templates)
		}
	}
}

func templateParams(arena *ast.Arena, ids []ast.NodeID) []template.Param {
	params := make([]template.Param, 0, len(ids))
	for _, id := range ids {
		n := arena.At(id)
		params = append(params, template.Param{
			Name:      n.Text,
			IsNonType: n.Kind == ast.ParamDecl,
			Pack:      n.Flags&ast.FlagVariadic != 0,
		})
	}
	return params
}

func collectFunctionDefs(arena *ast.Arena, reg *types.Registry, resolver *sema.Resolver, templates *template.Registry, sink *diag.Sink, id ast.NodeID, fns *[]*ir.Function) {
	if id == ast.InvalidID {
		return
	}
	n := arena.At(id)
	switch n.Kind {
	case ast.FunctionDef:
		instantiateTemplateCalls(arena, reg, resolver, templates, sink, id, fns)
		fn := &ir.Function{Name: n.Text, Mangled: n.Text, ReturnType: resolver.Resolve(n.Type)}
		fn.Blocks = append(fn.Blocks, ir.Block{Name: "entry"})
		b := ir.NewBuilder(fn)
		irgen.New(arena, reg, resolver, b, sink).GenFunction(id)
		*fns = append(*fns, fn)
	case ast.NamespaceDecl, ast.ClassDef:
		for _, c := range n.Children {
			collectFunctionDefs(arena, reg, resolver, templates, sink, c, fns)
		}
	}
}

// instantiateTemplateCalls finds every call whose callee carries an
// explicit template-argument list (f<int>(...), produced by
// parser.tryParseExplicitTemplateArgs), instantiates the named function
// template on first use, rewrites the call site's callee to the
// instantiation's mangled name, and recursively lowers the newly
// materialized body through collectFunctionDefs so it is compiled
// exactly like any other function. Only explicit template arguments
// drive instantiation here; deducing template arguments from an
// ordinary call's argument types is not done.
func instantiateTemplateCalls(arena *ast.Arena, reg *types.Registry, resolver *sema.Resolver, templates *template.Registry, sink *diag.Sink, id ast.NodeID, fns *[]*ir.Function) {
	ast.Walk(arena, id, func(_ ast.NodeID, n *ast.Node) {
		if n.Kind != ast.CallExpr || len(n.Children) == 0 {
			return
		}
		callee := arena.At(n.Children[0])
		if callee.Kind != ast.IdExpr || len(callee.Children) == 0 {
			return
		}
		def, ok := templates.Lookup(callee.Text)
		if !ok || def.Kind != template.KindFunction {
			return
		}
		deduced := template.Deduction{}
		spellings := make([]string, 0, len(callee.Children))
		for i, p := range def.Params {
			if i >= len(callee.Children) {
				break
			}
			deduced[p.Name] = callee.Children[i]
			spellings = append(spellings, typeSpelling(arena, callee.Children[i]))
		}
		root, cached, err := templates.Instantiate(def, arena, spellings, deduced)
		if err != nil {
			return
		}
		mangled := def.Name + "<" + joinSpellings(spellings) + ">"
		callee.Text = mangled
		callee.Children = nil
		if !cached {
			arena.At(root).Text = mangled
			collectFunctionDefs(arena, reg, resolver, templates, sink, root, fns)
		}
	})
}

func joinSpellings(ss []string) string {
	out := ""
	for i, s := range ss {
		if i > 0 {
			out += ", "
		}
		out += s
	}
	return out
}

// typeSpelling renders a TypeRef subtree's C++ spelling (e.g. "int",
// "Widget", "int*"), used both for instantiation cache keys and for the
// mangled name a template instantiation is rewritten to.
func typeSpelling(arena *ast.Arena, id ast.NodeID) string {
	if id == ast.InvalidID {
		return ""
	}
	n := arena.At(id)
	switch n.Text {
	case "*", "&", "&&":
		return typeSpelling(arena, n.Children[0]) + n.Text
	}
	s := n.Text
	if len(n.Children) > 0 {
		s += "<"
		for i, c := range n.Children {
			if i > 0 {
				s += ", "
			}
			s += typeSpelling(arena, c)
		}
		s += ">"
	}
	return s
}

// assemble lays out every compiled function's code into a single .text
// section, records one symbol per function, translates internal/codegen's
// target-neutral relocations into the object format's own relocation
// kinds, and drives the target's debug-info builder across the same
// offsets, then serializes the whole object.
func assemble(opt driver.Options, results []codegen.Result, buildID string) []byte {
	var text []byte
	offsets := make([]int, len(results))
	for i, r := range results {
		offsets[i] = len(text)
		text = append(text, r.Code...)
	}

	if opt.Target.Format == driver.ELF {
		w := objfile.NewElfWriter()
		w.Debug.SetBuildID(buildID)
		w.AddSection(objfile.ElfSection{Name: ".text", Type: objfile.ShtProgbits, Flags: objfile.ShfAlloc | objfile.ShfExecinstr, Data: text, Align: 16})
		for i, r := range results {
			w.Debug.SetCurrentFunctionForDebug(r.Name, uint64(offsets[i]))
			for _, ln := range r.Lines {
				w.Debug.AddLineMapping(uint64(offsets[i]+ln.Offset), ln.File, ln.Line, ln.Col)
			}
			w.Debug.UpdateFunctionLength(uint64(len(r.Code)))
			w.Debug.FinalizeDebugInfo()

			w.AddSymbol(objfile.ElfSymbol{Name: r.Name, Value: uint64(offsets[i]), Size: uint64(len(r.Code)), Info: (objfile.StbGlobal << 4) | objfile.SttFunc, Shndx: 1})
			for _, rel := range r.Relocs {
				w.AddRela(".text", objfile.ElfRela{Offset: uint64(offsets[i] + rel.Offset), Type: relocKindELF(rel.Kind)})
			}
		}
		info, abbrev, line := w.Debug.BuildSections()
		w.AddSection(objfile.ElfSection{Name: ".debug_info", Type: objfile.ShtProgbits, Data: info, Align: 1})
		w.AddSection(objfile.ElfSection{Name: ".debug_abbrev", Type: objfile.ShtProgbits, Data: abbrev, Align: 1})
		w.AddSection(objfile.ElfSection{Name: ".debug_line", Type: objfile.ShtProgbits, Data: line, Align: 1})
		return w.Write()
	}

	w := objfile.NewCoffWriter()
	w.Debug.SetBuildID(buildID)
	sec := objfile.CoffSection{Name: ".text$mn", Data: text}
	for i, r := range results {
		w.Debug.SetCurrentFunctionForDebug(r.Name, uint64(offsets[i]))
		for _, ln := range r.Lines {
			w.Debug.AddLineMapping(uint64(offsets[i]+ln.Offset), ln.File, ln.Line, ln.Col)
		}
		w.Debug.UpdateFunctionLength(uint64(len(r.Code)))
		w.Debug.FinalizeDebugInfo()
		for _, rel := range r.Relocs {
			sec.Relocs = append(sec.Relocs, objfile.CoffReloc{Offset: uint32(offsets[i] + rel.Offset), Type: relocKindCOFF(rel.Kind)})
		}
	}
	w.AddSection(sec)
	for i, r := range results {
		w.AddSymbol(objfile.CoffSymbol{Name: r.Name, Value: uint32(offsets[i]), SectionNum: 1})
	}
	debugS, debugT := w.Debug.BuildSections()
	w.AddSection(objfile.CoffSection{Name: ".debug$S", Data: debugS})
	w.AddSection(objfile.CoffSection{Name: ".debug$T", Data: debugT})
	return w.Write()
}

func relocKindELF(k codegen.RelocKind) uint32 {
	if k == codegen.RelocAbs64 {
		return objfile.RX8664_64
	}
	return objfile.RX8664PLT32
}

func relocKindCOFF(k codegen.RelocKind) uint16 {
	if k == codegen.RelocAbs64 {
		return 0x0001 // IMAGE_REL_AMD64_ADDR64
	}
	return 0x0004 // IMAGE_REL_AMD64_REL32
}

// retokenize re-flattens a preprocessed token slice back into source text
// (each token's spelling followed by one space), which run re-lexes
// before parsing; positions in the parser's tokens therefore refer to
// this flattened text, not to the original source. The -ts dump prints
// the preprocessed tokens directly and does not go through here.
func retokenize(toks []lexer.Token) string {
	var sb []byte
	for _, t := range toks {
		sb = append(sb, []byte(t.Text)...)
		sb = append(sb, ' ')
	}
	return string(sb)
}

func dumpAST(arena *ast.Arena, n ast.NodeID, depth int) {
	if n == ast.InvalidID {
		return
	}
	node := arena.At(n)
	for i := 0; i < depth; i++ {
		fmt.Print("  ")
	}
	fmt.Printf("%d %s\n", node.Kind, node.Text)
	for _, c := range node.Children {
		dumpAST(arena, c, depth+1)
	}
}
