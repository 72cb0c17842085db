// Package preprocess implements the translation-phase-4 text substitution
// pipeline of §4.1: #include, #define/#undef, conditional inclusion,
// #pragma once and #error/#warning. Function-like and variadic #defines
// are parsed and recorded but never expanded (their names pass through
// unchanged), and #line is accepted and ignored. It re-lexes its output through internal/lexer rather than doing
// its own character-level scanning, since the token grammar (maximal
// munch, alternative tokens, raw strings) is identical at this phase.
package preprocess

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"cppc/internal/lexer"
)

// Macro is a single #define'd name.
type Macro struct {
	Name       string
	IsFunction bool
	Params     []string
	Variadic   bool
	Body       []lexer.Token
}

// Preprocessor owns macro definitions and include-once state for one
// translation unit; the conditional-inclusion stack is local to each Run.
type Preprocessor struct {
	macros      map[string]Macro
	includeDirs []string
	onceFiles   map[string]bool
	diskRead    func(string) (string, error)
	expanding   map[string]bool // blue-painting guard (§4.1 "self-referential macros").
}

// New creates a Preprocessor seeded with the predefined macro set (name
// to replacement text, each defined as if by #define; mirrors
// SPEC_FULL.md §6's __cplusplus / __cpp_lib_* / __SIZE_TYPE__).
func New(includeDirs []string, predefined map[string]string) *Preprocessor {
	p := &Preprocessor{
		macros:      make(map[string]Macro),
		includeDirs: includeDirs,
		onceFiles:   make(map[string]bool),
		diskRead:    func(path string) (string, error) { b, err := os.ReadFile(path); return string(b), err },
		expanding:   make(map[string]bool),
	}
	for name, val := range predefined {
		if err := p.define(name+" "+val, "<predefined>"); err != nil {
			p.macros[name] = Macro{Name: name, Body: []lexer.Token{{Kind: lexer.StringLiteral, Text: val}}}
		}
	}
	return p
}

type condState struct {
	taken     bool // true once any branch of this #if/#elif chain has been active.
	active    bool // true if the current branch is emitting text.
	parentOK  bool // true if every enclosing conditional is itself active.
	sawElse   bool
}

// Run expands file's contents (already read into src) to a flat token
// stream, following #include directives relative to includeDirs.
func (p *Preprocessor) Run(file, src string) ([]lexer.Token, error) {
	lines := splitLines(src)
	var out []lexer.Token
	var stack []condState
	parentOK := func() bool {
		for _, c := range stack {
			if !c.active {
				return false
			}
		}
		return true
	}

	lineNo := 0
	for lineNo < len(lines) {
		line := lines[lineNo]
		lineNo++
		trimmed := strings.TrimSpace(line)

		if strings.HasPrefix(trimmed, "#") {
			directive := strings.TrimSpace(trimmed[1:])
			switch {
			case directive == "" :
				continue
			case hasWord(directive, "ifdef"):
				name := strings.TrimSpace(strings.TrimPrefix(directive, "ifdef"))
				_, ok := p.macros[name]
				stack = append(stack, condState{active: ok && parentOK(), taken: ok})
				continue
			case hasWord(directive, "ifndef"):
				name := strings.TrimSpace(strings.TrimPrefix(directive, "ifndef"))
				_, ok := p.macros[name]
				stack = append(stack, condState{active: !ok && parentOK(), taken: !ok})
				continue
			case hasWord(directive, "if"):
				expr := strings.TrimSpace(strings.TrimPrefix(directive, "if"))
				v, err := p.evalCondition(file, lineNo, expr)
				if err != nil {
					return nil, err
				}
				stack = append(stack, condState{active: v != 0 && parentOK(), taken: v != 0})
				continue
			case hasWord(directive, "elif"):
				if len(stack) == 0 {
					return nil, fmt.Errorf("%s:%d: #elif without #if", file, lineNo)
				}
				top := &stack[len(stack)-1]
				if top.taken || top.sawElse {
					top.active = false
					continue
				}
				expr := strings.TrimSpace(strings.TrimPrefix(directive, "elif"))
				v, err := p.evalCondition(file, lineNo, expr)
				if err != nil {
					return nil, err
				}
				outerOK := true
				for _, c := range stack[:len(stack)-1] {
					if !c.active {
						outerOK = false
					}
				}
				top.active = v != 0 && outerOK
				top.taken = top.taken || v != 0
				continue
			case directive == "else":
				if len(stack) == 0 {
					return nil, fmt.Errorf("%s:%d: #else without #if", file, lineNo)
				}
				top := &stack[len(stack)-1]
				outerOK := true
				for _, c := range stack[:len(stack)-1] {
					if !c.active {
						outerOK = false
					}
				}
				top.active = !top.taken && outerOK
				top.taken = true
				top.sawElse = true
				continue
			case directive == "endif":
				if len(stack) == 0 {
					return nil, fmt.Errorf("%s:%d: #endif without #if", file, lineNo)
				}
				stack = stack[:len(stack)-1]
				continue
			}

			if !parentOK() {
				continue
			}

			switch {
			case hasWord(directive, "include"):
				path, err := p.resolveInclude(file, directive)
				if err != nil {
					return nil, err
				}
				if p.onceFiles[path] {
					continue
				}
				text, err := p.diskRead(path)
				if err != nil {
					return nil, fmt.Errorf("%s:%d: %w", file, lineNo, err)
				}
				sub, err := p.Run(path, text)
				if err != nil {
					return nil, err
				}
				out = append(out, sub...)
				continue
			case directive == "pragma once":
				p.onceFiles[file] = true
				continue
			case hasWord(directive, "define"):
				if err := p.define(strings.TrimSpace(strings.TrimPrefix(directive, "define")), file); err != nil {
					return nil, err
				}
				continue
			case hasWord(directive, "undef"):
				name := strings.TrimSpace(strings.TrimPrefix(directive, "undef"))
				delete(p.macros, name)
				continue
			case hasWord(directive, "error"):
				return nil, fmt.Errorf("%s:%d: #error %s", file, lineNo, strings.TrimPrefix(directive, "error"))
			case hasWord(directive, "warning"):
				fmt.Fprintf(os.Stderr, "%s:%d: warning: %s\n", file, lineNo, strings.TrimPrefix(directive, "warning"))
				continue
			case hasWord(directive, "line"):
				continue // #line accepted but source-position remapping is not modeled.
			case hasWord(directive, "pragma"):
				continue // other #pragma forms pass through silently.
			default:
				return nil, fmt.Errorf("%s:%d: unknown preprocessing directive %q", file, lineNo, directive)
			}
		}

		if !parentOK() {
			continue
		}

		toks, err := lexer.Tokenize(file, line+"\n")
		if err != nil {
			return nil, err
		}
		for _, t := range toks {
			if t.Kind == lexer.EOF {
				continue
			}
			t.Line = lineNo
			expanded, err := p.expand(t, toks, file, lineNo)
			if err != nil {
				return nil, err
			}
			out = append(out, expanded...)
		}
	}
	if len(stack) != 0 {
		return nil, fmt.Errorf("%s: unterminated #if", file)
	}
	return out, nil
}

func hasWord(directive, word string) bool {
	if !strings.HasPrefix(directive, word) {
		return false
	}
	rest := directive[len(word):]
	return rest == "" || rest[0] == ' ' || rest[0] == '\t' || rest[0] == '('
}

func splitLines(src string) []string {
	return strings.Split(strings.ReplaceAll(src, "\r\n", "\n"), "\n")
}

func (p *Preprocessor) resolveInclude(file, directive string) (string, error) {
	rest := strings.TrimSpace(strings.TrimPrefix(directive, "include"))
	var name string
	var quoted bool
	switch {
	case strings.HasPrefix(rest, "\"") && strings.HasSuffix(rest, "\""):
		name = rest[1 : len(rest)-1]
		quoted = true
	case strings.HasPrefix(rest, "<") && strings.HasSuffix(rest, ">"):
		name = rest[1 : len(rest)-1]
	default:
		return "", fmt.Errorf("malformed #include directive: %s", directive)
	}

	if quoted {
		candidate := filepath.Join(filepath.Dir(file), name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	// Large projects can carry dozens of -I directories; stat them
	// concurrently rather than one at a time, but keep the directory
	// list's priority order by indexing results instead of racing on a
	// single "first one wins" channel.
	results := make([]string, len(p.includeDirs))
	var g errgroup.Group
	for i, dir := range p.includeDirs {
		i, dir := i, dir
		g.Go(func() error {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err == nil {
				results[i] = candidate
			}
			return nil
		})
	}
	_ = g.Wait()
	for _, r := range results {
		if r != "" {
			return r, nil
		}
	}
	return "", fmt.Errorf("cannot find include file %q", name)
}

// define parses the remainder of a #define directive (name, optional
// parameter list, and replacement list) per §4.1.
func (p *Preprocessor) define(rest, file string) error {
	i := 0
	for i < len(rest) && (isIdentRune(rune(rest[i]))) {
		i++
	}
	name := rest[:i]
	if name == "" {
		return fmt.Errorf("%s: #define with no name", file)
	}

	m := Macro{Name: name}
	if i < len(rest) && rest[i] == '(' {
		m.IsFunction = true
		end := strings.IndexByte(rest[i:], ')')
		if end < 0 {
			return fmt.Errorf("%s: #define %s: malformed parameter list", file, name)
		}
		paramList := rest[i+1 : i+end]
		i = i + end + 1
		for _, raw := range strings.Split(paramList, ",") {
			param := strings.TrimSpace(raw)
			if param == "" {
				continue
			}
			if param == "..." {
				m.Variadic = true
				continue
			}
			m.Params = append(m.Params, param)
		}
	}
	body := strings.TrimSpace(rest[i:])
	if body != "" {
		toks, err := lexer.Tokenize(file, body)
		if err != nil {
			return err
		}
		for _, t := range toks {
			if t.Kind != lexer.EOF {
				m.Body = append(m.Body, t)
			}
		}
	}
	p.macros[name] = m
	return nil
}

func isIdentRune(r rune) bool {
	return r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

// expand replaces t with its macro expansion if t is an identifier naming
// a currently-defined object-like macro, leaving "defined" and
// self-references (blue-painting) unexpanded per §4.1. A function-like
// macro's name is always returned unexpanded.
func (p *Preprocessor) expand(t lexer.Token, line []lexer.Token, file string, lineNo int) ([]lexer.Token, error) {
	if t.Kind != lexer.Identifier {
		return []lexer.Token{t}, nil
	}
	if t.Text == "defined" {
		return []lexer.Token{t}, nil
	}
	m, ok := p.macros[t.Text]
	if !ok || p.expanding[t.Text] {
		return []lexer.Token{t}, nil
	}
	if m.IsFunction {
		// Function-like macro invocations are not expanded: the identifier
		// passes through unchanged whether or not a '(' follows it.
		return []lexer.Token{t}, nil
	}

	p.expanding[t.Text] = true
	defer delete(p.expanding, t.Text)

	var out []lexer.Token
	for _, bt := range m.Body {
		sub, err := p.expand(bt, nil, file, lineNo)
		if err != nil {
			return nil, err
		}
		out = append(out, sub...)
	}
	return out, nil
}

// evalCondition evaluates a #if/#elif controlling expression as signed
// 64-bit arithmetic over integer literals, defined(X), and already-defined
// object-like macros, per §4.1's "64-bit arithmetic, division by zero is a
// diagnostic" rule.
func (p *Preprocessor) evalCondition(file string, line int, expr string) (int64, error) {
	toks, err := lexer.Tokenize(file, expr)
	if err != nil {
		return 0, err
	}
	var filtered []lexer.Token
	for i := 0; i < len(toks); i++ {
		t := toks[i]
		if t.Kind == lexer.EOF {
			continue
		}
		if t.Kind == lexer.Identifier && t.Text == "defined" {
			// defined X or defined(X)
			j := i + 1
			paren := false
			if j < len(toks) && toks[j].Kind == lexer.LParen {
				paren = true
				j++
			}
			if j >= len(toks) || toks[j].Kind != lexer.Identifier {
				return 0, fmt.Errorf("%s:%d: malformed defined(...) operator", file, line)
			}
			name := toks[j].Text
			_, defd := p.macros[name]
			filtered = append(filtered, lexer.Token{Kind: lexer.IntegerLiteral, IntValue: boolU64(defd)})
			j++
			if paren {
				if j >= len(toks) || toks[j].Kind != lexer.RParen {
					return 0, fmt.Errorf("%s:%d: malformed defined(...) operator", file, line)
				}
				j++
			}
			i = j - 1
			continue
		}
		if t.Kind == lexer.Identifier {
			if mac, ok := p.macros[t.Text]; ok && !mac.IsFunction && len(mac.Body) == 1 && mac.Body[0].Kind == lexer.IntegerLiteral {
				filtered = append(filtered, mac.Body[0])
				continue
			}
			// Undefined identifiers evaluate to 0 (standard preprocessor rule).
			filtered = append(filtered, lexer.Token{Kind: lexer.IntegerLiteral, IntValue: 0})
			continue
		}
		filtered = append(filtered, t)
	}
	ev := &condEval{toks: filtered, file: file, line: line}
	v, err := ev.parseExpr()
	if err != nil {
		return 0, err
	}
	if ev.pos != len(ev.toks) {
		return 0, fmt.Errorf("%s:%d: malformed #if expression", file, line)
	}
	return v, nil
}

func boolU64(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

// condEval is a small recursive-descent evaluator for #if's integer
// constant expression grammar (||, &&, bitwise, equality, relational,
// shift, additive, multiplicative, unary, primary).
type condEval struct {
	toks []lexer.Token
	pos  int
	file string
	line int
}

func (e *condEval) peek() lexer.Token {
	if e.pos >= len(e.toks) {
		return lexer.Token{Kind: lexer.EOF}
	}
	return e.toks[e.pos]
}

func (e *condEval) next() lexer.Token {
	t := e.peek()
	e.pos++
	return t
}

func (e *condEval) parseExpr() (int64, error) { return e.parseOr() }

func (e *condEval) parseOr() (int64, error) {
	v, err := e.parseAnd()
	if err != nil {
		return 0, err
	}
	for e.peek().Kind == lexer.PipePipe {
		e.next()
		rhs, err := e.parseAnd()
		if err != nil {
			return 0, err
		}
		if v != 0 || rhs != 0 {
			v = 1
		} else {
			v = 0
		}
	}
	return v, nil
}

func (e *condEval) parseAnd() (int64, error) {
	v, err := e.parseBitOr()
	if err != nil {
		return 0, err
	}
	for e.peek().Kind == lexer.AmpAmp {
		e.next()
		rhs, err := e.parseBitOr()
		if err != nil {
			return 0, err
		}
		if v != 0 && rhs != 0 {
			v = 1
		} else {
			v = 0
		}
	}
	return v, nil
}

func (e *condEval) parseBitOr() (int64, error) {
	v, err := e.parseBitXor()
	if err != nil {
		return 0, err
	}
	for e.peek().Kind == lexer.Pipe {
		e.next()
		rhs, err := e.parseBitXor()
		if err != nil {
			return 0, err
		}
		v |= rhs
	}
	return v, nil
}

func (e *condEval) parseBitXor() (int64, error) {
	v, err := e.parseBitAnd()
	if err != nil {
		return 0, err
	}
	for e.peek().Kind == lexer.Caret {
		e.next()
		rhs, err := e.parseBitAnd()
		if err != nil {
			return 0, err
		}
		v ^= rhs
	}
	return v, nil
}

func (e *condEval) parseBitAnd() (int64, error) {
	v, err := e.parseEquality()
	if err != nil {
		return 0, err
	}
	for e.peek().Kind == lexer.Amp {
		e.next()
		rhs, err := e.parseEquality()
		if err != nil {
			return 0, err
		}
		v &= rhs
	}
	return v, nil
}

func (e *condEval) parseEquality() (int64, error) {
	v, err := e.parseRelational()
	if err != nil {
		return 0, err
	}
	for e.peek().Kind == lexer.Eq || e.peek().Kind == lexer.Neq {
		op := e.next().Kind
		rhs, err := e.parseRelational()
		if err != nil {
			return 0, err
		}
		if (op == lexer.Eq) == (v == rhs) {
			v = 1
		} else {
			v = 0
		}
	}
	return v, nil
}

func (e *condEval) parseRelational() (int64, error) {
	v, err := e.parseShift()
	if err != nil {
		return 0, err
	}
	for {
		k := e.peek().Kind
		if k != lexer.Lt && k != lexer.Gt && k != lexer.Le && k != lexer.Ge {
			break
		}
		e.next()
		rhs, err := e.parseShift()
		if err != nil {
			return 0, err
		}
		var res bool
		switch k {
		case lexer.Lt:
			res = v < rhs
		case lexer.Gt:
			res = v > rhs
		case lexer.Le:
			res = v <= rhs
		case lexer.Ge:
			res = v >= rhs
		}
		v = boolI64(res)
	}
	return v, nil
}

func (e *condEval) parseShift() (int64, error) {
	v, err := e.parseAdditive()
	if err != nil {
		return 0, err
	}
	for e.peek().Kind == lexer.LShift || e.peek().Kind == lexer.RShift {
		op := e.next().Kind
		rhs, err := e.parseAdditive()
		if err != nil {
			return 0, err
		}
		if op == lexer.LShift {
			v <<= uint(rhs)
		} else {
			v >>= uint(rhs)
		}
	}
	return v, nil
}

func (e *condEval) parseAdditive() (int64, error) {
	v, err := e.parseMultiplicative()
	if err != nil {
		return 0, err
	}
	for e.peek().Kind == lexer.Plus || e.peek().Kind == lexer.Minus {
		op := e.next().Kind
		rhs, err := e.parseMultiplicative()
		if err != nil {
			return 0, err
		}
		if op == lexer.Plus {
			v += rhs
		} else {
			v -= rhs
		}
	}
	return v, nil
}

func (e *condEval) parseMultiplicative() (int64, error) {
	v, err := e.parseUnary()
	if err != nil {
		return 0, err
	}
	for e.peek().Kind == lexer.Star || e.peek().Kind == lexer.Slash || e.peek().Kind == lexer.Percent {
		op := e.next().Kind
		rhs, err := e.parseUnary()
		if err != nil {
			return 0, err
		}
		if (op == lexer.Slash || op == lexer.Percent) && rhs == 0 {
			return 0, fmt.Errorf("%s:%d: division by zero in #if expression", e.file, e.line)
		}
		switch op {
		case lexer.Star:
			v *= rhs
		case lexer.Slash:
			v /= rhs
		case lexer.Percent:
			v %= rhs
		}
	}
	return v, nil
}

func (e *condEval) parseUnary() (int64, error) {
	switch e.peek().Kind {
	case lexer.Minus:
		e.next()
		v, err := e.parseUnary()
		return -v, err
	case lexer.Bang:
		e.next()
		v, err := e.parseUnary()
		if err != nil {
			return 0, err
		}
		return boolI64(v == 0), nil
	case lexer.Tilde:
		e.next()
		v, err := e.parseUnary()
		return ^v, err
	}
	return e.parsePrimary()
}

func (e *condEval) parsePrimary() (int64, error) {
	t := e.next()
	switch t.Kind {
	case lexer.IntegerLiteral:
		return int64(t.IntValue), nil
	case lexer.LParen:
		v, err := e.parseExpr()
		if err != nil {
			return 0, err
		}
		if e.peek().Kind != lexer.RParen {
			return 0, fmt.Errorf("%s:%d: expected ')' in #if expression", e.file, e.line)
		}
		e.next()
		return v, nil
	default:
		return 0, fmt.Errorf("%s:%d: unexpected token in #if expression: %q", e.file, e.line, t.Text)
	}
}

func boolI64(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

var _ = strconv.Itoa
