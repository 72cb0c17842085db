// Package parser implements a hand-written recursive-descent parser
// instead of following the teacher's goyacc-generated LALR parser
// (hhramberg-go-vslc/src/frontend/vsl.y): §4.3's disambiguation rules
// (declaration-vs-expression lookahead, the '<' template-argument-list
// rule, trailing function-declarator specifiers, C++20 lambdas) depend on
// semantic context an LALR grammar cannot express without heavy
// restructuring, so the parser instead uses explicit tentative-parse
// backtracking over the token slice lexer.Tokenize already produced in
// full (§9's "no streaming token source" design, recorded in DESIGN.md).
package parser

import (
	"fmt"
	"strings"

	"cppc/internal/ast"
	"cppc/internal/lexer"
)

// Parser consumes a finished token slice and builds an ast.Arena.
type Parser struct {
	toks  []lexer.Token
	pos   int
	arena *ast.Arena
	// templateDepth tracks how many enclosing '<...>' template-argument
	// lists are open, so a bare '>>' can be split into two '>' tokens
	// when closing them (§4.1 rule 2).
	templateDepth int
}

// New returns a Parser over toks, the output of lexer.Tokenize (or the
// preprocessor's equivalent re-lexed stream).
func New(toks []lexer.Token) *Parser {
	return &Parser{toks: toks, arena: ast.NewArena()}
}

// Arena returns the arena the parser has been building into.
func (p *Parser) Arena() *ast.Arena { return p.arena }

func (p *Parser) cur() lexer.Token {
	if p.pos >= len(p.toks) {
		return lexer.Token{Kind: lexer.EOF}
	}
	return p.toks[p.pos]
}

func (p *Parser) at(k lexer.Kind) bool { return p.cur().Kind == k }

func (p *Parser) advance() lexer.Token {
	t := p.cur()
	p.pos++
	return t
}

func (p *Parser) expect(k lexer.Kind, what string) (lexer.Token, error) {
	if !p.at(k) {
		return lexer.Token{}, fmt.Errorf("%s:%d:%d: expected %s, got %q", p.cur().File, p.cur().Line, p.cur().Col, what, p.cur().Text)
	}
	return p.advance(), nil
}

// mark/reset implement the tentative-parse backtracking §4.3 rule 1
// requires: try parsing as a declaration, and if that fails, rewind and
// reparse as an expression-statement.
func (p *Parser) mark() int { return p.pos }
func (p *Parser) reset(m int) { p.pos = m }

// closeAngle consumes a single '>' that closes a template-argument list,
// splitting a lexed '>>' or '>>=' token into its first '>' and pushing
// the remainder back as a synthetic token, per §4.1 rule 2.
func (p *Parser) closeAngle() error {
	t := p.cur()
	switch t.Kind {
	case lexer.Gt:
		p.advance()
		return nil
	case lexer.RShift:
		p.toks[p.pos] = lexer.Token{Kind: lexer.Gt, Text: ">", File: t.File, Line: t.Line, Col: t.Col + 1}
		return nil
	case lexer.RShiftAssign:
		p.toks[p.pos] = lexer.Token{Kind: lexer.Ge, Text: ">=", File: t.File, Line: t.Line, Col: t.Col + 1}
		return nil
	case lexer.Ge:
		p.toks[p.pos] = lexer.Token{Kind: lexer.Assign, Text: "=", File: t.File, Line: t.Line, Col: t.Col + 1}
		return nil
	default:
		return fmt.Errorf("%s:%d:%d: expected '>' to close template argument list", t.File, t.Line, t.Col)
	}
}

// ParseTranslationUnit parses the whole token stream into a single
// TranslationUnit node.
func (p *Parser) ParseTranslationUnit() (ast.NodeID, error) {
	var decls []ast.NodeID
	for !p.at(lexer.EOF) {
		d, err := p.parseDeclaration()
		if err != nil {
			return ast.InvalidID, err
		}
		decls = append(decls, d)
	}
	return p.arena.Add(ast.Node{Kind: ast.TranslationUnit, Children: decls}), nil
}

func (p *Parser) parseDeclaration() (ast.NodeID, error) {
	switch p.cur().Kind {
	case lexer.KwNamespace:
		return p.parseNamespace()
	case lexer.KwTemplate:
		return p.parseTemplateDecl()
	case lexer.KwClass, lexer.KwStruct:
		return p.parseClass()
	case lexer.KwUsing:
		return p.parseUsing()
	case lexer.KwStaticAssert:
		return p.parseStaticAssert()
	case lexer.KwTypedef:
		return p.parseTypedef()
	default:
		return p.parseFunctionOrVarDecl()
	}
}

func (p *Parser) parseNamespace() (ast.NodeID, error) {
	p.advance()
	name := ""
	if p.at(lexer.Identifier) {
		name = p.advance().Text
	}
	if _, err := p.expect(lexer.LBrace, "'{'"); err != nil {
		return ast.InvalidID, err
	}
	var decls []ast.NodeID
	for !p.at(lexer.RBrace) && !p.at(lexer.EOF) {
		d, err := p.parseDeclaration()
		if err != nil {
			return ast.InvalidID, err
		}
		decls = append(decls, d)
	}
	if _, err := p.expect(lexer.RBrace, "'}'"); err != nil {
		return ast.InvalidID, err
	}
	return p.arena.Add(ast.Node{Kind: ast.NamespaceDecl, Text: name, Children: decls}), nil
}

// parseTemplateDecl parses "template < params > decl", implementing
// §4.3's rule for the '<' that always opens a template-parameter list
// right after the 'template' keyword (no ambiguity there, unlike a
// template-argument-list '<' inside an expression).
func (p *Parser) parseTemplateDecl() (ast.NodeID, error) {
	p.advance() // 'template'
	if _, err := p.expect(lexer.Lt, "'<'"); err != nil {
		return ast.InvalidID, err
	}
	var params []ast.NodeID
	for !p.at(lexer.Gt) && !p.at(lexer.RShift) {
		pk := ast.Kind(ast.TypeRef)
		variadic := false
		switch p.cur().Kind {
		case lexer.KwTypename, lexer.KwClass:
			p.advance()
		default:
			pk = ast.ParamDecl // non-type template parameter: <type> <name>.
			if _, err := p.parseTypeRef(); err != nil {
				return ast.InvalidID, err
			}
		}
		if p.at(lexer.Ellipsis) {
			p.advance()
			variadic = true
		}
		name := ""
		if p.at(lexer.Identifier) {
			name = p.advance().Text
		}
		flags := uint32(0)
		if variadic {
			flags |= ast.FlagVariadic
		}
		params = append(params, p.arena.Add(ast.Node{Kind: pk, Text: name, Flags: flags}))
		if p.at(lexer.Comma) {
			p.advance()
			continue
		}
		break
	}
	if err := p.closeAngle(); err != nil {
		return ast.InvalidID, err
	}
	body, err := p.parseDeclaration()
	if err != nil {
		return ast.InvalidID, err
	}
	children := append(params, body)
	return p.arena.Add(ast.Node{Kind: ast.TemplateDecl, Children: children}), nil
}

func (p *Parser) parseClass() (ast.NodeID, error) {
	p.advance() // class/struct
	name := ""
	if p.at(lexer.Identifier) {
		name = p.advance().Text
	}
	var bases []ast.NodeID
	if p.at(lexer.Colon) {
		p.advance()
		for {
			if p.at(lexer.KwPublic) || p.at(lexer.KwPrivate) || p.at(lexer.KwProtected) {
				p.advance()
			}
			t, err := p.parseTypeRef()
			if err != nil {
				return ast.InvalidID, err
			}
			bases = append(bases, t)
			if p.at(lexer.Comma) {
				p.advance()
				continue
			}
			break
		}
	}
	if p.at(lexer.Semi) {
		p.advance()
		return p.arena.Add(ast.Node{Kind: ast.ClassDecl, Text: name}), nil
	}
	if _, err := p.expect(lexer.LBrace, "'{'"); err != nil {
		return ast.InvalidID, err
	}
	var members []ast.NodeID
	for !p.at(lexer.RBrace) && !p.at(lexer.EOF) {
		if p.at(lexer.KwPublic) || p.at(lexer.KwPrivate) || p.at(lexer.KwProtected) {
			p.advance()
			if _, err := p.expect(lexer.Colon, "':'"); err != nil {
				return ast.InvalidID, err
			}
			continue
		}
		m, err := p.parseDeclaration()
		if err != nil {
			return ast.InvalidID, err
		}
		members = append(members, m)
	}
	if _, err := p.expect(lexer.RBrace, "'}'"); err != nil {
		return ast.InvalidID, err
	}
	if p.at(lexer.Semi) {
		p.advance()
	}
	children := append(bases, members...)
	return p.arena.Add(ast.Node{Kind: ast.ClassDef, Text: name, Children: children}), nil
}

func (p *Parser) parseUsing() (ast.NodeID, error) {
	p.advance()
	name, err := p.expect(lexer.Identifier, "identifier")
	if err != nil {
		return ast.InvalidID, err
	}
	if _, err := p.expect(lexer.Assign, "'='"); err != nil {
		return ast.InvalidID, err
	}
	t, err := p.parseTypeRef()
	if err != nil {
		return ast.InvalidID, err
	}
	if _, err := p.expect(lexer.Semi, "';'"); err != nil {
		return ast.InvalidID, err
	}
	return p.arena.Add(ast.Node{Kind: ast.UsingDecl, Text: name.Text, Type: t}), nil
}

func (p *Parser) parseTypedef() (ast.NodeID, error) {
	p.advance()
	t, err := p.parseTypeRef()
	if err != nil {
		return ast.InvalidID, err
	}
	name, err := p.expect(lexer.Identifier, "identifier")
	if err != nil {
		return ast.InvalidID, err
	}
	if _, err := p.expect(lexer.Semi, "';'"); err != nil {
		return ast.InvalidID, err
	}
	return p.arena.Add(ast.Node{Kind: ast.TypedefDecl, Text: name.Text, Type: t}), nil
}

func (p *Parser) parseStaticAssert() (ast.NodeID, error) {
	p.advance()
	if _, err := p.expect(lexer.LParen, "'('"); err != nil {
		return ast.InvalidID, err
	}
	cond, err := p.parseExpr()
	if err != nil {
		return ast.InvalidID, err
	}
	msg := ""
	if p.at(lexer.Comma) {
		p.advance()
		t, err := p.expect(lexer.StringLiteral, "string literal")
		if err != nil {
			return ast.InvalidID, err
		}
		msg = t.Text
	}
	if _, err := p.expect(lexer.RParen, "')'"); err != nil {
		return ast.InvalidID, err
	}
	if _, err := p.expect(lexer.Semi, "';'"); err != nil {
		return ast.InvalidID, err
	}
	return p.arena.Add(ast.Node{Kind: ast.StaticAssertDecl, Text: msg, Children: []ast.NodeID{cond}}), nil
}

// parseTypeRef parses an unqualified, possibly pointer/reference type-id
// into a TypeRef node. Full C++ type-id grammar is large; this covers a
// run of built-in specifier keywords (joined with single spaces in source
// order, cv-qualifiers dropped), class-name references, pointers,
// references and one template-argument list after the name, whose
// arguments are themselves parsed as type-ids.
func (p *Parser) parseTypeRef() (ast.NodeID, error) {
	var specs []string
	for isTypeSpecifier(p.cur().Kind) {
		t := p.advance()
		if t.Kind != lexer.KwConst && t.Kind != lexer.KwVolatile {
			specs = append(specs, t.Text)
		}
	}
	name := ""
	if len(specs) > 0 {
		name = strings.Join(specs, " ")
	} else if p.at(lexer.Identifier) {
		name = p.advance().Text
	} else {
		return ast.InvalidID, fmt.Errorf("%s:%d:%d: expected a type", p.cur().File, p.cur().Line, p.cur().Col)
	}

	var templateArgs []ast.NodeID
	if p.at(lexer.Lt) {
		p.advance()
		p.templateDepth++
		for !p.at(lexer.Gt) && !p.at(lexer.RShift) {
			arg, err := p.parseTypeRef()
			if err != nil {
				return ast.InvalidID, err
			}
			templateArgs = append(templateArgs, arg)
			if p.at(lexer.Comma) {
				p.advance()
				continue
			}
			break
		}
		if err := p.closeAngle(); err != nil {
			return ast.InvalidID, err
		}
		p.templateDepth--
	}

	n := p.arena.Add(ast.Node{Kind: ast.TypeRef, Text: name, Children: templateArgs})
	for p.at(lexer.Star) || p.at(lexer.Amp) || p.at(lexer.AmpAmp) {
		switch p.advance().Kind {
		case lexer.Star:
			n = p.arena.Add(ast.Node{Kind: ast.TypeRef, Text: "*", Children: []ast.NodeID{n}})
		case lexer.Amp:
			n = p.arena.Add(ast.Node{Kind: ast.TypeRef, Text: "&", Children: []ast.NodeID{n}})
		case lexer.AmpAmp:
			n = p.arena.Add(ast.Node{Kind: ast.TypeRef, Text: "&&", Children: []ast.NodeID{n}})
		}
	}
	return n, nil
}

func isTypeSpecifier(k lexer.Kind) bool {
	switch k {
	case lexer.KwVoid, lexer.KwBool, lexer.KwChar, lexer.KwChar8T, lexer.KwChar16T,
		lexer.KwChar32T, lexer.KwWchatT, lexer.KwShort, lexer.KwInt, lexer.KwLong,
		lexer.KwFloat, lexer.KwDouble, lexer.KwSigned, lexer.KwUnsigned,
		lexer.KwConst, lexer.KwVolatile, lexer.KwAuto:
		return true
	}
	return false
}

// parseFunctionOrVarDecl implements §4.3 rule 1: lacking the full
// declaration-vs-expression tentative parse, most top-level items here
// are unambiguously declarations (a leading type-specifier), so the
// backtracking path only engages for statement-level ambiguity inside
// function bodies (see parseStmt's ExprStmt/DeclStmt branch).
func (p *Parser) parseFunctionOrVarDecl() (ast.NodeID, error) {
	flags := uint32(0)
	for {
		switch p.cur().Kind {
		case lexer.KwStatic:
			flags |= ast.FlagStatic
			p.advance()
			continue
		case lexer.KwInline:
			flags |= ast.FlagInline
			p.advance()
			continue
		case lexer.KwConstexpr:
			flags |= ast.FlagConstexpr
			p.advance()
			continue
		case lexer.KwConsteval:
			flags |= ast.FlagConsteval
			p.advance()
			continue
		case lexer.KwVirtual:
			flags |= ast.FlagVirtual
			p.advance()
			continue
		case lexer.KwExplicit:
			flags |= ast.FlagExplicit
			p.advance()
			continue
		}
		break
	}

	retType, err := p.parseTypeRef()
	if err != nil {
		return ast.InvalidID, err
	}
	name, err := p.expect(lexer.Identifier, "identifier")
	if err != nil {
		return ast.InvalidID, err
	}

	if p.at(lexer.LParen) {
		return p.parseFunctionRest(name.Text, retType, flags)
	}

	// Variable declaration, optionally with an initializer.
	var init ast.NodeID = ast.InvalidID
	if p.at(lexer.Assign) {
		p.advance()
		init, err = p.parseExpr()
		if err != nil {
			return ast.InvalidID, err
		}
	}
	if _, err := p.expect(lexer.Semi, "';'"); err != nil {
		return ast.InvalidID, err
	}
	children := []ast.NodeID{}
	if init != ast.InvalidID {
		children = append(children, init)
	}
	return p.arena.Add(ast.Node{Kind: ast.VarDecl, Text: name.Text, Type: retType, Flags: flags, Children: children}), nil
}

func (p *Parser) parseFunctionRest(name string, retType ast.NodeID, flags uint32) (ast.NodeID, error) {
	p.advance() // '('
	var params []ast.NodeID
	for !p.at(lexer.RParen) {
		pt, err := p.parseTypeRef()
		if err != nil {
			return ast.InvalidID, err
		}
		pname := ""
		if p.at(lexer.Identifier) {
			pname = p.advance().Text
		}
		params = append(params, p.arena.Add(ast.Node{Kind: ast.ParamDecl, Text: pname, Type: pt}))
		if p.at(lexer.Comma) {
			p.advance()
			continue
		}
		break
	}
	if _, err := p.expect(lexer.RParen, "')'"); err != nil {
		return ast.InvalidID, err
	}
	for p.at(lexer.KwConst) || p.at(lexer.KwNoexcept) || p.at(lexer.KwOverride) || p.at(lexer.KwFinal) {
		switch p.advance().Kind {
		case lexer.KwConst:
			flags |= ast.FlagConst
		case lexer.KwNoexcept:
			flags |= ast.FlagNoexcept
		case lexer.KwOverride:
			flags |= ast.FlagOverride
		case lexer.KwFinal:
			flags |= ast.FlagFinal
		}
	}

	if p.at(lexer.Semi) {
		p.advance()
		return p.arena.Add(ast.Node{Kind: ast.FunctionDecl, Text: name, Type: retType, Flags: flags, Children: params}), nil
	}
	if p.at(lexer.Assign) {
		// "= default;" / "= delete;"
		p.advance()
		if p.at(lexer.KwDefault) {
			flags |= ast.FlagDefault
		} else if p.at(lexer.KwDelete) {
			flags |= ast.FlagDeleted
		}
		p.advance()
		if _, err := p.expect(lexer.Semi, "';'"); err != nil {
			return ast.InvalidID, err
		}
		return p.arena.Add(ast.Node{Kind: ast.FunctionDecl, Text: name, Type: retType, Flags: flags, Children: params}), nil
	}

	body, err := p.parseCompoundStmt()
	if err != nil {
		return ast.InvalidID, err
	}
	children := append(params, body)
	return p.arena.Add(ast.Node{Kind: ast.FunctionDef, Text: name, Type: retType, Flags: flags, Children: children}), nil
}
