package parser

import (
	"fmt"

	"cppc/internal/ast"
	"cppc/internal/lexer"
)

func (p *Parser) parseCompoundStmt() (ast.NodeID, error) {
	if _, err := p.expect(lexer.LBrace, "'{'"); err != nil {
		return ast.InvalidID, err
	}
	var stmts []ast.NodeID
	for !p.at(lexer.RBrace) && !p.at(lexer.EOF) {
		s, err := p.parseStmt()
		if err != nil {
			return ast.InvalidID, err
		}
		stmts = append(stmts, s)
	}
	if _, err := p.expect(lexer.RBrace, "'}'"); err != nil {
		return ast.InvalidID, err
	}
	return p.arena.Add(ast.Node{Kind: ast.CompoundStmt, Children: stmts}), nil
}

func (p *Parser) parseStmt() (ast.NodeID, error) {
	switch p.cur().Kind {
	case lexer.LBrace:
		return p.parseCompoundStmt()
	case lexer.KwIf:
		return p.parseIf()
	case lexer.KwWhile:
		return p.parseWhile()
	case lexer.KwDo:
		return p.parseDo()
	case lexer.KwFor:
		return p.parseFor()
	case lexer.KwSwitch:
		return p.parseSwitch()
	case lexer.KwCase:
		return p.parseCase()
	case lexer.KwDefault:
		return p.parseDefault()
	case lexer.KwBreak:
		p.advance()
		if _, err := p.expect(lexer.Semi, "';'"); err != nil {
			return ast.InvalidID, err
		}
		return p.arena.Add(ast.Node{Kind: ast.BreakStmt}), nil
	case lexer.KwContinue:
		p.advance()
		if _, err := p.expect(lexer.Semi, "';'"); err != nil {
			return ast.InvalidID, err
		}
		return p.arena.Add(ast.Node{Kind: ast.ContinueStmt}), nil
	case lexer.KwReturn:
		return p.parseReturn()
	case lexer.KwGoto:
		p.advance()
		name, err := p.expect(lexer.Identifier, "label")
		if err != nil {
			return ast.InvalidID, err
		}
		if _, err := p.expect(lexer.Semi, "';'"); err != nil {
			return ast.InvalidID, err
		}
		return p.arena.Add(ast.Node{Kind: ast.GotoStmt, Text: name.Text}), nil
	case lexer.KwTry:
		return p.parseTry()
	case lexer.KwThrow:
		return p.parseThrow()
	case lexer.Semi:
		p.advance()
		return p.arena.Add(ast.Node{Kind: ast.ExprStmt}), nil
	default:
		return p.parseDeclOrExprStmt()
	}
}

// parseDeclOrExprStmt implements §4.3 rule 1's tentative-parse
// disambiguation for statement-level ambiguity: "T(x);" could be a
// function-style cast expression-statement or a declaration of x with
// parenthesized initializer. We try the declaration parse first and
// backtrack to an expression-statement on failure.
func (p *Parser) parseDeclOrExprStmt() (ast.NodeID, error) {
	if isTypeSpecifier(p.cur().Kind) || (p.at(lexer.Identifier) && looksLikeTypeName(p.cur().Text)) {
		m := p.mark()
		if n, err := p.tryParseLocalDecl(); err == nil {
			return n, nil
		}
		p.reset(m)
	}
	e, err := p.parseExpr()
	if err != nil {
		return ast.InvalidID, err
	}
	if _, err := p.expect(lexer.Semi, "';'"); err != nil {
		return ast.InvalidID, err
	}
	return p.arena.Add(ast.Node{Kind: ast.ExprStmt, Children: []ast.NodeID{e}}), nil
}

// looksLikeTypeName is a crude heuristic standing in for a symbol-table
// lookup the parser does not itself own (type resolution happens in a
// later pass); it only affects which branch the tentative parse tries
// first; tryParseLocalDecl's own failure still triggers the fallback.
func looksLikeTypeName(name string) bool {
	return len(name) > 0 && name[0] >= 'A' && name[0] <= 'Z'
}

func (p *Parser) tryParseLocalDecl() (ast.NodeID, error) {
	t, err := p.parseTypeRef()
	if err != nil {
		return ast.InvalidID, err
	}
	var decls []ast.NodeID
	for {
		name, err := p.expect(lexer.Identifier, "identifier")
		if err != nil {
			return ast.InvalidID, err
		}
		var init ast.NodeID = ast.InvalidID
		if p.at(lexer.Assign) {
			p.advance()
			init, err = p.parseAssignExpr()
			if err != nil {
				return ast.InvalidID, err
			}
		} else if p.at(lexer.LParen) || p.at(lexer.LBrace) {
			open := p.advance().Kind
			close := lexer.RParen
			if open == lexer.LBrace {
				close = lexer.RBrace
			}
			init, err = p.parseAssignExpr()
			if err != nil {
				return ast.InvalidID, err
			}
			if _, err := p.expect(close, "closing delimiter"); err != nil {
				return ast.InvalidID, err
			}
		}
		children := []ast.NodeID{}
		if init != ast.InvalidID {
			children = append(children, init)
		}
		decls = append(decls, p.arena.Add(ast.Node{Kind: ast.VarDecl, Text: name.Text, Type: t, Children: children}))
		if p.at(lexer.Comma) {
			p.advance()
			continue
		}
		break
	}
	if _, err := p.expect(lexer.Semi, "';'"); err != nil {
		return ast.InvalidID, err
	}
	return p.arena.Add(ast.Node{Kind: ast.DeclStmt, Children: decls}), nil
}

func (p *Parser) parseIf() (ast.NodeID, error) {
	p.advance()
	if _, err := p.expect(lexer.LParen, "'('"); err != nil {
		return ast.InvalidID, err
	}
	cond, err := p.parseExpr()
	if err != nil {
		return ast.InvalidID, err
	}
	if _, err := p.expect(lexer.RParen, "')'"); err != nil {
		return ast.InvalidID, err
	}
	then, err := p.parseStmt()
	if err != nil {
		return ast.InvalidID, err
	}
	children := []ast.NodeID{cond, then}
	if p.at(lexer.KwElse) {
		p.advance()
		els, err := p.parseStmt()
		if err != nil {
			return ast.InvalidID, err
		}
		children = append(children, els)
	}
	return p.arena.Add(ast.Node{Kind: ast.IfStmt, Children: children}), nil
}

func (p *Parser) parseWhile() (ast.NodeID, error) {
	p.advance()
	if _, err := p.expect(lexer.LParen, "'('"); err != nil {
		return ast.InvalidID, err
	}
	cond, err := p.parseExpr()
	if err != nil {
		return ast.InvalidID, err
	}
	if _, err := p.expect(lexer.RParen, "')'"); err != nil {
		return ast.InvalidID, err
	}
	body, err := p.parseStmt()
	if err != nil {
		return ast.InvalidID, err
	}
	return p.arena.Add(ast.Node{Kind: ast.WhileStmt, Children: []ast.NodeID{cond, body}}), nil
}

func (p *Parser) parseDo() (ast.NodeID, error) {
	p.advance()
	body, err := p.parseStmt()
	if err != nil {
		return ast.InvalidID, err
	}
	if _, err := p.expect(lexer.KwWhile, "'while'"); err != nil {
		return ast.InvalidID, err
	}
	if _, err := p.expect(lexer.LParen, "'('"); err != nil {
		return ast.InvalidID, err
	}
	cond, err := p.parseExpr()
	if err != nil {
		return ast.InvalidID, err
	}
	if _, err := p.expect(lexer.RParen, "')'"); err != nil {
		return ast.InvalidID, err
	}
	if _, err := p.expect(lexer.Semi, "';'"); err != nil {
		return ast.InvalidID, err
	}
	return p.arena.Add(ast.Node{Kind: ast.DoStmt, Children: []ast.NodeID{body, cond}}), nil
}

func (p *Parser) parseFor() (ast.NodeID, error) {
	p.advance()
	if _, err := p.expect(lexer.LParen, "'('"); err != nil {
		return ast.InvalidID, err
	}

	if isTypeSpecifier(p.cur().Kind) || (p.at(lexer.Identifier) && looksLikeTypeName(p.cur().Text)) {
		m := p.mark()
		if rangeFor, ok := p.tryParseRangeFor(); ok {
			return rangeFor, nil
		}
		p.reset(m)
	}

	var initStmt ast.NodeID = ast.InvalidID
	if !p.at(lexer.Semi) {
		var err error
		initStmt, err = p.parseDeclOrExprStmt()
		if err != nil {
			return ast.InvalidID, err
		}
	} else {
		p.advance()
	}

	var cond ast.NodeID = ast.InvalidID
	if !p.at(lexer.Semi) {
		var err error
		cond, err = p.parseExpr()
		if err != nil {
			return ast.InvalidID, err
		}
	}
	if _, err := p.expect(lexer.Semi, "';'"); err != nil {
		return ast.InvalidID, err
	}

	var step ast.NodeID = ast.InvalidID
	if !p.at(lexer.RParen) {
		var err error
		step, err = p.parseExpr()
		if err != nil {
			return ast.InvalidID, err
		}
	}
	if _, err := p.expect(lexer.RParen, "')'"); err != nil {
		return ast.InvalidID, err
	}

	body, err := p.parseStmt()
	if err != nil {
		return ast.InvalidID, err
	}
	return p.arena.Add(ast.Node{Kind: ast.ForStmt, Children: []ast.NodeID{initStmt, cond, step, body}}), nil
}

// tryParseRangeFor attempts "for ( TypeRef ident : expr ) stmt" (the
// range-based for introduced by C++11), backtracking to the ordinary
// three-clause for on any mismatch so the common case is unaffected.
func (p *Parser) tryParseRangeFor() (ast.NodeID, bool) {
	t, err := p.parseTypeRef()
	if err != nil {
		return ast.InvalidID, false
	}
	name, err := p.expect(lexer.Identifier, "identifier")
	if err != nil {
		return ast.InvalidID, false
	}
	if !p.at(lexer.Colon) {
		return ast.InvalidID, false
	}
	p.advance()
	rangeExpr, err := p.parseExpr()
	if err != nil {
		return ast.InvalidID, false
	}
	if _, err := p.expect(lexer.RParen, "')'"); err != nil {
		return ast.InvalidID, false
	}
	body, err := p.parseStmt()
	if err != nil {
		return ast.InvalidID, false
	}
	decl := p.arena.Add(ast.Node{Kind: ast.VarDecl, Text: name.Text, Type: t})
	return p.arena.Add(ast.Node{Kind: ast.RangeForStmt, Children: []ast.NodeID{decl, rangeExpr, body}}), true
}

func (p *Parser) parseSwitch() (ast.NodeID, error) {
	p.advance()
	if _, err := p.expect(lexer.LParen, "'('"); err != nil {
		return ast.InvalidID, err
	}
	cond, err := p.parseExpr()
	if err != nil {
		return ast.InvalidID, err
	}
	if _, err := p.expect(lexer.RParen, "')'"); err != nil {
		return ast.InvalidID, err
	}
	body, err := p.parseCompoundStmt()
	if err != nil {
		return ast.InvalidID, err
	}
	return p.arena.Add(ast.Node{Kind: ast.SwitchStmt, Children: []ast.NodeID{cond, body}}), nil
}

// parseCase parses one fallthrough-style "case expr:" label. The labeled
// statements that follow remain flat siblings in the enclosing switch
// body, matching C's label-not-a-scope semantics; irgen is responsible
// for grouping the statements between one CaseStmt/DefaultStmt and the
// next.
func (p *Parser) parseCase() (ast.NodeID, error) {
	p.advance()
	val, err := p.parseExpr()
	if err != nil {
		return ast.InvalidID, err
	}
	if _, err := p.expect(lexer.Colon, "':'"); err != nil {
		return ast.InvalidID, err
	}
	return p.arena.Add(ast.Node{Kind: ast.CaseStmt, Children: []ast.NodeID{val}}), nil
}

func (p *Parser) parseDefault() (ast.NodeID, error) {
	p.advance()
	if _, err := p.expect(lexer.Colon, "':'"); err != nil {
		return ast.InvalidID, err
	}
	return p.arena.Add(ast.Node{Kind: ast.DefaultStmt}), nil
}

func (p *Parser) parseReturn() (ast.NodeID, error) {
	p.advance()
	var val ast.NodeID = ast.InvalidID
	if !p.at(lexer.Semi) {
		var err error
		val, err = p.parseExpr()
		if err != nil {
			return ast.InvalidID, err
		}
	}
	if _, err := p.expect(lexer.Semi, "';'"); err != nil {
		return ast.InvalidID, err
	}
	children := []ast.NodeID{}
	if val != ast.InvalidID {
		children = append(children, val)
	}
	return p.arena.Add(ast.Node{Kind: ast.ReturnStmt, Children: children}), nil
}

func (p *Parser) parseTry() (ast.NodeID, error) {
	p.advance()
	body, err := p.parseCompoundStmt()
	if err != nil {
		return ast.InvalidID, err
	}
	children := []ast.NodeID{body}
	for p.at(lexer.KwCatch) {
		p.advance()
		if _, err := p.expect(lexer.LParen, "'('"); err != nil {
			return ast.InvalidID, err
		}
		var paramType ast.NodeID = ast.InvalidID
		if !p.at(lexer.Ellipsis) {
			paramType, err = p.parseTypeRef()
			if err != nil {
				return ast.InvalidID, err
			}
			if p.at(lexer.Identifier) {
				p.advance()
			}
		} else {
			p.advance()
		}
		if _, err := p.expect(lexer.RParen, "')'"); err != nil {
			return ast.InvalidID, err
		}
		handler, err := p.parseCompoundStmt()
		if err != nil {
			return ast.InvalidID, err
		}
		children = append(children, p.arena.Add(ast.Node{Kind: ast.CatchClause, Type: paramType, Children: []ast.NodeID{handler}}))
	}
	return p.arena.Add(ast.Node{Kind: ast.TryStmt, Children: children}), nil
}

func (p *Parser) parseThrow() (ast.NodeID, error) {
	p.advance()
	children := []ast.NodeID{}
	if !p.at(lexer.Semi) {
		e, err := p.parseExpr()
		if err != nil {
			return ast.InvalidID, err
		}
		children = append(children, e)
	}
	if _, err := p.expect(lexer.Semi, "';'"); err != nil {
		return ast.InvalidID, err
	}
	return p.arena.Add(ast.Node{Kind: ast.ThrowStmt, Children: children}), nil
}

var _ = fmt.Sprintf
