package parser

import (
	"cppc/internal/ast"
	"cppc/internal/lexer"
)

func (p *Parser) parseExpr() (ast.NodeID, error) {
	e, err := p.parseAssignExpr()
	if err != nil {
		return ast.InvalidID, err
	}
	for p.at(lexer.Comma) {
		p.advance()
		rhs, err := p.parseAssignExpr()
		if err != nil {
			return ast.InvalidID, err
		}
		e = p.arena.Add(ast.Node{Kind: ast.CommaExpr, Children: []ast.NodeID{e, rhs}})
	}
	return e, nil
}

var assignOps = map[lexer.Kind]string{
	lexer.Assign: "=", lexer.PlusAssign: "+=", lexer.MinusAssign: "-=",
	lexer.StarAssign: "*=", lexer.SlashAssign: "/=", lexer.PercentAssign: "%=",
	lexer.AmpAssign: "&=", lexer.PipeAssign: "|=", lexer.CaretAssign: "^=",
	lexer.LShiftAssign: "<<=", lexer.RShiftAssign: ">>=",
}

func (p *Parser) parseAssignExpr() (ast.NodeID, error) {
	lhs, err := p.parseConditional()
	if err != nil {
		return ast.InvalidID, err
	}
	if op, ok := assignOps[p.cur().Kind]; ok {
		p.advance()
		rhs, err := p.parseAssignExpr()
		if err != nil {
			return ast.InvalidID, err
		}
		return p.arena.Add(ast.Node{Kind: ast.AssignExpr, Text: op, Children: []ast.NodeID{lhs, rhs}}), nil
	}
	return lhs, nil
}

func (p *Parser) parseConditional() (ast.NodeID, error) {
	cond, err := p.parseBinary(0)
	if err != nil {
		return ast.InvalidID, err
	}
	if p.at(lexer.Question) {
		p.advance()
		then, err := p.parseExpr()
		if err != nil {
			return ast.InvalidID, err
		}
		if _, err := p.expect(lexer.Colon, "':'"); err != nil {
			return ast.InvalidID, err
		}
		els, err := p.parseAssignExpr()
		if err != nil {
			return ast.InvalidID, err
		}
		return p.arena.Add(ast.Node{Kind: ast.ConditionalExpr, Children: []ast.NodeID{cond, then, els}}), nil
	}
	return cond, nil
}

// precedence table, lowest to highest; parseBinary implements classic
// precedence-climbing over it.
var precLevels = [][]lexer.Kind{
	{lexer.PipePipe},
	{lexer.AmpAmp},
	{lexer.Pipe},
	{lexer.Caret},
	{lexer.Amp},
	{lexer.Eq, lexer.Neq},
	{lexer.Lt, lexer.Gt, lexer.Le, lexer.Ge, lexer.Spaceship},
	{lexer.LShift, lexer.RShift},
	{lexer.Plus, lexer.Minus},
	{lexer.Star, lexer.Slash, lexer.Percent},
}

func kindText(k lexer.Kind) string {
	for s, kk := range map[string]lexer.Kind{
		"||": lexer.PipePipe, "&&": lexer.AmpAmp, "|": lexer.Pipe, "^": lexer.Caret,
		"&": lexer.Amp, "==": lexer.Eq, "!=": lexer.Neq, "<": lexer.Lt, ">": lexer.Gt,
		"<=": lexer.Le, ">=": lexer.Ge, "<=>": lexer.Spaceship,
		"<<": lexer.LShift, ">>": lexer.RShift, "+": lexer.Plus, "-": lexer.Minus,
		"*": lexer.Star, "/": lexer.Slash, "%": lexer.Percent,
	} {
		if kk == k {
			return s
		}
	}
	return "?"
}

func (p *Parser) parseBinary(level int) (ast.NodeID, error) {
	if level >= len(precLevels) {
		return p.parseUnary()
	}
	// Inside an open template-argument list, a bare '<'/'>' at the
	// relational level never starts a new comparison (§4.1 rule 2's
	// counterpart on the expression side): the parser that opened the
	// list already consumes its own '<'/'>', so ordinary expression
	// parsing here is unaffected and this note only documents the
	// invariant relied on by parseTypeRef's template-argument loop.
	lhs, err := p.parseBinary(level + 1)
	if err != nil {
		return ast.InvalidID, err
	}
	for containsKind(precLevels[level], p.cur().Kind) {
		op := p.advance().Kind
		rhs, err := p.parseBinary(level + 1)
		if err != nil {
			return ast.InvalidID, err
		}
		lhs = p.arena.Add(ast.Node{Kind: ast.BinaryExpr, Text: kindText(op), Children: []ast.NodeID{lhs, rhs}})
	}
	return lhs, nil
}

func containsKind(ks []lexer.Kind, k lexer.Kind) bool {
	for _, x := range ks {
		if x == k {
			return true
		}
	}
	return false
}

func (p *Parser) parseUnary() (ast.NodeID, error) {
	switch p.cur().Kind {
	case lexer.Minus, lexer.Plus, lexer.Bang, lexer.Tilde, lexer.Star, lexer.Amp, lexer.PlusPlus, lexer.MinusMinus:
		op := p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return ast.InvalidID, err
		}
		return p.arena.Add(ast.Node{Kind: ast.UnaryExpr, Text: op.Text, Children: []ast.NodeID{operand}}), nil
	case lexer.KwSizeof:
		p.advance()
		if p.at(lexer.LParen) {
			p.advance()
			t, err := p.parseTypeRef()
			if err == nil && (p.at(lexer.RParen)) {
				p.advance()
				return p.arena.Add(ast.Node{Kind: ast.SizeofTypeExpr, Type: t}), nil
			}
			// Not a type: backtrack is unnecessary here since parseTypeRef
			// failing just means it's sizeof(expr); reparse as expression.
		}
		operand, err := p.parseUnary()
		if err != nil {
			return ast.InvalidID, err
		}
		return p.arena.Add(ast.Node{Kind: ast.SizeofExpr, Children: []ast.NodeID{operand}}), nil
	case lexer.KwNew:
		return p.parseNew()
	case lexer.KwDelete:
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return ast.InvalidID, err
		}
		return p.arena.Add(ast.Node{Kind: ast.DeleteExpr, Children: []ast.NodeID{operand}}), nil
	default:
		return p.parsePostfix()
	}
}

func (p *Parser) parseNew() (ast.NodeID, error) {
	p.advance()
	t, err := p.parseTypeRef()
	if err != nil {
		return ast.InvalidID, err
	}
	var args []ast.NodeID
	if p.at(lexer.LParen) {
		p.advance()
		for !p.at(lexer.RParen) {
			a, err := p.parseAssignExpr()
			if err != nil {
				return ast.InvalidID, err
			}
			args = append(args, a)
			if p.at(lexer.Comma) {
				p.advance()
				continue
			}
			break
		}
		if _, err := p.expect(lexer.RParen, "')'"); err != nil {
			return ast.InvalidID, err
		}
	}
	return p.arena.Add(ast.Node{Kind: ast.NewExpr, Type: t, Children: args}), nil
}

func (p *Parser) parsePostfix() (ast.NodeID, error) {
	e, err := p.parsePrimary()
	if err != nil {
		return ast.InvalidID, err
	}
	for {
		switch p.cur().Kind {
		case lexer.LParen:
			p.advance()
			var args []ast.NodeID
			for !p.at(lexer.RParen) {
				a, err := p.parseAssignExpr()
				if err != nil {
					return ast.InvalidID, err
				}
				args = append(args, a)
				if p.at(lexer.Comma) {
					p.advance()
					continue
				}
				break
			}
			if _, err := p.expect(lexer.RParen, "')'"); err != nil {
				return ast.InvalidID, err
			}
			children := append([]ast.NodeID{e}, args...)
			e = p.arena.Add(ast.Node{Kind: ast.CallExpr, Children: children})
		case lexer.LBracket:
			p.advance()
			idx, err := p.parseExpr()
			if err != nil {
				return ast.InvalidID, err
			}
			if _, err := p.expect(lexer.RBracket, "']'"); err != nil {
				return ast.InvalidID, err
			}
			e = p.arena.Add(ast.Node{Kind: ast.IndexExpr, Children: []ast.NodeID{e, idx}})
		case lexer.Dot:
			p.advance()
			name, err := p.expect(lexer.Identifier, "member name")
			if err != nil {
				return ast.InvalidID, err
			}
			e = p.arena.Add(ast.Node{Kind: ast.MemberExpr, Text: name.Text, Children: []ast.NodeID{e}})
		case lexer.Arrow:
			p.advance()
			name, err := p.expect(lexer.Identifier, "member name")
			if err != nil {
				return ast.InvalidID, err
			}
			e = p.arena.Add(ast.Node{Kind: ast.ArrowMemberExpr, Text: name.Text, Children: []ast.NodeID{e}})
		case lexer.PlusPlus, lexer.MinusMinus:
			op := p.advance()
			e = p.arena.Add(ast.Node{Kind: ast.PostfixExpr, Text: op.Text, Children: []ast.NodeID{e}})
		default:
			return e, nil
		}
	}
}

func (p *Parser) parsePrimary() (ast.NodeID, error) {
	t := p.cur()
	switch t.Kind {
	case lexer.IntegerLiteral:
		p.advance()
		return p.arena.Add(ast.Node{Kind: ast.IntLiteralExpr, Text: t.Text, Int: int64(t.IntValue)}), nil
	case lexer.FloatLiteral:
		p.advance()
		return p.arena.Add(ast.Node{Kind: ast.FloatLiteralExpr, Text: t.Text, Float: t.FloatValue}), nil
	case lexer.StringLiteral:
		p.advance()
		return p.arena.Add(ast.Node{Kind: ast.StringLiteralExpr, Text: t.Text}), nil
	case lexer.CharLiteral:
		p.advance()
		return p.arena.Add(ast.Node{Kind: ast.CharLiteralExpr, Text: t.Text}), nil
	case lexer.BoolLiteral:
		p.advance()
		return p.arena.Add(ast.Node{Kind: ast.BoolLiteralExpr, Int: int64(t.IntValue)}), nil
	case lexer.KwNullptr:
		p.advance()
		return p.arena.Add(ast.Node{Kind: ast.NullptrExpr}), nil
	case lexer.KwThis:
		p.advance()
		return p.arena.Add(ast.Node{Kind: ast.ThisExpr}), nil
	case lexer.Identifier:
		p.advance()
		if args, ok := p.tryParseExplicitTemplateArgs(); ok {
			return p.arena.Add(ast.Node{Kind: ast.IdExpr, Text: t.Text, Children: args}), nil
		}
		return p.arena.Add(ast.Node{Kind: ast.IdExpr, Text: t.Text}), nil
	case lexer.LParen:
		p.advance()
		e, err := p.parseExpr()
		if err != nil {
			return ast.InvalidID, err
		}
		if _, err := p.expect(lexer.RParen, "')'"); err != nil {
			return ast.InvalidID, err
		}
		return e, nil
	case lexer.KwStaticCast, lexer.KwDynamicCast, lexer.KwReinterpretCast, lexer.KwConstCast:
		return p.parseNamedCast(t.Kind)
	case lexer.KwTypeid:
		return p.parseTypeid()
	default:
		return ast.InvalidID, p.unexpected("an expression")
	}
}

// tryParseExplicitTemplateArgs attempts to parse "< T1, T2, ... >"
// immediately followed by '(' right after an identifier already
// consumed by the caller, committing only when that whole shape matches
// — an explicit-template-argument call such as f<int>(x) — and
// backtracking otherwise so the '<' is free to be reparsed as the
// less-than operator (§4.1 rule 2's counterpart at a call site).
func (p *Parser) tryParseExplicitTemplateArgs() ([]ast.NodeID, bool) {
	if !p.at(lexer.Lt) {
		return nil, false
	}
	m := p.mark()
	p.advance()
	p.templateDepth++
	defer func() { p.templateDepth-- }()

	var args []ast.NodeID
	for !p.at(lexer.Gt) && !p.at(lexer.RShift) {
		arg, err := p.parseTypeRef()
		if err != nil {
			p.reset(m)
			return nil, false
		}
		args = append(args, arg)
		if p.at(lexer.Comma) {
			p.advance()
			continue
		}
		break
	}
	if err := p.closeAngle(); err != nil || !p.at(lexer.LParen) {
		p.reset(m)
		return nil, false
	}
	return args, true
}

func (p *Parser) unexpected(what string) error {
	t := p.cur()
	return &unexpectedTokenError{file: t.File, line: t.Line, col: t.Col, text: t.Text, what: what}
}

type unexpectedTokenError struct {
	file, what, text string
	line, col        int
}

func (e *unexpectedTokenError) Error() string {
	return e.file + ": unexpected token while expecting " + e.what + ": " + e.text
}

func (p *Parser) parseNamedCast(kind lexer.Kind) (ast.NodeID, error) {
	p.advance()
	if _, err := p.expect(lexer.Lt, "'<'"); err != nil {
		return ast.InvalidID, err
	}
	t, err := p.parseTypeRef()
	if err != nil {
		return ast.InvalidID, err
	}
	if err := p.closeAngle(); err != nil {
		return ast.InvalidID, err
	}
	if _, err := p.expect(lexer.LParen, "'('"); err != nil {
		return ast.InvalidID, err
	}
	operand, err := p.parseExpr()
	if err != nil {
		return ast.InvalidID, err
	}
	if _, err := p.expect(lexer.RParen, "')'"); err != nil {
		return ast.InvalidID, err
	}
	var nodeKind ast.Kind
	switch kind {
	case lexer.KwStaticCast:
		nodeKind = ast.StaticCastExpr
	case lexer.KwDynamicCast:
		nodeKind = ast.DynamicCastExpr
	case lexer.KwReinterpretCast:
		nodeKind = ast.ReinterpretCastExpr
	case lexer.KwConstCast:
		nodeKind = ast.ConstCastExpr
	}
	return p.arena.Add(ast.Node{Kind: nodeKind, Type: t, Children: []ast.NodeID{operand}}), nil
}

func (p *Parser) parseTypeid() (ast.NodeID, error) {
	p.advance()
	if _, err := p.expect(lexer.LParen, "'('"); err != nil {
		return ast.InvalidID, err
	}
	m := p.mark()
	if t, err := p.parseTypeRef(); err == nil && p.at(lexer.RParen) {
		p.advance()
		return p.arena.Add(ast.Node{Kind: ast.TypeidExpr, Type: t}), nil
	}
	p.reset(m)
	e, err := p.parseExpr()
	if err != nil {
		return ast.InvalidID, err
	}
	if _, err := p.expect(lexer.RParen, "')'"); err != nil {
		return ast.InvalidID, err
	}
	return p.arena.Add(ast.Node{Kind: ast.TypeidExpr, Children: []ast.NodeID{e}}), nil
}
