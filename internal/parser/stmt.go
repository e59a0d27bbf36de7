package parser

import (
	"stacklua.dev/pkg/internal/ast"
	"stacklua.dev/pkg/internal/token"
)

// block parses a sequence of statements terminated by an optional
// last-statement, per spec.md §3's Block invariant.
//
// Equivalent to `block` in upstream Lua (internal/luacode/parser.go).
func (p *parser) block() (*ast.Block, error) {
	pos := p.curr.Position
	b := &ast.Block{Position: pos}
	for !isBlockFollow(p.curr.Kind) {
		if p.curr.Kind == token.RETURN {
			last, err := p.returnStat()
			if err != nil {
				return nil, err
			}
			b.Last = last
			return b, nil
		}
		if p.curr.Kind == token.BREAK || p.curr.Kind == token.GOTO {
			last, err := p.lastStat()
			if err != nil {
				return nil, err
			}
			b.Last = last
			return b, nil
		}
		stat, err := p.statement()
		if err != nil {
			return nil, err
		}
		if stat != nil {
			b.Stats = append(b.Stats, stat)
		}
	}
	return b, nil
}

func (p *parser) lastStat() (ast.Stat, error) {
	pos := p.curr.Position
	switch p.curr.Kind {
	case token.BREAK:
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &ast.Break{Position: pos}, nil
	case token.GOTO:
		if err := p.advance(); err != nil {
			return nil, err
		}
		name, _, err := p.expectName()
		if err != nil {
			return nil, err
		}
		return &ast.Goto{Position: pos, Name: name}, nil
	default:
		return nil, p.errorf("expected break or goto")
	}
}

func (p *parser) returnStat() (ast.Stat, error) {
	pos := p.curr.Position
	if err := p.advance(); err != nil {
		return nil, err
	}
	var values []ast.Expr
	if !isBlockFollow(p.curr.Kind) && p.curr.Kind != token.SEMI {
		var err error
		values, err = p.exprList()
		if err != nil {
			return nil, err
		}
	}
	if p.curr.Kind == token.SEMI {
		if err := p.advance(); err != nil {
			return nil, err
		}
	}
	return &ast.Return{Position: pos, Values: values}, nil
}

// statement parses one statement (spec.md §4.2: "Dispatched on
// leading token").
func (p *parser) statement() (ast.Stat, error) {
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()

	switch p.curr.Kind {
	case token.SEMI:
		return nil, p.advance()
	case token.LABEL:
		return p.labelStat()
	case token.IF:
		return p.ifStat()
	case token.WHILE:
		return p.whileStat()
	case token.DO:
		return p.doStat()
	case token.FOR:
		return p.forStat()
	case token.REPEAT:
		return p.repeatStat()
	case token.FUNCTION:
		return p.functionStat()
	case token.LOCAL:
		return p.localStat()
	default:
		return p.exprStat()
	}
}

func (p *parser) labelStat() (ast.Stat, error) {
	pos := p.curr.Position
	if err := p.advance(); err != nil {
		return nil, err
	}
	name, _, err := p.expectName()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.LABEL); err != nil {
		return nil, err
	}
	return &ast.Label{Position: pos, Name: name}, nil
}

func (p *parser) doStat() (ast.Stat, error) {
	pos := p.curr.Position
	if err := p.advance(); err != nil {
		return nil, err
	}
	body, err := p.block()
	if err != nil {
		return nil, err
	}
	if err := p.checkMatch(token.DO, pos, token.END); err != nil {
		return nil, err
	}
	return &ast.Do{Position: pos, Body: body}, nil
}

func (p *parser) whileStat() (ast.Stat, error) {
	pos := p.curr.Position
	if err := p.advance(); err != nil {
		return nil, err
	}
	cond, err := p.expression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.DO); err != nil {
		return nil, err
	}
	body, err := p.block()
	if err != nil {
		return nil, err
	}
	if err := p.checkMatch(token.WHILE, pos, token.END); err != nil {
		return nil, err
	}
	return &ast.While{Position: pos, Cond: cond, Body: body}, nil
}

func (p *parser) repeatStat() (ast.Stat, error) {
	pos := p.curr.Position
	if err := p.advance(); err != nil {
		return nil, err
	}
	body, err := p.block()
	if err != nil {
		return nil, err
	}
	if err := p.checkMatch(token.REPEAT, pos, token.UNTIL); err != nil {
		return nil, err
	}
	cond, err := p.expression()
	if err != nil {
		return nil, err
	}
	return &ast.Repeat{Position: pos, Body: body, Cond: cond}, nil
}

// ifStat parses `if cond then block {elseif cond then block} [else
// block] end`, building the CondBlocks/Else shape spec.md §4.2 fixes.
func (p *parser) ifStat() (ast.Stat, error) {
	pos := p.curr.Position
	var condBlocks []*ast.CondBlock
	for {
		armPos := p.curr.Position
		if err := p.advance(); err != nil { // consume 'if' or 'elseif'
			return nil, err
		}
		cond, err := p.expression()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.THEN); err != nil {
			return nil, err
		}
		body, err := p.block()
		if err != nil {
			return nil, err
		}
		condBlocks = append(condBlocks, &ast.CondBlock{Position: armPos, Cond: cond, Body: body})
		if p.curr.Kind != token.ELSEIF {
			break
		}
	}
	var elseBlock *ast.Block
	if p.curr.Kind == token.ELSE {
		if err := p.advance(); err != nil {
			return nil, err
		}
		b, err := p.block()
		if err != nil {
			return nil, err
		}
		elseBlock = b
	}
	if err := p.checkMatch(token.IF, pos, token.END); err != nil {
		return nil, err
	}
	return &ast.If{Position: pos, CondBlocks: condBlocks, Else: elseBlock}, nil
}

// forStat disambiguates numeric vs. generic for by lookahead after the
// induction name, per spec.md §4.2.
func (p *parser) forStat() (ast.Stat, error) {
	pos := p.curr.Position
	if err := p.advance(); err != nil {
		return nil, err
	}
	firstName, _, err := p.expectName()
	if err != nil {
		return nil, err
	}
	switch p.curr.Kind {
	case token.ASSIGN:
		return p.forNumeric(pos, firstName)
	case token.COMMA, token.IN:
		return p.forGeneric(pos, firstName)
	default:
		return nil, p.errorf("expected '=', ',' or 'in'")
	}
}

func (p *parser) forNumeric(pos token.Position, name string) (ast.Stat, error) {
	if err := p.advance(); err != nil { // consume '='
		return nil, err
	}
	start, err := p.expression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.COMMA); err != nil {
		return nil, err
	}
	limit, err := p.expression()
	if err != nil {
		return nil, err
	}
	var step ast.Expr
	if p.curr.Kind == token.COMMA {
		if err := p.advance(); err != nil {
			return nil, err
		}
		step, err = p.expression()
		if err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(token.DO); err != nil {
		return nil, err
	}
	body, err := p.block()
	if err != nil {
		return nil, err
	}
	if err := p.checkMatch(token.FOR, pos, token.END); err != nil {
		return nil, err
	}
	return &ast.For{Position: pos, Name: name, Start: start, Limit: limit, Step: step, Body: body}, nil
}

func (p *parser) forGeneric(pos token.Position, firstName string) (ast.Stat, error) {
	names := []string{firstName}
	for p.curr.Kind == token.COMMA {
		if err := p.advance(); err != nil {
			return nil, err
		}
		name, _, err := p.expectName()
		if err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	if _, err := p.expect(token.IN); err != nil {
		return nil, err
	}
	exprs, err := p.exprList()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.DO); err != nil {
		return nil, err
	}
	body, err := p.block()
	if err != nil {
		return nil, err
	}
	if err := p.checkMatch(token.FOR, pos, token.END); err != nil {
		return nil, err
	}
	return &ast.ForIn{Position: pos, Names: names, Exprs: exprs, Body: body}, nil
}

// functionStat parses `function a.b.c:m(...) ... end`.
func (p *parser) functionStat() (ast.Stat, error) {
	pos := p.curr.Position
	if err := p.advance(); err != nil {
		return nil, err
	}
	base, namePos, err := p.expectName()
	if err != nil {
		return nil, err
	}
	fname := &ast.FunctionName{Position: namePos, Base: base}
	for p.curr.Kind == token.DOT {
		if err := p.advance(); err != nil {
			return nil, err
		}
		field, _, err := p.expectName()
		if err != nil {
			return nil, err
		}
		fname.Fields = append(fname.Fields, field)
	}
	isMethod := false
	if p.curr.Kind == token.COLON {
		if err := p.advance(); err != nil {
			return nil, err
		}
		method, _, err := p.expectName()
		if err != nil {
			return nil, err
		}
		fname.Method = method
		isMethod = true
	}
	thunk, err := p.functionBody(pos, isMethod)
	if err != nil {
		return nil, err
	}
	return &ast.FunctionDef{Position: pos, Name: fname, Thunk: thunk}, nil
}

func (p *parser) localStat() (ast.Stat, error) {
	pos := p.curr.Position
	if err := p.advance(); err != nil {
		return nil, err
	}
	if p.curr.Kind == token.FUNCTION {
		if err := p.advance(); err != nil {
			return nil, err
		}
		name, _, err := p.expectName()
		if err != nil {
			return nil, err
		}
		thunk, err := p.functionBody(pos, false)
		if err != nil {
			return nil, err
		}
		return &ast.LocalFunction{Position: pos, Name: name, Thunk: thunk}, nil
	}

	var names []string
	for {
		name, _, err := p.expectName()
		if err != nil {
			return nil, err
		}
		names = append(names, name)
		if err := p.skipAttribute(); err != nil {
			return nil, err
		}
		if p.curr.Kind != token.COMMA {
			break
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
	}
	var values []ast.Expr
	if p.curr.Kind == token.ASSIGN {
		if err := p.advance(); err != nil {
			return nil, err
		}
		var err error
		values, err = p.exprList()
		if err != nil {
			return nil, err
		}
	}
	return &ast.LocalVars{Position: pos, Names: names, Values: values}, nil
}

// skipAttribute discards an optional `<name>` local variable attribute
// (e.g. `local x <close> = ...`). Attributes do not affect the VM
// contract spec.md describes, so they are not represented in the AST.
func (p *parser) skipAttribute() error {
	if p.curr.Kind != token.LT {
		return nil
	}
	if err := p.advance(); err != nil {
		return err
	}
	if _, _, err := p.expectName(); err != nil {
		return err
	}
	_, err := p.expect(token.GT)
	return err
}

// exprStat parses a statement beginning with a prefix expression: either
// an assignment or a bare function/method call.
func (p *parser) exprStat() (ast.Stat, error) {
	pos := p.curr.Position
	first, err := p.prefixExpr()
	if err != nil {
		return nil, err
	}
	if p.curr.Kind != token.ASSIGN && p.curr.Kind != token.COMMA {
		switch first.(type) {
		case *ast.FunctionCallExpr, *ast.MethodCall:
			return &ast.FunctionCallStat{Position: pos, Call: first}, nil
		default:
			return nil, p.errorf("syntax error: expression is not a statement")
		}
	}
	targets := []ast.PrefixExpr{first}
	for p.curr.Kind == token.COMMA {
		if err := p.advance(); err != nil {
			return nil, err
		}
		next, err := p.prefixExpr()
		if err != nil {
			return nil, err
		}
		targets = append(targets, next)
	}
	if _, err := p.expect(token.ASSIGN); err != nil {
		return nil, err
	}
	values, err := p.exprList()
	if err != nil {
		return nil, err
	}
	return &ast.Assign{Position: pos, Targets: targets, Values: values}, nil
}
