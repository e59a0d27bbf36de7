package parser

import (
	"stacklua.dev/pkg/internal/ast"
	"stacklua.dev/pkg/internal/token"
)

// binPrec gives the left and right binding powers of a binary operator,
// following real Lua's operator-precedence table (internal/luacode's
// subExpression precedence ladder, with bitwise operators slotted
// between comparison and concatenation as in upstream Lua 5.4).
// Right-associative operators (.. and ^) have a right priority lower
// than their left, so subExpression recurses with a limit that admits
// another application of the same operator.
type binPrec struct {
	left, right int
}

var binPrecedence = map[token.Kind]binPrec{
	token.OR:     {1, 1},
	token.AND:    {2, 2},
	token.LT:     {3, 3},
	token.GT:     {3, 3},
	token.LE:     {3, 3},
	token.GE:     {3, 3},
	token.NE:     {3, 3},
	token.EQ:     {3, 3},
	token.PIPE:   {4, 4},
	token.TILDE:  {5, 5},
	token.AMP:    {6, 6},
	token.SHL:    {7, 7},
	token.SHR:    {7, 7},
	token.CONCAT: {9, 8}, // right-associative
	token.PLUS:   {10, 10},
	token.MINUS:  {10, 10},
	token.STAR:   {11, 11},
	token.SLASH:  {11, 11},
	token.IDIV:   {11, 11},
	token.PERCENT: {11, 11},
	token.CARET:  {14, 13}, // right-associative, binds tighter than unary
}

// unaryPrecedence is the binding power of a unary operator: higher than
// every binary operator except `^`, matching `-2^2 == -4`.
const unaryPrecedence = 12

// expression parses a full expression via precedence climbing.
func (p *parser) expression() (ast.Expr, error) {
	return p.subExpression(0)
}

// exprList parses a comma-separated, non-empty list of expressions.
func (p *parser) exprList() ([]ast.Expr, error) {
	first, err := p.expression()
	if err != nil {
		return nil, err
	}
	exprs := []ast.Expr{first}
	for p.curr.Kind == token.COMMA {
		if err := p.advance(); err != nil {
			return nil, err
		}
		e, err := p.expression()
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, e)
	}
	return exprs, nil
}

// subExpression parses an expression whose binary operators all bind
// more tightly than limit, per the teacher's precedence-climbing
// pattern (internal/luacode/parser.go's subExpression(fs, limit)).
func (p *parser) subExpression(limit int) (ast.Expr, error) {
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()

	left, err := p.unaryExpr()
	if err != nil {
		return nil, err
	}
	for {
		prec, ok := binPrecedence[p.curr.Kind]
		if !ok || prec.left <= limit {
			break
		}
		op := p.curr.Kind
		pos := p.curr.Position
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.subExpression(prec.right)
		if err != nil {
			return nil, err
		}
		left = &ast.Binary{Position: pos, Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) unaryExpr() (ast.Expr, error) {
	switch p.curr.Kind {
	case token.NOT, token.MINUS, token.HASH, token.TILDE:
		op := p.curr.Kind
		pos := p.curr.Position
		if err := p.advance(); err != nil {
			return nil, err
		}
		operand, err := p.subExpression(unaryPrecedence)
		if err != nil {
			return nil, err
		}
		return &ast.Unary{Position: pos, Op: op, Operand: operand}, nil
	default:
		return p.powExpr()
	}
}

// powExpr parses a simple expression followed by an optional right-
// associative `^` chain, since `^` binds tighter than unary operators
// on its left but allows another unary expression on its right (e.g.
// `-2^-2`).
func (p *parser) powExpr() (ast.Expr, error) {
	base, err := p.simpleExpr()
	if err != nil {
		return nil, err
	}
	if p.curr.Kind != token.CARET {
		return base, nil
	}
	pos := p.curr.Position
	if err := p.advance(); err != nil {
		return nil, err
	}
	exponent, err := p.unaryExpr()
	if err != nil {
		return nil, err
	}
	return &ast.Binary{Position: pos, Op: token.CARET, Left: base, Right: exponent}, nil
}

// simpleExpr parses a Factor: a literal, table constructor, function
// literal, or prefix expression.
func (p *parser) simpleExpr() (ast.Expr, error) {
	pos := p.curr.Position
	switch p.curr.Kind {
	case token.NIL:
		return &ast.Nil{Position: pos}, p.advance()
	case token.TRUE:
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &ast.Boolean{Position: pos, Value: true}, nil
	case token.FALSE:
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &ast.Boolean{Position: pos, Value: false}, nil
	case token.NUMBER:
		lexeme := p.curr.Lexeme
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &ast.Number{Position: pos, Lexeme: lexeme}, nil
	case token.STRING:
		value := p.curr.Lexeme
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &ast.String{Position: pos, Value: value}, nil
	case token.ELLIPSIS:
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &ast.Varargs{Position: pos}, nil
	case token.LBRACE:
		return p.tableConstructor()
	case token.FUNCTION:
		if err := p.advance(); err != nil {
			return nil, err
		}
		return p.functionBody(pos, false)
	default:
		return p.prefixExpr()
	}
}

// prefixExpr parses a Name or parenthesized expression followed by zero
// or more suffixes (`.name`, `[expr]`, `:name args`, `args`), mirroring
// the teacher's suffixedExpression loop.
func (p *parser) prefixExpr() (ast.PrefixExpr, error) {
	pos := p.curr.Position
	var base ast.PrefixExpr
	switch p.curr.Kind {
	case token.NAME:
		name := p.curr.Lexeme
		if err := p.advance(); err != nil {
			return nil, err
		}
		base = &ast.Name{Position: pos, Value: name}
	case token.LPAREN:
		if err := p.advance(); err != nil {
			return nil, err
		}
		inner, err := p.expression()
		if err != nil {
			return nil, err
		}
		if err := p.checkMatch(token.LPAREN, pos, token.RPAREN); err != nil {
			return nil, err
		}
		base = &ast.NestedExpr{Position: pos, Inner: inner}
	default:
		return nil, p.errorf("unexpected symbol")
	}

	for {
		suffixPos := p.curr.Position
		switch p.curr.Kind {
		case token.DOT:
			if err := p.advance(); err != nil {
				return nil, err
			}
			name, _, err := p.expectName()
			if err != nil {
				return nil, err
			}
			base = &ast.FieldExpr{Position: suffixPos, Target: base, Name: name}
		case token.LBRACK:
			if err := p.advance(); err != nil {
				return nil, err
			}
			key, err := p.expression()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(token.RBRACK); err != nil {
				return nil, err
			}
			base = &ast.Index{Position: suffixPos, Target: base, Key: key}
		case token.COLON:
			if err := p.advance(); err != nil {
				return nil, err
			}
			method, _, err := p.expectName()
			if err != nil {
				return nil, err
			}
			args, err := p.callArgs()
			if err != nil {
				return nil, err
			}
			base = &ast.MethodCall{Position: suffixPos, Target: base, Method: method, Args: args}
		case token.LPAREN, token.STRING, token.LBRACE:
			args, err := p.callArgs()
			if err != nil {
				return nil, err
			}
			base = &ast.FunctionCallExpr{Position: suffixPos, Callee: base, Args: args}
		default:
			return base, nil
		}
	}
}

// callArgs parses a call's argument list: `(exprs)`, a single string
// literal, or a single table constructor.
func (p *parser) callArgs() ([]ast.Expr, error) {
	switch p.curr.Kind {
	case token.STRING:
		pos := p.curr.Position
		value := p.curr.Lexeme
		if err := p.advance(); err != nil {
			return nil, err
		}
		return []ast.Expr{&ast.String{Position: pos, Value: value}}, nil
	case token.LBRACE:
		table, err := p.tableConstructor()
		if err != nil {
			return nil, err
		}
		return []ast.Expr{table}, nil
	case token.LPAREN:
		pos := p.curr.Position
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.curr.Kind == token.RPAREN {
			return nil, p.advance()
		}
		args, err := p.exprList()
		if err != nil {
			return nil, err
		}
		if err := p.checkMatch(token.LPAREN, pos, token.RPAREN); err != nil {
			return nil, err
		}
		return args, nil
	default:
		return nil, p.errorf("function arguments expected")
	}
}

// tableConstructor parses `{ field {sep field} [sep] }` where sep is
// `,` or `;`.
func (p *parser) tableConstructor() (*ast.Table, error) {
	pos := p.curr.Position
	if err := p.advance(); err != nil { // consume '{'
		return nil, err
	}
	t := &ast.Table{Position: pos}
	for p.curr.Kind != token.RBRACE {
		field, err := p.tableField()
		if err != nil {
			return nil, err
		}
		t.Fields = append(t.Fields, field)
		if p.curr.Kind != token.COMMA && p.curr.Kind != token.SEMI {
			break
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
	}
	if err := p.checkMatch(token.LBRACE, pos, token.RBRACE); err != nil {
		return nil, err
	}
	return t, nil
}

func (p *parser) tableField() (*ast.Field, error) {
	pos := p.curr.Position
	if p.curr.Kind == token.LBRACK {
		if err := p.advance(); err != nil {
			return nil, err
		}
		key, err := p.expression()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.RBRACK); err != nil {
			return nil, err
		}
		if _, err := p.expect(token.ASSIGN); err != nil {
			return nil, err
		}
		value, err := p.expression()
		if err != nil {
			return nil, err
		}
		return &ast.Field{Position: pos, Key: key, Value: value}, nil
	}
	if p.curr.Kind == token.NAME {
		// Two-token lookahead: `name = value` is a named field;
		// otherwise the name starts an ordinary positional expression.
		next, err := p.peek()
		if err != nil {
			return nil, err
		}
		if next.Kind == token.ASSIGN {
			name, _, err := p.expectName()
			if err != nil {
				return nil, err
			}
			if err := p.advance(); err != nil { // consume '='
				return nil, err
			}
			value, err := p.expression()
			if err != nil {
				return nil, err
			}
			return &ast.Field{Position: pos, Name: name, Value: value}, nil
		}
	}
	value, err := p.expression()
	if err != nil {
		return nil, err
	}
	return &ast.Field{Position: pos, Value: value}, nil
}

// functionBody parses `(params) block end`, the part of a function
// literal/definition following the `function` keyword. isMethod
// prepends an implicit `self` parameter, per spec.md's method-call
// desugaring.
func (p *parser) functionBody(pos token.Position, isMethod bool) (*ast.FunctionThunk, error) {
	openPos := p.curr.Position
	if _, err := p.expect(token.LPAREN); err != nil {
		return nil, err
	}
	thunk := &ast.FunctionThunk{Position: pos}
	if isMethod {
		thunk.Params = append(thunk.Params, "self")
	}
	for p.curr.Kind != token.RPAREN {
		if p.curr.Kind == token.ELLIPSIS {
			thunk.IsVarargs = true
			if err := p.advance(); err != nil {
				return nil, err
			}
			break
		}
		name, _, err := p.expectName()
		if err != nil {
			return nil, err
		}
		thunk.Params = append(thunk.Params, name)
		if p.curr.Kind != token.COMMA {
			break
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
	}
	if err := p.checkMatch(token.LPAREN, openPos, token.RPAREN); err != nil {
		return nil, err
	}
	body, err := p.block()
	if err != nil {
		return nil, err
	}
	if err := p.checkMatch(token.FUNCTION, pos, token.END); err != nil {
		return nil, err
	}
	thunk.Body = body
	return thunk, nil
}
