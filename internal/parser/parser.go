// Package parser implements the recursive-descent parser for the
// stacklua language, per spec.md §4.2. It consumes the token stream
// produced by [stacklua.dev/pkg/internal/scanner] and builds the
// [stacklua.dev/pkg/internal/ast] tree the compiler targets.
//
// Grounded on internal/luacode/parser.go's control structure
// (precedence climbing via a limit parameter, a suffix loop for
// prefix expressions, checkMatch for block closers) but restructured
// to build an AST instead of emitting bytecode directly, since the
// teacher's parser is a single-pass compiler and spec.md requires an
// explicit intermediate tree.
package parser

import (
	"fmt"
	"io"

	"stacklua.dev/pkg/internal/ast"
	"stacklua.dev/pkg/internal/scanner"
	"stacklua.dev/pkg/internal/token"
)

// Error reports a grammar violation at or before Token, per spec.md §7
// (ParserError). At end of file, Token is the EOF token and AtEOF is
// set.
type Error struct {
	Message string
	Token   token.Token
	AtEOF   bool
}

func (e *Error) Error() string {
	if e.AtEOF {
		return fmt.Sprintf("%v: %s (at end of file)", e.Token.Position, e.Message)
	}
	return fmt.Sprintf("%v: %s (found %v)", e.Token.Position, e.Message, e.Token)
}

// maxDepth bounds recursive-descent nesting so a pathological input
// fails with a [*Error] instead of overflowing the Go call stack.
const maxDepth = 200

type parser struct {
	sc      *scanner.Scanner
	curr    token.Token
	depth   int
	hasPeek bool
	peekTok token.Token
}

// Parse parses a complete chunk (spec.md's top-level Block production)
// from r.
func Parse(r io.ByteScanner) (*ast.Block, error) {
	p := &parser{sc: scanner.New(r)}
	if err := p.advance(); err != nil {
		return nil, err
	}
	block, err := p.block()
	if err != nil {
		return nil, err
	}
	if p.curr.Kind != token.EOF {
		return nil, p.errorf("expected end of file")
	}
	return block, nil
}

// advance reads the next significant token into p.curr, transparently
// discarding [token.NEWLINE]: the grammar spec.md describes never
// needs newline-sensitivity (statement boundaries are determined by
// keyword lookahead, exactly as in real Lua), so NEWLINE acts as
// insignificant whitespace from the parser's point of view, the same
// way it is simply skipped by the teacher's scanner loop for actual
// whitespace bytes.
func (p *parser) advance() error {
	if p.hasPeek {
		p.curr = p.peekTok
		p.hasPeek = false
		return nil
	}
	tok, err := p.scanSignificant()
	if err != nil {
		return err
	}
	p.curr = tok
	return nil
}

// peek returns the token after p.curr without consuming p.curr,
// caching it so the next advance reuses the scan. Used only where the
// grammar genuinely needs two-token lookahead (distinguishing a table
// constructor's named field `name = value` from a positional field
// starting with a name).
func (p *parser) peek() (token.Token, error) {
	if !p.hasPeek {
		tok, err := p.scanSignificant()
		if err != nil {
			return token.Token{}, err
		}
		p.peekTok = tok
		p.hasPeek = true
	}
	return p.peekTok, nil
}

func (p *parser) scanSignificant() (token.Token, error) {
	for {
		tok, err := p.sc.Scan()
		if err != nil {
			return token.Token{}, err
		}
		if tok.Kind == token.NEWLINE {
			continue
		}
		return tok, nil
	}
}

func (p *parser) errorf(format string, args ...any) error {
	return &Error{
		Message: fmt.Sprintf(format, args...),
		Token:   p.curr,
		AtEOF:   p.curr.Kind == token.EOF,
	}
}

// expect advances past the current token if it has the given kind,
// otherwise returns a [*Error].
func (p *parser) expect(kind token.Kind) (token.Token, error) {
	if p.curr.Kind != kind {
		return token.Token{}, p.errorf("expected %v", kind)
	}
	tok := p.curr
	if err := p.advance(); err != nil {
		return token.Token{}, err
	}
	return tok, nil
}

// expectName expects a [token.NAME] and returns its text.
func (p *parser) expectName() (string, token.Position, error) {
	tok, err := p.expect(token.NAME)
	if err != nil {
		return "", token.Position{}, err
	}
	return tok.Lexeme, tok.Position, nil
}

// checkMatch expects close, reporting that it should match an open
// token seen at startPos if it is missing (mirrors
// internal/luacode/parser.go's checkMatch).
func (p *parser) checkMatch(open token.Kind, openPos token.Position, close token.Kind) error {
	if p.curr.Kind == close {
		return p.advance()
	}
	if openPos == p.curr.Position {
		return p.errorf("expected %v", close)
	}
	return p.errorf("expected %v (to close %v at %v)", close, open, openPos)
}

func (p *parser) enter() error {
	p.depth++
	if p.depth > maxDepth {
		return p.errorf("expression or block nested too deeply")
	}
	return nil
}

func (p *parser) leave() {
	p.depth--
}

// isBlockFollow reports whether kind can only appear after the end of
// a block (spec.md: "the end of a block is marked by a closing
// end/until/else/elseif token, which the caller consumes").
func isBlockFollow(kind token.Kind) bool {
	switch kind {
	case token.EOF, token.END, token.ELSE, token.ELSEIF, token.UNTIL:
		return true
	default:
		return false
	}
}
