package ast

import "stacklua.dev/pkg/internal/token"

// Expr is any expression node, per spec.md §3: Expr ⊇ Factor ⊇
// PrefixExpr, plus the expression-only variants FunctionThunk, Binary,
// and Unary.
type Expr interface {
	Pos() token.Position
	expr()
}

// Factor is an Expr that is also one of spec.md's Factor variants:
// Nil, Boolean, Number, String, Name, Varargs, NestedExpr, Table.
type Factor interface {
	Expr
	factor()
}

// PrefixExpr is a Factor that can serve as the base of, or result of,
// a chain of suffixes (`.name`, `[expr]`, `:name args`, `args`):
// Name, NestedExpr, Index, Field, FunctionCallExpr, MethodCall.
type PrefixExpr interface {
	Factor
	prefixExpr()
}

// Nil is the literal `nil`.
type Nil struct {
	Position token.Position
}

// Boolean is the literal `true` or `false`.
type Boolean struct {
	Position token.Position
	Value    bool
}

// Number is a numeric literal. Lexeme is the literal's source text,
// verbatim; internal/compiler parses it into a VM constant.
type Number struct {
	Position token.Position
	Lexeme   string
}

// String is a (already-unescaped) string literal.
type String struct {
	Position token.Position
	Value    string
}

// Name is an identifier used as an expression (a variable reference).
type Name struct {
	Position token.Position
	Value    string
}

// Varargs is the `...` expression, valid only inside a vararg function.
type Varargs struct {
	Position token.Position
}

// NestedExpr is a parenthesized expression `( expr )`. Besides
// grouping, it also truncates a multi-value expression to its first
// value, matching Lua's semantics for parenthesized calls/varargs.
type NestedExpr struct {
	Position token.Position
	Inner    Expr
}

// Table is a table constructor `{ field, field, ... }`.
type Table struct {
	Position token.Position
	Fields   []*Field
}

// Index is `e[k]`.
type Index struct {
	Position token.Position
	Target   PrefixExpr
	Key      Expr
}

// FieldExpr is `e.k`, sugar for `e["k"]`.
type FieldExpr struct {
	Position token.Position
	Target   PrefixExpr
	Name     string
}

// FunctionCallExpr is `e(args)`.
type FunctionCallExpr struct {
	Position token.Position
	Callee   PrefixExpr
	Args     []Expr
}

// MethodCall is `e:m(args)`, sugar for `e.m(e, args)` with `e`
// evaluated exactly once.
type MethodCall struct {
	Position token.Position
	Target   PrefixExpr
	Method   string
	Args     []Expr
}

// FunctionName is the `a.b.c:m` path at a statement-level function
// definition (spec.md §4.1's FunctionDef). It is not a general
// expression: it only ever appears as FunctionDef.Name.
type FunctionName struct {
	Position token.Position
	Base     string
	Fields   []string // zero or more trailing `.field` components
	Method   string    // non-empty for a `:method` definition
}

// FunctionThunk is a function literal `function(params) ... end`
// (with the leading `function` keyword already consumed by the
// caller when parsing a LocalFunction or FunctionDef).
type FunctionThunk struct {
	Position   token.Position
	Params     []string
	IsVarargs  bool
	Body       *Block
}

// Binary is a binary operator expression.
type Binary struct {
	Position token.Position
	Op       token.Kind
	Left     Expr
	Right    Expr
}

// Unary is a unary operator expression (`-`, `not`, `#`, `~`).
type Unary struct {
	Position token.Position
	Op       token.Kind
	Operand  Expr
}

func (e *Nil) Pos() token.Position              { return e.Position }
func (e *Boolean) Pos() token.Position          { return e.Position }
func (e *Number) Pos() token.Position           { return e.Position }
func (e *String) Pos() token.Position           { return e.Position }
func (e *Name) Pos() token.Position             { return e.Position }
func (e *Varargs) Pos() token.Position          { return e.Position }
func (e *NestedExpr) Pos() token.Position        { return e.Position }
func (e *Table) Pos() token.Position            { return e.Position }
func (e *Index) Pos() token.Position            { return e.Position }
func (e *FieldExpr) Pos() token.Position        { return e.Position }
func (e *FunctionCallExpr) Pos() token.Position { return e.Position }
func (e *MethodCall) Pos() token.Position       { return e.Position }
func (e *FunctionName) Pos() token.Position     { return e.Position }
func (e *FunctionThunk) Pos() token.Position    { return e.Position }
func (e *Binary) Pos() token.Position           { return e.Position }
func (e *Unary) Pos() token.Position            { return e.Position }

func (*Nil) expr()              {}
func (*Boolean) expr()          {}
func (*Number) expr()           {}
func (*String) expr()           {}
func (*Name) expr()             {}
func (*Varargs) expr()          {}
func (*NestedExpr) expr()       {}
func (*Table) expr()            {}
func (*Index) expr()            {}
func (*FieldExpr) expr()        {}
func (*FunctionCallExpr) expr() {}
func (*MethodCall) expr()       {}
func (*FunctionThunk) expr()    {}
func (*Binary) expr()           {}
func (*Unary) expr()            {}

func (*Nil) factor()        {}
func (*Boolean) factor()    {}
func (*Number) factor()     {}
func (*String) factor()     {}
func (*Name) factor()       {}
func (*Varargs) factor()    {}
func (*NestedExpr) factor() {}
func (*Table) factor()      {}
func (*Index) factor()      {}
func (*FieldExpr) factor()  {}
func (*FunctionCallExpr) factor() {}
func (*MethodCall) factor()       {}

func (*Name) prefixExpr()             {}
func (*NestedExpr) prefixExpr()       {}
func (*Index) prefixExpr()            {}
func (*FieldExpr) prefixExpr()        {}
func (*FunctionCallExpr) prefixExpr() {}
func (*MethodCall) prefixExpr()       {}
