package ast

import "stacklua.dev/pkg/internal/token"

// Stat is any statement node: one of the variants spec.md §3 lists
// under Stat — Block, Assign, FunctionCallStat, Do, While, Repeat, If,
// For, ForIn, FunctionDef, LocalFunction, LocalVars, Return, Break,
// Goto, Label.
type Stat interface {
	Pos() token.Position
	stat()
}

// Assign is `targets = values`, per spec.md §4.2's resolved open
// question: targets are prefix-expression lvalues, values are plain
// expressions. Augmented assignment is not part of the language.
type Assign struct {
	Position token.Position
	Targets  []PrefixExpr
	Values   []Expr
}

// FunctionCallStat is a function or method call used as a statement;
// its result, if any, is discarded.
type FunctionCallStat struct {
	Position token.Position
	Call     PrefixExpr // *FunctionCallExpr or *MethodCall
}

// Do is `do ... end`: an explicit nested scope with no control-flow
// effect of its own.
type Do struct {
	Position token.Position
	Body     *Block
}

// While is `while cond do ... end`.
type While struct {
	Position token.Position
	Cond     Expr
	Body     *Block
}

// Repeat is `repeat ... until cond`. Unlike While, Cond can reference
// locals declared in Body, since the condition is evaluated inside the
// loop body's scope.
type Repeat struct {
	Position token.Position
	Body     *Block
	Cond     Expr
}

// CondBlock is one `if`/`elseif` arm: a condition and the block to run
// when it is true.
type CondBlock struct {
	Position token.Position
	Cond     Expr
	Body     *Block
}

// If is `if cond then ... {elseif cond then ...} [else ...] end`.
// Spec.md §4.2 fixes this shape (CondBlocks has at least one entry,
// Else is optional) over the teacher corpus's contradictory
// main-pair-plus-alt-pairs vs. flat-list representations.
type If struct {
	Position   token.Position
	CondBlocks []*CondBlock
	Else       *Block // nil if there is no else clause
}

// For is a numeric for loop: `for name = start, limit [, step] do ... end`.
type For struct {
	Position token.Position
	Name     string
	Start    Expr
	Limit    Expr
	Step     Expr // nil if the step clause was omitted (implies 1)
	Body     *Block
}

// ForIn is a generic for loop: `for names in exprs do ... end`.
type ForIn struct {
	Position token.Position
	Names    []string
	Exprs    []Expr
	Body     *Block
}

// FunctionDef is `function a.b.c:m(...) ... end`, a statement-level
// function declaration that assigns into an existing table path (and,
// with a method name, implicitly binds a `self` parameter).
type FunctionDef struct {
	Position token.Position
	Name     *FunctionName
	Thunk    *FunctionThunk
}

// LocalFunction is `local function name(...) ... end`. The name is in
// scope inside the function's own body, unlike a plain `local name =
// function ... end`, which would not let the function recurse by name.
type LocalFunction struct {
	Position token.Position
	Name     string
	Thunk    *FunctionThunk
}

// LocalVars is `local names = values`, declaring new locals.
type LocalVars struct {
	Position token.Position
	Names    []string
	Values   []Expr
}

// Return is a block's optional last-statement returning zero or more
// values to the caller.
type Return struct {
	Position token.Position
	Values   []Expr
}

// Break exits the nearest enclosing loop. Valid only as a block's
// last-statement.
type Break struct {
	Position token.Position
}

// Goto transfers control to the label Name within the same function.
// Valid only as a block's last-statement.
type Goto struct {
	Position token.Position
	Name     string
}

// Label is a `::name::` target for Goto. Unlike Break/Goto/Return, a
// Label is an ordinary statement and may appear anywhere in a block's
// Stats, not only as its Last.
type Label struct {
	Position token.Position
	Name     string
}

func (s *Assign) Pos() token.Position            { return s.Position }
func (s *FunctionCallStat) Pos() token.Position   { return s.Position }
func (s *Do) Pos() token.Position                 { return s.Position }
func (s *While) Pos() token.Position              { return s.Position }
func (s *Repeat) Pos() token.Position             { return s.Position }
func (s *If) Pos() token.Position                 { return s.Position }
func (s *For) Pos() token.Position                { return s.Position }
func (s *ForIn) Pos() token.Position              { return s.Position }
func (s *FunctionDef) Pos() token.Position        { return s.Position }
func (s *LocalFunction) Pos() token.Position       { return s.Position }
func (s *LocalVars) Pos() token.Position          { return s.Position }
func (s *Return) Pos() token.Position             { return s.Position }
func (s *Break) Pos() token.Position              { return s.Position }
func (s *Goto) Pos() token.Position               { return s.Position }
func (s *Label) Pos() token.Position              { return s.Position }
func (s *Block) Pos() token.Position              { return s.Position }

func (*Assign) stat()            {}
func (*FunctionCallStat) stat()  {}
func (*Do) stat()                {}
func (*While) stat()             {}
func (*Repeat) stat()            {}
func (*If) stat()                {}
func (*For) stat()               {}
func (*ForIn) stat()             {}
func (*FunctionDef) stat()       {}
func (*LocalFunction) stat()     {}
func (*LocalVars) stat()         {}
func (*Return) stat()            {}
func (*Break) stat()             {}
func (*Goto) stat()              {}
func (*Label) stat()             {}
func (*Block) stat()             {}
