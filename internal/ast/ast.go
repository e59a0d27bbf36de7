// Package ast defines the abstract syntax tree produced by
// [stacklua.dev/pkg/internal/parser], per spec.md §3.
//
// The tree is a set of variant sorts (Stat, Expr, Factor, PrefixExpr),
// each a Go interface implemented by one struct type per variant;
// consumers type-switch over the concrete types.
package ast

import "stacklua.dev/pkg/internal/token"

// Block is an ordered sequence of statements with an optional
// terminating last-statement, per spec.md §3. If Last is non-nil, it
// is always the final element executed in the block; it is never a
// member of Stats.
type Block struct {
	Position   token.Position
	Stats      []Stat
	Last       Stat // nil, or one of *Return, *Break, *Goto
}

// Field is one entry of a table constructor (spec.md §3).
type Field struct {
	Position token.Position
	// Name is set for a named field (`name = value`); Key is set for a
	// bracketed field (`[key] = value`); neither is set for a
	// positional field (`value`).
	Name  string
	Key   Expr
	Value Expr
}
