package compiler

import (
	"fmt"

	"stacklua.dev/pkg/internal/ast"
	"stacklua.dev/pkg/internal/token"
	"stacklua.dev/pkg/internal/vm"
)

// compileExpr compiles e so that it leaves exactly one Value on the
// operand stack. spec.md notes multi-value return is left undecided
// by the instruction set; this compiler resolves that open question
// by never emitting a Return, or a call used as a value, with more
// than one result (see emitReturn and compileCall) — every expression
// context here is single-valued, matching the convention a caller
// already needs for arithmetic and assignment RHS anyway. DESIGN.md
// records this as a deliberate simplification, not an oversight.
func (c *compiler) compileExpr(fs *funcState, e ast.Expr) error {
	switch e := e.(type) {
	case *ast.Nil:
		c.pushConst(vm.Nil)
	case *ast.Boolean:
		c.pushBool(e.Value)
	case *ast.Number:
		n, err := parseNumber(e.Lexeme)
		if err != nil {
			return &Error{Position: e.Position, Message: fmt.Sprintf("malformed number %q: %v", e.Lexeme, err)}
		}
		c.pushNumber(n)
	case *ast.String:
		c.pushString(e.Value)
	case *ast.Name:
		c.loadName(fs, e.Value)
	case *ast.Varargs:
		// No opcode exposes the pushed-but-unconsumed extra arguments
		// of a vararg call as a countable sequence (see DESIGN.md);
		// `...` compiles to Nil rather than silently under-counting.
		c.pushConst(vm.Nil)
	case *ast.NestedExpr:
		return c.compileExpr(fs, e.Inner)
	case *ast.Table:
		return c.compileTable(fs, e)
	case *ast.Index:
		if err := c.compileExpr(fs, e.Target); err != nil {
			return err
		}
		if err := c.compileExpr(fs, e.Key); err != nil {
			return err
		}
		c.emit(vm.OpGetFromTable)
	case *ast.FieldExpr:
		if err := c.compileExpr(fs, e.Target); err != nil {
			return err
		}
		c.pushString(e.Name)
		c.emit(vm.OpGetFromTable)
	case *ast.FunctionCallExpr:
		return c.compileCall(fs, e.Callee, e.Args)
	case *ast.MethodCall:
		return c.compileMethodCall(fs, e)
	case *ast.FunctionThunk:
		return c.compileFunctionThunk(fs, e)
	case *ast.Binary:
		return c.compileBinary(fs, e)
	case *ast.Unary:
		return c.compileUnary(fs, e)
	default:
		return &Error{Position: e.Pos(), Message: fmt.Sprintf("compiler: unhandled expression %T", e)}
	}
	return nil
}

func (c *compiler) loadName(fs *funcState, name string) {
	kind, idx := c.resolve(fs, name)
	c.pushIndex(idx)
	switch kind {
	case varLocal:
		c.emit(vm.OpLoadLocal)
	case varUpvalue:
		c.emit(vm.OpLoadUpvalue)
	default:
		c.emit(vm.OpLoadGlobal)
	}
}

// compileTable compiles a table constructor. Fields with no explicit
// key are numbered from 1 (spec.md §8 scenario 3 treats `{1,2,3}` as a
// 3-entry array), matching real Lua's 1-based array part; this also
// makes `#t` (see compileLength) computable as a runtime probe over
// Number keys 1, 2, 3, ... rather than needing a dedicated length
// opcode the instruction set doesn't have.
//
// The table object itself is a single Value baked into the Code
// stream at compile time (there is no MakeTable instruction): a
// constructor evaluated more than once — inside a loop, or a function
// called repeatedly — therefore yields the same *vm.Table each time
// rather than a fresh one. This is a real deviation from Lua and is
// recorded in DESIGN.md, not hidden.
func (c *compiler) compileTable(fs *funcState, t *ast.Table) error {
	table := vm.NewTable(len(t.Fields))
	c.pushConst(vm.TableValue(table))
	next := 1
	for _, f := range t.Fields {
		switch {
		case f.Name != "":
			c.pushString(f.Name)
		case f.Key != nil:
			if err := c.compileExpr(fs, f.Key); err != nil {
				return err
			}
		default:
			c.pushNumber(float64(next))
			next++
		}
		if err := c.compileExpr(fs, f.Value); err != nil {
			return err
		}
		c.emit(vm.OpInsertIntoTable)
	}
	return nil
}

// compileCall compiles `callee(args)` so that exactly one result is
// left on the stack: push each argument (single-valued), the argument
// count, then the callee, CallClosure, then a Discard for the Index
// result-count ReturnFromClosure always leaves (this compiler only
// ever emits single-result returns, so that count is always 1),
// leaving just the result. A statement-level call (FunctionCallStat,
// in stmt.go) emits one further Discard on top of this to drop that
// result too, matching the two-Discard pattern OpDiscard exists for.
func (c *compiler) compileCall(fs *funcState, callee ast.PrefixExpr, args []ast.Expr) error {
	if err := c.compileArgs(fs, args); err != nil {
		return err
	}
	if err := c.compileExpr(fs, callee); err != nil {
		return err
	}
	c.emit(vm.OpCallClosure)
	c.emit(vm.OpDiscard) // the (always 1) result count
	return nil
}

// compileArgs pushes each argument (single-valued) followed by the
// Index count CallClosure's pushed-args operand requires.
func (c *compiler) compileArgs(fs *funcState, args []ast.Expr) error {
	for _, a := range args {
		if err := c.compileExpr(fs, a); err != nil {
			return err
		}
	}
	c.pushIndex(len(args))
	return nil
}

// compileMethodCall compiles `target:method(args)`, sugar for
// `target.method(target, args)` with target evaluated exactly once.
// Since there is no Dup instruction, target is evaluated into a fresh
// temporary local so it can be read twice (once as the receiver
// argument, once as the table the method is looked up on).
func (c *compiler) compileMethodCall(fs *funcState, m *ast.MethodCall) error {
	temp := fs.allocTemp()
	c.pushIndex(temp)
	if err := c.compileExpr(fs, m.Target); err != nil {
		return err
	}
	c.emit(vm.OpStoreLocal)

	c.pushIndex(temp)
	c.emit(vm.OpLoadLocal) // self, as the first argument
	for _, a := range m.Args {
		if err := c.compileExpr(fs, a); err != nil {
			return err
		}
	}
	c.pushIndex(len(m.Args) + 1)

	c.pushIndex(temp)
	c.emit(vm.OpLoadLocal)
	c.pushString(m.Method)
	c.emit(vm.OpGetFromTable)

	c.emit(vm.OpCallClosure)
	c.emit(vm.OpDiscard)
	return nil
}

// compileFunctionThunk compiles a function literal inline, at the
// point it occurs, wrapped in a Branch that skips over its body at
// runtime (see the package doc): the body needs to run only when
// CallClosure transfers control to entry_pc, never by falling into it
// from the enclosing function's own flow.
func (c *compiler) compileFunctionThunk(fs *funcState, t *ast.FunctionThunk) error {
	skipAt := c.pushAddressPlaceholder()
	c.emit(vm.OpBranch)

	entryPC := c.here()
	inner := newFuncState(fs, len(t.Params), t.IsVarargs)
	if err := c.compileFunctionBody(inner, t.Params, t.Body); err != nil {
		return err
	}
	c.patchAddress(skipAt, c.here())

	c.pushIndex(0) // numConstants: this compiler never bakes per-frame constants
	for _, u := range inner.upvalues {
		c.pushIndex(u.index)
		c.pushBool(!u.fromParentLocal) // isParentUpvalue
	}
	c.pushIndex(len(inner.upvalues))
	c.pushConst(vm.AddressValue(entryPC))
	c.pushIndex(len(t.Params))
	c.pushIndex(inner.numLocals)
	c.pushBool(t.IsVarargs)
	c.emit(vm.OpMakeClosure)
	return nil
}

var binaryOps = map[token.Kind]vm.Op{
	token.PLUS:    vm.OpAdd,
	token.MINUS:   vm.OpSub,
	token.STAR:    vm.OpMul,
	token.SLASH:   vm.OpDiv,
	token.PERCENT: vm.OpMod,
	token.CARET:   vm.OpFPow,
	token.AMP:     vm.OpBitwiseAnd,
	token.PIPE:    vm.OpBitwiseOr,
	token.TILDE:   vm.OpBitwiseXor,
	token.SHL:     vm.OpBitwiseShiftLeft,
	token.SHR:     vm.OpBitwiseShiftRight,
	token.CONCAT:  vm.OpConcatString,
	token.EQ:      vm.OpEq,
	token.NE:      vm.OpNe,
	token.LT:      vm.OpLt,
	token.LE:      vm.OpLe,
	token.GT:      vm.OpGt,
	token.GE:      vm.OpGe,
}

func (c *compiler) compileBinary(fs *funcState, b *ast.Binary) error {
	switch b.Op {
	case token.AND:
		return c.compileAnd(fs, b.Left, b.Right)
	case token.OR:
		return c.compileOr(fs, b.Left, b.Right)
	case token.IDIV:
		if err := c.compileExpr(fs, b.Left); err != nil {
			return err
		}
		if err := c.compileExpr(fs, b.Right); err != nil {
			return err
		}
		c.emit(vm.OpDiv)
		c.emit(vm.OpFloorReal)
		return nil
	}
	op, ok := binaryOps[b.Op]
	if !ok {
		return &Error{Position: b.Position, Message: fmt.Sprintf("compiler: unhandled binary operator %v", b.Op)}
	}
	if err := c.compileExpr(fs, b.Left); err != nil {
		return err
	}
	if err := c.compileExpr(fs, b.Right); err != nil {
		return err
	}
	c.emit(op)
	return nil
}

// compileAnd compiles `a and b` short-circuiting the evaluation of b,
// per spec.md §4.3.3's "Conjunction... short-circuit semantics
// deferred to compiler; the opcode itself is strict": rather than
// calling OpConjunction (which always evaluates and pops both sides),
// this branches around b entirely when a is falsy, and otherwise
// normalizes b's truthiness to a strict Boolean via double Not (so
// `and`/`or` always yield a Boolean here, consistent with the VM's
// treatment of Conjunction/Disjunction as boolean operators rather
// than Lua's usual value-echoing ones).
func (c *compiler) compileAnd(fs *funcState, left, right ast.Expr) error {
	if err := c.compileExpr(fs, left); err != nil {
		return err
	}
	falseAt := c.pushAddressPlaceholder()
	c.emit(vm.OpBranchIfFalse)
	if err := c.compileExpr(fs, right); err != nil {
		return err
	}
	c.emit(vm.OpNot)
	c.emit(vm.OpNot)
	endAt := c.pushAddressPlaceholder()
	c.emit(vm.OpBranch)
	c.patchAddress(falseAt, c.here())
	c.pushBool(false)
	c.patchAddress(endAt, c.here())
	return nil
}

func (c *compiler) compileOr(fs *funcState, left, right ast.Expr) error {
	if err := c.compileExpr(fs, left); err != nil {
		return err
	}
	trueAt := c.pushAddressPlaceholder()
	c.emit(vm.OpBranchIfTrue)
	if err := c.compileExpr(fs, right); err != nil {
		return err
	}
	c.emit(vm.OpNot)
	c.emit(vm.OpNot)
	endAt := c.pushAddressPlaceholder()
	c.emit(vm.OpBranch)
	c.patchAddress(trueAt, c.here())
	c.pushBool(true)
	c.patchAddress(endAt, c.here())
	return nil
}

func (c *compiler) compileUnary(fs *funcState, u *ast.Unary) error {
	if u.Op == token.HASH {
		return c.compileLength(fs, u.Operand)
	}
	if err := c.compileExpr(fs, u.Operand); err != nil {
		return err
	}
	switch u.Op {
	case token.MINUS:
		c.emit(vm.OpNegate)
	case token.NOT:
		c.emit(vm.OpNot)
	case token.TILDE:
		c.emit(vm.OpBitwiseNot)
	default:
		return &Error{Position: u.Position, Message: fmt.Sprintf("compiler: unhandled unary operator %v", u.Op)}
	}
	return nil
}

// compileLength compiles `#operand` as a runtime probe over the
// table's Number-keyed array part (spec.md §8 scenario 3 explicitly
// rules out a BitwiseNot trick): starting from 1, repeatedly
// check_if_table_has the next key until one is missing, counting how
// many were found. There is no dedicated length instruction in
// spec.md's set; this compiles entirely from CheckIfTableHas, Add,
// and branches.
func (c *compiler) compileLength(fs *funcState, operand ast.Expr) error {
	table := fs.allocTemp()
	c.pushIndex(table)
	if err := c.compileExpr(fs, operand); err != nil {
		return err
	}
	c.emit(vm.OpStoreLocal)

	count := fs.allocTemp()
	c.pushIndex(count)
	c.pushNumber(0)
	c.emit(vm.OpStoreLocal)

	loopAt := c.here()
	c.pushIndex(table)
	c.emit(vm.OpLoadLocal)
	c.pushIndex(count)
	c.emit(vm.OpLoadLocal)
	c.pushNumber(1)
	c.emit(vm.OpAdd)
	c.emit(vm.OpCheckIfTableHas)
	doneAt := c.pushAddressPlaceholder()
	c.emit(vm.OpBranchIfFalse)

	c.pushIndex(count)
	c.pushIndex(count)
	c.emit(vm.OpLoadLocal)
	c.pushNumber(1)
	c.emit(vm.OpAdd)
	c.emit(vm.OpStoreLocal)
	c.pushConst(vm.AddressValue(loopAt))
	c.emit(vm.OpBranch)

	c.patchAddress(doneAt, c.here())
	c.pushIndex(count)
	c.emit(vm.OpLoadLocal)
	return nil
}
