package compiler

import (
	"fmt"

	"stacklua.dev/pkg/internal/ast"
	"stacklua.dev/pkg/internal/token"
	"stacklua.dev/pkg/internal/vm"
)

// compileBlock compiles every statement of b in order, finishing with
// its optional last-statement (Return, Break, or Goto). It does not
// itself open or close a scope: callers that need the block's locals
// to disappear afterward (Do, While, For, ...) push/pop around the
// call.
func (c *compiler) compileBlock(fs *funcState, b *ast.Block) error {
	for _, s := range b.Stats {
		if err := c.compileStat(fs, s); err != nil {
			return err
		}
	}
	if b.Last != nil {
		return c.compileStat(fs, b.Last)
	}
	return nil
}

func (c *compiler) compileStat(fs *funcState, s ast.Stat) error {
	switch s := s.(type) {
	case *ast.Assign:
		return c.compileAssign(fs, s)
	case *ast.FunctionCallStat:
		if err := c.compileExpr(fs, s.Call); err != nil {
			return err
		}
		c.emit(vm.OpDiscard) // drop the single value compileExpr leaves
		return nil
	case *ast.Do:
		fs.pushScope()
		err := c.compileBlock(fs, s.Body)
		fs.popScope()
		return err
	case *ast.While:
		return c.compileWhile(fs, s)
	case *ast.Repeat:
		return c.compileRepeat(fs, s)
	case *ast.If:
		return c.compileIf(fs, s)
	case *ast.For:
		return c.compileFor(fs, s)
	case *ast.ForIn:
		return c.compileForIn(fs, s)
	case *ast.FunctionDef:
		return c.compileFunctionDef(fs, s)
	case *ast.LocalFunction:
		return c.compileLocalFunction(fs, s)
	case *ast.LocalVars:
		return c.compileLocalVars(fs, s)
	case *ast.Return:
		return c.emitReturn(fs, s.Values)
	case *ast.Break:
		loop := fs.currentLoop()
		if loop == nil {
			return &Error{Position: s.Position, Message: "break outside a loop"}
		}
		at := c.pushAddressPlaceholder()
		c.emit(vm.OpBranch)
		loop.breakPatches = append(loop.breakPatches, at)
		return nil
	case *ast.Goto:
		return c.compileGoto(fs, s)
	case *ast.Label:
		if at, ok := fs.labels[s.Name]; ok {
			return &Error{Position: s.Position, Message: fmt.Sprintf("label %q already defined at address %d", s.Name, at)}
		}
		here := c.here()
		fs.labels[s.Name] = here
		for _, patch := range fs.pendingGotos[s.Name] {
			c.patchAddress(patch, here)
		}
		delete(fs.pendingGotos, s.Name)
		return nil
	default:
		return &Error{Position: s.Pos(), Message: fmt.Sprintf("compiler: unhandled statement %T", s)}
	}
}

func (c *compiler) compileGoto(fs *funcState, g *ast.Goto) error {
	if at, ok := fs.labels[g.Name]; ok {
		c.pushConst(vm.AddressValue(at))
		c.emit(vm.OpBranch)
		return nil
	}
	at := c.pushAddressPlaceholder()
	c.emit(vm.OpBranch)
	fs.pendingGotos[g.Name] = append(fs.pendingGotos[g.Name], at)
	return nil
}

// emitReturn compiles a Return statement under this compiler's
// single-value convention (see compileExpr's doc comment): only the
// first listed expression becomes the function's result; any further
// expressions are still compiled and evaluated, for their side
// effects, then discarded. An empty list returns Nil.
func (c *compiler) emitReturn(fs *funcState, values []ast.Expr) error {
	if len(values) == 0 {
		c.pushConst(vm.Nil)
	} else {
		for _, v := range values {
			if err := c.compileExpr(fs, v); err != nil {
				return err
			}
		}
		for range values[1:] {
			c.emit(vm.OpDiscard)
		}
	}
	c.pushIndex(1)
	c.emit(vm.OpReturnFromClosure)
	return nil
}

// compileAssign compiles `targets = values`. Every value is computed
// and stashed into a temporary local *before* any target is stored
// into, matching Lua's "evaluate the whole right-hand side, then
// assign" rule: `a, b = b, a` must swap using the pre-assignment
// values of a and b, which is only guaranteed if storing into a
// (which may itself be named "b", or alias the same table slot one of
// the other values reads) can't be observed by a value expression
// still to be compiled. Missing values default to Nil; extra values
// are still compiled and discarded, for their side effects.
func (c *compiler) compileAssign(fs *funcState, a *ast.Assign) error {
	temps := make([]int, len(a.Targets))
	for i := range a.Targets {
		temp := fs.allocTemp()
		temps[i] = temp
		c.pushIndex(temp)
		if i < len(a.Values) {
			if err := c.compileExpr(fs, a.Values[i]); err != nil {
				return err
			}
		} else {
			c.pushConst(vm.Nil)
		}
		c.emit(vm.OpStoreLocal)
	}
	for _, extra := range a.Values[min(len(a.Targets), len(a.Values)):] {
		if err := c.compileExpr(fs, extra); err != nil {
			return err
		}
		c.emit(vm.OpDiscard)
	}
	for i, target := range a.Targets {
		if err := c.compileStoreTarget(fs, target, temps[i]); err != nil {
			return err
		}
	}
	return nil
}

// compileStoreTarget stores the value held in local slot valueSlot
// into target.
func (c *compiler) compileStoreTarget(fs *funcState, target ast.PrefixExpr, valueSlot int) error {
	loadValue := func() { c.pushIndex(valueSlot); c.emit(vm.OpLoadLocal) }
	switch target := target.(type) {
	case *ast.Name:
		kind, idx := c.resolve(fs, target.Value)
		c.pushIndex(idx)
		loadValue()
		switch kind {
		case varLocal:
			c.emit(vm.OpStoreLocal)
		case varUpvalue:
			c.emit(vm.OpStoreUpvalue)
		default:
			c.emit(vm.OpStoreGlobal)
		}
		return nil
	case *ast.Index:
		if err := c.compileExpr(fs, target.Target); err != nil {
			return err
		}
		if err := c.compileExpr(fs, target.Key); err != nil {
			return err
		}
		loadValue()
		c.emit(vm.OpInsertIntoTable)
		c.emit(vm.OpDiscard) // InsertIntoTable leaves the table itself on top
		return nil
	case *ast.FieldExpr:
		if err := c.compileExpr(fs, target.Target); err != nil {
			return err
		}
		c.pushString(target.Name)
		loadValue()
		c.emit(vm.OpInsertIntoTable)
		c.emit(vm.OpDiscard)
		return nil
	default:
		return &Error{Position: target.Pos(), Message: fmt.Sprintf("compiler: invalid assignment target %T", target)}
	}
}

func (c *compiler) compileWhile(fs *funcState, w *ast.While) error {
	loop := fs.pushLoop()
	top := c.here()
	if err := c.compileExpr(fs, w.Cond); err != nil {
		return err
	}
	exitAt := c.pushAddressPlaceholder()
	c.emit(vm.OpBranchIfFalse)

	fs.pushScope()
	err := c.compileBlock(fs, w.Body)
	fs.popScope()
	if err != nil {
		return err
	}

	c.pushConst(vm.AddressValue(top))
	c.emit(vm.OpBranch)

	end := c.here()
	c.patchAddress(exitAt, end)
	for _, at := range loop.breakPatches {
		c.patchAddress(at, end)
	}
	fs.popLoop()
	return nil
}

// compileRepeat compiles `repeat body until cond`, keeping body's
// scope open across the evaluation of cond (spec.md §3: "Cond can
// reference locals declared in Body").
func (c *compiler) compileRepeat(fs *funcState, r *ast.Repeat) error {
	loop := fs.pushLoop()
	top := c.here()

	fs.pushScope()
	if err := c.compileBlock(fs, r.Body); err != nil {
		fs.popScope()
		return err
	}
	if err := c.compileExpr(fs, r.Cond); err != nil {
		fs.popScope()
		return err
	}
	fs.popScope()

	c.pushConst(vm.AddressValue(top))
	c.emit(vm.OpBranchIfFalse)

	end := c.here()
	for _, at := range loop.breakPatches {
		c.patchAddress(at, end)
	}
	fs.popLoop()
	return nil
}

func (c *compiler) compileIf(fs *funcState, i *ast.If) error {
	var endPatches []int
	for _, cb := range i.CondBlocks {
		if err := c.compileExpr(fs, cb.Cond); err != nil {
			return err
		}
		nextAt := c.pushAddressPlaceholder()
		c.emit(vm.OpBranchIfFalse)

		fs.pushScope()
		err := c.compileBlock(fs, cb.Body)
		fs.popScope()
		if err != nil {
			return err
		}

		endAt := c.pushAddressPlaceholder()
		c.emit(vm.OpBranch)
		endPatches = append(endPatches, endAt)
		c.patchAddress(nextAt, c.here())
	}
	if i.Else != nil {
		fs.pushScope()
		err := c.compileBlock(fs, i.Else)
		fs.popScope()
		if err != nil {
			return err
		}
	}
	end := c.here()
	for _, at := range endPatches {
		c.patchAddress(at, end)
	}
	return nil
}

// compileFor compiles a numeric for loop by declaring three hidden
// control locals (start, limit, step) alongside the visible loop
// variable, grounded on the teacher's FuncState control-variable
// convention of naming compiler-internal slots (see
// internal/luacode/funcstate.go's "(for state)" locals), adapted here
// to unnamed temp slots since this package has no debug-name table to
// populate.
//
// The ascending/descending comparison is chosen at compile time from
// a literal step, defaulting to ascending: a non-literal step of
// unknown runtime sign is a known simplification (see DESIGN.md) since
// expressing "compare using whichever of Lt/Gt the sign of a runtime
// Number picks" needs a conditional the instruction set can express
// but this compiler does not generate for it.
func (c *compiler) compileFor(fs *funcState, f *ast.For) error {
	descending := false
	if u, ok := f.Step.(*ast.Unary); ok && u.Op == token.MINUS {
		if _, ok := u.Operand.(*ast.Number); ok {
			descending = true
		}
	}

	fs.pushScope()
	startSlot := fs.allocTemp()
	limitSlot := fs.allocTemp()
	stepSlot := fs.allocTemp()

	c.pushIndex(startSlot)
	if err := c.compileExpr(fs, f.Start); err != nil {
		fs.popScope()
		return err
	}
	c.emit(vm.OpStoreLocal)

	c.pushIndex(limitSlot)
	if err := c.compileExpr(fs, f.Limit); err != nil {
		fs.popScope()
		return err
	}
	c.emit(vm.OpStoreLocal)

	c.pushIndex(stepSlot)
	if f.Step != nil {
		if err := c.compileExpr(fs, f.Step); err != nil {
			fs.popScope()
			return err
		}
	} else {
		c.pushNumber(1)
	}
	c.emit(vm.OpStoreLocal)

	nameSlot := fs.declareLocal(f.Name)
	c.pushIndex(nameSlot)
	c.pushIndex(startSlot)
	c.emit(vm.OpLoadLocal)
	c.emit(vm.OpStoreLocal)

	loop := fs.pushLoop()
	top := c.here()
	c.pushIndex(nameSlot)
	c.emit(vm.OpLoadLocal)
	c.pushIndex(limitSlot)
	c.emit(vm.OpLoadLocal)
	if descending {
		c.emit(vm.OpGe)
	} else {
		c.emit(vm.OpLe)
	}
	exitAt := c.pushAddressPlaceholder()
	c.emit(vm.OpBranchIfFalse)

	fs.pushScope()
	err := c.compileBlock(fs, f.Body)
	fs.popScope()
	if err != nil {
		return err
	}

	c.pushIndex(nameSlot)
	c.pushIndex(nameSlot)
	c.emit(vm.OpLoadLocal)
	c.pushIndex(stepSlot)
	c.emit(vm.OpLoadLocal)
	c.emit(vm.OpAdd)
	c.emit(vm.OpStoreLocal)

	c.pushConst(vm.AddressValue(top))
	c.emit(vm.OpBranch)

	end := c.here()
	c.patchAddress(exitAt, end)
	for _, at := range loop.breakPatches {
		c.patchAddress(at, end)
	}
	fs.popLoop()
	fs.popScope()
	return nil
}

// compileForIn compiles a generic for loop under a simplified,
// single-value iteration protocol: the first of Exprs is the iterator
// function, called as `iter(control)` each pass; the loop stops the
// first time it returns Nil, and otherwise binds Names[0] to that
// result and uses it as the next pass's control value. Real Lua's
// three-value (f, s, var) protocol and multi-result binding for
// Names[1:] both need multi-value returns, which this compiler does
// not generate (see compileExpr's doc comment); stdlib iterators like
// pairs/ipairs are out of scope regardless, since there is no table
// library in this VM. Names beyond the first are bound Nil.
func (c *compiler) compileForIn(fs *funcState, f *ast.ForIn) error {
	if len(f.Exprs) == 0 {
		return &Error{Position: f.Position, Message: "for-in requires an iterator expression"}
	}

	fs.pushScope()
	iterSlot := fs.allocTemp()
	controlSlot := fs.allocTemp()
	c.pushIndex(iterSlot)
	if err := c.compileExpr(fs, f.Exprs[0]); err != nil {
		fs.popScope()
		return err
	}
	c.emit(vm.OpStoreLocal)
	c.pushIndex(controlSlot)
	c.pushConst(vm.Nil)
	c.emit(vm.OpStoreLocal)

	loop := fs.pushLoop()
	top := c.here()
	c.pushIndex(controlSlot)
	c.pushIndex(controlSlot)
	c.emit(vm.OpLoadLocal)
	c.pushIndex(1)
	c.pushIndex(iterSlot)
	c.emit(vm.OpLoadLocal)
	c.emit(vm.OpCallClosure)
	c.emit(vm.OpDiscard) // the (always 1) result count
	c.emit(vm.OpStoreLocal)

	c.pushIndex(controlSlot)
	c.emit(vm.OpLoadLocal)
	c.pushConst(vm.Nil)
	c.emit(vm.OpEq)
	exitAt := c.pushAddressPlaceholder()
	c.emit(vm.OpBranchIfTrue)

	fs.pushScope()
	if len(f.Names) > 0 {
		nameSlot := fs.declareLocal(f.Names[0])
		c.pushIndex(nameSlot)
		c.pushIndex(controlSlot)
		c.emit(vm.OpLoadLocal)
		c.emit(vm.OpStoreLocal)
	}
	for _, extra := range f.Names[min(1, len(f.Names)):] {
		slot := fs.declareLocal(extra)
		c.pushIndex(slot)
		c.pushConst(vm.Nil)
		c.emit(vm.OpStoreLocal)
	}
	err := c.compileBlock(fs, f.Body)
	fs.popScope()
	if err != nil {
		return err
	}

	c.pushConst(vm.AddressValue(top))
	c.emit(vm.OpBranch)

	end := c.here()
	c.patchAddress(exitAt, end)
	for _, at := range loop.breakPatches {
		c.patchAddress(at, end)
	}
	fs.popLoop()
	fs.popScope()
	return nil
}

// compileFunctionDef compiles `function a.b.c:m(...) ... end`: a
// syntactic assignment into a (possibly nested, possibly
// method-binding) table path.
func (c *compiler) compileFunctionDef(fs *funcState, def *ast.FunctionDef) error {
	// The parser has already prepended "self" to a method's Params.
	thunk := def.Thunk

	if len(def.Name.Fields) == 0 && def.Name.Method == "" {
		kind, idx := c.resolve(fs, def.Name.Base)
		c.pushIndex(idx)
		if err := c.compileFunctionThunk(fs, thunk); err != nil {
			return err
		}
		switch kind {
		case varLocal:
			c.emit(vm.OpStoreLocal)
		case varUpvalue:
			c.emit(vm.OpStoreUpvalue)
		default:
			c.emit(vm.OpStoreGlobal)
		}
		return nil
	}

	// Walk every Fields component via GetFromTable to reach the table
	// the final key is inserted into. With a Method, that final key is
	// the method name itself and every field is part of the walk; with
	// a plain dotted path, the last field is the insertion key and only
	// the fields before it are walked.
	c.loadName(fs, def.Name.Base)
	fields := def.Name.Fields
	method := def.Name.Method
	walk := fields
	var finalKey string
	if method != "" {
		finalKey = method
	} else {
		walk = fields[:len(fields)-1]
		finalKey = fields[len(fields)-1]
	}
	for _, field := range walk {
		c.pushString(field)
		c.emit(vm.OpGetFromTable)
	}
	c.pushString(finalKey)
	if err := c.compileFunctionThunk(fs, thunk); err != nil {
		return err
	}
	c.emit(vm.OpInsertIntoTable)
	c.emit(vm.OpDiscard)
	return nil
}

// compileLocalFunction compiles `local function name(...) ... end`:
// name's slot is declared before the body is compiled so a recursive
// call inside the body resolves to it (as an upvalue capture, since
// the reference occurs inside the nested function).
func (c *compiler) compileLocalFunction(fs *funcState, lf *ast.LocalFunction) error {
	slot := fs.declareLocal(lf.Name)
	c.pushIndex(slot)
	if err := c.compileFunctionThunk(fs, lf.Thunk); err != nil {
		return err
	}
	c.emit(vm.OpStoreLocal)
	return nil
}

// compileLocalVars compiles `local names = values`. Every Values
// expression is compiled, and stored into its name's slot, before any
// of Names becomes visible: this matters for `local a, b = b, a`,
// where both right-hand sides must still resolve to whatever "a" and
// "b" meant in the enclosing scope, not to the new locals being
// declared. Slots are reserved up front (via allocTemp, which grows
// numLocals without making the name resolvable) and only added to
// fs.visible once every value has been compiled.
func (c *compiler) compileLocalVars(fs *funcState, lv *ast.LocalVars) error {
	slots := make([]int, len(lv.Names))
	for i := range lv.Names {
		slots[i] = fs.allocTemp()
	}
	for i := range lv.Names {
		c.pushIndex(slots[i])
		if i < len(lv.Values) {
			if err := c.compileExpr(fs, lv.Values[i]); err != nil {
				return err
			}
		} else {
			c.pushConst(vm.Nil)
		}
		c.emit(vm.OpStoreLocal)
	}
	for _, extra := range lv.Values[min(len(lv.Names), len(lv.Values)):] {
		if err := c.compileExpr(fs, extra); err != nil {
			return err
		}
		c.emit(vm.OpDiscard)
	}
	for i, name := range lv.Names {
		fs.visible = append(fs.visible, localVar{name: name, slot: slots[i]})
	}
	return nil
}
