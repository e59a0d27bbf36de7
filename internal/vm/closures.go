package vm

// execMakeClosure builds a new Closure from operands the compiler has
// arranged on the stack, in this pop order (LIFO, so declared in the
// opposite order by the compiler): IsVarargs (Boolean), NumLocals
// (Index), NumParams (Index), EntryPC (Address, an absolute code
// address the compiler backpatches once it has emitted the closure's
// body — bodies need not be adjacent to the MakeClosure site), a
// count of captured upvalues (Index) followed by that many (Index
// slot, Boolean isParentUpvalue) pairs, and finally a count of baked-in
// constants (Index) followed by that many Values.
//
// None of this is literal in spec.md, which only sketches "pops Index
// (num_params) and Boolean (is_varargs)"; see DESIGN.md for why the
// extra operands are necessary to make closure construction and
// upvalue capture executable without a side-channel.
func (vm *VM) execMakeClosure() error {
	isVarargs, err := vm.popBoolean(OpMakeClosure)
	if err != nil {
		return err
	}
	numLocals, err := vm.popIndex(OpMakeClosure)
	if err != nil {
		return err
	}
	numParams, err := vm.popIndex(OpMakeClosure)
	if err != nil {
		return err
	}
	entryPC, err := vm.popAddress(OpMakeClosure)
	if err != nil {
		return err
	}

	numUpvalues, err := vm.popIndex(OpMakeClosure)
	if err != nil {
		return err
	}
	captures := make([]*Upvalue, numUpvalues)
	for k := numUpvalues - 1; k >= 0; k-- {
		isParentUpvalue, err := vm.popBoolean(OpMakeClosure)
		if err != nil {
			return err
		}
		slot, err := vm.popIndex(OpMakeClosure)
		if err != nil {
			return err
		}
		u, err := vm.resolveCapture(slot, isParentUpvalue)
		if err != nil {
			return err
		}
		captures[k] = u
	}

	numConstants, err := vm.popIndex(OpMakeClosure)
	if err != nil {
		return err
	}
	constants := make([]Value, numConstants)
	for k := numConstants - 1; k >= 0; k-- {
		v, err := vm.operands.Pop()
		if err != nil {
			return err
		}
		constants[k] = v
	}

	closure := NewClosure(numParams, numLocals, isVarargs, entryPC, constants)
	closure.Upvalues = captures
	vm.operands.Push(ClosureValue(closure))
	return nil
}

// resolveCapture returns the Upvalue a new closure should share for one
// of its captures. isParentUpvalue selects between chaining the
// enclosing closure's own upvalue at that index (so a doubly-nested
// closure shares the same cell as its immediate parent, rather than
// reopening it) and opening a fresh capture of local slot `slot` in the
// enclosing frame (addressed like OpLoadLocal), reusing any Upvalue already open on that exact
// slot (spec.md §4.3.5's sharing requirement).
func (vm *VM) resolveCapture(slot int, isParentUpvalue bool) (*Upvalue, error) {
	frame, err := vm.calls.Top()
	if err != nil {
		return nil, err
	}
	if isParentUpvalue {
		if frame.Closure == nil || slot < 0 || slot >= len(frame.Closure.Upvalues) {
			return nil, &BadConstantIndexError{Index: slot}
		}
		return frame.Closure.Upvalues[slot], nil
	}
	abs := frame.localSlot(slot)
	for _, u := range vm.upvalues.data {
		if !u.closed && u.stack == vm.operands && u.slot == abs {
			return u, nil
		}
	}
	u := newOpenUpvalue(vm.operands, abs)
	vm.upvalues.Push(u)
	return u, nil
}

// execLoadUpvalue pushes the current value of the executing closure's
// i-th upvalue.
func (vm *VM) execLoadUpvalue() error {
	frame, err := vm.currentFrame(OpLoadUpvalue)
	if err != nil {
		return err
	}
	i, err := vm.popIndex(OpLoadUpvalue)
	if err != nil {
		return err
	}
	if frame.Closure == nil || i < 0 || i >= len(frame.Closure.Upvalues) {
		return &BadConstantIndexError{Index: i}
	}
	vm.operands.Push(frame.Closure.Upvalues[i].Get())
	return nil
}

// execStoreUpvalue writes through the executing closure's i-th
// upvalue. spec.md describes this in terms of an unspecified
// "pointer-write primitive"; this VM resolves it as a single pop-value,
// pop-index, direct write (see DESIGN.md).
func (vm *VM) execStoreUpvalue() error {
	frame, err := vm.currentFrame(OpStoreUpvalue)
	if err != nil {
		return err
	}
	v, err := vm.operands.Pop()
	if err != nil {
		return err
	}
	i, err := vm.popIndex(OpStoreUpvalue)
	if err != nil {
		return err
	}
	if frame.Closure == nil || i < 0 || i >= len(frame.Closure.Upvalues) {
		return &BadConstantIndexError{Index: i}
	}
	frame.Closure.Upvalues[i].Set(v)
	return nil
}

// execCallClosure pops a Closure and an Index argument count, then
// transfers control to it. The count tells the VM how many of the
// already-pushed operands below the closure value are its arguments;
// NumParams alone can't serve, since it isn't known at the call site
// until the callee (possibly dynamically selected) is popped.
func (vm *VM) execCallClosure() error {
	closure, err := vm.popClosure(OpCallClosure)
	if err != nil {
		return err
	}
	pushedArgs, err := vm.popIndex(OpCallClosure)
	if err != nil {
		return err
	}
	return vm.callClosure(closure, pushedArgs)
}

func (vm *VM) callClosure(c *Closure, pushedArgs int) error {
	numArgs := c.NumParams
	switch {
	case pushedArgs < numArgs:
		vm.operands.Grow(numArgs - pushedArgs)
	case pushedArgs > numArgs && !c.IsVarargs:
		for i := 0; i < pushedArgs-numArgs; i++ {
			if _, err := vm.operands.Pop(); err != nil {
				return err
			}
		}
	case pushedArgs > numArgs:
		// Varargs closures keep the extra arguments addressable above
		// NumParams rather than collecting them into a separate value.
		numArgs = pushedArgs
	}

	top := vm.operands.Top()
	frameBase := top - numArgs
	if frameBase < 0 {
		return &StackFlowError{Stack: "operand", Op: "call", Requested: numArgs, Available: top}
	}
	frame := &CallFrame{
		NumArgs:     numArgs,
		FrameBase:   frameBase,
		StaticLink:  top,
		DynamicLink: vm.code.PC(),
		Closure:     c,
	}
	if parent, err := vm.calls.Top(); err == nil {
		frame.FrameLink = parent.FrameBase
	}
	vm.operands.Grow(c.NumLocals)
	frame.NumLocals = c.NumLocals
	copy(frame.Constants[:], c.Constants)

	vm.calls.Push(frame)
	vm.code.SetPC(c.EntryPC)
	return nil
}

// execReturnFromClosure pops an Index result count and that many
// result values, tears down the current frame (closing any upvalues it
// owns), and leaves the results plus their count on the operand stack
// for the caller, resuming at the call's DynamicLink.
func (vm *VM) execReturnFromClosure() error {
	count, err := vm.popIndex(OpReturnFromClosure)
	if err != nil {
		return err
	}
	results := make([]Value, count)
	for i := count - 1; i >= 0; i-- {
		v, err := vm.operands.Pop()
		if err != nil {
			return err
		}
		results[i] = v
	}

	frame, err := vm.calls.Pop()
	if err != nil {
		return err
	}
	vm.upvalues.CloseFrom(frame.FrameBase)
	vm.operands.Truncate(frame.FrameBase)
	for _, v := range results {
		vm.operands.Push(v)
	}
	vm.operands.Push(IndexValue(count))

	if vm.calls.Depth() > 0 {
		vm.code.SetPC(frame.DynamicLink)
	}
	return nil
}
