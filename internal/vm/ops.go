package vm

import "errors"

var errCallConcurrentlyUnsupported = errors.New("call_concurrently: concurrent evaluation is a non-goal of this VM")

func (vm *VM) popNumber(op Op) (float64, error) {
	v, err := vm.operands.Pop()
	if err != nil {
		return 0, err
	}
	n, ok := v.Number()
	if !ok {
		return 0, &TypeMismatchError{Op: op, Expected: KindNumber, Actual: v.Kind()}
	}
	return n, nil
}

func (vm *VM) popBoolean(op Op) (bool, error) {
	v, err := vm.operands.Pop()
	if err != nil {
		return false, err
	}
	b, ok := v.Boolean()
	if !ok {
		return false, &TypeMismatchError{Op: op, Expected: KindBoolean, Actual: v.Kind()}
	}
	return b, nil
}

func (vm *VM) popIndex(op Op) (int, error) {
	v, err := vm.operands.Pop()
	if err != nil {
		return 0, err
	}
	i, ok := v.Index()
	if !ok {
		return 0, &TypeMismatchError{Op: op, Expected: KindIndex, Actual: v.Kind()}
	}
	return i, nil
}

func (vm *VM) popAddress(op Op) (int, error) {
	v, err := vm.operands.Pop()
	if err != nil {
		return 0, err
	}
	a, ok := v.Address()
	if !ok {
		return 0, &TypeMismatchError{Op: op, Expected: KindAddress, Actual: v.Kind()}
	}
	return a, nil
}

func (vm *VM) popTable(op Op) (*Table, error) {
	v, err := vm.operands.Pop()
	if err != nil {
		return nil, err
	}
	t, ok := v.Table()
	if !ok {
		return nil, &TypeMismatchError{Op: op, Expected: KindTable, Actual: v.Kind()}
	}
	return t, nil
}

func (vm *VM) popClosure(op Op) (*Closure, error) {
	v, err := vm.operands.Pop()
	if err != nil {
		return nil, err
	}
	c, ok := v.Closure()
	if !ok {
		return nil, &TypeMismatchError{Op: op, Expected: KindClosure, Actual: v.Kind()}
	}
	return c, nil
}

func (vm *VM) binaryNumberOp(op Op, f func(a, b float64) float64) error {
	b, err := vm.popNumber(op)
	if err != nil {
		return err
	}
	a, err := vm.popNumber(op)
	if err != nil {
		return err
	}
	vm.operands.Push(NumberValue(f(a, b)))
	return nil
}

func (vm *VM) unaryNumberOp(op Op, f func(a float64) float64) error {
	a, err := vm.popNumber(op)
	if err != nil {
		return err
	}
	vm.operands.Push(NumberValue(f(a)))
	return nil
}

func (vm *VM) binaryIntOp(op Op, f func(a, b int64) int64) error {
	b, err := vm.popNumber(op)
	if err != nil {
		return err
	}
	a, err := vm.popNumber(op)
	if err != nil {
		return err
	}
	vm.operands.Push(NumberValue(float64(f(int64(a), int64(b)))))
	return nil
}

func (vm *VM) unaryIntOp(op Op, f func(a int64) int64) error {
	a, err := vm.popNumber(op)
	if err != nil {
		return err
	}
	vm.operands.Push(NumberValue(float64(f(int64(a)))))
	return nil
}

func (vm *VM) binaryBoolOp(f func(a, b bool) bool) error {
	b, err := vm.operands.Pop()
	if err != nil {
		return err
	}
	a, err := vm.operands.Pop()
	if err != nil {
		return err
	}
	vm.operands.Push(BooleanValue(f(a.Truthy(), b.Truthy())))
	return nil
}

func (vm *VM) execConcat() error {
	b, err := vm.operands.Pop()
	if err != nil {
		return err
	}
	a, err := vm.operands.Pop()
	if err != nil {
		return err
	}
	as, ok := a.String()
	if !ok {
		return &TypeMismatchError{Op: OpConcatString, Expected: KindString, Actual: a.Kind()}
	}
	bs, ok := b.String()
	if !ok {
		return &TypeMismatchError{Op: OpConcatString, Expected: KindString, Actual: b.Kind()}
	}
	vm.operands.Push(StringValue(as + bs))
	return nil
}

func (vm *VM) execEq(negate bool) error {
	b, err := vm.operands.Pop()
	if err != nil {
		return err
	}
	a, err := vm.operands.Pop()
	if err != nil {
		return err
	}
	eq := a.Equal(b)
	if negate {
		eq = !eq
	}
	vm.operands.Push(BooleanValue(eq))
	return nil
}

func (vm *VM) binaryCompareOp(f func(c int) bool) error {
	b, err := vm.operands.Pop()
	if err != nil {
		return err
	}
	a, err := vm.operands.Pop()
	if err != nil {
		return err
	}
	if a.Kind() != KindNumber {
		return &TypeMismatchError{Op: OpLt, Expected: KindNumber, Actual: a.Kind()}
	}
	if b.Kind() != KindNumber {
		return &TypeMismatchError{Op: OpLt, Expected: KindNumber, Actual: b.Kind()}
	}
	vm.operands.Push(BooleanValue(f(compare(a, b))))
	return nil
}

func (vm *VM) currentFrame(op Op) (*CallFrame, error) {
	f, err := vm.calls.Top()
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (vm *VM) execLoadLocal() error {
	f, err := vm.currentFrame(OpLoadLocal)
	if err != nil {
		return err
	}
	i, err := vm.popIndex(OpLoadLocal)
	if err != nil {
		return err
	}
	v, err := vm.operands.At(f.localSlot(i))
	if err != nil {
		return err
	}
	vm.operands.Push(v)
	return nil
}

func (vm *VM) execStoreLocal() error {
	f, err := vm.currentFrame(OpStoreLocal)
	if err != nil {
		return err
	}
	v, err := vm.operands.Pop()
	if err != nil {
		return err
	}
	i, err := vm.popIndex(OpStoreLocal)
	if err != nil {
		return err
	}
	return vm.operands.Set(f.localSlot(i), v)
}

func (vm *VM) execLoadArgument() error {
	f, err := vm.currentFrame(OpLoadNthArgument)
	if err != nil {
		return err
	}
	i, err := vm.popIndex(OpLoadNthArgument)
	if err != nil {
		return err
	}
	v, err := vm.operands.At(f.argSlot(i))
	if err != nil {
		return err
	}
	vm.operands.Push(v)
	return nil
}

func (vm *VM) ensureGlobal(i int) *Value {
	for len(vm.globals) <= i {
		vm.globals = append(vm.globals, new(Value))
	}
	return vm.globals[i]
}

func (vm *VM) execLoadGlobal() error {
	i, err := vm.popIndex(OpLoadGlobal)
	if err != nil {
		return err
	}
	vm.operands.Push(*vm.ensureGlobal(i))
	return nil
}

func (vm *VM) execStoreGlobal() error {
	v, err := vm.operands.Pop()
	if err != nil {
		return err
	}
	i, err := vm.popIndex(OpStoreGlobal)
	if err != nil {
		return err
	}
	*vm.ensureGlobal(i) = v
	return nil
}

func (vm *VM) execLoadGlobalPointer() error {
	i, err := vm.popIndex(OpLoadGlobalPointer)
	if err != nil {
		return err
	}
	vm.operands.Push(ValuePointerValue(vm.ensureGlobal(i)))
	return nil
}

func (vm *VM) execLoadConstant() error {
	f, err := vm.currentFrame(OpLoadConstantAtCallTOS)
	if err != nil {
		return err
	}
	i, err := vm.popIndex(OpLoadConstantAtCallTOS)
	if err != nil {
		return err
	}
	if i < 0 || i >= MaxConst {
		return &BadConstantIndexError{Index: i}
	}
	vm.operands.Push(f.Constants[i])
	return nil
}

func (vm *VM) execStoreConstant() error {
	f, err := vm.currentFrame(OpStoreConstantAtCallTOS)
	if err != nil {
		return err
	}
	v, err := vm.operands.Pop()
	if err != nil {
		return err
	}
	i, err := vm.popIndex(OpStoreConstantAtCallTOS)
	if err != nil {
		return err
	}
	if i < 0 || i >= MaxConst {
		return &BadConstantIndexError{Index: i}
	}
	f.Constants[i] = v
	return nil
}

func (vm *VM) execLoadFromCode() error {
	unit, err := vm.code.Fetch()
	if err != nil {
		return err
	}
	if unit.Kind != UnitValue {
		return &MalformedCodeError{PC: vm.code.PC() - 1, Expected: UnitValue, Actual: unit.Kind}
	}
	vm.operands.Push(unit.Value)
	return nil
}

func (vm *VM) execLoadFromCodeAtOffset() error {
	offset, err := vm.popAddress(OpLoadFromCodeAtOffset)
	if err != nil {
		return err
	}
	target := vm.code.PC() + offset
	unit, err := vm.code.At(target)
	if err != nil {
		return err
	}
	if unit.Kind != UnitValue {
		return &MalformedCodeError{PC: target, Expected: UnitValue, Actual: unit.Kind}
	}
	vm.operands.Push(unit.Value)
	return nil
}

func (vm *VM) execInsertIntoTable() error {
	value, err := vm.operands.Pop()
	if err != nil {
		return err
	}
	key, err := vm.operands.Pop()
	if err != nil {
		return err
	}
	top, err := vm.operands.At(vm.operands.Top() - 1)
	if err != nil {
		return err
	}
	t, ok := top.Table()
	if !ok {
		return &TypeMismatchError{Op: OpInsertIntoTable, Expected: KindTable, Actual: top.Kind()}
	}
	t.Insert(key, value)
	return nil
}

func (vm *VM) execGetFromTable() error {
	key, err := vm.operands.Pop()
	if err != nil {
		return err
	}
	t, err := vm.popTable(OpGetFromTable)
	if err != nil {
		return err
	}
	if !t.Has(key) {
		return &MissingEntryError{Key: key}
	}
	vm.operands.Push(t.Get(key))
	return nil
}

func (vm *VM) execCheckIfTableHas() error {
	key, err := vm.operands.Pop()
	if err != nil {
		return err
	}
	t, err := vm.popTable(OpCheckIfTableHas)
	if err != nil {
		return err
	}
	vm.operands.Push(BooleanValue(t.Has(key)))
	return nil
}

func (vm *VM) execBranch() error {
	target, err := vm.popAddress(OpBranch)
	if err != nil {
		return err
	}
	return vm.setPCChecked(target)
}

func (vm *VM) execBranchIf(when bool) error {
	target, err := vm.popAddress(OpBranchIfTrue)
	if err != nil {
		return err
	}
	cond, err := vm.operands.Pop()
	if err != nil {
		return err
	}
	if cond.Truthy() == when {
		return vm.setPCChecked(target)
	}
	return nil
}

func (vm *VM) setPCChecked(target int) error {
	if _, err := vm.code.At(target); err != nil {
		entry := 0
		if f, ferr := vm.calls.Top(); ferr == nil && f.Closure != nil {
			entry = f.Closure.EntryPC
		}
		return &BadBranchTargetError{Target: target, EntryPC: entry, EndPC: len(vm.code.code)}
	}
	vm.code.SetPC(target)
	return nil
}
