package vm

import "math"

// VM executes a compiled [Code] stream against the four cooperating
// stacks (spec.md §4.3.1): operands, calls, code, and upvalues. A VM is
// single-use per [VM.Run] call but may be reused for successive,
// independent runs once one finishes: a Run that returns without error
// leaves the operand and call stacks empty, while a failed Run leaves
// them as they were at the fault.
type VM struct {
	operands *OperandStack
	calls    *CallStack
	code     *CodeStack
	upvalues *UpvalueStack

	// globals are addressed by Index, like locals and arguments, but
	// independent of any frame. Slots are *Value rather than Value so
	// that growing the outer slice on a not-yet-seen index never
	// invalidates a ValuePointer taken by an earlier
	// OpLoadGlobalPointer.
	globals []*Value

	traceLogger          bool
	instructionsExecuted int
	instructionBudget    int // 0 means unlimited
}

// SetInstructionBudget caps the number of instructions Run will
// execute before failing with an [InstructionBudgetExceededError],
// the external-cancellation mechanism spec.md §5 calls for ("an
// external timeout is applied by bounding executed instructions
// externally") in place of a wall-clock deadline, since a fault partway
// through a multi-instruction primitive would otherwise leave a stack
// in an inconsistent state. A budget of 0 (the default) means
// unlimited.
func (vm *VM) SetInstructionBudget(n int) {
	vm.instructionBudget = n
}

// New returns a VM ready to execute code.
func New(code Code) *VM {
	return &VM{
		operands: NewOperandStack(),
		calls:    NewCallStack(),
		code:     NewCodeStack(code, 0),
		upvalues: NewUpvalueStack(),
	}
}

// Run calls entry with args, drives the dispatch loop to completion,
// and returns entry's first result value (Nil if it returned none).
// Run is the VM's only public entry point: there is no way to resume a
// halted VM mid-body, matching spec.md's "until the root closure
// returns" lifecycle.
func (vm *VM) Run(entry *Closure, args []Value) (Value, error) {
	for _, a := range args {
		vm.operands.Push(a)
	}
	if err := vm.callClosure(entry, len(args)); err != nil {
		return Nil, vm.fail(err)
	}
	rootDepth := vm.calls.Depth()
	for vm.calls.Depth() >= rootDepth {
		if err := vm.step(); err != nil {
			return Nil, vm.fail(err)
		}
	}
	countVal, err := vm.operands.Pop()
	if err != nil {
		return Nil, vm.fail(err)
	}
	count, ok := countVal.Index()
	if !ok {
		return Nil, vm.fail(&TypeMismatchError{Op: OpReturnFromClosure, Expected: KindIndex, Actual: countVal.Kind()})
	}
	results := make([]Value, count)
	for i := count - 1; i >= 0; i-- {
		v, err := vm.operands.Pop()
		if err != nil {
			return Nil, vm.fail(err)
		}
		results[i] = v
	}
	if count == 0 {
		return Nil, nil
	}
	return results[0], nil
}

func (vm *VM) fail(err error) error {
	if err == nil {
		return nil
	}
	return &VMError{Trace: vm.newTrace(), Err: err}
}

// step fetches, decodes, and executes exactly one instruction.
func (vm *VM) step() error {
	unit, err := vm.code.Fetch()
	if err != nil {
		return err
	}
	if unit.Kind != UnitInstruction {
		return &MalformedCodeError{PC: vm.code.PC() - 1, Expected: UnitInstruction, Actual: unit.Kind}
	}
	if vm.instructionBudget > 0 && vm.instructionsExecuted >= vm.instructionBudget {
		return &InstructionBudgetExceededError{Budget: vm.instructionBudget}
	}
	vm.instructionsExecuted++
	switch unit.Op {
	case OpAdd:
		return vm.binaryNumberOp(unit.Op, func(a, b float64) float64 { return a + b })
	case OpSub:
		return vm.binaryNumberOp(unit.Op, func(a, b float64) float64 { return a - b })
	case OpMul:
		return vm.binaryNumberOp(unit.Op, func(a, b float64) float64 { return a * b })
	case OpDiv:
		return vm.binaryNumberOp(unit.Op, func(a, b float64) float64 { return a / b })
	case OpMod:
		return vm.binaryNumberOp(unit.Op, math.Mod)
	case OpFPow:
		return vm.binaryNumberOp(unit.Op, math.Pow)
	case OpIPow:
		return vm.binaryNumberOp(unit.Op, integerPow)
	case OpNegate:
		return vm.unaryNumberOp(unit.Op, func(a float64) float64 { return -a })
	case OpTruncateReal:
		return vm.unaryNumberOp(unit.Op, math.Trunc)
	case OpFloorReal:
		return vm.unaryNumberOp(unit.Op, math.Floor)

	case OpBitwiseAnd:
		return vm.binaryIntOp(unit.Op, func(a, b int64) int64 { return a & b })
	case OpBitwiseOr:
		return vm.binaryIntOp(unit.Op, func(a, b int64) int64 { return a | b })
	case OpBitwiseXor:
		return vm.binaryIntOp(unit.Op, func(a, b int64) int64 { return a ^ b })
	case OpBitwiseNot:
		return vm.unaryIntOp(unit.Op, func(a int64) int64 { return ^a })
	case OpBitwiseShiftLeft:
		return vm.binaryIntOp(unit.Op, func(a, b int64) int64 { return a << uint64(b) })
	case OpBitwiseShiftRight:
		return vm.binaryIntOp(unit.Op, func(a, b int64) int64 { return a >> uint64(b) })

	case OpConjunction:
		return vm.binaryBoolOp(func(a, b bool) bool { return a && b })
	case OpDisjunction:
		return vm.binaryBoolOp(func(a, b bool) bool { return a || b })
	case OpNot:
		v, err := vm.operands.Pop()
		if err != nil {
			return err
		}
		vm.operands.Push(BooleanValue(!v.Truthy()))
		return nil
	case OpConcatString:
		return vm.execConcat()

	case OpEq:
		return vm.execEq(false)
	case OpNe:
		return vm.execEq(true)
	case OpLt:
		return vm.binaryCompareOp(func(c int) bool { return c < 0 })
	case OpLe:
		return vm.binaryCompareOp(func(c int) bool { return c <= 0 })
	case OpGt:
		return vm.binaryCompareOp(func(c int) bool { return c > 0 })
	case OpGe:
		return vm.binaryCompareOp(func(c int) bool { return c >= 0 })

	case OpLoadLocal:
		return vm.execLoadLocal()
	case OpStoreLocal:
		return vm.execStoreLocal()
	case OpLoadGlobal:
		return vm.execLoadGlobal()
	case OpStoreGlobal:
		return vm.execStoreGlobal()
	case OpLoadGlobalPointer:
		return vm.execLoadGlobalPointer()
	case OpLoadConstantAtCallTOS:
		return vm.execLoadConstant()
	case OpStoreConstantAtCallTOS:
		return vm.execStoreConstant()
	case OpLoadNthArgument:
		return vm.execLoadArgument()
	case OpLoadFromCodeTOS:
		return vm.execLoadFromCode()
	case OpLoadFromCodeAtOffset:
		return vm.execLoadFromCodeAtOffset()

	case OpInsertIntoTable:
		return vm.execInsertIntoTable()
	case OpGetFromTable:
		return vm.execGetFromTable()
	case OpCheckIfTableHas:
		return vm.execCheckIfTableHas()

	case OpMakeClosure:
		return vm.execMakeClosure()
	case OpCallClosure:
		return vm.execCallClosure()
	case OpReturnFromClosure:
		return vm.execReturnFromClosure()
	case OpLoadUpvalue:
		return vm.execLoadUpvalue()
	case OpStoreUpvalue:
		return vm.execStoreUpvalue()
	case OpCallConcurrently:
		return errCallConcurrentlyUnsupported

	case OpBranch:
		return vm.execBranch()
	case OpBranchIfTrue:
		return vm.execBranchIf(true)
	case OpBranchIfFalse:
		return vm.execBranchIf(false)

	case OpDiscard:
		_, err := vm.operands.Pop()
		return err

	default:
		return &MalformedCodeError{PC: vm.code.PC() - 1, Expected: UnitInstruction, Actual: unit.Kind}
	}
}

// integerPow computes base**exp by squaring when exp is a non-negative
// whole number (spec.md's "integer power" variant), falling back to
// math.Pow otherwise.
func integerPow(base, exp float64) float64 {
	e := int64(exp)
	if float64(e) != exp || e < 0 {
		return math.Pow(base, exp)
	}
	result := 1.0
	b := base
	for e > 0 {
		if e&1 == 1 {
			result *= b
		}
		b *= b
		e >>= 1
	}
	return result
}
