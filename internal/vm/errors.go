package vm

import "fmt"

// Trace snapshots the stack pointers and PC at the moment a VMError
// was raised, sufficient to reproduce the fault (spec.md §4.3.6, §7).
// ID is stamped by [VM.newTrace] so multiple traces
// collected across a batch run can be told apart; see
// internal/vm/trace.go.
type Trace struct {
	ID              string
	PC              int
	OperandStackTop int
	CallDepth       int
	FrameBase       int
}

func (t Trace) String() string {
	return fmt.Sprintf("pc=%d operand_top=%d call_depth=%d frame_base=%d (trace %s)",
		t.PC, t.OperandStackTop, t.CallDepth, t.FrameBase, t.ID)
}

// VMError is a fatal runtime fault (spec.md §7). Err is one of this
// package's sub-kinds (StackFlowError, TypeMismatchError,
// MissingEntryError, BadConstantIndexError, MalformedCodeError,
// BadBranchTargetError, InstructionBudgetExceededError), or the plain
// error CallConcurrently raises; VMError.Unwrap exposes it so callers can
// errors.As/errors.Is against the specific sub-kind.
type VMError struct {
	Trace Trace
	Err   error
}

func (e *VMError) Error() string {
	return fmt.Sprintf("vm error: %v (%v)", e.Err, e.Trace)
}

func (e *VMError) Unwrap() error {
	return e.Err
}

// StackFlowError reports an underflow or overflow on one of the four
// stacks.
type StackFlowError struct {
	Stack     string // "operand", "call", "code", or "upvalue"
	Op        string
	Requested int
	Available int
}

func (e *StackFlowError) Error() string {
	return fmt.Sprintf("%s stack flow: %s requested %d, available %d", e.Stack, e.Op, e.Requested, e.Available)
}

// TypeMismatchError reports a Value of the wrong Kind reaching a
// primitive.
type TypeMismatchError struct {
	Op       Op
	Expected Kind
	Actual   Kind
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("%v: expected %v, got %v", e.Op, e.Expected, e.Actual)
}

// MissingEntryError reports GetFromTable applied to an absent key.
type MissingEntryError struct {
	Key Value
}

func (e *MissingEntryError) Error() string {
	return fmt.Sprintf("missing table entry for key %s", e.Key.GoString())
}

// BadConstantIndexError reports a constant-pool index outside
// [0, MaxConst).
type BadConstantIndexError struct {
	Index int
}

func (e *BadConstantIndexError) Error() string {
	return fmt.Sprintf("constant index %d out of range [0, %d)", e.Index, MaxConst)
}

// MalformedCodeError reports the dispatcher finding an inline Value
// where an instruction was expected, or vice versa.
type MalformedCodeError struct {
	PC       int
	Expected UnitKind
	Actual   UnitKind
}

func (e *MalformedCodeError) Error() string {
	names := [...]string{UnitInstruction: "instruction", UnitValue: "value", UnitEndClosureMarker: "end-closure marker"}
	return fmt.Sprintf("malformed code at pc %d: expected %s, found %s", e.PC, names[e.Expected], names[e.Actual])
}

// BadBranchTargetError reports a branch to an address outside Code.
// The check covers the whole Code array, not the executing closure's
// own body: a branch into another closure's body is not reported.
// EntryPC is the executing closure's entry address and EndPC is
// len(Code).
type BadBranchTargetError struct {
	Target   int
	EntryPC  int
	EndPC    int
}

func (e *BadBranchTargetError) Error() string {
	return fmt.Sprintf("branch target %d outside closure body [%d, %d)", e.Target, e.EntryPC, e.EndPC)
}

// InstructionBudgetExceededError reports [VM.Run] hitting the ceiling
// set by [VM.SetInstructionBudget] — the external-cancellation
// mechanism spec.md §5 describes in place of a wall-clock deadline.
type InstructionBudgetExceededError struct {
	Budget int
}

func (e *InstructionBudgetExceededError) Error() string {
	return fmt.Sprintf("exceeded instruction budget of %d", e.Budget)
}
