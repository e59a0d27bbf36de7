package vm

import (
	"errors"
	"testing"
)

// buildAdderBody returns Code for a closure of two arguments that
// returns their sum: load_nth_argument(0), load_nth_argument(1), add,
// return 1 value.
func buildAdderBody() (entryPC int, code Code) {
	code = Code{
		Instruction(OpLoadFromCodeTOS), InlineValue(IndexValue(0)),
		Instruction(OpLoadNthArgument),
		Instruction(OpLoadFromCodeTOS), InlineValue(IndexValue(1)),
		Instruction(OpLoadNthArgument),
		Instruction(OpAdd),
		Instruction(OpLoadFromCodeTOS), InlineValue(IndexValue(1)),
		Instruction(OpReturnFromClosure),
		EndClosureMarkerUnit(),
	}
	return 0, code
}

func TestAddClosure(t *testing.T) {
	_, body := buildAdderBody()
	closure := NewClosure(2, 0, false, 0, nil)
	machine := New(body)
	got, err := machine.Run(closure, []Value{NumberValue(3), NumberValue(4)})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if n, ok := got.Number(); !ok || n != 7 {
		t.Errorf("Run(...) = %#v; want 7", got)
	}
}

// TestStackBalance checks spec.md §8's stack-balance law: after a
// closure with no locals and a fixed return count finishes and Run has
// popped its result and count, the operand stack is back at its
// starting height of 0, regardless of how many intermediate values its
// body pushed and consumed.
func TestStackBalance(t *testing.T) {
	_, body := buildAdderBody()
	closure := NewClosure(2, 0, false, 0, nil)
	machine := New(body)
	if _, err := machine.Run(closure, []Value{NumberValue(1), NumberValue(2)}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if top := machine.operands.Top(); top != 0 {
		t.Errorf("operand stack top after Run = %d; want 0 (Run drains the final result/count pair)", top)
	}
}

// TestConstantPoolIsolation checks that two calls of the same closure,
// run one after the other, each get their own [MaxConst]Value array, so
// a store into one frame's constant slot never leaks into another's.
func TestConstantPoolIsolation(t *testing.T) {
	// Body: store_constant(0, load_nth_argument(0));
	//       return load_constant(0)
	const (
		pcStart = 0
	)
	code := Code{
		// store_constant(0, arg0)
		Instruction(OpLoadFromCodeTOS), InlineValue(IndexValue(0)), // index for store_constant
		Instruction(OpLoadFromCodeTOS), InlineValue(IndexValue(0)), // index for load_nth_argument
		Instruction(OpLoadNthArgument),
		Instruction(OpStoreConstantAtCallTOS),

		// load_constant(0)
		Instruction(OpLoadFromCodeTOS), InlineValue(IndexValue(0)),
		Instruction(OpLoadConstantAtCallTOS),

		// result count = 1
		Instruction(OpLoadFromCodeTOS), InlineValue(IndexValue(1)),
		Instruction(OpReturnFromClosure),
		EndClosureMarkerUnit(),
	}
	closure := NewClosure(1, 0, false, pcStart, nil)

	machine := New(code)
	got, err := machine.Run(closure, []Value{NumberValue(11)})
	if err != nil {
		t.Fatalf("Run(11): %v", err)
	}
	if n, ok := got.Number(); !ok || n != 11 {
		t.Fatalf("Run(11) = %#v; want 11", got)
	}

	// A second, independent call must not see the first call's stored
	// constant: constants are per-frame, copied fresh from the
	// closure's static pool (nil/empty here) on every call.
	machine2 := New(code)
	got2, err := machine2.Run(closure, []Value{NumberValue(99)})
	if err != nil {
		t.Fatalf("Run(99): %v", err)
	}
	if n, ok := got2.Number(); !ok || n != 99 {
		t.Fatalf("Run(99) = %#v; want 99 (no leakage from the first frame)", got2)
	}
}

// TestUpvalueClosureSoundness exercises capturing a local by reference:
// the inner closure's upvalue must observe a write performed by the
// outer frame after the inner closure was constructed but before it
// returns, and must keep observing the right value (via its own closed
// cell) once the outer frame has returned.
func TestUpvalueClosureSoundness(t *testing.T) {
	// Outer closure, no args, 1 local (slot 0):
	//   local x = 10
	//   make a closure C capturing local 0
	//   x = 20
	//   return C   (1 result)
	// Inner closure C, 0 args, 0 locals:
	//   return load_upvalue(0)   (1 result)
	const (
		innerEntry = 100
	)
	outer := Code{
		// local x = 10  (locals region is pre-grown by CallClosure to Nil;
		// this overwrites slot 0 directly via store_local. store_local
		// pops the value first, so the slot index is pushed before it.)
		Instruction(OpLoadFromCodeTOS), InlineValue(IndexValue(0)),
		Instruction(OpLoadFromCodeTOS), InlineValue(NumberValue(10)),
		Instruction(OpStoreLocal),

		// make_closure: 0 constants; 1 capture: (slot=0, isParentUpvalue=false);
		// entry_pc=innerEntry; num_params=0; num_locals=0; is_varargs=false
		Instruction(OpLoadFromCodeTOS), InlineValue(IndexValue(0)), // numConstants
		Instruction(OpLoadFromCodeTOS), InlineValue(IndexValue(0)), // capture slot
		Instruction(OpLoadFromCodeTOS), InlineValue(BooleanValue(false)), // isParentUpvalue
		Instruction(OpLoadFromCodeTOS), InlineValue(IndexValue(1)), // numUpvalues
		Instruction(OpLoadFromCodeTOS), InlineValue(AddressValue(innerEntry)), // entryPC
		Instruction(OpLoadFromCodeTOS), InlineValue(IndexValue(0)), // numParams
		Instruction(OpLoadFromCodeTOS), InlineValue(IndexValue(0)), // numLocals
		Instruction(OpLoadFromCodeTOS), InlineValue(BooleanValue(false)), // isVarargs
		Instruction(OpMakeClosure),

		// x = 20
		Instruction(OpLoadFromCodeTOS), InlineValue(IndexValue(0)),
		Instruction(OpLoadFromCodeTOS), InlineValue(NumberValue(20)),
		Instruction(OpStoreLocal),

		// return closure (1 result)
		Instruction(OpLoadFromCodeTOS), InlineValue(IndexValue(1)),
		Instruction(OpReturnFromClosure),
		EndClosureMarkerUnit(),
	}

	// Pad out to innerEntry with end-closure markers (never executed).
	code := make(Code, innerEntry)
	copy(code, outer)
	for i := len(outer); i < innerEntry; i++ {
		code[i] = EndClosureMarkerUnit()
	}
	code = append(code, []CodeUnit{
		Instruction(OpLoadFromCodeTOS), InlineValue(IndexValue(0)),
		Instruction(OpLoadUpvalue),
		Instruction(OpLoadFromCodeTOS), InlineValue(IndexValue(1)),
		Instruction(OpReturnFromClosure),
		EndClosureMarkerUnit(),
	}...)

	outerClosure := NewClosure(0, 1, false, 0, nil)
	machine := New(code)
	got, err := machine.Run(outerClosure, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	inner, ok := got.Closure()
	if !ok {
		t.Fatalf("Run(...) = %#v; want a Closure", got)
	}

	result, err := machine.Run(inner, nil)
	if err != nil {
		t.Fatalf("Run(inner): %v", err)
	}
	if n, ok := result.Number(); !ok || n != 20 {
		t.Errorf("inner upvalue read = %#v; want 20 (mutation before outer return must be visible)", result)
	}
}

// TestBadBranchTarget checks that a branch outside the code array
// fails with BadBranchTargetError rather than corrupting the PC.
func TestBadBranchTarget(t *testing.T) {
	code := Code{
		Instruction(OpLoadFromCodeTOS), InlineValue(AddressValue(9999)),
		Instruction(OpBranch),
		EndClosureMarkerUnit(),
	}
	closure := NewClosure(0, 0, false, 0, nil)
	machine := New(code)
	_, err := machine.Run(closure, nil)
	if err == nil {
		t.Fatal("Run: want error for out-of-range branch target")
	}
	var vmErr *VMError
	if !errors.As(err, &vmErr) {
		t.Fatalf("Run error = %v; want *VMError", err)
	}
	var target *BadBranchTargetError
	if !errors.As(vmErr.Err, &target) {
		t.Errorf("Run error wraps %v; want *BadBranchTargetError", vmErr.Err)
	}
}

// TestTableIdentity checks spec.md §8's duplicate-insert property: the
// most recently Inserted entry for a key is the one Get and Has observe.
func TestTableIdentity(t *testing.T) {
	tab := NewTable(0)
	key := StringValue("k")
	tab.Insert(key, NumberValue(1))
	tab.Insert(key, NumberValue(2))
	if got, ok := tab.Get(key).Number(); !ok || got != 2 {
		t.Errorf("Get(k) after two Inserts = %v; want 2", got)
	}
	if !tab.Has(key) {
		t.Error("Has(k) = false; want true")
	}
	if n := tab.Len(); n != 2 {
		t.Errorf("Len() = %d; want 2 (Insert permits duplicates)", n)
	}

	tab.Set(key, NumberValue(3))
	if n := tab.Len(); n != 2 {
		t.Errorf("Len() after Set on a duplicated key = %d; want 2 (Set replaces the entry it finds, not both)", n)
	}
}

// TestDiscardKeepsLocalSlotsAligned checks that a statement-level call
// (whose single-value return would otherwise leave a stray result+count
// pair on the stack) can be cleaned up with OpDiscard without disturbing
// a local declared immediately afterward.
func TestDiscardKeepsLocalSlotsAligned(t *testing.T) {
	const calleeEntry = 50
	// Caller, no args, 1 local:
	//   callee()              -- discard its single result
	//   local y = 7           -- lands in local slot 0
	//   return y
	caller := Code{
		Instruction(OpLoadFromCodeTOS), InlineValue(IndexValue(0)), // pushed-arg count
		Instruction(OpLoadFromCodeTOS), InlineValue(ClosureValue(nil)), // placeholder, overwritten below
		Instruction(OpCallClosure),
		Instruction(OpDiscard), // drop the (count) ...
		Instruction(OpDiscard), // ... and the result

		Instruction(OpLoadFromCodeTOS), InlineValue(IndexValue(0)),
		Instruction(OpLoadFromCodeTOS), InlineValue(NumberValue(7)),
		Instruction(OpStoreLocal),

		Instruction(OpLoadFromCodeTOS), InlineValue(IndexValue(0)),
		Instruction(OpLoadLocal),
		Instruction(OpLoadFromCodeTOS), InlineValue(IndexValue(1)),
		Instruction(OpReturnFromClosure),
		EndClosureMarkerUnit(),
	}
	code := make(Code, calleeEntry)
	copy(code, caller)
	for i := len(caller); i < calleeEntry; i++ {
		code[i] = EndClosureMarkerUnit()
	}
	callee := NewClosure(0, 0, false, calleeEntry, nil)
	code = append(code, []CodeUnit{
		Instruction(OpLoadFromCodeTOS), InlineValue(NumberValue(42)),
		Instruction(OpLoadFromCodeTOS), InlineValue(IndexValue(1)),
		Instruction(OpReturnFromClosure),
		EndClosureMarkerUnit(),
	}...)
	code[3] = InlineValue(ClosureValue(callee))

	caller2 := NewClosure(0, 1, false, 0, nil)
	machine := New(code)
	got, err := machine.Run(caller2, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if n, ok := got.Number(); !ok || n != 7 {
		t.Errorf("Run(...) = %#v; want 7 (local y must land in slot 0 despite the preceding discarded call)", got)
	}
}
