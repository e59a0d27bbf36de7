package vm

// ChunkSize is the initial backing-buffer capacity for a new operand
// or call stack, per spec.md §4.3.1 ("grows the backing buffer in
// fixed chunks"). It's a package variable rather than a constant so a
// CLI driver's configuration file can tune it (SPEC_FULL.md §1.3)
// before constructing a [VM]; changing it has no effect on stacks
// already created.
var ChunkSize = 256

// OperandStack is the VM's operand stack: the growable array of Values
// that arguments, locals, and intermediate results live on.
type OperandStack struct {
	data []Value
}

// NewOperandStack returns an empty operand stack.
func NewOperandStack() *OperandStack {
	return &OperandStack{data: make([]Value, 0, ChunkSize)}
}

// Top returns the number of Values currently on the stack (the "top"
// pointer of spec.md §4.3.1).
func (s *OperandStack) Top() int {
	return len(s.data)
}

// Push grows the stack by one slot, in ChunkSize increments.
func (s *OperandStack) Push(v Value) {
	if len(s.data) == cap(s.data) {
		grown := make([]Value, len(s.data), cap(s.data)+ChunkSize)
		copy(grown, s.data)
		s.data = grown
	}
	s.data = append(s.data, v)
}

// Pop removes and returns the top Value, or a StackFlowError if the
// stack is empty.
func (s *OperandStack) Pop() (Value, error) {
	if len(s.data) == 0 {
		return Value{}, &StackFlowError{Stack: "operand", Op: "pop", Requested: 1, Available: 0}
	}
	v := s.data[len(s.data)-1]
	s.data = s.data[:len(s.data)-1]
	return v, nil
}

// At returns the Value at absolute index i, or a StackFlowError if i
// is out of the currently valid range `[0, top)`.
func (s *OperandStack) At(i int) (Value, error) {
	if i < 0 || i >= len(s.data) {
		return Value{}, &StackFlowError{Stack: "operand", Op: "index", Requested: i, Available: len(s.data)}
	}
	return s.data[i], nil
}

// Set overwrites the Value at absolute index i.
func (s *OperandStack) Set(i int, v Value) error {
	if i < 0 || i >= len(s.data) {
		return &StackFlowError{Stack: "operand", Op: "index", Requested: i, Available: len(s.data)}
	}
	s.data[i] = v
	return nil
}

// Truncate resets the stack's top to n, discarding anything above it
// (used on return, per spec.md §4.3.4's clear_up_call_frame).
func (s *OperandStack) Truncate(n int) {
	s.data = s.data[:n]
}

// Grow appends n Nil slots, used when a frame's locals are initialized
// at call time.
func (s *OperandStack) Grow(n int) {
	for i := 0; i < n; i++ {
		s.data = append(s.data, Nil)
	}
}

// CallStack is the growable array of [CallFrame]s.
type CallStack struct {
	frames []*CallFrame
}

// NewCallStack returns an empty call stack.
func NewCallStack() *CallStack {
	return &CallStack{frames: make([]*CallFrame, 0, ChunkSize)}
}

// Depth returns the number of frames currently on the stack.
func (s *CallStack) Depth() int {
	return len(s.frames)
}

// Push pushes a new frame.
func (s *CallStack) Push(f *CallFrame) {
	s.frames = append(s.frames, f)
}

// Pop removes and returns the top frame, or a StackFlowError if the
// stack is empty.
func (s *CallStack) Pop() (*CallFrame, error) {
	if len(s.frames) == 0 {
		return nil, &StackFlowError{Stack: "call", Op: "pop", Requested: 1, Available: 0}
	}
	f := s.frames[len(s.frames)-1]
	s.frames = s.frames[:len(s.frames)-1]
	return f, nil
}

// Top returns the currently-executing frame, or a StackFlowError if
// the stack is empty.
func (s *CallStack) Top() (*CallFrame, error) {
	if len(s.frames) == 0 {
		return nil, &StackFlowError{Stack: "call", Op: "top", Requested: 1, Available: 0}
	}
	return s.frames[len(s.frames)-1], nil
}

// CodeStack holds the program's linear Code alongside the dispatcher's
// program counter. It behaves as a stack in the sense spec.md §4.3.1
// describes (sequential pop_code advances the pointer; a branch
// repositions it; indexing past either end is a flow error) even
// though, unlike the operand and call stacks, its backing array is
// fixed once compilation finishes.
type CodeStack struct {
	code Code
	pc   int
}

// NewCodeStack returns a code stack positioned at entryPC.
func NewCodeStack(code Code, entryPC int) *CodeStack {
	return &CodeStack{code: code, pc: entryPC}
}

// PC returns the current program counter.
func (s *CodeStack) PC() int {
	return s.pc
}

// SetPC repositions the program counter, used by Branch and by frame
// setup/teardown.
func (s *CodeStack) SetPC(pc int) {
	s.pc = pc
}

// Fetch reads the unit at the program counter and advances past it, or
// returns a StackFlowError if the program counter has run off the end
// of Code.
func (s *CodeStack) Fetch() (CodeUnit, error) {
	if s.pc < 0 || s.pc >= len(s.code) {
		return CodeUnit{}, &StackFlowError{Stack: "code", Op: "fetch", Requested: s.pc, Available: len(s.code)}
	}
	u := s.code[s.pc]
	s.pc++
	return u, nil
}

// At reads the unit at absolute address pc without moving the program
// counter, or a StackFlowError if pc is out of range.
func (s *CodeStack) At(pc int) (CodeUnit, error) {
	if pc < 0 || pc >= len(s.code) {
		return CodeUnit{}, &StackFlowError{Stack: "code", Op: "index", Requested: pc, Available: len(s.code)}
	}
	return s.code[pc], nil
}

// UpvalueStack is the registry of all currently open upvalues, ordered
// by creation. Because an upvalue can only be created while its
// owning frame is executing, and frames pop in LIFO order, the
// upvalues belonging to a frame being popped are always found at the
// top of this stack (spec.md §4.3.5).
type UpvalueStack struct {
	data []*Upvalue
}

// NewUpvalueStack returns an empty upvalue stack.
func NewUpvalueStack() *UpvalueStack {
	return &UpvalueStack{}
}

// Push registers a newly created open upvalue.
func (s *UpvalueStack) Push(u *Upvalue) {
	s.data = append(s.data, u)
}

// CloseFrom closes every open upvalue referencing a slot at or above
// frameBase, in LIFO order, stopping at the first upvalue that
// references a slot below frameBase (which must belong to an
// outstanding caller frame).
func (s *UpvalueStack) CloseFrom(frameBase int) {
	for len(s.data) > 0 {
		top := s.data[len(s.data)-1]
		if top.closed || top.slot < frameBase {
			break
		}
		top.Close()
		s.data = s.data[:len(s.data)-1]
	}
}
