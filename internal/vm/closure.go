package vm

// Closure is a callable value: an entry point into Code plus its
// captured upvalues (spec.md §3). A Closure's body extends from
// EntryPC up to the first matching EndClosureMarker unit in Code at
// the same nesting level.
type Closure struct {
	id        uint64
	NumParams int
	// NumLocals is the total count of local-variable slots the
	// compiler allocated across the closure's whole body, pre-grown
	// onto the operand stack by CallClosure immediately above the
	// arguments. This is not part of spec.md's literal instruction
	// list; CallClosure, rather than a sequence of compiled "push nil"
	// instructions, owns this step (see DESIGN.md on OpDiscard).
	NumLocals int
	IsVarargs bool
	EntryPC   int
	// Constants is the compile-time constant pool copied into each
	// CallFrame created from this closure (spec.md §3's per-frame
	// pool, capped at [MaxConst]).
	Constants []Value
	Upvalues  []*Upvalue
}

// NewClosure returns a closure with the given shape and no captures
// yet; MakeClosure assigns Upvalues from the (slot, isParentUpvalue)
// capture pairs it pops off the operand stack.
func NewClosure(numParams, numLocals int, isVarargs bool, entryPC int, constants []Value) *Closure {
	return &Closure{
		id:        nextID(),
		NumParams: numParams,
		NumLocals: numLocals,
		IsVarargs: isVarargs,
		EntryPC:   entryPC,
		Constants: constants,
	}
}

// Upvalue is an indirect reference to a Value slot (spec.md §3). While
// open, it reads through Stack at Slot in the frame that owns it; once
// Close is called, the value is copied into the Upvalue's own cell and
// further reads/writes go through that cell instead, allowing a
// closure to outlive the frame that created the capture.
type Upvalue struct {
	closed bool
	cell   Value
	stack  *OperandStack
	slot   int
}

// newOpenUpvalue returns an upvalue that, until closed, reads and
// writes slot in stack.
func newOpenUpvalue(stack *OperandStack, slot int) *Upvalue {
	return &Upvalue{stack: stack, slot: slot}
}

// IsClosed reports whether the upvalue has been closed.
func (u *Upvalue) IsClosed() bool {
	return u.closed
}

// Get reads the upvalue's current value.
func (u *Upvalue) Get() Value {
	if u.closed {
		return u.cell
	}
	return u.stack.data[u.slot]
}

// Set writes through the upvalue.
func (u *Upvalue) Set(v Value) {
	if u.closed {
		u.cell = v
		return
	}
	u.stack.data[u.slot] = v
}

// Close transitions the upvalue from open to closed, copying the
// current value of its referenced slot into its own cell (spec.md
// §4.3.5). Closing is idempotent.
func (u *Upvalue) Close() {
	if u.closed {
		return
	}
	u.cell = u.stack.data[u.slot]
	u.closed = true
	u.stack = nil
}
