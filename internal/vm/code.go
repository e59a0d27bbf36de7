package vm

import "fmt"

// Op enumerates the VM's instruction opcodes (spec.md §4.3.3). Every
// instruction is argument-free at the tag level: the operands it
// consumes are already sitting on the operand stack (pushed there by
// the compiler as literal Values via [OpLoadFromCodeTOS], or produced
// by earlier instructions), per spec.md's "each takes its index from
// the operand-stack top" convention for the Memory group, generalized
// to every opcode.
type Op uint8

const (
	// Arithmetic.
	OpAdd Op = iota
	OpSub
	OpMul
	OpDiv
	OpMod
	OpFPow
	OpIPow
	OpNegate
	OpTruncateReal
	OpFloorReal

	// Bitwise.
	OpBitwiseAnd
	OpBitwiseOr
	OpBitwiseXor
	OpBitwiseNot
	OpBitwiseShiftLeft
	OpBitwiseShiftRight

	// Logical and string.
	OpConjunction
	OpDisjunction
	OpNot
	OpConcatString

	// Comparison.
	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe

	// Memory.
	OpLoadLocal
	OpStoreLocal
	OpLoadGlobal
	OpStoreGlobal
	OpLoadGlobalPointer
	OpLoadConstantAtCallTOS
	OpStoreConstantAtCallTOS
	OpLoadNthArgument
	OpLoadFromCodeTOS
	OpLoadFromCodeAtOffset

	// Tables.
	OpInsertIntoTable
	OpGetFromTable
	OpCheckIfTableHas

	// Closures and calls.
	OpMakeClosure
	OpCallClosure
	OpReturnFromClosure
	OpLoadUpvalue
	OpStoreUpvalue
	OpCallConcurrently

	// Control flow.
	OpBranch
	OpBranchIfTrue
	OpBranchIfFalse

	// OpDiscard pops and drops the top operand. Not part of spec.md's
	// literal instruction list: the compiler emits it to drop operands
	// it has no further use for (a call's result count, a
	// statement-level call's result, the table InsertIntoTable leaves
	// behind) so the operand stack stays balanced (see DESIGN.md).
	OpDiscard

	maxOp
)

var opNames = [...]string{
	OpAdd: "add", OpSub: "sub", OpMul: "mul", OpDiv: "div", OpMod: "mod",
	OpFPow: "fpow", OpIPow: "ipow", OpNegate: "negate",
	OpTruncateReal: "truncate_real", OpFloorReal: "floor_real",
	OpBitwiseAnd: "bitwise_and", OpBitwiseOr: "bitwise_or", OpBitwiseXor: "bitwise_xor",
	OpBitwiseNot: "bitwise_not", OpBitwiseShiftLeft: "shl", OpBitwiseShiftRight: "shr",
	OpConjunction: "and", OpDisjunction: "or", OpNot: "not", OpConcatString: "concat",
	OpEq: "eq", OpNe: "ne", OpLt: "lt", OpLe: "le", OpGt: "gt", OpGe: "ge",
	OpLoadLocal: "load_local", OpStoreLocal: "store_local",
	OpLoadGlobal: "load_global", OpStoreGlobal: "store_global",
	OpLoadGlobalPointer: "load_global_pointer",
	OpLoadConstantAtCallTOS: "load_constant", OpStoreConstantAtCallTOS: "store_constant",
	OpLoadNthArgument:      "load_nth_argument",
	OpLoadFromCodeTOS:      "load_from_code",
	OpLoadFromCodeAtOffset: "load_from_code_at_offset",
	OpInsertIntoTable:      "insert_into_table",
	OpGetFromTable:         "get_from_table",
	OpCheckIfTableHas:      "check_if_table_has",
	OpMakeClosure:          "make_closure",
	OpCallClosure:          "call_closure",
	OpReturnFromClosure:    "return_from_closure",
	OpLoadUpvalue:          "load_upvalue",
	OpStoreUpvalue:         "store_upvalue",
	OpCallConcurrently:     "call_concurrently",
	OpBranch:               "branch",
	OpBranchIfTrue:         "branch_if_true",
	OpBranchIfFalse:        "branch_if_false",
	OpDiscard:              "discard",
}

func (op Op) String() string {
	if op >= maxOp || opNames[op] == "" {
		return fmt.Sprintf("vm.Op(%d)", int(op))
	}
	return opNames[op]
}

// UnitKind tags a [CodeUnit].
type UnitKind uint8

const (
	UnitInstruction UnitKind = iota
	UnitValue
	UnitEndClosureMarker
)

// CodeUnit is one element of a [Code] sequence: either an instruction,
// an inline Value, or an EndClosureMarker (spec.md §3).
type CodeUnit struct {
	Kind  UnitKind
	Op    Op    // meaningful when Kind == UnitInstruction
	Value Value // meaningful when Kind == UnitValue
}

// Instruction returns the CodeUnit wrapping op.
func Instruction(op Op) CodeUnit {
	return CodeUnit{Kind: UnitInstruction, Op: op}
}

// InlineValue returns the CodeUnit wrapping a literal Value.
func InlineValue(v Value) CodeUnit {
	return CodeUnit{Kind: UnitValue, Value: v}
}

// EndClosureMarkerUnit returns the CodeUnit terminating a closure's body.
func EndClosureMarkerUnit() CodeUnit {
	return CodeUnit{Kind: UnitEndClosureMarker}
}

func (u CodeUnit) String() string {
	switch u.Kind {
	case UnitInstruction:
		return u.Op.String()
	case UnitValue:
		return u.Value.GoString()
	case UnitEndClosureMarker:
		return "<end closure>"
	default:
		return fmt.Sprintf("vm.CodeUnit{Kind: %d}", u.Kind)
	}
}

// Code is the VM's linear program: a tagged stream of instructions,
// inline values, and end-closure markers (spec.md §3). Addresses are
// indices into Code.
type Code []CodeUnit
