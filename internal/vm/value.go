// Package vm implements the stack-based bytecode virtual machine: its
// tagged value model, the operand/call/code/upvalue stacks, call-frame
// discipline, closure and upvalue machinery, and the fetch-decode-execute
// dispatch loop.
//
// Grounded on internal/mylua's tagged-value-as-Go-interface pattern
// (value.go) and its sorted-slice table (table.go), adapted to the
// closed Value sum this package's frame/addressing model requires
// instead of the teacher's register-based Lua interpreter.
package vm

import (
	"cmp"
	"fmt"
)

// Kind enumerates the tags of the Value sum.
type Kind uint8

const (
	KindNil Kind = iota
	KindBoolean
	KindNumber
	KindString
	KindAddress
	KindIndex
	KindTable
	KindClosure
	KindValuePointer
)

func (k Kind) String() string {
	switch k {
	case KindNil:
		return "nil"
	case KindBoolean:
		return "boolean"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindAddress:
		return "address"
	case KindIndex:
		return "index"
	case KindTable:
		return "table"
	case KindClosure:
		return "closure"
	case KindValuePointer:
		return "value pointer"
	default:
		return fmt.Sprintf("vm.Kind(%d)", int(k))
	}
}

// Value is the VM's tagged value sum (spec.md §3). The zero Value is
// Nil. Exactly one of the typed fields is meaningful, selected by Kind;
// this avoids the allocation an interface-per-value scheme would cost
// for the hot arithmetic path, at the expense of a slightly fatter
// struct.
type Value struct {
	kind    Kind
	number  float64
	str     string
	address int
	index   int
	table   *Table
	closure *Closure
	ptr     *Value
}

// Nil is the Nil value.
var Nil = Value{}

// BooleanValue returns a Boolean value.
func BooleanValue(b bool) Value {
	n := 0.0
	if b {
		n = 1
	}
	return Value{kind: KindBoolean, number: n}
}

// NumberValue returns a Number value.
func NumberValue(f float64) Value {
	return Value{kind: KindNumber, number: f}
}

// StringValue returns a String value.
func StringValue(s string) Value {
	return Value{kind: KindString, str: s}
}

// AddressValue returns an Address value: a signed code offset.
func AddressValue(pc int) Value {
	return Value{kind: KindAddress, address: pc}
}

// IndexValue returns an Index value: an unsigned offset used to index
// locals, arguments, constants, and globals.
func IndexValue(i int) Value {
	return Value{kind: KindIndex, index: i}
}

// TableValue returns a Value referencing t.
func TableValue(t *Table) Value {
	return Value{kind: KindTable, table: t}
}

// ClosureValue returns a Value referencing c.
func ClosureValue(c *Closure) Value {
	return Value{kind: KindClosure, closure: c}
}

// ValuePointerValue returns a Value indirectly referencing the Value
// slot p. OpLoadGlobalPointer produces one for a global slot;
// upvalues are separate [Upvalue] objects, not ValuePointers.
func ValuePointerValue(p *Value) Value {
	return Value{kind: KindValuePointer, ptr: p}
}

// Kind reports v's tag.
func (v Value) Kind() Kind { return v.kind }

// IsNil reports whether v is Nil.
func (v Value) IsNil() bool { return v.kind == KindNil }

// Boolean returns v's boolean payload and whether v is a Boolean.
func (v Value) Boolean() (bool, bool) {
	if v.kind != KindBoolean {
		return false, false
	}
	return v.number != 0, true
}

// Number returns v's numeric payload and whether v is a Number.
func (v Value) Number() (float64, bool) {
	if v.kind != KindNumber {
		return 0, false
	}
	return v.number, true
}

// String returns v's string payload and whether v is a String.
func (v Value) String() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.str, true
}

// Address returns v's address payload and whether v is an Address.
func (v Value) Address() (int, bool) {
	if v.kind != KindAddress {
		return 0, false
	}
	return v.address, true
}

// Index returns v's index payload and whether v is an Index.
func (v Value) Index() (int, bool) {
	if v.kind != KindIndex {
		return 0, false
	}
	return v.index, true
}

// Table returns v's table payload and whether v is a Table.
func (v Value) Table() (*Table, bool) {
	if v.kind != KindTable {
		return nil, false
	}
	return v.table, true
}

// Closure returns v's closure payload and whether v is a Closure.
func (v Value) Closure() (*Closure, bool) {
	if v.kind != KindClosure {
		return nil, false
	}
	return v.closure, true
}

// ValuePointer returns v's indirect cell and whether v is a
// ValuePointer.
func (v Value) ValuePointer() (*Value, bool) {
	if v.kind != KindValuePointer {
		return nil, false
	}
	return v.ptr, true
}

// Truthy reports whether v counts as true in a conditional context:
// everything except Nil and a false Boolean.
func (v Value) Truthy() bool {
	switch v.kind {
	case KindNil:
		return false
	case KindBoolean:
		return v.number != 0
	default:
		return true
	}
}

// Equal implements Value equality (spec.md §3): structural for
// primitives, reference identity for Table and Closure, pointer
// identity for ValuePointer. Nil equals Nil; values of differing Kind
// are never equal.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindNil:
		return true
	case KindBoolean, KindNumber:
		return v.number == other.number
	case KindString:
		return v.str == other.str
	case KindAddress:
		return v.address == other.address
	case KindIndex:
		return v.index == other.index
	case KindTable:
		return v.table == other.table
	case KindClosure:
		return v.closure == other.closure
	case KindValuePointer:
		return v.ptr == other.ptr
	default:
		return false
	}
}

// compare orders v against other for Table key ordering. Values of
// differing Kind order by Kind; this is an internal ordering, not a
// user-visible `<`/`>` (those apply to Numbers only, per spec.md §4.3.3).
func compare(v, other Value) int {
	if v.kind != other.kind {
		return cmp.Compare(v.kind, other.kind)
	}
	switch v.kind {
	case KindNil:
		return 0
	case KindBoolean, KindNumber:
		return cmp.Compare(v.number, other.number)
	case KindString:
		return cmp.Compare(v.str, other.str)
	case KindAddress:
		return cmp.Compare(v.address, other.address)
	case KindIndex:
		return cmp.Compare(v.index, other.index)
	case KindTable:
		return cmp.Compare(v.table.id, other.table.id)
	case KindClosure:
		return cmp.Compare(v.closure.id, other.closure.id)
	default:
		return cmp.Compare(fmt.Sprintf("%p", v.ptr), fmt.Sprintf("%p", other.ptr))
	}
}

// GoString renders v for diagnostics and test failure output.
func (v Value) GoString() string {
	switch v.kind {
	case KindNil:
		return "nil"
	case KindBoolean:
		return fmt.Sprintf("%t", v.number != 0)
	case KindNumber:
		return fmt.Sprintf("%v", v.number)
	case KindString:
		return fmt.Sprintf("%q", v.str)
	case KindAddress:
		return fmt.Sprintf("address(%d)", v.address)
	case KindIndex:
		return fmt.Sprintf("index(%d)", v.index)
	case KindTable:
		return fmt.Sprintf("table(%d)", v.table.id)
	case KindClosure:
		return fmt.Sprintf("closure(%d)", v.closure.id)
	case KindValuePointer:
		return fmt.Sprintf("pointer(%p)", v.ptr)
	default:
		return "<invalid value>"
	}
}
