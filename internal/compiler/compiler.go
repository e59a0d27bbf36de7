// Package compiler translates a parsed [stacklua.dev/pkg/internal/ast]
// chunk into a [stacklua.dev/pkg/internal/vm] Code stream and a root
// Closure, the step spec.md §3/§4.3 leaves unspecified ("Code... is
// produced by an (unspecified) compiler stage"). It is a single-pass,
// recursive tree-walking compiler: each AST node is visited exactly
// once and emits directly into a shared, growing Code slice. A nested
// function literal's body is compiled inline, the moment the literal
// is reached, wrapped in a Branch that skips over it at runtime — this
// keeps every enclosing function's scope genuinely live (on the Go
// call stack) while the nested body is walked, which upvalue
// resolution depends on (see resolve in funcstate.go). Everything else
// that can't be known until after a forward point in the code — a
// loop's exit address, a forward goto — is handled the ordinary way,
// with a placeholder Value emitted now and patched once the real
// address is known.
//
// Grounded on internal/luacode/funcstate.go's per-function local-slot
// and upvalue-list bookkeeping (see internal/compiler/funcstate.go),
// adapted from register allocation to spec.md §4.3.2's
// frame-base-relative local/argument addressing, since a register
// machine and this spec's stack machine assign operand slots by
// entirely different rules.
package compiler

import (
	"strconv"
	"strings"

	"stacklua.dev/pkg/internal/ast"
	"stacklua.dev/pkg/internal/vm"
)

// compiler holds the state shared across every function body being
// compiled into one Code stream: the code buffer itself and the
// global name table (globals are a single flat index space, spec.md
// §4.3.2, regardless of which function reads or writes them).
type compiler struct {
	code    vm.Code
	globals map[string]int
}

// Compile compiles a parsed chunk into a Code stream and the root
// closure to run against it. The root chunk is itself a vararg closure
// of zero parameters, matching real Lua's treatment of a chunk as an
// implicit `function(...) ... end`. The returned global name table is
// ordered by slot index (spec.md's globals are a single flat index
// space, see compiler.globalIndex); it isn't needed to execute Code,
// whose global accesses are already baked in as Index constants, but a
// CLI `dump` wants it for human-readable output and the compile cache
// persists it alongside Code for the same reason.
func Compile(chunk *ast.Block) (vm.Code, *vm.Closure, []string, error) {
	c := &compiler{globals: make(map[string]int)}
	root := newFuncState(nil, 0, true)
	entryPC := c.here()
	if err := c.compileFunctionBody(root, nil, chunk); err != nil {
		return nil, nil, nil, err
	}
	closure := vm.NewClosure(0, root.numLocals, true, entryPC, nil)
	return c.code, closure, c.globalNames(), nil
}

// globalNames returns the global name table ordered by slot index.
func (c *compiler) globalNames() []string {
	names := make([]string, len(c.globals))
	for name, idx := range c.globals {
		names[idx] = name
	}
	return names
}

// compileFunctionBody compiles block as the body of fs (whose
// enclosing function, if any, is still mid-compilation on the Go call
// stack — see the package doc). params, if non-empty, are copied out
// of their argument slots into fresh, mutable local slots before the
// block runs (see funcstate.go's note on why arguments aren't
// addressed directly). An implicit `return` with no values is
// appended if the block doesn't already end with one, followed by the
// EndClosureMarker terminating the closure.
func (c *compiler) compileFunctionBody(fs *funcState, params []string, block *ast.Block) error {
	fs.pushScope()
	for i, name := range params {
		slot := fs.declareLocal(name)
		c.pushIndex(slot)
		c.pushIndex(i)
		c.emit(vm.OpLoadNthArgument)
		c.emit(vm.OpStoreLocal)
	}
	if err := c.compileBlock(fs, block); err != nil {
		return err
	}
	if block.Last == nil {
		if err := c.emitReturn(fs, nil); err != nil {
			return err
		}
	}
	fs.popScope()
	for name := range fs.pendingGotos {
		return &Error{Message: "goto " + name + ": no visible label"}
	}
	c.code = append(c.code, vm.EndClosureMarkerUnit())
	return nil
}

func (c *compiler) emit(op vm.Op) {
	c.code = append(c.code, vm.Instruction(op))
}

// pushConst emits the load_from_code sequence that pushes a literal
// Value: an OpLoadFromCodeTOS instruction followed by the inline Value
// unit it reads (spec.md §4.3.3's "LoadFromCodeTOS pops an inline
// Value from the Code stream").
func (c *compiler) pushConst(v vm.Value) {
	c.emit(vm.OpLoadFromCodeTOS)
	c.code = append(c.code, vm.InlineValue(v))
}

func (c *compiler) pushIndex(i int)      { c.pushConst(vm.IndexValue(i)) }
func (c *compiler) pushNumber(n float64) { c.pushConst(vm.NumberValue(n)) }
func (c *compiler) pushString(s string)  { c.pushConst(vm.StringValue(s)) }
func (c *compiler) pushBool(b bool)      { c.pushConst(vm.BooleanValue(b)) }

// pushAddressPlaceholder emits a load_from_code sequence carrying a
// throwaway Address value and returns the index of the inline Value
// unit, for later correction via patchAddress once the real target is
// known.
func (c *compiler) pushAddressPlaceholder() int {
	c.emit(vm.OpLoadFromCodeTOS)
	idx := len(c.code)
	c.code = append(c.code, vm.InlineValue(vm.AddressValue(-1)))
	return idx
}

func (c *compiler) patchAddress(idx, target int) {
	c.code[idx] = vm.InlineValue(vm.AddressValue(target))
}

func (c *compiler) here() int { return len(c.code) }

// globalIndex assigns (or reuses) the flat slot a global name is
// addressed by. Slots are assigned in first-use order across the
// whole compile, not per function, since vm.VM's globals are one array
// shared by every frame.
func (c *compiler) globalIndex(name string) int {
	if i, ok := c.globals[name]; ok {
		return i
	}
	i := len(c.globals)
	c.globals[name] = i
	return i
}

// parseNumber converts a Number literal's lexeme (spec.md §4.1: plain
// decimal, optional fraction/exponent, or 0x/0o/0b prefixed) into the
// float64 the VM's Number Value carries. Hexadecimal integers
// (`0x1A`), which strconv.ParseFloat doesn't accept, are parsed via
// ParseUint first; hex floats (`0x1p4`) and every other form go
// through ParseFloat, which Go has accepted the `p` exponent form for
// since 1.13.
func parseNumber(lexeme string) (float64, error) {
	lower := strings.ToLower(lexeme)
	switch {
	case strings.HasPrefix(lower, "0x") && !strings.ContainsAny(lower, ".p"):
		n, err := strconv.ParseUint(lower[2:], 16, 64)
		if err != nil {
			return 0, err
		}
		return float64(n), nil
	case strings.HasPrefix(lower, "0o"):
		n, err := strconv.ParseUint(lower[2:], 8, 64)
		if err != nil {
			return 0, err
		}
		return float64(n), nil
	case strings.HasPrefix(lower, "0b"):
		n, err := strconv.ParseUint(lower[2:], 2, 64)
		if err != nil {
			return 0, err
		}
		return float64(n), nil
	default:
		return strconv.ParseFloat(lexeme, 64)
	}
}
