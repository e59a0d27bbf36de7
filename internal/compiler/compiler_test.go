package compiler

import (
	"strings"
	"testing"

	"stacklua.dev/pkg/internal/parser"
	"stacklua.dev/pkg/internal/vm"
)

// run parses, compiles, and executes src as a chunk with no arguments,
// returning its first result.
func run(t *testing.T, src string) vm.Value {
	t.Helper()
	chunk, err := parser.Parse(strings.NewReader(src))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	code, closure, _, err := Compile(chunk)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	got, err := vm.New(code).Run(closure, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return got
}

func TestArithmetic(t *testing.T) {
	got := run(t, `return 2 + 3 * 4 - 1`)
	if n, ok := got.Number(); !ok || n != 13 {
		t.Errorf("got %#v; want 13", got)
	}
}

func TestStringConcat(t *testing.T) {
	got := run(t, `
		local greeting = "hello"
		local name = "world"
		return greeting .. ", " .. name
	`)
	if s, ok := got.String(); !ok || s != "hello, world" {
		t.Errorf("got %#v; want %q", got, "hello, world")
	}
}

func TestTableLength(t *testing.T) {
	got := run(t, `
		local t = {10, 20, 30, 40}
		return #t
	`)
	if n, ok := got.Number(); !ok || n != 4 {
		t.Errorf("got %#v; want 4", got)
	}
}

func TestNumericFor(t *testing.T) {
	got := run(t, `
		local sum = 0
		for i = 1, 5 do
			sum = sum + i
		end
		return sum
	`)
	if n, ok := got.Number(); !ok || n != 15 {
		t.Errorf("got %#v; want 15", got)
	}
}

func TestNumericForDescending(t *testing.T) {
	got := run(t, `
		local count = 0
		for i = 5, 1, -1 do
			count = count + 1
		end
		return count
	`)
	if n, ok := got.Number(); !ok || n != 5 {
		t.Errorf("got %#v; want 5", got)
	}
}

// TestClosureCapture checks that a counter closure returned from an
// enclosing function keeps its own live binding of a local it
// captures, per spec.md §8's closure-capture scenario.
func TestClosureCapture(t *testing.T) {
	got := run(t, `
		local function makeCounter()
			local n = 0
			local function increment()
				n = n + 1
				return n
			end
			return increment
		end
		local counter = makeCounter()
		counter()
		counter()
		return counter()
	`)
	if n, ok := got.Number(); !ok || n != 3 {
		t.Errorf("got %#v; want 3", got)
	}
}

func TestIfElse(t *testing.T) {
	got := run(t, `
		local function classify(n)
			if n < 0 then
				return "negative"
			elseif n == 0 then
				return "zero"
			else
				return "positive"
			end
		end
		return classify(-5) .. "/" .. classify(0) .. "/" .. classify(5)
	`)
	if s, ok := got.String(); !ok || s != "negative/zero/positive" {
		t.Errorf("got %#v; want %q", got, "negative/zero/positive")
	}
}

func TestWhileAndBreak(t *testing.T) {
	got := run(t, `
		local i = 0
		while true do
			i = i + 1
			if i == 10 then
				break
			end
		end
		return i
	`)
	if n, ok := got.Number(); !ok || n != 10 {
		t.Errorf("got %#v; want 10", got)
	}
}

func TestRepeatUntil(t *testing.T) {
	got := run(t, `
		local i = 0
		repeat
			i = i + 1
		until i >= 3
		return i
	`)
	if n, ok := got.Number(); !ok || n != 3 {
		t.Errorf("got %#v; want 3", got)
	}
}

func TestAndOrShortCircuit(t *testing.T) {
	got := run(t, `
		local function boom()
			error("should not be called")
		end
		local a = false and boom()
		local b = true or boom()
		return a == false and b == true
	`)
	if bv, ok := got.Boolean(); !ok || !bv {
		t.Errorf("got %#v; want true", got)
	}
}

func TestMethodCall(t *testing.T) {
	got := run(t, `
		local obj = {value = 41}
		function obj:bump()
			self.value = self.value + 1
			return self.value
		end
		return obj:bump()
	`)
	if n, ok := got.Number(); !ok || n != 42 {
		t.Errorf("got %#v; want 42", got)
	}
}

func TestMultipleAssignmentSwap(t *testing.T) {
	got := run(t, `
		local a, b = 1, 2
		a, b = b, a
		return a == 2 and b == 1
	`)
	if bv, ok := got.Boolean(); !ok || !bv {
		t.Errorf("got %#v; want true", got)
	}
}
