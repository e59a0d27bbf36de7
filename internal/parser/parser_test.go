package parser

import (
	"bytes"
	"errors"
	"testing"

	"stacklua.dev/pkg/internal/ast"
	"stacklua.dev/pkg/internal/token"
)

func parseSrc(t *testing.T, src string) *ast.Block {
	t.Helper()
	block, err := Parse(bytes.NewReader([]byte(src)))
	if err != nil {
		t.Fatalf("Parse(%q): %v", src, err)
	}
	return block
}

func TestParseEmptyChunk(t *testing.T) {
	block := parseSrc(t, "")
	if len(block.Stats) != 0 || block.Last != nil {
		t.Fatalf("empty chunk: got %+v", block)
	}
}

func TestParseLocalAssignment(t *testing.T) {
	block := parseSrc(t, "local x, y = 1, 2")
	if len(block.Stats) != 1 {
		t.Fatalf("got %d statements, want 1", len(block.Stats))
	}
	loc, ok := block.Stats[0].(*ast.LocalVars)
	if !ok {
		t.Fatalf("stat[0] = %T, want *ast.LocalVars", block.Stats[0])
	}
	if len(loc.Names) != 2 || loc.Names[0] != "x" || loc.Names[1] != "y" {
		t.Errorf("Names = %v", loc.Names)
	}
	if len(loc.Values) != 2 {
		t.Fatalf("got %d values, want 2", len(loc.Values))
	}
	if n, ok := loc.Values[0].(*ast.Number); !ok || n.Lexeme != "1" {
		t.Errorf("Values[0] = %#v", loc.Values[0])
	}
}

func TestParseLocalAttribute(t *testing.T) {
	block := parseSrc(t, "local x <const> = 1")
	loc, ok := block.Stats[0].(*ast.LocalVars)
	if !ok {
		t.Fatalf("stat[0] = %T, want *ast.LocalVars", block.Stats[0])
	}
	if len(loc.Names) != 1 || loc.Names[0] != "x" {
		t.Errorf("Names = %v", loc.Names)
	}
}

func TestParseAssignmentToMultipleTargets(t *testing.T) {
	block := parseSrc(t, "a, b = b, a")
	assign, ok := block.Stats[0].(*ast.Assign)
	if !ok {
		t.Fatalf("stat[0] = %T, want *ast.Assign", block.Stats[0])
	}
	if len(assign.Targets) != 2 || len(assign.Values) != 2 {
		t.Fatalf("Targets=%d Values=%d, want 2 and 2", len(assign.Targets), len(assign.Values))
	}
}

func TestParseFunctionCallStatement(t *testing.T) {
	block := parseSrc(t, "print(1, 2)")
	stat, ok := block.Stats[0].(*ast.FunctionCallStat)
	if !ok {
		t.Fatalf("stat[0] = %T, want *ast.FunctionCallStat", block.Stats[0])
	}
	call, ok := stat.Call.(*ast.FunctionCallExpr)
	if !ok {
		t.Fatalf("Call = %T, want *ast.FunctionCallExpr", stat.Call)
	}
	if callee, ok := call.Callee.(*ast.Name); !ok || callee.Value != "print" {
		t.Errorf("Callee = %#v", call.Callee)
	}
	if len(call.Args) != 2 {
		t.Errorf("got %d args, want 2", len(call.Args))
	}
}

func TestParseMethodCall(t *testing.T) {
	block := parseSrc(t, "obj:method(1)")
	stat := block.Stats[0].(*ast.FunctionCallStat)
	call, ok := stat.Call.(*ast.MethodCall)
	if !ok {
		t.Fatalf("Call = %T, want *ast.MethodCall", stat.Call)
	}
	if call.Method != "method" {
		t.Errorf("Method = %q", call.Method)
	}
}

func TestParseBareExpressionIsError(t *testing.T) {
	_, err := Parse(bytes.NewReader([]byte("1 + 1")))
	var perr *Error
	if !errors.As(err, &perr) {
		t.Fatalf("Parse error = %v; want *Error", err)
	}
}

func TestParseStringCallSugar(t *testing.T) {
	block := parseSrc(t, `print "hi"`)
	stat := block.Stats[0].(*ast.FunctionCallStat)
	call := stat.Call.(*ast.FunctionCallExpr)
	if len(call.Args) != 1 {
		t.Fatalf("got %d args, want 1", len(call.Args))
	}
	if str, ok := call.Args[0].(*ast.String); !ok || str.Value != "hi" {
		t.Errorf("Args[0] = %#v", call.Args[0])
	}
}

func TestParseTableCallSugar(t *testing.T) {
	block := parseSrc(t, "print{1, 2}")
	stat := block.Stats[0].(*ast.FunctionCallStat)
	call := stat.Call.(*ast.FunctionCallExpr)
	if len(call.Args) != 1 {
		t.Fatalf("got %d args, want 1", len(call.Args))
	}
	if _, ok := call.Args[0].(*ast.Table); !ok {
		t.Errorf("Args[0] = %T, want *ast.Table", call.Args[0])
	}
}

func TestParseIfElseif(t *testing.T) {
	block := parseSrc(t, `
if a then
	b = 1
elseif c then
	b = 2
else
	b = 3
end`)
	ifStat, ok := block.Stats[0].(*ast.If)
	if !ok {
		t.Fatalf("stat[0] = %T, want *ast.If", block.Stats[0])
	}
	if len(ifStat.CondBlocks) != 2 {
		t.Fatalf("got %d cond blocks, want 2", len(ifStat.CondBlocks))
	}
	if ifStat.Else == nil {
		t.Fatal("Else is nil, want an else block")
	}
}

func TestParseIfWithoutElse(t *testing.T) {
	block := parseSrc(t, "if a then b = 1 end")
	ifStat := block.Stats[0].(*ast.If)
	if ifStat.Else != nil {
		t.Errorf("Else = %+v, want nil", ifStat.Else)
	}
}

func TestParseMismatchedEndIsError(t *testing.T) {
	_, err := Parse(bytes.NewReader([]byte("if a then b = 1")))
	var perr *Error
	if !errors.As(err, &perr) {
		t.Fatalf("Parse error = %v; want *Error", err)
	}
}

func TestParseWhileLoop(t *testing.T) {
	block := parseSrc(t, "while a do b = 1 end")
	w, ok := block.Stats[0].(*ast.While)
	if !ok {
		t.Fatalf("stat[0] = %T, want *ast.While", block.Stats[0])
	}
	if _, ok := w.Cond.(*ast.Name); !ok {
		t.Errorf("Cond = %#v", w.Cond)
	}
}

func TestParseRepeatUntil(t *testing.T) {
	block := parseSrc(t, "repeat x = x + 1 until x > 10")
	rep, ok := block.Stats[0].(*ast.Repeat)
	if !ok {
		t.Fatalf("stat[0] = %T, want *ast.Repeat", block.Stats[0])
	}
	if _, ok := rep.Cond.(*ast.Binary); !ok {
		t.Errorf("Cond = %#v", rep.Cond)
	}
}

func TestParseNumericFor(t *testing.T) {
	block := parseSrc(t, "for i = 1, 10, 2 do end")
	f, ok := block.Stats[0].(*ast.For)
	if !ok {
		t.Fatalf("stat[0] = %T, want *ast.For", block.Stats[0])
	}
	if f.Name != "i" {
		t.Errorf("Name = %q", f.Name)
	}
	if f.Step == nil {
		t.Error("Step is nil, want the explicit step expression")
	}
}

func TestParseNumericForNoStep(t *testing.T) {
	block := parseSrc(t, "for i = 1, 10 do end")
	f := block.Stats[0].(*ast.For)
	if f.Step != nil {
		t.Errorf("Step = %#v, want nil", f.Step)
	}
}

func TestParseGenericFor(t *testing.T) {
	block := parseSrc(t, "for k, v in pairs(t) do end")
	f, ok := block.Stats[0].(*ast.ForIn)
	if !ok {
		t.Fatalf("stat[0] = %T, want *ast.ForIn", block.Stats[0])
	}
	if len(f.Names) != 2 || f.Names[0] != "k" || f.Names[1] != "v" {
		t.Errorf("Names = %v", f.Names)
	}
}

func TestParseFunctionStatementDottedName(t *testing.T) {
	block := parseSrc(t, "function a.b.c() end")
	def, ok := block.Stats[0].(*ast.FunctionDef)
	if !ok {
		t.Fatalf("stat[0] = %T, want *ast.FunctionDef", block.Stats[0])
	}
	if def.Name.Base != "a" || len(def.Name.Fields) != 2 || def.Name.Fields[1] != "c" {
		t.Errorf("Name = %+v", def.Name)
	}
}

func TestParseFunctionStatementMethodImplicitSelf(t *testing.T) {
	block := parseSrc(t, "function a:m(x) end")
	def := block.Stats[0].(*ast.FunctionDef)
	if def.Name.Method != "m" {
		t.Errorf("Method = %q", def.Name.Method)
	}
	if len(def.Thunk.Params) != 2 || def.Thunk.Params[0] != "self" || def.Thunk.Params[1] != "x" {
		t.Errorf("Params = %v", def.Thunk.Params)
	}
}

func TestParseLocalFunction(t *testing.T) {
	block := parseSrc(t, "local function f(a, ...) end")
	lf, ok := block.Stats[0].(*ast.LocalFunction)
	if !ok {
		t.Fatalf("stat[0] = %T, want *ast.LocalFunction", block.Stats[0])
	}
	if lf.Name != "f" {
		t.Errorf("Name = %q", lf.Name)
	}
	if !lf.Thunk.IsVarargs {
		t.Error("IsVarargs = false, want true")
	}
	if len(lf.Thunk.Params) != 1 || lf.Thunk.Params[0] != "a" {
		t.Errorf("Params = %v", lf.Thunk.Params)
	}
}

func TestParseReturnNoValues(t *testing.T) {
	block := parseSrc(t, "return")
	ret, ok := block.Last.(*ast.Return)
	if !ok {
		t.Fatalf("Last = %T, want *ast.Return", block.Last)
	}
	if len(ret.Values) != 0 {
		t.Errorf("Values = %v", ret.Values)
	}
}

func TestParseReturnValues(t *testing.T) {
	block := parseSrc(t, "return 1, 2")
	ret := block.Last.(*ast.Return)
	if len(ret.Values) != 2 {
		t.Errorf("got %d values, want 2", len(ret.Values))
	}
}

func TestParseBreakAndGotoAreLastStat(t *testing.T) {
	block := parseSrc(t, "while true do break end")
	w := block.Stats[0].(*ast.While)
	if _, ok := w.Body.Last.(*ast.Break); !ok {
		t.Fatalf("Last = %T, want *ast.Break", w.Body.Last)
	}

	block2 := parseSrc(t, "goto done")
	if g, ok := block2.Last.(*ast.Goto); !ok || g.Name != "done" {
		t.Fatalf("Last = %#v, want *ast.Goto{Name: %q}", block2.Last, "done")
	}
}

func TestParseLabel(t *testing.T) {
	block := parseSrc(t, "::top:: x = 1")
	label, ok := block.Stats[0].(*ast.Label)
	if !ok {
		t.Fatalf("stat[0] = %T, want *ast.Label", block.Stats[0])
	}
	if label.Name != "top" {
		t.Errorf("Name = %q", label.Name)
	}
}

func TestParseDoBlock(t *testing.T) {
	block := parseSrc(t, "do local x = 1 end")
	do, ok := block.Stats[0].(*ast.Do)
	if !ok {
		t.Fatalf("stat[0] = %T, want *ast.Do", block.Stats[0])
	}
	if len(do.Body.Stats) != 1 {
		t.Errorf("got %d inner statements, want 1", len(do.Body.Stats))
	}
}

func TestOperatorPrecedence(t *testing.T) {
	// 1 + 2 * 3 parses as 1 + (2 * 3), not (1 + 2) * 3.
	block := parseSrc(t, "local x = 1 + 2 * 3")
	loc := block.Stats[0].(*ast.LocalVars)
	top, ok := loc.Values[0].(*ast.Binary)
	if !ok || top.Op != token.PLUS {
		t.Fatalf("top = %#v, want Binary PLUS", loc.Values[0])
	}
	right, ok := top.Right.(*ast.Binary)
	if !ok || right.Op != token.STAR {
		t.Fatalf("right = %#v, want Binary STAR", top.Right)
	}
}

func TestConcatIsRightAssociative(t *testing.T) {
	// a .. b .. c parses as a .. (b .. c).
	block := parseSrc(t, "local x = a .. b .. c")
	loc := block.Stats[0].(*ast.LocalVars)
	top := loc.Values[0].(*ast.Binary)
	if top.Op != token.CONCAT {
		t.Fatalf("top.Op = %v, want CONCAT", top.Op)
	}
	if _, ok := top.Left.(*ast.Name); !ok {
		t.Errorf("Left = %#v, want *ast.Name", top.Left)
	}
	right, ok := top.Right.(*ast.Binary)
	if !ok || right.Op != token.CONCAT {
		t.Fatalf("Right = %#v, want a nested CONCAT", top.Right)
	}
}

func TestUnaryMinusBindsLooserThanCaret(t *testing.T) {
	// -2^2 parses as -(2^2), matching Lua's -4 result for this expression.
	block := parseSrc(t, "local x = -2^2")
	loc := block.Stats[0].(*ast.LocalVars)
	un, ok := loc.Values[0].(*ast.Unary)
	if !ok || un.Op != token.MINUS {
		t.Fatalf("top = %#v, want Unary MINUS", loc.Values[0])
	}
	if _, ok := un.Operand.(*ast.Binary); !ok {
		t.Errorf("Operand = %#v, want Binary ^", un.Operand)
	}
}

func TestCaretIsRightAssociative(t *testing.T) {
	// 2^2^3 parses as 2^(2^3).
	block := parseSrc(t, "local x = 2^2^3")
	loc := block.Stats[0].(*ast.LocalVars)
	top := loc.Values[0].(*ast.Binary)
	if top.Op != token.CARET {
		t.Fatalf("top.Op = %v, want CARET", top.Op)
	}
	if _, ok := top.Right.(*ast.Binary); !ok {
		t.Errorf("Right = %#v, want a nested CARET", top.Right)
	}
}

func TestPrefixExprSuffixChain(t *testing.T) {
	block := parseSrc(t, "local x = a.b[1]:c().d")
	loc := block.Stats[0].(*ast.LocalVars)
	field, ok := loc.Values[0].(*ast.FieldExpr)
	if !ok || field.Name != "d" {
		t.Fatalf("top = %#v, want FieldExpr{Name: d}", loc.Values[0])
	}
	method, ok := field.Target.(*ast.MethodCall)
	if !ok || method.Method != "c" {
		t.Fatalf("field.Target = %#v, want MethodCall{Method: c}", field.Target)
	}
	idx, ok := method.Target.(*ast.Index)
	if !ok {
		t.Fatalf("method.Target = %#v, want *ast.Index", method.Target)
	}
	if _, ok := idx.Target.(*ast.FieldExpr); !ok {
		t.Errorf("idx.Target = %#v, want *ast.FieldExpr", idx.Target)
	}
}

func TestTableConstructorMixedFields(t *testing.T) {
	block := parseSrc(t, `local t = {1, 2, x = 3, [4+1] = 5}`)
	loc := block.Stats[0].(*ast.LocalVars)
	table, ok := loc.Values[0].(*ast.Table)
	if !ok {
		t.Fatalf("Values[0] = %T, want *ast.Table", loc.Values[0])
	}
	if len(table.Fields) != 4 {
		t.Fatalf("got %d fields, want 4", len(table.Fields))
	}
	if table.Fields[0].Name != "" || table.Fields[0].Key != nil {
		t.Errorf("Fields[0] = %+v, want a plain positional field", table.Fields[0])
	}
	if table.Fields[2].Name != "x" {
		t.Errorf("Fields[2].Name = %q, want %q", table.Fields[2].Name, "x")
	}
	if table.Fields[3].Key == nil {
		t.Error("Fields[3].Key is nil, want the computed key expression")
	}
}

func TestTableConstructorDisambiguatesNamedFromPositional(t *testing.T) {
	// `x` alone (no `=` following) is a positional field referencing
	// the variable x, not a named field.
	block := parseSrc(t, "local t = {x}")
	loc := block.Stats[0].(*ast.LocalVars)
	table := loc.Values[0].(*ast.Table)
	if table.Fields[0].Name != "" {
		t.Errorf("Name = %q, want empty (positional)", table.Fields[0].Name)
	}
	if _, ok := table.Fields[0].Value.(*ast.Name); !ok {
		t.Errorf("Value = %#v, want *ast.Name", table.Fields[0].Value)
	}
}

func TestFunctionLiteralExpression(t *testing.T) {
	block := parseSrc(t, "local f = function(a, b) return a + b end")
	loc := block.Stats[0].(*ast.LocalVars)
	thunk, ok := loc.Values[0].(*ast.FunctionThunk)
	if !ok {
		t.Fatalf("Values[0] = %T, want *ast.FunctionThunk", loc.Values[0])
	}
	if len(thunk.Params) != 2 {
		t.Errorf("Params = %v", thunk.Params)
	}
	if _, ok := thunk.Body.Last.(*ast.Return); !ok {
		t.Errorf("Body.Last = %#v, want *ast.Return", thunk.Body.Last)
	}
}

func TestNestedExprTruncatesButParses(t *testing.T) {
	block := parseSrc(t, "local x = (f())")
	loc := block.Stats[0].(*ast.LocalVars)
	nested, ok := loc.Values[0].(*ast.NestedExpr)
	if !ok {
		t.Fatalf("Values[0] = %T, want *ast.NestedExpr", loc.Values[0])
	}
	if _, ok := nested.Inner.(*ast.FunctionCallExpr); !ok {
		t.Errorf("Inner = %#v, want *ast.FunctionCallExpr", nested.Inner)
	}
}

func TestVarargsExpression(t *testing.T) {
	block := parseSrc(t, "local function f(...) return ... end")
	lf := block.Stats[0].(*ast.LocalFunction)
	ret := lf.Thunk.Body.Last.(*ast.Return)
	if _, ok := ret.Values[0].(*ast.Varargs); !ok {
		t.Errorf("Values[0] = %#v, want *ast.Varargs", ret.Values[0])
	}
}

func TestMalformedExpressionIsError(t *testing.T) {
	_, err := Parse(bytes.NewReader([]byte("local x = ")))
	var perr *Error
	if !errors.As(err, &perr) {
		t.Fatalf("Parse error = %v; want *Error", err)
	}
	if !perr.AtEOF {
		t.Errorf("AtEOF = false, want true")
	}
}

func TestScannerErrorPropagatesThroughParser(t *testing.T) {
	_, err := Parse(bytes.NewReader([]byte("local x = @")))
	if err == nil {
		t.Fatal("Parse succeeded, want an error")
	}
}

func TestDeeplyNestedExpressionFailsWithError(t *testing.T) {
	src := "local x = " + bytesRepeat("(", maxDepth+10) + "1" + bytesRepeat(")", maxDepth+10)
	_, err := Parse(bytes.NewReader([]byte(src)))
	var perr *Error
	if !errors.As(err, &perr) {
		t.Fatalf("Parse error = %v; want *Error (nesting limit)", err)
	}
}

func bytesRepeat(s string, n int) string {
	b := make([]byte, 0, len(s)*n)
	for range n {
		b = append(b, s...)
	}
	return string(b)
}
