package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/aicheye/crustty/internal/ast"
	"github.com/aicheye/crustty/internal/config"
	"github.com/aicheye/crustty/internal/engerr"
	"github.com/aicheye/crustty/internal/value"
)

// --- small AST builder helpers, playing the role of a parser front-end,
// per ast.go's doc comment that tests build programs by hand. ---

func loc(line int) ast.Loc { return ast.Loc{Line: line} }

func id(name string) *ast.Ident { return &ast.Ident{Name: name} }
func intLit(n int64) *ast.IntLit { return &ast.IntLit{Value: n} }
func strLit(s string) *ast.StringLit { return &ast.StringLit{Value: s} }

func call(callee string, args ...ast.Expr) *ast.Call {
	return &ast.Call{Callee: callee, Args: args}
}

func bin(op ast.BinaryOp, l, r ast.Expr) *ast.Binary {
	return &ast.Binary{Op: op, Left: l, Right: r}
}

func assign(target, val ast.Expr) *ast.Assign {
	return &ast.Assign{Target: target, Value: val}
}

func exprStmt(e ast.Expr) *ast.ExprStmt { return &ast.ExprStmt{Expr: e} }

func decl(name string, t value.Type, init ast.Expr) *ast.DeclStmt {
	return &ast.DeclStmt{Name: name, Type: t, Init: init}
}

func block(stmts ...ast.Stmt) *ast.Block { return &ast.Block{Stmts: stmts} }

func ifStmt(cond ast.Expr, then, els ast.Stmt) *ast.If {
	return &ast.If{Cond: cond, Then: then, Else: els}
}

func whileStmt(cond ast.Expr, body ast.Stmt) *ast.While {
	return &ast.While{Cond: cond, Body: body}
}

func retExpr(e ast.Expr) *ast.Return { return &ast.Return{Expr: e} }

func deref(e ast.Expr) *ast.Deref { return &ast.Deref{Operand: e} }
func index(base, idx ast.Expr) *ast.Index { return &ast.Index{Base: base, Index: idx} }
func cast(t value.Type, e ast.Expr) *ast.Cast { return &ast.Cast{Type: t, Operand: e} }

func fn(name string, params []ast.Param, ret value.Type, body ...ast.Stmt) *ast.FuncDef {
	return &ast.FuncDef{Name: name, Params: params, ReturnType: ret, Body: body}
}

func prog(funcs ...*ast.FuncDef) *ast.Program { return &ast.Program{Funcs: funcs} }

func testCfg() config.Config {
	cfg := config.Default()
	cfg.MaxCallDepth = 200
	return cfg
}

func runToHaltOrFault(t *testing.T, e *Engine) {
	t.Helper()
	if err := e.RunToEnd(context.Background()); err != nil {
		// A Faulted run_to_end also returns the fault error; scenario tests
		// that expect a fault check e.Faulted() themselves afterward, so a
		// returned error here is not itself a test failure.
		return
	}
}

func expectKind(t *testing.T, err error, want engerr.Kind) {
	t.Helper()
	var re *engerr.RuntimeError
	if !errors.As(err, &re) {
		t.Fatalf("expected a *RuntimeError, got %v (%T)", err, err)
	}
	if re.Kind != want {
		t.Fatalf("expected Kind %s, got %s (%v)", want, re.Kind, re)
	}
}

// --- S1: recursive fibonacci with a malloc'd memo table, freed before
// main returns, exercising recursion, arrays-via-pointer, printf's %d, and
// a clean (zero live blocks) heap at halt. ---

func fibProgram() *ast.Program {
	// int fib(int n, int* memo) {
	//     if (n <= 1) { return n; }
	//     if (memo[n] != -1) { return memo[n]; }
	//     int result = fib(n - 1, memo) + fib(n - 2, memo);
	//     memo[n] = result;
	//     return result;
	// }
	fibBody := []ast.Stmt{
		ifStmt(bin(ast.Le, id("n"), intLit(1)), block(retExpr(id("n"))), nil),
		ifStmt(bin(ast.Ne, index(id("memo"), id("n")), intLit(-1)),
			block(retExpr(index(id("memo"), id("n")))), nil),
		decl("result", value.TypeInt, bin(ast.Add,
			call("fib", bin(ast.Sub, id("n"), intLit(1)), id("memo")),
			call("fib", bin(ast.Sub, id("n"), intLit(2)), id("memo")),
		)),
		exprStmt(assign(index(id("memo"), id("n")), id("result"))),
		retExpr(id("result")),
	}
	fibFn := fn("fib", []ast.Param{
		{Name: "n", Type: value.TypeInt},
		{Name: "memo", Type: value.PointerType(value.TypeInt)},
	}, value.TypeInt, fibBody...)

	// int main() {
	//     int* memo = (int*)malloc(21 * sizeof(int));
	//     int i = 0;
	//     while (i <= 20) { memo[i] = -1; i = i + 1; }
	//     i = 0;
	//     while (i <= 20) {
	//         printf("fib(%d) = %d\n", i, fib(i, memo));
	//         i = i + 1;
	//     }
	//     free(memo);
	//     return 0;
	// }
	mainBody := []ast.Stmt{
		decl("memo", value.PointerType(value.TypeInt),
			cast(value.PointerType(value.TypeInt),
				call("malloc", bin(ast.Mul, intLit(21), &ast.SizeofType{Type: value.TypeInt})))),
		decl("i", value.TypeInt, intLit(0)),
		whileStmt(bin(ast.Le, id("i"), intLit(20)), block(
			exprStmt(assign(index(id("memo"), id("i")), intLit(-1))),
			exprStmt(assign(id("i"), bin(ast.Add, id("i"), intLit(1)))),
		)),
		exprStmt(assign(id("i"), intLit(0))),
		whileStmt(bin(ast.Le, id("i"), intLit(20)), block(
			exprStmt(call("printf", strLit("fib(%d) = %d\n"), id("i"), call("fib", id("i"), id("memo")))),
			exprStmt(assign(id("i"), bin(ast.Add, id("i"), intLit(1)))),
		)),
		exprStmt(call("free", id("memo"))),
		retExpr(intLit(0)),
	}
	mainFn := fn("main", nil, value.TypeInt, mainBody...)
	return prog(fibFn, mainFn)
}

func TestScenarioFibMemoTerminalOutputAndCleanHeap(t *testing.T) {
	e := New(fibProgram(), testCfg())
	runToHaltOrFault(t, e)
	if e.Faulted() {
		t.Fatalf("unexpected fault: %v", e.lastErr)
	}
	if !e.Halted() {
		t.Fatalf("expected engine to halt")
	}
	want := "fib(0) = 0\nfib(1) = 1\nfib(2) = 1\nfib(3) = 2\nfib(4) = 3\nfib(5) = 5\n" +
		"fib(6) = 8\nfib(7) = 13\nfib(8) = 21\nfib(9) = 34\nfib(10) = 55\n" +
		"fib(11) = 89\nfib(12) = 144\nfib(13) = 233\nfib(14) = 377\nfib(15) = 610\n" +
		"fib(16) = 987\nfib(17) = 1597\nfib(18) = 2584\nfib(19) = 4181\nfib(20) = 6765\n"
	if got := e.Terminal().FullOutput(); got != want {
		t.Fatalf("terminal output mismatch:\n got: %q\nwant: %q", got, want)
	}
	if n := e.Heap().LiveCount(); n != 0 {
		t.Fatalf("expected 0 live blocks after free, got %d", n)
	}
}

// --- S2: double free ---

func doubleFreeProgram() *ast.Program {
	mainBody := []ast.Stmt{
		decl("p", value.PointerType(value.TypeInt),
			cast(value.PointerType(value.TypeInt), call("malloc", &ast.SizeofType{Type: value.TypeInt}))),
		exprStmt(call("free", id("p"))),
		exprStmt(call("free", id("p"))),
		retExpr(intLit(0)),
	}
	return prog(fn("main", nil, value.TypeInt, mainBody...))
}

func TestScenarioDoubleFree(t *testing.T) {
	e := New(doubleFreeProgram(), testCfg())
	err := e.RunToEnd(context.Background())
	if err == nil {
		t.Fatalf("expected a fault")
	}
	expectKind(t, err, DoubleFree)
	if !e.Faulted() {
		t.Fatalf("expected engine to be Faulted")
	}
}

// --- S3: use after free ---

func useAfterFreeProgram() *ast.Program {
	mainBody := []ast.Stmt{
		decl("p", value.PointerType(value.TypeInt),
			cast(value.PointerType(value.TypeInt), call("malloc", &ast.SizeofType{Type: value.TypeInt}))),
		exprStmt(assign(deref(id("p")), intLit(42))),
		exprStmt(call("free", id("p"))),
		decl("x", value.TypeInt, deref(id("p"))),
		retExpr(intLit(0)),
	}
	return prog(fn("main", nil, value.TypeInt, mainBody...))
}

func TestScenarioUseAfterFree(t *testing.T) {
	e := New(useAfterFreeProgram(), testCfg())
	err := e.RunToEnd(context.Background())
	if err == nil {
		t.Fatalf("expected a fault")
	}
	expectKind(t, err, UseAfterFree)
}

// --- S4: null dereference ---

func nullDerefProgram() *ast.Program {
	mainBody := []ast.Stmt{
		decl("p", value.PointerType(value.TypeInt), &ast.NullLit{}),
		decl("x", value.TypeInt, deref(id("p"))),
		retExpr(intLit(0)),
	}
	return prog(fn("main", nil, value.TypeInt, mainBody...))
}

func TestScenarioNullDereference(t *testing.T) {
	e := New(nullDerefProgram(), testCfg())
	err := e.RunToEnd(context.Background())
	if err == nil {
		t.Fatalf("expected a fault")
	}
	expectKind(t, err, NullDereference)
}

// --- S5: uninitialised read ---

func uninitReadProgram() *ast.Program {
	mainBody := []ast.Stmt{
		decl("x", value.TypeInt, nil),
		decl("y", value.TypeInt, bin(ast.Add, id("x"), intLit(1))),
		retExpr(intLit(0)),
	}
	return prog(fn("main", nil, value.TypeInt, mainBody...))
}

func TestScenarioUninitialisedRead(t *testing.T) {
	e := New(uninitReadProgram(), testCfg())
	err := e.RunToEnd(context.Background())
	if err == nil {
		t.Fatalf("expected a fault")
	}
	expectKind(t, err, UninitialisedRead)
}

// --- S6: reverse-and-replay, step-by-step, byte-identical state ---

func countingProgram() *ast.Program {
	mainBody := []ast.Stmt{
		decl("total", value.TypeInt, intLit(0)),
		decl("i", value.TypeInt, intLit(0)),
		whileStmt(bin(ast.Lt, id("i"), intLit(10)), block(
			exprStmt(assign(id("total"), bin(ast.Add, id("total"), id("i")))),
			exprStmt(assign(id("i"), bin(ast.Add, id("i"), intLit(1)))),
		)),
		retExpr(id("total")),
	}
	return prog(fn("main", nil, value.TypeInt, mainBody...))
}

func snapshotFingerprint(t *testing.T, e *Engine) string {
	t.Helper()
	st := e.Stack()
	frame := st.Top()
	var out string
	if frame != nil {
		for _, name := range []string{"total", "i"} {
			if slot, ok := frame.Slot(name); ok {
				out += name + "=" + string(slot.Bytes) + ";"
			}
		}
	}
	out += e.Terminal().FullOutput()
	out += fmt.Sprintf("@%d:%d", e.CurrentLocation().Line, e.CurrentLocation().Col)
	return out
}

func TestScenarioReverseAndReplayByteIdentical(t *testing.T) {
	e := New(countingProgram(), testCfg())
	for i := 0; i < 30; i++ {
		if _, err := e.StepForward(); err != nil {
			t.Fatalf("step_forward %d: %v", i, err)
		}
		if e.Halted() {
			break
		}
	}
	forwardFingerprints := make([]string, 0, 10)
	for i := 0; i < 10; i++ {
		forwardFingerprints = append(forwardFingerprints, snapshotFingerprint(t, e))
		if err := e.StepBackward(); err != nil {
			t.Fatalf("step_backward %d: %v", i, err)
		}
	}
	for i := 9; i >= 0; i-- {
		if _, err := e.StepForward(); err != nil {
			t.Fatalf("replay step_forward %d: %v", i, err)
		}
		got := snapshotFingerprint(t, e)
		want := forwardFingerprints[i]
		if got != want {
			t.Fatalf("replay at depth %d diverged:\n got: %q\nwant: %q", i, got, want)
		}
	}
}

// --- S7: integer overflow ---

func overflowProgram() *ast.Program {
	mainBody := []ast.Stmt{
		decl("x", value.TypeInt, intLit(2147483647)),
		exprStmt(assign(id("x"), bin(ast.Add, id("x"), intLit(1)))),
		retExpr(intLit(0)),
	}
	return prog(fn("main", nil, value.TypeInt, mainBody...))
}

func TestScenarioIntegerOverflow(t *testing.T) {
	e := New(overflowProgram(), testCfg())
	err := e.RunToEnd(context.Background())
	if err == nil {
		t.Fatalf("expected a fault")
	}
	expectKind(t, err, IntegerOverflow)
}

// --- cross-cutting invariant checks ---

func TestInvariantRestartClearsFaultAndReplaysIdentically(t *testing.T) {
	e := New(doubleFreeProgram(), testCfg())
	if err := e.RunToEnd(context.Background()); err == nil {
		t.Fatalf("expected the first run to fault")
	}
	if !e.Faulted() {
		t.Fatalf("expected Faulted after double free")
	}
	e.Restart()
	if e.Faulted() {
		t.Fatalf("expected Restart to clear Faulted")
	}
	if err := e.RunToEnd(context.Background()); err == nil {
		t.Fatalf("expected the replayed run to fault identically")
	}
	expectKind(t, e.lastErr, DoubleFree)
}

func TestInvariantStepForwardRefusedWhileFaulted(t *testing.T) {
	e := New(nullDerefProgram(), testCfg())
	_ = e.RunToEnd(context.Background())
	if !e.Faulted() {
		t.Fatalf("expected Faulted")
	}
	if _, err := e.StepForward(); err == nil {
		t.Fatalf("expected step_forward to be refused while Faulted")
	}
	// step_backward must still be permitted while Faulted, and must not
	// itself clear the fault.
	if err := e.StepBackward(); err != nil {
		t.Fatalf("step_backward while Faulted: %v", err)
	}
	if !e.Faulted() {
		t.Fatalf("expected step_backward to leave Faulted set")
	}
}

func TestInvariantStepBackwardAtBeginningReportsAtBeginning(t *testing.T) {
	e := New(countingProgram(), testCfg())
	err := e.StepBackward()
	expectKind(t, err, AtBeginning)
}

func TestInvariantDisjointAddressSpaces(t *testing.T) {
	e := New(fibProgram(), testCfg())
	for i := 0; i < 5; i++ {
		if _, err := e.StepForward(); err != nil {
			t.Fatalf("step_forward %d: %v", i, err)
		}
	}
	frame := e.Stack().Top()
	if frame == nil {
		t.Fatalf("expected an active frame")
	}
	for _, b := range e.Heap().Blocks() {
		if slot, ok := frame.Slot("memo"); ok {
			if b.Addr >= slot.Addr && b.Addr < slot.Addr+uint64(len(slot.Bytes)) {
				t.Fatalf("heap block address 0x%x overlaps stack slot range", b.Addr)
			}
		}
	}
}
