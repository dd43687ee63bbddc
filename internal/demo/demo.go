// Package demo holds a small registry of hand-built ast.Program values the
// crustty command drives the engine against. Building programs directly as
// Go literals plays the role a real C lexer/parser would otherwise play —
// parsing .c source is out of scope for this repository (see ast.Program's
// doc comment), so cmd/crustty only ever loads a program by name from here.
package demo

import "github.com/aicheye/crustty/internal/ast"
import "github.com/aicheye/crustty/internal/value"

// Program is one named, runnable demo.
type Program struct {
	Name        string
	Description string
	Build       func() *ast.Program
}

var registry = []Program{
	{Name: "fib", Description: "recursive fibonacci with a malloc'd memo table, freed cleanly", Build: fibProgram},
	{Name: "double-free", Description: "frees the same heap block twice", Build: doubleFreeProgram},
	{Name: "use-after-free", Description: "dereferences a pointer after its block is freed", Build: useAfterFreeProgram},
	{Name: "null-deref", Description: "dereferences a NULL pointer", Build: nullDerefProgram},
	{Name: "uninitialised-read", Description: "reads a declared-but-never-assigned local", Build: uninitReadProgram},
	{Name: "overflow", Description: "adds 1 to INT_MAX", Build: overflowProgram},
}

// All returns every registered demo, in a stable, display order.
func All() []Program { return registry }

// Lookup finds a demo by name.
func Lookup(name string) (Program, bool) {
	for _, p := range registry {
		if p.Name == name {
			return p, true
		}
	}
	return Program{}, false
}

// --- AST builder helpers, mirroring the shape a real parser would emit. ---

func id(name string) *ast.Ident      { return &ast.Ident{Name: name} }
func intLit(n int64) *ast.IntLit     { return &ast.IntLit{Value: n} }
func strLit(s string) *ast.StringLit { return &ast.StringLit{Value: s} }

func call(callee string, args ...ast.Expr) *ast.Call {
	return &ast.Call{Callee: callee, Args: args}
}

func bin(op ast.BinaryOp, l, r ast.Expr) *ast.Binary { return &ast.Binary{Op: op, Left: l, Right: r} }
func assign(target, val ast.Expr) *ast.Assign        { return &ast.Assign{Target: target, Value: val} }
func exprStmt(e ast.Expr) *ast.ExprStmt               { return &ast.ExprStmt{Expr: e} }

func decl(name string, t value.Type, init ast.Expr) *ast.DeclStmt {
	return &ast.DeclStmt{Name: name, Type: t, Init: init}
}

func block(stmts ...ast.Stmt) *ast.Block { return &ast.Block{Stmts: stmts} }

func ifStmt(cond ast.Expr, then, els ast.Stmt) *ast.If {
	return &ast.If{Cond: cond, Then: then, Else: els}
}

func whileStmt(cond ast.Expr, body ast.Stmt) *ast.While { return &ast.While{Cond: cond, Body: body} }
func retExpr(e ast.Expr) *ast.Return                     { return &ast.Return{Expr: e} }
func deref(e ast.Expr) *ast.Deref                        { return &ast.Deref{Operand: e} }
func index(base, idx ast.Expr) *ast.Index                { return &ast.Index{Base: base, Index: idx} }
func cast(t value.Type, e ast.Expr) *ast.Cast            { return &ast.Cast{Type: t, Operand: e} }

func fn(name string, params []ast.Param, ret value.Type, body ...ast.Stmt) *ast.FuncDef {
	return &ast.FuncDef{Name: name, Params: params, ReturnType: ret, Body: body}
}

func prog(funcs ...*ast.FuncDef) *ast.Program { return &ast.Program{Funcs: funcs} }

// fibProgram computes fib(0..20) through a memoised recursive fib, printing
// one line per call and freeing its memo table before returning.
func fibProgram() *ast.Program {
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

func nullDerefProgram() *ast.Program {
	mainBody := []ast.Stmt{
		decl("p", value.PointerType(value.TypeInt), &ast.NullLit{}),
		decl("x", value.TypeInt, deref(id("p"))),
		retExpr(intLit(0)),
	}
	return prog(fn("main", nil, value.TypeInt, mainBody...))
}

func uninitReadProgram() *ast.Program {
	mainBody := []ast.Stmt{
		decl("x", value.TypeInt, nil),
		decl("y", value.TypeInt, bin(ast.Add, id("x"), intLit(1))),
		retExpr(intLit(0)),
	}
	return prog(fn("main", nil, value.TypeInt, mainBody...))
}

func overflowProgram() *ast.Program {
	mainBody := []ast.Stmt{
		decl("x", value.TypeInt, intLit(2147483647)),
		exprStmt(assign(id("x"), bin(ast.Add, id("x"), intLit(1)))),
		retExpr(intLit(0)),
	}
	return prog(fn("main", nil, value.TypeInt, mainBody...))
}
