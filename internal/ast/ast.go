// Package ast defines the program representation the (external) lexer and
// parser are expected to hand the engine: struct/function definitions,
// statements, and expressions, each carrying a source Loc for diagnostics
// and for attributing terminal output to the statement that produced it.
//
// Building one of these by hand (as the tests in internal/engine do) plays
// the role a real parser would otherwise play — lexing and parsing
// themselves are out of scope for this repository.
package ast

import "github.com/aicheye/crustty/internal/value"

// Loc is a source location: a line/column pair relative to the program's
// single input file.
type Loc struct {
	Line int
	Col  int
}

// Program is the parsed translation unit: struct definitions plus function
// definitions, one of which must be named "main".
type Program struct {
	Structs []value.StructDef
	Funcs   []*FuncDef
}

// FuncDef returns the function named name, or nil.
func (p *Program) FuncDef(name string) *FuncDef {
	for _, f := range p.Funcs {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// Main returns the program's entry point, or nil if none is defined.
func (p *Program) Main() *FuncDef {
	return p.FuncDef("main")
}

// Param is one function parameter.
type Param struct {
	Name string
	Type value.Type
}

// FuncDef is a user-defined function: name, parameters, return type, and
// body. User functions are never variadic and never function pointers
// (Non-goals), so this is the complete shape.
type FuncDef struct {
	Name       string
	Params     []Param
	ReturnType value.Type
	Body       []Stmt
	Loc        Loc
}
