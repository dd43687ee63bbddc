package ast

import "github.com/aicheye/crustty/internal/value"

// Expr is the tagged union of expressions.
type Expr interface {
	exprNode()
	Location() Loc
}

// IntLit is an integer literal.
type IntLit struct {
	Value int64
	Loc   Loc
}

// CharLit is a character literal.
type CharLit struct {
	Value int8
	Loc   Loc
}

// StringLit is a string literal; the engine materialises it as a fresh heap
// allocation every time it is evaluated.
type StringLit struct {
	Value string
	Loc   Loc
}

// NullLit is the NULL literal.
type NullLit struct{ Loc Loc }

// Ident is a reference to a local variable or parameter by name.
type Ident struct {
	Name string
	Loc  Loc
}

// UnaryOp enumerates prefix/postfix unary operators.
type UnaryOp int

const (
	Neg       UnaryOp = iota // -x
	Not                      // !x
	BitNot                   // ~x
	PreIncr                  // ++x
	PreDecr                  // --x
	PostIncr                 // x++
	PostDecr                 // x--
)

// Unary is a unary operator applied to Operand.
type Unary struct {
	Op      UnaryOp
	Operand Expr
	Loc     Loc
}

// BinaryOp enumerates binary operators, including the short-circuit
// logical operators (evaluated specially by the engine, never via a
// generic "evaluate both sides" path).
type BinaryOp int

const (
	Add BinaryOp = iota
	Sub
	Mul
	Div
	Mod
	Eq
	Ne
	Lt
	Le
	Gt
	Ge
	LogAnd // &&, short-circuit
	LogOr  // ||, short-circuit
	BitAnd
	BitOr
	BitXor
	Shl
	Shr
)

// Binary is a binary operator applied left-to-right to Left, Right.
type Binary struct {
	Op    BinaryOp
	Left  Expr
	Right Expr
	Loc   Loc
}

// Assign is a plain "lhs = rhs" assignment expression.
type Assign struct {
	Target Expr
	Value  Expr
	Loc    Loc
}

// CompoundAssignOp enumerates read-modify-write assignment operators.
type CompoundAssignOp int

const (
	AddAssign CompoundAssignOp = iota
	SubAssign
	MulAssign
	DivAssign
	ModAssign
	AndAssign
	OrAssign
	XorAssign
	ShlAssign
	ShrAssign
)

// CompoundAssign is a "lhs OP= rhs" expression; the target lvalue is
// resolved exactly once.
type CompoundAssign struct {
	Op     CompoundAssignOp
	Target Expr
	Value  Expr
	Loc    Loc
}

// Ternary is "cond ? then : else"; only the selected arm is evaluated.
type Ternary struct {
	Cond Expr
	Then Expr
	Else Expr
	Loc  Loc
}

// Call is a function call, either to a user-defined FuncDef or to one of
// the fixed built-ins (malloc, free, sizeof, printf, scanf).
type Call struct {
	Callee string
	Args   []Expr
	Loc    Loc
}

// Index is "base[idx]", equivalent to *(base + idx).
type Index struct {
	Base  Expr
	Index Expr
	Loc   Loc
}

// Field is "base.field" (Arrow == false) or "base->field" (Arrow == true).
type Field struct {
	Base  Expr
	Name  string
	Arrow bool
	Loc   Loc
}

// Deref is "*expr".
type Deref struct {
	Operand Expr
	Loc     Loc
}

// AddrOf is "&expr".
type AddrOf struct {
	Operand Expr
	Loc     Loc
}

// Cast is "(type)expr".
type Cast struct {
	Type    value.Type
	Operand Expr
	Loc     Loc
}

// SizeofExpr is "sizeof(expr)", evaluated from the expression's static type
// without evaluating the expression for side effects.
type SizeofExpr struct {
	Operand Expr
	Loc     Loc
}

// SizeofType is "sizeof(type)".
type SizeofType struct {
	Type value.Type
	Loc  Loc
}

func (*IntLit) exprNode()         {}
func (*CharLit) exprNode()        {}
func (*StringLit) exprNode()      {}
func (*NullLit) exprNode()        {}
func (*Ident) exprNode()          {}
func (*Unary) exprNode()          {}
func (*Binary) exprNode()         {}
func (*Assign) exprNode()         {}
func (*CompoundAssign) exprNode() {}
func (*Ternary) exprNode()        {}
func (*Call) exprNode()           {}
func (*Index) exprNode()          {}
func (*Field) exprNode()          {}
func (*Deref) exprNode()          {}
func (*AddrOf) exprNode()         {}
func (*Cast) exprNode()           {}
func (*SizeofExpr) exprNode()     {}
func (*SizeofType) exprNode()     {}

func (e *IntLit) Location() Loc         { return e.Loc }
func (e *CharLit) Location() Loc        { return e.Loc }
func (e *StringLit) Location() Loc      { return e.Loc }
func (e *NullLit) Location() Loc        { return e.Loc }
func (e *Ident) Location() Loc          { return e.Loc }
func (e *Unary) Location() Loc          { return e.Loc }
func (e *Binary) Location() Loc         { return e.Loc }
func (e *Assign) Location() Loc         { return e.Loc }
func (e *CompoundAssign) Location() Loc { return e.Loc }
func (e *Ternary) Location() Loc        { return e.Loc }
func (e *Call) Location() Loc           { return e.Loc }
func (e *Index) Location() Loc          { return e.Loc }
func (e *Field) Location() Loc          { return e.Loc }
func (e *Deref) Location() Loc          { return e.Loc }
func (e *AddrOf) Location() Loc         { return e.Loc }
func (e *Cast) Location() Loc           { return e.Loc }
func (e *SizeofExpr) Location() Loc     { return e.Loc }
func (e *SizeofType) Location() Loc     { return e.Loc }
