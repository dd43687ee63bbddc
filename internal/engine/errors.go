package engine

import (
	"github.com/aicheye/crustty/internal/ast"
	"github.com/aicheye/crustty/internal/engerr"
)

// Loc is an alias onto ast.Loc, so the engine's internal error helpers
// take the same source-location shape every Stmt/Expr node already
// carries, with no conversion at the call site.
type Loc = ast.Loc

// Kind and RuntimeError are the engine's error taxonomy. They are aliases
// onto internal/engerr rather than a second definition, since
// internal/stack and internal/heap already return *engerr.RuntimeError
// directly and the engine must never re-wrap one into a guessed Kind —
// every *RuntimeError the engine surfaces, whether raised by the engine
// itself or bubbled up from stack/heap, is the same concrete type.
type Kind = engerr.Kind
type RuntimeError = engerr.RuntimeError

// Error kind constants, re-exported for callers that only import
// internal/engine and shouldn't need to know engerr exists.
const (
	UninitialisedRead     = engerr.UninitialisedRead
	NullDereference       = engerr.NullDereference
	UseAfterFree          = engerr.UseAfterFree
	DoubleFree            = engerr.DoubleFree
	InvalidFree           = engerr.InvalidFree
	InvalidMemoryAccess   = engerr.InvalidMemoryAccess
	BufferOverrun         = engerr.BufferOverrun
	IntegerOverflow       = engerr.IntegerOverflow
	DivisionByZero        = engerr.DivisionByZero
	ConstModification     = engerr.ConstModification
	StackOverflow         = engerr.StackOverflow
	SnapshotLimitExceeded = engerr.SnapshotLimitExceeded
	TypeError             = engerr.TypeError
	UndefinedBehaviour    = engerr.UndefinedBehaviour
	FunctionNotFound      = engerr.FunctionNotFound
	UndeclaredIdentifier  = engerr.UndeclaredIdentifier
	UnknownFormatSpec     = engerr.UnknownFormatSpecifier
	Cancelled             = engerr.Cancelled
	AtBeginning           = engerr.AtBeginning
	OutOfMemory           = engerr.OutOfMemory
)

func newErr(loc Loc, kind Kind, format string, args ...any) *RuntimeError {
	e := engerr.New(kind, sprintf(format, args...))
	return e.Wrap(engerr.Loc{Line: loc.Line, Col: loc.Col}, nil)
}

func withName(loc Loc, kind Kind, name string) *RuntimeError {
	e := engerr.WithName(kind, name)
	return e.Wrap(engerr.Loc{Line: loc.Line, Col: loc.Col}, nil)
}

func withAddr(loc Loc, kind Kind, addr uint64) *RuntimeError {
	e := engerr.WithAddr(kind, addr)
	return e.Wrap(engerr.Loc{Line: loc.Line, Col: loc.Col}, nil)
}

// atLoc attaches loc to an error raised by a lower layer (stack/heap/value)
// that doesn't know about source locations, preserving its Kind/Addr/Name.
func atLoc(loc Loc, err error) error {
	if err == nil {
		return nil
	}
	var re *RuntimeError
	if ok := asRuntimeError(err, &re); ok {
		cp := *re
		cp.Loc = engerr.Loc{Line: loc.Line, Col: loc.Col}
		return &cp
	}
	return err
}
