package engine

import (
	"strconv"
	"strings"

	"github.com/aicheye/crustty/internal/ast"
	"github.com/aicheye/crustty/internal/value"
)

// builtinFunc is a fixed built-in's implementation: given the already-AST
// call expression (so it can inspect raw argument expressions, needed for
// scanf's by-reference parameters) it evaluates its own arguments and
// returns the call's result value. sizeof is deliberately not a builtinFunc
// — the parser represents it as dedicated ast.SizeofExpr/ast.SizeofType
// nodes evaluated directly in evalExpr, since unlike malloc/free/printf/
// scanf it needs a static type, not a runtime argument list.
type builtinFunc func(x *exec, call *ast.Call) (value.Value, error)

// registerBuiltins populates e.builtins once at construction, mirroring
// the teacher's stubs.Registry self-registration pattern but scoped to a
// single Engine instance rather than a package-level global — two Engines
// in the same process must never share mutable dispatch state.
func (e *Engine) registerBuiltins() {
	e.builtins = map[string]builtinFunc{
		"malloc": builtinMalloc,
		"free":   builtinFree,
		"printf": builtinPrintf,
		"scanf":  builtinScanf,
	}
}

func builtinMalloc(x *exec, call *ast.Call) (value.Value, error) {
	if len(call.Args) != 1 {
		return value.Value{}, newErr(call.Loc, TypeError, "malloc expects 1 argument, got %d", len(call.Args))
	}
	n, err := x.evalExpr(call.Args[0])
	if err != nil {
		return value.Value{}, err
	}
	size, ok := intLike(n)
	if !ok || size < 0 {
		return value.Value{}, newErr(call.Loc, TypeError, "malloc size must be a non-negative int")
	}
	addr, err := x.heap.Alloc(uint64(size))
	if err != nil {
		return value.Value{}, atLoc(call.Loc, err)
	}
	x.log.Alloc(x.id, addr, uint64(size))
	return value.MakePointer(addr, value.TypeVoid), nil
}

func builtinFree(x *exec, call *ast.Call) (value.Value, error) {
	if len(call.Args) != 1 {
		return value.Value{}, newErr(call.Loc, TypeError, "free expects 1 argument, got %d", len(call.Args))
	}
	p, err := x.evalExpr(call.Args[0])
	if err != nil {
		return value.Value{}, err
	}
	addr, ok := p.Address()
	if !ok {
		return value.Value{}, newErr(call.Loc, TypeError, "free expects a pointer argument")
	}
	if addr == 0 {
		return value.Value{}, nil // free(NULL) is a no-op
	}
	if err := x.heap.Free(addr); err != nil {
		return value.Value{}, atLoc(call.Loc, err)
	}
	x.log.Free(x.id, addr)
	return value.Value{}, nil
}

// readCString reads bytes starting at addr through readAddr (so it works
// uniformly whether the string lives on the stack or the heap) until a NUL
// byte, without ever reading past one byte beyond what's been written.
func (x *exec) readCString(addr uint64, loc Loc) (string, error) {
	var b strings.Builder
	for {
		v, err := x.readAddr(addr, value.TypeChar)
		if err != nil {
			return "", atLoc(loc, err)
		}
		c := byte(v.C)
		if c == 0 {
			return b.String(), nil
		}
		b.WriteByte(c)
		addr++
	}
}

func builtinPrintf(x *exec, call *ast.Call) (value.Value, error) {
	if len(call.Args) < 1 {
		return value.Value{}, newErr(call.Loc, TypeError, "printf expects at least a format string")
	}
	fmtPtr, err := x.evalExpr(call.Args[0])
	if err != nil {
		return value.Value{}, err
	}
	fmtAddr, ok := fmtPtr.Address()
	if !ok {
		return value.Value{}, newErr(call.Loc, TypeError, "printf's first argument must be a char*")
	}
	format, err := x.readCString(fmtAddr, call.Loc)
	if err != nil {
		return value.Value{}, err
	}

	var out strings.Builder
	argi := 1
	for i := 0; i < len(format); i++ {
		c := format[i]
		if c != '%' {
			out.WriteByte(c)
			continue
		}
		i++
		if i >= len(format) {
			return value.Value{}, newErr(call.Loc, UnknownFormatSpec, "printf: trailing %% in format string")
		}
		spec := format[i]
		if spec == '%' {
			out.WriteByte('%')
			continue
		}
		if argi >= len(call.Args) {
			return value.Value{}, newErr(call.Loc, TypeError, "printf: too few arguments for format string")
		}
		av, err := x.evalExpr(call.Args[argi])
		if err != nil {
			return value.Value{}, err
		}
		argi++
		switch spec {
		case 'd':
			iv, ok := intLike(av)
			if !ok {
				return value.Value{}, newErr(call.Loc, TypeError, "printf %%d expects an int/char argument")
			}
			out.WriteString(strconv.FormatInt(iv, 10))
		case 'u':
			iv, ok := intLike(av)
			if !ok {
				return value.Value{}, newErr(call.Loc, TypeError, "printf %%u expects an int/char argument")
			}
			out.WriteString(strconv.FormatUint(uint64(uint32(iv)), 10))
		case 'x':
			iv, ok := intLike(av)
			if !ok {
				return value.Value{}, newErr(call.Loc, TypeError, "printf %%x expects an int/char argument")
			}
			out.WriteString(strconv.FormatUint(uint64(uint32(iv)), 16))
		case 'c':
			iv, ok := intLike(av)
			if !ok {
				return value.Value{}, newErr(call.Loc, TypeError, "printf %%c expects an int/char argument")
			}
			out.WriteByte(byte(iv))
		case 's':
			addr, ok := av.Address()
			if !ok {
				return value.Value{}, newErr(call.Loc, TypeError, "printf %%s expects a char* argument")
			}
			s, err := x.readCString(addr, call.Loc)
			if err != nil {
				return value.Value{}, err
			}
			out.WriteString(s)
		default:
			return value.Value{}, newErr(call.Loc, UnknownFormatSpec, "printf: unrecognised specifier %%%c", spec)
		}
	}

	text := out.String()
	x.term.Write(text, x.store.Position()+1)
	return value.MakeInt(int64(len(text))), nil
}

func builtinScanf(x *exec, call *ast.Call) (value.Value, error) {
	if len(call.Args) < 1 {
		return value.Value{}, newErr(call.Loc, TypeError, "scanf expects at least a format string")
	}
	fmtPtr, err := x.evalExpr(call.Args[0])
	if err != nil {
		return value.Value{}, err
	}
	fmtAddr, ok := fmtPtr.Address()
	if !ok {
		return value.Value{}, newErr(call.Loc, TypeError, "scanf's first argument must be a char*")
	}
	format, err := x.readCString(fmtAddr, call.Loc)
	if err != nil {
		return value.Value{}, err
	}

	x.term.Prompt("", x.store.Position()+1)

	argi := 1
	assigned := 0
	var echoed []string
	for i := 0; i < len(format); i++ {
		if format[i] != '%' || i+1 >= len(format) {
			continue
		}
		i++
		spec := format[i]
		if spec == '%' {
			continue
		}
		if argi >= len(call.Args) {
			return value.Value{}, newErr(call.Loc, TypeError, "scanf: too few pointer arguments for format string")
		}
		destLv, err := x.resolveLvalue(call.Args[argi])
		if err != nil {
			return value.Value{}, err
		}
		argi++

		tok, err := x.term.NextToken()
		if err != nil {
			return value.Value{}, atLoc(call.Loc, err)
		}
		echoed = append(echoed, tok)

		switch spec {
		case 'd':
			n, convErr := strconv.ParseInt(tok, 10, 64)
			if convErr != nil {
				return value.Value{}, newErr(call.Loc, TypeError, "scanf: %q is not a valid int for %%d", tok)
			}
			if err := x.writeLv(destLv, value.MakeInt(n), call.Loc); err != nil {
				return value.Value{}, err
			}
		case 'c':
			if len(tok) == 0 {
				return value.Value{}, newErr(call.Loc, TypeError, "scanf: empty token for %%c")
			}
			if err := x.writeLv(destLv, value.MakeChar(int8(tok[0])), call.Loc); err != nil {
				return value.Value{}, err
			}
		case 's':
			destAddr, ok := destLv.address()
			if !ok {
				return value.Value{}, newErr(call.Loc, TypeError, "scanf: %%s destination is not addressable")
			}
			if err := x.writeCString(destAddr, tok, call.Loc); err != nil {
				return value.Value{}, err
			}
		default:
			return value.Value{}, newErr(call.Loc, UnknownFormatSpec, "scanf: unrecognised specifier %%%c", spec)
		}
		assigned++
	}

	x.term.Echo(strings.Join(echoed, " "), x.store.Position()+1)
	return value.MakeInt(int64(assigned)), nil
}

// writeCString writes s followed by a NUL terminator starting at addr,
// through the same region-dispatching writeAddr every other write uses —
// the caller is trusted to have supplied a buffer large enough, matching
// real scanf's buffer-overflow-prone %s.
func (x *exec) writeCString(addr uint64, s string, loc Loc) error {
	for i := 0; i < len(s); i++ {
		if err := x.writeAddr(addr+uint64(i), value.TypeChar, value.MakeChar(int8(s[i]))); err != nil {
			return atLoc(loc, err)
		}
	}
	return atLoc(loc, x.writeAddr(addr+uint64(len(s)), value.TypeChar, value.MakeChar(0)))
}
