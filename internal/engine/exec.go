package engine

import (
	"github.com/aicheye/crustty/internal/ast"
	"github.com/aicheye/crustty/internal/memlayout"
	"github.com/aicheye/crustty/internal/stack"
	"github.com/aicheye/crustty/internal/value"
)

// exec is one interpreter goroutine's working context: the Engine it
// mutates, plus the generation's coroutine-control channels. It is never
// retained across a generation boundary — callFunction recurses by
// passing x itself down, never by reading e.rc afresh, so an exec always
// belongs to exactly the generation that created it.
type exec struct {
	*Engine
	rc *runCtx
}

// lvalue is the resolved target of an assignment: an address plus the
// static type stored there. constName is set only when this lvalue came
// directly from a bare identifier (as opposed to a dereference, index, or
// field access), since const-ness is a property of the named declaration,
// not of arbitrary address-based access through an aliasing pointer.
type lvalue struct {
	addr      uint64
	typ       value.Type
	constName string
}

func (lv lvalue) address() (uint64, bool) { return lv.addr, true }

// intLike extracts an int64 from an Int or Char value, promoting Char to
// Int per the engine's char-promotion rule, or reports false for anything
// else (pointers, structs, uninitialised).
func intLike(v value.Value) (int64, bool) {
	switch v.Kind {
	case value.Int:
		return v.I, true
	case value.Char:
		return int64(v.C), true
	default:
		return 0, false
	}
}

// readAddr and writeAddr are the uniform, region-dispatching memory
// accessors every lvalue read/write and every built-in's raw pointer
// traffic goes through: classify addr by memlayout region, then delegate
// to the owning region's own Read/Write, which already knows how to raise
// UninitialisedRead/UseAfterFree/BufferOverrun/InvalidMemoryAccess.
func (x *exec) readAddr(addr uint64, t value.Type) (value.Value, error) {
	if addr == 0 {
		return value.Value{}, newErr(Loc{}, NullDereference, "dereference of NULL")
	}
	size, err := value.Sizeof(t, x.types)
	if err != nil {
		return value.Value{}, engTypeError(err)
	}
	var bytes []byte
	switch {
	case memlayout.InStack(addr):
		bytes, err = x.stack.Read(addr, size)
	case memlayout.InHeap(addr):
		bytes, err = x.heap.Read(addr, size)
	default:
		return value.Value{}, withAddr(Loc{}, InvalidMemoryAccess, addr)
	}
	if err != nil {
		return value.Value{}, err
	}
	v, err := value.Decode(bytes, t, x.types)
	if err != nil {
		return value.Value{}, engTypeError(err)
	}
	return v, nil
}

func (x *exec) writeAddr(addr uint64, t value.Type, v value.Value) error {
	if addr == 0 {
		return newErr(Loc{}, NullDereference, "write through NULL")
	}
	encoded, err := value.Encode(v, t, x.types)
	if err != nil {
		return engTypeError(err)
	}
	switch {
	case memlayout.InStack(addr):
		return x.stack.Write(addr, encoded)
	case memlayout.InHeap(addr):
		return x.heap.Write(addr, encoded)
	default:
		return withAddr(Loc{}, InvalidMemoryAccess, addr)
	}
}

// engTypeError wraps a bare error from value.Encode/Decode/Sizeof (which
// know nothing of Kind) as a TypeError.
func engTypeError(err error) *RuntimeError {
	return newErr(Loc{}, TypeError, "%s", err.Error())
}

func (x *exec) readLv(lv lvalue, loc Loc) (value.Value, error) {
	v, err := x.readAddr(lv.addr, lv.typ)
	return v, atLoc(loc, err)
}

func (x *exec) writeLv(lv lvalue, v value.Value, loc Loc) error {
	if lv.constName != "" {
		if slot, ok := x.stack.ResolveAddress(lv.addr); ok && slot.Const {
			return withName(loc, ConstModification, lv.constName)
		}
	}
	return atLoc(loc, x.writeAddr(lv.addr, lv.typ, v))
}

// resolveLvalue resolves an expression to its storage location without
// reading through it, per spec §4.5's four lvalue forms.
func (x *exec) resolveLvalue(e ast.Expr) (lvalue, error) {
	switch ex := e.(type) {
	case *ast.Ident:
		slot, ok := x.stack.Top().Slot(ex.Name)
		if !ok {
			return lvalue{}, withName(ex.Loc, UndeclaredIdentifier, ex.Name)
		}
		return lvalue{addr: slot.Addr, typ: slot.Type, constName: ex.Name}, nil

	case *ast.Deref:
		v, err := x.evalExpr(ex.Operand)
		if err != nil {
			return lvalue{}, err
		}
		addr, ok := v.Address()
		if !ok {
			return lvalue{}, newErr(ex.Loc, TypeError, "cannot dereference a non-pointer value")
		}
		if addr == 0 {
			return lvalue{}, newErr(ex.Loc, NullDereference, "dereference of NULL")
		}
		return lvalue{addr: addr, typ: v.Pointee()}, nil

	case *ast.Index:
		base, err := x.evalExpr(ex.Base)
		if err != nil {
			return lvalue{}, err
		}
		idxVal, err := x.evalExpr(ex.Index)
		if err != nil {
			return lvalue{}, err
		}
		idx, ok := intLike(idxVal)
		if !ok {
			return lvalue{}, newErr(ex.Loc, TypeError, "array index must be an int/char")
		}
		baseAddr, ok := base.Address()
		if !ok {
			return lvalue{}, newErr(ex.Loc, TypeError, "cannot index a non-pointer/array value")
		}
		if baseAddr == 0 {
			return lvalue{}, newErr(ex.Loc, NullDereference, "index through NULL")
		}
		elem := base.Pointee()
		elemSize, err := value.Sizeof(elem, x.types)
		if err != nil {
			return lvalue{}, newErr(ex.Loc, TypeError, err.Error())
		}
		addr := uint64(int64(baseAddr) + idx*int64(elemSize))
		return lvalue{addr: addr, typ: elem}, nil

	case *ast.Field:
		var baseAddr uint64
		var tag string
		if ex.Arrow {
			v, err := x.evalExpr(ex.Base)
			if err != nil {
				return lvalue{}, err
			}
			a, ok := v.Address()
			if !ok {
				return lvalue{}, newErr(ex.Loc, TypeError, "-> on a non-pointer value")
			}
			if a == 0 {
				return lvalue{}, newErr(ex.Loc, NullDereference, "-> through NULL")
			}
			baseAddr, tag = a, v.Pointee().StructTag
		} else {
			baseLv, err := x.resolveLvalue(ex.Base)
			if err != nil {
				return lvalue{}, err
			}
			baseAddr, tag = baseLv.addr, baseLv.typ.StructTag
		}
		offset, fieldType, err := x.types.FieldOffset(tag, ex.Name)
		if err != nil {
			return lvalue{}, newErr(ex.Loc, TypeError, err.Error())
		}
		return lvalue{addr: baseAddr + offset, typ: fieldType}, nil

	default:
		return lvalue{}, newErr(e.Location(), TypeError, "expression is not assignable")
	}
}

// valuesEqualInt compares two int/char-like values by their promoted int
// value, for switch-case matching.
func valuesEqualInt(a, b value.Value) (bool, bool) {
	ai, ok1 := intLike(a)
	bi, ok2 := intLike(b)
	if !ok1 || !ok2 {
		return false, false
	}
	return ai == bi, true
}

// findLabelIndex searches stmts' direct children (not recursing into
// nested blocks) for a Label named name. goto support is intentionally
// scoped to labels reachable within the same statement list the goto
// itself executes in — the common case of a backward "retry:" loop or a
// forward skip within one block/function body — rather than arbitrary
// jumps across nesting boundaries, which would need a full label-
// resolution pass a tree-walking interpreter doesn't otherwise need.
func findLabelIndex(stmts []ast.Stmt, name string) (int, bool) {
	for i, s := range stmts {
		if lbl, ok := s.(*ast.Label); ok && lbl.Name == name {
			return i, true
		}
	}
	return 0, false
}

// execBlock runs a flat statement list, handling the local goto-search
// described above and propagating Return/Break/Continue/unresolved-Goto
// to the caller.
func (x *exec) execBlock(stmts []ast.Stmt) (flow, error) {
	i := 0
	for i < len(stmts) {
		f, err := x.execStmt(stmts[i])
		if err != nil {
			return flow{}, err
		}
		switch f.kind {
		case flowNormal:
			i++
		case flowGoto:
			if idx, found := findLabelIndex(stmts, f.gotoLabel); found {
				i = idx
				continue
			}
			return f, nil
		default:
			return f, nil
		}
	}
	return flowFallthrough, nil
}

func (x *exec) execDecl(st *ast.DeclStmt) error {
	_, err := x.stack.DeclareLocal(st.Name, st.Type, x.types, st.Type.Const)
	if err != nil {
		return atLoc(st.Loc, err)
	}
	if st.Init == nil {
		return nil
	}
	v, err := x.evalExpr(st.Init)
	if err != nil {
		return err
	}
	if err := x.stack.AssignLocal(st.Name, v, x.types); err != nil {
		return atLoc(st.Loc, err)
	}
	return nil
}

// execStmt executes one statement's own action and pauses once to mark a
// completed step, per the granularity rules in spec §4.5: Block is not
// itself a step; If/While/DoWhile/For/Switch pause once for their own
// header evaluation, with their chosen body executed (and separately
// stepped) via a nested execStmt call; every other statement kind pauses
// once after performing its entire action.
func (x *exec) execStmt(s ast.Stmt) (flow, error) {
	switch st := s.(type) {
	case *ast.Block:
		top := x.stack.Top()
		mark := top.Mark()
		f, err := x.execBlock(st.Stmts)
		top.ExitScope(mark)
		return f, err

	case *ast.ExprStmt:
		if _, err := x.evalExpr(st.Expr); err != nil {
			return flow{}, err
		}
		if err := x.rc.pause(st.Loc); err != nil {
			return flow{}, err
		}
		return flowFallthrough, nil

	case *ast.DeclStmt:
		if err := x.execDecl(st); err != nil {
			return flow{}, err
		}
		if err := x.rc.pause(st.Loc); err != nil {
			return flow{}, err
		}
		return flowFallthrough, nil

	case *ast.If:
		cond, err := x.evalExpr(st.Cond)
		if err != nil {
			return flow{}, err
		}
		truth := cond.IsTruthy()
		if err := x.rc.pause(st.Loc); err != nil {
			return flow{}, err
		}
		if truth {
			return x.execStmt(st.Then)
		}
		if st.Else != nil {
			return x.execStmt(st.Else)
		}
		return flowFallthrough, nil

	case *ast.While:
		for {
			cond, err := x.evalExpr(st.Cond)
			if err != nil {
				return flow{}, err
			}
			if err := x.rc.pause(st.Loc); err != nil {
				return flow{}, err
			}
			if !cond.IsTruthy() {
				break
			}
			f, err := x.execStmt(st.Body)
			if err != nil {
				return flow{}, err
			}
			switch f.kind {
			case flowBreak:
				return flowFallthrough, nil
			case flowReturn, flowGoto:
				return f, nil
			}
		}
		return flowFallthrough, nil

	case *ast.DoWhile:
		for {
			f, err := x.execStmt(st.Body)
			if err != nil {
				return flow{}, err
			}
			switch f.kind {
			case flowBreak:
				return flowFallthrough, nil
			case flowReturn, flowGoto:
				return f, nil
			}
			cond, err := x.evalExpr(st.Cond)
			if err != nil {
				return flow{}, err
			}
			if err := x.rc.pause(st.Loc); err != nil {
				return flow{}, err
			}
			if !cond.IsTruthy() {
				break
			}
		}
		return flowFallthrough, nil

	case *ast.For:
		if st.Init != nil {
			if _, err := x.execStmt(st.Init); err != nil {
				return flow{}, err
			}
		}
		for {
			if st.Cond != nil {
				cv, err := x.evalExpr(st.Cond)
				if err != nil {
					return flow{}, err
				}
				if err := x.rc.pause(st.Loc); err != nil {
					return flow{}, err
				}
				if !cv.IsTruthy() {
					break
				}
			} else if err := x.rc.pause(st.Loc); err != nil {
				return flow{}, err
			}
			f, err := x.execStmt(st.Body)
			if err != nil {
				return flow{}, err
			}
			switch f.kind {
			case flowBreak:
				return flowFallthrough, nil
			case flowReturn, flowGoto:
				return f, nil
			}
			if st.Incr != nil {
				if _, err := x.evalExpr(st.Incr); err != nil {
					return flow{}, err
				}
				if err := x.rc.pause(st.Loc); err != nil {
					return flow{}, err
				}
			}
		}
		return flowFallthrough, nil

	case *ast.Switch:
		tag, err := x.evalExpr(st.Tag)
		if err != nil {
			return flow{}, err
		}
		if err := x.rc.pause(st.Loc); err != nil {
			return flow{}, err
		}
		matchIdx, defaultIdx := -1, -1
		for i, c := range st.Cases {
			if c.IsDefault {
				defaultIdx = i
				continue
			}
			cv, err := x.evalExpr(c.Value)
			if err != nil {
				return flow{}, err
			}
			eq, ok := valuesEqualInt(tag, cv)
			if !ok {
				return flow{}, newErr(st.Loc, TypeError, "switch case value must be int/char")
			}
			if eq {
				matchIdx = i
				break
			}
		}
		if matchIdx == -1 {
			matchIdx = defaultIdx
		}
		if matchIdx == -1 {
			return flowFallthrough, nil
		}
		for i := matchIdx; i < len(st.Cases); i++ {
			f, err := x.execBlock(st.Cases[i].Body)
			if err != nil {
				return flow{}, err
			}
			switch f.kind {
			case flowBreak:
				return flowFallthrough, nil
			case flowReturn, flowContinue, flowGoto:
				return f, nil
			}
		}
		return flowFallthrough, nil

	case *ast.Break:
		if err := x.rc.pause(st.Loc); err != nil {
			return flow{}, err
		}
		return flowBreaking, nil

	case *ast.Continue:
		if err := x.rc.pause(st.Loc); err != nil {
			return flow{}, err
		}
		return flowContinuing, nil

	case *ast.Return:
		var rv *value.Value
		if st.Expr != nil {
			v, err := x.evalExpr(st.Expr)
			if err != nil {
				return flow{}, err
			}
			rv = &v
		}
		if err := x.rc.pause(st.Loc); err != nil {
			return flow{}, err
		}
		return flowReturning(rv), nil

	case *ast.Goto:
		if err := x.rc.pause(st.Loc); err != nil {
			return flow{}, err
		}
		return flowJumping(st.Label), nil

	case *ast.Label:
		return x.execStmt(st.Stmt)

	default:
		return flow{}, newErr(s.Location(), UndefinedBehaviour, "unhandled statement kind")
	}
}

// callFunction pushes a new frame, binds params by value, executes body,
// and pops the frame unconditionally before returning — recursion is
// natural Go recursion through this function, guarded only by
// config.MaxCallDepth, never by any rewind-the-call-stack machinery
// (reversing execution history never touches this call chain; it is a
// pure snapshot.Store cursor operation instead).
func (x *exec) callFunction(fn *ast.FuncDef, args []value.Value, callSite Loc) (*value.Value, error) {
	if x.cfg.MaxCallDepth > 0 && x.stack.Depth() >= x.cfg.MaxCallDepth {
		return nil, newErr(callSite, StackOverflow, "max call depth (%d) exceeded calling %s", x.cfg.MaxCallDepth, fn.Name)
	}
	x.stack.PushFrame(fn.Name, stack.CallSite{Line: callSite.Line, Col: callSite.Col})
	x.log.Call(x.id, fn.Name, x.stack.Depth())

	for i, p := range fn.Params {
		if _, err := x.stack.DeclareLocal(p.Name, p.Type, x.types, p.Type.Const); err != nil {
			x.stack.PopFrame()
			return nil, atLoc(callSite, err)
		}
		if err := x.stack.AssignLocal(p.Name, args[i], x.types); err != nil {
			x.stack.PopFrame()
			return nil, atLoc(callSite, err)
		}
	}

	f, err := x.execBlock(fn.Body)
	if err == nil && f.kind == flowGoto {
		err = newErr(callSite, UndefinedBehaviour, "goto %q: no such label in an enclosing statement list of %s", f.gotoLabel, fn.Name)
	}

	var ret *value.Value
	if err == nil && f.kind == flowReturn {
		ret = f.returnVal
	}
	if _, perr := x.stack.PopFrame(); perr != nil && err == nil {
		err = perr
	}
	return ret, err
}

func isPointerish(v value.Value) bool {
	switch v.Kind {
	case value.Pointer, value.Null, value.ArrayRef:
		return true
	default:
		return false
	}
}

// typeOfExpr derives an expression's static type without evaluating any
// side-effecting subexpression, for sizeof(expr) — spec §4.5 requires
// sizeof not evaluate its operand for side effects, so this mirrors
// resolveLvalue's recursion shape but reads slot/struct *types* only,
// never values.
func (x *exec) typeOfExpr(e ast.Expr) (value.Type, error) {
	switch ex := e.(type) {
	case *ast.IntLit:
		return value.TypeInt, nil
	case *ast.CharLit:
		return value.TypeChar, nil
	case *ast.StringLit:
		return value.PointerType(value.TypeChar), nil
	case *ast.NullLit:
		return value.PointerType(value.TypeVoid), nil
	case *ast.Ident:
		slot, ok := x.stack.Top().Slot(ex.Name)
		if !ok {
			return value.Type{}, withName(ex.Loc, UndeclaredIdentifier, ex.Name)
		}
		return slot.Type, nil
	case *ast.Deref:
		t, err := x.typeOfExpr(ex.Operand)
		if err != nil {
			return value.Type{}, err
		}
		if t.Kind != value.KindPointer {
			return value.Type{}, newErr(ex.Loc, TypeError, "cannot dereference a non-pointer type")
		}
		return *t.Pointee, nil
	case *ast.Index:
		t, err := x.typeOfExpr(ex.Base)
		if err != nil {
			return value.Type{}, err
		}
		switch t.Kind {
		case value.KindPointer:
			return *t.Pointee, nil
		case value.KindArray:
			return *t.Elem, nil
		default:
			return value.Type{}, newErr(ex.Loc, TypeError, "cannot index a non-pointer/array type")
		}
	case *ast.Field:
		t, err := x.typeOfExpr(ex.Base)
		if err != nil {
			return value.Type{}, err
		}
		tag := t.StructTag
		if ex.Arrow {
			if t.Kind != value.KindPointer {
				return value.Type{}, newErr(ex.Loc, TypeError, "-> on a non-pointer type")
			}
			tag = t.Pointee.StructTag
		}
		_, ft, err := x.types.FieldOffset(tag, ex.Name)
		if err != nil {
			return value.Type{}, newErr(ex.Loc, TypeError, err.Error())
		}
		return ft, nil
	case *ast.Cast:
		return ex.Type, nil
	case *ast.AddrOf:
		t, err := x.typeOfExpr(ex.Operand)
		if err != nil {
			return value.Type{}, err
		}
		return value.PointerType(t), nil
	case *ast.Call:
		if fn := x.prog.FuncDef(ex.Callee); fn != nil {
			return fn.ReturnType, nil
		}
		return value.TypeInt, nil
	case *ast.Unary:
		return x.typeOfExpr(ex.Operand)
	default:
		return value.TypeInt, nil
	}
}

// evalBinaryOp applies op to already-evaluated operands, shared by Binary
// expressions and CompoundAssign's read-modify-write step. Pointer
// arithmetic and char/int promotion are resolved here, once.
func (x *exec) evalBinaryOp(op ast.BinaryOp, left, right value.Value, loc Loc) (value.Value, error) {
	switch op {
	case ast.Add, ast.Sub:
		if isPointerish(left) || isPointerish(right) {
			return x.evalPointerArith(op, left, right, loc)
		}
	}
	switch op {
	case ast.Eq, ast.Ne, ast.Lt, ast.Le, ast.Gt, ast.Ge:
		if isPointerish(left) && isPointerish(right) {
			la, _ := left.Address()
			ra, _ := right.Address()
			return value.MakeInt(boolToInt(compareUint64(op, la, ra))), nil
		}
	}

	li, ok := intLike(left)
	if !ok {
		return value.Value{}, newErr(loc, TypeError, "operand is not an int/char")
	}
	ri, ok := intLike(right)
	if !ok {
		return value.Value{}, newErr(loc, TypeError, "operand is not an int/char")
	}

	switch op {
	case ast.Add:
		r, err := value.CheckedAdd(li, ri)
		return wrapArith(r, err, loc)
	case ast.Sub:
		r, err := value.CheckedSub(li, ri)
		return wrapArith(r, err, loc)
	case ast.Mul:
		r, err := value.CheckedMul(li, ri)
		return wrapArith(r, err, loc)
	case ast.Div:
		r, err := value.CheckedDiv(li, ri)
		return wrapArith(r, err, loc)
	case ast.Mod:
		r, err := value.CheckedMod(li, ri)
		return wrapArith(r, err, loc)
	case ast.Eq:
		return value.MakeInt(boolToInt(li == ri)), nil
	case ast.Ne:
		return value.MakeInt(boolToInt(li != ri)), nil
	case ast.Lt:
		return value.MakeInt(boolToInt(li < ri)), nil
	case ast.Le:
		return value.MakeInt(boolToInt(li <= ri)), nil
	case ast.Gt:
		return value.MakeInt(boolToInt(li > ri)), nil
	case ast.Ge:
		return value.MakeInt(boolToInt(li >= ri)), nil
	case ast.BitAnd:
		return value.MakeInt(int64(int32(li) & int32(ri))), nil
	case ast.BitOr:
		return value.MakeInt(int64(int32(li) | int32(ri))), nil
	case ast.BitXor:
		return value.MakeInt(int64(int32(li) ^ int32(ri))), nil
	case ast.Shl:
		return value.MakeInt(int64(int32(li) << uint(ri))), nil
	case ast.Shr:
		return value.MakeInt(int64(int32(li) >> uint(ri))), nil
	default:
		return value.Value{}, newErr(loc, UndefinedBehaviour, "unhandled binary operator")
	}
}

func (x *exec) evalPointerArith(op ast.BinaryOp, left, right value.Value, loc Loc) (value.Value, error) {
	if op == ast.Sub && isPointerish(left) && isPointerish(right) {
		d, err := value.PtrDiff(left, right, x.types)
		if err != nil {
			return value.Value{}, newErr(loc, TypeError, err.Error())
		}
		return value.MakeInt(d), nil
	}
	ptr, scalar := left, right
	if !isPointerish(ptr) {
		ptr, scalar = right, left
	}
	n, ok := intLike(scalar)
	if !ok {
		return value.Value{}, newErr(loc, TypeError, "pointer arithmetic requires an int/char operand")
	}
	if op == ast.Sub {
		n = -n
	}
	r, err := value.PtrAdd(ptr, n, x.types)
	if err != nil {
		return value.Value{}, newErr(loc, TypeError, err.Error())
	}
	return r, nil
}

func wrapArith(r int64, err error, loc Loc) (value.Value, error) {
	if err != nil {
		switch {
		case err == value.ErrOverflow:
			return value.Value{}, newErr(loc, IntegerOverflow, "integer overflow")
		case err == value.ErrDivByZero:
			return value.Value{}, newErr(loc, DivisionByZero, "division or modulo by zero")
		default:
			return value.Value{}, newErr(loc, UndefinedBehaviour, err.Error())
		}
	}
	return value.MakeInt(r), nil
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func compareUint64(op ast.BinaryOp, a, b uint64) bool {
	switch op {
	case ast.Eq:
		return a == b
	case ast.Ne:
		return a != b
	case ast.Lt:
		return a < b
	case ast.Le:
		return a <= b
	case ast.Gt:
		return a > b
	case ast.Ge:
		return a >= b
	default:
		return false
	}
}

// compoundToBinary maps a read-modify-write operator onto the equivalent
// BinaryOp evalBinaryOp already implements.
func compoundToBinary(op ast.CompoundAssignOp) ast.BinaryOp {
	switch op {
	case ast.AddAssign:
		return ast.Add
	case ast.SubAssign:
		return ast.Sub
	case ast.MulAssign:
		return ast.Mul
	case ast.DivAssign:
		return ast.Div
	case ast.ModAssign:
		return ast.Mod
	case ast.AndAssign:
		return ast.BitAnd
	case ast.OrAssign:
		return ast.BitOr
	case ast.XorAssign:
		return ast.BitXor
	case ast.ShlAssign:
		return ast.Shl
	default:
		return ast.Shr
	}
}

// evalExpr evaluates e left-to-right with C operator precedence already
// resolved by the AST's shape (the parser, not this function, establishes
// precedence). Expressions are never individually snapshotted — only the
// enclosing statement's execStmt call pauses.
func (x *exec) evalExpr(e ast.Expr) (value.Value, error) {
	switch ex := e.(type) {
	case *ast.IntLit:
		return value.MakeInt(ex.Value), nil

	case *ast.CharLit:
		return value.MakeChar(ex.Value), nil

	case *ast.NullLit:
		return value.MakeNull(value.TypeVoid), nil

	case *ast.StringLit:
		data := append([]byte(ex.Value), 0)
		addr, err := x.heap.Alloc(uint64(len(data)))
		if err != nil {
			return value.Value{}, atLoc(ex.Loc, err)
		}
		if err := x.heap.Write(addr, data); err != nil {
			return value.Value{}, atLoc(ex.Loc, err)
		}
		return value.MakePointer(addr, value.TypeChar), nil

	case *ast.Ident:
		lv, err := x.resolveLvalue(ex)
		if err != nil {
			return value.Value{}, err
		}
		if lv.typ.Kind == value.KindArray {
			return value.MakeArrayRef(lv.addr, *lv.typ.Elem, lv.typ.Length), nil
		}
		return x.readLv(lv, ex.Loc)

	case *ast.Unary:
		return x.evalUnary(ex)

	case *ast.Binary:
		if ex.Op == ast.LogAnd || ex.Op == ast.LogOr {
			left, err := x.evalExpr(ex.Left)
			if err != nil {
				return value.Value{}, err
			}
			if ex.Op == ast.LogAnd && !left.IsTruthy() {
				return value.MakeInt(0), nil
			}
			if ex.Op == ast.LogOr && left.IsTruthy() {
				return value.MakeInt(1), nil
			}
			right, err := x.evalExpr(ex.Right)
			if err != nil {
				return value.Value{}, err
			}
			return value.MakeInt(boolToInt(right.IsTruthy())), nil
		}
		left, err := x.evalExpr(ex.Left)
		if err != nil {
			return value.Value{}, err
		}
		right, err := x.evalExpr(ex.Right)
		if err != nil {
			return value.Value{}, err
		}
		return x.evalBinaryOp(ex.Op, left, right, ex.Loc)

	case *ast.Assign:
		lv, err := x.resolveLvalue(ex.Target)
		if err != nil {
			return value.Value{}, err
		}
		v, err := x.evalExpr(ex.Value)
		if err != nil {
			return value.Value{}, err
		}
		if err := x.writeLv(lv, v, ex.Loc); err != nil {
			return value.Value{}, err
		}
		return v, nil

	case *ast.CompoundAssign:
		lv, err := x.resolveLvalue(ex.Target)
		if err != nil {
			return value.Value{}, err
		}
		cur, err := x.readLv(lv, ex.Loc)
		if err != nil {
			return value.Value{}, err
		}
		rhs, err := x.evalExpr(ex.Value)
		if err != nil {
			return value.Value{}, err
		}
		result, err := x.evalBinaryOp(compoundToBinary(ex.Op), cur, rhs, ex.Loc)
		if err != nil {
			return value.Value{}, err
		}
		if err := x.writeLv(lv, result, ex.Loc); err != nil {
			return value.Value{}, err
		}
		return result, nil

	case *ast.Ternary:
		cond, err := x.evalExpr(ex.Cond)
		if err != nil {
			return value.Value{}, err
		}
		if cond.IsTruthy() {
			return x.evalExpr(ex.Then)
		}
		return x.evalExpr(ex.Else)

	case *ast.Call:
		return x.evalCall(ex)

	case *ast.Index:
		lv, err := x.resolveLvalue(ex)
		if err != nil {
			return value.Value{}, err
		}
		if lv.typ.Kind == value.KindArray {
			return value.MakeArrayRef(lv.addr, *lv.typ.Elem, lv.typ.Length), nil
		}
		return x.readLv(lv, ex.Loc)

	case *ast.Field:
		lv, err := x.resolveLvalue(ex)
		if err != nil {
			return value.Value{}, err
		}
		if lv.typ.Kind == value.KindArray {
			return value.MakeArrayRef(lv.addr, *lv.typ.Elem, lv.typ.Length), nil
		}
		return x.readLv(lv, ex.Loc)

	case *ast.Deref:
		lv, err := x.resolveLvalue(ex)
		if err != nil {
			return value.Value{}, err
		}
		if lv.typ.Kind == value.KindArray {
			return value.MakeArrayRef(lv.addr, *lv.typ.Elem, lv.typ.Length), nil
		}
		return x.readLv(lv, ex.Loc)

	case *ast.AddrOf:
		lv, err := x.resolveLvalue(ex.Operand)
		if err != nil {
			return value.Value{}, err
		}
		return value.MakePointer(lv.addr, lv.typ), nil

	case *ast.Cast:
		return x.evalCast(ex)

	case *ast.SizeofExpr:
		t, err := x.typeOfExpr(ex.Operand)
		if err != nil {
			return value.Value{}, err
		}
		sz, err := value.Sizeof(t, x.types)
		if err != nil {
			return value.Value{}, newErr(ex.Loc, TypeError, err.Error())
		}
		return value.MakeInt(int64(sz)), nil

	case *ast.SizeofType:
		sz, err := value.Sizeof(ex.Type, x.types)
		if err != nil {
			return value.Value{}, newErr(ex.Loc, TypeError, err.Error())
		}
		return value.MakeInt(int64(sz)), nil

	default:
		return value.Value{}, newErr(e.Location(), UndefinedBehaviour, "unhandled expression kind")
	}
}

func (x *exec) evalUnary(ex *ast.Unary) (value.Value, error) {
	switch ex.Op {
	case ast.Neg:
		v, err := x.evalExpr(ex.Operand)
		if err != nil {
			return value.Value{}, err
		}
		iv, ok := intLike(v)
		if !ok {
			return value.Value{}, newErr(ex.Loc, TypeError, "unary - requires an int/char operand")
		}
		r, err := value.CheckedSub(0, iv)
		return wrapArith(r, err, ex.Loc)

	case ast.Not:
		v, err := x.evalExpr(ex.Operand)
		if err != nil {
			return value.Value{}, err
		}
		return value.MakeInt(boolToInt(!v.IsTruthy())), nil

	case ast.BitNot:
		v, err := x.evalExpr(ex.Operand)
		if err != nil {
			return value.Value{}, err
		}
		iv, ok := intLike(v)
		if !ok {
			return value.Value{}, newErr(ex.Loc, TypeError, "unary ~ requires an int/char operand")
		}
		return value.MakeInt(int64(^int32(iv))), nil

	case ast.PreIncr, ast.PreDecr, ast.PostIncr, ast.PostDecr:
		lv, err := x.resolveLvalue(ex.Operand)
		if err != nil {
			return value.Value{}, err
		}
		old, err := x.readLv(lv, ex.Loc)
		if err != nil {
			return value.Value{}, err
		}
		delta := int64(1)
		if ex.Op == ast.PreDecr || ex.Op == ast.PostDecr {
			delta = -1
		}
		var next value.Value
		if isPointerish(old) {
			next, err = value.PtrAdd(old, delta, x.types)
			if err != nil {
				return value.Value{}, newErr(ex.Loc, TypeError, err.Error())
			}
		} else {
			iv, ok := intLike(old)
			if !ok {
				return value.Value{}, newErr(ex.Loc, TypeError, "++/-- requires an int/char/pointer operand")
			}
			r, aerr := value.CheckedAdd(iv, delta)
			next, err = wrapArith(r, aerr, ex.Loc)
			if err != nil {
				return value.Value{}, err
			}
			if lv.typ.Kind == value.KindChar {
				next = value.MakeChar(value.TruncateToChar(r))
			}
		}
		if err := x.writeLv(lv, next, ex.Loc); err != nil {
			return value.Value{}, err
		}
		if ex.Op == ast.PreIncr || ex.Op == ast.PreDecr {
			return next, nil
		}
		return old, nil

	default:
		return value.Value{}, newErr(ex.Loc, UndefinedBehaviour, "unhandled unary operator")
	}
}

func (x *exec) evalCall(ex *ast.Call) (value.Value, error) {
	if b, ok := x.builtins[ex.Callee]; ok {
		return b(x, ex)
	}
	fn := x.prog.FuncDef(ex.Callee)
	if fn == nil {
		return value.Value{}, withName(ex.Loc, FunctionNotFound, ex.Callee)
	}
	if len(ex.Args) != len(fn.Params) {
		return value.Value{}, newErr(ex.Loc, TypeError, "%s expects %d argument(s), got %d", ex.Callee, len(fn.Params), len(ex.Args))
	}
	args := make([]value.Value, len(ex.Args))
	for i, a := range ex.Args {
		v, err := x.evalExpr(a)
		if err != nil {
			return value.Value{}, err
		}
		args[i] = v
	}
	ret, err := x.callFunction(fn, args, ex.Loc)
	if err != nil {
		return value.Value{}, err
	}
	if ret == nil {
		return value.MakeInt(0), nil
	}
	return *ret, nil
}

func (x *exec) evalCast(ex *ast.Cast) (value.Value, error) {
	v, err := x.evalExpr(ex.Operand)
	if err != nil {
		return value.Value{}, err
	}
	switch ex.Type.Kind {
	case value.KindPointer:
		if isPointerish(v) {
			addr, _ := v.Address()
			if addr == 0 {
				return value.MakeNull(*ex.Type.Pointee), nil
			}
			x.heap.SetElemType(addr, *ex.Type.Pointee)
			return value.MakePointer(addr, *ex.Type.Pointee), nil
		}
		iv, ok := intLike(v)
		if !ok {
			return value.Value{}, newErr(ex.Loc, TypeError, "cannot cast %s to %s", v.Kind, ex.Type)
		}
		if iv == 0 {
			return value.MakeNull(*ex.Type.Pointee), nil
		}
		return value.MakePointer(uint64(iv), *ex.Type.Pointee), nil

	case value.KindInt:
		if isPointerish(v) {
			addr, _ := v.Address()
			return value.MakeInt(int64(addr)), nil
		}
		iv, ok := intLike(v)
		if !ok {
			return value.Value{}, newErr(ex.Loc, TypeError, "cannot cast %s to int", v.Kind)
		}
		return value.MakeInt(int64(int32(iv))), nil

	case value.KindChar:
		if isPointerish(v) {
			addr, _ := v.Address()
			return value.MakeChar(int8(addr)), nil
		}
		iv, ok := intLike(v)
		if !ok {
			return value.Value{}, newErr(ex.Loc, TypeError, "cannot cast %s to char", v.Kind)
		}
		return value.MakeChar(value.TruncateToChar(iv)), nil

	default:
		return value.Value{}, newErr(ex.Loc, TypeError, "cannot cast to %s", ex.Type)
	}
}
