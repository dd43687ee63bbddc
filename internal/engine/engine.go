// Package engine implements crustty's AST-walking interpreter: statement
// dispatcher, expression evaluator, lvalue resolver, built-in dispatch,
// control flow, function call/return, and the step/rewind entry points the
// rest of the system drives the engine through. It is the one component
// that owns mutable state; everything below it (value, stack, heap,
// terminal, snapshot) is a passive data structure the engine mutates and
// clones.
package engine

import (
	"context"
	"errors"

	"github.com/aicheye/crustty/internal/ast"
	"github.com/aicheye/crustty/internal/config"
	"github.com/aicheye/crustty/internal/heap"
	"github.com/aicheye/crustty/internal/obslog"
	"github.com/aicheye/crustty/internal/snapshot"
	"github.com/aicheye/crustty/internal/stack"
	"github.com/aicheye/crustty/internal/terminal"
	"github.com/aicheye/crustty/internal/value"
	"github.com/google/uuid"
)

// StepOutcome is step_forward's result: whether the program advanced or
// main has already returned.
type StepOutcome int

const (
	Advanced StepOutcome = iota
	Halted
)

func (o StepOutcome) String() string {
	if o == Halted {
		return "Halted"
	}
	return "Advanced"
}

// pauseKind discriminates why the interpreter goroutine handed control
// back to the driver.
type pauseKind int

const (
	pausedStep pauseKind = iota
	pausedHalted
	pausedFault
)

type pauseInfo struct {
	kind pauseKind
	loc  Loc
	err  *RuntimeError
}

// pc is the concrete type every snapshot.State.ProgramCounter holds: the
// current source location, plus whether this snapshot is the terminal
// "main has returned" one — carried through Store's opaque field so
// replaying forward into it (rather than live-executing past it) still
// reports Halted correctly.
type pc struct {
	loc    Loc
	halted bool
}

// errAborted is the sentinel an in-flight interpreter goroutine's pause()
// returns when Restart closes its generation's abort channel out from
// under it — never surfaced to the caller, only used to unwind the Go call
// stack cleanly so the old goroutine can exit instead of leaking forever.
var errAborted = errors.New("engine: generation aborted")

// runCtx is one generation's coroutine-control channels, passed as an
// explicit argument into the interpreter goroutine and every exec method
// it calls, rather than read from Engine fields — Restart swaps in a new
// generation's channels on the Engine struct, and an old, abandoned
// goroutine reading mutable fields instead of its captured arguments would
// race with that swap.
type runCtx struct {
	resume chan struct{}
	paused chan pauseInfo
	abort  chan struct{}
}

func (rc *runCtx) pause(loc Loc) error {
	select {
	case rc.paused <- pauseInfo{kind: pausedStep, loc: loc}:
	case <-rc.abort:
		return errAborted
	}
	select {
	case <-rc.resume:
		return nil
	case <-rc.abort:
		return errAborted
	}
}

// Engine is one debugging session: a single parsed program driven forward
// and backward through its own execution history.
type Engine struct {
	id     string
	log    *obslog.Logger
	cfg    config.Config
	types  *value.TypeTable
	prog   *ast.Program
	store  *snapshot.Store

	// live scratch objects the interpreter goroutine mutates directly,
	// in lock-step with store.Current() — every successful step clones
	// them into a new snapshot immediately after the pause that reports it.
	stack *stack.Stack
	heap  *heap.Heap
	term  *terminal.Terminal

	builtins map[string]builtinFunc

	halted  bool
	faulted bool
	lastErr *RuntimeError

	gen int // generation counter, for diagnostics only
	rc  *runCtx
}

// New constructs an Engine for prog, configured by cfg. cfg.InitialInput (a
// whitespace-delimited token stream) seeds scanf; cfg.SnapshotCeilingBytes
// bounds the snapshot store (0 for unbounded).
func New(prog *ast.Program, cfg config.Config) *Engine {
	obslog.Init(cfg.Verbose)
	e := &Engine{
		id:    uuid.NewString(),
		log:   obslog.L,
		cfg:   cfg,
		types: value.NewTypeTable(prog.Structs),
		prog:  prog,
	}
	e.registerBuiltins()
	e.resetState()
	return e
}

// resetState (re)initialises the live scratch objects and snapshot store
// to a pristine Ready@0 state and starts a fresh interpreter generation.
func (e *Engine) resetState() {
	e.stack = stack.New()
	e.heap = heap.New()
	e.term = terminal.New(e.cfg.InitialInput)
	initial := snapshot.State{
		Stack:          e.stack.Clone(),
		Heap:           e.heap.Clone(),
		Terminal:       e.term.Clone(),
		ProgramCounter: pc{},
	}
	e.store = snapshot.NewStore(initial, e.cfg.SnapshotCeilingBytes)
	e.halted = false
	e.faulted = false
	e.lastErr = nil
	e.startGeneration()
}

// startGeneration spins up a fresh interpreter goroutine and its
// generation's channel triple, discarding any previous generation's
// channels (the previous goroutine, if still blocked in pause(), is woken
// by closing its abort channel so it unwinds instead of leaking).
func (e *Engine) startGeneration() {
	old := e.rc
	rc := &runCtx{
		resume: make(chan struct{}),
		paused: make(chan pauseInfo, 1),
		abort:  make(chan struct{}),
	}
	e.gen++
	e.rc = rc
	if old != nil {
		close(old.abort)
	}
	go e.interpret(rc)
}

// interpret is the coroutine body: it blocks for the first resume, then
// walks main() to completion, reporting exactly one pauseInfo per
// completed statement (via exec.execStmt's calls to rc.pause) plus one
// final pauseInfo for Halted or a fault.
func (e *Engine) interpret(rc *runCtx) {
	select {
	case <-rc.resume:
	case <-rc.abort:
		return
	}

	main := e.prog.Main()
	if main == nil {
		select {
		case rc.paused <- pauseInfo{kind: pausedFault, err: newErr(Loc{}, FunctionNotFound, "no main function defined")}:
		case <-rc.abort:
		}
		return
	}

	x := &exec{Engine: e, rc: rc}
	_, err := x.callFunction(main, nil, Loc{})
	if err != nil {
		if errors.Is(err, errAborted) {
			return
		}
		var re *RuntimeError
		if !asRuntimeError(err, &re) {
			re = newErr(Loc{}, UndefinedBehaviour, "%s", err.Error())
		}
		select {
		case rc.paused <- pauseInfo{kind: pausedFault, err: re}:
		case <-rc.abort:
		}
		return
	}

	select {
	case rc.paused <- pauseInfo{kind: pausedHalted}:
	case <-rc.abort:
	}
}

// StepForward executes exactly one source statement and records a
// snapshot, or replays a previously-visited snapshot if the cursor is not
// at the end of history (a prior StepBackward without an intervening new
// step). It refuses to advance a Faulted or Halted engine.
func (e *Engine) StepForward() (StepOutcome, error) {
	if e.faulted {
		return Advanced, e.lastErr
	}
	if e.halted {
		return Halted, nil
	}
	if !e.store.AtEnd() {
		state, ok := e.store.StepForward()
		if ok {
			e.log.Snapshot(e.id, "replay-forward", e.store.Position())
			if p, ok := state.ProgramCounter.(pc); ok && p.halted {
				e.halted = true
				return Halted, nil
			}
			return Advanced, nil
		}
	}

	rc := e.rc
	select {
	case rc.resume <- struct{}{}:
	case <-rc.abort:
		return Advanced, newErr(Loc{}, Cancelled, "generation aborted")
	}

	info := <-rc.paused
	switch info.kind {
	case pausedHalted:
		next := snapshot.State{
			Stack:          e.stack.Clone(),
			Heap:           e.heap.Clone(),
			Terminal:       e.term.Clone(),
			ProgramCounter: pc{loc: e.CurrentLocation(), halted: true},
		}
		if err := e.store.Push(next); err != nil {
			e.faulted = true
			e.lastErr = err.(*RuntimeError)
			return Advanced, e.lastErr
		}
		e.halted = true
		e.log.Snapshot(e.id, "halted", e.store.Position())
		return Halted, nil

	case pausedFault:
		e.faulted = true
		e.lastErr = info.err
		e.log.Fault(e.id, info.err.Kind.String(), info.err.Error())
		return Advanced, info.err

	default: // pausedStep
		next := snapshot.State{
			Stack:          e.stack.Clone(),
			Heap:           e.heap.Clone(),
			Terminal:       e.term.Clone(),
			ProgramCounter: pc{loc: info.loc},
		}
		if err := e.store.Push(next); err != nil {
			// The live interpreter goroutine has already moved past this
			// point (its own stack/heap/term reflect the step that failed
			// to snapshot); the engine becomes permanently Faulted, so
			// those extra mutations are never observed through store.Current().
			e.faulted = true
			e.lastErr = err.(*RuntimeError)
			return Advanced, e.lastErr
		}
		e.log.Step(e.id, e.store.Position(), info.loc.Line, info.loc.Col)
		return Advanced, nil
	}
}

// StepBackward moves the cursor one snapshot earlier without touching the
// live interpreter goroutine — reversing history is a pure Store cursor
// operation, never a rewind of the native Go call stack. A Faulted engine
// stays Faulted (step_forward refused) until Restart; only Restart clears
// that flag, so this deliberately leaves it untouched.
func (e *Engine) StepBackward() error {
	state, err := e.store.StepBackward()
	if err != nil {
		return err
	}
	if p, ok := state.ProgramCounter.(pc); ok {
		e.halted = p.halted
	}
	e.log.Snapshot(e.id, "backward", e.store.Position())
	return nil
}

// Restart rewinds to step 0 and discards all history beyond it, tearing
// down the current interpreter generation and starting a fresh one so the
// next step_forward re-executes main from scratch.
func (e *Engine) Restart() {
	e.store.Restart()
	e.stack = stack.New()
	e.heap = heap.New()
	e.term = terminal.New(e.cfg.InitialInput)
	e.halted = false
	e.faulted = false
	e.lastErr = nil
	e.startGeneration()
}

// RunToEnd drives step_forward until main returns, an error occurs, or ctx
// is cancelled between statements.
func (e *Engine) RunToEnd(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return newErr(Loc{}, Cancelled, "run_to_end cancelled")
		}
		outcome, err := e.StepForward()
		if err != nil {
			return err
		}
		if outcome == Halted {
			return nil
		}
	}
}

// Stack returns the current snapshot's stack, a read-only view valid
// until the next mutating call.
func (e *Engine) Stack() *stack.Stack { return e.store.Current().Stack }

// Heap returns the current snapshot's heap.
func (e *Engine) Heap() *heap.Heap { return e.store.Current().Heap }

// Terminal returns the current snapshot's terminal log.
func (e *Engine) Terminal() *terminal.Terminal { return e.store.Current().Terminal }

// CurrentLocation returns the source location the current snapshot was
// taken at.
func (e *Engine) CurrentLocation() Loc {
	if p, ok := e.store.Current().ProgramCounter.(pc); ok {
		return p.loc
	}
	return Loc{}
}

// StepIndex returns the cursor's position in history.
func (e *Engine) StepIndex() int { return e.store.Position() }

// HistoryLen returns the number of snapshots currently retained.
func (e *Engine) HistoryLen() int { return e.store.Len() }

// Faulted reports whether the engine is in the terminal Faulted state
// (step_forward refused until Restart).
func (e *Engine) Faulted() bool { return e.faulted }

// Halted reports whether main has already returned.
func (e *Engine) Halted() bool { return e.halted }
