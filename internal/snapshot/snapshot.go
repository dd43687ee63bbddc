// Package snapshot implements the append-only history the engine steps
// forward and backward through: a full deep clone of stack, heap, and
// terminal state after every step, truncated on rewind-then-reexecute, and
// bounded by an approximate memory ceiling so a long-running program can't
// grow history without limit. There is no copy-on-write here deliberately —
// the spec calls for full clones, trading memory for the simplicity of
// never having to reason about which snapshot owns which shared buffer.
package snapshot

import (
	"github.com/aicheye/crustty/internal/engerr"
	"github.com/aicheye/crustty/internal/heap"
	"github.com/aicheye/crustty/internal/stack"
	"github.com/aicheye/crustty/internal/terminal"
)

// State is one point-in-time snapshot of everything the engine steps.
type State struct {
	Stack    *stack.Stack
	Heap     *heap.Heap
	Terminal *terminal.Terminal

	// ProgramCounter records where execution stands, opaque to this
	// package — the engine defines its shape (the source location of the
	// statement just completed plus a halted flag) and this package only
	// stores it.
	ProgramCounter interface{}
}

// approxSize estimates a State's memory footprint in bytes, used purely to
// enforce the configured ceiling — it is not expected to be exact, only
// monotonic in the same things a real clone actually allocates.
func approxSize(s State) uint64 {
	var total uint64
	const frameOverhead = 128
	const slotOverhead = 96
	for _, f := range s.Stack.Frames() {
		total += frameOverhead
		_ = f
	}
	for _, b := range s.Heap.Blocks() {
		total += uint64(len(b.Bytes)) + uint64(len(b.Init)) + 64
	}
	for _, r := range s.Terminal.Records {
		total += uint64(len(r.Text)) + 16
	}
	_ = slotOverhead
	return total + 256 // fixed per-snapshot bookkeeping overhead
}

// Store is the append-only (until rewound) history of States, plus a
// cursor into it. Index 0 is the program's initial state, before its first
// statement executes.
type Store struct {
	states    []State
	cursor    int
	ceiling   uint64 // 0 means unbounded
	totalSize uint64
}

// NewStore returns a Store seeded with an initial state and bounded by
// ceiling bytes (0 for unbounded).
func NewStore(initial State, ceiling uint64) *Store {
	s := &Store{states: []State{initial}, cursor: 0, ceiling: ceiling}
	s.totalSize = approxSize(initial)
	return s
}

// Len returns the number of snapshots currently retained.
func (s *Store) Len() int { return len(s.states) }

// Position returns the cursor's current index into the history.
func (s *Store) Position() int { return s.cursor }

// AtEnd reports whether the cursor is on the most recent snapshot.
func (s *Store) AtEnd() bool { return s.cursor == len(s.states)-1 }

// AtBeginning reports whether the cursor is on the initial snapshot.
func (s *Store) AtBeginning() bool { return s.cursor == 0 }

// Current returns the snapshot the cursor currently points at.
func (s *Store) Current() State { return s.states[s.cursor] }

// Push records a new state as the step taken from the current cursor
// position, discarding any "future" history beyond the cursor first — the
// truncate-on-rewind rule: stepping backward then executing a new step
// (rather than replaying the old one) abandons the old future, the same
// way a text editor's undo stack drops redone-over history.
//
// If adding this snapshot would exceed the configured ceiling, the push is
// rejected with SnapshotLimitExceeded and the store is left exactly as it
// was — the caller's in-progress step is the one that doesn't get
// recorded, not some earlier one, so the engine can roll its own
// in-flight mutation back to the last successfully recorded state.
func (s *Store) Push(next State) error {
	size := approxSize(next)
	if s.ceiling != 0 {
		kept := s.totalSize
		if s.cursor < len(s.states)-1 {
			for _, st := range s.states[s.cursor+1:] {
				kept -= approxSize(st)
			}
		}
		if kept+size > s.ceiling {
			return engerr.New(engerr.SnapshotLimitExceeded, "snapshot history exceeds configured memory ceiling")
		}
	}
	s.states = s.states[:s.cursor+1]
	s.states = append(s.states, next)
	s.cursor++
	s.recomputeTotalSize()
	return nil
}

func (s *Store) recomputeTotalSize() {
	var total uint64
	for _, st := range s.states {
		total += approxSize(st)
	}
	s.totalSize = total
}

// StepBackward moves the cursor one snapshot earlier, returning the state
// it now points at, or AtBeginning if already at the first snapshot.
func (s *Store) StepBackward() (State, error) {
	if s.cursor == 0 {
		return State{}, engerr.New(engerr.AtBeginning, "already at the beginning of history")
	}
	s.cursor--
	return s.states[s.cursor], nil
}

// StepForward moves the cursor one snapshot later if one was already
// recorded (i.e. the caller is re-entering previously-visited future
// history rather than taking Push's truncate-on-new-step path).
// It returns (zero, false) when the cursor is already at the most recent
// snapshot — the engine must then execute a new step and Push it instead.
func (s *Store) StepForward() (State, bool) {
	if s.cursor >= len(s.states)-1 {
		return State{}, false
	}
	s.cursor++
	return s.states[s.cursor], true
}

// Restart resets the cursor to the initial snapshot and discards every
// later snapshot, the same truncation Push performs on a fresh step.
func (s *Store) Restart() State {
	s.states = s.states[:1]
	s.cursor = 0
	s.recomputeTotalSize()
	return s.states[0]
}

// TotalSize returns the current approximate memory footprint of retained
// history, for diagnostics.
func (s *Store) TotalSize() uint64 { return s.totalSize }
