package snapshot

import (
	"errors"
	"testing"

	"github.com/aicheye/crustty/internal/engerr"
	"github.com/aicheye/crustty/internal/heap"
	"github.com/aicheye/crustty/internal/stack"
	"github.com/aicheye/crustty/internal/terminal"
	"github.com/aicheye/crustty/internal/value"
)

func freshState(pc int) State {
	s := stack.New()
	s.PushFrame("main", stack.CallSite{})
	return State{Stack: s, Heap: heap.New(), Terminal: terminal.New(""), ProgramCounter: pc}
}

func TestPushAdvancesCursorAndHistory(t *testing.T) {
	store := NewStore(freshState(0), 0)
	if err := store.Push(freshState(1)); err != nil {
		t.Fatalf("push: %v", err)
	}
	if store.Len() != 2 || store.Position() != 1 {
		t.Fatalf("expected len=2 pos=1, got len=%d pos=%d", store.Len(), store.Position())
	}
}

func TestStepBackwardThenForwardReplaysIdenticalState(t *testing.T) {
	store := NewStore(freshState(0), 0)
	if err := store.Push(freshState(1)); err != nil {
		t.Fatalf("push: %v", err)
	}
	prev, err := store.StepBackward()
	if err != nil {
		t.Fatalf("step_backward: %v", err)
	}
	if prev.ProgramCounter.(int) != 0 {
		t.Fatalf("expected pc=0 after stepping back, got %v", prev.ProgramCounter)
	}
	next, ok := store.StepForward()
	if !ok {
		t.Fatalf("expected step_forward to succeed replaying history")
	}
	if next.ProgramCounter.(int) != 1 {
		t.Fatalf("expected pc=1 after stepping forward, got %v", next.ProgramCounter)
	}
}

func TestStepBackwardAtBeginningErrors(t *testing.T) {
	store := NewStore(freshState(0), 0)
	_, err := store.StepBackward()
	var re *engerr.RuntimeError
	if !errors.As(err, &re) || re.Kind != engerr.AtBeginning {
		t.Fatalf("expected AtBeginning, got %v", err)
	}
}

func TestStepForwardAtEndReturnsFalse(t *testing.T) {
	store := NewStore(freshState(0), 0)
	_, ok := store.StepForward()
	if ok {
		t.Fatalf("expected step_forward at end of history to return false")
	}
}

func TestPushTruncatesAbandonedFuture(t *testing.T) {
	store := NewStore(freshState(0), 0)
	if err := store.Push(freshState(1)); err != nil {
		t.Fatalf("push: %v", err)
	}
	if err := store.Push(freshState(2)); err != nil {
		t.Fatalf("push: %v", err)
	}
	if _, err := store.StepBackward(); err != nil {
		t.Fatalf("step_backward: %v", err)
	}
	if _, err := store.StepBackward(); err != nil {
		t.Fatalf("step_backward: %v", err)
	}
	// Cursor is now at pc=0. Taking a new step instead of replaying
	// abandons the old pc=1/pc=2 future.
	if err := store.Push(freshState(99)); err != nil {
		t.Fatalf("push: %v", err)
	}
	if store.Len() != 2 {
		t.Fatalf("expected abandoned future to be truncated, len=%d", store.Len())
	}
	if _, ok := store.StepForward(); ok {
		t.Fatalf("expected no forward history after truncation")
	}
}

func TestRestartResetsToInitialSnapshot(t *testing.T) {
	store := NewStore(freshState(0), 0)
	if err := store.Push(freshState(1)); err != nil {
		t.Fatalf("push: %v", err)
	}
	if err := store.Push(freshState(2)); err != nil {
		t.Fatalf("push: %v", err)
	}
	initial := store.Restart()
	if initial.ProgramCounter.(int) != 0 {
		t.Fatalf("expected restart to return pc=0, got %v", initial.ProgramCounter)
	}
	if store.Len() != 1 || store.Position() != 0 {
		t.Fatalf("expected history collapsed to just the initial snapshot, len=%d pos=%d", store.Len(), store.Position())
	}
}

func TestSnapshotLimitExceededLeavesStoreUnchanged(t *testing.T) {
	initial := freshState(0)
	store := NewStore(initial, 1) // absurdly small ceiling
	lenBefore := store.Len()
	posBefore := store.Position()

	err := store.Push(freshState(1))
	var re *engerr.RuntimeError
	if !errors.As(err, &re) || re.Kind != engerr.SnapshotLimitExceeded {
		t.Fatalf("expected SnapshotLimitExceeded, got %v", err)
	}
	if store.Len() != lenBefore || store.Position() != posBefore {
		t.Fatalf("expected store left unchanged on rejected push, got len=%d pos=%d", store.Len(), store.Position())
	}
}

func TestDeepCloneIndependence(t *testing.T) {
	s := stack.New()
	s.PushFrame("main", stack.CallSite{})
	s.DeclareLocal("x", value.TypeInt, nil, false)
	s.AssignLocal("x", value.MakeInt(1), nil)

	h := heap.New()
	addr, _ := h.Alloc(4)
	h.Write(addr, []byte{1, 2, 3, 4})

	term := terminal.New("")
	term.Write("hello\n", 0)

	initial := State{Stack: s.Clone(), Heap: h.Clone(), Terminal: term.Clone(), ProgramCounter: 0}
	store := NewStore(initial, 0)

	// Mutate the live objects after snapshotting; the stored snapshot must
	// be unaffected since Push/NewStore only ever retain clones.
	s.AssignLocal("x", value.MakeInt(999), nil)
	h.Write(addr, []byte{9, 9, 9, 9})
	term.Write("goodbye\n", 1)

	got, err := store.Current().Stack.ReadLocal("x", nil)
	if err != nil {
		t.Fatalf("read_local: %v", err)
	}
	if got.I != 1 {
		t.Fatalf("snapshot stack mutated by later change to live stack: %d", got.I)
	}
	hb, err := store.Current().Heap.Read(addr, 4)
	if err != nil {
		t.Fatalf("heap read: %v", err)
	}
	if string(hb) != "\x01\x02\x03\x04" {
		t.Fatalf("snapshot heap mutated by later change to live heap: %v", hb)
	}
	if got := store.Current().Terminal.FullOutput(); got != "hello\n" {
		t.Fatalf("snapshot terminal mutated by later write to live terminal: %q", got)
	}
}
