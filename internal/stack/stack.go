// Package stack implements the engine's call stack: an ordered list of
// frames, each holding named local slots at synthetic addresses carved out
// of the memlayout stack region. Slots are byte-buffer-backed with a
// per-byte initialisation bitmap, the same shape internal/heap gives its
// blocks, so a stack-resident array or struct local is addressable and
// indexable exactly like a heap allocation — only its lifetime and address
// range differ. This generalises the teacher's fixed-width register file
// in emulator.go to named, typed, arbitrarily-sized local storage.
package stack

import (
	"fmt"

	"github.com/aicheye/crustty/internal/engerr"
	"github.com/aicheye/crustty/internal/memlayout"
	"github.com/aicheye/crustty/internal/value"
)

// Slot is one named local: a parameter or a block-scoped declaration,
// backed by its own byte buffer and initialisation bitmap.
type Slot struct {
	Name  string
	Addr  uint64
	Type  value.Type
	Const bool
	Bytes []byte
	Init  []bool
}

func (s *Slot) size() uint64 { return uint64(len(s.Bytes)) }

func (s *Slot) allInitialised(off, size uint64) bool {
	for i := off; i < off+size; i++ {
		if !s.Init[i] {
			return false
		}
	}
	return true
}

// CallSite locates the call expression that pushed a frame, for diagnostics
// and for step-trace attribution; duplicated from ast.Loc's shape so this
// package has no dependency on internal/ast.
type CallSite struct {
	Line int
	Col  int
}

// Frame is one activation record: the function's name, the location it was
// called from, and its locals in declaration order (so ExitScope can pop a
// block's declarations off the end without a separate scope stack).
type Frame struct {
	FuncName string
	CallSite CallSite

	order []string       // declaration order, for ExitScope truncation
	index map[string]int // name -> index into order/slots
	slots map[string]*Slot
}

func newFrame(funcName string, callSite CallSite) *Frame {
	return &Frame{
		FuncName: funcName,
		CallSite: callSite,
		index:    make(map[string]int),
		slots:    make(map[string]*Slot),
	}
}

// Clone deep-copies f; used by the snapshot store, which must never let two
// snapshots alias the same Slot's backing bytes.
func (f *Frame) Clone() *Frame {
	cp := newFrame(f.FuncName, f.CallSite)
	cp.order = append([]string(nil), f.order...)
	for k, v := range f.index {
		cp.index[k] = v
	}
	for k, s := range f.slots {
		sc := *s
		sc.Bytes = append([]byte(nil), s.Bytes...)
		sc.Init = append([]bool(nil), s.Init...)
		cp.slots[k] = &sc
	}
	return cp
}

// Mark returns the current declaration count, a bookmark ExitScope can
// truncate back to when a lexical block ends.
func (f *Frame) Mark() int { return len(f.order) }

// ExitScope removes every local declared since mark, releasing their
// synthetic addresses back to nothing in particular — stack addresses are
// never reused within a frame's lifetime, the same way the heap never
// recycles a freed block's address, so a stale pointer captured before
// ExitScope reliably reads as out-of-range rather than silently aliasing a
// newer local.
func (f *Frame) ExitScope(mark int) {
	for _, name := range f.order[mark:] {
		delete(f.slots, name)
		delete(f.index, name)
	}
	f.order = f.order[:mark]
}

// Slot looks up a local by name in this frame without the
// uninitialised/undeclared distinction ReadLocal enforces, for callers
// (e.g. lvalue resolution) that need the slot itself rather than its value.
func (f *Frame) Slot(name string) (*Slot, bool) {
	s, ok := f.slots[name]
	return s, ok
}

// SlotNames returns this frame's locals in declaration order, for callers
// that want to walk every slot (e.g. a verbose byte-dump of the frame).
func (f *Frame) SlotNames() []string {
	return append([]string(nil), f.order...)
}

// Stack is the full call stack plus the bump allocator handing out fresh
// synthetic addresses.
type Stack struct {
	frames   []*Frame
	nextAddr uint64
}

// New returns an empty stack.
func New() *Stack {
	return &Stack{nextAddr: memlayout.StackBase}
}

// Clone deep-copies the entire stack, including every frame and slot, for
// the snapshot store.
func (s *Stack) Clone() *Stack {
	cp := &Stack{nextAddr: s.nextAddr, frames: make([]*Frame, len(s.frames))}
	for i, f := range s.frames {
		cp.frames[i] = f.Clone()
	}
	return cp
}

// Depth returns the number of active frames.
func (s *Stack) Depth() int { return len(s.frames) }

// PushFrame activates a new frame for a function call.
func (s *Stack) PushFrame(funcName string, callSite CallSite) *Frame {
	f := newFrame(funcName, callSite)
	s.frames = append(s.frames, f)
	return f
}

// PopFrame deactivates and returns the top-most frame.
func (s *Stack) PopFrame() (*Frame, error) {
	if len(s.frames) == 0 {
		return nil, engerr.New(engerr.InvalidMemoryAccess, "pop_frame: stack is empty")
	}
	top := s.frames[len(s.frames)-1]
	s.frames = s.frames[:len(s.frames)-1]
	return top, nil
}

// Top returns the active frame, or nil if the stack is empty.
func (s *Stack) Top() *Frame {
	if len(s.frames) == 0 {
		return nil
	}
	return s.frames[len(s.frames)-1]
}

// Frames returns the frames from outermost (index 0) to innermost, for
// diagnostics/back-trace display.
func (s *Stack) Frames() []*Frame { return s.frames }

func (s *Stack) alloc(size uint64) (uint64, error) {
	addr := s.nextAddr
	if size == 0 {
		size = 1
	}
	if addr+size > memlayout.StackLimit || addr+size < addr {
		return 0, engerr.New(engerr.StackOverflow, "stack region exhausted")
	}
	s.nextAddr = addr + size
	return addr, nil
}

// DeclareLocal introduces a new local slot in the active frame at a fresh
// address, entirely uninitialised, and returns its address. Redeclaring a
// name already visible in the current frame is a TypeError — the parser,
// not this layer, is responsible for shadowing semantics across frames.
func (s *Stack) DeclareLocal(name string, t value.Type, types *value.TypeTable, isConst bool) (uint64, error) {
	f := s.Top()
	if f == nil {
		return 0, engerr.New(engerr.InvalidMemoryAccess, "declare_local: no active frame")
	}
	if _, exists := f.slots[name]; exists {
		return 0, engerr.WithName(engerr.TypeError, name).Wrap(engerr.Loc{}, fmt.Errorf("%q already declared in this scope", name))
	}
	size, err := value.Sizeof(t, types)
	if err != nil {
		return 0, engerr.New(engerr.TypeError, err.Error())
	}
	storageSize := size
	if storageSize == 0 {
		storageSize = 1 // structs/arrays of zero declared fields still get a distinct address
	}
	addr, err := s.alloc(storageSize)
	if err != nil {
		return 0, err
	}
	f.slots[name] = &Slot{
		Name:  name,
		Addr:  addr,
		Type:  t,
		Const: isConst,
		Bytes: make([]byte, storageSize),
		Init:  make([]bool, storageSize),
	}
	f.index[name] = len(f.order)
	f.order = append(f.order, name)
	return addr, nil
}

// AssignLocal overwrites the whole value of an already-declared local by
// name in the active frame, enforcing const-ness and encoding v into the
// slot's backing bytes.
func (s *Stack) AssignLocal(name string, v value.Value, types *value.TypeTable) error {
	f := s.Top()
	if f == nil {
		return engerr.New(engerr.InvalidMemoryAccess, "assign_local: no active frame")
	}
	slot, ok := f.slots[name]
	if !ok {
		return engerr.WithName(engerr.UndeclaredIdentifier, name)
	}
	if slot.Const && slot.allInitialised(0, slot.size()) {
		return engerr.WithName(engerr.ConstModification, name)
	}
	encoded, err := value.Encode(v, slot.Type, types)
	if err != nil {
		return engerr.New(engerr.TypeError, err.Error())
	}
	copy(slot.Bytes, encoded)
	for i := range slot.Init {
		slot.Init[i] = true
	}
	return nil
}

// ReadLocal reads the current value of a local in the active frame,
// distinguishing "never declared" (UndeclaredIdentifier, almost certainly a
// parser bug handed to us) from "declared but never fully written"
// (UninitialisedRead, a genuine program bug the debugger surfaces).
func (s *Stack) ReadLocal(name string, types *value.TypeTable) (value.Value, error) {
	f := s.Top()
	if f == nil {
		return value.Value{}, engerr.New(engerr.InvalidMemoryAccess, "read_local: no active frame")
	}
	slot, ok := f.slots[name]
	if !ok {
		return value.Value{}, engerr.WithName(engerr.UndeclaredIdentifier, name)
	}
	if !slot.allInitialised(0, slot.size()) {
		return value.Value{}, engerr.WithName(engerr.UninitialisedRead, name)
	}
	v, err := value.Decode(slot.Bytes, slot.Type, types)
	if err != nil {
		return value.Value{}, engerr.New(engerr.TypeError, err.Error())
	}
	return v, nil
}

// AddressOf returns the synthetic address of a local in the active frame,
// which is valid even if the local has never been assigned — taking the
// address of an uninitialised local is legal C, reading through it is not.
func (s *Stack) AddressOf(name string) (uint64, error) {
	f := s.Top()
	if f == nil {
		return 0, engerr.New(engerr.InvalidMemoryAccess, "address_of: no active frame")
	}
	slot, ok := f.slots[name]
	if !ok {
		return 0, engerr.WithName(engerr.UndeclaredIdentifier, name)
	}
	return slot.Addr, nil
}

// ResolveAddress finds the slot backing a synthetic address, searching every
// active frame (innermost first) since a pointer may have been formed from
// an outer frame's local before a nested call. It returns (nil, false) if
// no live slot owns addr — e.g. the frame that declared it has since been
// popped — which the engine reports as InvalidMemoryAccess, not
// UseAfterFree (that kind is reserved for the heap's tombstone lifecycle).
func (s *Stack) ResolveAddress(addr uint64) (*Slot, bool) {
	for i := len(s.frames) - 1; i >= 0; i-- {
		for _, slot := range s.frames[i].slots {
			if addr >= slot.Addr && addr < slot.Addr+slot.size() {
				return slot, true
			}
		}
	}
	return nil, false
}

// Read copies size bytes starting at addr out of whichever slot owns that
// range, failing with UninitialisedRead if any requested byte was never
// written, or InvalidMemoryAccess if no single slot's range covers
// [addr, addr+size).
func (s *Stack) Read(addr uint64, size uint64) ([]byte, error) {
	slot, ok := s.ResolveAddress(addr)
	if !ok || addr+size > slot.Addr+slot.size() {
		return nil, engerr.WithAddr(engerr.InvalidMemoryAccess, addr)
	}
	off := addr - slot.Addr
	if !slot.allInitialised(off, size) {
		return nil, engerr.WithAddr(engerr.UninitialisedRead, addr)
	}
	out := make([]byte, size)
	copy(out, slot.Bytes[off:off+size])
	return out, nil
}

// Write copies data into whichever slot owns addr's range, marking the
// written bytes initialised. It does not distinguish const-protected
// sub-object writes from whole-local AssignLocal const checks — const
// enforcement for address-based writes is the engine's responsibility,
// since only the engine knows whether the lvalue expression that produced
// addr was itself const-qualified.
func (s *Stack) Write(addr uint64, data []byte) error {
	slot, ok := s.ResolveAddress(addr)
	size := uint64(len(data))
	if !ok || addr+size > slot.Addr+slot.size() {
		return engerr.WithAddr(engerr.InvalidMemoryAccess, addr)
	}
	off := addr - slot.Addr
	copy(slot.Bytes[off:off+size], data)
	for i := off; i < off+size; i++ {
		slot.Init[i] = true
	}
	return nil
}
