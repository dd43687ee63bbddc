// Package heap implements the byte-addressed heap: a bump allocator handing
// out blocks that are never coalesced or reused, a per-byte initialisation
// bitmap so a read of never-written memory is caught rather than returning
// garbage, and a Live/Freed tombstone lifecycle so a pointer into a freed
// block reads as UseAfterFree forever rather than silently aliasing a later
// allocation — the debugger's reversibility guarantee depends on addresses
// never being recycled.
package heap

import (
	"github.com/aicheye/crustty/internal/engerr"
	"github.com/aicheye/crustty/internal/memlayout"
	"github.com/aicheye/crustty/internal/value"
)

// State is a heap block's position in its Live -> Freed lifecycle.
type State int

const (
	Live State = iota
	Freed
)

func (s State) String() string {
	if s == Freed {
		return "Freed"
	}
	return "Live"
}

// Block is one heap allocation: its address range, backing bytes, per-byte
// initialisation bitmap, and lifecycle state. A Block is never removed from
// the Heap's block list, even after Freed — it becomes a tombstone.
//
// ElemType is display-only: malloc itself has no notion of a pointee type
// (it only ever returns void*), but the cast that immediately wraps almost
// every malloc call in practice (e.g. (int*)malloc(...)) tells us what the
// program actually thinks it allocated. SetElemType records that so a
// diagnostic view can show it; it never affects allocation, bounds, or
// fault behaviour.
type Block struct {
	Addr     uint64
	Size     uint64
	Bytes    []byte
	Init     []bool
	State    State
	ElemType value.Type
}

func (b *Block) contains(addr uint64, size uint64) bool {
	return addr >= b.Addr && size <= b.Size && addr-b.Addr <= b.Size-size
}

func (b *Block) clone() *Block {
	cp := &Block{Addr: b.Addr, Size: b.Size, State: b.State, ElemType: b.ElemType}
	cp.Bytes = append([]byte(nil), b.Bytes...)
	cp.Init = append([]bool(nil), b.Init...)
	return cp
}

// Heap owns every allocation ever made during execution, live or freed.
type Heap struct {
	blocks   []*Block
	byAddr   map[uint64]*Block // keyed by block base address, for O(1) free/lookup
	nextAddr uint64
}

// New returns an empty heap.
func New() *Heap {
	return &Heap{byAddr: make(map[uint64]*Block), nextAddr: memlayout.HeapBase}
}

// Clone deep-copies the entire heap, including every live and freed block,
// for the snapshot store.
func (h *Heap) Clone() *Heap {
	cp := &Heap{byAddr: make(map[uint64]*Block, len(h.blocks)), nextAddr: h.nextAddr}
	cp.blocks = make([]*Block, len(h.blocks))
	for i, b := range h.blocks {
		nb := b.clone()
		cp.blocks[i] = nb
		cp.byAddr[nb.Addr] = nb
	}
	return cp
}

// LiveCount returns the number of blocks currently Live, the figure the
// spec's leak check compares against zero at program exit.
func (h *Heap) LiveCount() int {
	n := 0
	for _, b := range h.blocks {
		if b.State == Live {
			n++
		}
	}
	return n
}

// Blocks returns every block, live and freed, oldest first, for diagnostics.
func (h *Heap) Blocks() []*Block { return h.blocks }

// Alloc reserves a fresh, never-before-used address range of size bytes,
// entirely uninitialised. malloc(0) is accepted and returns a distinct
// nonzero address owning zero bytes, matching the teacher's bump allocator
// treating every call as a fresh reservation regardless of size.
func (h *Heap) Alloc(size uint64) (uint64, error) {
	addr := h.nextAddr
	if addr+size < addr || addr+size > memlayout.HeapLimit {
		return 0, engerr.New(engerr.OutOfMemory, "heap region exhausted")
	}
	h.nextAddr = addr + size
	if size == 0 {
		h.nextAddr++ // still advance, so a zero-size block never shares its address with the next one
	}
	b := &Block{Addr: addr, Size: size, Bytes: make([]byte, size), Init: make([]bool, size), State: Live, ElemType: value.TypeVoid}
	h.blocks = append(h.blocks, b)
	h.byAddr[addr] = b
	return addr, nil
}

// SetElemType records the declared element type of the block based at addr,
// for display purposes only. It's a no-op if addr isn't a block's base
// address (an interior pointer cast says nothing about the allocation as a
// whole).
func (h *Heap) SetElemType(addr uint64, t value.Type) {
	if b, ok := h.byAddr[addr]; ok {
		b.ElemType = t
	}
}

// blockFor returns the block owning addr, if any, live or freed.
func (h *Heap) blockFor(addr uint64) *Block {
	for _, b := range h.blocks {
		if addr >= b.Addr && addr < b.Addr+b.Size {
			return b
		}
		if b.Size == 0 && addr == b.Addr {
			return b
		}
	}
	return nil
}

// Free retires a block, identified by the exact address malloc returned.
// Freeing an address that was never a block base is InvalidFree; freeing an
// address whose block is already Freed is DoubleFree — both are reported
// distinctly per the spec's error taxonomy. The block's bytes are retained
// but its State flips to Freed permanently; it is never removed from the
// block list or reused by a later Alloc.
func (h *Heap) Free(addr uint64) error {
	b, ok := h.byAddr[addr]
	if !ok {
		return engerr.WithAddr(engerr.InvalidFree, addr)
	}
	if b.State == Freed {
		return engerr.WithAddr(engerr.DoubleFree, addr)
	}
	b.State = Freed
	return nil
}

// Read copies size bytes starting at addr into a fresh slice, failing with
// UseAfterFree, InvalidMemoryAccess, BufferOverrun, or UninitialisedRead as
// appropriate. Every byte in the requested range must be initialised; a
// partially-initialised read (e.g. reading a struct with one written field)
// is still a spec-level UninitialisedRead, not a partial success.
func (h *Heap) Read(addr uint64, size uint64) ([]byte, error) {
	b := h.blockFor(addr)
	if b == nil {
		return nil, engerr.WithAddr(engerr.InvalidMemoryAccess, addr)
	}
	if b.State == Freed {
		return nil, engerr.WithAddr(engerr.UseAfterFree, addr)
	}
	if !b.contains(addr, size) {
		return nil, engerr.WithAddr(engerr.BufferOverrun, addr)
	}
	off := addr - b.Addr
	for i := uint64(0); i < size; i++ {
		if !b.Init[off+i] {
			return nil, engerr.WithAddr(engerr.UninitialisedRead, addr)
		}
	}
	out := make([]byte, size)
	copy(out, b.Bytes[off:off+size])
	return out, nil
}

// Write copies data into the block owning addr, marking every written byte
// initialised. Writing through a freed block's address is UseAfterFree;
// writing past a live block's bounds is BufferOverrun.
func (h *Heap) Write(addr uint64, data []byte) error {
	b := h.blockFor(addr)
	if b == nil {
		return engerr.WithAddr(engerr.InvalidMemoryAccess, addr)
	}
	if b.State == Freed {
		return engerr.WithAddr(engerr.UseAfterFree, addr)
	}
	size := uint64(len(data))
	if !b.contains(addr, size) {
		return engerr.WithAddr(engerr.BufferOverrun, addr)
	}
	off := addr - b.Addr
	copy(b.Bytes[off:off+size], data)
	for i := uint64(0); i < size; i++ {
		b.Init[off+i] = true
	}
	return nil
}

// BlockFor exposes block lookup (live or freed) for callers that need the
// owning block itself — e.g. pointer-arithmetic bounds checks that must
// compare against the same block's extent, never across blocks.
func (h *Heap) BlockFor(addr uint64) (*Block, bool) {
	b := h.blockFor(addr)
	return b, b != nil
}
