// Package memlayout fixes the disjoint stack/heap address ranges every
// higher-level component addresses into, the same way the teacher's
// emulator package fixes CodeBase/StackBase/HeapBase constants for its
// ARM64 address space instead of letting each subsystem invent its own
// numbering.
package memlayout

const (
	// StackBase is the first synthetic address handed out to a stack slot.
	StackBase uint64 = 0x0000_7000_0000_0000
	// StackLimit is one past the last address the stack region may use.
	StackLimit uint64 = 0x0000_7800_0000_0000

	// HeapBase is the first address a heap allocation may receive.
	HeapBase uint64 = 0x0000_9000_0000_0000
	// HeapLimit is one past the last address the heap region may use.
	HeapLimit uint64 = 0x0000_9800_0000_0000
)

// InStack reports whether addr falls within the stack's address range.
func InStack(addr uint64) bool {
	return addr >= StackBase && addr < StackLimit
}

// InHeap reports whether addr falls within the heap's address range.
func InHeap(addr uint64) bool {
	return addr >= HeapBase && addr < HeapLimit
}
