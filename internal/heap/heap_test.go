package heap

import (
	"errors"
	"testing"

	"github.com/aicheye/crustty/internal/engerr"
)

func TestAllocWriteRead(t *testing.T) {
	h := New()
	addr, err := h.Alloc(4)
	if err != nil {
		t.Fatalf("alloc: %v", err)
	}
	if err := h.Write(addr, []byte{1, 2, 3, 4}); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := h.Read(addr, 4)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(got) != "\x01\x02\x03\x04" {
		t.Fatalf("unexpected bytes: %v", got)
	}
}

func TestReadUninitialisedByte(t *testing.T) {
	h := New()
	addr, _ := h.Alloc(4)
	if err := h.Write(addr, []byte{1, 2}); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, err := h.Read(addr, 4)
	var re *engerr.RuntimeError
	if !errors.As(err, &re) || re.Kind != engerr.UninitialisedRead {
		t.Fatalf("expected UninitialisedRead reading partially-written block, got %v", err)
	}
}

func TestDoubleFree(t *testing.T) {
	h := New()
	addr, _ := h.Alloc(4)
	if err := h.Free(addr); err != nil {
		t.Fatalf("first free: %v", err)
	}
	err := h.Free(addr)
	var re *engerr.RuntimeError
	if !errors.As(err, &re) || re.Kind != engerr.DoubleFree {
		t.Fatalf("expected DoubleFree, got %v", err)
	}
}

func TestInvalidFreeOnNonBlockAddress(t *testing.T) {
	h := New()
	err := h.Free(0xdeadbeef)
	var re *engerr.RuntimeError
	if !errors.As(err, &re) || re.Kind != engerr.InvalidFree {
		t.Fatalf("expected InvalidFree, got %v", err)
	}
}

func TestUseAfterFreeOnReadAndWrite(t *testing.T) {
	h := New()
	addr, _ := h.Alloc(4)
	if err := h.Write(addr, []byte{1, 2, 3, 4}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := h.Free(addr); err != nil {
		t.Fatalf("free: %v", err)
	}

	_, readErr := h.Read(addr, 1)
	var re *engerr.RuntimeError
	if !errors.As(readErr, &re) || re.Kind != engerr.UseAfterFree {
		t.Fatalf("expected UseAfterFree on read, got %v", readErr)
	}

	writeErr := h.Write(addr, []byte{9})
	if !errors.As(writeErr, &re) || re.Kind != engerr.UseAfterFree {
		t.Fatalf("expected UseAfterFree on write, got %v", writeErr)
	}
}

func TestBufferOverrun(t *testing.T) {
	h := New()
	addr, _ := h.Alloc(4)
	_, err := h.Read(addr, 5)
	var re *engerr.RuntimeError
	if !errors.As(err, &re) || re.Kind != engerr.BufferOverrun {
		t.Fatalf("expected BufferOverrun, got %v", err)
	}
}

func TestFreedBlockNeverReused(t *testing.T) {
	h := New()
	a1, _ := h.Alloc(8)
	if err := h.Free(a1); err != nil {
		t.Fatalf("free: %v", err)
	}
	a2, _ := h.Alloc(8)
	if a2 == a1 {
		t.Fatalf("expected a fresh address after free, addresses reused: %d", a2)
	}
	if h.LiveCount() != 1 {
		t.Fatalf("expected exactly one live block, got %d", h.LiveCount())
	}
	if len(h.Blocks()) != 2 {
		t.Fatalf("expected the freed block to remain as a tombstone, got %d total blocks", len(h.Blocks()))
	}
}

func TestCloneIsIndependentDeepCopy(t *testing.T) {
	h := New()
	addr, _ := h.Alloc(4)
	if err := h.Write(addr, []byte{1, 2, 3, 4}); err != nil {
		t.Fatalf("write: %v", err)
	}

	clone := h.Clone()
	if err := h.Write(addr, []byte{9, 9, 9, 9}); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := clone.Read(addr, 4)
	if err != nil {
		t.Fatalf("read on clone: %v", err)
	}
	if string(got) != "\x01\x02\x03\x04" {
		t.Fatalf("clone mutated by later write to original: %v", got)
	}
}

func TestLiveCountZeroAfterAllFreed(t *testing.T) {
	h := New()
	a1, _ := h.Alloc(4)
	a2, _ := h.Alloc(8)
	if err := h.Free(a1); err != nil {
		t.Fatalf("free a1: %v", err)
	}
	if err := h.Free(a2); err != nil {
		t.Fatalf("free a2: %v", err)
	}
	if h.LiveCount() != 0 {
		t.Fatalf("expected zero live blocks, got %d", h.LiveCount())
	}
}
