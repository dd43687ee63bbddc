package stack

import (
	"errors"
	"testing"

	"github.com/aicheye/crustty/internal/engerr"
	"github.com/aicheye/crustty/internal/value"
)

func TestDeclareAssignReadLocal(t *testing.T) {
	s := New()
	s.PushFrame("main", CallSite{})

	addr, err := s.DeclareLocal("x", value.TypeInt, nil, false)
	if err != nil {
		t.Fatalf("declare_local: %v", err)
	}
	if addr == 0 {
		t.Fatalf("expected nonzero synthetic address")
	}

	if _, err := s.ReadLocal("x", nil); err == nil {
		t.Fatalf("expected UninitialisedRead before first assignment")
	} else {
		var re *engerr.RuntimeError
		if !errors.As(err, &re) || re.Kind != engerr.UninitialisedRead {
			t.Fatalf("expected UninitialisedRead, got %v", err)
		}
	}

	if err := s.AssignLocal("x", value.MakeInt(42), nil); err != nil {
		t.Fatalf("assign_local: %v", err)
	}
	got, err := s.ReadLocal("x", nil)
	if err != nil {
		t.Fatalf("read_local after assign: %v", err)
	}
	if got.Kind != value.Int || got.I != 42 {
		t.Fatalf("expected Int(42), got %+v", got)
	}
}

func TestReadUndeclaredIdentifier(t *testing.T) {
	s := New()
	s.PushFrame("main", CallSite{})
	_, err := s.ReadLocal("nope", nil)
	var re *engerr.RuntimeError
	if !errors.As(err, &re) || re.Kind != engerr.UndeclaredIdentifier {
		t.Fatalf("expected UndeclaredIdentifier, got %v", err)
	}
}

func TestConstModificationRejected(t *testing.T) {
	s := New()
	s.PushFrame("main", CallSite{})
	if _, err := s.DeclareLocal("c", value.TypeInt, nil, true); err != nil {
		t.Fatalf("declare_local: %v", err)
	}
	if err := s.AssignLocal("c", value.MakeInt(1), nil); err != nil {
		t.Fatalf("first assignment to const-at-declaration should succeed: %v", err)
	}
	err := s.AssignLocal("c", value.MakeInt(2), nil)
	var re *engerr.RuntimeError
	if !errors.As(err, &re) || re.Kind != engerr.ConstModification {
		t.Fatalf("expected ConstModification, got %v", err)
	}
}

func TestAddressOfAndResolveAddress(t *testing.T) {
	s := New()
	s.PushFrame("main", CallSite{})
	addr, err := s.DeclareLocal("x", value.TypeInt, nil, false)
	if err != nil {
		t.Fatalf("declare_local: %v", err)
	}
	gotAddr, err := s.AddressOf("x")
	if err != nil {
		t.Fatalf("address_of: %v", err)
	}
	if gotAddr != addr {
		t.Fatalf("address_of mismatch: %d != %d", gotAddr, addr)
	}
	slot, ok := s.ResolveAddress(addr)
	if !ok || slot.Name != "x" {
		t.Fatalf("resolve_address failed to find slot x")
	}
}

func TestAddressOfUninitialisedIsLegal(t *testing.T) {
	s := New()
	s.PushFrame("main", CallSite{})
	if _, err := s.DeclareLocal("x", value.TypeInt, nil, false); err != nil {
		t.Fatalf("declare_local: %v", err)
	}
	if _, err := s.AddressOf("x"); err != nil {
		t.Fatalf("address_of an uninitialised local should be legal: %v", err)
	}
}

func TestDistinctAddressesAcrossDeclarations(t *testing.T) {
	s := New()
	s.PushFrame("main", CallSite{})
	a1, _ := s.DeclareLocal("a", value.TypeInt, nil, false)
	a2, _ := s.DeclareLocal("b", value.TypeChar, nil, false)
	if a1 == a2 {
		t.Fatalf("expected distinct addresses, got %d and %d", a1, a2)
	}
}

func TestExitScopeRemovesLocalsButNeverReusesAddress(t *testing.T) {
	s := New()
	s.PushFrame("main", CallSite{})
	mark := s.Top().Mark()
	addrInner, err := s.DeclareLocal("inner", value.TypeInt, nil, false)
	if err != nil {
		t.Fatalf("declare_local: %v", err)
	}
	s.Top().ExitScope(mark)

	if _, err := s.ReadLocal("inner", nil); err == nil {
		t.Fatalf("expected inner to be gone after ExitScope")
	}

	addrNext, err := s.DeclareLocal("other", value.TypeInt, nil, false)
	if err != nil {
		t.Fatalf("declare_local after ExitScope: %v", err)
	}
	if addrNext == addrInner {
		t.Fatalf("expected a fresh address, got reused address %d", addrNext)
	}
}

func TestPushPopFrame(t *testing.T) {
	s := New()
	s.PushFrame("main", CallSite{})
	s.PushFrame("helper", CallSite{Line: 10, Col: 3})
	if s.Depth() != 2 {
		t.Fatalf("expected depth 2, got %d", s.Depth())
	}
	top, err := s.PopFrame()
	if err != nil {
		t.Fatalf("pop_frame: %v", err)
	}
	if top.FuncName != "helper" {
		t.Fatalf("expected to pop helper frame, got %s", top.FuncName)
	}
	if s.Depth() != 1 {
		t.Fatalf("expected depth 1 after pop, got %d", s.Depth())
	}
}

func TestPopFrameOnEmptyStackErrors(t *testing.T) {
	s := New()
	if _, err := s.PopFrame(); err == nil {
		t.Fatalf("expected error popping an empty stack")
	}
}

func TestCloneIsIndependentDeepCopy(t *testing.T) {
	s := New()
	s.PushFrame("main", CallSite{})
	if _, err := s.DeclareLocal("x", value.TypeInt, nil, false); err != nil {
		t.Fatalf("declare_local: %v", err)
	}
	if err := s.AssignLocal("x", value.MakeInt(1), nil); err != nil {
		t.Fatalf("assign_local: %v", err)
	}

	clone := s.Clone()
	if err := s.AssignLocal("x", value.MakeInt(99), nil); err != nil {
		t.Fatalf("assign_local: %v", err)
	}

	got, err := clone.ReadLocal("x", nil)
	if err != nil {
		t.Fatalf("read_local on clone: %v", err)
	}
	if got.I != 1 {
		t.Fatalf("clone should be unaffected by later mutation of original, got %d", got.I)
	}
}

func TestRedeclareInSameScopeIsTypeError(t *testing.T) {
	s := New()
	s.PushFrame("main", CallSite{})
	if _, err := s.DeclareLocal("x", value.TypeInt, nil, false); err != nil {
		t.Fatalf("declare_local: %v", err)
	}
	_, err := s.DeclareLocal("x", value.TypeInt, nil, false)
	var re *engerr.RuntimeError
	if !errors.As(err, &re) || re.Kind != engerr.TypeError {
		t.Fatalf("expected TypeError on redeclaration, got %v", err)
	}
}

func TestArrayLocalIsByteAddressableForElementAccess(t *testing.T) {
	s := New()
	s.PushFrame("main", CallSite{})
	arrType := value.ArrayType(value.TypeInt, 5)
	base, err := s.DeclareLocal("arr", arrType, nil, false)
	if err != nil {
		t.Fatalf("declare_local: %v", err)
	}

	elemAddr := base + 2*4 // arr[2]
	encoded, err := value.Encode(value.MakeInt(7), value.TypeInt, nil)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := s.Write(elemAddr, encoded); err != nil {
		t.Fatalf("write arr[2]: %v", err)
	}

	readBack, err := s.Read(elemAddr, 4)
	if err != nil {
		t.Fatalf("read arr[2]: %v", err)
	}
	decoded, err := value.Decode(readBack, value.TypeInt, nil)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.I != 7 {
		t.Fatalf("expected arr[2] == 7, got %d", decoded.I)
	}
}
