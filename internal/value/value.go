package value

// ValueKind discriminates the Value tagged union.
type ValueKind int

const (
	Int ValueKind = iota
	Char
	Pointer
	Struct
	ArrayRef
	Uninitialised
	Null
)

func (k ValueKind) String() string {
	switch k {
	case Int:
		return "Int"
	case Char:
		return "Char"
	case Pointer:
		return "Pointer"
	case Struct:
		return "Struct"
	case ArrayRef:
		return "ArrayRef"
	case Uninitialised:
		return "Uninitialised"
	case Null:
		return "Null"
	default:
		return "Unknown"
	}
}

// FieldValue is one named field of a Struct value, kept in declaration
// order so iteration and display stay deterministic.
type FieldValue struct {
	Name  string
	Value Value
}

// PointerInfo is the payload of a Pointer value: a raw address plus the
// static type of the thing it points to (used for pointer arithmetic and
// for lvalue typing on dereference, never trusted for heap-block
// classification — that's address-range based).
type PointerInfo struct {
	Address uint64
	Pointee Type
}

// ArrayRefInfo is the payload of an ArrayRef value: the address the array
// decayed from, its element type, and its declared length.
type ArrayRefInfo struct {
	Base   uint64
	Elem   Type
	Length int
}

// Value is the tagged union of runtime values: Int(i64), Char(i8),
// Pointer{address,pointee}, Struct{tag,fields}, ArrayRef{base,elem,length},
// Uninitialised(type), Null. Booleans are represented as Int (0/non-0).
type Value struct {
	Kind ValueKind

	I int64 // Int
	C int8  // Char

	Ptr  PointerInfo  // Pointer, Null
	Arr  ArrayRefInfo // ArrayRef
	Flds []FieldValue // Struct
	STag string       // Struct

	UninitType Type // Uninitialised
}

// MakeInt builds an Int value.
func MakeInt(i int64) Value { return Value{Kind: Int, I: i} }

// MakeChar builds a Char value.
func MakeChar(c int8) Value { return Value{Kind: Char, C: c} }

// MakePointer builds a Pointer value.
func MakePointer(addr uint64, pointee Type) Value {
	return Value{Kind: Pointer, Ptr: PointerInfo{Address: addr, Pointee: pointee}}
}

// MakeNull builds a typed Null value (NULL assigned/declared with a known
// pointee type, for display and pointer-arithmetic purposes).
func MakeNull(pointee Type) Value {
	return Value{Kind: Null, Ptr: PointerInfo{Address: 0, Pointee: pointee}}
}

// MakeArrayRef builds an ArrayRef value (what an array-typed lvalue decays
// to when read as a value, e.g. passed to a function or compared).
func MakeArrayRef(base uint64, elem Type, length int) Value {
	return Value{Kind: ArrayRef, Arr: ArrayRefInfo{Base: base, Elem: elem, Length: length}}
}

// MakeUninitialised builds the sentinel value a declared-but-unwritten
// slot holds.
func MakeUninitialised(t Type) Value {
	return Value{Kind: Uninitialised, UninitType: t}
}

// MakeStruct builds a Struct value with the given ordered fields.
func MakeStruct(tag string, fields []FieldValue) Value {
	return Value{Kind: Struct, STag: tag, Flds: fields}
}

// IsTruthy implements C's "booleans are Int(0/non-0)" rule, extended to
// pointers (null is false, any non-null address is true) as C does.
func (v Value) IsTruthy() bool {
	switch v.Kind {
	case Int:
		return v.I != 0
	case Char:
		return v.C != 0
	case Pointer:
		return v.Ptr.Address != 0
	case Null:
		return false
	default:
		return false
	}
}

// Address returns the address carried by a Pointer, Null, or ArrayRef
// value, and whether v is pointer-shaped at all.
func (v Value) Address() (uint64, bool) {
	switch v.Kind {
	case Pointer, Null:
		return v.Ptr.Address, true
	case ArrayRef:
		return v.Arr.Base, true
	default:
		return 0, false
	}
}

// Pointee returns the static pointee type of a Pointer/Null/ArrayRef value.
func (v Value) Pointee() Type {
	switch v.Kind {
	case Pointer, Null:
		return v.Ptr.Pointee
	case ArrayRef:
		return v.Arr.Elem
	default:
		return TypeVoid
	}
}

// TypeOf returns the static Type describing v's shape, used when the
// engine needs to re-derive a Type from a value it already has (e.g. to
// size a pointer-arithmetic step, or to report a TypeError).
func (v Value) TypeOf() Type {
	switch v.Kind {
	case Int:
		return TypeInt
	case Char:
		return TypeChar
	case Pointer, Null:
		return PointerType(v.Ptr.Pointee)
	case ArrayRef:
		return ArrayType(v.Arr.Elem, v.Arr.Length)
	case Struct:
		return StructType(v.STag)
	case Uninitialised:
		return v.UninitType
	default:
		return TypeVoid
	}
}
