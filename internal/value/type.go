// Package value implements the tagged Value/Type model the engine evaluates
// expressions into, along with the sizeof, pointer-arithmetic, and
// byte-encoding helpers every other engine component builds on.
package value

import "fmt"

// Kind discriminates the Type tagged union.
type Kind int

const (
	KindInt Kind = iota
	KindChar
	KindVoid
	KindPointer
	KindArray
	KindStruct
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindChar:
		return "char"
	case KindVoid:
		return "void"
	case KindPointer:
		return "pointer"
	case KindArray:
		return "array"
	case KindStruct:
		return "struct"
	default:
		return "unknown"
	}
}

// Type is the tagged union of C types this engine understands: int, char,
// void, pointers, fixed-length arrays, and unpadded structs. A Type is
// immutable once constructed and safe to share.
type Type struct {
	Kind      Kind
	Const     bool
	Pointee   *Type  // set when Kind == KindPointer
	Elem      *Type  // set when Kind == KindArray
	Length    int    // set when Kind == KindArray
	StructTag string // set when Kind == KindStruct
}

// Convenience constructors, mirroring how the teacher's emulator package
// exposes named constants for its fixed memory regions instead of magic
// numbers scattered through call sites.
var (
	TypeInt  = Type{Kind: KindInt}
	TypeChar = Type{Kind: KindChar}
	TypeVoid = Type{Kind: KindVoid}
)

// PointerType returns a pointer-to-pointee type.
func PointerType(pointee Type) Type {
	p := pointee
	return Type{Kind: KindPointer, Pointee: &p}
}

// ArrayType returns a fixed-length array-of-elem type.
func ArrayType(elem Type, length int) Type {
	e := elem
	return Type{Kind: KindArray, Elem: &e, Length: length}
}

// StructType returns a named struct type; field layout is looked up in a
// TypeTable at sizeof/encode time.
func StructType(tag string) Type {
	return Type{Kind: KindStruct, StructTag: tag}
}

// AsConst returns a const-qualified copy of t.
func (t Type) AsConst() Type {
	t.Const = true
	return t
}

// Equal reports whether two types describe the same shape (ignoring the
// const qualifier, which never affects layout or identity for our purposes).
func (t Type) Equal(o Type) bool {
	if t.Kind != o.Kind {
		return false
	}
	switch t.Kind {
	case KindPointer:
		return t.Pointee.Equal(*o.Pointee)
	case KindArray:
		return t.Length == o.Length && t.Elem.Equal(*o.Elem)
	case KindStruct:
		return t.StructTag == o.StructTag
	default:
		return true
	}
}

func (t Type) String() string {
	switch t.Kind {
	case KindPointer:
		return t.Pointee.String() + "*"
	case KindArray:
		return fmt.Sprintf("%s[%d]", t.Elem.String(), t.Length)
	case KindStruct:
		return "struct " + t.StructTag
	default:
		return t.Kind.String()
	}
}

// FieldDef is one named, ordered field of a struct definition.
type FieldDef struct {
	Name string
	Type Type
}

// StructDef is the engine's resolved view of a parsed struct definition:
// tag plus ordered, unpadded fields.
type StructDef struct {
	Tag    string
	Fields []FieldDef
}

// TypeTable resolves struct tags to their field layout. The engine builds
// one from the parsed Program at construction time; it is immutable and
// shared read-only thereafter, the same way the teacher treats its parsed
// ELF symbol tables as read-only once loaded.
type TypeTable struct {
	structs map[string]StructDef
}

// NewTypeTable builds a TypeTable from a set of struct definitions.
func NewTypeTable(defs []StructDef) *TypeTable {
	t := &TypeTable{structs: make(map[string]StructDef, len(defs))}
	for _, d := range defs {
		t.structs[d.Tag] = d
	}
	return t
}

// Lookup returns the field layout for a struct tag.
func (t *TypeTable) Lookup(tag string) (StructDef, bool) {
	if t == nil {
		return StructDef{}, false
	}
	d, ok := t.structs[tag]
	return d, ok
}

// FieldOffset returns the byte offset of a named field within a struct,
// computed as the unpadded sum of the sizes of the preceding fields.
func (t *TypeTable) FieldOffset(tag, field string) (uint64, Type, error) {
	def, ok := t.Lookup(tag)
	if !ok {
		return 0, Type{}, fmt.Errorf("undefined struct %q", tag)
	}
	var offset uint64
	for _, f := range def.Fields {
		if f.Name == field {
			return offset, f.Type, nil
		}
		sz, err := Sizeof(f.Type, t)
		if err != nil {
			return 0, Type{}, err
		}
		offset += sz
	}
	return 0, Type{}, fmt.Errorf("struct %q has no field %q", tag, field)
}

// Sizeof returns the byte width of t: int=4, char=1, pointer=8, array =
// length*sizeof(elem), struct = unpadded sum of field sizes.
func Sizeof(t Type, types *TypeTable) (uint64, error) {
	switch t.Kind {
	case KindInt:
		return 4, nil
	case KindChar:
		return 1, nil
	case KindPointer:
		return 8, nil
	case KindArray:
		elemSize, err := Sizeof(*t.Elem, types)
		if err != nil {
			return 0, err
		}
		return elemSize * uint64(t.Length), nil
	case KindStruct:
		def, ok := types.Lookup(t.StructTag)
		if !ok {
			return 0, fmt.Errorf("undefined struct %q", t.StructTag)
		}
		var total uint64
		for _, f := range def.Fields {
			sz, err := Sizeof(f.Type, types)
			if err != nil {
				return 0, err
			}
			total += sz
		}
		return total, nil
	case KindVoid:
		return 0, fmt.Errorf("sizeof(void) is not a valid expression")
	default:
		return 0, fmt.Errorf("sizeof: unknown type kind %v", t.Kind)
	}
}
