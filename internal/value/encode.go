package value

import (
	"encoding/binary"
	"fmt"
)

// Encode serialises v as t's little-endian, width-exact, unpadded byte
// representation. Array types are never encoded directly — arrays are
// always accessed through addressing (their element slots are written
// individually), never assigned or copied as a single value, matching the
// subset of C this engine models.
func Encode(v Value, t Type, types *TypeTable) ([]byte, error) {
	switch t.Kind {
	case KindInt:
		i, err := asInt(v)
		if err != nil {
			return nil, err
		}
		buf := make([]byte, 4)
		binary.LittleEndian.PutUint32(buf, uint32(int32(i)))
		return buf, nil

	case KindChar:
		c, err := asChar(v)
		if err != nil {
			return nil, err
		}
		return []byte{byte(c)}, nil

	case KindPointer:
		addr, ok := v.Address()
		if !ok {
			return nil, fmt.Errorf("cannot encode %s as pointer", v.Kind)
		}
		buf := make([]byte, 8)
		binary.LittleEndian.PutUint64(buf, addr)
		return buf, nil

	case KindStruct:
		if v.Kind != Struct {
			return nil, fmt.Errorf("cannot encode %s as struct %s", v.Kind, t.StructTag)
		}
		def, ok := types.Lookup(t.StructTag)
		if !ok {
			return nil, fmt.Errorf("undefined struct %q", t.StructTag)
		}
		byName := make(map[string]Value, len(v.Flds))
		for _, f := range v.Flds {
			byName[f.Name] = f.Value
		}
		var out []byte
		for _, f := range def.Fields {
			fv, ok := byName[f.Name]
			if !ok {
				return nil, fmt.Errorf("struct %q missing field %q", t.StructTag, f.Name)
			}
			b, err := Encode(fv, f.Type, types)
			if err != nil {
				return nil, err
			}
			out = append(out, b...)
		}
		return out, nil

	default:
		return nil, fmt.Errorf("cannot encode value of type %s", t)
	}
}

// Decode deserialises bytes (assumed already verified fully-initialised by
// the caller — the heap/stack own the init bitmap, not this function) as a
// Value of type t.
func Decode(bytes []byte, t Type, types *TypeTable) (Value, error) {
	switch t.Kind {
	case KindInt:
		if len(bytes) < 4 {
			return Value{}, fmt.Errorf("short read decoding int: %d bytes", len(bytes))
		}
		return MakeInt(int64(int32(binary.LittleEndian.Uint32(bytes)))), nil

	case KindChar:
		if len(bytes) < 1 {
			return Value{}, fmt.Errorf("short read decoding char: %d bytes", len(bytes))
		}
		return MakeChar(int8(bytes[0])), nil

	case KindPointer:
		if len(bytes) < 8 {
			return Value{}, fmt.Errorf("short read decoding pointer: %d bytes", len(bytes))
		}
		addr := binary.LittleEndian.Uint64(bytes)
		if addr == 0 {
			return MakeNull(*t.Pointee), nil
		}
		return MakePointer(addr, *t.Pointee), nil

	case KindStruct:
		def, ok := types.Lookup(t.StructTag)
		if !ok {
			return Value{}, fmt.Errorf("undefined struct %q", t.StructTag)
		}
		var offset uint64
		fields := make([]FieldValue, 0, len(def.Fields))
		for _, f := range def.Fields {
			sz, err := Sizeof(f.Type, types)
			if err != nil {
				return Value{}, err
			}
			if offset+sz > uint64(len(bytes)) {
				return Value{}, fmt.Errorf("short read decoding struct %q field %q", t.StructTag, f.Name)
			}
			fv, err := Decode(bytes[offset:offset+sz], f.Type, types)
			if err != nil {
				return Value{}, err
			}
			fields = append(fields, FieldValue{Name: f.Name, Value: fv})
			offset += sz
		}
		return MakeStruct(t.StructTag, fields), nil

	default:
		return Value{}, fmt.Errorf("cannot decode value of type %s", t)
	}
}

func asInt(v Value) (int64, error) {
	switch v.Kind {
	case Int:
		return v.I, nil
	case Char:
		return int64(v.C), nil
	default:
		return 0, fmt.Errorf("cannot use %s where int is expected", v.Kind)
	}
}

func asChar(v Value) (int8, error) {
	switch v.Kind {
	case Char:
		return v.C, nil
	case Int:
		return int8(v.I), nil
	default:
		return 0, fmt.Errorf("cannot use %s where char is expected", v.Kind)
	}
}
