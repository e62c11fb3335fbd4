package primitive

import (
	"strings"
)

//go:generate go tool stringer -type=KindEnum -output=kind_string.go

type KindEnum int

const (
	_ KindEnum = iota // skip zero value, use it as a default (invalid) value for KindEnum

	KindInt8
	KindInt16
	KindInt32
	KindInt64
	KindUint8
	KindUint16
	KindUint32
	KindUint64
	KindFloat32
	KindFloat64
	KindBool
	KindChar
	KindWChar
	KindPointer // code or data pointer, sized by the program

	// KindTotal is a constant that represents the total number of kinds defined
	KindTotal = int(iota)
)

// hints maps the spellings produced by class recovery tools to a kind.
var hints = map[string]KindEnum{
	"int8": KindInt8, "int8_t": KindInt8, "signed char": KindInt8, "sbyte": KindInt8,
	"int16": KindInt16, "int16_t": KindInt16, "short": KindInt16, "signed short": KindInt16,
	"int32": KindInt32, "int32_t": KindInt32, "int": KindInt32, "signed int": KindInt32, "long": KindInt32,
	"int64": KindInt64, "int64_t": KindInt64, "long long": KindInt64, "__int64": KindInt64,
	"uint8": KindUint8, "uint8_t": KindUint8, "unsigned char": KindUint8, "uchar": KindUint8, "byte": KindUint8,
	"uint16": KindUint16, "uint16_t": KindUint16, "unsigned short": KindUint16, "ushort": KindUint16, "word": KindUint16,
	"uint32": KindUint32, "uint32_t": KindUint32, "unsigned int": KindUint32, "unsigned long": KindUint32,
	"uint": KindUint32, "dword": KindUint32,
	"uint64": KindUint64, "uint64_t": KindUint64, "unsigned long long": KindUint64, "qword": KindUint64,
	"float": KindFloat32, "float32": KindFloat32,
	"double": KindFloat64, "float64": KindFloat64,
	"bool": KindBool, "_bool": KindBool,
	"char": KindChar,
	"wchar_t": KindWChar, "wchar": KindWChar,
	"ptr": KindPointer, "pointer": KindPointer, "void*": KindPointer,
}

// Parse maps a member type hint to a primitive kind. Any hint ending in '*'
// is a pointer. The second result is false for hints that are not primitive,
// which callers treat as a class name.
func Parse(hint string) (KindEnum, bool) {
	h := strings.ToLower(strings.Join(strings.Fields(hint), " "))
	if h == "" {
		return 0, false
	}

	if strings.HasSuffix(h, "*") {
		return KindPointer, true
	}

	k, ok := hints[h]

	return k, ok
}

func (k KindEnum) IsNumber() bool {
	switch k {
	default:
		return false
	case KindInt8, KindInt16, KindInt32, KindInt64,
		KindUint8, KindUint16, KindUint32, KindUint64,
		KindFloat32, KindFloat64:
		return true
	}
}

func (k KindEnum) IsInteger() bool {
	switch k {
	default:
		return false
	case KindInt8, KindInt16, KindInt32, KindInt64,
		KindUint8, KindUint16, KindUint32, KindUint64:
		return true
	}
}

func (k KindEnum) IsFloat() bool {
	switch k {
	default:
		return false
	case KindFloat32, KindFloat64:
		return true
	}
}

func (k KindEnum) IsSigned() bool {
	switch k {
	default:
		return false
	case KindInt8, KindInt16, KindInt32, KindInt64:
		return true
	}
}

// Size returns the width of the kind in bytes. Pointers take ptrSize.
func (k KindEnum) Size(ptrSize uint64) uint64 {
	switch k {
	default:
		panic("size requested for invalid kind: " + k.String())
	case KindInt8, KindUint8, KindBool, KindChar:
		return 1
	case KindInt16, KindUint16, KindWChar:
		return 2
	case KindInt32, KindUint32, KindFloat32:
		return 4
	case KindInt64, KindUint64, KindFloat64:
		return 8
	case KindPointer:
		return ptrSize
	}
}

// TypeName returns the canonical type reference stored in the program database.
func (k KindEnum) TypeName() string {
	switch k {
	case KindInt8:
		return "int8_t"
	case KindInt16:
		return "int16_t"
	case KindInt32:
		return "int32_t"
	case KindInt64:
		return "int64_t"
	case KindUint8:
		return "uint8_t"
	case KindUint16:
		return "uint16_t"
	case KindUint32:
		return "uint32_t"
	case KindUint64:
		return "uint64_t"
	case KindFloat32:
		return "float"
	case KindFloat64:
		return "double"
	case KindBool:
		return "bool"
	case KindChar:
		return "char"
	case KindWChar:
		return "wchar_t"
	case KindPointer:
		return "pointer"
	default:
		return ""
	}
}
