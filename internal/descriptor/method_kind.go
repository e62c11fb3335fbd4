package descriptor

import (
	"fmt"
	"strings"
)

//go:generate go tool stringer -type=MethodKind -trimprefix=MethodKind -output=method_kind_string.go

// MethodKind classifies a method descriptor.
type MethodKind int

const (
	MethodKindNonVirtual MethodKind = iota
	MethodKindConstructor
	MethodKindDestructor
	MethodKindVirtual
	MethodKindStatic
)

// ParseMethodKind accepts the long names and the short spellings used by
// class recovery tools. An empty kind is a non-virtual method.
func ParseMethodKind(s string) (MethodKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "nonvirtual", "non-virtual", "method", "meth":
		return MethodKindNonVirtual, nil
	case "constructor", "ctor":
		return MethodKindConstructor, nil
	case "destructor", "dtor", "deldtor":
		return MethodKindDestructor, nil
	case "virtual", "virt", "vmeth":
		return MethodKindVirtual, nil
	case "static":
		return MethodKindStatic, nil
	default:
		return 0, fmt.Errorf("unknown method kind %q", s)
	}
}

// IsVirtual reports whether the method is dispatched through a vtable.
// Destructors are often virtual; the slot index is what binds them.
func (k MethodKind) IsVirtual() bool {
	return k == MethodKindVirtual
}
