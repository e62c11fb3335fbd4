package progdb

import (
	"slices"
	"strings"

	"class-importer/internal/common"
)

// keySep separates path segments in storage keys. Segments may themselves
// contain "::" inside template arguments, so the display separator cannot
// be used.
const keySep = "\x1f"

// Path is a namespace path from the global scope. An empty path is global.
type Path []string

// String returns the path joined with "::", or "<global>".
func (p Path) String() string {
	if len(p) == 0 {
		return "<global>"
	}

	return strings.Join(p, "::")
}

// Key returns an unambiguous storage key for the path.
func (p Path) Key() string {
	return strings.Join(p, keySep)
}

// ParsePathKey reverses Key.
func ParsePathKey(key string) Path {
	if key == "" {
		return nil
	}

	return strings.Split(key, keySep)
}

// IsGlobal reports whether p is the global scope.
func (p Path) IsGlobal() bool {
	return len(p) == 0
}

// Parent returns the enclosing path. The parent of the global scope is global.
func (p Path) Parent() Path {
	if len(p) <= 1 {
		return nil
	}

	return slices.Clone(p[:len(p)-1])
}

// Name returns the last segment.
func (p Path) Name() string {
	if len(p) == 0 {
		return ""
	}

	return p[len(p)-1]
}

// Child returns p extended by name.
func (p Path) Child(name string) Path {
	out := make(Path, len(p), len(p)+1)
	copy(out, p)

	return append(out, name)
}

// Equal reports whether both paths name the same scope.
func (p Path) Equal(o Path) bool {
	return slices.Equal(p, o)
}

// Clone returns a copy of p. The global scope is always nil.
func (p Path) Clone() Path {
	if len(p) == 0 {
		return nil
	}

	return slices.Clone(p)
}

// AddressRange is a half-open range [Start, End) of mapped program memory.
type AddressRange struct {
	Start uint64 `json:"start" yaml:"start"`
	End   uint64 `json:"end" yaml:"end"`
}

// Contains reports whether addr falls within the range.
func (r AddressRange) Contains(addr uint64) bool {
	return r.Start <= addr && addr < r.End
}

// Program describes the binary the database was built from.
type Program struct {
	Name string `json:"name" yaml:"name"`
	// MD5 is the lower-case hex hash of the binary, empty if unknown.
	MD5 string `json:"md5" yaml:"md5"`
	// Analyzed is set once automatic analysis has completed.
	Analyzed    bool           `json:"analyzed" yaml:"analyzed"`
	PointerSize uint64         `json:"pointer_size" yaml:"pointer_size"`
	Ranges      []AddressRange `json:"ranges,omitempty" yaml:"ranges,omitempty"`
}

// Contains reports whether addr lies in any mapped range.
func (p *Program) Contains(addr uint64) bool {
	for _, r := range p.Ranges {
		if r.Contains(addr) {
			return true
		}
	}

	return false
}

// Namespace is a named scope. Class namespaces hold a class's methods.
type Namespace struct {
	Path  Path `json:"path"`
	Class bool `json:"class,omitempty"`
}

// Function is a routine known to the database, keyed by entry address.
type Function struct {
	Address uint64 `json:"address"`
	Name    string `json:"name"`
	Scope   Path   `json:"scope,omitempty"`
}

// QualifiedName returns the function name including its scope.
func (f *Function) QualifiedName() string {
	if f.Scope.IsGlobal() {
		return f.Name
	}

	return f.Scope.String() + "::" + f.Name
}

// TypeKind distinguishes composite types from other named types.
type TypeKind int

const (
	TypeComposite TypeKind = iota
	TypeTypedef
	TypeEnum
	TypeOther
)

// String returns a lower-case kind name.
func (k TypeKind) String() string {
	switch k {
	case TypeComposite:
		return "composite"
	case TypeTypedef:
		return "typedef"
	case TypeEnum:
		return "enum"
	case TypeOther:
		return "other"
	default:
		return common.UnknownStr
	}
}

// TypeRef names a data type by scope and name.
type TypeRef struct {
	Scope Path   `json:"scope,omitempty"`
	Name  string `json:"name"`
}

// Key returns an unambiguous storage key for the reference.
func (r TypeRef) Key() string {
	return r.Scope.Key() + keySep + keySep + r.Name
}

// String returns the qualified type name.
func (r TypeRef) String() string {
	if r.Scope.IsGlobal() {
		return r.Name
	}

	return r.Scope.String() + "::" + r.Name
}

// Equal reports whether both references name the same type.
func (r TypeRef) Equal(o TypeRef) bool {
	return r.Name == o.Name && r.Scope.Equal(o.Scope)
}

// FieldKind describes what a composite field represents.
type FieldKind int

const (
	// FieldData - a data member.
	FieldData FieldKind = iota
	// FieldFiller - undefined bytes covering a layout gap.
	FieldFiller
	// FieldBase - an embedded non-virtual base class.
	FieldBase
	// FieldFunctionPointer - a vtable slot.
	FieldFunctionPointer
)

// String returns a lower-case kind name.
func (k FieldKind) String() string {
	switch k {
	case FieldData:
		return "data"
	case FieldFiller:
		return "filler"
	case FieldBase:
		return "base"
	case FieldFunctionPointer:
		return "function_pointer"
	default:
		return common.UnknownStr
	}
}

// Field is one component of a composite type.
type Field struct {
	Offset uint64    `json:"offset"`
	Size   uint64    `json:"size"`
	Name   string    `json:"name"`
	Kind   FieldKind `json:"kind"`
	// Type refers to another data type. When nil, Primitive names the type.
	Type      *TypeRef `json:"type,omitempty"`
	Primitive string   `json:"primitive,omitempty"`
	// Target is the routine a function pointer field is bound to.
	Target  *uint64 `json:"target,omitempty"`
	Comment string  `json:"comment,omitempty"`
}

// End returns the first byte past the field.
func (f *Field) End() uint64 {
	return f.Offset + f.Size
}

// BaseLink records a base class relationship on a composite type.
type BaseLink struct {
	Type    TypeRef `json:"type"`
	Offset  uint64  `json:"offset"`
	Virtual bool    `json:"virtual,omitempty"`
}

// DataType is a named type stored in the database.
type DataType struct {
	Kind    TypeKind   `json:"kind"`
	Scope   Path       `json:"scope,omitempty"`
	Name    string     `json:"name"`
	Size    uint64     `json:"size"`
	Fields  []Field    `json:"fields,omitempty"`
	Bases   []BaseLink `json:"bases,omitempty"`
	Comment string     `json:"comment,omitempty"`
}

// Ref returns the reference naming t.
func (t *DataType) Ref() TypeRef {
	return TypeRef{Scope: t.Scope, Name: t.Name}
}

// References reports whether t uses ref in a field or a base link.
func (t *DataType) References(ref TypeRef) bool {
	for _, f := range t.Fields {
		if f.Type != nil && f.Type.Equal(ref) {
			return true
		}
	}

	for _, b := range t.Bases {
		if b.Type.Equal(ref) {
			return true
		}
	}

	return false
}

// Clone returns a deep copy of t.
func (t DataType) Clone() DataType {
	out := t
	out.Scope = t.Scope.Clone()
	out.Bases = slices.Clone(t.Bases)

	for i := range out.Bases {
		out.Bases[i].Type.Scope = out.Bases[i].Type.Scope.Clone()
	}

	out.Fields = slices.Clone(t.Fields)
	for i := range out.Fields {
		f := &out.Fields[i]
		if f.Type != nil {
			ref := TypeRef{Scope: f.Type.Scope.Clone(), Name: f.Type.Name}
			f.Type = &ref
		}

		if f.Target != nil {
			target := *f.Target
			f.Target = &target
		}
	}

	return out
}

// DataRef applies a data type at a fixed address, such as a vtable instance.
type DataRef struct {
	Address uint64  `json:"address"`
	Type    TypeRef `json:"type"`
	Label   string  `json:"label,omitempty"`
}
