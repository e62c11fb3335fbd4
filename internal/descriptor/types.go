package descriptor

import (
	"fmt"
	"strings"
)

// Document is the root of a parsed class description.
type Document struct {
	// MD5 is the content hash of the binary the description was produced for.
	MD5 *string `yaml:"md5,omitempty"`
	// Filename is the name of that binary as recorded by the producer.
	Filename *string `yaml:"filename,omitempty"`
	// Structures lists every recovered class in document order.
	Structures ClassList `yaml:"structures"`
	// Inheritance carries edges supplied alongside the class list.
	Inheritance []InheritanceEdge `yaml:"inheritance,omitempty"`
}

// ClassList is an ordered list of class descriptors.
type ClassList []ClassDescriptor

// ClassDescriptor describes one recovered class.
type ClassDescriptor struct {
	Name          string             `yaml:"name"`
	DemangledName *string            `yaml:"demangledName,omitempty"`
	Size          uint64             `yaml:"size"`
	Members       []MemberDescriptor `yaml:"members,omitempty"`
	Methods       []MethodDescriptor `yaml:"methods,omitempty"`
	Vtables       []VtableDescriptor `yaml:"vtables,omitempty"`
	Bases         []BaseRef          `yaml:"bases,omitempty"`
}

// DisplayName returns the demangled name when one was recorded, otherwise Name.
func (c *ClassDescriptor) DisplayName() string {
	if c.DemangledName != nil {
		if n := strings.TrimSpace(*c.DemangledName); n != "" {
			return n
		}
	}

	return c.Name
}

// MemberDescriptor describes one data member at a fixed offset.
type MemberDescriptor struct {
	Name   *string `yaml:"name,omitempty"`
	Offset uint64  `yaml:"offset"`
	Size   uint64  `yaml:"size"`
	// Type is a primitive kind or the name of another described class.
	Type *string `yaml:"type,omitempty"`
	// Union marks an alternative view of bytes that another member also covers.
	Union bool `yaml:"union,omitempty"`
}

// FieldName returns the declared member name or a name derived from its offset.
func (m *MemberDescriptor) FieldName() string {
	if m.Name != nil && strings.TrimSpace(*m.Name) != "" {
		return strings.TrimSpace(*m.Name)
	}

	return fmt.Sprintf("field_0x%x", m.Offset)
}

// End returns the first byte past the member.
func (m *MemberDescriptor) End() uint64 {
	return m.Offset + m.Size
}

// MethodDescriptor binds a routine in the binary to the class.
type MethodDescriptor struct {
	Name    *string    `yaml:"name,omitempty"`
	Address Address    `yaml:"address"`
	Kind    MethodKind `yaml:"kind"`
	// Vtable indexes the class's vtables; absent means the first one.
	Vtable     *int `yaml:"vtable,omitempty"`
	VtableSlot *int `yaml:"vtableSlot,omitempty"`
}

// VtableIndex returns the vtable the slot refers to.
func (m *MethodDescriptor) VtableIndex() int {
	if m.Vtable == nil {
		return 0
	}

	return *m.Vtable
}

// IsBound reports whether the method claims a vtable slot.
func (m *MethodDescriptor) IsBound() bool {
	return m.VtableSlot != nil
}

// VtableDescriptor describes one virtual function table in declared slot order.
type VtableDescriptor struct {
	Base  *Address `yaml:"base,omitempty"`
	Slots SlotList `yaml:"slots"`
}

// SlotList keeps slots positional, including unknown (null) entries.
type SlotList []SlotRef

// SlotRef is one vtable entry: a routine address, a thunk, or unknown.
type SlotRef struct {
	Address *Address `yaml:"address,omitempty"`
	Thunk   bool     `yaml:"thunk,omitempty"`
}

// IsUnknown reports whether the producer could not resolve the slot.
func (s SlotRef) IsUnknown() bool {
	return s.Address == nil && !s.Thunk
}

// BaseRef names a base class of the owning class.
type BaseRef struct {
	Name    string `yaml:"name"`
	Offset  uint64 `yaml:"offset"`
	Virtual bool   `yaml:"virtual,omitempty"`
}

// InheritanceEdge is a base relationship supplied outside the class list.
type InheritanceEdge struct {
	Derived string `yaml:"derived"`
	Base    string `yaml:"base"`
	Offset  uint64 `yaml:"offset"`
	Virtual bool   `yaml:"virtual,omitempty"`
}

// Address is a code or data location: a numeric address, or a symbol the
// program database can resolve.
type Address struct {
	Value  uint64
	Symbol string
}

// IsSymbolic reports whether the address must be resolved by name.
func (a Address) IsSymbolic() bool {
	return a.Symbol != ""
}

// IsZero reports whether the address was never set.
func (a Address) IsZero() bool {
	return a.Value == 0 && a.Symbol == ""
}

// String returns the address in hex, or the symbol.
func (a Address) String() string {
	if a.IsSymbolic() {
		return a.Symbol
	}

	return fmt.Sprintf("0x%x", a.Value)
}

// Find returns the class with the given name.
func (d *Document) Find(name string) (*ClassDescriptor, bool) {
	for i := range d.Structures {
		if d.Structures[i].Name == name {
			return &d.Structures[i], true
		}
	}

	return nil, false
}
