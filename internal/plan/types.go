package plan

import (
	"class-importer/internal/common"
	"class-importer/internal/descriptor"
	"class-importer/internal/diagnostic"
	"class-importer/internal/progdb"
)

// DefaultRootNamespace holds imported classes when a dedicated namespace
// is requested.
const DefaultRootNamespace = "OOAnalyzer"

// Options controls where and how classes are placed.
type Options struct {
	// UseDedicatedNamespace nests every class under RootNamespace.
	UseDedicatedNamespace bool `mapstructure:"dedicated_namespace" yaml:"dedicated_namespace"`
	// RootNamespace is the dedicated namespace name.
	RootNamespace string `mapstructure:"root_namespace" yaml:"root_namespace"`
	// PointerSize overrides the program's pointer size when non-zero.
	PointerSize uint64 `mapstructure:"pointer_size" yaml:"pointer_size"`
}

// DefaultOptions returns the default planning options.
func DefaultOptions() Options {
	return Options{
		UseDedicatedNamespace: true,
		RootNamespace:         DefaultRootNamespace,
	}
}

// Action is what materialization does with a planned entity.
type Action int

const (
	// ActionCreate - nothing by that name exists; create it.
	ActionCreate Action = iota
	// ActionReuse - a compatible entity exists; update it in place.
	ActionReuse
	// ActionRename - the requested name is taken; use a disambiguated one.
	ActionRename
)

// String returns a lower-case action name.
func (a Action) String() string {
	switch a {
	case ActionCreate:
		return "create"
	case ActionReuse:
		return "reuse"
	case ActionRename:
		return "rename"
	default:
		return common.UnknownStr
	}
}

// Decision is the resolved placement of one named entity.
type Decision struct {
	Action    Action
	Scope     progdb.Path
	Requested string
	Name      string
	Reason    string
}

// Path returns the full path of the entity.
func (d Decision) Path() progdb.Path {
	return d.Scope.Child(d.Name)
}

// Ref returns the entity as a type reference.
func (d Decision) Ref() progdb.TypeRef {
	return progdb.TypeRef{Scope: d.Scope.Clone(), Name: d.Name}
}

// ConflictKind identifies what kind of name collided.
type ConflictKind int

const (
	ConflictNamespace ConflictKind = iota
	ConflictType
	ConflictMethod
)

// String returns a lower-case kind name.
func (k ConflictKind) String() string {
	switch k {
	case ConflictNamespace:
		return "namespace"
	case ConflictType:
		return "type"
	case ConflictMethod:
		return "method"
	default:
		return common.UnknownStr
	}
}

// Conflict records a rename forced by an existing or planned entity.
type Conflict struct {
	Kind      ConflictKind
	Class     string
	Scope     progdb.Path
	Requested string
	Resolved  string
	Reason    string
}

// ImportPlan is everything needed to materialize a description.
type ImportPlan struct {
	MD5         *string
	Filename    *string
	Options     Options
	PointerSize uint64
	// Classes are in materialization order: bases first.
	Classes     []ClassPlan
	Conflicts   []Conflict
	Diagnostics diagnostic.Diagnostics
}

// Len returns the number of planned classes.
func (p *ImportPlan) Len() int {
	return len(p.Classes)
}

// Find returns the plan for the named class.
func (p *ImportPlan) Find(name string) (*ClassPlan, bool) {
	for i := range p.Classes {
		if p.Classes[i].Class.Name == name {
			return &p.Classes[i], true
		}
	}

	return nil, false
}

// ClassPlan is the plan for one class.
type ClassPlan struct {
	// Index is the class's position in the description.
	Index int
	Class *descriptor.ClassDescriptor
	// Namespaces resolves each segment of the class namespace path, outermost
	// first. The last one is the class namespace.
	Namespaces []Decision
	Type       Decision
	Vtables    []VtablePlan
	Bases      []BasePlan
	Methods    []MethodPlan
}

// NamespacePath returns the resolved class namespace path.
func (c *ClassPlan) NamespacePath() progdb.Path {
	if len(c.Namespaces) == 0 {
		return nil
	}

	return c.Namespaces[len(c.Namespaces)-1].Path()
}

// VtablePlan is the plan for one vtable structure.
type VtablePlan struct {
	Index int
	Type  Decision
	// BaseAddress is the vtable instance in the binary, when known.
	BaseAddress *uint64
	BaseSymbol  string
	Slots       []SlotPlan
}

// SlotPlan is one vtable slot in declared order.
type SlotPlan struct {
	Index int
	// Target is the routine the slot points at; nil when unknown.
	Target *uint64
	Thunk  bool
	// Name is the field name: the bound method, the target's current name,
	// or slot_<n>.
	Name string
}

// BasePlan links a class to a planned base type.
type BasePlan struct {
	Class   string
	Type    progdb.TypeRef
	Offset  uint64
	Virtual bool
	Size    uint64
}

// MethodPlan moves or renames one function into the class namespace.
type MethodPlan struct {
	Address  uint64
	Kind     descriptor.MethodKind
	Function progdb.Function
	Decision Decision
	Vtable   int
	Slot     *int
}
