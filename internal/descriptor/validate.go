package descriptor

import (
	"cmp"
	"fmt"
	"slices"

	"class-importer/internal/diagnostic"
	"class-importer/utils"
)

// Validate checks the description for structural problems that make it
// unusable. Every error is an input error: nothing should be written for a
// description that fails validation.
func Validate(doc *Document) *diagnostic.Diagnostics {
	res := &diagnostic.Diagnostics{}
	if doc == nil {
		res.AddError("document_is_nil", "class description is nil", "", "")
		return res
	}

	seen := map[string]struct{}{}

	edges := map[string][]BaseRef{}
	for _, e := range doc.Inheritance {
		edges[e.Derived] = append(edges[e.Derived], BaseRef{Name: e.Base, Offset: e.Offset, Virtual: e.Virtual})
	}

	for i := range doc.Structures {
		c := &doc.Structures[i]

		if c.Name == "" {
			res.AddError("class_name_empty", fmt.Sprintf("structure #%d has no name", i), "", "")
			continue
		}

		if _, ok := seen[c.Name]; ok {
			res.AddError("class_duplicate", fmt.Sprintf("class %q is described more than once", c.Name), c.Name, "")
			continue
		}

		seen[c.Name] = struct{}{}

		validateMembers(res, c)
		validateVtables(res, c)
		validateMethods(res, c)
		validateBases(res, c, edges[c.Name])
	}

	for i, e := range doc.Inheritance {
		if e.Derived == "" || e.Base == "" {
			res.AddError("inheritance_incomplete",
				fmt.Sprintf("inheritance edge #%d needs both derived and base", i), e.Derived, e.Base)
		}
	}

	return res
}

func validateMembers(res *diagnostic.Diagnostics, c *ClassDescriptor) {
	for i := range c.Members {
		m := &c.Members[i]
		name := m.FieldName()

		if m.Size == 0 {
			res.AddError("member_zero_size", fmt.Sprintf("member %s has zero size", name), c.Name, name)
			continue
		}

		if !utils.Fits(m.Offset, m.Size, c.Size) {
			res.AddError("member_out_of_range",
				fmt.Sprintf("member %s [0x%x, +%d) exceeds class size %d", name, m.Offset, m.Size, c.Size),
				c.Name, name)
		}
	}

	// Sorted by offset, each member only needs checking against later ones
	// that start before it ends.
	order := make([]int, len(c.Members))
	for i := range order {
		order[i] = i
	}

	slices.SortStableFunc(order, func(a, b int) int {
		return cmp.Compare(c.Members[a].Offset, c.Members[b].Offset)
	})

	for x, ai := range order {
		a := &c.Members[ai]
		if a.Size == 0 {
			continue
		}

		for _, bi := range order[x+1:] {
			b := &c.Members[bi]
			if b.Offset >= a.End() {
				break
			}

			if b.Size == 0 || a.Union || b.Union {
				continue
			}

			if utils.Overlaps(a.Offset, a.End(), b.Offset, b.End()) {
				res.AddError("member_overlap",
					fmt.Sprintf("members %s and %s overlap; mark one as union to keep both", a.FieldName(), b.FieldName()),
					c.Name, b.FieldName())
			}
		}
	}
}

func validateVtables(res *diagnostic.Diagnostics, c *ClassDescriptor) {
	for i := range c.Vtables {
		if len(c.Vtables[i].Slots) == 0 {
			res.AddWarning("vtable_empty", fmt.Sprintf("vtable %d has no slots", i), c.Name, fmt.Sprintf("vtable[%d]", i))
		}
	}
}

func validateMethods(res *diagnostic.Diagnostics, c *ClassDescriptor) {
	for i := range c.Methods {
		m := &c.Methods[i]
		entity := m.Address.String()

		if m.Address.IsZero() {
			res.AddError("method_address_missing", fmt.Sprintf("method #%d has no address", i), c.Name, "")
			continue
		}

		if !m.IsBound() {
			if m.Vtable != nil {
				res.AddWarning("method_vtable_without_slot",
					fmt.Sprintf("method %s names vtable %d but no slot", entity, *m.Vtable), c.Name, entity)
			}

			continue
		}

		if !m.Kind.IsVirtual() && m.Kind != MethodKindDestructor {
			res.AddWarning("method_slot_not_virtual",
				fmt.Sprintf("%s method %s is bound to a vtable slot", m.Kind, entity), c.Name, entity)
		}

		vt := m.VtableIndex()
		if vt < 0 || vt >= len(c.Vtables) {
			res.AddError("method_vtable_out_of_range",
				fmt.Sprintf("method %s refers to vtable %d, class has %d", entity, vt, len(c.Vtables)), c.Name, entity)

			continue
		}

		slot := *m.VtableSlot
		if !utils.IsInRange(0, slot, len(c.Vtables[vt].Slots)-1) {
			res.AddError("method_slot_out_of_range",
				fmt.Sprintf("method %s refers to slot %d of vtable %d, which has %d slots",
					entity, slot, vt, len(c.Vtables[vt].Slots)), c.Name, entity)
		}
	}
}

// validateBases checks the class's own bases followed by the edges supplied
// for it at the top level. Only the first non-virtual base may sit at
// offset 0.
func validateBases(res *diagnostic.Diagnostics, c *ClassDescriptor, extra []BaseRef) {
	bases := slices.Clone(c.Bases)
	for _, b := range extra {
		if !slices.Contains(bases, b) {
			bases = append(bases, b)
		}
	}

	position := 0

	for _, b := range bases {
		if b.Name == "" {
			res.AddError("base_name_empty", "base reference has no name", c.Name, "")
			continue
		}

		if b.Virtual {
			continue
		}

		if b.Offset == 0 && position > 0 {
			res.AddError("base_offset_conflict",
				fmt.Sprintf("base %s is non-virtual base #%d but claims offset 0, which only the first may use",
					b.Name, position+1), c.Name, b.Name)
		}

		position++
	}
}
