package plan

import (
	"context"
	"fmt"

	"class-importer/internal/descriptor"
	"class-importer/internal/diagnostic"
	"class-importer/internal/errs"
	"class-importer/internal/graph"
	"class-importer/internal/names"
	"class-importer/internal/progdb"
)

// defaultPointerSize is used when neither the options nor the program
// record a pointer size.
const defaultPointerSize = 4

// Build validates doc and plans its import against the program database.
//
// The returned plan carries diagnostics even when err is non-nil, so callers
// can report why a description was refused.
func Build(ctx context.Context, doc *descriptor.Document, reader progdb.Reader, opts Options) (*ImportPlan, error) {
	if opts.RootNamespace == "" {
		opts.RootNamespace = DefaultRootNamespace
	}

	p := &ImportPlan{Options: opts}

	if doc == nil {
		return p, errs.Inputf("class description is nil")
	}

	p.MD5 = doc.MD5
	p.Filename = doc.Filename

	v := descriptor.Validate(doc)
	p.Diagnostics.Merge(*v)

	if v.HasErrors() {
		return p, errs.Input(v.Error(), "class description is invalid")
	}

	program, err := reader.Program(ctx)
	if err != nil {
		if progdb.IsNotFound(err) {
			return p, errs.Precondition("no program is loaded")
		}

		return p, errs.Database(err, "read program")
	}

	p.PointerSize = pointerSize(opts, program, &p.Diagnostics)

	g, err := graph.Build(doc, &p.Diagnostics)
	if err != nil {
		return p, err
	}

	b := &builder{
		reader:   reader,
		plan:     p,
		graph:    g,
		resolver: NewConflictResolver(reader, opts.UseDedicatedNamespace, &p.Diagnostics),
		planned:  map[int]int{},
		claimed:  map[uint64]string{},
	}

	for _, i := range g.Order() {
		if err := ctx.Err(); err != nil {
			return p, errs.Cancelled(err)
		}

		cp, err := b.planClass(ctx, i)
		if err != nil {
			return p, err
		}

		b.planned[i] = len(p.Classes)
		p.Classes = append(p.Classes, *cp)
	}

	p.Conflicts = b.resolver.Conflicts()

	return p, nil
}

func pointerSize(opts Options, program *progdb.Program, diags *diagnostic.Diagnostics) uint64 {
	switch {
	case opts.PointerSize != 0:
		return opts.PointerSize
	case program.PointerSize != 0:
		return program.PointerSize
	default:
		diags.AddInfo("pointer_size_defaulted",
			fmt.Sprintf("program records no pointer size; assuming %d bytes", defaultPointerSize), "", "")

		return defaultPointerSize
	}
}

type builder struct {
	reader   progdb.Reader
	plan     *ImportPlan
	graph    *graph.Graph
	resolver *ConflictResolver
	// planned maps graph indices to positions in plan.Classes.
	planned map[int]int
	// claimed maps function addresses to the class whose method took them.
	claimed map[uint64]string
}

// classPath returns the namespace path a class asks for.
func (b *builder) classPath(c *descriptor.ClassDescriptor) progdb.Path {
	segs := names.Split(c.DisplayName())
	if len(segs) == 0 {
		segs = []string{c.Name}
	}

	if b.plan.Options.UseDedicatedNamespace {
		return append(progdb.Path{b.plan.Options.RootNamespace}, segs...)
	}

	return segs
}

func (b *builder) planClass(ctx context.Context, i int) (*ClassPlan, error) {
	c := b.graph.Class(i)
	cp := &ClassPlan{Index: i, Class: c}

	ns, err := b.resolver.ResolveNamespace(ctx, c.Name, b.classPath(c))
	if err != nil {
		return nil, err
	}

	cp.Namespaces = ns
	nsPath := cp.NamespacePath()

	cp.Type, err = b.resolver.ResolveType(ctx, c.Name, nsPath.Parent(), nsPath.Name(), c.Size)
	if err != nil {
		return nil, err
	}

	for vi := range c.Vtables {
		vp, err := b.planVtable(ctx, c, nsPath, vi)
		if err != nil {
			return nil, err
		}

		cp.Vtables = append(cp.Vtables, *vp)
	}

	for _, e := range b.graph.BasesOf(i) {
		base := &b.plan.Classes[b.planned[e.Base]]
		cp.Bases = append(cp.Bases, BasePlan{
			Class:   base.Class.Name,
			Type:    base.Type.Ref(),
			Offset:  e.Offset,
			Virtual: e.Virtual,
			Size:    base.Class.Size,
		})
	}

	for mi := range c.Methods {
		mp, err := b.planMethod(ctx, c, nsPath, &c.Methods[mi])
		if err != nil {
			return nil, err
		}

		if mp != nil {
			cp.Methods = append(cp.Methods, *mp)
		}
	}

	nameSlots(cp)

	return cp, nil
}

func vtableName(i int) string {
	if i == 0 {
		return "vftable"
	}

	return fmt.Sprintf("vftable_%d", i)
}

func (b *builder) planVtable(ctx context.Context, c *descriptor.ClassDescriptor, nsPath progdb.Path, vi int) (*VtablePlan, error) {
	vt := &c.Vtables[vi]
	size := uint64(len(vt.Slots)) * b.plan.PointerSize

	dec, err := b.resolver.ResolveType(ctx, c.Name, nsPath, vtableName(vi), size)
	if err != nil {
		return nil, err
	}

	vp := &VtablePlan{Index: vi, Type: dec}

	if vt.Base != nil {
		if vt.Base.IsSymbolic() {
			vp.BaseSymbol = vt.Base.Symbol
		} else {
			addr := vt.Base.Value
			vp.BaseAddress = &addr
		}
	}

	for si, slot := range vt.Slots {
		sp := SlotPlan{Index: si, Thunk: slot.Thunk}

		if slot.Address != nil {
			f, err := b.locate(ctx, *slot.Address)
			if err != nil {
				return nil, err
			}

			switch {
			case f != nil:
				addr := f.Address
				sp.Target = &addr
				sp.Name = f.Name
			case !slot.Address.IsSymbolic():
				addr := slot.Address.Value
				sp.Target = &addr
			default:
				b.plan.Diagnostics.AddWarning("slot_unresolved",
					fmt.Sprintf("vtable %d slot %d names unknown symbol %s", vi, si, slot.Address.Symbol),
					c.Name, vtableName(vi))
			}
		}

		vp.Slots = append(vp.Slots, sp)
	}

	return vp, nil
}

// locate finds the function at a numeric address or by symbol. A missing
// function yields nil without error.
func (b *builder) locate(ctx context.Context, addr descriptor.Address) (*progdb.Function, error) {
	var (
		f   *progdb.Function
		err error
	)

	if addr.IsSymbolic() {
		f, err = b.reader.FunctionNamed(ctx, addr.Symbol)
	} else {
		f, err = b.reader.FunctionAt(ctx, addr.Value)
	}

	if progdb.IsNotFound(err) {
		return nil, nil
	}

	if err != nil {
		return nil, errs.Databasef(err, "look up function %s", addr)
	}

	return f, nil
}

func (b *builder) planMethod(ctx context.Context, c *descriptor.ClassDescriptor, nsPath progdb.Path, m *descriptor.MethodDescriptor) (*MethodPlan, error) {
	f, err := b.locate(ctx, m.Address)
	if err != nil {
		return nil, err
	}

	if f == nil {
		b.plan.Diagnostics.AddWarning("method_not_found",
			fmt.Sprintf("no function at %s; %s method skipped", m.Address, m.Kind), c.Name, m.Address.String())

		return nil, nil
	}

	if owner, ok := b.claimed[f.Address]; ok {
		b.plan.Diagnostics.AddWarning("method_shared",
			fmt.Sprintf("function at 0x%x is already a method of %s", f.Address, owner), c.Name, m.Address.String())

		return nil, nil
	}

	name := f.Name
	if m.Name != nil && names.Sanitize(*m.Name) != "" {
		name = names.Sanitize(*m.Name)
	}

	dec, err := b.resolver.ResolveMethod(ctx, c.Name, nsPath, name, f.Address)
	if err != nil {
		return nil, err
	}

	b.claimed[f.Address] = c.Name

	return &MethodPlan{
		Address:  f.Address,
		Kind:     m.Kind,
		Function: *f,
		Decision: dec,
		Vtable:   m.VtableIndex(),
		Slot:     m.VtableSlot,
	}, nil
}

// nameSlots names vtable slots after the methods bound to them, explicitly
// by slot index or implicitly by target address, then falls back to
// slot_<n>.
func nameSlots(cp *ClassPlan) {
	byAddr := map[uint64]string{}
	explicit := map[[2]int]bool{}

	for _, m := range cp.Methods {
		byAddr[m.Address] = m.Decision.Name

		if m.Slot == nil || m.Vtable >= len(cp.Vtables) {
			continue
		}

		slots := cp.Vtables[m.Vtable].Slots
		if *m.Slot < 0 || *m.Slot >= len(slots) {
			continue
		}

		s := &slots[*m.Slot]
		s.Name = m.Decision.Name
		explicit[[2]int{m.Vtable, *m.Slot}] = true

		if s.Target == nil {
			addr := m.Address
			s.Target = &addr
		}
	}

	for vi := range cp.Vtables {
		for si := range cp.Vtables[vi].Slots {
			s := &cp.Vtables[vi].Slots[si]
			if explicit[[2]int{vi, si}] {
				continue
			}

			if s.Target != nil {
				if n, ok := byAddr[*s.Target]; ok {
					s.Name = n
				}
			}

			if s.Name == "" {
				s.Name = fmt.Sprintf("slot_%d", si)
			}
		}
	}
}
