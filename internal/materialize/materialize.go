package materialize

import (
	"context"
	"fmt"
	"slices"

	"github.com/sirupsen/logrus"

	"class-importer/internal/descriptor"
	"class-importer/internal/diagnostic"
	"class-importer/internal/errs"
	"class-importer/internal/logging"
	"class-importer/internal/match"
	"class-importer/internal/names"
	"class-importer/internal/plan"
	"class-importer/internal/progdb"
	"class-importer/primitive"
	"class-importer/utils"
)

// Materializer applies class plans through one transaction. All reads go
// through the same transaction so later classes see earlier writes.
type Materializer struct {
	tx  progdb.Tx
	log *logrus.Entry
}

// New creates a materializer writing to tx. A nil log discards output.
func New(tx progdb.Tx, log *logrus.Entry) *Materializer {
	if log == nil {
		log = logrus.NewEntry(logging.Discard())
	}

	return &Materializer{tx: tx, log: log}
}

// Apply materializes one class of p. Method and vtable problems are recorded
// in diags; any database error is returned and must abort the transaction.
func (m *Materializer) Apply(ctx context.Context, p *plan.ImportPlan, cp *plan.ClassPlan, diags *diagnostic.Diagnostics) error {
	log := m.log.WithFields(logrus.Fields{
		"class": cp.Class.Name,
		"type":  cp.Type.Path().String(),
	})

	if err := m.ensureNamespaces(ctx, cp); err != nil {
		return err
	}

	if err := m.writeClassType(ctx, p, cp, diags); err != nil {
		return err
	}

	program, err := m.tx.Program(ctx)
	if err != nil {
		return errs.Database(err, "read program")
	}

	for i := range cp.Vtables {
		if err := m.writeVtable(ctx, p, cp, &cp.Vtables[i], program, diags); err != nil {
			return err
		}
	}

	for _, mp := range cp.Methods {
		f := mp.Function
		f.Scope = mp.Decision.Scope.Clone()
		f.Name = mp.Decision.Name

		if err := m.tx.PutFunction(ctx, f); err != nil {
			return errs.Databasef(err, "move function 0x%x to %s", f.Address, f.QualifiedName())
		}

		log.WithField("function", f.QualifiedName()).Debug("bound method")
	}

	log.WithFields(logrus.Fields{
		"vtables": len(cp.Vtables),
		"methods": len(cp.Methods),
	}).Debug("class materialized")

	return nil
}

// ensureNamespaces creates missing namespaces along the class path and flags
// the last one as a class. Existing enclosing namespaces are left untouched.
func (m *Materializer) ensureNamespaces(ctx context.Context, cp *plan.ClassPlan) error {
	for i, d := range cp.Namespaces {
		path := d.Path()
		last := i == len(cp.Namespaces)-1

		ns, err := m.tx.Namespace(ctx, path)

		switch {
		case progdb.IsNotFound(err):
			ns = &progdb.Namespace{Path: path}
		case err != nil:
			return errs.Databasef(err, "read namespace %s", path)
		case !last || ns.Class:
			continue
		}

		ns.Class = ns.Class || last

		if err := m.tx.PutNamespace(ctx, *ns); err != nil {
			return errs.Databasef(err, "write namespace %s", path)
		}
	}

	return nil
}

func (m *Materializer) writeClassType(ctx context.Context, p *plan.ImportPlan, cp *plan.ClassPlan, diags *diagnostic.Diagnostics) error {
	c := cp.Class
	ref := cp.Type.Ref()

	t := progdb.DataType{
		Kind:    progdb.TypeComposite,
		Scope:   ref.Scope,
		Name:    ref.Name,
		Size:    c.Size,
		Comment: fmt.Sprintf("class %s", c.DisplayName()),
	}

	var placements []Placement

	for _, b := range cp.Bases {
		t.Bases = append(t.Bases, progdb.BaseLink{Type: b.Type, Offset: b.Offset, Virtual: b.Virtual})

		if b.Virtual || b.Size == 0 {
			continue
		}

		placements = append(placements, Placement{Field: progdb.Field{
			Offset: b.Offset,
			Size:   b.Size,
			Name:   "base_" + b.Type.Name,
			Kind:   progdb.FieldBase,
			Type:   &progdb.TypeRef{Scope: b.Type.Scope.Clone(), Name: b.Type.Name},
		}})
	}

	for i := range c.Members {
		f, err := m.memberField(ctx, p, c, &c.Members[i], diags)
		if err != nil {
			return err
		}

		placements = append(placements, Placement{Field: f, Union: c.Members[i].Union})
	}

	if cp.Type.Action != plan.ActionCreate {
		existing, err := m.tx.Type(ctx, ref.Scope, ref.Name)

		switch {
		case err == nil:
			placements = append(placements, preserved(existing)...)

			if existing.Comment != "" {
				t.Comment = existing.Comment
			}
		case !progdb.IsNotFound(err):
			return errs.Databasef(err, "read type %s", ref)
		}
	}

	fields, rejected := Layout(c.Size, placements)
	t.Fields = fields

	for _, r := range rejected {
		switch r.Field.Kind {
		case progdb.FieldBase:
			diags.AddWarning("base_not_embedded",
				fmt.Sprintf("base %s at 0x%x (%d bytes) does not fit; recorded as a link only",
					r.Field.Type, r.Field.Offset, r.Field.Size), c.Name, r.Field.Type.String())
		default:
			rejectedMember(diags, c, fields, r.Field)
		}
	}

	if err := m.tx.PutType(ctx, t); err != nil {
		return errs.Databasef(err, "write type %s", ref)
	}

	return nil
}

// rejectedMember reports a member Layout could not place, naming what holds
// its bytes.
func rejectedMember(diags *diagnostic.Diagnostics, c *descriptor.ClassDescriptor, fields []progdb.Field, f progdb.Field) {
	if !utils.Fits(f.Offset, f.Size, c.Size) {
		diags.AddWarning("member_out_of_bounds",
			fmt.Sprintf("member %s at 0x%x (%d bytes) does not fit in %d bytes and is skipped",
				f.Name, f.Offset, f.Size, c.Size), c.Name, f.Name)

		return
	}

	i := slices.IndexFunc(fields, func(o progdb.Field) bool {
		return o.Kind != progdb.FieldFiller && utils.Overlaps(f.Offset, f.End(), o.Offset, o.End())
	})

	switch {
	case i >= 0 && fields[i].Kind == progdb.FieldBase:
		diags.AddInfo("member_in_base",
			fmt.Sprintf("member %s at 0x%x overlaps embedded base %s and is skipped", f.Name, f.Offset, fields[i].Type),
			c.Name, f.Name)
	case i >= 0:
		diags.AddWarning("member_overlap",
			fmt.Sprintf("member %s at 0x%x overlaps member %s and is skipped", f.Name, f.Offset, fields[i].Name),
			c.Name, f.Name)
	default:
		diags.AddWarning("member_skipped",
			fmt.Sprintf("member %s at 0x%x is skipped", f.Name, f.Offset), c.Name, f.Name)
	}
}

// preserved returns the user fields of an existing type that the new layout
// keeps where nothing else claims their bytes.
func preserved(t *progdb.DataType) []Placement {
	var out []Placement

	for _, f := range t.Fields {
		if f.Kind != progdb.FieldData {
			continue
		}

		if f.Type != nil {
			f.Type = &progdb.TypeRef{Scope: f.Type.Scope.Clone(), Name: f.Type.Name}
		}

		out = append(out, Placement{Field: f, Keep: true})
	}

	return out
}

// memberField resolves a member's type hint to a primitive or a class type.
// Hints that cannot be honoured leave the bytes untyped.
func (m *Materializer) memberField(ctx context.Context, p *plan.ImportPlan, c *descriptor.ClassDescriptor,
	mem *descriptor.MemberDescriptor, diags *diagnostic.Diagnostics,
) (progdb.Field, error) {
	f := progdb.Field{
		Offset:    mem.Offset,
		Size:      mem.Size,
		Name:      mem.FieldName(),
		Kind:      progdb.FieldData,
		Primitive: UndefinedType,
	}

	if mem.Type == nil || names.Sanitize(*mem.Type) == "" {
		return f, nil
	}

	hint := names.Sanitize(*mem.Type)

	if k, ok := primitive.Parse(hint); ok {
		if size := k.Size(p.PointerSize); size != mem.Size {
			diags.AddWarning("member_type_size_mismatch",
				fmt.Sprintf("member %s is %d bytes but %s is %d bytes; left untyped", f.Name, mem.Size, hint, size),
				c.Name, f.Name)
			f.Comment = hint

			return f, nil
		}

		f.Primitive = k.TypeName()

		return f, nil
	}

	ref, size, err := m.lookupClassType(ctx, p, hint)
	if err != nil {
		return f, err
	}

	switch {
	case ref == nil:
		diags.AddInfo("member_type_unknown",
			fmt.Sprintf("member %s has unknown type %s; left untyped%s", f.Name, hint, match.Hint(hint, classNames(p))),
			c.Name, f.Name)
		f.Comment = hint
	case size != mem.Size:
		diags.AddWarning("member_type_size_mismatch",
			fmt.Sprintf("member %s is %d bytes but %s is %d bytes; left untyped", f.Name, mem.Size, ref, size),
			c.Name, f.Name)
		f.Comment = hint
	default:
		f.Type = ref
		f.Primitive = ""
	}

	return f, nil
}

func classNames(p *plan.ImportPlan) []string {
	out := make([]string, 0, len(p.Classes))
	for i := range p.Classes {
		out = append(out, p.Classes[i].Class.Name)
	}

	return out
}

// lookupClassType finds a type named by a member hint: a class of this
// plan first, then an existing type in the database.
func (m *Materializer) lookupClassType(ctx context.Context, p *plan.ImportPlan, hint string) (*progdb.TypeRef, uint64, error) {
	for i := range p.Classes {
		cp := &p.Classes[i]
		if cp.Class.Name == hint || names.Sanitize(cp.Class.DisplayName()) == hint {
			ref := cp.Type.Ref()
			return &ref, cp.Class.Size, nil
		}
	}

	segs := names.Split(hint)
	if len(segs) == 0 {
		return nil, 0, nil
	}

	path := progdb.Path(segs)
	candidates := []progdb.TypeRef{{Scope: path.Parent(), Name: path.Name()}}

	if p.Options.UseDedicatedNamespace {
		rooted := append(progdb.Path{p.Options.RootNamespace}, segs...)
		candidates = append(candidates, progdb.TypeRef{Scope: rooted.Parent(), Name: rooted.Name()})
	}

	for _, ref := range candidates {
		t, err := m.tx.Type(ctx, ref.Scope, ref.Name)
		if progdb.IsNotFound(err) {
			continue
		}

		if err != nil {
			return nil, 0, errs.Databasef(err, "read type %s", ref)
		}

		return &ref, t.Size, nil
	}

	return nil, 0, nil
}

func (m *Materializer) writeVtable(ctx context.Context, p *plan.ImportPlan, cp *plan.ClassPlan, vp *plan.VtablePlan,
	program *progdb.Program, diags *diagnostic.Diagnostics,
) error {
	ref := vp.Type.Ref()
	ptr := p.PointerSize

	t := progdb.DataType{
		Kind:    progdb.TypeComposite,
		Scope:   ref.Scope,
		Name:    ref.Name,
		Size:    uint64(len(vp.Slots)) * ptr,
		Comment: fmt.Sprintf("virtual function table %d of %s", vp.Index, cp.Class.DisplayName()),
	}

	placements := make([]Placement, 0, len(vp.Slots))

	for _, s := range vp.Slots {
		f := progdb.Field{
			Offset:    uint64(s.Index) * ptr,
			Size:      ptr,
			Name:      s.Name,
			Kind:      progdb.FieldFunctionPointer,
			Primitive: primitive.KindPointer.TypeName(),
		}

		if s.Target != nil {
			target := *s.Target
			f.Target = &target
		}

		if s.Thunk {
			f.Comment = "thunk"
		}

		placements = append(placements, Placement{Field: f})
	}

	t.Fields, _ = Layout(t.Size, placements)

	if err := m.tx.PutType(ctx, t); err != nil {
		return errs.Databasef(err, "write vtable type %s", ref)
	}

	switch {
	case vp.BaseAddress != nil && program.Contains(*vp.BaseAddress):
		d := progdb.DataRef{Address: *vp.BaseAddress, Type: ref, Label: ref.String()}
		if err := m.tx.PutData(ctx, d); err != nil {
			return errs.Databasef(err, "bind vtable %s at 0x%x", ref, *vp.BaseAddress)
		}
	case vp.BaseAddress != nil:
		diags.AddWarning("vtable_base_unbound",
			fmt.Sprintf("vtable at 0x%x is outside the program", *vp.BaseAddress), cp.Class.Name, ref.String())
	case vp.BaseSymbol != "":
		diags.AddWarning("vtable_base_unbound",
			fmt.Sprintf("vtable symbol %s has no address", vp.BaseSymbol), cp.Class.Name, ref.String())
	}

	return nil
}
