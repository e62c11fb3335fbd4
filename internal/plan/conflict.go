package plan

import (
	"context"
	"fmt"

	"class-importer/internal/diagnostic"
	"class-importer/internal/errs"
	"class-importer/internal/names"
	"class-importer/internal/progdb"
)

// maxRenameAttempts bounds the search for a free name.
const maxRenameAttempts = 10000

// ConflictResolver decides, for each entity the import wants to create,
// whether to create it, reuse an existing compatible entity, or pick a new
// name. It only reads the database; names handed out earlier in the same
// plan are reserved so two candidates never receive the same name.
type ConflictResolver struct {
	reader    progdb.Reader
	dedicated bool
	diags     *diagnostic.Diagnostics

	// namespaces maps planned namespace keys to the class owning them, or ""
	// for plain enclosing namespaces.
	namespaces map[string]string
	// types maps planned type keys to the class planning them.
	types map[string]string
	// functions maps planned scope+name keys to the function address.
	functions map[string]uint64

	conflicts []Conflict
}

// NewConflictResolver creates a resolver over reader. dedicated selects the
// rename scheme used for taken names.
func NewConflictResolver(reader progdb.Reader, dedicated bool, diags *diagnostic.Diagnostics) *ConflictResolver {
	if diags == nil {
		diags = &diagnostic.Diagnostics{}
	}

	return &ConflictResolver{
		reader:     reader,
		dedicated:  dedicated,
		diags:      diags,
		namespaces: map[string]string{},
		types:      map[string]string{},
		functions:  map[string]uint64{},
	}
}

// Conflicts returns every rename recorded so far.
func (r *ConflictResolver) Conflicts() []Conflict {
	return r.conflicts
}

// candidate returns the n-th name to try.
func (r *ConflictResolver) candidate(name string, n int) string {
	if n == 0 {
		return name
	}

	return names.Disambiguate(name, n, r.dedicated)
}

func (r *ConflictResolver) record(kind ConflictKind, class string, scope progdb.Path, requested, resolved, reason string) {
	r.conflicts = append(r.conflicts, Conflict{
		Kind:      kind,
		Class:     class,
		Scope:     scope.Clone(),
		Requested: requested,
		Resolved:  resolved,
		Reason:    reason,
	})

	r.diags.AddWarning("conflict_renamed",
		fmt.Sprintf("%s %s in %s renamed to %s: %s", kind, requested, scope, resolved, reason), class, requested)
}

// decide finishes a resolution: a rename when any candidate was rejected.
func (r *ConflictResolver) decide(kind ConflictKind, class string, scope progdb.Path, requested, name string,
	found Action, firstReason string, n int,
) Decision {
	d := Decision{Action: found, Scope: scope.Clone(), Requested: requested, Name: name}

	if n > 0 {
		d.Action = ActionRename
		d.Reason = firstReason
		r.record(kind, class, scope, requested, name, firstReason)
	}

	return d
}

func dbError(err error, format string, args ...any) error {
	return errs.Databasef(err, format, args...)
}

// lookupFunctionIn reports whether a function with that name exists in scope.
func (r *ConflictResolver) lookupFunctionIn(ctx context.Context, scope progdb.Path, name string) (*progdb.Function, error) {
	f, err := r.reader.FunctionIn(ctx, scope, name)
	if progdb.IsNotFound(err) {
		return nil, nil
	}

	if err != nil {
		return nil, dbError(err, "look up function %s in %s", name, scope)
	}

	return f, nil
}

func (r *ConflictResolver) namespaceExists(ctx context.Context, path progdb.Path) (bool, error) {
	if _, ok := r.namespaces[path.Key()]; ok {
		return true, nil
	}

	_, err := r.reader.Namespace(ctx, path)
	if progdb.IsNotFound(err) {
		return false, nil
	}

	if err != nil {
		return false, dbError(err, "look up namespace %s", path)
	}

	return true, nil
}

// ResolveNamespace resolves each segment of path for class. Existing and
// already planned enclosing namespaces are reused; a function occupying a
// segment's name forces a rename. The last segment is the class namespace
// and is never shared with another class of the same plan.
func (r *ConflictResolver) ResolveNamespace(ctx context.Context, class string, path progdb.Path) ([]Decision, error) {
	decisions := make([]Decision, 0, len(path))

	var scope progdb.Path

	for i, seg := range path {
		last := i == len(path)-1

		d, err := r.resolveSegment(ctx, class, scope, seg, last)
		if err != nil {
			return nil, err
		}

		decisions = append(decisions, d)
		scope = d.Path()
	}

	return decisions, nil
}

func (r *ConflictResolver) resolveSegment(ctx context.Context, class string, scope progdb.Path, seg string, last bool) (Decision, error) {
	var firstReason string

	for n := range maxRenameAttempts {
		name := r.candidate(seg, n)
		path := scope.Child(name)
		key := path.Key()

		reason, err := r.namespaceBlocked(ctx, class, scope, name, last)
		if err != nil {
			return Decision{}, err
		}

		if reason != "" {
			if firstReason == "" {
				firstReason = reason
			}

			continue
		}

		exists, err := r.namespaceExists(ctx, path)
		if err != nil {
			return Decision{}, err
		}

		action := ActionCreate
		if exists {
			action = ActionReuse
		}

		if last {
			r.namespaces[key] = class
		} else if _, ok := r.namespaces[key]; !ok {
			r.namespaces[key] = ""
		}

		return r.decide(ConflictNamespace, class, scope, seg, name, action, firstReason, n), nil
	}

	return Decision{}, errs.Internalf("no free namespace name for %s in %s", seg, scope)
}

// namespaceBlocked returns why name cannot be used as a namespace in scope.
func (r *ConflictResolver) namespaceBlocked(ctx context.Context, class string, scope progdb.Path, name string, last bool) (string, error) {
	key := scope.Child(name).Key()

	// Nested classes live inside their outer class's namespace, so only the
	// class namespace itself is exclusive.
	if owner := r.namespaces[key]; last && owner != "" && owner != class {
		return fmt.Sprintf("namespace already holds class %s", owner), nil
	}

	if _, ok := r.functions[scope.Child(name).Key()]; ok {
		return "a planned method has that name", nil
	}

	f, err := r.lookupFunctionIn(ctx, scope, name)
	if err != nil {
		return "", err
	}

	if f != nil {
		return fmt.Sprintf("function at 0x%x has that name", f.Address), nil
	}

	return "", nil
}

// ResolveType resolves a composite type named name of size bytes in scope.
// An existing composite of the same size is reused, and so is a smaller one
// no other type refers to, which is then grown. Anything else is renamed.
func (r *ConflictResolver) ResolveType(ctx context.Context, class string, scope progdb.Path, name string, size uint64) (Decision, error) {
	var firstReason string

	for n := range maxRenameAttempts {
		candidate := r.candidate(name, n)
		ref := progdb.TypeRef{Scope: scope, Name: candidate}

		if owner, ok := r.types[ref.Key()]; ok {
			if firstReason == "" {
				firstReason = fmt.Sprintf("type already planned for %s", owner)
			}

			continue
		}

		action, reason, err := r.checkType(ctx, ref, size)
		if err != nil {
			return Decision{}, err
		}

		if reason != "" {
			if firstReason == "" {
				firstReason = reason
			}

			continue
		}

		r.types[ref.Key()] = class

		d := r.decide(ConflictType, class, scope, name, candidate, action, firstReason, n)
		if n == 0 && action == ActionReuse {
			d.Reason = reasonForReuse(ctx, r.reader, ref, size)
		}

		return d, nil
	}

	return Decision{}, errs.Internalf("no free type name for %s in %s", name, scope)
}

// checkType returns the action for an unplanned candidate, or why it is taken.
func (r *ConflictResolver) checkType(ctx context.Context, ref progdb.TypeRef, size uint64) (Action, string, error) {
	existing, err := r.reader.Type(ctx, ref.Scope, ref.Name)
	if progdb.IsNotFound(err) {
		return ActionCreate, "", nil
	}

	if err != nil {
		return 0, "", dbError(err, "look up type %s", ref)
	}

	switch {
	case existing.Kind != progdb.TypeComposite:
		return 0, fmt.Sprintf("existing %s type has that name", existing.Kind), nil
	case existing.Size == size:
		return ActionReuse, "", nil
	case existing.Size > size:
		return 0, fmt.Sprintf("existing type is larger (%d > %d bytes)", existing.Size, size), nil
	}

	refs, err := r.reader.TypeReferences(ctx, ref)
	if err != nil {
		return 0, "", dbError(err, "count references to %s", ref)
	}

	if refs > 0 {
		return 0, fmt.Sprintf("existing smaller type has %d references with a fixed layout", refs), nil
	}

	return ActionReuse, "", nil
}

// reasonForReuse describes a reuse that grows the existing type.
func reasonForReuse(ctx context.Context, reader progdb.Reader, ref progdb.TypeRef, size uint64) string {
	existing, err := reader.Type(ctx, ref.Scope, ref.Name)
	if err != nil || existing.Size == size {
		return ""
	}

	return fmt.Sprintf("grow from %d to %d bytes", existing.Size, size)
}

// ResolveMethod resolves the name for the function at addr inside the class
// namespace scope. The same function already there is reused; another
// function or a namespace with that name forces a rename.
func (r *ConflictResolver) ResolveMethod(ctx context.Context, class string, scope progdb.Path, name string, addr uint64) (Decision, error) {
	var firstReason string

	for n := range maxRenameAttempts {
		candidate := r.candidate(name, n)
		key := scope.Child(candidate).Key()

		reason, action, err := r.checkMethod(ctx, scope, candidate, addr)
		if err != nil {
			return Decision{}, err
		}

		if reason != "" {
			if firstReason == "" {
				firstReason = reason
			}

			continue
		}

		r.functions[key] = addr

		return r.decide(ConflictMethod, class, scope, name, candidate, action, firstReason, n), nil
	}

	return Decision{}, errs.Internalf("no free method name for %s in %s", name, scope)
}

func (r *ConflictResolver) checkMethod(ctx context.Context, scope progdb.Path, name string, addr uint64) (string, Action, error) {
	key := scope.Child(name).Key()

	if planned, ok := r.functions[key]; ok && planned != addr {
		return fmt.Sprintf("name already planned for function at 0x%x", planned), 0, nil
	}

	if _, ok := r.namespaces[key]; ok {
		return "a planned namespace has that name", 0, nil
	}

	f, err := r.lookupFunctionIn(ctx, scope, name)
	if err != nil {
		return "", 0, err
	}

	if f != nil && f.Address != addr {
		return fmt.Sprintf("function at 0x%x has that name", f.Address), 0, nil
	}

	if f != nil {
		return "", ActionReuse, nil
	}

	if _, err := r.reader.Namespace(ctx, scope.Child(name)); err == nil {
		return "a namespace has that name", 0, nil
	} else if !progdb.IsNotFound(err) {
		return "", 0, dbError(err, "look up namespace %s", scope.Child(name))
	}

	return "", ActionCreate, nil
}
