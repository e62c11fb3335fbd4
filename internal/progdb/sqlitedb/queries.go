package sqlitedb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"class-importer/internal/progdb"
)

// SQLite integers are signed; addresses and sizes are stored bit for bit.
func toInt(v uint64) int64  { return int64(v) }
func toUint(v int64) uint64 { return uint64(v) }

// addressOrder sorts stored addresses in unsigned order.
const addressOrder = "ORDER BY address < 0, address"

type programRow struct {
	Name        string `db:"name"`
	MD5         string `db:"md5"`
	Analyzed    bool   `db:"analyzed"`
	PointerSize int64  `db:"pointer_size"`
}

type rangeRow struct {
	Start int64 `db:"start_addr"`
	End   int64 `db:"end_addr"`
}

type namespaceRow struct {
	Path  string `db:"path"`
	Class bool   `db:"is_class"`
}

type functionRow struct {
	Address int64  `db:"address"`
	Name    string `db:"name"`
	Scope   string `db:"scope"`
}

func (r functionRow) function() *progdb.Function {
	return &progdb.Function{Address: toUint(r.Address), Name: r.Name, Scope: progdb.ParsePathKey(r.Scope)}
}

type typeRow struct {
	Kind    int    `db:"kind"`
	Size    int64  `db:"size"`
	Comment string `db:"comment"`
}

type fieldRow struct {
	Offset    int64          `db:"field_offset"`
	Size      int64          `db:"size"`
	Name      string         `db:"name"`
	Kind      int            `db:"kind"`
	RefScope  sql.NullString `db:"ref_scope"`
	RefName   sql.NullString `db:"ref_name"`
	Primitive string         `db:"primitive"`
	Target    sql.NullInt64  `db:"target"`
	Comment   string         `db:"comment"`
}

type baseRow struct {
	RefScope string `db:"ref_scope"`
	RefName  string `db:"ref_name"`
	Offset   int64  `db:"base_offset"`
	Virtual  bool   `db:"is_virtual"`
}

type dataRow struct {
	Address  int64  `db:"address"`
	RefScope string `db:"ref_scope"`
	RefName  string `db:"ref_name"`
	Label    string `db:"label"`
}

// queries implements progdb.Reader and progdb.Writer over either the pool or
// a transaction.
type queries struct {
	q    sqlx.ExtContext
	done bool
}

func (s *queries) check() error {
	if s.done {
		return progdb.ErrTxDone
	}

	return nil
}

func notFound(err error, format string, args ...any) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf(format+": %w", append(args, progdb.ErrNotFound)...)
	}

	return fmt.Errorf(format+": %w", append(args, err)...)
}

func (s *queries) Program(ctx context.Context) (*progdb.Program, error) {
	if err := s.check(); err != nil {
		return nil, err
	}

	var row programRow
	if err := sqlx.GetContext(ctx, s.q, &row,
		`SELECT name, md5, analyzed, pointer_size FROM program WHERE id = 1`); err != nil {
		return nil, notFound(err, "program")
	}

	var ranges []rangeRow
	if err := sqlx.SelectContext(ctx, s.q, &ranges,
		`SELECT start_addr, end_addr FROM program_ranges ORDER BY start_addr < 0, start_addr`); err != nil {
		return nil, fmt.Errorf("program ranges: %w", err)
	}

	p := &progdb.Program{
		Name:        row.Name,
		MD5:         row.MD5,
		Analyzed:    row.Analyzed,
		PointerSize: toUint(row.PointerSize),
	}

	for _, r := range ranges {
		p.Ranges = append(p.Ranges, progdb.AddressRange{Start: toUint(r.Start), End: toUint(r.End)})
	}

	return p, nil
}

func (s *queries) Namespace(ctx context.Context, path progdb.Path) (*progdb.Namespace, error) {
	if err := s.check(); err != nil {
		return nil, err
	}

	if path.IsGlobal() {
		return &progdb.Namespace{}, nil
	}

	var row namespaceRow
	if err := sqlx.GetContext(ctx, s.q, &row,
		`SELECT path, is_class FROM namespaces WHERE path = ?`, path.Key()); err != nil {
		return nil, notFound(err, "namespace %s", path)
	}

	return &progdb.Namespace{Path: progdb.ParsePathKey(row.Path), Class: row.Class}, nil
}

func (s *queries) getFunction(ctx context.Context, query string, args ...any) (*progdb.Function, error) {
	var row functionRow
	if err := sqlx.GetContext(ctx, s.q, &row, query, args...); err != nil {
		return nil, err
	}

	return row.function(), nil
}

func (s *queries) FunctionAt(ctx context.Context, addr uint64) (*progdb.Function, error) {
	if err := s.check(); err != nil {
		return nil, err
	}

	f, err := s.getFunction(ctx, `SELECT address, name, scope FROM functions WHERE address = ?`, toInt(addr))
	if err != nil {
		return nil, notFound(err, "function at 0x%x", addr)
	}

	return f, nil
}

func (s *queries) FunctionNamed(ctx context.Context, name string) (*progdb.Function, error) {
	if err := s.check(); err != nil {
		return nil, err
	}

	f, err := s.getFunction(ctx,
		`SELECT address, name, scope FROM functions WHERE name = ? OR qualified = ? `+addressOrder+` LIMIT 1`,
		name, name)
	if err != nil {
		return nil, notFound(err, "function %q", name)
	}

	return f, nil
}

func (s *queries) FunctionIn(ctx context.Context, scope progdb.Path, name string) (*progdb.Function, error) {
	if err := s.check(); err != nil {
		return nil, err
	}

	f, err := s.getFunction(ctx,
		`SELECT address, name, scope FROM functions WHERE scope = ? AND name = ? `+addressOrder+` LIMIT 1`,
		scope.Key(), name)
	if err != nil {
		return nil, notFound(err, "function %s in %s", name, scope)
	}

	return f, nil
}

func (s *queries) Type(ctx context.Context, scope progdb.Path, name string) (*progdb.DataType, error) {
	if err := s.check(); err != nil {
		return nil, err
	}

	ref := progdb.TypeRef{Scope: scope, Name: name}

	var row typeRow
	if err := sqlx.GetContext(ctx, s.q, &row,
		`SELECT kind, size, comment FROM types WHERE scope = ? AND name = ?`, scope.Key(), name); err != nil {
		return nil, notFound(err, "type %s", ref)
	}

	t := &progdb.DataType{
		Kind:    progdb.TypeKind(row.Kind),
		Scope:   scope.Clone(),
		Name:    name,
		Size:    toUint(row.Size),
		Comment: row.Comment,
	}

	var fields []fieldRow
	if err := sqlx.SelectContext(ctx, s.q, &fields,
		`SELECT field_offset, size, name, kind, ref_scope, ref_name, primitive, target, comment
		FROM fields WHERE scope = ? AND type_name = ? ORDER BY ord`, scope.Key(), name); err != nil {
		return nil, fmt.Errorf("fields of %s: %w", ref, err)
	}

	for _, f := range fields {
		field := progdb.Field{
			Offset:    toUint(f.Offset),
			Size:      toUint(f.Size),
			Name:      f.Name,
			Kind:      progdb.FieldKind(f.Kind),
			Primitive: f.Primitive,
			Comment:   f.Comment,
		}

		if f.RefName.Valid {
			field.Type = &progdb.TypeRef{Scope: progdb.ParsePathKey(f.RefScope.String), Name: f.RefName.String}
		}

		if f.Target.Valid {
			target := toUint(f.Target.Int64)
			field.Target = &target
		}

		t.Fields = append(t.Fields, field)
	}

	var bases []baseRow
	if err := sqlx.SelectContext(ctx, s.q, &bases,
		`SELECT ref_scope, ref_name, base_offset, is_virtual FROM bases WHERE scope = ? AND type_name = ? ORDER BY ord`,
		scope.Key(), name); err != nil {
		return nil, fmt.Errorf("bases of %s: %w", ref, err)
	}

	for _, b := range bases {
		t.Bases = append(t.Bases, progdb.BaseLink{
			Type:    progdb.TypeRef{Scope: progdb.ParsePathKey(b.RefScope), Name: b.RefName},
			Offset:  toUint(b.Offset),
			Virtual: b.Virtual,
		})
	}

	return t, nil
}

func (s *queries) TypeReferences(ctx context.Context, ref progdb.TypeRef) (int, error) {
	if err := s.check(); err != nil {
		return 0, err
	}

	key := ref.Scope.Key()

	var n int
	err := sqlx.GetContext(ctx, s.q, &n, `
		SELECT (SELECT COUNT(*) FROM data_refs d WHERE d.ref_scope = ? AND d.ref_name = ?)
		+ (SELECT COUNT(*) FROM types t
		WHERE NOT (t.scope = ? AND t.name = ?)
		AND (
			EXISTS (SELECT 1 FROM fields f
				WHERE f.scope = t.scope AND f.type_name = t.name AND f.ref_scope = ? AND f.ref_name = ?)
			OR EXISTS (SELECT 1 FROM bases b
				WHERE b.scope = t.scope AND b.type_name = t.name AND b.ref_scope = ? AND b.ref_name = ?)
		))`, key, ref.Name, key, ref.Name, key, ref.Name, key, ref.Name)
	if err != nil {
		return 0, fmt.Errorf("references to %s: %w", ref, err)
	}

	return n, nil
}

func (s *queries) DataAt(ctx context.Context, addr uint64) (*progdb.DataRef, error) {
	if err := s.check(); err != nil {
		return nil, err
	}

	var row dataRow
	if err := sqlx.GetContext(ctx, s.q, &row,
		`SELECT address, ref_scope, ref_name, label FROM data_refs WHERE address = ?`, toInt(addr)); err != nil {
		return nil, notFound(err, "data at 0x%x", addr)
	}

	return &progdb.DataRef{
		Address: toUint(row.Address),
		Type:    progdb.TypeRef{Scope: progdb.ParsePathKey(row.RefScope), Name: row.RefName},
		Label:   row.Label,
	}, nil
}

func (s *queries) PutNamespace(ctx context.Context, ns progdb.Namespace) error {
	if err := s.check(); err != nil {
		return err
	}

	_, err := s.q.ExecContext(ctx,
		`INSERT INTO namespaces (path, is_class) VALUES (?, ?)
		ON CONFLICT(path) DO UPDATE SET is_class = excluded.is_class`, ns.Path.Key(), ns.Class)
	if err != nil {
		return fmt.Errorf("store namespace %s: %w", ns.Path, err)
	}

	return nil
}

func (s *queries) PutType(ctx context.Context, t progdb.DataType) error {
	if err := s.check(); err != nil {
		return err
	}

	if t.Name == "" {
		return fmt.Errorf("type without a name in %s", t.Scope)
	}

	key := t.Scope.Key()

	if _, err := s.q.ExecContext(ctx, `DELETE FROM types WHERE scope = ? AND name = ?`, key, t.Name); err != nil {
		return fmt.Errorf("replace type %s: %w", t.Ref(), err)
	}

	// Cascades are not relied upon: foreign keys may be disabled on a
	// database created elsewhere.
	for _, table := range []string{"fields", "bases"} {
		if _, err := s.q.ExecContext(ctx,
			`DELETE FROM `+table+` WHERE scope = ? AND type_name = ?`, key, t.Name); err != nil {
			return fmt.Errorf("replace type %s: %w", t.Ref(), err)
		}
	}

	if _, err := s.q.ExecContext(ctx,
		`INSERT INTO types (scope, name, kind, size, comment) VALUES (?, ?, ?, ?, ?)`,
		key, t.Name, int(t.Kind), toInt(t.Size), t.Comment); err != nil {
		return fmt.Errorf("store type %s: %w", t.Ref(), err)
	}

	for i, f := range t.Fields {
		var (
			refScope, refName sql.NullString
			target            sql.NullInt64
		)

		if f.Type != nil {
			refScope = sql.NullString{String: f.Type.Scope.Key(), Valid: true}
			refName = sql.NullString{String: f.Type.Name, Valid: true}
		}

		if f.Target != nil {
			target = sql.NullInt64{Int64: toInt(*f.Target), Valid: true}
		}

		if _, err := s.q.ExecContext(ctx,
			`INSERT INTO fields (scope, type_name, ord, field_offset, size, name, kind, ref_scope, ref_name, primitive, target, comment)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			key, t.Name, i, toInt(f.Offset), toInt(f.Size), f.Name, int(f.Kind),
			refScope, refName, f.Primitive, target, f.Comment); err != nil {
			return fmt.Errorf("store field %s of %s: %w", f.Name, t.Ref(), err)
		}
	}

	for i, b := range t.Bases {
		if _, err := s.q.ExecContext(ctx,
			`INSERT INTO bases (scope, type_name, ord, ref_scope, ref_name, base_offset, is_virtual)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			key, t.Name, i, b.Type.Scope.Key(), b.Type.Name, toInt(b.Offset), b.Virtual); err != nil {
			return fmt.Errorf("store base %s of %s: %w", b.Type, t.Ref(), err)
		}
	}

	return nil
}

func (s *queries) PutFunction(ctx context.Context, f progdb.Function) error {
	if err := s.check(); err != nil {
		return err
	}

	_, err := s.q.ExecContext(ctx,
		`INSERT INTO functions (address, name, scope, qualified) VALUES (?, ?, ?, ?)
		ON CONFLICT(address) DO UPDATE SET name = excluded.name, scope = excluded.scope, qualified = excluded.qualified`,
		toInt(f.Address), f.Name, f.Scope.Key(), f.QualifiedName())
	if err != nil {
		return fmt.Errorf("store function at 0x%x: %w", f.Address, err)
	}

	return nil
}

func (s *queries) PutData(ctx context.Context, d progdb.DataRef) error {
	if err := s.check(); err != nil {
		return err
	}

	_, err := s.q.ExecContext(ctx,
		`INSERT INTO data_refs (address, ref_scope, ref_name, label) VALUES (?, ?, ?, ?)
		ON CONFLICT(address) DO UPDATE SET ref_scope = excluded.ref_scope, ref_name = excluded.ref_name, label = excluded.label`,
		toInt(d.Address), d.Type.Scope.Key(), d.Type.Name, d.Label)
	if err != nil {
		return fmt.Errorf("store data at 0x%x: %w", d.Address, err)
	}

	return nil
}
