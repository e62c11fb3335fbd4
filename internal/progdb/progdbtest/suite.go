// Package progdbtest holds the behaviour every progdb adapter must share,
// written as a test suite the adapters run against themselves.
package progdbtest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"class-importer/internal/progdb"
)

// Store is an adapter under test.
type Store interface {
	progdb.Database
	progdb.Registrar
}

// Factory opens a fresh, empty store. The suite closes it.
type Factory func(t *testing.T) Store

// Run runs the shared adapter suite.
func Run(t *testing.T, open Factory) {
	t.Helper()

	tests := []struct {
		name string
		fn   func(t *testing.T, s Store)
	}{
		{name: "program", fn: testProgram},
		{name: "namespaces", fn: testNamespaces},
		{name: "functions", fn: testFunctions},
		{name: "types", fn: testTypes},
		{name: "type references", fn: testTypeReferences},
		{name: "data", fn: testData},
		{name: "commit", fn: testCommit},
		{name: "rollback", fn: testRollback},
		{name: "finished tx", fn: testFinishedTx},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := open(t)
			defer func() { assert.NoError(t, s.Close()) }()

			tt.fn(t, s)
		})
	}
}

// Sample is a program with one mapped range, used by the suite.
var Sample = progdb.Program{
	Name:        "sample.exe",
	MD5:         "5d41402abc4b2a76b9719d911017c592",
	Analyzed:    true,
	PointerSize: 4,
	Ranges:      []progdb.AddressRange{{Start: 0x400000, End: 0x410000}},
}

func begin(t *testing.T, s Store) progdb.Tx {
	t.Helper()

	tx, err := s.Begin(context.Background())
	require.NoError(t, err)

	return tx
}

func testProgram(t *testing.T, s Store) {
	ctx := context.Background()

	_, err := s.Program(ctx)
	require.ErrorIs(t, err, progdb.ErrNotFound)

	require.NoError(t, s.SetProgram(ctx, Sample))

	p, err := s.Program(ctx)
	require.NoError(t, err)
	assert.Equal(t, Sample, *p)
	assert.True(t, p.Contains(0x401000))

	updated := Sample
	updated.Analyzed = false
	updated.Ranges = nil
	require.NoError(t, s.SetProgram(ctx, updated))

	p, err = s.Program(ctx)
	require.NoError(t, err)
	assert.False(t, p.Analyzed)
	assert.Empty(t, p.Ranges)
}

func testNamespaces(t *testing.T, s Store) {
	ctx := context.Background()

	global, err := s.Namespace(ctx, nil)
	require.NoError(t, err)
	assert.True(t, global.Path.IsGlobal())

	_, err = s.Namespace(ctx, progdb.Path{"ns"})
	require.ErrorIs(t, err, progdb.ErrNotFound)

	tx := begin(t, s)
	require.NoError(t, tx.PutNamespace(ctx, progdb.Namespace{Path: progdb.Path{"ns"}}))
	require.NoError(t, tx.PutNamespace(ctx, progdb.Namespace{Path: progdb.Path{"ns", "map<a::b>"}, Class: true}))

	ns, err := tx.Namespace(ctx, progdb.Path{"ns", "map<a::b>"})
	require.NoError(t, err)
	assert.True(t, ns.Class)

	require.NoError(t, tx.PutNamespace(ctx, progdb.Namespace{Path: progdb.Path{"ns"}, Class: true}))
	require.NoError(t, tx.Commit())

	ns, err = s.Namespace(ctx, progdb.Path{"ns"})
	require.NoError(t, err)
	assert.Equal(t, progdb.Path{"ns"}, ns.Path)
	assert.True(t, ns.Class)

	_, err = s.Namespace(ctx, progdb.Path{"ns", "map<a"})
	assert.ErrorIs(t, err, progdb.ErrNotFound)
}

func testFunctions(t *testing.T, s Store) {
	ctx := context.Background()

	tx := begin(t, s)
	require.NoError(t, tx.PutFunction(ctx, progdb.Function{Address: 0x401000, Name: "FUN_00401000"}))
	require.NoError(t, tx.PutFunction(ctx, progdb.Function{Address: 0x401020, Name: "get", Scope: progdb.Path{"ns", "Widget"}}))
	require.NoError(t, tx.PutFunction(ctx, progdb.Function{Address: 0xffffffff00001000, Name: "high"}))
	require.NoError(t, tx.Commit())

	f, err := s.FunctionAt(ctx, 0x401000)
	require.NoError(t, err)
	assert.Equal(t, "FUN_00401000", f.Name)
	assert.True(t, f.Scope.IsGlobal())

	f, err = s.FunctionAt(ctx, 0xffffffff00001000)
	require.NoError(t, err)
	assert.Equal(t, "high", f.Name)

	_, err = s.FunctionAt(ctx, 0x401004)
	require.ErrorIs(t, err, progdb.ErrNotFound)

	f, err = s.FunctionNamed(ctx, "FUN_00401000")
	require.NoError(t, err)
	assert.Equal(t, uint64(0x401000), f.Address)

	f, err = s.FunctionNamed(ctx, "ns::Widget::get")
	require.NoError(t, err)
	assert.Equal(t, uint64(0x401020), f.Address)

	_, err = s.FunctionNamed(ctx, "missing")
	require.ErrorIs(t, err, progdb.ErrNotFound)

	f, err = s.FunctionIn(ctx, progdb.Path{"ns", "Widget"}, "get")
	require.NoError(t, err)
	assert.Equal(t, uint64(0x401020), f.Address)

	_, err = s.FunctionIn(ctx, nil, "get")
	require.ErrorIs(t, err, progdb.ErrNotFound)

	// Re-putting a function moves and renames it.
	tx = begin(t, s)
	require.NoError(t, tx.PutFunction(ctx, progdb.Function{Address: 0x401000, Name: "Widget", Scope: progdb.Path{"ns", "Widget"}}))
	require.NoError(t, tx.Commit())

	_, err = s.FunctionIn(ctx, nil, "FUN_00401000")
	require.ErrorIs(t, err, progdb.ErrNotFound)

	f, err = s.FunctionAt(ctx, 0x401000)
	require.NoError(t, err)
	assert.Equal(t, "ns::Widget::Widget", f.QualifiedName())
}

func sampleType() progdb.DataType {
	target := uint64(0x401020)

	return progdb.DataType{
		Kind:    progdb.TypeComposite,
		Scope:   progdb.Path{"ns"},
		Name:    "Widget",
		Size:    8,
		Comment: "imported",
		Fields: []progdb.Field{
			{Offset: 0, Size: 4, Name: "vfptr", Kind: progdb.FieldData, Type: &progdb.TypeRef{Scope: progdb.Path{"ns", "Widget"}, Name: "vftable"}},
			{Offset: 4, Size: 4, Name: "count", Kind: progdb.FieldData, Primitive: "int32_t", Target: &target, Comment: "c"},
		},
		Bases: []progdb.BaseLink{{Type: progdb.TypeRef{Name: "Base"}, Offset: 0, Virtual: true}},
	}
}

func testTypes(t *testing.T, s Store) {
	ctx := context.Background()
	want := sampleType()

	tx := begin(t, s)
	require.NoError(t, tx.PutType(ctx, want))

	got, err := tx.Type(ctx, progdb.Path{"ns"}, "Widget")
	require.NoError(t, err)
	assert.Equal(t, want, *got)
	require.NoError(t, tx.Commit())

	got, err = s.Type(ctx, progdb.Path{"ns"}, "Widget")
	require.NoError(t, err)
	assert.Equal(t, want, *got)

	_, err = s.Type(ctx, nil, "Widget")
	require.ErrorIs(t, err, progdb.ErrNotFound)

	// Replacing a type replaces its fields and bases.
	replaced := progdb.DataType{Kind: progdb.TypeComposite, Scope: progdb.Path{"ns"}, Name: "Widget", Size: 12,
		Fields: []progdb.Field{{Offset: 0, Size: 12, Name: "undefined", Kind: progdb.FieldFiller, Primitive: "undefined"}}}

	tx = begin(t, s)
	require.NoError(t, tx.PutType(ctx, replaced))
	require.NoError(t, tx.Commit())

	got, err = s.Type(ctx, progdb.Path{"ns"}, "Widget")
	require.NoError(t, err)
	assert.Equal(t, uint64(12), got.Size)
	assert.Len(t, got.Fields, 1)
	assert.Empty(t, got.Bases)
}

func testTypeReferences(t *testing.T, s Store) {
	ctx := context.Background()
	base := progdb.TypeRef{Name: "Base"}

	tx := begin(t, s)
	require.NoError(t, tx.PutType(ctx, progdb.DataType{Kind: progdb.TypeComposite, Name: "Base", Size: 4}))

	n, err := tx.TypeReferences(ctx, base)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	require.NoError(t, tx.PutType(ctx, sampleType()))
	require.NoError(t, tx.PutType(ctx, progdb.DataType{Kind: progdb.TypeComposite, Name: "User", Size: 4,
		Fields: []progdb.Field{{Size: 4, Name: "b", Type: &base}}}))

	n, err = tx.TypeReferences(ctx, base)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.NoError(t, tx.Commit())

	vftable := progdb.TypeRef{Scope: progdb.Path{"ns", "Widget"}, Name: "vftable"}

	n, err = s.TypeReferences(ctx, vftable)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	tx = begin(t, s)
	require.NoError(t, tx.PutData(ctx, progdb.DataRef{Address: 0x40a000, Type: vftable}))
	require.NoError(t, tx.PutData(ctx, progdb.DataRef{Address: 0x40b000, Type: base}))
	require.NoError(t, tx.Commit())

	n, err = s.TypeReferences(ctx, vftable)
	require.NoError(t, err)
	assert.Equal(t, 2, n, "a data binding counts as a reference")

	n, err = s.TypeReferences(ctx, base)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func testData(t *testing.T, s Store) {
	ctx := context.Background()
	ref := progdb.DataRef{Address: 0x40a000, Type: progdb.TypeRef{Scope: progdb.Path{"ns", "Widget"}, Name: "vftable"}, Label: "Widget::vftable"}

	tx := begin(t, s)
	require.NoError(t, tx.PutData(ctx, ref))
	require.NoError(t, tx.Commit())

	got, err := s.DataAt(ctx, 0x40a000)
	require.NoError(t, err)
	assert.Equal(t, ref, *got)

	_, err = s.DataAt(ctx, 0x40a004)
	require.ErrorIs(t, err, progdb.ErrNotFound)
}

func testCommit(t *testing.T, s Store) {
	ctx := context.Background()

	tx := begin(t, s)
	require.NoError(t, tx.PutNamespace(ctx, progdb.Namespace{Path: progdb.Path{"a"}}))
	require.NoError(t, tx.Commit())

	// A second transaction starts after the first finished.
	tx = begin(t, s)
	_, err := tx.Namespace(ctx, progdb.Path{"a"})
	require.NoError(t, err)
	require.NoError(t, tx.Rollback())
}

func testRollback(t *testing.T, s Store) {
	ctx := context.Background()

	tx := begin(t, s)
	require.NoError(t, tx.PutNamespace(ctx, progdb.Namespace{Path: progdb.Path{"gone"}}))
	require.NoError(t, tx.PutType(ctx, sampleType()))
	require.NoError(t, tx.PutFunction(ctx, progdb.Function{Address: 1, Name: "f"}))
	require.NoError(t, tx.PutData(ctx, progdb.DataRef{Address: 2, Type: progdb.TypeRef{Name: "T"}}))

	_, err := tx.Namespace(ctx, progdb.Path{"gone"})
	require.NoError(t, err, "a transaction reads its own writes")
	require.NoError(t, tx.Rollback())

	_, err = s.Namespace(ctx, progdb.Path{"gone"})
	assert.ErrorIs(t, err, progdb.ErrNotFound)
	_, err = s.Type(ctx, progdb.Path{"ns"}, "Widget")
	assert.ErrorIs(t, err, progdb.ErrNotFound)
	_, err = s.FunctionAt(ctx, 1)
	assert.ErrorIs(t, err, progdb.ErrNotFound)
	_, err = s.DataAt(ctx, 2)
	assert.ErrorIs(t, err, progdb.ErrNotFound)
}

func testFinishedTx(t *testing.T, s Store) {
	ctx := context.Background()

	tx := begin(t, s)
	require.NoError(t, tx.Commit())

	assert.ErrorIs(t, tx.Commit(), progdb.ErrTxDone)
	assert.ErrorIs(t, tx.Rollback(), progdb.ErrTxDone)
	assert.ErrorIs(t, tx.PutNamespace(ctx, progdb.Namespace{Path: progdb.Path{"x"}}), progdb.ErrTxDone)

	_, err := tx.Namespace(ctx, progdb.Path{"x"})
	assert.ErrorIs(t, err, progdb.ErrTxDone)
}
