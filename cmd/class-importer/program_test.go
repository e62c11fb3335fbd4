package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"class-importer/internal/progdb"
	"class-importer/internal/progdb/memdb"
)

func TestParseRanges(t *testing.T) {
	got, err := parseRanges([]string{"0x400000-0x410000", "1000h - 2000h"})
	require.NoError(t, err)
	assert.Equal(t, []progdb.AddressRange{{Start: 0x400000, End: 0x410000}, {Start: 0x1000, End: 0x2000}}, got)

	for _, bad := range []string{"0x400000", "x-0x10", "0x10-sym", "0x20-0x10"} {
		_, err := parseRanges([]string{bad})
		assert.Error(t, err, bad)
	}
}

func TestLoadFunctions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "functions.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
functions:
  - address: 0x401000
    name: FUN_00401000
  - address: "401020h"
    name: draw
    scope: Shapes::Circle
  - address: 4198448
`), 0o600))

	fns, err := loadFunctions(path)
	require.NoError(t, err)

	assert.Equal(t, []progdb.Function{
		{Address: 0x401000, Name: "FUN_00401000"},
		{Address: 0x401020, Name: "draw", Scope: progdb.Path{"Shapes", "Circle"}},
		{Address: 0x401030, Name: "FUN_00401030"},
	}, fns)
}

func TestLoadFunctions_Symbolic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "functions.yaml")
	require.NoError(t, os.WriteFile(path, []byte("functions:\n  - address: sub_main\n"), 0o600))

	_, err := loadFunctions(path)
	assert.Error(t, err)
}

func TestRegister(t *testing.T) {
	ctx := context.Background()
	db := memdb.New()

	err := register(ctx, db, progdb.Program{Name: "a.exe", Analyzed: true}, []progdb.Function{
		{Address: 0x401020, Name: "draw", Scope: progdb.Path{"Shapes", "Circle"}},
	})
	require.NoError(t, err)

	f, err := db.FunctionAt(ctx, 0x401020)
	require.NoError(t, err)
	assert.Equal(t, "Shapes::Circle::draw", f.QualifiedName())

	_, err = db.Namespace(ctx, progdb.Path{"Shapes"})
	assert.NoError(t, err)
}
