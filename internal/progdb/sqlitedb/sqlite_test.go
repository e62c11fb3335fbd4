package sqlitedb

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"class-importer/internal/progdb"
	"class-importer/internal/progdb/progdbtest"
)

func TestSuite(t *testing.T) {
	progdbtest.Run(t, func(t *testing.T) progdbtest.Store {
		db, err := Open(MemoryPath, nil)
		require.NoError(t, err)

		return db
	})
}

func TestOpen_File(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "program.db")

	db, err := Open(path, nil)
	require.NoError(t, err)
	require.NoError(t, db.SetProgram(ctx, progdbtest.Sample))

	tx, err := db.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.PutFunction(ctx, progdb.Function{Address: 0x401000, Name: "f"}))
	require.NoError(t, tx.Commit())
	require.NoError(t, db.Close())

	// Reopening keeps the data and tolerates the existing schema.
	db, err = Open(path, nil)
	require.NoError(t, err)
	defer db.Close()

	p, err := db.Program(ctx)
	require.NoError(t, err)
	assert.Equal(t, progdbtest.Sample.MD5, p.MD5)

	f, err := db.FunctionAt(ctx, 0x401000)
	require.NoError(t, err)
	assert.Equal(t, "f", f.Name)
}

func TestFunctionNamed_PrefersLowestAddress(t *testing.T) {
	ctx := context.Background()

	db, err := Open(MemoryPath, nil)
	require.NoError(t, err)
	defer db.Close()

	tx, err := db.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.PutFunction(ctx, progdb.Function{Address: 0xffffffff00000000, Name: "dup"}))
	require.NoError(t, tx.PutFunction(ctx, progdb.Function{Address: 0x2000, Name: "dup"}))
	require.NoError(t, tx.PutFunction(ctx, progdb.Function{Address: 0x1000, Name: "dup", Scope: progdb.Path{"ns"}}))
	require.NoError(t, tx.Commit())

	f, err := db.FunctionNamed(ctx, "dup")
	require.NoError(t, err)
	assert.Equal(t, uint64(0x1000), f.Address)

	f, err = db.FunctionIn(ctx, nil, "dup")
	require.NoError(t, err)
	assert.Equal(t, uint64(0x2000), f.Address)
}
