package plan

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"class-importer/internal/descriptor"
	"class-importer/internal/progdb"
	"class-importer/internal/progdb/memdb"
)

var testProgram = progdb.Program{
	Name:        "sample.exe",
	MD5:         "5d41402abc4b2a76b9719d911017c592",
	Analyzed:    true,
	PointerSize: 4,
	Ranges:      []progdb.AddressRange{{Start: 0x400000, End: 0x410000}},
}

// seed returns a database holding testProgram plus the given entities.
func seed(t *testing.T, entities ...any) *memdb.DB {
	t.Helper()

	ctx := context.Background()
	db := memdb.New()
	require.NoError(t, db.SetProgram(ctx, testProgram))

	tx, err := db.Begin(ctx)
	require.NoError(t, err)

	for _, e := range entities {
		switch v := e.(type) {
		case progdb.Function:
			require.NoError(t, tx.PutFunction(ctx, v))
		case progdb.DataType:
			require.NoError(t, tx.PutType(ctx, v))
		case progdb.Namespace:
			require.NoError(t, tx.PutNamespace(ctx, v))
		case progdb.DataRef:
			require.NoError(t, tx.PutData(ctx, v))
		default:
			t.Fatalf("cannot seed %T", e)
		}
	}

	require.NoError(t, tx.Commit())

	return db
}

func fn(addr uint64, name string, scope ...string) progdb.Function {
	return progdb.Function{Address: addr, Name: name, Scope: progdb.Path(scope).Clone()}
}

func parse(t *testing.T, data string) *descriptor.Document {
	t.Helper()

	doc, err := descriptor.Parse([]byte(data))
	require.NoError(t, err)

	return doc
}

func emptyDB(t *testing.T) *memdb.DB {
	t.Helper()

	return memdb.New()
}
