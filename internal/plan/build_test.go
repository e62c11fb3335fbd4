package plan

import (
	"context"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"class-importer/internal/descriptor"
	"class-importer/internal/errs"
	"class-importer/internal/progdb"
)

const inheritanceDoc = `{
  "md5": "5D41402ABC4B2A76B9719D911017C592",
  "structures": [
    {
      "name": "B",
      "size": 12,
      "bases": [ { "name": "A", "offset": 0 } ],
      "members": [ { "offset": 8, "size": 4, "type": "int", "name": "extra" } ],
      "methods": [ { "address": "0x401100", "kind": "ctor", "name": "B" } ]
    },
    {
      "name": "A",
      "size": 8,
      "members": [ { "offset": 4, "size": 4, "type": "int" } ],
      "methods": [
        { "address": "0x401000", "kind": "ctor" },
        { "address": "0x401020", "kind": "virtual", "vtableSlot": 1, "name": "draw" }
      ],
      "vtables": [ { "base": "0x40a000", "slots": [ "0x401040", "0x401020" ] } ]
    }
  ]
}`

func TestBuild_Inheritance(t *testing.T) {
	db := seed(t,
		fn(0x401000, "FUN_00401000"),
		fn(0x401020, "FUN_00401020"),
		fn(0x401040, "FUN_00401040"),
		fn(0x401100, "FUN_00401100"),
	)

	p, err := Build(context.Background(), parse(t, inheritanceDoc), db, DefaultOptions())
	require.NoError(t, err)
	require.Len(t, p.Classes, 2, spew.Sdump(p.Classes))

	assert.Equal(t, uint64(4), p.PointerSize)
	assert.Empty(t, p.Conflicts)

	a, b := p.Classes[0], p.Classes[1]
	assert.Equal(t, "A", a.Class.Name)
	assert.Equal(t, 1, a.Index)
	assert.Equal(t, "B", b.Class.Name)

	assert.Equal(t, progdb.Path{"OOAnalyzer", "A"}, a.NamespacePath())
	assert.Equal(t, ActionCreate, a.Namespaces[0].Action)
	assert.Equal(t, Decision{Action: ActionCreate, Scope: progdb.Path{"OOAnalyzer"}, Requested: "A", Name: "A"}, a.Type)

	require.Len(t, a.Vtables, 1)
	vt := a.Vtables[0]
	assert.Equal(t, progdb.TypeRef{Scope: progdb.Path{"OOAnalyzer", "A"}, Name: "vftable"}, vt.Type.Ref())
	require.NotNil(t, vt.BaseAddress)
	assert.Equal(t, uint64(0x40a000), *vt.BaseAddress)
	require.Len(t, vt.Slots, 2)
	assert.Equal(t, "FUN_00401040", vt.Slots[0].Name)
	assert.Equal(t, "draw", vt.Slots[1].Name)
	assert.Equal(t, uint64(0x401020), *vt.Slots[1].Target)

	require.Len(t, a.Methods, 2)
	assert.Equal(t, "FUN_00401000", a.Methods[0].Decision.Name)
	assert.Equal(t, ActionCreate, a.Methods[0].Decision.Action)
	assert.Equal(t, progdb.Path{"OOAnalyzer", "A"}, a.Methods[0].Decision.Scope)
	assert.Equal(t, "draw", a.Methods[1].Decision.Name)
	assert.Equal(t, descriptor.MethodKindVirtual, a.Methods[1].Kind)

	require.Len(t, b.Bases, 1)
	assert.Equal(t, BasePlan{Class: "A", Type: a.Type.Ref(), Offset: 0, Size: 8}, b.Bases[0])
	assert.Equal(t, ActionReuse, b.Namespaces[0].Action, "root namespace was planned by A")

	got, ok := p.Find("B")
	require.True(t, ok)
	assert.Equal(t, "B", got.Methods[0].Decision.Name)
}

func TestBuild_GlobalScope(t *testing.T) {
	db := seed(t)

	opts := DefaultOptions()
	opts.UseDedicatedNamespace = false

	p, err := Build(context.Background(), parse(t, `{"structures":[{"name":"cls_1","demangledName":"ns::Widget","size":4}]}`), db, opts)
	require.NoError(t, err)
	require.Len(t, p.Classes, 1)

	c := p.Classes[0]
	assert.Equal(t, progdb.Path{"ns", "Widget"}, c.NamespacePath())
	assert.Equal(t, progdb.TypeRef{Scope: progdb.Path{"ns"}, Name: "Widget"}, c.Type.Ref())
}

func TestBuild_MissingFunction(t *testing.T) {
	db := seed(t)

	p, err := Build(context.Background(),
		parse(t, `{"structures":[{"name":"A","size":4,"methods":[{"address":"0x401000"},{"address":"sub_missing"}]}]}`),
		db, DefaultOptions())
	require.NoError(t, err)

	assert.Empty(t, p.Classes[0].Methods)
	assert.Len(t, p.Diagnostics.ByCode("method_not_found"), 2)
}

func TestBuild_SymbolicMethod(t *testing.T) {
	db := seed(t, fn(0x401000, "?get@Widget@@QAEHXZ"))

	p, err := Build(context.Background(),
		parse(t, `{"structures":[{"name":"A","size":4,"methods":[{"address":"?get@Widget@@QAEHXZ","name":"get"}]}]}`),
		db, DefaultOptions())
	require.NoError(t, err)

	require.Len(t, p.Classes[0].Methods, 1)
	m := p.Classes[0].Methods[0]
	assert.Equal(t, uint64(0x401000), m.Address)
	assert.Equal(t, "get", m.Decision.Name)
	assert.Equal(t, "?get@Widget@@QAEHXZ", m.Function.Name)
}

func TestBuild_SharedFunction(t *testing.T) {
	db := seed(t, fn(0x401000, "shared"))

	p, err := Build(context.Background(), parse(t, `{"structures":[
		{"name":"A","size":4,"methods":[{"address":"0x401000"}]},
		{"name":"B","size":4,"methods":[{"address":"0x401000"}]}]}`), db, DefaultOptions())
	require.NoError(t, err)

	assert.Len(t, p.Classes[0].Methods, 1)
	assert.Empty(t, p.Classes[1].Methods)
	assert.Len(t, p.Diagnostics.ByCode("method_shared"), 1)
}

func TestBuild_SameDisplayName(t *testing.T) {
	db := seed(t)

	p, err := Build(context.Background(), parse(t, `{"structures":[
		{"name":"cls_1","demangledName":"Widget","size":4},
		{"name":"cls_2","demangledName":"Widget","size":8}]}`), db, DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, progdb.Path{"OOAnalyzer", "Widget"}, p.Classes[0].NamespacePath())
	assert.Equal(t, progdb.Path{"OOAnalyzer", "Widget_1"}, p.Classes[1].NamespacePath())
	assert.Equal(t, "Widget_1", p.Classes[1].Type.Name)
	require.Len(t, p.Conflicts, 1)
	assert.Equal(t, ConflictNamespace, p.Conflicts[0].Kind)
}

func TestBuild_NestedClass(t *testing.T) {
	db := seed(t)

	p, err := Build(context.Background(), parse(t, `{"structures":[
		{"name":"inner","demangledName":"Outer::Inner","size":4},
		{"name":"outer","demangledName":"Outer","size":8}]}`), db, DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, progdb.Path{"OOAnalyzer", "Outer", "Inner"}, p.Classes[0].NamespacePath())
	assert.Equal(t, progdb.Path{"OOAnalyzer", "Outer"}, p.Classes[1].NamespacePath())
	assert.Empty(t, p.Conflicts)
}

func TestBuild_DefaultPointerSize(t *testing.T) {
	ctx := context.Background()
	db := seed(t)

	prog := testProgram
	prog.PointerSize = 0
	require.NoError(t, db.SetProgram(ctx, prog))

	doc := parse(t, `{"structures":[{"name":"A","size":4,"vtables":[{"slots":[null,null]}]}]}`)

	p, err := Build(ctx, doc, db, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, uint64(4), p.PointerSize)
	assert.Len(t, p.Diagnostics.ByCode("pointer_size_defaulted"), 1)

	opts := DefaultOptions()
	opts.PointerSize = 8

	p, err = Build(ctx, doc, db, opts)
	require.NoError(t, err)
	assert.Equal(t, uint64(8), p.PointerSize)
	assert.Equal(t, []SlotPlan{{Index: 0, Name: "slot_0"}, {Index: 1, Name: "slot_1"}}, p.Classes[0].Vtables[0].Slots)
}

func TestBuild_Errors(t *testing.T) {
	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	tests := []struct {
		name     string
		ctx      context.Context
		noProg   bool
		data     string
		wantKind errs.Kind
	}{
		{
			name:     "invalid description",
			data:     `{"structures":[{"name":"A","size":2,"members":[{"offset":0,"size":4}]}]}`,
			wantKind: errs.KindInput,
		},
		{
			name:     "no program",
			noProg:   true,
			data:     `{"structures":[{"name":"A","size":4}]}`,
			wantKind: errs.KindPrecondition,
		},
		{
			name:     "cycle",
			data:     `{"structures":[{"name":"A","size":4,"bases":[{"name":"A","offset":0}]}]}`,
			wantKind: errs.KindStructural,
		},
		{
			name:     "cancelled",
			ctx:      cancelled,
			data:     `{"structures":[{"name":"A","size":4}]}`,
			wantKind: errs.KindCancelled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := tt.ctx
			if ctx == nil {
				ctx = context.Background()
			}

			var reader progdb.Reader = seed(t)
			if tt.noProg {
				reader = emptyDB(t)
			}

			p, err := Build(ctx, parse(t, tt.data), reader, DefaultOptions())
			require.Error(t, err)
			require.NotNil(t, p)
			assert.Equal(t, tt.wantKind, errs.KindOf(err), "%v", err)
			assert.Empty(t, p.Classes)
		})
	}
}

func TestBuild_InvalidKeepsDiagnostics(t *testing.T) {
	p, err := Build(context.Background(), parse(t, `{"structures":[{"name":""}]}`), seed(t), DefaultOptions())
	require.Error(t, err)
	assert.Len(t, p.Diagnostics.ByCode("class_name_empty"), 1)
}

func TestBuild_UnknownBaseStillPlanned(t *testing.T) {
	p, err := Build(context.Background(),
		parse(t, `{"structures":[{"name":"B","size":8,"bases":[{"name":"Missing","offset":0}]}]}`),
		seed(t), DefaultOptions())
	require.NoError(t, err)

	require.Len(t, p.Classes, 1)
	assert.Empty(t, p.Classes[0].Bases)
	assert.Len(t, p.Diagnostics.ByCode("unknown_base"), 1)
}

func TestBuild_BoundVtableIsNotGrown(t *testing.T) {
	vftable := progdb.TypeRef{Scope: progdb.Path{"OOAnalyzer", "V"}, Name: "vftable"}
	db := seed(t,
		fn(0x401000, "FUN_00401000"),
		progdb.Namespace{Path: progdb.Path{"OOAnalyzer"}},
		progdb.Namespace{Path: progdb.Path{"OOAnalyzer", "V"}, Class: true},
		progdb.DataType{Kind: progdb.TypeComposite, Scope: vftable.Scope, Name: "vftable", Size: 4},
		progdb.DataRef{Address: 0x40a000, Type: vftable},
	)

	doc := parse(t, `{
  "structures": [
    {
      "name": "V",
      "size": 4,
      "vtables": [ { "base": "0x40a000", "slots": [ "0x401000", null, "thunk" ] } ]
    }
  ]
}`)

	p, err := Build(context.Background(), doc, db, DefaultOptions())
	require.NoError(t, err)
	require.Len(t, p.Classes, 1)
	require.Len(t, p.Classes[0].Vtables, 1)

	vt := p.Classes[0].Vtables[0].Type
	assert.Equal(t, ActionRename, vt.Action)
	assert.Equal(t, "vftable_1", vt.Name)

	stored, err := db.Type(context.Background(), vftable.Scope, vftable.Name)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), stored.Size)
}
