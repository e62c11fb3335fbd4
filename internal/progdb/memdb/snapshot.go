package memdb

import (
	"cmp"
	"slices"

	"class-importer/internal/progdb"
)

// Snapshot is a sorted, comparable copy of the committed contents.
type Snapshot struct {
	Program    *progdb.Program
	Namespaces []progdb.Namespace
	Functions  []progdb.Function
	Types      []progdb.DataType
	Data       []progdb.DataRef
}

// Snapshot copies the committed state. Two snapshots of identical contents
// are equal under reflect.DeepEqual.
func (db *DB) Snapshot() Snapshot {
	st := db.read()

	var snap Snapshot

	if st.program != nil {
		p := *st.program
		p.Ranges = slices.Clone(p.Ranges)
		snap.Program = &p
	}

	for _, ns := range st.namespaces {
		ns.Path = ns.Path.Clone()
		snap.Namespaces = append(snap.Namespaces, ns)
	}

	for _, f := range st.functions {
		f.Scope = f.Scope.Clone()
		snap.Functions = append(snap.Functions, f)
	}

	for _, t := range st.types {
		snap.Types = append(snap.Types, t.Clone())
	}

	for _, d := range st.data {
		d.Type.Scope = d.Type.Scope.Clone()
		snap.Data = append(snap.Data, d)
	}

	slices.SortFunc(snap.Namespaces, func(a, b progdb.Namespace) int { return cmp.Compare(a.Path.Key(), b.Path.Key()) })
	slices.SortFunc(snap.Functions, func(a, b progdb.Function) int { return cmp.Compare(a.Address, b.Address) })
	slices.SortFunc(snap.Types, func(a, b progdb.DataType) int { return cmp.Compare(a.Ref().Key(), b.Ref().Key()) })
	slices.SortFunc(snap.Data, func(a, b progdb.DataRef) int { return cmp.Compare(a.Address, b.Address) })

	return snap
}

// Restore replaces the committed state with snap, waiting for any open
// transaction to finish first.
func (db *DB) Restore(snap Snapshot) {
	st := newState()

	if snap.Program != nil {
		p := *snap.Program
		p.Ranges = slices.Clone(p.Ranges)
		st.program = &p
	}

	for _, ns := range snap.Namespaces {
		ns.Path = ns.Path.Clone()
		st.namespaces[ns.Path.Key()] = ns
	}

	for _, f := range snap.Functions {
		f.Scope = f.Scope.Clone()
		st.functions[f.Address] = f
	}

	for _, t := range snap.Types {
		st.types[t.Ref().Key()] = t.Clone()
	}

	for _, d := range snap.Data {
		d.Type.Scope = d.Type.Scope.Clone()
		st.data[d.Address] = d
	}

	db.writer.Lock()
	defer db.writer.Unlock()

	db.mu.Lock()
	db.state = st
	db.mu.Unlock()
}
