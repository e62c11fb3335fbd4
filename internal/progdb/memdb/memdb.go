// Package memdb is an in-memory program database. A transaction works on a
// private copy of the committed state, so Rollback simply drops the copy.
package memdb

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"

	"class-importer/internal/progdb"
)

// DB is an in-memory progdb.Database. Only one transaction runs at a time;
// Begin blocks until the previous one finishes.
type DB struct {
	mu     sync.RWMutex
	writer sync.Mutex
	state  *state
}

var (
	_ progdb.Database  = (*DB)(nil)
	_ progdb.Registrar = (*DB)(nil)
	_ progdb.Tx        = (*Tx)(nil)
)

// New returns an empty database with no program registered.
func New() *DB {
	return &DB{state: newState()}
}

// SetProgram registers or replaces the program.
func (db *DB) SetProgram(_ context.Context, p progdb.Program) error {
	db.writer.Lock()
	defer db.writer.Unlock()

	p.Ranges = slices.Clone(p.Ranges)

	db.mu.Lock()
	st := db.state.clone()
	st.program = &p
	db.state = st
	db.mu.Unlock()

	return nil
}

// Begin starts a transaction on a copy of the committed state.
func (db *DB) Begin(ctx context.Context) (progdb.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	db.writer.Lock()

	db.mu.RLock()
	st := db.state.clone()
	db.mu.RUnlock()

	return &Tx{db: db, state: st}, nil
}

// Close is a no-op.
func (db *DB) Close() error {
	return nil
}

func (db *DB) read() *state {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return db.state
}

func (db *DB) Program(ctx context.Context) (*progdb.Program, error) {
	return db.read().Program(ctx)
}

func (db *DB) Namespace(ctx context.Context, path progdb.Path) (*progdb.Namespace, error) {
	return db.read().Namespace(ctx, path)
}

func (db *DB) FunctionAt(ctx context.Context, addr uint64) (*progdb.Function, error) {
	return db.read().FunctionAt(ctx, addr)
}

func (db *DB) FunctionNamed(ctx context.Context, name string) (*progdb.Function, error) {
	return db.read().FunctionNamed(ctx, name)
}

func (db *DB) FunctionIn(ctx context.Context, scope progdb.Path, name string) (*progdb.Function, error) {
	return db.read().FunctionIn(ctx, scope, name)
}

func (db *DB) Type(ctx context.Context, scope progdb.Path, name string) (*progdb.DataType, error) {
	return db.read().Type(ctx, scope, name)
}

func (db *DB) TypeReferences(ctx context.Context, ref progdb.TypeRef) (int, error) {
	return db.read().TypeReferences(ctx, ref)
}

func (db *DB) DataAt(ctx context.Context, addr uint64) (*progdb.DataRef, error) {
	return db.read().DataAt(ctx, addr)
}

// Tx is a memdb transaction.
type Tx struct {
	db    *DB
	state *state
	done  bool
}

func (tx *Tx) Commit() error {
	if tx.done {
		return progdb.ErrTxDone
	}

	tx.db.mu.Lock()
	tx.db.state = tx.state
	tx.db.mu.Unlock()

	tx.finish()

	return nil
}

func (tx *Tx) Rollback() error {
	if tx.done {
		return progdb.ErrTxDone
	}

	tx.finish()

	return nil
}

func (tx *Tx) finish() {
	tx.done = true
	tx.state = nil
	tx.db.writer.Unlock()
}

func (tx *Tx) live() (*state, error) {
	if tx.done {
		return nil, progdb.ErrTxDone
	}

	return tx.state, nil
}

func (tx *Tx) Program(ctx context.Context) (*progdb.Program, error) {
	st, err := tx.live()
	if err != nil {
		return nil, err
	}

	return st.Program(ctx)
}

func (tx *Tx) Namespace(ctx context.Context, path progdb.Path) (*progdb.Namespace, error) {
	st, err := tx.live()
	if err != nil {
		return nil, err
	}

	return st.Namespace(ctx, path)
}

func (tx *Tx) FunctionAt(ctx context.Context, addr uint64) (*progdb.Function, error) {
	st, err := tx.live()
	if err != nil {
		return nil, err
	}

	return st.FunctionAt(ctx, addr)
}

func (tx *Tx) FunctionNamed(ctx context.Context, name string) (*progdb.Function, error) {
	st, err := tx.live()
	if err != nil {
		return nil, err
	}

	return st.FunctionNamed(ctx, name)
}

func (tx *Tx) FunctionIn(ctx context.Context, scope progdb.Path, name string) (*progdb.Function, error) {
	st, err := tx.live()
	if err != nil {
		return nil, err
	}

	return st.FunctionIn(ctx, scope, name)
}

func (tx *Tx) Type(ctx context.Context, scope progdb.Path, name string) (*progdb.DataType, error) {
	st, err := tx.live()
	if err != nil {
		return nil, err
	}

	return st.Type(ctx, scope, name)
}

func (tx *Tx) TypeReferences(ctx context.Context, ref progdb.TypeRef) (int, error) {
	st, err := tx.live()
	if err != nil {
		return 0, err
	}

	return st.TypeReferences(ctx, ref)
}

func (tx *Tx) DataAt(ctx context.Context, addr uint64) (*progdb.DataRef, error) {
	st, err := tx.live()
	if err != nil {
		return nil, err
	}

	return st.DataAt(ctx, addr)
}

func (tx *Tx) PutNamespace(_ context.Context, ns progdb.Namespace) error {
	st, err := tx.live()
	if err != nil {
		return err
	}

	ns.Path = ns.Path.Clone()
	st.namespaces[ns.Path.Key()] = ns

	return nil
}

func (tx *Tx) PutType(_ context.Context, t progdb.DataType) error {
	st, err := tx.live()
	if err != nil {
		return err
	}

	if t.Name == "" {
		return fmt.Errorf("type without a name in %s", t.Scope)
	}

	st.types[t.Ref().Key()] = t.Clone()

	return nil
}

func (tx *Tx) PutFunction(_ context.Context, f progdb.Function) error {
	st, err := tx.live()
	if err != nil {
		return err
	}

	f.Scope = f.Scope.Clone()
	st.functions[f.Address] = f

	return nil
}

func (tx *Tx) PutData(_ context.Context, d progdb.DataRef) error {
	st, err := tx.live()
	if err != nil {
		return err
	}

	d.Type.Scope = d.Type.Scope.Clone()
	st.data[d.Address] = d

	return nil
}

// state is one version of the database contents.
type state struct {
	program    *progdb.Program
	namespaces map[string]progdb.Namespace
	functions  map[uint64]progdb.Function
	types      map[string]progdb.DataType
	data       map[uint64]progdb.DataRef
}

func newState() *state {
	return &state{
		namespaces: map[string]progdb.Namespace{},
		functions:  map[uint64]progdb.Function{},
		types:      map[string]progdb.DataType{},
		data:       map[uint64]progdb.DataRef{},
	}
}

// clone copies the maps; stored values are never mutated in place, so
// sharing them between versions is safe.
func (s *state) clone() *state {
	out := newState()
	out.program = s.program

	for k, v := range s.namespaces {
		out.namespaces[k] = v
	}

	for k, v := range s.functions {
		out.functions[k] = v
	}

	for k, v := range s.types {
		out.types[k] = v
	}

	for k, v := range s.data {
		out.data[k] = v
	}

	return out
}

func (s *state) Program(context.Context) (*progdb.Program, error) {
	if s.program == nil {
		return nil, fmt.Errorf("program: %w", progdb.ErrNotFound)
	}

	p := *s.program
	p.Ranges = slices.Clone(p.Ranges)

	return &p, nil
}

func (s *state) Namespace(_ context.Context, path progdb.Path) (*progdb.Namespace, error) {
	if path.IsGlobal() {
		return &progdb.Namespace{}, nil
	}

	ns, ok := s.namespaces[path.Key()]
	if !ok {
		return nil, fmt.Errorf("namespace %s: %w", path, progdb.ErrNotFound)
	}

	ns.Path = ns.Path.Clone()

	return &ns, nil
}

func (s *state) FunctionAt(_ context.Context, addr uint64) (*progdb.Function, error) {
	f, ok := s.functions[addr]
	if !ok {
		return nil, fmt.Errorf("function at 0x%x: %w", addr, progdb.ErrNotFound)
	}

	f.Scope = f.Scope.Clone()

	return &f, nil
}

// sortedFunctions returns functions by ascending address so lookups by name
// pick the lowest match.
func (s *state) sortedFunctions() []progdb.Function {
	out := make([]progdb.Function, 0, len(s.functions))
	for _, f := range s.functions {
		out = append(out, f)
	}

	slices.SortFunc(out, func(a, b progdb.Function) int { return cmp.Compare(a.Address, b.Address) })

	return out
}

func (s *state) FunctionNamed(_ context.Context, name string) (*progdb.Function, error) {
	for _, f := range s.sortedFunctions() {
		if f.Name == name || f.QualifiedName() == name {
			f.Scope = f.Scope.Clone()
			return &f, nil
		}
	}

	return nil, fmt.Errorf("function %q: %w", name, progdb.ErrNotFound)
}

func (s *state) FunctionIn(_ context.Context, scope progdb.Path, name string) (*progdb.Function, error) {
	for _, f := range s.sortedFunctions() {
		if f.Name == name && f.Scope.Equal(scope) {
			f.Scope = f.Scope.Clone()
			return &f, nil
		}
	}

	return nil, fmt.Errorf("function %s in %s: %w", name, scope, progdb.ErrNotFound)
}

func (s *state) Type(_ context.Context, scope progdb.Path, name string) (*progdb.DataType, error) {
	t, ok := s.types[progdb.TypeRef{Scope: scope, Name: name}.Key()]
	if !ok {
		return nil, fmt.Errorf("type %s: %w", progdb.TypeRef{Scope: scope, Name: name}, progdb.ErrNotFound)
	}

	out := t.Clone()

	return &out, nil
}

func (s *state) TypeReferences(_ context.Context, ref progdb.TypeRef) (int, error) {
	n := 0

	for _, t := range s.types {
		if t.Ref().Equal(ref) {
			continue
		}

		if t.References(ref) {
			n++
		}
	}

	for _, d := range s.data {
		if d.Type.Equal(ref) {
			n++
		}
	}

	return n, nil
}

func (s *state) DataAt(_ context.Context, addr uint64) (*progdb.DataRef, error) {
	d, ok := s.data[addr]
	if !ok {
		return nil, fmt.Errorf("data at 0x%x: %w", addr, progdb.ErrNotFound)
	}

	d.Type.Scope = d.Type.Scope.Clone()

	return &d, nil
}
