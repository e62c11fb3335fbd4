// Package boltdb stores a program database in a bbolt file. Entities are
// JSON values; functions and data references are keyed by big-endian
// address so cursors walk them in address order.
package boltdb

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"

	"class-importer/internal/logging"
	"class-importer/internal/progdb"
)

var (
	programBucket   = []byte("program")
	namespaceBucket = []byte("namespaces")
	functionBucket  = []byte("functions")
	typeBucket      = []byte("types")
	dataBucket      = []byte("data")

	programKey = []byte("program")
)

// DB is a bbolt backed progdb.Database.
type DB struct {
	db     *bolt.DB
	logger *logrus.Logger
}

var (
	_ progdb.Database  = (*DB)(nil)
	_ progdb.Registrar = (*DB)(nil)
	_ progdb.Tx        = (*Tx)(nil)
)

// Open opens or creates the database file at path.
func Open(path string, logger *logrus.Logger) (*DB, error) {
	logger = logging.OrDiscard(logger)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{programBucket, namespaceBucket, functionBucket, typeBucket, dataBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create buckets: %w", err)
	}

	logger.WithField("path", path).Debug("Opened bolt program database")

	return &DB{db: db, logger: logger}, nil
}

// SetProgram registers or replaces the program.
func (s *DB) SetProgram(_ context.Context, p progdb.Program) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return put(tx.Bucket(programBucket), programKey, p)
	})
}

// Begin starts a writable bolt transaction. bbolt allows one writer at a
// time, so Begin blocks while another transaction is open.
func (s *DB) Begin(ctx context.Context) (progdb.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tx, err := s.db.Begin(true)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}

	return &Tx{view: view{tx: tx}, tx: tx}, nil
}

// Close closes the file.
func (s *DB) Close() error {
	return s.db.Close()
}

func (s *DB) read(fn func(v view) error) error {
	return s.db.View(func(tx *bolt.Tx) error { return fn(view{tx: tx}) })
}

func (s *DB) Program(ctx context.Context) (out *progdb.Program, err error) {
	err = s.read(func(v view) error { out, err = v.Program(ctx); return err })
	return out, err
}

func (s *DB) Namespace(ctx context.Context, path progdb.Path) (out *progdb.Namespace, err error) {
	err = s.read(func(v view) error { out, err = v.Namespace(ctx, path); return err })
	return out, err
}

func (s *DB) FunctionAt(ctx context.Context, addr uint64) (out *progdb.Function, err error) {
	err = s.read(func(v view) error { out, err = v.FunctionAt(ctx, addr); return err })
	return out, err
}

func (s *DB) FunctionNamed(ctx context.Context, name string) (out *progdb.Function, err error) {
	err = s.read(func(v view) error { out, err = v.FunctionNamed(ctx, name); return err })
	return out, err
}

func (s *DB) FunctionIn(ctx context.Context, scope progdb.Path, name string) (out *progdb.Function, err error) {
	err = s.read(func(v view) error { out, err = v.FunctionIn(ctx, scope, name); return err })
	return out, err
}

func (s *DB) Type(ctx context.Context, scope progdb.Path, name string) (out *progdb.DataType, err error) {
	err = s.read(func(v view) error { out, err = v.Type(ctx, scope, name); return err })
	return out, err
}

func (s *DB) TypeReferences(ctx context.Context, ref progdb.TypeRef) (n int, err error) {
	err = s.read(func(v view) error { n, err = v.TypeReferences(ctx, ref); return err })
	return n, err
}

func (s *DB) DataAt(ctx context.Context, addr uint64) (out *progdb.DataRef, err error) {
	err = s.read(func(v view) error { out, err = v.DataAt(ctx, addr); return err })
	return out, err
}

// Tx is a writable bolt transaction.
type Tx struct {
	view
	tx *bolt.Tx
}

func (t *Tx) Commit() error {
	if t.done {
		return progdb.ErrTxDone
	}

	t.done = true

	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	return nil
}

func (t *Tx) Rollback() error {
	if t.done {
		return progdb.ErrTxDone
	}

	t.done = true

	if err := t.tx.Rollback(); err != nil && !errors.Is(err, bolt.ErrTxClosed) {
		return fmt.Errorf("rollback: %w", err)
	}

	return nil
}

func (t *Tx) PutNamespace(_ context.Context, ns progdb.Namespace) error {
	if err := t.check(); err != nil {
		return err
	}

	return put(t.tx.Bucket(namespaceBucket), []byte(ns.Path.Key()), ns)
}

func (t *Tx) PutType(_ context.Context, dt progdb.DataType) error {
	if err := t.check(); err != nil {
		return err
	}

	if dt.Name == "" {
		return fmt.Errorf("type without a name in %s", dt.Scope)
	}

	return put(t.tx.Bucket(typeBucket), []byte(dt.Ref().Key()), dt)
}

func (t *Tx) PutFunction(_ context.Context, f progdb.Function) error {
	if err := t.check(); err != nil {
		return err
	}

	return put(t.tx.Bucket(functionBucket), addrKey(f.Address), f)
}

func (t *Tx) PutData(_ context.Context, d progdb.DataRef) error {
	if err := t.check(); err != nil {
		return err
	}

	return put(t.tx.Bucket(dataBucket), addrKey(d.Address), d)
}

func addrKey(addr uint64) []byte {
	var k [8]byte
	binary.BigEndian.PutUint64(k[:], addr)

	return k[:]
}

func put(b *bolt.Bucket, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	return b.Put(key, data)
}

// view reads from any bolt transaction.
type view struct {
	tx   *bolt.Tx
	done bool
}

func (v view) check() error {
	if v.done {
		return progdb.ErrTxDone
	}

	return nil
}

func (v view) get(bucket, key []byte, out any, what string) error {
	data := v.tx.Bucket(bucket).Get(key)
	if data == nil {
		return fmt.Errorf("%s: %w", what, progdb.ErrNotFound)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s: %w", what, err)
	}

	return nil
}

func (v view) Program(context.Context) (*progdb.Program, error) {
	if err := v.check(); err != nil {
		return nil, err
	}

	var p progdb.Program
	if err := v.get(programBucket, programKey, &p, "program"); err != nil {
		return nil, err
	}

	return &p, nil
}

func (v view) Namespace(_ context.Context, path progdb.Path) (*progdb.Namespace, error) {
	if err := v.check(); err != nil {
		return nil, err
	}

	if path.IsGlobal() {
		return &progdb.Namespace{}, nil
	}

	var ns progdb.Namespace
	if err := v.get(namespaceBucket, []byte(path.Key()), &ns, "namespace "+path.String()); err != nil {
		return nil, err
	}

	return &ns, nil
}

func (v view) FunctionAt(_ context.Context, addr uint64) (*progdb.Function, error) {
	if err := v.check(); err != nil {
		return nil, err
	}

	var f progdb.Function
	if err := v.get(functionBucket, addrKey(addr), &f, fmt.Sprintf("function at 0x%x", addr)); err != nil {
		return nil, err
	}

	return &f, nil
}

// firstFunction walks functions in address order and returns the first match.
func (v view) firstFunction(match func(f *progdb.Function) bool) (*progdb.Function, error) {
	c := v.tx.Bucket(functionBucket).Cursor()

	for k, data := c.First(); k != nil; k, data = c.Next() {
		var f progdb.Function
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("decode function at %x: %w", k, err)
		}

		if match(&f) {
			return &f, nil
		}
	}

	return nil, progdb.ErrNotFound
}

func (v view) FunctionNamed(_ context.Context, name string) (*progdb.Function, error) {
	if err := v.check(); err != nil {
		return nil, err
	}

	f, err := v.firstFunction(func(f *progdb.Function) bool {
		return f.Name == name || f.QualifiedName() == name
	})
	if err != nil {
		return nil, fmt.Errorf("function %q: %w", name, err)
	}

	return f, nil
}

func (v view) FunctionIn(_ context.Context, scope progdb.Path, name string) (*progdb.Function, error) {
	if err := v.check(); err != nil {
		return nil, err
	}

	f, err := v.firstFunction(func(f *progdb.Function) bool {
		return f.Name == name && f.Scope.Equal(scope)
	})
	if err != nil {
		return nil, fmt.Errorf("function %s in %s: %w", name, scope, err)
	}

	return f, nil
}

func (v view) Type(_ context.Context, scope progdb.Path, name string) (*progdb.DataType, error) {
	if err := v.check(); err != nil {
		return nil, err
	}

	ref := progdb.TypeRef{Scope: scope, Name: name}

	var dt progdb.DataType
	if err := v.get(typeBucket, []byte(ref.Key()), &dt, "type "+ref.String()); err != nil {
		return nil, err
	}

	return &dt, nil
}

func (v view) TypeReferences(_ context.Context, ref progdb.TypeRef) (int, error) {
	if err := v.check(); err != nil {
		return 0, err
	}

	own := []byte(ref.Key())
	n := 0

	err := v.tx.Bucket(typeBucket).ForEach(func(k, data []byte) error {
		if bytes.Equal(k, own) {
			return nil
		}

		var dt progdb.DataType
		if err := json.Unmarshal(data, &dt); err != nil {
			return fmt.Errorf("decode type %q: %w", k, err)
		}

		if dt.References(ref) {
			n++
		}

		return nil
	})
	if err != nil {
		return 0, err
	}

	err = v.tx.Bucket(dataBucket).ForEach(func(k, data []byte) error {
		var d progdb.DataRef
		if err := json.Unmarshal(data, &d); err != nil {
			return fmt.Errorf("decode data %x: %w", k, err)
		}

		if d.Type.Equal(ref) {
			n++
		}

		return nil
	})

	return n, err
}

func (v view) DataAt(_ context.Context, addr uint64) (*progdb.DataRef, error) {
	if err := v.check(); err != nil {
		return nil, err
	}

	var d progdb.DataRef
	if err := v.get(dataBucket, addrKey(addr), &d, fmt.Sprintf("data at 0x%x", addr)); err != nil {
		return nil, err
	}

	return &d, nil
}
