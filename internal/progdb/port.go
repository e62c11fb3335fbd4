package progdb

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned by Reader lookups that match nothing.
	ErrNotFound = errors.New("not found")
	// ErrTxDone is returned when a committed or rolled back Tx is used.
	ErrTxDone = errors.New("transaction already finished")
)

// Reader looks up program entities. Lookups that match nothing return an
// error wrapping ErrNotFound.
type Reader interface {
	Program(ctx context.Context) (*Program, error)
	Namespace(ctx context.Context, path Path) (*Namespace, error)
	FunctionAt(ctx context.Context, addr uint64) (*Function, error)
	// FunctionNamed resolves a symbol: a plain or qualified function name.
	FunctionNamed(ctx context.Context, name string) (*Function, error)
	FunctionIn(ctx context.Context, scope Path, name string) (*Function, error)
	Type(ctx context.Context, scope Path, name string) (*DataType, error)
	// TypeReferences counts the other types using ref in a field or base link
	// and the data locations bound to ref.
	TypeReferences(ctx context.Context, ref TypeRef) (int, error)
	DataAt(ctx context.Context, addr uint64) (*DataRef, error)
}

// Writer creates or replaces program entities. Namespaces are keyed by path,
// types by scope and name, functions and data by address.
type Writer interface {
	PutNamespace(ctx context.Context, ns Namespace) error
	PutType(ctx context.Context, t DataType) error
	PutFunction(ctx context.Context, f Function) error
	PutData(ctx context.Context, d DataRef) error
}

// Tx is a unit of work. Reads observe the transaction's own writes. Only one
// write transaction runs at a time.
type Tx interface {
	Reader
	Writer
	Commit() error
	Rollback() error
}

// Database is a program database that can start transactions.
type Database interface {
	Reader
	Begin(ctx context.Context) (Tx, error)
	Close() error
}

// Registrar records the program itself. Hosts call it when a binary is
// opened; the importer never does.
type Registrar interface {
	SetProgram(ctx context.Context, p Program) error
}

// IsNotFound reports whether err wraps ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
