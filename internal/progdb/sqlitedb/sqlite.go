// Package sqlitedb stores a program database in SQLite through sqlx.
package sqlitedb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"

	"class-importer/internal/logging"
	"class-importer/internal/progdb"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// DB is a SQLite backed progdb.Database.
type DB struct {
	queries
	db     *sqlx.DB
	writer sync.Mutex
	logger *logrus.Logger
}

var (
	_ progdb.Database  = (*DB)(nil)
	_ progdb.Registrar = (*DB)(nil)
	_ progdb.Tx        = (*Tx)(nil)
)

// Open opens or creates the database at path and ensures the schema.
func Open(path string, logger *logrus.Logger) (*DB, error) {
	logger = logging.OrDiscard(logger)

	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sqlx.Connect("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("connect to sqlite: %w", err)
	}

	if path == MemoryPath {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	} else {
		db.Exec("PRAGMA journal_mode = WAL")
		db.Exec("PRAGMA busy_timeout = 5000")
	}

	db.Exec("PRAGMA foreign_keys = ON")

	store := &DB{queries: queries{q: db}, db: db, logger: logger}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	logger.WithField("path", path).Debug("Opened sqlite program database")

	return store, nil
}

func (s *DB) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS program (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		name TEXT NOT NULL,
		md5 TEXT NOT NULL DEFAULT '',
		analyzed BOOLEAN NOT NULL DEFAULT 0,
		pointer_size INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS program_ranges (
		start_addr INTEGER NOT NULL,
		end_addr INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS namespaces (
		path TEXT PRIMARY KEY,
		is_class BOOLEAN NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS functions (
		address INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		scope TEXT NOT NULL DEFAULT '',
		qualified TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_functions_name ON functions(name);
	CREATE INDEX IF NOT EXISTS idx_functions_scope ON functions(scope, name);
	CREATE INDEX IF NOT EXISTS idx_functions_qualified ON functions(qualified);

	CREATE TABLE IF NOT EXISTS types (
		scope TEXT NOT NULL,
		name TEXT NOT NULL,
		kind INTEGER NOT NULL,
		size INTEGER NOT NULL,
		comment TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (scope, name)
	);

	CREATE TABLE IF NOT EXISTS fields (
		scope TEXT NOT NULL,
		type_name TEXT NOT NULL,
		ord INTEGER NOT NULL,
		field_offset INTEGER NOT NULL,
		size INTEGER NOT NULL,
		name TEXT NOT NULL,
		kind INTEGER NOT NULL,
		ref_scope TEXT,
		ref_name TEXT,
		primitive TEXT NOT NULL DEFAULT '',
		target INTEGER,
		comment TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (scope, type_name, ord),
		FOREIGN KEY (scope, type_name) REFERENCES types(scope, name) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_fields_ref ON fields(ref_scope, ref_name);

	CREATE TABLE IF NOT EXISTS bases (
		scope TEXT NOT NULL,
		type_name TEXT NOT NULL,
		ord INTEGER NOT NULL,
		ref_scope TEXT NOT NULL,
		ref_name TEXT NOT NULL,
		base_offset INTEGER NOT NULL,
		is_virtual BOOLEAN NOT NULL DEFAULT 0,
		PRIMARY KEY (scope, type_name, ord),
		FOREIGN KEY (scope, type_name) REFERENCES types(scope, name) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_bases_ref ON bases(ref_scope, ref_name);

	CREATE TABLE IF NOT EXISTS data_refs (
		address INTEGER PRIMARY KEY,
		ref_scope TEXT NOT NULL,
		ref_name TEXT NOT NULL,
		label TEXT NOT NULL DEFAULT ''
	);
	`

	_, err := s.db.Exec(schema)

	return err
}

// SetProgram registers or replaces the program and its address ranges.
func (s *DB) SetProgram(ctx context.Context, p progdb.Program) error {
	s.writer.Lock()
	defer s.writer.Unlock()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO program (id, name, md5, analyzed, pointer_size) VALUES (1, ?, ?, ?, ?)`,
		p.Name, p.MD5, p.Analyzed, toInt(p.PointerSize)); err != nil {
		return fmt.Errorf("store program: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM program_ranges`); err != nil {
		return fmt.Errorf("clear ranges: %w", err)
	}

	for _, r := range p.Ranges {
		if _, err := tx.ExecContext(ctx, `INSERT INTO program_ranges (start_addr, end_addr) VALUES (?, ?)`,
			toInt(r.Start), toInt(r.End)); err != nil {
			return fmt.Errorf("store range: %w", err)
		}
	}

	return tx.Commit()
}

// Begin starts a write transaction. Its lifetime is bound to Commit and
// Rollback, not to ctx.
func (s *DB) Begin(ctx context.Context) (progdb.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.writer.Lock()

	tx, err := s.db.BeginTxx(context.WithoutCancel(ctx), nil)
	if err != nil {
		s.writer.Unlock()
		return nil, fmt.Errorf("begin: %w", err)
	}

	return &Tx{queries: queries{q: tx}, tx: tx, db: s}, nil
}

// Close closes the underlying connection pool.
func (s *DB) Close() error {
	return s.db.Close()
}

// Tx is a SQLite transaction.
type Tx struct {
	queries
	tx   *sqlx.Tx
	db   *DB
	done bool
}

func (t *Tx) Commit() error {
	if t.done {
		return progdb.ErrTxDone
	}

	err := t.tx.Commit()
	t.finish()

	if err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	return nil
}

func (t *Tx) Rollback() error {
	if t.done {
		return progdb.ErrTxDone
	}

	err := t.tx.Rollback()
	t.finish()

	if err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("rollback: %w", err)
	}

	return nil
}

func (t *Tx) finish() {
	t.done = true
	t.queries.done = true
	t.db.writer.Unlock()
}
