// Package storage defines the backend-agnostic surface the importer drives:
// a Repository that opens per-file import transactions, and a Tx that
// materializes a schema and populates it. Backends (mysql, postgres, sqlite,
// mssql) register themselves with the factory and implement the semantics in
// their own dialect.
package storage

import (
	"context"
	"fmt"
	"sync"

	"jsonimport/internal/record"
	"jsonimport/internal/schema"
)

// Config selects and parameterizes a backend.
//
// Kind must match a registered backend kind. DSN is passed through to the
// backend factory; its format is backend-specific.
type Config struct {
	Kind string
	DSN  string
}

// Repository is one live connection (or pool) to a target database.
//
// A Repository is used by exactly one in-flight operation at a time; the
// importer processes files strictly sequentially.
type Repository interface {
	// Close releases connections. Call once at shutdown.
	Close()

	// Ping verifies connectivity. Construction-time failure is fatal for a
	// run; there is no retry policy anywhere in the importer.
	Ping(ctx context.Context) error

	// Begin opens the transaction that covers one file's table create and
	// insert. Either both apply (Commit) or neither does (Rollback).
	Begin(ctx context.Context) (Tx, error)
}

// Tx is the unit of atomicity for one file import.
//
// Rollback after a successful Commit must be a no-op, so callers can
// unconditionally defer it.
type Tx interface {
	// RecreateTable drops any existing table with the schema's name and
	// creates it fresh: surrogate key first, then the schema's columns in
	// their fixed sorted order. Identifiers are always quoted; input data
	// chooses field names, so this is a security contract, not cosmetics.
	RecreateTable(ctx context.Context, table schema.Table) error

	// InsertRecords writes the set into the (just created) table using a
	// parameterized batch statement over exactly the schema's columns.
	// Fields absent from a record bind SQL NULL. Returns rows written.
	InsertRecords(ctx context.Context, table schema.Table, recs record.Set) (int64, error)

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// ---- backend factories ----

type factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	factoryMu sync.RWMutex
	factories = map[string]factory{}
)

// Register registers a backend under a kind (e.g. "mysql", "postgres").
//
// Called from init() in backend packages. Registering an empty kind, a nil
// factory, or a duplicate kind panics: backend selection must never be
// ambiguous.
func Register(kind string, f factory) {
	factoryMu.Lock()
	defer factoryMu.Unlock()

	if kind == "" {
		panic("storage: Register called with empty kind")
	}
	if f == nil {
		panic("storage: Register called with nil factory")
	}
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("storage: factory already registered for kind=%q", kind))
	}
	factories[kind] = f
}

// New constructs a Repository using the registered backend factory.
//
// Returns an error if cfg.Kind is empty or unregistered, or whatever the
// factory returns.
func New(ctx context.Context, cfg Config) (Repository, error) {
	if cfg.Kind == "" {
		return nil, fmt.Errorf("storage: missing kind")
	}

	factoryMu.RLock()
	f := factories[cfg.Kind]
	factoryMu.RUnlock()

	if f == nil {
		return nil, fmt.Errorf("storage: unsupported kind=%q", cfg.Kind)
	}
	return f(ctx, cfg)
}
