// Package sqlite implements storage.Repository for SQLite via the pure Go
// driver.
//
// SQLite stores by affinity, not declared type: booleans and both integer
// widths land on INTEGER, and composites are kept as serialized TEXT.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"jsonimport/internal/record"
	"jsonimport/internal/schema"
	"jsonimport/internal/storage"
)

// maxInsertArgs matches the default SQLITE_MAX_VARIABLE_NUMBER.
const maxInsertArgs = 32766

type Repo struct {
	db *sql.DB
}

func init() {
	storage.Register("sqlite", New)
}

func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: ping: %w", err)
	}
	return &Repo{db: db}, nil
}

func (r *Repo) Close() { _ = r.db.Close() }

func (r *Repo) Ping(ctx context.Context) error { return r.db.PingContext(ctx) }

func (r *Repo) Begin(ctx context.Context) (storage.Tx, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("sqlite: begin: %w", err)
	}
	return &importTx{tx: tx}, nil
}

type importTx struct {
	tx *sql.Tx
}

func (t *importTx) RecreateTable(ctx context.Context, table schema.Table) error {
	if _, err := t.tx.ExecContext(ctx, buildDropSQL(table.Name)); err != nil {
		return fmt.Errorf("sqlite: drop table %s: %w", table.Name, err)
	}
	if _, err := t.tx.ExecContext(ctx, buildCreateSQL(table)); err != nil {
		return fmt.Errorf("sqlite: create table %s: %w", table.Name, err)
	}
	return nil
}

func (t *importTx) InsertRecords(ctx context.Context, table schema.Table, recs record.Set) (int64, error) {
	if len(recs) == 0 {
		return 0, nil
	}

	if len(table.Columns) == 0 {
		return t.insertDefaultRows(ctx, table, len(recs))
	}

	cols := table.ColumnNames()
	chunk := storage.BatchRows(len(cols), maxInsertArgs)

	var total int64
	for start := 0; start < len(recs); start += chunk {
		end := start + chunk
		if end > len(recs) {
			end = len(recs)
		}
		q, args, err := buildInsertSQL(table, recs[start:end])
		if err != nil {
			return total, fmt.Errorf("sqlite: bind %s: %w", table.Name, err)
		}
		res, err := t.tx.ExecContext(ctx, q, args...)
		if err != nil {
			return total, fmt.Errorf("sqlite: insert into %s: %w", table.Name, err)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	return total, nil
}

// insertDefaultRows handles record sets whose records carry no fields: each
// row gets only its auto-generated surrogate key.
func (t *importTx) insertDefaultRows(ctx context.Context, table schema.Table, n int) (int64, error) {
	q := buildDefaultRowSQL(table.Name)
	var total int64
	for i := 0; i < n; i++ {
		res, err := t.tx.ExecContext(ctx, q)
		if err != nil {
			return total, fmt.Errorf("sqlite: insert into %s: %w", table.Name, err)
		}
		rows, _ := res.RowsAffected()
		total += rows
	}
	return total, nil
}

func (t *importTx) Commit(ctx context.Context) error {
	return t.tx.Commit()
}

func (t *importTx) Rollback(ctx context.Context) error {
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return err
	}
	return nil
}

// sqlIdent quotes identifiers with double quotes, the SQLite way.
func sqlIdent(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

func columnSQLType(t schema.ColumnType) string {
	switch t {
	case schema.TypeBoolean, schema.TypeInt32, schema.TypeInt64:
		return "INTEGER"
	case schema.TypeFloat64:
		return "REAL"
	default:
		return "TEXT"
	}
}

func buildDropSQL(name string) string {
	return "DROP TABLE IF EXISTS " + sqlIdent(name)
}

func buildDefaultRowSQL(name string) string {
	return "INSERT INTO " + sqlIdent(name) + " DEFAULT VALUES"
}

func buildCreateSQL(t schema.Table) string {
	parts := make([]string, 0, len(t.Columns)+1)
	// INTEGER PRIMARY KEY AUTOINCREMENT auto-generates surrogate values.
	parts = append(parts, sqlIdent(t.SurrogateKey)+" INTEGER PRIMARY KEY AUTOINCREMENT")
	for _, c := range t.Columns {
		parts = append(parts, sqlIdent(c.Name)+" "+columnSQLType(c.Type))
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", sqlIdent(t.Name), strings.Join(parts, ", "))
}

func buildInsertSQL(t schema.Table, recs record.Set) (string, []any, error) {
	cols := t.ColumnNames()

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(sqlIdent(t.Name))
	b.WriteString(" (")
	for i, c := range cols {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(sqlIdent(c))
	}
	b.WriteString(") VALUES ")

	placeholders := "(" + strings.TrimRight(strings.Repeat("?,", len(cols)), ",") + ")"
	args := make([]any, 0, len(recs)*len(cols))
	for i, r := range recs {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(placeholders)
		row, err := storage.BindRow(r, t.Columns)
		if err != nil {
			return "", nil, err
		}
		args = append(args, row...)
	}
	return b.String(), args, nil
}
