// Package mssql implements storage.Repository for SQL Server.
//
// SQL Server caps bound parameters at 2100 per statement and row
// constructors at 1000 per INSERT, so batches are chunked against both
// limits.
package mssql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/microsoft/go-mssqldb"

	"jsonimport/internal/record"
	"jsonimport/internal/schema"
	"jsonimport/internal/storage"
)

const (
	// maxInsertArgs keeps a margin under the 2100 parameter limit.
	maxInsertArgs = 2000
	// maxInsertRows is the row-constructor limit for a single VALUES list.
	maxInsertRows = 1000
)

type Repo struct {
	db *sql.DB
}

func init() {
	storage.Register("mssql", New)
}

func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	db, err := sql.Open("sqlserver", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("mssql: open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("mssql: ping: %w", err)
	}
	return &Repo{db: db}, nil
}

func (r *Repo) Close() { _ = r.db.Close() }

func (r *Repo) Ping(ctx context.Context) error { return r.db.PingContext(ctx) }

func (r *Repo) Begin(ctx context.Context) (storage.Tx, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("mssql: begin: %w", err)
	}
	return &importTx{tx: tx}, nil
}

type importTx struct {
	tx *sql.Tx
}

func (t *importTx) RecreateTable(ctx context.Context, table schema.Table) error {
	if _, err := t.tx.ExecContext(ctx, buildDropSQL(table.Name)); err != nil {
		return fmt.Errorf("mssql: drop table %s: %w", table.Name, err)
	}
	if _, err := t.tx.ExecContext(ctx, buildCreateSQL(table)); err != nil {
		return fmt.Errorf("mssql: create table %s: %w", table.Name, err)
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
	if chunk > maxInsertRows {
		chunk = maxInsertRows
	}

	var total int64
	for start := 0; start < len(recs); start += chunk {
		end := start + chunk
		if end > len(recs) {
			end = len(recs)
		}
		q, args, err := buildInsertSQL(table, recs[start:end])
		if err != nil {
			return total, fmt.Errorf("mssql: bind %s: %w", table.Name, err)
		}
		res, err := t.tx.ExecContext(ctx, q, args...)
		if err != nil {
			return total, fmt.Errorf("mssql: insert into %s: %w", table.Name, err)
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
			return total, fmt.Errorf("mssql: insert into %s: %w", table.Name, err)
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

// mssqlIdent brackets an identifier; closing brackets are doubled.
func mssqlIdent(id string) string {
	return "[" + strings.ReplaceAll(id, "]", "]]") + "]"
}

func columnSQLType(t schema.ColumnType) string {
	switch t {
	case schema.TypeBoolean:
		return "BIT"
	case schema.TypeInt32:
		return "INT"
	case schema.TypeInt64:
		return "BIGINT"
	case schema.TypeFloat64:
		return "FLOAT"
	case schema.TypeVarChar255:
		return "NVARCHAR(255)"
	default:
		return "NVARCHAR(MAX)"
	}
}

func buildDropSQL(name string) string {
	return "DROP TABLE IF EXISTS " + mssqlIdent(name)
}

func buildDefaultRowSQL(name string) string {
	return "INSERT INTO " + mssqlIdent(name) + " DEFAULT VALUES"
}

func buildCreateSQL(t schema.Table) string {
	parts := make([]string, 0, len(t.Columns)+1)
	parts = append(parts, mssqlIdent(t.SurrogateKey)+" BIGINT IDENTITY(1,1) PRIMARY KEY")
	for _, c := range t.Columns {
		parts = append(parts, mssqlIdent(c.Name)+" "+columnSQLType(c.Type))
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", mssqlIdent(t.Name), strings.Join(parts, ", "))
}

// buildInsertSQL constructs one multi-row INSERT with @pN placeholders
// numbered across all rows.
func buildInsertSQL(t schema.Table, recs record.Set) (string, []any, error) {
	cols := t.ColumnNames()

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(mssqlIdent(t.Name))
	b.WriteString(" (")
	for i, c := range cols {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(mssqlIdent(c))
	}
	b.WriteString(") VALUES ")

	args := make([]any, 0, len(recs)*len(cols))
	p := 1
	for i, r := range recs {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(")
		for j := range cols {
			if j > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "@p%d", p)
			p++
		}
		b.WriteString(")")
		row, err := storage.BindRow(r, t.Columns)
		if err != nil {
			return "", nil, err
		}
		args = append(args, row...)
	}
	return b.String(), args, nil
}
