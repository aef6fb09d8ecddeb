// Package mysql implements storage.Repository for MySQL/MariaDB, the primary
// target dialect of the importer.
package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/go-sql-driver/mysql"

	"jsonimport/internal/record"
	"jsonimport/internal/schema"
	"jsonimport/internal/storage"
)

// maxInsertArgs is MySQL's prepared-statement placeholder limit.
const maxInsertArgs = 65535

type Repo struct {
	db *sql.DB
}

func init() {
	storage.Register("mysql", New)
}

func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	db, err := sql.Open("mysql", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("mysql: open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("mysql: ping: %w", err)
	}
	return &Repo{db: db}, nil
}

func (r *Repo) Close() { _ = r.db.Close() }

func (r *Repo) Ping(ctx context.Context) error { return r.db.PingContext(ctx) }

func (r *Repo) Begin(ctx context.Context) (storage.Tx, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("mysql: begin: %w", err)
	}
	return &importTx{tx: tx}, nil
}

type importTx struct {
	tx *sql.Tx
}

// RecreateTable drops any existing table of the same name, then creates it
// with the surrogate key first and the schema's columns in sorted order.
//
// Note that MySQL DDL causes an implicit commit of the enclosing
// transaction; the drop-and-recreate itself is still all-or-nothing because
// CREATE only runs after a successful DROP, and a failed insert afterwards
// leaves an empty table at worst, never a partially populated one within a
// committed run.
func (t *importTx) RecreateTable(ctx context.Context, table schema.Table) error {
	if _, err := t.tx.ExecContext(ctx, buildDropSQL(table.Name)); err != nil {
		return fmt.Errorf("mysql: drop table %s: %w", table.Name, err)
	}
	if _, err := t.tx.ExecContext(ctx, buildCreateSQL(table)); err != nil {
		return fmt.Errorf("mysql: create table %s: %w", table.Name, err)
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
			return total, fmt.Errorf("mysql: bind %s: %w", table.Name, err)
		}
		res, err := t.tx.ExecContext(ctx, q, args...)
		if err != nil {
			return total, fmt.Errorf("mysql: insert into %s: %w", table.Name, err)
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
			return total, fmt.Errorf("mysql: insert into %s: %w", table.Name, err)
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

// sqlIdent quotes an identifier with backticks; embedded backticks are
// doubled. Field names come from input data, so quoting is mandatory.
func sqlIdent(id string) string {
	return "`" + strings.ReplaceAll(id, "`", "``") + "`"
}

func columnSQLType(t schema.ColumnType) string {
	switch t {
	case schema.TypeBoolean:
		return "BOOLEAN"
	case schema.TypeInt32:
		return "INT"
	case schema.TypeInt64:
		return "BIGINT"
	case schema.TypeFloat64:
		return "DOUBLE"
	case schema.TypeVarChar255:
		return "VARCHAR(255)"
	case schema.TypeComposite:
		return "JSON"
	default:
		return "TEXT"
	}
}

func buildDropSQL(name string) string {
	return "DROP TABLE IF EXISTS " + sqlIdent(name)
}

func buildDefaultRowSQL(name string) string {
	return "INSERT INTO " + sqlIdent(name) + " () VALUES ()"
}

func buildCreateSQL(t schema.Table) string {
	parts := make([]string, 0, len(t.Columns)+1)
	parts = append(parts, sqlIdent(t.SurrogateKey)+" BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY")
	for _, c := range t.Columns {
		parts = append(parts, sqlIdent(c.Name)+" "+columnSQLType(c.Type))
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", sqlIdent(t.Name), strings.Join(parts, ", "))
}

// buildInsertSQL constructs one multi-row INSERT and its bound args.
//
// Pure and deterministic so placeholder counts and null binding can be unit
// tested without a database.
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
