// Package postgres implements storage.Repository on top of pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"jsonimport/internal/record"
	"jsonimport/internal/schema"
	"jsonimport/internal/storage"
)

// maxInsertArgs is the wire-protocol bind-parameter limit.
const maxInsertArgs = 65535

type Repo struct {
	pool *pgxpool.Pool
}

func init() {
	storage.Register("postgres", New)
}

func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres: pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return &Repo{pool: pool}, nil
}

func (r *Repo) Close() { r.pool.Close() }

func (r *Repo) Ping(ctx context.Context) error { return r.pool.Ping(ctx) }

func (r *Repo) Begin(ctx context.Context) (storage.Tx, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("postgres: begin: %w", err)
	}
	return &importTx{tx: tx}, nil
}

type importTx struct {
	tx pgx.Tx
}

func (t *importTx) RecreateTable(ctx context.Context, table schema.Table) error {
	if _, err := t.tx.Exec(ctx, buildDropSQL(table.Name)); err != nil {
		return fmt.Errorf("postgres: drop table %s: %w", table.Name, err)
	}
	if _, err := t.tx.Exec(ctx, buildCreateSQL(table)); err != nil {
		return fmt.Errorf("postgres: create table %s: %w", table.Name, err)
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
			return total, fmt.Errorf("postgres: bind %s: %w", table.Name, err)
		}
		tag, err := t.tx.Exec(ctx, q, args...)
		if err != nil {
			return total, fmt.Errorf("postgres: insert into %s: %w", table.Name, err)
		}
		total += tag.RowsAffected()
	}
	return total, nil
}

// insertDefaultRows handles record sets whose records carry no fields: each
// row gets only its auto-generated surrogate key.
func (t *importTx) insertDefaultRows(ctx context.Context, table schema.Table, n int) (int64, error) {
	q := buildDefaultRowSQL(table.Name)
	var total int64
	for i := 0; i < n; i++ {
		tag, err := t.tx.Exec(ctx, q)
		if err != nil {
			return total, fmt.Errorf("postgres: insert into %s: %w", table.Name, err)
		}
		total += tag.RowsAffected()
	}
	return total, nil
}

func (t *importTx) Commit(ctx context.Context) error {
	return t.tx.Commit(ctx)
}

func (t *importTx) Rollback(ctx context.Context) error {
	if err := t.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return err
	}
	return nil
}

// pgIdent double-quotes an identifier; embedded quotes are doubled.
func pgIdent(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

func columnSQLType(t schema.ColumnType) string {
	switch t {
	case schema.TypeBoolean:
		return "BOOLEAN"
	case schema.TypeInt32:
		return "INTEGER"
	case schema.TypeInt64:
		return "BIGINT"
	case schema.TypeFloat64:
		return "DOUBLE PRECISION"
	case schema.TypeVarChar255:
		return "VARCHAR(255)"
	case schema.TypeComposite:
		return "JSONB"
	default:
		return "TEXT"
	}
}

func buildDropSQL(name string) string {
	return "DROP TABLE IF EXISTS " + pgIdent(name)
}

func buildDefaultRowSQL(name string) string {
	return "INSERT INTO " + pgIdent(name) + " DEFAULT VALUES"
}

func buildCreateSQL(t schema.Table) string {
	parts := make([]string, 0, len(t.Columns)+1)
	parts = append(parts, pgIdent(t.SurrogateKey)+" BIGSERIAL PRIMARY KEY")
	for _, c := range t.Columns {
		parts = append(parts, pgIdent(c.Name)+" "+columnSQLType(c.Type))
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", pgIdent(t.Name), strings.Join(parts, ", "))
}

// buildInsertSQL constructs one multi-row INSERT with $n placeholders.
//
// Pure so placeholder numbering can be unit tested without a database.
func buildInsertSQL(t schema.Table, recs record.Set) (string, []any, error) {
	cols := t.ColumnNames()

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(pgIdent(t.Name))
	b.WriteString(" (")
	for i, c := range cols {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(pgIdent(c))
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
			fmt.Fprintf(&b, "$%d", p)
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
