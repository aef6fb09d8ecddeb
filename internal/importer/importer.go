// Package importer drives the per-file import flow: decode a JSON
// file into records, infer a table schema, then recreate and load the
// table inside a single transaction.
package importer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"jsonimport/internal/metrics"
	jsonparser "jsonimport/internal/parser/json"
	"jsonimport/internal/record"
	"jsonimport/internal/schema"
	"jsonimport/internal/storage"
)

// State classifies how a file import ended.
type State int

const (
	// Committed means the table was recreated and all records landed.
	Committed State = iota
	// RolledBack means a storage step failed and the transaction was
	// undone; the target table keeps its pre-import contents.
	RolledBack
	// SkippedEmpty means the file decoded to zero records, so no
	// transaction was opened.
	SkippedEmpty
	// SkippedInvalid means the file could not be decoded into records.
	SkippedInvalid
)

func (s State) String() string {
	switch s {
	case Committed:
		return "committed"
	case RolledBack:
		return "rolled_back"
	case SkippedEmpty:
		return "skipped_empty"
	case SkippedInvalid:
		return "skipped_invalid"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Outcome reports the result of importing one file.
type Outcome struct {
	FileName    string
	TableName   string
	State       State
	RecordCount int64
	Message     string
}

// Succeeded reports whether the file fully landed in the database.
func (o Outcome) Succeeded() bool { return o.State == Committed }

// Summary aggregates directory-level results. A skipped file counts as
// failed: its contents did not reach the database.
type Summary struct {
	TotalFiles     int
	Succeeded      int
	Failed         int
	SucceededFiles []string
	FailedFiles    []string
	Outcomes       []Outcome
}

// Importer runs imports against one repository. Report, when set,
// receives human-readable progress lines; the zero value discards
// them.
type Importer struct {
	Repo storage.Repository

	// Extension filters directory entries; defaults to ".json".
	// Matching is case-insensitive.
	Extension string

	Report func(msg string)
}

func (im *Importer) report(format string, args ...any) {
	if im.Report != nil {
		im.Report(fmt.Sprintf(format, args...))
	}
}

func (im *Importer) extension() string {
	if im.Extension == "" {
		return ".json"
	}
	return im.Extension
}

// TableName derives the target table name from a file path: the base
// name with its extension removed.
func TableName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// ImportFile imports a single JSON file into its own table. Decode and
// inference failures skip the file without touching the database; any
// storage failure rolls the transaction back, leaving the prior table
// intact.
func (im *Importer) ImportFile(ctx context.Context, path string) Outcome {
	name := filepath.Base(path)
	table := TableName(path)
	out := Outcome{FileName: name, TableName: table}

	start := time.Now()
	defer func() {
		metrics.RecordImport(out.State.String(), out.RecordCount, time.Since(start))
	}()

	recs, err := decodeFile(path)
	if err != nil {
		out.State = SkippedInvalid
		out.Message = err.Error()
		im.report("skip %s: %v", name, err)
		return out
	}

	sch, ok := schema.Build(table, recs)
	if !ok {
		out.State = SkippedEmpty
		out.Message = "no records"
		im.report("skip %s: no records", name)
		return out
	}
	im.report("importing %s into %s (%d records, %d columns)",
		name, table, len(recs), len(sch.Columns))

	n, err := im.load(ctx, sch, recs)
	if err != nil {
		out.State = RolledBack
		out.Message = err.Error()
		im.report("failed %s: %v", name, err)
		return out
	}

	out.State = Committed
	out.RecordCount = n
	im.report("imported %s: %d records", name, n)
	return out
}

// load runs the transactional portion of a file import.
func (im *Importer) load(ctx context.Context, sch schema.Table, recs record.Set) (int64, error) {
	tx, err := im.Repo.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	// Rollback after a successful Commit is a no-op by the Tx contract.
	defer func() { _ = tx.Rollback(ctx) }()

	if err := tx.RecreateTable(ctx, sch); err != nil {
		return 0, fmt.Errorf("recreate table %s: %w", sch.Name, err)
	}
	im.report("recreated table %s", sch.Name)
	n, err := tx.InsertRecords(ctx, sch, recs)
	if err != nil {
		return 0, fmt.Errorf("insert into %s: %w", sch.Name, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit %s: %w", sch.Name, err)
	}
	return n, nil
}

// ImportDirectory imports every candidate file in dir, one table per
// file. Files are processed in name order and one failure never stops
// the rest. A summary with TotalFiles == 0 means the directory had no
// candidate files at all.
func (im *Importer) ImportDirectory(ctx context.Context, dir string) (Summary, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return Summary{}, fmt.Errorf("read directory %s: %w", dir, err)
	}

	ext := im.extension()
	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(e.Name()), ext) {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)

	var sum Summary
	sum.TotalFiles = len(paths)
	for _, p := range paths {
		out := im.ImportFile(ctx, p)
		sum.Outcomes = append(sum.Outcomes, out)
		if out.Succeeded() {
			sum.Succeeded++
			sum.SucceededFiles = append(sum.SucceededFiles, out.FileName)
		} else {
			sum.Failed++
			sum.FailedFiles = append(sum.FailedFiles, out.FileName)
		}
	}
	return sum, nil
}

func decodeFile(path string) (record.Set, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return jsonparser.DecodeRecords(f)
}
