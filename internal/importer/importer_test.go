package importer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"jsonimport/internal/record"
	"jsonimport/internal/schema"
	"jsonimport/internal/storage"
)

// fakeRepo is an in-memory Repository. Commit publishes the staged
// table into tables; Rollback discards it.
type fakeRepo struct {
	tables map[string]fakeTable

	beginErr    error
	recreateErr error
	insertErr   error
	commitErr   error

	begun     int
	committed int
	rolled    int
}

type fakeTable struct {
	schema schema.Table
	recs   record.Set
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{tables: map[string]fakeTable{}}
}

func (r *fakeRepo) Close()                     {}
func (r *fakeRepo) Ping(context.Context) error { return nil }
func (r *fakeRepo) Begin(context.Context) (storage.Tx, error) {
	if r.beginErr != nil {
		return nil, r.beginErr
	}
	r.begun++
	return &fakeTx{repo: r, staged: map[string]fakeTable{}}, nil
}

type fakeTx struct {
	repo   *fakeRepo
	staged map[string]fakeTable
	done   bool
}

func (t *fakeTx) RecreateTable(_ context.Context, tab schema.Table) error {
	if t.repo.recreateErr != nil {
		return t.repo.recreateErr
	}
	t.staged[tab.Name] = fakeTable{schema: tab}
	return nil
}

func (t *fakeTx) InsertRecords(_ context.Context, tab schema.Table, recs record.Set) (int64, error) {
	if t.repo.insertErr != nil {
		return 0, t.repo.insertErr
	}
	ft := t.staged[tab.Name]
	ft.recs = append(ft.recs, recs...)
	t.staged[tab.Name] = ft
	return int64(len(recs)), nil
}

func (t *fakeTx) Commit(context.Context) error {
	if t.repo.commitErr != nil {
		return t.repo.commitErr
	}
	for name, ft := range t.staged {
		t.repo.tables[name] = ft
	}
	t.done = true
	t.repo.committed++
	return nil
}

func (t *fakeTx) Rollback(context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	t.repo.rolled++
	return nil
}

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

// TestImportFile covers the per-file outcomes end to end against the
// fake repository.
func TestImportFile(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		file      string
		body      string
		wantState State
		wantCount int64
		wantCols  map[string]schema.ColumnType
	}{
		{
			name:      "uniform objects",
			file:      "users.json",
			body:      `[{"name":"Ann","age":30},{"name":"Bo","age":25}]`,
			wantState: Committed,
			wantCount: 2,
			wantCols: map[string]schema.ColumnType{
				"name": schema.TypeVarChar255,
				"age":  schema.TypeInt32,
			},
		},
		{
			name:      "int and float widen to float",
			file:      "mixed.json",
			body:      `[{"v":1},{"v":2.5}]`,
			wantState: Committed,
			wantCount: 2,
			wantCols:  map[string]schema.ColumnType{"v": schema.TypeFloat64},
		},
		{
			name:      "large integer widens to bigint",
			file:      "big.json",
			body:      `[{"n":2147483648}]`,
			wantState: Committed,
			wantCount: 1,
			wantCols:  map[string]schema.ColumnType{"n": schema.TypeInt64},
		},
		{
			name:      "nested value becomes composite",
			file:      "nested.json",
			body:      `[{"meta":{"tags":["a"]}}]`,
			wantState: Committed,
			wantCount: 1,
			wantCols:  map[string]schema.ColumnType{"meta": schema.TypeComposite},
		},
		{
			name:      "composite widens a string neighbor",
			file:      "mixedo.json",
			body:      `[{"o":{"a":1}},{"o":"plain"}]`,
			wantState: Committed,
			wantCount: 2,
			wantCols:  map[string]schema.ColumnType{"o": schema.TypeComposite},
		},
		{
			name:      "records without fields import as default rows",
			file:      "blank.json",
			body:      `[{},{}]`,
			wantState: Committed,
			wantCount: 2,
			wantCols:  map[string]schema.ColumnType{},
		},
		{
			name:      "single object normalizes to one record",
			file:      "solo.json",
			body:      `{"id":7}`,
			wantState: Committed,
			wantCount: 1,
			wantCols:  map[string]schema.ColumnType{"id": schema.TypeInt32},
		},
		{
			name:      "empty array is skipped",
			file:      "empty.json",
			body:      `[]`,
			wantState: SkippedEmpty,
		},
		{
			name:      "malformed json is skipped",
			file:      "broken.json",
			body:      `{"a":`,
			wantState: SkippedInvalid,
		},
		{
			name:      "scalar root is skipped",
			file:      "scalar.json",
			body:      `42`,
			wantState: SkippedInvalid,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			dir := t.TempDir()
			path := writeFile(t, dir, tt.file, tt.body)

			repo := newFakeRepo()
			im := &Importer{Repo: repo}
			out := im.ImportFile(context.Background(), path)

			if out.State != tt.wantState {
				t.Fatalf("state = %v (%s), want %v", out.State, out.Message, tt.wantState)
			}
			if out.RecordCount != tt.wantCount {
				t.Fatalf("records = %d, want %d", out.RecordCount, tt.wantCount)
			}

			if tt.wantState != Committed {
				if len(repo.tables) != 0 || repo.begun != 0 {
					t.Fatalf("skipped file touched the repository: %+v", repo)
				}
				return
			}

			ft, ok := repo.tables[out.TableName]
			if !ok {
				t.Fatalf("table %q not committed", out.TableName)
			}
			got := map[string]schema.ColumnType{}
			for _, c := range ft.schema.Columns {
				got[c.Name] = c.Type
			}
			if !reflect.DeepEqual(got, tt.wantCols) {
				t.Fatalf("columns = %v, want %v", got, tt.wantCols)
			}
		})
	}
}

// TestImportFileRollsBack verifies a storage failure leaves the prior
// table contents untouched and reports RolledBack.
func TestImportFileRollsBack(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeFile(t, dir, "users.json", `[{"name":"Ann"}]`)

	prior := fakeTable{recs: record.Set{{"old": {Kind: record.KindBool, Bool: true}}}}

	tests := []struct {
		name string
		prep func(*fakeRepo)
	}{
		{"begin fails", func(r *fakeRepo) { r.beginErr = errors.New("down") }},
		{"ddl fails", func(r *fakeRepo) { r.recreateErr = errors.New("ddl") }},
		{"insert fails", func(r *fakeRepo) { r.insertErr = errors.New("insert") }},
		{"commit fails", func(r *fakeRepo) { r.commitErr = errors.New("commit") }},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			repo := newFakeRepo()
			repo.tables["users"] = prior
			tt.prep(repo)

			im := &Importer{Repo: repo}
			out := im.ImportFile(context.Background(), path)

			if out.State != RolledBack {
				t.Fatalf("state = %v, want RolledBack", out.State)
			}
			if out.Succeeded() {
				t.Fatal("rolled-back import reported success")
			}
			if !reflect.DeepEqual(repo.tables["users"], prior) {
				t.Fatalf("prior table replaced: %+v", repo.tables["users"])
			}
		})
	}
}

// TestImportFileMissingFields checks that records missing a field
// still import; the absent positions carry null.
func TestImportFileMissingFields(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeFile(t, dir, "people.json", `[{"a":1,"b":"x"},{"a":2}]`)

	repo := newFakeRepo()
	im := &Importer{Repo: repo}
	out := im.ImportFile(context.Background(), path)

	if out.State != Committed || out.RecordCount != 2 {
		t.Fatalf("outcome = %+v", out)
	}
	second := repo.tables["people"].recs[1]
	if got := second.Get("b"); got.Kind != record.KindNull {
		t.Fatalf("missing field bound as %v, want null", got.Kind)
	}
}

// TestImportFileIdempotent re-imports the same file and expects the
// table to hold only the latest contents.
func TestImportFileIdempotent(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeFile(t, dir, "items.json", `[{"k":1},{"k":2}]`)

	repo := newFakeRepo()
	im := &Importer{Repo: repo}

	for i := 0; i < 2; i++ {
		if out := im.ImportFile(context.Background(), path); out.State != Committed {
			t.Fatalf("pass %d: %+v", i, out)
		}
	}
	if n := len(repo.tables["items"].recs); n != 2 {
		t.Fatalf("table holds %d records after re-import, want 2", n)
	}
}

// TestImportDirectory verifies aggregation, ordering, the extension
// filter, and that one bad file never stops the rest.
func TestImportDirectory(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "a.json", `[{"x":1}]`)
	writeFile(t, dir, "b.json", `{"x":`)
	writeFile(t, dir, "C.JSON", `[{"y":true}]`)
	writeFile(t, dir, "notes.txt", `ignored`)
	if err := os.Mkdir(filepath.Join(dir, "sub.json"), 0o755); err != nil {
		t.Fatal(err)
	}

	repo := newFakeRepo()
	var lines []string
	im := &Importer{Repo: repo, Report: func(m string) { lines = append(lines, m) }}

	sum, err := im.ImportDirectory(context.Background(), dir)
	if err != nil {
		t.Fatalf("ImportDirectory: %v", err)
	}

	if sum.TotalFiles != 3 || sum.Succeeded != 2 || sum.Failed != 1 {
		t.Fatalf("summary = %+v", sum)
	}
	if !reflect.DeepEqual(sum.FailedFiles, []string{"b.json"}) {
		t.Fatalf("failed files = %v", sum.FailedFiles)
	}
	if _, ok := repo.tables["a"]; !ok {
		t.Fatal("table a missing")
	}
	if _, ok := repo.tables["C"]; !ok {
		t.Fatal("case-insensitive extension match not imported")
	}
	if len(lines) == 0 {
		t.Fatal("no progress reported")
	}
}

// TestImportDirectoryEmpty distinguishes a directory with no candidate
// files: TotalFiles is zero and no error is returned.
func TestImportDirectoryEmpty(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "readme.md", `hi`)

	im := &Importer{Repo: newFakeRepo()}
	sum, err := im.ImportDirectory(context.Background(), dir)
	if err != nil {
		t.Fatalf("ImportDirectory: %v", err)
	}
	if sum.TotalFiles != 0 || sum.Failed != 0 || sum.Succeeded != 0 {
		t.Fatalf("summary = %+v", sum)
	}
}

func TestImportDirectoryMissing(t *testing.T) {
	t.Parallel()

	im := &Importer{Repo: newFakeRepo()}
	if _, err := im.ImportDirectory(context.Background(), filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Fatal("expected error for missing directory")
	}
}

func TestTableName(t *testing.T) {
	t.Parallel()

	tests := []struct{ in, want string }{
		{"/data/users.json", "users"},
		{"users.json", "users"},
		{"archive.tar.json", "archive.tar"},
		{"noext", "noext"},
	}
	for _, tt := range tests {
		if got := TableName(tt.in); got != tt.want {
			t.Fatalf("TableName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
