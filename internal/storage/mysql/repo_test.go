package mysql

import (
	"reflect"
	"testing"

	"jsonimport/internal/record"
	"jsonimport/internal/schema"
)

func testTable() schema.Table {
	return schema.Table{
		Name:         "users",
		SurrogateKey: "id",
		Columns: []schema.Column{
			{Name: "age", Type: schema.TypeInt32, Position: 0},
			{Name: "name", Type: schema.TypeVarChar255, Position: 1},
		},
	}
}

// TestBuildDropSQL verifies destructive-drop DDL with quoting.
func TestBuildDropSQL(t *testing.T) {
	t.Parallel()

	if got := buildDropSQL("users"); got != "DROP TABLE IF EXISTS `users`" {
		t.Fatalf("buildDropSQL = %q", got)
	}
}

// TestBuildCreateSQL verifies the surrogate key leads and columns keep their
// sorted order with mapped types.
func TestBuildCreateSQL(t *testing.T) {
	t.Parallel()

	want := "CREATE TABLE `users` (`id` BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY, `age` INT, `name` VARCHAR(255))"
	if got := buildCreateSQL(testTable()); got != want {
		t.Fatalf("buildCreateSQL =\n%q\nwant\n%q", got, want)
	}
}

// TestBuildCreateSQLTypeMapping verifies every column type maps to a MySQL type.
func TestBuildCreateSQLTypeMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   schema.ColumnType
		want string
	}{
		{schema.TypeBoolean, "BOOLEAN"},
		{schema.TypeInt32, "INT"},
		{schema.TypeInt64, "BIGINT"},
		{schema.TypeFloat64, "DOUBLE"},
		{schema.TypeVarChar255, "VARCHAR(255)"},
		{schema.TypeText, "TEXT"},
		{schema.TypeComposite, "JSON"},
	}
	for _, tt := range tests {
		if got := columnSQLType(tt.in); got != tt.want {
			t.Fatalf("columnSQLType(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

// TestBuildInsertSQL verifies placeholder layout and null binding for
// heterogeneous records.
func TestBuildInsertSQL(t *testing.T) {
	t.Parallel()

	recs := record.Set{
		{
			"name": {Kind: record.KindString, Str: "Ann"},
			"age":  {Kind: record.KindInt, Int: 30},
		},
		{
			"name": {Kind: record.KindString, Str: "Bo"},
		},
	}

	q, args, err := buildInsertSQL(testTable(), recs)
	if err != nil {
		t.Fatalf("buildInsertSQL: %v", err)
	}

	wantQ := "INSERT INTO `users` (`age`, `name`) VALUES (?,?), (?,?)"
	if q != wantQ {
		t.Fatalf("sql =\n%q\nwant\n%q", q, wantQ)
	}
	wantArgs := []any{int64(30), "Ann", nil, "Bo"}
	if !reflect.DeepEqual(args, wantArgs) {
		t.Fatalf("args = %#v, want %#v", args, wantArgs)
	}
}

// TestBuildInsertSQLWidenedColumn verifies that a composite-widened column
// serializes every bound value to valid JSON text, including bare scalars
// that shared the column with nested values.
func TestBuildInsertSQLWidenedColumn(t *testing.T) {
	t.Parallel()

	table := schema.Table{
		Name:         "events",
		SurrogateKey: "id",
		Columns: []schema.Column{
			{Name: "o", Type: schema.TypeComposite, Position: 0},
		},
	}
	recs := record.Set{
		{"o": {Kind: record.KindComposite, Composite: map[string]any{"a": 1}}},
		{"o": {Kind: record.KindString, Str: "plain"}},
	}

	_, args, err := buildInsertSQL(table, recs)
	if err != nil {
		t.Fatalf("buildInsertSQL: %v", err)
	}
	wantArgs := []any{`{"a":1}`, `"plain"`}
	if !reflect.DeepEqual(args, wantArgs) {
		t.Fatalf("args = %#v, want %#v", args, wantArgs)
	}
}

// TestBuildDefaultRowSQL verifies the statement used for records with no
// fields at all.
func TestBuildDefaultRowSQL(t *testing.T) {
	t.Parallel()

	if got := buildDefaultRowSQL("blank"); got != "INSERT INTO `blank` () VALUES ()" {
		t.Fatalf("buildDefaultRowSQL = %q", got)
	}
}

// TestSQLIdent verifies hostile identifiers are neutralized.
func TestSQLIdent(t *testing.T) {
	t.Parallel()

	if got := sqlIdent("a`b"); got != "`a``b`" {
		t.Fatalf("sqlIdent = %q", got)
	}
	if got := sqlIdent("drop table x; --"); got != "`drop table x; --`" {
		t.Fatalf("sqlIdent = %q", got)
	}
}
