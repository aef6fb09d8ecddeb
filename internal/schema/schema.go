// Package schema derives a relational table layout from a set of parsed
// records. The column set is the sorted union of all field names observed in
// the set, and each column's storage type is inferred from every value the
// field takes, so the widest observed shape wins for the whole column.
package schema

import (
	"fmt"
	"sort"

	"jsonimport/internal/record"
)

// ColumnType is the storage type assigned to one inferred column.
//
// Backends map these onto dialect-specific SQL types; the enum itself is
// dialect-neutral.
type ColumnType uint8

const (
	TypeText ColumnType = iota
	TypeVarChar255
	TypeBoolean
	TypeInt32
	TypeInt64
	TypeFloat64
	// TypeComposite marks nested values stored as an opaque serialized blob.
	TypeComposite
)

func (t ColumnType) String() string {
	switch t {
	case TypeText:
		return "text"
	case TypeVarChar255:
		return "varchar255"
	case TypeBoolean:
		return "boolean"
	case TypeInt32:
		return "int32"
	case TypeInt64:
		return "int64"
	case TypeFloat64:
		return "float64"
	case TypeComposite:
		return "composite"
	default:
		return fmt.Sprintf("type(%d)", uint8(t))
	}
}

// Column is one inferred column. Position is the zero-based index within the
// sorted column list and excludes the surrogate key.
type Column struct {
	Name     string
	Type     ColumnType
	Position int
}

// Table is the full inferred layout for one input file.
//
// Columns are sorted by name ascending; the surrogate key is always emitted
// first by backends and is never part of Columns.
type Table struct {
	Name         string
	SurrogateKey string
	Columns      []Column
}

// SurrogateKeyName is the synthetic auto-incrementing primary key added to
// every created table.
const SurrogateKeyName = "id"

// ColumnNames returns the column names in schema order, excluding the
// surrogate key.
func (t Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Build derives the table layout for a record set.
//
// It returns ok=false when the set is empty: no table is needed. The column
// list is deterministic regardless of field order within records or record
// order within the set.
func Build(tableName string, recs record.Set) (Table, bool) {
	if len(recs) == 0 {
		return Table{}, false
	}

	union := make(map[string]struct{})
	for _, r := range recs {
		for name := range r {
			union[name] = struct{}{}
		}
	}

	names := make([]string, 0, len(union))
	for name := range union {
		names = append(names, name)
	}
	sort.Strings(names)

	cols := make([]Column, 0, len(names))
	values := make([]record.Value, len(recs))
	for i, name := range names {
		// Absent fields contribute Null so an all-sparse column still infers.
		for j, r := range recs {
			values[j] = r.Get(name)
		}
		cols = append(cols, Column{
			Name:     name,
			Type:     Infer(values),
			Position: i,
		})
	}

	return Table{
		Name:         tableName,
		SurrogateKey: SurrogateKeyName,
		Columns:      cols,
	}, true
}
