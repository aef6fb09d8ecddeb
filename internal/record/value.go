// Package record defines the in-memory shape of parsed input data.
//
// Every value read from an input file is converted into a Value, a closed
// tagged variant over the shapes JSON can produce (null, boolean, integer,
// float, string, nested object/array). Downstream type inference switches on
// Value.Kind instead of probing runtime types, which keeps the precedence
// rules exhaustive.
package record

import (
	"encoding/json"
	"fmt"
)

// Kind identifies the variant stored in a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	// KindComposite covers nested objects and arrays. Composites are never
	// decomposed into related tables; storage serializes them opaquely.
	KindComposite
)

// String returns a stable name for the kind, used in logs and errors.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindComposite:
		return "composite"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Value is one field value from an input record.
//
// Only the field matching Kind is meaningful; the zero Value is Null.
type Value struct {
	Kind      Kind
	Bool      bool
	Int       int64
	Float     float64
	Str       string
	Composite any
}

// Null returns the null value.
func Null() Value { return Value{} }

// FromJSON converts a value produced by encoding/json (with or without
// Decoder.UseNumber) into a tagged Value.
//
// json.Number inputs become Int when the text parses as int64, Float
// otherwise. Maps and slices become Composite and keep the decoded value
// as-is for later serialization.
func FromJSON(v any) Value {
	switch t := v.(type) {
	case nil:
		return Value{}
	case bool:
		return Value{Kind: KindBool, Bool: t}
	case string:
		return Value{Kind: KindString, Str: t}
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return Value{Kind: KindInt, Int: i}
		}
		f, err := t.Float64()
		if err != nil {
			// Number too large for both int64 and float64 parsing is not
			// producible by encoding/json; keep the text representation.
			return Value{Kind: KindString, Str: t.String()}
		}
		return Value{Kind: KindFloat, Float: f}
	case float64:
		return Value{Kind: KindFloat, Float: t}
	case int:
		return Value{Kind: KindInt, Int: int64(t)}
	case int64:
		return Value{Kind: KindInt, Int: t}
	case map[string]any, []any:
		return Value{Kind: KindComposite, Composite: t}
	default:
		return Value{Kind: KindString, Str: fmt.Sprint(t)}
	}
}

// Record maps field names to values. Field sets may differ between records
// of the same file; absent fields read as Null at schema and insert time.
type Record map[string]Value

// FromJSONObject converts a decoded JSON object into a Record.
func FromJSONObject(obj map[string]any) Record {
	r := make(Record, len(obj))
	for k, v := range obj {
		r[k] = FromJSON(v)
	}
	return r
}

// Get returns the value for a field, or Null when the field is absent.
func (r Record) Get(field string) Value {
	if v, ok := r[field]; ok {
		return v
	}
	return Value{}
}

// Set is the fully materialized contents of one input file.
type Set []Record
