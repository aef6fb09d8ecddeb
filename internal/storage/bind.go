package storage

import (
	"encoding/json"
	"fmt"
	"strconv"

	"jsonimport/internal/record"
	"jsonimport/internal/schema"
)

// BindArg converts a record value into a driver-level argument for a column
// of the given inferred type.
//
// Inference widens a column to the type that can represent every observed
// value, and binding must follow the same widening: a string in a
// composite-widened column is serialized to JSON text, an integer in a
// string-widened column is rendered as its decimal text, a bool in an
// integer-widened column becomes 0/1. Null always binds nil (SQL NULL).
func BindArg(v record.Value, t schema.ColumnType) (any, error) {
	if v.Kind == record.KindNull {
		return nil, nil
	}

	switch t {
	case schema.TypeComposite:
		// Every value is serialized so the column always holds valid
		// JSON text; a bare string would not.
		payload, err := jsonPayload(v)
		if err != nil {
			return nil, err
		}
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("storage: serialize composite: %w", err)
		}
		return string(b), nil

	case schema.TypeVarChar255, schema.TypeText:
		switch v.Kind {
		case record.KindString:
			return v.Str, nil
		case record.KindBool:
			return strconv.FormatBool(v.Bool), nil
		case record.KindInt:
			return strconv.FormatInt(v.Int, 10), nil
		case record.KindFloat:
			return strconv.FormatFloat(v.Float, 'g', -1, 64), nil
		case record.KindComposite:
			b, err := json.Marshal(v.Composite)
			if err != nil {
				return nil, fmt.Errorf("storage: serialize composite: %w", err)
			}
			return string(b), nil
		}

	case schema.TypeFloat64:
		switch v.Kind {
		case record.KindFloat:
			return v.Float, nil
		case record.KindInt:
			return float64(v.Int), nil
		case record.KindBool:
			if v.Bool {
				return float64(1), nil
			}
			return float64(0), nil
		}

	case schema.TypeInt32, schema.TypeInt64:
		switch v.Kind {
		case record.KindInt:
			return v.Int, nil
		case record.KindBool:
			if v.Bool {
				return int64(1), nil
			}
			return int64(0), nil
		}

	case schema.TypeBoolean:
		if v.Kind == record.KindBool {
			return v.Bool, nil
		}
	}

	return nil, fmt.Errorf("storage: cannot bind %v value into %v column", v.Kind, t)
}

// jsonPayload unwraps a value into something json.Marshal accepts.
func jsonPayload(v record.Value) (any, error) {
	switch v.Kind {
	case record.KindBool:
		return v.Bool, nil
	case record.KindInt:
		return v.Int, nil
	case record.KindFloat:
		return v.Float, nil
	case record.KindString:
		return v.Str, nil
	case record.KindComposite:
		return v.Composite, nil
	default:
		return nil, fmt.Errorf("storage: unknown value kind %v", v.Kind)
	}
}

// BindRow converts one record into an argument slice aligned with the
// schema's column order. Absent fields bind nil.
func BindRow(r record.Record, cols []schema.Column) ([]any, error) {
	args := make([]any, len(cols))
	for i, c := range cols {
		a, err := BindArg(r.Get(c.Name), c.Type)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", c.Name, err)
		}
		args[i] = a
	}
	return args, nil
}
