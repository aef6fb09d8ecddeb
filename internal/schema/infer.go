package schema

import (
	"unicode/utf8"

	"jsonimport/internal/record"
)

// int32Bound is the first absolute value that no longer fits the narrow
// integer type: max |v| >= 2^31 forces TypeInt64.
const int32Bound = uint64(1) << 31

// Infer maps every value observed for one field to a single storage type.
//
// The rules form a strict precedence hierarchy evaluated over the non-null
// subset, not a vote: one composite or over-length string anywhere in the
// column widens the whole column, so every observed value stays
// representable.
//
//  1. no non-null values          -> TypeText
//  2. any composite               -> TypeComposite
//  3. any string, > 255 chars     -> TypeText, else TypeVarChar255
//  4. any float                   -> TypeFloat64
//  5. any int, max |v| >= 2^31    -> TypeInt64, else TypeInt32
//  6. any bool                    -> TypeBoolean
//  7. fallback                    -> TypeText
//
// Booleans are a distinct tag and never count as integers.
func Infer(values []record.Value) ColumnType {
	var (
		nonNull      bool
		hasComposite bool
		hasString    bool
		maxStrLen    int
		hasFloat     bool
		hasInt       bool
		maxAbs       uint64
		hasBool      bool
	)

	for _, v := range values {
		switch v.Kind {
		case record.KindNull:
			continue
		case record.KindComposite:
			hasComposite = true
		case record.KindString:
			hasString = true
			// Length is measured in characters, not bytes: VARCHAR(255)
			// counts characters in every supported backend.
			if n := utf8.RuneCountInString(v.Str); n > maxStrLen {
				maxStrLen = n
			}
		case record.KindFloat:
			hasFloat = true
		case record.KindInt:
			hasInt = true
			if a := absInt64(v.Int); a > maxAbs {
				maxAbs = a
			}
		case record.KindBool:
			hasBool = true
		}
		nonNull = true
	}

	switch {
	case !nonNull:
		return TypeText
	case hasComposite:
		return TypeComposite
	case hasString:
		if maxStrLen > 255 {
			return TypeText
		}
		return TypeVarChar255
	case hasFloat:
		return TypeFloat64
	case hasInt:
		if maxAbs >= int32Bound {
			return TypeInt64
		}
		return TypeInt32
	case hasBool:
		return TypeBoolean
	default:
		return TypeText
	}
}

// absInt64 returns |v| without overflowing on math.MinInt64.
func absInt64(v int64) uint64 {
	if v >= 0 {
		return uint64(v)
	}
	return uint64(-(v + 1)) + 1
}
