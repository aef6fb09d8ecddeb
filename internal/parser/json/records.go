// Package json reads one input file into a fully materialized record set.
//
// Unlike a streaming parser, the importer needs the whole file in memory:
// type inference must observe every value of every field before any DDL is
// issued. Files are bounded by the import use case, so materializing is the
// simpler and correct choice here.
package json

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"jsonimport/internal/record"
)

// DecodeRecords parses r as either a single JSON object or an array of JSON
// objects and returns the corresponding record set.
//
// Behavior:
//   - A single object yields a one-element set.
//   - An array yields one record per object element; null elements are
//     skipped.
//   - An empty array (or an array of only nulls) yields an empty set; the
//     caller decides whether that means "skip file".
//   - Any other root, a non-object array element, or trailing content after
//     the root value is an error.
//
// Input may start with a UTF-8 or UTF-16 byte order mark; encoding/json does
// not tolerate BOMs, so the reader is wrapped in a BOM-stripping transform.
func DecodeRecords(r io.Reader) (record.Set, error) {
	dec := json.NewDecoder(transform.NewReader(r, bomAwareUTF8()))
	dec.UseNumber() // keep integers exact; inference splits int vs float

	var root any
	if err := dec.Decode(&root); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("json: empty input")
		}
		return nil, fmt.Errorf("json: decode: %w", err)
	}

	// Exactly one root value per file.
	if tok, err := dec.Token(); err != io.EOF {
		if err != nil {
			return nil, fmt.Errorf("json: trailing content: %w", err)
		}
		return nil, fmt.Errorf("json: trailing content after root value (got %v)", tok)
	}

	switch v := root.(type) {
	case map[string]any:
		return record.Set{record.FromJSONObject(v)}, nil

	case []any:
		recs := make(record.Set, 0, len(v))
		for i, elem := range v {
			if elem == nil {
				continue
			}
			obj, ok := elem.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("json: array element %d is not an object (got %T)", i, elem)
			}
			recs = append(recs, record.FromJSONObject(obj))
		}
		return recs, nil

	default:
		return nil, fmt.Errorf("json: unsupported root %T (want object or array of objects)", root)
	}
}

// bomAwareUTF8 decodes UTF-8 input while stripping a leading UTF-8 BOM and
// transparently converting UTF-16 input that announces itself with a BOM.
func bomAwareUTF8() transform.Transformer {
	return unicode.BOMOverride(unicode.UTF8.NewDecoder())
}
