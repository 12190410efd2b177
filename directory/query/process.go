package query

import (
	"bytes"
	"cmp"
	"fmt"
	"slices"
	"strings"

	"phonebook/ldapdb/directory/schema"

	"github.com/go-ldap/ldap/v3"
	"golang.org/x/text/cases"
)

// Result is the outcome of processing a search. Exactly one of Rows or
// Count is meaningful, as reported by Counted; an empty Rows is a
// successful search with no matches.
type Result struct {
	Rows    []Row
	Count   int
	Counted bool

	// Dropped counts entries skipped because the primary key attribute was
	// not visible, usually due to access control.
	Dropped int
}

type decoded struct {
	row  Row
	keys []any
}

// Process decodes entries into rows, then counts or sorts and slices them.
//
// Every entry the search matched must be passed in: ordering and slicing
// happen here, so the cost is linear in the number of matching entries
// regardless of the requested window.
func Process(q Query, entries []*ldap.Entry) (Result, error) {
	if err := q.validate(); err != nil {
		return Result{}, err
	}

	if q.Counting() {
		pk := q.model.PrimaryField().Attribute
		var res Result
		for _, e := range entries {
			if len(attributeValues(e, pk)) == 0 {
				res.Dropped++
				continue
			}
			res.Count++
		}
		res.Counted = true
		return res, nil
	}

	rows, dropped, err := decodeEntries(q, entries)
	if err != nil {
		return Result{}, err
	}

	if len(q.ordering) > 0 {
		slices.SortStableFunc(rows, func(a, b decoded) int {
			return compareKeys(q.ordering, a.keys, b.keys)
		})
	}

	low, high := q.Window()
	if high < 0 || high > len(rows) {
		high = len(rows)
	}
	low = min(low, high)

	out := make([]Row, 0, high-low)
	for _, d := range rows[low:high] {
		out = append(out, d.row)
	}
	return Result{Rows: out, Dropped: dropped}, nil
}

func decodeEntries(q Query, entries []*ldap.Entry) ([]decoded, int, error) {
	fields, err := q.projection()
	if err != nil {
		return nil, 0, err
	}
	pk := q.model.PrimaryField()
	fold := cases.Fold()

	rows := make([]decoded, 0, len(entries))
	dropped := 0
	for _, e := range entries {
		if len(attributeValues(e, pk.Attribute)) == 0 {
			dropped++
			continue
		}

		row := Row{schema.DNField: e.DN}
		for _, f := range fields {
			v, err := schema.Decode(f, attributeValues(e, f.Attribute))
			if err != nil {
				return nil, 0, fmt.Errorf("decode %s: %w", e.DN, err)
			}
			row[f.Name] = v
		}

		keys := make([]any, len(q.ordering))
		for i, o := range q.ordering {
			if o.Field == schema.DNField {
				keys[i] = foldKey(fold, e.DN)
				continue
			}
			if v, ok := row[o.Field]; ok {
				keys[i] = foldKey(fold, v)
				continue
			}
			f, _ := q.model.Field(o.Field)
			v, err := schema.Decode(f, attributeValues(e, f.Attribute))
			if err != nil {
				return nil, 0, fmt.Errorf("decode %s: %w", e.DN, err)
			}
			keys[i] = foldKey(fold, v)
		}

		rows = append(rows, decoded{row: row, keys: keys})
	}
	return rows, dropped, nil
}

// attributeValues returns the raw values of attr; names match
// case-insensitively.
func attributeValues(e *ldap.Entry, attr string) [][]byte {
	for _, a := range e.Attributes {
		if strings.EqualFold(a.Name, attr) {
			return a.ByteValues
		}
	}
	return nil
}

func compareKeys(ordering []Order, a, b []any) int {
	for i, o := range ordering {
		c := compareValues(a[i], b[i])
		if o.Descending {
			c = -c
		}
		if c != 0 {
			return c
		}
	}
	return 0
}

// foldKey case-folds string sort keys once per entry so the sort itself
// compares plain strings.
func foldKey(fold cases.Caser, v any) any {
	switch x := v.(type) {
	case string:
		return fold.String(x)
	case []string:
		out := make([]string, len(x))
		for i, s := range x {
			out[i] = fold.String(s)
		}
		return out
	}
	return v
}

// compareValues orders two sort keys of the same field. String keys are
// already case-folded.
func compareValues(a, b any) int {
	switch x := a.(type) {
	case string:
		y, _ := b.(string)
		return strings.Compare(x, y)
	case int64:
		y, _ := b.(int64)
		return cmp.Compare(x, y)
	case []string:
		y, _ := b.([]string)
		return slices.Compare(x, y)
	case []byte:
		y, _ := b.([]byte)
		return bytes.Compare(x, y)
	}
	return 0
}
