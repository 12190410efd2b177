// Package params parses the textual query and row syntax shared by the
// command line and the HTTP API: field__lookup=value filters, field=value
// rows, "-field" orderings and "low:high" slices.
package params

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"phonebook/ldapdb/directory/filter"
	"phonebook/ldapdb/directory/query"
	"phonebook/ldapdb/directory/schema"
)

// lookupSeparator splits a filter argument's field from its lookup, as in
// "name__icontains=ann".
const lookupSeparator = "__"

// ParseFilter turns field__lookup=value arguments into a filter tree. The
// arguments are ANDed; "!=" negates one. The lookup defaults to exact and
// "in" takes a comma separated list.
func ParseFilter(m *schema.Model, args []string) (filter.Node, error) {
	nodes := make([]filter.Node, 0, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, fmt.Errorf("filter %q: expected field__lookup=value", arg)
		}
		negate := strings.HasSuffix(key, "!")
		key = strings.TrimSuffix(key, "!")

		name, lookup, _ := strings.Cut(key, lookupSeparator)
		if lookup == "" {
			lookup = string(schema.Exact)
		}
		f, ok := m.Field(name)
		if !ok {
			return nil, fmt.Errorf("filter %q: %s has no field %s", arg, m.Name, name)
		}

		operand, err := filterOperand(f, schema.Lookup(lookup), value)
		if err != nil {
			return nil, fmt.Errorf("filter %q: %w", arg, err)
		}
		var n filter.Node = filter.Where(name, schema.Lookup(lookup), operand)
		if negate {
			n = filter.Not(n)
		}
		nodes = append(nodes, n)
	}

	switch len(nodes) {
	case 0:
		return nil, nil
	case 1:
		return nodes[0], nil
	}
	return filter.And(nodes...), nil
}

func filterOperand(f schema.FieldSpec, lookup schema.Lookup, value string) (any, error) {
	if lookup == schema.In {
		if value == "" {
			return []string{}, nil
		}
		return strings.Split(value, ","), nil
	}
	if f.Kind == schema.Integer {
		return ParseInteger(value)
	}
	return value, nil
}

// ParseRow turns key=value arguments into a row. A List field collects
// every value given for it; a Binary value of "@path" is read from the file.
func ParseRow(m *schema.Model, args []string) (query.Row, error) {
	row := make(query.Row, len(args))
	for _, arg := range args {
		name, value, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, fmt.Errorf("value %q: expected field=value", arg)
		}
		if name == schema.DNField {
			row[name] = value
			continue
		}
		f, ok := m.Field(name)
		if !ok {
			return nil, fmt.Errorf("value %q: %s has no field %s", arg, m.Name, name)
		}

		switch f.Kind {
		case schema.Text:
			row[name] = value
		case schema.Integer:
			n, err := ParseInteger(value)
			if err != nil {
				return nil, fmt.Errorf("value %q: %w", arg, err)
			}
			row[name] = n
		case schema.List:
			values, _ := row[name].([]string)
			if values == nil {
				values = []string{}
			}
			if value != "" {
				values = append(values, value)
			}
			row[name] = values
		case schema.Binary:
			data, err := binaryValue(value)
			if err != nil {
				return nil, fmt.Errorf("value %q: %w", arg, err)
			}
			row[name] = data
		}
	}
	return row, nil
}

// ParseInteger parses a decimal Integer field value.
func ParseInteger(value string) (int64, error) {
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not an integer", schema.ErrFieldType, value)
	}
	return n, nil
}

func binaryValue(value string) ([]byte, error) {
	path, ok := strings.CutPrefix(value, "@")
	if !ok {
		return []byte(value), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

// ParseSlice applies a "low:high", "low:" or ":high" window to q.
func ParseSlice(q query.Query, s string) (query.Query, error) {
	if s == "" {
		return q, nil
	}
	lowText, highText, ok := strings.Cut(s, ":")
	if !ok {
		return q, fmt.Errorf("slice %q: expected low:high", s)
	}

	low := 0
	if lowText != "" {
		n, err := strconv.Atoi(lowText)
		if err != nil || n < 0 {
			return q, fmt.Errorf("slice %q: invalid lower bound", s)
		}
		low = n
	}
	if highText == "" {
		return q.Offset(low), nil
	}
	high, err := strconv.Atoi(highText)
	if err != nil || high < low {
		return q, fmt.Errorf("slice %q: invalid upper bound", s)
	}
	return q.Slice(low, high), nil
}

// BuildQuery assembles a query from filter arguments, orderings, a slice
// and a projection. Empty arguments leave the query unchanged.
func BuildQuery(m *schema.Model, filters []string, order []string, slice string, fields []string) (query.Query, error) {
	q := query.New(m)

	n, err := ParseFilter(m, filters)
	if err != nil {
		return q, err
	}
	if n != nil {
		q = q.Where(n)
	}

	if len(order) > 0 {
		orders := make([]query.Order, 0, len(order))
		for _, o := range order {
			orders = append(orders, query.ParseOrder(o))
		}
		q = q.OrderBy(orders...)
	}
	if len(fields) > 0 {
		q = q.Only(fields...)
	}
	return ParseSlice(q, slice)
}
