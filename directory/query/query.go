// Package query compiles model queries into directory search requests and
// turns the returned entries into typed rows.
//
// Directories have no server-side ordering, offsets or aggregates. Ordering,
// slicing and counting are therefore done here, after the whole matching
// result set has been fetched and decoded: a query for one page of ten rows
// costs as much as reading every matching entry.
package query

import (
	"fmt"
	"strings"

	"phonebook/ldapdb/directory/filter"
	"phonebook/ldapdb/directory/schema"
)

// ErrCompile is returned for queries that are invalid before any I/O.
var ErrCompile = filter.ErrCompile

// ErrAggregate is returned for aggregate requests that cannot be served.
var ErrAggregate = fmt.Errorf("%w: unsupported aggregate", ErrCompile)

type Aggregate int

const (
	AggregateNone Aggregate = iota
	AggregateCount
	AggregateSum
	AggregateMin
	AggregateMax
)

func (a Aggregate) String() string {
	switch a {
	case AggregateNone:
		return "none"
	case AggregateCount:
		return "count"
	case AggregateSum:
		return "sum"
	case AggregateMin:
		return "min"
	case AggregateMax:
		return "max"
	}
	return fmt.Sprintf("aggregate(%d)", int(a))
}

// Order is one ordering key.
type Order struct {
	Field      string
	Descending bool
}

func Asc(field string) Order  { return Order{Field: field} }
func Desc(field string) Order { return Order{Field: field, Descending: true} }

// ParseOrder reads "field" or "-field".
func ParseOrder(s string) Order {
	if name, ok := strings.CutPrefix(s, "-"); ok {
		return Desc(name)
	}
	return Asc(s)
}

// Query is an immutable description of a directory read. Builder methods
// return modified copies.
type Query struct {
	model     *schema.Model
	filter    filter.Node
	fields    []string
	ordering  []Order
	low       int
	high      int
	bounded   bool
	aggregate Aggregate
}

// New starts a query over every entry of model m.
func New(m *schema.Model) Query {
	return Query{model: m}
}

func (q Query) Model() *schema.Model { return q.model }
func (q Query) Filter() filter.Node  { return q.filter }
func (q Query) Ordering() []Order    { return append([]Order(nil), q.ordering...) }
func (q Query) Aggregate() Aggregate { return q.aggregate }
func (q Query) Counting() bool       { return q.aggregate == AggregateCount }

// Where narrows the query; repeated calls are combined with And.
func (q Query) Where(n filter.Node) Query {
	if q.filter == nil {
		q.filter = n
	} else {
		q.filter = filter.And(q.filter, n)
	}
	return q
}

// Only restricts the fields decoded into rows. The pseudo-field "dn" is
// always present.
func (q Query) Only(fields ...string) Query {
	q.fields = append([]string(nil), fields...)
	return q
}

// OrderBy replaces the ordering.
func (q Query) OrderBy(orders ...Order) Query {
	q.ordering = append([]Order(nil), orders...)
	return q
}

// Slice keeps rows in [low, high) of the ordered result.
func (q Query) Slice(low, high int) Query {
	q.low, q.high, q.bounded = low, high, true
	return q
}

// Offset skips the first low rows without an upper bound.
func (q Query) Offset(low int) Query {
	q.low, q.high, q.bounded = low, 0, false
	return q
}

// WithAggregate requests an aggregate instead of rows.
func (q Query) WithAggregate(a Aggregate) Query {
	q.aggregate = a
	return q
}

// Window returns the slice bounds; high is -1 when unbounded.
func (q Query) Window() (low, high int) {
	if !q.bounded {
		return q.low, -1
	}
	return q.low, q.high
}

// projection resolves the requested fields, defaulting to every model field.
func (q Query) projection() ([]schema.FieldSpec, error) {
	if len(q.fields) == 0 {
		return q.model.Fields, nil
	}
	out := make([]schema.FieldSpec, 0, len(q.fields))
	for _, name := range q.fields {
		if name == schema.DNField {
			continue
		}
		f, ok := q.model.Field(name)
		if !ok {
			return nil, fmt.Errorf("%w: %s has no field %q", ErrCompile, q.model.Name, name)
		}
		out = append(out, f)
	}
	return out, nil
}

func (q Query) validate() error {
	if q.model == nil {
		return fmt.Errorf("%w: query has no model", ErrCompile)
	}
	switch q.aggregate {
	case AggregateNone, AggregateCount:
	default:
		return fmt.Errorf("%w: %s", ErrAggregate, q.aggregate)
	}
	for _, o := range q.ordering {
		if o.Field == schema.DNField {
			continue
		}
		if _, ok := q.model.Field(o.Field); !ok {
			return fmt.Errorf("%w: cannot order %s by unknown field %q", ErrCompile, q.model.Name, o.Field)
		}
	}
	if q.low < 0 || (q.bounded && q.high < 0) {
		return fmt.Errorf("%w: negative slice bound", ErrCompile)
	}
	return nil
}
