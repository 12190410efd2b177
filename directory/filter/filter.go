// Package filter builds boolean filter trees over model fields and compiles
// them into RFC 4515 search filter strings.
package filter

import (
	"phonebook/ldapdb/directory/schema"
)

// Node is one node of a filter tree. Trees are immutable once built.
type Node interface {
	isNode()
}

type leafFilter struct {
	field  string
	lookup schema.Lookup
	value  any
}

// Where compares a model field against value using lookup.
func Where(field string, lookup schema.Lookup, value any) Node {
	return leafFilter{field: field, lookup: lookup, value: value}
}

// Eq is shorthand for an exact lookup.
func Eq(field string, value any) Node {
	return Where(field, schema.Exact, value)
}

// In matches entries whose field equals any of values.
func In(field string, values ...string) Node {
	return Where(field, schema.In, values)
}

// Logical operators
type andFilter struct {
	parts []Node
}

func And(nodes ...Node) Node {
	return andFilter{parts: nodes}
}

type orFilter struct {
	parts []Node
}

func Or(nodes ...Node) Node {
	return orFilter{parts: nodes}
}

type notFilter struct {
	part Node
}

func Not(n Node) Node {
	return notFilter{part: n}
}

func (leafFilter) isNode() {}
func (andFilter) isNode()  {}
func (orFilter) isNode()   {}
func (notFilter) isNode()  {}
