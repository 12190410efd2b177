package query

import (
	"slices"
	"strings"

	"phonebook/ldapdb/directory/filter"
	"phonebook/ldapdb/directory/schema"

	"github.com/go-ldap/ldap/v3"
)

// SearchRequest is a compiled directory search. It performs no I/O.
type SearchRequest struct {
	BaseDN     string
	Scope      schema.Scope
	Filter     string
	Attributes []string
}

// LDAP converts the request into a go-ldap search request.
func (r SearchRequest) LDAP(controls ...ldap.Control) *ldap.SearchRequest {
	return ldap.NewSearchRequest(
		r.BaseDN,
		r.Scope.LDAP(),
		ldap.NeverDerefAliases,
		0, 0, false,
		r.Filter,
		r.Attributes,
		controls,
	)
}

// Compile builds the search request for q. Every object class of the model
// is required, so the filter stays meaningful when the query has no filter
// tree of its own.
func Compile(q Query) (SearchRequest, error) {
	if err := q.validate(); err != nil {
		return SearchRequest{}, err
	}
	m := q.model

	tree, err := filter.Compile(m, q.filter)
	if err != nil {
		return SearchRequest{}, err
	}

	var b strings.Builder
	b.WriteString("(&")
	for _, class := range m.ObjectClasses {
		b.WriteString("(objectClass=" + filter.Escape(class) + ")")
	}
	b.WriteString(tree)
	b.WriteString(")")

	filterString := b.String()
	if filterString == "(&)" {
		filterString = "(objectClass=*)"
	}

	attrs, err := attributes(q)
	if err != nil {
		return SearchRequest{}, err
	}

	return SearchRequest{
		BaseDN:     m.BaseDN,
		Scope:      m.Scope,
		Filter:     filterString,
		Attributes: attrs,
	}, nil
}

// attributes lists what the directory must return: the projection plus
// the ordering keys and the primary key, which decoding always needs.
// Counting needs nothing but the primary key.
func attributes(q Query) ([]string, error) {
	pk := q.model.PrimaryField().Attribute
	if q.Counting() {
		return []string{pk}, nil
	}

	fields, err := q.projection()
	if err != nil {
		return nil, err
	}

	attrs := make([]string, 0, len(fields)+len(q.ordering)+1)
	add := func(attr string) {
		if !slices.ContainsFunc(attrs, func(a string) bool { return strings.EqualFold(a, attr) }) {
			attrs = append(attrs, attr)
		}
	}
	for _, f := range fields {
		add(f.Attribute)
	}
	for _, o := range q.ordering {
		if f, ok := q.model.Field(o.Field); ok {
			add(f.Attribute)
		}
	}
	add(pk)
	return attrs, nil
}
