// Package mutation compiles typed rows into directory Add, Modify, ModifyDN
// and Delete requests. Nothing here talks to a server.
package mutation

import (
	"errors"
	"fmt"

	"phonebook/ldapdb/directory/query"
	"phonebook/ldapdb/directory/schema"

	"github.com/go-ldap/ldap/v3"
)

var (
	// ErrMissingField is returned when a required field has no value.
	ErrMissingField = errors.New("missing required field")

	// ErrPrimaryKeyChanged is returned by Update when the new row carries a
	// different primary key; the entry has to be renamed instead.
	ErrPrimaryKeyChanged = fmt.Errorf("%w: primary key changed, rename the entry", query.ErrCompile)

	// ErrUnknownField is returned when a row names a field the model lacks.
	ErrUnknownField = fmt.Errorf("%w: unknown field", query.ErrCompile)
)

// Insert compiles a complete row into an Add request. The DN is taken from
// the row's "dn" value when present, otherwise built from the primary key.
// A missing primary key is generated when the model has an Identifier.
func Insert(m *schema.Model, row query.Row) (*ldap.AddRequest, error) {
	if err := checkFields(m, row); err != nil {
		return nil, err
	}
	pk := m.PrimaryField()
	if empty(pk, row) && m.Identifier != nil {
		row = withValue(row, pk.Name, m.Identifier())
	}

	for _, f := range m.Fields {
		if (f.Required || f.Name == pk.Name) && empty(f, row) {
			return nil, fmt.Errorf("%w: %s.%s", ErrMissingField, m.Name, f.Name)
		}
	}

	dn := row.DN()
	if dn == "" {
		var err error
		if dn, err = m.DN(row[pk.Name]); err != nil {
			return nil, err
		}
	}

	req := ldap.NewAddRequest(dn, nil)
	if len(m.ObjectClasses) > 0 {
		req.Attribute("objectClass", m.ObjectClasses)
	}
	for _, f := range m.Fields {
		v, ok := row[f.Name]
		if !ok {
			continue
		}
		values, err := schema.Encode(f, v)
		if err != nil {
			return nil, err
		}
		if schema.IsEmpty(values) {
			continue
		}
		req.Attribute(f.Attribute, toStrings(values))
	}
	return req, nil
}

// checkFields rejects row keys other than "dn" that name no model field.
func checkFields(m *schema.Model, row query.Row) error {
	for name := range row {
		if name == "dn" {
			continue
		}
		if _, ok := m.Field(name); !ok {
			return fmt.Errorf("%w: %s has no field %q", ErrUnknownField, m.Name, name)
		}
	}
	return nil
}

func empty(f schema.FieldSpec, row query.Row) bool {
	v, ok := row[f.Name]
	if !ok || v == nil {
		return true
	}
	values, err := schema.Encode(f, v)
	return err == nil && schema.IsEmpty(values)
}

// withValue returns a copy of row with field set, leaving the caller's row
// untouched.
func withValue(row query.Row, field string, v any) query.Row {
	out := make(query.Row, len(row)+1)
	for k, val := range row {
		out[k] = val
	}
	out[field] = v
	return out
}

func toStrings(values [][]byte) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = string(v)
	}
	return out
}
